package agent

import "github.com/jprue/firmtap/internal/protocol"

func (a *Agent) processMemoryControl(req *protocol.Request, resp *protocol.Response) protocol.ResponseCode {
	if a.cfg.Memory == nil {
		return protocol.CodeUnsupportedFeature
	}
	switch req.Subfunction {
	case protocol.SubfnMemoryRead:
		return a.processMemoryRead(req, resp)
	case protocol.SubfnMemoryWrite:
		return a.processMemoryWrite(req, resp)
	default:
		return protocol.CodeUnsupportedFeature
	}
}

func (a *Agent) processMemoryRead(req *protocol.Request, resp *protocol.Response) protocol.ResponseCode {
	parser := a.codec.NewReadRequestParser(req)
	if parser.Invalid() {
		return protocol.CodeInvalidRequest
	}
	if parser.RequiredResponseSize() > len(resp.Data) {
		return protocol.CodeOverflow
	}

	encoder := a.codec.NewReadResponseEncoder(resp, len(resp.Data))
	var block protocol.MemoryBlock
	for parser.Next(&block) {
		if touchesRange(a.cfg.ForbiddenRanges, block.Address, block.Length) {
			return protocol.CodeForbidden
		}
		if block.Length > 0 {
			buf := a.scratch[:block.Length]
			if err := a.cfg.Memory.Read(block.Address, buf); err != nil {
				return protocol.CodeFailureToProceed
			}
			block.Data = buf
		} else {
			block.Data = nil
		}
		encoder.Write(&block)
		if encoder.Overflow() {
			return protocol.CodeOverflow
		}
	}
	if parser.Invalid() {
		return protocol.CodeInvalidRequest
	}
	return protocol.CodeOK
}

func (a *Agent) processMemoryWrite(req *protocol.Request, resp *protocol.Response) protocol.ResponseCode {
	parser := a.codec.NewWriteRequestParser(req)
	if parser.Invalid() {
		return protocol.CodeInvalidRequest
	}
	if parser.RequiredResponseSize() > len(resp.Data) {
		return protocol.CodeOverflow
	}

	encoder := a.codec.NewWriteResponseEncoder(resp, len(resp.Data))
	var block protocol.MemoryBlock
	for parser.Next(&block) {
		// Every policy check for this block passes before any of its bytes
		// is copied; earlier blocks may already have been written.
		if touchesRange(a.cfg.ForbiddenRanges, block.Address, block.Length) {
			return protocol.CodeForbidden
		}
		if touchesRange(a.cfg.ReadonlyRanges, block.Address, block.Length) {
			return protocol.CodeForbidden
		}
		if block.Length > 0 {
			if err := a.cfg.Memory.Write(block.Address, block.Data); err != nil {
				return protocol.CodeFailureToProceed
			}
		}
		encoder.Write(&block)
		if encoder.Overflow() {
			return protocol.CodeOverflow
		}
	}
	if parser.Invalid() {
		return protocol.CodeInvalidRequest
	}
	return protocol.CodeOK
}

// touchesRange reports whether the block [addr, addr+length) lands in any
// set range. The first and last byte of the block are tested against the
// inclusive interval; the scan stops at the first unset entry.
func touchesRange(ranges []AddressRange, addr uint64, length uint16) bool {
	if length == 0 {
		return false
	}
	first := addr
	last := addr + uint64(length) - 1
	for _, r := range ranges {
		if !r.Set {
			break
		}
		if (first >= r.Start && first <= r.End) || (last >= r.Start && last <= r.End) {
			return true
		}
	}
	return false
}
