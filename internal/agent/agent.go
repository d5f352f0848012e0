// Package agent drives one debug endpoint: the per-cycle dispatcher that
// pulls validated requests from the comm engine, applies the memory policy,
// performs the requested action and hands back the response.
package agent

import (
	"github.com/jprue/firmtap/internal/comm"
	"github.com/jprue/firmtap/internal/protocol"
	"github.com/jprue/firmtap/internal/timebase"
)

// Agent is one instrumentation endpoint linked into a host program. The
// host calls ReceiveData with transport input, Process once per cycle, and
// drains DataToSend/PopData back into the transport. All methods must be
// called from the same goroutine.
type Agent struct {
	cfg   Config
	tb    timebase.Timebase
	comm  *comm.Handler
	codec protocol.Codec

	processing        bool
	pendingDisconnect bool
	scratch           []byte
}

// New validates and copies the configuration and builds the agent.
func New(cfg Config) (*Agent, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ForbiddenRanges = append([]AddressRange(nil), cfg.ForbiddenRanges...)
	cfg.ReadonlyRanges = append([]AddressRange(nil), cfg.ReadonlyRanges...)

	a := &Agent{
		cfg:     cfg,
		codec:   protocol.Codec{AddrSize: cfg.PointerSize},
		scratch: make([]byte, cfg.BufferSize),
	}
	a.comm = comm.NewHandler(
		&a.tb,
		cfg.BufferSize,
		uint32(cfg.RxTimeout.Microseconds()),
		uint32(cfg.HeartbeatTimeout.Microseconds()),
	)
	return a, nil
}

// ReceiveData feeds transport bytes to the framing engine.
func (a *Agent) ReceiveData(p []byte) {
	a.comm.ReceiveData(p)
}

// DataToSend reports how many response bytes await the transport.
func (a *Agent) DataToSend() int {
	return a.comm.DataToSend()
}

// PopData drains serialized response bytes into p.
func (a *Agent) PopData(p []byte) int {
	return a.comm.PopData(p)
}

// Comm exposes the framing engine for supervisor duties: the RX overflow
// latch is only cleared by an explicit Reset, which is the supervisor's
// responsibility.
func (a *Agent) Comm() *comm.Handler {
	return a.comm
}

// Process runs one cycle: advance the clock by dt microseconds, run the
// timeout housekeeping, then dispatch at most one pending request. A
// disconnect is applied only after its response has fully left the wire.
func (a *Agent) Process(dt uint32) {
	a.tb.Step(dt)
	a.comm.CheckTimeouts()

	if a.comm.RequestReceived() && !a.processing {
		a.processing = true
		resp := a.comm.PrepareResponse()
		a.dispatch(a.comm.Request(), resp)
		if resp.Valid {
			if resp.Code != protocol.CodeOK {
				resp.DataLength = 0
			}
			a.comm.SendResponse(resp)
		}
	}

	if a.processing && !a.comm.Transmitting() {
		a.comm.RequestProcessed()
		a.processing = false
		if a.pendingDisconnect {
			a.comm.Disconnect()
			a.pendingDisconnect = false
		}
	}
}

func (a *Agent) dispatch(req *protocol.Request, resp *protocol.Response) {
	if !req.Valid {
		return
	}

	resp.Command = req.Command
	resp.Subfunction = req.Subfunction
	resp.Code = protocol.CodeOK
	resp.Valid = true

	switch req.Command {
	case protocol.CmdGetInfo:
		resp.Code = a.processGetInfo(req, resp)
	case protocol.CmdCommControl:
		resp.Code = a.processCommControl(req, resp)
	case protocol.CmdMemoryControl:
		resp.Code = a.processMemoryControl(req, resp)
	case protocol.CmdUserCommand:
		resp.Code = a.processUserCommand(req, resp)
	case protocol.CmdDataLogControl:
		resp.Code = protocol.CodeUnsupportedFeature
	default:
		resp.Code = protocol.CodeUnsupportedFeature
	}
}

func (a *Agent) processGetInfo(req *protocol.Request, resp *protocol.Response) protocol.ResponseCode {
	switch req.Subfunction {
	case protocol.SubfnGetProtocolVersion:
		return a.codec.EncodeProtocolVersion(resp, protocol.VersionMajor, protocol.VersionMinor)

	case protocol.SubfnGetSoftwareID:
		return a.codec.EncodeSoftwareID(resp, a.cfg.SoftwareID)

	case protocol.SubfnGetSpecialMemoryRegionCount:
		readonly := uint8(usableRanges(a.cfg.ReadonlyRanges))
		forbidden := uint8(usableRanges(a.cfg.ForbiddenRanges))
		return a.codec.EncodeRegionCount(resp, readonly, forbidden)

	case protocol.SubfnGetSpecialMemoryRegionLocation:
		loc, code := a.codec.DecodeRegionLocation(req)
		if code != protocol.CodeOK {
			return code
		}
		var table []AddressRange
		switch loc.Type {
		case protocol.RegionReadOnly:
			table = a.cfg.ReadonlyRanges
		case protocol.RegionForbidden:
			table = a.cfg.ForbiddenRanges
		default:
			return protocol.CodeInvalidRequest
		}
		if int(loc.Index) >= usableRanges(table) {
			return protocol.CodeInvalidRequest
		}
		r := table[loc.Index]
		return a.codec.EncodeRegionLocation(resp, loc.Type, loc.Index, r.Start, r.End)

	default:
		// GetSupportedFeatures has no defined payload in v1.0.
		return protocol.CodeUnsupportedFeature
	}
}

func (a *Agent) processCommControl(req *protocol.Request, resp *protocol.Response) protocol.ResponseCode {
	switch req.Subfunction {
	case protocol.SubfnCommDiscover:
		d, code := a.codec.DecodeDiscover(req)
		if code != protocol.CodeOK {
			return code
		}
		if d.Magic != protocol.DiscoverMagic {
			return protocol.CodeInvalidRequest
		}
		var answer [4]byte
		for i, b := range d.Challenge {
			answer[i] = ^b
		}
		return a.codec.EncodeDiscoverResponse(resp, answer)

	case protocol.SubfnCommHeartbeat:
		hb, code := a.codec.DecodeHeartbeat(req)
		if code != protocol.CodeOK {
			return code
		}
		if !a.comm.Heartbeat(hb.SessionID) {
			return protocol.CodeInvalidRequest
		}
		return a.codec.EncodeHeartbeatResponse(resp, hb.SessionID, ^hb.Challenge)

	case protocol.SubfnCommGetParams:
		return a.codec.EncodeGetParamsResponse(resp, protocol.GetParams{
			RxBufferSize:     uint16(a.cfg.BufferSize),
			TxBufferSize:     uint16(a.cfg.BufferSize),
			MaxBitrate:       a.cfg.MaxBitrate,
			HeartbeatTimeout: uint32(a.cfg.HeartbeatTimeout.Microseconds()),
			RxTimeout:        uint32(a.cfg.RxTimeout.Microseconds()),
		})

	case protocol.SubfnCommConnect:
		c, code := a.codec.DecodeConnect(req)
		if code != protocol.CodeOK {
			return code
		}
		if c.Magic != protocol.ConnectMagic {
			return protocol.CodeInvalidRequest
		}
		if !a.comm.Connect() {
			return protocol.CodeBusy
		}
		return a.codec.EncodeConnectResponse(resp, a.comm.SessionID())

	case protocol.SubfnCommDisconnect:
		d, code := a.codec.DecodeDisconnect(req)
		if code != protocol.CodeOK {
			return code
		}
		if !a.comm.Connected() || d.SessionID != a.comm.SessionID() {
			return protocol.CodeInvalidRequest
		}
		// Applied after the response has fully left the wire.
		a.pendingDisconnect = true
		return protocol.CodeOK

	default:
		return protocol.CodeUnsupportedFeature
	}
}

func (a *Agent) processUserCommand(req *protocol.Request, resp *protocol.Response) protocol.ResponseCode {
	if a.cfg.UserCommand == nil {
		return protocol.CodeUnsupportedFeature
	}
	n, code := a.cfg.UserCommand(req.Subfunction, req.Data[:req.DataLength], resp.Data)
	if code != protocol.CodeOK {
		return code
	}
	if n < 0 || n > len(resp.Data) {
		return protocol.CodeOverflow
	}
	resp.DataLength = uint16(n)
	return protocol.CodeOK
}
