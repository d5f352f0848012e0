package protocol

import "encoding/binary"

// MemoryBlock is one (address, length) record streamed out of a memory
// control request. Data carries the source bytes for writes and the bytes
// read back for read responses.
type MemoryBlock struct {
	Address uint64
	Length  uint16
	Data    []byte
}

// ReadRequestParser streams the blocks of a MemoryControl read request.
// The whole payload is validated up front; RequiredResponseSize then
// reports the exact transmit budget the matching response needs.
type ReadRequestParser struct {
	buf      []byte
	addrSize int
	cursor   int
	required int
	invalid  bool
	finished bool
}

// NewReadRequestParser binds a parser to the request payload.
func (c Codec) NewReadRequestParser(req *Request) *ReadRequestParser {
	p := &ReadRequestParser{
		buf:      req.Data[:req.DataLength],
		addrSize: c.AddrSize,
	}
	p.validate()
	return p
}

func (p *ReadRequestParser) validate() {
	recordSize := p.addrSize + 2
	cursor := 0
	for {
		if cursor+recordSize > len(p.buf) {
			p.invalid = true
			return
		}
		length := binary.BigEndian.Uint16(p.buf[cursor+p.addrSize:])
		cursor += recordSize
		p.required += recordSize + int(length)
		if cursor == len(p.buf) {
			return
		}
	}
}

// Next fills block with the next record. It returns false once the payload
// is exhausted or found invalid.
func (p *ReadRequestParser) Next(block *MemoryBlock) bool {
	if p.finished || p.invalid {
		return false
	}
	block.Address = getAddr(p.buf[p.cursor:], p.addrSize)
	p.cursor += p.addrSize
	block.Length = binary.BigEndian.Uint16(p.buf[p.cursor:])
	p.cursor += 2
	block.Data = nil
	if p.cursor == len(p.buf) {
		p.finished = true
	}
	return true
}

func (p *ReadRequestParser) Invalid() bool  { return p.invalid }
func (p *ReadRequestParser) Finished() bool { return p.finished }

// RequiredResponseSize is the payload size of the response that echoes
// every block with its data.
func (p *ReadRequestParser) RequiredResponseSize() int { return p.required }

// WriteRequestParser streams the blocks of a MemoryControl write request,
// each carrying its source bytes inline.
type WriteRequestParser struct {
	buf      []byte
	addrSize int
	cursor   int
	required int
	invalid  bool
	finished bool
}

// NewWriteRequestParser binds a parser to the request payload.
func (c Codec) NewWriteRequestParser(req *Request) *WriteRequestParser {
	p := &WriteRequestParser{
		buf:      req.Data[:req.DataLength],
		addrSize: c.AddrSize,
	}
	p.validate()
	return p
}

func (p *WriteRequestParser) validate() {
	headerSize := p.addrSize + 2
	cursor := 0
	for {
		if cursor+headerSize > len(p.buf) {
			p.invalid = true
			return
		}
		length := binary.BigEndian.Uint16(p.buf[cursor+p.addrSize:])
		cursor += headerSize + int(length)
		if cursor > len(p.buf) {
			p.invalid = true
			return
		}
		p.required += headerSize
		if cursor == len(p.buf) {
			return
		}
	}
}

// Next fills block with the next record, Data pointing into the request
// payload. It returns false once the payload is exhausted or invalid.
func (p *WriteRequestParser) Next(block *MemoryBlock) bool {
	if p.finished || p.invalid {
		return false
	}
	block.Address = getAddr(p.buf[p.cursor:], p.addrSize)
	p.cursor += p.addrSize
	block.Length = binary.BigEndian.Uint16(p.buf[p.cursor:])
	p.cursor += 2
	block.Data = p.buf[p.cursor : p.cursor+int(block.Length)]
	p.cursor += int(block.Length)
	if p.cursor == len(p.buf) {
		p.finished = true
	}
	return true
}

func (p *WriteRequestParser) Invalid() bool  { return p.invalid }
func (p *WriteRequestParser) Finished() bool { return p.finished }

// RequiredResponseSize is the payload size of the acknowledgement response.
func (p *WriteRequestParser) RequiredResponseSize() int { return p.required }

// ReadResponseEncoder appends (address, length, data) records to a read
// response under a caller-supplied size ceiling.
type ReadResponseEncoder struct {
	resp     *Response
	addrSize int
	cursor   int
	limit    int
	overflow bool
}

// NewReadResponseEncoder binds an encoder to the response buffer.
func (c Codec) NewReadResponseEncoder(resp *Response, maxSize int) *ReadResponseEncoder {
	resp.DataLength = 0
	if maxSize > len(resp.Data) {
		maxSize = len(resp.Data)
	}
	return &ReadResponseEncoder{resp: resp, addrSize: c.AddrSize, limit: maxSize}
}

// Write appends one record, copying block.Data behind the header. It sets
// the overflow flag instead when the ceiling would be exceeded.
func (e *ReadResponseEncoder) Write(block *MemoryBlock) {
	if e.cursor+e.addrSize+2+int(block.Length) > e.limit {
		e.overflow = true
		return
	}
	putAddr(e.resp.Data[e.cursor:], block.Address, e.addrSize)
	e.cursor += e.addrSize
	binary.BigEndian.PutUint16(e.resp.Data[e.cursor:], block.Length)
	e.cursor += 2
	copy(e.resp.Data[e.cursor:], block.Data[:block.Length])
	e.cursor += int(block.Length)
	e.resp.DataLength = uint16(e.cursor)
}

func (e *ReadResponseEncoder) Overflow() bool { return e.overflow }

// WriteResponseEncoder appends (address, length) acknowledgement records to
// a write response under a caller-supplied size ceiling.
type WriteResponseEncoder struct {
	resp     *Response
	addrSize int
	cursor   int
	limit    int
	overflow bool
}

// NewWriteResponseEncoder binds an encoder to the response buffer.
func (c Codec) NewWriteResponseEncoder(resp *Response, maxSize int) *WriteResponseEncoder {
	resp.DataLength = 0
	if maxSize > len(resp.Data) {
		maxSize = len(resp.Data)
	}
	return &WriteResponseEncoder{resp: resp, addrSize: c.AddrSize, limit: maxSize}
}

// Write appends one acknowledgement record, or sets the overflow flag when
// the ceiling would be exceeded.
func (e *WriteResponseEncoder) Write(block *MemoryBlock) {
	if e.cursor+e.addrSize+2 > e.limit {
		e.overflow = true
		return
	}
	putAddr(e.resp.Data[e.cursor:], block.Address, e.addrSize)
	e.cursor += e.addrSize
	binary.BigEndian.PutUint16(e.resp.Data[e.cursor:], block.Length)
	e.cursor += 2
	e.resp.DataLength = uint16(e.cursor)
}

func (e *WriteResponseEncoder) Overflow() bool { return e.overflow }
