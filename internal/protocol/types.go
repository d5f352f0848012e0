package protocol

import (
	"encoding/binary"
	"hash/crc32"
)

// Request is one inbound frame. Data borrows the comm receive buffer and
// stays valid only until the request is released.
type Request struct {
	Command     Command
	Subfunction uint8
	DataLength  uint16
	Data        []byte
	CRC         uint32
	Valid       bool
}

// Reset clears the header fields and drops the valid mark. The data slice
// keeps pointing at its backing buffer.
func (r *Request) Reset() {
	r.Command = 0
	r.Subfunction = 0
	r.DataLength = 0
	r.CRC = 0
	r.Valid = false
}

// ComputeCRC returns the CRC-32 the wire trailer must carry: header bytes
// up to and including the length, then the payload.
func (r *Request) ComputeCRC() uint32 {
	var hdr [RequestHeaderLength]byte
	hdr[0] = byte(r.Command)
	hdr[1] = r.Subfunction
	binary.BigEndian.PutUint16(hdr[2:], r.DataLength)
	crc := crc32.Update(0, crc32.IEEETable, hdr[:])
	return crc32.Update(crc, crc32.IEEETable, r.Data[:r.DataLength])
}

// Response is one outbound frame under construction. Data borrows the comm
// transmit buffer.
type Response struct {
	Command     Command
	Subfunction uint8
	Code        ResponseCode
	DataLength  uint16
	Data        []byte
	CRC         uint32
	Valid       bool
}

// Reset clears the header fields and drops the valid mark.
func (r *Response) Reset() {
	r.Command = 0
	r.Subfunction = 0
	r.Code = CodeOK
	r.DataLength = 0
	r.CRC = 0
	r.Valid = false
}

// ComputeCRC returns the CRC-32 of the response header and payload.
func (r *Response) ComputeCRC() uint32 {
	var hdr [ResponseHeaderLength]byte
	hdr[0] = byte(r.Command)
	hdr[1] = r.Subfunction
	hdr[2] = byte(r.Code)
	binary.BigEndian.PutUint16(hdr[3:], r.DataLength)
	crc := crc32.Update(0, crc32.IEEETable, hdr[:])
	return crc32.Update(crc, crc32.IEEETable, r.Data[:r.DataLength])
}
