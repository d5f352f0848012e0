package protocol

import "encoding/binary"

// Codec encodes and decodes protocol v1.0 payloads. AddrSize is the target
// pointer width in bytes (2, 4 or 8); addresses cross the wire at exactly
// that width, most significant byte first.
type Codec struct {
	AddrSize int
}

// DiscoverRequest is the payload of CommControl/Discover.
type DiscoverRequest struct {
	Magic     [4]byte
	Challenge [4]byte
}

// HeartbeatRequest is the payload of CommControl/Heartbeat.
type HeartbeatRequest struct {
	SessionID uint32
	Challenge uint16
}

// ConnectRequest is the payload of CommControl/Connect.
type ConnectRequest struct {
	Magic [4]byte
}

// DisconnectRequest is the payload of CommControl/Disconnect.
type DisconnectRequest struct {
	SessionID uint32
}

// RegionLocationRequest is the payload of GetInfo/SpecialMemoryRegionLocation.
type RegionLocationRequest struct {
	Type  RegionType
	Index uint8
}

// GetParams is the payload of the CommControl/GetParams response. Timeouts
// are reported in microseconds.
type GetParams struct {
	RxBufferSize     uint16
	TxBufferSize     uint16
	MaxBitrate       uint32
	HeartbeatTimeout uint32
	RxTimeout        uint32
}

func (c Codec) DecodeDiscover(req *Request) (DiscoverRequest, ResponseCode) {
	var out DiscoverRequest
	if req.DataLength != 8 {
		return out, CodeInvalidRequest
	}
	copy(out.Magic[:], req.Data[0:4])
	copy(out.Challenge[:], req.Data[4:8])
	return out, CodeOK
}

func (c Codec) DecodeHeartbeat(req *Request) (HeartbeatRequest, ResponseCode) {
	var out HeartbeatRequest
	if req.DataLength != 6 {
		return out, CodeInvalidRequest
	}
	out.SessionID = binary.BigEndian.Uint32(req.Data[0:4])
	out.Challenge = binary.BigEndian.Uint16(req.Data[4:6])
	return out, CodeOK
}

func (c Codec) DecodeConnect(req *Request) (ConnectRequest, ResponseCode) {
	var out ConnectRequest
	if req.DataLength != 4 {
		return out, CodeInvalidRequest
	}
	copy(out.Magic[:], req.Data[0:4])
	return out, CodeOK
}

func (c Codec) DecodeDisconnect(req *Request) (DisconnectRequest, ResponseCode) {
	var out DisconnectRequest
	if req.DataLength != 4 {
		return out, CodeInvalidRequest
	}
	out.SessionID = binary.BigEndian.Uint32(req.Data[0:4])
	return out, CodeOK
}

func (c Codec) DecodeRegionLocation(req *Request) (RegionLocationRequest, ResponseCode) {
	var out RegionLocationRequest
	if req.DataLength != 2 {
		return out, CodeInvalidRequest
	}
	out.Type = RegionType(req.Data[0])
	out.Index = req.Data[1]
	return out, CodeOK
}

func (c Codec) EncodeProtocolVersion(resp *Response, major, minor uint8) ResponseCode {
	if len(resp.Data) < 2 {
		return CodeOverflow
	}
	resp.Data[0] = major
	resp.Data[1] = minor
	resp.DataLength = 2
	return CodeOK
}

func (c Codec) EncodeSoftwareID(resp *Response, id [SoftwareIDLength]byte) ResponseCode {
	if len(resp.Data) < SoftwareIDLength {
		return CodeOverflow
	}
	copy(resp.Data, id[:])
	resp.DataLength = SoftwareIDLength
	return CodeOK
}

func (c Codec) EncodeRegionCount(resp *Response, readonly, forbidden uint8) ResponseCode {
	if len(resp.Data) < 2 {
		return CodeOverflow
	}
	resp.Data[0] = readonly
	resp.Data[1] = forbidden
	resp.DataLength = 2
	return CodeOK
}

func (c Codec) EncodeRegionLocation(resp *Response, typ RegionType, index uint8, start, end uint64) ResponseCode {
	datalen := 2 + 2*c.AddrSize
	if len(resp.Data) < datalen {
		return CodeOverflow
	}
	resp.Data[0] = byte(typ)
	resp.Data[1] = index
	putAddr(resp.Data[2:], start, c.AddrSize)
	putAddr(resp.Data[2+c.AddrSize:], end, c.AddrSize)
	resp.DataLength = uint16(datalen)
	return CodeOK
}

func (c Codec) EncodeDiscoverResponse(resp *Response, challengeResponse [4]byte) ResponseCode {
	if len(resp.Data) < 8 {
		return CodeOverflow
	}
	copy(resp.Data[0:4], DiscoverMagic[:])
	copy(resp.Data[4:8], challengeResponse[:])
	resp.DataLength = 8
	return CodeOK
}

func (c Codec) EncodeHeartbeatResponse(resp *Response, sessionID uint32, challengeResponse uint16) ResponseCode {
	if len(resp.Data) < 6 {
		return CodeOverflow
	}
	binary.BigEndian.PutUint32(resp.Data[0:4], sessionID)
	binary.BigEndian.PutUint16(resp.Data[4:6], challengeResponse)
	resp.DataLength = 6
	return CodeOK
}

func (c Codec) EncodeGetParamsResponse(resp *Response, params GetParams) ResponseCode {
	if len(resp.Data) < 16 {
		return CodeOverflow
	}
	binary.BigEndian.PutUint16(resp.Data[0:2], params.RxBufferSize)
	binary.BigEndian.PutUint16(resp.Data[2:4], params.TxBufferSize)
	binary.BigEndian.PutUint32(resp.Data[4:8], params.MaxBitrate)
	binary.BigEndian.PutUint32(resp.Data[8:12], params.HeartbeatTimeout)
	binary.BigEndian.PutUint32(resp.Data[12:16], params.RxTimeout)
	resp.DataLength = 16
	return CodeOK
}

func (c Codec) EncodeConnectResponse(resp *Response, sessionID uint32) ResponseCode {
	if len(resp.Data) < 8 {
		return CodeOverflow
	}
	copy(resp.Data[0:4], ConnectMagic[:])
	binary.BigEndian.PutUint32(resp.Data[4:8], sessionID)
	resp.DataLength = 8
	return CodeOK
}

// putAddr writes the low size bytes of addr, most significant first.
func putAddr(dst []byte, addr uint64, size int) {
	for i := size - 1; i >= 0; i-- {
		dst[i] = byte(addr)
		addr >>= 8
	}
}

// getAddr reads size bytes, most significant first.
func getAddr(src []byte, size int) uint64 {
	var addr uint64
	for i := 0; i < size; i++ {
		addr = addr<<8 | uint64(src[i])
	}
	return addr
}
