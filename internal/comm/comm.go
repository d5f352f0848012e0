// Package comm implements the half-duplex framing engine: a byte-stream
// receive state machine with CRC gating, paced response transmission, the
// enable gate, and the single-client session lifecycle.
package comm

import (
	"bytes"

	"github.com/jprue/firmtap/internal/protocol"
	"github.com/jprue/firmtap/internal/timebase"
)

// State is the half-duplex ownership of the wire.
type State uint8

const (
	StateIdle State = iota
	StateReceiving
	StateTransmitting
)

type rxState uint8

const (
	rxWaitCommand rxState = iota
	rxWaitSubfunction
	rxWaitLength
	rxWaitData
	rxWaitCRC
	rxWaitProcess
	rxErrorState
)

// RxError is the latched receive-side error.
type RxError uint8

const (
	RxErrorNone RxError = iota
	RxErrorOverflow
)

// TxError is the latched transmit-side error.
type TxError uint8

const (
	TxErrorNone TxError = iota
	TxErrorOverflow
	TxErrorBusy
)

// Handler owns the shared wire buffers, the active request and response,
// and every piece of link state between the transport and the dispatcher.
// It is not safe for concurrent use; the host drives it from one thread.
type Handler struct {
	tb         *timebase.Timebase
	bufferSize int

	// rxBuf holds the active request payload; txBuf holds the serialized
	// response (header, payload, CRC). Ownership alternates with state:
	// input is discarded while transmitting, transmission is refused
	// while a frame is being received.
	rxBuf []byte
	txBuf []byte

	state   State
	rxSt    rxState
	rxErr   RxError
	txErr   TxError
	enabled bool

	request  protocol.Request
	response protocol.Response

	lengthBytesReceived int
	dataBytesReceived   int
	crcBytesReceived    int
	expectedCRC         uint32
	lastRxTimestamp     uint32
	requestReceived     bool

	txTotal int
	txSent  int

	rxTimeout        uint32
	heartbeatTimeout uint32

	connected       bool
	sessionID       uint32
	lastHeartbeatTs uint32
	rngState        uint32
}

// NewHandler builds a handler around the given clock. bufferSize bounds
// both the request and the response payload; timeouts are in microseconds.
func NewHandler(tb *timebase.Timebase, bufferSize int, rxTimeout, heartbeatTimeout uint32) *Handler {
	h := &Handler{
		tb:               tb,
		bufferSize:       bufferSize,
		rxBuf:            make([]byte, bufferSize),
		txBuf:            make([]byte, protocol.ResponseHeaderLength+bufferSize+protocol.CRCLength),
		rxTimeout:        rxTimeout,
		heartbeatTimeout: heartbeatTimeout,
	}
	h.request.Data = h.rxBuf
	h.response.Data = h.txBuf[protocol.ResponseHeaderLength : protocol.ResponseHeaderLength+bufferSize]
	h.Reset()
	return h
}

// ReceiveData feeds transport bytes into the receive state machine. Input
// is discarded while a response is being transmitted. A partial frame that
// has seen no byte for the RX timeout is silently dropped before the new
// bytes are consumed.
func (h *Handler) ReceiveData(data []byte) {
	if h.state == StateTransmitting {
		return
	}

	if len(data) != 0 && h.midFrame() && h.tb.Elapsed(h.lastRxTimestamp, h.rxTimeout) {
		h.resetRx()
		h.state = StateIdle
	}

	if len(data) != 0 {
		h.lastRxTimestamp = h.tb.Timestamp()
		if h.state == StateIdle {
			h.state = StateReceiving
		}
	}

	i := 0
	for i < len(data) && !h.requestReceived && h.rxSt != rxErrorState {
		switch h.rxSt {
		case rxWaitCommand:
			h.request.Command = protocol.Command(data[i] &^ protocol.ResponseFlag)
			h.rxSt = rxWaitSubfunction
			i++

		case rxWaitSubfunction:
			h.request.Subfunction = data[i]
			h.rxSt = rxWaitLength
			i++

		case rxWaitLength:
			if h.lengthBytesReceived == 0 {
				h.request.DataLength = uint16(data[i]) << 8
			} else {
				h.request.DataLength |= uint16(data[i])
			}
			h.lengthBytesReceived++
			i++
			if h.lengthBytesReceived == 2 {
				if h.request.DataLength == 0 {
					h.rxSt = rxWaitCRC
				} else {
					h.rxSt = rxWaitData
				}
			}

		case rxWaitData:
			if int(h.request.DataLength) > h.bufferSize {
				h.rxErr = RxErrorOverflow
				h.rxSt = rxErrorState
				break
			}
			missing := int(h.request.DataLength) - h.dataBytesReceived
			n := len(data) - i
			if n > missing {
				n = missing
			}
			copy(h.rxBuf[h.dataBytesReceived:], data[i:i+n])
			h.dataBytesReceived += n
			i += n
			if h.dataBytesReceived >= int(h.request.DataLength) {
				h.rxSt = rxWaitCRC
			}

		case rxWaitCRC:
			shift := uint(24 - 8*h.crcBytesReceived)
			h.expectedCRC |= uint32(data[i]) << shift
			h.crcBytesReceived++
			i++
			if h.crcBytesReceived == 4 {
				h.request.CRC = h.expectedCRC
				h.state = StateIdle
				if h.request.ComputeCRC() == h.request.CRC {
					if !h.enabled && h.isDiscover() {
						h.enabled = true
					}
					if h.enabled {
						h.request.Valid = true
						h.rxSt = rxWaitProcess
						h.requestReceived = true
					} else {
						h.resetRx()
					}
				} else {
					h.resetRx()
				}
			}

		default:
			return
		}
	}
}

// midFrame reports whether a frame is partially received. A request parked
// in WaitProcess is complete, not mid-frame, and never times out.
func (h *Handler) midFrame() bool {
	switch h.rxSt {
	case rxWaitSubfunction, rxWaitLength, rxWaitData, rxWaitCRC:
		return true
	}
	return false
}

// isDiscover reports whether the active request is a Discover whose payload
// starts with DiscoverMagic, the only frame allowed to flip the enable gate.
// The payload length beyond the magic is not checked here.
func (h *Handler) isDiscover() bool {
	if h.request.Command != protocol.CmdCommControl {
		return false
	}
	if h.request.Subfunction != protocol.SubfnCommDiscover {
		return false
	}
	if int(h.request.DataLength) < len(protocol.DiscoverMagic) {
		return false
	}
	return bytes.Equal(h.rxBuf[:len(protocol.DiscoverMagic)], protocol.DiscoverMagic[:])
}

// RequestReceived reports whether a validated request is waiting.
func (h *Handler) RequestReceived() bool {
	return h.requestReceived
}

// Request returns the active request. Valid only while RequestReceived.
func (h *Handler) Request() *protocol.Request {
	return &h.request
}

// RequestProcessed releases the request slot so the next frame can be
// received.
func (h *Handler) RequestProcessed() {
	h.resetRx()
}

// PrepareResponse zero-resets the active response and hands it out for
// filling. Its Data slice is the transmit payload buffer.
func (h *Handler) PrepareResponse() *protocol.Response {
	h.response.Reset()
	return &h.response
}

// SendResponse serializes the response and starts transmission. It refuses
// while the engine is disabled (latching nothing), mid-receive or already
// transmitting (TxErrorBusy), or when the payload exceeds the buffer
// (TxErrorOverflow).
func (h *Handler) SendResponse(resp *protocol.Response) bool {
	if !h.enabled {
		return false
	}
	if h.state != StateIdle {
		h.txErr = TxErrorBusy
		return false
	}
	if int(resp.DataLength) > h.bufferSize {
		h.resetTx()
		h.txErr = TxErrorOverflow
		return false
	}

	h.response.Command = resp.Command | protocol.Command(protocol.ResponseFlag)
	h.response.Subfunction = resp.Subfunction
	h.response.Code = resp.Code
	h.response.DataLength = resp.DataLength
	if resp != &h.response {
		copy(h.response.Data, resp.Data[:resp.DataLength])
	}
	h.response.CRC = h.response.ComputeCRC()

	h.txBuf[0] = byte(h.response.Command)
	h.txBuf[1] = h.response.Subfunction
	h.txBuf[2] = byte(h.response.Code)
	h.txBuf[3] = byte(h.response.DataLength >> 8)
	h.txBuf[4] = byte(h.response.DataLength)
	crcPos := protocol.ResponseHeaderLength + int(h.response.DataLength)
	h.txBuf[crcPos] = byte(h.response.CRC >> 24)
	h.txBuf[crcPos+1] = byte(h.response.CRC >> 16)
	h.txBuf[crcPos+2] = byte(h.response.CRC >> 8)
	h.txBuf[crcPos+3] = byte(h.response.CRC)

	h.txTotal = crcPos + protocol.CRCLength
	h.txSent = 0
	h.state = StateTransmitting
	return true
}

// DataToSend returns how many serialized bytes remain to be popped.
func (h *Handler) DataToSend() int {
	if h.state != StateTransmitting {
		return 0
	}
	return h.txTotal - h.txSent
}

// PopData copies up to len(p) serialized response bytes into p and returns
// the count. Once the last byte is popped the engine returns to Idle.
func (h *Handler) PopData(p []byte) int {
	if h.state != StateTransmitting {
		return 0
	}
	n := copy(p, h.txBuf[h.txSent:h.txTotal])
	h.txSent += n
	if h.txSent >= h.txTotal {
		h.resetTx()
	}
	return n
}

// Transmitting reports whether a response is still on its way out.
func (h *Handler) Transmitting() bool {
	return h.state == StateTransmitting
}

// Enabled reports whether the agent answers at all. The gate opens on the
// first CRC-valid Discover request and stays open until Reset.
func (h *Handler) Enabled() bool {
	return h.enabled
}

// RxError returns the latched receive error. An overflow latch parks the
// receiver until the supervisor calls Reset.
func (h *Handler) RxError() RxError {
	return h.rxErr
}

// TxError returns the latched transmit error.
func (h *Handler) TxError() TxError {
	return h.txErr
}

// Reset returns the handler to its power-on state: buffers cleared, gate
// closed, session dropped.
func (h *Handler) Reset() {
	h.state = StateIdle
	h.enabled = false
	for i := range h.rxBuf {
		h.rxBuf[i] = 0
	}
	for i := range h.txBuf {
		h.txBuf[i] = 0
	}
	h.Disconnect()
	h.resetRx()
	h.resetTx()
}

func (h *Handler) resetRx() {
	h.request.Reset()
	h.rxSt = rxWaitCommand
	h.requestReceived = false
	h.lengthBytesReceived = 0
	h.dataBytesReceived = 0
	h.crcBytesReceived = 0
	h.expectedCRC = 0
	h.rxErr = RxErrorNone
	h.lastRxTimestamp = h.tb.Timestamp()
	if h.state == StateReceiving {
		h.state = StateIdle
	}
}

func (h *Handler) resetTx() {
	h.response.Reset()
	h.txTotal = 0
	h.txSent = 0
	h.txErr = TxErrorNone
	if h.state == StateTransmitting {
		h.state = StateIdle
	}
}
