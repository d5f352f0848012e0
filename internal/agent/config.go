package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/jprue/firmtap/internal/protocol"
)

const (
	minBufferSize = 32
	maxBufferSize = 65535
	maxRangeCount = 255

	defaultBufferSize       = 256
	defaultPointerSize      = 8
	defaultRxTimeout        = 50 * time.Millisecond
	defaultHeartbeatTimeout = 5 * time.Second
)

var (
	ErrBufferSize  = errors.New("agent: buffer size out of range")
	ErrPointerSize = errors.New("agent: pointer size must be 2, 4 or 8")
	ErrRangeCount  = errors.New("agent: too many address ranges")
)

// AddressRange is one policy interval, inclusive on both ends. Tables are
// scanned in order and scanning stops at the first entry with Set=false.
type AddressRange struct {
	Start uint64
	End   uint64
	Set   bool
}

// Range is a convenience constructor for a set AddressRange.
func Range(start, end uint64) AddressRange {
	return AddressRange{Start: start, End: end, Set: true}
}

// Memory is the agent's window on the target address space. Reads and
// writes land on live target memory; failures surface on the wire as
// FailureToProceed.
type Memory interface {
	Read(addr uint64, p []byte) error
	Write(addr uint64, p []byte) error
}

// UserCommandHandler is the host-supplied hook behind the UserCommand
// command. It receives the request payload and a response buffer sized to
// the transmit ceiling, and returns the number of response bytes used plus
// a response code. A reported length above the buffer size answers
// Overflow on the wire.
type UserCommandHandler func(subfunction uint8, request []byte, response []byte) (int, protocol.ResponseCode)

// Config is the firmware-side declaration of one agent. It is copied at
// New and never mutated afterwards.
type Config struct {
	// BufferSize bounds request and response payloads (32..65535).
	BufferSize int
	// PointerSize is the wire address width in bytes: 2, 4 or 8.
	PointerSize int
	// MaxBitrate is declared to the host tool via GetParams; the core
	// does not enforce it.
	MaxBitrate uint32
	// RxTimeout aborts a partially received frame.
	RxTimeout time.Duration
	// HeartbeatTimeout drops a session that stops heartbeating.
	HeartbeatTimeout time.Duration
	// SoftwareID is the 16-byte build identifier reported by GetInfo.
	SoftwareID [protocol.SoftwareIDLength]byte
	// ForbiddenRanges refuse both reads and writes; ReadonlyRanges
	// refuse writes. At most 255 entries each.
	ForbiddenRanges []AddressRange
	ReadonlyRanges  []AddressRange
	// UserCommand handles the UserCommand command; nil answers
	// UnsupportedFeature.
	UserCommand UserCommandHandler
	// Memory backs MemoryControl; nil answers UnsupportedFeature.
	Memory Memory
}

func (c Config) withDefaults() Config {
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.PointerSize == 0 {
		c.PointerSize = defaultPointerSize
	}
	if c.RxTimeout == 0 {
		c.RxTimeout = defaultRxTimeout
	}
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	return c
}

// Validate checks the configuration against the protocol limits.
func (c Config) Validate() error {
	if c.BufferSize < minBufferSize || c.BufferSize > maxBufferSize {
		return fmt.Errorf("%w: %d", ErrBufferSize, c.BufferSize)
	}
	switch c.PointerSize {
	case 2, 4, 8:
	default:
		return fmt.Errorf("%w: %d", ErrPointerSize, c.PointerSize)
	}
	if len(c.ForbiddenRanges) > maxRangeCount {
		return fmt.Errorf("%w: %d forbidden", ErrRangeCount, len(c.ForbiddenRanges))
	}
	if len(c.ReadonlyRanges) > maxRangeCount {
		return fmt.Errorf("%w: %d readonly", ErrRangeCount, len(c.ReadonlyRanges))
	}
	return nil
}

// usableRanges counts the leading run of set entries, the part of a table
// the policy scan can reach.
func usableRanges(ranges []AddressRange) int {
	for i, r := range ranges {
		if !r.Set {
			return i
		}
	}
	return len(ranges)
}
