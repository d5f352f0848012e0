// Package bridge connects an agent to a real transport: a Link carries the
// raw bytes, and the Pump is the supervisor loop a host program runs to
// keep the agent stepping.
package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jprue/firmtap/internal/agent"
	"github.com/jprue/firmtap/internal/collections"
	"github.com/jprue/firmtap/internal/comm"
)

var ErrNoPeer = errors.New("bridge: no peer to reply to")

// Link is one half-duplex byte transport under the agent. Receive returns
// zero when nothing arrived within the link's poll interval; Reply sends
// back toward wherever the last bytes came from.
type Link interface {
	Receive(p []byte) (int, error)
	Reply(p []byte) (int, error)
	Close() error
}

// Stats counts bridge traffic for the status endpoint.
type Stats struct {
	RxBytes  uint64
	TxBytes  uint64
	RxResets uint64
}

// Pump is the supervisor loop: transport in, one agent cycle, transport
// out. It also carries the supervisor duty of clearing the RX overflow
// latch, which the core never clears on its own.
type Pump struct {
	link  Link
	agent *agent.Agent
	log   zerolog.Logger

	// rxQueue decouples transport reads from agent cycles so a slow
	// cycle never drops link input.
	rxQueue *collections.Fifo[byte]

	rxBytes  atomic.Uint64
	txBytes  atomic.Uint64
	rxResets atomic.Uint64
}

// NewPump wires a link to an agent.
func NewPump(link Link, a *agent.Agent, log zerolog.Logger) *Pump {
	return &Pump{
		link:    link,
		agent:   a,
		log:     log,
		rxQueue: collections.NewFifo[byte](4096),
	}
}

// Stats returns a snapshot of the traffic counters.
func (p *Pump) Stats() Stats {
	return Stats{
		RxBytes:  p.rxBytes.Load(),
		TxBytes:  p.txBytes.Load(),
		RxResets: p.rxResets.Load(),
	}
}

// Run drives the agent until ctx is done. It returns the first transport
// error, or nil on a clean shutdown.
func (p *Pump) Run(ctx context.Context) error {
	var in [512]byte
	var step [512]byte
	var out [512]byte
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := p.link.Receive(in[:])
		if err != nil {
			return err
		}
		if n > 0 {
			p.rxBytes.Add(uint64(n))
			if !p.rxQueue.PushSlice(in[:n]) {
				p.log.Warn().Int("dropped", n).Msg("rx queue full")
				p.rxQueue.ClearErrors()
			}
		}

		for p.rxQueue.Count() > 0 {
			k := p.rxQueue.Count()
			if k > len(step) {
				k = len(step)
			}
			if !p.rxQueue.PopSlice(step[:k]) {
				break
			}
			p.agent.ReceiveData(step[:k])
		}

		now := time.Now()
		dt := uint32(now.Sub(last).Microseconds())
		last = now
		p.agent.Process(dt)

		for p.agent.DataToSend() > 0 {
			k := p.agent.PopData(out[:])
			if k == 0 {
				break
			}
			if _, err := p.link.Reply(out[:k]); err != nil {
				return err
			}
			p.txBytes.Add(uint64(k))
		}

		if p.agent.Comm().RxError() == comm.RxErrorOverflow {
			p.log.Warn().Msg("rx overflow, resetting comm")
			p.agent.Comm().Reset()
			p.rxResets.Add(1)
		}
	}
}
