package bridge

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jprue/firmtap/internal/agent"
	"github.com/jprue/firmtap/internal/protocol"
)

func discoverFrame() []byte {
	payload := append(protocol.DiscoverMagic[:], 0x11, 0x22, 0x33, 0x44)
	buf := []byte{byte(protocol.CmdCommControl), protocol.SubfnCommDiscover}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	return binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
}

func TestUDPBridgeEndToEnd(t *testing.T) {
	a, err := agent.New(agent.Config{PointerSize: 4})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	link, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer link.Close()

	pump := NewPump(link, a, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- pump.Run(ctx) }()

	client, err := net.Dial("udp", link.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Write(discoverFrame()); err != nil {
		t.Fatalf("send: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp := make([]byte, 64)
	n, err := client.Read(resp)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}

	wantPayload := append(protocol.DiscoverMagic[:], 0xEE, 0xDD, 0xCC, 0xBB)
	want := []byte{byte(protocol.CmdCommControl) | protocol.ResponseFlag, protocol.SubfnCommDiscover, 0}
	want = binary.BigEndian.AppendUint16(want, uint16(len(wantPayload)))
	want = append(want, wantPayload...)
	want = binary.BigEndian.AppendUint32(want, crc32.ChecksumIEEE(want))
	if !bytes.Equal(resp[:n], want) {
		t.Fatalf("discover over udp\n got %x\nwant %x", resp[:n], want)
	}

	stats := pump.Stats()
	if stats.RxBytes == 0 || stats.TxBytes == 0 {
		t.Fatalf("stats not counting: %+v", stats)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("pump: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pump did not stop")
	}
}

type scriptLink struct {
	mu  sync.Mutex
	in  [][]byte
	out [][]byte
}

func (l *scriptLink) Receive(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.in) == 0 {
		return 0, nil
	}
	n := copy(p, l.in[0])
	l.in = l.in[1:]
	return n, nil
}

func (l *scriptLink) Reply(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = append(l.out, append([]byte(nil), p...))
	return len(p), nil
}

func (l *scriptLink) Close() error {
	return nil
}

func (l *scriptLink) replies() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.out)
}

func TestPumpClearsRxOverflowLatch(t *testing.T) {
	a, err := agent.New(agent.Config{PointerSize: 4})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	// Header declaring a payload beyond the buffer parks the receiver in
	// its error state; the pump is the supervisor that resets it.
	oversize := []byte{byte(protocol.CmdUserCommand), 1, 0xFF, 0xFF, 0x00}
	link := &scriptLink{in: [][]byte{oversize, discoverFrame()}}

	pump := NewPump(link, a, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- pump.Run(ctx) }()

	deadline := time.After(time.Second)
	for link.replies() == 0 {
		select {
		case <-deadline:
			t.Fatalf("no response after overflow recovery")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("pump: %v", err)
	}
	if pump.Stats().RxResets == 0 {
		t.Fatalf("overflow reset not counted")
	}
}
