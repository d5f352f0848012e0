package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func readRecord(addrSize int, addr uint64, length uint16) []byte {
	rec := make([]byte, addrSize+2)
	putAddr(rec, addr, addrSize)
	binary.BigEndian.PutUint16(rec[addrSize:], length)
	return rec
}

func writeRecord(addrSize int, addr uint64, data []byte) []byte {
	rec := readRecord(addrSize, addr, uint16(len(data)))
	return append(rec, data...)
}

func TestReadRequestParser(t *testing.T) {
	c := Codec{AddrSize: 4}
	payload := append(readRecord(4, 0x1000, 3), readRecord(4, 0x2000, 16)...)
	req := newRequest(CmdMemoryControl, SubfnMemoryRead, payload)

	p := c.NewReadRequestParser(req)
	if p.Invalid() {
		t.Fatalf("parser invalid on well-formed payload")
	}
	if want := (4 + 2 + 3) + (4 + 2 + 16); p.RequiredResponseSize() != want {
		t.Fatalf("required size = %d, want %d", p.RequiredResponseSize(), want)
	}

	var blocks []MemoryBlock
	var b MemoryBlock
	for p.Next(&b) {
		blocks = append(blocks, b)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks", len(blocks))
	}
	if blocks[0].Address != 0x1000 || blocks[0].Length != 3 {
		t.Fatalf("block 0 = %+v", blocks[0])
	}
	if blocks[1].Address != 0x2000 || blocks[1].Length != 16 {
		t.Fatalf("block 1 = %+v", blocks[1])
	}
	if !p.Finished() {
		t.Fatalf("parser not finished")
	}
}

func TestReadRequestParserInvalid(t *testing.T) {
	c := Codec{AddrSize: 4}
	cases := map[string][]byte{
		"empty":            {},
		"truncated header": readRecord(4, 0x1000, 3)[:5],
		"trailing bytes":   append(readRecord(4, 0x1000, 3), 0xFF),
	}
	for name, payload := range cases {
		req := newRequest(CmdMemoryControl, SubfnMemoryRead, payload)
		if p := c.NewReadRequestParser(req); !p.Invalid() {
			t.Fatalf("%s: parser accepted bad payload", name)
		}
	}
}

func TestWriteRequestParser(t *testing.T) {
	c := Codec{AddrSize: 4}
	payload := append(
		writeRecord(4, 0x1000, []byte{0xAA, 0xBB}),
		writeRecord(4, 0x2000, []byte{0xCC})...,
	)
	req := newRequest(CmdMemoryControl, SubfnMemoryWrite, payload)

	p := c.NewWriteRequestParser(req)
	if p.Invalid() {
		t.Fatalf("parser invalid on well-formed payload")
	}
	if want := 2 * (4 + 2); p.RequiredResponseSize() != want {
		t.Fatalf("required size = %d, want %d", p.RequiredResponseSize(), want)
	}

	var b MemoryBlock
	if !p.Next(&b) {
		t.Fatalf("first block missing")
	}
	if b.Address != 0x1000 || !bytes.Equal(b.Data, []byte{0xAA, 0xBB}) {
		t.Fatalf("block 0 = %+v", b)
	}
	if !p.Next(&b) {
		t.Fatalf("second block missing")
	}
	if b.Address != 0x2000 || !bytes.Equal(b.Data, []byte{0xCC}) {
		t.Fatalf("block 1 = %+v", b)
	}
	if p.Next(&b) {
		t.Fatalf("extra block after payload end")
	}
}

func TestWriteRequestParserTruncatedData(t *testing.T) {
	c := Codec{AddrSize: 4}
	payload := writeRecord(4, 0x1000, []byte{0xAA, 0xBB})
	payload = payload[:len(payload)-1]
	req := newRequest(CmdMemoryControl, SubfnMemoryWrite, payload)
	if p := c.NewWriteRequestParser(req); !p.Invalid() {
		t.Fatalf("parser accepted truncated block data")
	}
}

func TestReadResponseEncoder(t *testing.T) {
	c := Codec{AddrSize: 4}
	resp := newResponse(64)
	e := c.NewReadResponseEncoder(resp, 64)

	e.Write(&MemoryBlock{Address: 0x1000, Length: 3, Data: []byte{0x11, 0x22, 0x33}})
	if e.Overflow() {
		t.Fatalf("unexpected overflow")
	}
	want := append(readRecord(4, 0x1000, 3), 0x11, 0x22, 0x33)
	if !bytes.Equal(resp.Data[:resp.DataLength], want) {
		t.Fatalf("encoded = %x, want %x", resp.Data[:resp.DataLength], want)
	}
}

func TestReadResponseEncoderOverflow(t *testing.T) {
	c := Codec{AddrSize: 4}
	resp := newResponse(64)
	e := c.NewReadResponseEncoder(resp, 8)

	e.Write(&MemoryBlock{Address: 0x1000, Length: 4, Data: []byte{1, 2, 3, 4}})
	if !e.Overflow() {
		t.Fatalf("overflow not reported")
	}
	if resp.DataLength != 0 {
		t.Fatalf("partial record written on overflow")
	}
}

func TestWriteResponseEncoder(t *testing.T) {
	c := Codec{AddrSize: 4}
	resp := newResponse(64)
	e := c.NewWriteResponseEncoder(resp, 64)

	e.Write(&MemoryBlock{Address: 0x1000, Length: 2})
	e.Write(&MemoryBlock{Address: 0x2000, Length: 1})
	if e.Overflow() {
		t.Fatalf("unexpected overflow")
	}
	want := append(readRecord(4, 0x1000, 2), readRecord(4, 0x2000, 1)...)
	if !bytes.Equal(resp.Data[:resp.DataLength], want) {
		t.Fatalf("encoded = %x, want %x", resp.Data[:resp.DataLength], want)
	}
}

func TestWriteResponseEncoderOverflow(t *testing.T) {
	c := Codec{AddrSize: 8}
	resp := newResponse(64)
	e := c.NewWriteResponseEncoder(resp, 12)

	e.Write(&MemoryBlock{Address: 0x1000, Length: 2})
	if e.Overflow() {
		t.Fatalf("first record should fit")
	}
	e.Write(&MemoryBlock{Address: 0x2000, Length: 2})
	if !e.Overflow() {
		t.Fatalf("second record should overflow")
	}
}
