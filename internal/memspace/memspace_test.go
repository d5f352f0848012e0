package memspace

import (
	"bytes"
	"errors"
	"testing"
)

func TestMapReadWrite(t *testing.T) {
	s := New()
	backing := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := s.Map("vars", 0x1000, backing); err != nil {
		t.Fatalf("map: %v", err)
	}

	got := make([]byte, 3)
	if err := s.Read(0x1002, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte{3, 4, 5}) {
		t.Fatalf("read = %v", got)
	}

	if err := s.Write(0x1006, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if backing[6] != 0xAA || backing[7] != 0xBB {
		t.Fatalf("backing = %v", backing)
	}
}

func TestUnmappedAccess(t *testing.T) {
	s := New()
	if err := s.Map("vars", 0x1000, make([]byte, 8)); err != nil {
		t.Fatalf("map: %v", err)
	}

	cases := map[string]struct {
		addr uint64
		n    int
	}{
		"before region":  {0x0FFF, 1},
		"after region":   {0x1008, 1},
		"straddling end": {0x1006, 4},
		"straddling gap": {0x0FFE, 4},
		"nowhere at all": {0x9000, 2},
		"zero length":    {0x1000, 0},
	}
	for name, c := range cases {
		err := s.Read(c.addr, make([]byte, c.n))
		if !errors.Is(err, ErrUnmapped) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
}

func TestSpanAcrossRegionsRejected(t *testing.T) {
	s := New()
	s.Map("a", 0x1000, make([]byte, 4))
	s.Map("b", 0x1004, make([]byte, 4))

	// Adjacent regions do not merge; a span must stay inside one.
	if err := s.Read(0x1002, make([]byte, 4)); !errors.Is(err, ErrUnmapped) {
		t.Fatalf("cross-region read: err = %v", err)
	}
}

func TestOverlapRejected(t *testing.T) {
	s := New()
	if err := s.Map("a", 0x1000, make([]byte, 16)); err != nil {
		t.Fatalf("map: %v", err)
	}
	if err := s.Map("b", 0x100F, make([]byte, 4)); !errors.Is(err, ErrOverlap) {
		t.Fatalf("overlap: err = %v", err)
	}
	if err := s.Map("c", 0x0FF0, make([]byte, 48)); !errors.Is(err, ErrOverlap) {
		t.Fatalf("containing overlap: err = %v", err)
	}
}

func TestEmptyRegionRejected(t *testing.T) {
	s := New()
	if err := s.Map("empty", 0x1000, nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("empty map: err = %v", err)
	}
}

func TestBase(t *testing.T) {
	s := New()
	s.Map("vars", 0x1234, make([]byte, 4))
	addr, ok := s.Base("vars")
	if !ok || addr != 0x1234 {
		t.Fatalf("base = %#x,%v", addr, ok)
	}
	if _, ok := s.Base("missing"); ok {
		t.Fatalf("missing region found")
	}
}
