// Package memspace assembles a sparse address space from named regions.
// It stands in for raw target memory when the agent runs hosted: the demo
// maps its variables into a Space and hands it to the agent as its Memory
// capability.
package memspace

import (
	"errors"
	"fmt"
)

var (
	ErrOverlap  = errors.New("memspace: region overlap")
	ErrUnmapped = errors.New("memspace: address not mapped")
	ErrEmpty    = errors.New("memspace: empty region")
)

type region struct {
	name  string
	start uint64
	data  []byte
}

func (r region) end() uint64 {
	return r.start + uint64(len(r.data)) - 1
}

// Space is a set of non-overlapping byte regions addressed by absolute
// target addresses. The backing slices stay owned by the caller, so live
// host variables mapped into a Space are visible through it.
type Space struct {
	regions []region
}

// New returns an empty address space.
func New() *Space {
	return &Space{}
}

// Map attaches data at start. The slice is aliased, not copied. Mapping
// fails when the region is empty or overlaps an existing one.
func (s *Space) Map(name string, start uint64, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	end := start + uint64(len(data)) - 1
	for _, r := range s.regions {
		if start <= r.end() && end >= r.start {
			return fmt.Errorf("%w: %s and %s", ErrOverlap, name, r.name)
		}
	}
	s.regions = append(s.regions, region{name: name, start: start, data: data})
	return nil
}

// Base returns the start address of a named region.
func (s *Space) Base(name string) (uint64, bool) {
	for _, r := range s.regions {
		if r.name == name {
			return r.start, true
		}
	}
	return 0, false
}

// Read copies len(p) bytes starting at addr. The span must lie entirely
// inside one region.
func (s *Space) Read(addr uint64, p []byte) error {
	r, off, err := s.locate(addr, len(p))
	if err != nil {
		return err
	}
	copy(p, r.data[off:])
	return nil
}

// Write copies p into the region containing addr. The span must lie
// entirely inside one region.
func (s *Space) Write(addr uint64, p []byte) error {
	r, off, err := s.locate(addr, len(p))
	if err != nil {
		return err
	}
	copy(r.data[off:], p)
	return nil
}

func (s *Space) locate(addr uint64, n int) (region, int, error) {
	if n == 0 {
		return region{}, 0, fmt.Errorf("%w: zero-length access at %#x", ErrUnmapped, addr)
	}
	last := addr + uint64(n) - 1
	for _, r := range s.regions {
		if addr >= r.start && last <= r.end() {
			return r, int(addr - r.start), nil
		}
	}
	return region{}, 0, fmt.Errorf("%w: [%#x, %#x]", ErrUnmapped, addr, last)
}
