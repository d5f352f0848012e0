// Package timebase provides the agent's monotonic microsecond clock.
package timebase

// Timebase is a 32-bit microsecond counter advanced by the host each
// cycle. Comparisons use unsigned wraparound arithmetic, so timestamps
// stay valid across counter wrap as long as the measured interval fits
// in 32 bits.
type Timebase struct {
	ts uint32
}

// Step advances the clock by dt microseconds.
func (t *Timebase) Step(dt uint32) {
	t.ts += dt
}

// Timestamp returns the current counter value.
func (t *Timebase) Timestamp() uint32 {
	return t.ts
}

// Elapsed reports whether at least timeout microseconds have passed since
// the given timestamp.
func (t *Timebase) Elapsed(since, timeout uint32) bool {
	return t.ts-since >= timeout
}

// Reset rewinds the counter to zero.
func (t *Timebase) Reset() {
	t.ts = 0
}
