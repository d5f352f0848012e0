package timebase

import "testing"

func TestStepAndTimestamp(t *testing.T) {
	var tb Timebase
	if tb.Timestamp() != 0 {
		t.Fatalf("fresh timebase at %d", tb.Timestamp())
	}
	tb.Step(100)
	tb.Step(50)
	if tb.Timestamp() != 150 {
		t.Fatalf("timestamp = %d, want 150", tb.Timestamp())
	}
}

func TestElapsed(t *testing.T) {
	var tb Timebase
	ts := tb.Timestamp()
	tb.Step(499)
	if tb.Elapsed(ts, 500) {
		t.Fatalf("elapsed one tick early")
	}
	tb.Step(1)
	if !tb.Elapsed(ts, 500) {
		t.Fatalf("not elapsed at the deadline")
	}
}

func TestElapsedAcrossWrap(t *testing.T) {
	var tb Timebase
	tb.Step(0xFFFFFF00)
	ts := tb.Timestamp()
	tb.Step(0x200) // wraps
	if !tb.Elapsed(ts, 0x100) {
		t.Fatalf("wraparound interval lost")
	}
	if tb.Elapsed(ts, 0x300) {
		t.Fatalf("interval overestimated across wrap")
	}
}

func TestReset(t *testing.T) {
	var tb Timebase
	tb.Step(1234)
	tb.Reset()
	if tb.Timestamp() != 0 {
		t.Fatalf("reset left %d", tb.Timestamp())
	}
}
