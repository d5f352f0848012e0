package collections

import "testing"

func TestFifoOrder(t *testing.T) {
	f := NewFifo[int](4)
	for i := 1; i <= 4; i++ {
		if !f.Push(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	if !f.Full() {
		t.Fatalf("fifo not full at capacity")
	}
	for i := 1; i <= 4; i++ {
		v, ok := f.Pop()
		if !ok || v != i {
			t.Fatalf("pop = %d,%v, want %d", v, ok, i)
		}
	}
	if !f.Empty() {
		t.Fatalf("fifo not empty after draining")
	}
	if f.HasError() {
		t.Fatalf("error latched during normal use")
	}
}

func TestFifoOverrunUnderrun(t *testing.T) {
	f := NewFifo[byte](2)
	f.Push(1)
	f.Push(2)
	if f.Push(3) {
		t.Fatalf("push into full fifo succeeded")
	}
	if !f.Overrun() {
		t.Fatalf("overrun not latched")
	}

	f.Pop()
	f.Pop()
	if _, ok := f.Pop(); ok {
		t.Fatalf("pop from empty fifo succeeded")
	}
	if !f.Underrun() {
		t.Fatalf("underrun not latched")
	}

	f.ClearErrors()
	if f.HasError() {
		t.Fatalf("errors survived ClearErrors")
	}
}

func TestFifoSliceOps(t *testing.T) {
	f := NewFifo[byte](8)
	if !f.PushSlice([]byte{1, 2, 3, 4, 5}) {
		t.Fatalf("push slice failed")
	}
	if f.PushSlice([]byte{6, 7, 8, 9}) {
		t.Fatalf("oversized push slice succeeded")
	}
	if !f.Overrun() {
		t.Fatalf("overrun not latched by slice push")
	}

	dst := make([]byte, 3)
	if !f.PopSlice(dst) {
		t.Fatalf("pop slice failed")
	}
	if dst[0] != 1 || dst[1] != 2 || dst[2] != 3 {
		t.Fatalf("pop slice = %v", dst)
	}
	big := make([]byte, 3)
	if f.PopSlice(big) {
		t.Fatalf("pop slice larger than held count succeeded")
	}
	if f.Count() != 2 {
		t.Fatalf("failed pop slice consumed elements, count = %d", f.Count())
	}
}

func TestFifoWraparound(t *testing.T) {
	f := NewFifo[int](3)
	f.Push(1)
	f.Push(2)
	f.Pop()
	f.Push(3)
	f.Push(4)
	for want := 2; want <= 4; want++ {
		v, ok := f.Pop()
		if !ok || v != want {
			t.Fatalf("pop = %d,%v, want %d", v, ok, want)
		}
	}
}

func TestStackOrder(t *testing.T) {
	s := NewStack[string](3)
	s.Push("a")
	s.Push("b")
	s.Push("c")
	if s.Push("d") {
		t.Fatalf("push into full stack succeeded")
	}
	for _, want := range []string{"c", "b", "a"} {
		v, ok := s.Pop()
		if !ok || v != want {
			t.Fatalf("pop = %q,%v, want %q", v, ok, want)
		}
	}
	if _, ok := s.Pop(); ok {
		t.Fatalf("pop from empty stack succeeded")
	}
	if !s.Underrun() || !s.Overrun() {
		t.Fatalf("error flags not latched")
	}
}

func TestStackSliceOps(t *testing.T) {
	s := NewStack[int](4)
	if !s.PushSlice([]int{1, 2, 3}) {
		t.Fatalf("push slice failed")
	}
	dst := make([]int, 2)
	if !s.PopSlice(dst) {
		t.Fatalf("pop slice failed")
	}
	if dst[0] != 3 || dst[1] != 2 {
		t.Fatalf("pop slice = %v, want top-down order", dst)
	}
	if s.Count() != 1 {
		t.Fatalf("count = %d after partial drain", s.Count())
	}
}

type countingGuard struct {
	enters int
	leaves int
}

func (g *countingGuard) Enter() uintptr {
	g.enters++
	return uintptr(g.enters)
}

func (g *countingGuard) Leave(token uintptr) {
	g.leaves++
	if int(token) != g.enters {
		panic("guard token mismatch")
	}
}

func TestGuardWrapsEveryMutation(t *testing.T) {
	g := &countingGuard{}
	f := NewFifo[int](4)
	f.UseGuard(g)

	f.Push(1)
	f.Pop()
	f.PushSlice([]int{1, 2})
	f.PopSlice(make([]int, 2))
	f.Clear()

	if g.enters != 5 || g.leaves != 5 {
		t.Fatalf("guard calls = %d/%d, want 5/5", g.enters, g.leaves)
	}
}
