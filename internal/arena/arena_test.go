package arena

import "testing"

func TestAllocateReturnsDistinctGrowingPointers(t *testing.T) {
	a := New(0)
	p1 := a.Allocate([]byte("abc"))
	p2 := a.Allocate([]byte("de"))
	if p1 == p2 {
		t.Fatalf("expected distinct pointers, got %d and %d", p1, p2)
	}
	if p2 <= p1 {
		t.Fatalf("expected p2 > p1 (monotonic growth), got p1=%d p2=%d", p1, p2)
	}
	if p1%wordAlign != 0 || p2%wordAlign != 0 {
		t.Fatalf("expected 4-byte aligned pointers, got p1=%d p2=%d", p1, p2)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	a := New(0)
	want := []byte("hello world")
	p := a.Allocate(want)
	got, err := a.Bytes(p, len(want))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBytesOutOfBounds(t *testing.T) {
	a := New(0)
	if _, err := a.Bytes(Pointer(1_000_000), 4); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestGrowsAcrossPageBoundary(t *testing.T) {
	a := New(0)
	for i := 0; i < 2000; i++ {
		a.Allocate([]byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)})
	}
	if a.Len() < pageSize {
		t.Fatalf("expected arena to have grown past a page, got %d bytes", a.Len())
	}
}

func TestExtendOnlyValidAtHighWaterMark(t *testing.T) {
	a := New(0)
	p1 := a.Allocate(make([]byte, 8))
	a.Allocate(make([]byte, 4)) // p2, makes p1 stale
	if err := a.Extend(p1, 8, 4); err == nil {
		t.Fatal("expected ErrNotHighWaterMark for stale pointer")
	}

	p3 := a.Allocate(make([]byte, 8))
	if err := a.Extend(p3, 8, 8); err != nil {
		t.Fatalf("unexpected error extending high-water allocation: %v", err)
	}
}

func TestShrinkReclaimsTail(t *testing.T) {
	a := New(0)
	p := a.Reserve(16)
	before := a.HighWaterMark()
	if err := a.Shrink(p, 16, 4); err != nil {
		t.Fatal(err)
	}
	after := a.HighWaterMark()
	if after >= before {
		t.Fatalf("expected high-water mark to shrink, before=%d after=%d", before, after)
	}
}

func TestInnerPointer(t *testing.T) {
	base := Pointer(40)
	if got := InnerPointer(base, 8); got != 48 {
		t.Fatalf("got %d, want 48", got)
	}
}
