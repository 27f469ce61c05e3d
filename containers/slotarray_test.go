package containers

import "testing"

func TestSlotArrayConstructDestroy(t *testing.T) {
	a := NewSlotArray[string](8, true)
	a.Construct(3, "hello")
	if !a.IsLive(3) {
		t.Fatalf("slot 3 should be live")
	}
	if got := a.At(3); got != "hello" {
		t.Fatalf("At(3) = %q, want hello", got)
	}
	if a.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", a.Size())
	}
	a.Destroy(3)
	if a.IsLive(3) {
		t.Fatalf("slot 3 should not be live after Destroy")
	}
	if got := a.At(3); got != "" {
		t.Fatalf("At(3) after Destroy = %q, want zero value", got)
	}
}

func TestSlotArrayDoubleConstructPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double-construct")
		}
	}()
	a := NewSlotArray[int](4, true)
	a.Construct(0, 1)
	a.Construct(0, 2)
}

func TestSlotArrayFirstFree(t *testing.T) {
	a := NewSlotArray[int](70, true) // exercises the multi-word bitset path
	for i := 0; i < 70; i++ {
		a.Construct(i, i)
	}
	if _, ok := a.FirstFree(); ok {
		t.Fatalf("expected no free slots once full")
	}
	a.Destroy(65)
	idx, ok := a.FirstFree()
	if !ok || idx != 65 {
		t.Fatalf("FirstFree() = (%d, %v), want (65, true)", idx, ok)
	}
}

func TestSlotArrayWithoutLiveTrackingIsAlwaysLive(t *testing.T) {
	a := NewSlotArray[int](4, false)
	if !a.IsLive(2) {
		t.Fatalf("IsLive should report true when tracking disabled")
	}
	if _, ok := a.FirstFree(); ok {
		t.Fatalf("FirstFree should report false when tracking disabled")
	}
}
