package containers

import "testing"

func TestBoundedSeqPushPopBack(t *testing.T) {
	s := NewBoundedSeq[int](4, false)
	for i := 0; i < 4; i++ {
		s.PushBack(i)
	}
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	if got := s.Back(); got != 3 {
		t.Fatalf("Back() = %d, want 3", got)
	}
	if got := s.PopBack(); got != 3 {
		t.Fatalf("PopBack() = %d, want 3", got)
	}
	if s.Len() != 3 {
		t.Fatalf("Len() after pop = %d, want 3", s.Len())
	}
}

func TestBoundedSeqPanicsWithoutSpill(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when exceeding fixed capacity")
		}
	}()
	s := NewBoundedSeq[int](2, false)
	s.PushBack(1)
	s.PushBack(2)
	s.PushBack(3) // should panic
}

func TestBoundedSeqSpillsOver(t *testing.T) {
	s := NewBoundedSeq[int](2, true)
	for i := 0; i < 10; i++ {
		s.PushBack(i)
	}
	if s.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", s.Len())
	}
	for i := 0; i < 10; i++ {
		if got := s.At(i); got != i {
			t.Fatalf("At(%d) = %d, want %d", i, got, i)
		}
	}
}

func TestBoundedSeqClear(t *testing.T) {
	s := NewBoundedSeq[int](4, false)
	s.PushBack(1)
	s.PushBack(2)
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("Len() after Clear() = %d, want 0", s.Len())
	}
	s.PushBack(9)
	if got := s.At(0); got != 9 {
		t.Fatalf("At(0) after Clear()+PushBack = %d, want 9", got)
	}
}
