package rbtree

import (
	"math/rand/v2"
	"testing"
)

// memNode is a pointer-based node used only by tests: a minimal adapter
// exercising the Ops contract without any parent-pointer capability, the
// "path stack" default mode.
type memNode struct {
	left, right N
	color       Color
	holder      int
}

type N = *memNode

type intOps struct{}

func (intOps) NullNode() N                { return nil }
func (intOps) IsNull(n N) bool            { return n == nil }
func (intOps) CreateEmptyNode() N         { return &memNode{} }
func (intOps) ReleaseEmptyNode(n N)       {}
func (intOps) NodeEqual(a, b N) bool      { return a == b }
func (intOps) Key(h int) int              { return h }
func (intOps) KeyLess(a, b int) bool      { return a < b }
func (intOps) GetLeft(n N) N              { return n.left }
func (intOps) SetLeft(n N, left N)        { n.left = left }
func (intOps) GetRight(n N) N             { return n.right }
func (intOps) SetRight(n N, right N)      { n.right = right }
func (intOps) GetColor(n N) Color         { return n.color }
func (intOps) SetColor(n N, c Color)      { n.color = c }
func (intOps) GetHolder(n N) int          { return n.holder }
func (intOps) SetHolder(n N, h int)       { n.holder = h }

func collectInOrder(t *testing.T, tr *Tree[int, int, N]) []int {
	t.Helper()
	var out []int
	for p := tr.Begin(); !p.IsNull(); p = tr.Forward(p) {
		out = append(out, tr.ops.GetHolder(p.Node()))
	}
	return out
}

func TestRBTreeSeedSequence(t *testing.T) {
	tr := New[int, int, N](intOps{})
	seed := []int{5, 2, 8, 1, 9, 3, 7}
	for _, v := range seed {
		if !tr.Insert(v) {
			t.Fatalf("Insert(%d) reported duplicate unexpectedly", v)
		}
	}
	if err := tr.CheckConsistency(); err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
	want := []int{1, 2, 3, 5, 7, 8, 9}
	got := collectInOrder(t, tr)
	if len(got) != len(want) {
		t.Fatalf("in-order length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("in-order[%d] = %d, want %d (full: %v)", i, got[i], want[i], got)
		}
	}

	for _, v := range seed {
		p := tr.Find(v)
		if p.IsNull() {
			t.Fatalf("Find(%d) missed an inserted key", v)
		}
		if _, ok := tr.Delete(p); !ok {
			t.Fatalf("Delete(%d) failed", v)
		}
		if err := tr.CheckConsistency(); err != nil {
			t.Fatalf("CheckConsistency after deleting %d: %v", v, err)
		}
	}
	if tr.Size() != 0 {
		t.Fatalf("Size() after draining = %d, want 0", tr.Size())
	}
}

func TestRBTreeDuplicateRejectedInUniqueMode(t *testing.T) {
	tr := New[int, int, N](intOps{})
	tr.Insert(10)
	if tr.Insert(10) {
		t.Fatalf("second Insert(10) should report a duplicate")
	}
	if tr.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", tr.Size())
	}
}

func TestRBTreeLowerUpperBound(t *testing.T) {
	tr := New[int, int, N](intOps{})
	for _, v := range []int{10, 20, 30, 40} {
		tr.Insert(v)
	}
	if p := tr.LowerBound(25); p.IsNull() || tr.ops.GetHolder(p.Node()) != 30 {
		t.Fatalf("LowerBound(25) wrong")
	}
	if p := tr.LowerBound(30); p.IsNull() || tr.ops.GetHolder(p.Node()) != 30 {
		t.Fatalf("LowerBound(30) should be inclusive")
	}
	if p := tr.UpperBound(30); p.IsNull() || tr.ops.GetHolder(p.Node()) != 40 {
		t.Fatalf("UpperBound(30) should be exclusive")
	}
	if p := tr.UpperBound(40); !p.IsNull() {
		t.Fatalf("UpperBound(40) should run off the end")
	}
}

func TestRBTreeMultisetStress(t *testing.T) {
	tr := New[int, int, N](intOps{}, AllowDuplicates)
	ref := map[int]int{}
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		key := rng.IntN(20)
		if rng.IntN(2) == 0 {
			tr.Insert(key)
			ref[key]++
		} else {
			if ref[key] > 0 {
				p := tr.Find(key)
				if !p.IsNull() {
					tr.RemoveValue(key, key)
				}
				ref[key]--
				if ref[key] == 0 {
					delete(ref, key)
				}
			}
		}
		if err := tr.CheckConsistency(); err != nil {
			t.Fatalf("op %d: CheckConsistency: %v", i, err)
		}
	}

	total := 0
	for _, c := range ref {
		total += c
	}
	if tr.Size() != total {
		t.Fatalf("Size() = %d, want %d", tr.Size(), total)
	}
	for k, c := range ref {
		p := tr.Find(k)
		if p.IsNull() {
			t.Fatalf("key %d missing from tree but present in reference", k)
		}
		if got := len(tr.Values(p.Node())); got != c {
			t.Fatalf("Values(%d) has %d entries, want %d", k, got, c)
		}
	}
}
