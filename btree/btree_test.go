package btree

import (
	"math/rand/v2"
	"testing"
)

type bNode struct {
	leaf     bool
	holders  []int
	children []N
}

type N = *bNode

type intOps struct{ order int }

func (o intOps) Order() int                   { return o.order }
func (intOps) NullNode() N                    { return nil }
func (intOps) IsNull(n N) bool                { return n == nil }
func (intOps) CreateEmptyNode() N             { return &bNode{} }
func (intOps) ReleaseEmptyNode(n N)           {}
func (intOps) NodeEqual(a, b N) bool          { return a == b }
func (intOps) Key(h int) int                  { return h }
func (intOps) KeyLess(a, b int) bool          { return a < b }
func (intOps) IsLeaf(n N) bool                { return n.leaf }
func (intOps) SetLeaf(n N, leaf bool)         { n.leaf = leaf }
func (intOps) NumKeys(n N) int                { return len(n.holders) }
func (intOps) GetHolderAt(n N, i int) int     { return n.holders[i] }
func (intOps) SetHolderAt(n N, i int, h int)  { n.holders[i] = h }
func (intOps) InsertHolderAt(n N, i int, h int) {
	n.holders = append(n.holders, 0)
	copy(n.holders[i+1:], n.holders[i:])
	n.holders[i] = h
}
func (intOps) RemoveHolderAt(n N, i int) int {
	h := n.holders[i]
	n.holders = append(n.holders[:i], n.holders[i+1:]...)
	return h
}
func (intOps) GetChildAt(n N, i int) N { return n.children[i] }
func (intOps) InsertChildAt(n N, i int, c N) {
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = c
}
func (intOps) RemoveChildAt(n N, i int) N {
	c := n.children[i]
	n.children = append(n.children[:i], n.children[i+1:]...)
	return c
}

func collectInOrder(tr *Tree[int, int, N]) []int {
	var out []int
	for p := tr.Begin(); !p.IsNull(); p = tr.Forward(p) {
		out = append(out, tr.ops.GetHolderAt(p.Node(), p.KeyIndex()))
	}
	return out
}

func TestBTreeInsertFindOrder(t *testing.T) {
	tr := New[int, int, N](intOps{order: 2})
	vals := []int{10, 20, 5, 6, 12, 30, 7, 17}
	for _, v := range vals {
		if !tr.Insert(v) {
			t.Fatalf("Insert(%d) reported a spurious duplicate", v)
		}
	}
	if err := tr.CheckConsistency(); err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
	got := collectInOrder(tr)
	want := []int{5, 6, 7, 10, 12, 17, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("collectInOrder length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("in-order[%d] = %d, want %d (full %v)", i, got[i], want[i], got)
		}
	}
	for _, v := range vals {
		if tr.Find(v).IsNull() {
			t.Fatalf("Find(%d) missed an inserted key", v)
		}
	}
	if !tr.Find(999).IsNull() {
		t.Fatalf("Find(999) should miss")
	}
}

func TestBTreeDuplicateRejected(t *testing.T) {
	tr := New[int, int, N](intOps{order: 2})
	tr.Insert(42)
	if tr.Insert(42) {
		t.Fatalf("second Insert(42) should report a duplicate")
	}
}

func TestBTreeDeleteDrainsToEmpty(t *testing.T) {
	tr := New[int, int, N](intOps{order: 2})
	vals := []int{10, 20, 5, 6, 12, 30, 7, 17, 3, 1, 25, 40}
	for _, v := range vals {
		tr.Insert(v)
	}
	for _, v := range vals {
		if _, ok := tr.Delete(v); !ok {
			t.Fatalf("Delete(%d) failed", v)
		}
		if err := tr.CheckConsistency(); err != nil {
			t.Fatalf("CheckConsistency after deleting %d: %v", v, err)
		}
	}
	if tr.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", tr.Size())
	}
	if !tr.Begin().IsNull() {
		t.Fatalf("Begin() on empty tree should be the null path")
	}
}

func TestBTreeRandomStress(t *testing.T) {
	tr := New[int, int, N](intOps{order: 3})
	ref := map[int]bool{}
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 800; i++ {
		v := rng.IntN(200)
		if !ref[v] {
			if !tr.Insert(v) {
				t.Fatalf("op %d: Insert(%d) unexpectedly reported a duplicate", i, v)
			}
			ref[v] = true
		} else if rng.IntN(3) == 0 {
			if _, ok := tr.Delete(v); !ok {
				t.Fatalf("op %d: Delete(%d) unexpectedly failed", i, v)
			}
			delete(ref, v)
		}
		if err := tr.CheckConsistency(); err != nil {
			t.Fatalf("op %d: CheckConsistency: %v", i, err)
		}
	}
	if tr.Size() != len(ref) {
		t.Fatalf("Size() = %d, want %d", tr.Size(), len(ref))
	}
	for v := range ref {
		if tr.Find(v).IsNull() {
			t.Fatalf("Find(%d) missing a key the reference still has", v)
		}
	}
}
