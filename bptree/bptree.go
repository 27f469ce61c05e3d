package bptree

import "github.com/lidotcircle/sffs/treeops"

// Tree is a B+-tree of holders H keyed by K, addressed through node
// handles N supplied by Ops.
type Tree[K any, H comparable, N comparable] struct {
	ops  Ops[K, H, N]
	root N
	caps treeops.Capabilities
	size int
}

// New builds an empty tree over ops, whose root starts as an empty leaf.
func New[K any, H comparable, N comparable](ops Ops[K, H, N]) *Tree[K, H, N] {
	root := ops.CreateEmptyNode()
	ops.SetLeaf(root, true)
	t := &Tree[K, H, N]{ops: ops, root: root}
	if _, ok := ops.(treeops.PrevLinkOps[N]); ok {
		t.caps.HasPrevLink = true
	}
	return t
}

// Size returns the number of holders stored.
func (t *Tree[K, H, N]) Size() int { return t.size }

func (t *Tree[K, H, N]) minLeafHolders() int     { return t.ops.LeafOrder() / 2 }
func (t *Tree[K, H, N]) minInteriorChildren() int { return t.ops.InteriorOrder() / 2 }

func (t *Tree[K, H, N]) setPrevIfSupported(n, prev N) {
	if !t.caps.HasPrevLink || t.ops.IsNull(n) {
		return
	}
	t.ops.(treeops.PrevLinkOps[N]).LeafSetPrev(n, prev)
}

// subtreeMaxKey descends the rightmost spine of n's subtree and returns
// its last leaf's last key — the value routing keys carry per spec.md:124
// ("the new last key of the leaf"), not the right subtree's minimum.
func (t *Tree[K, H, N]) subtreeMaxKey(n N) K {
	for !t.ops.IsLeaf(n) {
		n = t.ops.GetChildAt(n, t.ops.NumRoutingKeys(n))
	}
	return t.ops.Key(t.ops.GetHolderAt(n, t.ops.NumHolders(n)-1))
}

func (t *Tree[K, H, N]) locateInterior(n N, key K) int {
	cnt := t.ops.NumRoutingKeys(n)
	i := 0
	for i < cnt && t.ops.KeyLess(t.ops.GetRoutingKeyAt(n, i), key) {
		i++
	}
	return i
}

func (t *Tree[K, H, N]) locateLeaf(n N, key K) (int, bool) {
	cnt := t.ops.NumHolders(n)
	i := 0
	for i < cnt {
		k := t.ops.Key(t.ops.GetHolderAt(n, i))
		if t.ops.KeyLess(key, k) {
			return i, false
		}
		if !t.ops.KeyLess(k, key) {
			return i, true
		}
		i++
	}
	return i, false
}

// Find returns the path to the holder under key, or the null path.
func (t *Tree[K, H, N]) Find(key K) Path[N] {
	var entries []pathEntry[N]
	cur := t.root
	for !t.ops.IsLeaf(cur) {
		i := t.locateInterior(cur, key)
		entries = append(entries, pathEntry[N]{node: cur, idx: i})
		cur = t.ops.GetChildAt(cur, i)
	}
	i, found := t.locateLeaf(cur, key)
	entries = append(entries, pathEntry[N]{node: cur, idx: i})
	if !found {
		return Path[N]{}
	}
	return Path[N]{entries: entries}
}

// Insert adds h under its key. It descends to the leaf, inserts there,
// and splits overfull nodes on the way back up; nodes are not split
// pre-emptively on the way down.
func (t *Tree[K, H, N]) Insert(h H) bool {
	key := t.ops.Key(h)
	ok, promoted, newRight := t.insertRec(t.root, key, h)
	if !ok {
		return false
	}
	if !t.ops.IsNull(newRight) {
		newRoot := t.ops.CreateEmptyNode()
		t.ops.SetLeaf(newRoot, false)
		t.ops.InsertChildAt(newRoot, 0, t.root)
		t.ops.InsertChildAt(newRoot, 1, newRight)
		t.ops.InsertRoutingKeyAt(newRoot, 0, promoted)
		t.root = newRoot
	}
	t.size++
	return true
}

func (t *Tree[K, H, N]) insertRec(n N, key K, h H) (bool, K, N) {
	var zeroK K
	if t.ops.IsLeaf(n) {
		i, found := t.locateLeaf(n, key)
		if found {
			return false, zeroK, t.ops.NullNode()
		}
		t.ops.InsertHolderAt(n, i, h)
		if t.ops.NumHolders(n) <= t.ops.LeafOrder() {
			return true, zeroK, t.ops.NullNode()
		}
		right := t.splitLeaf(n)
		return true, t.ops.Key(t.ops.GetHolderAt(n, t.ops.NumHolders(n)-1)), right
	}

	i := t.locateInterior(n, key)
	child := t.ops.GetChildAt(n, i)
	inserted, promoted, newChild := t.insertRec(child, key, h)
	if !inserted {
		return false, zeroK, t.ops.NullNode()
	}
	if t.ops.IsNull(newChild) {
		return true, zeroK, t.ops.NullNode()
	}
	t.ops.InsertRoutingKeyAt(n, i, promoted)
	t.ops.InsertChildAt(n, i+1, newChild)
	if t.ops.NumRoutingKeys(n) <= t.ops.InteriorOrder()-1 {
		return true, zeroK, t.ops.NullNode()
	}
	sepKey, right := t.splitInterior(n)
	return true, sepKey, right
}

func (t *Tree[K, H, N]) splitLeaf(n N) N {
	cnt := t.ops.NumHolders(n)
	mid := cnt / 2
	right := t.ops.CreateEmptyNode()
	t.ops.SetLeaf(right, true)
	for j := mid; j < cnt; j++ {
		t.ops.InsertHolderAt(right, j-mid, t.ops.GetHolderAt(n, j))
	}
	for j := cnt - 1; j >= mid; j-- {
		t.ops.RemoveHolderAt(n, j)
	}

	oldNext := t.ops.GetNextLeaf(n)
	t.ops.SetNextLeaf(right, oldNext)
	t.ops.SetNextLeaf(n, right)
	t.setPrevIfSupported(right, n)
	t.setPrevIfSupported(oldNext, right)
	return right
}

func (t *Tree[K, H, N]) splitInterior(n N) (K, N) {
	cnt := t.ops.NumRoutingKeys(n)
	mid := cnt / 2
	promoted := t.ops.GetRoutingKeyAt(n, mid)
	right := t.ops.CreateEmptyNode()
	t.ops.SetLeaf(right, false)

	for j := mid + 1; j < cnt; j++ {
		t.ops.InsertRoutingKeyAt(right, j-mid-1, t.ops.GetRoutingKeyAt(n, j))
	}
	for j := mid + 1; j <= cnt; j++ {
		t.ops.InsertChildAt(right, j-mid-1, t.ops.GetChildAt(n, j))
	}
	for j := cnt - 1; j >= mid; j-- {
		t.ops.RemoveRoutingKeyAt(n, j)
	}
	for j := cnt; j >= mid+1; j-- {
		t.ops.RemoveChildAt(n, j)
	}
	return promoted, right
}

// Begin returns the path to the minimum key, or the null path if empty.
func (t *Tree[K, H, N]) Begin() Path[N] {
	if t.size == 0 {
		return Path[N]{}
	}
	var entries []pathEntry[N]
	cur := t.root
	for !t.ops.IsLeaf(cur) {
		entries = append(entries, pathEntry[N]{node: cur, idx: 0})
		cur = t.ops.GetChildAt(cur, 0)
	}
	entries = append(entries, pathEntry[N]{node: cur, idx: 0})
	return Path[N]{entries: entries}
}

// End returns the null path, one-past-the-last in forward order.
func (t *Tree[K, H, N]) End() Path[N] { return Path[N]{} }

// Forward returns the in-order successor path.
func (t *Tree[K, H, N]) Forward(p Path[N]) Path[N] {
	if p.IsNull() {
		return Path[N]{}
	}
	entries := clonePath(p)
	last := entries[len(entries)-1]
	leaf, i := last.node, last.idx

	if i+1 < t.ops.NumHolders(leaf) {
		entries[len(entries)-1] = pathEntry[N]{node: leaf, idx: i + 1}
		return Path[N]{entries: entries}
	}

	for len(entries) >= 2 {
		entries = entries[:len(entries)-1]
		parent := entries[len(entries)-1]
		if parent.idx < t.ops.NumRoutingKeys(parent.node) {
			entries[len(entries)-1] = pathEntry[N]{node: parent.node, idx: parent.idx + 1}
			cur := t.ops.GetChildAt(parent.node, parent.idx+1)
			for !t.ops.IsLeaf(cur) {
				entries = append(entries, pathEntry[N]{node: cur, idx: 0})
				cur = t.ops.GetChildAt(cur, 0)
			}
			entries = append(entries, pathEntry[N]{node: cur, idx: 0})
			return Path[N]{entries: entries}
		}
	}
	return Path[N]{}
}

// Backward returns the in-order predecessor path; called with the null
// path (End()) it returns the last key, mirroring Begin().
func (t *Tree[K, H, N]) Backward(p Path[N]) Path[N] {
	if p.IsNull() {
		if t.size == 0 {
			return Path[N]{}
		}
		var entries []pathEntry[N]
		cur := t.root
		for !t.ops.IsLeaf(cur) {
			n := t.ops.NumRoutingKeys(cur)
			entries = append(entries, pathEntry[N]{node: cur, idx: n})
			cur = t.ops.GetChildAt(cur, n)
		}
		entries = append(entries, pathEntry[N]{node: cur, idx: t.ops.NumHolders(cur) - 1})
		return Path[N]{entries: entries}
	}
	entries := clonePath(p)
	last := entries[len(entries)-1]
	leaf, i := last.node, last.idx

	if i-1 >= 0 {
		entries[len(entries)-1] = pathEntry[N]{node: leaf, idx: i - 1}
		return Path[N]{entries: entries}
	}

	for len(entries) >= 2 {
		entries = entries[:len(entries)-1]
		parent := entries[len(entries)-1]
		if parent.idx > 0 {
			entries[len(entries)-1] = pathEntry[N]{node: parent.node, idx: parent.idx - 1}
			cur := t.ops.GetChildAt(parent.node, parent.idx-1)
			for !t.ops.IsLeaf(cur) {
				n := t.ops.NumRoutingKeys(cur)
				entries = append(entries, pathEntry[N]{node: cur, idx: n})
				cur = t.ops.GetChildAt(cur, n)
			}
			entries = append(entries, pathEntry[N]{node: cur, idx: t.ops.NumHolders(cur) - 1})
			return Path[N]{entries: entries}
		}
	}
	return Path[N]{}
}

// LowerBound returns the path to the first key >= key, or the null path.
func (t *Tree[K, H, N]) LowerBound(key K) Path[N] {
	var entries []pathEntry[N]
	cur := t.root
	for !t.ops.IsLeaf(cur) {
		i := t.locateInterior(cur, key)
		entries = append(entries, pathEntry[N]{node: cur, idx: i})
		cur = t.ops.GetChildAt(cur, i)
	}
	i, _ := t.locateLeaf(cur, key)
	if i >= t.ops.NumHolders(cur) {
		p := Path[N]{entries: append(entries, pathEntry[N]{node: cur, idx: i})}
		return t.Forward(p)
	}
	entries = append(entries, pathEntry[N]{node: cur, idx: i})
	return Path[N]{entries: entries}
}

// UpperBound returns the path to the first key strictly greater than
// key, or the null path.
func (t *Tree[K, H, N]) UpperBound(key K) Path[N] {
	p := t.LowerBound(key)
	if p.IsNull() {
		return Path[N]{}
	}
	leaf, idx := p.Leaf(), p.Index()
	k := t.ops.Key(t.ops.GetHolderAt(leaf, idx))
	if !t.ops.KeyLess(key, k) && !t.ops.KeyLess(k, key) {
		return t.Forward(p)
	}
	return p
}

// FirstLeaf and NextLeafOf expose the raw leaf chain directly, for
// callers that want a sequential scan without a path stack (the whole
// point of linking the leaves in the first place).
func (t *Tree[K, H, N]) FirstLeaf() N {
	if t.size == 0 {
		return t.ops.NullNode()
	}
	cur := t.root
	for !t.ops.IsLeaf(cur) {
		cur = t.ops.GetChildAt(cur, 0)
	}
	return cur
}

func (t *Tree[K, H, N]) NextLeafOf(n N) N { return t.ops.GetNextLeaf(n) }
func (t *Tree[K, H, N]) LeafHolders(n N) []H {
	out := make([]H, t.ops.NumHolders(n))
	for i := range out {
		out[i] = t.ops.GetHolderAt(n, i)
	}
	return out
}
