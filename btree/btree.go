package btree

// Tree is a B-tree of holders H keyed by K, addressed through node
// handles N supplied by Ops.
type Tree[K any, H comparable, N comparable] struct {
	ops  Ops[K, H, N]
	root N
	size int
}

// New builds an empty tree over ops, whose root starts as an empty leaf.
func New[K any, H comparable, N comparable](ops Ops[K, H, N]) *Tree[K, H, N] {
	root := ops.CreateEmptyNode()
	ops.SetLeaf(root, true)
	return &Tree[K, H, N]{ops: ops, root: root}
}

// Size returns the number of holders stored.
func (t *Tree[K, H, N]) Size() int { return t.size }

func (t *Tree[K, H, N]) minKeys() int { return t.ops.Order() - 1 }
func (t *Tree[K, H, N]) maxKeys() int { return 2*t.ops.Order() - 1 }

// locate finds key within n's own holder run: if present, (index, true);
// otherwise (childIndexToDescend, false).
func (t *Tree[K, H, N]) locate(n N, key K) (int, bool) {
	cnt := t.ops.NumKeys(n)
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

// Find returns the path to the node/index holding key, or the null path.
func (t *Tree[K, H, N]) Find(key K) Path[N] {
	var entries []pathEntry[N]
	cur := t.root
	for {
		i, found := t.locate(cur, key)
		entries = append(entries, pathEntry[N]{node: cur, idx: i})
		if found {
			return Path[N]{entries: entries}
		}
		if t.ops.IsLeaf(cur) {
			return Path[N]{}
		}
		cur = t.ops.GetChildAt(cur, i)
	}
}

// Insert adds h under its key, splitting full nodes on the way down, and
// reports false without modifying the tree if the key is already present.
func (t *Tree[K, H, N]) Insert(h H) bool {
	key := t.ops.Key(h)
	if t.ops.NumKeys(t.root) == t.maxKeys() {
		newRoot := t.ops.CreateEmptyNode()
		t.ops.SetLeaf(newRoot, false)
		t.ops.InsertChildAt(newRoot, 0, t.root)
		t.root = newRoot
		t.splitChild(newRoot, 0)
	}
	ok := t.insertNonFull(t.root, key, h)
	if ok {
		t.size++
	}
	return ok
}

func (t *Tree[K, H, N]) splitChild(parent N, i int) {
	order := t.ops.Order()
	child := t.ops.GetChildAt(parent, i)
	sibling := t.ops.CreateEmptyNode()
	t.ops.SetLeaf(sibling, t.ops.IsLeaf(child))

	for j := 0; j < order-1; j++ {
		t.ops.InsertHolderAt(sibling, j, t.ops.GetHolderAt(child, order+j))
	}
	if !t.ops.IsLeaf(child) {
		for j := 0; j < order; j++ {
			t.ops.InsertChildAt(sibling, j, t.ops.GetChildAt(child, order+j))
		}
	}
	midHolder := t.ops.GetHolderAt(child, order-1)

	for j := 2*order - 2; j >= order-1; j-- {
		t.ops.RemoveHolderAt(child, j)
	}
	if !t.ops.IsLeaf(child) {
		for j := 2*order - 1; j >= order; j-- {
			t.ops.RemoveChildAt(child, j)
		}
	}

	t.ops.InsertChildAt(parent, i+1, sibling)
	t.ops.InsertHolderAt(parent, i, midHolder)
}

func (t *Tree[K, H, N]) insertNonFull(n N, key K, h H) bool {
	i, found := t.locate(n, key)
	if found {
		return false
	}
	if t.ops.IsLeaf(n) {
		t.ops.InsertHolderAt(n, i, h)
		return true
	}
	child := t.ops.GetChildAt(n, i)
	if t.ops.NumKeys(child) == t.maxKeys() {
		t.splitChild(n, i)
		ck := t.ops.Key(t.ops.GetHolderAt(n, i))
		if t.ops.KeyLess(ck, key) {
			i++
		} else if !t.ops.KeyLess(key, ck) {
			return false
		}
		child = t.ops.GetChildAt(n, i)
	}
	return t.insertNonFull(child, key, h)
}

// Begin returns the path to the minimum key, or the null path if the
// tree is empty.
func (t *Tree[K, H, N]) Begin() Path[N] {
	if t.size == 0 {
		return Path[N]{}
	}
	var entries []pathEntry[N]
	cur := t.root
	for {
		entries = append(entries, pathEntry[N]{node: cur, idx: 0})
		if t.ops.IsLeaf(cur) {
			return Path[N]{entries: entries}
		}
		cur = t.ops.GetChildAt(cur, 0)
	}
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
	node, i := last.node, last.idx

	if !t.ops.IsLeaf(node) {
		entries[len(entries)-1] = pathEntry[N]{node: node, idx: i + 1}
		cur := t.ops.GetChildAt(node, i+1)
		for {
			entries = append(entries, pathEntry[N]{node: cur, idx: 0})
			if t.ops.IsLeaf(cur) {
				break
			}
			cur = t.ops.GetChildAt(cur, 0)
		}
		return Path[N]{entries: entries}
	}

	if i+1 < t.ops.NumKeys(node) {
		entries[len(entries)-1] = pathEntry[N]{node: node, idx: i + 1}
		return Path[N]{entries: entries}
	}

	for len(entries) >= 2 {
		entries = entries[:len(entries)-1]
		parent := entries[len(entries)-1]
		if parent.idx < t.ops.NumKeys(parent.node) {
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
		for {
			n := t.ops.NumKeys(cur)
			if t.ops.IsLeaf(cur) {
				entries = append(entries, pathEntry[N]{node: cur, idx: n - 1})
				return Path[N]{entries: entries}
			}
			entries = append(entries, pathEntry[N]{node: cur, idx: n})
			cur = t.ops.GetChildAt(cur, n)
		}
	}
	entries := clonePath(p)
	last := entries[len(entries)-1]
	node, i := last.node, last.idx

	if !t.ops.IsLeaf(node) {
		cur := t.ops.GetChildAt(node, i)
		for {
			n := t.ops.NumKeys(cur)
			if t.ops.IsLeaf(cur) {
				entries = append(entries, pathEntry[N]{node: cur, idx: n - 1})
				return Path[N]{entries: entries}
			}
			entries = append(entries, pathEntry[N]{node: cur, idx: n})
			cur = t.ops.GetChildAt(cur, n)
		}
	}

	if i-1 >= 0 {
		entries[len(entries)-1] = pathEntry[N]{node: node, idx: i - 1}
		return Path[N]{entries: entries}
	}

	for len(entries) >= 2 {
		entries = entries[:len(entries)-1]
		parent := entries[len(entries)-1]
		if parent.idx > 0 {
			entries[len(entries)-1] = pathEntry[N]{node: parent.node, idx: parent.idx - 1}
			return Path[N]{entries: entries}
		}
	}
	return Path[N]{}
}

// LowerBound returns the path to the first key >= key, or the null path.
func (t *Tree[K, H, N]) LowerBound(key K) Path[N] {
	var entries, best []pathEntry[N]
	cur := t.root
	for {
		i, found := t.locate(cur, key)
		entries = append(entries, pathEntry[N]{node: cur, idx: i})
		if found {
			return Path[N]{entries: entries}
		}
		if i < t.ops.NumKeys(cur) {
			best = append(best[:0:0], entries...)
		}
		if t.ops.IsLeaf(cur) {
			break
		}
		cur = t.ops.GetChildAt(cur, i)
	}
	if best == nil {
		return Path[N]{}
	}
	return Path[N]{entries: best}
}

// UpperBound returns the path to the first key strictly greater than
// key, or the null path.
func (t *Tree[K, H, N]) UpperBound(key K) Path[N] {
	p := t.LowerBound(key)
	if p.IsNull() {
		return Path[N]{}
	}
	node, idx := p.Node(), p.KeyIndex()
	k := t.ops.Key(t.ops.GetHolderAt(node, idx))
	if !t.ops.KeyLess(key, k) && !t.ops.KeyLess(k, key) {
		return t.Forward(p)
	}
	return p
}
