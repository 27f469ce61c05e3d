package bptree

// InitWithAscSequence replaces the tree's contents with holders, which
// must already be sorted in strictly ascending key order, by packing
// leaves and interior levels directly rather than running len(holders)
// individual inserts. Grounded on the bulk-load path documented in
// _examples/original_source/include/bptree.h's initWithAscSequence,
// reworked into a bottom-up level-build instead of that function's
// depth-first node-count-balancing walk.
func (t *Tree[K, H, N]) InitWithAscSequence(holders []H) {
	if len(holders) == 0 {
		t.root = t.ops.CreateEmptyNode()
		t.ops.SetLeaf(t.root, true)
		t.size = 0
		return
	}

	leafOrder := t.ops.LeafOrder()
	leaves := packLevel(len(holders), leafOrder)

	var level []N
	var prev N
	off := 0
	for _, cnt := range leaves {
		n := t.ops.CreateEmptyNode()
		t.ops.SetLeaf(n, true)
		for i := 0; i < cnt; i++ {
			t.ops.InsertHolderAt(n, i, holders[off+i])
		}
		off += cnt
		if !t.ops.IsNull(prev) {
			t.ops.SetNextLeaf(prev, n)
			t.setPrevIfSupported(n, prev)
		}
		prev = n
		level = append(level, n)
	}

	interiorOrder := t.ops.InteriorOrder()
	for len(level) > 1 {
		groups := packLevel(len(level), interiorOrder)
		var next []N
		idx := 0
		for _, cnt := range groups {
			n := t.ops.CreateEmptyNode()
			t.ops.SetLeaf(n, false)
			for i := 0; i < cnt; i++ {
				t.ops.InsertChildAt(n, i, level[idx+i])
				if i > 0 {
					t.ops.InsertRoutingKeyAt(n, i-1, t.subtreeMaxKey(level[idx+i-1]))
				}
			}
			idx += cnt
			next = append(next, n)
		}
		level = next
	}

	t.root = level[0]
	t.size = len(holders)
}

// packLevel splits total items into groups of at most max items each,
// favoring even-sized groups over a short final one.
func packLevel(total, max int) []int {
	if total <= max {
		return []int{total}
	}
	groups := (total + max - 1) / max
	base := total / groups
	rem := total % groups
	out := make([]int, groups)
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}
