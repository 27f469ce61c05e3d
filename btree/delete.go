package btree

// Delete removes the holder under key, rebalancing (rotate-or-merge) any
// under-full child before descending into it so the recursion never has
// to backtrack up to fix up an ancestor.
func (t *Tree[K, H, N]) Delete(key K) (H, bool) {
	h, ok := t.deleteFrom(t.root, key)
	if !ok {
		return h, false
	}
	t.size--
	if !t.ops.IsLeaf(t.root) && t.ops.NumKeys(t.root) == 0 {
		old := t.root
		t.root = t.ops.GetChildAt(old, 0)
		t.ops.ReleaseEmptyNode(old)
	}
	return h, true
}

func (t *Tree[K, H, N]) deleteFrom(n N, key K) (H, bool) {
	i, found := t.locate(n, key)
	if found {
		removed := t.ops.GetHolderAt(n, i)
		if t.ops.IsLeaf(n) {
			t.ops.RemoveHolderAt(n, i)
			return removed, true
		}
		left := t.ops.GetChildAt(n, i)
		right := t.ops.GetChildAt(n, i+1)
		switch {
		case t.ops.NumKeys(left) > t.minKeys():
			pred := t.maxHolder(left)
			t.ops.SetHolderAt(n, i, pred)
			t.deleteFrom(left, t.ops.Key(pred))
		case t.ops.NumKeys(right) > t.minKeys():
			succ := t.minHolder(right)
			t.ops.SetHolderAt(n, i, succ)
			t.deleteFrom(right, t.ops.Key(succ))
		default:
			t.mergeChildren(n, i)
			t.deleteFrom(left, key)
		}
		return removed, true
	}

	var zero H
	if t.ops.IsLeaf(n) {
		return zero, false
	}
	ci := i
	child := t.ops.GetChildAt(n, ci)
	if t.ops.NumKeys(child) == t.minKeys() {
		ci, child = t.ensureSpareKey(n, ci)
	}
	return t.deleteFrom(child, key)
}

func (t *Tree[K, H, N]) maxHolder(n N) H {
	for !t.ops.IsLeaf(n) {
		n = t.ops.GetChildAt(n, t.ops.NumKeys(n))
	}
	return t.ops.GetHolderAt(n, t.ops.NumKeys(n)-1)
}

func (t *Tree[K, H, N]) minHolder(n N) H {
	for !t.ops.IsLeaf(n) {
		n = t.ops.GetChildAt(n, 0)
	}
	return t.ops.GetHolderAt(n, 0)
}

// mergeChildren folds n's child i, key i, and child i+1 into a single
// node occupying slot i, removing key i and child i+1 from n.
func (t *Tree[K, H, N]) mergeChildren(n N, i int) {
	left := t.ops.GetChildAt(n, i)
	right := t.ops.GetChildAt(n, i+1)
	midHolder := t.ops.GetHolderAt(n, i)

	leftCount := t.ops.NumKeys(left)
	rightCount := t.ops.NumKeys(right)
	t.ops.InsertHolderAt(left, leftCount, midHolder)
	for j := 0; j < rightCount; j++ {
		t.ops.InsertHolderAt(left, leftCount+1+j, t.ops.GetHolderAt(right, j))
	}
	if !t.ops.IsLeaf(left) {
		for j := 0; j < rightCount+1; j++ {
			t.ops.InsertChildAt(left, leftCount+1+j, t.ops.GetChildAt(right, j))
		}
	}

	t.ops.RemoveHolderAt(n, i)
	t.ops.RemoveChildAt(n, i+1)
	t.ops.ReleaseEmptyNode(right)
}

// ensureSpareKey guarantees n's child ci holds more than the minimum
// number of keys (by rotating a key in from a sibling, or merging with
// one) before the caller descends into it. Returns the possibly-shifted
// child index and the child itself.
func (t *Tree[K, H, N]) ensureSpareKey(n N, ci int) (int, N) {
	if ci > 0 {
		leftSib := t.ops.GetChildAt(n, ci-1)
		if t.ops.NumKeys(leftSib) > t.minKeys() {
			child := t.ops.GetChildAt(n, ci)
			borrowed := t.ops.RemoveHolderAt(leftSib, t.ops.NumKeys(leftSib)-1)
			parentKey := t.ops.GetHolderAt(n, ci-1)
			t.ops.SetHolderAt(n, ci-1, borrowed)
			t.ops.InsertHolderAt(child, 0, parentKey)
			if !t.ops.IsLeaf(leftSib) {
				movedChild := t.ops.RemoveChildAt(leftSib, t.ops.NumKeys(leftSib)+1)
				t.ops.InsertChildAt(child, 0, movedChild)
			}
			return ci, child
		}
	}
	if ci < t.ops.NumKeys(n) {
		rightSib := t.ops.GetChildAt(n, ci+1)
		if t.ops.NumKeys(rightSib) > t.minKeys() {
			child := t.ops.GetChildAt(n, ci)
			borrowed := t.ops.RemoveHolderAt(rightSib, 0)
			parentKey := t.ops.GetHolderAt(n, ci)
			t.ops.SetHolderAt(n, ci, borrowed)
			t.ops.InsertHolderAt(child, t.ops.NumKeys(child), parentKey)
			if !t.ops.IsLeaf(rightSib) {
				movedChild := t.ops.RemoveChildAt(rightSib, 0)
				t.ops.InsertChildAt(child, t.ops.NumKeys(child), movedChild)
			}
			return ci, child
		}
	}
	if ci > 0 {
		t.mergeChildren(n, ci-1)
		return ci - 1, t.ops.GetChildAt(n, ci-1)
	}
	t.mergeChildren(n, ci)
	return ci, t.ops.GetChildAt(n, ci)
}
