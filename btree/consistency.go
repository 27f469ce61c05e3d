package btree

import "fmt"

// CheckConsistency verifies key ordering within and across nodes, the
// t-1..2t-1 key-count bound on non-root nodes, and uniform leaf depth
// (spec §8 "Testable Properties").
func (t *Tree[K, H, N]) CheckConsistency() error {
	_, err := t.checkNode(t.root, true, nil, nil)
	return err
}

func (t *Tree[K, H, N]) checkNode(n N, isRoot bool, lo, hi *K) (depth int, err error) {
	count := t.ops.NumKeys(n)
	if !isRoot && count < t.minKeys() {
		return 0, fmt.Errorf("btree: node has %d keys, fewer than the minimum %d", count, t.minKeys())
	}
	if count > t.maxKeys() {
		return 0, fmt.Errorf("btree: node has %d keys, more than the maximum %d", count, t.maxKeys())
	}

	var prevKey *K
	for i := 0; i < count; i++ {
		k := t.ops.Key(t.ops.GetHolderAt(n, i))
		if prevKey != nil && !t.ops.KeyLess(*prevKey, k) {
			return 0, fmt.Errorf("btree: keys within a node are not strictly increasing")
		}
		prevKey = &k
	}
	if lo != nil && count > 0 {
		k := t.ops.Key(t.ops.GetHolderAt(n, 0))
		if !t.ops.KeyLess(*lo, k) {
			return 0, fmt.Errorf("btree: node's first key does not exceed its lower bound")
		}
	}
	if hi != nil && count > 0 {
		k := t.ops.Key(t.ops.GetHolderAt(n, count-1))
		if !t.ops.KeyLess(k, *hi) {
			return 0, fmt.Errorf("btree: node's last key does not precede its upper bound")
		}
	}

	if t.ops.IsLeaf(n) {
		return 0, nil
	}

	var childDepth int
	for i := 0; i <= count; i++ {
		child := t.ops.GetChildAt(n, i)
		var childLo, childHi *K
		if i > 0 {
			k := t.ops.Key(t.ops.GetHolderAt(n, i-1))
			childLo = &k
		} else {
			childLo = lo
		}
		if i < count {
			k := t.ops.Key(t.ops.GetHolderAt(n, i))
			childHi = &k
		} else {
			childHi = hi
		}
		d, err := t.checkNode(child, false, childLo, childHi)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			childDepth = d
		} else if d != childDepth {
			return 0, fmt.Errorf("btree: leaves are not at a uniform depth")
		}
	}
	return childDepth + 1, nil
}
