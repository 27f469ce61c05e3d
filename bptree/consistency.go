package bptree

import (
	"fmt"

	"github.com/lidotcircle/sffs/treeops"
)

// CheckConsistency verifies key ordering, the routing-key range
// invariant, minimum occupancy on non-root nodes, uniform leaf depth,
// and leaf-chain linkage (spec §8 "Testable Properties").
func (t *Tree[K, H, N]) CheckConsistency() error {
	depth, _, _, err := t.checkNode(t.root, true)
	if err != nil {
		return err
	}
	_ = depth

	var prevOps treeops.PrevLinkOps[N]
	if t.caps.HasPrevLink {
		prevOps = t.ops.(treeops.PrevLinkOps[N])
	}

	var prevLeaf N
	count := 0
	for leaf := t.FirstLeaf(); !t.ops.IsNull(leaf); leaf = t.ops.GetNextLeaf(leaf) {
		count += t.ops.NumHolders(leaf)
		if prevOps != nil && !t.ops.IsNull(prevLeaf) {
			if !t.ops.NodeEqual(prevOps.LeafGetPrev(leaf), prevLeaf) {
				return fmt.Errorf("bptree: leaf's prev link does not point back to its predecessor")
			}
		}
		prevLeaf = leaf
	}
	if count != t.size {
		return fmt.Errorf("bptree: leaf chain holds %d holders, tree reports size %d", count, t.size)
	}
	return nil
}

// checkNode returns (depth-to-leaf, min-key-of-subtree, max-key-of-subtree, error).
func (t *Tree[K, H, N]) checkNode(n N, isRoot bool) (int, K, K, error) {
	var zeroK K
	if t.ops.IsLeaf(n) {
		cnt := t.ops.NumHolders(n)
		if !isRoot && cnt < t.minLeafHolders() {
			return 0, zeroK, zeroK, fmt.Errorf("bptree: leaf has %d holders, fewer than minimum %d", cnt, t.minLeafHolders())
		}
		if cnt > t.ops.LeafOrder() {
			return 0, zeroK, zeroK, fmt.Errorf("bptree: leaf has %d holders, more than order %d", cnt, t.ops.LeafOrder())
		}
		for i := 1; i < cnt; i++ {
			a := t.ops.Key(t.ops.GetHolderAt(n, i-1))
			b := t.ops.Key(t.ops.GetHolderAt(n, i))
			if !t.ops.KeyLess(a, b) {
				return 0, zeroK, zeroK, fmt.Errorf("bptree: leaf holders are not strictly increasing")
			}
		}
		if cnt == 0 {
			return 0, zeroK, zeroK, nil
		}
		return 0, t.ops.Key(t.ops.GetHolderAt(n, 0)), t.ops.Key(t.ops.GetHolderAt(n, cnt-1)), nil
	}

	childCount := t.ops.NumRoutingKeys(n) + 1
	if !isRoot && childCount < t.minInteriorChildren() {
		return 0, zeroK, zeroK, fmt.Errorf("bptree: interior node has %d children, fewer than minimum %d", childCount, t.minInteriorChildren())
	}
	if childCount > t.ops.InteriorOrder() {
		return 0, zeroK, zeroK, fmt.Errorf("bptree: interior node has %d children, more than order %d", childCount, t.ops.InteriorOrder())
	}
	if isRoot && childCount < 2 {
		return 0, zeroK, zeroK, fmt.Errorf("bptree: root interior node must have at least 2 children")
	}

	var leafDepth int
	var minKey, maxKey K
	var prevMax K
	for i := 0; i < childCount; i++ {
		child := t.ops.GetChildAt(n, i)
		d, childMin, childMax, err := t.checkNode(child, false)
		if err != nil {
			return 0, zeroK, zeroK, err
		}
		if i == 0 {
			leafDepth = d
			minKey = childMin
		} else if d != leafDepth {
			return 0, zeroK, zeroK, fmt.Errorf("bptree: leaves are not at a uniform depth")
		}
		if i > 0 {
			rk := t.ops.GetRoutingKeyAt(n, i-1)
			if t.ops.KeyLess(rk, prevMax) {
				return 0, zeroK, zeroK, fmt.Errorf("bptree: routing key %d is less than the last key of its left subtree", i-1)
			}
			if !t.ops.KeyLess(rk, childMin) {
				return 0, zeroK, zeroK, fmt.Errorf("bptree: routing key %d is not strictly less than the first key of its right subtree", i-1)
			}
		}
		prevMax = childMax
		maxKey = childMax
	}
	return leafDepth + 1, minKey, maxKey, nil
}
