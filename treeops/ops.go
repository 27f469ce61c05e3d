// Package treeops defines the operations-adapter contracts shared by the
// rbtree, btree, and bptree algorithm packages (spec §2.3, §4.4). A tree
// algorithm never owns node storage itself — it is handed an adapter
// implementing one of these contracts and drives it purely through the
// contract's methods, so the same algorithm runs unchanged over an
// in-memory pointer graph or a block-device-backed node graph.
//
// The original C++ source picks algorithm branches (parent-pointer vs.
// path-stack, by-reference vs. by-value holder access) at compile time
// via SFINAE trait probing on the adapter type. Go has no equivalent
// compile-time reflection, so this package models the same idea as an
// explicit capabilities record computed once, at adapter-construction
// time, via type assertions against the small optional interfaces below.
package treeops

// NodeLifecycle is the subset of the adapter contract every tree
// algorithm needs regardless of shape: a null-node sentinel and the
// ability to create/release node storage. N is the opaque node handle
// (a pointer, an index, or an on-device sector/entry id).
type NodeLifecycle[N comparable] interface {
	// NullNode returns the distinguished "no node" handle. An empty
	// tree's root is the null handle.
	NullNode() N
	// IsNull reports whether n is the null handle.
	IsNull(n N) bool
	// CreateEmptyNode allocates new, uninitialized node storage and
	// returns its handle. The algorithm is responsible for populating
	// it before it becomes reachable from the root.
	CreateEmptyNode() N
	// ReleaseEmptyNode returns node storage to the adapter. Called only
	// after the algorithm has detached all holders/children from n.
	ReleaseEmptyNode(n N)
	// NodeEqual reports whether a and b name the same node. For pointer
	// handles this is pointer equality; for an id handle it is value
	// equality.
	NodeEqual(a, b N) bool
}

// KeyedHolder projects a holder H (the payload stored at a leaf
// position) to its comparable key K, and totally orders keys. Equality
// is the symmetric derivative of Less, matching spec §3.
type KeyedHolder[K any, H any] interface {
	Key(h H) K
	KeyLess(a, b K) bool
}

// KeyEqual is the default equality derived from Less when an adapter
// does not implement the optional KeyComparer below: a == b iff neither
// orders before the other.
func KeyEqual[K any, H any](ops KeyedHolder[K, H], a, b K) bool {
	if kc, ok := ops.(KeyComparer[K]); ok {
		return kc.KeyEqual(a, b)
	}
	return !ops.KeyLess(a, b) && !ops.KeyLess(b, a)
}

// KeyComparer is an optional capability: an adapter may supply a direct
// equality test faster than the Less/Less derivation above (e.g. a
// byte-slice key can memcmp once instead of comparing twice).
type KeyComparer[K any] interface {
	KeyEqual(a, b K) bool
}

// ParentOps is the optional capability that lets a tree algorithm use
// single-node paths (a node handle plus walk-up-via-parent) instead of
// an explicit root-to-leaf path stack. Spec §9 "Cyclic parent links":
// adapters implementing this introduce a cycle in the node graph: the
// algorithm must never use the parent link for ownership, only for
// traversal.
type ParentOps[N comparable] interface {
	GetParent(n N) N
	SetParent(n N, parent N)
}

// PrevLinkOps is the optional capability letting a bptree leaf list be
// doubly linked (spec §4.3 "If the prev-link option is enabled the list
// is doubly linked").
type PrevLinkOps[N comparable] interface {
	LeafGetPrev(n N) N
	LeafSetPrev(n N, prev N)
}

// RefHolderOps is the optional capability letting a leaf offer a
// reference to its stored holder for in-place mutation of the value
// half, instead of only move-semantics extraction (spec §9 "Holder
// ownership vs view"). No tree package in this module probes for it:
// rbtree, btree and bptree access holders only by value through their
// own Ops interfaces.
type RefHolderOps[H any, N comparable] interface {
	GetNthHolderRef(n N, i int) *H
	SetHolderValue(n N, i int, h H)
}

// Capabilities summarizes which optional interfaces a concrete adapter
// implements, computed once at algorithm-construction time so hot paths
// branch on a plain bool instead of repeating type assertions. The tree
// packages fill this in themselves via direct type assertions — rbtree
// against ParentOps[N], bptree against PrevLinkOps[N] — since the
// assertions need N known, which only the calling package has, so there
// is no generic DetectCapabilities helper here. HasRefHolder is never
// set by any package in this module.
type Capabilities struct {
	HasParent    bool
	HasPrevLink  bool
	HasRefHolder bool
}
