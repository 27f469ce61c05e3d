package bptree

import "github.com/lidotcircle/sffs/treeops"

// Ops is the storage adapter a Tree is built over. Interior nodes carry
// routing keys (one fewer than their child count); leaf nodes carry
// holders directly and a forward link to the next leaf in key order.
type Ops[K any, H comparable, N comparable] interface {
	treeops.NodeLifecycle[N]
	treeops.KeyedHolder[K, H]

	InteriorOrder() int // max children per interior node
	LeafOrder() int     // max holders per leaf

	IsLeaf(n N) bool
	SetLeaf(n N, leaf bool)

	NumRoutingKeys(n N) int
	GetRoutingKeyAt(n N, i int) K
	SetRoutingKeyAt(n N, i int, k K)
	InsertRoutingKeyAt(n N, i int, k K)
	RemoveRoutingKeyAt(n N, i int) K

	GetChildAt(n N, i int) N
	InsertChildAt(n N, i int, c N)
	RemoveChildAt(n N, i int) N

	NumHolders(n N) int
	GetHolderAt(n N, i int) H
	InsertHolderAt(n N, i int, h H)
	RemoveHolderAt(n N, i int) H

	GetNextLeaf(n N) N
	SetNextLeaf(n N, next N)
}

type pathEntry[N comparable] struct {
	node N
	idx  int
}

// Path is a root-to-holder descent chain: every entry but the last
// records the child index taken at an interior node, and the last
// records the holder's index within its leaf.
type Path[N comparable] struct {
	entries []pathEntry[N]
}

func (p Path[N]) IsNull() bool { return len(p.entries) == 0 }

// Leaf returns the leaf node holding the referenced key.
func (p Path[N]) Leaf() N { return p.entries[len(p.entries)-1].node }

// Index returns the holder's position within Leaf().
func (p Path[N]) Index() int { return p.entries[len(p.entries)-1].idx }

func clonePath[N comparable](p Path[N]) []pathEntry[N] {
	out := make([]pathEntry[N], len(p.entries))
	copy(out, p.entries)
	return out
}
