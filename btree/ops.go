package btree

import "github.com/lidotcircle/sffs/treeops"

// Ops is the storage adapter a Tree is built over. A node holds a
// variable-length, order-bounded run of holders and, when internal, one
// more child than it has holders.
type Ops[K any, H comparable, N comparable] interface {
	treeops.NodeLifecycle[N]
	treeops.KeyedHolder[K, H]

	// Order returns t, the tree's minimum degree: every non-root node
	// holds between t-1 and 2t-1 holders.
	Order() int

	IsLeaf(n N) bool
	SetLeaf(n N, leaf bool)

	NumKeys(n N) int
	GetHolderAt(n N, i int) H
	SetHolderAt(n N, i int, h H)
	InsertHolderAt(n N, i int, h H)
	RemoveHolderAt(n N, i int) H

	GetChildAt(n N, i int) N
	InsertChildAt(n N, i int, c N)
	RemoveChildAt(n N, i int) N
}

// pathEntry records, for every level but the last, the child index taken
// to descend further; for the last level, the index of the matched key.
type pathEntry[N comparable] struct {
	node N
	idx  int
}

// Path is a root-to-key descent chain, analogous to rbtree.Path but
// additionally tracking the matched key's position within its node since
// a B-tree node holds many keys.
type Path[N comparable] struct {
	entries []pathEntry[N]
}

func (p Path[N]) IsNull() bool { return len(p.entries) == 0 }

// Node returns the node holding the referenced key.
func (p Path[N]) Node() N { return p.entries[len(p.entries)-1].node }

// KeyIndex returns the key's position within Node().
func (p Path[N]) KeyIndex() int { return p.entries[len(p.entries)-1].idx }

func clonePath[N comparable](p Path[N]) []pathEntry[N] {
	out := make([]pathEntry[N], len(p.entries))
	copy(out, p.entries)
	return out
}
