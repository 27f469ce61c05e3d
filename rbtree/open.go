package rbtree

// Open reattaches a Tree to an already-populated subtree rooted at root,
// instead of New's always-starts-empty root — used when the tree's
// structural root is itself persisted externally to the Tree value (the
// directory table stores each storage entry's child-tree root in that
// entry's own Child field, spec §4.9, and rebuilds a Tree over it on
// demand rather than keeping one Tree instance alive per directory).
// Size is recomputed by one walk over root, since nothing else tracks it
// across process lifetimes.
func Open[K any, H comparable, N comparable](ops Ops[K, H, N], root N, opts ...Option) *Tree[K, H, N] {
	t := New(ops, opts...)
	t.root = root
	t.size = t.countNodes(root)
	return t
}

func (t *Tree[K, H, N]) countNodes(n N) int {
	if t.ops.IsNull(n) {
		return 0
	}
	return 1 + t.countNodes(t.ops.GetLeft(n)) + t.countNodes(t.ops.GetRight(n))
}
