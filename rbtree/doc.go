// Package rbtree implements a red-black tree generic over a caller-supplied
// node storage adapter (treeops), grounded on _examples/original_source's
// rbtree.h. The algorithm never allocates or addresses memory itself: every
// structural edge (left/right child, color, parent) is read and written
// through the Ops contract, so the same insert/delete/fixup code runs
// whether N is a Go pointer, a slice index, or an on-device sector id.
//
// Two traversal representations exist side by side: a Path (root-to-node
// stack, §9 "path stacks of bounded height") is always available and is
// what Find/LowerBound/UpperBound/Begin/End return; adapters that also
// implement treeops.ParentOps get their parent links kept in sync on every
// rotation as an O(1) auxiliary index, even though the fixup algorithms
// below always drive off the path stack.
package rbtree
