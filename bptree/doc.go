// Package bptree implements a B+-tree: all holders live in leaves, which
// are singly linked (doubly linked when the adapter implements
// treeops.PrevLinkOps) into a flat ascending sequence; interior nodes
// carry routing keys only, copies used for descent and never removed
// from their subtrees. Grounded on
// _examples/original_source/include/bptree.h.
//
// Delete rebalances on descent, as btree does. Insert instead splits
// overfull nodes bottom-up, after the holder has landed in its leaf.
// InitWithAscSequence additionally offers the bulk-load path bptree.h
// documents: given an already-sorted sequence, it packs leaves and
// interior levels directly instead of running N individual inserts.
package bptree
