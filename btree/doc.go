// Package btree implements a classic order-t (minimum-degree-t) B-tree
// over a caller-supplied node storage adapter, grounded on
// _examples/original_source/include/btree.h. Nodes carry up to 2t-1
// holders and, when internal, 2t children; Insert splits full nodes on
// the way down, Delete merges or rotates under-full children on the way
// down, so a single root-to-leaf descent never has to backtrack.
//
// Unlike rbtree, a B-tree delete must decide rebalancing moves before it
// even knows whether the target key is present at the current level (a
// child must already hold >= t keys before the algorithm is willing to
// descend into it), which would invalidate any Path captured by an
// earlier Find. Delete therefore takes the key directly and re-walks
// from the root in one pass, the same contract the original header
// documents for its own b_tree_algo::erase.
package btree
