package rbtree

import (
	"fmt"

	set3 "github.com/TomTonic/Set3"
	"github.com/lidotcircle/sffs/treeops"
)

// Color is the two-valued red-black tag. The null node is conventionally
// black (colorOf returns Black for it without looking at storage).
type Color uint8

const (
	Black Color = iota
	Red
)

// Ops is the storage adapter a Tree is built over. K is the ordering key,
// H is the holder (payload) stored at a node, N is the opaque node handle.
type Ops[K any, H comparable, N comparable] interface {
	treeops.NodeLifecycle[N]
	treeops.KeyedHolder[K, H]

	GetLeft(n N) N
	SetLeft(n N, left N)
	GetRight(n N) N
	SetRight(n N, right N)
	GetColor(n N) Color
	SetColor(n N, c Color)

	GetHolder(n N) H
	SetHolder(n N, h H)
}

// Tree is a red-black tree over holders of type H keyed by K, addressed
// through node handles N supplied by Ops.
type Tree[K any, H comparable, N comparable] struct {
	ops             Ops[K, H, N]
	root            N
	caps            treeops.Capabilities
	allowDuplicates bool
	dupSets         map[N]*set3.Set3[H]
	size            int
}

// Option configures New.
type Option func(*config)

type config struct {
	allowDuplicates bool
}

// AllowDuplicates switches the tree into multiset mode: Insert never
// rejects a key already present, instead fanning the holder out into a
// per-node Set3 alongside the node's primary holder (spec §9 "first-class
// multi-key mode").
func AllowDuplicates(c *config) { c.allowDuplicates = true }

// New builds an empty tree over ops. Capabilities are probed once here via
// type assertion, since only the caller's package knows N concretely.
func New[K any, H comparable, N comparable](ops Ops[K, H, N], opts ...Option) *Tree[K, H, N] {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	t := &Tree[K, H, N]{
		ops:             ops,
		root:            ops.NullNode(),
		allowDuplicates: cfg.allowDuplicates,
	}
	if _, ok := ops.(treeops.ParentOps[N]); ok {
		t.caps.HasParent = true
	}
	if cfg.allowDuplicates {
		t.dupSets = make(map[N]*set3.Set3[H])
	}
	return t
}

// Size returns the number of holders stored, including multiset fan-out.
func (t *Tree[K, H, N]) Size() int { return t.size }

// Root exposes the current root handle (null on an empty tree).
func (t *Tree[K, H, N]) Root() N { return t.root }

func (t *Tree[K, H, N]) colorOf(n N) Color {
	if t.ops.IsNull(n) {
		return Black
	}
	return t.ops.GetColor(n)
}

func (t *Tree[K, H, N]) setParentIfSupported(n, parent N) {
	if !t.caps.HasParent || t.ops.IsNull(n) {
		return
	}
	t.ops.(treeops.ParentOps[N]).SetParent(n, parent)
}

// attachToParent relinks parent's child pointer (or the tree root) that
// used to point at oldChild so that it points at newChild instead.
func (t *Tree[K, H, N]) attachToParent(newChild, parent, oldChild N) {
	if t.ops.IsNull(parent) {
		t.root = newChild
		return
	}
	if t.ops.NodeEqual(t.ops.GetLeft(parent), oldChild) {
		t.ops.SetLeft(parent, newChild)
	} else {
		t.ops.SetRight(parent, newChild)
	}
}

// rotateLeft rotates the subtree rooted at x left, x's known parent given
// explicitly since path-stack mode never stores a parent link on the node
// itself. Returns the node now occupying x's old position.
func (t *Tree[K, H, N]) rotateLeft(x, parent N) N {
	y := t.ops.GetRight(x)
	beta := t.ops.GetLeft(y)
	t.ops.SetRight(x, beta)
	if !t.ops.IsNull(beta) {
		t.setParentIfSupported(beta, x)
	}
	t.ops.SetLeft(y, x)
	t.setParentIfSupported(x, y)
	t.attachToParent(y, parent, x)
	t.setParentIfSupported(y, parent)
	return y
}

func (t *Tree[K, H, N]) rotateRight(x, parent N) N {
	y := t.ops.GetLeft(x)
	beta := t.ops.GetRight(y)
	t.ops.SetLeft(x, beta)
	if !t.ops.IsNull(beta) {
		t.setParentIfSupported(beta, x)
	}
	t.ops.SetRight(y, x)
	t.setParentIfSupported(x, y)
	t.attachToParent(y, parent, x)
	t.setParentIfSupported(y, parent)
	return y
}

// Find returns the path to the node whose key equals key, or the null path.
func (t *Tree[K, H, N]) Find(key K) Path[N] {
	var stack []N
	cur := t.root
	for !t.ops.IsNull(cur) {
		stack = append(stack, cur)
		ck := t.ops.Key(t.ops.GetHolder(cur))
		switch {
		case t.ops.KeyLess(key, ck):
			cur = t.ops.GetLeft(cur)
		case t.ops.KeyLess(ck, key):
			cur = t.ops.GetRight(cur)
		default:
			return Path[N]{nodes: stack}
		}
	}
	return Path[N]{}
}

// LowerBound returns the path to the first node whose key is >= key, or
// the null path if every key sorts before it.
func (t *Tree[K, H, N]) LowerBound(key K) Path[N] {
	var stack, best []N
	cur := t.root
	for !t.ops.IsNull(cur) {
		stack = append(stack, cur)
		ck := t.ops.Key(t.ops.GetHolder(cur))
		if !t.ops.KeyLess(ck, key) {
			best = append(best[:0:0], stack...)
			cur = t.ops.GetLeft(cur)
		} else {
			cur = t.ops.GetRight(cur)
		}
	}
	if best == nil {
		return Path[N]{}
	}
	return Path[N]{nodes: best}
}

// UpperBound returns the path to the first node whose key is strictly
// greater than key, or the null path.
func (t *Tree[K, H, N]) UpperBound(key K) Path[N] {
	var stack, best []N
	cur := t.root
	for !t.ops.IsNull(cur) {
		stack = append(stack, cur)
		ck := t.ops.Key(t.ops.GetHolder(cur))
		if t.ops.KeyLess(key, ck) {
			best = append(best[:0:0], stack...)
			cur = t.ops.GetLeft(cur)
		} else {
			cur = t.ops.GetRight(cur)
		}
	}
	if best == nil {
		return Path[N]{}
	}
	return Path[N]{nodes: best}
}

// Begin returns the path to the leftmost (smallest-key) node.
func (t *Tree[K, H, N]) Begin() Path[N] {
	if t.ops.IsNull(t.root) {
		return Path[N]{}
	}
	var stack []N
	cur := t.root
	for !t.ops.IsNull(cur) {
		stack = append(stack, cur)
		cur = t.ops.GetLeft(cur)
	}
	return Path[N]{nodes: stack}
}

// End returns the null path, one-past-the-last in forward order.
func (t *Tree[K, H, N]) End() Path[N] { return Path[N]{} }

// Forward returns the in-order successor path, or the null path if p names
// the last node.
func (t *Tree[K, H, N]) Forward(p Path[N]) Path[N] {
	if p.IsNull() {
		return Path[N]{}
	}
	stack := clonePath(p)
	cur := stack[len(stack)-1]
	if right := t.ops.GetRight(cur); !t.ops.IsNull(right) {
		cur = right
		stack = append(stack, cur)
		for left := t.ops.GetLeft(cur); !t.ops.IsNull(left); left = t.ops.GetLeft(cur) {
			cur = left
			stack = append(stack, cur)
		}
		return Path[N]{nodes: stack}
	}
	for len(stack) >= 2 {
		child, parent := stack[len(stack)-1], stack[len(stack)-2]
		if t.ops.NodeEqual(t.ops.GetLeft(parent), child) {
			return Path[N]{nodes: stack[:len(stack)-1]}
		}
		stack = stack[:len(stack)-1]
	}
	return Path[N]{}
}

// Backward returns the in-order predecessor path. Called on the null path
// (End()) it returns the last node, mirroring Begin().
func (t *Tree[K, H, N]) Backward(p Path[N]) Path[N] {
	if p.IsNull() {
		if t.ops.IsNull(t.root) {
			return Path[N]{}
		}
		var stack []N
		cur := t.root
		for !t.ops.IsNull(cur) {
			stack = append(stack, cur)
			cur = t.ops.GetRight(cur)
		}
		return Path[N]{nodes: stack}
	}
	stack := clonePath(p)
	cur := stack[len(stack)-1]
	if left := t.ops.GetLeft(cur); !t.ops.IsNull(left) {
		cur = left
		stack = append(stack, cur)
		for right := t.ops.GetRight(cur); !t.ops.IsNull(right); right = t.ops.GetRight(cur) {
			cur = right
			stack = append(stack, cur)
		}
		return Path[N]{nodes: stack}
	}
	for len(stack) >= 2 {
		child, parent := stack[len(stack)-1], stack[len(stack)-2]
		if t.ops.NodeEqual(t.ops.GetRight(parent), child) {
			return Path[N]{nodes: stack[:len(stack)-1]}
		}
		stack = stack[:len(stack)-1]
	}
	return Path[N]{}
}

// Insert adds h under its key. In unique-key mode it returns false without
// modifying the tree when the key is already present; in AllowDuplicates
// mode it always succeeds, fanning duplicate keys out into a Set3.
func (t *Tree[K, H, N]) Insert(h H) bool {
	key := t.ops.Key(h)
	var stack []N
	cur := t.root
	for !t.ops.IsNull(cur) {
		stack = append(stack, cur)
		ck := t.ops.Key(t.ops.GetHolder(cur))
		switch {
		case t.ops.KeyLess(key, ck):
			cur = t.ops.GetLeft(cur)
		case t.ops.KeyLess(ck, key):
			cur = t.ops.GetRight(cur)
		default:
			if !t.allowDuplicates {
				return false
			}
			t.addDuplicate(cur, h)
			return true
		}
	}

	n := t.ops.CreateEmptyNode()
	t.ops.SetHolder(n, h)
	t.ops.SetLeft(n, t.ops.NullNode())
	t.ops.SetRight(n, t.ops.NullNode())
	t.ops.SetColor(n, Red)

	parent := t.ops.NullNode()
	if len(stack) > 0 {
		parent = stack[len(stack)-1]
	}
	t.setParentIfSupported(n, parent)
	if t.ops.IsNull(parent) {
		t.root = n
	} else if t.ops.KeyLess(key, t.ops.Key(t.ops.GetHolder(parent))) {
		t.ops.SetLeft(parent, n)
	} else {
		t.ops.SetRight(parent, n)
	}
	stack = append(stack, n)

	t.insertFixup(stack)
	t.size++
	return true
}

// insertFixup restores the red-black invariants after attaching a red leaf
// at the end of stack (root-first ancestor chain), translating CLRS
// RB-INSERT-FIXUP's parent-pointer walk into index moves over the path
// stack built during descent.
func (t *Tree[K, H, N]) insertFixup(stack []N) {
	i := len(stack) - 1
	for i > 0 {
		parent := stack[i-1]
		if t.colorOf(parent) == Black {
			break
		}
		// parent is red, so parent cannot be the root: a grandparent exists.
		grand := stack[i-2]
		greatGrand := t.ops.NullNode()
		if i-3 >= 0 {
			greatGrand = stack[i-3]
		}
		z := stack[i]

		if t.ops.NodeEqual(parent, t.ops.GetLeft(grand)) {
			uncle := t.ops.GetRight(grand)
			if t.colorOf(uncle) == Red {
				t.ops.SetColor(parent, Black)
				t.ops.SetColor(uncle, Black)
				t.ops.SetColor(grand, Red)
				i -= 2
				continue
			}
			if t.ops.NodeEqual(z, t.ops.GetRight(parent)) {
				t.rotateLeft(parent, grand)
				stack[i-1], stack[i] = z, parent
				z, parent = parent, z
			}
			t.ops.SetColor(parent, Black)
			t.ops.SetColor(grand, Red)
			t.rotateRight(grand, greatGrand)
			break
		}

		uncle := t.ops.GetLeft(grand)
		if t.colorOf(uncle) == Red {
			t.ops.SetColor(parent, Black)
			t.ops.SetColor(uncle, Black)
			t.ops.SetColor(grand, Red)
			i -= 2
			continue
		}
		if t.ops.NodeEqual(z, t.ops.GetLeft(parent)) {
			t.rotateRight(parent, grand)
			stack[i-1], stack[i] = z, parent
			z, parent = parent, z
		}
		t.ops.SetColor(parent, Black)
		t.ops.SetColor(grand, Red)
		t.rotateLeft(grand, greatGrand)
		break
	}
	if !t.ops.IsNull(t.root) {
		t.ops.SetColor(t.root, Black)
	}
}

// Delete removes the holder named by p and returns it. When p's node has
// two children, that node stays in the tree and receives its in-order
// successor's holder (and duplicate set), and the successor's node is
// the one unlinked and released; nodes do not swap positions. In
// AllowDuplicates mode, use RemoveValue to drop a single fanned-out value
// without necessarily removing the node.
func (t *Tree[K, H, N]) Delete(p Path[N]) (H, bool) {
	var zero H
	if p.IsNull() {
		return zero, false
	}
	stack := clonePath(p)
	target := stack[len(stack)-1]
	removed := t.ops.GetHolder(target)
	removedCount := 1
	if s, ok := t.dupSets[target]; ok {
		removedCount += s.Size()
		delete(t.dupSets, target)
	}

	if !t.ops.IsNull(t.ops.GetLeft(target)) && !t.ops.IsNull(t.ops.GetRight(target)) {
		cur := t.ops.GetRight(target)
		stack = append(stack, cur)
		for left := t.ops.GetLeft(cur); !t.ops.IsNull(left); left = t.ops.GetLeft(cur) {
			cur = left
			stack = append(stack, cur)
		}
		succ := cur
		t.ops.SetHolder(target, t.ops.GetHolder(succ))
		if s, ok := t.dupSets[succ]; ok {
			delete(t.dupSets, succ)
			t.dupSets[target] = s
		}
		target = succ
	}

	unlinkIdx := len(stack) - 1
	unlinkParent := t.ops.NullNode()
	if unlinkIdx > 0 {
		unlinkParent = stack[unlinkIdx-1]
	}
	isLeft := false
	if !t.ops.IsNull(unlinkParent) {
		isLeft = t.ops.NodeEqual(t.ops.GetLeft(unlinkParent), target)
	}

	child := t.ops.GetLeft(target)
	if t.ops.IsNull(child) {
		child = t.ops.GetRight(target)
	}
	removedColor := t.colorOf(target)

	t.attachToParent(child, unlinkParent, target)
	if !t.ops.IsNull(child) {
		t.setParentIfSupported(child, unlinkParent)
	}

	t.ops.SetLeft(target, t.ops.NullNode())
	t.ops.SetRight(target, t.ops.NullNode())
	t.ops.ReleaseEmptyNode(target)
	t.size -= removedCount

	if removedColor == Black {
		var ancestors []N
		if unlinkIdx >= 2 {
			ancestors = append(ancestors, stack[:unlinkIdx-1]...)
		}
		t.deleteFixup(child, unlinkParent, ancestors, isLeft)
	}

	return removed, true
}

// deleteFixup restores black-height balance after unlinking a black node.
// x is the node (possibly null) that moved into the unlinked position;
// parent/ancestors/isLeft describe x's place in the tree explicitly since
// a null x cannot carry its own parent link.
func (t *Tree[K, H, N]) deleteFixup(x, parent N, ancestors []N, isLeft bool) {
	for !t.ops.IsNull(parent) {
		if !t.ops.IsNull(x) && t.colorOf(x) == Red {
			t.ops.SetColor(x, Black)
			break
		}
		grand := t.ops.NullNode()
		if len(ancestors) > 0 {
			grand = ancestors[len(ancestors)-1]
		}

		var sibling N
		if isLeft {
			sibling = t.ops.GetRight(parent)
		} else {
			sibling = t.ops.GetLeft(parent)
		}

		if t.colorOf(sibling) == Red {
			t.ops.SetColor(sibling, Black)
			t.ops.SetColor(parent, Red)
			var newSubRoot N
			if isLeft {
				newSubRoot = t.rotateLeft(parent, grand)
			} else {
				newSubRoot = t.rotateRight(parent, grand)
			}
			ancestors = append(ancestors, newSubRoot)
			grand = newSubRoot
			if isLeft {
				sibling = t.ops.GetRight(parent)
			} else {
				sibling = t.ops.GetLeft(parent)
			}
		}

		var nearNephew, farNephew N
		if isLeft {
			nearNephew, farNephew = t.ops.GetLeft(sibling), t.ops.GetRight(sibling)
		} else {
			nearNephew, farNephew = t.ops.GetRight(sibling), t.ops.GetLeft(sibling)
		}

		if t.colorOf(nearNephew) == Black && t.colorOf(farNephew) == Black {
			t.ops.SetColor(sibling, Red)
			x = parent
			parent = grand
			if len(ancestors) > 0 {
				ancestors = ancestors[:len(ancestors)-1]
			}
			if !t.ops.IsNull(parent) {
				isLeft = t.ops.NodeEqual(t.ops.GetLeft(parent), x)
			}
			continue
		}

		if t.colorOf(farNephew) == Black {
			t.ops.SetColor(nearNephew, Black)
			t.ops.SetColor(sibling, Red)
			if isLeft {
				t.rotateRight(sibling, parent)
			} else {
				t.rotateLeft(sibling, parent)
			}
			sibling = nearNephew
			if isLeft {
				farNephew = t.ops.GetRight(sibling)
			} else {
				farNephew = t.ops.GetLeft(sibling)
			}
		}

		t.ops.SetColor(sibling, t.colorOf(parent))
		t.ops.SetColor(parent, Black)
		t.ops.SetColor(farNephew, Black)
		if isLeft {
			t.rotateLeft(parent, grand)
		} else {
			t.rotateRight(parent, grand)
		}
		break
	}
	if !t.ops.IsNull(t.root) {
		t.ops.SetColor(t.root, Black)
	}
}

// CheckConsistency walks the tree verifying binary-search-tree ordering,
// the no-red-red-edge invariant, and uniform black height on every root-
// to-leaf path (spec §8 "Testable Properties").
func (t *Tree[K, H, N]) CheckConsistency() error {
	if t.ops.IsNull(t.root) {
		return nil
	}
	if t.colorOf(t.root) != Black {
		return fmt.Errorf("rbtree: root is not black")
	}
	_, err := t.checkNode(t.root, nil, nil)
	return err
}

func (t *Tree[K, H, N]) checkNode(n N, lo, hi *K) (int, error) {
	if t.ops.IsNull(n) {
		return 0, nil
	}
	k := t.ops.Key(t.ops.GetHolder(n))
	if lo != nil && !t.ops.KeyLess(*lo, k) {
		return 0, fmt.Errorf("rbtree: key out of order at lower bound")
	}
	if hi != nil && !t.ops.KeyLess(k, *hi) {
		return 0, fmt.Errorf("rbtree: key out of order at upper bound")
	}
	if t.colorOf(n) == Red {
		if t.colorOf(t.ops.GetLeft(n)) == Red || t.colorOf(t.ops.GetRight(n)) == Red {
			return 0, fmt.Errorf("rbtree: red node has a red child")
		}
	}
	leftBH, err := t.checkNode(t.ops.GetLeft(n), lo, &k)
	if err != nil {
		return 0, err
	}
	rightBH, err := t.checkNode(t.ops.GetRight(n), &k, hi)
	if err != nil {
		return 0, err
	}
	if leftBH != rightBH {
		return 0, fmt.Errorf("rbtree: black height mismatch around key")
	}
	if t.colorOf(n) == Black {
		return leftBH + 1, nil
	}
	return leftBH, nil
}
