package rbtree

import set3 "github.com/TomTonic/Set3"

// addDuplicate fans h into node's overflow set. Only called in
// AllowDuplicates mode, after the primary holder already occupies the
// same key.
func (t *Tree[K, H, N]) addDuplicate(node N, h H) {
	s, ok := t.dupSets[node]
	if !ok {
		s = set3.Empty[H]()
		t.dupSets[node] = s
	}
	s.Add(h)
	t.size++
}

// Values returns every holder stored at node: the primary holder followed
// by whatever accumulated in its duplicate set, in unspecified order.
func (t *Tree[K, H, N]) Values(node N) []H {
	out := []H{t.ops.GetHolder(node)}
	if s, ok := t.dupSets[node]; ok {
		s.ForEach(func(h H) { out = append(out, h) })
	}
	return out
}

// CountValue returns how many holders compare equal to h at node.
func (t *Tree[K, H, N]) CountValue(node N, h H) int {
	n := 0
	if t.ops.GetHolder(node) == h {
		n++
	}
	if s, ok := t.dupSets[node]; ok && s.Contains(h) {
		n++
	}
	return n
}

// RemoveValue removes one holder equal to h from the node at key. If h is
// the node's only remaining holder, the node itself is deleted via the
// normal structural path; otherwise only the matching fan-out entry (or
// the promoted replacement for the primary slot) is dropped. Returns
// whether anything was removed.
func (t *Tree[K, H, N]) RemoveValue(key K, h H) bool {
	p := t.Find(key)
	if p.IsNull() {
		return false
	}
	node := p.Node()
	primary := t.ops.GetHolder(node)
	s, hasDup := t.dupSets[node]

	if primary == h {
		if hasDup && s.Size() > 0 {
			var promoted H
			s.ForEach(func(v H) { promoted = v })
			s.Remove(promoted)
			t.ops.SetHolder(node, promoted)
			if s.Size() == 0 {
				delete(t.dupSets, node)
			}
			t.size--
			return true
		}
		_, ok := t.Delete(p)
		return ok
	}

	if hasDup && s.Contains(h) {
		s.Remove(h)
		if s.Size() == 0 {
			delete(t.dupSets, node)
		}
		t.size--
		return true
	}
	return false
}
