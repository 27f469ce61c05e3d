package treeops

import "golang.org/x/text/unicode/norm"

// ByteKey is a byte-slice key compared byte-wise, the same representation
// and comparison idiom the teacher library uses for its own Key type
// (TomTonic/multimap's key.go), rewritten here as a tree-agnostic helper
// rather than a package-level exported type: callers that need an
// ordered byte-string key (directory entry names, façade path segments)
// embed this comparator instead of re-deriving byte-wise ordering
// themselves.
type ByteKey []byte

// Less reports whether k sorts strictly before other under plain
// lexicographic byte order.
func (k ByteKey) Less(other ByteKey) bool {
	n := len(k)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return len(k) < len(other)
}

// Equal reports byte-wise equality.
func (k ByteKey) Equal(other ByteKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of k.
func (k ByteKey) Clone() ByteKey {
	if k == nil {
		return nil
	}
	out := make([]byte, len(k))
	copy(out, k)
	return out
}

// NormalizeName returns the NFC-normalized UTF-8 bytes of s. Used at the
// façade boundary (sffs path-segment lookup/insert, directory entry
// creation) so that byte-distinct but canonically equal Unicode names
// (precomposed vs. decomposed diacritics) compare equal, the same
// guarantee the teacher's FromString gives its callers.
func NormalizeName(s string) ByteKey {
	return ByteKey(norm.NFC.String(s))
}
