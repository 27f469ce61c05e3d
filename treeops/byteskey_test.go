package treeops

import "testing"

func TestByteKeyLessAndEqual(t *testing.T) {
	a := ByteKey("abc")
	b := ByteKey("abd")
	if !a.Less(b) {
		t.Fatalf("expected %q < %q", a, b)
	}
	if b.Less(a) {
		t.Fatalf("did not expect %q < %q", b, a)
	}
	if !a.Equal(ByteKey("abc")) {
		t.Fatalf("expected equal copies to compare equal")
	}
}

func TestByteKeyPrefixOrdering(t *testing.T) {
	short := ByteKey("ab")
	long := ByteKey("abc")
	if !short.Less(long) {
		t.Fatalf("shorter prefix should sort before longer string sharing it")
	}
}

func TestByteKeyCloneIsIndependent(t *testing.T) {
	src := ByteKey("hello")
	clone := src.Clone()
	src[0] = 'H'
	if clone.Equal(src) {
		t.Fatalf("clone should not be affected by mutation of source")
	}
}

func TestNormalizeNameNFC(t *testing.T) {
	precomposed := NormalizeName("ä")
	decomposed := NormalizeName("ä")
	if !precomposed.Equal(decomposed) {
		t.Fatalf("expected NFC-normalized forms to be byte-equal, got %v vs %v", precomposed, decomposed)
	}
}
