package blockdev

import (
	"bytes"
	"testing"
)

func TestMemDeviceReadWriteRoundTrip(t *testing.T) {
	dev := NewMemDevice(64)
	payload := []byte("hello, sffs")
	if _, err := dev.WriteAt(10, payload); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, len(payload))
	if _, err := dev.ReadAt(10, got); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadAt = %q, want %q", got, payload)
	}
}

func TestMemDeviceWriteOutOfRange(t *testing.T) {
	dev := NewMemDevice(8)
	if _, err := dev.WriteAt(4, make([]byte, 8)); err == nil {
		t.Fatalf("expected a short-write error past MaxSize")
	}
}

func TestBlockViewWindow(t *testing.T) {
	dev := NewMemDevice(64)
	view := NewBlockView(dev, 16, 8)
	if _, err := view.WriteAt(0, []byte("ABCDEFGH")); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, 8)
	if _, err := dev.ReadAt(16, got); err != nil {
		t.Fatalf("ReadAt on underlying device: %v", err)
	}
	if string(got) != "ABCDEFGH" {
		t.Fatalf("underlying device = %q, want ABCDEFGH", got)
	}
	if _, err := view.WriteAt(4, []byte("TOOLONG!")); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange past the window, got %v", err)
	}
}

func TestBlockStrideViewTranslation(t *testing.T) {
	dev := NewMemDevice(128)
	// 4 slots of 8 bytes, spaced 16 bytes apart, starting at offset 0.
	view := NewBlockStrideView(dev, 0, 8, 16, 4)
	for i := int64(0); i < 4; i++ {
		buf := bytes.Repeat([]byte{byte('A' + i)}, 8)
		if _, err := view.WriteAt(i*8, buf); err != nil {
			t.Fatalf("WriteAt slot %d: %v", i, err)
		}
	}
	for i := int64(0); i < 4; i++ {
		got := make([]byte, 8)
		if _, err := dev.ReadAt(i*16, got); err != nil {
			t.Fatalf("ReadAt physical slot %d: %v", i, err)
		}
		want := bytes.Repeat([]byte{byte('A' + i)}, 8)
		if !bytes.Equal(got, want) {
			t.Fatalf("physical slot %d = %q, want %q", i, got, want)
		}
	}
}

func TestTypedViewUint32RoundTrip(t *testing.T) {
	dev := NewMemDevice(64)
	tv := NewTypedView(dev)
	if err := tv.WriteUint32(8, 0xDEADBEEF); err != nil {
		t.Fatalf("WriteUint32: %v", err)
	}
	got, err := tv.ReadUint32(8)
	if err != nil {
		t.Fatalf("ReadUint32: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("ReadUint32 = %#x, want 0xDEADBEEF", got)
	}
}

func TestCachedDeviceServesFromCacheAndWritesThrough(t *testing.T) {
	dev := NewMemDevice(64)
	cached := NewCachedDevice(dev, 16, 2)

	if _, err := cached.WriteAt(0, []byte("0123456789ABCDEF")); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	underlying := make([]byte, 16)
	if _, err := dev.ReadAt(0, underlying); err != nil {
		t.Fatalf("ReadAt underlying: %v", err)
	}
	if string(underlying) != "0123456789ABCDEF" {
		t.Fatalf("write-through missed the underlying device: %q", underlying)
	}

	got := make([]byte, 16)
	if _, err := cached.ReadAt(0, got); err != nil {
		t.Fatalf("ReadAt cached: %v", err)
	}
	if string(got) != "0123456789ABCDEF" {
		t.Fatalf("cached read = %q, want 0123456789ABCDEF", got)
	}

	if err := cached.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
