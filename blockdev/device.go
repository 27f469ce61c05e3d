// Package blockdev defines the synchronous block-device contract the
// rest of the on-device layers are built over, plus fixed-window and
// interleaved-stride views, a typed read/write helper, and an optional
// fixed-capacity LRU cache. Grounded on
// _examples/original_source/include/sffs.h's BlockDeviceExt/BlockView
// classes, cross-checked against
// _examples/other_examples/8827d500_yamitzky-xlrd-go__xlrd-compdoc.go.go's
// flat byte-backed compound-document layout (the same OLE2/CFB family
// this repo's cfb package implements on top of this contract).
package blockdev

import "io"

// Device is the synchronous block-addressed backing store. Read/Write
// never partially fail on an in-bounds request; OutOfRange is the
// caller's responsibility to detect via MaxSize before addressing past
// it (§4.5).
type Device interface {
	// ReadAt reads len(buf) bytes starting at addr. Returns the number
	// of bytes actually read and an error (io.EOF-style short reads are
	// reported via the returned count, matching io.ReaderAt semantics).
	ReadAt(addr int64, buf []byte) (int, error)
	// WriteAt writes len(buf) bytes starting at addr, growing the
	// backing store if it is resizable and addr+len(buf) exceeds the
	// current MaxSize; fixed-size devices reject writes past MaxSize.
	WriteAt(addr int64, buf []byte) (int, error)
	// MaxSize returns the device's current addressable byte count.
	MaxSize() int64
}

// Flusher is the optional capability a Device may implement to persist
// buffered writes. Checked via type assertion in Sync, mirroring the
// original's device_traits has_flush detection (SUPPLEMENTED item 2).
type Flusher interface {
	Flush() error
}

// Sync flushes dev if it implements Flusher, and is a no-op otherwise.
func Sync(dev Device) error {
	if f, ok := dev.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// MemDevice is a fixed-capacity, in-memory Device backed by a single
// byte slice — used by tests and by §8 scenario 3's "memory device
// 10 MiB" fixture.
type MemDevice struct {
	buf []byte
}

// NewMemDevice allocates a zero-filled in-memory device of size bytes.
func NewMemDevice(size int64) *MemDevice {
	return &MemDevice{buf: make([]byte, size)}
}

func (d *MemDevice) MaxSize() int64 { return int64(len(d.buf)) }

func (d *MemDevice) ReadAt(addr int64, buf []byte) (int, error) {
	if addr < 0 || addr > int64(len(d.buf)) {
		return 0, io.ErrUnexpectedEOF
	}
	n := copy(buf, d.buf[addr:])
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

func (d *MemDevice) WriteAt(addr int64, buf []byte) (int, error) {
	if addr < 0 || addr+int64(len(buf)) > int64(len(d.buf)) {
		return 0, io.ErrShortWrite
	}
	return copy(d.buf[addr:], buf), nil
}

// FileDevice is an *os.File-backed Device, used so sffs.Open/Format can
// work against a real path (§8 "Reopening an image...").
type FileDevice struct {
	f    fileHandle
	size int64
}

// fileHandle is the slice of *os.File that FileDevice needs, kept
// narrow so tests can substitute an in-memory stand-in without dragging
// in the os package.
type fileHandle interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Sync() error
}

// NewFileDevice wraps an already-open file whose current size is size
// bytes (e.g. from os.File.Stat().Size()).
func NewFileDevice(f fileHandle, size int64) *FileDevice {
	return &FileDevice{f: f, size: size}
}

func (d *FileDevice) MaxSize() int64 { return d.size }

func (d *FileDevice) ReadAt(addr int64, buf []byte) (int, error) {
	return d.f.ReadAt(buf, addr)
}

func (d *FileDevice) WriteAt(addr int64, buf []byte) (int, error) {
	end := addr + int64(len(buf))
	if end > d.size {
		if err := d.f.Truncate(end); err != nil {
			return 0, err
		}
		d.size = end
	}
	return d.f.WriteAt(buf, addr)
}

func (d *FileDevice) Flush() error { return d.f.Sync() }
