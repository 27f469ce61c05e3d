package blockdev

import "encoding/binary"

// TypedView is additive sugar over Device: fixed-width integer
// read/write helpers so callers don't hand-roll offset arithmetic at
// every call site (SUPPLEMENTED item 1, grounded on sffs.h's
// BlockDeviceExt get<T>/set<T>). The integer codec itself stays on
// encoding/binary per spec.md §1's externalized-codec carve-out.
type TypedView struct {
	dev Device
}

// NewTypedView wraps dev with the fixed-width accessors below.
func NewTypedView(dev Device) TypedView { return TypedView{dev: dev} }

func (v TypedView) ReadUint32(addr int64) (uint32, error) {
	var buf [4]byte
	if _, err := v.dev.ReadAt(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (v TypedView) WriteUint32(addr int64, val uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], val)
	_, err := v.dev.WriteAt(addr, buf[:])
	return err
}

func (v TypedView) ReadUint16(addr int64) (uint16, error) {
	var buf [2]byte
	if _, err := v.dev.ReadAt(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (v TypedView) WriteUint16(addr int64, val uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], val)
	_, err := v.dev.WriteAt(addr, buf[:])
	return err
}

func (v TypedView) ReadUint64(addr int64) (uint64, error) {
	var buf [8]byte
	if _, err := v.dev.ReadAt(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (v TypedView) WriteUint64(addr int64, val uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)
	_, err := v.dev.WriteAt(addr, buf[:])
	return err
}
