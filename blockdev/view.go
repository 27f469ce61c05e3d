package blockdev

import (
	"errors"
)

// ErrOutOfRange is returned by BlockView/BlockStrideView when an access
// falls outside the view's logical window (§4.5, §7 "Capacity errors").
var ErrOutOfRange = errors.New("blockdev: access out of range")

// BlockView exposes a fixed offset+length window of a Device as its own
// addressable Device, translating logical address 0 to physical
// base.
type BlockView struct {
	dev    Device
	base   int64
	length int64
}

// NewBlockView windows dev starting at base for length bytes.
func NewBlockView(dev Device, base, length int64) *BlockView {
	return &BlockView{dev: dev, base: base, length: length}
}

func (v *BlockView) MaxSize() int64 { return v.length }

func (v *BlockView) ReadAt(addr int64, buf []byte) (int, error) {
	if addr < 0 || addr+int64(len(buf)) > v.length {
		return 0, ErrOutOfRange
	}
	return v.dev.ReadAt(v.base+addr, buf)
}

func (v *BlockView) WriteAt(addr int64, buf []byte) (int, error) {
	if addr < 0 || addr+int64(len(buf)) > v.length {
		return 0, ErrOutOfRange
	}
	return v.dev.WriteAt(v.base+addr, buf)
}

// BlockStrideView exposes interleaved fixed-size slots inside a fixed
// stride: logical address a maps to physical
// base + (a/slot)*stride + a%slot (§4.5). It suits layouts that pack
// entries at a fixed offset inside otherwise occupied sectors; cfb
// reads its MSAT sectors directly from the device and does not use it.
type BlockStrideView struct {
	dev      Device
	base     int64
	slotSize int64
	stride   int64
	slots    int64
}

// NewBlockStrideView addresses slots slots of slotSize bytes each,
// spaced stride bytes apart, starting at base within dev.
func NewBlockStrideView(dev Device, base, slotSize, stride, slots int64) *BlockStrideView {
	return &BlockStrideView{dev: dev, base: base, slotSize: slotSize, stride: stride, slots: slots}
}

func (v *BlockStrideView) MaxSize() int64 { return v.slotSize * v.slots }

func (v *BlockStrideView) translate(addr int64, n int) (int64, error) {
	if addr < 0 || addr+int64(n) > v.MaxSize() {
		return 0, ErrOutOfRange
	}
	slot := addr / v.slotSize
	within := addr % v.slotSize
	if within+int64(n) > v.slotSize {
		return 0, ErrOutOfRange
	}
	return v.base + slot*v.stride + within, nil
}

func (v *BlockStrideView) ReadAt(addr int64, buf []byte) (int, error) {
	phys, err := v.translate(addr, len(buf))
	if err != nil {
		return 0, err
	}
	return v.dev.ReadAt(phys, buf)
}

func (v *BlockStrideView) WriteAt(addr int64, buf []byte) (int, error) {
	phys, err := v.translate(addr, len(buf))
	if err != nil {
		return 0, err
	}
	return v.dev.WriteAt(phys, buf)
}
