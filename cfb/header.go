// Package cfb implements the compound-file-binary on-device layers:
// the fixed 512-byte header and MSAT (§4.6), the sector allocation
// table (§4.7), and the sector-chain stream (§4.8). Grounded on
// _examples/original_source/include/sffs.h's header/SAT/MSAT/stream
// classes and cross-checked against
// _examples/other_examples/8827d500_yamitzky-xlrd-go__xlrd-compdoc.go.go,
// a Go reading of the same OLE2/CFB format family.
package cfb

import (
	"encoding/binary"
	"errors"

	"github.com/lidotcircle/sffs/blockdev"
)

// Reserved sector ids (§3). Arithmetic constructing a sector id must
// stay below reservedLowest (§9 "Reserved sector id collisions").
const (
	EndOfChain     uint32 = 0xFFFFFFFE
	NotUsed        uint32 = 0xFFFFFFFF
	SATUsed        uint32 = 0xFFFFFFFD
	MSATUsed       uint32 = 0xFFFFFFFC
	NotApplicable  uint32 = 0xFFFFFFFB
	reservedLowest uint32 = 0xFFFFFFFB
)

const (
	HeaderSize          = 512
	signatureOffset     = 0
	revisionOffset      = 24
	majorVersionOffset  = 26
	byteOrderOffset     = 28
	sectorShiftOffset   = 30
	shortShiftOffset    = 32
	satCountOffset      = 44
	dirHeadOffset       = 48
	thresholdOffset     = 56
	ssatHeadOffset      = 60
	ssatCountOffset     = 64
	msatHeadOffset      = 68
	msatCountOffset     = 72
	msatInHeaderOffset  = 76
	msatInHeaderEntries = 109

	formattedRevision  = 0x003E
	byteOrderLittle    = 0xFFFE // stored as bytes FE FF little-endian
)

var signature = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

var (
	ErrBadFormat     = errors.New("cfb: bad format")
	ErrSectorTooHuge = errors.New("cfb: sector shift out of range")
)

// Header is the in-memory mirror of the 512-byte on-device header
// (§4.6), plus the 109 in-header MSAT entries.
type Header struct {
	Revision     uint16
	MajorVersion uint16
	SectorShift  uint16 // s
	ShortShift   uint16 // ss
	SATCount     uint32
	DirHead      uint32
	Threshold    uint32
	SSATHead     uint32
	SSATCount    uint32
	MSATHead     uint32
	MSATCount    uint32
	MSATInHeader [msatInHeaderEntries]uint32
}

// SectorSize returns 2^SectorShift.
func (h *Header) SectorSize() int64 { return int64(1) << h.SectorShift }

// ShortSectorSize returns 2^ShortShift.
func (h *Header) ShortSectorSize() int64 { return int64(1) << h.ShortShift }

// NewHeader builds a freshly formatted header (§4.6), version 3 or 4,
// with all MSAT entries unused and no SAT/MSAT/SSAT chain yet.
func NewHeader(sectorShift, shortShift uint16, majorVersion uint16, threshold uint32) (*Header, error) {
	if sectorShift < 1 || sectorShift > 25 {
		return nil, ErrSectorTooHuge
	}
	if shortShift < 1 || shortShift >= sectorShift {
		return nil, ErrBadFormat
	}
	if majorVersion != 3 && majorVersion != 4 {
		return nil, ErrBadFormat
	}
	h := &Header{
		Revision:     formattedRevision,
		MajorVersion: majorVersion,
		SectorShift:  sectorShift,
		ShortShift:   shortShift,
		DirHead:      EndOfChain,
		SSATHead:     EndOfChain,
		MSATHead:     EndOfChain,
		Threshold:    threshold,
	}
	for i := range h.MSATInHeader {
		h.MSATInHeader[i] = NotUsed
	}
	return h, nil
}

// ReadHeader reads and validates the header from dev at offset 0.
func ReadHeader(dev blockdev.Device) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := dev.ReadAt(0, buf); err != nil {
		return nil, err
	}

	for i, b := range signature {
		if buf[signatureOffset+i] != b {
			return nil, ErrBadFormat
		}
	}
	order := binary.LittleEndian.Uint16(buf[byteOrderOffset:])
	if order != byteOrderLittle {
		return nil, ErrBadFormat
	}

	h := &Header{}
	h.Revision = binary.LittleEndian.Uint16(buf[revisionOffset:])
	h.MajorVersion = binary.LittleEndian.Uint16(buf[majorVersionOffset:])
	if h.MajorVersion != 3 && h.MajorVersion != 4 {
		return nil, ErrBadFormat
	}
	h.SectorShift = binary.LittleEndian.Uint16(buf[sectorShiftOffset:])
	if h.SectorShift < 1 || h.SectorShift > 25 {
		return nil, ErrSectorTooHuge
	}
	h.ShortShift = binary.LittleEndian.Uint16(buf[shortShiftOffset:])
	if h.ShortShift < 1 || h.ShortShift >= h.SectorShift {
		return nil, ErrBadFormat
	}
	h.SATCount = binary.LittleEndian.Uint32(buf[satCountOffset:])
	h.DirHead = binary.LittleEndian.Uint32(buf[dirHeadOffset:])
	h.Threshold = binary.LittleEndian.Uint32(buf[thresholdOffset:])
	h.SSATHead = binary.LittleEndian.Uint32(buf[ssatHeadOffset:])
	h.SSATCount = binary.LittleEndian.Uint32(buf[ssatCountOffset:])
	h.MSATHead = binary.LittleEndian.Uint32(buf[msatHeadOffset:])
	h.MSATCount = binary.LittleEndian.Uint32(buf[msatCountOffset:])
	for i := 0; i < msatInHeaderEntries; i++ {
		h.MSATInHeader[i] = binary.LittleEndian.Uint32(buf[msatInHeaderOffset+i*4:])
	}
	return h, nil
}

// WriteHeader serializes h to dev at offset 0.
func WriteHeader(dev blockdev.Device, h *Header) error {
	buf := make([]byte, HeaderSize)
	copy(buf[signatureOffset:], signature[:])
	binary.LittleEndian.PutUint16(buf[revisionOffset:], formattedRevision)
	binary.LittleEndian.PutUint16(buf[majorVersionOffset:], h.MajorVersion)
	binary.LittleEndian.PutUint16(buf[byteOrderOffset:], byteOrderLittle)
	binary.LittleEndian.PutUint16(buf[sectorShiftOffset:], h.SectorShift)
	binary.LittleEndian.PutUint16(buf[shortShiftOffset:], h.ShortShift)
	binary.LittleEndian.PutUint32(buf[satCountOffset:], h.SATCount)
	binary.LittleEndian.PutUint32(buf[dirHeadOffset:], h.DirHead)
	binary.LittleEndian.PutUint32(buf[thresholdOffset:], h.Threshold)
	binary.LittleEndian.PutUint32(buf[ssatHeadOffset:], h.SSATHead)
	binary.LittleEndian.PutUint32(buf[ssatCountOffset:], h.SSATCount)
	binary.LittleEndian.PutUint32(buf[msatHeadOffset:], h.MSATHead)
	binary.LittleEndian.PutUint32(buf[msatCountOffset:], h.MSATCount)
	for i := 0; i < msatInHeaderEntries; i++ {
		binary.LittleEndian.PutUint32(buf[msatInHeaderOffset+i*4:], h.MSATInHeader[i])
	}
	_, err := dev.WriteAt(0, buf)
	return err
}

// IsReservedSectorID reports whether id falls in the reserved high end
// of the 32-bit sector-id space (§9 "Reserved sector id collisions").
func IsReservedSectorID(id uint32) bool { return id >= reservedLowest }
