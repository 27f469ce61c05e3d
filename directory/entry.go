// Package directory implements the directory table (spec §3, §4.9): the
// 128-byte on-device entry record and the per-directory RB-tree of
// children, driven by rbtree.Tree over an adapter whose node type is the
// 32-bit entry id and whose holder is the child's own name. Grounded on
// spec.md §3's record field list (an OLE2/CFB-family layout, cross-
// checked against
// _examples/other_examples/8827d500_yamitzky-xlrd-go__xlrd-compdoc.go.go's
// DirNode parsing of the same record family) and on §4.9's "children are
// linked through an RB-tree rooted at the parent's child field."
package directory

import (
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// EntryType enumerates the record's type field (spec §3).
type EntryType uint8

const (
	TypeEmpty EntryType = iota
	TypeRoot
	TypeUserStorage
	TypeUserStream
	TypeLockBytes
	TypeProperty
)

// Color mirrors rbtree.Color, duplicated here so the record codec in
// this file does not need rbtree just to name the bit it persists.
type Color uint8

const (
	Black Color = iota
	Red
)

const (
	// NullEntryID is the reserved "no entry" id (spec §3).
	NullEntryID uint32 = 0xFFFFFFFF
	// RecordSize is the fixed on-device size of one directory entry.
	RecordSize = 128

	maxNameBytes = 64 // 32 UTF-16 code units, NUL-padded

	offName      = 0
	offNameLen   = 64
	offType      = 66
	offColor     = 67
	offLeft      = 68
	offRight     = 72
	offChild     = 76
	offStreamUID = 80
	offFlags     = 96
	offCreated   = 100
	offModified  = 108
	offHeadSec   = 116
	offSize      = 120
)

// ErrNameTooLong is returned when a name does not fit in the fixed
// 32-code-unit field.
var ErrNameTooLong = errors.New("directory: name too long")

// Entry is the in-memory form of one 128-byte directory record. Name is
// kept as a UTF-8 string; it is transcoded to/from UTF-16LE only at the
// record encode/decode boundary (spec §6 "Names in directory entries are
// UTF-16 little-endian").
type Entry struct {
	Name       string
	Type       EntryType
	Color      Color
	Left       uint32
	Right      uint32
	Child      uint32
	StreamUID  [16]byte
	Flags      uint32
	Created    time.Time
	Modified   time.Time
	HeadSector uint32
	Size       uint64
}

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeRecord serializes e into a RecordSize-byte record.
func EncodeRecord(e Entry) ([]byte, error) {
	nameBytes, _, err := transform.Bytes(utf16LE.NewEncoder(), []byte(e.Name))
	if err != nil {
		return nil, err
	}
	if len(nameBytes) > maxNameBytes {
		return nil, ErrNameTooLong
	}

	buf := make([]byte, RecordSize)
	copy(buf[offName:offName+maxNameBytes], nameBytes)
	binary.LittleEndian.PutUint16(buf[offNameLen:], uint16(len(nameBytes)))
	buf[offType] = byte(e.Type)
	buf[offColor] = byte(e.Color)
	binary.LittleEndian.PutUint32(buf[offLeft:], e.Left)
	binary.LittleEndian.PutUint32(buf[offRight:], e.Right)
	binary.LittleEndian.PutUint32(buf[offChild:], e.Child)
	copy(buf[offStreamUID:offStreamUID+16], e.StreamUID[:])
	binary.LittleEndian.PutUint32(buf[offFlags:], e.Flags)
	binary.LittleEndian.PutUint64(buf[offCreated:], uint64(e.Created.UnixNano()))
	binary.LittleEndian.PutUint64(buf[offModified:], uint64(e.Modified.UnixNano()))
	binary.LittleEndian.PutUint32(buf[offHeadSec:], e.HeadSector)
	binary.LittleEndian.PutUint64(buf[offSize:], e.Size)
	return buf, nil
}

// DecodeRecord parses a RecordSize-byte record into an Entry.
func DecodeRecord(buf []byte) (Entry, error) {
	var e Entry
	if len(buf) < RecordSize {
		return e, errors.New("directory: short record")
	}
	nameLen := binary.LittleEndian.Uint16(buf[offNameLen:])
	if int(nameLen) > maxNameBytes {
		return e, errors.New("directory: corrupt name length")
	}
	nameUTF8, _, err := transform.Bytes(utf16LE.NewDecoder(), buf[offName:offName+int(nameLen)])
	if err != nil {
		return e, err
	}
	e.Name = string(nameUTF8)
	e.Type = EntryType(buf[offType])
	e.Color = Color(buf[offColor])
	e.Left = binary.LittleEndian.Uint32(buf[offLeft:])
	e.Right = binary.LittleEndian.Uint32(buf[offRight:])
	e.Child = binary.LittleEndian.Uint32(buf[offChild:])
	copy(e.StreamUID[:], buf[offStreamUID:offStreamUID+16])
	e.Flags = binary.LittleEndian.Uint32(buf[offFlags:])
	e.Created = time.Unix(0, int64(binary.LittleEndian.Uint64(buf[offCreated:])))
	e.Modified = time.Unix(0, int64(binary.LittleEndian.Uint64(buf[offModified:])))
	e.HeadSector = binary.LittleEndian.Uint32(buf[offHeadSec:])
	e.Size = binary.LittleEndian.Uint64(buf[offSize:])
	return e, nil
}

// nameUnitCount returns the UTF-16 code-unit length of s, used by
// nameLess's primary sort key.
func nameUnitCount(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// nameLess orders names primarily by UTF-16 code-unit length, then
// lexicographically by Unicode code point — the directory's child
// ordering (spec §4.9 "compared primarily by UTF-16 code-unit length,
// then lexicographically — matching the inherited format").
func nameLess(a, b string) bool {
	la, lb := nameUnitCount(a), nameUnitCount(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
