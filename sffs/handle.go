package sffs

import (
	"strings"

	set3 "github.com/TomTonic/Set3"
	"github.com/lidotcircle/sffs/treeops"
)

// OpenMode is the façade's combinable open-mode bitmask (§4.10 "Open
// modes"). Exactly one of Read/Write must be requested; Create/Append/
// Truncate are orthogonal modifiers.
type OpenMode uint8

const (
	ModeRead OpenMode = 1 << iota
	ModeWrite
	ModeCreate
	ModeAppend
	ModeTruncate
)

func (m OpenMode) has(f OpenMode) bool { return m&f != 0 }

// flagShort marks an entry's stream as currently short-chain-backed
// (SPEC_FULL §2.11 note: reuses the directory record's Flags field
// rather than adding a new record column for a single bit).
const flagShort uint32 = 1 << 0

// chainStream is the shape shared by cfb.Stream and cfb.ShortStream —
// an open file's bytes are read/written through whichever one the
// entry's current short/long routing selects, without the rest of this
// package caring which (§4.10 "Short/long routing").
type chainStream interface {
	Read(addr int64, buf []byte) (int, error)
	Write(addr int64, buf []byte) (int, error)
	SizeSectors() (int64, error)
	AppendSector() (int64, error)
	DeleteLastSector() error
	DeleteStream() error
	Fillzeros(a, b int64) error
	Head() uint32
}

// entryNode is the open-file node of §4.10's "Handle model": the
// state shared by every handle open on the same entry. refCount
// tracks how many handles (file or directory) currently reference it;
// the node is evicted from handleTable.nodes once it drops to zero.
type entryNode struct {
	entryID    uint32
	size       uint64
	headSector uint32
	short      bool
	refCount   int
}

// openHandle is one caller-visible handle: a position into a shared node.
type openHandle struct {
	node *entryNode
	mode OpenMode
	pos  int64
}

// handleTable is the façade's process-local handle table (§4.10
// "indexes a process-local map to an open-file node"). File handles and
// directory handles share one id space and one openRefs index, keyed
// by entry id, so unlink/move need only consult a single set per entry
// (SPEC_FULL §2 "sffs.File's package-local open-handle table", adapted
// here to the façade level since handles, not File values, are what the
// spec's API exposes).
type handleTable struct {
	nodes      map[uint32]*entryNode
	handles    map[int]*openHandle
	dirHandles map[int]uint32
	openRefs   map[uint32]*set3.Set3[int]
	next       int
}

func newHandleTable() *handleTable {
	return &handleTable{
		nodes:      make(map[uint32]*entryNode),
		handles:    make(map[int]*openHandle),
		dirHandles: make(map[int]uint32),
		openRefs:   make(map[uint32]*set3.Set3[int]),
	}
}

func (ht *handleTable) addRef(entryID uint32, handleID int) {
	s, ok := ht.openRefs[entryID]
	if !ok {
		s = set3.Empty[int]()
		ht.openRefs[entryID] = s
	}
	s.Add(handleID)
}

func (ht *handleTable) removeRef(entryID uint32, handleID int) {
	if s, ok := ht.openRefs[entryID]; ok {
		s.Remove(handleID)
		if s.Size() == 0 {
			delete(ht.openRefs, entryID)
		}
	}
}

func (ht *handleTable) hasOpenRefs(entryID uint32) bool {
	s, ok := ht.openRefs[entryID]
	return ok && s.Size() > 0
}

// acquireNode returns the shared node for entryID, constructing it from
// the on-device entry on first reference.
func (ht *handleTable) acquireNode(entryID uint32, size uint64, headSector uint32, short bool) *entryNode {
	if n, ok := ht.nodes[entryID]; ok {
		n.refCount++
		return n
	}
	n := &entryNode{entryID: entryID, size: size, headSector: headSector, short: short, refCount: 1}
	ht.nodes[entryID] = n
	return n
}

func (ht *handleTable) releaseNode(n *entryNode) {
	n.refCount--
	if n.refCount <= 0 {
		delete(ht.nodes, n.entryID)
	}
}

// splitPath breaks a slash-separated path into NFC-normalized, non-empty
// segments (§4.10 "A path is a list of names"; normalization is a
// SPEC_FULL addition, §2 "x/text/unicode/norm").
func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	segs := make([]string, 0, len(raw))
	for _, r := range raw {
		if r == "" {
			continue
		}
		segs = append(segs, string(treeops.NormalizeName(r)))
	}
	return segs
}
