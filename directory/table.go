package directory

import (
	"errors"
	"time"

	"github.com/lidotcircle/sffs/blockdev"
	"github.com/lidotcircle/sffs/cfb"
	"github.com/lidotcircle/sffs/containers"
	"github.com/lidotcircle/sffs/rbtree"
)

var (
	ErrAlreadyExists = errors.New("directory: already exists")
	ErrNotFound      = errors.New("directory: not found")
	ErrNotADirectory = errors.New("directory: not a directory")
)

// RootEntryID is entry id 0, always the root storage entry (spec §3).
const RootEntryID uint32 = 0

// Table is the directory table: a sector-chain stream of packed 128-byte
// records, a used-entry bitmap grown alongside the stream, and the
// RB-tree machinery (spec §4.9) used transiently to navigate and mutate
// any one directory's children.
type Table struct {
	dev    blockdev.Device
	h      *cfb.Header
	sat    *cfb.SAT
	stream *cfb.Stream

	bitmap   *containers.SlotArray[struct{}]
	capacity int
}

// entriesPerSector is how many 128-byte records fit in one sector.
func entriesPerSector(h *cfb.Header) int {
	return int(h.SectorSize() / RecordSize)
}

// Format creates a brand-new directory table: one sector holding the
// root storage entry (id 0) and nothing else.
func Format(dev blockdev.Device, h *cfb.Header, sat *cfb.SAT, now time.Time) (*Table, uint32, error) {
	stream := cfb.NewStream(dev, h, sat, cfb.EndOfChain)
	t := &Table{dev: dev, h: h, sat: sat, stream: stream}
	if err := t.growCapacity(); err != nil {
		return nil, 0, err
	}

	root := Entry{
		Type:       TypeRoot,
		Color:      Black,
		Left:       NullEntryID,
		Right:      NullEntryID,
		Child:      NullEntryID,
		Created:    now,
		Modified:   now,
		HeadSector: cfb.EndOfChain,
	}
	if err := t.writeEntry(RootEntryID, root); err != nil {
		return nil, 0, err
	}
	t.bitmap.Construct(int(RootEntryID), struct{}{})
	return t, stream.Head(), nil
}

// Open reattaches a Table to an already-populated directory stream
// starting at head, rebuilding the liveness bitmap by scanning every
// currently allocated record slot.
func Open(dev blockdev.Device, h *cfb.Header, sat *cfb.SAT, head uint32) (*Table, error) {
	stream := cfb.NewStream(dev, h, sat, head)
	t := &Table{dev: dev, h: h, sat: sat, stream: stream}

	size, err := stream.SizeSectors()
	if err != nil {
		return nil, err
	}
	t.capacity = int(size) / RecordSize
	t.bitmap = containers.NewSlotArray[struct{}](t.capacity, true)
	for id := 0; id < t.capacity; id++ {
		e, err := t.readEntry(uint32(id))
		if err != nil {
			return nil, err
		}
		if e.Type != TypeEmpty {
			t.bitmap.Construct(id, struct{}{})
		}
	}
	return t, nil
}

// Head returns the directory stream's head sector id.
func (t *Table) Head() uint32 { return t.stream.Head() }

func (t *Table) readEntry(id uint32) (Entry, error) {
	buf := make([]byte, RecordSize)
	if _, err := t.stream.Read(int64(id)*RecordSize, buf); err != nil {
		return Entry{}, err
	}
	return DecodeRecord(buf)
}

func (t *Table) writeEntry(id uint32, e Entry) error {
	buf, err := EncodeRecord(e)
	if err != nil {
		return err
	}
	_, err = t.stream.Write(int64(id)*RecordSize, buf)
	return err
}

// ReadEntry exposes a read-only view of entry id, for callers above this
// package (the façade's path resolution and stat calls).
func (t *Table) ReadEntry(id uint32) (Entry, error) { return t.readEntry(id) }

// WriteEntry persists changes to an existing entry's non-structural
// fields (size, head sector, timestamps) without going through the tree
// machinery — callers must not use this to change Left/Right/Color/Name,
// which only the tree operations below may mutate consistently.
func (t *Table) WriteEntry(id uint32, e Entry) error { return t.writeEntry(id, e) }

// growCapacity appends one sector to the directory stream and extends
// the bitmap to match, zeroing the new slots (spec §4.9 "grow the
// directory stream by one sector when exhausted, zeroing the new
// entries").
func (t *Table) growCapacity() error {
	if _, err := t.stream.AppendSector(); err != nil {
		return err
	}
	newCap := t.capacity + entriesPerSector(t.h)

	blank := make([]byte, RecordSize)
	for id := t.capacity; id < newCap; id++ {
		if _, err := t.stream.Write(int64(id)*RecordSize, blank); err != nil {
			return err
		}
	}

	grown := containers.NewSlotArray[struct{}](newCap, true)
	if t.bitmap != nil {
		for id := 0; id < t.capacity; id++ {
			if t.bitmap.IsLive(id) {
				grown.Construct(id, struct{}{})
			}
		}
	}
	t.bitmap = grown
	t.capacity = newCap
	return nil
}

// allocateEntryID finds a free slot, growing the table if none remains.
func (t *Table) allocateEntryID() (uint32, error) {
	idx, ok := t.bitmap.FirstFree()
	if !ok {
		if err := t.growCapacity(); err != nil {
			return 0, err
		}
		idx, ok = t.bitmap.FirstFree()
		if !ok {
			return 0, errors.New("directory: grow did not free a slot")
		}
	}
	return uint32(idx), nil
}

// entryOps adapts Table to rbtree.Ops[string,string,uint32]: the node
// handle is the entry id, and the holder is the child's own name
// (already the key), so Key is the identity function and GetHolder/
// SetHolder read/write the record's name field directly.
type entryOps struct {
	t *Table
}

func (o entryOps) NullNode() uint32           { return NullEntryID }
func (o entryOps) IsNull(n uint32) bool       { return n == NullEntryID }
func (o entryOps) NodeEqual(a, b uint32) bool { return a == b }

func (o entryOps) CreateEmptyNode() uint32 {
	id, err := o.t.allocateEntryID()
	if err != nil {
		// The rbtree algorithm's adapter contract has no error return
		// here; allocation failure (device out of space) is surfaced
		// by panicking, caught and converted back to an error by the
		// Table methods that drive Insert (§7 "Capacity errors").
		panic(err)
	}
	_ = o.t.writeEntry(id, Entry{Type: TypeEmpty, Left: NullEntryID, Right: NullEntryID, Child: NullEntryID, HeadSector: cfb.EndOfChain})
	o.t.bitmap.Construct(int(id), struct{}{})
	return id
}

func (o entryOps) ReleaseEmptyNode(n uint32) {
	_ = o.t.writeEntry(n, Entry{Type: TypeEmpty, Left: NullEntryID, Right: NullEntryID, Child: NullEntryID, HeadSector: cfb.EndOfChain})
	o.t.bitmap.Destroy(int(n))
}

func (o entryOps) Key(h string) string      { return h }
func (o entryOps) KeyLess(a, b string) bool { return nameLess(a, b) }

func (o entryOps) GetLeft(n uint32) uint32 {
	e, _ := o.t.readEntry(n)
	return e.Left
}
func (o entryOps) SetLeft(n, left uint32) {
	e, _ := o.t.readEntry(n)
	e.Left = left
	_ = o.t.writeEntry(n, e)
}
func (o entryOps) GetRight(n uint32) uint32 {
	e, _ := o.t.readEntry(n)
	return e.Right
}
func (o entryOps) SetRight(n, right uint32) {
	e, _ := o.t.readEntry(n)
	e.Right = right
	_ = o.t.writeEntry(n, e)
}
func (o entryOps) GetColor(n uint32) rbtree.Color {
	e, _ := o.t.readEntry(n)
	if e.Color == Red {
		return rbtree.Red
	}
	return rbtree.Black
}
func (o entryOps) SetColor(n uint32, c rbtree.Color) {
	e, _ := o.t.readEntry(n)
	if c == rbtree.Red {
		e.Color = Red
	} else {
		e.Color = Black
	}
	_ = o.t.writeEntry(n, e)
}

func (o entryOps) GetHolder(n uint32) string {
	e, _ := o.t.readEntry(n)
	return e.Name
}
func (o entryOps) SetHolder(n uint32, name string) {
	e, _ := o.t.readEntry(n)
	e.Name = name
	_ = o.t.writeEntry(n, e)
}

func (t *Table) childTree(parentID uint32) (*rbtree.Tree[string, string, uint32], Entry, error) {
	parent, err := t.readEntry(parentID)
	if err != nil {
		return nil, Entry{}, err
	}
	if parent.Type != TypeRoot && parent.Type != TypeUserStorage {
		return nil, Entry{}, ErrNotADirectory
	}
	return rbtree.Open[string, string, uint32](entryOps{t: t}, parent.Child), parent, nil
}

// Lookup finds name among parentID's children, returning its entry id.
func (t *Table) Lookup(parentID uint32, name string) (uint32, bool, error) {
	tree, _, err := t.childTree(parentID)
	if err != nil {
		return 0, false, err
	}
	p := tree.Find(name)
	if p.IsNull() {
		return 0, false, nil
	}
	return p.Node(), true, nil
}

// CreateChild inserts a new entry named name under parentID with the
// given type, returning its fresh entry id.
func (t *Table) CreateChild(parentID uint32, name string, typ EntryType, now time.Time) (id uint32, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	tree, parent, lerr := t.childTree(parentID)
	if lerr != nil {
		return 0, lerr
	}
	if !tree.Insert(name) {
		return 0, ErrAlreadyExists
	}

	p := tree.Find(name)
	newID := p.Node()
	entry, rerr := t.readEntry(newID)
	if rerr != nil {
		return 0, rerr
	}
	entry.Type = typ
	entry.Created = now
	entry.Modified = now
	entry.HeadSector = cfb.EndOfChain
	if err := t.writeEntry(newID, entry); err != nil {
		return 0, err
	}

	parent.Child = tree.Root()
	if err := t.writeEntry(parentID, parent); err != nil {
		return 0, err
	}
	return newID, nil
}

// DeleteChild removes the entry named name from parentID's children.
func (t *Table) DeleteChild(parentID uint32, name string) error {
	tree, parent, err := t.childTree(parentID)
	if err != nil {
		return err
	}
	p := tree.Find(name)
	if p.IsNull() {
		return ErrNotFound
	}
	if _, ok := tree.Delete(p); !ok {
		return ErrNotFound
	}
	parent.Child = tree.Root()
	return t.writeEntry(parentID, parent)
}

// ListChildren returns the names of every child of parentID, in the
// RB-tree's ascending key order.
func (t *Table) ListChildren(parentID uint32) ([]string, error) {
	tree, _, err := t.childTree(parentID)
	if err != nil {
		return nil, err
	}
	var names []string
	for p := tree.Begin(); !p.IsNull(); p = tree.Forward(p) {
		e, err := t.readEntry(p.Node())
		if err != nil {
			return nil, err
		}
		names = append(names, e.Name)
	}
	return names, nil
}

// IsEmpty reports whether parentID's storage entry currently has zero
// children (spec §4.10 "an empty directory can be rmdir-ed").
func (t *Table) IsEmpty(parentID uint32) (bool, error) {
	parent, err := t.readEntry(parentID)
	if err != nil {
		return false, err
	}
	return parent.Child == NullEntryID, nil
}

var _ = rbtree.Ops[string, string, uint32](entryOps{})
