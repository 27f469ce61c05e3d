package directory

import (
	"sort"
	"testing"
	"time"

	"github.com/lidotcircle/sffs/blockdev"
	"github.com/lidotcircle/sffs/cfb"
)

func newTestTable(t *testing.T) (*Table, blockdev.Device, *cfb.Header, *cfb.SAT) {
	t.Helper()
	dev := blockdev.NewMemDevice(1 << 20)
	h, err := cfb.NewHeader(9, 6, 3, 4096)
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	if err := cfb.WriteHeader(dev, h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	msat, err := cfb.LoadMSAT(dev, h)
	if err != nil {
		t.Fatalf("LoadMSAT: %v", err)
	}
	sat, err := cfb.LoadSAT(dev, h, msat)
	if err != nil {
		t.Fatalf("LoadSAT: %v", err)
	}
	tbl, _, err := Format(dev, h, sat, time.Time{})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	return tbl, dev, h, sat
}

func TestEntryRecordRoundTrip(t *testing.T) {
	e := Entry{
		Name:       "hello",
		Type:       TypeUserStream,
		Color:      Red,
		Left:       NullEntryID,
		Right:      7,
		Child:      NullEntryID,
		Flags:      0xDEAD,
		Created:    time.Unix(1000, 0),
		Modified:   time.Unix(2000, 0),
		HeadSector: 42,
		Size:       12345,
	}
	buf, err := EncodeRecord(e)
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	if len(buf) != RecordSize {
		t.Fatalf("expected %d bytes, got %d", RecordSize, len(buf))
	}
	got, err := DecodeRecord(buf)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if got.Name != e.Name || got.Type != e.Type || got.Right != e.Right ||
		got.Flags != e.Flags || got.HeadSector != e.HeadSector || got.Size != e.Size {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestNameLessLengthBeforeLexicographic(t *testing.T) {
	if !nameLess("zz", "aaa") {
		t.Fatalf("shorter name must sort before a longer one, even lexicographically later")
	}
	if nameLess("aaa", "zz") {
		t.Fatalf("longer name must not sort before a shorter one")
	}
	if !nameLess("abc", "abd") {
		t.Fatalf("equal-length names must fall back to lexicographic order")
	}
}

func TestCreateLookupDeleteChild(t *testing.T) {
	tbl, _, _, _ := newTestTable(t)

	id, err := tbl.CreateChild(RootEntryID, "hello", TypeUserStorage, time.Time{})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}

	found, ok, err := tbl.Lookup(RootEntryID, "hello")
	if err != nil || !ok || found != id {
		t.Fatalf("Lookup: found=%d ok=%v err=%v want %d", found, ok, err, id)
	}

	if _, err := tbl.CreateChild(RootEntryID, "hello", TypeUserStorage, time.Time{}); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if err := tbl.DeleteChild(RootEntryID, "hello"); err != nil {
		t.Fatalf("DeleteChild: %v", err)
	}
	_, ok, err = tbl.Lookup(RootEntryID, "hello")
	if err != nil || ok {
		t.Fatalf("expected entry gone after delete, ok=%v err=%v", ok, err)
	}

	if err := tbl.DeleteChild(RootEntryID, "hello"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListChildrenAscendingOrder(t *testing.T) {
	tbl, _, _, _ := newTestTable(t)
	names := []string{"banana", "fig", "apple", "cherry", "kiwi", "date"}
	for _, n := range names {
		if _, err := tbl.CreateChild(RootEntryID, n, TypeUserStream, time.Time{}); err != nil {
			t.Fatalf("CreateChild(%q): %v", n, err)
		}
	}
	got, err := tbl.ListChildren(RootEntryID)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}

	want := append([]string(nil), names...)
	sort.Slice(want, func(i, j int) bool { return nameLess(want[i], want[j]) })
	if len(got) != len(want) {
		t.Fatalf("got %d names, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestIsEmptyAndGrowAcrossSectors(t *testing.T) {
	tbl, _, h, _ := newTestTable(t)
	empty, err := tbl.IsEmpty(RootEntryID)
	if err != nil || !empty {
		t.Fatalf("expected freshly formatted root to be empty, got empty=%v err=%v", empty, err)
	}

	perSector := entriesPerSector(h)
	for i := 0; i < perSector*2+3; i++ {
		name := string(rune('a'+(i%26))) + string(rune('A'+(i/26)%26)) + string(rune('0'+i%10))
		if _, err := tbl.CreateChild(RootEntryID, name, TypeUserStream, time.Time{}); err != nil {
			t.Fatalf("CreateChild #%d: %v", i, err)
		}
	}
	empty, err = tbl.IsEmpty(RootEntryID)
	if err != nil || empty {
		t.Fatalf("expected non-empty root, got empty=%v err=%v", empty, err)
	}
	if tbl.capacity < perSector*2 {
		t.Fatalf("expected table capacity to have grown past one sector, got %d", tbl.capacity)
	}
}

func TestReopenPreservesChildren(t *testing.T) {
	tbl, dev, h, sat := newTestTable(t)
	if _, err := tbl.CreateChild(RootEntryID, "persisted", TypeUserStream, time.Time{}); err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	head := tbl.Head()

	reopened, err := Open(dev, h, sat, head)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, ok, err := reopened.Lookup(RootEntryID, "persisted")
	if err != nil || !ok {
		t.Fatalf("expected persisted entry after reopen, ok=%v err=%v", ok, err)
	}
}

func TestCreateChildUnderNonStorageFails(t *testing.T) {
	tbl, _, _, _ := newTestTable(t)
	streamID, err := tbl.CreateChild(RootEntryID, "afile", TypeUserStream, time.Time{})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	if _, err := tbl.CreateChild(streamID, "nested", TypeUserStream, time.Time{}); err != ErrNotADirectory {
		t.Fatalf("expected ErrNotADirectory, got %v", err)
	}
}
