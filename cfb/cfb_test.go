package cfb

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/lidotcircle/sffs/blockdev"
)

func freshHeader(t *testing.T) *Header {
	t.Helper()
	h, err := NewHeader(9, 6, 3, 4096) // 512-byte sectors, 64-byte short sectors
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	return h
}

func TestHeaderRoundTrip(t *testing.T) {
	dev := blockdev.NewMemDevice(HeaderSize)
	h := freshHeader(t)
	h.DirHead = 7
	h.MSATInHeader[3] = 42

	if err := WriteHeader(dev, h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	got, err := ReadHeader(dev)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if got.MajorVersion != h.MajorVersion || got.SectorShift != h.SectorShift ||
		got.ShortShift != h.ShortShift || got.DirHead != h.DirHead ||
		got.MSATInHeader[3] != 42 {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
	if got.SectorSize() != 512 || got.ShortSectorSize() != 64 {
		t.Fatalf("unexpected sector sizes: %d %d", got.SectorSize(), got.ShortSectorSize())
	}
}

func TestHeaderRejectsBadSignature(t *testing.T) {
	dev := blockdev.NewMemDevice(HeaderSize)
	buf := make([]byte, HeaderSize)
	dev.WriteAt(0, buf) // all zero, no signature
	if _, err := ReadHeader(dev); err != ErrBadFormat {
		t.Fatalf("expected ErrBadFormat, got %v", err)
	}
}

func TestIsReservedSectorID(t *testing.T) {
	if IsReservedSectorID(0) || IsReservedSectorID(1000) {
		t.Fatalf("ordinary ids must not be reserved")
	}
	for _, id := range []uint32{EndOfChain, NotUsed, SATUsed, MSATUsed, NotApplicable} {
		if !IsReservedSectorID(id) {
			t.Fatalf("%x should be reserved", id)
		}
	}
}

// newFormatted builds a freshly formatted header+MSAT+SAT over a
// generously sized device.
func newFormatted(t *testing.T, deviceSize int64) (blockdev.Device, *Header, *MSAT, *SAT) {
	t.Helper()
	dev := blockdev.NewMemDevice(deviceSize)
	h := freshHeader(t)
	if err := WriteHeader(dev, h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	msat, err := LoadMSAT(dev, h)
	if err != nil {
		t.Fatalf("LoadMSAT: %v", err)
	}
	sat, err := LoadSAT(dev, h, msat)
	if err != nil {
		t.Fatalf("LoadSAT: %v", err)
	}
	return dev, h, msat, sat
}

func TestSATAllocateSkipsItsOwnGovernanceSector(t *testing.T) {
	_, _, _, sat := newFormatted(t, 1<<20)
	id, err := sat.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if id == 0 {
		t.Fatalf("id 0 is the SAT's own governance sector, must not be handed out")
	}
	next, err := sat.GetNext(id)
	if err != nil {
		t.Fatalf("GetNext: %v", err)
	}
	if next != EndOfChain {
		t.Fatalf("freshly allocated sector must terminate a chain, got %x", next)
	}
}

func TestSATAllocateNextSectorChains(t *testing.T) {
	_, _, _, sat := newFormatted(t, 1<<20)
	a, err := sat.AllocateNextSector(EndOfChain)
	if err != nil {
		t.Fatalf("alloc head: %v", err)
	}
	b, err := sat.AllocateNextSector(a)
	if err != nil {
		t.Fatalf("alloc next: %v", err)
	}
	next, err := sat.GetNext(a)
	if err != nil || next != b {
		t.Fatalf("expected a->b, got %x err %v", next, err)
	}
	tail, err := sat.GetNext(b)
	if err != nil || tail != EndOfChain {
		t.Fatalf("expected b to be chain tail, got %x err %v", tail, err)
	}
}

func TestSATFreeSplicesChain(t *testing.T) {
	_, _, _, sat := newFormatted(t, 1<<20)
	a, _ := sat.AllocateNextSector(EndOfChain)
	b, _ := sat.AllocateNextSector(a)
	c, _ := sat.AllocateNextSector(b)

	if err := sat.Free(a, b); err != nil {
		t.Fatalf("Free: %v", err)
	}
	next, err := sat.GetNext(a)
	if err != nil || next != c {
		t.Fatalf("expected a->c after splicing out b, got %x err %v", next, err)
	}

	freedAgain, err := sat.Allocate()
	if err != nil {
		t.Fatalf("reallocate: %v", err)
	}
	if freedAgain != b {
		t.Fatalf("expected freed sector %x to be reused, got %x", b, freedAgain)
	}
}

func TestSATGrowsAcrossManySectors(t *testing.T) {
	// entriesPerSector = 512/4 = 128; allocate enough sectors to force
	// growSAT to run more than once.
	_, h, _, sat := newFormatted(t, 1<<20)
	eps := int(h.SectorSize() / 4)
	ids := make(map[uint32]bool)
	prev := EndOfChain
	for i := 0; i < eps*2+5; i++ {
		id, err := sat.AllocateNextSector(prev)
		if err != nil {
			t.Fatalf("allocate #%d: %v", i, err)
		}
		if ids[id] {
			t.Fatalf("duplicate id %d allocated", id)
		}
		ids[id] = true
		prev = id
	}
	if h.SATCount < 2 {
		t.Fatalf("expected SAT to have grown at least twice, got SATCount=%d", h.SATCount)
	}
}

func TestMSATHasFreeAndMarkNextFree(t *testing.T) {
	dev := blockdev.NewMemDevice(1 << 16)
	h := freshHeader(t)
	if err := WriteHeader(dev, h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	msat, err := LoadMSAT(dev, h)
	if err != nil {
		t.Fatalf("LoadMSAT: %v", err)
	}
	if !msat.HasFree() {
		t.Fatalf("freshly formatted MSAT must have free slots")
	}
	idx, ok := msat.MarkNextFree(99)
	if !ok || msat.Get(idx) != 99 {
		t.Fatalf("MarkNextFree failed: idx=%d ok=%v", idx, ok)
	}

	for msat.HasFree() {
		if _, ok := msat.MarkNextFree(1); !ok {
			t.Fatalf("MarkNextFree reported ok=false while HasFree() was true")
		}
	}
	if err := msat.Expand(123); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !msat.HasFree() {
		t.Fatalf("expanded MSAT must report free slots")
	}
}

func TestStreamWriteReadCrossesSectorBoundary(t *testing.T) {
	dev, h, _, sat := newFormatted(t, 1<<20)
	st := NewStream(dev, h, sat, EndOfChain)

	data := make([]byte, int(h.SectorSize())*3+17)
	r := rand.NewPCG(11, 22)
	rnd := rand.New(r)
	for i := range data {
		data[i] = byte(rnd.Uint32())
	}

	n, err := st.Write(5, data)
	if err != nil || n != len(data) {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}

	out := make([]byte, len(data))
	n, err = st.Read(5, out)
	if err != nil || n != len(data) {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("read back data does not match what was written")
	}

	size, err := st.SizeSectors()
	if err != nil {
		t.Fatalf("SizeSectors: %v", err)
	}
	wantSectors := (int64(5+len(data)) + h.SectorSize() - 1) / h.SectorSize()
	if size != wantSectors*h.SectorSize() {
		t.Fatalf("unexpected stream size %d, want %d sectors", size, wantSectors)
	}
}

func TestStreamReadPastExtentIsEOF(t *testing.T) {
	dev, h, _, sat := newFormatted(t, 1<<20)
	st := NewStream(dev, h, sat, EndOfChain)
	if _, err := st.Write(0, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, int(h.SectorSize())*4)
	_, err := st.Read(0, buf)
	if err == nil {
		t.Fatalf("expected io.EOF reading past the stream's allocated extent")
	}
}

func TestStreamFillzeros(t *testing.T) {
	dev, h, _, sat := newFormatted(t, 1<<20)
	st := NewStream(dev, h, sat, EndOfChain)
	if _, err := st.Write(0, bytes.Repeat([]byte{0xAA}, int(h.SectorSize()))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.Fillzeros(10, 20); err != nil {
		t.Fatalf("Fillzeros: %v", err)
	}
	out := make([]byte, int(h.SectorSize()))
	if _, err := st.Read(0, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := 10; i < 20; i++ {
		if out[i] != 0 {
			t.Fatalf("byte %d not zeroed: %x", i, out[i])
		}
	}
	if out[9] != 0xAA || out[20] != 0xAA {
		t.Fatalf("Fillzeros touched bytes outside [10,20)")
	}
}

func TestStreamDeleteLastSectorAndDeleteStream(t *testing.T) {
	dev, h, _, sat := newFormatted(t, 1<<20)
	st := NewStream(dev, h, sat, EndOfChain)
	for i := 0; i < 3; i++ {
		if _, err := st.AppendSector(); err != nil {
			t.Fatalf("AppendSector: %v", err)
		}
	}
	size, _ := st.SizeSectors()
	if size != 3*h.SectorSize() {
		t.Fatalf("expected 3 sectors, got size %d", size)
	}

	if err := st.DeleteLastSector(); err != nil {
		t.Fatalf("DeleteLastSector: %v", err)
	}
	size, _ = st.SizeSectors()
	if size != 2*h.SectorSize() {
		t.Fatalf("expected 2 sectors after delete, got %d", size)
	}

	if err := st.DeleteStream(); err != nil {
		t.Fatalf("DeleteStream: %v", err)
	}
	if st.Head() != EndOfChain {
		t.Fatalf("expected empty head after DeleteStream, got %x", st.Head())
	}
	size, _ = st.SizeSectors()
	if size != 0 {
		t.Fatalf("expected size 0 after DeleteStream, got %d", size)
	}

	freed, err := sat.Allocate()
	if err != nil {
		t.Fatalf("Allocate after DeleteStream: %v", err)
	}
	_ = freed // sectors should be available for reuse; no specific id is guaranteed
}

func TestStreamReopenSharesChainViaHead(t *testing.T) {
	dev, h, _, sat := newFormatted(t, 1<<20)
	st := NewStream(dev, h, sat, EndOfChain)
	payload := []byte("persisted across a reopen")
	if _, err := st.Write(0, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	head := st.Head()

	reopened := NewStream(dev, h, sat, head)
	out := make([]byte, len(payload))
	if _, err := reopened.Read(0, out); err != nil {
		t.Fatalf("Read via reopened stream: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("reopened stream read mismatch: got %q", out)
	}
}

func TestSSATAllocateAndChain(t *testing.T) {
	dev, h, _, sat := newFormatted(t, 1<<20)
	ssat, err := LoadSSAT(dev, h, sat)
	if err != nil {
		t.Fatalf("LoadSSAT: %v", err)
	}
	a, err := ssat.AllocateNextSector(EndOfChain)
	if err != nil {
		t.Fatalf("alloc head: %v", err)
	}
	b, err := ssat.AllocateNextSector(a)
	if err != nil {
		t.Fatalf("alloc next: %v", err)
	}
	next, err := ssat.GetNext(a)
	if err != nil || next != b {
		t.Fatalf("expected a->b, got %x err %v", next, err)
	}
	if h.SSATCount < 1 {
		t.Fatalf("expected SSATCount to have grown, got %d", h.SSATCount)
	}
}

func TestSSATGrowsAcrossManySectors(t *testing.T) {
	dev, h, _, sat := newFormatted(t, 1<<20)
	ssat, err := LoadSSAT(dev, h, sat)
	if err != nil {
		t.Fatalf("LoadSSAT: %v", err)
	}
	eps := int(h.SectorSize() / 4)
	ids := make(map[uint32]bool)
	prev := EndOfChain
	for i := 0; i < eps*2+5; i++ {
		id, err := ssat.AllocateNextSector(prev)
		if err != nil {
			t.Fatalf("allocate #%d: %v", i, err)
		}
		if ids[id] {
			t.Fatalf("duplicate short-sector id %d allocated", id)
		}
		ids[id] = true
		prev = id
	}
	if h.SSATCount < 2 {
		t.Fatalf("expected SSAT to have grown at least twice, got SSATCount=%d", h.SSATCount)
	}
}

func TestSSATFreeSplicesChain(t *testing.T) {
	dev, h, _, sat := newFormatted(t, 1<<20)
	ssat, err := LoadSSAT(dev, h, sat)
	if err != nil {
		t.Fatalf("LoadSSAT: %v", err)
	}
	a, _ := ssat.AllocateNextSector(EndOfChain)
	b, _ := ssat.AllocateNextSector(a)
	c, _ := ssat.AllocateNextSector(b)

	if err := ssat.Free(a, b); err != nil {
		t.Fatalf("Free: %v", err)
	}
	next, err := ssat.GetNext(a)
	if err != nil || next != c {
		t.Fatalf("expected a->c after splicing out b, got %x err %v", next, err)
	}
	freedAgain, err := ssat.Allocate()
	if err != nil {
		t.Fatalf("reallocate: %v", err)
	}
	if freedAgain != b {
		t.Fatalf("expected freed short sector %x to be reused, got %x", b, freedAgain)
	}
}

func TestShortStreamWriteReadCrossesShortSectorBoundary(t *testing.T) {
	dev, h, _, sat := newFormatted(t, 1<<20)
	ssat, err := LoadSSAT(dev, h, sat)
	if err != nil {
		t.Fatalf("LoadSSAT: %v", err)
	}
	mini := NewStream(dev, h, sat, EndOfChain)
	shortSize := h.ShortSectorSize()
	st := NewShortStream(ssat, mini, shortSize, EndOfChain)

	data := make([]byte, int(shortSize)*3+5)
	r := rand.NewPCG(1, 2)
	rnd := rand.New(r)
	for i := range data {
		data[i] = byte(rnd.Uint32())
	}
	if _, err := st.Write(3, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := make([]byte, len(data))
	if _, err := st.Read(3, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("short stream read-back mismatch")
	}

	size, err := st.SizeSectors()
	if err != nil {
		t.Fatalf("SizeSectors: %v", err)
	}
	wantShortSectors := (int64(3+len(data)) + shortSize - 1) / shortSize
	if size != wantShortSectors*shortSize {
		t.Fatalf("unexpected short-stream size %d, want %d short sectors", size, wantShortSectors)
	}
}

func TestShortStreamReadPastExtentIsEOF(t *testing.T) {
	dev, h, _, sat := newFormatted(t, 1<<20)
	ssat, err := LoadSSAT(dev, h, sat)
	if err != nil {
		t.Fatalf("LoadSSAT: %v", err)
	}
	mini := NewStream(dev, h, sat, EndOfChain)
	st := NewShortStream(ssat, mini, h.ShortSectorSize(), EndOfChain)
	if _, err := st.Write(0, []byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, int(h.ShortSectorSize())*4)
	if _, err := st.Read(0, buf); err == nil {
		t.Fatalf("expected io.EOF reading past the short stream's allocated extent")
	}
}
