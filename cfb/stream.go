package cfb

import (
	"io"

	"github.com/lidotcircle/sffs/blockdev"
)

// Stream is a sector-chain stream (§4.8): a SAT reference, a head sector
// id, and a cache of the sector ids visited so far. The cache is
// extended lazily as byte-level operations touch logical ranges beyond
// what has already been walked; write extends the chain itself, via SAT
// allocation, when the requested range exceeds the stream's current
// size. Grounded on _examples/original_source/include/sffs.h's stream
// class and xlrd-compdoc.go's locateStream/getStream sector walking.
type Stream struct {
	dev  blockdev.Device
	h    *Header
	sat  *SAT
	head uint32

	chain     []uint32 // sector ids visited so far, in chain order
	tailKnown bool      // true once chain's last entry is known to precede EndOfChain
}

// NewStream wraps an existing chain starting at head (EndOfChain for an
// empty stream).
func NewStream(dev blockdev.Device, h *Header, sat *SAT, head uint32) *Stream {
	st := &Stream{dev: dev, h: h, sat: sat, head: head}
	if head == EndOfChain {
		st.tailKnown = true
	}
	return st
}

// Head returns the stream's head sector id (EndOfChain if empty).
func (st *Stream) Head() uint32 { return st.head }

// ensureChainLen extends the cache, walking GetNext links, until it
// holds at least n entries or the chain's true end is reached.
func (st *Stream) ensureChainLen(n int) error {
	if len(st.chain) >= n || st.tailKnown {
		return nil
	}
	var cur uint32
	if len(st.chain) == 0 {
		if st.head == EndOfChain {
			st.tailKnown = true
			return nil
		}
		st.chain = append(st.chain, st.head)
		cur = st.head
	} else {
		cur = st.chain[len(st.chain)-1]
	}
	for len(st.chain) < n {
		next, err := st.sat.GetNext(cur)
		if err != nil {
			return err
		}
		if next == EndOfChain {
			st.tailKnown = true
			return nil
		}
		st.chain = append(st.chain, next)
		cur = next
	}
	return nil
}

// ensureFullChain walks the entire chain into the cache.
func (st *Stream) ensureFullChain() error {
	return st.ensureChainLen(1 << 30)
}

// SizeSectors returns the number of sectors currently allocated to the
// stream times the sector size (§4.8 "size()").
func (st *Stream) SizeSectors() (int64, error) {
	if err := st.ensureFullChain(); err != nil {
		return 0, err
	}
	return int64(len(st.chain)) * st.h.SectorSize(), nil
}

// AppendSector allocates a new sector after the current last one (or as
// the new head, if the stream was empty) and returns the logical base
// address of the new sector.
func (st *Stream) AppendSector() (int64, error) {
	if err := st.ensureFullChain(); err != nil {
		return 0, err
	}
	lastId := EndOfChain
	if len(st.chain) > 0 {
		lastId = st.chain[len(st.chain)-1]
	}
	newId, err := st.sat.AllocateNextSector(lastId)
	if err != nil {
		return 0, err
	}
	if len(st.chain) == 0 {
		st.head = newId
	}
	st.chain = append(st.chain, newId)
	st.tailKnown = true
	return int64(len(st.chain)-1) * st.h.SectorSize(), nil
}

// DeleteLastSector releases the stream's last sector back to the SAT,
// updating the head if the stream becomes empty.
func (st *Stream) DeleteLastSector() error {
	if err := st.ensureFullChain(); err != nil {
		return err
	}
	if len(st.chain) == 0 {
		return nil
	}
	last := st.chain[len(st.chain)-1]
	prev := NotUsed
	if len(st.chain) >= 2 {
		prev = st.chain[len(st.chain)-2]
	}
	if err := st.sat.Free(prev, last); err != nil {
		return err
	}
	st.chain = st.chain[:len(st.chain)-1]
	if len(st.chain) == 0 {
		st.head = EndOfChain
	}
	return nil
}

// DeleteStream releases every sector in the chain and resets the stream
// to empty.
func (st *Stream) DeleteStream() error {
	if err := st.ensureFullChain(); err != nil {
		return err
	}
	for _, id := range st.chain {
		if err := st.sat.FreeRaw(id); err != nil {
			return err
		}
	}
	st.chain = nil
	st.head = EndOfChain
	st.tailKnown = true
	return nil
}

// Read reads len(buf) bytes starting at logical offset addr. It never
// extends the chain; reading past the stream's currently allocated
// extent returns io.EOF along with however many bytes were read.
func (st *Stream) Read(addr int64, buf []byte) (int, error) {
	sectorSize := st.h.SectorSize()
	total := 0
	for total < len(buf) {
		secIdx := int((addr + int64(total)) / sectorSize)
		within := (addr + int64(total)) % sectorSize
		if err := st.ensureChainLen(secIdx + 1); err != nil {
			return total, err
		}
		if secIdx >= len(st.chain) {
			return total, io.EOF
		}
		physID := st.chain[secIdx]
		n := len(buf) - total
		if room := int(sectorSize - within); n > room {
			n = room
		}
		got, err := st.dev.ReadAt(sectorAddr(st.h, physID)+within, buf[total:total+n])
		total += got
		if err != nil {
			return total, err
		}
		if got < n {
			return total, io.EOF
		}
	}
	return total, nil
}

// Write writes buf at logical offset addr, auto-extending the chain via
// SAT allocation whenever addr+len(buf) exceeds the stream's current
// size.
func (st *Stream) Write(addr int64, buf []byte) (int, error) {
	sectorSize := st.h.SectorSize()
	total := 0
	for total < len(buf) {
		secIdx := int((addr + int64(total)) / sectorSize)
		within := (addr + int64(total)) % sectorSize
		if err := st.ensureChainLen(secIdx + 1); err != nil {
			return total, err
		}
		for secIdx >= len(st.chain) {
			if _, err := st.AppendSector(); err != nil {
				return total, err
			}
		}
		physID := st.chain[secIdx]
		n := len(buf) - total
		if room := int(sectorSize - within); n > room {
			n = room
		}
		put, err := st.dev.WriteAt(sectorAddr(st.h, physID)+within, buf[total:total+n])
		total += put
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Fillzeros zeroes the logical range [a, b), extending the chain as
// needed (§4.8 "fillzeros(a,b)").
func (st *Stream) Fillzeros(a, b int64) error {
	if b <= a {
		return nil
	}
	const chunkSize = 4096
	zeros := make([]byte, chunkSize)
	for off := a; off < b; {
		n := b - off
		if n > chunkSize {
			n = chunkSize
		}
		if _, err := st.Write(off, zeros[:n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}
