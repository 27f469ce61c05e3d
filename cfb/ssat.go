package cfb

import (
	"encoding/binary"

	set3 "github.com/TomTonic/Set3"
	"github.com/lidotcircle/sffs/blockdev"
)

// ssatCache mirrors satCache: one SSAT sector's entries held decoded.
type ssatCache struct {
	index   int // -1 = nothing cached
	entries []uint32
	dirty   bool
}

// SSAT is the short-sector allocation table (§4.10, "SSAT — short-
// sector allocation table; the analogue of the SAT for the mini-
// stream"). Unlike the SAT, which self-registers its own governing
// sectors directly against the MSAT, the SSAT's own sectors are
// ordinary regular sectors obtained through the SAT via a backing
// cfb.Stream — the SSAT is itself just a stream of uint32 entries. The
// header's SSATHead/SSATCount track that backing stream.
type SSAT struct {
	dev              blockdev.Device
	h                *Header
	sat              *SAT
	stream           *Stream
	entriesPerSector int

	freeCounts []int
	freeIndex  *set3.Set3[int]
	cache      ssatCache
}

// LoadSSAT reattaches to the SSAT's backing stream recorded in h
// (EndOfChain head means no short sectors have ever been allocated),
// scanning every currently governed sector once to rebuild the free
// vector, the same one-time-scan approach LoadSAT uses.
func LoadSSAT(dev blockdev.Device, h *Header, sat *SAT) (*SSAT, error) {
	eps := int(h.SectorSize() / 4)
	s := &SSAT{
		dev:              dev,
		h:                h,
		sat:              sat,
		stream:           NewStream(dev, h, sat, h.SSATHead),
		entriesPerSector: eps,
		freeIndex:        set3.Empty[int](),
		cache:            ssatCache{index: -1},
	}
	for idx := 0; idx < int(h.SSATCount); idx++ {
		entries, err := s.readSector(idx)
		if err != nil {
			return nil, err
		}
		free := 0
		for _, e := range entries {
			if e == NotUsed {
				free++
			}
		}
		s.freeCounts = append(s.freeCounts, free)
		if free > 0 {
			s.freeIndex.Add(idx)
		}
	}
	return s, nil
}

func (s *SSAT) readSector(index int) ([]uint32, error) {
	buf := make([]byte, s.entriesPerSector*4)
	if _, err := s.stream.Read(int64(index)*int64(len(buf)), buf); err != nil {
		return nil, err
	}
	entries := make([]uint32, s.entriesPerSector)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return entries, nil
}

func (s *SSAT) flushCache() error {
	if s.cache.index < 0 || !s.cache.dirty {
		return nil
	}
	buf := make([]byte, s.entriesPerSector*4)
	for i, e := range s.cache.entries {
		binary.LittleEndian.PutUint32(buf[i*4:], e)
	}
	if _, err := s.stream.Write(int64(s.cache.index)*int64(len(buf)), buf); err != nil {
		return err
	}
	s.cache.dirty = false
	return nil
}

func (s *SSAT) loadIntoCache(index int) error {
	if s.cache.index == index {
		return nil
	}
	if err := s.flushCache(); err != nil {
		return err
	}
	entries, err := s.readSector(index)
	if err != nil {
		return err
	}
	s.cache = ssatCache{index: index, entries: entries}
	return nil
}

func (s *SSAT) entryAt(id uint32) (uint32, error) {
	index := int(id) / s.entriesPerSector
	if err := s.loadIntoCache(index); err != nil {
		return 0, err
	}
	return s.cache.entries[int(id)%s.entriesPerSector], nil
}

func (s *SSAT) setEntryAt(id, val uint32) error {
	index := int(id) / s.entriesPerSector
	if err := s.loadIntoCache(index); err != nil {
		return err
	}
	off := int(id) % s.entriesPerSector
	wasFree := s.cache.entries[off] == NotUsed
	isFree := val == NotUsed
	s.cache.entries[off] = val
	s.cache.dirty = true
	if wasFree != isFree {
		if isFree {
			s.freeCounts[index]++
			s.freeIndex.Add(index)
		} else {
			s.freeCounts[index]--
			if s.freeCounts[index] == 0 {
				s.freeIndex.Remove(index)
			}
		}
	}
	return nil
}

// GetNext follows one link of the short-sector chain containing id.
func (s *SSAT) GetNext(id uint32) (uint32, error) {
	next, err := s.entryAt(id)
	if err != nil {
		return 0, err
	}
	if IsReservedSectorID(next) && next != EndOfChain {
		return 0, ErrFileCorrupt
	}
	return next, nil
}

// growSSAT appends one regular sector to the SSAT's backing stream
// (allocated through the SAT in the ordinary way) and registers
// entriesPerSector more free short-sector ids.
func (s *SSAT) growSSAT() error {
	if _, err := s.stream.AppendSector(); err != nil {
		return err
	}
	s.h.SSATHead = s.stream.Head()
	s.h.SSATCount++

	index := int(s.h.SSATCount) - 1
	blank := make([]uint32, s.entriesPerSector)
	for i := range blank {
		blank[i] = NotUsed
	}
	if err := s.flushCache(); err != nil {
		return err
	}
	s.cache = ssatCache{index: -1} // invalidate; the new sector isn't decoded yet
	buf := make([]byte, s.entriesPerSector*4)
	for i, e := range blank {
		binary.LittleEndian.PutUint32(buf[i*4:], e)
	}
	if _, err := s.stream.Write(int64(index)*int64(len(buf)), buf); err != nil {
		return err
	}

	s.freeCounts = append(s.freeCounts, s.entriesPerSector)
	s.freeIndex.Add(index)
	return nil
}

// Allocate claims and returns an unused short-sector id, already set to
// EndOfChain.
func (s *SSAT) Allocate() (uint32, error) {
	if s.cache.index >= 0 {
		for off, e := range s.cache.entries {
			if e == NotUsed {
				id := uint32(s.cache.index*s.entriesPerSector + off)
				if err := s.setEntryAt(id, EndOfChain); err != nil {
					return 0, err
				}
				return id, nil
			}
		}
	}

	for idx := len(s.freeCounts) - 1; idx >= 0; idx-- {
		if s.freeIndex.Contains(idx) {
			if err := s.loadIntoCache(idx); err != nil {
				return 0, err
			}
			for off, e := range s.cache.entries {
				if e == NotUsed {
					id := uint32(idx*s.entriesPerSector + off)
					if err := s.setEntryAt(id, EndOfChain); err != nil {
						return 0, err
					}
					return id, nil
				}
			}
		}
	}

	if err := s.growSSAT(); err != nil {
		return 0, err
	}
	return s.Allocate()
}

// AllocateNextSector allocates a new short sector and links prev to it;
// prev of EndOfChain starts a new chain.
func (s *SSAT) AllocateNextSector(prev uint32) (uint32, error) {
	newId, err := s.Allocate()
	if err != nil {
		return 0, err
	}
	if prev != EndOfChain {
		if err := s.setEntryAt(prev, newId); err != nil {
			return 0, err
		}
	}
	return newId, nil
}

// Free splices id out of its chain, mirroring SAT.Free.
func (s *SSAT) Free(prev, id uint32) error {
	next, err := s.entryAt(id)
	if err != nil {
		return err
	}
	if prev != NotUsed && prev != EndOfChain {
		if err := s.setEntryAt(prev, next); err != nil {
			return err
		}
	}
	return s.setEntryAt(id, NotUsed)
}

// FreeRaw marks id NotUsed directly without splicing, mirroring
// SAT.FreeRaw — used when tearing an entire short chain down sector by
// sector.
func (s *SSAT) FreeRaw(id uint32) error {
	return s.setEntryAt(id, NotUsed)
}

// Flush persists the cached SSAT sector.
func (s *SSAT) Flush() error {
	return s.flushCache()
}
