package cfb

import (
	"encoding/binary"

	set3 "github.com/TomTonic/Set3"
	"github.com/lidotcircle/sffs/blockdev"
)

// satCache is the one-sector LRU mentioned in §4.7: only the most
// recently touched SAT sector's entries are held decoded in memory.
type satCache struct {
	satIndex int // -1 = nothing cached
	entries  []uint32
	dirty    bool
}

// SAT is the sector allocation table: entry i holds the next sector id
// in the chain containing sector i, or a reserved sentinel (§4.7).
type SAT struct {
	dev              blockdev.Device
	h                *Header
	msat             *MSAT
	entriesPerSector int

	freeCounts []int            // per SAT-sector index, count of NotUsed entries
	freeIndex  *set3.Set3[int]  // SAT-sector indices with freeCounts[idx] > 0
	cache      satCache
}

// LoadSAT builds the free-count vector by scanning every governed SAT
// sector once; subsequent Allocate/Free calls maintain it incrementally.
func LoadSAT(dev blockdev.Device, h *Header, msat *MSAT) (*SAT, error) {
	eps := int(h.SectorSize() / 4)
	s := &SAT{
		dev:              dev,
		h:                h,
		msat:             msat,
		entriesPerSector: eps,
		freeIndex:        set3.Empty[int](),
		cache:            satCache{satIndex: -1},
	}
	for idx := 0; idx < int(h.SATCount); idx++ {
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

// readSector reads SAT-sector satIndex's entries. satIndex doubles as
// the MSAT slot index: growSAT always registers a new SAT sector's
// physical id via the next free MSAT slot in order, so the two indices
// stay identical as long as SAT sectors are never individually freed.
func (s *SAT) readSector(satIndex int) ([]uint32, error) {
	physID := s.msat.Get(satIndex)
	buf := make([]byte, s.h.SectorSize())
	if _, err := s.dev.ReadAt(sectorAddr(s.h, physID), buf); err != nil {
		return nil, err
	}
	entries := make([]uint32, s.entriesPerSector)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return entries, nil
}

// flushCache writes the cached sector back if dirty.
func (s *SAT) flushCache() error {
	if s.cache.satIndex < 0 || !s.cache.dirty {
		return nil
	}
	physID := s.msat.Get(s.cache.satIndex)
	buf := make([]byte, s.entriesPerSector*4)
	for i, e := range s.cache.entries {
		binary.LittleEndian.PutUint32(buf[i*4:], e)
	}
	if _, err := s.dev.WriteAt(sectorAddr(s.h, physID), buf); err != nil {
		return err
	}
	s.cache.dirty = false
	return nil
}

// loadIntoCache ensures satIndex's entries are the cached sector,
// flushing whatever was cached before if it was dirty.
func (s *SAT) loadIntoCache(satIndex int) error {
	if s.cache.satIndex == satIndex {
		return nil
	}
	if err := s.flushCache(); err != nil {
		return err
	}
	entries, err := s.readSector(satIndex)
	if err != nil {
		return err
	}
	s.cache = satCache{satIndex: satIndex, entries: entries}
	return nil
}

func (s *SAT) entryAt(secId uint32) (uint32, error) {
	satIndex := int(secId) / s.entriesPerSector
	if err := s.loadIntoCache(satIndex); err != nil {
		return 0, err
	}
	return s.cache.entries[secId%uint32(s.entriesPerSector)], nil
}

func (s *SAT) setEntryAt(secId, val uint32) error {
	satIndex := int(secId) / s.entriesPerSector
	if err := s.loadIntoCache(satIndex); err != nil {
		return err
	}
	off := int(secId) % s.entriesPerSector
	wasFree := s.cache.entries[off] == NotUsed
	isFree := val == NotUsed
	s.cache.entries[off] = val
	s.cache.dirty = true
	if wasFree != isFree {
		if isFree {
			s.freeCounts[satIndex]++
			s.freeIndex.Add(satIndex)
		} else {
			s.freeCounts[satIndex]--
			if s.freeCounts[satIndex] == 0 {
				s.freeIndex.Remove(satIndex)
			}
		}
	}
	return nil
}

// GetNext follows one link of the chain containing secId.
func (s *SAT) GetNext(secId uint32) (uint32, error) {
	next, err := s.entryAt(secId)
	if err != nil {
		return 0, err
	}
	if IsReservedSectorID(next) && next != EndOfChain {
		return 0, ErrFileCorrupt
	}
	return next, nil
}

// growSAT creates one new governed SAT sector, self-registering its
// own storage id (and, if needed, one more id for an MSAT expansion)
// within the newly governed id range — both ids are claimed from the
// very range the new sector itself introduces, so no earlier sector
// needs to move. Returns ErrOutOfSpace when the new sector would lie
// past the device's end, ErrFileCorrupt when the MSAT has no slot for
// it, and any device write or MSAT Expand/Flush error as it occurs.
func (s *SAT) growSAT() error {
	satIndex := int(s.h.SATCount)
	base := uint32(satIndex * s.entriesPerSector)
	selfID := base

	if sectorAddr(s.h, selfID)+s.h.SectorSize() > s.dev.MaxSize() {
		return ErrOutOfSpace
	}

	entries := make([]uint32, s.entriesPerSector)
	for i := range entries {
		entries[i] = NotUsed
	}
	entries[0] = SATUsed // selfID's own entry

	needMSATSlot := !s.msat.HasFree()
	var msatNewSecId uint32
	if needMSATSlot {
		msatNewSecId = base + 1
		entries[1] = MSATUsed
	}

	buf := make([]byte, s.entriesPerSector*4)
	for i, e := range entries {
		binary.LittleEndian.PutUint32(buf[i*4:], e)
	}
	if _, err := s.dev.WriteAt(sectorAddr(s.h, selfID), buf); err != nil {
		return err
	}

	if needMSATSlot {
		if err := s.msat.Expand(msatNewSecId); err != nil {
			return err
		}
	}
	if _, ok := s.msat.MarkNextFree(selfID); !ok {
		return ErrFileCorrupt
	}

	s.h.SATCount++
	free := s.entriesPerSector - 1
	if needMSATSlot {
		free--
	}
	s.freeCounts = append(s.freeCounts, free)
	if free > 0 {
		s.freeIndex.Add(satIndex)
	}
	return s.msat.Flush()
}

// Allocate claims and returns an unused sector id, its SAT entry
// already set to EndOfChain (§4.7 "Allocate").
func (s *SAT) Allocate() (uint32, error) {
	if s.cache.satIndex >= 0 {
		for off, e := range s.cache.entries {
			if e == NotUsed {
				id := uint32(s.cache.satIndex*s.entriesPerSector + off)
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

	if err := s.growSAT(); err != nil {
		return 0, err
	}
	return s.Allocate()
}

// AllocateNextSector allocates a new sector and links prev to it; a
// prev of EndOfChain means "allocate the head of a new chain."
func (s *SAT) AllocateNextSector(prev uint32) (uint32, error) {
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

// Free splices secId out of its chain (§4.7 "Free inter-sector").
func (s *SAT) Free(prev, secId uint32) error {
	next, err := s.entryAt(secId)
	if err != nil {
		return err
	}
	if prev != NotUsed && prev != EndOfChain {
		if err := s.setEntryAt(prev, next); err != nil {
			return err
		}
	}
	return s.setEntryAt(secId, NotUsed)
}

// FreeRaw marks id NotUsed directly, bypassing the chain-splice
// bookkeeping Free performs — used when tearing down an entire chain
// sector-by-sector, where no predecessor's link needs rewriting.
func (s *SAT) FreeRaw(id uint32) error {
	return s.setEntryAt(id, NotUsed)
}

// Flush writes the cached SAT sector back to dev; the header is not
// written here.
func (s *SAT) Flush() error {
	return s.flushCache()
}
