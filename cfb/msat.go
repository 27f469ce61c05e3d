package cfb

import (
	"encoding/binary"

	"github.com/lidotcircle/sffs/blockdev"
)

// MSAT is the in-memory mirror of the master sector allocation table:
// the 109 in-header entries plus however many chained MSAT sectors
// follow (§4.6). Each chained MSAT sector holds sectorCap entries
// followed by the next-MSAT-sector id (or EndOfChain).
type MSAT struct {
	dev         blockdev.Device
	h           *Header
	sectorCap   int      // entries per chained MSAT sector (sectorSize/4 - 1)
	chainSecIDs []uint32 // MSAT sector ids, chain order
	entries     []uint32 // flattened: header's 109 entries, then chained ones
}

// LoadMSAT reads the full MSAT chain into memory.
func LoadMSAT(dev blockdev.Device, h *Header) (*MSAT, error) {
	m := &MSAT{
		dev:       dev,
		h:         h,
		sectorCap: int(h.SectorSize()/4) - 1,
	}
	m.entries = append(m.entries, h.MSATInHeader[:]...)

	sid := h.MSATHead
	for sid != EndOfChain {
		if IsReservedSectorID(sid) {
			return nil, ErrFileCorrupt
		}
		m.chainSecIDs = append(m.chainSecIDs, sid)
		buf := make([]byte, h.SectorSize())
		if _, err := dev.ReadAt(sectorAddr(h, sid), buf); err != nil {
			return nil, err
		}
		for i := 0; i < m.sectorCap; i++ {
			m.entries = append(m.entries, binary.LittleEndian.Uint32(buf[i*4:]))
		}
		sid = binary.LittleEndian.Uint32(buf[m.sectorCap*4:])
	}
	return m, nil
}

// Get returns the SAT-sector id recorded at MSAT logical index i.
func (m *MSAT) Get(i int) uint32 { return m.entries[i] }

// Len returns the number of MSAT slots currently allocated (used or not).
func (m *MSAT) Len() int { return len(m.entries) }

// HasFree reports whether any MSAT slot is currently NotUsed, without
// mutating state — used by SAT.growSAT to decide, before committing
// anything to disk, whether an MSAT expansion will be needed.
func (m *MSAT) HasFree() bool {
	for _, e := range m.entries {
		if e == NotUsed {
			return true
		}
	}
	return false
}

// MarkNextFree records satSecId in the first NotUsed MSAT slot and
// returns its index, or ok=false if every slot is occupied (the caller
// must Expand first).
func (m *MSAT) MarkNextFree(satSecId uint32) (index int, ok bool) {
	for i, e := range m.entries {
		if e == NotUsed {
			m.entries[i] = satSecId
			return i, true
		}
	}
	return -1, false
}

// Expand appends one new, all-NotUsed MSAT sector at newMsatSecId,
// linking it to the end of the existing chain (or as the chain head if
// the chain was empty), and persists the change immediately.
func (m *MSAT) Expand(newMsatSecId uint32) error {
	buf := make([]byte, m.h.SectorSize())
	for i := 0; i < m.sectorCap; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], NotUsed)
	}
	binary.LittleEndian.PutUint32(buf[m.sectorCap*4:], EndOfChain)
	if _, err := m.dev.WriteAt(sectorAddr(m.h, newMsatSecId), buf); err != nil {
		return err
	}

	if len(m.chainSecIDs) == 0 {
		m.h.MSATHead = newMsatSecId
	} else {
		lastSid := m.chainSecIDs[len(m.chainSecIDs)-1]
		tailBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(tailBuf, newMsatSecId)
		if _, err := m.dev.WriteAt(sectorAddr(m.h, lastSid)+int64(m.sectorCap)*4, tailBuf); err != nil {
			return err
		}
	}
	m.chainSecIDs = append(m.chainSecIDs, newMsatSecId)
	for i := 0; i < m.sectorCap; i++ {
		m.entries = append(m.entries, NotUsed)
	}
	m.h.MSATCount++
	return nil
}

// Flush copies the first 109 entries into the in-memory header
// (h.MSATInHeader; the header itself is not written here) and writes
// every chained MSAT sector's entries back to dev. The trailing
// next-sector pointers are not touched here (Expand already wrote them
// once, permanently).
func (m *MSAT) Flush() error {
	for i := 0; i < msatInHeaderEntries && i < len(m.entries); i++ {
		m.h.MSATInHeader[i] = m.entries[i]
	}

	off := msatInHeaderEntries
	for _, sid := range m.chainSecIDs {
		buf := make([]byte, m.sectorCap*4)
		for i := 0; i < m.sectorCap; i++ {
			binary.LittleEndian.PutUint32(buf[i*4:], m.entries[off+i])
		}
		if _, err := m.dev.WriteAt(sectorAddr(m.h, sid), buf); err != nil {
			return err
		}
		off += m.sectorCap
	}
	return nil
}
