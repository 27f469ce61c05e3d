package cfb

// sectorAddr returns the physical byte offset of sector secId, given
// the header's sector size (§3 "addressed by addr_t...data past byte
// 512 is organized into equally sized sectors").
func sectorAddr(h *Header, secId uint32) int64 {
	return HeaderSize + int64(secId)*h.SectorSize()
}
