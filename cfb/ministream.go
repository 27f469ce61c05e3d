package cfb

import "io"

// ShortStream is a short-sector chain (§4.10): it behaves exactly like
// Stream, but its chain is allocated through the SSAT instead of the
// SAT, and its bytes are physical slices of the mini-stream (itself a
// regular Stream) rather than of the device directly. Grounded on
// Stream's own design (cache the chain lazily, extend it on write,
// never extend it on read) and on §4.10's "short sectors are physical
// slices of the mini-stream."
type ShortStream struct {
	ssat      *SSAT
	mini      *Stream
	shortSize int64
	head      uint32

	chain     []uint32
	tailKnown bool
}

// NewShortStream wraps an existing short-sector chain starting at head
// (EndOfChain for an empty stream), backed by mini, the directory
// root's mini-stream.
func NewShortStream(ssat *SSAT, mini *Stream, shortSize int64, head uint32) *ShortStream {
	st := &ShortStream{ssat: ssat, mini: mini, shortSize: shortSize, head: head}
	if head == EndOfChain {
		st.tailKnown = true
	}
	return st
}

// Head returns the chain's head short-sector id.
func (st *ShortStream) Head() uint32 { return st.head }

func (st *ShortStream) ensureChainLen(n int) error {
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
		next, err := st.ssat.GetNext(cur)
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

func (st *ShortStream) ensureFullChain() error {
	return st.ensureChainLen(1 << 30)
}

// SizeSectors returns the chain's length in short sectors, in bytes.
func (st *ShortStream) SizeSectors() (int64, error) {
	if err := st.ensureFullChain(); err != nil {
		return 0, err
	}
	return int64(len(st.chain)) * st.shortSize, nil
}

// AppendSector allocates a new short sector, zeroing its bytes in the
// mini-stream (which auto-extends with regular sectors as needed).
func (st *ShortStream) AppendSector() (int64, error) {
	if err := st.ensureFullChain(); err != nil {
		return 0, err
	}
	lastId := EndOfChain
	if len(st.chain) > 0 {
		lastId = st.chain[len(st.chain)-1]
	}
	newId, err := st.ssat.AllocateNextSector(lastId)
	if err != nil {
		return 0, err
	}
	if len(st.chain) == 0 {
		st.head = newId
	}
	st.chain = append(st.chain, newId)
	st.tailKnown = true

	addr := int64(newId) * st.shortSize
	zeros := make([]byte, st.shortSize)
	if _, err := st.mini.Write(addr, zeros); err != nil {
		return 0, err
	}
	return addr, nil
}

// DeleteLastSector releases the chain's last short sector back to the
// SSAT.
func (st *ShortStream) DeleteLastSector() error {
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
	if err := st.ssat.Free(prev, last); err != nil {
		return err
	}
	st.chain = st.chain[:len(st.chain)-1]
	if len(st.chain) == 0 {
		st.head = EndOfChain
	}
	return nil
}

// DeleteStream releases every short sector in the chain.
func (st *ShortStream) DeleteStream() error {
	if err := st.ensureFullChain(); err != nil {
		return err
	}
	for _, id := range st.chain {
		if err := st.ssat.FreeRaw(id); err != nil {
			return err
		}
	}
	st.chain = nil
	st.head = EndOfChain
	st.tailKnown = true
	return nil
}

// Read reads len(buf) bytes starting at logical offset addr, never
// extending the chain; past the chain's extent it returns io.EOF.
func (st *ShortStream) Read(addr int64, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		secIdx := int((addr + int64(total)) / st.shortSize)
		within := (addr + int64(total)) % st.shortSize
		if err := st.ensureChainLen(secIdx + 1); err != nil {
			return total, err
		}
		if secIdx >= len(st.chain) {
			return total, io.EOF
		}
		physID := st.chain[secIdx]
		n := len(buf) - total
		if room := int(st.shortSize - within); n > room {
			n = room
		}
		got, err := st.mini.Read(int64(physID)*st.shortSize+within, buf[total:total+n])
		total += got
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Write writes buf at logical offset addr, auto-extending the chain via
// SSAT allocation whenever addr+len(buf) exceeds the chain's current
// extent.
func (st *ShortStream) Write(addr int64, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		secIdx := int((addr + int64(total)) / st.shortSize)
		within := (addr + int64(total)) % st.shortSize
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
		if room := int(st.shortSize - within); n > room {
			n = room
		}
		put, err := st.mini.Write(int64(physID)*st.shortSize+within, buf[total:total+n])
		total += put
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Fillzeros zeroes the logical range [a, b), extending the chain as
// needed.
func (st *ShortStream) Fillzeros(a, b int64) error {
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
