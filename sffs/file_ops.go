package sffs

import (
	"io"

	"github.com/lidotcircle/sffs/directory"
)

// Seek whence values, matching io.Seek* numerically so callers can pass
// either interchangeably.
const (
	SeekSet = io.SeekStart
	SeekCur = io.SeekCurrent
	SeekEnd = io.SeekEnd
)

// OpenFile opens or creates path as a stream (§6 "open(path, mode) →
// handle | ErrorCode").
func (fs *FileSystem) OpenFile(path string, mode OpenMode) (int, error) {
	if (mode.has(ModeRead) && mode.has(ModeWrite)) || (!mode.has(ModeRead) && !mode.has(ModeWrite)) {
		return 0, fs.fail(ErrBadMode)
	}
	parentID, name, err := fs.resolveParent(path)
	if err != nil {
		return 0, fs.fail(err)
	}

	id, ok, err := fs.dir.Lookup(parentID, name)
	if err != nil {
		return 0, fs.fail(err)
	}
	if !ok {
		if !mode.has(ModeCreate) {
			return 0, fs.fail(ErrNotFound)
		}
		id, err = fs.dir.CreateChild(parentID, name, directory.TypeUserStream, stamp())
		if err != nil {
			return 0, fs.fail(err)
		}
		if err := fs.markNewStreamShort(id); err != nil {
			return 0, fs.fail(err)
		}
	}

	entry, err := fs.dir.ReadEntry(id)
	if err != nil {
		return 0, fs.fail(err)
	}
	if entry.Type != directory.TypeUserStream {
		return 0, fs.fail(ErrIsADirectory)
	}

	node := fs.handles.acquireNode(id, entry.Size, entry.HeadSector, entry.Flags&flagShort != 0)
	hid := fs.handles.next
	fs.handles.next++
	oh := &openHandle{node: node, mode: mode}
	fs.handles.handles[hid] = oh
	fs.handles.addRef(id, hid)

	if mode.has(ModeTruncate) {
		if err := fs.truncateNode(node, 0); err != nil {
			fs.handles.removeRef(id, hid)
			fs.handles.releaseNode(node)
			delete(fs.handles.handles, hid)
			return 0, fs.fail(err)
		}
	}
	if mode.has(ModeAppend) {
		oh.pos = int64(node.size)
	}
	return hid, fs.ok()
}

// Close releases a file handle (§6 "close(handle) → bool"); the shared
// node is dropped once its reference count reaches zero (§4.10 "Handle
// model"). Unlink is not deferred: it fails while any handle is open.
func (fs *FileSystem) Close(handle int) error {
	oh, ok := fs.handles.handles[handle]
	if !ok {
		return fs.fail(ErrInvalidHandle)
	}
	delete(fs.handles.handles, handle)
	fs.handles.removeRef(oh.node.entryID, handle)
	fs.handles.releaseNode(oh.node)
	return fs.ok()
}

// Read reads up to len(buf) bytes at the handle's current position
// (§6 "read(handle, buf, n) → n_read").
func (fs *FileSystem) Read(handle int, buf []byte) (int, error) {
	oh, ok := fs.handles.handles[handle]
	if !ok {
		return 0, fs.fail(ErrInvalidHandle)
	}
	if !oh.mode.has(ModeRead) {
		return 0, fs.fail(ErrPermissionDenied)
	}
	node := oh.node
	if oh.pos >= int64(node.size) {
		return 0, fs.ok()
	}
	avail := int64(node.size) - oh.pos
	n := len(buf)
	if int64(n) > avail {
		n = int(avail)
	}
	cs := fs.chainFor(node.headSector, node.short)
	got, err := cs.Read(oh.pos, buf[:n])
	oh.pos += int64(got)
	if err == io.EOF {
		err = nil
	}
	return got, fs.ok2(err)
}

// Write writes buf at the handle's current position, auto-repositioning
// to end-of-stream first when the handle was opened APPEND (§6
// "write(handle, buf, n) → n_written"; Open Question resolution:
// APPEND repositions on every write, not only at open).
func (fs *FileSystem) Write(handle int, buf []byte) (int, error) {
	oh, ok := fs.handles.handles[handle]
	if !ok {
		return 0, fs.fail(ErrInvalidHandle)
	}
	if !oh.mode.has(ModeWrite) {
		return 0, fs.fail(ErrPermissionDenied)
	}
	node := oh.node
	if oh.mode.has(ModeAppend) {
		oh.pos = int64(node.size)
	}

	targetEnd := uint64(oh.pos) + uint64(len(buf))
	if node.short && targetEnd >= uint64(fs.h.Threshold) {
		if err := fs.migrateStream(node, false); err != nil {
			return 0, fs.fail(err)
		}
	}

	cs := fs.chainFor(node.headSector, node.short)
	n, err := cs.Write(oh.pos, buf)
	node.headSector = cs.Head()
	oh.pos += int64(n)
	if uint64(oh.pos) > node.size {
		node.size = uint64(oh.pos)
	}
	if perr := fs.persistNode(node); perr != nil && err == nil {
		err = perr
	}
	return n, fs.ok2(err)
}

// markNewStreamShort sets flagShort on a freshly created, empty stream
// entry. A size-0 stream is always below the short/long threshold, and
// CreateChild otherwise leaves Flags at zero, which acquireNode reads
// as long-chain-backed.
func (fs *FileSystem) markNewStreamShort(id uint32) error {
	entry, err := fs.dir.ReadEntry(id)
	if err != nil {
		return err
	}
	entry.Flags |= flagShort
	return fs.dir.WriteEntry(id, entry)
}

// persistNode writes node's current size/head/short-flag/modified
// timestamp back to its directory entry.
func (fs *FileSystem) persistNode(node *entryNode) error {
	entry, err := fs.dir.ReadEntry(node.entryID)
	if err != nil {
		return err
	}
	entry.Size = node.size
	entry.HeadSector = node.headSector
	if node.short {
		entry.Flags |= flagShort
	} else {
		entry.Flags &^= flagShort
	}
	entry.Modified = stamp()
	return fs.dir.WriteEntry(node.entryID, entry)
}

// Truncate sets the handle's stream to exactly size bytes (§6
// "truncate(handle, size) → bool"), migrating across the short/long
// threshold if size crosses it.
func (fs *FileSystem) Truncate(handle int, size uint64) error {
	oh, ok := fs.handles.handles[handle]
	if !ok {
		return fs.fail(ErrInvalidHandle)
	}
	if !oh.mode.has(ModeWrite) {
		return fs.fail(ErrPermissionDenied)
	}
	if err := fs.truncateNode(oh.node, size); err != nil {
		return fs.fail(err)
	}
	return fs.ok()
}

func (fs *FileSystem) truncateNode(node *entryNode, size uint64) error {
	targetShort := size < uint64(fs.h.Threshold)
	if targetShort != node.short {
		if err := fs.migrateStream(node, targetShort); err != nil {
			return err
		}
	}

	sectorSize := fs.h.SectorSize()
	if node.short {
		sectorSize = fs.h.ShortSectorSize()
	}
	cs := fs.chainFor(node.headSector, node.short)
	allocated, err := cs.SizeSectors()
	if err != nil {
		return err
	}
	wantSectors := (int64(size) + sectorSize - 1) / sectorSize
	curSectors := allocated / sectorSize
	for curSectors > wantSectors {
		if err := cs.DeleteLastSector(); err != nil {
			return err
		}
		curSectors--
	}
	if size > node.size {
		if err := cs.Fillzeros(int64(node.size), int64(size)); err != nil {
			return err
		}
	}
	node.headSector = cs.Head()
	node.size = size
	if node.short {
		if err := fs.syncMiniHead(); err != nil {
			return err
		}
	}
	return fs.persistNode(node)
}

// Seek repositions the handle (§6 "seek(handle, offset, whence) →
// bool").
func (fs *FileSystem) Seek(handle int, offset int64, whence int) error {
	oh, ok := fs.handles.handles[handle]
	if !ok {
		return fs.fail(ErrInvalidHandle)
	}
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = oh.pos
	case SeekEnd:
		base = int64(oh.node.size)
	default:
		return fs.fail(ErrOutOfRange)
	}
	pos := base + offset
	if pos < 0 {
		return fs.fail(ErrOutOfRange)
	}
	oh.pos = pos
	return fs.ok()
}

// Tell returns the handle's current position (§6 "tell(handle) →
// offset | none").
func (fs *FileSystem) Tell(handle int) (int64, error) {
	oh, ok := fs.handles.handles[handle]
	if !ok {
		return 0, fs.fail(ErrInvalidHandle)
	}
	return oh.pos, fs.ok()
}

// Flush is a no-op beyond handle validation: every write already
// persists its entry immediately (§6 "flush(handle) → bool").
func (fs *FileSystem) Flush(handle int) error {
	if _, ok := fs.handles.handles[handle]; !ok {
		return fs.fail(ErrInvalidHandle)
	}
	return fs.ok()
}

// Eof reports whether the handle's position is at or past the
// stream's current size (§6 convenience predicate "eof").
func (fs *FileSystem) Eof(handle int) (bool, error) {
	oh, ok := fs.handles.handles[handle]
	if !ok {
		return false, fs.fail(ErrInvalidHandle)
	}
	return oh.pos >= int64(oh.node.size), fs.ok()
}

// Exists reports whether path resolves to any entry.
func (fs *FileSystem) Exists(path string) bool {
	_, err := fs.resolve(path)
	return err == nil
}

// IsFile reports whether path resolves to a stream entry.
func (fs *FileSystem) IsFile(path string) bool {
	id, err := fs.resolve(path)
	if err != nil {
		return false
	}
	entry, err := fs.dir.ReadEntry(id)
	return err == nil && entry.Type == directory.TypeUserStream
}

// IsDirectory reports whether path resolves to a storage entry.
func (fs *FileSystem) IsDirectory(path string) bool {
	id, err := fs.resolve(path)
	if err != nil {
		return false
	}
	entry, err := fs.dir.ReadEntry(id)
	return err == nil && (entry.Type == directory.TypeUserStorage || entry.Type == directory.TypeRoot)
}

// FileSize returns path's stream size in bytes.
func (fs *FileSystem) FileSize(path string) (uint64, error) {
	id, err := fs.resolve(path)
	if err != nil {
		return 0, fs.fail(err)
	}
	entry, err := fs.dir.ReadEntry(id)
	if err != nil {
		return 0, fs.fail(err)
	}
	return entry.Size, fs.ok()
}

// Touch creates path if missing, or refreshes its modified timestamp
// (not its created timestamp) if it already exists — the Open Question
// resolution recorded in SPEC_FULL.md §5.
func (fs *FileSystem) Touch(path string) error {
	id, err := fs.resolve(path)
	if err != nil {
		parentID, name, perr := fs.resolveParent(path)
		if perr != nil {
			return fs.fail(perr)
		}
		newID, cerr := fs.dir.CreateChild(parentID, name, directory.TypeUserStream, stamp())
		if cerr != nil {
			return fs.fail(cerr)
		}
		if err := fs.markNewStreamShort(newID); err != nil {
			return fs.fail(err)
		}
		return fs.ok()
	}
	entry, err := fs.dir.ReadEntry(id)
	if err != nil {
		return fs.fail(err)
	}
	entry.Modified = stamp()
	if err := fs.dir.WriteEntry(id, entry); err != nil {
		return fs.fail(err)
	}
	return fs.ok()
}

// Copy copies src's stream contents into dst, creating or truncating
// dst as needed.
func (fs *FileSystem) Copy(src, dst string) error {
	sh, err := fs.OpenFile(src, ModeRead)
	if err != nil {
		return err
	}
	defer fs.Close(sh)

	dh, err := fs.OpenFile(dst, ModeWrite|ModeCreate|ModeTruncate)
	if err != nil {
		return err
	}
	defer fs.Close(dh)

	buf := make([]byte, 4096)
	for {
		n, err := fs.Read(sh, buf)
		if n > 0 {
			if _, werr := fs.Write(dh, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
	}
	return fs.ok()
}
