package sffs

import (
	"time"

	"github.com/lidotcircle/sffs/directory"
)

// Mkdir creates path as a new storage entry (§6 "mkdir(path) → bool").
func (fs *FileSystem) Mkdir(path string) error {
	parentID, name, err := fs.resolveParent(path)
	if err != nil {
		return fs.fail(err)
	}
	if _, err := fs.dir.CreateChild(parentID, name, directory.TypeUserStorage, stamp()); err != nil {
		return fs.fail(err)
	}
	return fs.ok()
}

// Rmdir removes an empty directory (§6 "rmdir(path) → bool (fails on
// non-empty directory)").
func (fs *FileSystem) Rmdir(path string) error {
	id, err := fs.resolve(path)
	if err != nil {
		return fs.fail(err)
	}
	entry, err := fs.dir.ReadEntry(id)
	if err != nil {
		return fs.fail(err)
	}
	if entry.Type != directory.TypeUserStorage {
		return fs.fail(ErrNotADirectory)
	}
	empty, err := fs.dir.IsEmpty(id)
	if err != nil {
		return fs.fail(err)
	}
	if !empty {
		return fs.fail(ErrNotEmpty)
	}
	if fs.handles.hasOpenRefs(id) {
		return fs.fail(ErrPermissionDenied)
	}
	parentID, name, err := fs.resolveParent(path)
	if err != nil {
		return fs.fail(err)
	}
	if err := fs.dir.DeleteChild(parentID, name); err != nil {
		return fs.fail(err)
	}
	return fs.ok()
}

// OpenDir opens a directory handle on path (§6 "opendir(path) →
// dir_handle | ErrorCode").
func (fs *FileSystem) OpenDir(path string) (int, error) {
	id, err := fs.resolve(path)
	if err != nil {
		return 0, fs.fail(err)
	}
	entry, err := fs.dir.ReadEntry(id)
	if err != nil {
		return 0, fs.fail(err)
	}
	if entry.Type != directory.TypeUserStorage && entry.Type != directory.TypeRoot {
		return 0, fs.fail(ErrNotADirectory)
	}
	hid := fs.handles.next
	fs.handles.next++
	fs.handles.dirHandles[hid] = id
	fs.handles.addRef(id, hid)
	return hid, fs.ok()
}

// CloseDir releases a directory handle (§6 "closedir(dir_handle) →
// bool").
func (fs *FileSystem) CloseDir(handle int) error {
	id, ok := fs.handles.dirHandles[handle]
	if !ok {
		return fs.fail(ErrInvalidHandle)
	}
	delete(fs.handles.dirHandles, handle)
	fs.handles.removeRef(id, handle)
	return fs.ok()
}

// ListDir returns the names of path's children in ascending order
// (§6 "listdir(path) → sequence of child-stat").
func (fs *FileSystem) ListDir(path string) ([]string, error) {
	id, err := fs.resolve(path)
	if err != nil {
		return nil, fs.fail(err)
	}
	entry, err := fs.dir.ReadEntry(id)
	if err != nil {
		return nil, fs.fail(err)
	}
	if entry.Type != directory.TypeUserStorage && entry.Type != directory.TypeRoot {
		return nil, fs.fail(ErrNotADirectory)
	}
	names, err := fs.dir.ListChildren(id)
	if err != nil {
		return nil, fs.fail(err)
	}
	return names, fs.ok()
}

// Stat reports path's type, size, and timestamps (§6 "stat(path) →
// {type, size, ids} | none").
func (fs *FileSystem) Stat(path string) (Stat, error) {
	id, err := fs.resolve(path)
	if err != nil {
		return Stat{}, fs.fail(err)
	}
	entry, err := fs.dir.ReadEntry(id)
	if err != nil {
		return Stat{}, fs.fail(err)
	}
	fs.ok()
	return Stat{Type: entry.Type, Size: entry.Size, Created: entry.Created, Modified: entry.Modified}, nil
}

// Unlink removes a stream entry (§6 "unlink(path) → bool (fails if any
// open handle exists on the target)").
func (fs *FileSystem) Unlink(path string) error {
	id, err := fs.resolve(path)
	if err != nil {
		return fs.fail(err)
	}
	entry, err := fs.dir.ReadEntry(id)
	if err != nil {
		return fs.fail(err)
	}
	if entry.Type == directory.TypeUserStorage {
		return fs.fail(ErrIsADirectory)
	}
	if fs.handles.hasOpenRefs(id) {
		return fs.fail(ErrPermissionDenied)
	}
	if err := fs.freeEntryStream(entry); err != nil {
		return fs.fail(err)
	}
	parentID, name, err := fs.resolveParent(path)
	if err != nil {
		return fs.fail(err)
	}
	if err := fs.dir.DeleteChild(parentID, name); err != nil {
		return fs.fail(err)
	}
	return fs.ok()
}

// freeEntryStream releases whatever chain (long or short) entry's
// stream currently occupies.
func (fs *FileSystem) freeEntryStream(entry directory.Entry) error {
	cs := fs.chainFor(entry.HeadSector, entry.Flags&flagShort != 0)
	if err := cs.DeleteStream(); err != nil {
		return err
	}
	if entry.Flags&flagShort != 0 {
		return fs.syncMiniHead()
	}
	return nil
}

// Move performs a structural rename/move (§4.10 "Move/rename"):
// extraction from the source parent tree plus insertion into the
// destination parent tree, the payload (head sector, size) unchanged.
// Fails with ErrPermissionDenied if any handle is open on the source
// (§8 scenario 5). An existing target is never overwritten: the move
// fails with ErrAlreadyExists, or ErrPermissionDenied if that target
// has an open handle.
func (fs *FileSystem) Move(from, to string) error {
	srcID, err := fs.resolve(from)
	if err != nil {
		return fs.fail(err)
	}
	if fs.handles.hasOpenRefs(srcID) {
		return fs.fail(ErrPermissionDenied)
	}
	dstParentID, dstName, err := fs.resolveParent(to)
	if err != nil {
		return fs.fail(err)
	}
	if desc, err := fs.isDescendant(srcID, dstParentID); err != nil {
		return fs.fail(err)
	} else if desc {
		return fs.fail(ErrPermissionDenied)
	}
	if existingID, ok, err := fs.dir.Lookup(dstParentID, dstName); err != nil {
		return fs.fail(err)
	} else if ok {
		if fs.handles.hasOpenRefs(existingID) {
			return fs.fail(ErrPermissionDenied)
		}
		return fs.fail(ErrAlreadyExists)
	}

	srcParentID, srcName, err := fs.resolveParent(from)
	if err != nil {
		return fs.fail(err)
	}
	entry, err := fs.dir.ReadEntry(srcID)
	if err != nil {
		return fs.fail(err)
	}
	if err := fs.dir.DeleteChild(srcParentID, srcName); err != nil {
		return fs.fail(err)
	}
	newID, err := fs.dir.CreateChild(dstParentID, dstName, entry.Type, entry.Created)
	if err != nil {
		return fs.fail(err)
	}
	entry.Name = dstName
	entry.Modified = stamp()
	if err := fs.dir.WriteEntry(newID, entry); err != nil {
		return fs.fail(err)
	}
	if node, ok := fs.handles.nodes[srcID]; ok {
		node.entryID = newID
		fs.handles.nodes[newID] = node
		delete(fs.handles.nodes, srcID)
	}
	return fs.ok()
}

// stamp returns the current wall-clock time, used for timestamps the
// façade stores (Created/Modified) on every structural operation.
func stamp() time.Time { return time.Now() }
