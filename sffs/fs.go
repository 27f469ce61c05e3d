// Package sffs implements the file-system façade (§2.12, §4.10): the
// single package most callers import, composing the directory table
// (directory) over the block-addressed allocation layer (cfb) the same
// way the teacher library's multimap package is the only entry point
// callers of that library need.
package sffs

import (
	"time"

	"github.com/lidotcircle/sffs/blockdev"
	"github.com/lidotcircle/sffs/cfb"
	"github.com/lidotcircle/sffs/directory"
)

// Stat is the façade's per-entry metadata snapshot (§6 "stat(path)").
type Stat struct {
	Type     directory.EntryType
	Size     uint64
	Created  time.Time
	Modified time.Time
}

// FileSystem is one open structured container file (§4.10). It is not
// safe for concurrent use from multiple goroutines without external
// serialization (§5 "the caller must serialize all façade calls").
type FileSystem struct {
	dev  blockdev.Device
	h    *cfb.Header
	msat *cfb.MSAT
	sat  *cfb.SAT
	ssat *cfb.SSAT
	dir  *directory.Table

	mini *cfb.Stream // backs every short-sector chain; head lives on entry 0

	handles *handleTable
	lastErr error
}

// Format lays down a brand-new, empty structured container file over
// dev (§4.6 header fields; §8 scenario 3's "sector-shift 9, short-
// sector-shift 6" fixture shape).
func Format(dev blockdev.Device, sectorShift, shortShift, majorVersion uint16, threshold uint32, now time.Time) (*FileSystem, error) {
	h, err := cfb.NewHeader(sectorShift, shortShift, majorVersion, threshold)
	if err != nil {
		return nil, err
	}
	if err := cfb.WriteHeader(dev, h); err != nil {
		return nil, err
	}
	msat, err := cfb.LoadMSAT(dev, h)
	if err != nil {
		return nil, err
	}
	sat, err := cfb.LoadSAT(dev, h, msat)
	if err != nil {
		return nil, err
	}
	ssat, err := cfb.LoadSSAT(dev, h, sat)
	if err != nil {
		return nil, err
	}
	dirTable, dirHead, err := directory.Format(dev, h, sat, now)
	if err != nil {
		return nil, err
	}
	h.DirHead = dirHead
	if err := cfb.WriteHeader(dev, h); err != nil {
		return nil, err
	}

	root, err := dirTable.ReadEntry(directory.RootEntryID)
	if err != nil {
		return nil, err
	}
	return &FileSystem{
		dev: dev, h: h, msat: msat, sat: sat, ssat: ssat, dir: dirTable,
		mini:    cfb.NewStream(dev, h, sat, root.HeadSector),
		handles: newHandleTable(),
	}, nil
}

// Open reattaches to an already-formatted structured container file
// (§8 "Reopening an image at a different path yields identical
// results").
func Open(dev blockdev.Device) (*FileSystem, error) {
	h, err := cfb.ReadHeader(dev)
	if err != nil {
		return nil, err
	}
	msat, err := cfb.LoadMSAT(dev, h)
	if err != nil {
		return nil, err
	}
	sat, err := cfb.LoadSAT(dev, h, msat)
	if err != nil {
		return nil, err
	}
	ssat, err := cfb.LoadSSAT(dev, h, sat)
	if err != nil {
		return nil, err
	}
	dirTable, err := directory.Open(dev, h, sat, h.DirHead)
	if err != nil {
		return nil, err
	}
	root, err := dirTable.ReadEntry(directory.RootEntryID)
	if err != nil {
		return nil, err
	}
	return &FileSystem{
		dev: dev, h: h, msat: msat, sat: sat, ssat: ssat, dir: dirTable,
		mini:    cfb.NewStream(dev, h, sat, root.HeadSector),
		handles: newHandleTable(),
	}, nil
}

// fail records err as last_error and returns err unchanged (GetError
// classifies it into an ErrorCode later), the single place every façade
// method routes its failures through (§7 "the façade catches them, sets
// last_error").
func (fs *FileSystem) fail(err error) error {
	fs.lastErr = err
	return err
}

func (fs *FileSystem) ok() error {
	fs.lastErr = nil
	return nil
}

// GetError returns the ErrorCode of the most recent façade call.
func (fs *FileSystem) GetError() ErrorCode { return codeOf(fs.lastErr) }

// LastError returns the underlying error of the most recent façade
// call, or nil.
func (fs *FileSystem) LastError() error { return fs.lastErr }

// syncMiniHead persists the mini-stream's head sector id into entry 0
// once it moves away from EndOfChain (§6 "Mini-stream head is stored on
// the root entry").
func (fs *FileSystem) syncMiniHead() error {
	root, err := fs.dir.ReadEntry(directory.RootEntryID)
	if err != nil {
		return err
	}
	if root.HeadSector != fs.mini.Head() {
		root.HeadSector = fs.mini.Head()
		return fs.dir.WriteEntry(directory.RootEntryID, root)
	}
	return nil
}

// resolve walks path from entry 0 (§4.10 "Resolution walks from entry
// 0; at each step the name is looked up in the parent's RB-tree").
func (fs *FileSystem) resolve(path string) (uint32, error) {
	id := directory.RootEntryID
	for _, seg := range splitPath(path) {
		entry, err := fs.dir.ReadEntry(id)
		if err != nil {
			return 0, err
		}
		if entry.Type != directory.TypeRoot && entry.Type != directory.TypeUserStorage {
			return 0, ErrNotADirectory
		}
		child, ok, err := fs.dir.Lookup(id, seg)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrNotFound
		}
		id = child
	}
	return id, nil
}

// resolveParent resolves every path segment but the last, returning the
// parent entry id and the final segment's normalized name.
func (fs *FileSystem) resolveParent(path string) (uint32, string, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return 0, "", ErrNotFound
	}
	id := directory.RootEntryID
	for _, seg := range segs[:len(segs)-1] {
		entry, err := fs.dir.ReadEntry(id)
		if err != nil {
			return 0, "", err
		}
		if entry.Type != directory.TypeRoot && entry.Type != directory.TypeUserStorage {
			return 0, "", ErrNotADirectory
		}
		child, ok, err := fs.dir.Lookup(id, seg)
		if err != nil {
			return 0, "", err
		}
		if !ok {
			return 0, "", ErrNotFound
		}
		id = child
	}
	return id, segs[len(segs)-1], nil
}

// isDescendant reports whether candidate is id or a (possibly indirect)
// child of id, used by Move to reject moving a directory into its own
// subtree (§4.10 "disallowing moves into a proper descendant").
func (fs *FileSystem) isDescendant(id, candidate uint32) (bool, error) {
	for {
		if id == candidate {
			return true, nil
		}
		entry, err := fs.dir.ReadEntry(candidate)
		if err != nil {
			return false, err
		}
		if entry.Type != directory.TypeUserStorage && entry.Type != directory.TypeRoot {
			return false, nil
		}
		if candidate == directory.RootEntryID {
			return false, nil
		}
		parent, err := fs.parentOf(candidate)
		if err != nil {
			return false, err
		}
		candidate = parent
	}
}

// parentOf finds candidate's parent by walking the whole tree from the
// root; the on-device entry record carries no parent pointer (§3, §9
// "Node identity in embedded RB-trees" — only left/right/child).
func (fs *FileSystem) parentOf(candidate uint32) (uint32, error) {
	var find func(id uint32) (uint32, bool, error)
	find = func(id uint32) (uint32, bool, error) {
		names, err := fs.dir.ListChildren(id)
		if err != nil {
			return 0, false, err
		}
		for _, name := range names {
			child, ok, err := fs.dir.Lookup(id, name)
			if err != nil {
				return 0, false, err
			}
			if !ok {
				continue
			}
			if child == candidate {
				return id, true, nil
			}
			entry, err := fs.dir.ReadEntry(child)
			if err != nil {
				return 0, false, err
			}
			if entry.Type == directory.TypeUserStorage {
				if found, ok, err := find(child); err != nil {
					return 0, false, err
				} else if ok {
					return found, true, nil
				}
			}
		}
		return 0, false, nil
	}
	parent, ok, err := find(directory.RootEntryID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	return parent, nil
}

// chainFor builds the chainStream for a stream currently rooted at
// head, routed to the short or regular chain per short (§4.10
// "Short/long routing").
func (fs *FileSystem) chainFor(head uint32, short bool) chainStream {
	if short {
		return cfb.NewShortStream(fs.ssat, fs.mini, fs.h.ShortSectorSize(), head)
	}
	return cfb.NewStream(fs.dev, fs.h, fs.sat, head)
}

// migrateStream moves node's entire payload from its current chain to
// a fresh chain of the other kind, freeing the old one (§4.10 "On
// writes that would cross the threshold, migrate the data to a regular
// chain and free the short chain; on truncate that would cross back,
// migrate the other way").
func (fs *FileSystem) migrateStream(node *entryNode, toShort bool) error {
	if node.short == toShort {
		return nil
	}
	old := fs.chainFor(node.headSector, node.short)
	data := make([]byte, node.size)
	if node.size > 0 {
		if _, err := old.Read(0, data); err != nil {
			return err
		}
	}
	if err := old.DeleteStream(); err != nil {
		return err
	}
	if node.short {
		if err := fs.syncMiniHead(); err != nil {
			return err
		}
	}

	fresh := fs.chainFor(cfb.EndOfChain, toShort)
	if len(data) > 0 {
		if _, err := fresh.Write(0, data); err != nil {
			return err
		}
	}
	node.short = toShort
	node.headSector = fresh.Head()
	if toShort {
		if err := fs.syncMiniHead(); err != nil {
			return err
		}
	}
	return nil
}

// Sync flushes the underlying block device (§6 "sync() — flushes the
// underlying device").
func (fs *FileSystem) Sync() error {
	return fs.ok2(blockdev.Sync(fs.dev))
}

func (fs *FileSystem) ok2(err error) error {
	if err != nil {
		return fs.fail(err)
	}
	return fs.ok()
}
