package vfscore

import "sync/atomic"

// DirHandle is a handle-based sequential cursor over one directory's
// entries (spec.md §3/§4.F). Holding a DirHandle contributes one nlink to
// its Inode.
type DirHandle struct {
	Ino    *Inode
	cursor int
	super  *Superblock
}

// openDirIn implements spec.md §4.F opendir(path): resolve with
// FL_DIR|FL_FOLLOW, assert the result is a directory, take a reserving
// hold on it, and return a cursor positioned at the first child.
func openDirIn(super *Superblock, path string, hopLimit int) (*DirHandle, FsError) {
	ino, fsErr := inodeFromPath(super, path, Follow(hopLimit), FlDir|FlFollow)
	if fsErr != EOKAY {
		return nil, fsErr
	}
	if !ino.Stat.IsDir() {
		return nil, ENOTDIR
	}

	super.mu.Lock()
	ino.nlink++
	ino.Stat.Nlink = uint32(ino.nlink)
	super.mu.Unlock()

	super.markBusy()
	setHandleGauge(super.Name, atomic.AddInt64(&super.fdUsage, 1))

	return &DirHandle{Ino: ino, super: super}, EOKAY
}

// ReadDir returns the current entry (advancing the cursor), or ok=false
// past the last entry, per spec.md §4.F readdir().
func (h *DirHandle) ReadDir() (DirEnt, bool) {
	h.super.mu.Lock()
	defer h.super.mu.Unlock()

	if h.cursor >= len(h.Ino.Children) {
		return DirEnt{}, false
	}
	ent := h.Ino.Children[h.cursor]
	de := DirEnt{
		Offset: DirOffset(h.cursor + 1),
		Ino:    ent.Ino.ID,
		Name:   ent.Name,
		Type:   typeFromMode(ent.Ino.Stat.Mode),
	}
	h.cursor++
	return de, true
}

// CloseDir releases the reserving hold taken by openDirIn, per spec.md
// §4.F closedir().
func (h *DirHandle) CloseDir() {
	n := atomic.AddInt64(&h.super.fdUsage, -1)
	setHandleGauge(h.super.Name, n)
	if n == 0 {
		h.super.markIdle()
	}
	FreeInode(h.Ino)
	h.Ino = nil
}

// chdirIn implements spec.md §4.F chdir(path) = open-then-close: it
// succeeds iff the directory resolves.
func chdirIn(super *Superblock, path string, hopLimit int) FsError {
	h, fsErr := openDirIn(super, path, hopLimit)
	if fsErr != EOKAY {
		return fsErr
	}
	h.CloseDir()
	return EOKAY
}

// inodeFromPath resolves path to an inode, applying the "empty path names
// the root" convention both resolvers share (spec.md §4.G stat family).
func inodeFromPath(super *Superblock, path string, follow Follow, flags LookupFlags) (*Inode, FsError) {
	ent, fsErr := findEntry(super, path, follow, flags)
	if fsErr != EOKAY {
		return nil, fsErr
	}
	if ent == nil {
		return super.Root, EOKAY
	}
	return ent.Ino, EOKAY
}
