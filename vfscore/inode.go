package vfscore

import (
	"os"
	"sync"
	"syscall"
	"time"
)

// Inode represents a file-like object within one superblock (spec.md §3).
//
// Ownership is expressed with plain Go pointers rather than the teacher's
// flat-slice-plus-free-list arena (icFSD.stoInodes/freeInoIdxs): Go's GC
// already reclaims an Inode once nothing references it, so the arena's
// real job — giving "decrement refcount, free at zero" an explicit home —
// is carried here by the nlink field and FreeInode/FreeEntry alone. See
// DESIGN.md for the tradeoff.
type Inode struct {
	ID    InodeID
	Super *Superblock
	Stat  Stat

	// LinkName is the symlink target, set only for symlinks.
	LinkName string
	// LocalName is the optional cached-body pathname on the host
	// filesystem (spec.md §3; populated by Open's O_CREAT path and by
	// write-back subclasses).
	LocalName string

	// NamedBy is the single entry currently naming this inode, if any.
	NamedBy *Entry
	// Children holds this inode's directory entries; always empty for
	// non-directories.
	Children []*Entry

	// Expiry is the linear resolver's freshness horizon for a directory
	// snapshot (spec.md §4.D's dir_uptodate); zero for non-directories and
	// for tree-resolved inodes, which never expire on their own.
	Expiry time.Time

	// Priv is subclass-private data.
	Priv interface{}

	nlink int32
}

// Nlink returns the current reference count.
func (ino *Inode) Nlink() int32 { return ino.nlink }

var (
	cachedUmaskOnce sync.Once
	cachedUmask     os.FileMode
)

// processUmask reads the umask exactly once per process. spec.md §9 flags
// the teacher's get-then-restore umask(022); umask(prev) probe as a data
// race on any multi-threaded host; we pay that race exactly once, at
// first use, and cache the result forever after.
func processUmask() os.FileMode {
	cachedUmaskOnce.Do(func() {
		prev := syscall.Umask(0)
		syscall.Umask(prev)
		cachedUmask = os.FileMode(prev)
	})
	return cachedUmask
}

// DefaultStat builds the stat block new_inode starts from when the caller
// doesn't supply one: current real uid/gid, zero size, all timestamps set
// to now, mode masked by the process umask (spec.md §4.A).
func DefaultStat(mode os.FileMode) Stat {
	now := time.Now()
	return Stat{
		Mode:  mode &^ processUmask(),
		Uid:   uint32(os.Getuid()),
		Gid:   uint32(os.Getgid()),
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

// NewInode allocates an inode with nlink=0, owned by super, assigning a
// fresh monotonic Ino and the class's Rdev as Dev, and running the subclass InitInode hook if
// present (spec.md §4.A new_inode).
func NewInode(super *Superblock, initStat *Stat) *Inode {
	var st Stat
	if initStat != nil {
		st = *initStat
	}
	st.Ino = super.Class.nextInodeID()
	st.Dev = super.Class.Rdev

	ino := &Inode{
		ID:    st.Ino,
		Super: super,
		Stat:  st,
	}
	super.register(ino)

	if initer, ok := super.Class.Hooks.(InodeInitializer); ok {
		initer.InitInode(ino)
	}
	return ino
}

// NewRootInode builds a directory inode meant to be assigned directly to
// Superblock.Root, with nlink held at 1. A root is never named by a
// parent entry — InsertEntry is what normally grants a hold — so a
// subclass's OpenArchive hook (and Invalidate, on replacement) must take
// this explicit hold itself or the inode would read as already at its
// last reference and be torn down by the next FreeInode.
func NewRootInode(super *Superblock, initStat *Stat) *Inode {
	ino := NewInode(super, initStat)
	ino.nlink = 1
	ino.Stat.Nlink = 1
	return ino
}

// Entry represents a name in a parent directory (spec.md §3).
type Entry struct {
	Name string
	Ino  *Inode
	Dir  *Inode // parent; nil for detached/transient entries
}

// NewEntry allocates an entry naming ino, linking the inode's NamedBy
// back-pointer and running the subclass InitEntry hook if present
// (spec.md §4.A new_entry). The entry is not yet attached to any
// directory; call InsertEntry for that.
func NewEntry(name string, ino *Inode) *Entry {
	if name == "" {
		panic("vfscore: entry name must not be empty")
	}
	ent := &Entry{Name: name, Ino: ino}
	ino.NamedBy = ent

	if initer, ok := ino.Super.Class.Hooks.(EntryInitializer); ok {
		initer.InitEntry(ent)
	}
	return ent
}

// InsertEntry attaches entry under parent's child list and takes one
// nlink reference on its inode (spec.md §4.A insert_entry). Guarded by
// parent.Super.mu, the same lock FreeEntry/FreeInode and the resolvers'
// Children scans take, so concurrent callers against one superblock never
// race on the directory graph.
func InsertEntry(parent *Inode, entry *Entry) {
	parent.Super.mu.Lock()
	defer parent.Super.mu.Unlock()
	insertEntryLocked(parent, entry)
}

// insertEntryLocked is InsertEntry's body for callers that already hold
// parent.Super.mu.
func insertEntryLocked(parent *Inode, entry *Entry) {
	entry.Dir = parent
	parent.Children = append(parent.Children, entry)
	entry.Ino.nlink++
	entry.Ino.Stat.Nlink = uint32(entry.Ino.nlink)
}

// GenerateEntry is the convenience constructor of spec.md §4.A:
// new_entry(name, new_inode(parent.super, default_stat(mode))), without
// inserting it into parent yet.
func GenerateEntry(name string, parent *Inode, mode os.FileMode) *Entry {
	st := DefaultStat(mode)
	ino := NewInode(parent.Super, &st)
	return NewEntry(name, ino)
}

// FreeEntry detaches entry from its parent's child list, clears the
// inode's NamedBy back-pointer if it pointed here, and releases one nlink
// on the inode via FreeInode (spec.md §4.A free_entry). Guarded by
// entry.Ino.Super.mu; see InsertEntry.
func FreeEntry(entry *Entry) {
	super := entry.Ino.Super
	super.mu.Lock()
	defer super.mu.Unlock()
	freeEntryLocked(entry)
}

// freeEntryLocked is FreeEntry's body for callers that already hold the
// owning superblock's mu (FreeInode's recursive child teardown calls this
// directly rather than through FreeEntry, to avoid relocking).
func freeEntryLocked(entry *Entry) {
	if entry.Dir != nil {
		siblings := entry.Dir.Children
		for i, e := range siblings {
			if e == entry {
				entry.Dir.Children = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
		entry.Dir = nil
	}
	if entry.Ino.NamedBy == entry {
		entry.Ino.NamedBy = nil
	}
	freeInodeLocked(entry.Ino)
}

// FreeInode releases one reference on ino. If more than one reference
// remains, it just decrements; otherwise it recursively frees every child
// entry, runs the subclass FreeInode hook, unlinks any cached local-file
// body, and removes ino from its superblock's live registry (spec.md
// §4.A free_inode). Guarded by ino.Super.mu; see InsertEntry.
func FreeInode(ino *Inode) {
	ino.Super.mu.Lock()
	defer ino.Super.mu.Unlock()
	freeInodeLocked(ino)
}

// freeInodeLocked is FreeInode's body for callers that already hold
// ino.Super.mu.
func freeInodeLocked(ino *Inode) {
	if ino.nlink > 1 {
		ino.nlink--
		ino.Stat.Nlink = uint32(ino.nlink)
		return
	}

	for len(ino.Children) > 0 {
		freeEntryLocked(ino.Children[0])
	}

	if finalizer, ok := ino.Super.Class.Hooks.(InodeFinalizer); ok {
		finalizer.FreeInode(ino)
	}

	ino.LinkName = ""
	if ino.LocalName != "" {
		os.Remove(ino.LocalName)
		ino.LocalName = ""
	}

	ino.nlink = 0
	ino.Stat.Nlink = 0
	ino.Super.unregisterLocked(ino)
}
