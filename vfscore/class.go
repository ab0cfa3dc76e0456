package vfscore

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ClassFlags mirror the subclass flags of spec.md §6: READONLY selects
// whether write/fh_open-for-write is offered at all; REMOTE selects the
// linear (flat, freshness-checked) path resolver instead of the tree one.
type ClassFlags uint32

const (
	ReadOnly ClassFlags = 1 << iota
	Remote
	NoOpen // FL_NO_OPEN: GetPath must not create a new superblock on miss
)

func (f ClassFlags) has(bit ClassFlags) bool { return f&bit != 0 }

// SubclassHooks is the mandatory half of the hook contract a filesystem
// author must implement (spec.md §6). The optional half is expressed as a
// family of small capability interfaces below (ArchiveChecker,
// ArchiveMatcher, InodeInitializer, ...), queried with a type assertion
// instead of null-checked function pointers — "a capability set with
// optional members" per spec.md §9's design note, expressed the idiomatic
// Go way.
type SubclassHooks interface {
	// OpenArchive opens a new superblock for (name, operator), populating
	// super.Root and super.Name on success.
	OpenArchive(super *Superblock, name, operator string) error
	// FreeArchive tears down subclass-private superblock state.
	FreeArchive(super *Superblock)
}

// ArchiveChecker offers cheap pre-validation of an archive name before any
// superblock is scanned or opened.
type ArchiveChecker interface {
	ArchiveCheck(name, operator string) (cookie interface{}, ok bool)
}

// MatchResult is the three-way verdict of ArchiveMatcher.ArchiveSame.
type MatchResult int

const (
	NoMatch MatchResult = iota
	Match
	MatchStop
)

// ArchiveMatcher decides whether an already-open superblock should be
// reused for (name, operator, cookie).
type ArchiveMatcher interface {
	ArchiveSame(super *Superblock, name, operator string, cookie interface{}) MatchResult
}

// InodeInitializer lets a subclass lazily attach private state right after
// NewInode/NewEntry allocate.
type InodeInitializer interface {
	InitInode(ino *Inode)
}
type EntryInitializer interface {
	InitEntry(ent *Entry)
}

// InodeFinalizer is the destructor counterpart, invoked by FreeInode right
// before the inode is deallocated.
type InodeFinalizer interface {
	FreeInode(ino *Inode)
}

// DirLoader populates a freshly minted directory inode for the linear
// resolver (spec.md §4.D step 5).
type DirLoader interface {
	DirLoad(ino *Inode, path string) error
}

// DirFreshnessOverride lets a subclass replace the generic timestamp
// freshness check; an armed flush still forces a reload first (rarely
// needed; most subclasses just set Inode.Expiry from DirLoad and let the
// generic check in freshness.go run).
type DirFreshnessOverride interface {
	DirUpToDate(ino *Inode) bool
}

// LinearStreamer implements the forward-only streaming read protocol used
// when random access to the remote is impossible (spec.md §4.G).
type LinearStreamer interface {
	LinearStart(fh *FileHandle, pos int64) error
	LinearRead(fh *FileHandle, buf []byte) (int, error)
	LinearClose(fh *FileHandle) error
}

// RandomAccessHandle implements random-access open/close for subclasses
// that don't speak linear mode.
type RandomAccessHandle interface {
	FhOpen(fh *FileHandle) error
	FhClose(fh *FileHandle) error
}

// FileStorer implements write-back-on-close for a writable remote
// filesystem (spec.md §4.G close step 4).
type FileStorer interface {
	FileStore(fh *FileHandle, fullPath, localName string) error
}

// Class wires one filesystem implementation's hooks together with the
// cache core: it owns the monotonic inode-id counter, the device number
// reported in Stat.Dev, the superblock registry, and picks the tree vs.
// linear resolver per spec.md §4.I.
type Class struct {
	Name  string
	Flags ClassFlags
	Rdev  int64
	Hooks SubclassHooks

	Tunables Tunables

	mu          sync.Mutex
	supers      []*Superblock
	inodeCtr    uint64
	flush       int32 // one-shot global cache-flush flag, spec.md §4.H
	globalErrno FsError
	logfile     *os.File // SETCTL LOGFILE sink, spec.md §6
}

// NewClass constructs a wired Class. rdev is an arbitrary stable number
// this class reports as Stat.Dev for all its inodes (distinct classes
// should use distinct values so stat(2) callers can tell filesystems
// apart, mirroring st_dev).
func NewClass(name string, flags ClassFlags, rdev int64, hooks SubclassHooks) *Class {
	return &Class{
		Name:     name,
		Flags:    flags,
		Rdev:     rdev,
		Hooks:    hooks,
		Tunables: DefaultTunables(),
	}
}

func (c *Class) nextInodeID() InodeID {
	return InodeID(atomic.AddUint64(&c.inodeCtr, 1))
}

// Flush arms the one-shot global cache-flush flag (the SETCTL FLUSH
// control, spec.md §6). The next DirUpToDate check across every
// superblock of this class bypasses its normal freshness test and forces
// a reload.
func (c *Class) Flush() {
	atomic.StoreInt32(&c.flush, 1)
}

// consumeFlush clears and returns the one-shot flag.
func (c *Class) consumeFlush() bool {
	return atomic.CompareAndSwapInt32(&c.flush, 1, 0)
}

// LogFile returns the current SETCTL LOGFILE sink, or nil if none is
// open. Subclasses that log wire traffic (an out-of-scope concern per
// spec.md §1) use this instead of holding their own handle.
func (c *Class) LogFile() *os.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logfile
}

func (c *Class) setLogFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	c.mu.Lock()
	old := c.logfile
	c.logfile = f
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Ferrno returns the class-local errno field, per spec.md §6's ferrno().
func (c *Class) Ferrno() FsError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.globalErrno
}

func (c *Class) setErrno(e FsError) FsError {
	c.mu.Lock()
	c.globalErrno = e
	c.mu.Unlock()
	return e
}

// NothingIsOpen reports whether every superblock of this class currently
// has zero open file handles — the universal method table's
// `nothingisopen` entry (spec.md §4.I), used by callers deciding whether
// it's safe to tear the whole class down.
func (c *Class) NothingIsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.supers {
		if atomic.LoadInt64(&s.fdUsage) != 0 {
			return false
		}
	}
	return true
}

// newSessionID stamps a superblock with a process-stable opaque id for
// diagnostics, independent of pointer reuse across process restarts.
func newSessionID() uuid.UUID {
	return uuid.New()
}
