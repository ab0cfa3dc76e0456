package vfscore

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

// Superblock represents one open archive or remote session (spec.md §3).
type Superblock struct {
	Name  string
	Class *Class
	Root  *Inode
	Priv  interface{}

	sessionID uuid.UUID

	mu sync.Mutex

	inoUsage  int64
	fdUsage   int64
	wantStale bool

	// live inode registry, keyed by the id minted in NewInode. Grounded on
	// the teacher's icFSD.regInode/stoInodes arena, collapsed to a single
	// map since Go's GC makes a manual free-list unnecessary here (see
	// DESIGN.md).
	inodes map[InodeID]*Inode

	idleSince time.Time
	idle      bool
}

// InoUsage is the live inode count, for spec.md §8 invariant 1.
func (s *Superblock) InoUsage() int64 { return atomic.LoadInt64(&s.inoUsage) }

// FdUsage is the live open-handle count: open FileHandles and open
// DirHandles both count toward it.
func (s *Superblock) FdUsage() int64 { return atomic.LoadInt64(&s.fdUsage) }

// SessionID is a process-stable opaque identity for diagnostics.
func (s *Superblock) SessionID() uuid.UUID { return s.sessionID }

// WantStale reports the sticky "do not auto-evict/invalidate" bit.
func (s *Superblock) WantStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wantStale
}

func (s *Superblock) register(ino *Inode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(ino)
}

// registerLocked is register's body for callers that already hold s.mu.
func (s *Superblock) registerLocked(ino *Inode) {
	if s.inodes == nil {
		s.inodes = make(map[InodeID]*Inode)
	}
	s.inodes[ino.ID] = ino
	n := atomic.AddInt64(&s.inoUsage, 1)
	setInodeGauge(s.Name, n)
}

func (s *Superblock) unregister(ino *Inode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregisterLocked(ino)
}

// unregisterLocked is unregister's body for callers that already hold s.mu.
func (s *Superblock) unregisterLocked(ino *Inode) {
	delete(s.inodes, ino.ID)
	n := atomic.AddInt64(&s.inoUsage, -1)
	setInodeGauge(s.Name, n)
}

// markIdle/markBusy implement the "stamp" bookkeeping of spec.md's
// glossary: a stamp is removed from a superblock while it has file
// handles open, and reinstated when the last one closes. The actual
// idle-timer/GC sweep is an external collaborator (spec.md §1); vfscore
// only tracks whether a superblock currently carries a stamp and since
// when, via IdleSince/IsIdle.
func (s *Superblock) markBusy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = false
}

func (s *Superblock) markIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = true
	s.idleSince = time.Now()
}

// IsIdle and IdleSince expose the stamp state to an external reclaimer.
func (s *Superblock) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}
func (s *Superblock) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleSince
}

// PathSplitter dissects the raw path grammar `archive_or_host#proto/path`
// into (archive identity, operator, remainder). Subclasses that need a
// different grammar implement this; DefaultSplitPath is used otherwise.
// Dissection proper, and interpretation of "operator", are external
// collaborators per spec.md §1 — vfscore only needs the three-way split to
// find/create the right Superblock.
type PathSplitter interface {
	SplitPath(raw string) (archive, operator, remainder string)
}

// DefaultSplitPath implements the `archive_or_host#proto/path` grammar
// literally: everything before the first '#' is the archive identity,
// between '#' and the next '/' is the operator/proto tag, the rest is the
// path remainder.
func DefaultSplitPath(raw string) (archive, operator, remainder string) {
	hashPos := strings.IndexByte(raw, '#')
	if hashPos < 0 {
		return raw, "", ""
	}
	archive = raw[:hashPos]
	rest := raw[hashPos+1:]
	if slashPos := strings.IndexByte(rest, '/'); slashPos >= 0 {
		operator = rest[:slashPos]
		remainder = rest[slashPos+1:]
	} else {
		operator = rest
	}
	return
}

func (c *Class) splitPath(raw string) (archive, operator, remainder string) {
	if ps, ok := c.Hooks.(PathSplitter); ok {
		return ps.SplitPath(raw)
	}
	return DefaultSplitPath(raw)
}

// GetPath implements spec.md §4.B: dissect raw_input, find-or-open the
// owning superblock, and return it along with the path remainder still to
// be resolved within it.
func (c *Class) GetPath(rawInput string, flags ClassFlags) (super *Superblock, remainder string, fsErr FsError) {
	archiveName, operator, remainder := c.splitPath(rawInput)

	var cookie interface{}
	if checker, ok := c.Hooks.(ArchiveChecker); ok {
		var okCookie bool
		cookie, okCookie = checker.ArchiveCheck(archiveName, operator)
		if !okCookie {
			return nil, "", EOKAY // "aborts with null and no error" per spec
		}
	}

	c.mu.Lock()
	if matcher, ok := c.Hooks.(ArchiveMatcher); ok {
	scan:
		for _, s := range c.supers {
			switch matcher.ArchiveSame(s, archiveName, operator, cookie) {
			case Match:
				c.mu.Unlock()
				return s, remainder, EOKAY
			case MatchStop:
				// code 2: "different and stop scanning" — only the scan
				// loop stops here; fall through to the same not-found
				// handling as exhausting the list with no match.
				break scan
			case NoMatch:
				// keep scanning
			}
		}
	}
	c.mu.Unlock()

	if flags.has(NoOpen) || c.Flags.has(NoOpen) {
		return nil, "", c.setErrno(EIO)
	}

	newSuper := &Superblock{
		Class:     c,
		sessionID: newSessionID(),
		idle:      true,
		idleSince: time.Now(),
	}
	if err := c.Hooks.OpenArchive(newSuper, archiveName, operator); err != nil {
		return nil, "", c.setErrno(FsErr(err))
	}
	if newSuper.Name == "" || newSuper.Root == nil {
		panic(errNew("OpenArchive did not populate Superblock.Name/Root"))
	}

	c.mu.Lock()
	c.supers = append([]*Superblock{newSuper}, c.supers...)
	c.mu.Unlock()

	return newSuper, remainder, EOKAY
}

// GetID returns an opaque, comparable identity for the superblock that
// would own rawInput, without opening a new one (spec.md §4.B getid()).
// It is the key an external idle-timer/GC collaborator uses to track
// superblocks.
func (c *Class) GetID(rawInput string) (id *Superblock, fsErr FsError) {
	id, _, fsErr = c.GetPath(rawInput, NoOpen)
	return id, fsErr
}

// FreeSuper tears a superblock down: frees its root inode (recursively
// freeing the whole tree), removes it from the class registry, and lets
// the subclass release its own state.
func (c *Class) FreeSuper(s *Superblock) {
	glog.V(1).Infof("vfscore: freeing superblock [%s] session %s", s.Name, s.sessionID)
	if s.Root != nil {
		FreeInode(s.Root)
		s.Root = nil
	}

	c.mu.Lock()
	for i, cand := range c.supers {
		if cand == s {
			c.supers = append(c.supers[:i], c.supers[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.Hooks.FreeArchive(s)
}

// Superblocks returns a snapshot of the live superblock list, e.g. for a
// diagnostics dump or an external idle-reclamation sweep.
func (c *Class) Superblocks() []*Superblock {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Superblock, len(c.supers))
	copy(out, c.supers)
	return out
}
