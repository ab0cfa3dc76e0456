package vfscore

import "os"

// This file is the "class wiring" of spec.md §4.I: the operation table a
// mounted filesystem actually calls. Every entry point takes a raw path in
// the `archive_or_host#proto/path` grammar, locates (or opens) the owning
// Superblock via GetPath, and delegates to the lower-level, already-
// superblock-scoped functions in file.go/dir.go/resolve_*.go.

// Open resolves rawPath and opens a FileHandle on it.
func (c *Class) Open(rawPath string, flags int, mode os.FileMode) (*FileHandle, FsError) {
	super, remainder, fsErr := c.GetPath(rawPath, FlNone)
	if fsErr != EOKAY || super == nil {
		return nil, c.setErrno(fsErr)
	}
	fh, fsErr := Open(super, remainder, flags, mode, super.Class.Tunables.HopLimit)
	if fsErr != EOKAY {
		return nil, c.setErrno(fsErr)
	}
	return fh, EOKAY
}

// OpenDir resolves rawPath and opens a DirHandle on it.
func (c *Class) OpenDir(rawPath string) (*DirHandle, FsError) {
	super, remainder, fsErr := c.GetPath(rawPath, FlNone)
	if fsErr != EOKAY || super == nil {
		return nil, c.setErrno(fsErr)
	}
	dh, fsErr := openDirIn(super, remainder, c.Tunables.HopLimit)
	if fsErr != EOKAY {
		return nil, c.setErrno(fsErr)
	}
	return dh, EOKAY
}

// Chdir resolves rawPath and succeeds iff it names a directory.
func (c *Class) Chdir(rawPath string) FsError {
	super, remainder, fsErr := c.GetPath(rawPath, FlNone)
	if fsErr != EOKAY || super == nil {
		return c.setErrno(fsErr)
	}
	return c.setErrno(chdirIn(super, remainder, c.Tunables.HopLimit))
}

// Stat resolves rawPath following a trailing symlink.
func (c *Class) Stat(rawPath string) (Stat, FsError) {
	return c.statCommon(rawPath, Follow(c.Tunables.HopLimit))
}

// Lstat resolves rawPath without following a trailing symlink.
func (c *Class) Lstat(rawPath string) (Stat, FsError) {
	return c.statCommon(rawPath, LinkNoFollow)
}

func (c *Class) statCommon(rawPath string, follow Follow) (Stat, FsError) {
	super, remainder, fsErr := c.GetPath(rawPath, FlNone)
	if fsErr != EOKAY || super == nil {
		return Stat{}, c.setErrno(fsErr)
	}
	ino, fsErr := inodeFromPath(super, remainder, follow, retryEmptyAsDir(remainder, super))
	if fsErr != EOKAY {
		return Stat{}, c.setErrno(fsErr)
	}
	return ino.Stat, EOKAY
}

// Fstat reads the stat block through an already-open handle.
func (c *Class) Fstat(fh *FileHandle) Stat {
	return fh.Ino.Stat
}

// Readlink copies up to len(buf) bytes of the link target into buf
// (without a trailing NUL), per spec.md §4.G.
func (c *Class) Readlink(rawPath string, buf []byte) (int, FsError) {
	super, remainder, fsErr := c.GetPath(rawPath, FlNone)
	if fsErr != EOKAY || super == nil {
		return 0, c.setErrno(fsErr)
	}
	ino, fsErr := inodeFromPath(super, remainder, LinkNoFollow, retryEmptyAsDir(remainder, super))
	if fsErr != EOKAY {
		return 0, c.setErrno(fsErr)
	}
	if !ino.Stat.IsSymlink() {
		return 0, c.setErrno(EINVAL)
	}
	if ino.LinkName == "" {
		return 0, c.setErrno(EFAULT)
	}
	n := copy(buf, ino.LinkName)
	return n, EOKAY
}

// Setctl implement spec.md §6's control interface. STALE_DATA resolves
// rawPath to find the owning superblock; LOGFILE and FLUSH are
// class-wide and ignore rawPath.
type SetctlOp int

const (
	SetctlStaleData SetctlOp = iota
	SetctlLogFile
	SetctlFlush
)

// Setctl dispatches one control op, returning false for an unrecognized
// op (mirroring the source's "return 0" default case).
func (c *Class) Setctl(op SetctlOp, rawPath string, arg interface{}) bool {
	switch op {
	case SetctlStaleData:
		super, _, fsErr := c.GetPath(rawPath, NoOpen)
		if fsErr != EOKAY || super == nil {
			return false
		}
		on, _ := arg.(bool)
		SetStaleData(super, on)
		return true
	case SetctlLogFile:
		path, _ := arg.(string)
		if err := c.setLogFile(path); err != nil {
			return false
		}
		return true
	case SetctlFlush:
		c.Flush()
		return true
	}
	return false
}

// retryEmptyAsDir implements the "/ always exists" rule of spec.md §4.G's
// stat family: an empty remainder under a Remote class is resolved with
// FlDir so the flat resolver's root-is-always-present base case applies.
func retryEmptyAsDir(remainder string, super *Superblock) LookupFlags {
	if remainder == "" && super.Class.Flags.has(Remote) {
		return FlDir
	}
	return FlNone
}
