package vfscore

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/golang/glog"
)

// open(2)-style flags vfscore understands. These mirror the stdlib os
// package's O_* bits so callers can pass them straight through; OLinear is
// vfscore's own addition, a bit outside the range the host os package
// uses, requesting the forward-only streaming protocol of spec.md §4.G.
const (
	ORdOnly = os.O_RDONLY
	OWrOnly = os.O_WRONLY
	ORdWr   = os.O_RDWR
	OAppend = os.O_APPEND
	OCreate = os.O_CREATE
	OExcl   = os.O_EXCL
	OTrunc  = os.O_TRUNC

	OLinear = 1 << 29
)

// linearState is the tagged state machine of spec.md §4.G.
type linearState int

const (
	LinearOff linearState = iota
	LinearPreOpen
	LinearOpen
	LinearClosed
)

// FileHandle is per-open-file state (spec.md §3).
type FileHandle struct {
	Ino  *Inode
	Pos  int64
	host *os.File

	Changed bool
	Linear  linearState

	Priv interface{}

	super *Superblock
}

// Open implements spec.md §4.G open(path, flags, mode).
func Open(super *Superblock, path string, flags int, mode os.FileMode, hopLimit int) (*FileHandle, FsError) {
	ino, fsErr := inodeFromPath(super, path, Follow(hopLimit), FlNone)
	wasChanged := false

	switch fsErr {
	case EOKAY:
		if flags&OCreate != 0 && flags&OExcl != 0 {
			return nil, EEXIST
		}
	case ENOENT:
		if flags&OCreate == 0 {
			return nil, ENOENT
		}
		if super.Class.Flags.has(ReadOnly) {
			// "silent failure of open+O_CREAT" per spec.md §7.3
			return nil, EIO
		}

		dirPart, basePart := splitDirBase(canonicalizePath(path))
		parentIno, perr := inodeFromPath(super, dirPart, Follow(hopLimit), FlDir)
		if perr != EOKAY {
			return nil, perr
		}
		if !parentIno.Stat.IsDir() {
			return nil, ENOTDIR
		}

		newEnt := GenerateEntry(basePart, parentIno, 0755)
		InsertEntry(parentIno, newEnt)

		tmp, err := os.CreateTemp("", "vfscache-*")
		if err != nil {
			FreeEntry(newEnt)
			return nil, FsErr(err)
		}
		newEnt.Ino.LocalName = tmp.Name()
		tmp.Close()

		ino = newEnt.Ino
		wasChanged = true
	default:
		return nil, fsErr
	}

	if ino.Stat.IsDir() {
		return nil, EISDIR
	}

	fh := &FileHandle{
		Ino:     ino,
		Changed: wasChanged,
		super:   super,
	}

	if flags&OLinear != 0 {
		if _, ok := super.Class.Hooks.(LinearStreamer); ok {
			glog.V(1).Infof("vfscore: starting linear transfer for [%s]", path)
			fh.Linear = LinearPreOpen
		}
	}
	if fh.Linear == LinearOff {
		if ra, ok := super.Class.Hooks.(RandomAccessHandle); ok {
			if err := ra.FhOpen(fh); err != nil {
				if wasChanged {
					FreeEntry(ino.NamedBy)
				}
				return nil, FsErr(err)
			}
		}
	}

	if ino.LocalName != "" {
		hostFlags := flags &^ OLinear
		f, err := os.OpenFile(ino.LocalName, hostFlags, mode)
		if err != nil {
			if wasChanged {
				FreeEntry(ino.NamedBy)
			}
			return nil, FsErr(err)
		}
		fh.host = f
	}

	super.markBusy()
	setHandleGauge(super.Name, atomic.AddInt64(&super.fdUsage, 1))
	super.mu.Lock()
	ino.nlink++
	ino.Stat.Nlink = uint32(ino.nlink)
	super.mu.Unlock()

	return fh, EOKAY
}

// Read implements spec.md §4.G read(buf, n).
func (fh *FileHandle) Read(buf []byte) (int, FsError) {
	switch fh.Linear {
	case LinearPreOpen:
		streamer := fh.super.Class.Hooks.(LinearStreamer)
		if err := streamer.LinearStart(fh, fh.Pos); err != nil {
			return 0, FsErr(err)
		}
		if fh.Linear != LinearOpen {
			panic("vfscore: subclass LinearStart did not transition handle to LinearOpen")
		}
		return fh.linearRead(buf)
	case LinearOpen:
		return fh.linearRead(buf)
	}

	if fh.host != nil {
		n, err := fh.host.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return n, FsErr(err)
		}
		fh.Pos += int64(n)
		return n, EOKAY
	}

	panic("vfscore: Read on a handle with neither linear mode nor a native descriptor")
}

func (fh *FileHandle) linearRead(buf []byte) (int, FsError) {
	streamer := fh.super.Class.Hooks.(LinearStreamer)
	n, err := streamer.LinearRead(fh, buf)
	fh.Pos += int64(n)
	if err != nil {
		return n, FsErr(err)
	}
	return n, EOKAY
}

// Write implements spec.md §4.G write(buf, n): forbidden in any linear
// state, and not offered (ENOSYS) by a ReadOnly class.
func (fh *FileHandle) Write(buf []byte) (int, FsError) {
	if fh.Linear != LinearOff {
		panic("vfscore: Write is forbidden on a linear-mode handle")
	}
	if fh.super.Class.Flags.has(ReadOnly) {
		return 0, ENOSYS
	}
	fh.Changed = true
	if fh.host == nil {
		panic("vfscore: Write on a handle with no native descriptor")
	}
	n, err := fh.host.WriteAt(buf, fh.Pos)
	fh.Pos += int64(n)
	if err != nil {
		return n, FsErr(err)
	}
	return n, EOKAY
}

// Lseek implements spec.md §4.G lseek(offset, whence): forbidden while in
// LinearOpen state.
func (fh *FileHandle) Lseek(offset int64, whence int) (int64, FsError) {
	if fh.Linear == LinearOpen {
		panic("vfscore: Lseek is forbidden on an open linear-mode handle")
	}

	if fh.host != nil {
		pos, err := fh.host.Seek(offset, whence)
		if err != nil {
			return fh.Pos, FsErr(err)
		}
		fh.Pos = pos
		return pos, EOKAY
	}

	size := fh.Ino.Stat.Size
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = fh.Pos + offset
	case io.SeekEnd:
		newPos = size + offset
	default:
		return fh.Pos, EINVAL
	}
	if newPos < 0 {
		newPos = 0
	}
	if newPos > size {
		newPos = size
	}
	fh.Pos = newPos
	return fh.Pos, EOKAY
}

// Close implements spec.md §4.G close().
func (fh *FileHandle) Close() FsError {
	super := fh.super

	n := atomic.AddInt64(&super.fdUsage, -1)
	setHandleGauge(super.Name, n)
	if n == 0 {
		super.markIdle()
	}

	if fh.Linear == LinearOpen {
		streamer := super.Class.Hooks.(LinearStreamer)
		if err := streamer.LinearClose(fh); err != nil {
			glog.Warningf("vfscore: LinearClose error: %+v", err)
		}
	}

	var closeErr FsError = EOKAY
	if ra, ok := super.Class.Hooks.(RandomAccessHandle); ok {
		if err := ra.FhClose(fh); err != nil {
			closeErr = FsErr(err)
		}
	}

	if fh.Changed {
		if storer, ok := super.Class.Hooks.(FileStorer); ok {
			full := fullPath(fh.Ino)
			if err := storer.FileStore(fh, full, fh.Ino.LocalName); err != nil {
				closeErr = FsErr(err)
			}
			Invalidate(super)
		}
	}

	if fh.host != nil {
		fh.host.Close()
		fh.host = nil
	}

	FreeInode(fh.Ino)
	fh.Ino = nil

	return closeErr
}
