package vfscore

import (
	"fmt"
	"os"
	"time"
)

// InodeID uniquely identifies an inode within one superblock. It is minted
// by a monotonic per-class counter and is never reused within a process
// lifetime, unlike the traditional kernel inode number it stands in for.
type InodeID uint64

// HandleID is an opaque handle number type. vfscore's own Open/OpenDir do
// not mint HandleIDs; they return *FileHandle/*DirHandle pointers.
type HandleID uint64

// DirOffset is an opaque cursor position into a directory's child list, as
// exposed to ReadDir callers.
type DirOffset uint64

// DirEntType mirrors the handful of d_type values a caller of ReadDir cares
// about.
type DirEntType uint32

const (
	DT_Unknown   DirEntType = 0x0
	DT_Fifo      DirEntType = 0x1
	DT_Char      DirEntType = 0x2
	DT_Directory DirEntType = 0x4
	DT_Block     DirEntType = 0x6
	DT_File      DirEntType = 0x8
	DT_Link      DirEntType = 0xa
	DT_Socket    DirEntType = 0xc
)

func (t DirEntType) String() string {
	switch t {
	case DT_Fifo:
		return "fifo"
	case DT_Char:
		return "char"
	case DT_Directory:
		return "dir"
	case DT_Block:
		return "block"
	case DT_File:
		return "file"
	case DT_Link:
		return "link"
	case DT_Socket:
		return "socket"
	default:
		return "unknown"
	}
}

func typeFromMode(mode os.FileMode) DirEntType {
	switch {
	case mode&os.ModeDir != 0:
		return DT_Directory
	case mode&os.ModeSymlink != 0:
		return DT_Link
	case mode&os.ModeSocket != 0:
		return DT_Socket
	case mode&os.ModeNamedPipe != 0:
		return DT_Fifo
	case mode&os.ModeDevice != 0:
		return DT_Block
	case mode&os.ModeCharDevice != 0:
		return DT_Char
	default:
		return DT_File
	}
}

// DirEnt is one entry returned by ReadDir.
type DirEnt struct {
	Offset DirOffset
	Ino    InodeID
	Name   string
	Type   DirEntType
}

// Stat carries the subset of POSIX struct stat this cache core tracks.
// Size/Mode/times/Uid/Gid/Dev/Ino/Nlink mirror spec.md's Inode attributes;
// unlike a real kernel, Nlink here doubles as vfscore's own reference
// count (see Inode.nlink discussion in inode.go).
type Stat struct {
	Dev   int64
	Ino   InodeID
	Mode  os.FileMode
	Nlink uint32
	Size  int64
	Uid   uint32
	Gid   uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

func (s Stat) String() string {
	return fmt.Sprintf("ino=%d mode=%v size=%d nlink=%d", s.Ino, s.Mode, s.Size, s.Nlink)
}

// IsDir reports whether this stat describes a directory.
func (s Stat) IsDir() bool { return s.Mode&os.ModeDir != 0 }

// IsSymlink reports whether this stat describes a symbolic link.
func (s Stat) IsSymlink() bool { return s.Mode&os.ModeSymlink != 0 }

// Follow is the hop budget handed to symlink resolution. A positive value
// is the number of hops still allowed (callers start from
// Class.Tunables.HopLimit) and 0 fails with ELOOP; LinkNoFollow disables
// following entirely, returning the symlink entry itself.
type Follow int

const (
	LinkNoFollow Follow = -1
)

// LookupFlags steer path resolution.
type LookupFlags uint32

const (
	FlNone LookupFlags = 0
	// FlDir asks the linear resolver to treat the whole path as naming a
	// directory rather than splitting off a basename.
	FlDir LookupFlags = 1 << iota
	// FlMkFile auto-creates a missing leaf as a regular file.
	FlMkFile
	// FlMkDir auto-creates a missing leaf as a directory.
	FlMkDir
	// FlFollow marks a lookup that follows a symlink at the leaf of the
	// path. The resolvers do not consult it: whether the leaf is followed
	// is decided by the Follow budget alone (intermediate components are
	// always followed).
	FlFollow
)
