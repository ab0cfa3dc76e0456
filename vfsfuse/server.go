// Package vfsfuse adapts a vfscore.Class onto the real FUSE binding
// library, github.com/jacobsa/fuse: the teacher's own pkg/fuse and
// pkg/vfs are a renamed, incomplete fork of exactly this library (they
// reference fuseops.XxxOp types and a Connection/Server pair that were
// never themselves retrieved), so rather than hand-complete a broken
// partial copy, Server is written directly against jacobsa/fuse's public
// fuseutil.FileSystem contract.
//
// The kernel addresses inodes by a flat uint64 ID it mints nothing of;
// vfscore in turn addresses everything by path string through
// Class.GetPath. Server bridges the two with a path<->InodeID table,
// exactly the role pkg/jdfs's icFSD inode arena played for the teacher's
// wire protocol, but keyed by path since vfscore exposes no pointer
// identity for inodes across its raw-path API.
package vfsfuse

import (
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/bazilfuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/complyue/vfscache/vfscore"
)

// Server implements fuseutil.FileSystem over one vfscore.Class,
// resolving every op against a single fixed mount spec (the
// `archive_or_host#operator` prefix vfscore.DefaultSplitPath expects).
// Mutating ops vfscore's Class never exposed (MkDir, RmDir, Unlink,
// CreateSymlink, SetInodeAttributes) fall through to
// fuseutil.NotImplementedFileSystem and report ENOSYS, matching
// vfscore's actual operation table (spec.md §4.I).
type Server struct {
	fuseutil.NotImplementedFileSystem

	class     *vfscore.Class
	mountSpec string
	attrTTL   time.Duration

	mu          sync.Mutex
	pathByIno   map[fuseops.InodeID]string
	inoByPath   map[string]fuseops.InodeID
	nextIno     fuseops.InodeID
	dirHandles  map[fuseops.HandleID]*dirCursor
	fileHandles map[fuseops.HandleID]*vfscore.FileHandle
	nextHandle  fuseops.HandleID
}

// dirCursor wraps a vfscore.DirHandle with a one-entry lookahead, needed
// because ReadDir's op.Size may cut a listing off mid-entry: the entry
// that didn't fit must still be returned on the next ReadDir call for
// this handle rather than lost, and vfscore.DirHandle offers no way to
// push an entry back onto its cursor.
type dirCursor struct {
	dh      *vfscore.DirHandle
	pending *vfscore.DirEnt
}

// NewServer wires class to be served at mountSpec, e.g. "myarchive.tar#"
// or "demo-session#" — the same archive-identity-plus-operator prefix
// passed to Class.GetPath by vfsdemo's own callers, minus the trailing
// path remainder which Server supplies per op.
func NewServer(class *vfscore.Class, mountSpec string) *Server {
	return &Server{
		class:       class,
		mountSpec:   mountSpec,
		attrTTL:     time.Second,
		pathByIno:   map[fuseops.InodeID]string{fuseops.RootInodeID: ""},
		inoByPath:   map[string]fuseops.InodeID{"": fuseops.RootInodeID},
		nextIno:     fuseops.RootInodeID + 1,
		dirHandles:  make(map[fuseops.HandleID]*dirCursor),
		fileHandles: make(map[fuseops.HandleID]*vfscore.FileHandle),
		nextHandle:  1,
	}
}

func (s *Server) rawPath(relPath string) string {
	return s.mountSpec + "/" + relPath
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func (s *Server) pathFor(ino fuseops.InodeID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pathByIno[ino]
	return p, ok
}

// internIno mints a stable InodeID for relPath on first sight, the way
// the kernel expects a name -> ID mapping to survive until ForgetInode.
func (s *Server) internIno(relPath string) fuseops.InodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ino, ok := s.inoByPath[relPath]; ok {
		return ino
	}
	ino := s.nextIno
	s.nextIno++
	s.pathByIno[ino] = relPath
	s.inoByPath[relPath] = ino
	return ino
}

func (s *Server) internDirHandle(dh *vfscore.DirHandle) fuseops.HandleID {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.nextHandle
	s.nextHandle++
	s.dirHandles[h] = &dirCursor{dh: dh}
	return h
}

func (s *Server) internFileHandle(fh *vfscore.FileHandle) fuseops.HandleID {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.nextHandle
	s.nextHandle++
	s.fileHandles[h] = fh
	return h
}

// toErrno converts vfscore's portable FsError into the syscall.Errno the
// FUSE kernel bridge recognizes directly, since FsError is itself defined
// as a syscall.Errno (vfscore/errors.go).
func toErrno(e vfscore.FsError) error {
	if e == vfscore.EOKAY {
		return nil
	}
	return syscall.Errno(e)
}

func attrsFromStat(st vfscore.Stat) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(st.Size),
		Nlink: uint64(st.Nlink),
		Mode:  st.Mode,
		Atime: st.Atime,
		Mtime: st.Mtime,
		Ctime: st.Ctime,
		Uid:   st.Uid,
		Gid:   st.Gid,
	}
}

func direntType(t vfscore.DirEntType) fuseutil.DirentType {
	if t == vfscore.DT_Directory {
		return fuseutil.DT_Directory
	}
	return fuseutil.DT_File
}

// toOpenFlags maps bazilfuse's raw open(2)-style flags (the kernel's own
// O_* bits, passed through unchanged) onto vfscore's Open flags.
func toOpenFlags(f bazilfuse.OpenFlags) int {
	raw := int(f)
	flags := vfscore.ORdOnly
	switch raw & syscall.O_ACCMODE {
	case syscall.O_WRONLY:
		flags = vfscore.OWrOnly
	case syscall.O_RDWR:
		flags = vfscore.ORdWr
	}
	if raw&syscall.O_APPEND != 0 {
		flags |= vfscore.OAppend
	}
	if raw&syscall.O_TRUNC != 0 {
		flags |= vfscore.OTrunc
	}
	return flags
}

func (s *Server) Init(op *fuseops.InitOp) {
	op.Respond(nil)
}

func (s *Server) LookUpInode(op *fuseops.LookUpInodeOp) {
	parentPath, ok := s.pathFor(op.Parent)
	if !ok {
		op.Respond(syscall.ENOENT)
		return
	}
	childPath := joinRel(parentPath, op.Name)

	st, fsErr := s.class.Stat(s.rawPath(childPath))
	if fsErr != vfscore.EOKAY {
		op.Respond(toErrno(fsErr))
		return
	}

	op.Entry.Child = s.internIno(childPath)
	op.Entry.Attributes = attrsFromStat(st)
	op.Entry.AttributesExpiration = time.Now().Add(s.attrTTL)
	op.Entry.EntryExpiration = time.Now().Add(s.attrTTL)
	op.Respond(nil)
}

func (s *Server) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) {
	path, ok := s.pathFor(op.Inode)
	if !ok {
		op.Respond(syscall.ENOENT)
		return
	}

	st, fsErr := s.class.Stat(s.rawPath(path))
	if fsErr != vfscore.EOKAY {
		op.Respond(toErrno(fsErr))
		return
	}

	op.Attributes = attrsFromStat(st)
	op.AttributesExpiration = time.Now().Add(s.attrTTL)
	op.Respond(nil)
}

func (s *Server) ForgetInode(op *fuseops.ForgetInodeOp) {
	s.mu.Lock()
	if path, ok := s.pathByIno[op.ID]; ok {
		delete(s.pathByIno, op.ID)
		delete(s.inoByPath, path)
	}
	s.mu.Unlock()
	op.Respond(nil)
}

func (s *Server) OpenDir(op *fuseops.OpenDirOp) {
	path, ok := s.pathFor(op.Inode)
	if !ok {
		op.Respond(syscall.ENOENT)
		return
	}

	dh, fsErr := s.class.OpenDir(s.rawPath(path))
	if fsErr != vfscore.EOKAY {
		op.Respond(toErrno(fsErr))
		return
	}

	op.Handle = s.internDirHandle(dh)
	op.Respond(nil)
}

// ReadDir does not support seeking a directory handle backward: vfscore's
// DirHandle only advances a monotonic cursor (dir.go), matching what a
// single FUSE readdir(3) session actually does — rewinddir or a second
// independent iteration always opens a fresh handle via OpenDir, per the
// notes on fuseops.ReadDirOp.Offset.
func (s *Server) ReadDir(op *fuseops.ReadDirOp) {
	s.mu.Lock()
	dc, ok := s.dirHandles[op.Handle]
	parentPath := s.pathByIno[op.Inode]
	s.mu.Unlock()
	if !ok {
		op.Respond(syscall.EIO)
		return
	}

	for {
		var de vfscore.DirEnt
		if dc.pending != nil {
			de = *dc.pending
			dc.pending = nil
		} else {
			next, more := dc.dh.ReadDir()
			if !more {
				break
			}
			de = next
		}

		childPath := joinRel(parentPath, de.Name)
		dirent := fuseutil.Dirent{
			Offset: fuseops.DirOffset(de.Offset),
			Inode:  s.internIno(childPath),
			Name:   de.Name,
			Type:   direntType(de.Type),
		}
		data := fuseutil.AppendDirent(op.Data, dirent)
		if len(data) > op.Size {
			dc.pending = &de
			break
		}
		op.Data = data
	}
	op.Respond(nil)
}

func (s *Server) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) {
	s.mu.Lock()
	dc, ok := s.dirHandles[op.Handle]
	delete(s.dirHandles, op.Handle)
	s.mu.Unlock()
	if ok {
		dc.dh.CloseDir()
	}
	op.Respond(nil)
}

func (s *Server) OpenFile(op *fuseops.OpenFileOp) {
	path, ok := s.pathFor(op.Inode)
	if !ok {
		op.Respond(syscall.ENOENT)
		return
	}

	fh, fsErr := s.class.Open(s.rawPath(path), toOpenFlags(op.Flags), 0644)
	if fsErr != vfscore.EOKAY {
		op.Respond(toErrno(fsErr))
		return
	}

	op.Handle = s.internFileHandle(fh)
	op.Respond(nil)
}

// CreateFile drives vfscore.Class.Open's own O_CREAT|O_EXCL path
// (vfscore/file.go Open) rather than a separate creation entry point —
// vfscore has no dedicated mknod-style hook, matching spec.md §4.I's
// operation table, which mints new regular files only through open().
func (s *Server) CreateFile(op *fuseops.CreateFileOp) {
	parentPath, ok := s.pathFor(op.Parent)
	if !ok {
		op.Respond(syscall.ENOENT)
		return
	}
	childPath := joinRel(parentPath, op.Name)

	flags := toOpenFlags(op.Flags) | vfscore.OCreate | vfscore.OExcl
	fh, fsErr := s.class.Open(s.rawPath(childPath), flags, op.Mode)
	if fsErr != vfscore.EOKAY {
		op.Respond(toErrno(fsErr))
		return
	}

	op.Entry.Child = s.internIno(childPath)
	op.Entry.Attributes = attrsFromStat(fh.Ino.Stat)
	op.Entry.AttributesExpiration = time.Now().Add(s.attrTTL)
	op.Entry.EntryExpiration = time.Now().Add(s.attrTTL)
	op.Handle = s.internFileHandle(fh)
	op.Respond(nil)
}

func (s *Server) ReadFile(op *fuseops.ReadFileOp) {
	s.mu.Lock()
	fh, ok := s.fileHandles[op.Handle]
	s.mu.Unlock()
	if !ok {
		op.Respond(syscall.EIO)
		return
	}

	if _, fsErr := fh.Lseek(op.Offset, io.SeekStart); fsErr != vfscore.EOKAY {
		op.Respond(toErrno(fsErr))
		return
	}
	buf := make([]byte, op.Size)
	n, fsErr := fh.Read(buf)
	if fsErr != vfscore.EOKAY {
		op.Respond(toErrno(fsErr))
		return
	}
	op.Data = buf[:n]
	op.Respond(nil)
}

func (s *Server) WriteFile(op *fuseops.WriteFileOp) {
	s.mu.Lock()
	fh, ok := s.fileHandles[op.Handle]
	s.mu.Unlock()
	if !ok {
		op.Respond(syscall.EIO)
		return
	}

	if _, fsErr := fh.Lseek(op.Offset, io.SeekStart); fsErr != vfscore.EOKAY {
		op.Respond(toErrno(fsErr))
		return
	}
	_, fsErr := fh.Write(op.Data)
	op.Respond(toErrno(fsErr))
}

func (s *Server) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) {
	s.mu.Lock()
	fh, ok := s.fileHandles[op.Handle]
	delete(s.fileHandles, op.Handle)
	s.mu.Unlock()
	if !ok {
		op.Respond(nil)
		return
	}
	op.Respond(toErrno(fh.Close()))
}
