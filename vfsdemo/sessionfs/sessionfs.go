// Package sessionfs is a reference SubclassHooks implementation for
// vfscore's linear (flat) resolver: a simulated remote session whose
// directory listings are fetched lazily, expire, and whose large files
// are served through the "linear" streaming protocol instead of a
// native descriptor (spec.md §8 scenarios 3, 4, 5, 6). It stands in for
// what pkg/jdfc/client.go plays against pkg/jdfs/server.go in the
// teacher: a client-visible tree whose contents live somewhere else and
// must be fetched and cached.
package sessionfs

import (
	"io"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/complyue/vfscache/vfscore"
)

// Backend is the remote collaborator sessionfs fetches from: a
// directory listing service and a byte-stream opener, standing in for
// the network RPC layer spec.md places out of scope (§1).
type Backend interface {
	// List returns the names and sizes of dirPath's immediate children.
	List(dirPath string) ([]BackendEntry, error)
	// Open returns a reader positioned at the start of path's content.
	Open(path string) (io.ReadCloser, error)
}

// BackendEntry describes one remote directory child.
type BackendEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

// FS wires a Backend into a vfscore.Class with the Remote flag, so
// GetPath routes through findEntryLinear.
type FS struct {
	class   *vfscore.Class
	backend Backend
	ttl     time.Duration
}

// New builds the Class for a session against backend, writable (so
// write-back via FileStore is exercised) and whose directory snapshots
// are fresh for ttl (spec.md §8 scenario 4 "stale cache").
func New(backend Backend, ttl time.Duration) *FS {
	fs := &FS{backend: backend, ttl: ttl}
	fs.class = vfscore.NewClass("sessionfs", vfscore.Remote, 0, fs)
	return fs
}

// Class exposes the wired vfscore.Class for the operation table.
func (fs *FS) Class() *vfscore.Class { return fs.class }

// OpenArchive mints the root and seeds its immediate children from one
// top-level listing; sessionfs never needs ArchiveCheck or ArchiveSame
// because it serves exactly one session per process.
//
// The linear resolver's dirname=="" short-circuit (resolve_linear.go)
// never calls dir_load for the superblock root itself, so nothing else
// would ever populate root.Children — the subclass has to seed it once,
// the same way archivefs preloads its whole tree at open time. The
// seeded entries carry a zero Expiry, so the first directory-targeted
// lookup of any of them (e.g. opendir) finds them stale and reloads
// through the normal dir_load path; this just gives top-level names
// something to tree-scan before that happens.
func (fs *FS) OpenArchive(super *vfscore.Superblock, name, operator string) error {
	super.Name = name
	st := vfscore.DefaultStat(os.ModeDir | 0755)
	root := vfscore.NewRootInode(super, &st)
	super.Root = root

	top, err := fs.backend.List("")
	if err != nil {
		return err
	}
	for _, be := range top {
		insertBackendEntry(root, be)
	}
	return nil
}

// FreeArchive has nothing of its own to release; the root tree is freed
// by Class.FreeSuper before this hook runs.
func (fs *FS) FreeArchive(super *vfscore.Superblock) {}

// DirLoad implements vfscore.DirLoader: fetch dirPath's listing from the
// backend and populate ino as a fresh directory snapshot (spec.md §4.D).
func (fs *FS) DirLoad(ino *vfscore.Inode, dirPath string) error {
	entries, err := fs.backend.List(dirPath)
	if err != nil {
		return err
	}
	glog.V(1).Infof("sessionfs: loaded %d entries for [%s]", len(entries), dirPath)

	for _, be := range entries {
		insertBackendEntry(ino, be)
	}

	ino.Expiry = time.Now().Add(fs.ttl)
	return nil
}

func insertBackendEntry(parent *vfscore.Inode, be BackendEntry) {
	mode := os.FileMode(0644)
	if be.IsDir {
		mode = os.ModeDir | 0755
	}
	st := vfscore.DefaultStat(mode)
	st.Size = be.Size
	child := vfscore.NewInode(parent.Super, &st)
	ent := vfscore.NewEntry(be.Name, child)
	vfscore.InsertEntry(parent, ent)
}

// linearTransfer is the subclass-private state a FileHandle carries
// while in PreOpen/Open, per spec.md §4.G's linear state machine.
type linearTransfer struct {
	r io.ReadCloser
}

// LinearStart implements vfscore.LinearStreamer: opens the remote byte
// stream and transitions the handle to Open. pos is ignored: the stream
// always starts at offset 0, since sessionfs's simulated backend offers no
// resume. As in spec.md scenario 3, the first read drives PreOpen -> Open.
func (fs *FS) LinearStart(fh *vfscore.FileHandle, pos int64) error {
	r, err := fs.backend.Open(vfscore.FullPath(fh.Ino))
	if err != nil {
		return err
	}
	fh.Priv = &linearTransfer{r: r}
	fh.Linear = vfscore.LinearOpen
	return nil
}

// LinearRead implements vfscore.LinearStreamer.
func (fs *FS) LinearRead(fh *vfscore.FileHandle, buf []byte) (int, error) {
	xfer := fh.Priv.(*linearTransfer)
	return xfer.r.Read(buf)
}

// LinearClose implements vfscore.LinearStreamer: release the remote
// stream. Per spec.md §7 item 4, an interrupted transfer still reaches
// here and must close cleanly.
func (fs *FS) LinearClose(fh *vfscore.FileHandle) error {
	xfer, ok := fh.Priv.(*linearTransfer)
	if !ok || xfer.r == nil {
		return nil
	}
	return xfer.r.Close()
}

// FileStore implements vfscore.FileStorer: write-back on close for a
// writable remote filesystem (spec.md §8 scenario 6). The demo backend
// only needs to know the write happened; a real remote filesystem would
// upload localname's bytes to fullpath here.
func (fs *FS) FileStore(fh *vfscore.FileHandle, fullpath, localname string) error {
	glog.V(1).Infof("sessionfs: storing [%s] from local copy [%s]", fullpath, localname)
	return nil
}
