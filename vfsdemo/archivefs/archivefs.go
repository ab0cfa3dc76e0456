// Package archivefs is a reference SubclassHooks implementation for
// vfscore's tree resolver: a read-only filesystem backed by a tar
// archive, whose whole directory tree is built in memory at open time,
// with file bodies staged to temporary local files (spec.md §8 scenario 1
// "archive read"). It is the Go-native analogue of jdfs's own role as a
// concrete filesystem riding atop a generic core (pkg/jdfs/fsd.go), but
// dropped in favor of stdlib archive/tar for the backing store since
// nothing in the example pack carries a tar reader of its own.
package archivefs

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/golang/glog"
	pkgerrors "github.com/pkg/errors"

	"github.com/complyue/vfscache/vfscore"
)

// FS adapts an on-disk tar file into a vfscore.Class of read-only,
// tree-resolved superblocks, one per distinct archive path opened.
type FS struct {
	class *vfscore.Class

	mu     sync.Mutex
	loaded map[string]*vfscore.Superblock
}

// New builds the Class. Callers mount it by calling class.Open/.OpenDir
// etc with raw paths of the form "archive.tar#/inner/path".
func New() *FS {
	fs := &FS{loaded: make(map[string]*vfscore.Superblock)}
	fs.class = vfscore.NewClass("archivefs", vfscore.ReadOnly, 0, fs)
	return fs
}

// Class exposes the wired vfscore.Class for the operation table.
func (fs *FS) Class() *vfscore.Class { return fs.class }

// ArchiveCheck validates that the named tar file exists before a
// Superblock is even considered, per spec.md §6.
func (fs *FS) ArchiveCheck(name, operator string) (interface{}, bool) {
	if _, err := os.Stat(name); err != nil {
		glog.Warningf("archivefs: cannot stat archive [%s]: %v", name, err)
		return nil, false
	}
	return nil, true
}

// ArchiveSame dedupes by archive file name: every path referring to the
// same tar file shares one Superblock (spec.md §4.B).
func (fs *FS) ArchiveSame(super *vfscore.Superblock, name, operator string, cookie interface{}) vfscore.MatchResult {
	if super.Name == name {
		return vfscore.Match
	}
	return vfscore.NoMatch
}

// OpenArchive reads the whole tar stream into the in-memory tree once,
// per spec.md §8 scenario 1.
func (fs *FS) OpenArchive(super *vfscore.Superblock, name, operator string) error {
	f, err := os.Open(name)
	if err != nil {
		return pkgerrors.Wrapf(err, "archivefs: opening %s", name)
	}
	defer f.Close()

	super.Name = name

	st := vfscore.DefaultStat(os.ModeDir | 0555)
	root := vfscore.NewRootInode(super, &st)

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return pkgerrors.Wrapf(err, "archivefs: reading %s", name)
		}
		if err := fs.install(super, root, hdr, tr); err != nil {
			return err
		}
	}

	super.Root = root

	fs.mu.Lock()
	fs.loaded[name] = super
	fs.mu.Unlock()

	return nil
}

// install walks hdr.Name's directory components, auto-vivifying
// intermediate directories, and attaches a leaf inode for the entry
// itself (file, symlink, or explicit directory header).
func (fs *FS) install(super *vfscore.Superblock, root *vfscore.Inode, hdr *tar.Header, r *tar.Reader) error {
	clean := strings.TrimSuffix(strings.TrimPrefix(path.Clean("/"+hdr.Name), "/"), "/")
	if clean == "" {
		return nil
	}
	segs := strings.Split(clean, "/")

	dir := root
	for _, seg := range segs[:len(segs)-1] {
		dir = fs.childDir(super, dir, seg)
	}

	leaf := segs[len(segs)-1]
	for _, e := range dir.Children {
		if e.Name == leaf {
			// duplicate header (e.g. a directory header following files
			// already placed under it); nothing further to do.
			return nil
		}
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		fs.childDir(super, dir, leaf)
	case tar.TypeSymlink:
		st := vfscore.DefaultStat(os.ModeSymlink | 0777)
		st.Size = int64(len(hdr.Linkname))
		ino := vfscore.NewInode(super, &st)
		ino.LinkName = hdr.Linkname
		ent := vfscore.NewEntry(leaf, ino)
		vfscore.InsertEntry(dir, ent)
	default:
		tmp, err := os.CreateTemp("", "archivefs-*")
		if err != nil {
			return pkgerrors.Wrapf(err, "archivefs: staging body of %s", hdr.Name)
		}
		if _, err := io.Copy(tmp, r); err != nil {
			tmp.Close()
			return pkgerrors.Wrapf(err, "archivefs: reading body of %s", hdr.Name)
		}
		tmp.Close()

		st := vfscore.DefaultStat(os.FileMode(hdr.Mode))
		st.Size = hdr.Size
		ino := vfscore.NewInode(super, &st)
		ino.LocalName = tmp.Name()
		ent := vfscore.NewEntry(leaf, ino)
		vfscore.InsertEntry(dir, ent)
	}
	return nil
}

func (fs *FS) childDir(super *vfscore.Superblock, parent *vfscore.Inode, name string) *vfscore.Inode {
	for _, e := range parent.Children {
		if e.Name == name {
			return e.Ino
		}
	}
	ent := vfscore.GenerateEntry(name, parent, os.ModeDir|0555)
	vfscore.InsertEntry(parent, ent)
	return ent.Ino
}

// FreeArchive drops the dedup registration; the tree itself is already
// torn down by Class.FreeSuper before this hook runs.
func (fs *FS) FreeArchive(super *vfscore.Superblock) {
	fs.mu.Lock()
	delete(fs.loaded, super.Name)
	fs.mu.Unlock()
}
