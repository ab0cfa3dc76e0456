package vfscore

import (
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
)

// findEntryLinear implements spec.md §4.D, the path resolver used when
// the owning Class carries the Remote flag. Unlike the tree resolver, it
// keeps a flat cache of directory snapshots keyed by their full canonical
// path directly under the (fake) root — the "fake flat root" trick — and
// only delegates to the tree resolver for the final basename lookup
// within an already-resolved, already-fresh directory.
func findEntryLinear(super *Superblock, root *Inode, aPath string, follow Follow, flags LookupFlags) (*Entry, FsError) {
	path := canonicalizePath(aPath)

	if flags&FlDir == 0 {
		dirPart, basePart := splitDirBase(path)
		dirEnt, fsErr := findEntryLinear(super, root, dirPart, follow, flags|FlDir)
		if fsErr != EOKAY {
			return nil, fsErr
		}
		var dirIno *Inode
		if dirEnt == nil {
			dirIno = root
		} else {
			dirIno = dirEnt.Ino
		}
		return findEntryTree(dirIno, basePart, follow, flags&^FlDir)
	}

	if path == "" {
		// the flat root itself has no naming entry, mirroring the tree
		// resolver's empty-path termination.
		return nil, EOKAY
	}

	// looking up a directory by its full canonical path
	var found *Entry
	root.Super.mu.Lock()
	for _, e := range root.Children {
		if e.Name == path {
			found = e
			break
		}
	}
	root.Super.mu.Unlock()

	if found != nil && !dirUpToDate(super, found.Ino) {
		glog.V(1).Infof("vfscore: cache expired for directory [%s]", path)
		FreeEntry(found)
		found = nil
	}

	if found == nil {
		st := DefaultStat(os.ModeDir | 0755)
		ino := NewInode(super, &st)
		newEnt := NewEntry(path, ino)

		loader, _ := super.Class.Hooks.(DirLoader)
		if loader == nil {
			FreeInode(ino)
			return nil, ENOSYS
		}
		if err := loader.DirLoad(ino, path); err != nil {
			FreeInode(ino)
			return nil, FsErr(err)
		}
		if ino.Expiry.IsZero() {
			ino.Expiry = time.Now().Add(super.Class.Tunables.DirCacheTime)
		}
		InsertEntry(root, newEnt)

		root.Super.mu.Lock()
		for _, e := range root.Children {
			if e.Name == path {
				found = e
				break
			}
		}
		root.Super.mu.Unlock()
	}

	return found, EOKAY
}

// splitDirBase splits path at its last separator into (dirname, basename),
// spec.md §4.D step 2. A path with no separator has dirname "".
func splitDirBase(path string) (dir, base string) {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}
