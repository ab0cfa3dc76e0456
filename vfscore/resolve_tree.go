package vfscore

import "os"

// findEntryTree implements spec.md §4.C, the path resolver used when the
// owning Class does not carry the Remote flag: a plain recursive walk of
// the in-memory directory tree, auto-creating a leaf when flags ask for
// it.
//
// It returns the last entry resolved. Per spec.md §9's open question, this
// deliberately keeps the "return the last entry on empty-path termination
// only" accumulator semantics observed in the source this was distilled
// from, rather than the (buggy) label-based early-return the original's
// cleanup path suggests.
func findEntryTree(root *Inode, aPath string, follow Follow, flags LookupFlags) (*Entry, FsError) {
	path := canonicalizePath(aPath)

	var resolved *Entry
	cur := root
	for cur != nil {
		path = skipLeadingSlashes(path)
		if path == "" {
			return resolved, EOKAY
		}

		seg, rest := nextSegment(path)

		var found *Entry
		cur.Super.mu.Lock()
		for _, e := range cur.Children {
			if e.Name == seg {
				found = e
				break
			}
		}
		cur.Super.mu.Unlock()

		if found == nil && (flags&(FlMkFile|FlMkDir) != 0) {
			mode := os.FileMode(0777)
			if flags&FlMkDir != 0 {
				mode |= os.ModeDir
			}
			newEnt := GenerateEntry(seg, cur, mode)
			InsertEntry(cur, newEnt)
			found = newEnt
		}

		if found == nil {
			return nil, ENOENT
		}

		path = rest
		segFollow := follow
		if path != "" {
			// intermediate components are always followed
			segFollow = Follow(cur.Super.Class.Tunables.HopLimit)
		}

		resolvedEnt, fsErr := resolveSymlink(found, segFollow)
		if fsErr != EOKAY {
			return nil, fsErr
		}

		resolved = resolvedEnt
		cur = resolvedEnt.Ino
	}
	return resolved, EOKAY
}
