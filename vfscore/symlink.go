package vfscore

import "strings"

// resolveSymlink implements spec.md §4.E: follow entry if it names a
// symbolic link and the hop budget allows it, rebasing a relative target
// against the full path of its containing directory and re-entering path
// resolution from the owning superblock's root.
func resolveSymlink(entry *Entry, follow Follow) (*Entry, FsError) {
	if follow == LinkNoFollow {
		return entry, EOKAY
	}
	if follow == 0 {
		return nil, ELOOP
	}
	if entry == nil {
		return nil, ENOENT
	}
	if !entry.Ino.Stat.IsSymlink() {
		return entry, EOKAY
	}
	if entry.Ino.LinkName == "" {
		return nil, EFAULT
	}

	target := entry.Ino.LinkName
	if !strings.HasPrefix(target, "/") {
		if base := fullPath(entry.Dir); base != "" {
			target = base + "/" + target
		}
	}

	super := entry.Ino.Super
	return findEntry(super, target, follow-1, FlFollow)
}

// findEntry dispatches to the resolver variant selected for super's Class
// (spec.md §4.I / §9 "two resolvers, one interface"): the linear resolver
// when the Class carries the Remote flag, the tree resolver otherwise.
func findEntry(super *Superblock, path string, follow Follow, flags LookupFlags) (*Entry, FsError) {
	if super.Class.Flags.has(Remote) {
		return findEntryLinear(super, super.Root, path, follow, flags)
	}
	return findEntryTree(super.Root, path, follow, flags)
}
