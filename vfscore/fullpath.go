package vfscore

import "strings"

// FullPath reconstructs the canonical path from a superblock's root down
// to ino, for subclass hooks (e.g. LinearStreamer, FileStorer) that need
// to name the inode they were handed.
func FullPath(ino *Inode) string {
	return fullPath(ino)
}

// fullPath reconstructs the path from a superblock's root down to ino, by
// walking NamedBy/Dir back-pointers. It returns "" for the root itself.
func fullPath(ino *Inode) string {
	if ino == nil || ino == ino.Super.Root {
		return ""
	}
	var segs []string
	for cur := ino; cur != nil && cur != cur.Super.Root; {
		ent := cur.NamedBy
		if ent == nil {
			break
		}
		segs = append(segs, ent.Name)
		cur = ent.Dir
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return strings.Join(segs, "/")
}
