// Package vfscore implements the shared virtual filesystem cache that
// underlies a family of filesystems layered over a host operating system:
// archive readers, where the full directory tree is known up-front, and
// session-based remote filesystems, where directory contents are fetched
// lazily, time out, and may be stale.
//
// The package owns a single in-memory representation of directory
// hierarchies (Inode/Entry), path resolution over two distinct topologies
// (a hierarchical tree for archive-style filesystems, a flat cache of
// directory snapshots for remote-style ones), symlink following with
// hop-limited loop protection, and a handle-based file/directory I/O
// surface. Filesystem authors plug in a SubclassHooks implementation and
// get open/read/write/lseek/close/stat/lstat/readlink/opendir/readdir/
// closedir/chdir for free.
//
// vfscore is single-threaded and blocking in spirit: a call into any
// exported method runs to completion before returning. Internal mutexes
// exist only so that concurrent callers don't corrupt shared registries;
// they are not a concurrency model in their own right.
package vfscore
