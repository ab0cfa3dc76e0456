package vfscore

import (
	"flag"
	"time"
)

// cache control tunables, grounded on the teacher's pkg/vfs/cc.go /
// cctrl.go — package-level vars registered as flags in init(), overridable
// per Class via Tunables.

var (
	// DirCacheTime is the default expiry a linear-resolver directory
	// snapshot is considered fresh for, absent a loader-supplied expiry.
	DirCacheTime = 60 * time.Second

	// AttrCacheTime is how long GetInodeAttributes-style callers may trust
	// a previously fetched Stat before forcing a reload. vfscore itself
	// does not enforce this; it is exposed for subclasses (and the fuse
	// adapter layer) that need it.
	AttrCacheTime = 1 * time.Second

	// IdleTimeout is how long a superblock may sit with fd_usage==0
	// before the external stamping/GC collaborator (see spec.md §1's
	// out-of-scope list) is expected to reclaim it. vfscore does not run
	// a timer itself; Superblock.IsIdle/IdleSince expose what it needs.
	IdleTimeout = 5 * time.Minute

	// HopLimit bounds symlink-chain length (see Follow).
	HopLimit = 8
)

func init() {
	flag.DurationVar(&DirCacheTime, "vfscache-dir-ttl", DirCacheTime,
		"how long a remote directory snapshot is considered fresh")
	flag.DurationVar(&AttrCacheTime, "vfscache-attr-ttl", AttrCacheTime,
		"how long cached inode attributes are considered fresh")
	flag.DurationVar(&IdleTimeout, "vfscache-idle-timeout", IdleTimeout,
		"how long an idle superblock may live before reclamation")
	flag.IntVar(&HopLimit, "vfscache-symlink-hops", HopLimit,
		"maximum symlink hops followed before ELOOP")
}

// Tunables snapshots the knobs above at superblock-registry construction
// time, so a single process can host classes with different policies (e.g.
// one archivefs and one sessionfs) without flag.Parse()'d globals leaking
// between them.
type Tunables struct {
	DirCacheTime  time.Duration
	AttrCacheTime time.Duration
	IdleTimeout   time.Duration
	HopLimit      int
}

// DefaultTunables copies the current package-level flag values.
func DefaultTunables() Tunables {
	return Tunables{
		DirCacheTime:  DirCacheTime,
		AttrCacheTime: AttrCacheTime,
		IdleTimeout:   IdleTimeout,
		HopLimit:      HopLimit,
	}
}
