package vfscore

import (
	"os"
	"time"
)

// dirUpToDate implements spec.md §4.D's dir_uptodate / §4.H: the one-shot
// global flush flag, if armed, force-expires the next check it's
// consulted from; otherwise a subclass implementing DirFreshnessOverride
// decides, and absent that an inode's cached directory snapshot is fresh
// iff "now" is strictly earlier than the expiry DirLoad stamped onto
// Inode.Expiry.
func dirUpToDate(super *Superblock, ino *Inode) bool {
	if super.Class.consumeFlush() {
		observeFreshnessCheck("forced")
		return false
	}
	if o, ok := super.Class.Hooks.(DirFreshnessOverride); ok {
		return o.DirUpToDate(ino)
	}
	if fresh := time.Now().Before(ino.Expiry); fresh {
		observeFreshnessCheck("hit")
		return true
	}
	observeFreshnessCheck("miss")
	return false
}

// Invalidate implements spec.md §4.H: unless the superblock's sticky
// want_stale bit is set, the current root inode (and everything under it)
// is freed and replaced with a fresh, empty directory root.
func Invalidate(super *Superblock) {
	if super.WantStale() {
		return
	}

	oldRoot := super.Root
	st := DefaultStat(0755 | os.ModeDir)
	newRoot := NewRootInode(super, &st)
	super.Root = newRoot

	if oldRoot != nil {
		FreeInode(oldRoot)
	}
	observeInvalidation(super.Name)
}

// SetStaleData implements the STALE_DATA setctl control (spec.md §6):
// setting it clears any pending invalidation policy so the cache
// persists; clearing it forces an immediate Invalidate.
func SetStaleData(super *Superblock, on bool) {
	super.mu.Lock()
	super.wantStale = on
	super.mu.Unlock()

	if !on {
		Invalidate(super)
	}
}
