package vfscore

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testHooks is a SubclassHooks implementation that always offers the
// DirLoader, LinearStreamer and FileStorer capabilities, with per-test
// behavior set through its fields, grounded on the testify-driven internal test style of the example
// pack (e.g. rclone's cache_internal_test.go), since the teacher repo
// itself carries no tests.
type testHooks struct {
	readOnly bool

	dirLoad func(ino *Inode, path string) error

	linearStarted bool
	linearBody    []byte
	linearPos     int

	stored *struct {
		fullPath, localName string
	}
	// onStore, if set, runs inside FileStore before the handle's local
	// copy is unlinked — the only point a real file_store hook has to
	// read the written bytes before FreeInode removes them.
	onStore func(fullPath, localName string)
}

func (h *testHooks) OpenArchive(super *Superblock, name, operator string) error {
	super.Name = name
	mode := os.FileMode(0755) | os.ModeDir
	st := DefaultStat(mode)
	root := NewRootInode(super, &st)
	super.Root = root
	return nil
}

func (h *testHooks) FreeArchive(super *Superblock) {}

func (h *testHooks) DirLoad(ino *Inode, path string) error {
	return h.dirLoad(ino, path)
}

func (h *testHooks) LinearStart(fh *FileHandle, pos int64) error {
	h.linearStarted = true
	h.linearPos = int(pos)
	fh.Linear = LinearOpen
	return nil
}

func (h *testHooks) LinearRead(fh *FileHandle, buf []byte) (int, error) {
	if h.linearPos >= len(h.linearBody) {
		return 0, io.EOF
	}
	n := copy(buf, h.linearBody[h.linearPos:])
	h.linearPos += n
	return n, nil
}

func (h *testHooks) LinearClose(fh *FileHandle) error { return nil }

func (h *testHooks) FileStore(fh *FileHandle, fullPath, localName string) error {
	h.stored = &struct{ fullPath, localName string }{fullPath, localName}
	if h.onStore != nil {
		h.onStore(fullPath, localName)
	}
	return nil
}

// noStoreHooks is a SubclassHooks implementation that deliberately omits
// FileStore, unlike testHooks — used where a test needs a class the
// FileStorer type assertion in file.go's Close must genuinely fail
// against, not just one that happens not to be called.
type noStoreHooks struct{}

func (h *noStoreHooks) OpenArchive(super *Superblock, name, operator string) error {
	super.Name = name
	st := DefaultStat(os.FileMode(0755) | os.ModeDir)
	root := NewRootInode(super, &st)
	super.Root = root
	return nil
}

func (h *noStoreHooks) FreeArchive(super *Superblock) {}

func newNoStoreTreeSuper(t *testing.T) *Superblock {
	c := NewClass("test-tree-nostore", 0, 1, &noStoreHooks{})
	super, remainder, fsErr := c.GetPath("arc#", FlNone)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, "", remainder)
	require.NotNil(t, super)
	return super
}

func newTreeSuper(t *testing.T, hooks *testHooks) (*Class, *Superblock) {
	var flags ClassFlags
	if hooks.readOnly {
		flags = ReadOnly
	}
	c := NewClass("test-tree", flags, 1, hooks)
	super, remainder, fsErr := c.GetPath("arc#", FlNone)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, "", remainder)
	require.NotNil(t, super)
	return c, super
}

func TestTreeResolverWalksNestedPath(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	a := GenerateEntry("a", super.Root, os.ModeDir|0755)
	InsertEntry(super.Root, a)
	b := GenerateEntry("b", a.Ino, os.ModeDir|0755)
	InsertEntry(a.Ino, b)
	c := GenerateEntry("c", b.Ino, 0644)
	c.Ino.Stat.Size = 7
	InsertEntry(b.Ino, c)

	ent, fsErr := findEntryTree(super.Root, "a/b/c", LinkNoFollow, FlNone)
	require.Equal(t, EOKAY, fsErr)
	require.NotNil(t, ent)
	require.Equal(t, int64(7), ent.Ino.Stat.Size)
}

func TestTreeResolverEmptyPathIsRoot(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	ent, fsErr := findEntryTree(super.Root, "", LinkNoFollow, FlNone)
	require.Equal(t, EOKAY, fsErr)
	require.Nil(t, ent) // empty path names the root, per spec.md §4.C
}

func TestTreeResolverMissingIsENOENT(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	_, fsErr := findEntryTree(super.Root, "nope", LinkNoFollow, FlNone)
	require.Equal(t, ENOENT, fsErr)
}

func TestTreeResolverAutoCreate(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	ent, fsErr := findEntryTree(super.Root, "new.txt", LinkNoFollow, FlMkFile)
	require.Equal(t, EOKAY, fsErr)
	require.NotNil(t, ent)
	require.Equal(t, int32(1), ent.Ino.Nlink())

	again, fsErr := findEntryTree(super.Root, "new.txt", LinkNoFollow, FlNone)
	require.Equal(t, EOKAY, fsErr)
	require.Same(t, ent.Ino, again.Ino)
}

// TestSymlinkLoopFailsELOOP is spec.md §8 scenario 2.
func TestSymlinkLoopFailsELOOP(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	l1 := GenerateEntry("l1", super.Root, os.ModeSymlink|0777)
	l1.Ino.LinkName = "l2"
	InsertEntry(super.Root, l1)
	l2 := GenerateEntry("l2", super.Root, os.ModeSymlink|0777)
	l2.Ino.LinkName = "l1"
	InsertEntry(super.Root, l2)

	_, fsErr := findEntryTree(super.Root, "l1", Follow(super.Class.Tunables.HopLimit), FlFollow)
	require.Equal(t, ELOOP, fsErr)
}

func TestSymlinkNoFollowReturnsUnchanged(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	target := GenerateEntry("target", super.Root, 0644)
	InsertEntry(super.Root, target)
	link := GenerateEntry("l", super.Root, os.ModeSymlink|0777)
	link.Ino.LinkName = "target"
	InsertEntry(super.Root, link)

	ent, fsErr := findEntryTree(super.Root, "l", LinkNoFollow, FlNone)
	require.Equal(t, EOKAY, fsErr)
	require.True(t, ent.Ino.Stat.IsSymlink())
}

func TestSymlinkEmptyTargetIsEFAULT(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	link := GenerateEntry("l", super.Root, os.ModeSymlink|0777)
	InsertEntry(super.Root, link)

	_, fsErr := findEntryTree(super.Root, "l", Follow(8), FlFollow)
	require.Equal(t, EFAULT, fsErr)
}

func newLinearSuper(t *testing.T, hooks *testHooks) (*Class, *Superblock) {
	c := NewClass("test-linear", Remote, 2, hooks)
	super, remainder, fsErr := c.GetPath("sess#", FlNone)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, "", remainder)
	require.NotNil(t, super)
	return c, super
}

// TestLinearResolverLoadsAndCaches exercises spec.md §4.D steps 3-5 and
// the stale-cache reload of §8 scenario 4.
func TestLinearResolverLoadsAndCaches(t *testing.T) {
	loadCount := 0
	hooks := &testHooks{}
	hooks.dirLoad = func(ino *Inode, path string) error {
		loadCount++
		require.Equal(t, "pub", path)
		child := NewInode(ino.Super, nil)
		child.Stat.Size = 7
		ent := NewEntry("c", child)
		InsertEntry(ino, ent)
		ino.Expiry = time.Now().Add(50 * time.Millisecond)
		return nil
	}
	_, super := newLinearSuper(t, hooks)

	ent, fsErr := findEntryLinear(super, super.Root, "pub/c", Follow(8), FlNone)
	require.Equal(t, EOKAY, fsErr)
	require.NotNil(t, ent)
	require.Equal(t, int64(7), ent.Ino.Stat.Size)
	require.Equal(t, 1, loadCount)

	// still fresh: second lookup must not reload
	_, fsErr = findEntryLinear(super, super.Root, "pub/c", Follow(8), FlNone)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, 1, loadCount)

	time.Sleep(60 * time.Millisecond)

	_, fsErr = findEntryLinear(super, super.Root, "pub/c", Follow(8), FlNone)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, 2, loadCount, "expired snapshot must trigger a reload")
}

// TestFlushForcesReload is spec.md §8 scenario 5.
func TestFlushForcesReload(t *testing.T) {
	loadCount := 0
	hooks := &testHooks{}
	hooks.dirLoad = func(ino *Inode, path string) error {
		loadCount++
		ino.Expiry = time.Now().Add(time.Hour)
		return nil
	}
	c, super := newLinearSuper(t, hooks)

	_, fsErr := findEntryLinear(super, super.Root, "pub", Follow(8), FlDir)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, 1, loadCount)

	c.Flush()
	_, fsErr = findEntryLinear(super, super.Root, "pub", Follow(8), FlDir)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, 2, loadCount, "armed flush must force a reload even though the snapshot is still fresh")

	_, fsErr = findEntryLinear(super, super.Root, "pub", Follow(8), FlDir)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, 2, loadCount, "flush is one-shot")
}

// TestOpenWriteCloseRoundtrip is spec.md §8 invariant 8: a plain
// read-write round trip against a class with no file_store hook must not
// invalidate anything, so the written name stays reachable without any
// reload.
func TestOpenWriteCloseRoundtrip(t *testing.T) {
	super := newNoStoreTreeSuper(t)

	fh, fsErr := Open(super, "f", OCreate|OWrOnly, 0644, 8)
	require.Equal(t, EOKAY, fsErr)
	require.True(t, fh.Changed)

	n, fsErr := fh.Write([]byte("hi"))
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, 2, n)

	oldRoot := super.Root
	require.Equal(t, EOKAY, fh.Close())
	require.Same(t, oldRoot, super.Root, "close with no file_store hook must not invalidate the root")

	fh2, fsErr := Open(super, "f", ORdOnly, 0, 8)
	require.Equal(t, EOKAY, fsErr)
	buf := make([]byte, 16)
	n, fsErr = fh2.Read(buf)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, "hi", string(buf[:n]))
	require.Equal(t, EOKAY, fh2.Close())
}

// TestFileStoreOnTreeClassStillInvalidates documents the corollary: a
// file_store hook always pairs its write-back with Invalidate
// (vfscore/file.go Close), even for a tree-resolved class that has no
// dir_load to repopulate from afterward. A subclass combining FileStorer
// with the tree resolver — rather than Remote — loses its freshly written
// name once the superblock is invalidated; this is why every reference
// FileStorer implementation in this repo (sessionfs) pairs it with Remote.
func TestFileStoreOnTreeClassStillInvalidates(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	fh, fsErr := Open(super, "f", OCreate|OWrOnly, 0644, 8)
	require.Equal(t, EOKAY, fsErr)

	_, fsErr = fh.Write([]byte("hi"))
	require.Equal(t, EOKAY, fsErr)

	oldRoot := super.Root
	require.Equal(t, EOKAY, fh.Close())
	require.NotNil(t, hooks.stored)
	require.Equal(t, "f", hooks.stored.fullPath)
	require.NotSame(t, oldRoot, super.Root, "file_store must invalidate even without a dir_load to repopulate from")

	_, fsErr = Open(super, "f", ORdOnly, 0, 8)
	require.Equal(t, ENOENT, fsErr, "the written name does not survive invalidation on a class with no dir_load")
}

// TestWriteBackInvalidatesAndReloads is spec.md §8 scenario 6: a changed
// handle whose class supports file_store pushes the new body out on
// close, then invalidates the whole superblock (§4.H). The written name
// is only reachable again once dir_load repopulates it from the
// subclass's own store — exactly what a real write-back remote
// filesystem does, and why this is exercised against the linear resolver
// rather than a plain in-memory tree.
func TestWriteBackInvalidatesAndReloads(t *testing.T) {
	hooks := &testHooks{}
	backend := map[string][]byte{}

	hooks.onStore = func(fullPath, localName string) {
		body, err := os.ReadFile(localName)
		require.NoError(t, err)
		backend[strings.TrimPrefix(fullPath, "pub/")] = body
	}
	hooks.dirLoad = func(ino *Inode, path string) error {
		if path != "pub" {
			return nil
		}
		for name, body := range backend {
			tmp, err := os.CreateTemp("", "vfscache-test-*")
			require.NoError(t, err)
			_, err = tmp.Write(body)
			require.NoError(t, err)
			tmp.Close()

			child := NewInode(ino.Super, nil)
			child.Stat.Size = int64(len(body))
			child.LocalName = tmp.Name()
			InsertEntry(ino, NewEntry(name, child))
		}
		ino.Expiry = time.Now().Add(time.Hour)
		return nil
	}
	_, super := newLinearSuper(t, hooks)

	_, fsErr := findEntryLinear(super, super.Root, "pub", Follow(8), FlDir)
	require.Equal(t, EOKAY, fsErr)

	fh, fsErr := Open(super, "pub/f", OCreate|OWrOnly, 0644, 8)
	require.Equal(t, EOKAY, fsErr)
	_, fsErr = fh.Write([]byte("hi"))
	require.Equal(t, EOKAY, fsErr)

	oldRoot := super.Root
	require.Equal(t, EOKAY, fh.Close())
	require.Equal(t, map[string][]byte{"f": []byte("hi")}, backend)
	require.NotSame(t, oldRoot, super.Root, "write-back close must invalidate the superblock")

	fh2, fsErr := Open(super, "pub/f", ORdOnly, 0, 8)
	require.Equal(t, EOKAY, fsErr)
	buf := make([]byte, 16)
	n, fsErr := fh2.Read(buf)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, "hi", string(buf[:n]))
	require.Equal(t, EOKAY, fh2.Close())
}

// TestReadonlyCreateIsSilentFailure is spec.md §7 item 3.
func TestReadonlyCreateIsSilentFailure(t *testing.T) {
	hooks := &testHooks{readOnly: true}
	_, super := newTreeSuper(t, hooks)

	_, fsErr := Open(super, "f", OCreate|OWrOnly, 0644, 8)
	require.Equal(t, EIO, fsErr)
}

// TestFdUsageRestoredAfterClose is spec.md §8 invariant 6.
func TestFdUsageRestoredAfterClose(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	fh, fsErr := Open(super, "f", OCreate|OWrOnly, 0644, 8)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, int64(1), super.FdUsage())
	require.Equal(t, EOKAY, fh.Close())
	require.Equal(t, int64(0), super.FdUsage())
}

// TestOpenDirCloseDirNlinkIdempotent is spec.md §8 invariant 7.
func TestOpenDirCloseDirNlinkIdempotent(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	before := super.Root.Nlink()
	dh, fsErr := openDirIn(super, "", 8)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, before+1, dh.Ino.Nlink())
	dh.CloseDir()
	require.Equal(t, before, super.Root.Nlink())
}

// TestLinearStreamingDrivesStateMachine is spec.md §8 scenario 3.
func TestLinearStreamingDrivesStateMachine(t *testing.T) {
	hooks := &testHooks{linearBody: []byte("0123456789")}
	hooks.dirLoad = func(ino *Inode, path string) error { return nil }
	_, super := newLinearSuper(t, hooks)

	ent := NewEntry("big", NewInode(super, nil))
	InsertEntry(super.Root, ent)

	fh := &FileHandle{Ino: ent.Ino, super: super}
	fh.Linear = LinearPreOpen

	buf := make([]byte, 4)
	n, fsErr := fh.Read(buf)
	require.Equal(t, EOKAY, fsErr)
	require.Equal(t, 4, n)
	require.True(t, hooks.linearStarted)
	require.Equal(t, LinearOpen, fh.Linear)

	require.Panics(t, func() { fh.Lseek(0, io.SeekStart) })
	require.Panics(t, func() { fh.Write([]byte("x")) })
}

func TestInvalidateReplacesRoot(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)

	oldRoot := super.Root
	Invalidate(super)
	require.NotSame(t, oldRoot, super.Root)
	require.Equal(t, int32(0), oldRoot.Nlink())
}

func TestInvalidateSkippedWhenWantStale(t *testing.T) {
	hooks := &testHooks{}
	_, super := newTreeSuper(t, hooks)
	SetStaleData(super, true)

	oldRoot := super.Root
	Invalidate(super)
	require.Same(t, oldRoot, super.Root)
}

func TestGetPathWithoutMatcherAlwaysOpensFresh(t *testing.T) {
	hooks := &testHooks{}
	c := NewClass("test-dedup", 0, 1, hooks)

	super1, _, fsErr := c.GetPath("arc#", FlNone)
	require.Equal(t, EOKAY, fsErr)

	super2, _, fsErr := c.GetPath("arc#", FlNone)
	require.Equal(t, EOKAY, fsErr)

	// no ArchiveMatcher hook installed: every GetPath opens a fresh super.
	require.NotSame(t, super1, super2)
	require.Len(t, c.Superblocks(), 2)
}
