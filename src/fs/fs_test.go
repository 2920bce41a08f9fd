package fs

import "defs"
import "fdops"
import "testing"

import "bdev"

func TestCacheGetReadsThroughOnMiss(t *testing.T) {
	dev := bdev.NewMemory(4)
	buf := make([]byte, BSIZE)
	buf[0] = 0x42
	dev.WriteBlock(1, buf)

	c := NewCache(dev)
	b := c.Get(1)
	defer c.Relse(b)
	if b.Data[0] != 0x42 {
		t.Fatalf("got %x want 0x42", b.Data[0])
	}
}

func TestCacheGetHitReusesSameBlock(t *testing.T) {
	dev := bdev.NewMemory(4)
	c := NewCache(dev)
	b1 := c.Get(0)
	b2 := c.Get(0)
	if b1 != b2 {
		t.Fatal("expected the same cached block on a hit")
	}
	c.Relse(b1)
	c.Relse(b2)
}

func TestCacheDirtyBlockFlushesOnEviction(t *testing.T) {
	dev := bdev.NewMemory(CacheSize + 1)
	c := NewCache(dev)

	b0 := c.Get(0)
	b0.Data[0] = 0xaa
	b0.MarkDirty()
	c.Relse(b0)

	for id := uint64(1); id <= CacheSize; id++ {
		b := c.Get(id)
		c.Relse(b)
	}

	readback := make([]byte, BSIZE)
	dev.ReadBlock(0, readback)
	if readback[0] != 0xaa {
		t.Fatal("dirty block was not flushed before eviction")
	}
}

func TestCacheNeverEvictsBorrowedBlock(t *testing.T) {
	dev := bdev.NewMemory(CacheSize + 1)
	c := NewCache(dev)

	held := c.Get(0) // never Relse'd: stays borrowed (refs > 1)
	for id := uint64(1); id <= CacheSize; id++ {
		b := c.Get(id)
		c.Relse(b)
	}
	// block 0 must still be resident since it was never evictable.
	again := c.Get(0)
	if again != held {
		t.Fatal("borrowed block was evicted under pressure")
	}
	c.Relse(held)
	c.Relse(again)
}

type fakeVFS_t struct{ name string }

func (*fakeVFS_t) Open(path string, flags int, mode uint) (fdops.Fdops_i, defs.Err_t) {
	return nil, 0
}
func (*fakeVFS_t) Mkdir(path string, mode uint) defs.Err_t    { return 0 }
func (*fakeVFS_t) Mkfile(path string, mode uint) defs.Err_t   { return 0 }
func (*fakeVFS_t) Remove(path string) defs.Err_t              { return 0 }
func (*fakeVFS_t) Link(oldpath, newpath string) defs.Err_t    { return 0 }
func (*fakeVFS_t) Symlink(target, linkpath string) defs.Err_t { return 0 }
func (*fakeVFS_t) Rename(oldpath, newpath string) defs.Err_t  { return 0 }

func TestMountResolveLongestPrefixWins(t *testing.T) {
	mt := NewMountTable()
	root := &fakeVFS_t{name: "root"}
	dev := &fakeVFS_t{name: "dev"}
	if err := mt.Mount("/", root); err != 0 {
		t.Fatal("mount / failed")
	}
	if err := mt.Mount("/dev", dev); err != 0 {
		t.Fatal("mount /dev failed")
	}

	vfs, rel, err := mt.Resolve("/dev/tty0")
	if err != 0 {
		t.Fatal("resolve failed")
	}
	if vfs != VFS_i(dev) {
		t.Fatal("expected /dev mount to win over /")
	}
	if rel != "/tty0" {
		t.Fatalf("got rel %q want /tty0", rel)
	}

	vfs, rel, err = mt.Resolve("/etc/passwd")
	if err != 0 {
		t.Fatal("resolve failed")
	}
	if vfs != VFS_i(root) || rel != "/etc/passwd" {
		t.Fatalf("expected root mount for unrelated path, got rel %q", rel)
	}
}

func TestMountRootCannotBeUnmounted(t *testing.T) {
	mt := NewMountTable()
	mt.Mount("/", &fakeVFS_t{})
	if err := mt.Unmount("/"); err == 0 {
		t.Fatal("expected unmount of / to fail")
	}
}

func TestMountResolveMissingPathReturnsNotMounted(t *testing.T) {
	mt := NewMountTable()
	_, _, err := mt.Resolve("/anything")
	if err != defs.ENOENT {
		t.Fatalf("got %d want ENOENT when nothing is mounted", err)
	}
}
