package fat

import "encoding/binary"
import "strings"
import "testing"

import "bdev"
import "defs"
import "fdops"
import "stat"

/// formatTestVolume lays down a minimal FAT32 volume directly on dev: one
/// sector per cluster, two one-sector FATs, a 16-cluster data region, an
/// empty root directory at cluster 2 -- just enough for NewFS to mount and
/// the inode layer to exercise every operation.
func formatTestVolume(t *testing.T, dev *bdev.Memory_t) {
	t.Helper()
	const (
		secLen  = 512
		rsvdSec = 1
		fatSec  = 1
		fatCnt  = 2
		clstCnt = 16
	)
	dbrBlock := make([]byte, secLen)
	le := binary.LittleEndian
	le.PutUint16(dbrBlock[offBytesPerSec:], secLen)
	dbrBlock[offSecPerClus] = 1
	le.PutUint16(dbrBlock[offRsvdSecCnt:], rsvdSec)
	dbrBlock[offNumFATs] = fatCnt
	le.PutUint32(dbrBlock[offFATSz32:], fatSec)
	le.PutUint32(dbrBlock[offTotSec32:], rsvdSec+fatCnt*fatSec+clstCnt)
	le.PutUint32(dbrBlock[offRootClus:], 2)
	dbrBlock[offSignature] = 0x55
	dbrBlock[offSignature+1] = 0xAA
	dev.WriteBlock(0, dbrBlock)

	fatBlock := make([]byte, secLen)
	le.PutUint32(fatBlock[2*4:], clusterEndOfChain) // cluster 2: root, EOC
	dev.WriteBlock(rsvdSec, fatBlock)
	dev.WriteBlock(rsvdSec+fatSec, fatBlock)
}

func newTestFS(t *testing.T) *FS_t {
	t.Helper()
	dev := bdev.NewMemory(1 + 2 + 16)
	formatTestVolume(t, dev)
	return NewFS(dev)
}

func mustOk(t *testing.T, err defs.Err_t, what string) {
	t.Helper()
	if err != 0 {
		t.Fatalf("%s: %v", what, err)
	}
}

func asDir(t *testing.T, fd fdops.Fdops_i) fdops.Directory_i {
	t.Helper()
	d, ok := fd.(fdops.Directory_i)
	if !ok {
		t.Fatalf("fdops.Fdops_i does not implement fdops.Directory_i")
	}
	return d
}

func TestMkfileOpenWriteReadRoundTrip(t *testing.T) {
	f := newTestFS(t)
	mustOk(t, f.Mkfile("/hello.txt", 0), "Mkfile")

	fd, err := f.Open("/hello.txt", fdops.O_RDWR, 0)
	mustOk(t, err, "Open")

	payload := []byte("hello, fat32")
	n, werr := fd.WriteBytes(payload)
	mustOk(t, werr, "WriteBytes")
	if n != len(payload) {
		t.Fatalf("wrote %d bytes, want %d", n, len(payload))
	}

	if _, serr := fd.Seek(0, fdops.SEEK_SET); serr != 0 {
		t.Fatalf("Seek: %v", serr)
	}
	got, rerr := fd.ReadBytes(len(payload))
	mustOk(t, rerr, "ReadBytes")
	if string(got) != string(payload) {
		t.Fatalf("read %q, want %q", got, payload)
	}
}

func TestMkfileRejectsDuplicate(t *testing.T) {
	f := newTestFS(t)
	mustOk(t, f.Mkfile("/dup.txt", 0), "Mkfile")
	if err := f.Mkfile("/dup.txt", 0); err != defs.EEXIST {
		t.Fatalf("second Mkfile: got %v, want EEXIST", err)
	}
}

func TestLongNameRoundTrip(t *testing.T) {
	f := newTestFS(t)
	const name = "a-rather-long-filename-needing-several-entries.txt"
	mustOk(t, f.Mkfile("/"+name, 0), "Mkfile")

	fd, err := f.Open("/", fdops.O_DIRECTORY, 0)
	mustOk(t, err, "Open root")
	entries, lerr := asDir(t, fd).List()
	mustOk(t, lerr, "List")

	found := false
	for _, e := range entries {
		if e.Name == name {
			found = true
		}
	}
	if !found {
		t.Fatalf("long name %q not found among %v", name, entries)
	}
}

func TestMkdirAndNestedFile(t *testing.T) {
	f := newTestFS(t)
	mustOk(t, f.Mkdir("/sub", 0), "Mkdir")
	mustOk(t, f.Mkfile("/sub/nested.txt", 0), "Mkfile nested")

	fd, err := f.Open("/sub/nested.txt", fdops.O_WRONLY, 0)
	mustOk(t, err, "Open nested")
	if _, werr := fd.WriteBytes([]byte("x")); werr != 0 {
		t.Fatalf("WriteBytes: %v", werr)
	}

	var st stat.Stat_t
	mustOk(t, fd.Stat(&st), "Stat")
	if st.Type != stat.T_REGULAR {
		t.Fatalf("Type = %v, want T_REGULAR", st.Type)
	}
}

func TestRemoveRefusesNonEmptyDir(t *testing.T) {
	f := newTestFS(t)
	mustOk(t, f.Mkdir("/sub", 0), "Mkdir")
	mustOk(t, f.Mkfile("/sub/x", 0), "Mkfile")

	if err := f.Remove("/sub"); err != defs.ENOTEMPTY {
		t.Fatalf("Remove non-empty dir: got %v, want ENOTEMPTY", err)
	}
	mustOk(t, f.Remove("/sub/x"), "Remove file")
	mustOk(t, f.Remove("/sub"), "Remove empty dir")

	if _, err := f.Open("/sub", fdops.O_DIRECTORY, 0); err != defs.ENOENT {
		t.Fatalf("Open removed dir: got %v, want ENOENT", err)
	}
}

func TestSymlinkFollowsByDefault(t *testing.T) {
	f := newTestFS(t)
	mustOk(t, f.Mkfile("/target.txt", 0), "Mkfile target")

	fd, err := f.Open("/target.txt", fdops.O_WRONLY, 0)
	mustOk(t, err, "Open target")
	mustOk(t, func() defs.Err_t { _, e := fd.WriteBytes([]byte("payload")); return e }(), "write target")

	mustOk(t, f.Symlink("/target.txt", "/link"), "Symlink")

	followed, ferr := f.Open("/link", fdops.O_RDONLY, 0)
	mustOk(t, ferr, "Open link (follow)")
	got, rerr := followed.ReadBytes(7)
	mustOk(t, rerr, "ReadBytes via link")
	if string(got) != "payload" {
		t.Fatalf("read via symlink = %q, want %q", got, "payload")
	}

	raw, nerr := f.Open("/link", fdops.O_RDONLY|fdops.O_NOFOLLOW, 0)
	mustOk(t, nerr, "Open link (no-follow)")
	var st stat.Stat_t
	mustOk(t, raw.Stat(&st), "Stat link")
	if st.Type != stat.T_LINK {
		t.Fatalf("Type = %v, want T_LINK", st.Type)
	}
}

func TestRenameInPlace(t *testing.T) {
	f := newTestFS(t)
	mustOk(t, f.Mkfile("/old.txt", 0), "Mkfile")
	mustOk(t, f.Rename("/old.txt", "/new.txt"), "Rename")

	if _, err := f.Open("/old.txt", fdops.O_RDONLY, 0); err != defs.ENOENT {
		t.Fatalf("Open old name: got %v, want ENOENT", err)
	}
	if _, err := f.Open("/new.txt", fdops.O_RDONLY, 0); err != 0 {
		t.Fatalf("Open new name: %v", err)
	}
}

func TestRenameToLongerNameReallocatesSlot(t *testing.T) {
	f := newTestFS(t)
	mustOk(t, f.Mkfile("/a", 0), "Mkfile")
	longName := strings.Repeat("b", 40)
	mustOk(t, f.Rename("/a", "/"+longName), "Rename to long name")

	fd, err := f.Open("/", fdops.O_DIRECTORY, 0)
	mustOk(t, err, "Open root")
	entries, lerr := asDir(t, fd).List()
	mustOk(t, lerr, "List")
	found := false
	for _, e := range entries {
		if e.Name == longName {
			found = true
		}
	}
	if !found {
		t.Fatalf("renamed long name not found among %v", entries)
	}
}

func TestFormatProducesValidVolume(t *testing.T) {
	dev := bdev.NewMemory(64)
	Format(dev, FormatConfig{})
	f := NewFS(dev)

	mustOk(t, f.Mkfile("/hello", 0), "Mkfile on a Format-produced volume")
	fd, err := f.Open("/hello", fdops.O_RDWR, 0)
	mustOk(t, err, "Open")
	if _, werr := fd.WriteBytes([]byte("ok")); werr != 0 {
		t.Fatalf("WriteBytes: %v", werr)
	}
}

func TestWriteGrowsAcrossMultipleClusters(t *testing.T) {
	f := newTestFS(t)
	mustOk(t, f.Mkfile("/big", 0), "Mkfile")
	fd, err := f.Open("/big", fdops.O_RDWR, 0)
	mustOk(t, err, "Open")

	payload := make([]byte, 512*3+17) // spans 4 one-sector clusters
	for i := range payload {
		payload[i] = byte(i)
	}
	n, werr := fd.WriteBytes(payload)
	mustOk(t, werr, "WriteBytes")
	if n != len(payload) {
		t.Fatalf("wrote %d, want %d", n, len(payload))
	}

	if _, serr := fd.Seek(0, fdops.SEEK_SET); serr != 0 {
		t.Fatalf("Seek: %v", serr)
	}
	got, rerr := fd.ReadBytes(len(payload))
	mustOk(t, rerr, "ReadBytes")
	if string(got) != string(payload) {
		t.Fatal("multi-cluster round trip mismatch")
	}
}
