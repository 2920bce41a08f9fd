package devfs

import "defs"
import "testing"

import "bdev"
import "sbi"

type sliceUio struct {
	b   []byte
	off int
}

func (u *sliceUio) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, u.b[u.off:])
	u.off += n
	return n, 0
}

func (u *sliceUio) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(u.b[u.off:], src)
	u.off += n
	return n, 0
}

func (u *sliceUio) Totalsz() int { return len(u.b) }
func (u *sliceUio) Remain() int  { return len(u.b) - u.off }

func TestOpenRoutesHardcodedPaths(t *testing.T) {
	fs := New(bdev.NewMemory(4))
	for _, p := range []string{"/tty0", "/block/sda", "/zero"} {
		if _, err := fs.Open(p, 0, 0); err != 0 {
			t.Fatalf("open %s: err=%d", p, err)
		}
	}
	if _, err := fs.Open("/nope", 0, 0); err != defs.ENOENT {
		t.Fatalf("expected ENOENT, got %d", err)
	}
}

func TestZeroReadFillsZeros(t *testing.T) {
	z := Zero_t{}
	dst := &sliceUio{b: []byte{1, 2, 3}}
	n, err := z.Read(dst)
	if err != 0 || n != 3 {
		t.Fatalf("n=%d err=%d", n, err)
	}
	for _, b := range dst.b {
		if b != 0 {
			t.Fatal("expected zero-filled read")
		}
	}
}

func TestZeroWriteDiscards(t *testing.T) {
	z := Zero_t{}
	src := &sliceUio{b: []byte("abc")}
	n, err := z.Write(src)
	if err != 0 || n != 3 {
		t.Fatalf("n=%d err=%d", n, err)
	}
}

func TestTTYReadReturnsEagainOnEmptyInput(t *testing.T) {
	m := &sbi.Mock{}
	sbi.Current = m
	defer func() { sbi.Current = &sbi.Mock{} }()

	tty := NewTTY()
	dst := &sliceUio{b: make([]byte, 4)}
	n, err := tty.Read(dst)
	if err != defs.EAGAIN || n != 0 {
		t.Fatalf("n=%d err=%d want EAGAIN", n, err)
	}
}

func TestTTYReadStopsAtNewline(t *testing.T) {
	m := &sbi.Mock{}
	m.Feed([]byte("hi\nmore"))
	sbi.Current = m
	defer func() { sbi.Current = &sbi.Mock{} }()

	tty := NewTTY()
	dst := &sliceUio{b: make([]byte, 16)}
	n, err := tty.Read(dst)
	if err != 0 || n != 3 {
		t.Fatalf("n=%d err=%d want 3 bytes (\"hi\\n\")", n, err)
	}
	if string(dst.b[:n]) != "hi\n" {
		t.Fatalf("got %q", dst.b[:n])
	}
}

func TestTTYWriteFlushesToConsole(t *testing.T) {
	m := &sbi.Mock{}
	sbi.Current = m
	defer func() { sbi.Current = &sbi.Mock{} }()

	tty := NewTTY()
	src := &sliceUio{b: []byte("ok\n")}
	n, err := tty.Write(src)
	if err != 0 || n != 3 {
		t.Fatalf("n=%d err=%d", n, err)
	}
	if string(m.Output()) != "ok\n" {
		t.Fatalf("got %q", m.Output())
	}
}

func TestBlockSdaSeekRejectsUnaligned(t *testing.T) {
	sda := NewBlockSda(bdev.NewMemory(4))
	if _, err := sda.Seek(1, 0); err != defs.EINVAL {
		t.Fatalf("expected EINVAL for unaligned seek, got %d", err)
	}
	if _, err := sda.Seek(bdev.BlockSize, 0); err != 0 {
		t.Fatalf("aligned seek should succeed, got %d", err)
	}
}

func TestBlockSdaReadWriteRoundTrip(t *testing.T) {
	dev := bdev.NewMemory(4)
	sda := NewBlockSda(dev)
	sda.Seek(bdev.BlockSize, 0)

	full := make([]byte, bdev.BlockSize)
	for i := range full {
		full[i] = 7
	}
	src := &sliceUio{b: full}
	if _, err := sda.Write(src); err != 0 {
		t.Fatalf("write err=%d", err)
	}

	sda.Seek(bdev.BlockSize, 0)
	dst := &sliceUio{b: make([]byte, bdev.BlockSize)}
	n, err := sda.Read(dst)
	if err != 0 || n != bdev.BlockSize {
		t.Fatalf("n=%d err=%d", n, err)
	}
	if dst.b[0] != 7 {
		t.Fatal("read back wrong data")
	}
}
