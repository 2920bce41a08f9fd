package bdev

import "os"
import "path/filepath"
import "testing"

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	m := NewMemory(4)
	buf := make([]byte, BlockSize)
	for i := range buf {
		buf[i] = 0xab
	}
	m.WriteBlock(2, buf)

	got := make([]byte, BlockSize)
	m.ReadBlock(2, got)
	if string(got) != string(buf) {
		t.Fatal("read did not return the written block")
	}
}

func TestMemoryClearBlockZeroes(t *testing.T) {
	m := NewMemory(1)
	buf := make([]byte, BlockSize)
	for i := range buf {
		buf[i] = 1
	}
	m.WriteBlock(0, buf)
	m.ClearBlock(0)

	got := make([]byte, BlockSize)
	m.ReadBlock(0, got)
	for _, b := range got {
		if b != 0 {
			t.Fatal("cleared block is not zero-filled")
		}
	}
}

func TestMemoryBlockCount(t *testing.T) {
	m := NewMemory(7)
	if m.BlockCount() != 7 {
		t.Fatalf("got %d want 7", m.BlockCount())
	}
}

func TestMemoryOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range block id")
		}
	}()
	m := NewMemory(1)
	m.ReadBlock(1, make([]byte, BlockSize))
}

func TestMemoryWrongSizedBufferPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on wrong-sized buffer")
		}
	}()
	m := NewMemory(1)
	m.WriteBlock(0, make([]byte, BlockSize-1))
}

func TestFileDeviceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.img")
	d, err := Open(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	buf := make([]byte, BlockSize)
	for i := range buf {
		buf[i] = byte(i)
	}
	d.WriteBlock(1, buf)

	got := make([]byte, BlockSize)
	d.ReadBlock(1, got)
	if string(got) != string(buf) {
		t.Fatal("read did not return the written block")
	}
	if d.BlockCount() != 4 {
		t.Fatalf("got %d want 4", d.BlockCount())
	}
}

func TestFileDeviceGrowsExistingImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.img")
	d, err := Open(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	d.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 2*BlockSize {
		t.Fatalf("got size %d want %d", info.Size(), 2*BlockSize)
	}
}
