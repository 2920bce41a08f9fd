package bdev

import "os"
import "sync"

import "golang.org/x/sys/unix"

/// File_t is a Device backed by a regular host file, one BlockSize-sized
/// slice per block id, grounded directly on ufs/driver.go's ahci_disk_t
/// (Seek to block*BlockSize, then Read/Write exactly one block, panicking
/// on any short transfer). Unlike the teacher's simulator this one flocks
/// the backing file for its whole lifetime so a second host process (e.g.
/// an accidental second kernel instance, or mkfs running concurrently)
/// cannot corrupt the image, and calls Fdatasync (not Sync) after every
/// block write to skip the metadata round-trip a data-only durability
/// guarantee doesn't need; Close does one full Sync (SPEC_FULL.md DOMAIN STACK: golang.org/x/sys/unix).
type File_t struct {
	sync.Mutex
	f      *os.File
	blocks uint64
}

/// Open locks and opens path as a block device image of the given block
/// count. The file is created and grown to size if it does not already
/// hold at least that many blocks.
func Open(path string, count uint64) (*File_t, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}
	want := int64(count) * BlockSize
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() < want {
		if err := f.Truncate(want); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &File_t{f: f, blocks: count}, nil
}

/// Close flushes and releases the image file's lock.
func (d *File_t) Close() error {
	d.Lock()
	defer d.Unlock()
	if err := d.f.Sync(); err != nil {
		d.f.Close()
		return err
	}
	return d.f.Close()
}

func (d *File_t) seek(id uint64) {
	_, err := d.f.Seek(int64(id)*BlockSize, 0)
	if err != nil {
		panic(err)
	}
}

func (d *File_t) ReadBlock(id uint64, buf []byte) {
	checkLen(buf)
	d.Lock()
	defer d.Unlock()
	checkID(id, d.blocks)
	d.seek(id)
	n, err := d.f.Read(buf)
	if n != BlockSize || err != nil {
		panic(err)
	}
}

func (d *File_t) WriteBlock(id uint64, buf []byte) {
	checkLen(buf)
	d.Lock()
	defer d.Unlock()
	checkID(id, d.blocks)
	d.seek(id)
	n, err := d.f.Write(buf)
	if n != BlockSize || err != nil {
		panic(err)
	}
	if err := unix.Fdatasync(int(d.f.Fd())); err != nil {
		panic(err)
	}
}

func (d *File_t) ClearBlock(id uint64) {
	zero := make([]byte, BlockSize)
	d.WriteBlock(id, zero)
}

func (d *File_t) BlockCount() uint64 {
	d.Lock()
	defer d.Unlock()
	return d.blocks
}
