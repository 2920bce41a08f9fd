package devfs

import "defs"
import "fdops"
import "stat"

import "bdev"

/// BlockSda_t is /block/sda: the underlying block device exposed as a
/// file whose seek is constrained to multiples of the block size (spec.md
/// §4.11), grounded on original_source's SDA_WRAPPER (a DeviceFile
/// downcast over the disk) generalized to bdev.Device.
type BlockSda_t struct {
	dev bdev.Device
	pos uint64 /// byte offset, always a multiple of bdev.BlockSize
}

func NewBlockSda(dev bdev.Device) *BlockSda_t {
	return &BlockSda_t{dev: dev}
}

func (b *BlockSda_t) Close() defs.Err_t  { return 0 }
func (b *BlockSda_t) Reopen() defs.Err_t { return 0 }

/// Seek moves the byte cursor; off must keep the cursor block-aligned
/// (spec.md §4.11).
func (b *BlockSda_t) Seek(off int, whence fdops.Whence_t) (int, defs.Err_t) {
	var base int64
	switch whence {
	case fdops.SEEK_SET:
		base = 0
	case fdops.SEEK_CUR:
		base = int64(b.pos)
	case fdops.SEEK_END:
		base = int64(b.dev.BlockCount()) * bdev.BlockSize
	}
	np := base + int64(off)
	if np < 0 || np%bdev.BlockSize != 0 {
		return 0, defs.EINVAL
	}
	b.pos = uint64(np)
	return int(b.pos), 0
}

func (b *BlockSda_t) Tell() int { return int(b.pos) }

func (b *BlockSda_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	if dst.Remain() < bdev.BlockSize {
		return 0, defs.EINVAL
	}
	id := b.pos / bdev.BlockSize
	buf := make([]byte, bdev.BlockSize)
	b.dev.ReadBlock(id, buf)
	n, err := dst.Uiowrite(buf)
	b.pos += uint64(n)
	return n, err
}

func (b *BlockSda_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	id := b.pos / bdev.BlockSize
	buf := make([]byte, bdev.BlockSize)
	n, err := src.Uioread(buf)
	if err != 0 {
		return n, err
	}
	if n < bdev.BlockSize {
		return 0, defs.EINVAL
	}
	b.dev.WriteBlock(id, buf)
	b.pos += uint64(n)
	return n, 0
}

func (b *BlockSda_t) ReadBytes(n int) ([]uint8, defs.Err_t)  { return nil, defs.EINVAL }
func (b *BlockSda_t) WriteBytes(d []uint8) (int, defs.Err_t) { return 0, defs.EINVAL }

func (b *BlockSda_t) Stat(st *stat.Stat_t) defs.Err_t {
	st.Readable = true
	st.Writable = true
	st.Type = stat.T_BLOCKDEV
	st.Name = "sda"
	st.Wsize(uint(b.dev.BlockCount() * bdev.BlockSize))
	return 0
}

func (b *BlockSda_t) Rename(newpath string) defs.Err_t { return defs.EINVAL }
func (b *BlockSda_t) Path() string                     { return "/block/sda" }

func (b *BlockSda_t) Ioctl(cmd int, arg int) (int, defs.Err_t) { return 0, defs.ENOTTY }

func (b *BlockSda_t) BlockSize() int      { return bdev.BlockSize }
func (b *BlockSda_t) BlockCount() uint64 { return b.dev.BlockCount() }
