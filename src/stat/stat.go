// Package stat encodes the FileStatus information returned by a File's
// poll-status capability (spec.md §3).
package stat

/// Ftype_t enumerates the kinds of file a FileStatus may describe.
type Ftype_t uint

const (
	T_REGULAR Ftype_t = iota
	T_DIR
	T_CHARDEV
	T_BLOCKDEV
	T_FIFO
	T_LINK
)

/// Stat_t mirrors a file's stat information (spec.md §3's FileStatus):
/// readable, writable, size, name, type, inode, dev, mode, block size,
/// block count, uid, gid, and three timestamps.
type Stat_t struct {
	Readable bool
	Writable bool
	Name     string
	Type     Ftype_t
	_dev     uint
	_ino     uint
	_mode    uint
	_size    uint
	_uid     uint
	_gid     uint
	_blksize uint
	_blocks  uint
	_atime   int64 /// nanoseconds since epoch
	_mtime   int64
	_ctime   int64
}

/// Wdev stores the device ID.
func (st *Stat_t) Wdev(v uint) { st._dev = v }

/// Wino stores the inode number.
func (st *Stat_t) Wino(v uint) { st._ino = v }

/// Wmode records the file mode.
func (st *Stat_t) Wmode(v uint) { st._mode = v }

/// Wsize records the file size.
func (st *Stat_t) Wsize(v uint) { st._size = v }

/// Wblocks records the block count backing the file.
func (st *Stat_t) Wblocks(v uint) { st._blocks = v }

/// Wtimes records atime, mtime and ctime together (nanoseconds since epoch).
func (st *Stat_t) Wtimes(atime, mtime, ctime int64) {
	st._atime, st._mtime, st._ctime = atime, mtime, ctime
}

/// Mode returns the stored mode value.
func (st *Stat_t) Mode() uint { return st._mode }

/// Size returns the stored size.
func (st *Stat_t) Size() uint { return st._size }

/// Rino returns the stored inode number.
func (st *Stat_t) Rino() uint { return st._ino }

/// Rdev returns the stored device id.
func (st *Stat_t) Rdev() uint { return st._dev }

/// Bytes serializes the structure into the fixed-layout form a struct stat
/// syscall reply copies to user space: dev, ino, mode|type, size, blksize,
/// blocks, uid, gid, three 8-byte timestamps, all little-endian uint64s.
func (st *Stat_t) Bytes() []uint8 {
	const words = 11
	b := make([]uint8, words*8)
	put := func(i int, v uint64) {
		off := i * 8
		for j := 0; j < 8; j++ {
			b[off+j] = uint8(v >> (8 * j))
		}
	}
	put(0, uint64(st._dev))
	put(1, uint64(st._ino))
	put(2, uint64(st._mode)|uint64(st.Type)<<32)
	put(3, uint64(st._size))
	put(4, 512) // BSIZE, see fs.BSIZE
	put(5, uint64(st._blocks))
	put(6, uint64(st._uid))
	put(7, uint64(st._gid))
	put(8, uint64(st._atime))
	put(9, uint64(st._mtime))
	put(10, uint64(st._ctime))
	return b
}
