// Package fdops defines the File "trait object": the capability set every
// open file descriptor implements, plus the three optional downcasts
// (common-file, directory-file, device-file) spec.md §3/§9 describe. Go has
// no trait objects, so the capability set is an interface and the
// downcasts are type assertions a concrete implementation opts into by
// also implementing the richer interface.
package fdops

import (
	"defs"
	"stat"
)

/// Whence_t mirrors lseek's whence argument.
type Whence_t int

const (
	SEEK_SET Whence_t = iota
	SEEK_CUR
	SEEK_END
)

/// Userio_i abstracts a scatter-gather user-space buffer so kernel code can
/// read/write it without depending on the vm package (avoiding an import
/// cycle: vm.Fakeubuf_t and the real per-process user buffer both satisfy
/// this).
type Userio_i interface {
	Uioread(dst []uint8) (int, defs.Err_t)
	Uiowrite(src []uint8) (int, defs.Err_t)
	Totalsz() int
	Remain() int
}

/// Fdops_i is the capability set every open File must implement: the
/// common operations spec.md §3 lists (seek, tell, read/write bytes,
/// read-into/write-from a user buffer, poll-status, rename, get-vfs,
/// get-path), plus Close/Reopen for descriptor-table bookkeeping.
type Fdops_i interface {
	Close() defs.Err_t
	Reopen() defs.Err_t

	Seek(off int, whence Whence_t) (int, defs.Err_t)
	Tell() int

	Read(dst Userio_i) (int, defs.Err_t)
	Write(src Userio_i) (int, defs.Err_t)

	ReadBytes(n int) ([]uint8, defs.Err_t)
	WriteBytes(b []uint8) (int, defs.Err_t)

	Stat(st *stat.Stat_t) defs.Err_t
	Rename(newpath string) defs.Err_t

	Path() string
}

/// Common_i is the downcast for a plain data file: truncate and sync.
type Common_i interface {
	Fdops_i
	Truncate(newlen uint) defs.Err_t
	Sync() defs.Err_t
}

/// Dirent_t is one entry a directory listing yields.
type Dirent_t struct {
	Name string
	Type stat.Ftype_t
	Ino  uint
}

/// Directory_i is the downcast for a directory file: open/mkdir/mkfile/
/// remove/list (spec.md §3).
type Directory_i interface {
	Fdops_i
	Open(name string, flags int, mode uint) (Fdops_i, defs.Err_t)
	Mkdir(name string, mode uint) defs.Err_t
	Mkfile(name string, mode uint) defs.Err_t
	Remove(name string) defs.Err_t
	List() ([]Dirent_t, defs.Err_t)
}

/// Device_i is the downcast for a device file: ioctl plus the char/block
/// sub-downcasts.
type Device_i interface {
	Fdops_i
	Ioctl(cmd int, arg int) (int, defs.Err_t)
}

/// CharDevice_i further downcasts a Device_i that transfers unstructured
/// byte streams (tty, /zero).
type CharDevice_i interface {
	Device_i
	Getchar() (uint8, bool, defs.Err_t) /// ok=false means would-block
	Putchar(b uint8) defs.Err_t
}

/// BlockDevice_i further downcasts a Device_i backed by fixed-size blocks
/// (/block/sda).
type BlockDevice_i interface {
	Device_i
	BlockSize() int
	BlockCount() uint64
}

/// Open flags (spec.md §6's syscall surface).
const (
	O_RDONLY = 0x0
	O_WRONLY = 0x1
	O_RDWR   = 0x2
	O_CREAT  = 0x40
	O_EXCL   = 0x80
	O_TRUNC  = 0x200
	O_APPEND = 0x400
	O_DIRECTORY = 0x10000
	O_NOFOLLOW  = 0x20000
)
