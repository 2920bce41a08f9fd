// Package devfs is the device filesystem mounted at /dev (spec.md §4.11):
// hard-coded roots /tty0, /block/sda, /zero, each a File object rather
// than anything backed by the block cache or FAT32. Grounded on
// original_source/src/fs/fs_impl/devfs/devfs.rs's DevFS::open match on a
// fixed set of absolute paths.
package devfs

import "defs"
import "fdops"

import "bdev"

/// FS_t is the device filesystem: a fixed, hard-coded route table rather
/// than a real directory tree, matching DevFS::open's literal path match.
type FS_t struct {
	tty  *TTY_t
	sda  *BlockSda_t
	zero *Zero_t
}

/// New wires a device filesystem over blockdev (the disk /block/sda
/// exposes).
func New(blockdev bdev.Device) *FS_t {
	return &FS_t{
		tty:  NewTTY(),
		sda:  NewBlockSda(blockdev),
		zero: &Zero_t{},
	}
}

func (d *FS_t) Open(path string, flags int, mode uint) (fdops.Fdops_i, defs.Err_t) {
	switch path {
	case "/tty0":
		return d.tty, 0
	case "/block/sda":
		return d.sda, 0
	case "/zero":
		return d.zero, 0
	default:
		return nil, defs.ENOENT
	}
}

func (d *FS_t) Mkdir(path string, mode uint) defs.Err_t    { return defs.EINVAL }
func (d *FS_t) Mkfile(path string, mode uint) defs.Err_t   { return defs.EINVAL }
func (d *FS_t) Remove(path string) defs.Err_t              { return defs.EINVAL }
func (d *FS_t) Link(oldpath, newpath string) defs.Err_t    { return defs.EINVAL }
func (d *FS_t) Symlink(target, linkpath string) defs.Err_t { return defs.EINVAL }
func (d *FS_t) Rename(oldpath, newpath string) defs.Err_t  { return defs.EINVAL }
