package fat

import "sync"

import "bdev"
import "bpath"
import "defs"
import "fdops"
import "fs"
import "ustr"

/// FS_t is one mounted FAT32 volume: the decoded DBR, both FAT copies'
/// locations, and the block cache every cluster and FAT access goes
/// through. It implements fs.VFS_i so the mount table can route paths to
/// it like any other filesystem (spec.md §4.9).
type FS_t struct {
	mu    sync.Mutex /// serializes FAT table mutation (alloc/append/truncate)
	cache *fs.Cache_t
	dbr   DBR
	fat1  fatRegion
	fat2  fatRegion
}

/// NewFS mounts a FAT32 volume already formatted onto dev: reads block 0,
/// parses the DBR, and locates both FAT copies (spec.md §4.8 "DBR
/// parsing"). Grounded on Fat32FS::openFat32.
func NewFS(dev bdev.Device) *FS_t {
	cache := fs.NewCache(dev)
	b := cache.Get(0)
	block := append([]byte(nil), b.Data...)
	cache.Relse(b)

	dbr := ParseDBR(block)
	return &FS_t{
		cache: cache,
		dbr:   dbr,
		fat1:  fat1Region(dbr),
		fat2:  fat2Region(dbr),
	}
}

/// Sync flushes every dirty cache entry to the device (spec.md §4.7
/// "sync flushes dirty entries").
func (f *FS_t) Sync() { f.cache.Sync() }

func (f *FS_t) rootInode() *Inode {
	return rootInode(f)
}

/// splitParent separates path's final component from the directory that
/// must contain it, resolving that directory from the root (spec.md §4.8
/// "Mkdir", "Mkfile", "Remove", "Rename" all act on a parent directory
/// plus a new leaf name).
func splitParent(f *FS_t, path string) (*Inode, string, defs.Err_t) {
	pp, err := bpath.Parse(ustr.Ustr(path))
	if err != 0 {
		return nil, "", err
	}
	if len(pp.Comps) == 0 {
		return nil, "", defs.EINVAL
	}
	name := pp.Comps[len(pp.Comps)-1].String()
	dirPath := bpath.Path_t{Abs: true, Comps: pp.Comps[:len(pp.Comps)-1]}
	file, err := open(f.rootInode(), dirPath.String().String(), fdops.O_DIRECTORY)
	if err != 0 {
		return nil, "", err
	}
	return file.inode, name, 0
}

/// Open resolves path against the root directory and opens it per flags
/// (spec.md §4.8 "Open"). flags carries the fdops.O_* bits (O_CREAT,
/// O_DIRECTORY, O_NOFOLLOW), matching fdops.Fdops_i's open contract.
func (f *FS_t) Open(path string, flags int, mode uint) (fdops.Fdops_i, defs.Err_t) {
	file, err := open(f.rootInode(), path, flags)
	if err != 0 {
		return nil, err
	}
	return file, 0
}

/// Mkdir creates a new directory at path (spec.md §4.8 "Mkdir").
func (f *FS_t) Mkdir(path string, mode uint) defs.Err_t {
	parent, name, err := splitParent(f, path)
	if err != 0 {
		return err
	}
	_, err = parent.NewChild(name, AttrSubdir)
	return err
}

/// Mkfile creates a new empty file at path (spec.md §4.8 "Mkfile").
func (f *FS_t) Mkfile(path string, mode uint) defs.Err_t {
	parent, name, err := splitParent(f, path)
	if err != 0 {
		return err
	}
	_, err = parent.NewChild(name, AttrFile)
	return err
}

/// Remove deletes the file or empty directory at path (spec.md §4.8
/// "Remove").
func (f *FS_t) Remove(path string) defs.Err_t {
	parent, name, err := splitParent(f, path)
	if err != 0 {
		return err
	}
	return parent.DeleteInode(name)
}

/// Link is not supported: FAT32 directory entries have no link count, so
/// a second name for the same chain has no way to be represented.
func (f *FS_t) Link(oldpath, newpath string) defs.Err_t {
	return defs.EINVAL
}

/// Symlink creates linkpath as a symlink whose body is target's UTF-8
/// bytes (spec.md §4.8 "Symbolic links"), via the reserved 0x80 attribute
/// bit.
func (f *FS_t) Symlink(target, linkpath string) defs.Err_t {
	parent, name, err := splitParent(f, linkpath)
	if err != 0 {
		return err
	}
	child, err := parent.NewChild(name, AttrFile|AttrSym)
	if err != 0 {
		return err
	}
	file := newFile(child)
	if _, werr := file.Write(stringUio(target)); werr != 0 {
		return werr
	}
	return file.Close()
}

/// Rename renames oldpath's final component to newpath's, in place when
/// the new name's long-entry group fits in the same directory slot,
/// otherwise by appending a new group and deleting the old one (spec.md
/// §4.8 "Rename"). Moving a file to a different parent directory is not
/// supported, matching original_source's FileInner::rename.
func (f *FS_t) Rename(oldpath, newpath string) defs.Err_t {
	file, err := open(f.rootInode(), oldpath, fdops.O_NOFOLLOW)
	if err != 0 {
		return err
	}
	newName := lastComponent(newpath)
	if newName == "" {
		return defs.EINVAL
	}
	if rerr := file.rename(newName); rerr != 0 {
		return rerr
	}
	return file.Close()
}

/// stringUio adapts a Go string to fdops.Userio_i for a single
/// scatter/gather write, used by Symlink to store the target path.
type stringUioT struct {
	b   []byte
	off int
}

func stringUio(s string) *stringUioT { return &stringUioT{b: []byte(s)} }

func (u *stringUioT) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, u.b[u.off:])
	u.off += n
	return n, 0
}
func (u *stringUioT) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(u.b[u.off:], src)
	u.off += n
	return n, 0
}
func (u *stringUioT) Totalsz() int { return len(u.b) }
func (u *stringUioT) Remain() int  { return len(u.b) - u.off }
