package fs

import "sort"
import "strings"
import "sync"

import "defs"
import "fdops"

/// VFS_i is the filesystem-level contract every mounted filesystem
/// implements (spec.md §4.9): the operations that take a path relative to
/// that filesystem's own root, before any per-open-file Fdops_i exists.
/// Path resolution (the mount table below) is the only thing that turns
/// an absolute VFS-surface path into a (VFS_i, relative path) pair; a
/// concrete filesystem never sees another filesystem's paths.
type VFS_i interface {
	Open(path string, flags int, mode uint) (fdops.Fdops_i, defs.Err_t)
	Mkdir(path string, mode uint) defs.Err_t
	Mkfile(path string, mode uint) defs.Err_t
	Remove(path string) defs.Err_t
	Link(oldpath, newpath string) defs.Err_t
	Symlink(target, linkpath string) defs.Err_t
	Rename(oldpath, newpath string) defs.Err_t
}

type mountEntry_t struct {
	prefix string
	vfs    VFS_i
}

/// MountTable_t is the ordered mapping from absolute mount-point prefix
/// to filesystem object (spec.md §3 "Mount table"). The entries slice is
/// kept sorted longest-prefix-first so Resolve's linear scan always picks
/// the longest match.
type MountTable_t struct {
	sync.Mutex
	mounts []mountEntry_t
}

/// NewMountTable returns an empty mount table. The caller is expected to
/// Mount("/", rootfs) immediately, satisfying the "root must always be
/// mounted" invariant before any path is resolved.
func NewMountTable() *MountTable_t {
	return &MountTable_t{}
}

/// Mount installs vfs at prefix. prefix must be an already-canonical
/// absolute path (bpath.Canonicalize); "/" itself is the usual first
/// mount.
func (mt *MountTable_t) Mount(prefix string, vfs VFS_i) defs.Err_t {
	mt.Lock()
	defer mt.Unlock()
	for _, m := range mt.mounts {
		if m.prefix == prefix {
			return defs.EINVAL
		}
	}
	mt.mounts = append(mt.mounts, mountEntry_t{prefix, vfs})
	sort.Slice(mt.mounts, func(i, j int) bool {
		return len(mt.mounts[i].prefix) > len(mt.mounts[j].prefix)
	})
	return 0
}

/// Unmount removes the filesystem mounted exactly at prefix. "/" may
/// never be unmounted (spec.md §3 invariant).
func (mt *MountTable_t) Unmount(prefix string) defs.Err_t {
	mt.Lock()
	defer mt.Unlock()
	if prefix == "/" {
		return defs.EINVAL
	}
	for i, m := range mt.mounts {
		if m.prefix == prefix {
			mt.mounts = append(mt.mounts[:i], mt.mounts[i+1:]...)
			return 0
		}
	}
	return defs.EINVAL
}

/// Resolve finds the mounted filesystem owning abspath and the path
/// relative to that filesystem's root, picking the longest matching
/// prefix (spec.md §4.9). abspath must already be canonical.
func (mt *MountTable_t) Resolve(abspath string) (VFS_i, string, defs.Err_t) {
	mt.Lock()
	defer mt.Unlock()
	for _, m := range mt.mounts {
		if m.prefix == "/" {
			return m.vfs, abspath, 0
		}
		if abspath == m.prefix {
			return m.vfs, "/", 0
		}
		if strings.HasPrefix(abspath, m.prefix+"/") {
			rel := strings.TrimPrefix(abspath, m.prefix)
			return m.vfs, rel, 0
		}
	}
	return nil, "", defs.ENOENT
}
