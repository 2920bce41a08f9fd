package fs

import "bpath"
import "defs"
import "ustr"

/// Resolve canonicalizes p and finds the filesystem that owns it (spec.md
/// §4.9's "all route through resolve"). Callers with a working directory
/// should canonicalize relative to it first (fd.Cwd_t.Canonicalpath) and
/// pass the resulting absolute path here.
func Resolve(mt *MountTable_t, p ustr.Ustr) (VFS_i, string, defs.Err_t) {
	canon := bpath.Canonicalize(p)
	return mt.Resolve(canon.String())
}

/// SameFilesystem reports whether oldpath and newpath resolve to the same
/// mounted filesystem, the precondition link and rename both require
/// before touching their targets (spec.md §4.9 "a cross-filesystem rename
/// or hard link fails with Cross-device Link").
func SameFilesystem(mt *MountTable_t, oldpath, newpath ustr.Ustr) (VFS_i, string, string, defs.Err_t) {
	ovfs, orel, err := Resolve(mt, oldpath)
	if err != 0 {
		return nil, "", "", err
	}
	nvfs, nrel, err := Resolve(mt, newpath)
	if err != 0 {
		return nil, "", "", err
	}
	if ovfs != nvfs {
		return nil, "", "", defs.EXDEV
	}
	return ovfs, orel, nrel, 0
}
