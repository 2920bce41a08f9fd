// Package procfs is the proc filesystem mounted wherever boot wiring
// chooses (spec.md §4.11): today just /self/exe, dynamically synthesised
// from the currently-running process rather than backed by any on-disk
// data. Grounded on original_source/src/fs/fs_impl/procfs/mod.rs
// (ProcSelfExe/ProcFS).
package procfs

import "defs"
import "fdops"
import "stat"

import "proc"

/// FS_t is the proc filesystem: like devfs, a fixed hard-coded route
/// rather than a real directory tree.
type FS_t struct{}

func New() *FS_t { return &FS_t{} }

func (FS_t) Open(path string, flags int, mode uint) (fdops.Fdops_i, defs.Err_t) {
	if path == "/self/exe" {
		return &SelfExe_t{}, 0
	}
	return nil, defs.ENOENT
}

func (FS_t) Mkdir(path string, mode uint) defs.Err_t    { return defs.EINVAL }
func (FS_t) Mkfile(path string, mode uint) defs.Err_t   { return defs.EINVAL }
func (FS_t) Remove(path string) defs.Err_t              { return defs.EINVAL }
func (FS_t) Link(oldpath, newpath string) defs.Err_t    { return defs.EINVAL }
func (FS_t) Symlink(target, linkpath string) defs.Err_t { return defs.EINVAL }
func (FS_t) Rename(oldpath, newpath string) defs.Err_t  { return defs.EINVAL }

/// SelfExe_t is /self/exe: readonly, no cursor, reads back the calling
/// process's exec path (spec.md §4.11). original_source reads
/// current_process()'s immu_infos.exec_path; this reads
/// proc.CurrentProc().Exe the same way.
type SelfExe_t struct{}

func (SelfExe_t) Close() defs.Err_t  { return 0 }
func (SelfExe_t) Reopen() defs.Err_t { return 0 }

func (SelfExe_t) Seek(off int, whence fdops.Whence_t) (int, defs.Err_t) {
	return 0, defs.ESPIPE
}
func (SelfExe_t) Tell() int { return 0 }

func (SelfExe_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	p := proc.CurrentProc()
	if p == nil {
		return 0, defs.ESRCH
	}
	return dst.Uiowrite(p.Exe)
}

func (SelfExe_t) Write(src fdops.Userio_i) (int, defs.Err_t) { return 0, defs.EROFS }

func (SelfExe_t) ReadBytes(n int) ([]uint8, defs.Err_t) {
	p := proc.CurrentProc()
	if p == nil {
		return nil, defs.ESRCH
	}
	if n > len(p.Exe) {
		n = len(p.Exe)
	}
	return append([]uint8(nil), p.Exe[:n]...), 0
}

func (SelfExe_t) WriteBytes(b []uint8) (int, defs.Err_t) { return 0, defs.EROFS }

func (SelfExe_t) Stat(st *stat.Stat_t) defs.Err_t {
	st.Readable = true
	st.Writable = false
	st.Type = stat.T_LINK
	st.Name = "exe"
	if p := proc.CurrentProc(); p != nil {
		st.Wsize(uint(len(p.Exe)))
	}
	return 0
}

func (SelfExe_t) Rename(newpath string) defs.Err_t { return defs.EROFS }
func (SelfExe_t) Path() string                     { return "/self/exe" }
