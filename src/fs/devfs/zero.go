package devfs

import "defs"
import "fdops"
import "stat"

/// Zero_t is /zero: an infinite stream of zero bytes on read, discarding
/// whatever it's written (spec.md §4.11), grounded on original_source's
/// FZero.
type Zero_t struct{}

func (Zero_t) Close() defs.Err_t  { return 0 }
func (Zero_t) Reopen() defs.Err_t { return 0 }

func (Zero_t) Seek(off int, whence fdops.Whence_t) (int, defs.Err_t) { return 0, 0 }
func (Zero_t) Tell() int                                             { return 0 }

func (Zero_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	zeros := make([]byte, dst.Remain())
	return dst.Uiowrite(zeros)
}

func (Zero_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	sink := make([]byte, src.Remain())
	return src.Uioread(sink)
}

func (Zero_t) ReadBytes(n int) ([]uint8, defs.Err_t)  { return make([]uint8, n), 0 }
func (Zero_t) WriteBytes(b []uint8) (int, defs.Err_t) { return len(b), 0 }

func (Zero_t) Stat(st *stat.Stat_t) defs.Err_t {
	st.Readable = true
	st.Writable = true
	st.Type = stat.T_CHARDEV
	st.Name = "zero"
	return 0
}

func (Zero_t) Rename(newpath string) defs.Err_t { return defs.EINVAL }
func (Zero_t) Path() string                     { return "/zero" }
