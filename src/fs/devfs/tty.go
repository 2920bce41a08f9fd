package devfs

import "sync"

import "circbuf"
import "defs"
import "fdops"
import "sbi"
import "stat"

/// TTY_t is /tty0: reads pull one byte at a time through sbi.Current's
/// getchar, parking the calling process on no-input (spec.md §4.11);
/// writes buffer into a circbuf.Circbuf_t and flush to sbi.Current's
/// putchar, the shape original_source's SBITTY uses (a write_buffer
/// drained byte-by-byte by flush()) with the ring buffer swapped for the
/// teacher's own circbuf.Circbuf_t rather than a VecDeque.
type TTY_t struct {
	sync.Mutex
	wbuf circbuf.Circbuf_t
}

/// NewTTY allocates a tty device with a 4 KiB write buffer.
func NewTTY() *TTY_t {
	t := &TTY_t{}
	t.wbuf.Cb_init(4096)
	return t
}

func (t *TTY_t) Close() defs.Err_t  { return 0 }
func (t *TTY_t) Reopen() defs.Err_t { return 0 }

/// Seek/Tell: a tty has no cursor (spec.md §4.11 describes only sequential
/// byte-at-a-time read/write).
func (t *TTY_t) Seek(off int, whence fdops.Whence_t) (int, defs.Err_t) {
	return 0, defs.ESPIPE
}
func (t *TTY_t) Tell() int { return 0 }

/// Read pulls bytes one at a time from the firmware console until a
/// newline, dst fills up, or input runs out. Getting NoInput with nothing
/// read yet reports EAGAIN so the syscall dispatcher can park the calling
/// process and retry, matching fdops.CharDevice_i's would-block
/// convention and spec.md §4.11's "parks the process on no-input."
func (t *TTY_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	n := 0
	one := make([]byte, 1)
	for dst.Remain() > 0 {
		b := sbi.Current.Getchar()
		if b == sbi.NoInput {
			if n == 0 {
				return 0, defs.EAGAIN
			}
			break
		}
		one[0] = b
		w, err := dst.Uiowrite(one)
		if err != 0 {
			return n, err
		}
		n += w
		if b == '\n' {
			break
		}
	}
	return n, 0
}

/// Write buffers src into wbuf and flushes to the firmware console
/// putchar-by-putchar.
func (t *TTY_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	t.Lock()
	defer t.Unlock()
	n, err := t.wbuf.Copyin(src)
	if err != 0 {
		return n, err
	}
	t.flush()
	return n, 0
}

func (t *TTY_t) flush() {
	for {
		b, ok := t.wbuf.PopByte()
		if !ok {
			return
		}
		sbi.Current.Putchar(b)
	}
}

/// ReadBytes/WriteBytes are unsupported on this path; callers go through
/// Read/Write against a Userio_i, same as pipe.End_t.
func (t *TTY_t) ReadBytes(n int) ([]uint8, defs.Err_t) { return nil, defs.EINVAL }
func (t *TTY_t) WriteBytes(b []uint8) (int, defs.Err_t) { return 0, defs.EINVAL }

func (t *TTY_t) Stat(st *stat.Stat_t) defs.Err_t {
	st.Readable = true
	st.Writable = true
	st.Type = stat.T_CHARDEV
	st.Name = "tty0"
	return 0
}

func (t *TTY_t) Rename(newpath string) defs.Err_t { return defs.EINVAL }
func (t *TTY_t) Path() string                     { return "/tty0" }

/// Ioctl: no tty control operation is modeled (spec.md §9 leaves terminal
/// control out of scope).
func (t *TTY_t) Ioctl(cmd int, arg int) (int, defs.Err_t) { return 0, defs.ENOTTY }

/// Getchar/Putchar satisfy fdops.CharDevice_i directly against the
/// firmware boundary, bypassing the write buffer for Putchar's single-byte
/// case (used by e.g. a future kernel-internal diagnostic path).
func (t *TTY_t) Getchar() (uint8, bool, defs.Err_t) {
	b := sbi.Current.Getchar()
	if b == sbi.NoInput {
		return 0, false, 0
	}
	return b, true, 0
}

func (t *TTY_t) Putchar(b uint8) defs.Err_t {
	sbi.Current.Putchar(b)
	return 0
}
