// Package pipe implements the in-memory bounded FIFO of spec.md §4.10: a
// 4 KiB ring buffer shared by a read end and a write end, with weak
// end-references so one side closing never blocks on, or waits for, the
// other side's own lifetime. The ring buffer itself is circbuf.Circbuf_t,
// the same fixed-capacity byte ring the device filesystem's tty write path
// uses (src/circbuf) -- a pipe is that ring buffer with two Fdops_i faces
// bolted on and end-of-life accounting layered over it, not a distinct
// data structure, matching how little pipe.rs itself does (a VecDeque plus
// two Vec<Weak<PipeEnd>>) in original_source/src/fs/pipe.rs.
package pipe

import "sync"

import "circbuf"
import "defs"
import "fdops"
import "stat"

/// Size is the ring buffer's fixed capacity (spec.md §4.10).
const Size = 4096

/// pipe_t is the shared ring buffer plus live end-counts. Go has no Weak
/// pointer the way original_source's Vec<Weak<PipeEnd>> does; counting
/// live ends under the same lock that guards the buffer has the identical
/// externally observable effect (an end that Close()s itself can never be
/// mistaken for still being open) without needing a GC-aware weak
/// reference.
type pipe_t struct {
	sync.Mutex
	buf     circbuf.Circbuf_t
	readers int
	writers int
}

/// End_t is one end of a pipe -- a read end or a write end -- implementing
/// fdops.Fdops_i so it can sit directly in a process's descriptor table
/// (spec.md §3, §4.10).
type End_t struct {
	p        *pipe_t
	readable bool
	closed   bool
}

/// MakePipe creates a new pipe and its initial read/write end pair
/// (original_source's make_pipe).
func MakePipe() (*End_t, *End_t) {
	p := &pipe_t{readers: 1, writers: 1}
	p.buf.Cb_init(Size)
	return &End_t{p: p, readable: true}, &End_t{p: p, readable: false}
}

/// Reopen registers another live reference to this end's side (spec.md
/// §4.6 dup/fork semantics: the new descriptor shares the same underlying
/// file).
func (e *End_t) Reopen() defs.Err_t {
	e.p.Lock()
	defer e.p.Unlock()
	if e.readable {
		e.p.readers++
	} else {
		e.p.writers++
	}
	return 0
}

/// Close drops this end's reference; when the last reference on a side
/// goes away, the other side observes EOF (all writers gone) or EPIPE
/// (all readers gone) per spec.md §4.10.
func (e *End_t) Close() defs.Err_t {
	e.p.Lock()
	defer e.p.Unlock()
	e.closed = true
	if e.readable {
		e.p.readers--
	} else {
		e.p.writers--
	}
	return 0
}

func (e *End_t) allWriteClosed() bool { return e.p.writers == 0 }
func (e *End_t) allReadClosed() bool  { return e.p.readers == 0 }

/// Read removes up to the buffer's occupancy, limited by dst's capacity.
/// An empty buffer with no live writers reports EOF (0, nil); an empty
/// buffer with writers still open reports EAGAIN so the syscall dispatcher
/// can park the calling process and retry once data (or a writer close)
/// wakes it, matching the Getchar would-block convention the tty device
/// uses (fdops.CharDevice_i).
func (e *End_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	if !e.readable {
		return 0, defs.EINVAL
	}
	e.p.Lock()
	defer e.p.Unlock()
	if e.p.buf.Empty() {
		if e.allWriteClosed() {
			return 0, 0
		}
		return 0, defs.EAGAIN
	}
	return e.p.buf.Copyout(dst)
}

/// Write appends up to the buffer's available capacity. A pipe whose read
/// ends are all closed returns Broken Pipe without writing anything; the
/// syscall dispatcher promotes that into SIGPIPE for the calling process
/// (spec.md §4.10), the same boundary-level error-promotion spec.md §7
/// describes for FAT32's short-read/I/O-error case -- pipe itself never
/// imports proc to raise the signal directly, so the dependency stays
/// leaf-level (spec.md §5).
func (e *End_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	if e.readable {
		return 0, defs.EINVAL
	}
	e.p.Lock()
	defer e.p.Unlock()
	if e.allReadClosed() {
		return 0, defs.EPIPE
	}
	return e.p.buf.Copyin(src)
}

/// ReadBytes and WriteBytes adapt the byte-slice convenience API some
/// callers (syscall argument marshalling) use atop Fdops_i's user-buffer
/// methods; pipe has no user buffer abstraction of its own so both go
/// through a Fakeubuf-free path is unnecessary here -- pipe talks Userio_i
/// directly, so these report "not implemented this way" via EINVAL,
/// matching original_source's PipeEnd (no plain byte-slice read/write
/// exists there either, only read/write against a user buffer).
func (e *End_t) ReadBytes(n int) ([]uint8, defs.Err_t) {
	return nil, defs.EINVAL
}

func (e *End_t) WriteBytes(b []uint8) (int, defs.Err_t) {
	return 0, defs.EINVAL
}

/// Seek and Tell are unsupported: a pipe has no cursor (spec.md §4.10,
/// original_source's PipeEnd::seek/get_cursor both error unconditionally).
func (e *End_t) Seek(off int, whence fdops.Whence_t) (int, defs.Err_t) {
	return 0, defs.ESPIPE
}

func (e *End_t) Tell() int { return 0 }

/// Stat reports a FIFO's status; size is always reported as the pipe's
/// current occupancy.
func (e *End_t) Stat(st *stat.Stat_t) defs.Err_t {
	e.p.Lock()
	defer e.p.Unlock()
	st.Readable = e.readable
	st.Writable = !e.readable
	st.Type = stat.T_FIFO
	st.Wsize(uint(e.p.buf.Used()))
	return 0
}

/// Rename is unsupported: a pipe has no path (original_source's
/// PipeEnd::rename).
func (e *End_t) Rename(newpath string) defs.Err_t { return defs.EINVAL }

/// Path reports the empty string: a pipe has no path.
func (e *End_t) Path() string { return "" }
