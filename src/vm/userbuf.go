package vm

import (
	"defs"
	"mem"
)

// translatedByteBuffers splits [va, va+length) into the page-sized chunks
// backing it and returns a byte slice view of each chunk, following the
// teacher's Userdmap8_inner one-page-at-a-time translation idiom but
// against the SV39 PageTable instead of an x86 dmap.
func translatedByteBuffers(pt *PageTable, va mem.VirtAddr, length int) ([][]byte, defs.Err_t) {
	var bufs [][]byte
	end := va + mem.VirtAddr(length)
	for va < end {
		pte, ok := pt.Translate(va.Vpn())
		if !ok {
			return nil, -defs.EFAULT
		}
		pageBytes := mem.Physmem.Bytes(pte.Ppn())
		off := va.Offset()
		pageEnd := mem.VirtAddr(va.Vpn().Addr()) + mem.PGSIZE
		var n mem.VirtAddr
		if end < pageEnd {
			n = end - va
		} else {
			n = pageEnd - va
		}
		bufs = append(bufs, pageBytes[off:uint64(off)+uint64(n)])
		va += n
	}
	return bufs, 0
}

/// UserBuffer is a scatter/gather view of a single contiguous user virtual
/// range, translated one page at a time against a specific PageTable
/// (spec.md §4.3's "UserBuffer" for syscall argument copying). It
/// implements fdops.Userio_i so read/write syscalls can pass it directly
/// to a File's Read/Write.
type UserBuffer struct {
	pt       *PageTable
	va       mem.VirtAddr
	len      int
	off      int
	chunks   [][]byte
	resolved bool
}

/// NewUserBuffer creates a buffer over [va, va+length) in the address
/// space described by pt.
func NewUserBuffer(pt *PageTable, va mem.VirtAddr, length int) *UserBuffer {
	return &UserBuffer{pt: pt, va: va, len: length}
}

func (ub *UserBuffer) resolve() defs.Err_t {
	if ub.resolved {
		return 0
	}
	chunks, err := translatedByteBuffers(ub.pt, ub.va, ub.len)
	if err != 0 {
		return err
	}
	ub.chunks = chunks
	ub.resolved = true
	return 0
}

/// Remain returns the number of bytes not yet transferred.
func (ub *UserBuffer) Remain() int { return ub.len - ub.off }

/// Totalsz returns the buffer's total length.
func (ub *UserBuffer) Totalsz() int { return ub.len }

func (ub *UserBuffer) tx(buf []byte, write bool) (int, defs.Err_t) {
	if err := ub.resolve(); err != 0 {
		return 0, err
	}
	moved := 0
	skip := ub.off
	for _, chunk := range ub.chunks {
		if len(buf) == 0 {
			break
		}
		if skip >= len(chunk) {
			skip -= len(chunk)
			continue
		}
		chunk = chunk[skip:]
		skip = 0
		var c int
		if write {
			c = copy(chunk, buf)
		} else {
			c = copy(buf, chunk)
		}
		buf = buf[c:]
		moved += c
		ub.off += c
	}
	return moved, 0
}

/// Uioread copies from the user buffer into dst (a write(2) syscall copying
/// out of user space into a kernel-held File).
func (ub *UserBuffer) Uioread(dst []uint8) (int, defs.Err_t) { return ub.tx(dst, false) }

/// Uiowrite copies src into the user buffer (a read(2) syscall's File
/// handing data back to user space).
func (ub *UserBuffer) Uiowrite(src []uint8) (int, defs.Err_t) { return ub.tx(src, true) }

/// ReadCString copies a NUL-terminated string from user space, up to
/// maxlen bytes, returning ENAMETOOLONG if no terminator is found in time
/// (spec.md §4.3, used for path arguments).
func ReadCString(pt *PageTable, va mem.VirtAddr, maxlen int) (string, defs.Err_t) {
	var out []byte
	for len(out) < maxlen {
		chunks, err := translatedByteBuffers(pt, va, 1)
		if err != 0 {
			return "", err
		}
		b := chunks[0][0]
		if b == 0 {
			return string(out), 0
		}
		out = append(out, b)
		va++
	}
	return "", -defs.ENAMETOOLONG
}

/// Fakeubuf_t adapts a plain kernel byte slice to the same Userio_i
/// interface UserBuffer implements, so kernel-internal code (e.g. reading
/// a FAT directory entry into a stack buffer) can share Read/Write paths
/// with true user-space copies. Kept from the teacher's userbuf.go
/// verbatim in spirit.
type Fakeubuf_t struct {
	fbuf []uint8
	len  int
}

/// Fake_init sets up the fake buffer with the provided slice.
func (fb *Fakeubuf_t) Fake_init(buf []uint8) {
	fb.fbuf = buf
	fb.len = len(fb.fbuf)
}

/// Remain returns the number of bytes left in the fake buffer.
func (fb *Fakeubuf_t) Remain() int { return len(fb.fbuf) }

/// Totalsz returns the total length of the fake buffer.
func (fb *Fakeubuf_t) Totalsz() int { return fb.len }

func (fb *Fakeubuf_t) _tx(buf []uint8, tofbuf bool) (int, defs.Err_t) {
	var c int
	if tofbuf {
		c = copy(fb.fbuf, buf)
	} else {
		c = copy(buf, fb.fbuf)
	}
	fb.fbuf = fb.fbuf[c:]
	return c, 0
}

/// Uioread copies from the fake buffer into dst.
func (fb *Fakeubuf_t) Uioread(dst []uint8) (int, defs.Err_t) { return fb._tx(dst, false) }

/// Uiowrite copies src into the fake buffer.
func (fb *Fakeubuf_t) Uiowrite(src []uint8) (int, defs.Err_t) { return fb._tx(src, true) }
