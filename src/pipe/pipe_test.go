package pipe

import "defs"
import "fdops"
import "stat"
import "testing"

var _ fdops.Fdops_i = (*End_t)(nil)

/// sliceUio is a minimal fdops.Userio_i backed by a plain byte slice, used
/// only to exercise pipe's Read/Write without a real process address
/// space.
type sliceUio struct {
	b   []byte
	off int
}

func (u *sliceUio) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, u.b[u.off:])
	u.off += n
	return n, 0
}

func (u *sliceUio) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(u.b[u.off:], src)
	u.off += n
	return n, 0
}

func (u *sliceUio) Totalsz() int { return len(u.b) }
func (u *sliceUio) Remain() int  { return len(u.b) - u.off }

func TestWriteThenReadRoundTrip(t *testing.T) {
	r, w := MakePipe()
	src := &sliceUio{b: []byte("hello")}
	n, err := w.Write(src)
	if err != 0 || n != 5 {
		t.Fatalf("write: n=%d err=%d", n, err)
	}

	dst := &sliceUio{b: make([]byte, 5)}
	n, err = r.Read(dst)
	if err != 0 || n != 5 {
		t.Fatalf("read: n=%d err=%d", n, err)
	}
	if string(dst.b) != "hello" {
		t.Fatalf("got %q want %q", dst.b, "hello")
	}
}

func TestReadEmptyWithWriterOpenReturnsEagain(t *testing.T) {
	r, _ := MakePipe()
	dst := &sliceUio{b: make([]byte, 1)}
	n, err := r.Read(dst)
	if err != defs.EAGAIN || n != 0 {
		t.Fatalf("n=%d err=%d want EAGAIN", n, err)
	}
}

func TestReadEmptyAfterWriterCloseReturnsEOF(t *testing.T) {
	r, w := MakePipe()
	if w.Close() != 0 {
		t.Fatal("close failed")
	}
	dst := &sliceUio{b: make([]byte, 1)}
	n, err := r.Read(dst)
	if err != 0 || n != 0 {
		t.Fatalf("n=%d err=%d want EOF (0,0)", n, err)
	}
}

func TestWriteAfterReaderCloseReturnsEpipe(t *testing.T) {
	r, w := MakePipe()
	if r.Close() != 0 {
		t.Fatal("close failed")
	}
	src := &sliceUio{b: []byte("x")}
	n, err := w.Write(src)
	if err != defs.EPIPE || n != 0 {
		t.Fatalf("n=%d err=%d want EPIPE", n, err)
	}
}

func TestWriteBoundedByCapacity(t *testing.T) {
	r, w := MakePipe()
	big := make([]byte, Size+100)
	for i := range big {
		big[i] = 1
	}
	src := &sliceUio{b: big}
	n, err := w.Write(src)
	if err != 0 || n != Size {
		t.Fatalf("n=%d err=%d want %d", n, err, Size)
	}
	_ = r
}

func TestReopenKeepsEndAliveAcrossOneClose(t *testing.T) {
	r, w := MakePipe()
	if err := w.Reopen(); err != 0 {
		t.Fatal("reopen failed")
	}
	// one of the two write references closes; the other keeps the pipe
	// writable from the reader's perspective.
	w2 := &End_t{p: w.p}
	if w2.Close() != 0 {
		t.Fatal("close failed")
	}
	dst := &sliceUio{b: make([]byte, 1)}
	n, err := r.Read(dst)
	if err != defs.EAGAIN || n != 0 {
		t.Fatalf("n=%d err=%d want EAGAIN (one writer still open)", n, err)
	}
}

func TestStatReportsOccupancy(t *testing.T) {
	r, w := MakePipe()
	src := &sliceUio{b: []byte("abc")}
	if _, err := w.Write(src); err != 0 {
		t.Fatal("write failed")
	}
	var st stat.Stat_t
	if err := r.Stat(&st); err != 0 {
		t.Fatal("stat failed")
	}
	if st.Type != stat.T_FIFO {
		t.Fatal("expected FIFO type")
	}
	if !st.Readable || st.Writable {
		t.Fatal("read end should report readable, not writable")
	}
}
