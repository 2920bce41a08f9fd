package procfs

import "defs"
import "testing"

import "proc"
import "ustr"

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

func TestOpenRoutesSelfExe(t *testing.T) {
	fs := New()
	if _, err := fs.Open("/self/exe", 0, 0); err != 0 {
		t.Fatalf("open /self/exe: err=%d", err)
	}
	if _, err := fs.Open("/nope", 0, 0); err != defs.ENOENT {
		t.Fatalf("expected ENOENT, got %d", err)
	}
}

func TestReadWithNoCurrentProcessReturnsEsrch(t *testing.T) {
	proc.ActiveScheduler = nil
	e := SelfExe_t{}
	dst := &sliceUio{b: make([]byte, 16)}
	if _, err := e.Read(dst); err != defs.ESRCH {
		t.Fatalf("expected ESRCH, got %d", err)
	}
	if _, err := e.ReadBytes(16); err != defs.ESRCH {
		t.Fatalf("expected ESRCH, got %d", err)
	}
}

func TestReadEchoesCurrentProcessExe(t *testing.T) {
	sched := proc.NewScheduler()
	proc.ActiveScheduler = sched
	defer func() { proc.ActiveScheduler = nil }()

	p := &proc.Pcb_t{Exe: ustr.Ustr("/bin/init")}
	sched.Enqueue(p)

	var got []byte
	sched.RunOne(func(running *proc.Pcb_t) proc.Result {
		e := SelfExe_t{}
		dst := &sliceUio{b: make([]byte, 32)}
		n, err := e.Read(dst)
		if err != 0 {
			t.Fatalf("read err=%d", err)
		}
		got = append([]byte(nil), dst.b[:n]...)
		return proc.Exited
	})

	if string(got) != "/bin/init" {
		t.Fatalf("got %q", got)
	}
}

func TestWriteIsRejectedReadOnly(t *testing.T) {
	e := SelfExe_t{}
	src := &sliceUio{b: []byte("x")}
	if _, err := e.Write(src); err != defs.EROFS {
		t.Fatalf("expected EROFS, got %d", err)
	}
	if _, err := e.WriteBytes([]byte("x")); err != defs.EROFS {
		t.Fatalf("expected EROFS, got %d", err)
	}
}

func TestSeekRejectedNoCursor(t *testing.T) {
	e := SelfExe_t{}
	if _, err := e.Seek(0, 0); err != defs.ESPIPE {
		t.Fatalf("expected ESPIPE, got %d", err)
	}
}
