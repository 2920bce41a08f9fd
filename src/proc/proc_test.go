package proc

import "testing"

import "accnt"
import "defs"
import "fd"
import "mem"
import "trap"
import "ustr"
import "vm"

func setupPhysmem(t *testing.T, npages int) {
	t.Helper()
	mem.Physmem = &mem.Physmem_t{}
	mem.Physmem.Init(npages)
}

// newTestProc builds a minimal PCB without going through an ELF image, so
// tests can exercise PCB/scheduler/signal logic without hand-assembling an
// ELF64 binary.
func newTestProc(t *testing.T) *Pcb_t {
	t.Helper()
	ms := vm.NewUserMemSet(0)
	ms.InsertFramedArea(0x1000, 0x1000+mem.PGSIZE, vm.PermR|vm.PermW|vm.PermU)
	p := &Pcb_t{
		Pid:    pidAllocatorAlloc(),
		Kstack: newKstack(),
		Status: New,
		Ms:     ms,
		Fds:    fd.MkTable(),
		Exe:    ustr.MkUstrSlice([]byte("/init")),
	}
	p.Tc = trap.AppInitContext(0x1000, 0x2000, 0, mem.VirtAddr(p.KernelSp()), uint64(vm.Trampoline))
	p.SyncTrapContext()
	return p
}

func TestForkChildHasIndependentMemory(t *testing.T) {
	setupPhysmem(t, 64)
	parent := newTestProc(t)
	pte, _ := parent.Ms.PageTable().Translate(mem.VirtAddr(0x1000).Vpn())
	mem.Physmem.Bytes(pte.Ppn())[0] = 0x42

	child := Fork(parent)
	if child.Pid == parent.Pid {
		t.Fatal("child must have a distinct pid")
	}
	if len(parent.Children) != 1 || parent.Children[0] != child {
		t.Fatal("fork must register the child on the parent")
	}
	cpte, _ := child.Ms.PageTable().Translate(mem.VirtAddr(0x1000).Vpn())
	if cpte.Ppn() == pte.Ppn() {
		t.Fatal("fork must not alias parent and child frames")
	}
	if mem.Physmem.Bytes(cpte.Ppn())[0] != 0x42 {
		t.Fatal("fork must copy existing contents")
	}
	if parent.Tc.X[trap.RegA0] != uint64(child.Pid) {
		t.Fatalf("parent's fork return value wrong: got %d want %d", parent.Tc.X[trap.RegA0], child.Pid)
	}
	if child.Tc.X[trap.RegA0] != 0 {
		t.Fatalf("child's fork return value must be 0, got %d", child.Tc.X[trap.RegA0])
	}
}

func TestExitReparentsChildrenToInit(t *testing.T) {
	setupPhysmem(t, 64)
	initp := newTestProc(t)
	SetInit(initp)
	defer SetInit(nil)

	parent := newTestProc(t)
	child := newTestProc(t)
	parent.Children = append(parent.Children, child)
	child.Parent = parent

	Exit(parent, 0)

	if parent.Status != Zombie {
		t.Fatal("exited process must become Zombie")
	}
	if child.Parent != initp {
		t.Fatal("orphaned child must be reparented to init")
	}
	found := false
	for _, c := range initp.Children {
		if c == child {
			found = true
		}
	}
	if !found {
		t.Fatal("init must inherit the orphaned child")
	}
}

func TestWaitReapsMatchingZombieChild(t *testing.T) {
	setupPhysmem(t, 64)
	parent := newTestProc(t)
	child := newTestProc(t)
	child.Parent = parent
	parent.Children = append(parent.Children, child)

	Exit(child, 7)

	pid, code, found := Wait(parent, -1)
	if !found {
		t.Fatal("expected to reap the zombie child")
	}
	if pid != child.Pid || code != 7 {
		t.Fatalf("got pid=%d code=%d, want pid=%d code=7", pid, code, child.Pid)
	}
	if HasChildren(parent) {
		t.Fatal("reaped child must be removed from Children")
	}
}

func TestWaitReturnsNotFoundWithoutZombie(t *testing.T) {
	setupPhysmem(t, 64)
	parent := newTestProc(t)
	child := newTestProc(t)
	child.Parent = parent
	parent.Children = append(parent.Children, child)

	_, _, found := Wait(parent, -1)
	if found {
		t.Fatal("must not reap a still-running child")
	}
}

func TestSignalHandlerRewritesTrapContext(t *testing.T) {
	setupPhysmem(t, 64)
	p := newTestProc(t)
	const handlerVA = 0x3000
	SetHandler(p, defs.SIGUSR1, defs.SigHandler, handlerVA)
	Raise(p, defs.SIGUSR1)

	outcome := DeliverPending(p)
	if outcome != DeliverEnteredHandler {
		t.Fatalf("expected DeliverEnteredHandler, got %d", outcome)
	}
	if p.Tc.Sepc != handlerVA {
		t.Fatalf("sepc not rewritten to handler: got %x", p.Tc.Sepc)
	}
	if p.Tc.X[trap.RegA0] != defs.SIGUSR1 {
		t.Fatal("a0 must carry the signal number into the handler")
	}
	if p.Tc.X[trap.RegRa] != uint64(trap.SigreturnVA) {
		t.Fatal("ra must point at the sigreturn stub")
	}

	if err := Sigreturn(p); err != 0 {
		t.Fatalf("sigreturn failed: %d", err)
	}
	if p.Tc.Sepc == handlerVA {
		t.Fatal("sigreturn must restore the interrupted context")
	}
}

func TestSignalDefaultActionTerminates(t *testing.T) {
	setupPhysmem(t, 64)
	p := newTestProc(t)
	Raise(p, defs.SIGSEGV)

	outcome := DeliverPending(p)
	if outcome != DeliverTerminated {
		t.Fatal("SIGSEGV with default disposition must terminate")
	}
	if p.Status != Zombie {
		t.Fatal("terminated process must become Zombie")
	}
	if p.ExitCode != defs.ExitSignaled(defs.SIGSEGV) {
		t.Fatalf("exit code must encode the signal, got %d", p.ExitCode)
	}
}

func TestSignalIgnoredByDefaultDropsQuietly(t *testing.T) {
	setupPhysmem(t, 64)
	p := newTestProc(t)
	Raise(p, defs.SIGCHLD)

	if DeliverPending(p) != DeliverNone {
		t.Fatal("SIGCHLD's default action is to be ignored")
	}
	if p.Status == Zombie {
		t.Fatal("an ignored signal must not terminate the process")
	}
}

func TestSchedulerRequeuesOnYield(t *testing.T) {
	setupPhysmem(t, 64)
	sched := NewScheduler()
	p := newTestProc(t)
	sched.Enqueue(p)

	ran := sched.RunOne(func(pcb *Pcb_t) Result {
		if pcb != p {
			t.Fatal("dispatched the wrong process")
		}
		return Yielded
	})
	if !ran {
		t.Fatal("expected a process to run")
	}
	if p.Status != Ready {
		t.Fatal("a yielded process must go back to Ready")
	}
	if !sched.RunOne(func(pcb *Pcb_t) Result { return Exited }) {
		t.Fatal("requeued process must run again")
	}
}

func TestSchedulerEmptyQueueReturnsFalse(t *testing.T) {
	sched := NewScheduler()
	if sched.RunOne(func(pcb *Pcb_t) Result { return Yielded }) {
		t.Fatal("expected no process to run on an empty queue")
	}
}

func TestItimerExpiryRaisesSigalrm(t *testing.T) {
	setupPhysmem(t, 64)
	sched := NewScheduler()
	p := newTestProc(t)
	p.Itimers.Set(accnt.ITIMER_REAL, accnt.Itimerval_t{Value: 1})
	sched.Enqueue(p)

	sched.RunOne(func(pcb *Pcb_t) Result {
		if DeliverPending(pcb) != DeliverTerminated {
			t.Fatal("expected the expired REAL itimer's SIGALRM to terminate (default disposition)")
		}
		return Exited
	})
	if p.Status != Zombie {
		t.Fatal("process must be Zombie after an unhandled SIGALRM")
	}
}
