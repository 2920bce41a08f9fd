package proc

import "sync"
import "unsafe"

import "accnt"
import "defs"
import "fd"
import "mem"
import "trap"
import "ustr"
import "vm"

/// KstackBytes is the size of the simulated per-process kernel stack
/// (spec.md §3's "dedicated kernel stack"). This kernel hosts kernel code
/// as ordinary Go function calls rather than executing on a stack it
/// switches to by hand, so the buffer backs KernelSp's bookkeeping value
/// rather than anything the scheduler actually switches onto.
const KstackBytes = 16 * 1024

/// Status_t is a process's scheduling state (spec.md §4.6).
type Status_t int

const (
	New Status_t = iota
	Ready
	Running
	Zombie
)

func (s Status_t) String() string {
	switch s {
	case New:
		return "new"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Zombie:
		return "zombie"
	default:
		return "?"
	}
}

/// sigState_t holds one process's signal mask, pending set, and per-signal
/// dispositions (spec.md §4.5, §7, §9).
type sigState_t struct {
	mask     uint32
	pending  uint32
	disp     [defs.NSIG]defs.SigDisposition
	handler  [defs.NSIG]uint64 /// user VA, valid when disp[i] == SigHandler
	savedCtx *trap.TrapContext /// interrupted context, set while a handler runs
}

/// Pcb_t is the process control block (spec.md §3): Pid and Kstack are
/// fixed at creation, everything else lives behind the embedded mutex so
/// the scheduler, syscall handlers, and a signal-raising itimer tick can
/// all touch it safely.
type Pcb_t struct {
	Pid    Pid_t
	Kstack []byte

	sync.Mutex
	Status    Status_t
	Ms        *vm.MemSet
	Tc        *trap.TrapContext
	Size      mem.VirtAddr /// current break (highest mapped heap VA)
	Accnt     accnt.Accnt_t
	Itimers   accnt.Itimers_t
	UpSince   int64 /// wall-clock ns this run started
	LastStart int64 /// user-time ns counter at last scheduler entry

	// itimer bookkeeping, see Scheduler_t.RunOne
	lastTickReal, lastTickUser, lastTickSys int64

	Parent   *Pcb_t
	Children []*Pcb_t
	ExitCode int
	Fds      *fd.Table_t
	Cwd      *fd.Cwd_t
	Exe      ustr.Ustr
	sig      sigState_t
}

/// KernelSp returns the top of this process's kernel stack, expressed as
/// the host address of its last byte: hosted Go code has no separate
/// kernel virtual address space to place the stack in, so the real
/// backing buffer's address stands in for what a bare-metal port would
/// compute from a fixed per-pid kernel VA (spec.md §3, §4.4).
func (p *Pcb_t) KernelSp() uint64 {
	if len(p.Kstack) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&p.Kstack[len(p.Kstack)-1])))
}

/// TrapContext returns the live trap context p.Tc. It does not touch the
/// backing TrapContext page (spec.md §4.4/§4.5); SyncTrapContext copies
/// Tc into that page.
func (p *Pcb_t) TrapContext() *trap.TrapContext {
	return p.Tc
}

/// SyncTrapContext serializes Tc into the address space's TrapContext
/// page.
func (p *Pcb_t) SyncTrapContext() {
	p.Tc.Encode(p.Ms.TrapContextBytes())
}
