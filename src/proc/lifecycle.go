package proc

import "accnt"
import "defs"
import "fd"
import "mem"
import "trap"
import "ustr"
import "vm"

/// TrampolinePPN is the single physical frame holding the trap-entry
/// assembly, installed once by kernel boot wiring and shared read+execute
/// by every address space (spec.md §4.4). Every MemSet-creating call in
/// this package reads it, so boot must set it before spawning anything.
var TrampolinePPN mem.PhysPageNum

var initProc *Pcb_t

/// SetInit designates p as process 1, the reparenting target every
/// orphaned child is handed to on its parent's exit (spec.md §4.6 "Exit").
func SetInit(p *Pcb_t) { initProc = p }

func newKstack() []byte {
	return make([]byte, KstackBytes)
}

/// NewProcess builds the first PCB for a freshly loaded ELF image: a new
/// pid, kernel stack, address space, and seeded trap context ready to
/// enter user mode at the image's entry point (spec.md §4.6 "Creation").
func NewProcess(elfData []byte, exe ustr.Ustr, cwd *fd.Cwd_t) (*Pcb_t, defs.Err_t) {
	ms, userSP, entry, err := vm.FromElf(elfData, TrampolinePPN)
	if err != nil {
		return nil, defs.ENOEXEC
	}
	p := &Pcb_t{
		Pid:    pidAllocatorAlloc(),
		Kstack: newKstack(),
		Status: New,
		Ms:     ms,
		Fds:    fd.MkTable(),
		Cwd:    cwd,
		Exe:    exe,
	}
	p.Tc = trap.AppInitContext(entry, userSP, 0, mem.VirtAddr(p.KernelSp()), trapHandlerVA(ms))
	p.SyncTrapContext()
	return p, 0
}

/// trapHandlerVA is the fixed VA the trampoline jumps to on a trap; every
/// address space maps the same trampoline frame so this is a constant
/// offset within it (spec.md §4.4/§4.5).
func trapHandlerVA(ms *vm.MemSet) uint64 {
	return uint64(vm.Trampoline)
}

/// Fork duplicates parent into a new PCB with an independent address space
/// (copy-then-diverge, spec.md §4.6 "Fork"): new pid and kernel stack, a
/// cloned MemSet, a trap context identical to the parent's except for the
/// child's own kernel bookkeeping and a zero return value in a0, a shared
/// (refcounted-by-reference) file descriptor table, and a registration in
/// the parent's Children.
func Fork(parent *Pcb_t) *Pcb_t {
	parent.Lock()
	childMs := parent.Ms.Fork(TrampolinePPN)
	parentTc := *parent.Tc
	childFds := parent.Fds.ForkCopy()
	childSize := parent.Size
	childCwd := parent.Cwd
	childExe := parent.Exe
	parent.Unlock()

	child := &Pcb_t{
		Pid:    pidAllocatorAlloc(),
		Kstack: newKstack(),
		Status: Ready,
		Ms:     childMs,
		Fds:    childFds,
		Cwd:    childCwd,
		Exe:    childExe,
		Size:   childSize,
		Parent: parent,
	}
	childTc := parentTc
	childTc.KernelSatp = 0
	childTc.KernelSp = child.KernelSp()
	childTc.SetReturn(0)
	child.Tc = &childTc
	child.SyncTrapContext()

	parent.Lock()
	parent.Children = append(parent.Children, child)
	parent.Tc.SetReturn(int64(child.Pid))
	parent.SyncTrapContext()
	parent.Unlock()

	return child
}

/// Exec replaces p's address space in place with a new ELF image,
/// discarding the old one and reseeding the trap context at the new
/// entry point (spec.md §4.6 "Exec"). The pid, kernel stack, parent link,
/// and (unless marked close-on-exec) open file descriptors survive.
func Exec(p *Pcb_t, elfData []byte, exe ustr.Ustr) defs.Err_t {
	ms, userSP, entry, err := vm.FromElf(elfData, TrampolinePPN)
	if err != nil {
		return defs.ENOEXEC
	}
	p.Lock()
	defer p.Unlock()
	p.Ms.Teardown()
	p.Ms = ms
	p.Exe = exe
	p.Size = 0
	p.Fds.CloseOnExec()
	p.Tc = trap.AppInitContext(entry, userSP, 0, mem.VirtAddr(p.KernelSp()), trapHandlerVA(ms))
	p.SyncTrapContext()
	return 0
}

/// Sbrk grows or shrinks the break by delta bytes, mapping/unmapping
/// whole pages as Size crosses page boundaries, and returns the break's
/// previous value (spec.md §4.6 "sbrk").
func Sbrk(p *Pcb_t, delta int) (old mem.VirtAddr, errn defs.Err_t) {
	p.Lock()
	defer p.Unlock()
	old = p.Size
	if delta == 0 {
		return old, 0
	}
	nsz := mem.VirtAddr(int64(p.Size) + int64(delta))
	if delta > 0 {
		start := mem.VirtAddr(roundUp(uint64(p.Size)))
		end := mem.VirtAddr(roundUp(uint64(nsz)))
		if end > start {
			p.Ms.InsertFramedArea(start, end, vm.PermR|vm.PermW|vm.PermU)
		}
	}
	p.Size = nsz
	return old, 0
}

func roundUp(v uint64) uint64 {
	if r := v % uint64(mem.PGSIZE); r != 0 {
		v += uint64(mem.PGSIZE) - r
	}
	return v
}

/// Exit tears down p's address space, reparents its children to the init
/// process, adds its accounting into its parent's own Accnt totals,
/// and marks it Zombie so a subsequent Wait can reap it (spec.md §4.6
/// "Exit").
func Exit(p *Pcb_t, code int) {
	p.Lock()
	p.Status = Zombie
	p.ExitCode = code
	children := p.Children
	p.Children = nil
	p.Ms.Teardown()
	parent := p.Parent
	userns, sysns := p.Accnt.Userns, p.Accnt.Sysns
	p.Unlock()

	if initProc != nil {
		initProc.Lock()
		for _, c := range children {
			c.Lock()
			c.Parent = initProc
			c.Unlock()
		}
		initProc.Children = append(initProc.Children, children...)
		initProc.Unlock()
	}

	if parent != nil {
		dead := &accnt.Accnt_t{Userns: userns, Sysns: sysns}
		parent.Accnt.Add(dead)
	}
}

/// Wait looks for a Zombie child matching pid (-1 matches any), reaps and
/// returns it, or reports none found yet so the caller can decide whether
/// to block and retry (spec.md §4.6 "Wait"). It never blocks itself: this
/// kernel has no thread to park on, so the scheduler's caller does the
/// polling/yielding.
func Wait(parent *Pcb_t, pid Pid_t) (reaped Pid_t, exitCode int, found bool) {
	parent.Lock()
	defer parent.Unlock()
	for i, c := range parent.Children {
		if pid != -1 && c.Pid != pid {
			continue
		}
		c.Lock()
		zombie := c.Status == Zombie
		var ec int
		if zombie {
			ec = c.ExitCode
		}
		c.Unlock()
		if !zombie {
			continue
		}
		parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
		pidFree(c.Pid)
		return c.Pid, ec, true
	}
	return 0, 0, false
}

/// HasChildren reports whether parent still has any live or unreaped
/// child, the condition Wait(-1) needs to decide ECHILD vs "block".
func HasChildren(parent *Pcb_t) bool {
	parent.Lock()
	defer parent.Unlock()
	return len(parent.Children) > 0
}
