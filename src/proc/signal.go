package proc

import "defs"
import "trap"

/// SetHandler installs disposition d for signal sig, and the handler VA
/// when d is SigHandler (spec.md §4.5, §7, §9's rt_sigaction).
func SetHandler(p *Pcb_t, sig int, d defs.SigDisposition, handlerVA uint64) {
	p.Lock()
	defer p.Unlock()
	p.sig.disp[sig] = d
	p.sig.handler[sig] = handlerVA
}

/// Disposition reports sig's current disposition and handler VA.
func Disposition(p *Pcb_t, sig int) (defs.SigDisposition, uint64) {
	p.Lock()
	defer p.Unlock()
	return p.sig.disp[sig], p.sig.handler[sig]
}

/// SetMask installs a new blocked-signal mask and returns the previous one
/// (spec.md §9's sigprocmask). SIGKILL and SIGSTOP can never be masked.
func SetMask(p *Pcb_t, mask uint32) uint32 {
	p.Lock()
	defer p.Unlock()
	old := p.sig.mask
	p.sig.mask = mask &^ (1<<uint(defs.SIGKILL) | 1<<uint(defs.SIGSTOP))
	return old
}

/// Raise records sig as pending for p, regardless of its current mask:
/// POSIX records a blocked signal's arrival and only defers delivery, it
/// does not discard the signal (spec.md §4.5, §9).
func Raise(p *Pcb_t, sig int) {
	p.Lock()
	defer p.Unlock()
	p.sig.pending |= 1 << uint(sig)
}

/// deliverable returns the lowest-numbered pending, unmasked signal, or
/// ok=false if none is ready to deliver.
func (s *sigState_t) deliverable() (sig int, ok bool) {
	set := s.pending &^ s.mask
	if set == 0 {
		return 0, false
	}
	for i := 0; i < defs.NSIG; i++ {
		if set&(1<<uint(i)) != 0 {
			return i, true
		}
	}
	return 0, false
}

/// DeliverOutcome classifies what DeliverPending did so the scheduler
/// knows whether to keep running p or tear it down (spec.md §4.5's signal
/// return-to-user step, §7's default actions).
type DeliverOutcome int

const (
	DeliverNone DeliverOutcome = iota
	DeliverEnteredHandler
	DeliverTerminated
)

/// DeliverPending checks p's pending set against its mask and
/// dispositions at the return-to-user boundary (spec.md §4.5): ignored
/// signals are dropped, default-action signals either terminate p
/// (recording ExitSignaled in its exit code) or are themselves ignored by
/// default, and handler signals rewrite the trap context via
/// trap.EnterHandler and stash the interrupted context for sigreturn.
func DeliverPending(p *Pcb_t) DeliverOutcome {
	p.Lock()
	defer p.Unlock()
	sig, ok := p.sig.deliverable()
	if !ok {
		return DeliverNone
	}
	p.sig.pending &^= 1 << uint(sig)

	switch p.sig.disp[sig] {
	case defs.SigIgnore:
		return DeliverNone
	case defs.SigHandler:
		saved := trap.EnterHandler(p.Tc, sig, p.sig.handler[sig])
		p.sig.savedCtx = &saved
		p.SyncTrapContext()
		return DeliverEnteredHandler
	default: // SigDefault
		switch defs.Default(sig) {
		case defs.ActIgn:
			return DeliverNone
		default: // ActTerm, ActCore
			p.Status = Zombie
			p.ExitCode = defs.ExitSignaled(sig)
			return DeliverTerminated
		}
	}
}

/// Sigreturn restores the context a signal handler interrupted, completing
/// the SYS_sigreturn syscall the sigreturn trampoline stub issues after a
/// handler's own return instruction (spec.md §4.5, §9).
func Sigreturn(p *Pcb_t) defs.Err_t {
	p.Lock()
	defer p.Unlock()
	if p.sig.savedCtx == nil {
		return defs.EINVAL
	}
	trap.Restore(p.Tc, *p.sig.savedCtx)
	p.sig.savedCtx = nil
	p.SyncTrapContext()
	return 0
}
