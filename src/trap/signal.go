package trap

import "vm"

/// SigreturnVA is the fixed address of the tiny `sigreturn` stub every
/// address space maps alongside the trampoline (spec.md §4.5: "places the
/// address of a tiny user-space stub (sigreturn) in ra"). The stub itself
/// is a handful of instructions that execute the SYS_sigreturn ecall; it
/// lives on the same shared trampoline page as the trap entry/return code
/// since both are mapped read+execute at the same address in every
/// process.
const SigreturnVA = vm.Trampoline + 8

/// EnterHandler rewrites tc in place to begin executing a signal handler:
/// entry = handlerVA, a0 = the signal number, ra = SigreturnVA so the
/// handler's own return instruction drops into the sigreturn stub (spec.md
/// §4.5). It returns a copy of tc as it was before the rewrite, which the
/// caller (proc's signal dispatch) stores in the process's side slot so a
/// later SYS_sigreturn can restore it.
func EnterHandler(tc *TrapContext, sig int, handlerVA uint64) TrapContext {
	saved := *tc
	tc.Sepc = handlerVA
	tc.X[RegA0] = uint64(sig)
	tc.X[RegRa] = uint64(SigreturnVA)
	return saved
}

/// Restore overwrites tc with the contents of a previously saved context,
/// completing the sigreturn syscall's job of resuming exactly where the
/// signal interrupted the process (spec.md §4.5).
func Restore(tc *TrapContext, saved TrapContext) {
	*tc = saved
}
