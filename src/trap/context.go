// Package trap models the user/kernel trap boundary (spec.md §4.5): the
// fixed-layout TrapContext frame the trampoline saves/restores registers
// into, the scause/stval decode that turns a trap into a dispatch
// decision, and the sigreturn side-trampoline used to deliver a signal to
// a user handler and later resume the interrupted context.
//
// This kernel runs hosted rather than on bare RISC-V hardware, so there is
// no literal trampoline assembly page to execute; TrapContext instead
// models exactly the data the real trampoline would save/restore
// (spec.md §4.5 steps 1-4), and proc.Scheduler drives the same dispatch
// decisions (UserEnvCall / fault signal delivery / timer yield) that a
// real `stvec` handler would make after the trampoline runs.
package trap

import "mem"

// Register indices into TrapContext.X, named the way the teacher would
// name RISC-V ABI registers (x0 is always zero and unused, kept for index
// alignment with the hardware register file).
const (
	RegRa = 1
	RegSp = 2
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA3 = 13
	RegA4 = 14
	RegA5 = 15
	RegA6 = 16
	RegA7 = 17
)

/// TrapContext is the fixed-layout frame the trampoline saves user state
/// into and restores it from, living in its own page at TrapContextVA
/// (spec.md §3, §4.5): 32 general registers, sstatus, sepc, the kernel
/// page-table token, the kernel stack top for this process, and the
/// address of the kernel trap entry.
type TrapContext struct {
	X           [32]uint64
	Sstatus     uint64
	Sepc        uint64
	KernelSatp  uint64
	KernelSp    uint64
	TrapHandler uint64
}

const trapContextWords = 37 /// 32 regs + sstatus + sepc + satp + sp + handler
const TrapContextBytes = trapContextWords * 8

/// Encode serializes the context into the byte slice backing the
/// TrapContext page (spec.md §3's "lives in a dedicated 4 KiB page").
func (tc *TrapContext) Encode(buf []byte) {
	put := func(off int, v uint64) {
		for b := 0; b < 8; b++ {
			buf[off+b] = byte(v >> (8 * b))
		}
	}
	for i, v := range tc.X {
		put(i*8, v)
	}
	put(32*8, tc.Sstatus)
	put(33*8, tc.Sepc)
	put(34*8, tc.KernelSatp)
	put(35*8, tc.KernelSp)
	put(36*8, tc.TrapHandler)
}

/// DecodeTrapContext reconstructs a TrapContext from its backing bytes.
func DecodeTrapContext(buf []byte) *TrapContext {
	get := func(off int) uint64 {
		var v uint64
		for b := 0; b < 8; b++ {
			v |= uint64(buf[off+b]) << (8 * b)
		}
		return v
	}
	tc := &TrapContext{}
	for i := range tc.X {
		tc.X[i] = get(i * 8)
	}
	tc.Sstatus = get(32 * 8)
	tc.Sepc = get(33 * 8)
	tc.KernelSatp = get(34 * 8)
	tc.KernelSp = get(35 * 8)
	tc.TrapHandler = get(36 * 8)
	return tc
}

/// AppInitContext builds the seed trap context for a freshly created or
/// exec'd process (spec.md §4.6 "Creation"/"Exec"): entry point, the top
/// of the user stack, the kernel's own satp and kernel-stack top for this
/// process, and the kernel trap entry address.
func AppInitContext(entry, userSP mem.VirtAddr, kernelSatp uint64, kernelSP mem.VirtAddr, trapHandler uint64) *TrapContext {
	tc := &TrapContext{
		Sepc:        uint64(entry),
		KernelSatp:  kernelSatp,
		KernelSp:    uint64(kernelSP),
		TrapHandler: trapHandler,
	}
	tc.X[RegSp] = uint64(userSP)
	// SPP=0 (user mode), SPIE=1 (interrupts were enabled before the trap)
	tc.Sstatus = 1 << 5
	return tc
}
