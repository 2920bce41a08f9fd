// Package sbi defines the kernel's boundary onto the platform firmware
// (spec.md §6 "SBI boundary"): putchar, getchar, set_timer, shutdown, and
// vendor-id. The firmware itself -- an SBI implementation on real RISC-V
// hardware, OpenSBI under QEMU, or (as here) a hosted stand-in -- is an
// external collaborator the core only calls through this interface; no
// component in this tree implements the `ecall`-based SBI wire protocol
// itself, the same way spec.md treats "the SBI console driver" as out of
// scope and specifies only the interface the core consumes.
package sbi

/// NoInput is the sentinel Getchar returns when no byte is waiting,
/// matching the platform firmware's own convention (spec.md §6).
const NoInput byte = 0xFF

/// Provider is everything the kernel core calls out to the firmware for.
/// A bare-metal port would implement this with `ecall` trampolines into
/// OpenSBI; this tree's Console and Mock implementations stand in for
/// that boundary in a hosted process.
type Provider interface {
	/// Putchar writes one byte to the platform console.
	Putchar(ch byte)
	/// Getchar returns the next console input byte, or NoInput if none is
	/// waiting -- the core polls this rather than blocking, parking the
	/// reading process itself when it gets NoInput (spec.md §4.11).
	Getchar() byte
	/// SetTimer arms the next timer interrupt for wall-clock target
	/// (platform-defined time units; spec.md §6, §9).
	SetTimer(target uint64)
	/// Shutdown powers off the platform; it does not return.
	Shutdown()
	/// VendorID reports the firmware's JEDEC vendor id (mcause.mvendorid
	/// passthrough on real hardware).
	VendorID() uint64
}

/// Current is the firmware boundary kernel boot wiring installs (spec.md
/// §6); every subsystem that needs SBI services (the tty device, and
/// boot's final Shutdown) reads it here rather than taking a Provider
/// parameter through every call, mirroring how the teacher reaches a
/// single package-level singleton for stats/Physmem rather than
/// threading them as parameters.
var Current Provider = &Mock{}
