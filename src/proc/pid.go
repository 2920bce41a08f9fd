// Package proc implements the process control block, the fork/exec/wait
// life cycle, and the single-hart scheduler (spec.md §3, §4.6). There is
// no hardware register file to save across a real context switch here:
// this kernel hosts user code as a Go function the scheduler calls
// directly, so "switching" a process means the scheduler's run loop
// invoking that process's turn and getting a Result back, not an
// assembly __switch of callee-saved registers. Everything else the
// spec's PCB and scheduler sections describe -- status transitions,
// accounting, itimer expirations, signal delivery, parent/child
// bookkeeping -- is modeled exactly.
package proc

import "sync"

/// Pid_t identifies a process.
type Pid_t int

type pidAllocator_t struct {
	sync.Mutex
	next Pid_t
	free []Pid_t
}

var pidAlloc = &pidAllocator_t{next: 1}

/// pidAllocatorAlloc returns an unused pid, reusing one from a reaped
/// process before minting a new one, matching the low-pid-reuse behavior
/// test suites for Unix-like kernels commonly assume.
func pidAllocatorAlloc() Pid_t {
	pidAlloc.Lock()
	defer pidAlloc.Unlock()
	if n := len(pidAlloc.free); n > 0 {
		p := pidAlloc.free[n-1]
		pidAlloc.free = pidAlloc.free[:n-1]
		return p
	}
	p := pidAlloc.next
	pidAlloc.next++
	return p
}

/// pidFree returns pid to the free list once its PCB has been reaped by
/// Wait, per spec.md §4.6 "Wait... the reaper frees the pid".
func pidFree(pid Pid_t) {
	pidAlloc.Lock()
	defer pidAlloc.Unlock()
	pidAlloc.free = append(pidAlloc.free, pid)
}
