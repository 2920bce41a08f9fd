package mem

import (
	"fmt"
	"sync"
	"unsafe"
)

// Heap_t is the kernel heap: a single fixed-size byte arena (spec.md §4.2
// requires "a fixed-size static byte array of at least 2MiB") bound to a
// general-purpose allocator. It serves variable-sized allocations that the
// page-granular frame allocator in mem.go cannot: FAT32 directory buffers,
// path strings, block-cache bookkeeping.
//
// Go's own runtime heap already backs every ordinary slice/map/struct
// allocation in this kernel, so Heap_t is not a replacement for that; it
// models the bounded, non-growable arena spec.md §4.2 describes and gives
// code that wants to respect that bound (rather than Go's unbounded GC
// heap) somewhere to draw from, with the same "abort with diagnostic on
// exhaustion" failure mode (spec.md §4.2, §7).
type Heap_t struct {
	sync.Mutex
	arena []byte
	free  []freeRun // sorted by offset, no two entries touch
}

type freeRun struct {
	off, size int
}

const heapAlign = 8

// MinHeapBytes is the smallest arena Init will accept (spec.md §4.2: "at
// least 2MiB").
const MinHeapBytes = 2 << 20

/// Init reserves an arena of nbytes and marks it entirely free. Panics if
/// nbytes is below MinHeapBytes.
func (h *Heap_t) Init(nbytes int) {
	if nbytes < MinHeapBytes {
		panic(fmt.Sprintf("mem: kernel heap of %d bytes below %d byte minimum", nbytes, MinHeapBytes))
	}
	h.Lock()
	defer h.Unlock()
	h.arena = make([]byte, nbytes)
	h.free = []freeRun{{0, nbytes}}
}

func roundup(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

/// Alloc returns an nbytes slice carved out of the arena using first-fit,
/// or ok=false if no run is large enough (spec.md §4.2's OOM case — the
/// caller is expected to treat this as fatal, per caller.Fatal).
func (h *Heap_t) Alloc(nbytes int) (buf []byte, ok bool) {
	if nbytes <= 0 {
		panic("mem: zero-length heap allocation")
	}
	n := roundup(nbytes, heapAlign)
	h.Lock()
	defer h.Unlock()
	for i, run := range h.free {
		if run.size < n {
			continue
		}
		buf = h.arena[run.off : run.off+nbytes]
		if run.size == n {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			h.free[i] = freeRun{run.off + n, run.size - n}
		}
		return buf, true
	}
	return nil, false
}

/// MustAlloc is Alloc but aborts the kernel with a diagnostic on
/// exhaustion, matching spec.md §4.2's fatal OOM policy for the heap.
func (h *Heap_t) MustAlloc(nbytes int) []byte {
	buf, ok := h.Alloc(nbytes)
	if !ok {
		panic(fmt.Sprintf("mem: kernel heap exhausted requesting %d bytes (%d free)", nbytes, h.Freebytes()))
	}
	return buf
}

/// Free returns a previously-allocated run to the free list, coalescing
/// with adjacent runs. buf must be exactly the slice Alloc returned.
func (h *Heap_t) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	off := h.offsetOf(buf)
	n := roundup(len(buf), heapAlign)
	h.Lock()
	defer h.Unlock()
	nr := freeRun{off, n}
	i := 0
	for ; i < len(h.free); i++ {
		if h.free[i].off > off {
			break
		}
	}
	h.free = append(h.free, freeRun{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = nr
	h.coalesceLocked()
}

func (h *Heap_t) coalesceLocked() {
	out := h.free[:0]
	for _, r := range h.free {
		if n := len(out); n > 0 && out[n-1].off+out[n-1].size == r.off {
			out[n-1].size += r.size
			continue
		}
		out = append(out, r)
	}
	h.free = out
}

func (h *Heap_t) offsetOf(buf []byte) int {
	base := uintptr(unsafe.Pointer(&h.arena[0]))
	p := uintptr(unsafe.Pointer(&buf[0]))
	if p < base || p >= base+uintptr(len(h.arena)) {
		panic("mem: Free of slice not owned by this heap")
	}
	return int(p - base)
}

/// Freebytes reports the total free space remaining, for diagnostics.
func (h *Heap_t) Freebytes() int {
	h.Lock()
	defer h.Unlock()
	n := 0
	for _, r := range h.free {
		n += r.size
	}
	return n
}

/// KernelHeap is the single kernel-wide heap instance (spec.md §4.2).
var KernelHeap = &Heap_t{}
