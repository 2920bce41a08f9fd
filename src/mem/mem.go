// Package mem implements the physical memory layer of the kernel: the
// strongly-typed address/page-number types (spec.md §3), the bounded
// 4 KiB frame allocator (§4.1) and the fixed-arena kernel heap (§4.2, in
// heap.go).
//
// Real physical RAM is not addressable from a hosted Go process, so the
// "physical memory" this package manages is a single contiguous byte arena
// allocated once at Init time; PhysAddr values index into that arena the
// way they would index real RAM on bare metal. Everything above this
// package (vm, proc, fs) only ever sees PhysAddr/PhysPageNum values, never
// the arena itself, so the rest of the kernel is unaffected by this
// host/bare-metal distinction.
package mem

import (
	"sync"

	"caller"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET = PGSIZE - 1

/// PhysAddr is a 64-bit physical address.
type PhysAddr uint64

/// VirtAddr is a 64-bit virtual address.
type VirtAddr uint64

/// PhysPageNum is a physical page number (PhysAddr >> PGSHIFT).
type PhysPageNum uint64

/// VirtPageNum is a virtual page number (VirtAddr >> PGSHIFT).
type VirtPageNum uint64

/// Ppn converts a physical address to its containing page number.
func (pa PhysAddr) Ppn() PhysPageNum { return PhysPageNum(pa >> PGSHIFT) }

/// Offset returns the byte offset of pa within its page.
func (pa PhysAddr) Offset() uint64 { return uint64(pa) & PGOFFSET }

/// Addr converts a physical page number back to the address of its first byte.
func (p PhysPageNum) Addr() PhysAddr { return PhysAddr(uint64(p) << PGSHIFT) }

/// Vpn converts a virtual address to its containing page number.
func (va VirtAddr) Vpn() VirtPageNum { return VirtPageNum(va >> PGSHIFT) }

/// Offset returns the byte offset of va within its page.
func (va VirtAddr) Offset() uint64 { return uint64(va) & PGOFFSET }

/// Addr converts a virtual page number back to the address of its first byte.
func (v VirtPageNum) Addr() VirtAddr { return VirtAddr(uint64(v) << PGSHIFT) }

/// Indexes splits a VPN into its three SV39 9-bit page-table indices,
/// highest level first (spec.md §3).
func (v VirtPageNum) Indexes() [3]uint64 {
	x := uint64(v)
	return [3]uint64{
		(x >> 18) & 0x1ff,
		(x >> 9) & 0x1ff,
		x & 0x1ff,
	}
}

/// Physmem_t owns the byte arena standing in for physical RAM and the
/// frame allocator over it (spec.md §4.1): a bump pointer over
/// [ekernel_page, mem_end_page) plus a LIFO free list, under one short
/// critical section (spec.md §5).
type Physmem_t struct {
	sync.Mutex
	arena    []byte
	base     PhysPageNum /// first allocatable page (ekernel_page)
	end      PhysPageNum /// one past the last allocatable page (mem_end_page)
	bump     PhysPageNum
	freelist []PhysPageNum
}

/// Physmem is the single kernel-wide physical memory manager, mirroring
/// the teacher's package-level `Physmem_t` singleton convention.
var Physmem = &Physmem_t{}

/// Init reserves an arena of npages 4 KiB pages and makes all of them
/// available to Alloc, standing in for "[ekernel_page, mem_end_page)"
/// (spec.md §4.1). Must be called exactly once before any Alloc.
func (p *Physmem_t) Init(npages int) {
	p.Lock()
	defer p.Unlock()
	if p.arena != nil {
		caller.Fatal("mem: double Init")
	}
	p.arena = make([]byte, npages*PGSIZE)
	p.base = 0
	p.end = PhysPageNum(npages)
	p.bump = 0
	p.freelist = nil
}

// page returns the arena slice backing ppn. ppn must be in [base, end).
func (p *Physmem_t) page(ppn PhysPageNum) []byte {
	idx := ppn - p.base
	off := int(idx) * PGSIZE
	return p.arena[off : off+PGSIZE]
}

// alloc1 pops a free frame or advances the bump pointer; caller holds the
// lock. Returns ok=false on OutOfMemory (spec.md §4.1).
func (p *Physmem_t) alloc1() (PhysPageNum, bool) {
	if n := len(p.freelist); n > 0 {
		ppn := p.freelist[n-1]
		p.freelist = p.freelist[:n-1]
		return ppn, true
	}
	if p.bump >= p.end {
		return 0, false
	}
	ppn := p.bump
	p.bump++
	return ppn, true
}

/// Alloc hands out one physical frame, zero-filled, and returns a
/// FrameTracker with exclusive ownership of it (spec.md §3's FrameTracker,
/// §4.1's OutOfMemory failure).
func (p *Physmem_t) Alloc() (*FrameTracker, bool) {
	p.Lock()
	ppn, ok := p.alloc1()
	p.Unlock()
	if !ok {
		return nil, false
	}
	buf := p.page(ppn)
	for i := range buf {
		buf[i] = 0
	}
	return &FrameTracker{ppn: ppn, mgr: p}, true
}

/// Free returns ppn to the free list. It panics on a double-free or a PPN
/// outside the allocated range, matching spec.md §7's "allocator
/// double-free is a fatal kernel invariant violation".
func (p *Physmem_t) Free(ppn PhysPageNum) {
	p.Lock()
	defer p.Unlock()
	if ppn < p.base || ppn >= p.bump {
		caller.Fatal("mem: free of never-allocated ppn %d", ppn)
	}
	for _, f := range p.freelist {
		if f == ppn {
			caller.Fatal("mem: double free of ppn %d", ppn)
		}
	}
	p.freelist = append(p.freelist, ppn)
}

/// Bytes returns the byte slice backing ppn, for direct reads/writes by
/// the page table walker and the user buffer gather/scatter code. This is
/// the kernel's "direct map": every physical frame is always addressable
/// without a page-table walk, the same role the teacher's dmap.go slot
/// serves on x86.
func (p *Physmem_t) Bytes(ppn PhysPageNum) []byte {
	p.Lock()
	defer p.Unlock()
	return p.page(ppn)
}

/// Free_pages reports how many pages remain available, for diagnostics.
func (p *Physmem_t) Free_pages() int {
	p.Lock()
	defer p.Unlock()
	return int(p.end-p.bump) + len(p.freelist)
}

/// FrameTracker is exclusive ownership of one physical page (spec.md §3).
/// Drop must be called exactly once to return the page to the allocator;
/// Go has no destructors, so callers that own a FrameTracker (Segment,
/// PageTable's intermediate nodes) are responsible for calling Drop when
/// they are done with it, the same way the teacher's refcounted pages are
/// explicitly `Refdown`ed rather than left to a finalizer.
type FrameTracker struct {
	ppn     PhysPageNum
	mgr     *Physmem_t
	dropped bool
}

/// Ppn returns the physical page number this tracker owns.
func (f *FrameTracker) Ppn() PhysPageNum { return f.ppn }

/// Bytes returns the 4 KiB backing the frame.
func (f *FrameTracker) Bytes() []byte { return f.mgr.Bytes(f.ppn) }

/// Drop returns the frame to the allocator. Calling Drop twice is a kernel
/// bug and panics.
func (f *FrameTracker) Drop() {
	if f.dropped {
		caller.Fatal("mem: FrameTracker double drop")
	}
	f.dropped = true
	f.mgr.Free(f.ppn)
}
