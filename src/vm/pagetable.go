// Package vm implements SV39 virtual memory: the three-level page table,
// address spaces built from Identity/Framed segments, and the user-buffer
// translation helpers syscalls use to read/write user memory (spec.md §3,
// §4.3).
//
// It replaces the teacher's x86 `Vm_t` (4-level pmap, copy-on-write,
// demand paging, multi-CPU TLB shootdown, mmap'd shared files) with the
// SV39 3-level walk and the simpler Identity/Framed mapping model spec.md
// §4.3 actually calls for; the teacher's single-hart `Lock_pmap`/
// `Unlock_pmap`/`Lockassert_pmap` discipline and its `Userdmap8_inner`
// byte-at-a-time translation idiom are kept (see memset.go, userbuf.go).
package vm

import (
	"caller"
	"defs"
	"fmt"
	"mem"
)

/// PTE bit positions, spec.md §3's "V/R/W/X/U/G/A/D" bit set.
const (
	PteV = 1 << 0 /// valid
	PteR = 1 << 1 /// readable
	PteW = 1 << 2 /// writable
	PteX = 1 << 3 /// executable
	PteU = 1 << 4 /// user-accessible
	PteG = 1 << 5 /// global
	PteA = 1 << 6 /// accessed
	PteD = 1 << 7 /// dirty
)

const ppnShift = 10
const ppnBits = 44
const ppnMask = (uint64(1)<<ppnBits - 1) << ppnShift

/// PTEFlags is the low 8 bits of a page table entry.
type PTEFlags uint8

/// PageTableEntry is one SV39 page table entry: a 44-bit PPN plus the 8
/// flag bits, packed into the low 54 bits of a 64-bit word exactly as the
/// hardware page table walker expects (spec.md §3).
type PageTableEntry uint64

/// MkPTE packs a physical page number and flags into a PageTableEntry.
func MkPTE(ppn mem.PhysPageNum, flags PTEFlags) PageTableEntry {
	return PageTableEntry(uint64(ppn)<<ppnShift | uint64(flags))
}

/// Ppn extracts the physical page number.
func (p PageTableEntry) Ppn() mem.PhysPageNum {
	return mem.PhysPageNum((uint64(p) & ppnMask) >> ppnShift)
}

/// Flags extracts the flag bits.
func (p PageTableEntry) Flags() PTEFlags { return PTEFlags(p) }

/// IsValid reports whether the V bit is set.
func (p PageTableEntry) IsValid() bool { return uint64(p)&PteV != 0 }

/// Readable reports whether the R bit is set.
func (p PageTableEntry) Readable() bool { return uint64(p)&PteR != 0 }

/// Writable reports whether the W bit is set.
func (p PageTableEntry) Writable() bool { return uint64(p)&PteW != 0 }

/// Executable reports whether the X bit is set.
func (p PageTableEntry) Executable() bool { return uint64(p)&PteX != 0 }

/// PageTable is a 3-level SV39 page table. It owns the FrameTracker for
/// its root node and for every intermediate (level-2, level-1) node it
/// allocates; leaf frames are owned by the Segment that mapped them
/// (spec.md §3).
type PageTable struct {
	rootPpn mem.PhysPageNum
	rootFr  *mem.FrameTracker
	frames  []*mem.FrameTracker /// intermediate nodes, in allocation order
}

/// NewPageTable allocates an empty root page table.
func NewPageTable() *PageTable {
	fr, ok := mem.Physmem.Alloc()
	if !ok {
		panic("vm: out of memory allocating page table root")
	}
	return &PageTable{rootPpn: fr.Ppn(), rootFr: fr, frames: []*mem.FrameTracker{fr}}
}

/// FromToken reconstructs a non-owning view of the page table identified
/// by a satp token (used by the kernel to walk a user page table that it
/// does not own, e.g. during a trap).
func FromToken(satp uint64) *PageTable {
	return &PageTable{rootPpn: mem.PhysPageNum(satp & ((1 << 44) - 1))}
}

/// Token returns the satp CSR value that activates this page table in SV39
/// mode (mode field 8, per the RISC-V privileged spec, spec.md §6).
func (pt *PageTable) Token() uint64 {
	return 8<<60 | uint64(pt.rootPpn)
}

func (pt *PageTable) nodeBytes(ppn mem.PhysPageNum) []PageTableEntry {
	raw := mem.Physmem.Bytes(ppn)
	out := make([]PageTableEntry, 512)
	for i := range out {
		var v uint64
		for b := 0; b < 8; b++ {
			v |= uint64(raw[i*8+b]) << (8 * b)
		}
		out[i] = PageTableEntry(v)
	}
	return out
}

func (pt *PageTable) storePTE(ppn mem.PhysPageNum, idx int, e PageTableEntry) {
	raw := mem.Physmem.Bytes(ppn)
	v := uint64(e)
	for b := 0; b < 8; b++ {
		raw[idx*8+b] = byte(v >> (8 * b))
	}
}

func (pt *PageTable) loadPTE(ppn mem.PhysPageNum, idx int) PageTableEntry {
	raw := mem.Physmem.Bytes(ppn)
	var v uint64
	for b := 0; b < 8; b++ {
		v |= uint64(raw[idx*8+b]) << (8 * b)
	}
	return PageTableEntry(v)
}

// walk descends the three levels, allocating intermediate nodes when
// create is true. Returns the leaf PTE's (ppn, index) location, or
// ok=false if a node was missing and create was false.
func (pt *PageTable) walk(vpn mem.VirtPageNum, create bool) (ppn mem.PhysPageNum, idx int, ok bool) {
	idxs := vpn.Indexes()
	cur := pt.rootPpn
	for level := 0; level < 3; level++ {
		i := int(idxs[level])
		if level == 2 {
			return cur, i, true
		}
		pte := pt.loadPTE(cur, i)
		if !pte.IsValid() {
			if !create {
				return 0, 0, false
			}
			fr, allocOk := mem.Physmem.Alloc()
			if !allocOk {
				panic("vm: out of memory allocating page table node")
			}
			pt.frames = append(pt.frames, fr)
			pt.storePTE(cur, i, MkPTE(fr.Ppn(), PteV))
			cur = fr.Ppn()
		} else {
			cur = pte.Ppn()
		}
	}
	panic("unreachable")
}

/// Map installs vpn -> ppn with the given flags (V is added automatically).
/// Panics if vpn is already mapped, matching spec.md §7's "double-map is a
/// fatal kernel invariant violation".
func (pt *PageTable) Map(vpn mem.VirtPageNum, ppn mem.PhysPageNum, flags PTEFlags) {
	nodePpn, idx, _ := pt.walk(vpn, true)
	if pt.loadPTE(nodePpn, idx).IsValid() {
		caller.Fatal("vm: double map of vpn %x", vpn)
	}
	pt.storePTE(nodePpn, idx, MkPTE(ppn, flags|PteV))
}

/// Unmap removes the mapping for vpn. Panics if vpn was not mapped.
func (pt *PageTable) Unmap(vpn mem.VirtPageNum) {
	nodePpn, idx, ok := pt.walk(vpn, false)
	if !ok || !pt.loadPTE(nodePpn, idx).IsValid() {
		panic(fmt.Sprintf("vm: unmap of unmapped vpn %x", vpn))
	}
	pt.storePTE(nodePpn, idx, 0)
}

/// Translate returns the PTE mapping vpn, if any.
func (pt *PageTable) Translate(vpn mem.VirtPageNum) (PageTableEntry, bool) {
	nodePpn, idx, ok := pt.walk(vpn, false)
	if !ok {
		return 0, false
	}
	pte := pt.loadPTE(nodePpn, idx)
	if !pte.IsValid() {
		return 0, false
	}
	return pte, true
}

/// TranslateVA resolves a full virtual address to its physical address,
/// returning EFAULT if unmapped (spec.md §4.3, §7).
func (pt *PageTable) TranslateVA(va mem.VirtAddr) (mem.PhysAddr, defs.Err_t) {
	pte, ok := pt.Translate(va.Vpn())
	if !ok {
		return 0, -defs.EFAULT
	}
	return mem.PhysAddr(uint64(pte.Ppn())<<mem.PGSHIFT | va.Offset()), 0
}
