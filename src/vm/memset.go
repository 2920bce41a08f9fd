package vm

import (
	"debug/elf"
	"fmt"
	"io"
	"mem"
)

/// Trampoline is the single virtual page, identity-mapped into every
/// address space at the same high address, holding the assembly that
/// crosses the user/kernel trap boundary (spec.md §4.4). It sits one page
/// below the top of the 39-bit virtual address space so it never collides
/// with a user ELF image or stack.
const Trampoline = mem.VirtAddr((1 << 38) - mem.PGSIZE)

/// TrapContextVA is the fixed user-space address of the per-process
/// TrapContext page, one page below the trampoline (spec.md §4.4/§4.5).
const TrapContextVA = Trampoline - mem.PGSIZE

/// UserStackGuardPages is the number of unmapped pages separating each
/// user stack from the segment below it, so stack overflow faults instead
/// of silently corrupting adjacent data (spec.md §4.3's guard-page note).
const UserStackGuardPages = 1

/// UserStackPages is the default size of a new process's user stack.
const UserStackPages = 16

/// MemSet is one process's (or the kernel's) address space: a page table
/// plus the ordered list of segments mapped into it (spec.md §3, §4.3).
/// It replaces the teacher's x86 Vm_t: no COW, no demand paging, no
/// mmap'd shared files, no multi-CPU TLB shootdown -- this kernel is
/// single-hart (spec.md §5 Non-goals) and every page is resident the
/// moment its segment is mapped.
type MemSet struct {
	pt       *PageTable
	segments []*Segment
	trapFr   *mem.FrameTracker /// backs the TrapContext page
}

/// NewMemSet allocates an empty address space (a bare root page table, no
/// segments).
func NewMemSet() *MemSet {
	return &MemSet{pt: NewPageTable()}
}

/// NewUserMemSet allocates an address space with the trampoline and
/// TrapContext pages installed but no other segments yet, for callers
/// that build up a process's memory layout outside of loading an ELF
/// image (spec.md §4.3/§4.4: every non-kernel address space needs both
/// pages regardless of how its other segments are populated).
func NewUserMemSet(trampolinePPN mem.PhysPageNum) *MemSet {
	ms := NewMemSet()
	ms.mapTrampolineAndTrapContext(trampolinePPN)
	return ms
}

/// Token returns the satp value that activates this address space.
func (ms *MemSet) Token() uint64 { return ms.pt.Token() }

/// PageTable exposes the underlying page table for translation helpers.
func (ms *MemSet) PageTable() *PageTable { return ms.pt }

/// mapTrampolineAndTrapContext installs the two fixed high-address
/// mappings every non-kernel address space needs: the trampoline page
/// (shared, identity-mapped to the same physical frame in every process)
/// and a private TrapContext page (spec.md §4.4/§4.5).
func (ms *MemSet) mapTrampolineAndTrapContext(trampolinePPN mem.PhysPageNum) {
	ms.pt.Map(Trampoline.Vpn(), trampolinePPN, PteR|PteX)
	fr, ok := mem.Physmem.Alloc()
	if !ok {
		panic("vm: out of memory mapping trap context")
	}
	ms.trapFr = fr
	ms.pt.Map(TrapContextVA.Vpn(), fr.Ppn(), PteR|PteW)
}

/// TrapContextBytes returns the 4 KiB backing this address space's
/// TrapContext page, for the trap dispatcher to read/write directly.
func (ms *MemSet) TrapContextBytes() []byte {
	return ms.trapFr.Bytes()
}

/// addSegment maps seg into pt, copies any initial data into it, and
/// records it for later teardown/cloning.
func (ms *MemSet) addSegment(seg *Segment, data []byte) {
	seg.Map(ms.pt)
	if data != nil {
		seg.CopyData(data)
	}
	ms.segments = append(ms.segments, seg)
}

/// InsertFramedArea adds a new Framed segment covering [start, end) with
/// the given permissions (spec.md §4.3; used for sbrk growth and for
/// pushing the initial user stack).
func (ms *MemSet) InsertFramedArea(start, end mem.VirtAddr, perm MapPermission) {
	ms.addSegment(NewSegment(start, end, Framed, perm), nil)
}

/// NewKernel builds the kernel's own address space: an identity map over
/// physical frames [0, kernelPages), so kernel code can dereference
/// any PhysAddr it holds without a translation step, plus the shared
/// trampoline (spec.md §4.2/§4.4).
func NewKernel(trampolinePPN mem.PhysPageNum, kernelPages int) *MemSet {
	ms := NewMemSet()
	ms.pt.Map(Trampoline.Vpn(), trampolinePPN, PteR|PteX)
	seg := &Segment{startVpn: 0, endVpn: mem.VirtPageNum(kernelPages), mtype: Identity, perm: PermR | PermW | PermX}
	seg.Map(ms.pt)
	ms.segments = append(ms.segments, seg)
	return ms
}

/// FromElf parses an ELF64 executable (spec.md §4.6's exec image), maps
/// each PT_LOAD segment as a Framed area with the program header's R/W/X
/// bits, installs the trampoline/TrapContext pages and a guarded user
/// stack, and returns the new address space, the initial stack pointer and
/// the entry point.
func FromElf(data []byte, trampolinePPN mem.PhysPageNum) (ms *MemSet, userSP, entry mem.VirtAddr, err error) {
	f, ferr := elf.NewFile(byteReaderAt(data))
	if ferr != nil {
		return nil, 0, 0, ferr
	}
	if f.Class != elf.ELFCLASS64 {
		return nil, 0, 0, fmt.Errorf("vm: only ELF64 user images are supported")
	}
	ms = NewUserMemSet(trampolinePPN)

	var maxEnd mem.VirtAddr
	for _, ph := range f.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}
		start := mem.VirtAddr(ph.Vaddr)
		end := mem.VirtAddr(ph.Vaddr + ph.Memsz)
		var perm MapPermission
		if ph.Flags&elf.PF_R != 0 {
			perm |= PermR
		}
		if ph.Flags&elf.PF_W != 0 {
			perm |= PermW
		}
		if ph.Flags&elf.PF_X != 0 {
			perm |= PermX
		}
		perm |= PermU
		seg := NewSegment(start, end, Framed, perm)
		buf := make([]byte, ph.Filesz)
		if len(buf) > 0 {
			if _, rerr := io.ReadFull(ph.Open(), buf); rerr != nil {
				return nil, 0, 0, fmt.Errorf("vm: reading PT_LOAD segment: %w", rerr)
			}
		}
		ms.addSegment(seg, buf)
		if end > maxEnd {
			maxEnd = end
		}
	}

	stackBottom := mem.VirtAddr(roundUp(uint64(maxEnd), mem.PGSIZE)) + UserStackGuardPages*mem.PGSIZE
	stackTop := stackBottom + UserStackPages*mem.PGSIZE
	ms.InsertFramedArea(stackBottom, stackTop, PermR|PermW|PermU)

	return ms, stackTop, mem.VirtAddr(f.Entry), nil
}

/// Fork duplicates every segment (copy-then-diverge, spec.md §4.6: no
/// copy-on-write, the child's frames are independent copies from the
/// instant fork returns) and gives the child a fresh trampoline/TrapContext
/// pair.
func (ms *MemSet) Fork(trampolinePPN mem.PhysPageNum) *MemSet {
	child := NewUserMemSet(trampolinePPN)
	for _, seg := range ms.segments {
		c := seg.Clone()
		c.MapAndCopy(child.pt, seg)
		child.segments = append(child.segments, c)
	}
	return child
}

/// Teardown unmaps and frees every segment's frames (spec.md §4.3's
/// teardown on process exit). The page table's own intermediate-node
/// frames are intentionally not freed here; the process table drops the
/// last reference to the MemSet itself once exit has fully completed.
func (ms *MemSet) Teardown() {
	for _, seg := range ms.segments {
		seg.Unmap(ms.pt)
	}
	ms.segments = nil
}

// byteReaderAt adapts a []byte to io.ReaderAt for debug/elf.NewFile.
type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, fmt.Errorf("vm: ReadAt out of range")
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, fmt.Errorf("vm: short read")
	}
	return n, nil
}
