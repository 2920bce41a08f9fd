package vm

import (
	"mem"
	"testing"
)

func setupPhysmem(t *testing.T, npages int) {
	t.Helper()
	mem.Physmem = &mem.Physmem_t{}
	mem.Physmem.Init(npages)
}

func TestIdentityMapTranslatesToSamePPN(t *testing.T) {
	setupPhysmem(t, 64)
	ms := NewKernel(0, 32)
	pte, ok := ms.PageTable().Translate(10)
	if !ok {
		t.Fatal("expected identity-mapped vpn 10")
	}
	if pte.Ppn() != 10 {
		t.Fatalf("identity map broken: got ppn %d want 10", pte.Ppn())
	}
}

func TestFramedMapAllocatesDistinctFrames(t *testing.T) {
	setupPhysmem(t, 64)
	ms := NewMemSet()
	ms.InsertFramedArea(0x1000, 0x1000+3*mem.PGSIZE, PermR|PermW)
	p0, _ := ms.PageTable().Translate(mem.VirtAddr(0x1000).Vpn())
	p1, _ := ms.PageTable().Translate(mem.VirtAddr(0x1000 + mem.PGSIZE).Vpn())
	if p0.Ppn() == p1.Ppn() {
		t.Fatal("framed pages must not alias the same physical frame")
	}
}

func TestDoubleMapPanics(t *testing.T) {
	setupPhysmem(t, 16)
	pt := NewPageTable()
	fr, _ := mem.Physmem.Alloc()
	pt.Map(5, fr.Ppn(), PteR)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double map")
		}
	}()
	fr2, _ := mem.Physmem.Alloc()
	pt.Map(5, fr2.Ppn(), PteR)
}

func TestForkCopiesNotShares(t *testing.T) {
	setupPhysmem(t, 64)
	parent := NewMemSet()
	parent.InsertFramedArea(0x2000, 0x2000+mem.PGSIZE, PermR|PermW)
	pte, _ := parent.PageTable().Translate(mem.VirtAddr(0x2000).Vpn())
	mem.Physmem.Bytes(pte.Ppn())[0] = 0x42

	child := parent.Fork(1)
	cpte, _ := child.PageTable().Translate(mem.VirtAddr(0x2000).Vpn())
	if cpte.Ppn() == pte.Ppn() {
		t.Fatal("fork must not share frames between parent and child")
	}
	if mem.Physmem.Bytes(cpte.Ppn())[0] != 0x42 {
		t.Fatal("fork must copy existing contents")
	}
	mem.Physmem.Bytes(pte.Ppn())[0] = 0x99
	if mem.Physmem.Bytes(cpte.Ppn())[0] != 0x42 {
		t.Fatal("writes to parent after fork must not be visible to child")
	}
}

func TestUserBufferCrossPageTx(t *testing.T) {
	setupPhysmem(t, 64)
	ms := NewMemSet()
	ms.InsertFramedArea(0, 2*mem.PGSIZE, PermR|PermW)
	ub := NewUserBuffer(ms.PageTable(), mem.VirtAddr(mem.PGSIZE-4), 8)
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := ub.Uiowrite(src)
	if err != 0 || n != 8 {
		t.Fatalf("cross-page write failed: n=%d err=%d", n, err)
	}
	ub2 := NewUserBuffer(ms.PageTable(), mem.VirtAddr(mem.PGSIZE-4), 8)
	dst := make([]byte, 8)
	n, err = ub2.Uioread(dst)
	if err != 0 || n != 8 {
		t.Fatalf("cross-page read failed: n=%d err=%d", n, err)
	}
	for i := range src {
		if src[i] != dst[i] {
			t.Fatalf("byte %d mismatch: wrote %d read %d", i, src[i], dst[i])
		}
	}
}
