package mem

import "testing"

func TestFrameAllocZeroFilled(t *testing.T) {
	p := &Physmem_t{}
	p.Init(4)
	f, ok := p.Alloc()
	if !ok {
		t.Fatal("expected frame")
	}
	for i, b := range f.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
	f.Bytes()[0] = 0xff
	f.Drop()
	g, ok := p.Alloc()
	if !ok {
		t.Fatal("expected reused frame")
	}
	if g.Bytes()[0] != 0 {
		t.Fatal("reused frame not re-zeroed")
	}
}

func TestFrameAllocExhaustion(t *testing.T) {
	p := &Physmem_t{}
	p.Init(2)
	if _, ok := p.Alloc(); !ok {
		t.Fatal("expected frame 1")
	}
	if _, ok := p.Alloc(); !ok {
		t.Fatal("expected frame 2")
	}
	if _, ok := p.Alloc(); ok {
		t.Fatal("expected OutOfMemory")
	}
}

func TestFrameDoubleDropPanics(t *testing.T) {
	p := &Physmem_t{}
	p.Init(1)
	f, _ := p.Alloc()
	f.Drop()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double drop")
		}
	}()
	f.Drop()
}

func TestHeapAllocFreeCoalesce(t *testing.T) {
	h := &Heap_t{}
	h.Init(MinHeapBytes)
	a := h.MustAlloc(64)
	b := h.MustAlloc(128)
	before := h.Freebytes()
	h.Free(a)
	h.Free(b)
	if h.Freebytes() != before+64+128 {
		t.Fatalf("free bytes mismatch after coalesce: got %d", h.Freebytes())
	}
	if len(h.free) != 1 {
		t.Fatalf("expected single coalesced free run, got %d", len(h.free))
	}
}

func TestHeapExhaustion(t *testing.T) {
	h := &Heap_t{}
	h.Init(MinHeapBytes)
	if _, ok := h.Alloc(MinHeapBytes + 1); ok {
		t.Fatal("expected allocation failure above arena size")
	}
}

func TestVpnIndexesRoundtrip(t *testing.T) {
	va := VirtAddr(0x0000003f_80401000)
	vpn := va.Vpn()
	idx := vpn.Indexes()
	rebuilt := (idx[0] << 18) | (idx[1] << 9) | idx[2]
	if VirtPageNum(rebuilt) != vpn {
		t.Fatalf("indexes did not round-trip: got %x want %x", rebuilt, vpn)
	}
}
