package vm

import "mem"

/// MapType selects how a Segment's virtual pages back onto physical frames
/// (spec.md §4.3's "Identity" and "Framed" mapping policies).
type MapType int

const (
	/// Identity maps vpn directly onto the physical page number with the
	/// same numeric value, used for the kernel's own text/data/stack and
	/// for MMIO windows.
	Identity MapType = iota
	/// Framed allocates a fresh physical frame per virtual page, used for
	/// every user segment (spec.md §4.3).
	Framed
)

/// MapPermission is the subset of PTE flags a segment exposes at the
/// mapping-policy level (R/W/X/U); V is always implied.
type MapPermission PTEFlags

const (
	PermR MapPermission = PteR
	PermW MapPermission = PteW
	PermX MapPermission = PteX
	PermU MapPermission = PteU
)

/// Segment is one contiguous virtual mapping within a MemSet: a VPN range,
/// a mapping policy, and (for Framed segments) the FrameTrackers backing
/// each page, so the MemSet can reclaim them on teardown (spec.md §3, §4.3).
type Segment struct {
	startVpn, endVpn mem.VirtPageNum
	mtype            MapType
	perm             MapPermission
	frames           map[mem.VirtPageNum]*mem.FrameTracker /// Framed only
}

/// NewSegment creates a segment covering [startVA, endVA), rounded out to
/// whole pages, with the given mapping policy and permissions.
func NewSegment(startVA, endVA mem.VirtAddr, mtype MapType, perm MapPermission) *Segment {
	s := &Segment{
		startVpn: startVA.Vpn(),
		endVpn:   mem.VirtAddr(roundUp(uint64(endVA), mem.PGSIZE)).Vpn(),
		mtype:    mtype,
		perm:     perm,
	}
	if mtype == Framed {
		s.frames = make(map[mem.VirtPageNum]*mem.FrameTracker)
	}
	return s
}

func roundUp(v uint64, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

func (s *Segment) pteFlags() PTEFlags {
	return PTEFlags(s.perm) | PteV
}

/// MapOne installs the mapping for a single page of this segment into pt.
/// For Identity segments the physical page number equals the virtual one;
/// for Framed segments a fresh zeroed frame is allocated and owned by the
/// segment.
func (s *Segment) MapOne(pt *PageTable, vpn mem.VirtPageNum) {
	var ppn mem.PhysPageNum
	switch s.mtype {
	case Identity:
		ppn = mem.PhysPageNum(vpn)
	case Framed:
		fr, ok := mem.Physmem.Alloc()
		if !ok {
			panic("vm: out of memory mapping framed segment page")
		}
		s.frames[vpn] = fr
		ppn = fr.Ppn()
	}
	pt.Map(vpn, ppn, s.pteFlags())
}

/// Map installs every page of the segment into pt.
func (s *Segment) Map(pt *PageTable) {
	for vpn := s.startVpn; vpn < s.endVpn; vpn++ {
		s.MapOne(pt, vpn)
	}
}

/// Unmap removes every page of the segment from pt and, for Framed
/// segments, drops the backing FrameTrackers (spec.md §4.3's teardown on
/// process exit).
func (s *Segment) Unmap(pt *PageTable) {
	for vpn := s.startVpn; vpn < s.endVpn; vpn++ {
		pt.Unmap(vpn)
		if s.mtype == Framed {
			if fr, ok := s.frames[vpn]; ok {
				fr.Drop()
				delete(s.frames, vpn)
			}
		}
	}
}

/// CopyData writes data into the segment's pages starting at its first
/// page's offset 0 (used to load ELF segment contents and the initial user
/// stack, spec.md §4.3/§4.6). The segment must already be Framed and
/// mapped.
func (s *Segment) CopyData(data []byte) {
	off := 0
	vpn := s.startVpn
	for off < len(data) {
		fr := s.frames[vpn]
		n := copy(fr.Bytes(), data[off:])
		off += n
		vpn++
	}
}

/// Clone duplicates a Framed segment's page contents into fresh frames for
/// fork's copy-then-diverge semantics (spec.md §4.6: "the child's frames
/// are copies, not shared, so writes after fork never become visible to
/// the other process").
func (s *Segment) Clone() *Segment {
	c := &Segment{startVpn: s.startVpn, endVpn: s.endVpn, mtype: s.mtype, perm: s.perm}
	if s.mtype == Framed {
		c.frames = make(map[mem.VirtPageNum]*mem.FrameTracker, len(s.frames))
	}
	return c
}

/// MapAndCopy maps c's pages into pt and copies the corresponding source
/// segment's page contents into them, completing Clone's fork semantics.
func (c *Segment) MapAndCopy(pt *PageTable, src *Segment) {
	for vpn := c.startVpn; vpn < c.endVpn; vpn++ {
		c.MapOne(pt, vpn)
		if c.mtype == Framed {
			copy(c.frames[vpn].Bytes(), src.frames[vpn].Bytes())
		}
	}
}
