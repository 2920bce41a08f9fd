package fat

import "encoding/binary"

/// clusterKind classifies a raw 28-bit FAT entry value (spec.md §4.8 "FAT
/// semantics").
type clusterKind int

const (
	clusterFree clusterKind = iota
	clusterTemp
	clusterData
	clusterRsvd
	clusterBad
	clusterEoc
)

const clusterMask = 0x0FFF_FFFF
const clusterEocMin = 0x0FFF_FFF8
const clusterBadValue = 0x0FFF_FFF7
const clusterEndOfChain = 0x0FFF_FFFF

func classify(raw uint32) clusterKind {
	v := raw & clusterMask
	switch {
	case v == 0:
		return clusterFree
	case v == 1:
		return clusterTemp
	case v < 0x0FFF_FFF0:
		return clusterData
	case v >= clusterEocMin:
		return clusterEoc
	case v == clusterBadValue:
		return clusterBad
	default:
		return clusterRsvd
	}
}

/// clusterSector returns the block id holding cluster's first sector,
/// given offset bytes into it (spec.md §4.8 "DBR parsing": "Data area
/// starts at reserved + fat_count * fat_size").
func (f *FS_t) clusterSector(cluster uint32, offset uint32) uint32 {
	idx := cluster - f.dbr.Root
	sector := f.dbr.DataSecBase + f.dbr.ClstSec*idx
	return sector + offset/f.dbr.SecLen
}

func (f *FS_t) readCluster(cluster uint32, offset uint32, buf []byte) int {
	if cluster >= f.dbr.ClstCnt+f.dbr.Root {
		panic("fat: invalid cluster")
	}
	if offset >= f.dbr.ClstSize {
		panic("fat: invalid cluster offset")
	}
	read := 0
	for len(buf) > 0 {
		block := f.clusterSector(cluster, offset)
		off := int(offset % f.dbr.SecLen)
		b := f.cache.Get(uint64(block))
		n := copy(buf, b.Data[off:])
		f.cache.Relse(b)
		buf = buf[n:]
		offset += uint32(n)
		read += n
		if offset >= f.dbr.ClstSize {
			break
		}
	}
	return read
}

func (f *FS_t) writeCluster(cluster uint32, offset uint32, buf []byte) int {
	if cluster >= f.dbr.ClstCnt+f.dbr.Root {
		panic("fat: invalid cluster")
	}
	if offset >= f.dbr.ClstSize {
		panic("fat: invalid cluster offset")
	}
	written := 0
	for len(buf) > 0 {
		block := f.clusterSector(cluster, offset)
		off := int(offset % f.dbr.SecLen)
		b := f.cache.Get(uint64(block))
		n := copy(b.Data[off:], buf)
		b.MarkDirty()
		f.cache.Relse(b)
		buf = buf[n:]
		offset += uint32(n)
		written += n
		if offset >= f.dbr.ClstSize {
			break
		}
	}
	return written
}

func (f *FS_t) clearCluster(cluster uint32) {
	base := f.clusterSector(cluster, 0)
	for i := uint32(0); i < f.dbr.ClstSec; i++ {
		b := f.cache.Get(uint64(base + i))
		for j := range b.Data {
			b.Data[j] = 0
		}
		b.MarkDirty()
		f.cache.Relse(b)
	}
}

func (f *FS_t) fatEntry(clstNum uint32) uint32 {
	region := f.fat1
	block := clstNum/region.entriesPerBlock + region.start
	off := int(clstNum%region.entriesPerBlock) * 4
	b := f.cache.Get(uint64(block))
	v := binary.LittleEndian.Uint32(b.Data[off:])
	f.cache.Relse(b)
	return v
}

/// writeFatEntry mirrors next into both FAT copies (spec.md §5 "Filesystem
/// writes to FAT entries are mirrored to FAT1 and FAT2 before returning,
/// but the pair write is not atomic", an explicit documented open
/// question carried forward unchanged from original_source).
func (f *FS_t) writeFatEntry(clstNum, next uint32) {
	for _, region := range [...]fatRegion{f.fat1, f.fat2} {
		block := clstNum/region.entriesPerBlock + region.start
		off := int(clstNum%region.entriesPerBlock) * 4
		b := f.cache.Get(uint64(block))
		binary.LittleEndian.PutUint32(b.Data[off:], next)
		b.MarkDirty()
		f.cache.Relse(b)
	}
}

/// allocCluster linearly scans from cluster index 2 for a free slot,
/// writes end-of-chain into it, and zeros the data cluster (spec.md §4.8
/// "alloc_cluster"). It panics if the volume is full: spec.md §6 treats
/// the block device as infallible from the core's perspective, and a
/// full FAT32 volume is likewise an unrecoverable condition here rather
/// than a plumbed ENOSPC (original_source returns Err("no free cluster")
/// but every caller in this engine .unwrap()s it immediately).
func (f *FS_t) allocCluster() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := uint32(2); i < f.dbr.ClstCnt+2; i++ {
		if classify(f.fatEntry(i)) == clusterFree {
			f.writeFatEntry(i, clusterEndOfChain)
			f.clearCluster(i)
			return i
		}
	}
	panic("fat: no free cluster, volume is full")
}

/// getChain walks next-pointers from start collecting data clusters,
/// terminating on end-of-chain (spec.md §4.8 "get_chain"). start < 2
/// (an empty file) yields an empty chain.
func (f *FS_t) getChain(start uint32) []uint32 {
	var chain []uint32
	if start < 2 {
		return chain
	}
	cur := start
	for {
		switch classify(f.fatEntry(cur)) {
		case clusterData:
			chain = append(chain, cur)
			cur = f.fatEntry(cur)
		case clusterEoc:
			chain = append(chain, cur)
			return chain
		default:
			return chain
		}
	}
}

/// clearChain frees every cluster in the chain starting at start, leaving
/// start's own FAT entry zeroed too (spec.md §4.8 "clear_chain").
func (f *FS_t) clearChain(start uint32) {
	if start == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := start
	for {
		next := f.fatEntry(cur)
		switch classify(next) {
		case clusterData:
			f.writeFatEntry(cur, 0)
			cur = next
		case clusterEoc:
			f.writeFatEntry(cur, 0)
			return
		default:
			panic("fat: clearChain found an inconsistent link")
		}
	}
}

/// appendChain locates the true terminal cluster reachable from end and
/// splices a newly allocated cluster onto it (spec.md §4.8
/// "append_chain").
func (f *FS_t) appendChain(end uint32) uint32 {
	term := end
	switch classify(f.fatEntry(end)) {
	case clusterEoc:
		// already the terminal cluster
	case clusterData:
		chain := f.getChain(end)
		term = chain[len(chain)-1]
	default:
		panic("fat: appendChain called on a non-chain cluster")
	}
	new := f.allocCluster()
	f.mu.Lock()
	f.writeFatEntry(term, new)
	f.mu.Unlock()
	return new
}

/// truncateChain frees every cluster reachable from start and then
/// rewrites start itself as a lone end-of-chain marker (spec.md §4.8
/// "truncate_chain").
func (f *FS_t) truncateChain(start uint32) {
	f.clearChain(start)
	f.mu.Lock()
	f.writeFatEntry(start, clusterEndOfChain)
	f.mu.Unlock()
}
