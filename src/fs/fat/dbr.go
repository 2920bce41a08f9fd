// Package fat is the FAT32 filesystem engine (spec.md §4.8): DBR parsing,
// FAT chain walking, short/long directory entries, and the inode/file
// layer that wires all of it into fs.VFS_i and fdops.Fdops_i. Grounded on
// original_source/src/fs/fs_impl/fat32 (DBR/FAT/Chain/DirEntry*/Inode/
// FileInner), adapted from its single-threaded allocator arena onto the
// block cache built in fs/blockcache.go.
package fat

import "encoding/binary"

import "caller"

// Byte offsets into block 0 (the Dos Boot Record), standard FAT32 BPB
// layout: OEM name, bytes-per-sector, sectors-per-cluster, reserved
// sectors, FAT count, total sectors (32-bit form only -- this engine
// never targets FAT12/16 media small enough to need the 16-bit field),
// FAT size, root cluster, volume label, filesystem type string, and the
// 0x55AA signature at the very end of the sector.
const (
	offOEMName     = 3
	offBytesPerSec = 11
	offSecPerClus  = 13
	offRsvdSecCnt  = 14
	offNumFATs     = 16
	offTotSec32    = 32
	offFATSz32     = 36
	offFSVer       = 42
	offRootClus    = 44
	offVolID       = 67
	offVolLab      = 71
	offFilSysType  = 82
	offSignature   = 510
)

/// DBR is the simplified, decoded boot record: only the fields the chain
/// walker and directory layer need (spec.md §4.8 "DBR parsing").
type DBR struct {
	VolID   uint32
	VolName [11]byte
	OEMName [8]byte
	FSType  [8]byte
	Version uint16

	FATCount uint32
	FATSec   uint32 /// size of one FAT, in sectors
	FATLen   uint32 /// size of one FAT, in bytes

	SecLen        uint32 /// bytes per sector
	SecCnt        uint32
	RsvdSec       uint32
	DataSecBase   uint32 /// first sector of the data region

	ClstSec  uint32 /// sectors per cluster
	ClstSize uint32 /// bytes per cluster
	ClstCnt  uint32

	Root uint32 /// root directory's starting cluster
}

/// ParseDBR decodes block (block id 0, 512 bytes) into a DBR. It panics on
/// a bad 0x55AA signature: a missing or corrupt DBR is not a recoverable
/// condition for the core (spec.md §6 "Errors are fatal from the core's
/// perspective").
func ParseDBR(block []byte) DBR {
	if len(block) != 512 {
		caller.Fatal("fat: DBR block must be exactly 512 bytes")
	}
	if block[offSignature] != 0x55 || block[offSignature+1] != 0xAA {
		caller.Fatal("fat: bad DBR signature")
	}

	le := binary.LittleEndian
	secLen := uint32(le.Uint16(block[offBytesPerSec:]))
	clstSec := uint32(block[offSecPerClus])
	rsvdSec := uint32(le.Uint16(block[offRsvdSecCnt:]))
	fatCnt := uint32(block[offNumFATs])
	fatSec := le.Uint32(block[offFATSz32:])
	secCnt := le.Uint32(block[offTotSec32:])
	dataSecBase := rsvdSec + fatCnt*fatSec

	var d DBR
	d.SecLen = secLen
	d.SecCnt = secCnt
	d.RsvdSec = rsvdSec
	d.DataSecBase = dataSecBase
	d.FATCount = fatCnt
	d.FATSec = fatSec
	d.FATLen = fatSec * secLen
	d.ClstSec = clstSec
	d.ClstSize = clstSec * secLen
	d.ClstCnt = (secCnt - dataSecBase) / clstSec
	d.Root = le.Uint32(block[offRootClus:])
	d.Version = le.Uint16(block[offFSVer:])
	d.VolID = le.Uint32(block[offVolID:])
	copy(d.VolName[:], block[offVolLab:offVolLab+11])
	copy(d.OEMName[:], block[offOEMName:offOEMName+8])
	copy(d.FSType[:], block[offFilSysType:offFilSysType+8])
	return d
}

/// fatRegion locates one on-disk copy of the FAT, in sectors, plus how
/// many 32-bit entries fit in a single sector (spec.md §4.8 "Two FATs are
/// computed by offset").
type fatRegion struct {
	start           uint32 /// first sector (== block id, BSIZE==SecLen)
	entriesPerBlock uint32
}

func fat1Region(d DBR) fatRegion {
	return fatRegion{start: d.RsvdSec, entriesPerBlock: d.SecLen / 4}
}

func fat2Region(d DBR) fatRegion {
	return fatRegion{start: d.RsvdSec + d.FATSec, entriesPerBlock: d.SecLen / 4}
}
