package fat

import "encoding/binary"

import "bdev"

// FormatConfig tunes Format's layout choices. The zero value is a sane
// default: one sector per cluster, which maximizes cluster granularity for
// the small images mkfs and the boot-time "fresh FAT32 image" scenario
// both produce (spec.md §4.8's DBR fields, Scenario A).
type FormatConfig struct {
	SectorsPerCluster uint8
}

const (
	bytesPerSec = 512
	rsvdSecs    = 1
	numFATs     = 2
	fatEntrySz  = 4
)

// Format lays down a fresh, empty FAT32 volume across dev's entire block
// range: a DBR, two mirrored FAT tables sized to cover every data
// cluster, and a one-cluster root directory marked end-of-chain (spec.md
// §4.8 "DBR parsing", "Two FATs"). Grounded on original_source's mkfs
// path, which hand-assembles the same BPB fields before handing off to
// the engine; this is the one place that writes a DBR rather than parses
// one.
func Format(dev bdev.Device, cfg FormatConfig) {
	secPerClus := cfg.SectorsPerCluster
	if secPerClus == 0 {
		secPerClus = 1
	}
	total := uint32(dev.BlockCount())
	if total < rsvdSecs+numFATs+1 {
		panic("fat: device too small to format")
	}

	fatSec := uint32(1)
	var clusterCount uint32
	for {
		dataSecs := total - rsvdSecs - numFATs*fatSec
		clusterCount = dataSecs / uint32(secPerClus)
		entriesPerFAT := fatSec * (bytesPerSec / fatEntrySz)
		if entriesPerFAT >= clusterCount+2 {
			break
		}
		fatSec++
	}

	dbr := make([]byte, bytesPerSec)
	le := binary.LittleEndian
	copy(dbr[offOEMName:], []byte("RVOSFAT "))
	le.PutUint16(dbr[offBytesPerSec:], bytesPerSec)
	dbr[offSecPerClus] = secPerClus
	le.PutUint16(dbr[offRsvdSecCnt:], rsvdSecs)
	dbr[offNumFATs] = numFATs
	le.PutUint32(dbr[offFATSz32:], fatSec)
	le.PutUint32(dbr[offTotSec32:], total)
	le.PutUint32(dbr[offRootClus:], 2)
	copy(dbr[offFilSysType:], []byte("FAT32   "))
	copy(dbr[offVolLab:], []byte("RVOS       "))
	dbr[offSignature] = 0x55
	dbr[offSignature+1] = 0xAA
	dev.WriteBlock(0, dbr)

	fatBlock := make([]byte, bytesPerSec)
	le.PutUint32(fatBlock[2*fatEntrySz:], clusterEndOfChain) // cluster 2: root
	dev.WriteBlock(rsvdSecs, fatBlock)
	dev.WriteBlock(rsvdSecs+fatSec, fatBlock)

	zero := make([]byte, bytesPerSec)
	for i := uint32(1); i < fatSec; i++ {
		dev.WriteBlock(uint64(rsvdSecs+i), zero)
		dev.WriteBlock(uint64(rsvdSecs+fatSec+i), zero)
	}

	dataSecBase := rsvdSecs + numFATs*fatSec
	for i := uint32(0); i < uint32(secPerClus); i++ {
		dev.WriteBlock(uint64(dataSecBase+i), zero)
	}
}
