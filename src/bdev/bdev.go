// Package bdev is the block device contract the core's block cache sits
// above (spec.md §6 "Block device contract"): read_block, write_block,
// clear_block, block_count, operating on exactly 512-byte blocks. The real
// collaborator -- an SD-card bit-banger or a VirtIO shim -- is an external
// component out of scope here; this package only models the interface plus
// host-side simulators a hosted kernel (or its tests) can run against,
// grounded on the teacher's own file-backed disk simulator in
// ufs/driver.go (ahci_disk_t).
package bdev

/// BlockSize is the fixed block width the contract requires (spec.md §6).
const BlockSize = 512

/// Device is everything the block cache (package fs) calls out to below
/// it. Per spec.md §5/§6, operations on one block id observe FIFO order;
/// operations on distinct ids are unordered; I/O errors are fatal from the
/// core's perspective, so implementations panic rather than return an
/// error from these three -- the same contract ahci_disk_t's Start method
/// enforces by panicking on any short read/write.
type Device interface {
	/// ReadBlock fills buf (len(buf) == BlockSize) with block id's
	/// contents.
	ReadBlock(id uint64, buf []byte)
	/// WriteBlock persists buf (len(buf) == BlockSize) as block id.
	WriteBlock(id uint64, buf []byte)
	/// ClearBlock zero-fills block id.
	ClearBlock(id uint64)
	/// BlockCount reports the device's total block capacity.
	BlockCount() uint64
}

func checkLen(buf []byte) {
	if len(buf) != BlockSize {
		panic("bdev: buffer is not one block wide")
	}
}

func checkID(id, count uint64) {
	if id >= count {
		panic("bdev: block id out of range")
	}
}
