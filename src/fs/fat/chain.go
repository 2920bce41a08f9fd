package fat

/// Chain is a file's or directory's cluster chain: the ordered list of
/// data clusters its contents live in (spec.md §4.8 "Chains"). Grounded
/// on original_source's Chain, with MAX_LEN's guard against runaway
/// growth dropped: the core treats a full volume as fatal (allocCluster
/// panics), so there is no path that would grow a chain without bound.
type Chain struct {
	fs      *FS_t
	clusters []uint32
}

func rootChain(f *FS_t) *Chain {
	return &Chain{fs: f, clusters: f.getChain(f.dbr.Root)}
}

func newChain(f *FS_t, clusters []uint32) *Chain {
	return &Chain{fs: f, clusters: clusters}
}

func (c *Chain) clusterSize() int { return int(c.fs.dbr.ClstSize) }

func (c *Chain) firstCluster() uint32 {
	if len(c.clusters) == 0 {
		return 0
	}
	return c.clusters[0]
}

/// Read fills buf starting at byte offset offset within the chain,
/// spanning clusters as needed, and returns the number of bytes actually
/// read: fewer than len(buf) once the chain runs out (spec.md §4.8
/// "Chains").
func (c *Chain) Read(offset int, buf []byte) int {
	idx := offset / c.clusterSize()
	if idx >= len(c.clusters) {
		return 0
	}
	coff := uint32(offset % c.clusterSize())
	read := c.fs.readCluster(c.clusters[idx], coff, buf)
	for read < len(buf) {
		idx++
		if idx >= len(c.clusters) {
			return read
		}
		read += c.fs.readCluster(c.clusters[idx], 0, buf[read:])
	}
	return read
}

/// Write stores buf starting at byte offset offset, allocating new
/// clusters onto the end of the chain as needed to reach offset or to
/// hold the tail of buf (spec.md §4.8 "Chains").
func (c *Chain) Write(offset int, buf []byte) int {
	for offset/c.clusterSize() >= len(c.clusters) {
		if len(c.clusters) == 0 {
			c.clusters = append(c.clusters, c.fs.allocCluster())
		} else {
			c.clusters = append(c.clusters, c.fs.appendChain(c.clusters[len(c.clusters)-1]))
		}
	}
	idx := offset / c.clusterSize()
	coff := uint32(offset % c.clusterSize())
	written := c.fs.writeCluster(c.clusters[idx], coff, buf)
	for written < len(buf) {
		idx++
		if idx >= len(c.clusters) {
			c.clusters = append(c.clusters, c.fs.appendChain(c.clusters[len(c.clusters)-1]))
		}
		written += c.fs.writeCluster(c.clusters[idx], 0, buf[written:])
	}
	return written
}

/// Truncate drops every cluster past the first n, freeing them (spec.md
/// §4.8 "truncate_chain").
func (c *Chain) Truncate(n int) {
	if len(c.clusters) > n {
		if n > 0 {
			c.fs.truncateChain(c.clusters[n-1])
		} else {
			c.fs.clearChain(c.clusters[0])
		}
		c.clusters = c.clusters[:n]
	}
}
