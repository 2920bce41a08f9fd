// Package fs is the VFS core: a bounded block cache above a bdev.Device,
// a mount table resolving absolute paths to the mounted filesystem that
// owns them, and the File/VFS base contracts each concrete filesystem
// (fs/fat, fs/devfs, fs/procfs) implements (spec.md §3 "Block cache
// entry", §4.7, §4.9).
package fs

import "container/list"
import "context"
import "sync"

import "golang.org/x/sync/semaphore"
import "golang.org/x/sync/singleflight"

import "bdev"
import "caller"
import "stats"

/// BSIZE is the fixed block width the cache and every filesystem above it
/// read and write in (spec.md §6's 512-byte block device contract).
const BSIZE = bdev.BlockSize

/// CacheSize bounds the number of blocks the cache holds at once (spec.md
/// §3 "the cache manager holds at most N entries (N=16)").
const CacheSize = 16

/// Block_t is one cached 512-byte buffer: owning block id, dirty flag, and
/// (via the Cache_t that produced it) an implicit reference to the
/// backing device. Grounded on the teacher's Bdev_block_t, narrowed from
/// a kernel-page-backed queued-request object down to a plain mutex-
/// guarded buffer matching spec.md §6's simpler per-call block contract.
type Block_t struct {
	sync.Mutex
	id    uint64
	Data  []byte
	dirty bool
	refs  int /// 1 = held only by the cache, not currently borrowed
}

/// ID returns the block's device-relative block number.
func (b *Block_t) ID() uint64 { return b.id }

/// MarkDirty flags the block as needing a flush before it may be evicted.
func (b *Block_t) MarkDirty() {
	b.Lock()
	b.dirty = true
	b.Unlock()
}

/// Cache_t is the bounded LRU-like block cache sitting above a
/// bdev.Device (spec.md §3 "Block cache entry", §4.7). Concurrent misses
/// on the same block id collapse into one device read via singleflight;
/// a weighted semaphore bounds how many device reads are in flight at
/// once, standing in for the teacher's per-block mutex plus disk queue.
type Cache_t struct {
	mu    sync.Mutex
	dev   bdev.Device
	sem   *semaphore.Weighted
	sf    singleflight.Group
	lru   *list.List // holds *Block_t, front = most recently used
	index map[uint64]*list.Element

	Hits   stats.Counter_t
	Misses stats.Counter_t
}

/// NewCache wraps dev in a bounded block cache.
func NewCache(dev bdev.Device) *Cache_t {
	return &Cache_t{
		dev:   dev,
		sem:   semaphore.NewWeighted(CacheSize),
		lru:   list.New(),
		index: make(map[uint64]*list.Element),
	}
}

func cacheKey(id uint64) string {
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = byte(id >> (8 * i))
	}
	return string(buf)
}

/// Get returns the cached block for id, reading it from the device on a
/// miss, and bumps its borrow count; the caller must Relse it when done.
func (c *Cache_t) Get(id uint64) *Block_t {
	if b := c.lookup(id); b != nil {
		c.Hits.Inc()
		return b
	}
	c.Misses.Inc()

	v, _, _ := c.sf.Do(cacheKey(id), func() (interface{}, error) {
		data := make([]byte, BSIZE)
		if err := c.sem.Acquire(context.Background(), 1); err != nil {
			panic(err)
		}
		defer c.sem.Release(1)
		c.dev.ReadBlock(id, data)
		return data, nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[id]; ok {
		// another Get raced us between the miss and the device read
		// landing; the singleflight call above still ran once, its
		// result is simply discarded here.
		c.lru.MoveToFront(el)
		b := el.Value.(*Block_t)
		b.Lock()
		b.refs++
		b.Unlock()
		return b
	}

	b := &Block_t{id: id, Data: v.([]byte), refs: 2}
	el := c.lru.PushFront(b)
	c.index[id] = el
	c.evictLocked()
	return b
}

func (c *Cache_t) lookup(id uint64) *Block_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[id]
	if !ok {
		return nil
	}
	c.lru.MoveToFront(el)
	b := el.Value.(*Block_t)
	b.Lock()
	b.refs++
	b.Unlock()
	return b
}

/// Relse releases one borrow of b, acquired from a prior Get.
func (c *Cache_t) Relse(b *Block_t) {
	b.Lock()
	b.refs--
	b.Unlock()
}

/// evictLocked must be called with c.mu held. It evicts the first
/// (oldest) entry whose reference count is 1 -- not currently borrowed
/// -- per spec.md §3. A cache entirely full of borrowed blocks is the
/// "block-cache starvation under pressure" fatal condition of spec.md §7.
func (c *Cache_t) evictLocked() {
	for c.lru.Len() > CacheSize {
		el := c.lru.Back()
		for el != nil {
			b := el.Value.(*Block_t)
			b.Lock()
			evictable := b.refs == 1
			b.Unlock()
			if evictable {
				break
			}
			el = el.Prev()
		}
		if el == nil {
			caller.Fatal("fs: block cache starvation, no evictable entry under pressure")
		}
		b := el.Value.(*Block_t)
		if b.dirty {
			c.dev.WriteBlock(b.id, b.Data)
		}
		c.lru.Remove(el)
		delete(c.index, b.id)
	}
}

/// Stats returns a printable hit/miss count when stats.Stats is enabled,
/// else the empty string.
func (c *Cache_t) Stats() string {
	return stats.Stats2String(struct {
		Hits   stats.Counter_t
		Misses stats.Counter_t
	}{c.Hits, c.Misses})
}

/// Sync flushes every dirty block currently cached, without evicting any
/// of them (used by an explicit fsync/sync syscall and before unmount).
func (c *Cache_t) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.lru.Front(); el != nil; el = el.Next() {
		b := el.Value.(*Block_t)
		b.Lock()
		if b.dirty {
			c.dev.WriteBlock(b.id, b.Data)
			b.dirty = false
		}
		b.Unlock()
	}
}
