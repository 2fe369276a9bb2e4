// Package memory provides a general power-of-two []byte bucket cache.
// The engine's own task, awaitable and timer allocations do not go through
// it; they use ordinary Go allocation. Each bucket is backed by a sync.Pool, which is
// already Go's idiomatic per-P reusable-allocation cache — reimplementing
// true thread-local buckets by hand would fight the runtime rather than
// use it.
package memory

import "sync"

// BucketCache hands out []byte buffers rounded up to the next power-of-two
// size, reusing freed buffers up to a configured byte budget per bucket.
// Buffers returned beyond the budget fall through to the garbage collector
// instead of being retained.
type BucketCache struct {
	limitBytes int64
	buckets    []*bucket
}

type bucket struct {
	size     int
	pool     sync.Pool
	mu       sync.Mutex
	heldByte int64
	limit    int64
}

// smallestBucket and largestBucket bound the power-of-two ladder: 64B up
// to 1MiB, without wasting memory on tiny allocations or needing
// unbounded bucket growth.
const (
	smallestBucketShift = 6  // 64
	largestBucketShift  = 20 // 1 << 20 = 1MiB
)

// NewBucketCache constructs a cache whose buckets share a total byte
// budget limitBytes, split evenly across the power-of-two ladder.
func NewBucketCache(limitBytes int64) *BucketCache {
	n := largestBucketShift - smallestBucketShift + 1
	perBucket := limitBytes / int64(n)

	c := &BucketCache{limitBytes: limitBytes}
	for shift := smallestBucketShift; shift <= largestBucketShift; shift++ {
		size := 1 << shift
		b := &bucket{size: size, limit: perBucket}
		b.pool.New = func() any {
			buf := make([]byte, size)
			return &buf
		}
		c.buckets = append(c.buckets, b)
	}
	return c
}

// Get returns a buffer of at least n bytes, rounded up to the nearest
// bucket size. Buffers larger than the ladder's top bucket bypass the
// cache entirely and are allocated directly.
func (c *BucketCache) Get(n int) []byte {
	b := c.bucketFor(n)
	if b == nil {
		return make([]byte, n)
	}
	buf := b.pool.Get().(*[]byte)

	// Best-effort accounting: if heldByte is already at least one
	// bucket's worth, this Get is satisfying from a buffer a prior Put
	// accounted for, so release that budget back. If heldByte is zero,
	// sync.Pool must have invoked New instead, which was never counted
	// against the budget, so there is nothing to release.
	b.mu.Lock()
	if b.heldByte >= int64(b.size) {
		b.heldByte -= int64(b.size)
	}
	b.mu.Unlock()

	return (*buf)[:n]
}

// Put returns buf to its bucket if the bucket is under its byte budget,
// otherwise drops it for the garbage collector to reclaim.
func (c *BucketCache) Put(buf []byte) {
	b := c.bucketFor(cap(buf))
	if b == nil {
		return
	}
	full := buf[:cap(buf)]

	b.mu.Lock()
	if b.heldByte+int64(b.size) > b.limit {
		b.mu.Unlock()
		return
	}
	b.heldByte += int64(b.size)
	b.mu.Unlock()

	b.pool.Put(&full)
}

func (c *BucketCache) bucketFor(n int) *bucket {
	for _, b := range c.buckets {
		if b.size >= n {
			return b
		}
	}
	return nil
}
