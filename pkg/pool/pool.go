// Package pool provides type-safe object pooling for cubeconv.
//
// Readback payloads and encode buffers are large and short-lived: one payload
// per stream per frame lives from ring eviction until its write task
// finishes. Pooling them keeps steady-state conversion free of large
// allocations.
//
// The package provides:
//   - Generic type-safe object pooling with Pool[T]
//   - Byte buffer pooling with size-based buckets (BufferPool)
//   - Statistics for monitoring pool efficiency
//
// Example usage:
//
//	buffers := pool.NewBufferPool(width * height * 3)
//	payload := buffers.Get(width * height * 3)
//	defer buffers.Put(payload)
//	copy(*payload, pixels)
package pool

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and an optional reset
// function. The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The reset function, if any, is called before an object re-enters the pool.
//
// Example:
//
//	buffers := New(
//	    func() *bytes.Buffer { return new(bytes.Buffer) },
//	    func(b *bytes.Buffer) { b.Reset() },
//	)
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object from the pool, creating one if the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() Stats {
	allocated := atomic.LoadInt64(&p.stats.allocated)
	gets := atomic.LoadInt64(&p.stats.gets)
	hits := gets - allocated
	if hits < 0 {
		hits = 0
	}
	return Stats{
		Allocated: allocated,
		InUse:     atomic.LoadInt64(&p.stats.inUse),
		Hits:      hits,
		Misses:    allocated,
	}
}

// Stats represents pool statistics for monitoring and optimization.
type Stats struct {
	// Allocated is the total number of objects created by the pool
	Allocated int64 `json:"allocated"`
	// InUse is the current number of objects checked out from the pool
	InUse int64 `json:"in_use"`
	// Hits is the number of Get calls served by a recycled object
	Hits int64 `json:"hits"`
	// Misses is the number of times a new object had to be created
	Misses int64 `json:"misses"`
}

// defaultSizes are the power-of-4 buckets from 512B to 16MB.
var defaultSizes = []int{
	512,      // 512B
	2048,     // 2KB
	8192,     // 8KB
	32768,    // 32KB
	131072,   // 128KB
	524288,   // 512KB
	2097152,  // 2MB
	8388608,  // 8MB
	16777216, // 16MB
}

// BufferPool manages byte buffer pooling with size-based buckets.
// Requests are served from the smallest bucket that fits; larger requests
// are allocated directly and dropped on Put. Buffers travel as *[]byte so
// that Put does not allocate.
type BufferPool struct {
	pools []*Pool[*[]byte]
	sizes []int
}

// NewBufferPool creates a buffer pool with the default buckets plus an
// exact bucket for every size in exact. Image payloads have a handful of
// fixed sizes per run, so registering them avoids rounding up to the next
// power of four.
func NewBufferPool(exact ...int) *BufferPool {
	seen := make(map[int]bool, len(defaultSizes)+len(exact))
	sizes := make([]int, 0, len(defaultSizes)+len(exact))
	for _, s := range append(append([]int(nil), defaultSizes...), exact...) {
		if s <= 0 || seen[s] {
			continue
		}
		seen[s] = true
		sizes = append(sizes, s)
	}
	sort.Ints(sizes)

	pools := make([]*Pool[*[]byte], len(sizes))
	for i, size := range sizes {
		size := size
		pools[i] = New(func() *[]byte {
			buf := make([]byte, size)
			return &buf
		}, nil)
	}

	return &BufferPool{
		pools: pools,
		sizes: sizes,
	}
}

// Get returns a buffer of length size. Its capacity may be larger and its
// contents are not zeroed.
func (p *BufferPool) Get(size int) *[]byte {
	i := sort.SearchInts(p.sizes, size)
	if i < len(p.sizes) {
		buf := p.pools[i].Get()
		*buf = (*buf)[:size]
		return buf
	}

	// Fallback to allocation for very large buffers
	buf := make([]byte, size)
	return &buf
}

// Put returns a buffer to the bucket matching its capacity. Buffers that
// match no bucket are left to the garbage collector.
func (p *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	size := cap(*buf)
	i := sort.SearchInts(p.sizes, size)
	if i < len(p.sizes) && p.sizes[i] == size {
		*buf = (*buf)[:size]
		p.pools[i].Put(buf)
	}
}

// Stats sums the statistics of every bucket.
func (p *BufferPool) Stats() Stats {
	var total Stats
	for _, b := range p.pools {
		s := b.Stats()
		total.Allocated += s.Allocated
		total.InUse += s.InUse
		total.Hits += s.Hits
		total.Misses += s.Misses
	}
	return total
}
