package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolStats(t *testing.T) {
	resets := 0
	p := New(func() []int { return make([]int, 0, 4) }, func([]int) { resets++ })

	a := p.Get()
	b := p.Get()
	stats := p.Stats()
	assert.Equal(t, int64(2), stats.InUse)
	assert.Equal(t, int64(2), stats.Allocated)

	p.Put(a)
	p.Put(b)
	assert.Equal(t, 2, resets)
	assert.Equal(t, int64(0), p.Stats().InUse)
}

func TestBufferPoolBuckets(t *testing.T) {
	p := NewBufferPool(1000, 512, -1)

	tests := []struct {
		size    int
		wantCap int
	}{
		{1, 512},
		{512, 512},
		{513, 1000},
		{1000, 1000},
		{1001, 2048},
		{16777216, 16777216},
	}
	for _, tt := range tests {
		buf := p.Get(tt.size)
		assert.Len(t, *buf, tt.size)
		assert.Equal(t, tt.wantCap, cap(*buf), "size %d", tt.size)
		p.Put(buf)
	}

	huge := p.Get(16777217)
	assert.Len(t, *huge, 16777217)
	p.Put(huge)
	p.Put(nil)
}

func TestBufferPoolReusesBuffers(t *testing.T) {
	p := NewBufferPool(4096)

	for i := 0; i < 100; i++ {
		buf := p.Get(100)
		(*buf)[0] = byte(i)
		p.Put(buf)
	}

	stats := p.Stats()
	assert.Equal(t, int64(0), stats.InUse)
	assert.Less(t, stats.Allocated, int64(100))
	assert.Positive(t, stats.Hits)

	// A short Get does not shrink the pooled buffer
	buf := p.Get(4096)
	assert.Len(t, *buf, 4096)
	p.Put(buf)
}

func TestBufferPoolConcurrent(t *testing.T) {
	p := NewBufferPool(4096)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := p.Get(4096)
				(*buf)[0] = byte(i)
				p.Put(buf)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(0), p.Stats().InUse)
}
