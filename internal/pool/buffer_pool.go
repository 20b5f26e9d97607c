package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// maxRetainedBuffer caps the capacity of buffers returned to the pool so a
// single large asset does not pin memory for the life of the process.
const maxRetainedBuffer = 8 << 20

// BufferPool hands out reusable byte buffers for asset downloads.
type BufferPool struct {
	pool sync.Pool

	gets      atomic.Int64
	news      atomic.Int64
	discarded atomic.Int64
}

// NewBufferPool creates a buffer pool whose fresh buffers start at initSize bytes.
func NewBufferPool(initSize int) *BufferPool {
	p := &BufferPool{}
	p.pool.New = func() any {
		p.news.Add(1)
		return bytes.NewBuffer(make([]byte, 0, initSize))
	}
	return p
}

// Get retrieves an empty buffer.
func (p *BufferPool) Get() *bytes.Buffer {
	p.gets.Add(1)
	return p.pool.Get().(*bytes.Buffer)
}

// Put resets b and returns it to the pool. Oversized buffers are dropped.
func (p *BufferPool) Put(b *bytes.Buffer) {
	if b == nil {
		return
	}
	if b.Cap() > maxRetainedBuffer {
		p.discarded.Add(1)
		return
	}
	b.Reset()
	p.pool.Put(b)
}

// BufferStats contains buffer pool statistics.
type BufferStats struct {
	Gets      int64 `json:"gets"`
	News      int64 `json:"news"`
	Discarded int64 `json:"discarded"`
}

// Stats returns pool statistics.
func (p *BufferPool) Stats() BufferStats {
	return BufferStats{
		Gets:      p.gets.Load(),
		News:      p.news.Load(),
		Discarded: p.discarded.Load(),
	}
}

// HitRate returns the fraction of Get calls served by a recycled buffer.
func (s BufferStats) HitRate() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Gets-s.News) / float64(s.Gets)
}
