package iocache

// Pool is a bounded free list of buffers, sized to the engine's queue
// depth. The buffer population is fixed at construction; the pool only
// shrinks on Pop and grows back on Push. LIFO order keeps recently
// completed buffers warm.
type Pool struct {
	free []*Buffer
}

// NewPool allocates count buffers of size bytes each.
func NewPool(count, size int) *Pool {
	p := &Pool{free: make([]*Buffer, 0, count)}
	for i := 0; i < count; i++ {
		p.free = append(p.free, NewBuffer(size))
	}
	return p
}

// Len returns the number of free buffers.
func (p *Pool) Len() int { return len(p.free) }

// Empty reports whether the pool has no free buffers.
func (p *Pool) Empty() bool { return len(p.free) == 0 }

// Pop removes and returns a buffer. Popping an empty pool is an engine
// bug: the cache drains completions before calling Pop.
func (p *Pool) Pop() *Buffer {
	if len(p.free) == 0 {
		panic("iocache: pop from empty buffer pool")
	}
	b := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return b
}

// Push returns a buffer to the pool.
func (p *Pool) Push(b *Buffer) {
	p.free = append(p.free, b)
}
