package iocache

import (
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/jittakal/csvsplit/internal/errors"
)

// MetricsCollector defines metrics operations for the buffer cache.
type MetricsCollector interface {
	SetFreeBuffers(n int)
	SetInFlightWrites(n int)
	AddBytesSubmitted(n int)
	ObserveDrainStall(seconds float64)
	IncWriteRetries()
	IncWriteErrors()
}

// Options configures a Cache.
type Options struct {
	// QueueDepth is the I/O concurrency limit. It bounds the buffer
	// population and the number of writes in flight. Minimum 2: one
	// buffer held by the driver, at least one free or in flight.
	QueueDepth int
	// BufferSize is the capacity of each buffer in bytes.
	BufferSize int
	Logger     *slog.Logger
	Metrics    MetricsCollector
}

// Cache composes the buffer pool, the pending-write table, the
// submission/completion engine, and the target sequence into the engine
// the split driver drives. A single control thread calls all methods;
// asynchrony comes from the kernel, observed only through Pop, Drain,
// and Close.
//
// At all times free buffers + writes in flight + the one buffer held by
// the driver equal QueueDepth.
type Cache struct {
	pool     *Pool
	pending  pendingTable
	eng      engine
	targets  targetSeq
	nextID   uint64
	inFlight int
	depth    int
	closed   bool
	logger   *slog.Logger
	metrics  MetricsCollector
}

// New creates a cache writing to path as its first target. On Linux the
// engine is backed by io_uring; if ring setup fails (seccomp, old
// kernel), it falls back to the portable goroutine backend.
func New(path string, opts Options) (*Cache, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	eng, err := newEngine(opts.QueueDepth)
	if err != nil {
		opts.Logger.Warn("io_uring unavailable, using portable write backend", "error", err)
		eng = newPortableEngine(opts.QueueDepth)
	}
	return newCache(eng, path, opts)
}

func newCache(eng engine, path string, opts Options) (*Cache, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	c := &Cache{
		pool:    NewPool(opts.QueueDepth, opts.BufferSize),
		pending: make(pendingTable),
		eng:     eng,
		nextID:  1,
		depth:   opts.QueueDepth,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if _, err := c.targets.next(path); err != nil {
		eng.close()
		return nil, err
	}
	c.logger.Debug("buffer cache created",
		"path", path,
		"queue_depth", opts.QueueDepth,
		"buffer_size", opts.BufferSize,
	)
	return c, nil
}

// Pop returns a free buffer. If the pool is empty it first drains every
// outstanding write to replenish it. This is the engine's sole blocking
// point.
func (c *Cache) Pop() (*Buffer, error) {
	if c.pool.Empty() {
		if c.inFlight == 0 {
			panic("iocache: no free buffers and no writes in flight")
		}
		if err := c.Drain(); err != nil {
			return nil, err
		}
	}
	b := c.pool.Pop()
	if c.metrics != nil {
		c.metrics.SetFreeBuffers(c.pool.Len())
	}
	return b, nil
}

// Submit hands the buffer's written span to the kernel against the
// active target. The target's offset advances by the span length at
// submission time; with every write carrying its absolute offset, byte
// placement does not depend on completion order. Ownership of the buffer
// moves to the pending-write table until its completion is consumed.
// Submit does not block.
func (c *Cache) Submit(b *Buffer) (uint64, error) {
	t := c.targets.active()
	span := b.Bytes()
	id := c.nextID
	if err := c.eng.submit(t, span, t.offset, id); err != nil {
		return 0, &apperrors.WriteError{Op: "submit", Path: t.path, Err: err}
	}
	c.nextID++
	c.pending.insert(id, &pendingWrite{buf: b, target: t, span: span, off: t.offset})
	t.offset += int64(len(span))
	c.inFlight++
	if c.metrics != nil {
		c.metrics.SetInFlightWrites(c.inFlight)
		c.metrics.AddBytesSubmitted(len(span))
	}
	return id, nil
}

// SubmitAndPop submits the buffer and returns a fresh one, blocking on
// completions if the pool is empty.
func (c *Cache) SubmitAndPop(b *Buffer) (*Buffer, error) {
	if _, err := c.Submit(b); err != nil {
		return nil, err
	}
	return c.Pop()
}

// Rotate appends a new target and makes it active. Subsequent
// submissions go to the new file at offset zero. Writes still in flight
// against superseded targets complete normally.
func (c *Cache) Rotate(path string) error {
	if _, err := c.targets.next(path); err != nil {
		return err
	}
	c.logger.Debug("rotated output target", "path", path, "targets", len(c.targets.targets))
	return nil
}

// Drain is the full-barrier reclaim: if any write is outstanding it
// blocks until every one of them completes, returning each buffer to
// the pool. The coarse barrier trades a larger worst-case stall for a
// trivial liveness argument; QueueDepth bounds the stall granularity.
func (c *Cache) Drain() error {
	if c.inFlight == 0 {
		return nil
	}
	start := time.Now()
	for c.inFlight > 0 {
		comp := c.eng.wait()
		c.inFlight--
		pw := c.pending.remove(comp.id)
		if err := c.finish(comp, pw); err != nil {
			return err
		}
	}
	if c.metrics != nil {
		c.metrics.ObserveDrainStall(time.Since(start).Seconds())
		c.metrics.SetInFlightWrites(0)
		c.metrics.SetFreeBuffers(c.pool.Len())
	}
	return nil
}

// finish consumes one completion. Successful writes return their buffer
// to the pool cursor-reset. A short write or a retryable kernel error
// gets one resubmission of the unwritten tail; anything else is fatal.
func (c *Cache) finish(comp completion, pw *pendingWrite) error {
	if comp.err != nil {
		werr := &apperrors.WriteError{Op: "write", Path: pw.target.path, Err: comp.err}
		if werr.IsRetryable() && !pw.retried {
			c.logger.Warn("retrying failed write", "path", pw.target.path, "error", comp.err)
			return c.resubmit(pw, pw.span, pw.off)
		}
		if c.metrics != nil {
			c.metrics.IncWriteErrors()
		}
		return werr
	}
	if comp.n < len(pw.span) {
		if !pw.retried {
			c.logger.Warn("short write, resubmitting tail",
				"path", pw.target.path,
				"written", comp.n,
				"span", len(pw.span),
			)
			return c.resubmit(pw, pw.span[comp.n:], pw.off+int64(comp.n))
		}
		if c.metrics != nil {
			c.metrics.IncWriteErrors()
		}
		return &apperrors.WriteError{Op: "write", Path: pw.target.path, Err: apperrors.ErrShortWrite}
	}
	pw.buf.Reset()
	c.pool.Push(pw.buf)
	return nil
}

func (c *Cache) resubmit(pw *pendingWrite, tail []byte, off int64) error {
	id := c.nextID
	if err := c.eng.submit(pw.target, tail, off, id); err != nil {
		return &apperrors.WriteError{Op: "submit", Path: pw.target.path, Err: err}
	}
	c.nextID++
	c.pending.insert(id, &pendingWrite{
		buf:     pw.buf,
		target:  pw.target,
		span:    tail,
		off:     off,
		retried: true,
	})
	c.inFlight++
	if c.metrics != nil {
		c.metrics.IncWriteRetries()
	}
	return nil
}

// Free returns the number of free buffers.
func (c *Cache) Free() int { return c.pool.Len() }

// InFlight returns the number of outstanding writes.
func (c *Cache) InFlight() int { return c.inFlight }

// Depth returns the concurrency limit.
func (c *Cache) Depth() int { return c.depth }

// ActivePath returns the path of the active target.
func (c *Cache) ActivePath() string { return c.targets.active().path }

// Close drains all outstanding writes, shuts down the engine, and
// closes every target. Further calls return nil.
func (c *Cache) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	derr := c.Drain()
	return errors.Join(derr, c.eng.close(), c.targets.closeAll())
}
