// Package iocache implements the asynchronous buffer-cache write
// engine: a fixed pool of reusable encode buffers, a direct record
// encoder that serializes rows straight into them, and a
// submission/completion protocol that hands buffer ownership to the
// kernel and reclaims it only after the write is observed complete.
//
// # Ownership protocol
//
// A Buffer's backing memory is shared with the kernel while a write is
// in flight, so exactly one component owns it at any time:
//
//   - the split driver, while encoding rows into it,
//   - the pending-write table, from Submit until its completion is
//     consumed,
//   - the pool, while free.
//
// The population is fixed at construction: free + in flight + the one
// buffer held by the driver always equals the queue depth, so memory
// use is bounded regardless of input size.
//
// # Driving the cache
//
//	cache, err := iocache.New(path, iocache.Options{
//	    QueueDepth: 8,
//	    BufferSize: 1 << 20,
//	})
//
//	buf, err := cache.Pop()
//	for each record {
//	    if iocache.MaxEncodedSize(row) > buf.Remaining() {
//	        buf, err = cache.SubmitAndPop(buf)
//	    }
//	    buf.WriteRow(row)
//	}
//	cache.Submit(buf)
//	cache.Close()
//
// Pop is the sole blocking point: with the pool empty it waits until
// every outstanding write completes (full-barrier reclaim) before
// reusing any buffer. Rotate makes a new file the active target;
// superseded targets are never written to again.
//
// # Backends
//
// On Linux writes go through io_uring; the written span is handed to
// the kernel zero-copy and reclaimed on completion. Elsewhere, or when
// ring setup fails, a portable goroutine backend provides the same
// submit/wait protocol with positioned writes.
package iocache
