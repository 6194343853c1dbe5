package iocache

import "fmt"

// pendingWrite records one buffer in flight to the kernel: the buffer it
// owns until the completion is consumed, and the write descriptor needed
// to resubmit the unwritten tail after a retryable failure.
type pendingWrite struct {
	buf     *Buffer
	target  *Target
	span    []byte
	off     int64
	retried bool
}

// pendingTable maps in-flight request ids to the writes that own their
// buffers. Only the single control thread mutates it. An id collision or
// a completion for an unknown id indicates an engine bug and panics.
type pendingTable map[uint64]*pendingWrite

func (t pendingTable) insert(id uint64, pw *pendingWrite) {
	if _, ok := t[id]; ok {
		panic(fmt.Sprintf("iocache: duplicate write id %d", id))
	}
	t[id] = pw
}

func (t pendingTable) remove(id uint64) *pendingWrite {
	pw, ok := t[id]
	if !ok {
		panic(fmt.Sprintf("iocache: completion for unknown write id %d", id))
	}
	delete(t, id)
	return pw
}
