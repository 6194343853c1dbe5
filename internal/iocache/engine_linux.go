//go:build linux

package iocache

import (
	"github.com/iceber/iouring-go"
)

// uringEngine submits writes to the kernel through io_uring. The written
// span is handed to the kernel zero-copy: the iovec points directly at
// the buffer's backing storage, which the pending-write table keeps
// owned until the completion is consumed.
type uringEngine struct {
	ring    *iouring.IOURing
	results chan iouring.Result
}

func newEngine(depth int) (engine, error) {
	ring, err := iouring.New(uint(depth))
	if err != nil {
		return nil, err
	}
	return &uringEngine{
		ring:    ring,
		results: make(chan iouring.Result, depth),
	}, nil
}

func (e *uringEngine) submit(t *Target, span []byte, off int64, id uint64) error {
	prep := iouring.Pwrite(t.fd, span, uint64(off)).WithInfo(id)
	_, err := e.ring.SubmitRequest(prep, e.results)
	return err
}

func (e *uringEngine) wait() completion {
	res := <-e.results
	id := res.GetRequestInfo().(uint64)
	n, err := res.ReturnInt()
	if err != nil {
		return completion{id: id, err: err}
	}
	return completion{id: id, n: n}
}

func (e *uringEngine) close() error {
	return e.ring.Close()
}
