package iocache

import "os"

// completion is the result of one finished write: the request id it was
// submitted under, the byte count reported by the kernel, and any error.
type completion struct {
	id  uint64
	n   int
	err error
}

// engine is the asynchronous write backend. submit issues one write of
// span against the target at the given absolute offset without blocking;
// wait blocks until one outstanding completion arrives. Every submitted
// id produces exactly one completion.
type engine interface {
	submit(t *Target, span []byte, off int64, id uint64) error
	wait() completion
	close() error
}

// portableEngine runs each write on its own goroutine with a positioned
// WriteAt and reports completions over a channel. It preserves the same
// ownership protocol as the io_uring backend and serves as the fallback
// where io_uring is unavailable.
type portableEngine struct {
	results chan completion
}

func newPortableEngine(depth int) *portableEngine {
	return &portableEngine{results: make(chan completion, depth)}
}

func (e *portableEngine) submit(t *Target, span []byte, off int64, id uint64) error {
	file := t.file
	go func() {
		n, err := file.WriteAt(span, off)
		if pe, ok := err.(*os.PathError); ok {
			err = pe.Err
		}
		e.results <- completion{id: id, n: n, err: err}
	}()
	return nil
}

func (e *portableEngine) wait() completion {
	return <-e.results
}

func (e *portableEngine) close() error { return nil }
