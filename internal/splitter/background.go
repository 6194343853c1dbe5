package splitter

import (
	"slices"
	"sync"

	apperrors "github.com/jittakal/csvsplit/internal/errors"
)

// BackgroundWriter decouples the producer from file I/O: records are
// handed over a bounded channel to a single consumer goroutine feeding
// a SplitWriter. The channel capacity is the backpressure bound; a full
// channel blocks the producer rather than growing memory. Close flushes
// every queued record before returning, so no record is dropped on
// shutdown.
type BackgroundWriter struct {
	ch   chan []string
	done chan struct{}
	w    *SplitWriter

	mu     sync.Mutex
	err    error
	closed bool
}

// NewBackgroundWriter starts the consumer goroutine over w. depth is
// the channel capacity.
func NewBackgroundWriter(w *SplitWriter, depth int) *BackgroundWriter {
	b := &BackgroundWriter{
		ch:   make(chan []string, depth),
		done: make(chan struct{}),
		w:    w,
	}
	go b.loop()
	return b
}

func (b *BackgroundWriter) loop() {
	defer close(b.done)
	for row := range b.ch {
		if b.loadErr() != nil {
			continue
		}
		if err := b.w.WriteRecord(row); err != nil {
			b.storeErr(err)
		}
	}
}

func (b *BackgroundWriter) loadErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *BackgroundWriter) storeErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
}

// WriteRecord queues one record for the background writer, blocking
// when the channel is full. The row is copied; the caller may reuse its
// slice. A write failure in the consumer surfaces on the next call or
// at Close.
func (b *BackgroundWriter) WriteRecord(row []string) error {
	if b.closed {
		return apperrors.ErrWriterClosed
	}
	if err := b.loadErr(); err != nil {
		return err
	}
	b.ch <- slices.Clone(row)
	return nil
}

// WriteHeader forwards the header row to the underlying writer. Must be
// called before the first WriteRecord.
func (b *BackgroundWriter) WriteHeader(hdr []string) error {
	return b.w.WriteHeader(hdr)
}

// Close stops accepting records, waits for the consumer to drain the
// channel, and closes the underlying writer.
func (b *BackgroundWriter) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.ch)
	<-b.done
	cerr := b.w.Close()
	if err := b.loadErr(); err != nil {
		return err
	}
	return cerr
}
