package splitter

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/jittakal/csvsplit/internal/compress"
	apperrors "github.com/jittakal/csvsplit/internal/errors"
)

// WriterConfig configures the synchronous split writer.
type WriterConfig struct {
	Config
	// Compression encodes each output file as it is written.
	Compression compress.Type
}

// SplitWriter is the buffered synchronous splitting path: records go
// through encoding/csv into an optional compressing encoder. It applies
// the same rotation policy as the async driver and enforces strict
// group atomicity; a file can exceed MaxRows while a group straddles
// the threshold.
type SplitWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics MetricsCollector

	file    *os.File
	enc     io.WriteCloser
	w       *csv.Writer
	onFile  int
	onRow   int
	lastKey string
	haveKey bool
	header  []string
	closed  bool
}

// NewSplitWriter creates the writer and opens the first output file.
func NewSplitWriter(cfg WriterConfig, logger *slog.Logger, metrics MetricsCollector) (*SplitWriter, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &SplitWriter{cfg: cfg, logger: logger, metrics: metrics, onFile: 1}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *SplitWriter) path(n int) string {
	return Name(w.cfg.Dir, w.cfg.Base, n, w.cfg.SuffixLen, w.cfg.Compression)
}

func (w *SplitWriter) open() error {
	path := w.path(w.onFile)
	file, err := os.Create(path)
	if err != nil {
		return &apperrors.WriteError{Op: "create", Path: path, Err: err}
	}
	enc, err := compress.NewWriter(file, w.cfg.Compression)
	if err != nil {
		file.Close()
		return &apperrors.WriteError{Op: "create", Path: path, Err: err}
	}
	w.file = file
	w.enc = enc
	w.w = csv.NewWriter(enc)
	return nil
}

// closeFile flushes the csv writer and the encoder and closes the file.
func (w *SplitWriter) closeFile() error {
	path := w.path(w.onFile)
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return &apperrors.WriteError{Op: "write", Path: path, Err: err}
	}
	if err := w.enc.Close(); err != nil {
		return &apperrors.WriteError{Op: "write", Path: path, Err: err}
	}
	if err := w.file.Close(); err != nil {
		return &apperrors.WriteError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// WriteHeader stores the header row, writes it to the current file, and
// re-emits it at the top of every subsequent file. Header rows do not
// count toward MaxRows.
func (w *SplitWriter) WriteHeader(hdr []string) error {
	if w.closed {
		return apperrors.ErrWriterClosed
	}
	w.header = slices.Clone(hdr)
	return w.w.Write(w.header)
}

// WriteRecord applies the rotation policy and writes one record.
func (w *SplitWriter) WriteRecord(row []string) error {
	if w.closed {
		return apperrors.ErrWriterClosed
	}
	if w.onRow >= w.cfg.MaxRows && !w.inGroup(row) {
		if err := w.split(); err != nil {
			return err
		}
	}
	w.rememberKey(row)
	w.onRow++
	if err := w.w.Write(row); err != nil {
		return &apperrors.WriteError{Op: "write", Path: w.path(w.onFile), Err: err}
	}
	if w.metrics != nil {
		w.metrics.IncRowsWritten()
	}
	return nil
}

func (w *SplitWriter) inGroup(row []string) bool {
	if w.cfg.GroupColumn < 0 || !w.haveKey {
		return false
	}
	return w.cfg.GroupColumn < len(row) && row[w.cfg.GroupColumn] == w.lastKey
}

func (w *SplitWriter) rememberKey(row []string) {
	if w.cfg.GroupColumn < 0 {
		return
	}
	if w.cfg.GroupColumn < len(row) {
		w.lastKey = row[w.cfg.GroupColumn]
		w.haveKey = true
	} else {
		w.haveKey = false
	}
}

// split finishes the current file, fires its trigger, and opens the
// next one, re-emitting the header when configured.
func (w *SplitWriter) split() error {
	finished := w.path(w.onFile)
	finishedRows := w.onRow

	if err := w.closeFile(); err != nil {
		return err
	}
	w.logger.Info("rotated output file", "finished", finished, "rows", finishedRows)
	if w.metrics != nil {
		w.metrics.IncFilesWritten()
		w.metrics.ObserveFileRows(finishedRows)
	}
	fireTrigger(w.cfg.Trigger, finished, finishedRows, w.logger, w.metrics)

	w.onFile++
	w.onRow = 0
	if err := w.open(); err != nil {
		return err
	}
	if w.header != nil {
		if err := w.w.Write(w.header); err != nil {
			return &apperrors.WriteError{Op: "write", Path: w.path(w.onFile), Err: err}
		}
	}
	return nil
}

// Close flushes and closes the current file and fires its trigger. No
// further file is opened.
func (w *SplitWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.closeFile(); err != nil {
		return err
	}
	if w.onRow > 0 || w.header != nil {
		if w.metrics != nil {
			w.metrics.IncFilesWritten()
			w.metrics.ObserveFileRows(w.onRow)
		}
		fireTrigger(w.cfg.Trigger, w.path(w.onFile), w.onRow, w.logger, w.metrics)
	}
	return nil
}

// Rows returns the number of records in the current file.
func (w *SplitWriter) Rows() int { return w.onRow }

// Files returns the sequence number of the current file.
func (w *SplitWriter) Files() int { return w.onFile }
