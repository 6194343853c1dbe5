package splitter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/jittakal/csvsplit/internal/compress"
	apperrors "github.com/jittakal/csvsplit/internal/errors"
	"github.com/jittakal/csvsplit/internal/iocache"
)

// RecordReader yields one field-delimited record per call and io.EOF at
// end of input. *csv.Reader satisfies it.
type RecordReader interface {
	Read() ([]string, error)
}

// MetricsCollector defines metrics operations for the splitters.
type MetricsCollector interface {
	IncRowsWritten()
	IncFilesWritten()
	ObserveFileRows(rows int)
	IncTriggerRuns(status string)
}

// Config holds the rotation policy shared by the split drivers.
type Config struct {
	// Dir is the output directory, Base the input basename the output
	// names derive from.
	Dir  string
	Base string
	// MaxRows is the row-count rotation threshold. With a grouping
	// column configured a file can exceed it rather than split a group.
	MaxRows int
	// GroupColumn is the zero-based column whose equal consecutive
	// values must stay in one file; -1 disables grouping. The input
	// must already be sorted by this column.
	GroupColumn int
	// Header re-emits the first input row at the top of every file.
	Header bool
	// SuffixLen is the width of the zero-padded sequence number.
	SuffixLen int
	// Trigger is a shell command template executed after each finished
	// file ({}, {/}, {rows} substituted).
	Trigger string
}

// Driver iterates the input record stream and drives the buffer cache:
// it encodes records into the buffer it holds, flushes the buffer when
// capacity runs out, and rotates to a new target when the row threshold
// is reached at a group boundary.
//
// Buffer flushes and file rotation are decoupled: a capacity-triggered
// flush submits against the current target, so a bounded buffer never
// forces a group to split across files.
type Driver struct {
	cache   *iocache.Cache
	cfg     Config
	logger  *slog.Logger
	metrics MetricsCollector

	onFile  int
	onRow   int
	lastKey string
	haveKey bool
	header  []string
}

// NewDriver creates a driver over an already-constructed cache. The
// cache's first target must be FilePath(1).
func NewDriver(cache *iocache.Cache, cfg Config, logger *slog.Logger, metrics MetricsCollector) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{cache: cache, cfg: cfg, logger: logger, metrics: metrics, onFile: 1}
}

// FilePath returns the output path of file n. The async engine writes
// raw spans, so the name never carries a compression suffix.
func (d *Driver) FilePath(n int) string {
	return Name(d.cfg.Dir, d.cfg.Base, n, d.cfg.SuffixLen, compress.None)
}

// Run consumes the record stream until EOF or context cancellation,
// then submits any partial buffer, waits for every outstanding write,
// and fires the trigger for the final file.
func (d *Driver) Run(ctx context.Context, src RecordReader) error {
	buf, err := d.cache.Pop()
	if err != nil {
		return err
	}

	if d.cfg.Header {
		hdr, err := src.Read()
		if err == io.EOF {
			return d.finish(buf)
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		d.header = slices.Clone(hdr)
		if need := iocache.MaxEncodedSize(d.header); need > buf.Cap() {
			return fmt.Errorf("%w: header needs up to %d bytes, buffer capacity is %d",
				apperrors.ErrRecordTooLarge, need, buf.Cap())
		}
		buf.WriteRow(d.header)
	}

	for {
		if err := ctx.Err(); err != nil {
			ferr := d.finish(buf)
			if ferr != nil {
				return ferr
			}
			return err
		}
		row, err := src.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if buf, err = d.writeRow(buf, row); err != nil {
			return err
		}
	}
	return d.finish(buf)
}

// writeRow applies the rotation policy for one record and encodes it.
func (d *Driver) writeRow(buf *iocache.Buffer, row []string) (*iocache.Buffer, error) {
	var err error
	if d.onRow >= d.cfg.MaxRows && !d.inGroup(row) {
		if buf, err = d.rotate(buf); err != nil {
			return nil, err
		}
	}
	d.rememberKey(row)
	if buf, err = d.admit(buf, row); err != nil {
		return nil, err
	}
	buf.WriteRow(row)
	d.onRow++
	if d.metrics != nil {
		d.metrics.IncRowsWritten()
	}
	return buf, nil
}

// inGroup reports whether row continues the run keyed by the previous
// record. Rotation waits for a run boundary, so a run is never split
// across targets.
func (d *Driver) inGroup(row []string) bool {
	if d.cfg.GroupColumn < 0 || !d.haveKey {
		return false
	}
	return d.cfg.GroupColumn < len(row) && row[d.cfg.GroupColumn] == d.lastKey
}

func (d *Driver) rememberKey(row []string) {
	if d.cfg.GroupColumn < 0 {
		return
	}
	if d.cfg.GroupColumn < len(row) {
		d.lastKey = row[d.cfg.GroupColumn]
		d.haveKey = true
	} else {
		d.haveKey = false
	}
}

// admit guarantees the unchecked-encoder precondition: if the worst-case
// encoded size of row does not fit the buffer's remaining capacity, the
// buffer is submitted against the current target and a fresh one popped.
// A record that cannot fit even an empty buffer is a configuration
// error.
func (d *Driver) admit(buf *iocache.Buffer, row []string) (*iocache.Buffer, error) {
	need := iocache.MaxEncodedSize(row)
	if need <= buf.Remaining() {
		return buf, nil
	}
	if need > buf.Cap() {
		return nil, fmt.Errorf("%w: record needs up to %d bytes, buffer capacity is %d",
			apperrors.ErrRecordTooLarge, need, buf.Cap())
	}
	return d.cache.SubmitAndPop(buf)
}

// rotate finishes the current file and makes the next one active. The
// partial buffer is submitted against the finished target first; the
// trigger only runs once every write against that target has completed.
func (d *Driver) rotate(buf *iocache.Buffer) (*iocache.Buffer, error) {
	finished := d.FilePath(d.onFile)
	finishedRows := d.onRow

	var err error
	if buf.Len() > 0 {
		if buf, err = d.cache.SubmitAndPop(buf); err != nil {
			return nil, err
		}
	}

	d.onFile++
	d.onRow = 0
	if err := d.cache.Rotate(d.FilePath(d.onFile)); err != nil {
		return nil, err
	}
	d.logger.Info("rotated output file", "finished", finished, "rows", finishedRows, "next", d.FilePath(d.onFile))
	if d.metrics != nil {
		d.metrics.IncFilesWritten()
		d.metrics.ObserveFileRows(finishedRows)
	}

	if d.cfg.Trigger != "" {
		if err := d.cache.Drain(); err != nil {
			return nil, err
		}
		fireTrigger(d.cfg.Trigger, finished, finishedRows, d.logger, d.metrics)
	}

	if d.header != nil {
		buf.WriteRow(d.header)
	}
	return buf, nil
}

// finish submits the active buffer's remaining bytes, waits for every
// outstanding write, and fires the trigger for the final file. No
// further rotation happens.
func (d *Driver) finish(buf *iocache.Buffer) error {
	if buf.Len() > 0 {
		if _, err := d.cache.Submit(buf); err != nil {
			return err
		}
	}
	if err := d.cache.Drain(); err != nil {
		return err
	}
	if d.onRow > 0 || d.header != nil {
		if d.metrics != nil {
			d.metrics.IncFilesWritten()
			d.metrics.ObserveFileRows(d.onRow)
		}
		fireTrigger(d.cfg.Trigger, d.FilePath(d.onFile), d.onRow, d.logger, d.metrics)
	}
	return nil
}

// Rows returns the number of records written so far.
func (d *Driver) Rows() int { return d.onRow }

// Files returns the sequence number of the active file.
func (d *Driver) Files() int { return d.onFile }
