// Package compress implements compressed-stream transcoding for input
// and output files: gzip, bzip2, and magic-byte detection.
package compress

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// Type identifies a compression codec.
type Type int

const (
	None Type = iota
	Gzip
	Bzip
	// Detect resolves to one of the concrete types by probing the
	// stream's leading bytes. Only valid for seekable input.
	Detect
)

// Parse maps a configuration value to a Type. Single-letter shorthands
// match the CLI flags.
func Parse(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "g", "gzip":
		return Gzip, nil
	case "b", "bzip", "bzip2":
		return Bzip, nil
	case "d", "detect":
		return Detect, nil
	}
	return None, fmt.Errorf("unknown compression format %q: gzip, bzip, detect are supported", s)
}

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Bzip:
		return "bzip"
	case Detect:
		return "detect"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Extension returns the filename suffix appended to compressed output
// files. Detect has no extension: it must be resolved before any file
// is named.
func (t Type) Extension() string {
	switch t {
	case Gzip:
		return ".gz"
	case Bzip:
		return ".bz2"
	case Detect:
		panic("compress: no filename extension for detect")
	}
	return ""
}

var (
	gzipMagic = [2]byte{0x1f, 0x8b}
	bzipMagic = [2]byte{'B', 'Z'}
)

// DetectType probes the first two bytes of r for a known compression
// magic number and rewinds the stream to its start, so the read
// position is unaffected whatever the outcome. Streams shorter than the
// probe are plain.
func DetectType(r io.ReadSeeker) (Type, error) {
	var magic [2]byte
	n, err := io.ReadFull(r, magic[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return None, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return None, err
	}
	if n < len(magic) {
		return None, nil
	}
	switch magic {
	case gzipMagic:
		return Gzip, nil
	case bzipMagic:
		return Bzip, nil
	}
	return None, nil
}

// NewReader wraps r with a decoder for the given type. Detect must be
// resolved first.
func NewReader(r io.Reader, t Type) (io.ReadCloser, error) {
	switch t {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Bzip:
		return bzip2.NewReader(r, nil)
	}
	return nil, fmt.Errorf("cannot open reader for compression type %s", t)
}

// NewWriter wraps w with an encoder for the given type. Closing the
// returned writer flushes the encoder but does not close w.
func NewWriter(w io.Writer, t Type) (io.WriteCloser, error) {
	switch t {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Bzip:
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	}
	return nil, fmt.Errorf("cannot open writer for compression type %s", t)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Stream is a decoded input stream. Close releases the decoder and the
// underlying file.
type Stream struct {
	io.Reader
	closers []io.Closer
}

func (s *Stream) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenInput opens path and wraps it with the requested decoder,
// resolving Detect against the file's leading bytes. It returns the
// stream and the resolved type.
func OpenInput(path string, t Type) (*Stream, Type, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, None, fmt.Errorf("could not open file %q: %w", path, err)
	}
	if t == Detect {
		if t, err = DetectType(f); err != nil {
			f.Close()
			return nil, None, fmt.Errorf("could not probe %q: %w", path, err)
		}
	}
	rc, err := NewReader(f, t)
	if err != nil {
		f.Close()
		return nil, None, fmt.Errorf("could not decode %q: %w", path, err)
	}
	return &Stream{Reader: rc, closers: []io.Closer{rc, f}}, t, nil
}

// OpenStdin wraps standard input with the requested decoder. Detect is
// not supported on a non-seekable stream.
func OpenStdin(t Type) (*Stream, error) {
	if t == Detect {
		return nil, errors.New("detect compression requires a seekable input file")
	}
	rc, err := NewReader(os.Stdin, t)
	if err != nil {
		return nil, err
	}
	return &Stream{Reader: rc, closers: []io.Closer{rc}}, nil
}
