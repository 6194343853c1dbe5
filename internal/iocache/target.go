package iocache

import (
	"errors"
	"os"

	apperrors "github.com/jittakal/csvsplit/internal/errors"
)

// Target is one open output file with its descriptor and append offset.
// The offset only ever advances, by exactly the length of each span
// submitted against the target, applied at submission time.
type Target struct {
	path   string
	file   *os.File
	fd     int
	offset int64
}

func createTarget(path string) (*Target, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &apperrors.WriteError{Op: "create", Path: path, Err: err}
	}
	return &Target{path: path, file: f, fd: int(f.Fd())}, nil
}

// Path returns the target's file path.
func (t *Target) Path() string { return t.path }

// Offset returns the current append offset.
func (t *Target) Offset() int64 { return t.offset }

// targetSeq is the append-only history of targets created by rotation.
// Only the last element is active; superseded targets are never written
// to again, but their descriptors stay open until Close so in-flight
// writes against them remain valid.
type targetSeq struct {
	targets []*Target
}

func (s *targetSeq) active() *Target {
	return s.targets[len(s.targets)-1]
}

func (s *targetSeq) next(path string) (*Target, error) {
	t, err := createTarget(path)
	if err != nil {
		return nil, err
	}
	s.targets = append(s.targets, t)
	return t, nil
}

func (s *targetSeq) closeAll() error {
	var errs []error
	for _, t := range s.targets {
		if err := t.file.Close(); err != nil {
			errs = append(errs, &apperrors.WriteError{Op: "close", Path: t.path, Err: err})
		}
	}
	return errors.Join(errs...)
}
