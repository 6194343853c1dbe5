// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Sentinel errors for common conditions.
var (
	// ErrRecordTooLarge means a single record cannot fit an empty
	// buffer. This is a misconfiguration (buffer size too small for the
	// data), not a transient fault.
	ErrRecordTooLarge = errors.New("record exceeds buffer capacity")

	// ErrShortWrite means the kernel reported fewer bytes written than
	// submitted after the bounded retry was exhausted.
	ErrShortWrite = io.ErrShortWrite

	// ErrWriterClosed means a record was offered to a closed writer.
	ErrWriterClosed = errors.New("split writer is closed")
)

// WriteError represents a failed output operation: creating a target,
// submitting a write, or a kernel-reported completion error.
type WriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write error: op=%s path=%s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsRetryable classifies a WriteError. Transient conditions (interrupted
// or would-block writes, short writes) merit one resubmission; resource
// exhaustion and permission failures do not.
func (e *WriteError) IsRetryable() bool {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.EINTR:
			return true
		}
		return false
	}
	return errors.Is(e.Err, io.ErrShortWrite)
}

// Retryable defines an interface for errors that can indicate if they
// are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// TriggerError represents a failed trigger command. Triggers run after
// the finished file is already on disk, so these are reported but never
// abort the pipeline.
type TriggerError struct {
	Command string
	Output  string
	Err     error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("trigger error: command=%q: %v", e.Command, e.Err)
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}
