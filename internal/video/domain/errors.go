package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound video or object missing
	ErrNotFound = errors.New("not found")
	// ErrNotReady video exists but is not processed
	ErrNotReady = errors.New("video not ready")
	// ErrNoVariants processed video without renditions
	ErrNoVariants = fmt.Errorf("no variants: %w", ErrNotFound)
	// ErrNotRetryable retry requested for a video that is not failed
	ErrNotRetryable = errors.New("video is not in failed status")
	// ErrInvalidTransition transition not in the status table
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransientError store or transport temporarily unavailable, retried in place
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wrap err as retryable, nil stays nil
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient report whether err carries a TransientError
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// ExecutionError transcoding engine failed or timed out
type ExecutionError struct {
	Step     string
	Args     []string
	Output   string
	TimedOut bool
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s: engine timed out: %v", e.Step, e.Err)
	}
	out := e.Output
	if len(out) > 512 {
		out = out[len(out)-512:]
	}
	if out == "" {
		return fmt.Sprintf("%s: engine failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: engine failed: %v: %s", e.Step, e.Err, out)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
