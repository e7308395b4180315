package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound represents the error for the cases when some entity is not found.
	ErrNotFound = errors.New("not found")
	// ErrBadInput represents the error for the cases when the user input is invalid.
	ErrBadInput = errors.New("bad input")
	// ErrUnknownKind represents the error for the cases when the target kind has no registered adapter.
	ErrUnknownKind = errors.New("unknown target kind")
	// ErrConflict represents the error for the cases when an operation collides with the state of the target slot.
	ErrConflict = errors.New("conflicting deployment operation")
	// ErrNotResumable represents the error for the cases when the adapter no longer recognizes a stored handle.
	ErrNotResumable = errors.New("deployment is not resumable")
	// ErrCanceled represents the error for the cases when the deployment was canceled between the steps.
	ErrCanceled = errors.New("deployment canceled")
)

// BackendError classifies a backend failure as retryable or terminal.
type BackendError struct {
	Retryable bool
	Err       error
}

// Error returns the error message.
func (e BackendError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("transient backend error: %v", e.Err)
	}
	return fmt.Sprintf("permanent backend error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e BackendError) Unwrap() error {
	return e.Err
}

// Transient wraps the error as a retryable backend failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return BackendError{Retryable: true, Err: err}
}

// Permanent wraps the error as a terminal backend failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return BackendError{Retryable: false, Err: err}
}

// IsTransient reports whether the error allows retrying the same step.
func IsTransient(err error) bool {
	var be BackendError
	return errors.As(err, &be) && be.Retryable
}
