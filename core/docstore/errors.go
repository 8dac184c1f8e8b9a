package docstore

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound           = errors.New("document not found")
	ErrBackendUnavailable = errors.New("document store unavailable")
)

// BackendError is returned when the store is unreachable or rejects an operation.
// It matches ErrBackendUnavailable with errors.Is.
type BackendError struct {
	Op         string
	Collection string
	Err        error
}

func NewBackendError(op, collection string, err error) error {
	return &BackendError{Op: op, Collection: collection, Err: err}
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("docstore %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackendUnavailable }

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnavailable reports whether err is, or wraps, a backend failure.
func IsUnavailable(err error) bool { return errors.Is(err, ErrBackendUnavailable) }
