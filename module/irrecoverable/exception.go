package irrecoverable

import (
	"errors"
	"fmt"
)

// exception wraps an error that represents a broken internal invariant. It
// must never be treated as a benign, expected error by callers.
type exception struct {
	err error
}

func (e exception) Error() string {
	return e.err.Error()
}

func (e exception) Unwrap() error {
	return e.err
}

// NewException wraps err into an exception.
func NewException(err error) error {
	return exception{err: err}
}

// NewExceptionf is a convenience for NewException(fmt.Errorf(msg, args...)).
func NewExceptionf(msg string, args ...interface{}) error {
	return NewException(fmt.Errorf(msg, args...))
}

// IsException returns true if err is, or wraps, an exception.
func IsException(err error) bool {
	var e exception
	return errors.As(err, &e)
}
