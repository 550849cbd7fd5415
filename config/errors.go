package config

import (
	"errors"
	"fmt"
)

// InvalidConfigError indicates that the configuration violates one or more
// constraints. The wrapped error lists every violation.
type InvalidConfigError struct {
	err error
}

func NewInvalidConfigError(err error) InvalidConfigError {
	return InvalidConfigError{err: err}
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.err)
}

func (e InvalidConfigError) Unwrap() error {
	return e.err
}

// IsInvalidConfigError returns true if err is or wraps an InvalidConfigError.
func IsInvalidConfigError(err error) bool {
	var e InvalidConfigError
	return errors.As(err, &e)
}
