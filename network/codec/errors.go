package codec

import (
	"errors"
	"fmt"
)

// ErrInvalidEncoding is returned for data too short to carry a message code.
var ErrInvalidEncoding = errors.New("invalid encoding")

// UnknownCodeError is returned when the leading byte names no message type.
type UnknownCodeError struct {
	Code uint8
}

func (e UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown message code %d", e.Code)
}

func IsUnknownCodeError(err error) bool {
	var e UnknownCodeError
	return errors.As(err, &e)
}

// PayloadError is returned when a payload does not decode into the type its
// code announces.
type PayloadError struct {
	Code    uint8
	Message string
	Err     error
}

func (e PayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload (code %d): %v", e.Message, e.Code, e.Err)
}

func (e PayloadError) Unwrap() error {
	return e.Err
}

func IsPayloadError(err error) bool {
	var e PayloadError
	return errors.As(err, &e)
}
