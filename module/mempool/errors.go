package mempool

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Admission failures. Every rejection returned by Pool.Submit is a
// RejectedError wrapping one of these.
var (
	// validation
	ErrFeeTooLow = errors.New("fee below minimum")
	// resource exhaustion
	ErrPoolFull          = errors.New("pool full and fee does not exceed the lowest pending fee")
	ErrPoolBytesExceeded = errors.New("pool byte budget exceeded")
	ErrRateLimited       = errors.New("sender rate limited")
	// authorization and behavior
	ErrSenderGated  = errors.New("sender behavior score below floor")
	ErrSenderBanned = errors.New("sender banned")
	// duplicates
	ErrAlreadyExists = errors.New("transaction already pending")
	ErrReplay        = errors.New("transaction already included in a block")
)

var reasons = map[error]string{
	ErrFeeTooLow:         "fee_too_low",
	ErrPoolFull:          "pool_full",
	ErrPoolBytesExceeded: "bytes_exceeded",
	ErrRateLimited:       "rate_limited",
	ErrSenderGated:       "sender_gated",
	ErrSenderBanned:      "sender_banned",
	ErrAlreadyExists:     "duplicate",
	ErrReplay:            "replay",
}

// RejectedError is returned for a transaction the pool refused to admit.
// Rejections are never retried by the pool.
type RejectedError struct {
	TxID   uuid.UUID
	Reason string
	Err    error
}

func newRejectedError(txID uuid.UUID, err error) RejectedError {
	return RejectedError{TxID: txID, Reason: reasons[err], Err: err}
}

func (e RejectedError) Error() string {
	return fmt.Sprintf("transaction %v rejected: %v", e.TxID, e.Err)
}

func (e RejectedError) Unwrap() error { return e.Err }

func IsRejectedError(err error) bool {
	var e RejectedError
	return errors.As(err, &e)
}
