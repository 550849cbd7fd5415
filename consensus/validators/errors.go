package validators

import (
	"errors"
	"fmt"

	"github.com/garpnet/consensus-core/model/chain"
)

var (
	ErrValidatorExists  = errors.New("validator already exists")
	ErrNoDelegation     = errors.New("no delegation found")
	ErrNoUnbonding      = errors.New("no unbonding request found")
	ErrUnbondingPending = errors.New("unbonding period not completed")
)

// UnknownValidatorError is returned when an operation references a validator
// the registry does not know.
type UnknownValidatorError struct {
	ID chain.ParticipantID
}

func (e UnknownValidatorError) Error() string {
	return fmt.Sprintf("unknown validator %s", e.ID)
}

func IsUnknownValidatorError(err error) bool {
	var e UnknownValidatorError
	return errors.As(err, &e)
}

// InvalidStakeError indicates a stake amount that violates staking rules, such
// as a self-bond below the minimum or an undelegation above the delegated amount.
type InvalidStakeError struct {
	err error
}

func NewInvalidStakeErrorf(msg string, args ...interface{}) error {
	return InvalidStakeError{fmt.Errorf(msg, args...)}
}

func (e InvalidStakeError) Error() string { return e.err.Error() }
func (e InvalidStakeError) Unwrap() error { return e.err }

func IsInvalidStakeError(err error) bool {
	var e InvalidStakeError
	return errors.As(err, &e)
}

// InvalidValidatorError indicates a malformed validator record or parameter.
type InvalidValidatorError struct {
	err error
}

func NewInvalidValidatorErrorf(msg string, args ...interface{}) error {
	return InvalidValidatorError{fmt.Errorf(msg, args...)}
}

func (e InvalidValidatorError) Error() string { return e.err.Error() }
func (e InvalidValidatorError) Unwrap() error { return e.err }

func IsInvalidValidatorError(err error) bool {
	var e InvalidValidatorError
	return errors.As(err, &e)
}

// InvalidStatusTransitionError is returned when a status change would enter or
// leave the jailed state outside of slashing and unjailing.
type InvalidStatusTransitionError struct {
	ID   chain.ParticipantID
	From Status
	To   Status
}

func (e InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("validator %s cannot transition from %s to %s", e.ID, e.From, e.To)
}

func IsInvalidStatusTransitionError(err error) bool {
	var e InvalidStatusTransitionError
	return errors.As(err, &e)
}

// InvalidEvidenceError is returned for evidence that is malformed or too old.
type InvalidEvidenceError struct {
	Reason string
}

func (e InvalidEvidenceError) Error() string {
	return fmt.Sprintf("invalid evidence: %s", e.Reason)
}

func IsInvalidEvidenceError(err error) bool {
	var e InvalidEvidenceError
	return errors.As(err, &e)
}
