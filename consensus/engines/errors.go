package engines

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/garpnet/consensus-core/model/chain"
)

var (
	// ErrUnknownProposal is returned when a vote or query references a proposal the engine never saw.
	ErrUnknownProposal = errors.New("unknown proposal")
	// ErrDuplicateProposal is returned when a proposal with the same ID was already submitted.
	ErrDuplicateProposal = errors.New("duplicate proposal")
	// ErrProposalClosed is returned for votes on a proposal whose outcome is already decided.
	ErrProposalClosed = errors.New("proposal already decided")
)

// UnknownTypeError is returned when an algorithm name or value is not one of the enumerated types.
type UnknownTypeError struct {
	Name string
}

func (e UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown consensus algorithm %q", e.Name)
}

func IsUnknownTypeError(err error) bool {
	var e UnknownTypeError
	return errors.As(err, &e)
}

// InvalidProposalError indicates a structurally invalid proposal.
type InvalidProposalError struct {
	ProposalID uuid.UUID
	Err        error
}

func NewInvalidProposalErrorf(proposalID uuid.UUID, msg string, args ...interface{}) error {
	return InvalidProposalError{
		ProposalID: proposalID,
		Err:        fmt.Errorf(msg, args...),
	}
}

func (e InvalidProposalError) Error() string {
	return fmt.Sprintf("invalid proposal %v: %s", e.ProposalID, e.Err.Error())
}

func (e InvalidProposalError) Unwrap() error { return e.Err }

func IsInvalidProposalError(err error) bool {
	var e InvalidProposalError
	return errors.As(err, &e)
}

// IneligibleVoterError indicates a vote from a participant that may not vote on the proposal.
type IneligibleVoterError struct {
	ProposalID uuid.UUID
	Voter      chain.ParticipantID
}

func (e IneligibleVoterError) Error() string {
	return fmt.Sprintf("participant %s is not eligible to vote on proposal %v", e.Voter, e.ProposalID)
}

func IsIneligibleVoterError(err error) bool {
	var e IneligibleVoterError
	return errors.As(err, &e)
}

// InvalidParamsError indicates consensus parameters that cannot be used to construct an engine.
type InvalidParamsError struct {
	err error
}

func NewInvalidParamsErrorf(msg string, args ...interface{}) error {
	return InvalidParamsError{err: fmt.Errorf(msg, args...)}
}

func (e InvalidParamsError) Error() string { return e.err.Error() }
func (e InvalidParamsError) Unwrap() error { return e.err }

func IsInvalidParamsError(err error) bool {
	var e InvalidParamsError
	return errors.As(err, &e)
}
