package consensus

import (
	"errors"
	"fmt"

	"github.com/garpnet/consensus-core/model/chain"
)

var (
	// ErrUnknownBlock is returned for votes on blocks the participant has not seen.
	ErrUnknownBlock = errors.New("unknown block")
	// ErrNoValidators is returned when no active validator can lead a slot.
	ErrNoValidators = errors.New("no active validators")
)

// InvalidProposerError indicates that a block was proposed by a participant
// other than the leader of its slot.
type InvalidProposerError struct {
	Slot     uint64
	Expected chain.ParticipantID
	Actual   chain.ParticipantID
}

func (e InvalidProposerError) Error() string {
	return fmt.Sprintf("invalid proposer for slot %d: expected %s, got %s", e.Slot, e.Expected, e.Actual)
}

func IsInvalidProposerError(err error) bool {
	var e InvalidProposerError
	return errors.As(err, &e)
}

// InvalidBlockError indicates a structurally invalid block.
type InvalidBlockError struct {
	BlockID chain.Identifier
	err     error
}

func NewInvalidBlockErrorf(blockID chain.Identifier, msg string, args ...interface{}) error {
	return InvalidBlockError{BlockID: blockID, err: fmt.Errorf(msg, args...)}
}

func (e InvalidBlockError) Error() string {
	return fmt.Sprintf("invalid block %v: %s", e.BlockID, e.err)
}

func (e InvalidBlockError) Unwrap() error {
	return e.err
}

func IsInvalidBlockError(err error) bool {
	var e InvalidBlockError
	return errors.As(err, &e)
}

// InvalidVoteError indicates a vote with a bad signature or inconsistent content.
type InvalidVoteError struct {
	Voter chain.ParticipantID
	Slot  uint64
	err   error
}

func NewInvalidVoteErrorf(vote chain.Vote, msg string, args ...interface{}) error {
	return InvalidVoteError{Voter: vote.VoterID, Slot: vote.Slot, err: fmt.Errorf(msg, args...)}
}

func (e InvalidVoteError) Error() string {
	return fmt.Sprintf("invalid vote by %s for slot %d: %s", e.Voter, e.Slot, e.err)
}

func (e InvalidVoteError) Unwrap() error {
	return e.err
}

func IsInvalidVoteError(err error) bool {
	var e InvalidVoteError
	return errors.As(err, &e)
}
