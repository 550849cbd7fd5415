// Package engines implements the pluggable consensus algorithms behind one
// shared contract. Every algorithm tracks the same proposal and vote records
// and differs only in its policy: how many votes are required, who proposes
// in a given view, who may vote and when a proposal is decided.
package engines

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/garpnet/consensus-core/consensus/timing"
	"github.com/garpnet/consensus-core/model/chain"
)

// Engine is the contract shared by all consensus algorithms. Implementations
// are safe for concurrent use.
type Engine interface {
	Type() Type
	// Params returns a copy of the parameters the engine was built with.
	Params() Params
	// Participant is the identity of the local node.
	Participant() chain.ParticipantID

	// AddValidator inserts or updates a validator with the given voting power.
	AddValidator(id chain.ParticipantID, power uint64)
	RemoveValidator(id chain.ParticipantID)
	// Validators returns the validator set ordered by ID.
	Validators() []timing.WeightedParticipant
	TotalWeight() uint64
	// RequiredVotes is the number of votes the algorithm needs for a decision
	// given the current validator set.
	RequiredVotes() uint64
	// Viable returns true if the validator set is large enough for the
	// algorithm to make progress under its fault assumptions.
	Viable() bool
	// Proposer returns the participant expected to propose in the view.
	// Leaderless algorithms return false.
	Proposer(view uint64) (chain.ParticipantID, bool)

	// SubmitProposal starts tracking a proposal.
	// Expected errors:
	//   - InvalidProposalError if the proposal is malformed
	//   - ErrDuplicateProposal if a proposal with the same ID is tracked
	SubmitProposal(p Proposal) error
	// CastVote records a vote and re-evaluates the proposal outcome.
	// Expected errors:
	//   - ErrUnknownProposal if the proposal is not tracked
	//   - ErrProposalClosed if the outcome is already decided
	//   - IneligibleVoterError if the voter may not vote on the proposal
	CastVote(v Vote) error
	// Result returns the current state of a proposal.
	// Expected errors:
	//   - ErrUnknownProposal if the proposal is not tracked
	Result(proposalID uuid.UUID) (Result, error)
	// ExpireProposals marks every pending proposal whose expiry is before now
	// as timed out and returns their results.
	ExpireProposals(now time.Time) []Result
}

// Option configures an engine at construction.
type Option func(*engine)

// WithClock sets the time source used for proposal expiry.
func WithClock(now func() time.Time) Option {
	return func(e *engine) {
		e.now = now
	}
}

// New constructs a fresh engine of the given algorithm with an empty
// validator set and no tracked proposals.
// Expected errors:
//   - UnknownTypeError if t is not an enumerated algorithm
//   - InvalidParamsError if params are inconsistent
func New(log zerolog.Logger, t Type, participant chain.ParticipantID, params Params, opts ...Option) (Engine, error) {
	var p policy
	switch t {
	case Tendermint, HotStuff, PBFT, HoneyBadgerBFT:
		p = bftPolicy{algorithm: t}
	case Streamlet:
		p = streamletPolicy{}
	case Raft:
		p = raftPolicy{}
	case ProofOfStakeholder:
		p = stakeholderPolicy{}
	default:
		return nil, UnknownTypeError{Name: t.String()}
	}
	params.Algorithm = t
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return newEngine(log, t, participant, params, p, opts...), nil
}
