package engines

import (
	"time"

	"github.com/google/uuid"

	"github.com/garpnet/consensus-core/model/chain"
)

// Proposal is a request to agree on a set of transactions.
type Proposal struct {
	ID           uuid.UUID
	Proposer     chain.ParticipantID
	Transactions []uuid.UUID
	// Stakeholders restricts voting to the listed participants. Only the
	// proof-of-stakeholder algorithm uses it.
	Stakeholders []chain.ParticipantID
	CreatedAt    time.Time
	// ExpiresAt is derived from Params.ProposalTimeout when zero.
	ExpiresAt time.Time
}

type VoteType int

const (
	Approve VoteType = iota + 1
	Reject
	Abstain
)

func (v VoteType) String() string {
	switch v {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	case Abstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// Vote is a participant's decision on a proposal. A later vote by the same
// voter replaces the earlier one while the proposal is pending.
type Vote struct {
	ProposalID uuid.UUID
	Voter      chain.ParticipantID
	Type       VoteType
	Reason     string
	Timestamp  time.Time
}

type Outcome int

const (
	Pending Outcome = iota
	Approved
	Rejected
	Timeout
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Decided returns true for every outcome except Pending.
func (o Outcome) Decided() bool {
	return o != Pending
}

// Result is the state of a proposal as seen by one engine.
type Result struct {
	ProposalID uuid.UUID
	Outcome    Outcome
	Votes      []Vote
	// DecidedAt is zero while the proposal is pending.
	DecidedAt time.Time
}
