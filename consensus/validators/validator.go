package validators

import (
	"fmt"
	"sort"
	"time"

	"github.com/garpnet/consensus-core/model/chain"
)

// Status is the participation state of a validator.
type Status int

const (
	Active Status = iota
	Inactive
	// Jailed is entered only as a consequence of slashing and is only left
	// through an explicit Unjail.
	Jailed
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case Jailed:
		return "jailed"
	default:
		return fmt.Sprintf("unknown_status(%d)", int(s))
	}
}

// Reputation bounds.
const (
	MinReputation     = 0
	MaxReputation     = 100
	DefaultReputation = 50
)

// MaxBasisPoints is 100% expressed in basis points.
const MaxBasisPoints = 10_000

// Delegation is the stake a single delegator bonded to a validator.
type Delegation struct {
	Amount       uint64
	DelegatedAt  time.Time
	Rewards      uint64
	LastRewardAt time.Time
}

// SlashingRecord documents one applied penalty. Records are append-only.
type SlashingRecord struct {
	Kind       EvidenceKind
	PenaltyBps uint32
	Reason     string
	Timestamp  time.Time
}

// Validator is a consensus participant whose stake gives it voting power.
//
// VotingPower always equals SelfBonded + TotalDelegated, and TotalDelegated
// always equals the sum over Delegations.
type Validator struct {
	ID            chain.ParticipantID
	PublicKey     []byte
	SelfBonded    uint64
	CommissionBps uint32

	TotalDelegated uint64
	VotingPower    uint64
	Delegations    map[chain.ParticipantID]Delegation

	Status     Status
	Reputation uint32

	SuccessfulProposals uint64
	FailedProposals     uint64
	MissedVotes         uint64
	SlashingHistory     []SlashingRecord

	// Rewards accrued by the validator itself: its commission plus whatever
	// share no delegator claimed.
	Rewards uint64

	JoinedAt time.Time
	LastSeen time.Time
}

// NewValidator returns an active validator with the default reputation and no delegations.
func NewValidator(id chain.ParticipantID, publicKey []byte, selfBonded uint64, commissionBps uint32, now time.Time) Validator {
	return Validator{
		ID:            id,
		PublicKey:     publicKey,
		SelfBonded:    selfBonded,
		CommissionBps: commissionBps,
		VotingPower:   selfBonded,
		Delegations:   make(map[chain.ParticipantID]Delegation),
		Status:        Active,
		Reputation:    DefaultReputation,
		JoinedAt:      now,
		LastSeen:      now,
	}
}

// Counters returns the inputs of the reputation score.
func (v *Validator) Counters() Counters {
	return Counters{
		Successes: v.SuccessfulProposals,
		Failures:  v.FailedProposals,
		Misses:    v.MissedVotes,
		Slashes:   uint64(len(v.SlashingHistory)),
	}
}

// Delegators returns the delegator identities in lexicographic order.
func (v *Validator) Delegators() []chain.ParticipantID {
	ids := make([]chain.ParticipantID, 0, len(v.Delegations))
	for id := range v.Delegations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Copy returns a deep copy, so that callers never alias registry state.
func (v *Validator) Copy() *Validator {
	dup := *v
	dup.PublicKey = append([]byte(nil), v.PublicKey...)
	dup.Delegations = make(map[chain.ParticipantID]Delegation, len(v.Delegations))
	for id, d := range v.Delegations {
		dup.Delegations[id] = d
	}
	dup.SlashingHistory = append([]SlashingRecord(nil), v.SlashingHistory...)
	return &dup
}
