package engines

import (
	"math"
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/garpnet/consensus-core/consensus/timing"
	"github.com/garpnet/consensus-core/model/chain"
)

// validatorSet is an immutable snapshot of an engine's validators handed to policies.
type validatorSet struct {
	ids     []chain.ParticipantID
	weights map[chain.ParticipantID]uint64
	total   uint64
}

func (s validatorSet) size() uint64 {
	return uint64(len(s.ids))
}

func (s validatorSet) contains(id chain.ParticipantID) bool {
	_, ok := s.weights[id]
	return ok
}

func (s validatorSet) weighted() []timing.WeightedParticipant {
	out := make([]timing.WeightedParticipant, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, timing.WeightedParticipant{ID: id, Weight: s.weights[id]})
	}
	return out
}

// heaviest returns the validator with the greatest weight, ties going to the smallest ID.
func (s validatorSet) heaviest() (chain.ParticipantID, bool) {
	var best chain.ParticipantID
	found := false
	for _, id := range s.ids {
		if !found || s.weights[id] > s.weights[best] {
			best, found = id, true
		}
	}
	return best, found
}

// tracked is the engine-local state of one proposal.
type tracked struct {
	proposal  Proposal
	votes     map[chain.ParticipantID]Vote
	outcome   Outcome
	decidedAt time.Time
}

func (t *tracked) result() Result {
	voters := make([]chain.ParticipantID, 0, len(t.votes))
	for voter := range t.votes {
		voters = append(voters, voter)
	}
	sort.Slice(voters, func(i, j int) bool { return voters[i] < voters[j] })
	votes := make([]Vote, 0, len(voters))
	for _, voter := range voters {
		votes = append(votes, t.votes[voter])
	}
	return Result{
		ProposalID: t.proposal.ID,
		Outcome:    t.outcome,
		Votes:      votes,
		DecidedAt:  t.decidedAt,
	}
}

// engine implements Engine on top of an algorithm policy.
type engine struct {
	sync.RWMutex
	log         zerolog.Logger
	algorithm   Type
	participant chain.ParticipantID
	params      Params
	policy      policy
	now         func() time.Time
	weights     map[chain.ParticipantID]uint64
	proposals   map[uuid.UUID]*tracked
}

var _ Engine = (*engine)(nil)

func newEngine(log zerolog.Logger, t Type, participant chain.ParticipantID, params Params, p policy, opts ...Option) *engine {
	e := &engine{
		log: log.With().
			Str("component", "consensus_engine").
			Str("algorithm", t.String()).
			Logger(),
		algorithm:   t,
		participant: participant,
		params:      params,
		policy:      p,
		now:         time.Now,
		weights:     make(map[chain.ParticipantID]uint64),
		proposals:   make(map[uuid.UUID]*tracked),
	}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

func (e *engine) Type() Type {
	return e.algorithm
}

func (e *engine) Params() Params {
	return e.params
}

func (e *engine) Participant() chain.ParticipantID {
	return e.participant
}

func (e *engine) AddValidator(id chain.ParticipantID, power uint64) {
	e.Lock()
	defer e.Unlock()
	e.weights[id] = power
}

func (e *engine) RemoveValidator(id chain.ParticipantID) {
	e.Lock()
	defer e.Unlock()
	delete(e.weights, id)
}

func (e *engine) Validators() []timing.WeightedParticipant {
	e.RLock()
	defer e.RUnlock()
	return e.snapshotLocked().weighted()
}

func (e *engine) TotalWeight() uint64 {
	e.RLock()
	defer e.RUnlock()
	return e.snapshotLocked().total
}

func (e *engine) RequiredVotes() uint64 {
	e.RLock()
	defer e.RUnlock()
	return e.policy.requiredVotes(e.snapshotLocked(), e.params)
}

func (e *engine) Viable() bool {
	e.RLock()
	defer e.RUnlock()
	set := e.snapshotLocked()
	return set.size() >= uint64(e.params.MinValidators) && e.policy.viable(set, e.params)
}

func (e *engine) Proposer(view uint64) (chain.ParticipantID, bool) {
	e.RLock()
	defer e.RUnlock()
	return e.policy.proposer(view, e.snapshotLocked())
}

func (e *engine) SubmitProposal(p Proposal) error {
	if p.ID == uuid.Nil {
		return NewInvalidProposalErrorf(p.ID, "missing proposal ID")
	}
	if p.Proposer == "" {
		return NewInvalidProposalErrorf(p.ID, "missing proposer")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = e.now()
	}
	if p.ExpiresAt.IsZero() {
		p.ExpiresAt = p.CreatedAt.Add(e.params.ProposalTimeout)
	}
	if !p.ExpiresAt.After(p.CreatedAt) {
		return NewInvalidProposalErrorf(p.ID, "expiry %v is not after creation %v", p.ExpiresAt, p.CreatedAt)
	}
	if err := e.policy.validate(p); err != nil {
		return NewInvalidProposalErrorf(p.ID, "%w", err)
	}
	p.Transactions = append([]uuid.UUID(nil), p.Transactions...)
	p.Stakeholders = append([]chain.ParticipantID(nil), p.Stakeholders...)

	e.Lock()
	defer e.Unlock()

	if _, ok := e.proposals[p.ID]; ok {
		return ErrDuplicateProposal
	}
	e.proposals[p.ID] = &tracked{
		proposal: p,
		votes:    make(map[chain.ParticipantID]Vote),
	}

	e.log.Debug().
		Str("proposal_id", p.ID.String()).
		Str("proposer", p.Proposer.String()).
		Int("transactions", len(p.Transactions)).
		Time("expires_at", p.ExpiresAt).
		Msg("proposal submitted")
	return nil
}

func (e *engine) CastVote(v Vote) error {
	now := e.now()
	if v.Timestamp.IsZero() {
		v.Timestamp = now
	}

	e.Lock()
	defer e.Unlock()

	t, ok := e.proposals[v.ProposalID]
	if !ok {
		return ErrUnknownProposal
	}
	e.expireLocked(t, now)
	if t.outcome.Decided() {
		return ErrProposalClosed
	}
	set := e.snapshotLocked()
	if !e.policy.eligible(&t.proposal, v.Voter, set) {
		return IneligibleVoterError{ProposalID: v.ProposalID, Voter: v.Voter}
	}
	t.votes[v.Voter] = v

	outcome := e.policy.tally(&t.proposal, t.votes, set, e.params)
	if outcome.Decided() {
		t.outcome = outcome
		t.decidedAt = now
		e.log.Info().
			Str("proposal_id", v.ProposalID.String()).
			Str("outcome", outcome.String()).
			Int("votes", len(t.votes)).
			Msg("proposal decided")
	}
	return nil
}

func (e *engine) Result(proposalID uuid.UUID) (Result, error) {
	now := e.now()

	e.Lock()
	defer e.Unlock()

	t, ok := e.proposals[proposalID]
	if !ok {
		return Result{}, ErrUnknownProposal
	}
	e.expireLocked(t, now)
	return t.result(), nil
}

func (e *engine) ExpireProposals(now time.Time) []Result {
	e.Lock()
	defer e.Unlock()

	var expired []Result
	for _, t := range e.proposals {
		if e.expireLocked(t, now) {
			expired = append(expired, t.result())
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ProposalID.String() < expired[j].ProposalID.String()
	})
	return expired
}

// expireLocked times out a pending proposal past its expiry. Returns true if
// the proposal was timed out by this call.
func (e *engine) expireLocked(t *tracked, now time.Time) bool {
	if t.outcome.Decided() || !now.After(t.proposal.ExpiresAt) {
		return false
	}
	t.outcome = Timeout
	t.decidedAt = now
	e.log.Info().
		Str("proposal_id", t.proposal.ID.String()).
		Int("votes", len(t.votes)).
		Msg("proposal timed out")
	return true
}

func (e *engine) snapshotLocked() validatorSet {
	set := validatorSet{
		ids:     make([]chain.ParticipantID, 0, len(e.weights)),
		weights: make(map[chain.ParticipantID]uint64, len(e.weights)),
	}
	for id, w := range e.weights {
		set.ids = append(set.ids, id)
		set.weights[id] = w
		sum, carry := bits.Add64(set.total, w, 0)
		if carry != 0 {
			sum = math.MaxUint64
		}
		set.total = sum
	}
	sort.Slice(set.ids, func(i, j int) bool { return set.ids[i] < set.ids[j] })
	return set
}
