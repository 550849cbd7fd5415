package validators

import (
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module"
	"github.com/garpnet/consensus-core/module/irrecoverable"
)

// DefaultQuorumThousandths is the default supermajority, 66.7%.
const DefaultQuorumThousandths = 667

// Registry tracks stake, delegation, status and reputation for every known
// validator. It exclusively owns the validator records: all accessors return
// copies and all mutations go through its methods.
type Registry struct {
	sync.RWMutex
	log        zerolog.Logger
	metrics    module.ValidatorMetrics
	validators map[chain.ParticipantID]*Validator
	totalPower uint64
	quorum     uint64
	staking    StakingParams
	unbonding  []UnbondingRequest
	now        func() time.Time
}

type Option func(*Registry)

// WithQuorumThousandths sets the supermajority used by RequiredVotes.
func WithQuorumThousandths(quorum uint64) Option {
	return func(r *Registry) {
		r.quorum = quorum
	}
}

func WithStakingParams(params StakingParams) Option {
	return func(r *Registry) {
		r.staking = params
	}
}

// WithClock replaces the wall clock, used in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(log zerolog.Logger, collector module.ValidatorMetrics, opts ...Option) *Registry {
	r := &Registry{
		log:        log.With().Str("component", "validator_registry").Logger(),
		metrics:    collector,
		validators: make(map[chain.ParticipantID]*Validator),
		quorum:     DefaultQuorumThousandths,
		staking:    DefaultStakingParams(),
		now:        time.Now,
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

// Add registers a new validator. Voting power and the delegated total are
// recomputed from the record's self-bond and delegations.
// Expected errors during normal operations:
//   - ErrValidatorExists if a validator with the same identity is known
//   - InvalidValidatorError if the record is malformed
//   - InvalidStakeError if the self-bond is below the staking minimum
func (r *Registry) Add(v Validator) error {
	if v.ID == "" {
		return NewInvalidValidatorErrorf("validator identity must not be empty")
	}
	if v.CommissionBps > MaxBasisPoints {
		return NewInvalidValidatorErrorf("commission %d bp exceeds %d bp", v.CommissionBps, MaxBasisPoints)
	}
	if v.Status == Jailed {
		return NewInvalidValidatorErrorf("validator %s cannot join jailed", v.ID)
	}

	r.Lock()
	defer r.Unlock()

	if v.SelfBonded < r.staking.MinSelfBond {
		return NewInvalidStakeErrorf("self-bond %d below minimum %d", v.SelfBonded, r.staking.MinSelfBond)
	}
	if _, ok := r.validators[v.ID]; ok {
		return ErrValidatorExists
	}

	record := v.Copy()
	var delegated uint64
	for _, d := range record.Delegations {
		var carry uint64
		delegated, carry = bits.Add64(delegated, d.Amount, 0)
		if carry != 0 {
			return irrecoverable.NewExceptionf("delegations of validator %s overflow", v.ID)
		}
	}
	power, carry := bits.Add64(record.SelfBonded, delegated, 0)
	if carry != 0 {
		return irrecoverable.NewExceptionf("voting power of validator %s overflows", v.ID)
	}
	total, carry := bits.Add64(r.totalPower, power, 0)
	if carry != 0 {
		return irrecoverable.NewExceptionf("total voting power overflows when adding %s", v.ID)
	}
	record.TotalDelegated = delegated
	record.VotingPower = power
	if record.Reputation > MaxReputation {
		record.Reputation = MaxReputation
	}
	if record.JoinedAt.IsZero() {
		record.JoinedAt = r.now()
	}

	r.validators[v.ID] = record
	r.totalPower = total
	r.reportLocked()

	r.log.Info().
		Str("validator", v.ID.String()).
		Uint64("voting_power", power).
		Msg("validator added")
	return nil
}

// Remove drops a validator and all delegations to it.
// Expected errors during normal operations:
//   - UnknownValidatorError if the validator is not known
func (r *Registry) Remove(id chain.ParticipantID) error {
	r.Lock()
	defer r.Unlock()

	v, ok := r.validators[id]
	if !ok {
		return UnknownValidatorError{ID: id}
	}
	r.totalPower -= v.VotingPower
	delete(r.validators, id)
	r.reportLocked()

	r.log.Info().Str("validator", id.String()).Msg("validator removed")
	return nil
}

// UpdateStatus switches a validator between Active and Inactive. Jailing is
// reserved to ApplySlashing and releasing a jailed validator to Unjail.
// Expected errors during normal operations:
//   - UnknownValidatorError if the validator is not known
//   - InvalidStatusTransitionError if the change enters or leaves Jailed
func (r *Registry) UpdateStatus(id chain.ParticipantID, status Status) error {
	r.Lock()
	defer r.Unlock()

	v, ok := r.validators[id]
	if !ok {
		return UnknownValidatorError{ID: id}
	}
	if status == Jailed || (v.Status == Jailed && status != Jailed) {
		return InvalidStatusTransitionError{ID: id, From: v.Status, To: status}
	}
	v.Status = status
	r.reportLocked()
	return nil
}

// Unjail returns a jailed validator to Inactive. It is the explicit external
// action that ends a jailing.
func (r *Registry) Unjail(id chain.ParticipantID) error {
	r.Lock()
	defer r.Unlock()

	v, ok := r.validators[id]
	if !ok {
		return UnknownValidatorError{ID: id}
	}
	if v.Status != Jailed {
		return InvalidStatusTransitionError{ID: id, From: v.Status, To: Inactive}
	}
	v.Status = Inactive
	r.log.Info().Str("validator", id.String()).Msg("validator unjailed")
	return nil
}

// UpdateVotingPower overrides a validator's voting power. Delegations are kept,
// the self-bond absorbs the difference.
// Expected errors during normal operations:
//   - UnknownValidatorError if the validator is not known
//   - InvalidStakeError if power is below the delegated total
func (r *Registry) UpdateVotingPower(id chain.ParticipantID, power uint64) error {
	r.Lock()
	defer r.Unlock()

	v, ok := r.validators[id]
	if !ok {
		return UnknownValidatorError{ID: id}
	}
	if power < v.TotalDelegated {
		return NewInvalidStakeErrorf("voting power %d below delegated stake %d of validator %s", power, v.TotalDelegated, id)
	}
	total, carry := bits.Add64(r.totalPower-v.VotingPower, power, 0)
	if carry != 0 {
		return irrecoverable.NewExceptionf("total voting power overflows when setting power of %s", id)
	}
	v.SelfBonded = power - v.TotalDelegated
	v.VotingPower = power
	r.totalPower = total
	r.reportLocked()

	r.log.Info().
		Str("validator", id.String()).
		Uint64("voting_power", power).
		Msg("voting power overridden")
	return nil
}

// UpdateReputation sets the reputation, clamped to [MinReputation, MaxReputation].
func (r *Registry) UpdateReputation(id chain.ParticipantID, score int64) error {
	return r.mutate(id, func(v *Validator) {
		v.Reputation = clampReputation(score)
	})
}

// RecordSuccessfulProposal counts a finalized proposal and raises reputation
// by the success weight of the score.
func (r *Registry) RecordSuccessfulProposal(id chain.ParticipantID) error {
	return r.mutate(id, func(v *Validator) {
		v.SuccessfulProposals++
		v.Reputation = clampReputation(int64(v.Reputation) + successWeight)
	})
}

// RecordFailedProposal counts a failed proposal and lowers reputation by the
// failure weight of the score.
func (r *Registry) RecordFailedProposal(id chain.ParticipantID) error {
	return r.mutate(id, func(v *Validator) {
		v.FailedProposals++
		v.Reputation = clampReputation(int64(v.Reputation) - failureWeight)
	})
}

// RecordMissedVote counts a missed vote and lowers reputation by the miss weight.
func (r *Registry) RecordMissedVote(id chain.ParticipantID) error {
	return r.mutate(id, func(v *Validator) {
		v.MissedVotes++
		v.Reputation = clampReputation(int64(v.Reputation) - missWeight)
	})
}

func (r *Registry) mutate(id chain.ParticipantID, apply func(v *Validator)) error {
	r.Lock()
	defer r.Unlock()
	v, ok := r.validators[id]
	if !ok {
		return UnknownValidatorError{ID: id}
	}
	apply(v)
	v.LastSeen = r.now()
	return nil
}

// DelegateStake bonds amount from delegator to validator.
// Expected errors during normal operations:
//   - UnknownValidatorError if the validator is not known
//   - InvalidStakeError if amount is zero or below the minimum delegation
func (r *Registry) DelegateStake(delegator, validator chain.ParticipantID, amount uint64) error {
	if amount == 0 {
		return NewInvalidStakeErrorf("delegation amount must be positive")
	}

	r.Lock()
	defer r.Unlock()

	if amount < r.staking.MinDelegation {
		return NewInvalidStakeErrorf("delegation %d below minimum %d", amount, r.staking.MinDelegation)
	}
	v, ok := r.validators[validator]
	if !ok {
		return UnknownValidatorError{ID: validator}
	}

	// all sums are checked before any state changes
	d := v.Delegations[delegator]
	amountAfter, c1 := bits.Add64(d.Amount, amount, 0)
	delegatedAfter, c2 := bits.Add64(v.TotalDelegated, amount, 0)
	powerAfter, c3 := bits.Add64(v.VotingPower, amount, 0)
	totalAfter, c4 := bits.Add64(r.totalPower, amount, 0)
	if c1|c2|c3|c4 != 0 {
		return irrecoverable.NewExceptionf("delegating %d to %s overflows voting power", amount, validator)
	}

	now := r.now()
	if d.Amount == 0 {
		d.DelegatedAt = now
		d.LastRewardAt = now
	}
	d.Amount = amountAfter
	v.Delegations[delegator] = d
	v.TotalDelegated = delegatedAfter
	v.VotingPower = powerAfter
	r.totalPower = totalAfter
	r.reportLocked()

	r.log.Debug().
		Str("delegator", delegator.String()).
		Str("validator", validator.String()).
		Uint64("amount", amount).
		Uint64("voting_power", powerAfter).
		Msg("stake delegated")
	return nil
}

// UndelegateStake releases amount of the delegator's stake. The released stake
// enters the unbonding queue and can be withdrawn with CompleteUnbonding once
// the unbonding period passed.
// Expected errors during normal operations:
//   - UnknownValidatorError if the validator is not known
//   - ErrNoDelegation if the delegator has no stake with the validator
//   - InvalidStakeError if amount is zero or exceeds the delegation
func (r *Registry) UndelegateStake(delegator, validator chain.ParticipantID, amount uint64) error {
	if amount == 0 {
		return NewInvalidStakeErrorf("undelegation amount must be positive")
	}

	r.Lock()
	defer r.Unlock()

	v, ok := r.validators[validator]
	if !ok {
		return UnknownValidatorError{ID: validator}
	}
	d, ok := v.Delegations[delegator]
	if !ok {
		return ErrNoDelegation
	}
	if amount > d.Amount {
		return NewInvalidStakeErrorf("undelegation %d exceeds delegation %d of %s to %s", amount, d.Amount, delegator, validator)
	}

	d.Amount -= amount
	if d.Amount == 0 {
		delete(v.Delegations, delegator)
	} else {
		v.Delegations[delegator] = d
	}
	v.TotalDelegated -= amount
	v.VotingPower -= amount
	r.totalPower -= amount

	now := r.now()
	r.unbonding = append(r.unbonding, UnbondingRequest{
		Validator:   validator,
		Delegator:   delegator,
		Amount:      amount,
		RequestedAt: now,
		CompletesAt: now.Add(r.staking.UnbondingPeriod),
	})
	r.reportLocked()

	r.log.Debug().
		Str("delegator", delegator.String()).
		Str("validator", validator.String()).
		Uint64("amount", amount).
		Uint64("voting_power", v.VotingPower).
		Msg("stake undelegated")
	return nil
}

// ApplySlashing penalizes a validator: voting power shrinks by
// floor(power * penaltyBps / 10000), a slashing record is appended, the
// validator is jailed and its reputation drops by the penalty for kind.
// The penalty is taken from the self-bond first and then from delegations,
// pro rata. Repeated application compounds; no deduplication happens here.
// Expected errors during normal operations:
//   - UnknownValidatorError if the validator is not known
//   - InvalidStakeError if penaltyBps exceeds 10000
func (r *Registry) ApplySlashing(id chain.ParticipantID, kind EvidenceKind, penaltyBps uint32, reason string) (SlashingRecord, error) {
	if penaltyBps > MaxBasisPoints {
		return SlashingRecord{}, NewInvalidStakeErrorf("penalty %d bp exceeds %d bp", penaltyBps, MaxBasisPoints)
	}

	r.Lock()
	defer r.Unlock()

	v, ok := r.validators[id]
	if !ok {
		return SlashingRecord{}, UnknownValidatorError{ID: id}
	}

	penalty := mulDiv(v.VotingPower, uint64(penaltyBps), MaxBasisPoints)
	deductStake(v, penalty)
	r.totalPower -= penalty

	record := SlashingRecord{
		Kind:       kind,
		PenaltyBps: penaltyBps,
		Reason:     reason,
		Timestamp:  r.now(),
	}
	v.SlashingHistory = append(v.SlashingHistory, record)
	v.Status = Jailed
	v.Reputation = clampReputation(int64(v.Reputation) - int64(reputationPenalty(kind)))

	r.metrics.ValidatorSlashed(kind.String())
	r.reportLocked()

	r.log.Warn().
		Str("validator", id.String()).
		Str("kind", kind.String()).
		Uint32("penalty_bps", penaltyBps).
		Uint64("penalty", penalty).
		Uint64("voting_power", v.VotingPower).
		Uint32("reputation", v.Reputation).
		Msg("validator slashed and jailed")
	return record, nil
}

// deductStake removes amount from the validator's stake, self-bond first, and
// keeps VotingPower == SelfBonded + TotalDelegated. amount must not exceed the
// voting power.
func deductStake(v *Validator, amount uint64) {
	fromSelf := minU64(amount, v.SelfBonded)
	v.SelfBonded -= fromSelf
	remaining := amount - fromSelf

	if remaining > 0 && v.TotalDelegated > 0 {
		delegators := v.Delegators()
		cuts := make(map[chain.ParticipantID]uint64, len(delegators))
		var taken uint64
		for _, id := range delegators {
			cut := mulDiv(v.Delegations[id].Amount, remaining, v.TotalDelegated)
			cuts[id] = cut
			taken += cut
		}
		// rounding leftovers are taken one unit at a time in delegator order
		for left := remaining - taken; left > 0; {
			for _, id := range delegators {
				if left == 0 {
					break
				}
				if v.Delegations[id].Amount > cuts[id] {
					cuts[id]++
					left--
				}
			}
		}
		for _, id := range delegators {
			d := v.Delegations[id]
			d.Amount -= cuts[id]
			if d.Amount == 0 {
				delete(v.Delegations, id)
				continue
			}
			v.Delegations[id] = d
		}
		v.TotalDelegated -= remaining
	}
	v.VotingPower = v.SelfBonded + v.TotalDelegated
}

// TotalVotingPower returns the voting power summed over all validators,
// regardless of status.
func (r *Registry) TotalVotingPower() uint64 {
	r.RLock()
	defer r.RUnlock()
	return r.totalPower
}

// RequiredVotes returns the voting power needed for a supermajority:
// ceil(total * quorum / 1000), at least 1.
func (r *Registry) RequiredVotes() uint64 {
	r.RLock()
	defer r.RUnlock()
	return RequiredVotes(r.totalPower, r.quorum)
}

// RequiredVotes computes ceil(total * quorumThousandths / 1000), at least 1.
func RequiredVotes(total uint64, quorumThousandths uint64) uint64 {
	if quorumThousandths > 1000 {
		quorumThousandths = 1000
	}
	hi, lo := bits.Mul64(total, quorumThousandths)
	q, rem := bits.Div64(hi, lo, 1000)
	if rem > 0 {
		q++
	}
	if q == 0 {
		return 1
	}
	return q
}

// ByID returns a copy of the validator.
func (r *Registry) ByID(id chain.ParticipantID) (*Validator, error) {
	r.RLock()
	defer r.RUnlock()
	v, ok := r.validators[id]
	if !ok {
		return nil, UnknownValidatorError{ID: id}
	}
	return v.Copy(), nil
}

// Active returns copies of all active validators, ordered by identity.
func (r *Registry) Active() []*Validator {
	return r.filter(func(v *Validator) bool { return v.Status == Active })
}

// All returns copies of all validators, ordered by identity.
func (r *Registry) All() []*Validator {
	return r.filter(func(*Validator) bool { return true })
}

// ActiveIDs returns the identities of all active validators in order.
func (r *Registry) ActiveIDs() chain.ParticipantIDList {
	active := r.Active()
	ids := make(chain.ParticipantIDList, 0, len(active))
	for _, v := range active {
		ids = append(ids, v.ID)
	}
	return ids
}

// Weights returns the voting power of every validator, keyed by identity.
func (r *Registry) Weights() map[chain.ParticipantID]uint64 {
	r.RLock()
	defer r.RUnlock()
	weights := make(map[chain.ParticipantID]uint64, len(r.validators))
	for id, v := range r.validators {
		weights[id] = v.VotingPower
	}
	return weights
}

func (r *Registry) filter(keep func(*Validator) bool) []*Validator {
	r.RLock()
	defer r.RUnlock()
	out := make([]*Validator, 0, len(r.validators))
	for _, v := range r.validators {
		if keep(v) {
			out = append(out, v.Copy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) reportLocked() {
	active := 0
	for _, v := range r.validators {
		if v.Status == Active {
			active++
		}
	}
	r.metrics.TotalVotingPower(r.totalPower)
	r.metrics.ActiveValidators(active)
}

// mulDiv returns floor(a * b / c) without intermediate overflow. The result
// must fit into 64 bits, which holds whenever b <= c.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, c)
	return q
}
