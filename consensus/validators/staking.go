package validators

import (
	"sort"
	"time"

	"github.com/garpnet/consensus-core/model/chain"
)

// StakingParams are the economic rules of the validator set.
type StakingParams struct {
	MinSelfBond     uint64        `mapstructure:"min-self-bond"`
	MinDelegation   uint64        `mapstructure:"min-delegation"`
	MaxValidators   int           `mapstructure:"max-validators"`
	UnbondingPeriod time.Duration `mapstructure:"unbonding-period"`
}

// DefaultStakingParams does not impose bond minimums. Deployments set them
// through configuration.
func DefaultStakingParams() StakingParams {
	return StakingParams{
		MinSelfBond:     0,
		MinDelegation:   0,
		MaxValidators:   100,
		UnbondingPeriod: 7 * 24 * time.Hour,
	}
}

// UnbondingRequest is undelegated stake waiting for the unbonding period to end.
type UnbondingRequest struct {
	Validator   chain.ParticipantID
	Delegator   chain.ParticipantID
	Amount      uint64
	RequestedAt time.Time
	CompletesAt time.Time
}

// PendingUnbonds returns all unbonding requests in the order they were made.
func (r *Registry) PendingUnbonds() []UnbondingRequest {
	r.RLock()
	defer r.RUnlock()
	return append([]UnbondingRequest(nil), r.unbonding...)
}

// CompleteUnbonding releases every matured unbonding request of the delegator
// and returns the total released amount.
// Expected errors during normal operations:
//   - ErrNoUnbonding if the delegator has no pending request
//   - ErrUnbondingPending if none of its requests matured yet
func (r *Registry) CompleteUnbonding(delegator chain.ParticipantID, now time.Time) (uint64, error) {
	r.Lock()
	defer r.Unlock()

	var released uint64
	found := false
	kept := r.unbonding[:0]
	for _, req := range r.unbonding {
		if req.Delegator != delegator {
			kept = append(kept, req)
			continue
		}
		found = true
		if now.Before(req.CompletesAt) {
			kept = append(kept, req)
			continue
		}
		released += req.Amount
	}
	r.unbonding = kept

	if !found {
		return 0, ErrNoUnbonding
	}
	if released == 0 {
		return 0, ErrUnbondingPending
	}
	r.log.Debug().
		Str("delegator", delegator.String()).
		Uint64("amount", released).
		Msg("unbonding completed")
	return released, nil
}

// DistributeRewards splits total among active validators proportionally to
// their voting power. Each validator keeps its commission. The remainder is
// split between the validator's self-bond and its delegators, pro rata to
// their stake. Every rewarded validator gains one point of reputation.
// All divisions round down; the rounding dust is not distributed.
func (r *Registry) DistributeRewards(total uint64) {
	r.Lock()
	defer r.Unlock()

	var activePower uint64
	for _, v := range r.validators {
		if v.Status == Active {
			activePower += v.VotingPower
		}
	}
	if activePower == 0 || total == 0 {
		return
	}

	now := r.now()
	for _, v := range r.validators {
		if v.Status != Active {
			continue
		}
		share := mulDiv(total, v.VotingPower, activePower)
		commission := mulDiv(share, uint64(v.CommissionBps), MaxBasisPoints)
		forDelegators := share - commission

		var paid uint64
		if v.TotalDelegated > 0 {
			for id, d := range v.Delegations {
				reward := mulDiv(forDelegators, d.Amount, v.VotingPower)
				d.Rewards += reward
				d.LastRewardAt = now
				v.Delegations[id] = d
				paid += reward
			}
		}
		v.Rewards += share - paid
		v.Reputation = clampReputation(int64(v.Reputation) + 1)
	}
	r.log.Info().Uint64("total", total).Msg("rewards distributed")
}

// RotateValidators ranks validators by reputation, then voting power, then
// identity and activates the best MaxValidators of them. All others become
// inactive. Jailed validators are neither ranked nor released.
func (r *Registry) RotateValidators() {
	r.Lock()
	defer r.Unlock()

	ranked := make([]*Validator, 0, len(r.validators))
	for _, v := range r.validators {
		if v.Status != Jailed {
			ranked = append(ranked, v)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Reputation != b.Reputation {
			return a.Reputation > b.Reputation
		}
		if a.VotingPower != b.VotingPower {
			return a.VotingPower > b.VotingPower
		}
		return a.ID < b.ID
	})
	for i, v := range ranked {
		if i < r.staking.MaxValidators {
			v.Status = Active
		} else {
			v.Status = Inactive
		}
	}
	r.reportLocked()
	r.log.Info().Int("ranked", len(ranked)).Int("max_validators", r.staking.MaxValidators).Msg("validator set rotated")
}
