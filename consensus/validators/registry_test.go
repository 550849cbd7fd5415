package validators_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/garpnet/consensus-core/consensus/validators"
	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module/metrics"
	"github.com/garpnet/consensus-core/utils/unittest"
)

var genesis = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newRegistry(opts ...validators.Option) *validators.Registry {
	opts = append([]validators.Option{validators.WithClock(func() time.Time { return genesis })}, opts...)
	return validators.NewRegistry(unittest.Logger(), metrics.NewNoopCollector(), opts...)
}

func validatorFixture(id chain.ParticipantID, selfBonded uint64) validators.Validator {
	return validators.NewValidator(id, []byte("pk-"+id), selfBonded, 500, genesis)
}

func requirePowerInvariant(t require.TestingT, r *validators.Registry) {
	var total uint64
	for _, v := range r.All() {
		var delegated uint64
		for _, d := range v.Delegations {
			delegated += d.Amount
		}
		require.Equal(t, delegated, v.TotalDelegated, "validator %s", v.ID)
		require.Equal(t, v.SelfBonded+v.TotalDelegated, v.VotingPower, "validator %s", v.ID)
		total += v.VotingPower
	}
	require.Equal(t, total, r.TotalVotingPower())
}

func TestAddAndRemove(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Add(validatorFixture("alice", 1000)))

	err := r.Add(validatorFixture("alice", 5))
	require.ErrorIs(t, err, validators.ErrValidatorExists)

	v, err := r.ByID("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), v.VotingPower)
	assert.Equal(t, validators.Active, v.Status)
	assert.Equal(t, uint32(validators.DefaultReputation), v.Reputation)

	require.NoError(t, r.Remove("alice"))
	_, err = r.ByID("alice")
	assert.True(t, validators.IsUnknownValidatorError(err))
	assert.True(t, validators.IsUnknownValidatorError(r.Remove("alice")))
	assert.Zero(t, r.TotalVotingPower())
}

func TestAddRecomputesPowerFromDelegations(t *testing.T) {
	r := newRegistry()
	v := validatorFixture("alice", 100)
	v.VotingPower = 1 // stale value is ignored
	v.Delegations["bob"] = validators.Delegation{Amount: 40}
	require.NoError(t, r.Add(v))

	stored, err := r.ByID("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), stored.TotalDelegated)
	assert.Equal(t, uint64(140), stored.VotingPower)
	requirePowerInvariant(t, r)
}

func TestAddValidation(t *testing.T) {
	r := newRegistry(validators.WithStakingParams(validators.StakingParams{MinSelfBond: 1000, MaxValidators: 10}))

	err := r.Add(validatorFixture("alice", 999))
	assert.True(t, validators.IsInvalidStakeError(err))

	err = r.Add(validatorFixture("", 1000))
	assert.True(t, validators.IsInvalidValidatorError(err))

	v := validatorFixture("bob", 1000)
	v.CommissionBps = 10_001
	assert.True(t, validators.IsInvalidValidatorError(r.Add(v)))
}

func TestDelegation(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Add(validatorFixture("alice", 1000)))

	require.NoError(t, r.DelegateStake("dave", "alice", 50))
	v, err := r.ByID("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1050), v.VotingPower)
	requirePowerInvariant(t, r)

	require.NoError(t, r.UndelegateStake("dave", "alice", 25))
	v, err = r.ByID("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1025), v.VotingPower)
	assert.Equal(t, uint64(25), v.Delegations["dave"].Amount)
	requirePowerInvariant(t, r)

	t.Run("over-undelegation fails without mutation", func(t *testing.T) {
		err := r.UndelegateStake("dave", "alice", 26)
		assert.True(t, validators.IsInvalidStakeError(err))
		v, err := r.ByID("alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(1025), v.VotingPower)
		assert.Equal(t, uint64(25), v.TotalDelegated)
	})

	t.Run("unknown delegation", func(t *testing.T) {
		err := r.UndelegateStake("erin", "alice", 1)
		assert.ErrorIs(t, err, validators.ErrNoDelegation)
	})

	t.Run("unknown validator", func(t *testing.T) {
		assert.True(t, validators.IsUnknownValidatorError(r.DelegateStake("dave", "nobody", 5)))
		assert.True(t, validators.IsUnknownValidatorError(r.UndelegateStake("dave", "nobody", 5)))
	})

	t.Run("zero amount", func(t *testing.T) {
		assert.True(t, validators.IsInvalidStakeError(r.DelegateStake("dave", "alice", 0)))
	})

	t.Run("full undelegation removes the entry", func(t *testing.T) {
		require.NoError(t, r.UndelegateStake("dave", "alice", 25))
		v, err := r.ByID("alice")
		require.NoError(t, err)
		assert.NotContains(t, v.Delegations, chain.ParticipantID("dave"))
		assert.Equal(t, uint64(1000), v.VotingPower)
	})
}

func TestMinimumDelegation(t *testing.T) {
	params := validators.DefaultStakingParams()
	params.MinDelegation = 100
	r := newRegistry(validators.WithStakingParams(params))
	require.NoError(t, r.Add(validatorFixture("alice", 1000)))

	assert.True(t, validators.IsInvalidStakeError(r.DelegateStake("dave", "alice", 99)))
	assert.NoError(t, r.DelegateStake("dave", "alice", 100))
}

func TestApplySlashing(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Add(validatorFixture("alice", 1000)))
	require.NoError(t, r.UpdateReputation("alice", 80))

	record, err := r.ApplySlashing("alice", validators.Equivocation, 500, "conflicting votes")
	require.NoError(t, err)
	assert.Equal(t, validators.Equivocation, record.Kind)

	v, err := r.ByID("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(950), v.VotingPower)
	assert.Equal(t, uint32(55), v.Reputation)
	assert.Equal(t, validators.Jailed, v.Status)
	assert.Len(t, v.SlashingHistory, 1)
	requirePowerInvariant(t, r)

	t.Run("compounds on repeated application", func(t *testing.T) {
		_, err := r.ApplySlashing("alice", validators.Equivocation, 500, "again")
		require.NoError(t, err)
		v, err := r.ByID("alice")
		require.NoError(t, err)
		// 950 - floor(950 * 0.05) = 950 - 47
		assert.Equal(t, uint64(903), v.VotingPower)
		assert.Equal(t, uint32(30), v.Reputation)
		assert.Len(t, v.SlashingHistory, 2)
	})

	t.Run("reputation floors at zero", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := r.ApplySlashing("alice", validators.DoubleSign, 0, "")
			require.NoError(t, err)
		}
		v, err := r.ByID("alice")
		require.NoError(t, err)
		assert.Zero(t, v.Reputation)
	})

	t.Run("rejects penalties above 100%", func(t *testing.T) {
		_, err := r.ApplySlashing("alice", validators.DoubleSign, 10_001, "")
		assert.True(t, validators.IsInvalidStakeError(err))
	})

	t.Run("unknown validator", func(t *testing.T) {
		_, err := r.ApplySlashing("nobody", validators.DoubleSign, 100, "")
		assert.True(t, validators.IsUnknownValidatorError(err))
	})
}

func TestSlashingSpreadsOverDelegations(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Add(validatorFixture("alice", 10)))
	require.NoError(t, r.DelegateStake("bob", "alice", 45))
	require.NoError(t, r.DelegateStake("carol", "alice", 45))

	// power 100, penalty 50: 10 from self-bond, 40 from delegations
	_, err := r.ApplySlashing("alice", validators.DoubleSign, 5000, "")
	require.NoError(t, err)

	v, err := r.ByID("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), v.VotingPower)
	assert.Zero(t, v.SelfBonded)
	assert.Equal(t, uint64(25), v.Delegations["bob"].Amount)
	assert.Equal(t, uint64(25), v.Delegations["carol"].Amount)
	requirePowerInvariant(t, r)
}

func TestStatusTransitions(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Add(validatorFixture("alice", 1000)))

	require.NoError(t, r.UpdateStatus("alice", validators.Inactive))
	assert.Empty(t, r.Active())

	err := r.UpdateStatus("alice", validators.Jailed)
	assert.True(t, validators.IsInvalidStatusTransitionError(err))

	_, err = r.ApplySlashing("alice", validators.LivenessFault, 100, "")
	require.NoError(t, err)
	err = r.UpdateStatus("alice", validators.Active)
	assert.True(t, validators.IsInvalidStatusTransitionError(err))

	require.NoError(t, r.Unjail("alice"))
	v, err := r.ByID("alice")
	require.NoError(t, err)
	assert.Equal(t, validators.Inactive, v.Status)
	assert.True(t, validators.IsInvalidStatusTransitionError(r.Unjail("alice")))
}

func TestUpdateVotingPower(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Add(validatorFixture("alice", 1000)))
	require.NoError(t, r.DelegateStake("bob", "alice", 200))

	require.NoError(t, r.UpdateVotingPower("alice", 700))
	v, err := r.ByID("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(700), v.VotingPower)
	assert.Equal(t, uint64(500), v.SelfBonded)
	requirePowerInvariant(t, r)

	err = r.UpdateVotingPower("alice", 199)
	assert.True(t, validators.IsInvalidStakeError(err))
}

func TestCountersAndReputation(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Add(validatorFixture("alice", 1000)))

	require.NoError(t, r.RecordSuccessfulProposal("alice"))
	require.NoError(t, r.RecordSuccessfulProposal("alice"))
	require.NoError(t, r.RecordFailedProposal("alice"))
	require.NoError(t, r.RecordMissedVote("alice"))

	v, err := r.ByID("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v.SuccessfulProposals)
	assert.Equal(t, uint64(1), v.FailedProposals)
	assert.Equal(t, uint64(1), v.MissedVotes)
	assert.Equal(t, validators.ReputationScore(v.Counters()), v.Reputation)

	require.NoError(t, r.UpdateReputation("alice", 500))
	v, _ = r.ByID("alice")
	assert.Equal(t, uint32(100), v.Reputation)
	require.NoError(t, r.UpdateReputation("alice", -3))
	v, _ = r.ByID("alice")
	assert.Zero(t, v.Reputation)

	assert.True(t, validators.IsUnknownValidatorError(r.RecordMissedVote("nobody")))
}

func TestRequiredVotes(t *testing.T) {
	t.Run("single validator", func(t *testing.T) {
		r := newRegistry(validators.WithQuorumThousandths(1000))
		require.NoError(t, r.Add(validatorFixture("alice", 1)))
		assert.Equal(t, uint64(1), r.RequiredVotes())
	})

	t.Run("empty registry", func(t *testing.T) {
		assert.Equal(t, uint64(1), newRegistry().RequiredVotes())
	})

	t.Run("rounds up", func(t *testing.T) {
		r := newRegistry()
		require.NoError(t, r.Add(validatorFixture("alice", 1000)))
		require.NoError(t, r.Add(validatorFixture("bob", 1000)))
		require.NoError(t, r.Add(validatorFixture("carol", 1000)))
		// ceil(3000 * 0.667) = 2001
		assert.Equal(t, uint64(2001), r.RequiredVotes())
	})

	t.Run("counts every status", func(t *testing.T) {
		r := newRegistry()
		require.NoError(t, r.Add(validatorFixture("alice", 600)))
		require.NoError(t, r.Add(validatorFixture("bob", 400)))
		require.NoError(t, r.UpdateStatus("bob", validators.Inactive))
		assert.Equal(t, uint64(1000), r.TotalVotingPower())
	})

	t.Run("does not overflow", func(t *testing.T) {
		assert.Equal(t, uint64(^uint64(0)), validators.RequiredVotes(^uint64(0), 1000))
	})
}

func TestAccessorsReturnCopies(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Add(validatorFixture("alice", 1000)))
	require.NoError(t, r.DelegateStake("bob", "alice", 10))

	v, err := r.ByID("alice")
	require.NoError(t, err)
	v.VotingPower = 0
	v.Delegations["bob"] = validators.Delegation{Amount: 1_000_000}

	stored, err := r.ByID("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), stored.VotingPower)
	assert.Equal(t, uint64(10), stored.Delegations["bob"].Amount)
}

// TestPowerInvariant checks voting power == self-bond + delegations under
// arbitrary sequences of stake operations.
func TestPowerInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := newRegistry()
		ids := []chain.ParticipantID{"v0", "v1", "v2"}
		delegators := []chain.ParticipantID{"d0", "d1", "d2", "d3"}
		for _, id := range ids {
			require.NoError(rt, r.Add(validatorFixture(id, rapid.Uint64Range(0, 10_000).Draw(rt, "bond"))))
		}

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			validator := rapid.SampledFrom(ids).Draw(rt, "validator")
			delegator := rapid.SampledFrom(delegators).Draw(rt, "delegator")
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				_ = r.DelegateStake(delegator, validator, rapid.Uint64Range(1, 5_000).Draw(rt, "amount"))
			case 1:
				_ = r.UndelegateStake(delegator, validator, rapid.Uint64Range(1, 5_000).Draw(rt, "amount"))
			case 2:
				before, err := r.ByID(validator)
				require.NoError(rt, err)
				bps := rapid.Uint32Range(0, 10_000).Draw(rt, "bps")
				_, err = r.ApplySlashing(validator, validators.DoubleSign, bps, "")
				require.NoError(rt, err)
				after, err := r.ByID(validator)
				require.NoError(rt, err)
				require.Equal(rt, before.VotingPower-before.VotingPower*uint64(bps)/10_000, after.VotingPower)
				require.Len(rt, after.SlashingHistory, len(before.SlashingHistory)+1)
			case 3:
				before, err := r.ByID(validator)
				require.NoError(rt, err)
				err = r.UpdateVotingPower(validator, before.TotalDelegated+rapid.Uint64Range(0, 5_000).Draw(rt, "power"))
				require.NoError(rt, err)
			}
			requirePowerInvariant(rt, r)
		}
	})
}
