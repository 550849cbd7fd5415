package timing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/garpnet/consensus-core/consensus/timing"
	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/utils/unittest"
)

var genesis = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSlotAtTime(t *testing.T) {
	slot := 400 * time.Millisecond
	assert.Equal(t, uint64(0), timing.SlotAtTime(genesis, slot, genesis))
	assert.Equal(t, uint64(0), timing.SlotAtTime(genesis, slot, genesis.Add(399*time.Millisecond)))
	assert.Equal(t, uint64(1), timing.SlotAtTime(genesis, slot, genesis.Add(400*time.Millisecond)))
	assert.Equal(t, uint64(25), timing.SlotAtTime(genesis, slot, genesis.Add(10*time.Second)))

	t.Run("before genesis", func(t *testing.T) {
		assert.Equal(t, uint64(0), timing.SlotAtTime(genesis, slot, genesis.Add(-time.Hour)))
	})
	t.Run("zero duration", func(t *testing.T) {
		assert.Equal(t, uint64(0), timing.SlotAtTime(genesis, 0, genesis.Add(time.Hour)))
	})
	t.Run("slot start round trip", func(t *testing.T) {
		start := timing.SlotStart(genesis, slot, 42)
		assert.Equal(t, uint64(42), timing.SlotAtTime(genesis, slot, start))
	})
}

func TestEpochForSlot(t *testing.T) {
	assert.Equal(t, uint64(0), timing.EpochForSlot(99, 100))
	assert.Equal(t, uint64(1), timing.EpochForSlot(100, 100))
	assert.Equal(t, uint64(0), timing.EpochForSlot(12345, 0))
	assert.Equal(t, uint64(3), timing.RotationIndex(35, 10))
	assert.Equal(t, uint64(0), timing.RotationIndex(35, 0))
}

func TestLeaderForSlot(t *testing.T) {
	validators := unittest.ParticipantIDListFixture(4)

	leader, ok := timing.LeaderForSlot(6, validators)
	require.True(t, ok)
	assert.Equal(t, validators[2], leader)

	_, ok = timing.LeaderForSlot(6, nil)
	assert.False(t, ok)
}

// TestLeaderRotationPeriodic checks that the leader of slot and slot+len(V) coincide.
func TestLeaderRotationPeriodic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "validators")
		validators := unittest.ParticipantIDListFixture(n)
		slot := rapid.Uint64Range(0, 1<<62).Draw(t, "slot")

		a, ok := timing.LeaderForSlot(slot, validators)
		require.True(t, ok)
		b, ok := timing.LeaderForSlot(slot+uint64(n), validators)
		require.True(t, ok)
		require.Equal(t, a, b)
	})
}

func TestUpcomingLeaders(t *testing.T) {
	validators := chain.ParticipantIDList{"a", "b", "c"}
	assert.Equal(t, []chain.ParticipantID{"b", "c"}, timing.UpcomingLeaders(0, validators, 2))
	assert.Equal(t, []chain.ParticipantID{"b", "c", "a"}, timing.UpcomingLeaders(0, validators, 10))
	assert.Nil(t, timing.UpcomingLeaders(0, nil, 3))
	assert.Nil(t, timing.UpcomingLeaders(0, validators, 0))
}

func TestWeightedLeaderForSlot(t *testing.T) {
	candidates := []timing.WeightedParticipant{
		{ID: "heavy", Weight: 900},
		{ID: "zero", Weight: 0},
		{ID: "light", Weight: 100},
	}

	t.Run("deterministic", func(t *testing.T) {
		for slot := uint64(0); slot < 50; slot++ {
			a, err := timing.WeightedLeaderForSlot(slot, candidates)
			require.NoError(t, err)
			b, err := timing.WeightedLeaderForSlot(slot, candidates)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		}
	})

	t.Run("proportional to weight", func(t *testing.T) {
		counts := make(map[chain.ParticipantID]int)
		for slot := uint64(0); slot < 10_000; slot++ {
			leader, err := timing.WeightedLeaderForSlot(slot, candidates)
			require.NoError(t, err)
			counts[leader]++
		}
		assert.Zero(t, counts["zero"])
		assert.InDelta(t, 9000, counts["heavy"], 400)
		assert.InDelta(t, 1000, counts["light"], 400)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := timing.WeightedLeaderForSlot(1, nil)
		assert.Error(t, err)
		_, err = timing.WeightedLeaderForSlot(1, []timing.WeightedParticipant{{ID: "a"}})
		assert.Error(t, err)
	})
}

func TestSchedule(t *testing.T) {
	s := timing.Schedule{Genesis: genesis, SlotDuration: time.Second, EpochLength: 10}
	slot := s.SlotAt(genesis.Add(25 * time.Second))
	assert.Equal(t, uint64(25), slot)
	assert.Equal(t, uint64(2), s.EpochOf(slot))
	assert.Equal(t, genesis.Add(25*time.Second), s.SlotStart(slot))
}
