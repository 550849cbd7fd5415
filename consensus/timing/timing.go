// Package timing maps wall-clock time to slots and epochs, and slots to the
// validator responsible for proposing in them. Everything here is a pure
// function of its inputs.
package timing

import (
	"time"

	"github.com/garpnet/consensus-core/model/chain"
)

// SlotAtTime returns floor((now - genesis) / slotDuration). Times before
// genesis map to slot 0, as does a zero slot duration.
func SlotAtTime(genesis time.Time, slotDuration time.Duration, now time.Time) uint64 {
	if slotDuration <= 0 {
		return 0
	}
	elapsed := now.Sub(genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / slotDuration)
}

// SlotStart returns the wall-clock time at which slot begins.
func SlotStart(genesis time.Time, slotDuration time.Duration, slot uint64) time.Time {
	return genesis.Add(time.Duration(slot) * slotDuration)
}

// EpochForSlot returns floor(slot / epochLength), or 0 if epochLength is 0.
func EpochForSlot(slot uint64, epochLength uint64) uint64 {
	if epochLength == 0 {
		return 0
	}
	return slot / epochLength
}

// RotationIndex returns the index of the rotation period containing slot, or
// 0 if interval is 0.
func RotationIndex(slot uint64, interval uint64) uint64 {
	if interval == 0 {
		return 0
	}
	return slot / interval
}

// LeaderForSlot picks validators[slot mod len(validators)]. Rotation ignores
// voting power. The second return value is false if there are no validators.
func LeaderForSlot(slot uint64, validators []chain.ParticipantID) (chain.ParticipantID, bool) {
	if len(validators) == 0 {
		return "", false
	}
	return validators[slot%uint64(len(validators))], true
}

// UpcomingLeaders returns the distinct leaders of the n slots following slot,
// in the order they take their turn.
func UpcomingLeaders(slot uint64, validators []chain.ParticipantID, n int) []chain.ParticipantID {
	if len(validators) == 0 || n <= 0 {
		return nil
	}
	seen := make(map[chain.ParticipantID]struct{}, n)
	leaders := make([]chain.ParticipantID, 0, n)
	for i := 1; i <= n; i++ {
		leader, _ := LeaderForSlot(slot+uint64(i), validators)
		if _, ok := seen[leader]; ok {
			continue
		}
		seen[leader] = struct{}{}
		leaders = append(leaders, leader)
	}
	return leaders
}

// Schedule bundles the chain's timing parameters.
type Schedule struct {
	Genesis      time.Time
	SlotDuration time.Duration
	EpochLength  uint64
}

func (s Schedule) SlotAt(now time.Time) uint64 {
	return SlotAtTime(s.Genesis, s.SlotDuration, now)
}

func (s Schedule) EpochOf(slot uint64) uint64 {
	return EpochForSlot(slot, s.EpochLength)
}

func (s Schedule) SlotStart(slot uint64) time.Time {
	return SlotStart(s.Genesis, s.SlotDuration, slot)
}

// Clock abstracts the wall clock.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
