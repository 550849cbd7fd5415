package timing

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"golang.org/x/crypto/sha3"

	"github.com/garpnet/consensus-core/model/chain"
)

// WeightedParticipant is a candidate for stake-weighted leader selection.
type WeightedParticipant struct {
	ID     chain.ParticipantID
	Weight uint64
}

// WeightedLeaderForSlot selects a leader with probability proportional to its
// weight. The randomness is derived from the slot alone, so every participant
// computes the same leader from the same candidate list. Candidates with zero
// weight are never selected.
func WeightedLeaderForSlot(slot uint64, candidates []WeightedParticipant) (chain.ParticipantID, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no leader candidates")
	}

	weightSums := make([]uint64, 0, len(candidates))
	var cumsum uint64
	for _, c := range candidates {
		var carry uint64
		cumsum, carry = bits.Add64(cumsum, c.Weight, 0)
		if carry != 0 {
			return "", fmt.Errorf("total candidate weight overflows")
		}
		weightSums = append(weightSums, cumsum)
	}
	if cumsum == 0 {
		return "", fmt.Errorf("total weight must be greater than 0")
	}

	randomness := newSlotRand(slot).uintN(cumsum)
	return candidates[binarySearchStrictlyBigger(randomness, weightSums)].ID, nil
}

// binarySearchStrictlyBigger returns the index of the first element of the
// non-decreasing arr that is strictly bigger than value. The last element of
// arr must be bigger than value.
func binarySearchStrictlyBigger(value uint64, arr []uint64) int {
	left, right := 0, len(arr)-1
	for left < right {
		mid := (left + right) / 2
		if arr[mid] <= value {
			left = mid + 1
		} else {
			right = mid
		}
	}
	return left
}

// slotRand is a deterministic stream of random numbers seeded by a slot.
type slotRand struct {
	shake sha3.ShakeHash
}

func newSlotRand(slot uint64) *slotRand {
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], slot)
	shake := sha3.NewShake256()
	_, _ = shake.Write([]byte("leader-selection"))
	_, _ = shake.Write(seed[:])
	return &slotRand{shake: shake}
}

func (r *slotRand) uint64() uint64 {
	var buf [8]byte
	_, _ = r.shake.Read(buf[:])
	return binary.BigEndian.Uint64(buf[:])
}

// uintN returns a uniform number in [0, n) using rejection sampling.
func (r *slotRand) uintN(n uint64) uint64 {
	if n&(n-1) == 0 {
		return r.uint64() & (n - 1)
	}
	limit := ^uint64(0) - (^uint64(0) % n)
	for {
		v := r.uint64()
		if v < limit {
			return v % n
		}
	}
}
