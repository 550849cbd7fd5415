// Package tower implements the vote ledger: per-slot stake-weighted votes,
// exponentially growing vote lockouts and slot finality.
package tower

import (
	"math/bits"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module"
	"github.com/garpnet/consensus-core/module/irrecoverable"
)

const (
	// DefaultThreshold is the supermajority needed for finality, in thousandths.
	DefaultThreshold = 667
	// DefaultMaxLockoutDepth bounds the lockout tower of a voter. Lockouts
	// never expire, so once a voter holds this many, every further approving
	// vote locks it out for 2^16 slots: a voter approving every slot it may
	// vote on votes at S, S+1, S+3, S+7, ... and after 16 votes only once per
	// 65536 slots. Long running networks that need steady finality should
	// lower the depth through WithMaxLockoutDepth.
	DefaultMaxLockoutDepth = 16
	// maxLockoutExponent keeps 2^k within uint64.
	maxLockoutExponent = 63
)

// Lockout forbids a voter to vote for any slot below UnlockAt. It was created
// by an approving vote at Slot.
type Lockout struct {
	Slot     uint64
	UnlockAt uint64
}

// Ledger records votes per slot, enforces lockouts and decides finality.
// It works on its own snapshot of voting weights, which must be refreshed
// explicitly through SetWeights whenever stake changes.
type Ledger struct {
	sync.RWMutex
	log       zerolog.Logger
	metrics   module.ConsensusMetrics
	threshold uint64
	maxDepth  int

	weights map[chain.ParticipantID]uint64
	total   uint64

	votes     map[uint64]map[chain.ParticipantID]bool
	lockouts  map[chain.ParticipantID][]Lockout
	finalized map[uint64]struct{}
	latest    uint64
}

type Option func(*Ledger)

// WithThreshold sets the supermajority in thousandths of total weight.
func WithThreshold(thousandths uint64) Option {
	return func(l *Ledger) {
		l.threshold = thousandths
	}
}

// WithMaxLockoutDepth bounds the number of lockouts a voter holds, and with
// it the longest lockout to 2^depth slots. Values above 63 are clamped.
func WithMaxLockoutDepth(depth int) Option {
	return func(l *Ledger) {
		if depth > maxLockoutExponent {
			depth = maxLockoutExponent
		}
		if depth < 1 {
			depth = 1
		}
		l.maxDepth = depth
	}
}

func NewLedger(log zerolog.Logger, collector module.ConsensusMetrics, opts ...Option) *Ledger {
	l := &Ledger{
		log:       log.With().Str("component", "vote_ledger").Logger(),
		metrics:   collector,
		threshold: DefaultThreshold,
		maxDepth:  DefaultMaxLockoutDepth,
		weights:   make(map[chain.ParticipantID]uint64),
		votes:     make(map[uint64]map[chain.ParticipantID]bool),
		lockouts:  make(map[chain.ParticipantID][]Lockout),
		finalized: make(map[uint64]struct{}),
	}
	for _, apply := range opts {
		apply(l)
	}
	return l
}

// SetWeights replaces the weight snapshot.
// No errors are expected during normal operation; an overflowing total is an exception.
func (l *Ledger) SetWeights(weights map[chain.ParticipantID]uint64) error {
	snapshot := make(map[chain.ParticipantID]uint64, len(weights))
	var total uint64
	for id, w := range weights {
		var carry uint64
		total, carry = bits.Add64(total, w, 0)
		if carry != 0 {
			return irrecoverable.NewExceptionf("total vote weight overflows")
		}
		snapshot[id] = w
	}

	l.Lock()
	defer l.Unlock()
	l.weights = snapshot
	l.total = total
	return nil
}

// SetWeight updates the weight of a single voter.
// No errors are expected during normal operation; an overflowing total is an exception.
func (l *Ledger) SetWeight(voter chain.ParticipantID, weight uint64) error {
	l.Lock()
	defer l.Unlock()
	total, carry := bits.Add64(l.total-l.weights[voter], weight, 0)
	if carry != 0 {
		return irrecoverable.NewExceptionf("total vote weight overflows when setting weight of %s", voter)
	}
	l.weights[voter] = weight
	l.total = total
	return nil
}

// TotalWeight returns the sum of the weight snapshot.
func (l *Ledger) TotalWeight() uint64 {
	l.RLock()
	defer l.RUnlock()
	return l.total
}

// WeightOf returns the snapshot weight of voter.
func (l *Ledger) WeightOf(voter chain.ParticipantID) uint64 {
	l.RLock()
	defer l.RUnlock()
	return l.weights[voter]
}

// RecordVote stores the vote of voter for slot, replacing any earlier vote of
// the same voter for that slot. An approving vote adds a lockout
// [slot, slot+2^k) where k is the number of lockouts the voter holds.
//
// If the voter is locked out, i.e. slot is below the largest unlock bound it
// holds, the vote is refused: nothing changes and false is returned. This is
// an expected protocol condition, not an error.
func (l *Ledger) RecordVote(slot uint64, voter chain.ParticipantID, approve bool) bool {
	l.Lock()
	defer l.Unlock()

	if unlock := l.unlockBoundLocked(voter); slot < unlock {
		l.metrics.VoteRefused()
		l.log.Warn().
			Uint64("slot", slot).
			Str("voter", voter.String()).
			Uint64("unlock_at", unlock).
			Msg("refused vote from locked out voter")
		return false
	}

	bySlot, ok := l.votes[slot]
	if !ok {
		bySlot = make(map[chain.ParticipantID]bool)
		l.votes[slot] = bySlot
	}
	bySlot[voter] = approve

	if approve {
		l.extendLockoutLocked(voter, slot)
	}
	l.metrics.VoteRecorded()
	l.log.Debug().
		Uint64("slot", slot).
		Str("voter", voter.String()).
		Bool("approve", approve).
		Msg("vote recorded")
	return true
}

func (l *Ledger) unlockBoundLocked(voter chain.ParticipantID) uint64 {
	var bound uint64
	for _, lockout := range l.lockouts[voter] {
		if lockout.UnlockAt > bound {
			bound = lockout.UnlockAt
		}
	}
	return bound
}

func (l *Ledger) extendLockoutLocked(voter chain.ParticipantID, slot uint64) {
	held := l.lockouts[voter]
	k := len(held)
	if k > l.maxDepth {
		k = l.maxDepth
	}
	unlock, carry := bits.Add64(slot, uint64(1)<<uint(k), 0)
	if carry != 0 {
		unlock = ^uint64(0)
	}
	held = append(held, Lockout{Slot: slot, UnlockAt: unlock})
	// the tower keeps the most recent maxDepth lockouts
	if len(held) > l.maxDepth {
		held = append([]Lockout(nil), held[len(held)-l.maxDepth:]...)
	}
	l.lockouts[voter] = held
}

// IsLockedOut returns true if voter may not vote for slot.
func (l *Ledger) IsLockedOut(voter chain.ParticipantID, slot uint64) bool {
	l.RLock()
	defer l.RUnlock()
	return slot < l.unlockBoundLocked(voter)
}

// Lockouts returns a copy of the lockouts voter holds, oldest first.
func (l *Ledger) Lockouts(voter chain.ParticipantID) []Lockout {
	l.RLock()
	defer l.RUnlock()
	return append([]Lockout(nil), l.lockouts[voter]...)
}

// Vote returns the stored vote of voter for slot.
func (l *Ledger) Vote(slot uint64, voter chain.ParticipantID) (approve bool, ok bool) {
	l.RLock()
	defer l.RUnlock()
	approve, ok = l.votes[slot][voter]
	return approve, ok
}

// Voters returns all voters with a stored vote for slot, in order.
func (l *Ledger) Voters(slot uint64) []chain.ParticipantID {
	l.RLock()
	defer l.RUnlock()
	voters := make([]chain.ParticipantID, 0, len(l.votes[slot]))
	for id := range l.votes[slot] {
		voters = append(voters, id)
	}
	sort.Slice(voters, func(i, j int) bool { return voters[i] < voters[j] })
	return voters
}

// ApprovalWeight sums the weight of all voters approving slot.
func (l *Ledger) ApprovalWeight(slot uint64) uint64 {
	l.RLock()
	defer l.RUnlock()
	return l.approvalWeightLocked(slot)
}

func (l *Ledger) approvalWeightLocked(slot uint64) uint64 {
	var acc uint64
	for voter, approve := range l.votes[slot] {
		if approve {
			// cannot overflow: every weight is part of the checked total
			acc += l.weights[voter]
		}
	}
	return acc
}

// TryFinalize finalizes slot if the approving weight reaches the threshold.
// Finality is permanent: once a slot is finalized, TryFinalize keeps
// returning true for it. With zero total weight nothing can be finalized.
func (l *Ledger) TryFinalize(slot uint64) bool {
	finalized, _ := l.Finalize(slot)
	return finalized
}

// Finalize is TryFinalize that also reports whether this call finalized the
// slot. Among concurrent callers for the same slot exactly one sees newly set.
func (l *Ledger) Finalize(slot uint64) (finalized bool, newly bool) {
	l.Lock()
	defer l.Unlock()

	if _, ok := l.finalized[slot]; ok {
		return true, false
	}
	if l.total == 0 {
		return false, false
	}
	approvals := l.approvalWeightLocked(slot)
	if !meetsThreshold(approvals, l.total, l.threshold) {
		return false, false
	}

	l.finalized[slot] = struct{}{}
	if slot > l.latest {
		l.latest = slot
	}
	l.metrics.SlotFinalized(l.latest)
	l.log.Info().
		Uint64("slot", slot).
		Uint64("approval_weight", approvals).
		Uint64("total_weight", l.total).
		Msg("slot finalized")
	return true, true
}

// meetsThreshold checks approvals/total >= threshold/1000 in 128-bit arithmetic.
func meetsThreshold(approvals, total, threshold uint64) bool {
	aHi, aLo := bits.Mul64(approvals, 1000)
	tHi, tLo := bits.Mul64(total, threshold)
	if aHi != tHi {
		return aHi > tHi
	}
	return aLo >= tLo
}

// IsFinalized returns true if slot was finalized.
func (l *Ledger) IsFinalized(slot uint64) bool {
	l.RLock()
	defer l.RUnlock()
	_, ok := l.finalized[slot]
	return ok
}

// LatestFinalized returns the highest finalized slot, false if none is.
func (l *Ledger) LatestFinalized() (uint64, bool) {
	l.RLock()
	defer l.RUnlock()
	return l.latest, len(l.finalized) > 0
}

// PruneVotes drops the stored votes of all slots below slot. Finality and
// lockouts are not affected.
func (l *Ledger) PruneVotes(below uint64) int {
	l.Lock()
	defer l.Unlock()
	pruned := 0
	for slot := range l.votes {
		if slot < below {
			delete(l.votes, slot)
			pruned++
		}
	}
	return pruned
}
