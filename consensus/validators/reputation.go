package validators

// Counters are the performance inputs of the reputation score.
type Counters struct {
	Successes uint64
	Failures  uint64
	Misses    uint64
	Slashes   uint64
}

// Score weights. Each counter contributes linearly up to its cap.
const (
	scoreBase     = 50
	successWeight = 2
	successCap    = 100
	failureWeight = 3
	failureCap    = 50
	missWeight    = 1
	missCap       = 100
	slashWeight   = 25
	slashCap      = 1_000
)

// ReputationScore computes a reputation in [0, 100] from performance counters.
func ReputationScore(c Counters) uint32 {
	score := int64(scoreBase)
	score += successWeight * int64(minU64(c.Successes, successCap))
	score -= failureWeight * int64(minU64(c.Failures, failureCap))
	score -= missWeight * int64(minU64(c.Misses, missCap))
	score -= slashWeight * int64(minU64(c.Slashes, slashCap))
	return clampReputation(score)
}

// Tier is a coarse classification of a reputation score.
type Tier int

const (
	Poor Tier = iota
	Average
	Good
	Excellent
)

func (t Tier) String() string {
	switch t {
	case Excellent:
		return "excellent"
	case Good:
		return "good"
	case Average:
		return "average"
	default:
		return "poor"
	}
}

// TierForScore maps a score to its tier.
func TierForScore(score uint32) Tier {
	switch {
	case score >= 90:
		return Excellent
	case score >= 70:
		return Good
	case score >= 50:
		return Average
	default:
		return Poor
	}
}

// reputationPenalty is the reputation deducted by a single slashing event.
func reputationPenalty(kind EvidenceKind) uint32 {
	switch kind {
	case DoubleSign, LightClientAttack:
		return 30
	case Equivocation:
		return 25
	case MaliciousProposal:
		return 20
	case InvalidBehavior:
		return 15
	case LivenessFault:
		return 10
	case Downtime:
		return 5
	default:
		return 25
	}
}

func clampReputation(score int64) uint32 {
	if score < MinReputation {
		return MinReputation
	}
	if score > MaxReputation {
		return MaxReputation
	}
	return uint32(score)
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
