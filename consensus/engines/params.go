package engines

import (
	"time"
)

// Params are the tunables shared by every consensus algorithm. An engine
// receives a copy at construction; changing parameters means building a new
// engine.
type Params struct {
	Algorithm Type `mapstructure:"algorithm"`
	// QuorumRatioThousandths is the approval share, in thousandths of the
	// total, required by quorum-based algorithms.
	QuorumRatioThousandths uint64 `mapstructure:"quorum-ratio"`
	// ByzantineThreshold is the number of faulty validators tolerated by the
	// BFT family. Zero derives it from the validator count as (n-1)/3.
	ByzantineThreshold uint64 `mapstructure:"byzantine-threshold"`
	// MaxViewChanges bounds consecutive views without progress before the
	// participant reports a liveness failure.
	MaxViewChanges uint64 `mapstructure:"max-view-changes"`
	// LivenessTimeout is the time without finalization after which the view is changed.
	LivenessTimeout time.Duration `mapstructure:"liveness-timeout"`
	// ProposalTimeout is the lifetime of a proposal that does not carry its own expiry.
	ProposalTimeout time.Duration `mapstructure:"proposal-timeout"`
	MaxValidators   int           `mapstructure:"max-validators"`
	MinValidators   int           `mapstructure:"min-validators"`
	// WeightedVoting makes the BFT family count voting power instead of heads.
	WeightedVoting  bool `mapstructure:"weighted-voting"`
	MaxLockoutDepth int  `mapstructure:"max-lockout-depth"`
}

func DefaultParams() Params {
	return Params{
		Algorithm:              ProofOfStakeholder,
		QuorumRatioThousandths: 667,
		ByzantineThreshold:     0,
		MaxViewChanges:         10,
		LivenessTimeout:        30 * time.Second,
		ProposalTimeout:        time.Minute,
		MaxValidators:          100,
		MinValidators:          1,
		WeightedVoting:         true,
		MaxLockoutDepth:        16,
	}
}

// Validate checks the parameters for internal consistency.
// Expected errors:
//   - InvalidParamsError describing the first violation
func (p Params) Validate() error {
	if !p.Algorithm.Valid() {
		return NewInvalidParamsErrorf("unknown algorithm %d", int(p.Algorithm))
	}
	if p.QuorumRatioThousandths == 0 || p.QuorumRatioThousandths > 1000 {
		return NewInvalidParamsErrorf("quorum ratio must be in (0, 1000] thousandths, got %d", p.QuorumRatioThousandths)
	}
	if p.ProposalTimeout <= 0 {
		return NewInvalidParamsErrorf("proposal timeout must be positive, got %v", p.ProposalTimeout)
	}
	if p.LivenessTimeout <= 0 {
		return NewInvalidParamsErrorf("liveness timeout must be positive, got %v", p.LivenessTimeout)
	}
	if p.MinValidators < 1 {
		return NewInvalidParamsErrorf("at least one validator is required, got minimum %d", p.MinValidators)
	}
	if p.MaxValidators < p.MinValidators {
		return NewInvalidParamsErrorf("max validators (%d) below min validators (%d)", p.MaxValidators, p.MinValidators)
	}
	if p.MaxLockoutDepth < 1 || p.MaxLockoutDepth > 63 {
		return NewInvalidParamsErrorf("max lockout depth must be in [1, 63], got %d", p.MaxLockoutDepth)
	}
	return nil
}
