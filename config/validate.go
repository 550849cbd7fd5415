package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

const maxForwardRatioBps = 10_000

// Validate checks every section of the configuration.
// Expected errors:
//   - InvalidConfigError wrapping a multierror with one entry per violation
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.Chain.SlotDuration <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("slot duration must be positive, got %v", c.Chain.SlotDuration))
	}
	if c.Chain.EpochLength == 0 {
		errs = multierror.Append(errs, fmt.Errorf("epoch length must be positive"))
	}

	if err := c.Consensus.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if c.Staking.MaxValidators < 1 {
		errs = multierror.Append(errs, fmt.Errorf("staking max validators must be positive, got %d", c.Staking.MaxValidators))
	}
	if c.Staking.UnbondingPeriod < 0 {
		errs = multierror.Append(errs, fmt.Errorf("unbonding period must not be negative, got %v", c.Staking.UnbondingPeriod))
	}

	m := c.Mempool
	if m.MaxTransactions == 0 {
		errs = multierror.Append(errs, fmt.Errorf("mempool max transactions must be positive"))
	}
	if m.MaxBytes == 0 {
		errs = multierror.Append(errs, fmt.Errorf("mempool max bytes must be positive"))
	}
	if m.ForwardRatioBps > maxForwardRatioBps {
		errs = multierror.Append(errs, fmt.Errorf("forward ratio must be at most %d bp, got %d", maxForwardRatioBps, m.ForwardRatioBps))
	}
	if m.EnableForwarding && m.ForwardBatchMax == 0 {
		errs = multierror.Append(errs, fmt.Errorf("forward batch max must be positive when forwarding is enabled"))
	}
	if m.ForwardWorkers < 1 {
		errs = multierror.Append(errs, fmt.Errorf("forward workers must be positive, got %d", m.ForwardWorkers))
	}
	if m.SenderBucketCapacity < 1 {
		errs = multierror.Append(errs, fmt.Errorf("sender bucket capacity must be positive, got %d", m.SenderBucketCapacity))
	}
	if m.SenderRefillPerSecond < 0 {
		errs = multierror.Append(errs, fmt.Errorf("sender refill rate must not be negative, got %v", m.SenderRefillPerSecond))
	}
	if m.BehaviorFloor < 0 || m.BehaviorFloor > 100 {
		errs = multierror.Append(errs, fmt.Errorf("behavior floor must be in [0, 100], got %d", m.BehaviorFloor))
	}

	if c.Storage.Datadir == "" {
		errs = multierror.Append(errs, fmt.Errorf("storage datadir must be set"))
	}
	if c.Network.SendRetryBase <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("send retry base must be positive, got %v", c.Network.SendRetryBase))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return NewInvalidConfigError(err)
	}
	return nil
}
