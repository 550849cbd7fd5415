package config

import (
	"time"

	"github.com/garpnet/consensus-core/consensus/engines"
	"github.com/garpnet/consensus-core/consensus/timing"
	"github.com/garpnet/consensus-core/consensus/validators"
	"github.com/garpnet/consensus-core/module/mempool"
	"github.com/garpnet/consensus-core/network"
)

// Config is the complete configuration of a consensus participant.
type Config struct {
	Chain     ChainConfig              `mapstructure:"chain"`
	Consensus engines.Params           `mapstructure:"consensus"`
	Staking   validators.StakingParams `mapstructure:"staking"`
	Mempool   mempool.Config           `mapstructure:"mempool"`
	Storage   StorageConfig            `mapstructure:"storage"`
	Network   NetworkConfig            `mapstructure:"network"`
}

// ChainConfig holds the timing parameters every participant must agree on.
type ChainConfig struct {
	GenesisTime  time.Time     `mapstructure:"genesis-time"`
	SlotDuration time.Duration `mapstructure:"slot-duration"`
	EpochLength  uint64        `mapstructure:"epoch-length"`
	// RotationInterval is the number of slots between validator rotations.
	// Zero disables rotation.
	RotationInterval uint64 `mapstructure:"rotation-interval"`
}

// Schedule returns the slot schedule described by the chain configuration.
func (c ChainConfig) Schedule() timing.Schedule {
	return timing.Schedule{
		Genesis:      c.GenesisTime,
		SlotDuration: c.SlotDuration,
		EpochLength:  c.EpochLength,
	}
}

type StorageConfig struct {
	Datadir string `mapstructure:"datadir"`
	// CacheSize is the number of entries held by each storage read cache.
	CacheSize uint `mapstructure:"cache-size"`
}

type NetworkConfig struct {
	SendRetries   uint64        `mapstructure:"send-retries"`
	SendRetryBase time.Duration `mapstructure:"send-retry-base"`
}

// DefaultGenesisTime is the genesis of a local development chain.
var DefaultGenesisTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func DefaultConfig() *Config {
	return &Config{
		Chain: ChainConfig{
			GenesisTime:      DefaultGenesisTime,
			SlotDuration:     400 * time.Millisecond,
			EpochLength:      432_000,
			RotationInterval: 0,
		},
		Consensus: engines.DefaultParams(),
		Staking:   validators.DefaultStakingParams(),
		Mempool:   mempool.DefaultConfig(),
		Storage: StorageConfig{
			Datadir:   "/data/consensus",
			CacheSize: 1000,
		},
		Network: NetworkConfig{
			SendRetries:   network.DefaultSendRetries,
			SendRetryBase: network.DefaultSendRetryBase,
		},
	}
}
