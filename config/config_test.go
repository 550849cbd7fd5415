package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garpnet/consensus-core/config"
	"github.com/garpnet/consensus-core/consensus/engines"
	"github.com/garpnet/consensus-core/utils/unittest"
)

func newFlags(t *testing.T) *pflag.FlagSet {
	flags := pflag.NewFlagSet(t.Name(), pflag.ContinueOnError)
	config.InitializeFlags(flags, config.DefaultConfig())
	return flags
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(667), cfg.Consensus.QuorumRatioThousandths)
	assert.Equal(t, uint(100_000), cfg.Mempool.MaxTransactions)
	assert.Equal(t, uint64(50*1024*1024), cfg.Mempool.MaxBytes)
	assert.Equal(t, uint32(1000), cfg.Mempool.ForwardRatioBps)
	assert.Equal(t, 20, cfg.Mempool.BehaviorFloor)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(newFlags(t), "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoadFlags(t *testing.T) {
	flags := newFlags(t)
	require.NoError(t, flags.Parse([]string{
		"--algorithm=HotStuff",
		"--slot-duration=2s",
		"--genesis-time=2030-05-01T12:00:00Z",
		"--mempool-min-fee=25",
		"--mempool-sender-refill-per-second=12.5",
		"--mempool-banned-senders=mallory,eve",
		"--liveness-timeout=45s",
		"--weighted-voting=false",
	}))

	cfg, err := config.Load(flags, "")
	require.NoError(t, err)

	assert.Equal(t, engines.HotStuff, cfg.Consensus.Algorithm)
	assert.Equal(t, 2*time.Second, cfg.Chain.SlotDuration)
	assert.True(t, time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC).Equal(cfg.Chain.GenesisTime))
	assert.Equal(t, uint64(25), cfg.Mempool.MinFee)
	assert.Equal(t, 12.5, cfg.Mempool.SenderRefillPerSecond)
	assert.Equal(t, []string{"mallory", "eve"}, cfg.Mempool.BannedSenders)
	assert.Equal(t, 45*time.Second, cfg.Consensus.LivenessTimeout)
	assert.False(t, cfg.Consensus.WeightedVoting)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CONSENSUS_MEMPOOL_MAX_TRANSACTIONS", "42")
	t.Setenv("CONSENSUS_CONSENSUS_ALGORITHM", "raft")

	flags := newFlags(t)
	require.NoError(t, flags.Parse([]string{"--algorithm=streamlet"}))

	cfg, err := config.Load(flags, "")
	require.NoError(t, err)
	assert.Equal(t, uint(42), cfg.Mempool.MaxTransactions)
	assert.Equal(t, engines.Streamlet, cfg.Consensus.Algorithm, "explicit flags take precedence over the environment")
}

func TestLoadFile(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		path := filepath.Join(dir, "config.yaml")
		content := []byte(`
consensus:
  algorithm: pbft
  byzantine-threshold: 2
storage:
  datadir: /var/lib/consensus
mempool:
  enable-forwarding: false
`)
		require.NoError(t, os.WriteFile(path, content, 0o600))

		cfg, err := config.Load(newFlags(t), path)
		require.NoError(t, err)
		assert.Equal(t, engines.PBFT, cfg.Consensus.Algorithm)
		assert.Equal(t, uint64(2), cfg.Consensus.ByzantineThreshold)
		assert.Equal(t, "/var/lib/consensus", cfg.Storage.Datadir)
		assert.False(t, cfg.Mempool.EnableForwarding)
	})
}

func TestLoadRejectsUnknownAlgorithm(t *testing.T) {
	flags := newFlags(t)
	require.NoError(t, flags.Parse([]string{"--algorithm=paxos"}))
	_, err := config.Load(flags, "")
	assert.Error(t, err)
}

func TestLoadRequiresInitializedFlags(t *testing.T) {
	_, err := config.Load(pflag.NewFlagSet("empty", pflag.ContinueOnError), "")
	assert.Error(t, err)
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Chain.EpochLength = 0
	cfg.Chain.SlotDuration = 0
	cfg.Consensus.QuorumRatioThousandths = 1001
	cfg.Mempool.ForwardRatioBps = 10_001
	cfg.Mempool.MaxTransactions = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, config.IsInvalidConfigError(err))

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 5)
	assert.True(t, engines.IsInvalidParamsError(err))
}

func TestValidateBounds(t *testing.T) {
	cases := map[string]func(*config.Config){
		"negative behavior floor":  func(c *config.Config) { c.Mempool.BehaviorFloor = -1 },
		"behavior floor above max": func(c *config.Config) { c.Mempool.BehaviorFloor = 101 },
		"no forward workers":       func(c *config.Config) { c.Mempool.ForwardWorkers = 0 },
		"empty sender bucket":      func(c *config.Config) { c.Mempool.SenderBucketCapacity = 0 },
		"zero byte budget":         func(c *config.Config) { c.Mempool.MaxBytes = 0 },
		"empty datadir":            func(c *config.Config) { c.Storage.Datadir = "" },
		"zero retry base":          func(c *config.Config) { c.Network.SendRetryBase = 0 },
		"no staking validators":    func(c *config.Config) { c.Staking.MaxValidators = 0 },
		"forwarding without batch": func(c *config.Config) { c.Mempool.ForwardBatchMax = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			mutate(cfg)
			assert.True(t, config.IsInvalidConfigError(cfg.Validate()))
		})
	}
}

func TestAllFlagNamesAreInitialized(t *testing.T) {
	flags := newFlags(t)
	for _, name := range config.AllFlagNames() {
		assert.NotNil(t, flags.Lookup(name), name)
	}
}
