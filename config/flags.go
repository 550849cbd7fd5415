package config

import (
	"time"

	"github.com/spf13/pflag"
)

const (
	// All constant strings are used for CLI flag names. Each maps to the
	// configuration key of the same value in flagKeys.
	// chain
	genesisTime      = "genesis-time"
	slotDuration     = "slot-duration"
	epochLength      = "epoch-length"
	rotationInterval = "rotation-interval"
	// consensus
	algorithm          = "algorithm"
	quorumRatio        = "quorum-ratio"
	byzantineThreshold = "byzantine-threshold"
	maxViewChanges     = "max-view-changes"
	livenessTimeout    = "liveness-timeout"
	proposalTimeout    = "proposal-timeout"
	maxValidators      = "max-validators"
	minValidators      = "min-validators"
	weightedVoting     = "weighted-voting"
	maxLockoutDepth    = "max-lockout-depth"
	// staking
	minSelfBond          = "min-self-bond"
	minDelegation        = "min-delegation"
	stakingMaxValidators = "staking-max-validators"
	unbondingPeriod      = "unbonding-period"
	// mempool
	mempoolMaxTransactions = "mempool-max-transactions"
	mempoolMaxBytes        = "mempool-max-bytes"
	mempoolMinFee          = "mempool-min-fee"
	enableForwarding       = "mempool-enable-forwarding"
	forwardRatioBps        = "mempool-forward-ratio-bps"
	forwardBatchMax        = "mempool-forward-batch-max"
	forwardWorkers         = "mempool-forward-workers"
	prefetchHintDepth      = "mempool-prefetch-hint-depth"
	senderBucketCapacity   = "mempool-sender-bucket-capacity"
	senderRefillPerSecond  = "mempool-sender-refill-per-second"
	behaviorFloor          = "mempool-behavior-floor"
	bannedSenders          = "mempool-banned-senders"
	// storage
	datadir   = "datadir"
	cacheSize = "cache-size"
	// network
	sendRetries   = "send-retries"
	sendRetryBase = "send-retry-base"
)

// flagKeys maps every flag name to its key in the configuration tree.
var flagKeys = map[string]string{
	genesisTime:      "chain.genesis-time",
	slotDuration:     "chain.slot-duration",
	epochLength:      "chain.epoch-length",
	rotationInterval: "chain.rotation-interval",

	algorithm:          "consensus.algorithm",
	quorumRatio:        "consensus.quorum-ratio",
	byzantineThreshold: "consensus.byzantine-threshold",
	maxViewChanges:     "consensus.max-view-changes",
	livenessTimeout:    "consensus.liveness-timeout",
	proposalTimeout:    "consensus.proposal-timeout",
	maxValidators:      "consensus.max-validators",
	minValidators:      "consensus.min-validators",
	weightedVoting:     "consensus.weighted-voting",
	maxLockoutDepth:    "consensus.max-lockout-depth",

	minSelfBond:          "staking.min-self-bond",
	minDelegation:        "staking.min-delegation",
	stakingMaxValidators: "staking.max-validators",
	unbondingPeriod:      "staking.unbonding-period",

	mempoolMaxTransactions: "mempool.max-transactions",
	mempoolMaxBytes:        "mempool.max-bytes",
	mempoolMinFee:          "mempool.min-fee",
	enableForwarding:       "mempool.enable-forwarding",
	forwardRatioBps:        "mempool.forward-ratio-bps",
	forwardBatchMax:        "mempool.forward-batch-max",
	forwardWorkers:         "mempool.forward-workers",
	prefetchHintDepth:      "mempool.prefetch-hint-depth",
	senderBucketCapacity:   "mempool.sender-bucket-capacity",
	senderRefillPerSecond:  "mempool.sender-refill-per-second",
	behaviorFloor:          "mempool.behavior-floor",
	bannedSenders:          "mempool.banned-senders",

	datadir:   "storage.datadir",
	cacheSize: "storage.cache-size",

	sendRetries:   "network.send-retries",
	sendRetryBase: "network.send-retry-base",
}

func AllFlagNames() []string {
	names := make([]string, 0, len(flagKeys))
	for name := range flagKeys {
		names = append(names, name)
	}
	return names
}

// InitializeFlags initializes all CLI flags of the participant configuration on the provided pflag set.
// Args:
//
//	*pflag.FlagSet: the pflag set of the node command.
//	*Config: the default config used to set default values on the flags
func InitializeFlags(flags *pflag.FlagSet, config *Config) {
	flags.String(genesisTime, config.Chain.GenesisTime.Format(time.RFC3339), "genesis time of the chain (RFC 3339)")
	flags.Duration(slotDuration, config.Chain.SlotDuration, "duration of a slot")
	flags.Uint64(epochLength, config.Chain.EpochLength, "number of slots per epoch")
	flags.Uint64(rotationInterval, config.Chain.RotationInterval, "number of slots between validator rotations, 0 disables rotation")

	flags.String(algorithm, config.Consensus.Algorithm.String(), "consensus algorithm: tendermint, hotstuff, pbft, honeybadger, streamlet, raft or proof-of-stakeholder")
	flags.Uint64(quorumRatio, config.Consensus.QuorumRatioThousandths, "approval share required for quorum, in thousandths")
	flags.Uint64(byzantineThreshold, config.Consensus.ByzantineThreshold, "number of tolerated faulty validators, 0 derives it from the validator count")
	flags.Uint64(maxViewChanges, config.Consensus.MaxViewChanges, "consecutive view changes without progress before a liveness failure is reported")
	flags.Duration(livenessTimeout, config.Consensus.LivenessTimeout, "time without finalization after which the view is changed")
	flags.Duration(proposalTimeout, config.Consensus.ProposalTimeout, "lifetime of a consensus proposal")
	flags.Int(maxValidators, config.Consensus.MaxValidators, "maximum number of validators participating in consensus")
	flags.Int(minValidators, config.Consensus.MinValidators, "minimum number of validators required for consensus")
	flags.Bool(weightedVoting, config.Consensus.WeightedVoting, "count voting power instead of validators in BFT quorums")
	flags.Int(maxLockoutDepth, config.Consensus.MaxLockoutDepth, "maximum number of stacked vote lockouts per validator")

	flags.Uint64(minSelfBond, config.Staking.MinSelfBond, "minimum self-bonded stake of a validator")
	flags.Uint64(minDelegation, config.Staking.MinDelegation, "minimum size of a delegation")
	flags.Int(stakingMaxValidators, config.Staking.MaxValidators, "maximum number of active validators after rotation")
	flags.Duration(unbondingPeriod, config.Staking.UnbondingPeriod, "time undelegated stake stays bonded")

	flags.Uint(mempoolMaxTransactions, config.Mempool.MaxTransactions, "maximum number of pending transactions")
	flags.Uint64(mempoolMaxBytes, config.Mempool.MaxBytes, "maximum total serialized size of pending transactions")
	flags.Uint64(mempoolMinFee, config.Mempool.MinFee, "minimum fee for admission")
	flags.Bool(enableForwarding, config.Mempool.EnableForwarding, "forward pending transactions to upcoming leaders")
	flags.Uint32(forwardRatioBps, config.Mempool.ForwardRatioBps, "share of the pool forwarded per round, in basis points")
	flags.Uint(forwardBatchMax, config.Mempool.ForwardBatchMax, "maximum number of transactions forwarded per round")
	flags.Int(forwardWorkers, config.Mempool.ForwardWorkers, "number of workers sending forwarded transactions")
	flags.Uint(prefetchHintDepth, config.Mempool.PrefetchHintDepth, "number of top transactions to prefetch state for")
	flags.Int(senderBucketCapacity, config.Mempool.SenderBucketCapacity, "per-sender rate limit burst, in serialized bytes")
	flags.Float64(senderRefillPerSecond, config.Mempool.SenderRefillPerSecond, "per-sender rate limit refill, in serialized bytes per second")
	flags.Int(behaviorFloor, config.Mempool.BehaviorFloor, "senders with a behavior score below this value are refused")
	flags.StringSlice(bannedSenders, config.Mempool.BannedSenders, "senders whose transactions are always refused")

	flags.String(datadir, config.Storage.Datadir, "directory of the block database")
	flags.Uint(cacheSize, config.Storage.CacheSize, "number of entries held by each storage read cache")

	flags.Uint64(sendRetries, config.Network.SendRetries, "number of retries for a failed send")
	flags.Duration(sendRetryBase, config.Network.SendRetryBase, "initial backoff between send retries")
}
