package mempool

const (
	DefaultMaxTransactions       = 100_000
	DefaultMaxBytes              = 50 * 1024 * 1024
	DefaultForwardRatioBps       = 1000
	DefaultForwardBatchMax       = 1024
	DefaultPrefetchHintDepth     = 256
	DefaultSenderBucketCapacity  = 50_000
	DefaultSenderRefillPerSecond = 10_000
	DefaultBehaviorFloor         = 20
	DefaultForwardWorkers        = 8

	// InitialBehaviorScore is the score of a sender never adjusted.
	InitialBehaviorScore = 100
	MaxBehaviorScore     = 100
	MinBehaviorScore     = 0
	maxBasisPoints       = 10_000
)

// Config is the admission, extraction and forwarding policy of a Pool.
type Config struct {
	MaxTransactions uint   `mapstructure:"max-transactions"`
	MaxBytes        uint64 `mapstructure:"max-bytes"`
	MinFee          uint64 `mapstructure:"min-fee"`

	EnableForwarding bool `mapstructure:"enable-forwarding"`
	// ForwardRatioBps is the share of the pool, in basis points, forwarded per round.
	ForwardRatioBps   uint32 `mapstructure:"forward-ratio-bps"`
	ForwardBatchMax   uint   `mapstructure:"forward-batch-max"`
	ForwardWorkers    int    `mapstructure:"forward-workers"`
	PrefetchHintDepth uint   `mapstructure:"prefetch-hint-depth"`

	// SenderBucketCapacity and SenderRefillPerSecond size the per-sender token
	// bucket. Tokens are serialized bytes.
	SenderBucketCapacity  int     `mapstructure:"sender-bucket-capacity"`
	SenderRefillPerSecond float64 `mapstructure:"sender-refill-per-second"`
	// BehaviorFloor gates senders whose behavior score is below it.
	BehaviorFloor int      `mapstructure:"behavior-floor"`
	BannedSenders []string `mapstructure:"banned-senders"`
}

func DefaultConfig() Config {
	return Config{
		MaxTransactions:       DefaultMaxTransactions,
		MaxBytes:              DefaultMaxBytes,
		MinFee:                0,
		EnableForwarding:      true,
		ForwardRatioBps:       DefaultForwardRatioBps,
		ForwardBatchMax:       DefaultForwardBatchMax,
		ForwardWorkers:        DefaultForwardWorkers,
		PrefetchHintDepth:     DefaultPrefetchHintDepth,
		SenderBucketCapacity:  DefaultSenderBucketCapacity,
		SenderRefillPerSecond: DefaultSenderRefillPerSecond,
		BehaviorFloor:         DefaultBehaviorFloor,
		BannedSenders:         []string{},
	}
}
