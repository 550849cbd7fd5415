package metrics

// Prometheus metric namespaces
const (
	namespaceConsensus = "consensus"
	namespaceStorage   = "storage"
)

// Consensus subsystems
const (
	subsystemMempool    = "mempool"
	subsystemTower      = "tower"
	subsystemForks      = "forks"
	subsystemEngine     = "engine"
	subsystemValidators = "validators"
)

// Storage subsystems
const (
	subsystemCache = "cache"
)
