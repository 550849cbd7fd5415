package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/garpnet/consensus-core/config"
	"github.com/garpnet/consensus-core/consensus"
	"github.com/garpnet/consensus-core/consensus/forks"
	"github.com/garpnet/consensus-core/consensus/manager"
	"github.com/garpnet/consensus-core/consensus/tower"
	"github.com/garpnet/consensus-core/consensus/validators"
	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module/mempool"
	"github.com/garpnet/consensus-core/module/metrics"
	"github.com/garpnet/consensus-core/network"
	"github.com/garpnet/consensus-core/network/codec/cbor"
	"github.com/garpnet/consensus-core/network/stub"
	"github.com/garpnet/consensus-core/storage"
	badgerstorage "github.com/garpnet/consensus-core/storage/badger"
)

// BaseConfig holds the node settings that are not shared by all participants.
type BaseConfig struct {
	ConfigFile string
	// Validators lists the local network as id=stake entries.
	Validators  []string
	MetricsPort uint
	Profiler    bool
	level       string
}

func (nb *NodeBuilder) baseFlags() {
	nb.flags.StringVar(&nb.BaseConfig.ConfigFile, "config", "", "path to a YAML, JSON or TOML configuration file")
	nb.flags.StringSliceVar(&nb.BaseConfig.Validators, "validators", []string{"p00=1000", "p01=1000", "p02=1000", "p03=1000"}, "validators of the local network as id=stake entries")
	nb.flags.UintVar(&nb.BaseConfig.MetricsPort, "metrics-port", 8080, "port of the prometheus metrics endpoint, 0 disables it")
	nb.flags.BoolVar(&nb.BaseConfig.Profiler, "profiler-enabled", false, "serve pprof on the metrics port")
	nb.flags.StringVarP(&nb.BaseConfig.level, "loglevel", "l", "info", "level for logging output")
	config.InitializeFlags(nb.flags, config.DefaultConfig())
}

// NodeBuilder assembles a node running every configured validator as an
// in-process participant. The participants share a stub network hub and
// the metrics collectors; each has its own database below the data directory.
type NodeBuilder struct {
	BaseConfig BaseConfig
	Config     *config.Config
	Logger     zerolog.Logger
	Validators []validators.Validator
	Genesis    *chain.Block
	Registry   *prometheus.Registry

	flags *pflag.FlagSet
	name  string
	codec *cbor.Codec
	hub   *stub.Hub

	consensusMetrics *metrics.ConsensusCollector
	validatorMetrics *metrics.ValidatorCollector
	mempoolMetrics   *metrics.MempoolCollector
	cacheMetrics     *metrics.CacheCollector
}

// NewNodeBuilder registers the node flags on flags.
func NewNodeBuilder(name string, flags *pflag.FlagSet) *NodeBuilder {
	builder := &NodeBuilder{
		name:  name,
		flags: flags,
	}
	builder.baseFlags()
	return builder
}

// Build loads the configuration and creates all participants. Flags must
// be parsed.
func (nb *NodeBuilder) Build() (*Node, error) {
	err := nb.initLogger()
	if err != nil {
		return nil, err
	}
	err = nb.initConfig()
	if err != nil {
		return nil, err
	}
	err = nb.initValidators()
	if err != nil {
		return nil, err
	}
	nb.initMetrics()
	nb.initNetwork()
	nb.initGenesis()

	node := &Node{
		log:          nb.Logger,
		slotDuration: nb.Config.Chain.SlotDuration,
	}
	for _, v := range nb.Validators {
		local, err := nb.buildParticipant(v.ID)
		if local != nil {
			node.participants = append(node.participants, local)
		}
		if err != nil {
			closeErr := node.Close()
			if closeErr != nil {
				nb.Logger.Error().Err(closeErr).Msg("could not release participants after failed start")
			}
			return nil, fmt.Errorf("could not build participant %s: %w", v.ID, err)
		}
	}
	if nb.BaseConfig.MetricsPort > 0 {
		node.server = metrics.NewServer(nb.Logger, nb.BaseConfig.MetricsPort, nb.Registry, nb.BaseConfig.Profiler)
	}

	nb.Logger.Info().
		Int("participants", len(node.participants)).
		Str("algorithm", nb.Config.Consensus.Algorithm.String()).
		Dur("slot_duration", nb.Config.Chain.SlotDuration).
		Msgf("%s node initialized", nb.name)
	return node, nil
}

func (nb *NodeBuilder) initLogger() error {
	// configure logger with standard level and UTC timestamp
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Str("node", nb.name).Logger()

	lvl, err := zerolog.ParseLevel(strings.ToLower(nb.BaseConfig.level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", nb.BaseConfig.level, err)
	}
	nb.Logger = log.Level(lvl)
	return nil
}

func (nb *NodeBuilder) initConfig() error {
	cfg, err := config.Load(nb.flags, nb.BaseConfig.ConfigFile)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	nb.Config = cfg
	return nil
}

func (nb *NodeBuilder) initValidators() error {
	vals, err := parseValidators(nb.BaseConfig.Validators, nb.Config.Chain.GenesisTime)
	if err != nil {
		return err
	}
	nb.Validators = vals
	return nil
}

// parseValidators reads id=stake entries. Identities must be unique.
func parseValidators(entries []string, joinedAt time.Time) ([]validators.Validator, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("at least one validator is required")
	}
	seen := make(map[chain.ParticipantID]struct{}, len(entries))
	vals := make([]validators.Validator, 0, len(entries))
	for _, entry := range entries {
		id, stake, ok := strings.Cut(entry, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("malformed validator entry %q, expected id=stake", entry)
		}
		amount, err := strconv.ParseUint(stake, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed stake in validator entry %q: %w", entry, err)
		}
		participant := chain.ParticipantID(id)
		if _, ok := seen[participant]; ok {
			return nil, fmt.Errorf("duplicate validator %s", participant)
		}
		seen[participant] = struct{}{}
		vals = append(vals, validators.NewValidator(participant, []byte(participant), amount, 0, joinedAt))
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i].ID < vals[j].ID })
	return vals, nil
}

func (nb *NodeBuilder) initMetrics() {
	nb.Registry = prometheus.NewRegistry()
	nb.consensusMetrics = metrics.NewConsensusCollector(nb.Registry)
	nb.validatorMetrics = metrics.NewValidatorCollector(nb.Registry)
	nb.mempoolMetrics = metrics.NewMempoolCollector(nb.Registry)
	nb.cacheMetrics = metrics.NewCacheCollector(nb.Registry)
}

func (nb *NodeBuilder) initNetwork() {
	nb.codec = cbor.NewCodec()
	nb.hub = stub.NewHub(nb.codec, stub.DefaultInboxSize)
}

// initGenesis creates the root block. It only depends on the chain
// configuration, so all participants agree on it.
func (nb *NodeBuilder) initGenesis() {
	nb.Genesis = &chain.Block{
		Header: chain.Header{
			Slot:   0,
			Epoch:  0,
			TxRoot: chain.ComputeTxRoot(nil),
		},
		Timestamp: nb.Config.Chain.GenesisTime,
	}
}

func (nb *NodeBuilder) buildParticipant(id chain.ParticipantID) (*localParticipant, error) {
	cfg := nb.Config
	log := nb.Logger.With().Str("participant", id.String()).Logger()

	dir := filepath.Join(cfg.Storage.Datadir, id.String())
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("could not open key-value store at %s: %w", dir, err)
	}
	local := &localParticipant{id: id, db: db}

	registry := validators.NewRegistry(log, nb.validatorMetrics, validators.WithStakingParams(cfg.Staking))
	for _, v := range nb.Validators {
		err = registry.Add(v)
		if err != nil {
			return local, fmt.Errorf("could not register validator %s: %w", v.ID, err)
		}
	}
	mgr, err := manager.New(log, nb.consensusMetrics, registry, id, cfg.Consensus)
	if err != nil {
		return local, fmt.Errorf("could not create consensus manager: %w", err)
	}

	ledger := tower.NewLedger(log, nb.consensusMetrics)
	graph := forks.New(log, nb.consensusMetrics)
	blocks := badgerstorage.NewBlocks(nb.cacheMetrics, db, cfg.Storage.CacheSize)
	err = restoreChain(graph, blocks, nb.Genesis)
	if err != nil {
		return local, fmt.Errorf("could not restore chain: %w", err)
	}

	transport, err := network.NewRetryingTransport(log, nb.hub.Join(id), cfg.Network.SendRetries, cfg.Network.SendRetryBase)
	if err != nil {
		return local, fmt.Errorf("could not create transport: %w", err)
	}
	local.transport = transport
	local.pool = mempool.New(log, nb.mempoolMetrics, transport, cfg.Mempool, mempool.WithReplayFilter(graph))

	local.participant = consensus.NewParticipant(log, nb.consensusMetrics, id, nb.Genesis.ID(), cfg.Chain.Schedule(),
		mgr, ledger, graph, blocks, local.pool, nb.codec,
		consensus.WithTransport(transport),
		consensus.WithSigner(digestSigner{id: id}),
		consensus.WithVerifier(digestVerifier{registry: registry}),
		consensus.WithRotationInterval(cfg.Chain.RotationInterval),
	)
	err = local.participant.SyncWeights()
	if err != nil {
		return local, err
	}
	return local, nil
}

// restoreChain stores the genesis block and loads the blocks persisted by an
// earlier run into the fork graph, one per slot.
func restoreChain(graph *forks.Graph, blocks storage.Blocks, genesis *chain.Block) error {
	err := blocks.Store(genesis)
	if err != nil {
		return fmt.Errorf("could not store genesis block: %w", err)
	}
	graph.InsertBlock(genesis)

	latest, err := blocks.Latest()
	if err != nil {
		return fmt.Errorf("could not read latest block: %w", err)
	}
	for slot := genesis.Header.Slot + 1; slot <= latest.Header.Slot; slot++ {
		block, err := blocks.BySlot(slot)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("could not read block at slot %d: %w", slot, err)
		}
		graph.InsertBlock(block)
	}
	return nil
}
