// Package manager provides the single integration point for consensus: it
// owns the current consensus engine and delegates validator lifecycle
// operations to the validator registry, keeping the engine's validator set
// in step with the registry.
package manager

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/garpnet/consensus-core/consensus/engines"
	"github.com/garpnet/consensus-core/consensus/validators"
	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module"
)

// Manager holds the exchangeable handle to the current consensus engine.
// Replacing the engine discards every proposal tracked by the old one.
type Manager struct {
	sync.RWMutex
	log         zerolog.Logger
	metrics     module.ConsensusMetrics
	registry    *validators.Registry
	participant chain.ParticipantID
	params      engines.Params
	engine      engines.Engine
	engineOpts  []engines.Option
}

// New creates a manager running the algorithm named in params. The engine is
// seeded with the registry's active validators.
// Expected errors:
//   - engines.UnknownTypeError or engines.InvalidParamsError for unusable params
func New(
	log zerolog.Logger,
	collector module.ConsensusMetrics,
	registry *validators.Registry,
	participant chain.ParticipantID,
	params engines.Params,
	opts ...engines.Option,
) (*Manager, error) {
	m := &Manager{
		log:         log.With().Str("component", "consensus_manager").Logger(),
		metrics:     collector,
		registry:    registry,
		participant: participant,
		engineOpts:  opts,
	}
	engine, err := m.build(params.Algorithm, params)
	if err != nil {
		return nil, fmt.Errorf("could not create %s engine: %w", params.Algorithm, err)
	}
	m.engine = engine
	m.params = engine.Params()
	return m, nil
}

// build constructs a fresh engine and seeds it with the current active set.
func (m *Manager) build(t engines.Type, params engines.Params) (engines.Engine, error) {
	engine, err := engines.New(m.log, t, m.participant, params, m.engineOpts...)
	if err != nil {
		return nil, err
	}
	m.seed(engine)
	return engine, nil
}

// seed makes the engine's validator set equal to the registry's active
// validators, limited to the MaxValidators with the most voting power.
func (m *Manager) seed(engine engines.Engine) {
	active := m.registry.Active()
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].VotingPower > active[j].VotingPower
	})
	if limit := engine.Params().MaxValidators; len(active) > limit {
		active = active[:limit]
	}

	desired := make(map[chain.ParticipantID]uint64, len(active))
	for _, v := range active {
		desired[v.ID] = v.VotingPower
	}
	for _, current := range engine.Validators() {
		if _, ok := desired[current.ID]; !ok {
			engine.RemoveValidator(current.ID)
		}
	}
	for id, power := range desired {
		engine.AddValidator(id, power)
	}
}

// sync propagates the registry state into the current engine after a
// lifecycle operation. The manager lock keeps it from racing with a switch.
func (m *Manager) sync() {
	m.Lock()
	defer m.Unlock()
	m.seed(m.engine)
}

// SwitchEngine replaces the current engine with a fresh instance of the given
// algorithm, built with the current parameters.
// Expected errors:
//   - engines.UnknownTypeError if t is not an enumerated algorithm
func (m *Manager) SwitchEngine(t engines.Type) error {
	m.Lock()
	defer m.Unlock()

	params := m.params
	params.Algorithm = t
	engine, err := m.build(t, params)
	if err != nil {
		return fmt.Errorf("could not switch to %s engine: %w", t, err)
	}
	previous := m.engine.Type()
	m.engine = engine
	m.params = engine.Params()

	m.metrics.EngineSwitched(t.String())
	m.log.Info().
		Str("from", previous.String()).
		Str("to", t.String()).
		Int("validators", len(engine.Validators())).
		Msg("consensus engine switched")
	return nil
}

// EngineType returns the algorithm of the current engine.
func (m *Manager) EngineType() engines.Type {
	m.RLock()
	defer m.RUnlock()
	return m.engine.Type()
}

// Params returns the parameters of the current engine.
func (m *Manager) Params() engines.Params {
	m.RLock()
	defer m.RUnlock()
	return m.engine.Params()
}

// UpdateParams stores the parameters and rebuilds the current algorithm with
// them. The algorithm itself is not changed; use SwitchEngine for that.
// Expected errors:
//   - engines.InvalidParamsError if params are inconsistent, in which case nothing changes
func (m *Manager) UpdateParams(params engines.Params) error {
	m.Lock()
	defer m.Unlock()

	t := m.engine.Type()
	params.Algorithm = t
	engine, err := m.build(t, params)
	if err != nil {
		return fmt.Errorf("could not rebuild %s engine: %w", t, err)
	}
	m.engine = engine
	m.params = engine.Params()

	m.log.Info().
		Str("algorithm", t.String()).
		Uint64("quorum_ratio", params.QuorumRatioThousandths).
		Dur("proposal_timeout", params.ProposalTimeout).
		Msg("consensus parameters updated")
	return nil
}

// Proposer returns the expected proposer for the view under the current algorithm.
func (m *Manager) Proposer(view uint64) (chain.ParticipantID, bool) {
	m.RLock()
	defer m.RUnlock()
	return m.engine.Proposer(view)
}

// EngineValidators returns the validator set the current engine decides with.
func (m *Manager) EngineValidators() []chain.ParticipantID {
	m.RLock()
	defer m.RUnlock()
	weighted := m.engine.Validators()
	ids := make([]chain.ParticipantID, 0, len(weighted))
	for _, w := range weighted {
		ids = append(ids, w.ID)
	}
	return ids
}

// SubmitProposal hands a proposal to the current engine.
func (m *Manager) SubmitProposal(p engines.Proposal) error {
	m.RLock()
	defer m.RUnlock()
	return m.engine.SubmitProposal(p)
}

// CastVote hands a vote to the current engine.
func (m *Manager) CastVote(v engines.Vote) error {
	m.RLock()
	defer m.RUnlock()
	return m.engine.CastVote(v)
}

// ProposalResult returns the state of a proposal in the current engine.
// Proposals submitted before the last switch are unknown.
func (m *Manager) ProposalResult(proposalID uuid.UUID) (engines.Result, error) {
	m.RLock()
	defer m.RUnlock()
	return m.engine.Result(proposalID)
}

// ExpireProposals times out the current engine's overdue proposals.
func (m *Manager) ExpireProposals(now time.Time) []engines.Result {
	m.RLock()
	defer m.RUnlock()
	return m.engine.ExpireProposals(now)
}
