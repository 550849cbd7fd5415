// Package consensus wires the consensus components of a participant
// together: it validates and stores proposed blocks, feeds votes into the
// vote ledger and the fork graph, and drives leader forwarding, block
// production and liveness from the slot clock.
package consensus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/garpnet/consensus-core/consensus/engines"
	"github.com/garpnet/consensus-core/consensus/forks"
	"github.com/garpnet/consensus-core/consensus/manager"
	"github.com/garpnet/consensus-core/consensus/timing"
	"github.com/garpnet/consensus-core/consensus/tower"
	"github.com/garpnet/consensus-core/crypto"
	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module"
	"github.com/garpnet/consensus-core/module/mempool"
	"github.com/garpnet/consensus-core/network"
	"github.com/garpnet/consensus-core/storage"
	"github.com/garpnet/consensus-core/utils/logging"
)

const (
	// DefaultLeaderWindow is the number of upcoming slots whose leaders
	// receive forwarded transactions.
	DefaultLeaderWindow = 4
	// DefaultMaxBlockTransactions bounds the transactions in a produced block.
	DefaultMaxBlockTransactions = 1000
)

// trackedProposal links a block to the engine proposal opened for it.
type trackedProposal struct {
	blockID  chain.Identifier
	proposer chain.ParticipantID
}

// Participant is the message-handling glue of a consensus participant.
type Participant struct {
	sync.Mutex
	log      zerolog.Logger
	metrics  module.ConsensusMetrics
	me       chain.ParticipantID
	root     chain.Identifier
	schedule timing.Schedule

	manager *manager.Manager
	ledger  *tower.Ledger
	forks   *forks.Graph
	blocks  storage.Blocks
	pool    *mempool.Pool

	codec     network.Codec
	transport network.Transport
	signer    crypto.Signer
	verifier  crypto.Verifier
	now       func() time.Time

	leaderWindow     int
	maxBlockTxs      uint
	rotationInterval uint64

	proposals    map[uuid.UUID]trackedProposal
	byBlock      map[chain.Identifier]uuid.UUID
	lastProposed uint64
	proposed     bool
	lastRotation uint64

	view          uint64
	viewChanges   uint64
	lastProgress  time.Time
	lastFinalized uint64
	finalizedAny  bool
}

type Option func(*Participant)

// WithTransport enables broadcasting produced blocks and own votes.
func WithTransport(transport network.Transport) Option {
	return func(p *Participant) {
		p.transport = transport
	}
}

// WithSigner lets the participant vote on valid blocks.
func WithSigner(signer crypto.Signer) Option {
	return func(p *Participant) {
		p.signer = signer
	}
}

// WithVerifier makes OnVote check vote signatures.
func WithVerifier(verifier crypto.Verifier) Option {
	return func(p *Participant) {
		p.verifier = verifier
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Participant) {
		p.now = now
	}
}

func WithLeaderWindow(slots int) Option {
	return func(p *Participant) {
		p.leaderWindow = slots
	}
}

func WithMaxBlockTransactions(max uint) Option {
	return func(p *Participant) {
		p.maxBlockTxs = max
	}
}

// WithRotationInterval rotates the validator set every interval slots.
func WithRotationInterval(interval uint64) Option {
	return func(p *Participant) {
		p.rotationInterval = interval
	}
}

// NewParticipant creates the participant me. root is the block all forks
// descend from; it is usually the genesis block and must already be known to
// the fork graph for produced blocks to build on it.
func NewParticipant(
	log zerolog.Logger,
	collector module.ConsensusMetrics,
	me chain.ParticipantID,
	root chain.Identifier,
	schedule timing.Schedule,
	mgr *manager.Manager,
	ledger *tower.Ledger,
	graph *forks.Graph,
	blocks storage.Blocks,
	pool *mempool.Pool,
	codec network.Codec,
	opts ...Option,
) *Participant {
	p := &Participant{
		log:          log.With().Str("component", "participant").Str("participant", me.String()).Logger(),
		metrics:      collector,
		me:           me,
		root:         root,
		schedule:     schedule,
		manager:      mgr,
		ledger:       ledger,
		forks:        graph,
		blocks:       blocks,
		pool:         pool,
		codec:        codec,
		now:          time.Now,
		leaderWindow: DefaultLeaderWindow,
		maxBlockTxs:  DefaultMaxBlockTransactions,
		proposals:    make(map[uuid.UUID]trackedProposal),
		byBlock:      make(map[chain.Identifier]uuid.UUID),
	}
	for _, apply := range opts {
		apply(p)
	}
	return p
}

// OnBlock validates a proposed block, persists it and inserts it into the
// fork graph. The block's transactions leave the mempool. Blocks already
// known are ignored.
// Expected errors:
//   - InvalidBlockError if the transaction root or the epoch do not match the block
//   - InvalidProposerError if the proposer is not the leader of the block's slot
//   - ErrNoValidators if no validator is active
func (p *Participant) OnBlock(block *chain.Block) error {
	if block == nil {
		return fmt.Errorf("nil block")
	}
	blockID := block.ID()
	header := block.Header

	if header.TxRoot != chain.ComputeTxRoot(block.Transactions) {
		return NewInvalidBlockErrorf(blockID, "transaction root does not match the included transactions")
	}
	if epoch := p.schedule.EpochOf(header.Slot); header.Epoch != epoch {
		return NewInvalidBlockErrorf(blockID, "epoch %d does not contain slot %d (expected epoch %d)", header.Epoch, header.Slot, epoch)
	}
	expected, ok := timing.LeaderForSlot(header.Slot, p.manager.ActiveIDs())
	if !ok {
		return ErrNoValidators
	}
	if header.ProposerID != expected {
		return InvalidProposerError{Slot: header.Slot, Expected: expected, Actual: header.ProposerID}
	}

	if p.forks.HasBlock(blockID) {
		return nil
	}
	// persist before the graph learns the block: a block that failed to
	// persist stays unknown and is processed again on redelivery
	err := p.blocks.Store(block)
	if err != nil {
		return fmt.Errorf("could not persist block %v: %w", blockID, err)
	}
	if !p.forks.InsertBlock(block) {
		return nil
	}
	p.pool.Remove(block.TransactionIDs()...)
	p.openProposal(block)

	p.log.Debug().
		Hex("block_id", logging.ID(block)).
		Uint64("slot", header.Slot).
		Str("proposer", header.ProposerID.String()).
		Int("transactions", len(block.Transactions)).
		Msg("block accepted")
	return nil
}

// openProposal submits the block's transactions to the active engine, so the
// engine tracks the proposal alongside the slot votes.
func (p *Participant) openProposal(block *chain.Block) {
	proposalID := uuid.New()
	err := p.manager.SubmitProposal(engines.Proposal{
		ID:           proposalID,
		Proposer:     block.Header.ProposerID,
		Transactions: block.TransactionIDs(),
		Stakeholders: p.manager.ActiveIDs(),
		CreatedAt:    p.now(),
	})
	if err != nil {
		p.log.Warn().Err(err).Hex("block_id", logging.ID(block)).Msg("could not open engine proposal for block")
		return
	}

	blockID := block.ID()
	p.forks.MapProposal(proposalID, blockID)
	p.Lock()
	defer p.Unlock()
	p.proposals[proposalID] = trackedProposal{blockID: blockID, proposer: block.Header.ProposerID}
	p.byBlock[blockID] = proposalID
}

// OnVote verifies and records a vote. It returns false if the vote was
// refused because the voter is locked out. An approving vote adds the voter's
// weight to the block; if the vote finalizes the slot, the block's proposer
// is credited with a successful proposal.
// Expected errors:
//   - InvalidVoteError if the signature or the slot of the vote is invalid
//   - ErrUnknownBlock if the voted block was never accepted
func (p *Participant) OnVote(vote chain.Vote) (bool, error) {
	if p.verifier != nil {
		valid, err := p.verifier.Verify(vote.VoterID, vote.SigningData(), vote.Signature)
		if crypto.IsInvalidSignerError(err) {
			return false, NewInvalidVoteErrorf(vote, "unknown signer: %w", err)
		}
		if err != nil {
			return false, fmt.Errorf("could not verify vote signature: %w", err)
		}
		if !valid {
			return false, NewInvalidVoteErrorf(vote, "invalid signature")
		}
	}

	header, ok := p.forks.Header(vote.BlockID)
	if !ok {
		return false, fmt.Errorf("vote for block %v: %w", vote.BlockID, ErrUnknownBlock)
	}
	if header.Slot != vote.Slot {
		return false, NewInvalidVoteErrorf(vote, "block %v is at slot %d", vote.BlockID, header.Slot)
	}

	if !p.ledger.RecordVote(vote.Slot, vote.VoterID, vote.Approve) {
		return false, nil
	}
	if vote.Approve {
		err := p.forks.AddVotes(vote.BlockID, p.ledger.WeightOf(vote.VoterID))
		if err != nil {
			return false, fmt.Errorf("could not add vote weight to block %v: %w", vote.BlockID, err)
		}
	}
	p.castEngineVote(vote)

	if _, newly := p.ledger.Finalize(vote.Slot); newly {
		err := p.manager.RecordSuccessfulProposal(header.ProposerID)
		if err != nil {
			p.log.Debug().Err(err).Str("proposer", header.ProposerID.String()).Msg("could not credit proposer")
		}
	}
	return true, nil
}

func (p *Participant) castEngineVote(vote chain.Vote) {
	p.Lock()
	proposalID, ok := p.byBlock[vote.BlockID]
	p.Unlock()
	if !ok {
		return
	}

	voteType := engines.Reject
	if vote.Approve {
		voteType = engines.Approve
	}
	err := p.manager.CastVote(engines.Vote{
		ProposalID: proposalID,
		Voter:      vote.VoterID,
		Type:       voteType,
		Timestamp:  p.now(),
	})
	if errors.Is(err, engines.ErrUnknownProposal) {
		// the engine was switched since the proposal was opened
		p.forget(proposalID)
		return
	}
	if err != nil {
		p.log.Debug().Err(err).Str("voter", vote.VoterID.String()).Msg("engine refused vote")
		return
	}

	result, err := p.manager.ProposalResult(proposalID)
	if err == nil && result.Outcome.Decided() {
		p.settle(result)
	}
}

// settle closes a decided proposal. Rejected and timed out proposals count
// against their proposer.
func (p *Participant) settle(result engines.Result) {
	tracked, ok := p.forget(result.ProposalID)
	if !ok {
		return
	}
	p.log.Debug().
		Str("proposal_id", result.ProposalID.String()).
		Str("block_id", tracked.blockID.String()).
		Str("outcome", result.Outcome.String()).
		Msg("proposal decided")
	if result.Outcome == engines.Approved {
		return
	}
	err := p.manager.RecordFailedProposal(tracked.proposer)
	if err != nil {
		p.log.Debug().Err(err).Str("proposer", tracked.proposer.String()).Msg("could not record failed proposal")
	}
}

func (p *Participant) forget(proposalID uuid.UUID) (trackedProposal, bool) {
	p.Lock()
	defer p.Unlock()
	tracked, ok := p.proposals[proposalID]
	if ok {
		delete(p.proposals, proposalID)
		delete(p.byBlock, tracked.blockID)
	}
	return tracked, ok
}

// SyncWeights copies the voting power of the active validators into the
// vote ledger's weight snapshot.
func (p *Participant) SyncWeights() error {
	active := p.manager.ActiveValidators()
	weights := make(map[chain.ParticipantID]uint64, len(active))
	for _, v := range active {
		weights[v.ID] = v.VotingPower
	}
	err := p.ledger.SetWeights(weights)
	if err != nil {
		return fmt.Errorf("could not update ledger weights: %w", err)
	}
	return nil
}

// Head returns the heaviest fork head descending from the root.
func (p *Participant) Head() chain.Identifier {
	return p.forks.BestFork(p.root)
}

// View returns the current view. It increases on every liveness view change.
func (p *Participant) View() uint64 {
	p.Lock()
	defer p.Unlock()
	return p.view
}

// ViewChanges returns the number of consecutive view changes without finalization.
func (p *Participant) ViewChanges() uint64 {
	p.Lock()
	defer p.Unlock()
	return p.viewChanges
}

// LatestFinalized returns the highest finalized slot. The second return value
// is false while no slot is finalized.
func (p *Participant) LatestFinalized() (uint64, bool) {
	return p.ledger.LatestFinalized()
}
