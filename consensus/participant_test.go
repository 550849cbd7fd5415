package consensus_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/garpnet/consensus-core/consensus"
	"github.com/garpnet/consensus-core/consensus/engines"
	"github.com/garpnet/consensus-core/consensus/forks"
	"github.com/garpnet/consensus-core/consensus/manager"
	"github.com/garpnet/consensus-core/consensus/timing"
	"github.com/garpnet/consensus-core/consensus/tower"
	"github.com/garpnet/consensus-core/consensus/validators"
	"github.com/garpnet/consensus-core/crypto"
	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/model/messages"
	"github.com/garpnet/consensus-core/module/irrecoverable"
	"github.com/garpnet/consensus-core/module/mempool"
	"github.com/garpnet/consensus-core/module/metrics"
	"github.com/garpnet/consensus-core/network"
	"github.com/garpnet/consensus-core/network/codec/cbor"
	mocknetwork "github.com/garpnet/consensus-core/network/mock"
	"github.com/garpnet/consensus-core/storage"
	badgerstorage "github.com/garpnet/consensus-core/storage/badger"
	"github.com/garpnet/consensus-core/utils/unittest"
)

// testSigner produces deterministic signatures: the signer's identity
// followed by the signed data.
type testSigner struct {
	id chain.ParticipantID
}

func (s testSigner) Sign(data []byte) ([]byte, error) {
	return append([]byte(s.id), data...), nil
}

type testVerifier struct {
	known map[chain.ParticipantID]struct{}
}

func (v testVerifier) Verify(signer chain.ParticipantID, data []byte, signature []byte) (bool, error) {
	if _, ok := v.known[signer]; !ok {
		return false, crypto.InvalidSignerError{Signer: signer}
	}
	expected, _ := testSigner{id: signer}.Sign(data)
	return bytes.Equal(expected, signature), nil
}

// flakyBlocks fails every Store while failing is set.
type flakyBlocks struct {
	storage.Blocks
	failing bool
}

func (b *flakyBlocks) Store(block *chain.Block) error {
	if b.failing {
		return errors.New("disk full")
	}
	return b.Blocks.Store(block)
}

type ParticipantSuite struct {
	suite.Suite

	dir       string
	db        *badger.DB
	genesis   time.Time
	schedule  timing.Schedule
	root      *chain.Block
	registry  *validators.Registry
	manager   *manager.Manager
	ledger    *tower.Ledger
	forks     *forks.Graph
	blocks    *badgerstorage.Blocks
	pool      *mempool.Pool
	transport *mocknetwork.Transport
	codec     *cbor.Codec
	verifier  testVerifier
}

func TestParticipant(t *testing.T) {
	suite.Run(t, new(ParticipantSuite))
}

func (s *ParticipantSuite) SetupTest() {
	log := unittest.Logger()
	collector := metrics.NewNoopCollector()

	s.dir = unittest.TempDir(s.T())
	s.db = unittest.BadgerDB(s.T(), s.dir)
	s.genesis = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	s.schedule = timing.Schedule{Genesis: s.genesis, SlotDuration: time.Second, EpochLength: 100}

	s.registry = validators.NewRegistry(log, collector)
	s.verifier = testVerifier{known: make(map[chain.ParticipantID]struct{})}
	for i, id := range unittest.ParticipantIDListFixture(4) {
		require.NoError(s.T(), s.registry.Add(validators.NewValidator(id, nil, uint64(10*(i+1)), 0, s.genesis)))
		s.verifier.known[id] = struct{}{}
	}

	var err error
	s.manager, err = manager.New(log, collector, s.registry, "p01", engines.DefaultParams())
	require.NoError(s.T(), err)

	s.ledger = tower.NewLedger(log, collector)
	s.forks = forks.New(log, collector)
	s.blocks = badgerstorage.NewBlocks(collector, s.db, 100)
	s.transport = mocknetwork.NewTransport(s.T())
	s.codec = cbor.NewCodec()

	cfg := mempool.DefaultConfig()
	cfg.EnableForwarding = false
	s.pool = mempool.New(log, collector, s.transport, cfg, mempool.WithReplayFilter(s.forks))

	s.root = &chain.Block{Header: chain.Header{Slot: 0}, Timestamp: s.genesis}
	require.True(s.T(), s.forks.InsertBlock(s.root))
}

func (s *ParticipantSuite) TearDownTest() {
	s.pool.Stop()
	require.NoError(s.T(), s.db.Close())
	require.NoError(s.T(), os.RemoveAll(s.dir))
}

func (s *ParticipantSuite) participant(me chain.ParticipantID, opts ...consensus.Option) *consensus.Participant {
	p := consensus.NewParticipant(unittest.Logger(), metrics.NewNoopCollector(), me, s.root.ID(), s.schedule,
		s.manager, s.ledger, s.forks, s.blocks, s.pool, s.codec, opts...)
	require.NoError(s.T(), p.SyncWeights())
	return p
}

// block returns a valid block for slot, proposed by the slot's leader.
func (s *ParticipantSuite) block(parent chain.Header, slot uint64) *chain.Block {
	leader, ok := timing.LeaderForSlot(slot, s.registry.ActiveIDs())
	require.True(s.T(), ok)
	block := unittest.BlockWithParentFixture(parent)
	block.Header.Slot = slot
	block.Header.Epoch = s.schedule.EpochOf(slot)
	block.Header.ProposerID = leader
	return block
}

func (s *ParticipantSuite) vote(block *chain.Block, voter chain.ParticipantID, approve bool) chain.Vote {
	vote := chain.Vote{Slot: block.Header.Slot, BlockID: block.ID(), VoterID: voter, Approve: approve}
	vote.Signature, _ = testSigner{id: voter}.Sign(vote.SigningData())
	return vote
}

func (s *ParticipantSuite) envelope(origin chain.ParticipantID, msg interface{}) network.Envelope {
	payload, err := s.codec.Encode(msg)
	require.NoError(s.T(), err)
	return network.Envelope{Origin: origin, Code: payload[0], Payload: payload}
}

func (s *ParticipantSuite) TestOnBlock() {
	p := s.participant("p00")
	block := s.block(s.root.Header, 1)

	require.NoError(s.T(), p.OnBlock(block))
	assert.True(s.T(), s.forks.HasBlock(block.ID()))

	stored, err := s.blocks.ByID(block.ID())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), block.ID(), stored.ID())

	// accepted blocks make their transactions replays
	assert.ErrorIs(s.T(), s.pool.Submit(block.Transactions[0], 100), mempool.ErrReplay)

	// known blocks are ignored
	require.NoError(s.T(), p.OnBlock(block))
	assert.Equal(s.T(), 2, s.forks.Size())
}

func (s *ParticipantSuite) TestOnBlockRemovesIncludedTransactions() {
	// p02 leads slot 2
	p := s.participant("p02")
	included, pending := unittest.TransactionFixture(), unittest.TransactionFixture()
	require.NoError(s.T(), s.pool.Submit(included, 50))
	require.NoError(s.T(), s.pool.Submit(pending, 10))

	block := s.block(s.root.Header, 1)
	block.Transactions = []*chain.Transaction{included}
	block.Header.TxRoot = chain.ComputeTxRoot(block.Transactions)
	require.NoError(s.T(), p.OnBlock(block))
	assert.False(s.T(), s.pool.Has(included.ID))
	assert.True(s.T(), s.pool.Has(pending.ID))

	require.NoError(s.T(), p.Tick(context.Background(), s.schedule.SlotStart(2)))
	next, err := s.blocks.BySlot(2)
	require.NoError(s.T(), err)
	require.Len(s.T(), next.Transactions, 1)
	assert.Equal(s.T(), pending.ID, next.Transactions[0].ID, "included transactions are not proposed again")
}

func (s *ParticipantSuite) TestOnBlockRetriesAfterStoreFailure() {
	blocks := &flakyBlocks{Blocks: s.blocks, failing: true}
	p := consensus.NewParticipant(unittest.Logger(), metrics.NewNoopCollector(), "p00", s.root.ID(), s.schedule,
		s.manager, s.ledger, s.forks, blocks, s.pool, s.codec)
	require.NoError(s.T(), p.SyncWeights())

	tx := unittest.TransactionFixture()
	require.NoError(s.T(), s.pool.Submit(tx, 10))
	block := s.block(s.root.Header, 1)
	block.Transactions = []*chain.Transaction{tx}
	block.Header.TxRoot = chain.ComputeTxRoot(block.Transactions)

	require.Error(s.T(), p.OnBlock(block))
	assert.False(s.T(), s.forks.HasBlock(block.ID()), "unpersisted blocks stay unknown")
	assert.True(s.T(), s.pool.Has(tx.ID))
	_, err := s.blocks.ByID(block.ID())
	assert.ErrorIs(s.T(), err, storage.ErrNotFound)

	blocks.failing = false
	require.NoError(s.T(), p.OnBlock(block))
	assert.True(s.T(), s.forks.HasBlock(block.ID()))
	_, err = s.blocks.ByID(block.ID())
	require.NoError(s.T(), err)
	assert.False(s.T(), s.pool.Has(tx.ID))

	// the redelivered block got its engine proposal: rejections count against the proposer
	for _, voter := range []chain.ParticipantID{"p00", "p02", "p03"} {
		_, err := p.OnVote(s.vote(block, voter, false))
		require.NoError(s.T(), err)
	}
	proposer, err := s.manager.ByID(block.Header.ProposerID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1), proposer.FailedProposals)
}

func (s *ParticipantSuite) TestOnBlockRejectsWrongProposer() {
	p := s.participant("p00")
	block := s.block(s.root.Header, 1)
	block.Header.ProposerID = "p02"

	err := p.OnBlock(block)
	require.True(s.T(), consensus.IsInvalidProposerError(err))
	var proposerErr consensus.InvalidProposerError
	require.ErrorAs(s.T(), err, &proposerErr)
	assert.Equal(s.T(), chain.ParticipantID("p01"), proposerErr.Expected)
	assert.False(s.T(), s.forks.HasBlock(block.ID()))
}

func (s *ParticipantSuite) TestOnBlockRejectsMalformedBlocks() {
	p := s.participant("p00")

	s.Run("transaction root", func() {
		block := s.block(s.root.Header, 1)
		block.Transactions = append(block.Transactions, unittest.TransactionFixture())
		assert.True(s.T(), consensus.IsInvalidBlockError(p.OnBlock(block)))
	})

	s.Run("epoch", func() {
		block := s.block(s.root.Header, 1)
		block.Header.Epoch = 7
		assert.True(s.T(), consensus.IsInvalidBlockError(p.OnBlock(block)))
	})

	s.Run("no validators", func() {
		block := s.block(s.root.Header, 1)
		for _, id := range s.registry.ActiveIDs() {
			require.NoError(s.T(), s.manager.UpdateStatus(id, validators.Inactive))
		}
		assert.ErrorIs(s.T(), p.OnBlock(block), consensus.ErrNoValidators)
	})
}

func (s *ParticipantSuite) TestVotesFinalizeSlot() {
	p := s.participant("p00", consensus.WithVerifier(s.verifier))
	block := s.block(s.root.Header, 1)
	require.NoError(s.T(), p.OnBlock(block))
	assert.Equal(s.T(), s.root.ID(), p.Head(), "an unvoted block does not outweigh the root")

	accepted, err := p.OnVote(s.vote(block, "p03", true))
	require.NoError(s.T(), err)
	require.True(s.T(), accepted)
	assert.False(s.T(), s.ledger.IsFinalized(1))
	assert.Equal(s.T(), block.ID(), p.Head())

	accepted, err = p.OnVote(s.vote(block, "p02", true))
	require.NoError(s.T(), err)
	require.True(s.T(), accepted)

	assert.True(s.T(), s.ledger.IsFinalized(1), "40 + 30 of 100 reaches two thirds")
	assert.Equal(s.T(), uint64(70), s.forks.Weight(block.ID()))

	proposer, err := s.manager.ByID(block.Header.ProposerID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1), proposer.SuccessfulProposals)

	// later votes do not credit the proposer again
	_, err = p.OnVote(s.vote(block, "p00", true))
	require.NoError(s.T(), err)
	proposer, err = s.manager.ByID(block.Header.ProposerID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1), proposer.SuccessfulProposals)
}

func (s *ParticipantSuite) TestConcurrentVotesCreditProposerOnce() {
	p := s.participant("p00")
	block := s.block(s.root.Header, 1)
	require.NoError(s.T(), p.OnBlock(block))

	var wg sync.WaitGroup
	for _, voter := range s.registry.ActiveIDs() {
		wg.Add(1)
		go func(voter chain.ParticipantID) {
			defer wg.Done()
			_, err := p.OnVote(s.vote(block, voter, true))
			assert.NoError(s.T(), err)
		}(voter)
	}
	unittest.RequireReturnsBefore(s.T(), wg.Wait, time.Second)

	assert.True(s.T(), s.ledger.IsFinalized(1))
	proposer, err := s.manager.ByID(block.Header.ProposerID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1), proposer.SuccessfulProposals)
}

func (s *ParticipantSuite) TestOnVoteRejectsInvalidVotes() {
	p := s.participant("p00", consensus.WithVerifier(s.verifier))
	block := s.block(s.root.Header, 1)
	require.NoError(s.T(), p.OnBlock(block))

	s.Run("bad signature", func() {
		vote := s.vote(block, "p03", true)
		vote.Signature = []byte("forged")
		_, err := p.OnVote(vote)
		assert.True(s.T(), consensus.IsInvalidVoteError(err))
	})

	s.Run("unknown signer", func() {
		_, err := p.OnVote(s.vote(block, "stranger", true))
		assert.True(s.T(), consensus.IsInvalidVoteError(err))
	})

	s.Run("unknown block", func() {
		other := s.block(s.root.Header, 2)
		_, err := p.OnVote(s.vote(other, "p03", true))
		assert.ErrorIs(s.T(), err, consensus.ErrUnknownBlock)
	})

	s.Run("slot mismatch", func() {
		vote := s.vote(block, "p03", true)
		vote.Slot = 5
		vote.Signature, _ = testSigner{id: "p03"}.Sign(vote.SigningData())
		_, err := p.OnVote(vote)
		assert.True(s.T(), consensus.IsInvalidVoteError(err))
	})

	assert.Zero(s.T(), s.forks.Weight(block.ID()))
	assert.Empty(s.T(), s.ledger.Voters(1))
}

func (s *ParticipantSuite) TestLockedOutVoteIsRefused() {
	p := s.participant("p00")
	first := s.block(s.root.Header, 1)
	competing := s.block(s.root.Header, 1)
	require.NoError(s.T(), p.OnBlock(first))
	require.NoError(s.T(), p.OnBlock(competing))

	accepted, err := p.OnVote(s.vote(first, "p03", true))
	require.NoError(s.T(), err)
	require.True(s.T(), accepted)

	accepted, err = p.OnVote(s.vote(competing, "p03", true))
	require.NoError(s.T(), err)
	assert.False(s.T(), accepted, "p03 is locked out of slot 1")
	assert.Zero(s.T(), s.forks.Weight(competing.ID()))
	assert.Equal(s.T(), first.ID(), p.Head())
}

func (s *ParticipantSuite) TestRejectedProposalCountsAgainstProposer() {
	p := s.participant("p00")
	block := s.block(s.root.Header, 1)
	require.NoError(s.T(), p.OnBlock(block))

	// the stakeholder engine rejects once 3 of 4 stakeholders reject
	for _, voter := range []chain.ParticipantID{"p00", "p02", "p03"} {
		_, err := p.OnVote(s.vote(block, voter, false))
		require.NoError(s.T(), err)
	}

	proposer, err := s.manager.ByID(block.Header.ProposerID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1), proposer.FailedProposals)
	assert.False(s.T(), s.ledger.IsFinalized(1))
}

func (s *ParticipantSuite) TestTickProducesBlockAsLeader() {
	p := s.participant("p01",
		consensus.WithTransport(s.transport),
		consensus.WithSigner(testSigner{id: "p01"}),
		consensus.WithVerifier(s.verifier),
	)
	tx := unittest.TransactionFixture()
	require.NoError(s.T(), s.pool.Submit(tx, 10))

	others := []chain.ParticipantID{"p00", "p02", "p03"}
	var proposal *messages.BlockProposal
	s.transport.On("Broadcast", mock.Anything, others, mock.AnythingOfType("*messages.BlockProposal")).
		Run(func(args mock.Arguments) {
			proposal = args.Get(2).(*messages.BlockProposal)
		}).
		Return(nil).
		Once()
	s.transport.On("Broadcast", mock.Anything, others, mock.AnythingOfType("*messages.BlockVote")).
		Return(nil).
		Once()

	// slot 1 is led by p01
	now := s.schedule.SlotStart(1).Add(100 * time.Millisecond)
	require.NoError(s.T(), p.Tick(context.Background(), now))

	require.NotNil(s.T(), proposal)
	block := proposal.Block
	assert.Equal(s.T(), uint64(1), block.Header.Slot)
	assert.Equal(s.T(), s.root.ID(), block.Header.ParentID)
	require.Len(s.T(), block.Transactions, 1)
	assert.Equal(s.T(), tx.ID, block.Transactions[0].ID)
	assert.Zero(s.T(), s.pool.Size())

	assert.True(s.T(), s.forks.HasBlock(block.ID()))
	approve, ok := s.ledger.Vote(1, "p01")
	assert.True(s.T(), ok)
	assert.True(s.T(), approve)

	// a slot is proposed only once
	require.NoError(s.T(), p.Tick(context.Background(), now.Add(100*time.Millisecond)))
}

func (s *ParticipantSuite) TestTickForwardsToUpcomingLeaders() {
	p := s.participant("p00")
	require.NoError(s.T(), p.Tick(context.Background(), s.schedule.SlotStart(1)))

	// slots 2 to 5 are led by p02, p03, p00 and p01; p00 never forwards to itself
	assert.Equal(s.T(), []chain.ParticipantID{"p02", "p03", "p01"}, s.pool.UpcomingLeaders())
}

func (s *ParticipantSuite) TestLivenessViewChanges() {
	p := s.participant("observer")
	timeout := s.manager.Params().LivenessTimeout
	start := s.genesis

	require.NoError(s.T(), p.Tick(context.Background(), start))
	assert.Zero(s.T(), p.View())

	require.NoError(s.T(), p.Tick(context.Background(), start.Add(timeout/2)))
	assert.Zero(s.T(), p.View())

	require.NoError(s.T(), p.Tick(context.Background(), start.Add(timeout)))
	assert.Equal(s.T(), uint64(1), p.View())
	require.NoError(s.T(), p.Tick(context.Background(), start.Add(2*timeout)))
	assert.Equal(s.T(), uint64(2), p.View())
	assert.Equal(s.T(), uint64(2), p.ViewChanges())

	// finalization resets the consecutive view changes
	block := s.block(s.root.Header, 1)
	require.NoError(s.T(), p.OnBlock(block))
	for _, voter := range []chain.ParticipantID{"p02", "p03"} {
		_, err := p.OnVote(s.vote(block, voter, true))
		require.NoError(s.T(), err)
	}
	require.NoError(s.T(), p.Tick(context.Background(), start.Add(2*timeout+time.Second)))
	assert.Equal(s.T(), uint64(2), p.View())
	assert.Zero(s.T(), p.ViewChanges())
}

func (s *ParticipantSuite) TestHandle() {
	p := s.participant("p02", consensus.WithSigner(testSigner{id: "p02"}))
	ctx := context.Background()

	s.Run("transaction", func() {
		tx := unittest.TransactionFixture()
		err := p.Handle(ctx, s.envelope("client", &messages.TransactionSubmission{Transaction: tx, Fee: 5}))
		require.NoError(s.T(), err)
		assert.True(s.T(), s.pool.Has(tx.ID))
	})

	block := s.block(s.root.Header, 1)
	s.Run("proposal", func() {
		err := p.Handle(ctx, s.envelope("p01", &messages.BlockProposal{Block: block}))
		require.NoError(s.T(), err)
		assert.True(s.T(), s.forks.HasBlock(block.ID()))

		approve, ok := s.ledger.Vote(1, "p02")
		assert.True(s.T(), ok, "accepted proposals are voted on")
		assert.True(s.T(), approve)
	})

	s.Run("vote", func() {
		err := p.Handle(ctx, s.envelope("p03", &messages.BlockVote{Vote: s.vote(block, "p03", true)}))
		require.NoError(s.T(), err)
		assert.True(s.T(), s.ledger.IsFinalized(1))
	})

	s.Run("garbage", func() {
		err := p.Handle(ctx, network.Envelope{Origin: "p03", Payload: []byte{0xff, 0x00}})
		assert.Error(s.T(), err)
	})
}

func (s *ParticipantSuite) TestRun() {
	p := s.participant("p00")
	inbound := make(chan network.Envelope, 2)
	tx := unittest.TransactionFixture()
	inbound <- network.Envelope{Origin: "p03", Payload: []byte("garbage")}
	inbound <- s.envelope("client", &messages.TransactionSubmission{Transaction: tx, Fee: 1})
	close(inbound)

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(s.T(), context.Background())
	defer cancel()
	unittest.RequireReturnsBefore(s.T(), func() {
		p.Run(ctx, inbound)
	}, time.Second)
	assert.True(s.T(), s.pool.Has(tx.ID), "malformed messages do not stop processing")
}
