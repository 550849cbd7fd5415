package mempool_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/model/messages"
	"github.com/garpnet/consensus-core/module/mempool"
	"github.com/garpnet/consensus-core/module/metrics"
	mocknetwork "github.com/garpnet/consensus-core/network/mock"
	"github.com/garpnet/consensus-core/utils/unittest"
)

func forwardingConfig() mempool.Config {
	cfg := mempool.DefaultConfig()
	cfg.EnableForwarding = true
	cfg.ForwardRatioBps = 1000
	cfg.ForwardBatchMax = 100
	cfg.ForwardWorkers = 2
	return cfg
}

func newForwardingPool(t *testing.T, cfg mempool.Config) (*mempool.Pool, *mocknetwork.Transport) {
	transport := mocknetwork.NewTransport(t)
	p := mempool.New(unittest.Logger(), metrics.NewNoopCollector(), transport, cfg)
	t.Cleanup(p.Stop)
	return p, transport
}

func fill(t *testing.T, p *mempool.Pool, n int) map[uint64]*chain.Transaction {
	byFee := make(map[uint64]*chain.Transaction, n)
	for i := 1; i <= n; i++ {
		tx := unittest.TransactionFixture()
		byFee[uint64(i)] = tx
		require.NoError(t, p.Submit(tx, uint64(i)))
	}
	return byFee
}

func TestForwardSendsTopShareToEveryLeader(t *testing.T) {
	p, transport := newForwardingPool(t, forwardingConfig())
	byFee := fill(t, p, 20)
	leaders := []chain.ParticipantID{"p01", "p02"}

	var (
		mu   sync.Mutex
		sent []*messages.TransactionSubmission
	)
	transport.On("Send", mock.Anything, mock.AnythingOfType("chain.ParticipantID"), mock.AnythingOfType("*messages.TransactionSubmission")).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, args.Get(2).(*messages.TransactionSubmission))
		}).
		Return(nil).
		Times(4)

	unittest.RequireReturnsBefore(t, func() {
		assert.Equal(t, 2, p.Forward(context.Background(), leaders))
	}, 5*time.Second)

	assert.Equal(t, uint(18), p.Size())
	assert.False(t, p.Has(byFee[20].ID))
	assert.False(t, p.Has(byFee[19].ID))
	assert.True(t, p.Has(byFee[18].ID))

	require.Len(t, sent, 4)
	for _, msg := range sent {
		assert.Contains(t, []uint64{19, 20}, msg.Fee)
		assert.Equal(t, byFee[msg.Fee].ID, msg.Transaction.ID)
	}

	forwarded, failures := p.ForwardStats()
	assert.Equal(t, uint64(2), forwarded)
	assert.Zero(t, failures)
}

func TestForwardCountsFailures(t *testing.T) {
	p, transport := newForwardingPool(t, forwardingConfig())
	fill(t, p, 10)

	transport.On("Send", mock.Anything, chain.ParticipantID("down"), mock.Anything).
		Return(errors.New("connection refused")).
		Once()
	transport.On("Send", mock.Anything, chain.ParticipantID("up"), mock.Anything).
		Return(nil).
		Once()

	forwarded := p.Forward(context.Background(), []chain.ParticipantID{"down", "up"})
	assert.Equal(t, 1, forwarded, "a failed send does not fail the forward")
	assert.Equal(t, uint(9), p.Size(), "forwarded transactions are not returned to the pool")

	total, failures := p.ForwardStats()
	assert.Equal(t, uint64(1), total)
	assert.Equal(t, uint64(1), failures)
}

func TestForwardNoop(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg := forwardingConfig()
		cfg.EnableForwarding = false
		p, _ := newForwardingPool(t, cfg)
		fill(t, p, 20)
		assert.Zero(t, p.Forward(context.Background(), []chain.ParticipantID{"p01"}))
		assert.Equal(t, uint(20), p.Size())
	})

	t.Run("no leaders", func(t *testing.T) {
		p, _ := newForwardingPool(t, forwardingConfig())
		fill(t, p, 20)
		assert.Zero(t, p.Forward(context.Background(), nil))
		assert.Equal(t, uint(20), p.Size())
	})

	t.Run("pool too small for the ratio", func(t *testing.T) {
		p, _ := newForwardingPool(t, forwardingConfig())
		fill(t, p, 9)
		assert.Zero(t, p.Forward(context.Background(), []chain.ParticipantID{"p01"}))
		assert.Equal(t, uint(9), p.Size())
	})
}

func TestForwardBatchCap(t *testing.T) {
	cfg := forwardingConfig()
	cfg.ForwardRatioBps = 10000
	cfg.ForwardBatchMax = 3
	p, transport := newForwardingPool(t, cfg)
	fill(t, p, 10)

	transport.On("Send", mock.Anything, chain.ParticipantID("p01"), mock.Anything).Return(nil).Times(3)

	assert.Equal(t, 3, p.Forward(context.Background(), []chain.ParticipantID{"p01"}))
	assert.Equal(t, uint(7), p.Size())
}

func TestForwardToUpcomingLeaders(t *testing.T) {
	p, transport := newForwardingPool(t, forwardingConfig())
	fill(t, p, 10)

	assert.Zero(t, p.ForwardToUpcomingLeaders(context.Background()), "no leaders set yet")

	leaders := []chain.ParticipantID{"p03"}
	p.SetUpcomingLeaders(leaders)
	leaders[0] = "mutated"
	assert.Equal(t, []chain.ParticipantID{"p03"}, p.UpcomingLeaders())

	transport.On("Send", mock.Anything, chain.ParticipantID("p03"), mock.Anything).Return(nil).Once()
	assert.Equal(t, 1, p.ForwardToUpcomingLeaders(context.Background()))
}
