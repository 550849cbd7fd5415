package mempool

import (
	"context"
	"sync"

	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/model/messages"
)

// SetUpcomingLeaders replaces the leaders used by ForwardToUpcomingLeaders.
// Leaders are ordered by the slot they lead.
func (p *Pool) SetUpcomingLeaders(leaders []chain.ParticipantID) {
	p.leadersMu.Lock()
	defer p.leadersMu.Unlock()
	p.leaders = append([]chain.ParticipantID(nil), leaders...)
}

// UpcomingLeaders returns the leaders last set.
func (p *Pool) UpcomingLeaders() []chain.ParticipantID {
	p.leadersMu.RLock()
	defer p.leadersMu.RUnlock()
	return append([]chain.ParticipantID(nil), p.leaders...)
}

// ForwardToUpcomingLeaders forwards to the leaders last set.
func (p *Pool) ForwardToUpcomingLeaders(ctx context.Context) int {
	return p.Forward(ctx, p.UpcomingLeaders())
}

// Forward removes the top share of the pool, ForwardRatioBps of the pool size
// capped at ForwardBatchMax, and sends every removed transaction to every
// leader. Failed sends are counted and otherwise ignored. Forward returns the
// number of transactions removed and blocks until all sends are done.
func (p *Pool) Forward(ctx context.Context, leaders []chain.ParticipantID) int {
	if !p.cfg.EnableForwarding || len(leaders) == 0 {
		return 0
	}
	target := p.forwardTarget()
	if target == 0 {
		return 0
	}
	batch := p.extract(target)
	if len(batch) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	for _, leader := range leaders {
		leader := leader
		wg.Add(1)
		p.workers.Submit(func() {
			defer wg.Done()
			p.sendBatch(ctx, leader, batch)
		})
	}
	wg.Wait()

	p.forwarded.Add(uint64(len(batch)))
	p.metrics.TransactionsForwarded(len(batch), len(leaders))
	p.log.Debug().
		Int("transactions", len(batch)).
		Int("leaders", len(leaders)).
		Msg("forwarded transactions to upcoming leaders")
	return len(batch)
}

func (p *Pool) sendBatch(ctx context.Context, leader chain.ParticipantID, batch []*entry) {
	for _, e := range batch {
		msg := &messages.TransactionSubmission{Transaction: e.tx, Fee: e.fee}
		if err := p.sender.Send(ctx, leader, msg); err != nil {
			p.forwardFailures.Inc()
			p.metrics.ForwardFailed()
			p.log.Debug().
				Err(err).
				Str("leader", leader.String()).
				Str("tx_id", e.tx.ID.String()).
				Msg("could not forward transaction")
		}
	}
}

// forwardTarget is pool size * ForwardRatioBps / 10000, capped at ForwardBatchMax.
func (p *Pool) forwardTarget() uint {
	size := uint64(p.Size())
	target := size * uint64(p.cfg.ForwardRatioBps) / maxBasisPoints
	if target > uint64(p.cfg.ForwardBatchMax) {
		target = uint64(p.cfg.ForwardBatchMax)
	}
	return uint(target)
}

// ForwardStats returns the number of transactions forwarded and of failed sends.
func (p *Pool) ForwardStats() (forwarded uint64, failures uint64) {
	return p.forwarded.Load(), p.forwardFailures.Load()
}
