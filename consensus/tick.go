package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/garpnet/consensus-core/consensus/timing"
	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/model/messages"
	"github.com/garpnet/consensus-core/utils/logging"
)

// Tick advances the participant to the slot containing now. It rotates the
// validator set at rotation boundaries, forwards pending transactions to the
// upcoming leaders, times out overdue engine proposals, changes the view if
// finalization stalled and, if the participant leads the slot, produces a
// block. Tick is driven by the node's slot clock.
func (p *Participant) Tick(ctx context.Context, now time.Time) error {
	slot := p.schedule.SlotAt(now)

	err := p.rotate(slot)
	if err != nil {
		return fmt.Errorf("could not rotate validators at slot %d: %w", slot, err)
	}

	ids := p.manager.ActiveIDs()
	leaders := make([]chain.ParticipantID, 0, p.leaderWindow)
	for _, leader := range timing.UpcomingLeaders(slot, ids, p.leaderWindow) {
		if leader != p.me {
			leaders = append(leaders, leader)
		}
	}
	p.pool.SetUpcomingLeaders(leaders)
	p.pool.ForwardToUpcomingLeaders(ctx)

	for _, result := range p.manager.ExpireProposals(now) {
		p.settle(result)
	}
	p.checkLiveness(now)

	leader, ok := timing.LeaderForSlot(slot, ids)
	if !ok || leader != p.me {
		return nil
	}
	return p.propose(ctx, slot, now, ids)
}

// rotate applies a validator rotation once per rotation interval.
func (p *Participant) rotate(slot uint64) error {
	if p.rotationInterval == 0 {
		return nil
	}
	index := timing.RotationIndex(slot, p.rotationInterval)
	p.Lock()
	due := index > p.lastRotation
	if due {
		p.lastRotation = index
	}
	p.Unlock()
	if !due {
		return nil
	}

	p.manager.RotateValidators()
	p.log.Info().Uint64("slot", slot).Uint64("rotation", index).Msg("validator set rotated")
	return p.SyncWeights()
}

// checkLiveness changes the view when no slot was finalized within the
// liveness timeout, and reports a liveness failure once the number of
// consecutive view changes reaches the configured maximum.
func (p *Participant) checkLiveness(now time.Time) {
	latest, finalized := p.ledger.LatestFinalized()
	params := p.manager.Params()

	p.Lock()
	defer p.Unlock()

	if finalized && (!p.finalizedAny || latest > p.lastFinalized) {
		p.finalizedAny = true
		p.lastFinalized = latest
		p.lastProgress = now
		p.viewChanges = 0
		return
	}
	if p.lastProgress.IsZero() {
		p.lastProgress = now
		return
	}
	if now.Sub(p.lastProgress) < params.LivenessTimeout {
		return
	}

	p.view++
	p.viewChanges++
	p.lastProgress = now
	p.metrics.ViewChanged(p.view)
	p.log.Warn().
		Uint64("view", p.view).
		Uint64("consecutive_view_changes", p.viewChanges).
		Dur("liveness_timeout", params.LivenessTimeout).
		Msg("no finalization progress, changing view")

	if params.MaxViewChanges > 0 && p.viewChanges >= params.MaxViewChanges {
		p.log.Error().
			Uint64("view", p.view).
			Uint64("consecutive_view_changes", p.viewChanges).
			Uint64("max_view_changes", params.MaxViewChanges).
			Msg("liveness failure: consecutive view changes reached the maximum")
	}
}

// propose builds a block on the current head from the highest-fee pending
// transactions, accepts it locally, broadcasts it and votes for it. A slot is
// proposed at most once.
func (p *Participant) propose(ctx context.Context, slot uint64, now time.Time, ids chain.ParticipantIDList) error {
	p.Lock()
	if p.proposed && slot <= p.lastProposed {
		p.Unlock()
		return nil
	}
	p.proposed = true
	p.lastProposed = slot
	p.Unlock()

	parentID := p.Head()
	if parent, ok := p.forks.Header(parentID); ok && parent.Slot >= slot {
		p.log.Debug().Uint64("slot", slot).Uint64("head_slot", parent.Slot).Msg("head is not below the current slot, skipping proposal")
		return nil
	}

	txs := p.pool.Batch(p.maxBlockTxs)
	block := &chain.Block{
		Header: chain.Header{
			ParentID:   parentID,
			Slot:       slot,
			Epoch:      p.schedule.EpochOf(slot),
			ProposerID: p.me,
			TxRoot:     chain.ComputeTxRoot(txs),
		},
		Timestamp:    now,
		Transactions: txs,
	}
	err := p.OnBlock(block)
	if err != nil {
		return fmt.Errorf("could not accept own block for slot %d: %w", slot, err)
	}
	p.log.Info().
		Hex("block_id", logging.ID(block)).
		Uint64("slot", slot).
		Int("transactions", len(txs)).
		Msg("block proposed")

	p.broadcast(ctx, ids, &messages.BlockProposal{Block: block})
	p.vote(ctx, block, ids)
	return nil
}

// vote approves the block if the participant is an active validator with a signer.
func (p *Participant) vote(ctx context.Context, block *chain.Block, ids chain.ParticipantIDList) {
	if p.signer == nil || !ids.Contains(p.me) {
		return
	}
	vote := chain.Vote{
		Slot:    block.Header.Slot,
		BlockID: block.ID(),
		VoterID: p.me,
		Approve: true,
	}
	sig, err := p.signer.Sign(vote.SigningData())
	if err != nil {
		p.log.Error().Err(err).Hex("block_id", logging.ID(block)).Msg("could not sign vote")
		return
	}
	vote.Signature = sig

	accepted, err := p.OnVote(vote)
	if err != nil {
		p.log.Error().Err(err).Hex("block_id", logging.ID(block)).Msg("could not record own vote")
		return
	}
	if !accepted {
		return
	}
	p.broadcast(ctx, ids, &messages.BlockVote{Vote: vote})
}

// broadcast sends msg to every other active validator. Failures are logged.
func (p *Participant) broadcast(ctx context.Context, ids chain.ParticipantIDList, msg interface{}) {
	if p.transport == nil {
		return
	}
	recipients := make([]chain.ParticipantID, 0, len(ids))
	for _, id := range ids {
		if id != p.me {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return
	}
	err := p.transport.Broadcast(ctx, recipients, msg)
	if err != nil {
		p.log.Warn().Err(err).Msgf("could not broadcast %T to all validators", msg)
	}
}
