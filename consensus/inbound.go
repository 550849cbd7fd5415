package consensus

import (
	"context"
	"fmt"

	"github.com/garpnet/consensus-core/model/messages"
	"github.com/garpnet/consensus-core/module/irrecoverable"
	"github.com/garpnet/consensus-core/network"
)

// Handle decodes and processes one inbound envelope. Block proposals are
// voted on once accepted.
func (p *Participant) Handle(ctx context.Context, envelope network.Envelope) error {
	msg, err := p.codec.Decode(envelope.Payload)
	if err != nil {
		return fmt.Errorf("could not decode message from %s: %w", envelope.Origin, err)
	}

	switch m := msg.(type) {
	case *messages.BlockProposal:
		if m.Block == nil {
			return fmt.Errorf("empty block proposal from %s", envelope.Origin)
		}
		err := p.OnBlock(m.Block)
		if err != nil {
			return fmt.Errorf("could not process block proposal from %s: %w", envelope.Origin, err)
		}
		p.vote(ctx, m.Block, p.manager.ActiveIDs())
		return nil
	case *messages.BlockVote:
		_, err := p.OnVote(m.Vote)
		if err != nil {
			return fmt.Errorf("could not process vote from %s: %w", envelope.Origin, err)
		}
		return nil
	case *messages.TransactionSubmission:
		if m.Transaction == nil {
			return fmt.Errorf("empty transaction submission from %s", envelope.Origin)
		}
		return p.pool.Submit(m.Transaction, m.Fee)
	default:
		return fmt.Errorf("unexpected message %T from %s", msg, envelope.Origin)
	}
}

// Run processes inbound envelopes until ctx is done or the channel is closed.
// Exceptions are thrown on ctx; every other error concerns a single message
// and is logged.
func (p *Participant) Run(ctx irrecoverable.SignalerContext, inbound <-chan network.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-inbound:
			if !ok {
				return
			}
			err := p.Handle(ctx, envelope)
			if irrecoverable.IsException(err) {
				ctx.Throw(fmt.Errorf("could not handle message from %s: %w", envelope.Origin, err))
				return
			}
			if err != nil {
				p.log.Debug().Err(err).Str("origin", envelope.Origin.String()).Uint8("code", envelope.Code).Msg("dropped inbound message")
			}
		}
	}
}
