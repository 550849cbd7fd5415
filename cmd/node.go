package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/garpnet/consensus-core/consensus"
	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module/irrecoverable"
	"github.com/garpnet/consensus-core/module/mempool"
	"github.com/garpnet/consensus-core/module/metrics"
	"github.com/garpnet/consensus-core/network"
)

// minTickInterval bounds how often participants are ticked.
const minTickInterval = 10 * time.Millisecond

type localParticipant struct {
	id          chain.ParticipantID
	db          *badger.DB
	pool        *mempool.Pool
	transport   network.Transport
	participant *consensus.Participant
}

// Node runs the local participants until its context is cancelled or one of
// them fails irrecoverably.
type Node struct {
	log          zerolog.Logger
	slotDuration time.Duration
	participants []*localParticipant
	server       *metrics.Server
}

// Participant returns the local participant id.
func (n *Node) Participant(id chain.ParticipantID) (*consensus.Participant, bool) {
	for _, local := range n.participants {
		if local.id == id {
			return local.participant, true
		}
	}
	return nil, false
}

// Submit admits a transaction into the mempool of participant id.
func (n *Node) Submit(id chain.ParticipantID, tx *chain.Transaction, fee uint64) error {
	for _, local := range n.participants {
		if local.id == id {
			return local.pool.Submit(tx, fee)
		}
	}
	return fmt.Errorf("unknown participant %s", id)
}

// Run blocks until ctx is done. Irrecoverable errors thrown by a participant
// stop all participants and are returned.
func (n *Node) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	signalerCtx, errChan := irrecoverable.WithSignaler(groupCtx)

	group.Go(func() error {
		select {
		case err := <-errChan:
			return fmt.Errorf("unhandled irrecoverable error: %w", err)
		case <-groupCtx.Done():
			return nil
		}
	})
	if n.server != nil {
		group.Go(func() error {
			return n.server.Run(groupCtx)
		})
	}

	interval := n.slotDuration / 4
	if interval < minTickInterval {
		interval = minTickInterval
	}
	for _, local := range n.participants {
		local := local
		inbound, err := local.transport.Listen(groupCtx)
		if err != nil {
			return fmt.Errorf("could not listen for participant %s: %w", local.id, err)
		}
		group.Go(func() error {
			local.participant.Run(signalerCtx, inbound)
			return nil
		})
		group.Go(func() error {
			return n.tick(groupCtx, local, interval)
		})
	}

	n.log.Info().Int("participants", len(n.participants)).Msg("node startup complete")
	err := group.Wait()
	n.log.Info().Msg("node shutting down")
	return err
}

func (n *Node) tick(ctx context.Context, local *localParticipant, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			err := local.participant.Tick(ctx, now)
			if irrecoverable.IsException(err) {
				return fmt.Errorf("participant %s failed: %w", local.id, err)
			}
			if err != nil {
				n.log.Warn().Err(err).Str("participant", local.id.String()).Msg("slot tick failed")
			}
		}
	}
}

// Close stops forwarding and closes all databases.
func (n *Node) Close() error {
	var result *multierror.Error
	for _, local := range n.participants {
		if local.pool != nil {
			local.pool.Stop()
		}
		err := local.db.Close()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not close database of %s: %w", local.id, err))
		}
	}
	return result.ErrorOrNil()
}
