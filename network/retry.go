package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/garpnet/consensus-core/model/chain"
)

const (
	DefaultSendRetries   = 3
	DefaultSendRetryBase = 100 * time.Millisecond
)

// RetryingTransport retries failed sends of the wrapped transport with
// exponential backoff. Undeliverable recipients and cancelled contexts are
// not retried.
type RetryingTransport struct {
	Transport
	log     zerolog.Logger
	retries uint64
	base    time.Duration
}

var _ Transport = (*RetryingTransport)(nil)

// NewRetryingTransport wraps transport. A send is attempted at most retries+1 times.
func NewRetryingTransport(log zerolog.Logger, transport Transport, retries uint64, base time.Duration) (*RetryingTransport, error) {
	if base <= 0 {
		return nil, fmt.Errorf("retry base must be positive, got %v", base)
	}
	return &RetryingTransport{
		Transport: transport,
		log:       log.With().Str("component", "retrying_transport").Logger(),
		retries:   retries,
		base:      base,
	}, nil
}

func (t *RetryingTransport) Send(ctx context.Context, recipient chain.ParticipantID, msg interface{}) error {
	expRetry, err := retry.NewExponential(t.base)
	if err != nil {
		return fmt.Errorf("could not create retry mechanism: %w", err)
	}
	maxedExpRetry := retry.WithMaxRetries(t.retries, expRetry)

	attempt := 0
	return retry.Do(ctx, maxedExpRetry, func(ctx context.Context) error {
		attempt++
		err := t.Transport.Send(ctx, recipient, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnknownRecipient) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		t.log.Debug().
			Err(err).
			Str("recipient", recipient.String()).
			Int("attempt", attempt).
			Msg("send failed, retrying")
		return retry.RetryableError(err)
	})
}

// Broadcast sends to each recipient through the retrying Send.
func (t *RetryingTransport) Broadcast(ctx context.Context, recipients []chain.ParticipantID, msg interface{}) error {
	return BroadcastEach(ctx, t, recipients, msg)
}
