package network

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/garpnet/consensus-core/model/chain"
)

// BroadcastEach sends msg to every recipient one after another through
// sender and returns the aggregate of the per-recipient failures wrapped in
// SendError. It stops early only if ctx is done.
func BroadcastEach(ctx context.Context, sender Sender, recipients []chain.ParticipantID, msg interface{}) error {
	if len(recipients) == 0 {
		return EmptyTargetList
	}
	var result *multierror.Error
	for _, recipient := range recipients {
		if ctx.Err() != nil {
			result = multierror.Append(result, ctx.Err())
			break
		}
		if err := sender.Send(ctx, recipient, msg); err != nil {
			result = multierror.Append(result, SendError{Recipient: recipient, Err: err})
		}
	}
	return result.ErrorOrNil()
}
