package network

import (
	"errors"
	"fmt"

	"github.com/garpnet/consensus-core/model/chain"
)

var (
	// ErrUnknownRecipient is returned when a message is addressed to a participant the transport does not know.
	ErrUnknownRecipient = errors.New("unknown recipient")
	// EmptyTargetList is returned by Broadcast without recipients.
	EmptyTargetList = errors.New("target list empty")
)

// SendError records a failed delivery to one recipient.
type SendError struct {
	Recipient chain.ParticipantID
	Err       error
}

func (e SendError) Error() string {
	return fmt.Sprintf("could not send to %s: %v", e.Recipient, e.Err)
}

func (e SendError) Unwrap() error { return e.Err }

func IsSendError(err error) bool {
	var e SendError
	return errors.As(err, &e)
}
