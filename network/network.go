// Package network defines the transport boundary of the consensus core. The
// core never opens connections itself: it sends through a Transport and
// consumes authenticated envelopes delivered by the surrounding network layer.
package network

import (
	"context"

	"github.com/garpnet/consensus-core/model/chain"
)

// Envelope is an inbound message as delivered by the transport. The origin
// is authenticated by the transport. Payload is the message as produced by
// Codec.Encode and Code is its leading message code.
type Envelope struct {
	Origin  chain.ParticipantID
	Code    uint8
	Payload []byte
}

// Codec converts registered messages to and from their wire encoding.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
}

// Sender delivers one message to one recipient.
type Sender interface {
	// Send delivers msg to the recipient. Messages are passed by pointer.
	// Expected errors:
	//   - ErrUnknownRecipient if the transport cannot reach the recipient
	//   - context errors if ctx is done before the message was handed off
	Send(ctx context.Context, recipient chain.ParticipantID, msg interface{}) error
}

// Transport is the interface the core consumes for all peer communication.
type Transport interface {
	Sender
	// Broadcast sends msg to every recipient on a best-effort basis. A failed
	// recipient does not prevent delivery to the others; the returned error
	// aggregates the failures.
	Broadcast(ctx context.Context, recipients []chain.ParticipantID, msg interface{}) error
	// Listen returns the stream of inbound envelopes. The channel is closed
	// once ctx is done.
	Listen(ctx context.Context) (<-chan Envelope, error)
}
