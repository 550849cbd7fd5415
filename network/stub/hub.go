// Package stub provides an in-process transport: participants joined to the
// same Hub exchange encoded messages through buffered channels.
package stub

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/network"
)

const DefaultInboxSize = 1024

// Hub connects in-process transports.
type Hub struct {
	sync.RWMutex
	codec     network.Codec
	inboxSize int
	inboxes   map[chain.ParticipantID]chan network.Envelope
	delivered *atomic.Uint64
	dropped   *atomic.Uint64
}

func NewHub(codec network.Codec, inboxSize int) *Hub {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &Hub{
		codec:     codec,
		inboxSize: inboxSize,
		inboxes:   make(map[chain.ParticipantID]chan network.Envelope),
		delivered: atomic.NewUint64(0),
		dropped:   atomic.NewUint64(0),
	}
}

// Join registers a participant and returns its transport. Joining twice
// returns a transport sharing the same inbox.
func (h *Hub) Join(id chain.ParticipantID) *Transport {
	h.Lock()
	defer h.Unlock()
	if _, ok := h.inboxes[id]; !ok {
		h.inboxes[id] = make(chan network.Envelope, h.inboxSize)
	}
	return &Transport{hub: h, id: id}
}

// Delivered returns the number of envelopes placed into inboxes.
func (h *Hub) Delivered() uint64 {
	return h.delivered.Load()
}

// Dropped returns the number of envelopes discarded because the recipient's inbox was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) inbox(id chain.ParticipantID) (chan network.Envelope, bool) {
	h.RLock()
	defer h.RUnlock()
	inbox, ok := h.inboxes[id]
	return inbox, ok
}

// Transport is one participant's view of the hub.
type Transport struct {
	hub *Hub
	id  chain.ParticipantID
}

var _ network.Transport = (*Transport)(nil)

// Send encodes msg and enqueues it in the recipient's inbox. A full inbox
// drops the message, like a congested link would.
func (t *Transport) Send(ctx context.Context, recipient chain.ParticipantID, msg interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inbox, ok := t.hub.inbox(recipient)
	if !ok {
		return fmt.Errorf("could not send to %s: %w", recipient, network.ErrUnknownRecipient)
	}
	data, err := t.hub.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("could not encode message: %w", err)
	}
	envelope := network.Envelope{Origin: t.id, Code: data[0], Payload: data}
	select {
	case inbox <- envelope:
		t.hub.delivered.Inc()
	default:
		t.hub.dropped.Inc()
	}
	return nil
}

func (t *Transport) Broadcast(ctx context.Context, recipients []chain.ParticipantID, msg interface{}) error {
	return network.BroadcastEach(ctx, t, recipients, msg)
}

// Listen forwards the participant's inbox until ctx is done.
func (t *Transport) Listen(ctx context.Context) (<-chan network.Envelope, error) {
	inbox, ok := t.hub.inbox(t.id)
	if !ok {
		return nil, fmt.Errorf("participant %s has not joined: %w", t.id, network.ErrUnknownRecipient)
	}
	out := make(chan network.Envelope)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case envelope := <-inbox:
				select {
				case out <- envelope:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
