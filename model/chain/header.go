package chain

// Header contains all meta-data for a block. Its hash is the block identifier.
type Header struct {
	// ParentID is the ID of this block's parent.
	ParentID Identifier
	// Slot is the time slot the block was proposed in.
	Slot uint64
	// Epoch is the epoch containing Slot.
	Epoch uint64
	// ProposerID is the participant that proposed this block.
	ProposerID  ParticipantID
	StateRoot   Identifier
	TxRoot      Identifier
	ReceiptRoot Identifier
}

// ID returns a unique ID to singularly identify the header and its block.
func (h Header) ID() Identifier {
	return MakeID(h)
}
