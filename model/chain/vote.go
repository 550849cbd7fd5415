package chain

// Vote is a participant's approval or rejection of the block proposed for a slot.
type Vote struct {
	Slot      uint64
	BlockID   Identifier
	VoterID   ParticipantID
	Approve   bool
	Signature []byte
}

// SigningData returns the bytes a voter signs.
func (v Vote) SigningData() []byte {
	id := MakeID(struct {
		Slot    uint64
		BlockID Identifier
		VoterID ParticipantID
		Approve bool
	}{v.Slot, v.BlockID, v.VoterID, v.Approve})
	return id[:]
}
