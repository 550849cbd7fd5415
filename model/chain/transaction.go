package chain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is a signed, opaque state transition request submitted to the
// network. Its contents are interpreted by the execution layer only.
type Transaction struct {
	ID         uuid.UUID
	Submitter  ParticipantID
	Payload    []byte
	CreatedAt  time.Time
	Signatures [][]byte
}

// NewTransaction creates a transaction with a random identifier.
func NewTransaction(submitter ParticipantID, payload []byte, createdAt time.Time) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		Submitter: submitter,
		Payload:   payload,
		CreatedAt: createdAt,
	}
}
