package chain

import (
	"time"

	"github.com/google/uuid"
)

// Block is a header together with the transactions it includes.
type Block struct {
	Header       Header
	Timestamp    time.Time
	Transactions []*Transaction
}

// ID returns the ID of the header.
func (b Block) ID() Identifier {
	return b.Header.ID()
}

// TransactionIDs returns the identifiers of all included transactions, in order.
func (b Block) TransactionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		ids = append(ids, tx.ID)
	}
	return ids
}

// ComputeTxRoot hashes the ordered list of transaction identifiers.
func ComputeTxRoot(txs []*Transaction) Identifier {
	ids := make([]uuid.UUID, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	return MakeID(ids)
}
