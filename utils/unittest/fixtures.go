package unittest

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garpnet/consensus-core/model/chain"
)

func IdentifierFixture() chain.Identifier {
	var id chain.Identifier
	_, _ = rand.Read(id[:])
	return id
}

func ParticipantIDFixture() chain.ParticipantID {
	return chain.ParticipantID(fmt.Sprintf("participant-%s", uuid.NewString()[:8]))
}

// ParticipantIDListFixture returns n participants with lexicographically
// ordered names p00, p01, ...
func ParticipantIDListFixture(n int) chain.ParticipantIDList {
	ids := make(chain.ParticipantIDList, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, chain.ParticipantID(fmt.Sprintf("p%02d", i)))
	}
	return ids
}

func TransactionFixture(opts ...func(*chain.Transaction)) *chain.Transaction {
	tx := &chain.Transaction{
		ID:         uuid.New(),
		Submitter:  "submitter",
		Payload:    []byte("transfer"),
		CreatedAt:  time.Now().UTC(),
		Signatures: [][]byte{{0x01, 0x02}},
	}
	for _, apply := range opts {
		apply(tx)
	}
	return tx
}

func WithSubmitter(submitter chain.ParticipantID) func(*chain.Transaction) {
	return func(tx *chain.Transaction) {
		tx.Submitter = submitter
	}
}

func WithPayloadSize(n int) func(*chain.Transaction) {
	return func(tx *chain.Transaction) {
		tx.Payload = make([]byte, n)
	}
}

func HeaderFixture() chain.Header {
	return chain.Header{
		ParentID:    IdentifierFixture(),
		Slot:        1,
		ProposerID:  ParticipantIDFixture(),
		StateRoot:   IdentifierFixture(),
		ReceiptRoot: IdentifierFixture(),
	}
}

func BlockFixture() *chain.Block {
	return BlockWithParentFixture(HeaderFixture())
}

// BlockWithParentFixture returns a block at the slot following parent.
func BlockWithParentFixture(parent chain.Header) *chain.Block {
	txs := []*chain.Transaction{TransactionFixture(), TransactionFixture()}
	return &chain.Block{
		Header: chain.Header{
			ParentID:    parent.ID(),
			Slot:        parent.Slot + 1,
			Epoch:       parent.Epoch,
			ProposerID:  ParticipantIDFixture(),
			StateRoot:   IdentifierFixture(),
			TxRoot:      chain.ComputeTxRoot(txs),
			ReceiptRoot: IdentifierFixture(),
		},
		Timestamp:    time.Now().UTC(),
		Transactions: txs,
	}
}

// ChainFixture returns n blocks, each a child of the one before. The first
// block is a child of root.
func ChainFixture(root chain.Header, n int) []*chain.Block {
	blocks := make([]*chain.Block, 0, n)
	parent := root
	for i := 0; i < n; i++ {
		block := BlockWithParentFixture(parent)
		blocks = append(blocks, block)
		parent = block.Header
	}
	return blocks
}
