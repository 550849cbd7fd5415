package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/garpnet/consensus-core/model/chain"
)

// InsertBlock stores the block keyed by its ID.
// Expected errors:
//   - storage.ErrAlreadyExists if a block with the same ID is stored
func InsertBlock(block *chain.Block) func(*badger.Txn) error {
	return insert(makePrefix(codeBlock, block.ID()), block)
}

// RetrieveBlock retrieves the block with the given ID.
// Expected errors:
//   - storage.ErrNotFound if no block with the ID is stored
func RetrieveBlock(blockID chain.Identifier, block *chain.Block) func(*badger.Txn) error {
	return retrieve(makePrefix(codeBlock, blockID), block)
}

// BlockExists checks whether a block with the given ID is stored.
func BlockExists(blockID chain.Identifier, blockExists *bool) func(*badger.Txn) error {
	return exists(makePrefix(codeBlock, blockID), blockExists)
}

// IndexBlockBySlot indexes the block ID by its slot.
// Expected errors:
//   - storage.ErrAlreadyExists if a block is already indexed at the slot
func IndexBlockBySlot(slot uint64, blockID chain.Identifier) func(*badger.Txn) error {
	return insert(makePrefix(codeSlotToBlock, slot), blockID)
}

// LookupBlockBySlot retrieves the ID of the block indexed at the slot.
// Expected errors:
//   - storage.ErrNotFound if no block is indexed at the slot
func LookupBlockBySlot(slot uint64, blockID *chain.Identifier) func(*badger.Txn) error {
	return retrieve(makePrefix(codeSlotToBlock, slot), blockID)
}

// InsertLatestSlot initializes the latest slot marker.
// Expected errors:
//   - storage.ErrAlreadyExists if the marker is already set
func InsertLatestSlot(slot uint64) func(*badger.Txn) error {
	return insert(makePrefix(codeLatestSlot), slot)
}

// UpdateLatestSlot replaces the latest slot marker.
// Expected errors:
//   - storage.ErrNotFound if the marker was never inserted
func UpdateLatestSlot(slot uint64) func(*badger.Txn) error {
	return update(makePrefix(codeLatestSlot), slot)
}

// RetrieveLatestSlot reads the latest slot marker.
// Expected errors:
//   - storage.ErrNotFound if the marker was never inserted
func RetrieveLatestSlot(slot *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeLatestSlot), slot)
}
