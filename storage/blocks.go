package storage

import (
	"github.com/garpnet/consensus-core/model/chain"
)

// Blocks represents persistent storage for blocks.
type Blocks interface {

	// Store persists the block and indexes it by slot. The slot index and the
	// latest slot are only advanced for the first block stored at a slot.
	// Storing a block that already exists is a no-op.
	Store(block *chain.Block) error

	// ByID returns the block with the given ID.
	// Expected errors:
	//   - ErrNotFound if no block with the ID is stored
	ByID(blockID chain.Identifier) (*chain.Block, error)

	// BySlot returns the block indexed at the given slot.
	// Expected errors:
	//   - ErrNotFound if no block is indexed at the slot
	BySlot(slot uint64) (*chain.Block, error)

	// Latest returns the block at the highest indexed slot.
	// Expected errors:
	//   - ErrNotFound if no block was stored yet
	Latest() (*chain.Block, error)
}
