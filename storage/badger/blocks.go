package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module"
	"github.com/garpnet/consensus-core/module/metrics"
	"github.com/garpnet/consensus-core/storage"
	"github.com/garpnet/consensus-core/storage/badger/operation"
)

// Blocks implements persistent block storage around a badger DB, with read
// caches for blocks and the slot index.
type Blocks struct {
	db         *badger.DB
	blockCache *Cache[chain.Identifier, *chain.Block]
	slotCache  *Cache[uint64, chain.Identifier]
}

var _ storage.Blocks = (*Blocks)(nil)

// NewBlocks creates block storage whose caches hold up to cacheSize entries
// each. A zero cacheSize selects DefaultCacheSize.
func NewBlocks(collector module.CacheMetrics, db *badger.DB, cacheSize uint) *Blocks {
	retrieveBlock := func(blockID chain.Identifier) func(*badger.Txn) (*chain.Block, error) {
		return func(tx *badger.Txn) (*chain.Block, error) {
			var block chain.Block
			err := operation.RetrieveBlock(blockID, &block)(tx)
			return &block, err
		}
	}
	retrieveSlot := func(slot uint64) func(*badger.Txn) (chain.Identifier, error) {
		return func(tx *badger.Txn) (chain.Identifier, error) {
			var blockID chain.Identifier
			err := operation.LookupBlockBySlot(slot, &blockID)(tx)
			return blockID, err
		}
	}

	return &Blocks{
		db: db,
		blockCache: newCache[chain.Identifier, *chain.Block](collector, metrics.ResourceBlock,
			withLimit[chain.Identifier, *chain.Block](cacheSize),
			withRetrieve[chain.Identifier, *chain.Block](retrieveBlock),
		),
		slotCache: newCache[uint64, chain.Identifier](collector, metrics.ResourceSlotIndex,
			withLimit[uint64, chain.Identifier](cacheSize),
			withRetrieve[uint64, chain.Identifier](retrieveSlot),
		),
	}
}

func (b *Blocks) Store(block *chain.Block) error {
	blockID := block.ID()
	slot := block.Header.Slot
	var indexed bool
	err := operation.RetryOnConflict(b.db.Update, func(tx *badger.Txn) error {
		indexed = false
		err := operation.SkipDuplicates(operation.InsertBlock(block))(tx)
		if err != nil {
			return fmt.Errorf("could not insert block: %w", err)
		}

		err = operation.IndexBlockBySlot(slot, blockID)(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not index block by slot: %w", err)
		}
		indexed = true

		var latest uint64
		err = operation.RetrieveLatestSlot(&latest)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return operation.InsertLatestSlot(slot)(tx)
		}
		if err != nil {
			return fmt.Errorf("could not retrieve latest slot: %w", err)
		}
		if slot > latest {
			return operation.UpdateLatestSlot(slot)(tx)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not store block %v: %w", blockID, err)
	}

	b.blockCache.Insert(blockID, block)
	if indexed {
		b.slotCache.Insert(slot, blockID)
	}
	return nil
}

func (b *Blocks) ByID(blockID chain.Identifier) (*chain.Block, error) {
	tx := b.db.NewTransaction(false)
	defer tx.Discard()
	return b.blockCache.Get(blockID)(tx)
}

func (b *Blocks) BySlot(slot uint64) (*chain.Block, error) {
	tx := b.db.NewTransaction(false)
	defer tx.Discard()

	blockID, err := b.slotCache.Get(slot)(tx)
	if err != nil {
		return nil, fmt.Errorf("could not look up block at slot %d: %w", slot, err)
	}
	return b.blockCache.Get(blockID)(tx)
}

func (b *Blocks) Latest() (*chain.Block, error) {
	var slot uint64
	err := b.db.View(operation.RetrieveLatestSlot(&slot))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve latest slot: %w", err)
	}
	return b.BySlot(slot)
}
