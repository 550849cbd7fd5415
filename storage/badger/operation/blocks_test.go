package operation

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module/irrecoverable"
	"github.com/garpnet/consensus-core/storage"
	"github.com/garpnet/consensus-core/utils/unittest"
)

func TestBlockInsertRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		block := unittest.BlockFixture()

		err := db.Update(InsertBlock(block))
		require.NoError(t, err)

		var actual chain.Block
		err = db.View(RetrieveBlock(block.ID(), &actual))
		require.NoError(t, err)

		assert.Equal(t, block.Header, actual.Header)
		assert.Equal(t, block.ID(), actual.ID())
		assert.True(t, block.Timestamp.Equal(actual.Timestamp))
		require.Len(t, actual.Transactions, len(block.Transactions))
		for i, tx := range block.Transactions {
			assert.Equal(t, tx.ID, actual.Transactions[i].ID)
			assert.Equal(t, tx.Payload, actual.Transactions[i].Payload)
			assert.True(t, tx.CreatedAt.Equal(actual.Transactions[i].CreatedAt))
		}

		err = db.Update(InsertBlock(block))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		err = db.Update(SkipDuplicates(InsertBlock(block)))
		assert.NoError(t, err)
	})
}

func TestBlockRetrieveMissing(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		var block chain.Block
		err := db.View(RetrieveBlock(unittest.IdentifierFixture(), &block))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		var found bool
		require.NoError(t, db.View(BlockExists(unittest.IdentifierFixture(), &found)))
		assert.False(t, found)
	})
}

func TestBlockExists(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		block := unittest.BlockFixture()
		require.NoError(t, db.Update(InsertBlock(block)))

		var found bool
		require.NoError(t, db.View(BlockExists(block.ID(), &found)))
		assert.True(t, found)
	})
}

func TestSlotIndex(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		blockID := unittest.IdentifierFixture()
		err := db.Update(IndexBlockBySlot(42, blockID))
		require.NoError(t, err)

		var actual chain.Identifier
		err = db.View(LookupBlockBySlot(42, &actual))
		require.NoError(t, err)
		assert.Equal(t, blockID, actual)

		err = db.Update(IndexBlockBySlot(42, unittest.IdentifierFixture()))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		err = db.View(LookupBlockBySlot(43, &actual))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestLatestSlot(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		var slot uint64
		err := db.View(RetrieveLatestSlot(&slot))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = db.Update(UpdateLatestSlot(3))
		assert.ErrorIs(t, err, storage.ErrNotFound, "update requires an existing marker")

		require.NoError(t, db.Update(InsertLatestSlot(3)))
		require.NoError(t, db.View(RetrieveLatestSlot(&slot)))
		assert.Equal(t, uint64(3), slot)

		require.NoError(t, db.Update(UpdateLatestSlot(7)))
		require.NoError(t, db.View(RetrieveLatestSlot(&slot)))
		assert.Equal(t, uint64(7), slot)
	})
}

func TestRetryOnConflict(t *testing.T) {
	attempts := 0
	action := func(op func(*badger.Txn) error) error {
		attempts++
		if attempts < 3 {
			return badger.ErrConflict
		}
		return op(nil)
	}

	err := RetryOnConflict(action, func(*badger.Txn) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	sentinel := errors.New("boom")
	err = RetryOnConflict(action, func(*badger.Txn) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestMakePrefixOrdering(t *testing.T) {
	low := makePrefix(codeSlotToBlock, uint64(1))
	high := makePrefix(codeSlotToBlock, uint64(256))
	assert.Len(t, low, 9)
	assert.Less(t, string(low), string(high), "big endian slots sort numerically")
	assert.Panics(t, func() { makePrefix(codeBlock, 1.5) })
}

func TestCodecRejectsGarbage(t *testing.T) {
	var block chain.Block
	err := decodeValue([]byte("not snappy"), &block)
	assert.True(t, irrecoverable.IsException(err))
}
