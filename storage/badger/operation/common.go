package operation

import (
	"errors"

	"github.com/dgraph-io/badger/v2"

	"github.com/garpnet/consensus-core/module/irrecoverable"
	"github.com/garpnet/consensus-core/storage"
)

// lookup reads the item stored at key. A missing key is reported as
// storage.ErrNotFound, any other badger failure is an exception.
func lookup(tx *badger.Txn, key []byte) (*badger.Item, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, irrecoverable.NewExceptionf("could not read key %x: %w", key, err)
	}
	return item, nil
}

func put(tx *badger.Txn, key []byte, entity interface{}) error {
	val, err := encodeEntity(entity)
	if err != nil {
		return err
	}
	err = tx.Set(key, val)
	if err != nil {
		return irrecoverable.NewExceptionf("could not write key %x: %w", key, err)
	}
	return nil
}

// insert writes entity under a key that must be vacant.
// Expected errors:
//   - storage.ErrAlreadyExists if the key is occupied
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := lookup(tx, key)
		switch {
		case err == nil:
			return storage.ErrAlreadyExists
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		return put(tx, key, entity)
	}
}

// update overwrites entity under a key that must be occupied.
// Expected errors:
//   - storage.ErrNotFound if the key is vacant
func update(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := lookup(tx, key)
		if err != nil {
			return err
		}
		return put(tx, key, entity)
	}
}

// retrieve decodes the value under key into entity, which must be a pointer.
// Expected errors:
//   - storage.ErrNotFound if the key is vacant
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := lookup(tx, key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decodeValue(val, entity)
		})
	}
}

// exists sets found to whether key is occupied.
func exists(key []byte, found *bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := lookup(tx, key)
		*found = err == nil
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
}
