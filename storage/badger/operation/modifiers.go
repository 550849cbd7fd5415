package operation

import (
	"errors"

	"github.com/dgraph-io/badger/v2"

	"github.com/garpnet/consensus-core/storage"
)

// SkipDuplicates turns storage.ErrAlreadyExists returned by op into success.
func SkipDuplicates(op func(*badger.Txn) error) func(tx *badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := op(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return err
	}
}

// RetryOnConflict repeats the action, typically db.Update, for as long as
// badger reports a conflict with a concurrent transaction.
func RetryOnConflict(action func(func(*badger.Txn) error) error, op func(tx *badger.Txn) error) error {
	for {
		err := action(op)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}
