package unittest

import (
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
)

// RequireReturnsBefore fails the test if f is still running after timeout.
func RequireReturnsBefore(t testing.TB, f func(), timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		require.FailNowf(t, "timeout", "function did not return within %s", timeout)
	}
}

// TempDir creates a fresh directory that the caller must remove.
func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "consensus-core-test-")
	require.NoError(t, err)
	return dir
}

// RunWithTempDir runs f with a directory that is removed afterwards.
func RunWithTempDir(t testing.TB, f func(dir string)) {
	dir := TempDir(t)
	defer os.RemoveAll(dir)
	f(dir)
}

// BadgerDB opens a quiet badger database in dir.
func BadgerDB(t testing.TB, dir string) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(dir).WithKeepL0InMemory(true).WithLogger(nil))
	require.NoError(t, err)
	return db
}

// RunWithBadgerDB runs f against a database in a temporary directory. The
// database is closed and the directory removed once f returns.
func RunWithBadgerDB(t testing.TB, f func(db *badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db := BadgerDB(t, dir)
		defer db.Close()
		f(db)
	})
}
