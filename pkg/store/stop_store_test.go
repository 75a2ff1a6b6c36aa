package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStopStoreDefaultsToNotStopped(t *testing.T) {
	db := newTestDB(t)
	stops := NewStopStore(db)

	assert.False(t, stops.IsStopped("e1:2024-06-01"))
	assert.False(t, stops.IsStoppedCached("e1:2024-06-01"))
}

func TestSetStoppedWithoutPersist(t *testing.T) {
	db := newTestDB(t)
	stops := NewStopStore(db)

	stops.SetStopped("e1:2024-06-01", false)
	assert.True(t, stops.IsStopped("e1:2024-06-01"))
	assert.True(t, stops.IsStoppedCached("e1:2024-06-01"))

	// A fresh store over the same database simulates a process restart:
	// the non-persisted stop is gone.
	fresh := NewStopStore(db)
	assert.False(t, fresh.IsStopped("e1:2024-06-01"))
}

func TestPersistedStopSurvivesRestart(t *testing.T) {
	db := newTestDB(t)
	stops := NewStopStore(db)

	stops.SetStopped("e1:2024-06-01", true)

	fresh := NewStopStore(db)
	assert.False(t, fresh.IsStoppedCached("e1:2024-06-01"), "fresh cache starts empty")
	assert.True(t, fresh.IsStopped("e1:2024-06-01"), "flag comes from storage")
	assert.True(t, fresh.IsStoppedCached("e1:2024-06-01"), "positive read populates the cache")
}

func TestStopFlagStorageFormat(t *testing.T) {
	db := newTestDB(t)
	stops := NewStopStore(db)

	stops.SetStopped("e1:2024-06-01", true)

	var value []byte
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		value = tx.Bucket(stopFlagsBucket).Get([]byte("stop-reminding:e1:2024-06-01"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1", string(value))
}

func TestClearStopFlag(t *testing.T) {
	db := newTestDB(t)
	stops := NewStopStore(db)

	stops.SetStopped("e1:2024-06-01", true)
	stops.Clear("e1:2024-06-01")

	assert.False(t, stops.IsStopped("e1:2024-06-01"))

	fresh := NewStopStore(db)
	assert.False(t, fresh.IsStopped("e1:2024-06-01"))
}
