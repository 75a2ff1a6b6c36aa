package store

import (
	"time"

	"go.etcd.io/bbolt"
)

var (
	eventsBucket    = []byte("events")
	stopFlagsBucket = []byte("stop_flags")
)

// DB wraps the bbolt database shared by the event and stop-flag stores.
type DB struct {
	bolt *bbolt.DB
}

// Open opens (or creates) the database file and ensures all buckets exist.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(eventsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(stopFlagsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{bolt: db}, nil
}

func (d *DB) Close() error {
	return d.bolt.Close()
}
