package store

import (
	"log"
	"sync"

	"go.etcd.io/bbolt"
)

// stopKeyPrefix namespaces stop flags in the flags bucket. The value for a
// stopped occurrence is literally "1"; absence means not stopped.
const stopKeyPrefix = "stop-reminding:"

// StopStore holds the durable "stop reminding me about this occurrence"
// flags with an in-memory cache in front of the database.
//
// The in-memory set is updated synchronously on SetStopped so a racing
// campaign tick observes the stop immediately, even while the durable
// write is still in flight or has failed.
type StopStore struct {
	mu      sync.RWMutex
	db      *DB
	stopped map[string]bool
}

func NewStopStore(db *DB) *StopStore {
	return &StopStore{
		db:      db,
		stopped: make(map[string]bool),
	}
}

// IsStopped reports whether the occurrence was stopped. The in-memory set
// is checked first; on a miss the persisted flag is read and cached on a
// positive result. Storage errors are treated as "not stopped" - the only
// harm of failing open is one extra duplicate alert, whereas failing
// closed could suppress a legitimate alert.
func (s *StopStore) IsStopped(occurrenceKey string) bool {
	s.mu.RLock()
	cached := s.stopped[occurrenceKey]
	s.mu.RUnlock()
	if cached {
		return true
	}

	var value []byte
	err := s.db.bolt.View(func(tx *bbolt.Tx) error {
		value = tx.Bucket(stopFlagsBucket).Get([]byte(stopKeyPrefix + occurrenceKey))
		return nil
	})
	if err != nil {
		log.Printf("Failed to read stop flag for %s: %v", occurrenceKey, err)
		return false
	}

	if string(value) != "1" {
		return false
	}

	s.mu.Lock()
	s.stopped[occurrenceKey] = true
	s.mu.Unlock()
	return true
}

// IsStoppedCached checks only the in-memory set. Campaign ticks use this
// fast path so a tick never blocks on storage I/O.
func (s *StopStore) IsStoppedCached(occurrenceKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped[occurrenceKey]
}

// SetStopped marks the occurrence as stopped. The in-memory set is always
// updated first; the durable write only happens when persist is true and
// is best-effort (failures are logged, not returned).
func (s *StopStore) SetStopped(occurrenceKey string, persist bool) {
	s.mu.Lock()
	s.stopped[occurrenceKey] = true
	s.mu.Unlock()

	if !persist {
		return
	}

	err := s.db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(stopFlagsBucket).Put([]byte(stopKeyPrefix+occurrenceKey), []byte("1"))
	})
	if err != nil {
		log.Printf("Failed to persist stop flag for %s: %v", occurrenceKey, err)
	}
}

// Clear removes the stop flag for an occurrence from both the cache and
// the database. Used when an event is edited so its reminders come back.
func (s *StopStore) Clear(occurrenceKey string) {
	s.mu.Lock()
	delete(s.stopped, occurrenceKey)
	s.mu.Unlock()

	err := s.db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(stopFlagsBucket).Delete([]byte(stopKeyPrefix + occurrenceKey))
	})
	if err != nil {
		log.Printf("Failed to clear stop flag for %s: %v", occurrenceKey, err)
	}
}
