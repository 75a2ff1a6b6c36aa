package store

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/borgmon/pester/pkg/models"
)

// EventStore persists calendar events keyed by event ID.
type EventStore struct {
	db *DB
}

func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Put saves or replaces an event record.
func (es *EventStore) Put(event *models.Event) error {
	if event.ID == "" {
		return fmt.Errorf("event has no ID")
	}
	return es.db.bolt.Update(func(tx *bbolt.Tx) error {
		data, err := encodeToBinary(event)
		if err != nil {
			return err
		}
		return tx.Bucket(eventsBucket).Put([]byte(event.ID), data)
	})
}

// Delete removes an event record. Deleting a missing event is not an error.
func (es *EventStore) Delete(eventID string) error {
	return es.db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(eventsBucket).Delete([]byte(eventID))
	})
}

// GetByID returns the event with the given ID, or nil if not found.
func (es *EventStore) GetByID(eventID string) (*models.Event, error) {
	var event *models.Event
	err := es.db.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(eventsBucket).Get([]byte(eventID))
		if data == nil {
			return nil
		}
		var ev models.Event
		if err := decodeBinary(data, &ev); err != nil {
			return err
		}
		event = &ev
		return nil
	})
	return event, err
}

// ByDate returns all events dated exactly the given day (YYYY-MM-DD).
func (es *EventStore) ByDate(date string) ([]models.Event, error) {
	return es.scan(func(ev *models.Event) bool {
		return ev.Date == date
	})
}

// From returns all events dated on or after the given day. Date strings
// sort lexicographically, so a plain string compare is enough.
func (es *EventStore) From(date string) ([]models.Event, error) {
	return es.scan(func(ev *models.Event) bool {
		return ev.Date >= date
	})
}

// All returns every stored event.
func (es *EventStore) All() ([]models.Event, error) {
	return es.scan(func(*models.Event) bool { return true })
}

func (es *EventStore) scan(include func(*models.Event) bool) ([]models.Event, error) {
	var events []models.Event

	err := es.db.bolt.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(eventsBucket).Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var ev models.Event
			if err := decodeBinary(v, &ev); err != nil {
				// A single corrupt record must not abort the scan.
				continue
			}
			if include(&ev) {
				events = append(events, ev)
			}
		}
		return nil
	})

	return events, err
}

func encodeToBinary(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(data)
	return buf.Bytes(), err
}

func decodeBinary(data []byte, target interface{}) error {
	return gob.NewDecoder(bytes.NewBuffer(data)).Decode(target)
}
