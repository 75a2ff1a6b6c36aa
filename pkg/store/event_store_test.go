package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borgmon/pester/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestEventStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	events := NewEventStore(db)

	ev := &models.Event{
		ID:              "e1",
		Title:           "Dentist",
		Date:            "2024-06-01",
		Time:            "10:00",
		RemindOffsetMin: intPtr(15),
		Repeat:          models.RepeatNone,
		Type:            models.TypeSchedule,
		Payload:         `{"endDate":"2024-06-01","endTime":"11:00"}`,
	}
	require.NoError(t, events.Put(ev))

	got, err := events.GetByID("e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *ev, *got)

	missing, err := events.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEventStoreRejectsEmptyID(t *testing.T) {
	db := newTestDB(t)
	events := NewEventStore(db)

	assert.Error(t, events.Put(&models.Event{Date: "2024-06-01"}))
}

func TestEventStoreByDate(t *testing.T) {
	db := newTestDB(t)
	events := NewEventStore(db)

	require.NoError(t, events.Put(&models.Event{ID: "a", Date: "2024-06-01"}))
	require.NoError(t, events.Put(&models.Event{ID: "b", Date: "2024-06-01"}))
	require.NoError(t, events.Put(&models.Event{ID: "c", Date: "2024-06-02"}))

	day, err := events.ByDate("2024-06-01")
	require.NoError(t, err)
	assert.Len(t, day, 2)

	empty, err := events.ByDate("2024-07-01")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEventStoreFrom(t *testing.T) {
	db := newTestDB(t)
	events := NewEventStore(db)

	require.NoError(t, events.Put(&models.Event{ID: "past", Date: "2024-05-31"}))
	require.NoError(t, events.Put(&models.Event{ID: "today", Date: "2024-06-01"}))
	require.NoError(t, events.Put(&models.Event{ID: "later", Date: "2024-12-24"}))

	upcoming, err := events.From("2024-06-01")
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	for _, ev := range upcoming {
		assert.GreaterOrEqual(t, ev.Date, "2024-06-01")
	}

	all, err := events.All()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEventStoreDelete(t *testing.T) {
	db := newTestDB(t)
	events := NewEventStore(db)

	require.NoError(t, events.Put(&models.Event{ID: "e1", Date: "2024-06-01"}))
	require.NoError(t, events.Delete("e1"))

	got, err := events.GetByID("e1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a missing event is not an error
	assert.NoError(t, events.Delete("e1"))
}
