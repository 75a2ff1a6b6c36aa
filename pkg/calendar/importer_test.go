package calendar

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borgmon/pester/pkg/models"
)

func icsBody(events ...string) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
	}
	for _, ev := range events {
		lines = append(lines, "BEGIN:VEVENT")
		lines = append(lines, strings.Split(ev, "\n")...)
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR", "")
	return strings.Join(lines, "\r\n")
}

func serveICal(t *testing.T, body string) models.ICalSource {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return models.ICalSource{
		ID:              "work",
		Name:            "Work",
		URL:             server.URL,
		RemindOffsetMin: 5,
	}
}

func TestImport(t *testing.T) {
	tomorrow := time.Now().AddDate(0, 0, 1)
	day := tomorrow.Format("20060102")

	source := serveICal(t, icsBody(
		"UID:meeting-1\nDTSTAMP:20240101T000000Z\nSUMMARY:Planning\n"+
			"DTSTART:"+day+"T090000\nDTEND:"+day+"T100000",
		"UID:cancelled-1\nDTSTAMP:20240101T000000Z\nSUMMARY:Dropped\n"+
			"STATUS:CANCELLED\nDTSTART:"+day+"T110000",
		"UID:no-start\nDTSTAMP:20240101T000000Z\nSUMMARY:Broken",
	))

	events, err := Import(source, 30)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "meeting-1", ev.ID)
	assert.Equal(t, "Planning", ev.Title)
	assert.Equal(t, tomorrow.Format(models.DateLayout), ev.Date)
	assert.Equal(t, "09:00", ev.Time)
	assert.Equal(t, models.TypeSchedule, ev.Type)
	assert.Equal(t, models.RepeatNone, ev.Repeat)
	assert.Equal(t, "work", ev.SourceID)

	require.NotNil(t, ev.RemindOffsetMin)
	assert.Equal(t, 5, *ev.RemindOffsetMin)

	payload, err := ev.ParsePayload()
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, tomorrow.Format(models.DateLayout), payload.EndDate)
	assert.Equal(t, "10:00", payload.EndTime)
	assert.False(t, payload.IsAllDay)
}

func TestImportExpandsRecurring(t *testing.T) {
	tomorrow := time.Now().AddDate(0, 0, 1)
	day := tomorrow.Format("20060102")

	source := serveICal(t, icsBody(
		"UID:daily-1\nDTSTAMP:20240101T000000Z\nSUMMARY:Standup\n"+
			"DTSTART:"+day+"T093000\nDTEND:"+day+"T094500\n"+
			"RRULE:FREQ=DAILY;COUNT=3",
	))

	events, err := Import(source, 30)
	require.NoError(t, err)
	require.Len(t, events, 3)

	for i, ev := range events {
		wantDate := tomorrow.AddDate(0, 0, i).Format(models.DateLayout)
		assert.Equal(t, "daily-1-"+wantDate, ev.ID)
		assert.Equal(t, wantDate, ev.Date)
		assert.Equal(t, "09:30", ev.Time)
		// Expansion already happened, each instance stands alone.
		assert.Equal(t, models.RepeatNone, ev.Repeat)

		payload, err := ev.ParsePayload()
		require.NoError(t, err)
		assert.Equal(t, "09:45", payload.EndTime)
	}
}

func TestImportDeduplicatesUIDs(t *testing.T) {
	tomorrow := time.Now().AddDate(0, 0, 1).Format("20060102")

	duplicate := "UID:meeting-1\nDTSTAMP:20240101T000000Z\nSUMMARY:Planning\n" +
		"DTSTART:" + tomorrow + "T090000"
	source := serveICal(t, icsBody(duplicate, duplicate))

	events, err := Import(source, 30)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestImportSkipsEventsOutsideHorizon(t *testing.T) {
	yesterday := time.Now().AddDate(0, 0, -1).Format("20060102")
	farFuture := time.Now().AddDate(0, 0, 90).Format("20060102")

	source := serveICal(t, icsBody(
		"UID:past\nDTSTAMP:20240101T000000Z\nSUMMARY:Past\nDTSTART:"+yesterday+"T090000",
		"UID:far\nDTSTAMP:20240101T000000Z\nSUMMARY:Far\nDTSTART:"+farFuture+"T090000",
	))

	events, err := Import(source, 30)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestImportRejectsHTML(t *testing.T) {
	source := serveICal(t, "<!DOCTYPE html><html><body>Sign in</body></html>")

	_, err := Import(source, 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTML")
}

func TestImportRejectsNonICal(t *testing.T) {
	source := serveICal(t, "hello world")

	_, err := Import(source, 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BEGIN:VCALENDAR")
}

func TestValidateICalFormat(t *testing.T) {
	assert.NoError(t, validateICalFormat("BEGIN:VCALENDAR\r\nEND:VCALENDAR"))
	assert.NoError(t, validateICalFormat("  \nBEGIN:VCALENDAR"))
	assert.Error(t, validateICalFormat("<html></html>"))
	assert.Error(t, validateICalFormat("random text"))
}
