package nag

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borgmon/pester/pkg/models"
	"github.com/borgmon/pester/pkg/notify"
	"github.com/borgmon/pester/pkg/store"
)

// fakeNotifier records deliveries and simulates slow or failing fires.
type fakeNotifier struct {
	mu sync.Mutex

	unavailable bool
	fireDelay   time.Duration
	failFires   bool

	fires       []time.Time
	inFlight    int
	maxInFlight int

	scheduled  map[string]notify.Notification
	categories map[string][]notify.Action
	handler    notify.ResponseHandler
	dismissed  int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		scheduled:  make(map[string]notify.Notification),
		categories: make(map[string][]notify.Action),
	}
}

func (f *fakeNotifier) Available() bool { return !f.unavailable }

func (f *fakeNotifier) ScheduleAt(n notify.Notification, at time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[n.Identifier] = n
	return "delivery-" + n.Identifier, nil
}

func (f *fakeNotifier) FireNow(n notify.Notification) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.fires = append(f.fires, time.Now())
	delay := f.fireDelay
	fail := f.failFires
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if fail {
		return "", errors.New("delivery refused")
	}
	return "delivery", nil
}

func (f *fakeNotifier) Cancel(identifier string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheduled, identifier)
}

func (f *fakeNotifier) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = make(map[string]notify.Notification)
}

func (f *fakeNotifier) ListScheduled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	identifiers := make([]string, 0, len(f.scheduled))
	for identifier := range f.scheduled {
		identifiers = append(identifiers, identifier)
	}
	return identifiers
}

func (f *fakeNotifier) DismissDelivered() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed++
}

func (f *fakeNotifier) RegisterActionCategory(categoryID string, actions []notify.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories[categoryID] = actions
}

func (f *fakeNotifier) OnResponse(h notify.ResponseHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeNotifier) fireCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fires)
}

func (f *fakeNotifier) fireTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.fires...)
}

func intPtr(v int) *int { return &v }

func newTestStops(t *testing.T) *store.StopStore {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewStopStore(db)
}

func alarmEvent(id string) *models.Event {
	return &models.Event{
		ID:              id,
		Title:           "Wake up",
		Date:            "2024-06-01",
		Time:            "10:00",
		RemindOffsetMin: intPtr(0),
		Type:            models.TypeAlarm,
	}
}

func TestStartCampaignFiresImmediately(t *testing.T) {
	notifier := newFakeNotifier()
	m := NewManager(notifier, newTestStops(t))

	m.StartCampaign(alarmEvent("e1"), 1*time.Hour)
	defer m.StopCampaign("e1:2024-06-01", false)

	assert.Eventually(t, func() bool {
		return notifier.fireCount() == 1
	}, time.Second, 10*time.Millisecond)
	assert.True(t, m.IsActive("e1:2024-06-01"))
}

func TestStartCampaignIdempotent(t *testing.T) {
	notifier := newFakeNotifier()
	m := NewManager(notifier, newTestStops(t))

	m.StartCampaign(alarmEvent("e1"), 1*time.Hour)
	m.StartCampaign(alarmEvent("e1"), 1*time.Hour)
	defer m.StopCampaign("e1:2024-06-01", false)

	assert.Equal(t, []string{"e1:2024-06-01"}, m.Active())

	// The second call produced no extra immediate fire.
	assert.Eventually(t, func() bool {
		return notifier.fireCount() == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, notifier.fireCount())
}

func TestStartCampaignPreconditions(t *testing.T) {
	notifier := newFakeNotifier()
	stops := newTestStops(t)
	m := NewManager(notifier, stops)

	// No reminder configured
	noReminder := alarmEvent("e1")
	noReminder.RemindOffsetMin = nil
	m.StartCampaign(noReminder, time.Second)
	assert.Empty(t, m.Active())

	negative := alarmEvent("e2")
	negative.RemindOffsetMin = intPtr(-1)
	m.StartCampaign(negative, time.Second)
	assert.Empty(t, m.Active())

	// Occurrence already stopped
	stops.SetStopped("e3:2024-06-01", false)
	m.StartCampaign(alarmEvent("e3"), time.Second)
	assert.Empty(t, m.Active())

	// Delivery unavailable
	notifier.unavailable = true
	m.StartCampaign(alarmEvent("e4"), time.Second)
	assert.Empty(t, m.Active())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, notifier.fireCount())
}

func TestStopSuppressesImmediately(t *testing.T) {
	notifier := newFakeNotifier()
	m := NewManager(notifier, newTestStops(t))

	m.StartCampaign(alarmEvent("e1"), 30*time.Millisecond)

	assert.Eventually(t, func() bool {
		return notifier.fireCount() >= 2
	}, time.Second, 10*time.Millisecond)

	m.StopCampaign("e1:2024-06-01", false)
	assert.False(t, m.IsActive("e1:2024-06-01"))

	// Let any already-requested fire drain, then the count must hold.
	time.Sleep(60 * time.Millisecond)
	settled := notifier.fireCount()
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, settled, notifier.fireCount())
}

func TestStopCampaignReentrant(t *testing.T) {
	notifier := newFakeNotifier()
	m := NewManager(notifier, newTestStops(t))

	m.StartCampaign(alarmEvent("e1"), time.Hour)
	m.StopCampaign("e1:2024-06-01", false)
	m.StopCampaign("e1:2024-06-01", true)
	m.StopCampaign("never-started:2024-06-01", false)

	assert.Empty(t, m.Active())
}

func TestNoPostExpiryFires(t *testing.T) {
	notifier := newFakeNotifier()
	m := NewManager(notifier, newTestStops(t))
	m.SetMaxAlarmDuration(250 * time.Millisecond)

	campaignStart := time.Now()
	m.StartCampaign(alarmEvent("e1"), 50*time.Millisecond)
	endAt := campaignStart.Add(250 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return !m.IsActive("e1:2024-06-01")
	}, time.Second, 10*time.Millisecond)

	fires := notifier.fireTimes()
	require.NotEmpty(t, fires)
	for _, at := range fires {
		// One tick of slack for scheduling jitter.
		assert.True(t, at.Before(endAt.Add(60*time.Millisecond)),
			"fire at %s is after campaign end %s", at, endAt)
	}

	// Expired campaigns stay quiet.
	settled := notifier.fireCount()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, settled, notifier.fireCount())

	// Expiry left a non-persisted stop so the watcher cannot restart
	// the same occurrence this process lifetime.
	m.StartCampaign(alarmEvent("e1"), 50*time.Millisecond)
	assert.Empty(t, m.Active())
}

func TestNoOverlappingFires(t *testing.T) {
	notifier := newFakeNotifier()
	notifier.fireDelay = 120 * time.Millisecond
	m := NewManager(notifier, newTestStops(t))

	m.StartCampaign(alarmEvent("e1"), 30*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	m.StopCampaign("e1:2024-06-01", false)

	notifier.mu.Lock()
	maxInFlight := notifier.maxInFlight
	notifier.mu.Unlock()
	assert.Equal(t, 1, maxInFlight, "ticks must skip while a fire is in flight")
}

func TestDeliveryFailureDoesNotStopCampaign(t *testing.T) {
	notifier := newFakeNotifier()
	notifier.failFires = true
	m := NewManager(notifier, newTestStops(t))

	m.StartCampaign(alarmEvent("e1"), 30*time.Millisecond)
	defer m.StopCampaign("e1:2024-06-01", false)

	// Every tick retries despite failures.
	assert.Eventually(t, func() bool {
		return notifier.fireCount() >= 3
	}, time.Second, 10*time.Millisecond)
	assert.True(t, m.IsActive("e1:2024-06-01"))
}

func TestStopActionCategoryRegisteredOnce(t *testing.T) {
	notifier := newFakeNotifier()
	m := NewManager(notifier, newTestStops(t))

	m.StartCampaign(alarmEvent("e1"), time.Hour)
	m.StartCampaign(alarmEvent("e2"), time.Hour)
	defer m.StopCampaign("e1:2024-06-01", false)
	defer m.StopCampaign("e2:2024-06-01", false)

	notifier.mu.Lock()
	actions := notifier.categories[notify.CategoryNag]
	notifier.mu.Unlock()

	require.Len(t, actions, 1)
	assert.Equal(t, notify.ActionStopReminding, actions[0].ID)
	assert.True(t, actions[0].Destructive)
}

func TestNagNotificationPayload(t *testing.T) {
	notifier := newFakeNotifier()
	m := NewManager(notifier, newTestStops(t))

	n := m.buildNotification(alarmEvent("e1"), "e1:2024-06-01")

	assert.Equal(t, "event-e1", n.Identifier)
	assert.Equal(t, "Wake up", n.Title)
	assert.Equal(t, "2024-06-01 10:00", n.Body)
	assert.Equal(t, notify.CategoryNag, n.CategoryID)
	assert.Equal(t, "e1", n.Data[notify.DataEventID])
	assert.Equal(t, "2024-06-01", n.Data[notify.DataDate])
	assert.Equal(t, "e1:2024-06-01", n.Data[notify.DataOccurrenceKey])
}

func TestEndAtRanged(t *testing.T) {
	ev := &models.Event{
		ID:   "e1",
		Date: "2024-06-01",
		Time: "10:00",
		Type: models.TypeSchedule,
		Payload: `{"endDate":"2024-06-01","endTime":"11:00","isAllDay":false}`,
	}

	// A ranged occurrence ends at its own end time, ignoring the cap.
	endAt := EndAt(ev, time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local), time.Minute)
	assert.Equal(t, time.Date(2024, 6, 1, 11, 0, 0, 0, time.Local), endAt)
}

func TestEndAtInstantAnchorsAtCampaignStart(t *testing.T) {
	ev := alarmEvent("e1")

	// A campaign discovered well after the nominal notify time still
	// gets a full window from its actual start.
	lateStart := time.Date(2024, 6, 1, 14, 30, 0, 0, time.Local)
	endAt := EndAt(ev, lateStart, 5*time.Minute)
	assert.Equal(t, lateStart.Add(5*time.Minute), endAt)

	// Non-positive cap falls back to the default.
	endAt = EndAt(ev, lateStart, 0)
	assert.Equal(t, lateStart.Add(DefaultMaxAlarmDuration), endAt)
}
