package nag

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/borgmon/pester/pkg/models"
	"github.com/borgmon/pester/pkg/notify"
	"github.com/borgmon/pester/pkg/store"
)

const (
	// DefaultNagInterval is how often an active campaign re-fires.
	DefaultNagInterval = 5 * time.Second

	// DefaultMaxAlarmDuration caps a campaign for occurrences without
	// their own end time.
	DefaultMaxAlarmDuration = 5 * time.Minute
)

// EndAt computes when a campaign for the event must stop firing. Ranged
// occurrences end at their own end timestamp; instant occurrences get a
// fixed window anchored at campaign start, so a campaign discovered late
// by the watcher still gets a full window.
func EndAt(ev *models.Event, campaignStart time.Time, maxAlarmDuration time.Duration) time.Time {
	occ := models.Classify(ev)
	if occ.Kind == models.OccurrenceRanged {
		return occ.EndAt
	}
	if maxAlarmDuration <= 0 {
		maxAlarmDuration = DefaultMaxAlarmDuration
	}
	return campaignStart.Add(maxAlarmDuration)
}

// campaign is the in-memory state of one occurrence's repeating alerts.
// Owned exclusively by the Manager; sending guards against overlapping
// fire attempts when a previous fire is still in flight.
type campaign struct {
	key     string
	endAt   time.Time
	stop    chan struct{}
	sending bool
}

// Manager runs at most one nag campaign per occurrence key. A campaign
// fires an alert immediately, then re-fires on a fixed interval until the
// occurrence's end time passes or the user stops it.
type Manager struct {
	notifier notify.Notifier
	stops    *store.StopStore

	mu        sync.Mutex
	campaigns map[string]*campaign

	maxAlarmDuration time.Duration

	categoriesOnce sync.Once

	// now is swapped out by tests.
	now func() time.Time
}

func NewManager(notifier notify.Notifier, stops *store.StopStore) *Manager {
	return &Manager{
		notifier:         notifier,
		stops:            stops,
		campaigns:        make(map[string]*campaign),
		maxAlarmDuration: DefaultMaxAlarmDuration,
		now:              time.Now,
	}
}

// SetMaxAlarmDuration overrides the campaign cap for instant occurrences.
func (m *Manager) SetMaxAlarmDuration(d time.Duration) {
	if d > 0 {
		m.maxAlarmDuration = d
	}
}

// StartCampaign begins re-alerting for the event's occurrence. It is a
// no-op when the event has no reminder, when delivery is unavailable,
// when the occurrence was stopped, or when a campaign is already active
// for the same key (idempotent).
func (m *Manager) StartCampaign(ev *models.Event, interval time.Duration) {
	if ev == nil {
		return
	}
	if _, ok := ev.ReminderOffset(); !ok {
		return
	}
	if !m.notifier.Available() {
		return
	}
	if interval <= 0 {
		interval = DefaultNagInterval
	}

	key := models.OccurrenceKey(ev.ID, ev.Date)
	if m.stops.IsStopped(key) {
		return
	}

	m.categoriesOnce.Do(func() {
		m.notifier.RegisterActionCategory(notify.CategoryNag, []notify.Action{
			{ID: notify.ActionStopReminding, Title: "Stop Reminding", Destructive: true},
		})
	})

	m.mu.Lock()
	if _, active := m.campaigns[key]; active {
		m.mu.Unlock()
		return
	}
	c := &campaign{
		key:   key,
		endAt: EndAt(ev, m.now(), m.maxAlarmDuration),
		stop:  make(chan struct{}),
	}
	m.campaigns[key] = c
	m.mu.Unlock()

	log.Printf("Nag campaign started for %s (until %s)", key, c.endAt.Format("15:04:05"))

	// First alert goes out right away; the ticker handles re-fires.
	m.tryFire(c, ev)

	evCopy := *ev
	go m.run(c, &evCopy, interval)
}

// StopCampaign tears down the campaign for an occurrence and records the
// stop in the stop-flag store (durably when persist is true). Stopping an
// absent or already-stopped campaign is a no-op.
func (m *Manager) StopCampaign(occurrenceKey string, persist bool) {
	// The in-memory flag goes first so a tick already past the channel
	// select still sees the stop before firing.
	m.stops.SetStopped(occurrenceKey, persist)

	m.mu.Lock()
	if c, ok := m.campaigns[occurrenceKey]; ok {
		close(c.stop)
		delete(m.campaigns, occurrenceKey)
		log.Printf("Nag campaign stopped for %s (persist=%v)", occurrenceKey, persist)
	}
	m.mu.Unlock()
}

// IsActive reports whether a campaign is running for the occurrence.
func (m *Manager) IsActive(occurrenceKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.campaigns[occurrenceKey]
	return ok
}

// Active returns the keys of all running campaigns, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.campaigns))
	for key := range m.campaigns {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (m *Manager) run(c *campaign, ev *models.Event, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if !m.now().Before(c.endAt) {
				// Window over. Non-persisting stop keeps the watcher
				// from restarting the campaign this process lifetime.
				m.StopCampaign(c.key, false)
				return
			}
			if m.stops.IsStoppedCached(c.key) {
				m.StopCampaign(c.key, false)
				return
			}
			m.tryFire(c, ev)
		}
	}
}

// tryFire requests one delivery unless a previous fire is still in
// flight. Delivery failures are logged only; the next tick is the retry.
func (m *Manager) tryFire(c *campaign, ev *models.Event) {
	m.mu.Lock()
	if c.sending {
		m.mu.Unlock()
		return
	}
	c.sending = true
	m.mu.Unlock()

	n := m.buildNotification(ev, c.key)

	go func() {
		defer func() {
			m.mu.Lock()
			c.sending = false
			m.mu.Unlock()
		}()

		if _, err := m.notifier.FireNow(n); err != nil {
			log.Printf("Nag fire failed for %s: %v", c.key, err)
		}
	}()
}

func (m *Manager) buildNotification(ev *models.Event, occurrenceKey string) notify.Notification {
	title := ev.Title
	if title == "" {
		title = "Reminder"
	}

	body := ev.Date
	if ev.Time != "" {
		body = fmt.Sprintf("%s %s", ev.Date, ev.Time)
	}

	return notify.Notification{
		Identifier: notify.EventIdentifier(ev.ID),
		Title:      title,
		Body:       body,
		CategoryID: notify.CategoryNag,
		Data: map[string]string{
			notify.DataEventID:       ev.ID,
			notify.DataDate:          ev.Date,
			notify.DataOccurrenceKey: occurrenceKey,
		},
	}
}
