package watch

import (
	"log"
	"sync"
	"time"

	"github.com/borgmon/pester/pkg/models"
	"github.com/borgmon/pester/pkg/nag"
)

// DefaultWatchInterval is how often the watcher scans today's events.
const DefaultWatchInterval = 5 * time.Second

// EventSource is the slice of the event store the watcher needs.
type EventSource interface {
	ByDate(date string) ([]models.Event, error)
}

// Watcher is a best-effort polling loop that starts nag campaigns for
// events whose notify time has arrived, guaranteeing recovery when the
// scheduled notification was missed (device sleep, OS throttling) as long
// as the app is foregrounded before the campaign window closes. Only one
// watcher runs per process.
type Watcher struct {
	events  EventSource
	manager *nag.Manager

	mu         sync.Mutex
	running    bool
	stop       chan struct{}
	foreground bool

	maxAlarmDuration time.Duration

	// now is swapped out by tests.
	now func() time.Time
}

func NewWatcher(events EventSource, manager *nag.Manager) *Watcher {
	return &Watcher{
		events:           events,
		manager:          manager,
		foreground:       true,
		maxAlarmDuration: nag.DefaultMaxAlarmDuration,
		now:              time.Now,
	}
}

// SetMaxAlarmDuration mirrors the manager's campaign cap so both compute
// the same end time for an occurrence.
func (w *Watcher) SetMaxAlarmDuration(d time.Duration) {
	if d > 0 {
		w.maxAlarmDuration = d
	}
}

// SetForeground gates the tick body. The host app wires its lifecycle
// foreground/background transitions here; while backgrounded the loop
// keeps ticking but does nothing.
func (w *Watcher) SetForeground(foreground bool) {
	w.mu.Lock()
	w.foreground = foreground
	w.mu.Unlock()
}

// Start begins polling. Calling Start on a running watcher is a no-op.
// An immediate check runs before the first tick.
func (w *Watcher) Start(watchInterval, nagInterval time.Duration) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		log.Println("Due-event watcher already running")
		return
	}
	if watchInterval <= 0 {
		watchInterval = DefaultWatchInterval
	}
	w.running = true
	w.stop = make(chan struct{})
	stop := w.stop
	w.mu.Unlock()

	log.Printf("Due-event watcher started (every %s)", watchInterval)

	go func() {
		w.checkDueEvents(nagInterval)

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				w.checkDueEvents(nagInterval)
			}
		}
	}()
}

// Stop halts polling. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stop)
	w.running = false
	log.Println("Due-event watcher stopped")
}

// Running reports whether the poll loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// checkDueEvents is one tick: scan today's events and start a campaign
// for every event whose notify time has arrived and whose window has not
// closed. StartCampaign is idempotent, so repeat calls are safe.
func (w *Watcher) checkDueEvents(nagInterval time.Duration) {
	w.mu.Lock()
	foreground := w.foreground
	w.mu.Unlock()
	if !foreground {
		return
	}

	now := w.now()
	today := now.Format(models.DateLayout)

	events, err := w.events.ByDate(today)
	if err != nil {
		log.Printf("Due-event check failed to load events for %s: %v", today, err)
		return
	}

	for i := range events {
		ev := &events[i]

		notifyTime, ok, err := ev.NotifyTime()
		if err != nil {
			// A malformed event never aborts the rest of the batch.
			log.Printf("Skipping event %s: %v", ev.ID, err)
			continue
		}
		if !ok {
			continue
		}

		endAt := nag.EndAt(ev, now, w.maxAlarmDuration)
		if !now.Before(notifyTime) && now.Before(endAt) {
			w.manager.StartCampaign(ev, nagInterval)
		}
	}
}
