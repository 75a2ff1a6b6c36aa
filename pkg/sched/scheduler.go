package sched

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/borgmon/pester/pkg/models"
	"github.com/borgmon/pester/pkg/notify"
)

// DefaultRepeatOccurrences is how many future instances of a repeating
// event get their own scheduled notification.
const DefaultRepeatOccurrences = 10

// EventSource is the slice of the event store the scheduler needs.
type EventSource interface {
	From(date string) ([]models.Event, error)
}

// Scheduler manages the non-repeating notification path: one scheduled
// alert per event at its precomputed notify time, with repeating events
// fanned out into a fixed number of future single-shot alerts.
type Scheduler struct {
	notifier notify.Notifier
	events   EventSource

	repeatOccurrences int

	// now is swapped out by tests.
	now func() time.Time
}

func NewScheduler(notifier notify.Notifier, events EventSource) *Scheduler {
	return &Scheduler{
		notifier:          notifier,
		events:            events,
		repeatOccurrences: DefaultRepeatOccurrences,
		now:               time.Now,
	}
}

// SetRepeatOccurrences overrides how far repeating events fan out.
func (s *Scheduler) SetRepeatOccurrences(n int) {
	if n > 0 {
		s.repeatOccurrences = n
	}
}

// ScheduleOne schedules the event's single reminder notification.
// Returns "" without an adapter call when no reminder is configured or
// the notify time is already past (no retroactive scheduling). Any prior
// notification for the same event is replaced.
func (s *Scheduler) ScheduleOne(ev *models.Event) (string, error) {
	if !s.notifier.Available() {
		return "", nil
	}

	notifyTime, ok, err := ev.NotifyTime()
	if err != nil {
		return "", err
	}
	if !ok || !notifyTime.After(s.now()) {
		return "", nil
	}

	identifier := notify.EventIdentifier(ev.ID)
	s.notifier.Cancel(identifier)

	title := ev.Title
	if title == "" {
		title = "Reminder"
	}
	body := ev.Date
	if ev.Time != "" {
		body = fmt.Sprintf("%s %s", ev.Date, ev.Time)
	}

	return s.notifier.ScheduleAt(notify.Notification{
		Identifier: identifier,
		Title:      title,
		Body:       body,
		CategoryID: notify.CategoryNag,
		Data: map[string]string{
			notify.DataEventID:       ev.ID,
			notify.DataDate:          ev.Date,
			notify.DataOccurrenceKey: models.OccurrenceKey(ev.ID, ev.Date),
		},
	}, notifyTime)
}

// ScheduleRepeating fans a repeating event out into up to occurrences
// future virtual events, one scheduled notification each. Non-repeating
// events delegate to ScheduleOne. Instances use RFC recurrence semantics
// (a monthly rule on Jan 31 skips February rather than rolling over).
func (s *Scheduler) ScheduleRepeating(ev *models.Event, occurrences int) error {
	if ev.Repeat == models.RepeatNone || ev.Repeat == "" {
		_, err := s.ScheduleOne(ev)
		return err
	}

	if occurrences <= 0 {
		occurrences = s.repeatOccurrences
	}

	start, err := ev.StartTime()
	if err != nil {
		return err
	}

	freq, err := repeatFrequency(ev.Repeat)
	if err != nil {
		return err
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Count:   occurrences,
		Dtstart: start,
	})
	if err != nil {
		return fmt.Errorf("bad recurrence for event %s: %w", ev.ID, err)
	}

	for n, instance := range rule.All() {
		virtual := *ev
		virtual.ID = fmt.Sprintf("%s-repeat-%d", ev.ID, n)
		virtual.Date = instance.Format(models.DateLayout)

		if _, err := s.ScheduleOne(&virtual); err != nil {
			// One bad instance must not abort the rest of the fan-out.
			log.Printf("Failed to schedule %s: %v", virtual.ID, err)
		}
	}

	return nil
}

// Cancel drops the event's pending notification along with any
// repeat-derived instances. Cancelling a non-existent schedule is fine.
func (s *Scheduler) Cancel(eventID string) {
	if !s.notifier.Available() {
		return
	}

	s.notifier.Cancel(notify.EventIdentifier(eventID))

	repeatPrefix := notify.EventIdentifier(eventID) + "-repeat-"
	for _, identifier := range s.notifier.ListScheduled() {
		if strings.HasPrefix(identifier, repeatPrefix) {
			s.notifier.Cancel(identifier)
		}
	}
}

// RescheduleAll cancels every outstanding notification and rebuilds the
// schedule from all events dated today or later. Used at process start
// and after bulk data changes.
func (s *Scheduler) RescheduleAll() error {
	if !s.notifier.Available() {
		return nil
	}

	s.notifier.CancelAll()

	today := s.now().Format(models.DateLayout)
	events, err := s.events.From(today)
	if err != nil {
		return fmt.Errorf("failed to load events from %s: %w", today, err)
	}

	scheduled := 0
	for i := range events {
		ev := &events[i]

		if ev.Repeat != models.RepeatNone && ev.Repeat != "" {
			if err := s.ScheduleRepeating(ev, s.repeatOccurrences); err != nil {
				log.Printf("Skipping repeating event %s: %v", ev.ID, err)
				continue
			}
			scheduled++
			continue
		}

		id, err := s.ScheduleOne(ev)
		if err != nil {
			log.Printf("Skipping event %s: %v", ev.ID, err)
			continue
		}
		if id != "" {
			scheduled++
		}
	}

	log.Printf("Rescheduled notifications for %d of %d events", scheduled, len(events))
	return nil
}

func repeatFrequency(rule models.RepeatRule) (rrule.Frequency, error) {
	switch rule {
	case models.RepeatDaily:
		return rrule.DAILY, nil
	case models.RepeatWeekly:
		return rrule.WEEKLY, nil
	case models.RepeatMonthly:
		return rrule.MONTHLY, nil
	case models.RepeatYearly:
		return rrule.YEARLY, nil
	default:
		return 0, fmt.Errorf("unknown repeat rule %q", rule)
	}
}
