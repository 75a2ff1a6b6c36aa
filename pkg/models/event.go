package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RepeatRule describes how an event repeats across days.
type RepeatRule string

const (
	RepeatNone    RepeatRule = "none"
	RepeatDaily   RepeatRule = "daily"
	RepeatWeekly  RepeatRule = "weekly"
	RepeatMonthly RepeatRule = "monthly"
	RepeatYearly  RepeatRule = "yearly"
)

// EventType distinguishes the kinds of records the data layer produces.
type EventType string

const (
	TypeSchedule  EventType = "schedule"
	TypeAlarm     EventType = "alarm"
	TypeBirthday  EventType = "birthday"
	TypeCountdown EventType = "countdown"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// DefaultAllDayTime is the local time used for events without an
	// explicit time (all-day convention).
	DefaultAllDayTime = "09:00"
)

// Event is a single calendar record as owned by the data layer.
// The reminder core treats it as read-only.
type Event struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	Date string `json:"date"`           // YYYY-MM-DD
	Time string `json:"time,omitempty"` // HH:mm, empty for all-day events

	// RemindOffsetMin is minutes before the event time to alert.
	// nil or negative means no reminder; 0 means alert at event time.
	RemindOffsetMin *int `json:"remindOffsetMin,omitempty"`

	Repeat RepeatRule `json:"repeatRule"`
	Type   EventType  `json:"type"`

	// Payload carries type-specific fields as a JSON string
	// (endDate/endTime/isAllDay for schedule events).
	Payload string `json:"payload,omitempty"`

	// SourceID is the iCal source this event came from, empty for
	// locally created events.
	SourceID string `json:"sourceId,omitempty"`
}

// SchedulePayload is the parsed payload of a schedule-type event.
type SchedulePayload struct {
	EndDate  string `json:"endDate"`
	EndTime  string `json:"endTime"`
	IsAllDay bool   `json:"isAllDay"`
}

// ReminderOffset returns the reminder offset in minutes and whether a
// reminder is configured at all.
func (e *Event) ReminderOffset() (int, bool) {
	if e.RemindOffsetMin == nil || *e.RemindOffsetMin < 0 {
		return 0, false
	}
	return *e.RemindOffsetMin, true
}

// IsAllDay reports whether the event has no explicit time of day.
func (e *Event) IsAllDay() bool {
	return e.Time == ""
}

// StartTime resolves the event's date and time to a local timestamp.
// All-day events resolve to DefaultAllDayTime.
func (e *Event) StartTime() (time.Time, error) {
	t := e.Time
	if t == "" {
		t = DefaultAllDayTime
	}
	ts, err := time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+t, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid event date/time %q %q: %w", e.Date, e.Time, err)
	}
	return ts, nil
}

// NotifyTime computes when the reminder for this event should fire.
// The bool return is false when no reminder is configured.
func (e *Event) NotifyTime() (time.Time, bool, error) {
	offset, ok := e.ReminderOffset()
	if !ok {
		return time.Time{}, false, nil
	}
	start, err := e.StartTime()
	if err != nil {
		return time.Time{}, false, err
	}
	return start.Add(-time.Duration(offset) * time.Minute), true, nil
}

// ParsePayload decodes the schedule payload. Returns nil for an empty
// payload.
func (e *Event) ParsePayload() (*SchedulePayload, error) {
	if e.Payload == "" {
		return nil, nil
	}
	var p SchedulePayload
	if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	return &p, nil
}

// OccurrenceKey derives the stable identity for one event on one date.
// It is the join key between the stop-flag store and the campaign manager.
func OccurrenceKey(eventID, date string) string {
	return eventID + ":" + date
}

// OccurrenceKind classifies how a campaign for an occurrence ends.
type OccurrenceKind int

const (
	// OccurrenceInstant has no end timestamp of its own; campaigns are
	// capped at a fixed maximum duration from campaign start.
	OccurrenceInstant OccurrenceKind = iota

	// OccurrenceRanged carries an explicit end timestamp taken from the
	// event's schedule payload.
	OccurrenceRanged
)

// Occurrence is the classified firing instance of an event, computed once
// at the event boundary rather than re-derived per tick.
type Occurrence struct {
	Key  string
	Kind OccurrenceKind

	// EndAt is only meaningful for OccurrenceRanged.
	EndAt time.Time
}

// Classify derives the Occurrence for an event. A schedule-type event with
// a parseable, non-all-day end date+time is ranged; everything else
// (alarms, birthdays, malformed payloads) is an instant occurrence.
func Classify(e *Event) Occurrence {
	occ := Occurrence{
		Key:  OccurrenceKey(e.ID, e.Date),
		Kind: OccurrenceInstant,
	}

	if e.Type != TypeSchedule {
		return occ
	}

	p, err := e.ParsePayload()
	if err != nil || p == nil || p.IsAllDay {
		return occ
	}
	if p.EndDate == "" || p.EndTime == "" {
		return occ
	}

	endAt, err := time.ParseInLocation(DateLayout+" "+TimeLayout, p.EndDate+" "+p.EndTime, time.Local)
	if err != nil {
		return occ
	}

	occ.Kind = OccurrenceRanged
	occ.EndAt = endAt
	return occ
}
