package calendar

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/borgmon/pester/pkg/models"
)

// icalEvent is one VEVENT before conversion into a store record.
type icalEvent struct {
	UID      string
	Summary  string
	Start    time.Time
	End      time.Time
	Status   string
	AllDay   bool
	RawRRule string
}

// Map of common Windows timezone names to IANA timezone names
var windowsToIANA = map[string]string{
	"Pacific Standard Time":        "America/Los_Angeles",
	"Mountain Standard Time":       "America/Denver",
	"Central Standard Time":        "America/Chicago",
	"Eastern Standard Time":        "America/New_York",
	"GMT Standard Time":            "Europe/London",
	"Central Europe Standard Time": "Europe/Paris",
	"China Standard Time":          "Asia/Shanghai",
	"Tokyo Standard Time":          "Asia/Tokyo",
	"India Standard Time":          "Asia/Kolkata",
	"AUS Eastern Standard Time":    "Australia/Sydney",
}

func parseEvent(comp *ical.Component) icalEvent {
	normalizeComponentTimezones(comp)

	event := icalEvent{}

	if uidProp := comp.Props.Get(ical.PropUID); uidProp != nil {
		event.UID = uidProp.Value
	}
	if summaryProp := comp.Props.Get(ical.PropSummary); summaryProp != nil {
		event.Summary = summaryProp.Value
	}
	if statusProp := comp.Props.Get(ical.PropStatus); statusProp != nil {
		event.Status = statusProp.Value
	}
	if rruleProp := comp.Props.Get(ical.PropRecurrenceRule); rruleProp != nil {
		event.RawRRule = rruleProp.Value
	}

	if startProp := comp.Props.Get(ical.PropDateTimeStart); startProp != nil {
		if startProp.Params.Get(ical.ParamValue) == "DATE" {
			event.AllDay = true
		}
		if t, err := parseDateTimeProperty(startProp); err == nil {
			event.Start = t
		}
	}

	if endProp := comp.Props.Get(ical.PropDateTimeEnd); endProp != nil {
		if t, err := parseDateTimeProperty(endProp); err == nil {
			event.End = t
		}
	}

	return event
}

func parseDateTimeProperty(prop *ical.Prop) (time.Time, error) {
	// First try the standard DateTime method with local timezone
	if t, err := prop.DateTime(time.Local); err == nil {
		return t.In(time.Local), nil
	}

	// If that fails, try parsing the raw value directly
	return parseRawDateTime(prop.Value)
}

func parseRawDateTime(value string) (time.Time, error) {
	formats := []string{
		"20060102T150405",     // Basic format: YYYYMMDDTHHMMSS
		"20060102T150405Z",    // UTC format
		"20060102",            // Date only (all-day)
		time.RFC3339,          // Standard RFC3339
		"2006-01-02T15:04:05", // ISO 8601 without timezone
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, value, time.Local); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse datetime value: %s", value)
}

// normalizeComponentTimezones fixes Windows timezone names in a component
// before processing
func normalizeComponentTimezones(comp *ical.Component) {
	for _, name := range []string{ical.PropDateTimeStart, ical.PropDateTimeEnd} {
		if prop := comp.Props.Get(name); prop != nil {
			if tzid := prop.Params.Get(ical.ParamTimezoneID); tzid != "" {
				if ianaName, ok := windowsToIANA[tzid]; ok {
					prop.Params.Set(ical.ParamTimezoneID, ianaName)
				}
			}
		}
	}
}

// toRecord converts a parsed instance into the store's event shape.
// Recurrence is already expanded, so the record repeats "none"; the end
// timestamp travels in the schedule payload where the campaign end-time
// computation looks for it.
func toRecord(inst icalEvent, source models.ICalSource) models.Event {
	id := inst.UID
	if id == "" {
		// Fallback: deterministic ID based on start time and title
		id = source.ID + "-" + inst.Start.Format(time.RFC3339) + "-" + inst.Summary
	}
	if inst.RawRRule != "" {
		// Each expanded instance needs its own identity.
		id = id + "-" + inst.Start.Format(models.DateLayout)
	}

	record := models.Event{
		ID:       id,
		Title:    inst.Summary,
		Date:     inst.Start.Format(models.DateLayout),
		Repeat:   models.RepeatNone,
		Type:     models.TypeSchedule,
		SourceID: source.ID,
	}

	if !inst.AllDay {
		record.Time = inst.Start.Format(models.TimeLayout)
	}

	if source.RemindOffsetMin >= 0 {
		offset := source.RemindOffsetMin
		record.RemindOffsetMin = &offset
	}

	payload := models.SchedulePayload{IsAllDay: inst.AllDay}
	if !inst.End.IsZero() && !inst.AllDay {
		payload.EndDate = inst.End.Format(models.DateLayout)
		payload.EndTime = inst.End.Format(models.TimeLayout)
	}
	if data, err := json.Marshal(payload); err == nil {
		record.Payload = string(data)
	}

	return record
}
