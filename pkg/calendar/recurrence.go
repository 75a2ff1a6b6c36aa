package calendar

import (
	"log"
	"time"

	"github.com/teambition/rrule-go"
)

// maxInstancesPerEvent caps expansion so a malformed rule cannot explode
// the import.
const maxInstancesPerEvent = 1000

// expandRecurring expands a recurring event into concrete instances within
// [rangeStart, rangeEnd) using its RRULE.
func expandRecurring(base icalEvent, rangeStart, rangeEnd time.Time) []icalEvent {
	rule, err := rrule.StrToRRule(base.RawRRule)
	if err != nil {
		log.Printf("  [RECURRING] Failed to parse RRULE %q for event \"%s\": %v",
			base.RawRRule, base.Summary, err)
		return []icalEvent{base}
	}
	rule.DTStart(base.Start)

	duration := time.Duration(0)
	if !base.End.IsZero() {
		duration = base.End.Sub(base.Start)
	}

	instances := []icalEvent{}
	for _, start := range rule.Between(rangeStart, rangeEnd, true) {
		instance := base
		instance.Start = start
		if duration > 0 {
			instance.End = start.Add(duration)
		} else {
			instance.End = time.Time{}
		}
		instances = append(instances, instance)

		if len(instances) >= maxInstancesPerEvent {
			log.Printf("  [RECURRING] Expansion capped at %d instances for event \"%s\"",
				maxInstancesPerEvent, base.Summary)
			break
		}
	}

	return instances
}
