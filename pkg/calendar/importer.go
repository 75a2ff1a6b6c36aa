package calendar

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/borgmon/pester/pkg/models"
)

// DefaultHorizonDays bounds how far ahead recurring events are expanded
// during import.
const DefaultHorizonDays = 60

// Import fetches an iCal source and converts its events, recurring ones
// expanded per instance, into store records for the reminder engine.
func Import(source models.ICalSource, horizonDays int) ([]models.Event, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	raw, err := fetchICal(source.URL)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rangeStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	rangeEnd := rangeStart.AddDate(0, 0, horizonDays)

	decoder := ical.NewDecoder(strings.NewReader(raw))
	events := []models.Event{}
	seenIDs := make(map[string]bool)

	for {
		cal, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}

			parsed := parseEvent(comp)
			if parsed.Status == "CANCELLED" {
				continue
			}
			if parsed.Start.IsZero() {
				log.Printf("  [FILTERED] Missing start time - Event: \"%s\"", parsed.Summary)
				continue
			}

			instances := []icalEvent{parsed}
			if parsed.RawRRule != "" {
				instances = expandRecurring(parsed, rangeStart, rangeEnd)
			}

			for _, inst := range instances {
				if inst.Start.Before(rangeStart) || !inst.Start.Before(rangeEnd) {
					continue
				}
				record := toRecord(inst, source)
				if seenIDs[record.ID] {
					continue
				}
				seenIDs[record.ID] = true
				events = append(events, record)
			}
		}
	}

	log.Printf("Imported %d events from '%s'", len(events), source.Name)
	return events, nil
}

func fetchICal(icalURL string) (string, error) {
	resp, err := http.Get(icalURL)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	bodyStr := string(body)
	if err := validateICalFormat(bodyStr); err != nil {
		return "", err
	}
	return bodyStr, nil
}

func validateICalFormat(bodyStr string) error {
	upperBody := strings.ToUpper(strings.TrimSpace(bodyStr))
	if strings.HasPrefix(upperBody, "<!DOCTYPE") || strings.HasPrefix(upperBody, "<HTML") {
		return fmt.Errorf("received HTML instead of iCalendar data - check if URL requires authentication")
	}

	if !strings.HasPrefix(strings.TrimSpace(bodyStr), "BEGIN:VCALENDAR") {
		previewLen := 100
		if len(bodyStr) < previewLen {
			previewLen = len(bodyStr)
		}
		return fmt.Errorf("invalid iCalendar format - expected BEGIN:VCALENDAR, got: %s",
			strings.TrimSpace(bodyStr[:previewLen]))
	}

	return nil
}
