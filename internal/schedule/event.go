// Package schedule stores calendar events and rejects events whose time
// intervals overlap.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/tempo/internal/errors"
)

// Event is a calendar entry covering the half-open interval [Start, End).
type Event struct {
	ID    int64
	Title string
	Start time.Time
	End   time.Time
	Note  *string
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share an instant.
// Intervals that only touch (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	startInside := !aStart.Before(bStart) && aStart.Before(bEnd)
	endInside := aEnd.After(bStart) && !aEnd.After(bEnd)
	covers := !bStart.Before(aStart) && bStart.Before(aEnd)
	return startInside || endInside || covers
}

// Record is the persisted form of an Event.
type Record struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Start string  `json:"start"`
	End   string  `json:"end"`
	Note  *string `json:"note"`
}

// ToRecords converts events to their persisted form, keeping order.
func ToRecords(events []Event) []Record {
	records := make([]Record, len(events))
	for i, e := range events {
		records[i] = Record{
			ID:    e.ID,
			Title: e.Title,
			Start: e.Start.UTC().Format(time.RFC3339Nano),
			End:   e.End.UTC().Format(time.RFC3339Nano),
			Note:  e.Note,
		}
	}
	return records
}

// FromRecords parses and validates records. path prefixes field names in
// PARSE_ERROR messages (e.g. "events" gives "events[2].start").
// Overlap between records is not checked.
func FromRecords(records []Record, path string) ([]Event, error) {
	events := make([]Event, 0, len(records))
	seen := make(map[int64]bool, len(records))
	for i, r := range records {
		at := fmt.Sprintf("%s[%d]", path, i)
		if r.ID <= 0 {
			return nil, errors.NewParseField(at+".id", "must be a positive integer")
		}
		if seen[r.ID] {
			return nil, errors.NewParseField(at+".id", fmt.Sprintf("duplicate id %d", r.ID))
		}
		seen[r.ID] = true

		if strings.TrimSpace(r.Title) == "" {
			return nil, errors.NewParseField(at+".title", "must not be blank")
		}
		start, err := time.Parse(time.RFC3339, r.Start)
		if err != nil {
			return nil, errors.NewParseField(at+".start", "must be an ISO-8601 timestamp")
		}
		end, err := time.Parse(time.RFC3339, r.End)
		if err != nil {
			return nil, errors.NewParseField(at+".end", "must be an ISO-8601 timestamp")
		}
		if !end.After(start) {
			return nil, errors.NewParseField(at+".end", "must be after start")
		}
		events = append(events, Event{ID: r.ID, Title: r.Title, Start: start, End: end, Note: r.Note})
	}
	return events, nil
}
