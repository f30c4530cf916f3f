package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/tempo/internal/errors"
	"github.com/hpungsan/tempo/internal/persist"
)

// Scheduler owns the event collection. It is not safe for concurrent mutation.
//
// Ids are never reused: the counter only moves forward, so deleting the newest
// event does not free its id.
type Scheduler struct {
	gateway  persist.Gateway
	report   persist.ErrorReporter
	events   []Event
	selected int64 // 0 when nothing is selected
	lastID   int64
}

// New returns an empty scheduler.
func New(gateway persist.Gateway) *Scheduler {
	return &Scheduler{gateway: gateway, report: persist.LogReporter}
}

// SetReporter replaces the handler for rejected snapshot saves.
func (s *Scheduler) SetReporter(report persist.ErrorReporter) {
	s.report = report
}

// Load restores the persisted events, replacing the current collection.
func (s *Scheduler) Load(ctx context.Context) error {
	raw, ok, err := s.gateway.Load(ctx, persist.KeyEvents)
	if err != nil || !ok {
		return err
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return errors.NewParse(fmt.Sprintf("events snapshot: %v", err))
	}
	events, err := FromRecords(records, "events")
	if err != nil {
		return err
	}
	s.events = events
	s.selected = 0
	s.reseed()
	return nil
}

// Events returns a copy of all events in insertion order.
func (s *Scheduler) Events() []Event {
	return slices.Clone(s.events)
}

// EventsBetween returns events intersecting [from, to), ordered by start.
func (s *Scheduler) EventsBetween(from, to time.Time) []Event {
	var out []Event
	for _, e := range s.events {
		if Overlaps(e.Start, e.End, from, to) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b Event) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// CreateEvent validates and appends a new event.
// Returns VALIDATION_ERROR for a blank title or an interval that does not end
// after it starts, and CONFLICT if the interval overlaps an existing event.
func (s *Scheduler) CreateEvent(ctx context.Context, title string, start, end time.Time, note *string) (Event, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Event{}, errors.NewBlankInput("title")
	}
	if !end.After(start) {
		return Event{}, errors.NewInvalidInterval(start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	for _, existing := range s.events {
		if Overlaps(start, end, existing.Start, existing.End) {
			return Event{}, errors.NewEventOverlap(existing.ID, existing.Title)
		}
	}

	event := Event{ID: s.nextID(), Title: title, Start: start, End: end, Note: note}
	s.events = append(s.events, event)
	s.save(ctx)
	return event, nil
}

// DeleteEvent removes the event with id and reports whether it existed.
func (s *Scheduler) DeleteEvent(ctx context.Context, id int64) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.events = slices.Delete(s.events, i, i+1)
	if s.selected == id {
		s.selected = 0
	}
	s.save(ctx)
	return true
}

// SelectEvent focuses the event with id. Selection is not persisted.
func (s *Scheduler) SelectEvent(id int64) error {
	if s.index(id) < 0 {
		return errors.NewNotFound("event", id)
	}
	s.selected = id
	return nil
}

// ClearSelection drops the current focus.
func (s *Scheduler) ClearSelection() {
	s.selected = 0
}

// Selected returns the focused event, if any.
func (s *Scheduler) Selected() (Event, bool) {
	if i := s.index(s.selected); i >= 0 {
		return s.events[i], true
	}
	return Event{}, false
}

// Replace swaps in a new collection without checking for overlaps.
// It is meant for trusted bulk loads such as a whole-state import.
func (s *Scheduler) Replace(ctx context.Context, events []Event) {
	s.events = slices.Clone(events)
	s.selected = 0
	s.reseed()
	s.save(ctx)
}

// Apply dispatches cmd to the matching operation.
func (s *Scheduler) Apply(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case CreateEvent:
		_, err := s.CreateEvent(ctx, c.Title, c.Start, c.End, c.Note)
		return err
	case DeleteEvent:
		s.DeleteEvent(ctx, c.ID)
	case SelectEvent:
		return s.SelectEvent(c.ID)
	case ClearSelection:
		s.ClearSelection()
	default:
		return fmt.Errorf("schedule: unknown command %T", cmd)
	}
	return nil
}

func (s *Scheduler) index(id int64) int {
	if id == 0 {
		return -1
	}
	return slices.IndexFunc(s.events, func(e Event) bool { return e.ID == id })
}

func (s *Scheduler) nextID() int64 {
	s.lastID++
	return s.lastID
}

// reseed moves the id counter past every id currently held.
func (s *Scheduler) reseed() {
	for _, e := range s.events {
		s.lastID = max(s.lastID, e.ID)
	}
}

func (s *Scheduler) save(ctx context.Context) {
	persist.SaveOrReport(ctx, s.gateway, persist.KeyEvents, ToRecords(s.events), s.report)
}
