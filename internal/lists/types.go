// Package lists stores the task list and the note list.
package lists

import (
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/tempo/internal/errors"
)

// Task is one to-do entry. The struct is also its persisted form.
type Task struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Note is a free-form note.
type Note struct {
	ID        int64
	Content   string
	CreatedAt time.Time
}

// NoteRecord is the persisted form of a Note.
type NoteRecord struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// Filter selects which tasks Tasks returns.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterPending   Filter = "pending"
)

// ParseFilter maps a user-supplied filter name to a Filter. Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterCompleted, FilterPending:
		return f, nil
	default:
		return "", errors.NewValidation(fmt.Sprintf("filter must be one of: all, completed, pending (got %q)", s))
	}
}

func (f Filter) match(t Task) bool {
	switch f {
	case FilterCompleted:
		return t.Completed
	case FilterPending:
		return !t.Completed
	default:
		return true
	}
}

// ToNoteRecords converts notes to their persisted form, keeping order.
func ToNoteRecords(notes []Note) []NoteRecord {
	records := make([]NoteRecord, len(notes))
	for i, n := range notes {
		records[i] = NoteRecord{
			ID:        n.ID,
			Content:   n.Content,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return records
}

// FromNoteRecords parses and validates note records. path prefixes field names
// in PARSE_ERROR messages.
func FromNoteRecords(records []NoteRecord, path string) ([]Note, error) {
	notes := make([]Note, 0, len(records))
	seen := make(map[int64]bool, len(records))
	for i, r := range records {
		at := fmt.Sprintf("%s[%d]", path, i)
		if err := checkID(r.ID, seen, at); err != nil {
			return nil, err
		}
		if strings.TrimSpace(r.Content) == "" {
			return nil, errors.NewParseField(at+".content", "must not be blank")
		}
		created, err := time.Parse(time.RFC3339, r.CreatedAt)
		if err != nil {
			return nil, errors.NewParseField(at+".createdAt", "must be an ISO-8601 timestamp")
		}
		notes = append(notes, Note{ID: r.ID, Content: r.Content, CreatedAt: created})
	}
	return notes, nil
}

// ValidateTasks checks ids and text of tasks read from a snapshot or document.
func ValidateTasks(tasks []Task, path string) error {
	seen := make(map[int64]bool, len(tasks))
	for i, t := range tasks {
		at := fmt.Sprintf("%s[%d]", path, i)
		if err := checkID(t.ID, seen, at); err != nil {
			return err
		}
		if strings.TrimSpace(t.Text) == "" {
			return errors.NewParseField(at+".text", "must not be blank")
		}
	}
	return nil
}

func checkID(id int64, seen map[int64]bool, at string) error {
	if id <= 0 {
		return errors.NewParseField(at+".id", "must be a positive integer")
	}
	if seen[id] {
		return errors.NewParseField(at+".id", fmt.Sprintf("duplicate id %d", id))
	}
	seen[id] = true
	return nil
}
