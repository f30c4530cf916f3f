package ops

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/tempo/internal/errors"
	"github.com/hpungsan/tempo/internal/lists"
	"github.com/hpungsan/tempo/internal/schedule"
)

// Document is the combined export of tasks, events and notes.
type Document struct {
	TempoExport   bool               `json:"_tempo_export"`
	SchemaVersion string             `json:"schema_version"`
	ExportedAt    int64              `json:"exported_at"`
	ExportID      string             `json:"export_id"`
	Tasks         []lists.Task       `json:"tasks"`
	Events        []schedule.Record  `json:"events"`
	Notes         []lists.NoteRecord `json:"notes"`
}

// Collections is a validated set of collections ready to replace live state.
type Collections struct {
	Tasks  []lists.Task
	Events []schedule.Event
	Notes  []lists.Note
}

// ImportOutput contains the result of an import.
type ImportOutput struct {
	Tasks  int `json:"tasks"`
	Events int `json:"events"`
	Notes  int `json:"notes"`
}

// ExportAll captures the current collections as a Document.
func ExportAll(st Stores, now time.Time) (*Document, error) {
	id, err := ulid.New(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate export id: %w", err))
	}
	return &Document{
		TempoExport:   true,
		SchemaVersion: SchemaVersion,
		ExportedAt:    now.Unix(),
		ExportID:      id.String(),
		Tasks:         st.Lists.Tasks(lists.FilterAll),
		Events:        schedule.ToRecords(st.Schedule.Events()),
		Notes:         lists.ToNoteRecords(st.Lists.Notes()),
	}, nil
}

// ParseDocument parses and validates an export document without touching any
// store. Every top-level collection must be present and be an array whose items
// have the expected shape; the first problem found is returned as a PARSE_ERROR.
// Events are not checked against each other for overlap.
func ParseDocument(data []byte) (*Collections, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, errors.NewParse(fmt.Sprintf("invalid JSON document: %v", err))
	}
	if top == nil {
		return nil, errors.NewParse("document must be a JSON object")
	}

	if raw, ok := top["schema_version"]; ok {
		var version string
		if err := json.Unmarshal(raw, &version); err != nil {
			return nil, errors.NewParseField("schema_version", "must be a string")
		}
		if major, _, _ := strings.Cut(version, "."); major != "1" {
			return nil, errors.NewParseField("schema_version", fmt.Sprintf("unsupported version %q", version))
		}
	}

	var tasks []lists.Task
	if err := decodeArray(top, "tasks", &tasks); err != nil {
		return nil, err
	}
	if err := lists.ValidateTasks(tasks, "tasks"); err != nil {
		return nil, err
	}

	var eventRecords []schedule.Record
	if err := decodeArray(top, "events", &eventRecords); err != nil {
		return nil, err
	}
	events, err := schedule.FromRecords(eventRecords, "events")
	if err != nil {
		return nil, err
	}

	var noteRecords []lists.NoteRecord
	if err := decodeArray(top, "notes", &noteRecords); err != nil {
		return nil, err
	}
	notes, err := lists.FromNoteRecords(noteRecords, "notes")
	if err != nil {
		return nil, err
	}

	return &Collections{Tasks: tasks, Events: events, Notes: notes}, nil
}

// decodeArray decodes top[key], which must be present and a JSON array.
func decodeArray(top map[string]json.RawMessage, key string, dst any) error {
	raw, ok := top[key]
	if !ok {
		return errors.NewParseField(key, "is required")
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return errors.NewParseField(key, "must be an array")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.NewParseField(key, fmt.Sprintf("unexpected item shape: %v", err))
	}
	return nil
}

// Commit replaces every collection with c.
func Commit(ctx context.Context, st Stores, c *Collections) *ImportOutput {
	st.Lists.ReplaceAll(ctx, c.Tasks, c.Notes)
	st.Schedule.Replace(ctx, c.Events)
	return &ImportOutput{Tasks: len(c.Tasks), Events: len(c.Events), Notes: len(c.Notes)}
}

// ImportAll validates data and, only if the whole document is valid, replaces
// every collection with its contents.
func ImportAll(ctx context.Context, st Stores, data []byte) (*ImportOutput, error) {
	c, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("import")
	}
	return Commit(ctx, st, c), nil
}
