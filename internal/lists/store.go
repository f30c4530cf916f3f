package lists

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/tempo/internal/errors"
	"github.com/hpungsan/tempo/internal/persist"
)

// Store owns the task and note lists. It is not safe for concurrent mutation.
//
// Ids are unix milliseconds taken when an entry is created, bumped past the
// last issued id so they strictly increase even within one millisecond.
type Store struct {
	gateway persist.Gateway
	report  persist.ErrorReporter
	now     func() time.Time

	tasks  []Task
	notes  []Note
	lastID int64
}

// New returns an empty store.
func New(gateway persist.Gateway) *Store {
	return &Store{gateway: gateway, report: persist.LogReporter, now: time.Now}
}

// SetClock replaces the clock used for ids and note timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// SetReporter replaces the handler for rejected snapshot saves.
func (s *Store) SetReporter(report persist.ErrorReporter) {
	s.report = report
}

// Load restores persisted tasks and notes. Each list is replaced only when
// its snapshot exists and is valid; the id counter always moves past whatever
// was restored.
func (s *Store) Load(ctx context.Context) error {
	defer s.reseed()

	tasks, ok, tasksErr := s.loadTasks(ctx)
	if ok {
		s.tasks = tasks
	}
	notes, ok, notesErr := s.loadNotes(ctx)
	if ok {
		s.notes = notes
	}
	return stderrors.Join(tasksErr, notesErr)
}

// loadTasks reports ok only for a snapshot that exists and is valid.
func (s *Store) loadTasks(ctx context.Context) ([]Task, bool, error) {
	raw, ok, err := s.gateway.Load(ctx, persist.KeyTasks)
	if err != nil || !ok {
		return nil, false, err
	}
	var tasks []Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, false, errors.NewParse(fmt.Sprintf("tasks snapshot: %v", err))
	}
	if err := ValidateTasks(tasks, "tasks"); err != nil {
		return nil, false, err
	}
	return tasks, true, nil
}

func (s *Store) loadNotes(ctx context.Context) ([]Note, bool, error) {
	raw, ok, err := s.gateway.Load(ctx, persist.KeyNotes)
	if err != nil || !ok {
		return nil, false, err
	}
	var records []NoteRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false, errors.NewParse(fmt.Sprintf("notes snapshot: %v", err))
	}
	notes, err := FromNoteRecords(records, "notes")
	if err != nil {
		return nil, false, err
	}
	return notes, true, nil
}

// Tasks returns a copy of the tasks matching filter, in list order.
func (s *Store) Tasks(filter Filter) []Task {
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.match(t) {
			out = append(out, t)
		}
	}
	return out
}

// AddTask appends a task with the trimmed text.
func (s *Store) AddTask(ctx context.Context, text string) (Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Task{}, errors.NewBlankInput("text")
	}
	task := Task{ID: s.nextID(), Text: text}
	s.tasks = append(s.tasks, task)
	s.saveTasks(ctx)
	return task, nil
}

// ToggleTask flips the completed flag. ok is false if id is unknown.
func (s *Store) ToggleTask(ctx context.Context, id int64) (Task, bool) {
	i := slices.IndexFunc(s.tasks, func(t Task) bool { return t.ID == id })
	if i < 0 {
		return Task{}, false
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	s.saveTasks(ctx)
	return s.tasks[i], true
}

// DeleteTask removes a task and reports whether it existed.
func (s *Store) DeleteTask(ctx context.Context, id int64) bool {
	i := slices.IndexFunc(s.tasks, func(t Task) bool { return t.ID == id })
	if i < 0 {
		return false
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)
	s.saveTasks(ctx)
	return true
}

// ExportUncompleted returns the text of every pending task, one per line.
func (s *Store) ExportUncompleted() string {
	lines := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.Completed {
			lines = append(lines, t.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// ImportTasks appends one new task per non-blank line of text and returns them.
// Existing tasks are kept; duplicates are allowed.
func (s *Store) ImportTasks(ctx context.Context, text string) []Task {
	var added []Task
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		added = append(added, Task{ID: s.nextID(), Text: line})
	}
	if len(added) == 0 {
		return nil
	}
	s.tasks = append(s.tasks, added...)
	s.saveTasks(ctx)
	return added
}

// Notes returns a copy of all notes, oldest first.
func (s *Store) Notes() []Note {
	return slices.Clone(s.notes)
}

// Note returns the note with id.
func (s *Store) Note(id int64) (Note, bool) {
	i := slices.IndexFunc(s.notes, func(n Note) bool { return n.ID == id })
	if i < 0 {
		return Note{}, false
	}
	return s.notes[i], true
}

// AddNote appends a note stamped with the current time.
func (s *Store) AddNote(ctx context.Context, content string) (Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Note{}, errors.NewBlankInput("content")
	}
	note := Note{ID: s.nextID(), Content: content, CreatedAt: s.now()}
	s.notes = append(s.notes, note)
	s.saveNotes(ctx)
	return note, nil
}

// DeleteNote removes a note and reports whether it existed.
func (s *Store) DeleteNote(ctx context.Context, id int64) bool {
	i := slices.IndexFunc(s.notes, func(n Note) bool { return n.ID == id })
	if i < 0 {
		return false
	}
	s.notes = slices.Delete(s.notes, i, i+1)
	s.saveNotes(ctx)
	return true
}

// ReplaceAll swaps in both lists. It is meant for trusted bulk loads such as
// a whole-state import.
func (s *Store) ReplaceAll(ctx context.Context, tasks []Task, notes []Note) {
	s.tasks = slices.Clone(tasks)
	s.notes = slices.Clone(notes)
	s.reseed()
	s.saveTasks(ctx)
	s.saveNotes(ctx)
}

// Apply dispatches cmd to the matching operation.
func (s *Store) Apply(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case AddTask:
		_, err := s.AddTask(ctx, c.Text)
		return err
	case ToggleTask:
		s.ToggleTask(ctx, c.ID)
	case DeleteTask:
		s.DeleteTask(ctx, c.ID)
	case ImportTasks:
		s.ImportTasks(ctx, c.Text)
	case AddNote:
		_, err := s.AddNote(ctx, c.Content)
		return err
	case DeleteNote:
		s.DeleteNote(ctx, c.ID)
	default:
		return fmt.Errorf("lists: unknown command %T", cmd)
	}
	return nil
}

func (s *Store) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// reseed moves the id counter past every id currently held.
func (s *Store) reseed() {
	for _, t := range s.tasks {
		s.lastID = max(s.lastID, t.ID)
	}
	for _, n := range s.notes {
		s.lastID = max(s.lastID, n.ID)
	}
}

func (s *Store) saveTasks(ctx context.Context) {
	tasks := s.tasks
	if tasks == nil {
		tasks = []Task{}
	}
	persist.SaveOrReport(ctx, s.gateway, persist.KeyTasks, tasks, s.report)
}

func (s *Store) saveNotes(ctx context.Context) {
	persist.SaveOrReport(ctx, s.gateway, persist.KeyNotes, ToNoteRecords(s.notes), s.report)
}
