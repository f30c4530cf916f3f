package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/tempo/internal/app"
	"github.com/hpungsan/tempo/internal/errors"
	"github.com/hpungsan/tempo/internal/lists"
	"github.com/hpungsan/tempo/internal/ops"
	"github.com/hpungsan/tempo/internal/schedule"
	"github.com/hpungsan/tempo/internal/timer"
)

// maxBodyBytes bounds JSON request bodies other than imports.
const maxBodyBytes = 1 << 20

// Handlers contains HTTP route handlers for the web UI and JSON API.
type Handlers struct {
	app      *app.App
	renderer *Renderer
}

// HandleDashboard handles GET /: timer, tasks, events and notes on one page.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	filter, err := lists.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := DashboardPageData{
		PageData: PageData{Title: "Tempo", Version: h.renderer.version},
		Filter:   filter,
	}
	err = h.app.Do(r.Context(), func(ctx context.Context) error {
		h.app.Timer.Tick(ctx)
		data.Timer = h.app.Timer.State().Status()
		data.Tasks = h.app.Lists.Tasks(filter)
		data.Events = h.app.Schedule.Events()
		data.Notes = h.app.Lists.Notes()
		return nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderPage(w, "dashboard", data)
}

// HandleNote handles GET /notes/{id}: one note rendered as markdown.
func (h *Handlers) HandleNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var note lists.Note
	err = h.app.Do(r.Context(), func(context.Context) error {
		var ok bool
		if note, ok = h.app.Lists.Note(id); !ok {
			return errors.NewNotFound("note", id)
		}
		return nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, lists.ToNoteRecords([]lists.Note{note})[0])
		return
	}
	h.renderer.renderPage(w, "note", NotePageData{
		PageData:     PageData{Title: preview(note.Content), Version: h.renderer.version},
		Note:         note,
		RenderedHTML: renderMarkdown(note.Content),
	})
}

// Timer

// HandleTimerStatus handles GET /api/timer.
func (h *Handlers) HandleTimerStatus(w http.ResponseWriter, r *http.Request) {
	h.timer(w, r, timer.TickNow{})
}

// HandleTimerAction handles POST /api/timer/{action} for start, stop and reset.
func (h *Handlers) HandleTimerAction(w http.ResponseWriter, r *http.Request) {
	switch action := r.PathValue("action"); action {
	case "start":
		h.timer(w, r, timer.Start{})
	case "stop":
		h.timer(w, r, timer.TickNow{}, timer.Stop{})
	case "reset":
		h.timer(w, r, timer.Reset{})
	default:
		h.renderer.renderError(w, r, errors.NewValidation(fmt.Sprintf("unknown timer action %q (want start, stop or reset)", action)))
	}
}

type timerConfigRequest struct {
	WorkMinutes  *int `json:"workMinutes"`
	BreakMinutes *int `json:"breakMinutes"`
}

// HandleTimerConfigure handles PUT /api/timer/config.
func (h *Handlers) HandleTimerConfigure(w http.ResponseWriter, r *http.Request) {
	var in timerConfigRequest
	if err := decodeBody(w, r, &in); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	var cmds []timer.Command
	if in.WorkMinutes != nil {
		cmds = append(cmds, timer.SetWorkMinutes{N: *in.WorkMinutes})
	}
	if in.BreakMinutes != nil {
		cmds = append(cmds, timer.SetBreakMinutes{N: *in.BreakMinutes})
	}
	if len(cmds) == 0 {
		h.renderer.renderError(w, r, errors.NewValidation("provide workMinutes and/or breakMinutes"))
		return
	}
	h.timer(w, r, cmds...)
}

func (h *Handlers) timer(w http.ResponseWriter, r *http.Request, cmds ...timer.Command) {
	var status timer.Status
	err := h.app.Do(r.Context(), func(ctx context.Context) error {
		for _, cmd := range cmds {
			if err := h.app.Timer.Apply(ctx, cmd); err != nil {
				return err
			}
		}
		status = h.app.Timer.State().Status()
		return nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, status)
}

// Tasks

type taskAddRequest struct {
	Text string `json:"text"`
}

// HandleTaskList handles GET /api/tasks?filter=.
func (h *Handlers) HandleTaskList(w http.ResponseWriter, r *http.Request) {
	filter, err := lists.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	var tasks []lists.Task
	err = h.app.Do(r.Context(), func(context.Context) error {
		tasks = h.app.Lists.Tasks(filter)
		return nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []lists.Task{}
	}
	renderJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "filter": filter})
}

// HandleTaskAdd handles POST /api/tasks.
func (h *Handlers) HandleTaskAdd(w http.ResponseWriter, r *http.Request) {
	var in taskAddRequest
	if err := decodeBody(w, r, &in); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	var task lists.Task
	err := h.app.Do(r.Context(), func(ctx context.Context) error {
		var err error
		task, err = h.app.Lists.AddTask(ctx, in.Text)
		return err
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, task)
}

// HandleTaskToggle handles POST /api/tasks/{id}/toggle.
func (h *Handlers) HandleTaskToggle(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	var task lists.Task
	err = h.app.Do(r.Context(), func(ctx context.Context) error {
		var ok bool
		if task, ok = h.app.Lists.ToggleTask(ctx, id); !ok {
			return errors.NewNotFound("task", id)
		}
		return nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, task)
}

// HandleTaskDelete handles DELETE /api/tasks/{id}. Unknown ids are not an error.
func (h *Handlers) HandleTaskDelete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, func(ctx context.Context, id int64) bool {
		return h.app.Lists.DeleteTask(ctx, id)
	})
}

// HandleTaskExport handles GET /api/tasks/export as plain text.
func (h *Handlers) HandleTaskExport(w http.ResponseWriter, r *http.Request) {
	var text string
	err := h.app.Do(r.Context(), func(context.Context) error {
		text = h.app.Lists.ExportUncompleted()
		return nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

// HandleTaskImport handles POST /api/tasks/import with a plain-text body.
func (h *Handlers) HandleTaskImport(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxBodyBytes)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	var added []lists.Task
	err = h.app.Do(r.Context(), func(ctx context.Context) error {
		added = h.app.Lists.ImportTasks(ctx, string(body))
		return nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if added == nil {
		added = []lists.Task{}
	}
	renderJSON(w, http.StatusOK, map[string]any{"imported": len(added), "tasks": added})
}

// Events

type eventCreateRequest struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Note  *string   `json:"note"`
}

// HandleEventList handles GET /api/events with an optional from/to window.
func (h *Handlers) HandleEventList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	windowed := q.Get("from") != "" || q.Get("to") != ""
	var from, to time.Time
	if windowed {
		var err error
		if from, err = parseTimeParam(q.Get("from"), "from"); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		if to, err = parseTimeParam(q.Get("to"), "to"); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	}

	var events []schedule.Record
	err := h.app.Do(r.Context(), func(context.Context) error {
		if windowed {
			events = schedule.ToRecords(h.app.Schedule.EventsBetween(from, to))
		} else {
			events = schedule.ToRecords(h.app.Schedule.Events())
		}
		return nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"events": events})
}

// HandleEventCreate handles POST /api/events.
func (h *Handlers) HandleEventCreate(w http.ResponseWriter, r *http.Request) {
	var in eventCreateRequest
	if err := decodeBody(w, r, &in); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	var event schedule.Event
	err := h.app.Do(r.Context(), func(ctx context.Context) error {
		var err error
		event, err = h.app.Schedule.CreateEvent(ctx, in.Title, in.Start, in.End, in.Note)
		return err
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, schedule.ToRecords([]schedule.Event{event})[0])
}

// HandleEventDelete handles DELETE /api/events/{id}.
func (h *Handlers) HandleEventDelete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, func(ctx context.Context, id int64) bool {
		return h.app.Schedule.DeleteEvent(ctx, id)
	})
}

// Notes

type noteAddRequest struct {
	Content string `json:"content"`
}

// HandleNoteList handles GET /api/notes.
func (h *Handlers) HandleNoteList(w http.ResponseWriter, r *http.Request) {
	var notes []lists.NoteRecord
	err := h.app.Do(r.Context(), func(context.Context) error {
		notes = lists.ToNoteRecords(h.app.Lists.Notes())
		return nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// HandleNoteAdd handles POST /api/notes.
func (h *Handlers) HandleNoteAdd(w http.ResponseWriter, r *http.Request) {
	var in noteAddRequest
	if err := decodeBody(w, r, &in); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	var note lists.Note
	err := h.app.Do(r.Context(), func(ctx context.Context) error {
		var err error
		note, err = h.app.Lists.AddNote(ctx, in.Content)
		return err
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, lists.ToNoteRecords([]lists.Note{note})[0])
}

// HandleNoteDelete handles DELETE /api/notes/{id}.
func (h *Handlers) HandleNoteDelete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, func(ctx context.Context, id int64) bool {
		return h.app.Lists.DeleteNote(ctx, id)
	})
}

// Whole-state transfer

// HandleExport handles GET /api/export: the full export document.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := h.app.ExportAll(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="tempo-export.json"`)
	renderJSON(w, http.StatusOK, doc)
}

// HandleImport handles POST /api/import. The body replaces every collection,
// or nothing changes.
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, ops.MaxImportBytes)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	out, err := h.app.ImportAll(r.Context(), body)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// Helpers

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request, remove func(context.Context, int64) bool) {
	id, err := parseIDParam(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	var deleted bool
	err = h.app.Do(r.Context(), func(ctx context.Context) error {
		deleted = remove(ctx, id)
		return nil
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": deleted})
}

// parseIDParam reads the {id} path value as a positive integer.
func parseIDParam(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidation(fmt.Sprintf("id must be a positive integer (got %q)", raw))
	}
	return id, nil
}

func parseTimeParam(value, name string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, errors.NewValidation(name + " must be an RFC 3339 timestamp")
	}
	return t, nil
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewValidation(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, errors.NewValidation(fmt.Sprintf("cannot read request body: %v", err))
	}
	return body, nil
}
