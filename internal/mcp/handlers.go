package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/tempo/internal/app"
	"github.com/hpungsan/tempo/internal/errors"
	"github.com/hpungsan/tempo/internal/lists"
	"github.com/hpungsan/tempo/internal/schedule"
	"github.com/hpungsan/tempo/internal/timer"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

// Request types for each tool

// TextRequest carries a task text.
type TextRequest struct {
	Text string `json:"text"`
}

// IDRequest identifies a task, note or event.
type IDRequest struct {
	ID int64 `json:"id"`
}

// TaskListRequest represents the arguments for task_list.
type TaskListRequest struct {
	Filter string `json:"filter,omitempty"`
}

// TaskExportRequest represents the arguments for task_export.
type TaskExportRequest struct {
	Path string `json:"path,omitempty"`
	File bool   `json:"file,omitempty"`
}

// TaskImportRequest represents the arguments for task_import.
type TaskImportRequest struct {
	Text *string `json:"text,omitempty"`
	Path string  `json:"path,omitempty"`
}

// NoteAddRequest represents the arguments for note_add.
type NoteAddRequest struct {
	Content string `json:"content"`
}

// EventCreateRequest represents the arguments for event_create.
type EventCreateRequest struct {
	Title string  `json:"title"`
	Start string  `json:"start"`
	End   string  `json:"end"`
	Note  *string `json:"note,omitempty"`
}

// EventListRequest represents the arguments for event_list.
type EventListRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// EventSelectRequest represents the arguments for event_select.
type EventSelectRequest struct {
	ID *int64 `json:"id,omitempty"`
}

// TimerConfigureRequest represents the arguments for timer_configure.
type TimerConfigureRequest struct {
	WorkMinutes  *int `json:"work_minutes,omitempty"`
	BreakMinutes *int `json:"break_minutes,omitempty"`
}

// PathRequest represents the arguments for state_export and state_import.
type PathRequest struct {
	Path string `json:"path,omitempty"`
}

// Response shapes

// NoteView is a note as returned to clients.
type NoteView = lists.NoteRecord

// EventView is an event as returned to clients.
type EventView = schedule.Record

// DeleteResult reports whether a delete removed anything.
type DeleteResult struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

// Task handlers

// HandleTaskAdd handles the task_add tool call.
func (h *Handlers) HandleTaskAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TextRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	var task lists.Task
	err = h.app.Do(ctx, func(ctx context.Context) error {
		task, err = h.app.Lists.AddTask(ctx, input.Text)
		return err
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(task)
}

// HandleTaskToggle handles the task_toggle tool call.
func (h *Handlers) HandleTaskToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	var task lists.Task
	err = h.app.Do(ctx, func(ctx context.Context) error {
		var ok bool
		if task, ok = h.app.Lists.ToggleTask(ctx, input.ID); !ok {
			return errors.NewNotFound("task", input.ID)
		}
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(task)
}

// HandleTaskDelete handles the task_delete tool call.
func (h *Handlers) HandleTaskDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	result := DeleteResult{ID: input.ID}
	err = h.app.Do(ctx, func(ctx context.Context) error {
		result.Deleted = h.app.Lists.DeleteTask(ctx, input.ID)
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTaskList handles the task_list tool call.
func (h *Handlers) HandleTaskList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	filter, err := lists.ParseFilter(input.Filter)
	if err != nil {
		return errorResult(err), nil
	}
	var tasks []lists.Task
	err = h.app.Do(ctx, func(context.Context) error {
		tasks = h.app.Lists.Tasks(filter)
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"tasks": tasks, "filter": filter})
}

// HandleTaskExport handles the task_export tool call.
func (h *Handlers) HandleTaskExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Path != "" || input.File {
		out, err := h.app.ExportTasksFile(ctx, input.Path)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(out)
	}

	var text string
	err = h.app.Do(ctx, func(context.Context) error {
		text = h.app.Lists.ExportUncompleted()
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"text": text})
}

// HandleTaskImport handles the task_import tool call.
func (h *Handlers) HandleTaskImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if (input.Text == nil) == (input.Path == "") {
		return errorResult(errors.NewValidation("provide exactly one of text or path")), nil
	}

	var added []lists.Task
	if input.Path != "" {
		added, err = h.app.ImportTasksFile(ctx, input.Path)
	} else {
		err = h.app.Do(ctx, func(ctx context.Context) error {
			added = h.app.Lists.ImportTasks(ctx, *input.Text)
			return nil
		})
	}
	if err != nil {
		return errorResult(err), nil
	}
	if added == nil {
		added = []lists.Task{}
	}
	return successResult(map[string]any{"imported": len(added), "tasks": added})
}

// Note handlers

// HandleNoteAdd handles the note_add tool call.
func (h *Handlers) HandleNoteAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteAddRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	var note lists.Note
	err = h.app.Do(ctx, func(ctx context.Context) error {
		note, err = h.app.Lists.AddNote(ctx, input.Content)
		return err
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(lists.ToNoteRecords([]lists.Note{note})[0])
}

// HandleNoteDelete handles the note_delete tool call.
func (h *Handlers) HandleNoteDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	result := DeleteResult{ID: input.ID}
	err = h.app.Do(ctx, func(ctx context.Context) error {
		result.Deleted = h.app.Lists.DeleteNote(ctx, input.ID)
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleNoteList handles the note_list tool call.
func (h *Handlers) HandleNoteList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var notes []NoteView
	err := h.app.Do(ctx, func(context.Context) error {
		notes = lists.ToNoteRecords(h.app.Lists.Notes())
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"notes": notes})
}

// Event handlers

// HandleEventCreate handles the event_create tool call.
func (h *Handlers) HandleEventCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventCreateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	start, err := parseTime("start", input.Start)
	if err != nil {
		return errorResult(err), nil
	}
	end, err := parseTime("end", input.End)
	if err != nil {
		return errorResult(err), nil
	}

	var event schedule.Event
	err = h.app.Do(ctx, func(ctx context.Context) error {
		event, err = h.app.Schedule.CreateEvent(ctx, input.Title, start, end, input.Note)
		return err
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(schedule.ToRecords([]schedule.Event{event})[0])
}

// HandleEventDelete handles the event_delete tool call.
func (h *Handlers) HandleEventDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	result := DeleteResult{ID: input.ID}
	err = h.app.Do(ctx, func(ctx context.Context) error {
		result.Deleted = h.app.Schedule.DeleteEvent(ctx, input.ID)
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleEventList handles the event_list tool call.
func (h *Handlers) HandleEventList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	windowed := input.From != "" || input.To != ""
	var from, to time.Time
	if windowed {
		if from, err = parseTime("from", input.From); err != nil {
			return errorResult(err), nil
		}
		if to, err = parseTime("to", input.To); err != nil {
			return errorResult(err), nil
		}
	}

	var events []EventView
	err = h.app.Do(ctx, func(context.Context) error {
		if windowed {
			events = schedule.ToRecords(h.app.Schedule.EventsBetween(from, to))
		} else {
			events = schedule.ToRecords(h.app.Schedule.Events())
		}
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"events": events})
}

// HandleEventSelect handles the event_select tool call.
func (h *Handlers) HandleEventSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventSelectRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	var selected *EventView
	err = h.app.Do(ctx, func(context.Context) error {
		if input.ID == nil {
			h.app.Schedule.ClearSelection()
			return nil
		}
		if err := h.app.Schedule.SelectEvent(*input.ID); err != nil {
			return err
		}
		if e, ok := h.app.Schedule.Selected(); ok {
			selected = &schedule.ToRecords([]schedule.Event{e})[0]
		}
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"selected": selected})
}

// Timer handlers

// HandleTimerStatus handles the timer_status tool call.
func (h *Handlers) HandleTimerStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.timerCommand(ctx, timer.TickNow{})
}

// HandleTimerStart handles the timer_start tool call.
func (h *Handlers) HandleTimerStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.timerCommand(ctx, timer.Start{})
}

// HandleTimerStop handles the timer_stop tool call.
func (h *Handlers) HandleTimerStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.timerCommand(ctx, timer.TickNow{}, timer.Stop{})
}

// HandleTimerReset handles the timer_reset tool call.
func (h *Handlers) HandleTimerReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.timerCommand(ctx, timer.Reset{})
}

// HandleTimerConfigure handles the timer_configure tool call.
func (h *Handlers) HandleTimerConfigure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TimerConfigureRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.WorkMinutes == nil && input.BreakMinutes == nil {
		return errorResult(errors.NewValidation("provide work_minutes and/or break_minutes")), nil
	}
	// Validate both before applying either.
	if input.WorkMinutes != nil && *input.WorkMinutes <= 0 {
		return errorResult(errors.NewNonPositiveDuration("work_minutes", *input.WorkMinutes)), nil
	}
	if input.BreakMinutes != nil && *input.BreakMinutes <= 0 {
		return errorResult(errors.NewNonPositiveDuration("break_minutes", *input.BreakMinutes)), nil
	}

	var cmds []timer.Command
	if input.WorkMinutes != nil {
		cmds = append(cmds, timer.SetWorkMinutes{N: *input.WorkMinutes})
	}
	if input.BreakMinutes != nil {
		cmds = append(cmds, timer.SetBreakMinutes{N: *input.BreakMinutes})
	}
	return h.timerCommand(ctx, cmds...)
}

// timerCommand applies cmds in one loop turn and returns the resulting status.
func (h *Handlers) timerCommand(ctx context.Context, cmds ...timer.Command) (*mcp.CallToolResult, error) {
	var status timer.Status
	err := h.app.Do(ctx, func(ctx context.Context) error {
		for _, cmd := range cmds {
			if err := h.app.Timer.Apply(ctx, cmd); err != nil {
				return err
			}
		}
		status = h.app.Timer.State().Status()
		return nil
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(status)
}

// State handlers

// HandleStateExport handles the state_export tool call.
func (h *Handlers) HandleStateExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := h.app.ExportFile(ctx, input.Path)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleStateImport handles the state_import tool call.
func (h *Handlers) HandleStateImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Path == "" {
		return errorResult(errors.NewValidation("path is required")), nil
	}
	out, err := h.app.ImportFile(ctx, input.Path)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// parseTime parses an RFC 3339 timestamp argument.
func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, errors.NewValidation(field + " must be an RFC 3339 timestamp (e.g. 2026-05-04T09:00:00Z)")
	}
	return t, nil
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var tErr *errors.TempoError
	if stderrors.As(err, &tErr) {
		message := tErr.Message
		// Keep context added by wrapping, e.g. "load events: ...".
		if full := err.Error(); full != tErr.Error() && tErr.Code != errors.ErrInternal {
			message = strings.Replace(full, tErr.Error(), tErr.Message, 1)
		}
		errorObj := map[string]any{
			"code":    tErr.Code,
			"message": message,
			"status":  tErr.Status,
		}
		if tErr.Code != errors.ErrInternal && tErr.Details != nil {
			errorObj["details"] = tErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
