package mcp

import "github.com/mark3labs/mcp-go/mcp"

var taskAddToolDef = mcp.NewTool("task_add",
	mcp.WithDescription("Add a task. Surrounding whitespace is trimmed; blank text is rejected."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Task text")),
)

var taskToggleToolDef = mcp.NewTool("task_toggle",
	mcp.WithDescription("Flip a task between completed and pending."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Task id")),
)

var taskDeleteToolDef = mcp.NewTool("task_delete",
	mcp.WithDescription("Delete a task. Deleting an unknown id is not an error."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Task id")),
)

var taskListToolDef = mcp.NewTool("task_list",
	mcp.WithDescription("List tasks in insertion order."),
	mcp.WithString("filter", mcp.Description("all (default), completed or pending")),
)

var taskExportToolDef = mcp.NewTool("task_export",
	mcp.WithDescription("Export uncompleted tasks as plain text, one per line. Writes a .txt file when path is given or file is true."),
	mcp.WithString("path", mcp.Description("Destination .txt file (default: ~/.tempo/exports/tasks-<timestamp>.txt)")),
	mcp.WithBoolean("file", mcp.Description("Write to the default file instead of returning the text")),
)

var taskImportToolDef = mcp.NewTool("task_import",
	mcp.WithDescription("Append one task per non-blank line. Existing tasks are kept. Provide either text or path."),
	mcp.WithString("text", mcp.Description("Newline-separated task texts")),
	mcp.WithString("path", mcp.Description("Source .txt file")),
)

var noteAddToolDef = mcp.NewTool("note_add",
	mcp.WithDescription("Add a note (markdown allowed)."),
	mcp.WithString("content", mcp.Required(), mcp.Description("Note content")),
)

var noteDeleteToolDef = mcp.NewTool("note_delete",
	mcp.WithDescription("Delete a note."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
)

var noteListToolDef = mcp.NewTool("note_list",
	mcp.WithDescription("List notes, oldest first."),
)

var eventCreateToolDef = mcp.NewTool("event_create",
	mcp.WithDescription("Create a calendar event over [start, end). Fails with CONFLICT if it overlaps an existing event; back-to-back events are fine."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Event title")),
	mcp.WithString("start", mcp.Required(), mcp.Description("Start time, RFC 3339 (e.g. 2026-05-04T09:00:00Z)")),
	mcp.WithString("end", mcp.Required(), mcp.Description("End time, RFC 3339; must be after start")),
	mcp.WithString("note", mcp.Description("Optional note")),
)

var eventDeleteToolDef = mcp.NewTool("event_delete",
	mcp.WithDescription("Delete an event."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Event id")),
)

var eventListToolDef = mcp.NewTool("event_list",
	mcp.WithDescription("List events. With from/to, only events intersecting that window, ordered by start."),
	mcp.WithString("from", mcp.Description("Window start, RFC 3339")),
	mcp.WithString("to", mcp.Description("Window end, RFC 3339")),
)

var eventSelectToolDef = mcp.NewTool("event_select",
	mcp.WithDescription("Focus an event, or clear the focus when id is omitted. Returns the selected event."),
	mcp.WithNumber("id", mcp.Description("Event id")),
)

var timerStatusToolDef = mcp.NewTool("timer_status",
	mcp.WithDescription("Show the work/break timer."),
)

var timerStartToolDef = mcp.NewTool("timer_start",
	mcp.WithDescription("Start or resume the countdown."),
)

var timerStopToolDef = mcp.NewTool("timer_stop",
	mcp.WithDescription("Pause the countdown."),
)

var timerResetToolDef = mcp.NewTool("timer_reset",
	mcp.WithDescription("Stop the timer and rewind to the start of a work phase."),
)

var timerConfigureToolDef = mcp.NewTool("timer_configure",
	mcp.WithDescription("Change work and/or break length in minutes. The running countdown is not restarted."),
	mcp.WithNumber("work_minutes", mcp.Description("Work phase length, > 0")),
	mcp.WithNumber("break_minutes", mcp.Description("Break phase length, > 0")),
)

var stateExportToolDef = mcp.NewTool("state_export",
	mcp.WithDescription("Export tasks, events and notes as one JSON document file."),
	mcp.WithString("path", mcp.Description("Destination .json file (default: ~/.tempo/exports/tempo-<timestamp>.json)")),
)

var stateImportToolDef = mcp.NewTool("state_import",
	mcp.WithDescription("Replace tasks, events and notes with a JSON export document. The document is validated in full first; nothing changes on failure."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .json file")),
)
