package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/tempo/internal/app"
	"github.com/hpungsan/tempo/internal/config"
	"github.com/hpungsan/tempo/internal/errors"
)

// testSetup opens an app over a temporary directory.
func testSetup(t *testing.T) (*app.App, *config.Config, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests

	a, err := app.Open(context.Background(), cfg, tmpDir)
	if err != nil {
		t.Fatalf("failed to open app: %v", err)
	}

	cleanup := func() {
		a.Close(context.Background())
	}

	return a, cfg, cleanup
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleTaskAdd(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	t.Run("adds a pending task", func(t *testing.T) {
		result, err := h.HandleTaskAdd(ctx, makeRequest(map[string]any{"text": "Write report"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := parseOutput(t, result)
		if output["text"] != "Write report" {
			t.Errorf("text = %v, want Write report", output["text"])
		}
		if output["completed"] != false {
			t.Errorf("completed = %v, want false", output["completed"])
		}
		if id, _ := output["id"].(float64); id <= 0 {
			t.Errorf("id = %v, want positive", output["id"])
		}
	})

	t.Run("blank text rejected", func(t *testing.T) {
		result, _ := h.HandleTaskAdd(ctx, makeRequest(map[string]any{"text": "   "}))
		assertErrorCode(t, result, "VALIDATION_ERROR")
	})
}

func TestHandleTaskToggleAndDelete(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	added := parseOutput(t, mustCall(t, h.HandleTaskAdd, map[string]any{"text": "Call Bob"}))
	id := added["id"]

	toggled := parseOutput(t, mustCall(t, h.HandleTaskToggle, map[string]any{"id": id}))
	if toggled["completed"] != true {
		t.Errorf("completed = %v, want true", toggled["completed"])
	}

	result, _ := h.HandleTaskToggle(ctx, makeRequest(map[string]any{"id": 999}))
	assertErrorCode(t, result, "NOT_FOUND")

	deleted := parseOutput(t, mustCall(t, h.HandleTaskDelete, map[string]any{"id": id}))
	if deleted["deleted"] != true {
		t.Errorf("deleted = %v, want true", deleted["deleted"])
	}

	// Deleting again is a no-op, not an error.
	deleted = parseOutput(t, mustCall(t, h.HandleTaskDelete, map[string]any{"id": id}))
	if deleted["deleted"] != false {
		t.Errorf("second delete = %v, want false", deleted["deleted"])
	}
}

func TestHandlers_WrongArgumentType(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	result, _ := h.HandleTaskToggle(ctx, makeRequest(map[string]any{"id": "abc"}))
	assertErrorCode(t, result, "VALIDATION_ERROR")
	if details := errorDetails(t, result); details["field"] != "id" {
		t.Errorf("details = %v, want field id", details)
	}

	result, _ = h.HandleTimerConfigure(ctx, makeRequest(map[string]any{"work_minutes": "ten"}))
	assertErrorCode(t, result, "VALIDATION_ERROR")
	if details := errorDetails(t, result); details["field"] != "work_minutes" {
		t.Errorf("details = %v, want field work_minutes", details)
	}
}

func TestHandleTaskList(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	first := parseOutput(t, mustCall(t, h.HandleTaskAdd, map[string]any{"text": "a"}))
	mustCall(t, h.HandleTaskAdd, map[string]any{"text": "b"})
	mustCall(t, h.HandleTaskToggle, map[string]any{"id": first["id"]})

	tests := []struct {
		filter string
		want   int
	}{
		{"", 2},
		{"all", 2},
		{"completed", 1},
		{"pending", 1},
	}
	for _, tt := range tests {
		t.Run("filter="+tt.filter, func(t *testing.T) {
			output := parseOutput(t, mustCall(t, h.HandleTaskList, map[string]any{"filter": tt.filter}))
			tasks, _ := output["tasks"].([]any)
			if len(tasks) != tt.want {
				t.Errorf("len(tasks) = %d, want %d", len(tasks), tt.want)
			}
		})
	}

	result, _ := h.HandleTaskList(ctx, makeRequest(map[string]any{"filter": "someday"}))
	assertErrorCode(t, result, "VALIDATION_ERROR")
}

func TestHandleTaskExportImport(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	done := parseOutput(t, mustCall(t, h.HandleTaskAdd, map[string]any{"text": "done"}))
	mustCall(t, h.HandleTaskToggle, map[string]any{"id": done["id"]})
	mustCall(t, h.HandleTaskAdd, map[string]any{"text": "open"})

	t.Run("inline text", func(t *testing.T) {
		output := parseOutput(t, mustCall(t, h.HandleTaskExport, map[string]any{}))
		if output["text"] != "open" {
			t.Errorf("text = %q, want %q", output["text"], "open")
		}
	})

	t.Run("file round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tasks.txt")
		exported := parseOutput(t, mustCall(t, h.HandleTaskExport, map[string]any{"path": path}))
		if exported["tasks"] != float64(1) {
			t.Errorf("exported tasks = %v, want 1", exported["tasks"])
		}

		imported := parseOutput(t, mustCall(t, h.HandleTaskImport, map[string]any{"path": path}))
		if imported["imported"] != float64(1) {
			t.Errorf("imported = %v, want 1", imported["imported"])
		}
	})

	t.Run("inline import skips blank lines", func(t *testing.T) {
		output := parseOutput(t, mustCall(t, h.HandleTaskImport, map[string]any{"text": "x\n\n  \ny\n"}))
		if output["imported"] != float64(2) {
			t.Errorf("imported = %v, want 2", output["imported"])
		}
	})

	t.Run("empty text imports nothing", func(t *testing.T) {
		output := parseOutput(t, mustCall(t, h.HandleTaskImport, map[string]any{"text": ""}))
		if output["imported"] != float64(0) {
			t.Errorf("imported = %v, want 0", output["imported"])
		}
	})

	t.Run("text and path are exclusive", func(t *testing.T) {
		result, _ := h.HandleTaskImport(ctx, makeRequest(map[string]any{"text": "a", "path": "/tmp/x.txt"}))
		assertErrorCode(t, result, "VALIDATION_ERROR")

		result, _ = h.HandleTaskImport(ctx, makeRequest(map[string]any{}))
		assertErrorCode(t, result, "VALIDATION_ERROR")
	})

	t.Run("missing file", func(t *testing.T) {
		result, _ := h.HandleTaskImport(ctx, makeRequest(map[string]any{"path": filepath.Join(t.TempDir(), "nope.txt")}))
		assertErrorCode(t, result, "NOT_FOUND")
	})
}

func TestHandleNotes(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	note := parseOutput(t, mustCall(t, h.HandleNoteAdd, map[string]any{"content": "  # Standup\nship it  "}))
	if note["content"] != "# Standup\nship it" {
		t.Errorf("content = %q, want trimmed", note["content"])
	}
	if _, ok := note["createdAt"].(string); !ok {
		t.Errorf("createdAt = %v, want string", note["createdAt"])
	}

	result, _ := h.HandleNoteAdd(ctx, makeRequest(map[string]any{"content": "\n\t"}))
	assertErrorCode(t, result, "VALIDATION_ERROR")

	listed := parseOutput(t, mustCall(t, h.HandleNoteList, map[string]any{}))
	if notes, _ := listed["notes"].([]any); len(notes) != 1 {
		t.Fatalf("len(notes) = %d, want 1", len(notes))
	}

	deleted := parseOutput(t, mustCall(t, h.HandleNoteDelete, map[string]any{"id": note["id"]}))
	if deleted["deleted"] != true {
		t.Errorf("deleted = %v, want true", deleted["deleted"])
	}

	listed = parseOutput(t, mustCall(t, h.HandleNoteList, map[string]any{}))
	if notes, _ := listed["notes"].([]any); len(notes) != 0 {
		t.Errorf("len(notes) = %d, want 0", len(notes))
	}
}

func TestHandleEventCreate(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	first := parseOutput(t, mustCall(t, h.HandleEventCreate, map[string]any{
		"title": "Standup",
		"start": "2026-05-04T09:00:00Z",
		"end":   "2026-05-04T09:30:00Z",
	}))
	if first["title"] != "Standup" {
		t.Errorf("title = %v, want Standup", first["title"])
	}
	if first["note"] != nil {
		t.Errorf("note = %v, want null", first["note"])
	}

	t.Run("adjacent accepted", func(t *testing.T) {
		output := parseOutput(t, mustCall(t, h.HandleEventCreate, map[string]any{
			"title": "Review",
			"start": "2026-05-04T09:30:00Z",
			"end":   "2026-05-04T10:00:00Z",
			"note":  "bring laptop",
		}))
		if output["note"] != "bring laptop" {
			t.Errorf("note = %v, want bring laptop", output["note"])
		}
	})

	t.Run("overlap rejected with conflicting id", func(t *testing.T) {
		result, _ := h.HandleEventCreate(ctx, makeRequest(map[string]any{
			"title": "Clash",
			"start": "2026-05-04T09:15:00Z",
			"end":   "2026-05-04T09:45:00Z",
		}))
		assertErrorCode(t, result, "CONFLICT")
		details := errorDetails(t, result)
		if details["conflicting_id"] == nil {
			t.Errorf("details = %v, want conflicting_id", details)
		}
	})

	tests := []struct {
		name string
		args map[string]any
	}{
		{"end before start", map[string]any{"title": "x", "start": "2026-05-04T12:00:00Z", "end": "2026-05-04T11:00:00Z"}},
		{"empty interval", map[string]any{"title": "x", "start": "2026-05-04T12:00:00Z", "end": "2026-05-04T12:00:00Z"}},
		{"blank title", map[string]any{"title": " ", "start": "2026-05-04T12:00:00Z", "end": "2026-05-04T13:00:00Z"}},
		{"bad start", map[string]any{"title": "x", "start": "tomorrow", "end": "2026-05-04T13:00:00Z"}},
		{"missing end", map[string]any{"title": "x", "start": "2026-05-04T12:00:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _ := h.HandleEventCreate(ctx, makeRequest(tt.args))
			assertErrorCode(t, result, "VALIDATION_ERROR")
		})
	}

	listed := parseOutput(t, mustCall(t, h.HandleEventList, map[string]any{}))
	if events, _ := listed["events"].([]any); len(events) != 2 {
		t.Errorf("len(events) = %d, want 2 (rejections leave the schedule unchanged)", len(events))
	}
}

func TestHandleEventListWindow(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	mustCall(t, h.HandleEventCreate, map[string]any{"title": "late", "start": "2026-05-05T09:00:00Z", "end": "2026-05-05T10:00:00Z"})
	mustCall(t, h.HandleEventCreate, map[string]any{"title": "early", "start": "2026-05-04T09:00:00Z", "end": "2026-05-04T10:00:00Z"})

	output := parseOutput(t, mustCall(t, h.HandleEventList, map[string]any{
		"from": "2026-05-04T00:00:00Z",
		"to":   "2026-05-05T00:00:00Z",
	}))
	events, _ := output["events"].([]any)
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].(map[string]any)["title"] != "early" {
		t.Errorf("title = %v, want early", events[0].(map[string]any)["title"])
	}

	result, _ := h.HandleEventList(ctx, makeRequest(map[string]any{"from": "2026-05-04T00:00:00Z"}))
	assertErrorCode(t, result, "VALIDATION_ERROR")
}

func TestHandleEventSelectAndDelete(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	ev := parseOutput(t, mustCall(t, h.HandleEventCreate, map[string]any{
		"title": "Standup", "start": "2026-05-04T09:00:00Z", "end": "2026-05-04T09:30:00Z",
	}))

	selected := parseOutput(t, mustCall(t, h.HandleEventSelect, map[string]any{"id": ev["id"]}))
	sel, ok := selected["selected"].(map[string]any)
	if !ok || sel["id"] != ev["id"] {
		t.Fatalf("selected = %v, want event %v", selected["selected"], ev["id"])
	}

	result, _ := h.HandleEventSelect(ctx, makeRequest(map[string]any{"id": 42}))
	assertErrorCode(t, result, "NOT_FOUND")

	cleared := parseOutput(t, mustCall(t, h.HandleEventSelect, map[string]any{}))
	if cleared["selected"] != nil {
		t.Errorf("selected = %v, want null", cleared["selected"])
	}

	deleted := parseOutput(t, mustCall(t, h.HandleEventDelete, map[string]any{"id": ev["id"]}))
	if deleted["deleted"] != true {
		t.Errorf("deleted = %v, want true", deleted["deleted"])
	}
}

func TestHandleTimer(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	status := parseOutput(t, mustCall(t, h.HandleTimerStatus, map[string]any{}))
	if status["phase"] != "WORK" || status["running"] != false {
		t.Errorf("initial status = %v", status)
	}
	if status["display"] != "25:00" {
		t.Errorf("display = %v, want 25:00", status["display"])
	}
	if status["lastTickTimestamp"] != nil {
		t.Errorf("lastTickTimestamp = %v, want null while stopped", status["lastTickTimestamp"])
	}

	status = parseOutput(t, mustCall(t, h.HandleTimerStart, map[string]any{}))
	if status["running"] != true || status["lastTickTimestamp"] == nil {
		t.Errorf("after start = %v", status)
	}

	status = parseOutput(t, mustCall(t, h.HandleTimerStop, map[string]any{}))
	if status["running"] != false {
		t.Errorf("after stop running = %v", status["running"])
	}

	t.Run("configure", func(t *testing.T) {
		status := parseOutput(t, mustCall(t, h.HandleTimerConfigure, map[string]any{"work_minutes": 50, "break_minutes": 10}))
		if status["workMinutes"] != float64(50) || status["breakMinutes"] != float64(10) {
			t.Errorf("configured = %v", status)
		}
	})

	t.Run("configure rejects non-positive without applying", func(t *testing.T) {
		result, _ := h.HandleTimerConfigure(ctx, makeRequest(map[string]any{"work_minutes": 30, "break_minutes": 0}))
		assertErrorCode(t, result, "VALIDATION_ERROR")

		status := parseOutput(t, mustCall(t, h.HandleTimerStatus, map[string]any{}))
		if status["workMinutes"] != float64(50) {
			t.Errorf("workMinutes = %v, want 50 (unchanged)", status["workMinutes"])
		}
	})

	t.Run("configure requires a value", func(t *testing.T) {
		result, _ := h.HandleTimerConfigure(ctx, makeRequest(map[string]any{}))
		assertErrorCode(t, result, "VALIDATION_ERROR")
	})

	t.Run("reset", func(t *testing.T) {
		status := parseOutput(t, mustCall(t, h.HandleTimerReset, map[string]any{}))
		if status["secondsLeft"] != float64(50*60) || status["phase"] != "WORK" {
			t.Errorf("after reset = %v", status)
		}
	})
}

func TestHandleStateExportImport(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()
	h := NewHandlers(a)
	ctx := context.Background()

	mustCall(t, h.HandleTaskAdd, map[string]any{"text": "keep"})
	mustCall(t, h.HandleNoteAdd, map[string]any{"content": "remember"})
	mustCall(t, h.HandleEventCreate, map[string]any{"title": "Standup", "start": "2026-05-04T09:00:00Z", "end": "2026-05-04T09:30:00Z"})

	path := filepath.Join(t.TempDir(), "state.json")
	exported := parseOutput(t, mustCall(t, h.HandleStateExport, map[string]any{"path": path}))
	if exported["tasks"] != float64(1) || exported["events"] != float64(1) || exported["notes"] != float64(1) {
		t.Errorf("export counts = %v", exported)
	}

	mustCall(t, h.HandleTaskAdd, map[string]any{"text": "discarded by import"})

	imported := parseOutput(t, mustCall(t, h.HandleStateImport, map[string]any{"path": path}))
	if imported["tasks"] != float64(1) {
		t.Errorf("imported tasks = %v, want 1", imported["tasks"])
	}

	listed := parseOutput(t, mustCall(t, h.HandleTaskList, map[string]any{}))
	if tasks, _ := listed["tasks"].([]any); len(tasks) != 1 {
		t.Errorf("len(tasks) = %d, want 1 after replace", len(tasks))
	}

	t.Run("path required", func(t *testing.T) {
		result, _ := h.HandleStateImport(ctx, makeRequest(map[string]any{}))
		assertErrorCode(t, result, "VALIDATION_ERROR")
	})

	t.Run("malformed document leaves state untouched", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(bad, []byte(`{"tasks": [{"id": "x"}]}`), 0600); err != nil {
			t.Fatal(err)
		}
		result, _ := h.HandleStateImport(ctx, makeRequest(map[string]any{"path": bad}))
		assertErrorCode(t, result, "PARSE_ERROR")

		listed := parseOutput(t, mustCall(t, h.HandleTaskList, map[string]any{}))
		if tasks, _ := listed["tasks"].([]any); len(tasks) != 1 {
			t.Errorf("len(tasks) = %d, want 1", len(tasks))
		}
	})

	t.Run("wrong extension rejected", func(t *testing.T) {
		result, _ := h.HandleStateExport(ctx, makeRequest(map[string]any{"path": filepath.Join(t.TempDir(), "state.txt")}))
		assertErrorCode(t, result, "VALIDATION_ERROR")
	})
}

func TestHandlers_ClosedAppReturnsInternal(t *testing.T) {
	a, _, cleanup := testSetup(t)
	h := NewHandlers(a)
	cleanup()

	result, _ := h.HandleTaskList(context.Background(), makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INTERNAL")
}

func TestServerRegistration(t *testing.T) {
	a, _, cleanup := testSetup(t)
	defer cleanup()

	s := NewServer(a, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"task_add",
		"task_toggle",
		"task_delete",
		"task_list",
		"task_export",
		"task_import",
		"note_add",
		"note_delete",
		"note_list",
		"event_create",
		"event_delete",
		"event_list",
		"event_select",
		"timer_status",
		"timer_start",
		"timer_stop",
		"timer_reset",
		"timer_configure",
		"state_export",
		"state_import",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	a, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = []string{"state_import", "task_import", "timer_reset"}
	s := NewServer(a, "test")
	tools := s.ListTools()

	if len(tools) != 17 {
		t.Errorf("registered tool count = %d, want 17", len(tools))
	}

	for _, name := range []string{"state_import", "task_import", "timer_reset"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}

	for _, name := range []string{"task_add", "event_create", "timer_status"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("core tool %q should be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	a, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTypes = []string{"timer"}
	s := NewServer(a, "test")
	tools := s.ListTools()

	if len(tools) != 15 {
		t.Errorf("registered tool count = %d, want 15", len(tools))
	}
	for name := range tools {
		if strings.HasPrefix(name, "timer_") {
			t.Errorf("tool %q should be disabled with its type", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	a, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = AllToolNames()
	s := NewServer(a, "test")
	tools := s.ListTools()

	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestServerRegistration_DuplicateDisabled(t *testing.T) {
	a, cfg, cleanup := testSetup(t)
	defer cleanup()

	// Duplicates should be handled gracefully (map lookup)
	cfg.DisabledTools = []string{"state_import", "state_import", "state_import"}
	s := NewServer(a, "test")
	tools := s.ListTools()

	if len(tools) != 19 {
		t.Errorf("registered tool count = %d, want 19", len(tools))
	}

	if _, ok := tools["state_import"]; ok {
		t.Error("disabled tool 'state_import' should not be registered")
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{
			name:    "all valid",
			input:   []string{"state_import", "timer_reset"},
			wantLen: 0,
		},
		{
			name:    "one unknown",
			input:   []string{"state_import", "fake_tool"},
			wantLen: 1,
		},
		{
			name:    "all unknown",
			input:   []string{"foo", "bar", "baz"},
			wantLen: 3,
		},
		{
			name:    "empty list",
			input:   []string{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	if unknown := ValidateDisabledTypes([]string{"task", "state"}); len(unknown) != 0 {
		t.Errorf("ValidateDisabledTypes() unknown = %v, want none", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"capsule"}); len(unknown) != 1 {
		t.Errorf("ValidateDisabledTypes() unknown = %v, want [capsule]", unknown)
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	if len(names) != 20 {
		t.Errorf("AllToolNames() returned %d names, want 20", len(names))
	}

	unknown := ValidateDisabledTools(names)
	if len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("events[2]: %w", errors.NewBlankInput("title"))

	r := errorResult(wrappedErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrValidation) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrValidation)
	}

	msg := errObj["message"].(string)
	if !strings.Contains(msg, "events[2]") {
		t.Errorf("message should contain wrapper context 'events[2]', got: %s", msg)
	}
	if strings.Contains(msg, string(errors.ErrValidation)) {
		t.Errorf("message should not repeat the code, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("event", 7))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

type handlerFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// mustCall invokes a handler and fails on a transport-level error.
func mustCall(t *testing.T, fn handlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorDetails(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(extractErrorMessage(result)), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errorObj, _ := payload["error"].(map[string]any)
	details, _ := errorObj["details"].(map[string]any)
	return details
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
