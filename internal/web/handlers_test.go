package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/hpungsan/tempo/internal/app"
	"github.com/hpungsan/tempo/internal/config"
	"github.com/hpungsan/tempo/internal/lists"
)

func setupTest(t *testing.T) (*Handlers, http.Handler) {
	t.Helper()

	cfg := config.DefaultConfig()
	a, err := app.Open(context.Background(), cfg, t.TempDir())
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		t.Fatalf("static sub-FS: %v", err)
	}

	h := &Handlers{
		app:      a,
		renderer: NewRenderer(templateSub, "test"),
	}
	return h, securityHeaders(h.routes(staticSub))
}

func do(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeJSON(t, rec)
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in %v", resp)
	}
	code, _ := errObj["code"].(string)
	return code
}

func seedNote(t *testing.T, h *Handlers, content string) lists.Note {
	t.Helper()
	var note lists.Note
	err := h.app.Do(context.Background(), func(ctx context.Context) error {
		var err error
		note, err = h.app.Lists.AddNote(ctx, content)
		return err
	})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	return note
}

// --- Pages ---

func TestHandleDashboard(t *testing.T) {
	h, handler := setupTest(t)
	seedNote(t, h, "# Standup\nship it")
	do(t, handler, "POST", "/api/tasks", `{"text":"Write report"}`)

	rec := do(t, handler, "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"WORK", "25:00", "Write report", "# Standup"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestHandleDashboard_InvalidFilter(t *testing.T) {
	_, handler := setupTest(t)

	rec := do(t, handler, "GET", "/?filter=someday", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error-message") {
		t.Error("expected full error page")
	}
}

func TestHandleNote_RendersMarkdown(t *testing.T) {
	h, handler := setupTest(t)
	note := seedNote(t, h, "# Standup\n\n- ship it\n\n<script>alert(1)</script>")

	rec := do(t, handler, "GET", "/notes/"+strconv.FormatInt(note.ID, 10), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Standup</h1>") {
		t.Error("expected rendered heading")
	}
	if !strings.Contains(body, "<li>ship it</li>") {
		t.Error("expected rendered list item")
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("raw HTML should not be rendered")
	}
}

func TestHandleNote_JSON(t *testing.T) {
	h, handler := setupTest(t)
	note := seedNote(t, h, "plain")

	req := httptest.NewRequest("GET", "/notes/"+strconv.FormatInt(note.ID, 10), nil)
	req.Header.Set("Accept", "text/html, application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := decodeJSON(t, rec)
	if resp["content"] != "plain" {
		t.Errorf("content = %v, want plain", resp["content"])
	}
}

func TestHandleNote_NotFound(t *testing.T) {
	_, handler := setupTest(t)

	rec := do(t, handler, "GET", "/notes/999", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleNote_BadID(t *testing.T) {
	_, handler := setupTest(t)

	rec := do(t, handler, "GET", "/notes/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	_, handler := setupTest(t)

	rec := do(t, handler, "GET", "/static/style.css", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

// --- Timer ---

func TestTimerAPI(t *testing.T) {
	_, handler := setupTest(t)

	resp := decodeJSON(t, do(t, handler, "GET", "/api/timer", ""))
	if resp["phase"] != "WORK" || resp["running"] != false || resp["display"] != "25:00" {
		t.Errorf("status = %v", resp)
	}

	resp = decodeJSON(t, do(t, handler, "POST", "/api/timer/start", ""))
	if resp["running"] != true {
		t.Errorf("running = %v, want true", resp["running"])
	}

	resp = decodeJSON(t, do(t, handler, "POST", "/api/timer/stop", ""))
	if resp["running"] != false || resp["lastTickTimestamp"] != nil {
		t.Errorf("after stop = %v", resp)
	}

	resp = decodeJSON(t, do(t, handler, "PUT", "/api/timer/config", `{"workMinutes":50}`))
	if resp["workMinutes"] != float64(50) {
		t.Errorf("workMinutes = %v, want 50", resp["workMinutes"])
	}

	resp = decodeJSON(t, do(t, handler, "POST", "/api/timer/reset", ""))
	if resp["secondsLeft"] != float64(3000) {
		t.Errorf("secondsLeft = %v, want 3000", resp["secondsLeft"])
	}
}

func TestTimerAPI_Errors(t *testing.T) {
	_, handler := setupTest(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"unknown action", "POST", "/api/timer/pause", "", http.StatusBadRequest},
		{"zero minutes", "PUT", "/api/timer/config", `{"breakMinutes":0}`, http.StatusBadRequest},
		{"empty config", "PUT", "/api/timer/config", `{}`, http.StatusBadRequest},
		{"unknown field", "PUT", "/api/timer/config", `{"work":5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, handler, tt.method, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if code := errorCode(t, rec); code != "VALIDATION_ERROR" {
				t.Errorf("code = %q, want VALIDATION_ERROR", code)
			}
		})
	}
}

// --- Tasks ---

func TestTaskAPI(t *testing.T) {
	_, handler := setupTest(t)

	rec := do(t, handler, "POST", "/api/tasks", `{"text":"Write report"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	task := decodeJSON(t, rec)
	id := strconv.FormatInt(int64(task["id"].(float64)), 10)
	do(t, handler, "POST", "/api/tasks", `{"text":"Call Bob"}`)

	toggled := decodeJSON(t, do(t, handler, "POST", "/api/tasks/"+id+"/toggle", ""))
	if toggled["completed"] != true {
		t.Errorf("completed = %v, want true", toggled["completed"])
	}

	pending := decodeJSON(t, do(t, handler, "GET", "/api/tasks?filter=pending", ""))
	if tasks := pending["tasks"].([]any); len(tasks) != 1 {
		t.Errorf("pending = %d, want 1", len(tasks))
	}

	rec = do(t, handler, "GET", "/api/tasks/export", "")
	if rec.Body.String() != "Call Bob" {
		t.Errorf("export = %q, want %q", rec.Body.String(), "Call Bob")
	}

	imported := decodeJSON(t, do(t, handler, "POST", "/api/tasks/import", "a\n\n  \nb\n"))
	if imported["imported"] != float64(2) {
		t.Errorf("imported = %v, want 2", imported["imported"])
	}

	deleted := decodeJSON(t, do(t, handler, "DELETE", "/api/tasks/"+id, ""))
	if deleted["deleted"] != true {
		t.Errorf("deleted = %v, want true", deleted["deleted"])
	}
	deleted = decodeJSON(t, do(t, handler, "DELETE", "/api/tasks/"+id, ""))
	if deleted["deleted"] != false {
		t.Errorf("second delete = %v, want false", deleted["deleted"])
	}

	all := decodeJSON(t, do(t, handler, "GET", "/api/tasks", ""))
	if tasks := all["tasks"].([]any); len(tasks) != 3 {
		t.Errorf("tasks = %d, want 3", len(tasks))
	}
}

func TestTaskAPI_Errors(t *testing.T) {
	_, handler := setupTest(t)

	rec := do(t, handler, "POST", "/api/tasks", `{"text":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank text status = %d, want 400", rec.Code)
	}

	rec = do(t, handler, "POST", "/api/tasks", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}

	rec = do(t, handler, "POST", "/api/tasks/12/toggle", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("toggle unknown status = %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", code)
	}

	rec = do(t, handler, "DELETE", "/api/tasks/0", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero id status = %d, want 400", rec.Code)
	}
}

// --- Events ---

func TestEventAPI(t *testing.T) {
	_, handler := setupTest(t)

	rec := do(t, handler, "POST", "/api/events", `{"title":"Standup","start":"2026-05-04T09:00:00Z","end":"2026-05-04T09:30:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	first := decodeJSON(t, rec)

	rec = do(t, handler, "POST", "/api/events", `{"title":"Review","start":"2026-05-04T09:30:00Z","end":"2026-05-04T10:00:00Z","note":"room 2"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("adjacent status = %d, want 201", rec.Code)
	}

	rec = do(t, handler, "POST", "/api/events", `{"title":"Clash","start":"2026-05-04T09:10:00Z","end":"2026-05-04T09:20:00Z"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlap status = %d, want 409", rec.Code)
	}
	resp := decodeJSON(t, rec)
	details := resp["error"].(map[string]any)["details"].(map[string]any)
	if details["conflicting_id"] != first["id"] {
		t.Errorf("conflicting_id = %v, want %v", details["conflicting_id"], first["id"])
	}

	rec = do(t, handler, "POST", "/api/events", `{"title":"Backwards","start":"2026-05-04T12:00:00Z","end":"2026-05-04T11:00:00Z"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted status = %d, want 400", rec.Code)
	}

	window := decodeJSON(t, do(t, handler, "GET", "/api/events?from=2026-05-04T09:00:00Z&to=2026-05-04T09:30:00Z", ""))
	if events := window["events"].([]any); len(events) != 1 {
		t.Errorf("windowed events = %d, want 1", len(events))
	}

	rec = do(t, handler, "GET", "/api/events?from=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad window status = %d, want 400", rec.Code)
	}

	id := strconv.FormatInt(int64(first["id"].(float64)), 10)
	deleted := decodeJSON(t, do(t, handler, "DELETE", "/api/events/"+id, ""))
	if deleted["deleted"] != true {
		t.Errorf("deleted = %v, want true", deleted["deleted"])
	}

	all := decodeJSON(t, do(t, handler, "GET", "/api/events", ""))
	if events := all["events"].([]any); len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}
}

// --- Notes ---

func TestNoteAPI(t *testing.T) {
	_, handler := setupTest(t)

	rec := do(t, handler, "POST", "/api/notes", `{"content":"  remember  "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	note := decodeJSON(t, rec)
	if note["content"] != "remember" {
		t.Errorf("content = %q, want trimmed", note["content"])
	}

	rec = do(t, handler, "POST", "/api/notes", `{"content":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank status = %d, want 400", rec.Code)
	}

	listed := decodeJSON(t, do(t, handler, "GET", "/api/notes", ""))
	if notes := listed["notes"].([]any); len(notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(notes))
	}

	id := strconv.FormatInt(int64(note["id"].(float64)), 10)
	deleted := decodeJSON(t, do(t, handler, "DELETE", "/api/notes/"+id, ""))
	if deleted["deleted"] != true {
		t.Errorf("deleted = %v, want true", deleted["deleted"])
	}
}

// --- Export / import ---

func TestExportImportAPI(t *testing.T) {
	_, handler := setupTest(t)
	do(t, handler, "POST", "/api/tasks", `{"text":"keep"}`)
	do(t, handler, "POST", "/api/notes", `{"content":"remember"}`)
	do(t, handler, "POST", "/api/events", `{"title":"Standup","start":"2026-05-04T09:00:00Z","end":"2026-05-04T09:30:00Z"}`)

	rec := do(t, handler, "GET", "/api/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, want 200", rec.Code)
	}
	exported := rec.Body.String()
	if !strings.Contains(exported, `"_tempo_export":true`) {
		t.Errorf("export missing header: %s", exported)
	}

	do(t, handler, "POST", "/api/tasks", `{"text":"discarded"}`)

	out := decodeJSON(t, do(t, handler, "POST", "/api/import", exported))
	if out["tasks"] != float64(1) || out["events"] != float64(1) || out["notes"] != float64(1) {
		t.Errorf("import counts = %v", out)
	}

	rec = do(t, handler, "POST", "/api/import", `{"tasks":"nope","events":[],"notes":[]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("malformed status = %d, want 422", rec.Code)
	}
	if code := errorCode(t, rec); code != "PARSE_ERROR" {
		t.Errorf("code = %q, want PARSE_ERROR", code)
	}

	all := decodeJSON(t, do(t, handler, "GET", "/api/tasks", ""))
	if tasks := all["tasks"].([]any); len(tasks) != 1 {
		t.Errorf("tasks after failed import = %d, want 1", len(tasks))
	}
}

// --- Helpers ---

func TestPreview(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"short", "short"},
		{"first\nsecond", "first"},
		{strings.Repeat("a", 61), strings.Repeat("a", 60) + "…"},
	}
	for _, tt := range tests {
		if got := preview(tt.in); got != tt.want {
			t.Errorf("preview(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeref(t *testing.T) {
	s := "x"
	var nilStr *string
	if got := deref(&s); got != "x" {
		t.Errorf("deref(&s) = %v, want x", got)
	}
	if got := deref(nilStr); got != "" {
		t.Errorf("deref(nil *string) = %v, want empty", got)
	}
	if hasValue(nilStr) {
		t.Error("hasValue(nil *string) = true, want false")
	}
}
