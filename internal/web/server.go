package web

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/tempo/internal/app"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates the HTTP server for the Tempo web UI and JSON API.
func NewServer(a *app.App, version, addr string) *http.Server {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		log.Fatalf("failed to create template sub-FS: %v", err)
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatalf("failed to create static sub-FS: %v", err)
	}

	h := &Handlers{
		app:      a,
		renderer: NewRenderer(templateSub, version),
	}

	return &http.Server{
		Addr:              addr,
		Handler:           securityHeaders(h.routes(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (h *Handlers) routes(static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /{$}", h.HandleDashboard)
	mux.HandleFunc("GET /notes/{id}", h.HandleNote)

	// JSON API
	mux.HandleFunc("GET /api/timer", h.HandleTimerStatus)
	mux.HandleFunc("POST /api/timer/{action}", h.HandleTimerAction)
	mux.HandleFunc("PUT /api/timer/config", h.HandleTimerConfigure)

	mux.HandleFunc("GET /api/tasks", h.HandleTaskList)
	mux.HandleFunc("POST /api/tasks", h.HandleTaskAdd)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", h.HandleTaskToggle)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.HandleTaskDelete)
	mux.HandleFunc("GET /api/tasks/export", h.HandleTaskExport)
	mux.HandleFunc("POST /api/tasks/import", h.HandleTaskImport)

	mux.HandleFunc("GET /api/events", h.HandleEventList)
	mux.HandleFunc("POST /api/events", h.HandleEventCreate)
	mux.HandleFunc("DELETE /api/events/{id}", h.HandleEventDelete)

	mux.HandleFunc("GET /api/notes", h.HandleNoteList)
	mux.HandleFunc("POST /api/notes", h.HandleNoteAdd)
	mux.HandleFunc("DELETE /api/notes/{id}", h.HandleNoteDelete)

	mux.HandleFunc("GET /api/export", h.HandleExport)
	mux.HandleFunc("POST /api/import", h.HandleImport)

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and shuts it down gracefully on SIGINT/SIGTERM
// or when ctx is cancelled.
func Run(ctx context.Context, srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Printf("Tempo UI running at http://%s", srv.Addr)

	if strings.HasPrefix(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, ":") || strings.Contains(srv.Addr, "[::]") {
		log.Printf("WARNING: Server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
