package persist

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// ErrClosed is returned by Save after the writer has been closed.
var ErrClosed = stderrors.New("persist: writer closed")

// writeTimeout bounds a single backend write.
const writeTimeout = 5 * time.Second

// ErrorReporter receives background write failures.
type ErrorReporter func(key string, err error)

// LogReporter logs write failures with the standard logger.
func LogReporter(key string, err error) {
	log.Printf("persist: saving %q failed: %v", key, err)
}

// Writer is a write-behind Gateway. Save marshals the snapshot immediately and
// queues it; one background goroutine writes queued snapshots to the backend,
// keeping only the latest snapshot per key. Write failures are reported and
// never surface to the caller of Save.
type Writer struct {
	backend Backend
	report  ErrorReporter

	mu      sync.Mutex
	pending map[string][]byte
	writing map[string][]byte // batch currently being written
	closed  bool
	lastErr error

	wake    chan struct{}
	flushCh chan chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWriter starts a Writer over backend. A nil reporter means LogReporter.
func NewWriter(backend Backend, report ErrorReporter) *Writer {
	if report == nil {
		report = LogReporter
	}
	w := &Writer{
		backend: backend,
		report:  report,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		flushCh: make(chan chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Load returns the snapshot for key, preferring a queued write over the backend
// so callers always read their own writes.
func (w *Writer) Load(ctx context.Context, key string) (json.RawMessage, bool, error) {
	w.mu.Lock()
	data, ok := w.pending[key]
	if !ok {
		data, ok = w.writing[key]
	}
	w.mu.Unlock()
	if ok {
		return append(json.RawMessage(nil), data...), true, nil
	}

	data, ok, err := w.backend.Read(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return data, ok, nil
}

// Save marshals snapshot and queues it for writing.
func (w *Writer) Save(_ context.Context, key string, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", key, err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.pending[key] = data
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// LastError returns the most recent background write failure, if any.
func (w *Writer) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Flush blocks until every snapshot queued before the call has been written
// (or has failed and been reported).
func (w *Writer) Flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case w.flushCh <- reply:
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes everything still queued and stops the background goroutine.
func (w *Writer) Close(ctx context.Context) error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.stop)
	})
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case reply := <-w.flushCh:
			w.drain()
			close(reply)
		case <-w.stop:
			w.drain()
			return
		}
	}
}

// drain writes queued snapshots until the queue is empty.
func (w *Writer) drain() {
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.mu.Unlock()
			return
		}
		batch := w.pending
		w.pending = make(map[string][]byte)
		w.writing = batch
		w.mu.Unlock()

		keys := make([]string, 0, len(batch))
		for key := range batch {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := w.backend.Write(ctx, key, batch[key])
			cancel()
			if err != nil {
				w.mu.Lock()
				w.lastErr = err
				w.mu.Unlock()
				w.report(key, err)
			}
		}

		w.mu.Lock()
		w.writing = nil
		w.mu.Unlock()
	}
}
