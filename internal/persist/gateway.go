// Package persist stores named JSON snapshots in a local durable key-value store.
//
// It has no business logic: callers decide what a snapshot looks like and convert
// typed fields (timestamps) themselves.
package persist

import (
	"context"
	"encoding/json"
)

// Snapshot keys used by the stores.
const (
	KeyTimer  = "timer"
	KeyTasks  = "tasks"
	KeyEvents = "events"
	KeyNotes  = "notes"
)

// Gateway loads and saves snapshots.
type Gateway interface {
	// Load returns the raw snapshot for key. ok is false when none was ever saved.
	Load(ctx context.Context, key string) (data json.RawMessage, ok bool, err error)
	// Save records snapshot under key. Implementations may complete the write
	// after returning; a nil error means the snapshot was accepted.
	Save(ctx context.Context, key string, snapshot any) error
}

// Backend is the durable storage a Writer writes through to.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, data []byte) error
}

// SaveOrReport saves snapshot through gw and hands a rejected save to report.
// Callers use it after an in-memory mutation that must stand regardless of
// whether the snapshot is accepted.
func SaveOrReport(ctx context.Context, gw Gateway, key string, snapshot any, report ErrorReporter) {
	if err := gw.Save(ctx, key, snapshot); err != nil {
		if report == nil {
			report = LogReporter
		}
		report(key, err)
	}
}
