package app

import (
	"context"

	"github.com/hpungsan/tempo/internal/db"
	"github.com/hpungsan/tempo/internal/errors"
)

// StatusOutput describes where state lives and how the last writes went.
type StatusOutput struct {
	BaseDir   string        `json:"base_dir"`
	Backend   string        `json:"backend"`
	Snapshots []db.Snapshot `json:"snapshots,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Status waits for queued snapshots to be written, then reports the backend,
// the stored snapshot revisions (sqlite only) and the latest write failure.
func (a *App) Status(ctx context.Context) (*StatusOutput, error) {
	if err := a.writer.Flush(ctx); err != nil {
		return nil, errors.NewCancelled("status")
	}
	out := &StatusOutput{BaseDir: a.baseDir, Backend: a.cfg.Backend}
	if a.sqlite != nil {
		snaps, err := a.sqlite.Revisions(ctx)
		if err != nil {
			return nil, err
		}
		out.Snapshots = snaps
	}
	if err := a.writer.LastError(); err != nil {
		out.LastError = err.Error()
	}
	return out, nil
}
