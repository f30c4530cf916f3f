package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/tempo/internal/errors"
)

// Snapshot is one stored snapshot row.
type Snapshot struct {
	Key       string `json:"key"`
	Data      []byte `json:"-"`
	Revision  string `json:"revision"`   // ULID assigned on write
	UpdatedAt int64  `json:"updated_at"` // unix seconds
}

// GetSnapshot retrieves the snapshot stored under key.
// Returns a NOT_FOUND error if no snapshot exists.
func GetSnapshot(ctx context.Context, db *sql.DB, key string) (*Snapshot, error) {
	query := `
		SELECT key, data, revision, updated_at
		FROM snapshots
		WHERE key = ?
	`

	var (
		s    Snapshot
		data string
	)
	err := db.QueryRowContext(ctx, query, key).Scan(&s.Key, &data, &s.Revision, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &errors.TempoError{
			Code:    errors.ErrNotFound,
			Status:  404,
			Message: "snapshot not found: " + key,
			Details: map[string]any{"key": key},
		}
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	s.Data = []byte(data)

	return &s, nil
}

// PutSnapshot inserts or replaces the snapshot stored under key.
func PutSnapshot(ctx context.Context, db *sql.DB, s *Snapshot) error {
	query := `
		INSERT INTO snapshots (key, data, revision, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`

	if _, err := db.ExecContext(ctx, query, s.Key, string(s.Data), s.Revision, s.UpdatedAt); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListSnapshots returns metadata for every stored snapshot, ordered by key.
// Data is left empty.
func ListSnapshots(ctx context.Context, db *sql.DB) ([]Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, revision, updated_at FROM snapshots ORDER BY key`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var result []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.Key, &s.Revision, &s.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return result, nil
}
