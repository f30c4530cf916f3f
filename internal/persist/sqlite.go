package persist

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/tempo/internal/db"
	"github.com/hpungsan/tempo/internal/errors"
)

// SQLiteBackend stores snapshots in the snapshots table of a tempo database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend wraps a database opened with db.Init.
func NewSQLiteBackend(database *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{db: database}
}

// Read returns the stored snapshot for key.
func (b *SQLiteBackend) Read(ctx context.Context, key string) ([]byte, bool, error) {
	s, err := db.GetSnapshot(ctx, b.db, key)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s.Data, true, nil
}

// Write upserts the snapshot for key under a fresh revision.
func (b *SQLiteBackend) Write(ctx context.Context, key string, data []byte) error {
	now := time.Now()
	revision, err := newRevision(now)
	if err != nil {
		return errors.NewInternal(err)
	}
	return db.PutSnapshot(ctx, b.db, &db.Snapshot{
		Key:       key,
		Data:      data,
		Revision:  revision,
		UpdatedAt: now.Unix(),
	})
}

// Revisions lists stored snapshot metadata (key, revision, updated_at).
func (b *SQLiteBackend) Revisions(ctx context.Context) ([]db.Snapshot, error) {
	return db.ListSnapshots(ctx, b.db)
}

// newRevision generates a ULID for a snapshot write.
func newRevision(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
