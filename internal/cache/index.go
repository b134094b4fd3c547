// Package cache maintains the SQLite index of normalized media written to
// the cache directory.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pocketllm/mediabox/internal/types"
)

func init() {
	// modernc's driver registers as "sqlite", which sqlx does not know;
	// it uses ? placeholders like sqlite3.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Entry is one normalized media file tracked by the index. Timestamps are
// stored as unix seconds to keep the schema driver-agnostic.
type Entry struct {
	ID        string `db:"id" json:"id"`
	Reference string `db:"reference" json:"reference"`
	Path      string `db:"path" json:"path"`
	Format    string `db:"format" json:"format"`
	Width     int    `db:"width" json:"width"`
	Height    int    `db:"height" json:"height"`
	SizeBytes int64  `db:"size_bytes" json:"size_bytes"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// CreatedTime returns the entry creation time.
func (e *Entry) CreatedTime() time.Time {
	return time.Unix(e.CreatedAt, 0)
}

// Stats summarizes the index for the cache API.
type Stats struct {
	Entries    int64      `json:"entries"`
	TotalBytes int64      `json:"total_bytes"`
	OldestAt   *time.Time `json:"oldest_at,omitempty"`
}

// Index provides data access for the normalized-media index.
type Index struct {
	db *sqlx.DB
}

// NewIndex returns an Index backed by the given database.
func NewIndex(db *sqlx.DB) *Index {
	return &Index{db: db}
}

// Ping verifies the index database is reachable.
func (i *Index) Ping(ctx context.Context) error {
	return i.db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS normalized_media (
	id         TEXT PRIMARY KEY,
	reference  TEXT NOT NULL,
	path       TEXT NOT NULL,
	format     TEXT NOT NULL,
	width      INTEGER NOT NULL,
	height     INTEGER NOT NULL,
	size_bytes INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_normalized_media_created_at
	ON normalized_media (created_at);
`

// Migrate creates the index schema if it does not exist.
func (i *Index) Migrate(ctx context.Context) error {
	if _, err := i.db.ExecContext(ctx, schema); err != nil {
		return types.NewConfigError("cache.index", err.Error())
	}
	return nil
}

// Insert records a freshly written normalized media file.
func (i *Index) Insert(ctx context.Context, e *Entry) error {
	slog.Debug("Index insert", "id", e.ID, "format", e.Format, "size", e.SizeBytes)
	_, err := i.db.ExecContext(ctx,
		`INSERT INTO normalized_media (id, reference, path, format, width, height, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Reference, e.Path, e.Format, e.Width, e.Height, e.SizeBytes, e.CreatedAt)
	return err
}

// Get retrieves one entry by ID.
func (i *Index) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := i.db.GetContext(ctx, &e,
		`SELECT id, reference, path, format, width, height, size_bytes, created_at
		 FROM normalized_media WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewNotFoundError("media", id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Delete removes one entry by ID.
func (i *Index) Delete(ctx context.Context, id string) error {
	res, err := i.db.ExecContext(ctx, `DELETE FROM normalized_media WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.NewNotFoundError("media", id)
	}
	return nil
}

// Stats returns entry count, total bytes, and the oldest entry time.
func (i *Index) Stats(ctx context.Context) (*Stats, error) {
	var row struct {
		Entries    int64         `db:"entries"`
		TotalBytes sql.NullInt64 `db:"total_bytes"`
		OldestAt   sql.NullInt64 `db:"oldest_at"`
	}
	err := i.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS entries,
		        SUM(size_bytes) AS total_bytes,
		        MIN(created_at) AS oldest_at
		 FROM normalized_media`)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Entries:    row.Entries,
		TotalBytes: row.TotalBytes.Int64,
	}
	if row.OldestAt.Valid {
		ts := time.Unix(row.OldestAt.Int64, 0)
		stats.OldestAt = &ts
	}
	return stats, nil
}

// ListPaths returns every file path currently tracked by the index.
func (i *Index) ListPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := i.db.SelectContext(ctx, &paths, `SELECT path FROM normalized_media`)
	return paths, err
}

// ListOlderThan returns entries created before the cutoff, oldest first.
func (i *Index) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	var entries []Entry
	err := i.db.SelectContext(ctx, &entries,
		`SELECT id, reference, path, format, width, height, size_bytes, created_at
		 FROM normalized_media WHERE created_at < ? ORDER BY created_at`, cutoff.Unix())
	return entries, err
}

// ListOverflow returns all entries beyond the newest keep entries, oldest last.
func (i *Index) ListOverflow(ctx context.Context, keep int) ([]Entry, error) {
	var entries []Entry
	err := i.db.SelectContext(ctx, &entries,
		`SELECT id, reference, path, format, width, height, size_bytes, created_at
		 FROM normalized_media
		 ORDER BY created_at DESC, id LIMIT -1 OFFSET ?`, keep)
	return entries, err
}
