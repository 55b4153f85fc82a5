package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RouteFileRepository caches raw route file text by URL
type RouteFileRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRouteFileRepository creates a new route file repository
func NewRouteFileRepository(db *sql.DB) *RouteFileRepository {
	return &RouteFileRepository{db: db, now: time.Now}
}

// GetRouteFile returns the cached text of fileURL when it is younger than
// maxAge. A zero maxAge accepts any age.
func (r *RouteFileRepository) GetRouteFile(ctx context.Context, fileURL string, maxAge time.Duration) ([]byte, bool, error) {
	var content []byte
	var fetchedAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT content, fetched_at FROM route_files WHERE url = ?`, fileURL,
	).Scan(&content, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get route file: %w", err)
	}

	if maxAge > 0 && r.now().Sub(fetchedAt) > maxAge {
		return nil, false, nil
	}
	return content, true, nil
}

// PutRouteFile stores or replaces the text of fileURL
func (r *RouteFileRepository) PutRouteFile(ctx context.Context, fileURL string, data []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO route_files (url, content, size, fetched_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET content = excluded.content, size = excluded.size, fetched_at = excluded.fetched_at`,
		fileURL, data, len(data), r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store route file: %w", err)
	}
	return nil
}

// DeleteOlderThan drops cached files fetched before cutoff
func (r *RouteFileRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM route_files WHERE fetched_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune route files: %w", err)
	}
	return res.RowsAffected()
}
