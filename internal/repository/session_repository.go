package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/run365/dashboard-go/internal/session"
)

// SessionRepository stores backend tokens by session ID
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Get(ctx context.Context, sid string) (session.Tokens, error) {
	var t session.Tokens
	err := r.db.QueryRowContext(ctx,
		`SELECT token, refresh_token, updated_at FROM sessions WHERE id = ?`, sid,
	).Scan(&t.Token, &t.Refresh, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Tokens{}, session.ErrNoToken
	}
	if err != nil {
		return session.Tokens{}, fmt.Errorf("failed to get session: %w", err)
	}
	return t, nil
}

func (r *SessionRepository) Set(ctx context.Context, sid string, t session.Tokens) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, refresh_token, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, refresh_token = excluded.refresh_token, updated_at = excluded.updated_at`,
		sid, t.Token, t.Refresh, t.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context, sid string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sid); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// DeleteIdle drops sessions not updated since cutoff
func (r *SessionRepository) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return res.RowsAffected()
}
