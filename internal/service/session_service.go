package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/session"
)

var (
	ErrEmptyToken   = errors.New("token is required")
	ErrTokenExpired = errors.New("token expired")
)

// SessionStatus describes the login state of a session
type SessionStatus struct {
	LoggedIn  bool       `json:"loggedIn"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// SessionService keeps the backend tokens of each browser session
type SessionService struct {
	store session.Store
	now   func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(store session.Store) *SessionService {
	return &SessionService{store: store, now: time.Now}
}

// Login stores the token pair for the session
func (s *SessionService) Login(ctx context.Context, sid, token, refresh string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if session.TokenExpired(token, s.now()) {
		return ErrTokenExpired
	}
	if err := s.store.Set(ctx, sid, session.Tokens{Token: token, Refresh: refresh}); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Logout forgets the session's tokens
func (s *SessionService) Logout(ctx context.Context, sid string) error {
	if err := s.store.Clear(ctx, sid); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// GetStatus reports whether the session holds a live token
func (s *SessionService) GetStatus(ctx context.Context, sid string) (*SessionStatus, error) {
	t, err := s.store.Get(ctx, sid)
	if errors.Is(err, session.ErrNoToken) {
		return &SessionStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	status := &SessionStatus{
		LoggedIn:  !session.TokenExpired(t.Token, s.now()),
		UpdatedAt: &t.UpdatedAt,
	}
	if exp, ok := session.TokenExpiry(t.Token); ok {
		status.ExpiresAt = &exp
	}
	return status, nil
}

// Token returns the session's backend token when it is present and not
// expired
func (s *SessionService) Token(ctx context.Context, sid string) (string, bool) {
	t, err := s.store.Get(ctx, sid)
	if err != nil {
		if !errors.Is(err, session.ErrNoToken) {
			logging.Ctx(ctx).Warn().Err(err).Msg("[Session] token lookup failed")
		}
		return "", false
	}
	if session.TokenExpired(t.Token, s.now()) {
		return "", false
	}
	return t.Token, true
}
