// Package session keeps the Run365 backend tokens of each browser session.
//
// The browser only holds a signed cookie carrying a session ID. The backend
// token and refresh token live in a Store keyed by that ID and are put on
// the request context for outbound calls.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoToken is returned when a session has no stored token
var ErrNoToken = errors.New("no session token")

// Tokens is the credential pair issued by the backend login
type Tokens struct {
	Token     string    `json:"token"`
	Refresh   string    `json:"refresh,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists tokens by session ID
type Store interface {
	Get(ctx context.Context, sid string) (Tokens, error)
	Set(ctx context.Context, sid string, t Tokens) error
	Clear(ctx context.Context, sid string) error
}

// MemoryStore is a Store that lives as long as the process
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]Tokens
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]Tokens)}
}

func (s *MemoryStore) Get(_ context.Context, sid string) (Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[sid]
	if !ok || t.Token == "" {
		return Tokens{}, ErrNoToken
	}
	return t, nil
}

func (s *MemoryStore) Set(_ context.Context, sid string, t Tokens) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	s.tokens[sid] = t
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sid string) error {
	s.mu.Lock()
	delete(s.tokens, sid)
	s.mu.Unlock()
	return nil
}

type tokenKey struct{}

// WithToken puts the backend token on ctx
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the backend token carried by ctx
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey{}).(string)
	return t, ok && t != ""
}
