// Package bind runs the OAuth style flows that link a fitness platform
// account (Strava, Garmin, Coros) to the user, plus the WeChat login.
//
// Each provider builds its authorization URL and handles its callback. The
// per-session pending state (CSRF state and PKCE verifier) is kept in a
// short lived cache instead of the browser.
package bind

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/metrics"
	"github.com/run365/dashboard-go/internal/models"
)

var (
	ErrUnknownProvider = errors.New("unknown bind provider")
	ErrStateMismatch   = errors.New("授权状态不匹配，请重新绑定")

	// Callback failures, worded for display
	ErrDenied         = errors.New("授权失败")
	ErrNoCode         = errors.New("未获取到授权码")
	ErrSessionExpired = errors.New("授权会话已过期，请重新绑定")
	ErrExchange       = errors.New("绑定失败")
)

// Exchanger posts a callback code to the backend
type Exchanger interface {
	PostJSON(ctx context.Context, path string, in, out any) error
}

// Start is where the browser goes to authorize
type Start struct {
	Provider string `json:"provider"`
	AuthURL  string `json:"authUrl"`
}

// Callback holds the query parameters a provider redirects back with
type Callback struct {
	Code             string `form:"code"`
	State            string `form:"state"`
	Scope            string `form:"scope"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

// Outcome of a completed callback
type Outcome struct {
	Provider string `json:"provider"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`

	// Tokens is set by login flows. The caller stores them in the session.
	Tokens *models.TokenPair `json:"-"`
}

// Provider is one bindable platform
type Provider interface {
	Name() string
	Begin(sid string) (Start, error)
	Complete(ctx context.Context, sid string, cb Callback) (Outcome, error)
}

type pending struct {
	State    string
	Verifier string
}

// PendingStore keeps in-progress flows keyed by session and provider.
// Entries expire after the TTL and are consumed on use.
type PendingStore struct {
	cache *expirable.LRU[string, pending]
}

func NewPendingStore(size int, ttl time.Duration) *PendingStore {
	return &PendingStore{cache: expirable.NewLRU[string, pending](size, nil, ttl)}
}

func pendingKey(sid, provider string) string {
	return provider + ":" + sid
}

func (s *PendingStore) put(sid, provider string, p pending) {
	s.cache.Add(pendingKey(sid, provider), p)
}

func (s *PendingStore) take(sid, provider string) (pending, bool) {
	key := pendingKey(sid, provider)
	p, ok := s.cache.Get(key)
	if ok {
		s.cache.Remove(key)
	}
	return p, ok
}

// Len is the number of flows awaiting a callback
func (s *PendingStore) Len() int {
	return s.cache.Len()
}

// checkCallback applies the checks every provider shares: a provider
// error, a missing code, a lost or mismatched pending state.
func checkCallback(store *PendingStore, sid, provider string, cb Callback) (pending, error) {
	if cb.Error != "" {
		desc := cb.ErrorDescription
		if desc == "" {
			desc = cb.Error
		}
		return pending{}, fmt.Errorf("%w: %s", ErrDenied, desc)
	}
	if cb.Code == "" {
		return pending{}, ErrNoCode
	}
	p, ok := store.take(sid, provider)
	if !ok {
		return pending{}, ErrSessionExpired
	}
	if cb.State != p.State {
		return pending{}, ErrStateMismatch
	}
	return p, nil
}

// Registry holds the configured providers
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Names lists the registered providers, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Begin starts a flow for the session
func (r *Registry) Begin(name, sid string) (Start, error) {
	p, err := r.Get(name)
	if err != nil {
		return Start{}, err
	}
	return p.Begin(sid)
}

// Complete finishes a flow and records the attempt
func (r *Registry) Complete(ctx context.Context, name, sid string, cb Callback) (Outcome, error) {
	p, err := r.Get(name)
	if err != nil {
		return Outcome{}, err
	}
	out, err := p.Complete(ctx, sid, cb)
	metrics.RecordBind(name, err == nil)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("provider", name).Msg("[Bind] callback failed")
		return Outcome{}, err
	}
	logging.Ctx(ctx).Info().Str("provider", name).Msg("[Bind] callback completed")
	return out, nil
}
