package service

import (
	"context"
	"fmt"

	"github.com/run365/dashboard-go/internal/bind"
	"github.com/run365/dashboard-go/internal/models"
	"github.com/run365/dashboard-go/internal/session"
)

// AccountBackend reads and unbinds third-party accounts
type AccountBackend interface {
	GetMe(ctx context.Context) (*models.UserInfo, error)
	DeleteThirdPartyAccount(ctx context.Context, accountID int64) error
}

// BindService links fitness platform accounts and handles WeChat login
type BindService struct {
	registry *bind.Registry
	sessions session.Store
	accounts AccountBackend
}

// NewBindService creates a new bind service
func NewBindService(registry *bind.Registry, sessions session.Store, accounts AccountBackend) *BindService {
	return &BindService{
		registry: registry,
		sessions: sessions,
		accounts: accounts,
	}
}

// GetProviders lists the configured providers
func (s *BindService) GetProviders() []string {
	return s.registry.Names()
}

// Begin starts a flow and returns the authorization URL
func (s *BindService) Begin(provider, sid string) (*bind.Start, error) {
	start, err := s.registry.Begin(provider, sid)
	if err != nil {
		return nil, err
	}
	return &start, nil
}

// Complete finishes a flow. Tokens returned by a login flow go into the
// session store and never back to the browser.
func (s *BindService) Complete(ctx context.Context, provider, sid string, cb bind.Callback) (*bind.Outcome, error) {
	out, err := s.registry.Complete(ctx, provider, sid, cb)
	if err != nil {
		return nil, err
	}
	if out.Tokens != nil {
		tokens := session.Tokens{Token: out.Tokens.Token, Refresh: out.Tokens.Refresh}
		if err := s.sessions.Set(ctx, sid, tokens); err != nil {
			return nil, fmt.Errorf("failed to store session: %w", err)
		}
		out.Tokens = nil
	}
	return &out, nil
}

// GetAccounts lists the user's bound accounts
func (s *BindService) GetAccounts(ctx context.Context) ([]models.ThirdPartyAccount, error) {
	me, err := s.accounts.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	if me.ThirdPartyAccounts == nil {
		return []models.ThirdPartyAccount{}, nil
	}
	return me.ThirdPartyAccounts, nil
}

// Unbind removes a bound account
func (s *BindService) Unbind(ctx context.Context, accountID int64) error {
	if err := s.accounts.DeleteThirdPartyAccount(ctx, accountID); err != nil {
		return fmt.Errorf("failed to unbind account: %w", err)
	}
	return nil
}
