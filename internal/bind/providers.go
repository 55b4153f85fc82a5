package bind

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/run365/dashboard-go/internal/models"
)

// Provider names as used in URLs
const (
	Strava = "strava"
	Garmin = "garmin"
	Coros  = "coros"
	WeChat = "wechat"
)

const successRedirect = "/bindSuccess"

// Config for all providers. Redirect URIs must match what is registered
// with each platform.
type Config struct {
	StravaClientID    string `koanf:"strava_client_id"`
	StravaRedirectURI string `koanf:"strava_redirect_uri"`

	GarminClientID    string `koanf:"garmin_client_id"`
	GarminRedirectURI string `koanf:"garmin_redirect_uri"`

	CorosClientID    string `koanf:"coros_client_id"`
	CorosRedirectURI string `koanf:"coros_redirect_uri"`

	WeChatAppID       string `koanf:"wechat_app_id"`
	WeChatRedirectURI string `koanf:"wechat_redirect_uri"`

	PendingTTL  time.Duration `koanf:"pending_ttl"`
	PendingSize int           `koanf:"pending_size"`
}

// NewDefaultRegistry registers every provider with a client ID configured
func NewDefaultRegistry(cfg Config, ex Exchanger) (*Registry, *PendingStore) {
	store := NewPendingStore(cfg.PendingSize, cfg.PendingTTL)
	var ps []Provider
	if cfg.StravaClientID != "" {
		ps = append(ps, &StravaProvider{clientID: cfg.StravaClientID, redirectURI: cfg.StravaRedirectURI, store: store, ex: ex})
	}
	if cfg.GarminClientID != "" {
		ps = append(ps, &GarminProvider{clientID: cfg.GarminClientID, redirectURI: cfg.GarminRedirectURI, store: store, ex: ex})
	}
	if cfg.CorosClientID != "" {
		ps = append(ps, &CorosProvider{clientID: cfg.CorosClientID, redirectURI: cfg.CorosRedirectURI, store: store, ex: ex, now: time.Now})
	}
	if cfg.WeChatAppID != "" {
		ps = append(ps, &WeChatProvider{appID: cfg.WeChatAppID, redirectURI: cfg.WeChatRedirectURI, store: store, ex: ex})
	}
	return NewRegistry(ps...), store
}

// encodeState is base64 JSON, the shape the platforms echo back untouched
func encodeState(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// StravaProvider binds a Strava account
type StravaProvider struct {
	clientID    string
	redirectURI string
	store       *PendingStore
	ex          Exchanger
}

func (p *StravaProvider) Name() string { return Strava }

func (p *StravaProvider) Begin(sid string) (Start, error) {
	state := uuid.NewString()
	cfg := oauth2.Config{
		ClientID:    p.clientID,
		RedirectURL: p.redirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: "https://www.strava.com/oauth/authorize"},
	}
	authURL := cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("approval_prompt", "force"),
		oauth2.SetAuthURLParam("scope", "activity:read_all"),
	)
	p.store.put(sid, Strava, pending{State: state})
	return Start{Provider: Strava, AuthURL: authURL}, nil
}

func (p *StravaProvider) Complete(ctx context.Context, sid string, cb Callback) (Outcome, error) {
	if _, err := checkCallback(p.store, sid, Strava, cb); err != nil {
		return Outcome{}, err
	}

	var resp struct {
		Errors any `json:"errors"`
	}
	body := map[string]string{"code": cb.Code, "scope": cb.Scope}
	if err := p.ex.PostJSON(ctx, "/api/v1/m/strava_auth", body, &resp); err != nil {
		return Outcome{}, fmt.Errorf("failed to exchange strava code: %w", err)
	}
	if resp.Errors != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrExchange, resp.Errors)
	}
	return Outcome{Provider: Strava, Message: "Strava 账号绑定成功！", Redirect: successRedirect}, nil
}

// GarminProvider binds a Garmin China account using PKCE
type GarminProvider struct {
	clientID    string
	redirectURI string
	store       *PendingStore
	ex          Exchanger
}

func (p *GarminProvider) Name() string { return Garmin }

func (p *GarminProvider) Begin(sid string) (Start, error) {
	state, err := encodeState(struct {
		Redirect string `json:"redirect"`
		Nonce    string `json:"nonce"`
	}{successRedirect, uuid.NewString()})
	if err != nil {
		return Start{}, err
	}
	verifier := oauth2.GenerateVerifier()

	cfg := oauth2.Config{
		ClientID:    p.clientID,
		RedirectURL: p.redirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: "https://connect.garmin.cn/oauth2Confirm"},
	}
	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	p.store.put(sid, Garmin, pending{State: state, Verifier: verifier})
	return Start{Provider: Garmin, AuthURL: authURL}, nil
}

func (p *GarminProvider) Complete(ctx context.Context, sid string, cb Callback) (Outcome, error) {
	pd, err := checkCallback(p.store, sid, Garmin, cb)
	if err != nil {
		return Outcome{}, err
	}

	var resp struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	body := map[string]string{
		"code":          cb.Code,
		"code_verifier": pd.Verifier,
		"redirect_uri":  p.redirectURI,
	}
	if err := p.ex.PostJSON(ctx, "/auth/garmin-bind/", body, &resp); err != nil {
		return Outcome{}, fmt.Errorf("failed to exchange garmin code: %w", err)
	}
	if resp.Status != "success" {
		if resp.Error != "" {
			return Outcome{}, fmt.Errorf("%w: %s", ErrExchange, resp.Error)
		}
		return Outcome{}, ErrExchange
	}
	return Outcome{Provider: Garmin, Message: "Garmin 账号绑定成功！", Redirect: successRedirect}, nil
}

// CorosProvider binds a Coros account
type CorosProvider struct {
	clientID    string
	redirectURI string
	store       *PendingStore
	ex          Exchanger
	now         func() time.Time
}

func (p *CorosProvider) Name() string { return Coros }

func (p *CorosProvider) Begin(sid string) (Start, error) {
	state, err := encodeState(struct {
		Redirect  string `json:"redirect"`
		Timestamp int64  `json:"timestamp"`
		Nonce     string `json:"nonce"`
	}{successRedirect, p.now().UnixMilli(), uuid.NewString()})
	if err != nil {
		return Start{}, err
	}

	cfg := oauth2.Config{
		ClientID:    p.clientID,
		RedirectURL: p.redirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: "https://open.coros.com/oauth2/authorize"},
	}
	p.store.put(sid, Coros, pending{State: state})
	return Start{Provider: Coros, AuthURL: cfg.AuthCodeURL(state)}, nil
}

func (p *CorosProvider) Complete(ctx context.Context, sid string, cb Callback) (Outcome, error) {
	if _, err := checkCallback(p.store, sid, Coros, cb); err != nil {
		return Outcome{}, err
	}

	body := map[string]string{
		"code":         cb.Code,
		"state":        cb.State,
		"redirect_uri": p.redirectURI,
	}
	if err := p.ex.PostJSON(ctx, "/api/v2/auth/coros-bind/", body, nil); err != nil {
		return Outcome{}, fmt.Errorf("failed to exchange coros code: %w", err)
	}
	return Outcome{
		Provider: Coros,
		Message:  "高驰 (Coros) 账号绑定成功！您的运动记录会自动同步到跑者日历平台",
		Redirect: successRedirect,
	}, nil
}

// WeChatProvider logs the user in through the WeChat official account.
// Its outcome carries the backend tokens.
type WeChatProvider struct {
	appID       string
	redirectURI string
	store       *PendingStore
	ex          Exchanger
}

func (p *WeChatProvider) Name() string { return WeChat }

func (p *WeChatProvider) Begin(sid string) (Start, error) {
	state := uuid.NewString()
	p.store.put(sid, WeChat, pending{State: state})

	// parameter order matters to WeChat, so no url.Values.Encode
	authURL := "https://open.weixin.qq.com/connect/oauth2/authorize" +
		"?appid=" + url.QueryEscape(p.appID) +
		"&redirect_uri=" + url.QueryEscape(p.redirectURI) +
		"&response_type=code&scope=snsapi_userinfo" +
		"&state=" + url.QueryEscape(state) +
		"#wechat_redirect"
	return Start{Provider: WeChat, AuthURL: authURL}, nil
}

func (p *WeChatProvider) Complete(ctx context.Context, sid string, cb Callback) (Outcome, error) {
	if _, err := checkCallback(p.store, sid, WeChat, cb); err != nil {
		return Outcome{}, err
	}

	var tokens models.TokenPair
	if err := p.ex.PostJSON(ctx, "/api/v2/auth/wechat-login/", map[string]string{"code": cb.Code}, &tokens); err != nil {
		return Outcome{}, fmt.Errorf("failed to exchange wechat code: %w", err)
	}
	if tokens.Token == "" {
		return Outcome{}, fmt.Errorf("%w: empty token", ErrExchange)
	}
	return Outcome{Provider: WeChat, Message: "登录成功", Redirect: "/", Tokens: &tokens}, nil
}
