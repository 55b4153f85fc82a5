package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/run365/dashboard-go/internal/bind"
	"github.com/run365/dashboard-go/internal/config"
	"github.com/run365/dashboard-go/internal/models"
	"github.com/run365/dashboard-go/internal/profile"
	"github.com/run365/dashboard-go/internal/route"
	"github.com/run365/dashboard-go/internal/session"
)

type fakeSource struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeSource) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

type mapStore map[string][]byte

func (m mapStore) GetRouteFile(_ context.Context, u string, _ time.Duration) ([]byte, bool, error) {
	d, ok := m[u]
	return d, ok, nil
}

func (m mapStore) PutRouteFile(_ context.Context, u string, data []byte) error {
	m[u] = data
	return nil
}

type fakeLoader struct {
	res *route.Result
	err error
}

func (f fakeLoader) Load(_ context.Context, _ string) (*route.Result, error) {
	return f.res, f.err
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return tok
}

func TestRouteServiceCheckURL(t *testing.T) {
	s := NewRouteService(nil, nil, nil, route.NewHostPolicy([]string{"files.run365.info", " oss.example.com ", ""}), 0)
	tests := []struct {
		url  string
		want error
	}{
		{"https://files.run365.info/a.gpx", nil},
		{"https://cdn.oss.example.com/b.kml", nil},
		{"http://OSS.example.com/b.kml", nil},
		{"https://evil.com/a.gpx", ErrHostNotAllowed},
		{"https://notfiles.run365.info.evil.com/a.gpx", ErrHostNotAllowed},
		{"ftp://files.run365.info/a.gpx", ErrInvalidFileURL},
		{"/relative.gpx", ErrInvalidFileURL},
		{"", ErrInvalidFileURL},
	}
	for _, tt := range tests {
		err := s.CheckURL(tt.url)
		if !errors.Is(err, tt.want) && !(err == nil && tt.want == nil) {
			t.Errorf("CheckURL(%q) = %v, want %v", tt.url, err, tt.want)
		}
	}

	for _, hosts := range []*route.HostPolicy{nil, route.NewHostPolicy(nil), route.NewHostPolicy([]string{" "})} {
		closed := NewRouteService(nil, nil, nil, hosts, 0)
		if err := closed.CheckURL("https://anything.org/x.gpx"); !errors.Is(err, ErrHostNotAllowed) {
			t.Errorf("empty allowlist should reject every host, got %v", err)
		}
	}
}

// internalServer stands in for an admin endpoint on the loopback interface
func internalServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("INTERNAL-ONLY admin secret"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRouteServiceProxyDefaultsRejectInternalHosts(t *testing.T) {
	srv, hits := internalServer(t)
	hosts := route.NewHostPolicy(config.Defaults().Route.AllowedHosts)
	s := NewRouteService(route.NewFetcher(route.NewClient(route.ClientConfig{CheckRedirect: hosts.Check}), ""), nil, nil, hosts, 0)

	data, err := s.ProxyFile(context.Background(), srv.URL+"/admin")
	if !errors.Is(err, ErrHostNotAllowed) || data != nil {
		t.Fatalf("ProxyFile() = %q, %v; want ErrHostNotAllowed", data, err)
	}
	if hits.Load() != 0 {
		t.Fatalf("internal server was contacted")
	}
}

func TestRouteServiceProxyRefusesPrivateAddresses(t *testing.T) {
	srv, hits := internalServer(t)
	u, _ := url.Parse(srv.URL)
	// even an allowlisted name may not resolve to a loopback address
	hosts := route.NewHostPolicy([]string{u.Hostname()})
	s := NewRouteService(route.NewFetcher(route.NewClient(route.ClientConfig{}), ""), nil, nil, hosts, 0)

	_, err := s.ProxyFile(context.Background(), srv.URL+"/admin")
	if !errors.Is(err, route.ErrBlockedAddress) || !errors.Is(err, route.ErrFetch) {
		t.Fatalf("ProxyFile() error = %v, want a blocked address", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("internal server was contacted")
	}

	allowed := NewRouteService(route.NewFetcher(route.NewClient(route.ClientConfig{AllowPrivate: true}), ""), nil, nil, hosts, 0)
	if data, err := allowed.ProxyFile(context.Background(), srv.URL+"/admin"); err != nil || len(data) == 0 {
		t.Fatalf("AllowPrivate ProxyFile() = %q, %v", data, err)
	}
}

func TestRouteServiceProxyStopsForeignRedirects(t *testing.T) {
	var hops atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops.Add(1)
		switch r.URL.Path {
		case "/same":
			http.Redirect(w, r, "/file.gpx", http.StatusFound)
		case "/file.gpx":
			_, _ = w.Write([]byte("<gpx/>"))
		default:
			http.Redirect(w, r, "http://metadata.internal/latest", http.StatusFound)
		}
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)

	hosts := route.NewHostPolicy([]string{u.Hostname()})
	client := route.NewClient(route.ClientConfig{AllowPrivate: true, CheckRedirect: hosts.Check})
	s := NewRouteService(route.NewFetcher(client, ""), nil, nil, hosts, 0)

	if _, err := s.ProxyFile(context.Background(), srv.URL+"/away"); !errors.Is(err, ErrHostNotAllowed) {
		t.Fatalf("ProxyFile() error = %v, want ErrHostNotAllowed", err)
	}
	if data, err := s.ProxyFile(context.Background(), srv.URL+"/same"); err != nil || string(data) != "<gpx/>" {
		t.Fatalf("redirect within the allowlist: %q, %v", data, err)
	}
	if n := hops.Load(); n != 3 {
		t.Fatalf("expected 3 requests, got %d", n)
	}
}

func TestRouteServiceProxyFile(t *testing.T) {
	src := &fakeSource{data: []byte("<gpx/>")}
	store := mapStore{}
	s := NewRouteService(src, store, nil, route.NewHostPolicy([]string{"x.org"}), time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		data, err := s.ProxyFile(ctx, "https://x.org/a.gpx")
		if err != nil || string(data) != "<gpx/>" {
			t.Fatalf("ProxyFile() = %q, %v", data, err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("second call should be served from the store, fetched %d times", src.calls)
	}

	src.err = route.ErrFetch
	if _, err := s.ProxyFile(ctx, "https://x.org/b.gpx"); !errors.Is(err, route.ErrFetch) {
		t.Fatalf("ProxyFile() error = %v, want ErrFetch", err)
	}
}

func TestRouteServiceGetProfile(t *testing.T) {
	res := &route.Result{
		URL:    "https://x.org/a.gpx",
		Format: route.FormatGPX,
		Elevation: profile.Profile{
			{Distance: 0, Elevation: 100},
			{Distance: 1.2, Elevation: 250},
		},
	}
	hosts := route.NewHostPolicy([]string{"x.org"})
	s := NewRouteService(nil, nil, fakeLoader{res: res}, hosts, 0)
	p, err := s.GetProfile(context.Background(), res.URL)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if p.YMin != 90 || p.YMax != 260 || p.TotalDistance != 1.2 || len(p.Elevation) != 2 {
		t.Fatalf("GetProfile() = %+v", p)
	}
	if p.Summary.TotalAscent != 150 || p.Summary.MaxElevation != 250 {
		t.Fatalf("GetProfile() = %+v", p)
	}

	failing := NewRouteService(nil, nil, fakeLoader{err: route.ErrNoRouteData}, hosts, 0)
	if _, err := failing.GetProfile(context.Background(), res.URL); !errors.Is(err, route.ErrNoRouteData) {
		t.Fatalf("GetProfile() error = %v", err)
	}
}

func TestSessionService(t *testing.T) {
	ctx := context.Background()
	s := NewSessionService(session.NewMemoryStore())

	if err := s.Login(ctx, "sid", "", ""); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("Login() empty error = %v", err)
	}
	if err := s.Login(ctx, "sid", signed(t, time.Now().Add(-time.Minute)), ""); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Login() expired error = %v", err)
	}

	status, err := s.GetStatus(ctx, "sid")
	if err != nil || status.LoggedIn {
		t.Fatalf("GetStatus() before login = %+v, %v", status, err)
	}

	live := signed(t, time.Now().Add(time.Hour))
	if err := s.Login(ctx, "sid", live, "refresh"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	status, err = s.GetStatus(ctx, "sid")
	if err != nil || !status.LoggedIn || status.ExpiresAt == nil {
		t.Fatalf("GetStatus() = %+v, %v", status, err)
	}
	if tok, ok := s.Token(ctx, "sid"); !ok || tok != live {
		t.Fatalf("Token() = %q, %v", tok, ok)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok := s.Token(ctx, "sid"); ok {
		t.Fatalf("expired token must not be handed out")
	}

	if err := s.Logout(ctx, "sid"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, ok := s.Token(ctx, "other"); ok {
		t.Fatalf("unknown session has no token")
	}
}

type loginProvider struct{}

func (loginProvider) Name() string { return "test" }

func (loginProvider) Begin(sid string) (bind.Start, error) {
	return bind.Start{Provider: "test", AuthURL: "https://auth.example.com/?sid=" + sid}, nil
}

func (loginProvider) Complete(_ context.Context, _ string, cb bind.Callback) (bind.Outcome, error) {
	if cb.Code == "" {
		return bind.Outcome{}, bind.ErrNoCode
	}
	return bind.Outcome{
		Provider: "test",
		Message:  "登录成功",
		Redirect: "/",
		Tokens:   &models.TokenPair{Token: "t", Refresh: "r"},
	}, nil
}

type fakeAccounts struct {
	me      *models.UserInfo
	deleted []int64
}

func (f *fakeAccounts) GetMe(context.Context) (*models.UserInfo, error) { return f.me, nil }

func (f *fakeAccounts) DeleteThirdPartyAccount(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestBindService(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	accounts := &fakeAccounts{me: &models.UserInfo{ID: 1}}
	s := NewBindService(bind.NewRegistry(loginProvider{}), store, accounts)

	if names := s.GetProviders(); len(names) != 1 || names[0] != "test" {
		t.Fatalf("GetProviders() = %v", names)
	}
	if _, err := s.Begin("nope", "sid"); !errors.Is(err, bind.ErrUnknownProvider) {
		t.Fatalf("Begin() unknown error = %v", err)
	}

	if _, err := s.Complete(ctx, "test", "sid", bind.Callback{}); !errors.Is(err, bind.ErrNoCode) {
		t.Fatalf("Complete() error = %v", err)
	}
	out, err := s.Complete(ctx, "test", "sid", bind.Callback{Code: "c"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out.Tokens != nil || out.Redirect != "/" {
		t.Fatalf("Complete() = %+v", out)
	}
	got, err := store.Get(ctx, "sid")
	if err != nil || got.Token != "t" || got.Refresh != "r" {
		t.Fatalf("login tokens not stored: %+v, %v", got, err)
	}

	list, err := s.GetAccounts(ctx)
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("GetAccounts() = %v, %v", list, err)
	}
	if err := s.Unbind(ctx, 7); err != nil || len(accounts.deleted) != 1 || accounts.deleted[0] != 7 {
		t.Fatalf("Unbind() = %v, deleted %v", err, accounts.deleted)
	}
}

type fakeRunnerBackend struct {
	created models.TrackedRunnerInput
	err     error
}

func (f *fakeRunnerBackend) CreateTrackedRunner(_ context.Context, in models.TrackedRunnerInput) (*models.TrackedRunner, error) {
	f.created = in
	id := int64(5)
	return &models.TrackedRunner{ID: &id, EventGroup: in.EventGroup, Status: in.Status}, f.err
}

func (f *fakeRunnerBackend) UpdateTrackedRunner(_ context.Context, id int64, in models.TrackedRunnerInput) (*models.TrackedRunner, error) {
	return &models.TrackedRunner{ID: &id, Name: in.Name}, f.err
}

func (f *fakeRunnerBackend) DeleteTrackedRunner(context.Context, int64) error { return f.err }

func TestRunnerService(t *testing.T) {
	ctx := context.Background()
	b := &fakeRunnerBackend{}
	s := NewRunnerService(b)

	r, err := s.CreateRunner(ctx, models.TrackedRunnerInput{EventGroup: 3, Name: "A"})
	if err != nil || *r.ID != 5 || b.created.Status != models.StatusNotStarted {
		t.Fatalf("CreateRunner() = %+v, %v (sent %+v)", r, err, b.created)
	}

	b.err = errors.New("boom")
	if err := s.DeleteRunner(ctx, 5); err == nil || err.Error() != "failed to delete tracked runner: boom" {
		t.Fatalf("DeleteRunner() error = %v", err)
	}
}

type fakeWorkouts struct {
	month, source string
	list          []models.Workout
	err           error
}

func (f *fakeWorkouts) GetWorkouts(_ context.Context, month, source string) ([]models.Workout, error) {
	f.month, f.source = month, source
	return f.list, f.err
}

func TestWorkoutService(t *testing.T) {
	ctx := context.Background()
	cst := time.FixedZone("CST", 8*3600)
	b := &fakeWorkouts{list: []models.Workout{{ID: 1, Day: "2024-05-01", Distance: 21.1, Duration: 7265, Pace: 344, Source: "Strava"}}}
	s := NewWorkoutService(b, cst)
	// 2024-05-31 17:00 UTC is already June in CST
	s.now = func() time.Time { return time.Date(2024, 5, 31, 17, 0, 0, 0, time.UTC) }

	page, err := s.GetWorkouts(ctx, "", "")
	if err != nil {
		t.Fatalf("GetWorkouts() error = %v", err)
	}
	if b.month != "2024-06" || page.Month != "2024-06" || page.Months[0].Value != "2024-06" || len(page.Months) != 12 {
		t.Fatalf("default month: sent %q, page %+v", b.month, page)
	}
	if len(page.Workouts) != 1 || page.Workouts[0].Duration != "2:01:05" || page.Workouts[0].SourceColor != "orange" {
		t.Fatalf("rows = %+v", page.Workouts)
	}
	if page.Placeholder != "" || len(page.Sources) != 6 {
		t.Fatalf("page = %+v", page)
	}

	b.list = nil
	page, err = s.GetWorkouts(ctx, "2024-01", "Garmin")
	if err != nil || b.month != "2024-01" || b.source != "Garmin" {
		t.Fatalf("GetWorkouts(2024-01, Garmin) = %v, sent %q %q", err, b.month, b.source)
	}
	if page.Workouts == nil || len(page.Workouts) != 0 || page.Placeholder != "暂无运动记录" {
		t.Fatalf("empty page = %+v", page)
	}

	b.month = ""
	if _, err := s.GetWorkouts(ctx, "2024-5", ""); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("GetWorkouts(2024-5) error = %v", err)
	}
	if b.month != "" {
		t.Fatalf("invalid month must not reach the backend, sent %q", b.month)
	}

	b.err = errors.New("boom")
	if _, err := s.GetWorkouts(ctx, "2024-02", ""); err == nil || err.Error() != "failed to get workouts: boom" {
		t.Fatalf("GetWorkouts() error = %v", err)
	}
}
