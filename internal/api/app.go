package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/run365/dashboard-go/internal/backend"
	"github.com/run365/dashboard-go/internal/bind"
	"github.com/run365/dashboard-go/internal/config"
	"github.com/run365/dashboard-go/internal/dashboard"
	"github.com/run365/dashboard-go/internal/handler"
	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/repository"
	"github.com/run365/dashboard-go/internal/route"
	"github.com/run365/dashboard-go/internal/service"
	"github.com/run365/dashboard-go/internal/session"
)

// App 组装完成的服务
type App struct {
	Router  *gin.Engine
	Manager *dashboard.Manager
	Pending *bind.PendingStore

	// 仅在使用 SQLite 时非空
	RouteFiles *repository.RouteFileRepository
	Sessions   *repository.SessionRepository

	cfg *config.Config
}

// NewApp 按配置组装各层。db 为 nil 时轨迹文件只缓存在内存，会话也保存在内存
func NewApp(cfg *config.Config, db *sql.DB) (*App, error) {
	app := &App{cfg: cfg}

	// 存储
	var rawStore route.RawStore
	var sessions session.Store = session.NewMemoryStore()
	if db != nil {
		app.RouteFiles = repository.NewRouteFileRepository(db)
		rawStore = app.RouteFiles
		if cfg.Session.Store == "sqlite" {
			app.Sessions = repository.NewSessionRepository(db)
			sessions = app.Sessions
		}
	}

	// 后端客户端
	client := backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.Backend.RateLimit,
		Burst:     cfg.Backend.Burst,
	})

	// 轨迹文件：看板经代理加载，代理接口直接请求源文件
	// 直连时拒绝内网地址，代理接口的重定向也受白名单约束
	hosts := route.NewHostPolicy(cfg.Route.AllowedHosts)
	loaderClient := &http.Client{Timeout: cfg.Route.FetchTimeout}
	if cfg.Route.ProxyBaseURL == "" {
		loaderClient = route.NewClient(route.ClientConfig{
			Timeout:      cfg.Route.FetchTimeout,
			AllowPrivate: cfg.Route.AllowPrivate,
		})
	}
	loader, err := route.NewLoader(
		route.NewFetcher(loaderClient, cfg.Route.ProxyBaseURL),
		rawStore,
		route.LoaderConfig{CacheSize: cfg.Route.CacheSize, RawTTL: cfg.Route.RawTTL},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create route loader: %w", err)
	}
	direct := route.NewFetcher(route.NewClient(route.ClientConfig{
		Timeout:       cfg.Route.FetchTimeout,
		AllowPrivate:  cfg.Route.AllowPrivate,
		CheckRedirect: hosts.Check,
	}), "")

	// 看板
	hub := dashboard.NewHub()
	app.Manager = dashboard.NewManager(dashboard.Deps{
		Events:      client,
		Runners:     client,
		Routes:      loader,
		Tiles:       cfg.Tiles,
		SettleDelay: cfg.View.SettleDelay,
		Location:    cfg.Location(),
	}, hub, cfg.View.Linger)

	// 绑定
	registry, pending := bind.NewDefaultRegistry(cfg.Bind, client)
	app.Pending = pending

	// 服务
	sessionService := service.NewSessionService(sessions)
	routeService := service.NewRouteService(direct, rawStore, loader, hosts, cfg.Route.RawTTL)
	dashboardService := service.NewDashboardService(app.Manager, hub, cfg.View.MapWait)
	runnerService := service.NewRunnerService(client)
	bindService := service.NewBindService(registry, sessions, client)
	workoutService := service.NewWorkoutService(client, cfg.Location())

	handlers := Handlers{
		Route:     handler.NewRouteHandler(routeService),
		Dashboard: handler.NewDashboardHandler(dashboardService, cfg.CORS.Origins),
		Runner:    handler.NewRunnerHandler(runnerService),
		Session:   handler.NewSessionHandler(sessionService),
		Bind:      handler.NewBindHandler(bindService),
		Workout:   handler.NewWorkoutHandler(workoutService),
	}
	signer := session.NewSigner(cfg.JWTSecret, cfg.Session.TTL)
	app.Router = SetupRouter(cfg, handlers, signer, sessionService)

	logging.Info().
		Str("backend", client.BaseURL()).
		Strs("bind_providers", registry.Names()).
		Strs("route_hosts", hosts.Hosts()).
		Bool("sqlite", db != nil).
		Msg("[App] assembled")
	return app, nil
}

// Prune 清理过期的轨迹文件缓存与闲置会话
func (a *App) Prune(ctx context.Context, now time.Time) {
	if a.RouteFiles != nil && a.cfg.Route.RawTTL > 0 {
		n, err := a.RouteFiles.DeleteOlderThan(ctx, now.Add(-a.cfg.Route.RawTTL))
		if err != nil {
			logging.Warn().Err(err).Msg("[App] route file prune failed")
		} else if n > 0 {
			logging.Info().Int64("removed", n).Msg("[App] pruned route files")
		}
	}
	if a.Sessions != nil {
		n, err := a.Sessions.DeleteIdle(ctx, now.Add(-a.cfg.Session.TTL))
		if err != nil {
			logging.Warn().Err(err).Msg("[App] session prune failed")
		} else if n > 0 {
			logging.Info().Int64("removed", n).Msg("[App] pruned sessions")
		}
	}
	logging.Debug().Int("pending_binds", a.Pending.Len()).Int("views", a.Manager.Open()).Msg("[App] prune done")
}

// Close 关闭所有看板视图
func (a *App) Close() {
	a.Manager.Close()
}
