package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/run365/dashboard-go/internal/api"
	"github.com/run365/dashboard-go/internal/config"
	"github.com/run365/dashboard-go/internal/database"
	"github.com/run365/dashboard-go/internal/logging"
)

const (
	pruneInterval   = time.Hour
	shutdownTimeout = 15 * time.Second
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 初始化日志
	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})
	if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化数据库
	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close()

	// 组装服务
	app, err := api.NewApp(cfg, database.GetDB())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to assemble application")
	}

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// 启动服务器
	g.Go(func() error {
		logging.Info().Str("addr", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 定期清理缓存与会话
	g.Go(func() error {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				app.Prune(gctx, now)
			}
		}
	})

	// 优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		logging.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		app.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		logging.Error().Err(err).Msg("Server stopped with error")
		database.Close()
		os.Exit(1)
	}
	logging.Info().Msg("Server stopped")
}
