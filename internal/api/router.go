package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/run365/dashboard-go/internal/config"
	"github.com/run365/dashboard-go/internal/handler"
	"github.com/run365/dashboard-go/internal/middleware"
	"github.com/run365/dashboard-go/internal/session"
)

// Handlers 路由使用的处理器
type Handlers struct {
	Route     *handler.RouteHandler
	Dashboard *handler.DashboardHandler
	Runner    *handler.RunnerHandler
	Session   *handler.SessionHandler
	Bind      *handler.BindHandler
	Workout   *handler.WorkoutHandler
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h Handlers, signer *session.Signer, tokens middleware.TokenSource) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS.Origins))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Run365 Dashboard API is running",
		})
	})

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 以下接口限流并绑定会话
	app := r.Group("")
	app.Use(middleware.RateLimit(cfg.Limits.Requests, cfg.Limits.Window))
	app.Use(middleware.Session(signer, tokens, cfg.Session.Secure))

	// 同源轨迹文件代理
	app.GET("/api/v2/route-file-proxy", h.Route.ProxyRouteFile)

	// 看板推送
	app.GET("/ws/events/:id", h.Dashboard.Stream)

	api := app.Group("/api/v1")
	{
		// 赛事看板
		events := api.Group("/events/:id")
		{
			events.GET("/dashboard", h.Dashboard.GetDashboard)
			events.GET("/groups/:gid/view", h.Dashboard.GetGroupView)
			events.POST("/runners/:rid/refresh", h.Dashboard.RefreshRunner)
			events.PATCH("/runners/:rid/auto-refresh", h.Dashboard.SetAutoRefresh)
		}

		// 轨迹海拔剖面
		api.GET("/routes/profile", h.Route.GetRouteProfile)

		// 关注选手
		runners := api.Group("/tracked-runners")
		{
			runners.POST("", h.Runner.CreateRunner)
			runners.PATCH("/:rid", h.Runner.UpdateRunner)
			runners.DELETE("/:rid", h.Runner.DeleteRunner)
		}

		// 登录会话
		sess := api.Group("/session")
		{
			sess.GET("", h.Session.GetSession)
			sess.POST("", h.Session.Login)
			sess.DELETE("", h.Session.Logout)
		}

		// 第三方账号绑定
		bind := api.Group("/bind")
		{
			bind.GET("", h.Bind.GetProviders)
			bind.GET("/:provider", h.Bind.BeginBind)
			bind.GET("/:provider/callback", h.Bind.BindCallback)
		}

		me := api.Group("/me")
		{
			me.GET("/accounts", h.Bind.GetAccounts)
			me.DELETE("/accounts/:aid", h.Bind.Unbind)
			me.GET("/workouts", h.Workout.GetWorkouts)
		}
	}

	return r
}
