package router

import (
	"net/http"
	"time"

	"ajo/config"
	"ajo/internal/handler"
	"ajo/internal/middleware"
	"ajo/internal/repository"
	"ajo/internal/scheduler"
	"ajo/internal/service"
	"ajo/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps is everything the HTTP layer needs; cmd/server builds it.
type Deps struct {
	Config    *config.Config
	Repos     *repository.Repositories
	Auth      *service.AuthService
	Ajo       *service.AjoService
	Wallet    *service.WalletService
	Scheduler *scheduler.Scheduler
	Hub       *ws.Hub
	Gatherer  prometheus.Gatherer
	Log       zerolog.Logger
}

func Setup(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))
	moneyLimit := middleware.RateLimitUser(middleware.NewInMemoryRateLimiter(10, time.Minute))

	authHandler := handler.NewAuthHandler(d.Auth)
	meHandler := handler.NewMeHandler(d.Auth, d.Ajo)
	walletHandler := handler.NewWalletHandler(d.Wallet)
	ajoHandler := handler.NewAjoHandler(d.Ajo)
	notificationHandler := handler.NewNotificationHandler(d.Repos.Notifications)
	adminHandler := handler.NewAdminHandler(d.Repos, d.Ajo, d.Scheduler)
	webhookHandler := handler.NewLedgerWebhookHandler(d.Repos.Users, d.Wallet, cfg, d.Log)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/ws/notifications", ws.UpgradeNotificationsWS(&cfg.JWT, d.Hub))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.PATCH("/change-password", authMw, authHandler.ChangePassword)
		}

		api.POST("/webhooks/ledger", webhookHandler.Handle)

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("", meHandler.Profile)
			me.PUT("/pin", meHandler.SetPin)
			me.POST("/fcm-token", meHandler.RegisterFCMToken)
			me.GET("/disputes", meHandler.Disputes)
			me.GET("/wallet", walletHandler.GetBalance)
			me.POST("/wallet/fund", moneyLimit, walletHandler.Fund)
			me.GET("/transactions", walletHandler.Transactions)
			me.GET("/notifications", notificationHandler.List)
			me.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
		}

		ajo := api.Group("/ajo")
		ajo.Use(authMw)
		{
			ajo.GET("", ajoHandler.Search)
			ajo.POST("", ajoHandler.Create)
			ajo.GET("/mine", ajoHandler.Mine)
			ajo.GET("/:id", ajoHandler.Get)
			ajo.POST("/:id/activate", ajoHandler.Activate)
			ajo.POST("/:id/join", ajoHandler.Join)
			ajo.POST("/:id/contribute", moneyLimit, ajoHandler.Contribute)
			ajo.POST("/:id/leave", ajoHandler.Leave)
			ajo.POST("/:id/early-exit", moneyLimit, ajoHandler.EarlyExit)
			ajo.GET("/:id/disputes", ajoHandler.Disputes)
		}
		api.POST("/disputes/:id/resolve", authMw, ajoHandler.ResolveDispute)

		api.POST("/admin/login", authHandler.AdminLogin)
		admin := api.Group("/admin")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.POST("/ajo/:id/payout", adminHandler.ForcePayout)
			admin.GET("/ajo/:id/disputes", adminHandler.GroupDisputes)
			admin.GET("/cron/logs", adminHandler.CronLogs)
			admin.GET("/cron/status", adminHandler.CronStatus)
			admin.GET("/fraud-cases", adminHandler.FraudCases)
			admin.PATCH("/fraud-cases/:id", adminHandler.UpdateFraudCase)
			admin.GET("/transactions", adminHandler.Transactions)
		}
	}
	return r
}
