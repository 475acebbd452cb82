package api

import (
	"lottery_system/internal/app"        // Wired services
	"lottery_system/internal/middleware" // Custom package for middleware

	"github.com/gin-gonic/gin"                                // Gin web framework
	"github.com/prometheus/client_golang/prometheus/promhttp" // Metrics endpoint
)

// NewRouter mounts every route on a fresh gin engine
func NewRouter(s *app.Services) (*gin.Engine, error) {
	cfg := s.Config
	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default() // Gin router instance
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		return nil, err
	}
	r.Use(middleware.RequestIDMiddleware(), middleware.MetricsMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes
	r.POST("/user", RegisterHandler(s.DB))                   // Registration endpoint
	r.POST("/user/login", LoginHandler(s.DB, cfg.JWTSecret)) // Login endpoint

	// Player routes (protected by JWT)
	auth := middleware.JWTAuthMiddleware(cfg.JWTSecret)
	r.GET("/draws", auth, ListDrawsHandler(s.Draws))
	r.POST("/bets", auth, PlaceBetsHandler(s.Betting))
	r.GET("/bets", auth, ListBetsHandler(s.Bets))
	walletGroup := r.Group("/wallet", auth)
	walletGroup.GET("", GetWalletHandler(s.Ledger, s.Redis))
	walletGroup.GET("/transactions", GetTransactionHistoryHandler(s.Ledger, s.Redis))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin", auth, middleware.AdminOnlyMiddleware(s.DB, cfg.Lottery))
	adminGroup.POST("/credit", AdminCreditHandler(s.Ledger))
	adminGroup.POST("/draws/execute", AdminExecuteDrawHandler(s.Operator))
	adminGroup.POST("/draws/:id/result", AdminPostResultHandler(s.Operator))
	adminGroup.POST("/draws/:id/repay", AdminRepayDrawHandler(s.Operator))
	adminGroup.GET("/wallets/:user_id/reconcile", ReconcileHandler(s.Ledger))
	adminGroup.GET("/users", ListUsersHandler(s.DB, s.Redis))
	adminGroup.GET("/transactions", ListTransactionsHandler(s.DB, s.Redis))

	// External scheduler trigger
	r.POST("/scheduler/tick", middleware.SchedulerSecretMiddleware(cfg.SchedulerSecret), SchedulerTickHandler(s.Driver))

	return r, nil
}
