package main

import (
	"github.com/gin-gonic/gin"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/handlers"
	"github.com/tokengate/tokengate/internal/middleware"
	"github.com/tokengate/tokengate/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Health and metrics
	health := handlers.NewHealthHandler()
	r.GET("/health", health.CheckHealth)
	r.GET("/metrics", handlers.Metrics)

	// Gateway enforcement endpoint, rate limited per caller. The data
	// plane hits this on every proxied request.
	gateway := r.Group("/gateway")
	if cfg.RateLimit.Enabled {
		gateway.Use(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware())
	}
	gateway.POST("/authorize", svc.accessHandler.Authorize)

	// Admin API consumed by the token management screen.
	api := r.Group("/api")
	{
		api.GET("/user-tokens", svc.tokenHandler.List)
		api.GET("/user-tokens/summary", svc.tokenHandler.Summary)
		api.POST("/user-tokens", svc.tokenHandler.Create)
		api.GET("/user-tokens/:id", svc.tokenHandler.GetByID)
		api.GET("/user-tokens/:id/ips", svc.tokenHandler.ListIPs)
		api.PUT("/user-tokens/:id", svc.tokenHandler.Update)
		api.DELETE("/user-tokens/:id", svc.tokenHandler.Delete)
		api.POST("/user-tokens/:id/renew", svc.tokenHandler.Renew)

		api.GET("/access-logs", svc.accessLogHandler.List)
	}
}
