package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"suratadmin/internal/server/config"
	"suratadmin/internal/server/metrics"
	"suratadmin/internal/server/session"
)

// uploadBodyLimit leaves headroom over the 5 MiB file limit for the
// multipart envelope.
const uploadBodyLimit = "8M"

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, cfg *config.Config, j *session.JWT, logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: !containsWildcard(cfg.AllowedOrigins),
	}))
	e.Use(RequestLogger(logger))

	// Rate limiter on upload endpoint only
	uploadLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	e.GET("/health", handler.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	admin := e.Group("/admin", RequireSession(j))

	admin.GET("/surat", handler.HandleList)
	admin.POST("/surat/refresh", handler.HandleRefresh)
	admin.POST("/surat", handler.HandleUpload, middleware.BodyLimit(uploadBodyLimit), uploadLimiter.Middleware())
	admin.DELETE("/surat/:id", handler.HandleDelete)
	admin.GET("/surat/:id/download", handler.HandleDownload)
	admin.POST("/surat/:id/stats", handler.HandleStats)

	admin.GET("/notifications", handler.HandleNotifications)
	admin.DELETE("/notifications/:id", handler.HandleDismissNotification)

	return e
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
