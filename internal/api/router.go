package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frostdev-ops/alert-engine/internal/api/handlers"
	"github.com/frostdev-ops/alert-engine/internal/api/middleware"
	"github.com/frostdev-ops/alert-engine/internal/config"
	"github.com/frostdev-ops/alert-engine/pkg/logger"
	"github.com/frostdev-ops/alert-engine/pkg/utils"
)

// Options carries the optional pieces of the HTTP surface
type Options struct {
	// Recorder receives per-request metrics when set
	Recorder middleware.RequestRecorder
	// Gatherer backs /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, h *handlers.Handlers, log *logger.BatchLogger, opts Options) *gin.Engine {
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.ErrorHandlingMiddleware(log.Logger))
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	if opts.Recorder != nil {
		router.Use(middleware.MetricsMiddleware(opts.Recorder))
	}

	// Public routes
	router.GET("/health", h.Health)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	ws := router.Group("/ws")
	if cfg.Auth.Enabled {
		v1.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
		ws.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	}
	ws.GET("", h.WebSocketHandler())

	{
		rules := v1.Group("/rules")
		{
			rules.POST("", h.CreateRule)
			rules.GET("", h.GetRules)
			rules.DELETE("/:id", h.DeleteRule)
		}

		alerts := v1.Group("/alerts")
		{
			alerts.POST("", h.FireAlert)
			alerts.GET("/active", h.GetActiveAlerts)
			alerts.GET("/history", h.GetAlertHistory)
			alerts.GET("/metrics", h.GetAlertMetrics)
			alerts.POST("/:id/acknowledge", h.AcknowledgeAlert)
			alerts.POST("/:id/resolve", h.ResolveAlert)
		}

		suppressions := v1.Group("/suppressions")
		{
			suppressions.POST("", h.CreateSuppression)
			suppressions.GET("", h.GetSuppressions)
		}

		incidents := v1.Group("/incidents")
		{
			incidents.GET("", h.GetIncidents)
			incidents.PATCH("/:id", h.UpdateIncident)
		}

		samples := v1.Group("/metrics/samples")
		{
			samples.POST("", h.RecordSample)
			samples.GET("", h.GetSamples)
		}

		v1.GET("/websocket/stats", h.GetWebSocketStats)
	}

	router.NoRoute(func(c *gin.Context) {
		utils.SendError(c, http.StatusNotFound, "Endpoint not found")
	})

	return router
}
