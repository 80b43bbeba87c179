package routes

import (
	"net/http"

	"facility-uptime-monitor/internal/config"
	"facility-uptime-monitor/internal/delivery/http/handler"
	"facility-uptime-monitor/internal/events"
	"facility-uptime-monitor/internal/ingestion"
	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/internal/middleware"
	"facility-uptime-monitor/internal/observability/metrics"
	usecase "facility-uptime-monitor/internal/usecase/device"
	"facility-uptime-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators built in main and shared by the handlers.
type Dependencies struct {
	Ingestion  *ingestion.Service
	Devices    *usecase.Service
	Aggregator ingestion.AggregationTrigger
	Hub        *events.Hub
	Limiter    *middleware.RateLimiter
	// Health reports store reachability; nil means always healthy.
	Health func() error
	// PendingNotifications reports alerts waiting on their delay.
	PendingNotifications func() int
	// MQTTConnected is nil when MQTT ingestion is disabled.
	MQTTConnected func() bool
}

func SetupRoutes(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware("/health", "/metrics"))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
	if deps.Limiter != nil {
		router.Use(middleware.RateLimitMiddleware(deps.Limiter))
	}

	router.NoMethod(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	router.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "Not Found")
	})

	router.GET("/health", healthHandler(deps))
	router.GET("/metrics", metrics.Handler())

	statusHandler := handler.NewStatusHandler(deps.Ingestion)
	deviceHandler := handler.NewDeviceHandler(deps.Devices)
	uptimeHandler := handler.NewUptimeHandler(deps.Aggregator)

	statusHandler.RegisterLegacyRoutes(router)

	v1 := router.Group("/api/v1")
	{
		statusHandler.RegisterRoutes(v1)
		deviceHandler.RegisterRoutes(v1)
		if deps.Hub != nil {
			handler.NewStreamHandler(deps.Hub, cfg.CORS.AllowedOrigins).RegisterRoutes(v1)
		}

		admin := v1.Group("")
		admin.Use(middleware.AdminKeyMiddleware(cfg.Admin.APIKeys))
		{
			deviceHandler.RegisterAdminRoutes(admin)
			uptimeHandler.RegisterAdminRoutes(admin)
		}
	}

	logger.Info("All routes initialized")
	return router
}

func healthHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":    "healthy",
			"message":   "Service is running",
			"ingestion": deps.Ingestion.Metrics().Snapshot(),
		}
		if deps.PendingNotifications != nil {
			body["pending_notifications"] = deps.PendingNotifications()
		}
		if deps.Hub != nil {
			body["stream_clients"] = deps.Hub.Clients()
		}
		if deps.MQTTConnected != nil {
			body["mqtt_connected"] = deps.MQTTConnected()
		}

		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				body["status"] = "unhealthy"
				body["message"] = "Store connection failed"
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}

		c.JSON(http.StatusOK, body)
	}
}
