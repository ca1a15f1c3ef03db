package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/server/handlers"
)

const (
	requestIDHeader = "X-Request-ID"
	userIDHeader    = "X-User-ID"
)

// Handlers groups the HTTP handlers mounted by New. Webhook may be nil when WhatsApp is disabled.
type Handlers struct {
	Parcels   *handlers.ParcelHandler
	Readings  *handlers.ReadingHandler
	Schedules *handlers.ScheduleHandler
	Usage     *handlers.UsageHandler
	Alerts    *handlers.AlertHandler
	Webhook   *handlers.WebhookHandler
	Health    *handlers.HealthHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", h.Health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.Webhook != nil {
		r.GET("/webhook", h.Webhook.Verify)
		r.POST("/webhook", h.Webhook.Receive)
		r.POST("/send-message", h.Webhook.SendMessage)
	}

	api := r.Group("/api", userIDMiddleware())
	{
		parcels := api.Group("/parcels")
		parcels.GET("", h.Parcels.List)
		parcels.POST("", h.Parcels.Create)
		parcels.PUT("/:id/humidity", h.Parcels.UpdateHumidity)
		parcels.DELETE("/:id", h.Parcels.Delete)
		parcels.POST("/:id/regar", h.Parcels.Water)
		parcels.GET("/:id/riego", h.Parcels.WateringStatus)

		api.POST("/humedad", h.Readings.Create)
		api.GET("/humedad", h.Readings.List)

		api.POST("/riego/programar", h.Schedules.Create)
		api.GET("/riego", h.Schedules.List)
		api.DELETE("/riego/:id", h.Schedules.Delete)

		agua := api.Group("/agua")
		agua.POST("", h.Usage.Create)
		agua.GET("", h.Usage.List)
		agua.GET("/resumen", h.Usage.Summary)
		agua.GET("/export", h.Usage.Export)
		if h.Usage.HasReports() {
			agua.GET("/reportes/:fecha", h.Usage.Report)
		}

		alerts := api.Group("/alerts")
		alerts.POST("/check", h.Alerts.Check)
		alerts.POST("/parcels/:id", h.Alerts.SendParcel)
		alerts.GET("/users/:id", h.Alerts.GetContact)
		alerts.PUT("/users/:id/email", h.Alerts.UpdateEmail)
	}

	logger.Info("router initialized", zap.Int("routes", len(r.Routes())))
	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// userIDMiddleware trusts the caller id set by the upstream auth gateway. The header is optional;
// handlers that need an owner reject requests without one.
func userIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(userIDHeader)
		if raw == "" {
			c.Next()
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid X-User-ID header"})
			return
		}
		c.Set(handlers.UserIDKey, id)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("request_id", c.GetString("requestID")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
