package handler

import (
	"net/http"
	"time"

	"order-pipeline/internal/database"
	"order-pipeline/internal/infrastructure/cache"
	"order-pipeline/internal/metrics"
	"order-pipeline/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerUserID    = "X-User-ID"
	headerCartID    = "X-Cart-ID"
	headerUserRole  = "X-User-Role"
	headerRequestID = "X-Request-ID"

	roleAdmin = "admin"
)

type Handler struct {
	orders      service.OrderService
	payments    service.PaymentService
	lifecycle   service.LifecycleService
	snapshots   cache.CartSnapshotStore
	db          database.Service
	metrics     *metrics.Metrics
	frontendURL string
	log         *zap.Logger
}

func New(
	orders service.OrderService,
	payments service.PaymentService,
	lifecycle service.LifecycleService,
	snapshots cache.CartSnapshotStore,
	db database.Service,
	m *metrics.Metrics,
	frontendURL string,
	log *zap.Logger,
) *Handler {
	return &Handler{
		orders:      orders,
		payments:    payments,
		lifecycle:   lifecycle,
		snapshots:   snapshots,
		db:          db,
		metrics:     m,
		frontendURL: frontendURL,
		log:         log,
	}
}

// Router builds the gin engine with middleware and every route registered.
func (h *Handler) Router(corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(
		requestID(),
		accessLog(h.log),
		recovery(h.log),
		observe(h.metrics),
		cors.New(corsConfig(corsOrigins)),
	)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := r.Group("/api")
	api.POST("/orders", h.CreateOrder)
	api.GET("/orders/:id", h.GetOrder)
	api.POST("/orders/:id/cancel", h.CancelOrder)

	api.GET("/payments/url", h.PaymentURL)
	api.GET("/payments/return", h.PaymentReturn)
	api.GET("/payments/webhook", h.PaymentWebhook)

	admin := api.Group("/admin", adminOnly())
	admin.POST("/orders/:id/:action", h.TransitionOrder)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", headerUserID, headerCartID, headerUserRole},
		ExposeHeaders:    []string{headerRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (h *Handler) Health(c *gin.Context) {
	stats := h.db.Health(c.Request.Context())
	code := http.StatusOK
	if stats["status"] == "down" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, stats)
}
