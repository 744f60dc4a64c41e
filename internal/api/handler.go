package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type OrderAPI interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	OrdersForSession(ctx context.Context, sessionID string) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) error
	ResendEmail(ctx context.Context, orderID, template string) error
}

type LabelAPI interface {
	PrintLabel(ctx context.Context, orderID string, direct bool) (*service.LabelDocument, error)
	PrintLabels(ctx context.Context, orderIDs []string, direct bool) (*service.LabelDocument, error)
}

type ShipmentAPI interface {
	CreateShipment(ctx context.Context, orderID string) (*models.Order, error)
	CancelShipment(ctx context.Context, orderID string) error
}

type CheckoutPublisher interface {
	PublishCheckoutCompleted(ctx context.Context, event *models.CheckoutCompletedEvent) error
}

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// WebhookConfig holds the payment webhook verification settings.
type WebhookConfig struct {
	Secret    string
	Tolerance time.Duration
}

// Handler contains HTTP handlers
type Handler struct {
	orders    OrderAPI
	labels    LabelAPI
	shipments ShipmentAPI
	checkouts CheckoutPublisher
	webhook   WebhookConfig
	jwtSecret string
	filesPath string
	filesDir  string
	checks    map[string]ReadinessCheck
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders OrderAPI,
	labels LabelAPI,
	shipments ShipmentAPI,
	checkouts CheckoutPublisher,
	webhook WebhookConfig,
	jwtSecret string,
) *Handler {
	return &Handler{
		orders:    orders,
		labels:    labels,
		shipments: shipments,
		checkouts: checkouts,
		webhook:   webhook,
		jwtSecret: jwtSecret,
		checks:    map[string]ReadinessCheck{},
	}
}

// AddReadinessCheck registers a dependency probed by /ready.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// ServeFiles exposes stored label documents under urlPath.
func (h *Handler) ServeFiles(urlPath, dir string) {
	h.filesDir = dir
	h.filesPath = urlPath
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/payment", h.paymentWebhook)

	if h.filesDir != "" {
		router.Static(h.filesPath, h.filesDir)
	}

	v1 := router.Group("/api/v1", authMiddleware(h.jwtSecret))
	{
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateStatus)
		v1.POST("/orders/:id/shipment", h.createShipment)
		v1.DELETE("/orders/:id/shipment", h.cancelShipment)
		v1.GET("/orders/:id/label", h.printLabel)
		v1.POST("/orders/:id/emails/:template", h.resendEmail)
		v1.POST("/labels/bulk", h.printLabels)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// listOrders finds orders by payment session
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.OrdersForSession(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("id"), "status": req.Status})
}

func (h *Handler) createShipment(c *gin.Context) {
	order, err := h.shipments.CreateShipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":    order.ID,
		"shipment_id": order.PacketaShipmentID,
		"status":      order.Status,
	})
}

func (h *Handler) cancelShipment(c *gin.Context) {
	if err := h.shipments.CancelShipment(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": c.Param("id"),
		"status":   models.OrderStatusPaid,
	})
}

func (h *Handler) resendEmail(c *gin.Context) {
	if err := h.orders.ResendEmail(c.Request.Context(), c.Param("id"), c.Param("template")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": c.Param("id"),
		"template": c.Param("template"),
		"queued":   true,
	})
}

// requestIDMiddleware tags the request context so every log line of the
// request carries the same id.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Header("X-Request-ID", id)
		c.Request = c.Request.WithContext(util.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
