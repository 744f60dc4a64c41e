package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 1 << 20
)

// paymentWebhook accepts provider notifications. Completed checkouts are
// queued for the order worker; the provider is acknowledged once the
// event is on the broker.
func (h *Handler) paymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Unreadable body", Details: err.Error()})
		return
	}

	if err := payment.VerifySignature(payload, c.GetHeader(signatureHeader), h.webhook.Secret, h.webhook.Tolerance, time.Now()); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid signature"})
		return
	}

	event, err := payment.ParseEvent(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid event", Details: err.Error()})
		return
	}

	log := util.LoggerFrom(c.Request.Context()).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)

	if event.Type != payment.EventCheckoutCompleted {
		log.Debug("Ignoring webhook event")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var session models.CheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil || session.ID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid checkout session"})
		return
	}

	if session.PaymentStatus == "unpaid" {
		log.Info("Checkout completed without payment, ignoring", zap.String("session_id", session.ID))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	completed := &models.CheckoutCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   event.ID,
			EventType: models.EventTypeCheckoutCompleted,
			Timestamp: time.Now(),
		},
		Session: session,
	}
	if err := h.checkouts.PublishCheckoutCompleted(c.Request.Context(), completed); err != nil {
		log.Error("Failed to queue checkout", zap.String("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to queue checkout", Retryable: true})
		return
	}

	log.Info("Checkout queued", zap.String("session_id", session.ID))
	c.JSON(http.StatusOK, gin.H{"received": true})
}
