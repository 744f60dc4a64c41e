package api

import (
	"context"
	"errors"
	"net/http"

	"fulfillment-service/internal/carrier"
	"fulfillment-service/internal/labels"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

// classify maps a service error onto an HTTP status and a short message the
// operator can act on.
func classify(err error) (int, string, bool) {
	var status *carrier.StatusError

	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, labels.ErrNoShipments),
		errors.Is(err, carrier.ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request", false
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found", false
	case errors.Is(err, service.ErrNoShipment):
		return http.StatusNotFound, "Order has no shipment", false
	case errors.Is(err, service.ErrShipmentExists):
		return http.StatusConflict, "Shipment already exists", false
	case errors.As(err, &status) && status.StatusCode == http.StatusNotFound:
		return http.StatusNotFound, "Shipment unknown to carrier", false
	case errors.Is(err, carrier.ErrClientError):
		return http.StatusInternalServerError, "Carrier rejected the request, retrying will not succeed", false
	case errors.Is(err, carrier.ErrFault),
		errors.Is(err, carrier.ErrUnrecognizedFormat),
		errors.Is(err, labels.ErrNoLabels):
		return http.StatusBadGateway, "Carrier could not produce the label", false
	case errors.Is(err, carrier.ErrRetriesExhausted),
		errors.Is(err, service.ErrNotifyFailed),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Temporarily unavailable, try again shortly", true
	default:
		return http.StatusInternalServerError, "Internal error", false
	}
}

func respondError(c *gin.Context, err error) {
	code, message, retryable := classify(err)

	log := util.LoggerFrom(c.Request.Context())
	if code >= http.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", code),
			zap.Error(err))
	} else {
		log.Info("Request rejected",
			zap.String("path", c.FullPath()),
			zap.Int("status", code),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(code, errorResponse{
		Error:     message,
		Details:   err.Error(),
		Retryable: retryable,
	})
}
