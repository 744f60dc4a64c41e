package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"fulfillment-service/internal/service"

	"github.com/gin-gonic/gin"
)

type bulkLabelRequest struct {
	OrderIDs []string `json:"order_ids" form:"order_ids"`
}

// printLabel returns the label of a single order.
func (h *Handler) printLabel(c *gin.Context) {
	direct, ok := directFlag(c)
	if !ok {
		return
	}

	doc, err := h.labels.PrintLabel(c.Request.Context(), c.Param("id"), direct)
	if err != nil {
		respondError(c, err)
		return
	}
	writeLabelDocument(c, doc)
}

// printLabels merges the labels of several orders into one document.
func (h *Handler) printLabels(c *gin.Context) {
	direct, ok := directFlag(c)
	if !ok {
		return
	}

	var req bulkLabelRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	ids := splitIDs(req.OrderIDs)
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "order_ids is required"})
		return
	}

	doc, err := h.labels.PrintLabels(c.Request.Context(), ids, direct)
	if err != nil {
		respondError(c, err)
		return
	}
	writeLabelDocument(c, doc)
}

// directFlag reads ?direct=. Stored delivery is the default.
func directFlag(c *gin.Context) (bool, bool) {
	raw := c.Query("direct")
	if raw == "" {
		return false, true
	}
	direct, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   "Invalid direct flag",
			Details: err.Error(),
		})
		return false, false
	}
	return direct, true
}

// splitIDs accepts repeated values as well as comma separated lists.
func splitIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func partialMessage(doc *service.LabelDocument) string {
	if !doc.Partial() {
		return ""
	}
	return fmt.Sprintf("partially completed: %d of %d labels printed", len(doc.OrderIDs), doc.Requested)
}

func writeLabelDocument(c *gin.Context, doc *service.LabelDocument) {
	message := partialMessage(doc)

	if doc.Mode == service.DeliveryStored {
		c.JSON(http.StatusOK, gin.H{
			"mode":      doc.Mode,
			"url":       doc.URL,
			"filename":  doc.Filename,
			"printed":   len(doc.OrderIDs),
			"requested": doc.Requested,
			"skipped":   doc.Skipped,
			"message":   message,
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename))
	c.Header("X-Labels-Included", strconv.Itoa(len(doc.OrderIDs)))
	c.Header("X-Labels-Requested", strconv.Itoa(doc.Requested))
	if message != "" {
		c.Header("X-Labels-Message", message)
	}
	c.Data(http.StatusOK, "application/pdf", doc.Document)
}
