package service

import (
	"context"
	"regexp"
	"strings"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const unknownProduct = "unknown product"

// LineItemSource reads the purchased lines of a checkout session.
type LineItemSource interface {
	ListLineItems(ctx context.Context, sessionID string) ([]payment.LineItem, error)
}

// ShippingMatcher decides whether a provider line is freight rather than
// merchandise.
type ShippingMatcher interface {
	IsShipping(item payment.LineItem, description string) bool
}

// TextualMatcher flags lines whose description contains a shipping synonym.
type TextualMatcher struct {
	synonyms []string
}

func NewTextualMatcher(synonyms []string) *TextualMatcher {
	m := &TextualMatcher{}
	for _, s := range synonyms {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			m.synonyms = append(m.synonyms, s)
		}
	}
	return m
}

func (m *TextualMatcher) IsShipping(_ payment.LineItem, description string) bool {
	lower := strings.ToLower(description)
	for _, s := range m.synonyms {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// TypedMatcher trusts the product's "type" metadata and only falls back to
// text when the provider did not tag the line.
type TypedMatcher struct {
	Fallback ShippingMatcher
}

func (m *TypedMatcher) IsShipping(item payment.LineItem, description string) bool {
	switch strings.ToLower(item.ProductMetadata()["type"]) {
	case "shipping", "freight":
		return true
	case "":
		return m.Fallback != nil && m.Fallback.IsShipping(item, description)
	default:
		return false
	}
}

// ProductAlias maps a description fragment to a product id.
type ProductAlias struct {
	Fragment  string
	ProductID string
}

// DefaultProductAliases covers the storefront's own catalogue naming.
var DefaultProductAliases = []ProductAlias{
	{Fragment: "mikina", ProductID: "hoodie"},
	{Fragment: "tričko", ProductID: "tshirt"},
	{Fragment: "triko", ProductID: "tshirt"},
	{Fragment: "čepice", ProductID: "cap"},
	{Fragment: "taška", ProductID: "tote"},
}

var sizeLabel = regexp.MustCompile(`(?i)(?:velikost|size)\s*:\s*([A-Z0-9]+)`)

// Reconciler turns the provider's lines into canonical line items.
type Reconciler struct {
	source  LineItemSource
	matcher ShippingMatcher
	aliases []ProductAlias
	logger  *zap.Logger
}

func NewReconciler(source LineItemSource, matcher ShippingMatcher, aliases []ProductAlias) *Reconciler {
	return &Reconciler{
		source:  source,
		matcher: matcher,
		aliases: aliases,
		logger:  util.GetLogger(),
	}
}

// Reconcile never fails: a provider error degrades to an empty list so the
// payment is still recorded.
func (r *Reconciler) Reconcile(ctx context.Context, sessionID string) []models.LineItem {
	ctx, span := util.StartSpan(ctx, "Reconciler.Reconcile", attribute.String("session_id", sessionID))
	defer span.End()

	lines, err := r.source.ListLineItems(ctx, sessionID)
	if err != nil {
		util.RecordError(span, err)
		util.LineItemReconcileFailures.Inc()
		r.logger.Warn("Failed to read line items, persisting order without items",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return []models.LineItem{}
	}

	items := r.Canonicalize(lines)
	span.SetAttributes(attribute.Int("items", len(items)))
	return items
}

// Canonicalize filters freight and normalizes each remaining line, keeping
// provider order.
func (r *Reconciler) Canonicalize(lines []payment.LineItem) []models.LineItem {
	items := make([]models.LineItem, 0, len(lines))
	for _, line := range lines {
		desc := describe(line)
		if r.matcher != nil && r.matcher.IsShipping(line, desc) {
			continue
		}

		qty := int(line.Quantity)
		if qty < 1 {
			qty = 1
		}
		productID, size := r.identify(line, desc)
		items = append(items, models.LineItem{
			Description: desc,
			Quantity:    qty,
			AmountTotal: line.AmountTotal,
			ProductID:   productID,
			Size:        size,
		})
	}
	return items
}

func describe(line payment.LineItem) string {
	for _, s := range []string{line.Description, line.ProductName(), line.PriceNickname()} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return unknownProduct
}

func (r *Reconciler) identify(line payment.LineItem, desc string) (productID, size string) {
	meta := line.ProductMetadata()
	productID = strings.TrimSpace(meta["productId"])
	size = strings.TrimSpace(meta["size"])
	if productID != "" && size != "" {
		return productID, size
	}

	if size == "" {
		if m := sizeLabel.FindStringSubmatch(desc); m != nil {
			size = strings.ToUpper(m[1])
		}
	}

	if productID == "" {
		lower := strings.ToLower(desc)
		for _, a := range r.aliases {
			if strings.Contains(lower, a.Fragment) {
				productID = a.ProductID
				break
			}
		}
	}
	return productID, size
}
