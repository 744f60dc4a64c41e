package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment-service/internal/labels"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const pdfContentType = "application/pdf"

type OrderReader interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrdersByIDs(ctx context.Context, ids []string) ([]models.Order, error)
}

type LabelStamper interface {
	MarkLabelsPrinted(ctx context.Context, orderIDs []string, at time.Time) error
}

type BlobStore interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) error
	PublicURL(ctx context.Context, name string) (string, error)
}

type SingleLabelFetcher interface {
	PacketLabelPdf(ctx context.Context, packetID, format string, offset int) ([]byte, error)
}

type LabelAggregator interface {
	Aggregate(ctx context.Context, shipmentIDs []string, format string) (*labels.Result, error)
}

// DeliveryMode is how a label document reached the operator.
type DeliveryMode string

const (
	DeliveryDirect DeliveryMode = "direct"
	DeliveryStored DeliveryMode = "stored"
)

// LabelDocument is a printable document plus bookkeeping for the operator.
// Document is always set so a stored delivery can still be streamed.
type LabelDocument struct {
	Mode      DeliveryMode
	Document  []byte
	URL       string
	Filename  string
	OrderIDs  []string
	Requested int
	Skipped   []string
}

// Partial reports whether some requested orders are not in the document.
func (d *LabelDocument) Partial() bool {
	return len(d.OrderIDs) < d.Requested
}

type LabelService struct {
	orders     OrderReader
	stamper    LabelStamper
	fetcher    SingleLabelFetcher
	aggregator LabelAggregator
	blobs      BlobStore
	events     EventSink
	format     string
	now        func() time.Time
	logger     *zap.Logger
}

func NewLabelService(
	orders OrderReader,
	stamper LabelStamper,
	fetcher SingleLabelFetcher,
	aggregator LabelAggregator,
	blobs BlobStore,
	events EventSink,
	format string,
) *LabelService {
	return &LabelService{
		orders:     orders,
		stamper:    stamper,
		fetcher:    fetcher,
		aggregator: aggregator,
		blobs:      blobs,
		events:     events,
		format:     format,
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// PrintLabel fetches the label of one order's shipment.
func (s *LabelService) PrintLabel(ctx context.Context, orderID string, direct bool) (*LabelDocument, error) {
	ctx, span := util.StartSpan(ctx, "LabelService.PrintLabel", attribute.String("order_id", orderID))
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if !order.HasShipment() {
		return nil, ErrNoShipment
	}

	data, err := s.fetcher.PacketLabelPdf(ctx, *order.PacketaShipmentID, s.format, 0)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	doc := s.deliver(ctx, data, []string{order.ID}, direct, "label-"+order.ID)
	doc.Requested = 1
	return doc, nil
}

// PrintLabels builds one document for several orders. Orders without a
// shipment never reach the carrier; they are listed in Skipped.
func (s *LabelService) PrintLabels(ctx context.Context, orderIDs []string, direct bool) (*LabelDocument, error) {
	ids := uniqueIDs(orderIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no order ids", ErrInvalidInput)
	}

	ctx, span := util.StartSpan(ctx, "LabelService.PrintLabels", attribute.Int("orders", len(ids)))
	defer span.End()

	orders, err := s.orders.GetOrdersByIDs(ctx, ids)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	byID := make(map[string]*models.Order, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}

	var (
		shipmentIDs []string
		skipped     []string
		owners      = make(map[string][]string)
	)
	for _, id := range ids {
		order, ok := byID[id]
		if !ok || !order.HasShipment() {
			skipped = append(skipped, id)
			continue
		}
		shipment := *order.PacketaShipmentID
		if _, seen := owners[shipment]; !seen {
			shipmentIDs = append(shipmentIDs, shipment)
		}
		owners[shipment] = append(owners[shipment], id)
	}
	if len(shipmentIDs) == 0 {
		return nil, ErrNoShipment
	}

	result, err := s.aggregator.Aggregate(ctx, shipmentIDs, s.format)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	var covered []string
	for _, shipment := range result.Included {
		covered = append(covered, owners[shipment]...)
	}
	for _, shipment := range result.Failed {
		skipped = append(skipped, owners[shipment]...)
	}

	doc := s.deliver(ctx, result.Document, covered, direct, "labels")
	doc.Requested = len(ids)
	doc.Skipped = skipped

	if doc.Partial() {
		s.logger.Warn("Bulk label print incomplete",
			zap.Int("requested", doc.Requested),
			zap.Int("printed", len(doc.OrderIDs)),
			zap.Strings("skipped", skipped))
	}
	return doc, nil
}

// deliver stores the document when asked to and falls back to direct mode
// on any storage failure. Print stamping never fails the call.
func (s *LabelService) deliver(ctx context.Context, data []byte, orderIDs []string, direct bool, prefix string) *LabelDocument {
	now := s.now()
	doc := &LabelDocument{
		Mode:     DeliveryDirect,
		Document: data,
		Filename: fmt.Sprintf("%s-%s.pdf", prefix, now.Format("20060102-150405")),
		OrderIDs: orderIDs,
	}

	if !direct && s.blobs != nil {
		name := fmt.Sprintf("%s-%s.pdf", prefix, uuid.New().String())
		if err := s.blobs.Upload(ctx, name, data, pdfContentType); err != nil {
			s.logger.Warn("Label upload failed, returning document directly",
				zap.String("file", name),
				zap.Error(err))
		} else if url, err := s.blobs.PublicURL(ctx, name); err != nil || url == "" {
			s.logger.Warn("Label URL unavailable, returning document directly",
				zap.String("file", name),
				zap.Error(err))
		} else {
			doc.Mode = DeliveryStored
			doc.URL = url
			doc.Filename = name
		}
	}

	if err := s.stamper.MarkLabelsPrinted(ctx, orderIDs, now); err != nil {
		s.logger.Error("Failed to stamp printed labels",
			zap.Strings("order_ids", orderIDs),
			zap.Error(err))
	}
	util.LabelsPrintedTotal.WithLabelValues(string(doc.Mode)).Add(float64(len(orderIDs)))

	event := &models.LabelsPrintedEvent{
		BaseEvent: newBaseEvent(models.EventTypeLabelsPrinted, now),
		OrderIDs:  orderIDs,
		Mode:      string(doc.Mode),
		URL:       doc.URL,
	}
	if err := s.events.PublishLabelsPrinted(ctx, event); err != nil {
		s.logger.Warn("Failed to publish LabelsPrinted event", zap.Error(err))
	}
	return doc
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
