package labels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fulfillment-service/internal/carrier"
	"fulfillment-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoShipments = errors.New("no shipments to print")
	ErrNoLabels    = errors.New("no label could be retrieved")
)

// Fetcher is the carrier surface the aggregator needs.
type Fetcher interface {
	PacketLabelPdf(ctx context.Context, packetID, format string, offset int) ([]byte, error)
	PacketsLabelsPdf(ctx context.Context, packetIDs []string, format string, offset int) ([]byte, error)
}

type Merger interface {
	Merge(docs [][]byte) ([]byte, error)
}

// Result is one printable document and what went into it.
type Result struct {
	Document  []byte
	Requested int
	Included  []string
	Failed    []string
	Batch     bool
}

// Partial reports whether some requested shipments are missing.
func (r *Result) Partial() bool {
	return len(r.Included) < r.Requested
}

// Aggregator turns many shipment ids into one document. The carrier's batch
// endpoint is tried first; a fault or undecodable answer falls back to one
// request per shipment through a bounded pool.
type Aggregator struct {
	fetcher     Fetcher
	merger      Merger
	concurrency int
	logger      *zap.Logger
}

func NewAggregator(fetcher Fetcher, merger Merger, concurrency int) *Aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Aggregator{
		fetcher:     fetcher,
		merger:      merger,
		concurrency: concurrency,
		logger:      util.GetLogger(),
	}
}

func (a *Aggregator) Aggregate(ctx context.Context, shipmentIDs []string, format string) (*Result, error) {
	ids := make([]string, 0, len(shipmentIDs))
	for _, id := range shipmentIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, ErrNoShipments
	}

	ctx, span := util.StartSpan(ctx, "labels.Aggregate", attribute.Int("labels.requested", len(ids)))
	defer span.End()

	doc, err := a.fetcher.PacketsLabelsPdf(ctx, ids, format, 0)
	if err == nil {
		span.SetAttributes(attribute.Bool("labels.batch", true))
		return &Result{
			Document:  doc,
			Requested: len(ids),
			Included:  ids,
			Batch:     true,
		}, nil
	}
	if !errors.Is(err, carrier.ErrFault) && !errors.Is(err, carrier.ErrUnrecognizedFormat) {
		util.RecordError(span, err)
		return nil, err
	}

	util.LabelFallbackTotal.Inc()
	a.logger.Warn("Batch label request failed, fetching labels one by one",
		zap.Int("shipments", len(ids)),
		zap.Error(err),
	)

	result, err := a.fetchEach(ctx, ids, format)
	util.RecordError(span, err)
	return result, err
}

func (a *Aggregator) fetchEach(ctx context.Context, ids []string, format string) (*Result, error) {
	docs := make([][]byte, len(ids))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			doc, err := a.fetcher.PacketLabelPdf(ctx, id, format, 0)
			if err != nil {
				util.LabelFetchFailedTotal.Inc()
				a.logger.Warn("Skipping shipment label",
					zap.String("shipment_id", id),
					zap.Error(err),
				)
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{Requested: len(ids)}
	found := make([][]byte, 0, len(ids))
	for i, doc := range docs {
		if doc == nil {
			result.Failed = append(result.Failed, ids[i])
			continue
		}
		result.Included = append(result.Included, ids[i])
		found = append(found, doc)
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("%w: all %d shipments failed", ErrNoLabels, len(ids))
	}

	merged, err := a.merger.Merge(found)
	if err != nil {
		return nil, err
	}
	result.Document = merged

	a.logger.Info("Merged shipment labels",
		zap.Int("requested", result.Requested),
		zap.Int("included", len(result.Included)),
		zap.Strings("failed", result.Failed),
	)
	return result, nil
}
