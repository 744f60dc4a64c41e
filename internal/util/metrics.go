package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders persisted from completed payments",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of completed payments that could not be persisted",
	}, []string{"reason"})

	OrderSchemaFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_schema_fallback_total",
		Help: "Order inserts retried without an optional column the schema lacks",
	})

	LineItemReconcileFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "line_item_reconcile_failures_total",
		Help: "Payment provider line item reads that failed and degraded to an empty list",
	})

	InventoryAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_adjustments_total",
		Help: "Per-item stock decrements by result",
	}, []string{"result"})

	InventoryAdjustLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_adjust_latency_seconds",
		Help:    "Latency of a full inventory adjustment batch",
		Buckets: prometheus.DefBuckets,
	})

	CarrierRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrier_requests_total",
		Help: "Carrier API attempts by operation and outcome",
	}, []string{"operation", "outcome"})

	CarrierRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carrier_request_latency_seconds",
		Help:    "Latency of single carrier API attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	LabelFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "label_batch_fallback_total",
		Help: "Batch label requests that fell back to per-shipment retrieval",
	})

	LabelsPrintedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labels_printed_total",
		Help: "Labels delivered to operators by delivery mode",
	}, []string{"mode"})

	LabelFetchFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "label_fetch_failed_total",
		Help: "Shipments skipped during per-shipment label retrieval",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
