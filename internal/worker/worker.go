package worker

import (
	"context"

	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// SessionPersister turns a paid checkout into an order.
type SessionPersister interface {
	PersistFromSession(ctx context.Context, session *models.CheckoutSession) (*service.PersistResult, error)
}

// CheckoutWorker consumes completed checkouts and persists orders
type CheckoutWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	persister    SessionPersister
	logger       *zap.Logger
}

// NewCheckoutWorker creates a new checkout worker
func NewCheckoutWorker(consumer *broker.Consumer, persister SessionPersister) *CheckoutWorker {
	w := &CheckoutWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		persister:    persister,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnCheckoutCompleted(w.HandleCheckoutCompleted)
	return w
}

// HandleCheckoutCompleted persists the order for one completed checkout
func (w *CheckoutWorker) HandleCheckoutCompleted(ctx context.Context, event *models.CheckoutCompletedEvent) error {
	ctx = util.WithRequestID(ctx, event.EventID)

	result, err := w.persister.PersistFromSession(ctx, &event.Session)
	if err != nil {
		return err
	}

	util.LoggerFrom(ctx).Info("Checkout processed",
		zap.String("session_id", event.Session.ID),
		zap.String("order_id", result.Order.ID))
	return nil
}

// Start starts the worker
func (w *CheckoutWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting checkout worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CheckoutWorker) Stop() error {
	w.logger.Info("Stopping checkout worker")
	return w.consumer.Close()
}
