package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"fulfillment-service/internal/carrier"
	"fulfillment-service/internal/labels"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/store"

	"github.com/lib/pq"
)

type fakeLineItems struct {
	items []payment.LineItem
	err   error
}

func (f *fakeLineItems) ListLineItems(ctx context.Context, sessionID string) ([]payment.LineItem, error) {
	return f.items, f.err
}

type insertCall struct {
	order        models.Order
	withShipping bool
}

type fakeOrderStore struct {
	mu              sync.Mutex
	orders          map[string]*models.Order
	inserts         []insertCall
	noShippingCol   bool
	insertErr       error
	stamped         []string
	stampErr        error
	setShipmentErr  error
	statusUpdates   map[string]string
	onInsertHook    func()
	shipmentCleared []string
}

func newFakeOrderStore(orders ...*models.Order) *fakeOrderStore {
	f := &fakeOrderStore{orders: map[string]*models.Order{}, statusUpdates: map[string]string{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrderStore) InsertOrder(ctx context.Context, order *models.Order, withShipping bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, insertCall{order: *order, withShipping: withShipping})
	if f.onInsertHook != nil {
		f.onInsertHook()
	}
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.noShippingCol && withShipping && order.ShippingAmount != nil {
		return &pq.Error{Code: "42703", Message: `column "shipping_amount" of relation "orders" does not exist`}
	}
	stored := *order
	f.orders[order.ID] = &stored
	return nil
}

func (f *fakeOrderStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrderStore) GetOrdersByIDs(ctx context.Context, ids []string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, id := range ids {
		if o, ok := f.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) GetOrdersBySessionID(ctx context.Context, sessionID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.StripeSessionID == sessionID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	o.Version++
	f.statusUpdates[orderID] = status
	return nil
}

func (f *fakeOrderStore) SetShipment(ctx context.Context, orderID, shipmentID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setShipmentErr != nil {
		return f.setShipmentErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.PacketaShipmentID = &shipmentID
	o.Status = status
	o.Version++
	return nil
}

func (f *fakeOrderStore) ClearShipment(ctx context.Context, orderID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.PacketaShipmentID = nil
	o.Status = status
	o.Version++
	f.shipmentCleared = append(f.shipmentCleared, orderID)
	return nil
}

func (f *fakeOrderStore) MarkLabelsPrinted(ctx context.Context, orderIDs []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamped = append(f.stamped, orderIDs...)
	return f.stampErr
}

type fakeEvents struct {
	mu            sync.Mutex
	created       []*models.OrderCreatedEvent
	shipments     []*models.ShipmentEvent
	printed       []*models.LabelsPrintedEvent
	notifications []*models.NotificationEvent
	err           error
}

func (f *fakeEvents) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, event)
	return f.err
}

func (f *fakeEvents) PublishShipment(ctx context.Context, event *models.ShipmentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shipments = append(f.shipments, event)
	return f.err
}

func (f *fakeEvents) PublishLabelsPrinted(ctx context.Context, event *models.LabelsPrintedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.printed = append(f.printed, event)
	return f.err
}

func (f *fakeEvents) PublishNotification(ctx context.Context, event *models.NotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, event)
	return f.err
}

type stockKey struct{ product, size string }

type fakeStockStore struct {
	mu        sync.Mutex
	available map[stockKey]int
	err       error
	calls     int
}

func (f *fakeStockStore) DecrementStock(ctx context.Context, productID, size string, quantity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	k := stockKey{productID, size}
	if f.available[k] < quantity {
		return false, nil
	}
	f.available[k] -= quantity
	return true, nil
}

func (f *fakeStockStore) GetInventory(ctx context.Context) ([]models.InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.InventoryRecord
	for k, v := range f.available {
		out = append(out, models.InventoryRecord{ProductID: k.product, Size: k.size, Available: v})
	}
	return out, nil
}

type fakeStockCache struct {
	mu     sync.Mutex
	stock  map[stockKey]int
	err    error
	seeded map[stockKey]int
	reads  []stockKey
}

func (f *fakeStockCache) DecrementStock(ctx context.Context, productID, size string, quantity int) (redisclient.DecrementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	k := stockKey{productID, size}
	have, ok := f.stock[k]
	if !ok {
		return redisclient.DecrementUnknownSKU, nil
	}
	if have < quantity {
		return redisclient.DecrementInsufficient, nil
	}
	f.stock[k] = have - quantity
	return redisclient.DecrementApplied, nil
}

func (f *fakeStockCache) SetStock(ctx context.Context, productID, size string, available int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seeded == nil {
		f.seeded = map[stockKey]int{}
	}
	f.seeded[stockKey{productID, size}] = available
	return nil
}

func (f *fakeStockCache) GetStock(ctx context.Context, productID, size string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := stockKey{productID, size}
	f.reads = append(f.reads, k)
	have, ok := f.stock[k]
	if !ok {
		return 0, errors.New("inventory not found")
	}
	return have, nil
}

type fakeLabelFetcher struct {
	docs  map[string][]byte
	err   error
	calls []string
}

func (f *fakeLabelFetcher) PacketLabelPdf(ctx context.Context, packetID, format string, offset int) ([]byte, error) {
	f.calls = append(f.calls, packetID)
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[packetID]
	if !ok {
		return nil, &carrier.StatusError{StatusCode: 404}
	}
	return doc, nil
}

type fakeAggregator struct {
	requested [][]string
	result    func(ids []string) (*labels.Result, error)
}

func (f *fakeAggregator) Aggregate(ctx context.Context, shipmentIDs []string, format string) (*labels.Result, error) {
	f.requested = append(f.requested, shipmentIDs)
	return f.result(shipmentIDs)
}

type fakeBlobs struct {
	uploaded  map[string][]byte
	uploadErr error
	urlErr    error
}

func (f *fakeBlobs) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	if f.uploaded == nil {
		f.uploaded = map[string][]byte{}
	}
	f.uploaded[name] = data
	return nil
}

func (f *fakeBlobs) PublicURL(ctx context.Context, name string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://files.test/" + name, nil
}

type fakePacketCarrier struct {
	created   []carrier.PacketAttributes
	cancelled []string
	createErr error
	cancelErr error
}

func (f *fakePacketCarrier) CreatePacket(ctx context.Context, attrs carrier.PacketAttributes) (*carrier.Packet, error) {
	f.created = append(f.created, attrs)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &carrier.Packet{ID: "4400000099", Barcode: "Z4400000099"}, nil
}

func (f *fakePacketCarrier) CancelPacket(ctx context.Context, packetID string) error {
	f.cancelled = append(f.cancelled, packetID)
	return f.cancelErr
}

var errBoom = errors.New("boom")

func strPtr(s string) *string { return &s }
