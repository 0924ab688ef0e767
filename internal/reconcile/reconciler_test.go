package reconcile

import (
	"context"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/models"
)

/* =========================
   FAKES
========================= */

type fakeStore struct {
	orders  map[string]*models.Order
	updates []map[string]interface{}
}

func newFakeStore(orders ...*models.Order) *fakeStore {
	s := &fakeStore{orders: map[string]*models.Order{}}
	for _, o := range orders {
		s.orders[o.ID.Hex()] = o
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, orderID string) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (s *fakeStore) FindByField(_ context.Context, field, value string) (*models.Order, error) {
	for _, order := range s.orders {
		switch field {
		case "shiprocketOrderId":
			if order.ShiprocketOrderID == value {
				copied := *order
				return &copied, nil
			}
		case "shiprocketShipmentId":
			if order.ShiprocketShipmentID == value {
				copied := *order
				return &copied, nil
			}
		}
	}
	return nil, nil
}

// Update mirrors the overwrite semantics of a $set merge onto the in-memory
// order, so replayed webhooks can be checked for idempotency.
func (s *fakeStore) Update(_ context.Context, orderID string, fields map[string]interface{}) error {
	s.updates = append(s.updates, fields)

	order, ok := s.orders[orderID]
	if !ok {
		return nil
	}
	for key, value := range fields {
		switch key {
		case "shiprocketStatus":
			order.ShiprocketStatus = value.(string)
		case "shiprocketAWB":
			order.ShiprocketAWB = value.(string)
		case "trackingNumber":
			order.TrackingNumber = value.(string)
		case "shiprocketOrderId":
			order.ShiprocketOrderID = value.(string)
		case "shiprocketShipmentId":
			order.ShiprocketShipmentID = value.(string)
		case "shiprocketLastUpdated":
			t := value.(time.Time)
			order.ShiprocketLastUpdate = &t
		case "updatedAt":
			order.UpdatedAt = value.(time.Time)
		}
	}
	return nil
}

type fakeProvider struct {
	orderStatusCalls    int
	shipmentStatusCalls int
	createCalls         int
	response            map[string]interface{}
	err                 error
}

func (p *fakeProvider) CreateShipment(context.Context, map[string]interface{}) (map[string]interface{}, error) {
	p.createCalls++
	return p.response, p.err
}

func (p *fakeProvider) GetOrderStatus(context.Context, string) (map[string]interface{}, error) {
	p.orderStatusCalls++
	return p.response, p.err
}

func (p *fakeProvider) GetShipmentStatus(context.Context, string) (map[string]interface{}, error) {
	p.shipmentStatusCalls++
	return p.response, p.err
}

type fakeCache struct {
	snaps map[string]TrackingSnapshot
	sets  int
	gets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{snaps: map[string]TrackingSnapshot{}}
}

func (c *fakeCache) SetTracking(_ context.Context, orderID string, snap TrackingSnapshot, _ time.Duration) error {
	c.sets++
	c.snaps[orderID] = snap
	return nil
}

func (c *fakeCache) GetTracking(_ context.Context, orderID string) (*TrackingSnapshot, error) {
	c.gets++
	snap, ok := c.snaps[orderID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

/* =========================
   HELPERS
========================= */

var fixedNow = time.Date(2025, 8, 30, 12, 0, 0, 0, time.UTC)

func newTestReconciler(store OrderStore, provider ShipmentAPI, c TrackingCache) *Reconciler {
	r := New(store, provider, c, "Primary")
	r.now = func() time.Time { return fixedNow }
	return r
}

func testOrder(mutate ...func(*models.Order)) *models.Order {
	order := &models.Order{
		ID:          primitive.NewObjectID(),
		OrderNumber: "SS-20250830-ABC123",
		Items: []models.OrderItem{
			{BookID: primitive.NewObjectID(), Name: "Mathematics Grade 5", Price: 250, Quantity: 1},
		},
		ShippingAddress: models.ShippingAddress{
			FullName:    "Asha Rao",
			Phone:       "9999999999",
			AddressLine: "12 Lake View Road",
			City:        "Bengaluru",
			State:       "Karnataka",
			PinCode:     "560001",
		},
		Subtotal:  250,
		Total:     250,
		CreatedAt: fixedNow.Add(-time.Hour),
		UpdatedAt: fixedNow.Add(-time.Hour),
	}
	for _, m := range mutate {
		m(order)
	}
	return order
}

/* =========================
   PULL PATH
========================= */

func TestRefreshRequiresProviderReference(t *testing.T) {
	order := testOrder()
	store := newFakeStore(order)
	provider := &fakeProvider{}
	rec := newTestReconciler(store, provider, nil)

	_, err := rec.RefreshOrderShipmentStatus(context.Background(), order.ID.Hex())
	if _, ok := err.(MissingProviderReferenceError); !ok {
		t.Fatalf("expected MissingProviderReferenceError, got %T (%v)", err, err)
	}
	if provider.orderStatusCalls+provider.shipmentStatusCalls+provider.createCalls != 0 {
		t.Fatal("no provider call may happen without a provider reference")
	}
	if len(store.updates) != 0 {
		t.Fatal("no write may happen without a provider reference")
	}
}

func TestRefreshOrderNotFound(t *testing.T) {
	rec := newTestReconciler(newFakeStore(), &fakeProvider{}, nil)

	_, err := rec.RefreshOrderShipmentStatus(context.Background(), primitive.NewObjectID().Hex())
	if _, ok := err.(OrderNotFoundError); !ok {
		t.Fatalf("expected OrderNotFoundError, got %T (%v)", err, err)
	}
}

func TestRefreshPersistsNormalizedStatus(t *testing.T) {
	order := testOrder(func(o *models.Order) { o.ShiprocketOrderID = "SR100" })
	store := newFakeStore(order)
	provider := &fakeProvider{response: map[string]interface{}{
		"data": map[string]interface{}{
			"shipment_status": float64(4),
			"awb_code":        "AWB123",
		},
	}}
	rec := newTestReconciler(store, provider, nil)

	result, err := rec.RefreshOrderShipmentStatus(context.Background(), order.ID.Hex())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if result.Status != "SHIPPED" {
		t.Fatalf("expected SHIPPED, got %q", result.Status)
	}
	if result.OrderID != "SR100" {
		t.Fatalf("expected provider order id SR100, got %q", result.OrderID)
	}
	if result.AWB != "AWB123" {
		t.Fatalf("expected AWB123, got %q", result.AWB)
	}
	if result.FullData == nil {
		t.Fatal("raw provider response must be returned")
	}

	if len(store.updates) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(store.updates))
	}
	update := store.updates[0]
	if update["shiprocketStatus"] != "SHIPPED" {
		t.Fatalf("expected shiprocketStatus=SHIPPED persisted, got %v", update["shiprocketStatus"])
	}
	if update["shiprocketAWB"] != "AWB123" || update["trackingNumber"] != "AWB123" {
		t.Fatalf("expected AWB persisted to both fields, got %v", update)
	}
	if update["shiprocketLastUpdated"] != fixedNow || update["updatedAt"] != fixedNow {
		t.Fatalf("expected timestamps persisted, got %v", update)
	}
}

func TestRefreshPrefersOrderIDLookup(t *testing.T) {
	order := testOrder(func(o *models.Order) {
		o.ShiprocketOrderID = "SR100"
		o.ShiprocketShipmentID = "456"
	})
	provider := &fakeProvider{response: map[string]interface{}{"status": "NEW"}}
	rec := newTestReconciler(newFakeStore(order), provider, nil)

	if _, err := rec.RefreshOrderShipmentStatus(context.Background(), order.ID.Hex()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if provider.orderStatusCalls != 1 || provider.shipmentStatusCalls != 0 {
		t.Fatalf("expected order-id lookup, got order=%d shipment=%d",
			provider.orderStatusCalls, provider.shipmentStatusCalls)
	}
}

func TestRefreshShipmentIDFallbackLookup(t *testing.T) {
	order := testOrder(func(o *models.Order) { o.ShiprocketShipmentID = "456" })
	provider := &fakeProvider{response: map[string]interface{}{"status": "NEW"}}
	rec := newTestReconciler(newFakeStore(order), provider, nil)

	if _, err := rec.RefreshOrderShipmentStatus(context.Background(), order.ID.Hex()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if provider.shipmentStatusCalls != 1 || provider.orderStatusCalls != 0 {
		t.Fatalf("expected shipment-id lookup, got order=%d shipment=%d",
			provider.orderStatusCalls, provider.shipmentStatusCalls)
	}
}

func TestRefreshUnrecognizedResponseDoesNotMutate(t *testing.T) {
	order := testOrder(func(o *models.Order) {
		o.ShiprocketOrderID = "SR100"
		o.ShiprocketStatus = "SHIPPED"
	})
	store := newFakeStore(order)
	provider := &fakeProvider{response: map[string]interface{}{"foo": "bar"}}
	rec := newTestReconciler(store, provider, nil)

	result, err := rec.RefreshOrderShipmentStatus(context.Background(), order.ID.Hex())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if result.Status != "" {
		t.Fatalf("expected empty status, got %q", result.Status)
	}
	if result.FullData["foo"] != "bar" {
		t.Fatal("raw payload must still be returned")
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected no write, got %d", len(store.updates))
	}
	if order.ShiprocketStatus != "SHIPPED" {
		t.Fatal("previous status must be preserved")
	}
}

/* =========================
   WEBHOOK PATH
========================= */

func TestWebhookUpdatesMatchedOrder(t *testing.T) {
	order := testOrder(func(o *models.Order) { o.ShiprocketOrderID = "SR100" })
	store := newFakeStore(order)
	rec := newTestReconciler(store, &fakeProvider{}, nil)

	result, err := rec.HandleShipmentWebhook(context.Background(), map[string]interface{}{
		"order_id": "SR100",
		"status":   "DELIVERED",
		"awb_code": "AWB123",
	})
	if err != nil {
		t.Fatalf("webhook failed: %v", err)
	}

	if result.OrderID != order.ID.Hex() {
		t.Fatalf("expected local order id, got %q", result.OrderID)
	}
	if result.Status != "DELIVERED" || result.TrackingNumber != "AWB123" {
		t.Fatalf("unexpected result %+v", result)
	}

	if order.ShiprocketStatus != "DELIVERED" {
		t.Fatalf("expected shiprocketStatus=DELIVERED, got %q", order.ShiprocketStatus)
	}
	if order.ShiprocketAWB != "AWB123" || order.TrackingNumber != "AWB123" {
		t.Fatalf("expected AWB on both fields, got %q / %q", order.ShiprocketAWB, order.TrackingNumber)
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	order := testOrder(func(o *models.Order) { o.ShiprocketOrderID = "SR100" })
	store := newFakeStore(order)
	rec := newTestReconciler(store, &fakeProvider{}, nil)

	payload := map[string]interface{}{
		"order_id":    "SR100",
		"shipment_id": float64(456),
		"status":      "DELIVERED",
		"awb_code":    "AWB123",
	}

	if _, err := rec.HandleShipmentWebhook(context.Background(), payload); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	afterFirst := *store.orders[order.ID.Hex()]

	if _, err := rec.HandleShipmentWebhook(context.Background(), payload); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	afterSecond := *store.orders[order.ID.Hex()]

	if !reflect.DeepEqual(afterFirst, afterSecond) {
		t.Fatalf("replay changed order state:\nfirst:  %+v\nsecond: %+v", afterFirst, afterSecond)
	}
}

func TestWebhookShipmentIDFallbackMatch(t *testing.T) {
	order := testOrder(func(o *models.Order) { o.ShiprocketShipmentID = "456" })
	store := newFakeStore(order)
	rec := newTestReconciler(store, &fakeProvider{}, nil)

	result, err := rec.HandleShipmentWebhook(context.Background(), map[string]interface{}{
		"shipment_id": "456",
		"status":      "IN TRANSIT",
	})
	if err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if result.OrderID != order.ID.Hex() {
		t.Fatalf("expected fallback match on shipment id, got %q", result.OrderID)
	}
}

func TestWebhookBackfillsProviderIDs(t *testing.T) {
	order := testOrder(func(o *models.Order) { o.ShiprocketShipmentID = "456" })
	store := newFakeStore(order)
	rec := newTestReconciler(store, &fakeProvider{}, nil)

	_, err := rec.HandleShipmentWebhook(context.Background(), map[string]interface{}{
		"order_id":    "SR100",
		"shipment_id": "456",
		"status":      "SHIPPED",
	})
	if err != nil {
		t.Fatalf("webhook failed: %v", err)
	}

	if order.ShiprocketOrderID != "SR100" {
		t.Fatalf("expected order id back-filled, got %q", order.ShiprocketOrderID)
	}
}

func TestWebhookRejectsPayloadWithoutIDs(t *testing.T) {
	rec := newTestReconciler(newFakeStore(), &fakeProvider{}, nil)

	_, err := rec.HandleShipmentWebhook(context.Background(), map[string]interface{}{
		"status": "DELIVERED",
	})
	if _, ok := err.(BadWebhookPayloadError); !ok {
		t.Fatalf("expected BadWebhookPayloadError, got %T (%v)", err, err)
	}
}

func TestWebhookRejectsPayloadWithoutStatus(t *testing.T) {
	rec := newTestReconciler(newFakeStore(), &fakeProvider{}, nil)

	_, err := rec.HandleShipmentWebhook(context.Background(), map[string]interface{}{
		"order_id": "SR100",
	})
	if _, ok := err.(BadWebhookPayloadError); !ok {
		t.Fatalf("expected BadWebhookPayloadError, got %T (%v)", err, err)
	}
}

func TestWebhookOrderNotFound(t *testing.T) {
	rec := newTestReconciler(newFakeStore(), &fakeProvider{}, nil)

	_, err := rec.HandleShipmentWebhook(context.Background(), map[string]interface{}{
		"order_id": "SR999",
		"status":   "SHIPPED",
	})
	if _, ok := err.(OrderNotFoundError); !ok {
		t.Fatalf("expected OrderNotFoundError, got %T (%v)", err, err)
	}
}

/* =========================
   CREATE SHIPMENT
========================= */

func TestCreateShipmentValidatesOrder(t *testing.T) {
	noAddress := testOrder(func(o *models.Order) { o.ShippingAddress = models.ShippingAddress{} })
	noItems := testOrder(func(o *models.Order) { o.Items = nil })
	store := newFakeStore(noAddress, noItems)
	provider := &fakeProvider{}
	rec := newTestReconciler(store, provider, nil)

	_, err := rec.CreateShipment(context.Background(), noAddress.ID.Hex())
	if _, ok := err.(ValidationError); !ok {
		t.Fatalf("expected ValidationError for missing address, got %T (%v)", err, err)
	}

	_, err = rec.CreateShipment(context.Background(), noItems.ID.Hex())
	if _, ok := err.(ValidationError); !ok {
		t.Fatalf("expected ValidationError for missing items, got %T (%v)", err, err)
	}

	if provider.createCalls != 0 {
		t.Fatal("provider must not be called for invalid orders")
	}
}

func TestCreateShipmentPersistsProviderIDs(t *testing.T) {
	order := testOrder()
	store := newFakeStore(order)
	provider := &fakeProvider{response: map[string]interface{}{
		"order_id":    float64(123),
		"shipment_id": float64(456),
		"status":      "NEW",
	}}
	rec := newTestReconciler(store, provider, nil)

	result, err := rec.CreateShipment(context.Background(), order.ID.Hex())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if result.ShiprocketOrderID != "123" || result.ShipmentID != "456" {
		t.Fatalf("unexpected result %+v", result)
	}
	if order.ShiprocketOrderID != "123" || order.ShiprocketShipmentID != "456" {
		t.Fatalf("expected provider ids persisted, got %q / %q",
			order.ShiprocketOrderID, order.ShiprocketShipmentID)
	}
	if order.ShiprocketStatus != "NEW" {
		t.Fatalf("expected initial status persisted, got %q", order.ShiprocketStatus)
	}
}

func TestBuildShipmentPayloadShape(t *testing.T) {
	order := testOrder(func(o *models.Order) { o.PaymentMethod = "cod" })

	payload := buildShipmentPayload(order, "Warehouse-1")

	if payload["order_id"] != order.OrderNumber {
		t.Fatalf("expected order number as provider order id, got %v", payload["order_id"])
	}
	if payload["pickup_location"] != "Warehouse-1" {
		t.Fatalf("unexpected pickup location %v", payload["pickup_location"])
	}
	if payload["payment_method"] != "COD" {
		t.Fatalf("expected COD, got %v", payload["payment_method"])
	}
	items, ok := payload["order_items"].([]map[string]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("unexpected order_items %v", payload["order_items"])
	}
	if items[0]["units"] != 1 || items[0]["selling_price"] != 250.0 {
		t.Fatalf("unexpected item %v", items[0])
	}
}

/* =========================
   TRACKING
========================= */

func TestTrackOrderServesCachedSnapshot(t *testing.T) {
	order := testOrder(func(o *models.Order) { o.ShiprocketOrderID = "SR100" })
	provider := &fakeProvider{}
	c := newFakeCache()
	c.snaps[order.ID.Hex()] = TrackingSnapshot{Status: "SHIPPED", AWB: "AWB123", UpdatedAt: fixedNow}
	rec := newTestReconciler(newFakeStore(order), provider, c)

	snap, err := rec.TrackOrder(context.Background(), order.ID.Hex())
	if err != nil {
		t.Fatalf("track failed: %v", err)
	}
	if snap.Status != "SHIPPED" || snap.AWB != "AWB123" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if provider.orderStatusCalls != 0 {
		t.Fatal("cache hit must not reach the provider")
	}
}

func TestTrackOrderRefreshesAndCachesOnMiss(t *testing.T) {
	order := testOrder(func(o *models.Order) { o.ShiprocketOrderID = "SR100" })
	provider := &fakeProvider{response: map[string]interface{}{"status": "SHIPPED"}}
	c := newFakeCache()
	rec := newTestReconciler(newFakeStore(order), provider, c)

	snap, err := rec.TrackOrder(context.Background(), order.ID.Hex())
	if err != nil {
		t.Fatalf("track failed: %v", err)
	}
	if snap.Status != "SHIPPED" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if provider.orderStatusCalls != 1 {
		t.Fatalf("expected one provider call, got %d", provider.orderStatusCalls)
	}
	if c.sets != 1 {
		t.Fatalf("expected snapshot cached, got %d sets", c.sets)
	}
}

func TestTrackOrderFallsBackToStoredFields(t *testing.T) {
	order := testOrder(func(o *models.Order) {
		o.DeliveryStatus = "pending"
	})
	rec := newTestReconciler(newFakeStore(order), &fakeProvider{}, nil)

	snap, err := rec.TrackOrder(context.Background(), order.ID.Hex())
	if err != nil {
		t.Fatalf("track failed: %v", err)
	}
	if snap.Status != "pending" {
		t.Fatalf("expected stored delivery status, got %q", snap.Status)
	}
}
