package reconcile

import (
	"context"
	"log"
	"strings"
	"time"

	"backend/internal/models"
	"backend/internal/shiprocket"
)

// OrderStore is the slice of the document store this subsystem needs: load
// by id, limit-1 lookup by a single field, and partial-merge updates.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*models.Order, error)
	FindByField(ctx context.Context, field, value string) (*models.Order, error)
	Update(ctx context.Context, orderID string, fields map[string]interface{}) error
}

// ShipmentAPI is the provider surface consumed by reconciliation.
type ShipmentAPI interface {
	CreateShipment(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error)
	GetOrderStatus(ctx context.Context, providerOrderID string) (map[string]interface{}, error)
	GetShipmentStatus(ctx context.Context, providerShipmentID string) (map[string]interface{}, error)
}

// TrackingSnapshot is the short-lived view of a shipment served to the
// storefront tracking page.
type TrackingSnapshot struct {
	Status      string    `json:"status"`
	AWB         string    `json:"awb,omitempty"`
	TrackingURL string    `json:"trackingUrl,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TrackingCache stores snapshots with a TTL. Implementations must treat
// misses as (nil, nil). Optional; a nil cache disables snapshot caching.
type TrackingCache interface {
	SetTracking(ctx context.Context, orderID string, snap TrackingSnapshot, ttl time.Duration) error
	GetTracking(ctx context.Context, orderID string) (*TrackingSnapshot, error)
}

const snapshotTTL = 5 * time.Minute

// Reconciler synchronizes local orders with the shipping provider, by
// polling (pull path) and by inbound webhook (push path).
type Reconciler struct {
	store          OrderStore
	provider       ShipmentAPI
	cache          TrackingCache
	pickupLocation string
	now            func() time.Time
}

func New(store OrderStore, provider ShipmentAPI, cache TrackingCache, pickupLocation string) *Reconciler {
	return &Reconciler{
		store:          store,
		provider:       provider,
		cache:          cache,
		pickupLocation: pickupLocation,
		now:            time.Now,
	}
}

// CreateResult reports the provider identifiers assigned to a new shipment.
type CreateResult struct {
	ShiprocketOrderID string `json:"shiprocketOrderId"`
	ShipmentID        string `json:"shipmentId"`
	AWB               string `json:"awb,omitempty"`
}

// CreateShipment registers the order with the provider and stores the
// returned identifiers on the order document.
func (r *Reconciler) CreateShipment(ctx context.Context, orderID string) (*CreateResult, error) {
	order, err := r.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, OrderNotFoundError{OrderID: orderID}
	}

	if order.ShippingAddress.IsEmpty() {
		return nil, ValidationError{Message: "order has no shipping address"}
	}
	if len(order.Items) == 0 {
		return nil, ValidationError{Message: "order has no items"}
	}

	raw, err := r.provider.CreateShipment(ctx, buildShipmentPayload(order, r.pickupLocation))
	if err != nil {
		return nil, err
	}

	result := CreateResult{
		ShiprocketOrderID: shiprocket.ExtractOrderID(raw),
		ShipmentID:        shiprocket.ExtractShipmentID(raw),
	}
	info := shiprocket.Normalize(raw)
	result.AWB = info.AWB

	now := r.now()
	fields := map[string]interface{}{
		"updatedAt": now,
	}
	if result.ShiprocketOrderID != "" {
		fields["shiprocketOrderId"] = result.ShiprocketOrderID
	}
	if result.ShipmentID != "" {
		fields["shiprocketShipmentId"] = result.ShipmentID
	}
	if result.AWB != "" {
		fields["shiprocketAWB"] = result.AWB
		fields["trackingNumber"] = result.AWB
	}
	if info.Status != "" {
		fields["shiprocketStatus"] = info.Status
		fields["shiprocketLastUpdated"] = now
	}
	if err := r.store.Update(ctx, orderID, fields); err != nil {
		return nil, err
	}

	log.Printf("[RECONCILE] [INFO] shipment created for order %s (sr order %s, shipment %s)",
		orderID, result.ShiprocketOrderID, result.ShipmentID)
	return &result, nil
}

// RefreshResult is returned by the pull path. FullData carries the raw
// provider response untouched, even when nothing recognizable was extracted.
type RefreshResult struct {
	Status      string                 `json:"status,omitempty"`
	OrderID     string                 `json:"orderId,omitempty"`
	ShipmentID  string                 `json:"shipmentId,omitempty"`
	AWB         string                 `json:"awb,omitempty"`
	TrackingURL string                 `json:"trackingUrl,omitempty"`
	FullData    map[string]interface{} `json:"fullData"`
}

// RefreshOrderShipmentStatus polls the provider for the order's current
// shipment state and persists the extracted status. Steps before the final
// update are read-only; a provider failure leaves the order untouched.
func (r *Reconciler) RefreshOrderShipmentStatus(ctx context.Context, orderID string) (*RefreshResult, error) {
	order, err := r.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, OrderNotFoundError{OrderID: orderID}
	}
	if order.ShiprocketOrderID == "" && order.ShiprocketShipmentID == "" {
		return nil, MissingProviderReferenceError{OrderID: orderID}
	}

	// order-id lookup is preferred when both references exist
	var raw map[string]interface{}
	if order.ShiprocketOrderID != "" {
		raw, err = r.provider.GetOrderStatus(ctx, order.ShiprocketOrderID)
	} else {
		raw, err = r.provider.GetShipmentStatus(ctx, order.ShiprocketShipmentID)
	}
	if err != nil {
		return nil, err
	}

	info := shiprocket.Normalize(raw)
	result := &RefreshResult{
		Status:      info.Status,
		OrderID:     order.ShiprocketOrderID,
		ShipmentID:  order.ShiprocketShipmentID,
		AWB:         info.AWB,
		TrackingURL: info.TrackingURL,
		FullData:    raw,
	}

	if info.Status == "" {
		log.Printf("[RECONCILE] [WARN] no status found in provider response for order %s", orderID)
		return result, nil
	}

	now := r.now()
	fields := map[string]interface{}{
		"shiprocketStatus":      info.Status,
		"shiprocketLastUpdated": now,
		"updatedAt":             now,
	}
	// AWB keeps its previous value when the response omits it
	if info.AWB != "" {
		fields["shiprocketAWB"] = info.AWB
		fields["trackingNumber"] = info.AWB
	}
	if err := r.store.Update(ctx, orderID, fields); err != nil {
		return nil, err
	}

	r.cacheSnapshot(ctx, orderID, TrackingSnapshot{
		Status:      info.Status,
		AWB:         firstNonEmpty(info.AWB, order.ShiprocketAWB),
		TrackingURL: info.TrackingURL,
		UpdatedAt:   now,
	})

	return result, nil
}

// WebhookResult reports which local order a notification landed on.
type WebhookResult struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

// HandleShipmentWebhook applies an inbound provider notification to the
// matching order. No provider call is made; everything comes from the
// payload. Replaying the same payload is harmless: all writes are plain
// overwrites.
func (r *Reconciler) HandleShipmentWebhook(ctx context.Context, payload map[string]interface{}) (*WebhookResult, error) {
	fields := shiprocket.ParseWebhook(payload)
	if fields.OrderID == "" && fields.ShipmentID == "" {
		return nil, BadWebhookPayloadError{Message: "no order or shipment id"}
	}
	if fields.Status == "" {
		return nil, BadWebhookPayloadError{Message: "no status"}
	}

	order, err := r.lookupByProviderRefs(ctx, fields.OrderID, fields.ShipmentID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, OrderNotFoundError{}
	}

	now := r.now()
	update := map[string]interface{}{
		"shiprocketStatus":      fields.Status,
		"shiprocketLastUpdated": now,
		"updatedAt":             now,
	}
	if fields.AWB != "" {
		update["shiprocketAWB"] = fields.AWB
		update["trackingNumber"] = fields.AWB
	}
	// back-fill provider ids when the shipment was created out-of-band
	if order.ShiprocketOrderID == "" && fields.OrderID != "" {
		update["shiprocketOrderId"] = fields.OrderID
	}
	if order.ShiprocketShipmentID == "" && fields.ShipmentID != "" {
		update["shiprocketShipmentId"] = fields.ShipmentID
	}

	localID := order.ID.Hex()
	if err := r.store.Update(ctx, localID, update); err != nil {
		return nil, err
	}

	r.cacheSnapshot(ctx, localID, TrackingSnapshot{
		Status:    fields.Status,
		AWB:       firstNonEmpty(fields.AWB, order.ShiprocketAWB),
		UpdatedAt: now,
	})

	log.Printf("[RECONCILE] [INFO] webhook applied to order %s: status=%s", localID, fields.Status)
	return &WebhookResult{
		OrderID:        localID,
		Status:         fields.Status,
		TrackingNumber: fields.AWB,
	}, nil
}

// TrackOrder serves the storefront tracking page: the cached snapshot when
// one is fresh, otherwise a live refresh. Orders that have no shipment yet
// fall back to the delivery fields stored on the order instead of failing.
func (r *Reconciler) TrackOrder(ctx context.Context, orderID string) (*TrackingSnapshot, error) {
	if snap := r.CachedTracking(ctx, orderID); snap != nil {
		return snap, nil
	}

	result, err := r.RefreshOrderShipmentStatus(ctx, orderID)
	if err != nil {
		if _, ok := err.(MissingProviderReferenceError); ok {
			return r.storedSnapshot(ctx, orderID)
		}
		return nil, err
	}

	return &TrackingSnapshot{
		Status:      result.Status,
		AWB:         result.AWB,
		TrackingURL: result.TrackingURL,
		UpdatedAt:   r.now(),
	}, nil
}

func (r *Reconciler) storedSnapshot(ctx context.Context, orderID string) (*TrackingSnapshot, error) {
	order, err := r.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, OrderNotFoundError{OrderID: orderID}
	}

	snap := &TrackingSnapshot{
		Status: firstNonEmpty(order.ShiprocketStatus, order.DeliveryStatus),
		AWB:    firstNonEmpty(order.ShiprocketAWB, order.TrackingNumber),
	}
	if order.ShiprocketLastUpdate != nil {
		snap.UpdatedAt = *order.ShiprocketLastUpdate
	} else {
		snap.UpdatedAt = order.UpdatedAt
	}
	return snap, nil
}

// CachedTracking returns the cached snapshot for an order, or nil on miss or
// when no cache is configured.
func (r *Reconciler) CachedTracking(ctx context.Context, orderID string) *TrackingSnapshot {
	if r.cache == nil {
		return nil
	}
	snap, err := r.cache.GetTracking(ctx, orderID)
	if err != nil {
		log.Printf("[RECONCILE] [WARN] tracking cache read failed for order %s: %v", orderID, err)
		return nil
	}
	return snap
}

func (r *Reconciler) lookupByProviderRefs(ctx context.Context, providerOrderID, providerShipmentID string) (*models.Order, error) {
	if providerOrderID != "" {
		order, err := r.store.FindByField(ctx, "shiprocketOrderId", providerOrderID)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}
	if providerShipmentID != "" {
		return r.store.FindByField(ctx, "shiprocketShipmentId", providerShipmentID)
	}
	return nil, nil
}

func (r *Reconciler) cacheSnapshot(ctx context.Context, orderID string, snap TrackingSnapshot) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetTracking(ctx, orderID, snap, snapshotTTL); err != nil {
		log.Printf("[RECONCILE] [WARN] tracking cache write failed for order %s: %v", orderID, err)
	}
}

// buildShipmentPayload shapes an order into the provider's adhoc
// order-creation format.
func buildShipmentPayload(order *models.Order, pickupLocation string) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		sku := item.SKU
		if sku == "" {
			sku = item.BookID.Hex()
		}
		items = append(items, map[string]interface{}{
			"name":          item.Name,
			"sku":           sku,
			"units":         item.Quantity,
			"selling_price": item.Price,
		})
	}

	paymentMethod := "Prepaid"
	if strings.EqualFold(order.PaymentMethod, "cod") || strings.EqualFold(order.PaymentMethod, "cash") {
		paymentMethod = "COD"
	}

	nameParts := strings.Fields(order.ShippingAddress.FullName)
	firstName := order.ShippingAddress.FullName
	lastName := ""
	if len(nameParts) > 1 {
		firstName = strings.Join(nameParts[:len(nameParts)-1], " ")
		lastName = nameParts[len(nameParts)-1]
	}

	country := order.ShippingAddress.Country
	if country == "" {
		country = "India"
	}

	return map[string]interface{}{
		"order_id":              order.OrderNumber,
		"order_date":            order.CreatedAt.Format("2006-01-02 15:04"),
		"pickup_location":       pickupLocation,
		"billing_customer_name": firstName,
		"billing_last_name":     lastName,
		"billing_address":       order.ShippingAddress.AddressLine,
		"billing_city":          order.ShippingAddress.City,
		"billing_pincode":       order.ShippingAddress.PinCode,
		"billing_state":         order.ShippingAddress.State,
		"billing_country":       country,
		"billing_email":         order.ShippingAddress.Email,
		"billing_phone":         order.ShippingAddress.Phone,
		"shipping_is_billing":   true,
		"order_items":           items,
		"payment_method":        paymentMethod,
		"sub_total":             order.Subtotal,
		"length":                30,
		"breadth":               22,
		"height":                10,
		"weight":                estimateWeight(order.Items),
	}
}

// estimateWeight assumes half a kilogram per book; the provider requires a
// non-zero weight.
func estimateWeight(items []models.OrderItem) float64 {
	units := 0
	for _, item := range items {
		units += item.Quantity
	}
	if units == 0 {
		units = 1
	}
	return float64(units) * 0.5
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
