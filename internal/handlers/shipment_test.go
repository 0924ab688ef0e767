package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/models"
	"backend/internal/reconcile"
)

/* =========================
   FAKES
========================= */

type stubStore struct {
	orders map[string]*models.Order
}

func (s *stubStore) Get(_ context.Context, orderID string) (*models.Order, error) {
	return s.orders[orderID], nil
}

func (s *stubStore) FindByField(_ context.Context, field, value string) (*models.Order, error) {
	for _, order := range s.orders {
		if field == "shiprocketOrderId" && order.ShiprocketOrderID == value {
			return order, nil
		}
		if field == "shiprocketShipmentId" && order.ShiprocketShipmentID == value {
			return order, nil
		}
	}
	return nil, nil
}

func (s *stubStore) Update(context.Context, string, map[string]interface{}) error {
	return nil
}

type stubProvider struct {
	response map[string]interface{}
}

func (p *stubProvider) CreateShipment(context.Context, map[string]interface{}) (map[string]interface{}, error) {
	return p.response, nil
}

func (p *stubProvider) GetOrderStatus(context.Context, string) (map[string]interface{}, error) {
	return p.response, nil
}

func (p *stubProvider) GetShipmentStatus(context.Context, string) (map[string]interface{}, error) {
	return p.response, nil
}

/* =========================
   HELPERS
========================= */

func shippedOrder() *models.Order {
	return &models.Order{
		ID:          primitive.NewObjectID(),
		OrderNumber: "SS-20250830-ABC123",
		Items: []models.OrderItem{
			{BookID: primitive.NewObjectID(), Name: "Science Grade 7", Price: 300, Quantity: 1},
		},
		ShippingAddress: models.ShippingAddress{
			FullName:    "Asha Rao",
			Phone:       "9999999999",
			AddressLine: "12 Lake View Road",
			City:        "Bengaluru",
			State:       "Karnataka",
			PinCode:     "560001",
		},
		ShiprocketOrderID: "SR100",
	}
}

func shipmentRouter(rec *reconcile.Reconciler, webhookToken string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/admin/api/orders/:id/shipment", CreateShipment(rec))
	router.POST("/admin/api/orders/:id/shipment/refresh", RefreshShipmentStatus(rec))
	router.POST("/webhooks/shiprocket", ShiprocketWebhook(rec, webhookToken))
	router.GET("/orders/:id/tracking", GetOrderTracking(rec))
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, decoded
}

/* =========================
   TESTS
========================= */

func TestRefreshShipmentStatusEndpoint(t *testing.T) {
	order := shippedOrder()
	store := &stubStore{orders: map[string]*models.Order{order.ID.Hex(): order}}
	provider := &stubProvider{response: map[string]interface{}{
		"data": map[string]interface{}{"shipment_status": float64(4), "awb_code": "AWB123"},
	}}
	router := shipmentRouter(reconcile.New(store, provider, nil, "Primary"), "")

	w, body := doJSON(t, router, http.MethodPost, "/admin/api/orders/"+order.ID.Hex()+"/shipment/refresh", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if body["status"] != "SHIPPED" || body["awb"] != "AWB123" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["fullData"] == nil {
		t.Fatal("raw provider payload must be included")
	}
}

func TestRefreshShipmentStatusOrderNotFound(t *testing.T) {
	store := &stubStore{orders: map[string]*models.Order{}}
	router := shipmentRouter(reconcile.New(store, &stubProvider{}, nil, "Primary"), "")

	w, body := doJSON(t, router, http.MethodPost,
		"/admin/api/orders/"+primitive.NewObjectID().Hex()+"/shipment/refresh", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body["errorKind"] != "ORDER_NOT_FOUND" {
		t.Fatalf("unexpected error kind %v", body["errorKind"])
	}
}

func TestRefreshShipmentStatusMissingReference(t *testing.T) {
	order := shippedOrder()
	order.ShiprocketOrderID = ""
	store := &stubStore{orders: map[string]*models.Order{order.ID.Hex(): order}}
	router := shipmentRouter(reconcile.New(store, &stubProvider{}, nil, "Primary"), "")

	w, body := doJSON(t, router, http.MethodPost, "/admin/api/orders/"+order.ID.Hex()+"/shipment/refresh", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body["errorKind"] != "MISSING_PROVIDER_REFERENCE" {
		t.Fatalf("unexpected error kind %v", body["errorKind"])
	}
}

func TestCreateShipmentEndpoint(t *testing.T) {
	order := shippedOrder()
	order.ShiprocketOrderID = ""
	store := &stubStore{orders: map[string]*models.Order{order.ID.Hex(): order}}
	provider := &stubProvider{response: map[string]interface{}{
		"order_id":    float64(123),
		"shipment_id": float64(456),
	}}
	router := shipmentRouter(reconcile.New(store, provider, nil, "Primary"), "")

	w, body := doJSON(t, router, http.MethodPost, "/admin/api/orders/"+order.ID.Hex()+"/shipment", nil, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	if body["shiprocketOrderId"] != "123" || body["shipmentId"] != "456" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCreateShipmentValidationError(t *testing.T) {
	order := shippedOrder()
	order.Items = nil
	store := &stubStore{orders: map[string]*models.Order{order.ID.Hex(): order}}
	router := shipmentRouter(reconcile.New(store, &stubProvider{}, nil, "Primary"), "")

	w, body := doJSON(t, router, http.MethodPost, "/admin/api/orders/"+order.ID.Hex()+"/shipment", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body["errorKind"] != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error kind %v", body["errorKind"])
	}
}

func TestWebhookRejectsBadToken(t *testing.T) {
	store := &stubStore{orders: map[string]*models.Order{}}
	router := shipmentRouter(reconcile.New(store, &stubProvider{}, nil, "Primary"), "hook-secret")

	w, _ := doJSON(t, router, http.MethodPost, "/webhooks/shiprocket",
		map[string]interface{}{"order_id": "SR100", "status": "SHIPPED"},
		map[string]string{"x-api-key": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestWebhookAppliesUpdate(t *testing.T) {
	order := shippedOrder()
	store := &stubStore{orders: map[string]*models.Order{order.ID.Hex(): order}}
	router := shipmentRouter(reconcile.New(store, &stubProvider{}, nil, "Primary"), "hook-secret")

	w, body := doJSON(t, router, http.MethodPost, "/webhooks/shiprocket",
		map[string]interface{}{"order_id": "SR100", "status": "DELIVERED", "awb_code": "AWB123"},
		map[string]string{"x-api-key": "hook-secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if body["orderId"] != order.ID.Hex() || body["status"] != "DELIVERED" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["trackingNumber"] != "AWB123" {
		t.Fatalf("unexpected tracking number %v", body["trackingNumber"])
	}
}

func TestWebhookBadPayload(t *testing.T) {
	store := &stubStore{orders: map[string]*models.Order{}}
	router := shipmentRouter(reconcile.New(store, &stubProvider{}, nil, "Primary"), "")

	w, body := doJSON(t, router, http.MethodPost, "/webhooks/shiprocket",
		map[string]interface{}{"status": "DELIVERED"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body["errorKind"] != "BAD_WEBHOOK_PAYLOAD" {
		t.Fatalf("unexpected error kind %v", body["errorKind"])
	}
}

func TestWebhookUnknownOrder(t *testing.T) {
	store := &stubStore{orders: map[string]*models.Order{}}
	router := shipmentRouter(reconcile.New(store, &stubProvider{}, nil, "Primary"), "")

	w, body := doJSON(t, router, http.MethodPost, "/webhooks/shiprocket",
		map[string]interface{}{"order_id": "SR999", "status": "SHIPPED"}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body["errorKind"] != "ORDER_NOT_FOUND" {
		t.Fatalf("unexpected error kind %v", body["errorKind"])
	}
}

func TestOrderTrackingEndpoint(t *testing.T) {
	order := shippedOrder()
	store := &stubStore{orders: map[string]*models.Order{order.ID.Hex(): order}}
	provider := &stubProvider{response: map[string]interface{}{
		"status": "IN TRANSIT", "awb": "AWB777", "track_url": "https://track.example/AWB777",
	}}
	router := shipmentRouter(reconcile.New(store, provider, nil, "Primary"), "")

	w, body := doJSON(t, router, http.MethodGet, "/orders/"+order.ID.Hex()+"/tracking", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if body["status"] != "IN TRANSIT" || body["awb"] != "AWB777" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["trackingUrl"] != "https://track.example/AWB777" {
		t.Fatalf("unexpected tracking url %v", body["trackingUrl"])
	}
}

func TestOrderTrackingFallsBackWithoutShipment(t *testing.T) {
	order := shippedOrder()
	order.ShiprocketOrderID = ""
	order.DeliveryStatus = "pending"
	store := &stubStore{orders: map[string]*models.Order{order.ID.Hex(): order}}
	router := shipmentRouter(reconcile.New(store, &stubProvider{}, nil, "Primary"), "")

	w, body := doJSON(t, router, http.MethodGet, "/orders/"+order.ID.Hex()+"/tracking", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if body["status"] != "pending" {
		t.Fatalf("expected stored delivery status, got %v", body["status"])
	}
}
