package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"backend/internal/reconcile"
	"backend/internal/shiprocket"
)

/* =========================
   ADMIN: CREATE SHIPMENT
========================= */

// POST /admin/api/orders/:id/shipment
func CreateShipment(rec *reconcile.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/shipment"
		defer handlePanic(c, route)

		result, err := rec.CreateShipment(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondWithShipmentError(c, route, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success":           true,
			"shiprocketOrderId": result.ShiprocketOrderID,
			"shipmentId":        result.ShipmentID,
			"awb":               result.AWB,
		})
	}
}

/* =========================
   ADMIN: REFRESH STATUS
========================= */

// POST /admin/api/orders/:id/shipment/refresh
func RefreshShipmentStatus(rec *reconcile.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/shipment/refresh"
		defer handlePanic(c, route)

		result, err := rec.RefreshOrderShipmentStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondWithShipmentError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"status":      result.Status,
			"orderId":     result.OrderID,
			"shipmentId":  result.ShipmentID,
			"awb":         result.AWB,
			"trackingUrl": result.TrackingURL,
			"fullData":    result.FullData,
		})
	}
}

/* =========================
   PROVIDER WEBHOOK
========================= */

// POST /webhooks/shiprocket
//
// Shiprocket signs nothing; the configured token is compared against the
// x-api-key header. An empty configured token disables the check (local dev).
func ShiprocketWebhook(rec *reconcile.Reconciler, webhookToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /webhooks/shiprocket"
		defer handlePanic(c, route)

		if webhookToken != "" && c.GetHeader("x-api-key") != webhookToken {
			log.Printf("[%s] rejected: bad webhook token", route)
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}

		var payload map[string]interface{}
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondWithShipmentError(c, route, reconcile.BadWebhookPayloadError{Message: "invalid json body"})
			return
		}

		result, err := rec.HandleShipmentWebhook(c.Request.Context(), payload)
		if err != nil {
			respondWithShipmentError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"orderId":        result.OrderID,
			"status":         result.Status,
			"trackingNumber": result.TrackingNumber,
		})
	}
}

/* =========================
   PUBLIC: ORDER TRACKING
========================= */

// GET /orders/:id/tracking
func GetOrderTracking(rec *reconcile.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id/tracking"
		defer handlePanic(c, route)

		snap, err := rec.TrackOrder(c.Request.Context(), strings.TrimSpace(c.Param("id")))
		if err != nil {
			respondWithShipmentError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"status":      snap.Status,
			"awb":         snap.AWB,
			"trackingUrl": snap.TrackingURL,
			"updatedAt":   snap.UpdatedAt,
		})
	}
}

/* =========================
   ERROR MAPPING
========================= */

// respondWithShipmentError translates the reconciliation error taxonomy into
// HTTP status codes. Provider messages stay verbatim in the response.
func respondWithShipmentError(c *gin.Context, route string, err error) {
	status := http.StatusInternalServerError
	kind := "INTERNAL_ERROR"

	var (
		notFound   reconcile.OrderNotFoundError
		missingRef reconcile.MissingProviderReferenceError
		validation reconcile.ValidationError
		badPayload reconcile.BadWebhookPayloadError
		authErr    shiprocket.AuthenticationError
		createErr  shiprocket.ShipmentCreationError
		fetchErr   shiprocket.StatusFetchError
	)

	switch {
	case errors.As(err, &notFound):
		status, kind = http.StatusNotFound, "ORDER_NOT_FOUND"
	case errors.As(err, &missingRef):
		status, kind = http.StatusBadRequest, "MISSING_PROVIDER_REFERENCE"
	case errors.As(err, &validation):
		status, kind = http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.As(err, &badPayload):
		status, kind = http.StatusBadRequest, "BAD_WEBHOOK_PAYLOAD"
	case errors.As(err, &authErr):
		kind = "AUTHENTICATION_ERROR"
	case errors.As(err, &createErr):
		kind = "SHIPMENT_CREATION_ERROR"
	case errors.As(err, &fetchErr):
		kind = "STATUS_FETCH_ERROR"
	}

	log.Printf("[%s] returning error %d (%s): %v", route, status, kind, err)
	c.AbortWithStatusJSON(status, gin.H{
		"success":   false,
		"error":     err.Error(),
		"errorKind": kind,
	})
}
