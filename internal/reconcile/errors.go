package reconcile

import "fmt"

// OrderNotFoundError means no local order matched the given id or provider
// reference.
type OrderNotFoundError struct {
	OrderID string
}

func (e OrderNotFoundError) Error() string {
	if e.OrderID == "" {
		return "order not found"
	}
	return "order not found: " + e.OrderID
}

// MissingProviderReferenceError means the order has no shipment yet, so there
// is nothing to reconcile against.
type MissingProviderReferenceError struct {
	OrderID string
}

func (e MissingProviderReferenceError) Error() string {
	return fmt.Sprintf("order %s has no shiprocket order or shipment id", e.OrderID)
}

// ValidationError means the order is not shippable as stored.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// BadWebhookPayloadError means an inbound notification carried neither a
// usable provider reference nor a status.
type BadWebhookPayloadError struct {
	Message string
}

func (e BadWebhookPayloadError) Error() string {
	return "bad webhook payload: " + e.Message
}
