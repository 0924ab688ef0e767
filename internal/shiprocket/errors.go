package shiprocket

import "fmt"

// AuthenticationError means the provider rejected our credentials. The
// provider's own message is kept verbatim for operator diagnosis.
type AuthenticationError struct {
	Message string
}

func (e AuthenticationError) Error() string {
	if e.Message == "" {
		return "shiprocket authentication failed"
	}
	return "shiprocket authentication failed: " + e.Message
}

// ShipmentCreationError means the order-creation call failed.
type ShipmentCreationError struct {
	StatusCode int
	Message    string
}

func (e ShipmentCreationError) Error() string {
	return fmt.Sprintf("shipment creation failed (status %d): %s", e.StatusCode, e.Message)
}

// StatusFetchError means a status lookup failed, on the wire or provider side.
type StatusFetchError struct {
	StatusCode int
	Message    string
}

func (e StatusFetchError) Error() string {
	if e.StatusCode == 0 {
		return "status fetch failed: " + e.Message
	}
	return fmt.Sprintf("status fetch failed (status %d): %s", e.StatusCode, e.Message)
}
