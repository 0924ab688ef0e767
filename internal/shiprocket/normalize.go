package shiprocket

import (
	"fmt"
	"strconv"
	"strings"
)

// Shiprocket does not answer with one stable shape: polling responses,
// webhook notifications and create-order responses all place the interesting
// fields at different spots (top level, under "data", under "shipments[0]").
// Extraction is therefore table driven: an ordered list of scopes is probed
// with an ordered list of candidate keys and the first non-empty value wins.

var statusKeys = []string{"status", "shipment_status", "current_status", "order_status", "status_code"}

var awbKeys = []string{"awb", "awb_code", "awb_number", "tracking_number"}

var trackingURLKeys = []string{"track_url", "tracking_url", "track_link"}

var orderIDKeys = []string{"order_id", "sr_order_id", "channel_order_id"}

var shipmentIDKeys = []string{"shipment_id", "sr_shipment_id"}

// Shiprocket reports some statuses as bare numeric codes. Only part of the
// code space is documented; unmapped codes pass through as their string form.
var numericStatusNames = map[int]string{
	1: "NEW",
	2: "CONFIRMED",
	3: "PROCESSING",
	4: "SHIPPED",
	5: "DELIVERED",
	6: "CANCELLED",
}

type scopeFunc func(payload map[string]interface{}) map[string]interface{}

// Probe order: top level first, then one level under "data", then the first
// element of "shipments", then "shipments" under "data".
var probeScopes = []scopeFunc{
	func(p map[string]interface{}) map[string]interface{} { return p },
	func(p map[string]interface{}) map[string]interface{} { return childMap(p, "data") },
	func(p map[string]interface{}) map[string]interface{} { return firstShipment(p) },
	func(p map[string]interface{}) map[string]interface{} { return firstShipment(childMap(p, "data")) },
}

// TrackingInfo is the normalized view of an arbitrary provider response.
// Zero-value fields mean the response carried nothing recognizable; that is
// not an error.
type TrackingInfo struct {
	Status      string
	AWB         string
	TrackingURL string
}

// Normalize extracts the canonical status, AWB and tracking URL from a raw
// provider response. Status, AWB and URL are probed independently.
func Normalize(payload map[string]interface{}) TrackingInfo {
	return TrackingInfo{
		Status:      CanonicalStatus(probe(payload, statusKeys)),
		AWB:         stringify(probe(payload, awbKeys)),
		TrackingURL: stringify(probe(payload, trackingURLKeys)),
	}
}

// WebhookFields holds the identifiers pulled from an inbound webhook
// notification. Webhook shapes are not guaranteed consistent with polling
// responses, so the same probing applies.
type WebhookFields struct {
	OrderID    string
	ShipmentID string
	Status     string
	AWB        string
}

// ParseWebhook extracts provider identifiers and status from a webhook body.
func ParseWebhook(payload map[string]interface{}) WebhookFields {
	return WebhookFields{
		OrderID:    stringify(probe(payload, orderIDKeys)),
		ShipmentID: stringify(probe(payload, shipmentIDKeys)),
		Status:     CanonicalStatus(probe(payload, statusKeys)),
		AWB:        stringify(probe(payload, awbKeys)),
	}
}

// ExtractOrderID returns the provider order id from a response, if any.
func ExtractOrderID(payload map[string]interface{}) string {
	return stringify(probe(payload, orderIDKeys))
}

// ExtractShipmentID returns the provider shipment id from a response, if any.
func ExtractShipmentID(payload map[string]interface{}) string {
	return stringify(probe(payload, shipmentIDKeys))
}

// CanonicalStatus maps a raw status value to its canonical string form.
// Numeric codes go through the lookup table; anything else is trimmed and
// returned as is. Returns "" when the value is absent or empty.
func CanonicalStatus(value interface{}) string {
	raw := stringify(value)
	if raw == "" {
		return ""
	}
	if code, err := strconv.Atoi(raw); err == nil {
		if name, ok := numericStatusNames[code]; ok {
			return name
		}
	}
	return raw
}

func probe(payload map[string]interface{}, keys []string) interface{} {
	if payload == nil {
		return nil
	}
	for _, scope := range probeScopes {
		m := scope(payload)
		if m == nil {
			continue
		}
		for _, key := range keys {
			if value, ok := m[key]; ok && stringify(value) != "" {
				return value
			}
		}
	}
	return nil
}

func childMap(payload map[string]interface{}, key string) map[string]interface{} {
	if payload == nil {
		return nil
	}
	child, _ := payload[key].(map[string]interface{})
	return child
}

func firstShipment(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	switch shipments := payload["shipments"].(type) {
	case []interface{}:
		if len(shipments) == 0 {
			return nil
		}
		first, _ := shipments[0].(map[string]interface{})
		return first
	case map[string]interface{}:
		// some endpoints return a single shipment object instead of a list
		return shipments
	default:
		return nil
	}
}

func stringify(value interface{}) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		if typed == float64(int64(typed)) {
			return strconv.FormatInt(int64(typed), 10)
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int32:
		return strconv.FormatInt(int64(typed), 10)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", typed))
	}
}
