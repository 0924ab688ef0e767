package shiprocket

import "testing"

func TestNormalizeTopLevelWinsOverNested(t *testing.T) {
	payload := map[string]interface{}{
		"status": "A",
		"data": map[string]interface{}{
			"status": "B",
		},
	}

	info := Normalize(payload)
	if info.Status != "A" {
		t.Fatalf("expected top-level status to win, got %q", info.Status)
	}
}

func TestNormalizeNumericStatusMapping(t *testing.T) {
	info := Normalize(map[string]interface{}{"status": float64(4)})
	if info.Status != "SHIPPED" {
		t.Fatalf("expected SHIPPED for code 4, got %q", info.Status)
	}

	info = Normalize(map[string]interface{}{"status": float64(99)})
	if info.Status != "99" {
		t.Fatalf("expected unmapped code to pass through as string, got %q", info.Status)
	}
}

func TestNormalizeNumericStringStatus(t *testing.T) {
	info := Normalize(map[string]interface{}{"current_status": "5"})
	if info.Status != "DELIVERED" {
		t.Fatalf("expected DELIVERED for code 5, got %q", info.Status)
	}
}

func TestNormalizeNothingRecognized(t *testing.T) {
	info := Normalize(map[string]interface{}{"foo": "bar"})
	if info.Status != "" || info.AWB != "" || info.TrackingURL != "" {
		t.Fatalf("expected empty info, got %+v", info)
	}

	info = Normalize(nil)
	if info.Status != "" {
		t.Fatalf("expected empty status for nil payload, got %q", info.Status)
	}
}

func TestNormalizeDataNesting(t *testing.T) {
	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"shipment_status": float64(4),
			"awb_code":        "AWB123",
		},
	}

	info := Normalize(payload)
	if info.Status != "SHIPPED" {
		t.Fatalf("expected SHIPPED, got %q", info.Status)
	}
	if info.AWB != "AWB123" {
		t.Fatalf("expected AWB123, got %q", info.AWB)
	}
}

func TestNormalizeFirstShipmentNesting(t *testing.T) {
	payload := map[string]interface{}{
		"shipments": []interface{}{
			map[string]interface{}{
				"current_status": "IN TRANSIT",
				"awb":            "AWB777",
				"track_url":      "https://track.example/AWB777",
			},
		},
	}

	info := Normalize(payload)
	if info.Status != "IN TRANSIT" {
		t.Fatalf("expected IN TRANSIT, got %q", info.Status)
	}
	if info.AWB != "AWB777" {
		t.Fatalf("expected AWB777, got %q", info.AWB)
	}
	if info.TrackingURL != "https://track.example/AWB777" {
		t.Fatalf("unexpected tracking url %q", info.TrackingURL)
	}
}

func TestNormalizeSingleShipmentObject(t *testing.T) {
	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"shipments": map[string]interface{}{
				"status": "PICKED UP",
			},
		},
	}

	if info := Normalize(payload); info.Status != "PICKED UP" {
		t.Fatalf("expected PICKED UP, got %q", info.Status)
	}
}

func TestParseWebhookAllFields(t *testing.T) {
	fields := ParseWebhook(map[string]interface{}{
		"order_id": "SR100",
		"status":   "DELIVERED",
		"awb_code": "AWB123",
	})

	if fields.OrderID != "SR100" || fields.Status != "DELIVERED" || fields.AWB != "AWB123" {
		t.Fatalf("unexpected fields %+v", fields)
	}
}

func TestParseWebhookShipmentIDOnly(t *testing.T) {
	fields := ParseWebhook(map[string]interface{}{
		"shipment_id": float64(456),
		"status":      float64(5),
	})

	if fields.OrderID != "" {
		t.Fatalf("expected no order id, got %q", fields.OrderID)
	}
	if fields.ShipmentID != "456" {
		t.Fatalf("expected shipment id 456, got %q", fields.ShipmentID)
	}
	if fields.Status != "DELIVERED" {
		t.Fatalf("expected DELIVERED, got %q", fields.Status)
	}
}

func TestParseWebhookNestedUnderData(t *testing.T) {
	fields := ParseWebhook(map[string]interface{}{
		"data": map[string]interface{}{
			"sr_order_id":    "SR200",
			"current_status": "RTO INITIATED",
		},
	})

	if fields.OrderID != "SR200" {
		t.Fatalf("expected SR200, got %q", fields.OrderID)
	}
	if fields.Status != "RTO INITIATED" {
		t.Fatalf("expected RTO INITIATED, got %q", fields.Status)
	}
}

func TestExtractIDsFromCreateResponse(t *testing.T) {
	payload := map[string]interface{}{
		"order_id":    float64(123),
		"shipment_id": float64(456),
	}

	if got := ExtractOrderID(payload); got != "123" {
		t.Fatalf("expected order id 123, got %q", got)
	}
	if got := ExtractShipmentID(payload); got != "456" {
		t.Fatalf("expected shipment id 456, got %q", got)
	}
}

func TestCanonicalStatusPassThrough(t *testing.T) {
	if got := CanonicalStatus("  DELIVERED "); got != "DELIVERED" {
		t.Fatalf("expected trimmed pass-through, got %q", got)
	}
	if got := CanonicalStatus(nil); got != "" {
		t.Fatalf("expected empty for nil, got %q", got)
	}
}
