package kafka

import (
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	type payload struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}

	event, err := NewEvent("stock.adjusted", "prod-1", "stock", "inventory", payload{
		ProductID: "prod-1",
		Quantity:  7,
	})
	if err != nil {
		t.Fatalf("NewEvent() returned error: %v", err)
	}

	if event.EventID == "" {
		t.Error("EventID is empty, want generated UUID")
	}
	if event.EventType != "stock.adjusted" {
		t.Errorf("EventType = %q, want stock.adjusted", event.EventType)
	}
	if event.Version != 1 {
		t.Errorf("Version = %d, want 1", event.Version)
	}
	if time.Since(event.Timestamp) > time.Minute {
		t.Errorf("Timestamp = %v, want recent", event.Timestamp)
	}
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	type payload struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}

	event, err := NewEvent("stock.low", "prod-9", "stock", "inventory", payload{
		ProductID: "prod-9",
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("NewEvent() returned error: %v", err)
	}
	event.WithCorrelationID("corr-1").WithMetadata("region", "eu")

	raw, err := event.Marshal()
	if err != nil {
		t.Fatalf("Marshal() returned error: %v", err)
	}

	decoded, err := UnmarshalEvent(raw)
	if err != nil {
		t.Fatalf("UnmarshalEvent() returned error: %v", err)
	}

	if decoded.EventID != event.EventID {
		t.Errorf("EventID = %q, want %q", decoded.EventID, event.EventID)
	}
	if decoded.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q, want corr-1", decoded.CorrelationID)
	}
	if decoded.Metadata["region"] != "eu" {
		t.Errorf("Metadata[region] = %q, want eu", decoded.Metadata["region"])
	}

	var got payload
	if err := decoded.UnmarshalData(&got); err != nil {
		t.Fatalf("UnmarshalData() returned error: %v", err)
	}
	if got.ProductID != "prod-9" || got.Quantity != 2 {
		t.Errorf("payload = %+v, want prod-9/2", got)
	}
}

func TestUnmarshalEvent_InvalidJSON(t *testing.T) {
	if _, err := UnmarshalEvent([]byte("{not json")); err == nil {
		t.Error("UnmarshalEvent() = nil error for invalid JSON, want error")
	}
}

func TestTopic(t *testing.T) {
	if got := Topic("stock", "adjusted"); got != "shop.stock.adjusted" {
		t.Errorf("Topic() = %q, want shop.stock.adjusted", got)
	}
}
