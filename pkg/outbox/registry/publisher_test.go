package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	"github.com/castwell/launch-backend/pkg/outbox"
	"github.com/castwell/launch-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolvePurchaseCompleted(t *testing.T) {
	reg := newTestEventRegistry(t)
	purchaseID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventPurchaseCompleted,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   purchaseID,
		Payload: mustEnvelope(t, payloads.PurchaseCompletedEvent{
			PurchaseID:  purchaseID,
			SeatType:    enums.SeatTypeFounder,
			AmountCents: 500000,
		}),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "launch-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.PurchaseCompletedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.PurchaseID != purchaseID || payload.SeatType != enums.SeatTypeFounder {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
}

func TestEventRegistryResolveUnknownEvent(t *testing.T) {
	reg := newTestEventRegistry(t)
	event := models.OutboxEvent{
		EventType:     enums.OutboxEventType("seat_refunded"),
		AggregateType: enums.AggregatePurchase,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, map[string]string{"reason": "none"}),
	}
	_, err := reg.Resolve(event)
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)
	event := models.OutboxEvent{
		EventType:     enums.EventFireSaleChanged,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, payloads.FireSaleChangedEvent{SeatType: enums.SeatTypePatron}),
	}
	_, err := reg.Resolve(event)
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestEventRegistryResolveMissingData(t *testing.T) {
	reg := newTestEventRegistry(t)
	raw, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	event := models.OutboxEvent{
		EventType:     enums.EventPurchaseFlagged,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   uuid.New(),
		Payload:       raw,
	}
	if _, err := reg.Resolve(event); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatalf("expected error without launch topic")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{LaunchTopic: "launch-topic"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	body, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       body,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}
