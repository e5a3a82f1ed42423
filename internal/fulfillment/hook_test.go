package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/db/dbtest"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/outbox"
	"github.com/castwell/launch-backend/pkg/outbox/payloads"
)

func completedPurchase() models.Purchase {
	completedAt := time.Date(2026, 3, 4, 8, 30, 0, 0, time.UTC)
	ref := "1089250"
	email := "naledi@example.com"
	return models.Purchase{
		ID:                 uuid.New(),
		OwnerID:            uuid.New(),
		SeatType:           enums.SeatTypeFounder,
		Status:             enums.PurchaseStatusCompleted,
		AmountCents:        522500,
		DisplayPlinth:      true,
		IsGift:             true,
		GiftRecipientEmail: &email,
		PaymentReference:   &ref,
		CompletedAt:        &completedAt,
	}
}

func TestPurchaseCompletedQueuesOneEvent(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	hook, err := NewOutboxHook(OutboxHookParams{
		TxRunner: dbpkg.Wrap(conn),
		Outbox:   outbox.NewService(repo, logger.Nop()),
	})
	if err != nil {
		t.Fatalf("new hook: %v", err)
	}
	purchase := completedPurchase()
	ctx := context.Background()

	hook.PurchaseCompleted(ctx, purchase, "payment")
	hook.PurchaseCompleted(ctx, purchase, "payment")

	rows, err := repo.ListForAggregate(ctx, enums.AggregatePurchase, purchase.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one event, got %d", len(rows))
	}
	if rows[0].EventType != enums.EventPurchaseCompleted {
		t.Fatalf("unexpected event type %s", rows[0].EventType)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(rows[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var data payloads.PurchaseCompletedEvent
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if data.PurchaseID != purchase.ID || data.OwnerID != purchase.OwnerID || !data.IsGift || data.Source != "payment" {
		t.Fatalf("unexpected payload %+v", data)
	}
	if len(data.AddOns) != 1 || data.AddOns[0] != enums.AddOnDisplayPlinth {
		t.Fatalf("unexpected add-ons %v", data.AddOns)
	}
	if !data.CompletedAt.Equal(*purchase.CompletedAt) {
		t.Fatalf("unexpected completed at %s", data.CompletedAt)
	}
}

func TestPurchaseFlaggedOnlyForFlaggedPurchases(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	hook, err := NewOutboxHook(OutboxHookParams{
		TxRunner: dbpkg.Wrap(conn),
		Outbox:   outbox.NewService(repo, logger.Nop()),
	})
	if err != nil {
		t.Fatalf("new hook: %v", err)
	}
	ctx := context.Background()

	clean := completedPurchase()
	hook.PurchaseFlagged(ctx, clean)
	rows, err := repo.ListForAggregate(ctx, enums.AggregatePurchase, clean.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no event for a clean purchase, got %d", len(rows))
	}

	flagged := completedPurchase()
	reason := enums.ReconciliationOversold
	note := "paid after founder sold out; seat not counted"
	flagged.NeedsReconciliation = true
	flagged.ReconciliationReason = &reason
	flagged.ReconciliationNote = &note
	hook.PurchaseFlagged(ctx, flagged)

	rows, err = repo.ListForAggregate(ctx, enums.AggregatePurchase, flagged.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(rows) != 1 || rows[0].EventType != enums.EventPurchaseFlagged {
		t.Fatalf("expected one flagged event, got %+v", rows)
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(rows[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var data payloads.PurchaseFlaggedEvent
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if data.Reason != "oversold" || data.Note != note {
		t.Fatalf("unexpected payload %+v", data)
	}
}

type failingEmitter struct{ calls int }

func (f *failingEmitter) EmitIfNotExists(context.Context, *gorm.DB, outbox.DomainEvent) error {
	f.calls++
	return errors.New("outbox unavailable")
}

func TestHookSwallowsEmitFailures(t *testing.T) {
	conn := dbtest.Open(t)
	emitter := &failingEmitter{}
	hook, err := NewOutboxHook(OutboxHookParams{TxRunner: dbpkg.Wrap(conn), Outbox: emitter})
	if err != nil {
		t.Fatalf("new hook: %v", err)
	}
	hook.PurchaseCompleted(context.Background(), completedPurchase(), "promo")
	if emitter.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", emitter.calls)
	}
}

func TestNewOutboxHookRequiresDeps(t *testing.T) {
	if _, err := NewOutboxHook(OutboxHookParams{}); err == nil {
		t.Fatalf("expected error without deps")
	}
}
