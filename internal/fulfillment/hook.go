// Package fulfillment hands completed purchases to downstream collaborators
// (code issuance, certificates, email) through the transactional outbox.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/outbox"
	"github.com/castwell/launch-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type OutboxHookParams struct {
	TxRunner txRunner
	Outbox   eventEmitter
	Logger   *logger.Logger
}

// OutboxHook queues purchase events after the financial transaction has committed.
// Failures are logged and swallowed; the sale stands regardless.
type OutboxHook struct {
	tx     txRunner
	outbox eventEmitter
	logg   *logger.Logger
}

func NewOutboxHook(params OutboxHookParams) (*OutboxHook, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &OutboxHook{tx: params.TxRunner, outbox: params.Outbox, logg: logg}, nil
}

// PurchaseCompleted queues purchase_completed at most once per purchase.
func (h *OutboxHook) PurchaseCompleted(ctx context.Context, purchase models.Purchase, source string) {
	completedAt := time.Now().UTC()
	if purchase.CompletedAt != nil {
		completedAt = *purchase.CompletedAt
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventPurchaseCompleted,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   purchase.ID,
		Actor:         &outbox.ActorRef{AccountID: purchase.OwnerID, Role: string(enums.AccountRoleBuyer)},
		Data: payloads.PurchaseCompletedEvent{
			PurchaseID:          purchase.ID,
			OwnerID:             purchase.OwnerID,
			SeatType:            purchase.SeatType,
			AmountCents:         purchase.AmountCents,
			AddOns:              purchase.AddOns(),
			IsGift:              purchase.IsGift,
			GiftRecipientEmail:  purchase.GiftRecipientEmail,
			PaymentReference:    purchase.PaymentReference,
			PromoCode:           purchase.PromoCode,
			NeedsReconciliation: purchase.NeedsReconciliation,
			Source:              source,
			CompletedAt:         completedAt,
		},
		OccurredAt: completedAt,
	}
	h.emit(ctx, purchase, event)
}

// PurchaseFlagged queues purchase_flagged so an operator can resolve the purchase.
func (h *OutboxHook) PurchaseFlagged(ctx context.Context, purchase models.Purchase) {
	if !purchase.NeedsReconciliation {
		return
	}
	flaggedAt := time.Now().UTC()
	if purchase.CompletedAt != nil {
		flaggedAt = *purchase.CompletedAt
	}
	reason := ""
	if purchase.ReconciliationReason != nil {
		reason = string(*purchase.ReconciliationReason)
	}
	note := ""
	if purchase.ReconciliationNote != nil {
		note = *purchase.ReconciliationNote
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventPurchaseFlagged,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   purchase.ID,
		Data: payloads.PurchaseFlaggedEvent{
			PurchaseID: purchase.ID,
			SeatType:   purchase.SeatType,
			Reason:     reason,
			Note:       note,
			FlaggedAt:  flaggedAt,
		},
		OccurredAt: flaggedAt,
	}
	h.emit(ctx, purchase, event)
}

func (h *OutboxHook) emit(ctx context.Context, purchase models.Purchase, event outbox.DomainEvent) {
	err := h.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return h.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		logCtx := h.logg.WithPurchaseID(ctx, purchase.ID.String())
		h.logg.Error(h.logg.WithField(logCtx, "event_type", event.EventType), "queue purchase event", err)
	}
}
