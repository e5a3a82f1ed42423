package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/castwell/launch-backend/pkg/enums"
)

// PurchaseCompletedEvent tells fulfillment a seat was paid for and counted.
type PurchaseCompletedEvent struct {
	PurchaseID          uuid.UUID      `json:"purchase_id"`
	OwnerID             uuid.UUID      `json:"owner_id"`
	SeatType            enums.SeatType `json:"seat_type"`
	AmountCents         int64          `json:"amount_cents"`
	AddOns              []enums.AddOn  `json:"add_ons,omitempty"`
	IsGift              bool           `json:"is_gift"`
	GiftRecipientEmail  *string        `json:"gift_recipient_email,omitempty"`
	PaymentReference    *string        `json:"payment_reference,omitempty"`
	PromoCode           *string        `json:"promo_code,omitempty"`
	NeedsReconciliation bool           `json:"needs_reconciliation"`
	Source              string         `json:"source"`
	CompletedAt         time.Time      `json:"completed_at"`
}

// PurchaseFlaggedEvent asks an operator to resolve a purchase by hand.
type PurchaseFlaggedEvent struct {
	PurchaseID uuid.UUID      `json:"purchase_id"`
	SeatType   enums.SeatType `json:"seat_type"`
	Reason     string         `json:"reason"`
	Note       string         `json:"note"`
	FlaggedAt  time.Time      `json:"flagged_at"`
}

// FireSaleChangedEvent reports a fire sale starting or ending on a seat type.
type FireSaleChangedEvent struct {
	SeatType           enums.SeatType `json:"seat_type"`
	Active             bool           `json:"active"`
	FireSalePriceCents *int64         `json:"fire_sale_price_cents,omitempty"`
	EndsAt             *time.Time     `json:"ends_at,omitempty"`
}
