package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/pkg/enums"
)

// Purchase is one buyer's intent to acquire one seat.
type Purchase struct {
	ID       uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID  uuid.UUID            `gorm:"column:owner_id;type:uuid;not null;index"`
	SeatType enums.SeatType       `gorm:"column:seat_type;type:text;not null"`
	Status   enums.PurchaseStatus `gorm:"column:status;type:text;not null;index"`

	SeatPriceCents int64 `gorm:"column:seat_price_cents;not null"`
	DiscountCents  int64 `gorm:"column:discount_cents;not null;default:0"`
	AddOnsCents    int64 `gorm:"column:add_ons_cents;not null;default:0"`
	AmountCents    int64 `gorm:"column:amount_cents;not null"`

	PaymentReference *string    `gorm:"column:payment_reference"`
	ReservationID    *uuid.UUID `gorm:"column:reservation_id;type:uuid"`
	PromoCode        *string    `gorm:"column:promo_code"`

	PatinaUpgrade bool `gorm:"column:patina_upgrade;not null;default:false"`
	DisplayPlinth bool `gorm:"column:display_plinth;not null;default:false"`
	Engraving     bool `gorm:"column:engraving;not null;default:false"`

	DeliveryName       string  `gorm:"column:delivery_name;not null"`
	DeliveryLine1      string  `gorm:"column:delivery_line1;not null"`
	DeliveryLine2      *string `gorm:"column:delivery_line2"`
	DeliveryCity       string  `gorm:"column:delivery_city;not null"`
	DeliveryPostalCode string  `gorm:"column:delivery_postal_code;not null"`
	DeliveryCountry    string  `gorm:"column:delivery_country;not null"`
	DeliveryPhone      string  `gorm:"column:delivery_phone;not null"`

	IsGift             bool              `gorm:"column:is_gift;not null;default:false"`
	GiftRecipientName  *string           `gorm:"column:gift_recipient_name"`
	GiftRecipientEmail *string           `gorm:"column:gift_recipient_email"`
	GiftMessage        *string           `gorm:"column:gift_message"`
	GiftStatus         *enums.GiftStatus `gorm:"column:gift_status;type:text"`
	GiftClaimedBy      *uuid.UUID        `gorm:"column:gift_claimed_by;type:uuid"`
	GiftClaimedAt      *time.Time        `gorm:"column:gift_claimed_at"`

	NeedsReconciliation  bool                        `gorm:"column:needs_reconciliation;not null;default:false;index"`
	ReconciliationReason *enums.ReconciliationReason `gorm:"column:reconciliation_reason;type:text"`
	ReconciliationNote   *string                     `gorm:"column:reconciliation_note"`

	CompletedAt *time.Time `gorm:"column:completed_at"`
	FailedAt    *time.Time `gorm:"column:failed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Purchase) TableName() string { return "purchases" }

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// AddOns lists the add-ons flagged on the purchase.
func (p Purchase) AddOns() []enums.AddOn {
	out := []enums.AddOn{}
	if p.PatinaUpgrade {
		out = append(out, enums.AddOnPatinaUpgrade)
	}
	if p.DisplayPlinth {
		out = append(out, enums.AddOnDisplayPlinth)
	}
	if p.Engraving {
		out = append(out, enums.AddOnEngraving)
	}
	return out
}
