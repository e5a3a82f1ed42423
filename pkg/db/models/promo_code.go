package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/castwell/launch-backend/pkg/enums"
)

// PromoCode is a one-shot discount. SeatType nil means it applies to either tier.
type PromoCode struct {
	Code                string          `gorm:"column:code;primaryKey"`
	SeatType            *enums.SeatType `gorm:"column:seat_type;type:text"`
	DiscountPercent     int             `gorm:"column:discount_percent;not null"`
	Used                bool            `gorm:"column:used;not null;default:false"`
	RedeemedBy          *uuid.UUID      `gorm:"column:redeemed_by;type:uuid"`
	ResultingPurchaseID *uuid.UUID      `gorm:"column:resulting_purchase_id;type:uuid"`
	UsedAt              *time.Time      `gorm:"column:used_at"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (PromoCode) TableName() string { return "promo_codes" }

func (p PromoCode) IsFullDiscount() bool {
	return p.DiscountPercent >= 100
}

// AppliesTo reports whether the code may be used for seatType.
func (p PromoCode) AppliesTo(seatType enums.SeatType) bool {
	return p.SeatType == nil || *p.SeatType == seatType
}
