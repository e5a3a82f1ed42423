package models

import (
	"time"

	"github.com/castwell/launch-backend/pkg/enums"
)

// InventoryRow is the single source of truth for one seat type's capacity and price.
type InventoryRow struct {
	SeatType           enums.SeatType `gorm:"column:seat_type;type:text;primaryKey"`
	Capacity           int            `gorm:"column:capacity;not null"`
	Sold               int            `gorm:"column:sold;not null;default:0"`
	BasePriceCents     int64          `gorm:"column:base_price_cents;not null"`
	FireSalePriceCents *int64         `gorm:"column:fire_sale_price_cents"`
	FireSaleEndsAt     *time.Time     `gorm:"column:fire_sale_ends_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryRow) TableName() string { return "inventory_rows" }

// FireSaleActive reports whether discounted pricing applies at now.
func (r InventoryRow) FireSaleActive(now time.Time) bool {
	return r.FireSalePriceCents != nil && r.FireSaleEndsAt != nil && now.Before(*r.FireSaleEndsAt)
}

// EffectivePriceCents returns the fire sale price while it runs, else the base price.
func (r InventoryRow) EffectivePriceCents(now time.Time) int64 {
	if r.FireSaleActive(now) {
		return *r.FireSalePriceCents
	}
	return r.BasePriceCents
}
