package models

import (
	"testing"
	"time"

	"github.com/castwell/launch-backend/pkg/enums"
)

func TestInventoryRowEffectivePrice(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sale := int64(300000)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Second)

	row := InventoryRow{BasePriceCents: 500000}
	if got := row.EffectivePriceCents(now); got != 500000 {
		t.Fatalf("expected base price without sale, got %d", got)
	}

	row.FireSalePriceCents = &sale
	row.FireSaleEndsAt = &later
	if got := row.EffectivePriceCents(now); got != sale {
		t.Fatalf("expected fire sale price, got %d", got)
	}

	row.FireSaleEndsAt = &earlier
	if row.FireSaleActive(now) {
		t.Fatal("expired sale must not be active")
	}
	if got := row.EffectivePriceCents(now); got != 500000 {
		t.Fatalf("expected base price after expiry, got %d", got)
	}

	row.FireSaleEndsAt = &now
	if row.FireSaleActive(now) {
		t.Fatal("sale ending exactly now must not be active")
	}
}

func TestPromoCodeAppliesTo(t *testing.T) {
	founder := enums.SeatTypeFounder
	scoped := PromoCode{SeatType: &founder, DiscountPercent: 100}
	if !scoped.AppliesTo(enums.SeatTypeFounder) || scoped.AppliesTo(enums.SeatTypePatron) {
		t.Fatal("scoped code must only apply to its seat type")
	}
	if !scoped.IsFullDiscount() {
		t.Fatal("100 percent code should be full discount")
	}

	open := PromoCode{DiscountPercent: 20}
	if !open.AppliesTo(enums.SeatTypePatron) {
		t.Fatal("unscoped code applies to any seat type")
	}
	if open.IsFullDiscount() {
		t.Fatal("partial code is not full discount")
	}
}

func TestPurchaseAddOns(t *testing.T) {
	p := Purchase{PatinaUpgrade: true, Engraving: true}
	got := p.AddOns()
	if len(got) != 2 || got[0] != enums.AddOnPatinaUpgrade || got[1] != enums.AddOnEngraving {
		t.Fatalf("unexpected add-ons %v", got)
	}
}
