package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
)

type deliveryResponse struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
	Phone      string  `json:"phone"`
}

type giftResponse struct {
	RecipientName  *string           `json:"recipientName,omitempty"`
	RecipientEmail *string           `json:"recipientEmail,omitempty"`
	Message        *string           `json:"message,omitempty"`
	Status         *enums.GiftStatus `json:"status,omitempty"`
	ClaimedAt      *time.Time        `json:"claimedAt,omitempty"`
}

type purchaseResponse struct {
	ID                   uuid.UUID                   `json:"id"`
	OwnerID              uuid.UUID                   `json:"ownerId"`
	SeatType             enums.SeatType              `json:"seatType"`
	Status               enums.PurchaseStatus        `json:"status"`
	SeatPriceCents       int64                       `json:"seatPriceCents"`
	DiscountCents        int64                       `json:"discountCents"`
	AddOnsCents          int64                       `json:"addOnsCents"`
	AmountCents          int64                       `json:"amountCents"`
	AddOns               []enums.AddOn               `json:"addOns"`
	PromoCode            *string                     `json:"promoCode,omitempty"`
	ReservationID        *uuid.UUID                  `json:"reservationId,omitempty"`
	Delivery             deliveryResponse            `json:"delivery"`
	IsGift               bool                        `json:"isGift"`
	Gift                 *giftResponse               `json:"gift,omitempty"`
	NeedsReconciliation  bool                        `json:"needsReconciliation"`
	ReconciliationReason *enums.ReconciliationReason `json:"reconciliationReason,omitempty"`
	ReconciliationNote   *string                     `json:"reconciliationNote,omitempty"`
	CompletedAt          *time.Time                  `json:"completedAt,omitempty"`
	CreatedAt            time.Time                   `json:"createdAt"`
}

func newPurchaseResponse(p *models.Purchase) *purchaseResponse {
	if p == nil {
		return nil
	}
	out := &purchaseResponse{
		ID:             p.ID,
		OwnerID:        p.OwnerID,
		SeatType:       p.SeatType,
		Status:         p.Status,
		SeatPriceCents: p.SeatPriceCents,
		DiscountCents:  p.DiscountCents,
		AddOnsCents:    p.AddOnsCents,
		AmountCents:    p.AmountCents,
		AddOns:         p.AddOns(),
		PromoCode:      p.PromoCode,
		ReservationID:  p.ReservationID,
		Delivery: deliveryResponse{
			Name:       p.DeliveryName,
			Line1:      p.DeliveryLine1,
			Line2:      p.DeliveryLine2,
			City:       p.DeliveryCity,
			PostalCode: p.DeliveryPostalCode,
			Country:    p.DeliveryCountry,
			Phone:      p.DeliveryPhone,
		},
		IsGift:               p.IsGift,
		NeedsReconciliation:  p.NeedsReconciliation,
		ReconciliationReason: p.ReconciliationReason,
		ReconciliationNote:   p.ReconciliationNote,
		CompletedAt:          p.CompletedAt,
		CreatedAt:            p.CreatedAt,
	}
	if p.IsGift {
		out.Gift = &giftResponse{
			RecipientName:  p.GiftRecipientName,
			RecipientEmail: p.GiftRecipientEmail,
			Message:        p.GiftMessage,
			Status:         p.GiftStatus,
			ClaimedAt:      p.GiftClaimedAt,
		}
	}
	return out
}

func newPurchaseList(rows []models.Purchase) []*purchaseResponse {
	out := make([]*purchaseResponse, 0, len(rows))
	for i := range rows {
		out = append(out, newPurchaseResponse(&rows[i]))
	}
	return out
}

type reservationResponse struct {
	ID         uuid.UUID               `json:"id"`
	SeatType   enums.SeatType          `json:"seatType"`
	OwnerID    *uuid.UUID              `json:"ownerId,omitempty"`
	Status     enums.ReservationStatus `json:"status"`
	ExpiresAt  time.Time               `json:"expiresAt"`
	PurchaseID *uuid.UUID              `json:"purchaseId,omitempty"`
	CreatedAt  time.Time               `json:"createdAt"`
}

func newReservationResponse(r *models.Reservation) *reservationResponse {
	if r == nil {
		return nil
	}
	return &reservationResponse{
		ID:         r.ID,
		SeatType:   r.SeatType,
		OwnerID:    r.OwnerID,
		Status:     r.Status,
		ExpiresAt:  r.ExpiresAt,
		PurchaseID: r.PurchaseID,
		CreatedAt:  r.CreatedAt,
	}
}

type promoCodeResponse struct {
	Code                string          `json:"code"`
	SeatType            *enums.SeatType `json:"seatType,omitempty"`
	DiscountPercent     int             `json:"discountPercent"`
	Used                bool            `json:"used"`
	RedeemedBy          *uuid.UUID      `json:"redeemedBy,omitempty"`
	ResultingPurchaseID *uuid.UUID      `json:"resultingPurchaseId,omitempty"`
	UsedAt              *time.Time      `json:"usedAt,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
}

func newPromoCodeResponse(p *models.PromoCode) *promoCodeResponse {
	if p == nil {
		return nil
	}
	return &promoCodeResponse{
		Code:                p.Code,
		SeatType:            p.SeatType,
		DiscountPercent:     p.DiscountPercent,
		Used:                p.Used,
		RedeemedBy:          p.RedeemedBy,
		ResultingPurchaseID: p.ResultingPurchaseID,
		UsedAt:              p.UsedAt,
		CreatedAt:           p.CreatedAt,
	}
}
