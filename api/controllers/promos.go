package controllers

import (
	"context"
	"net/http"

	"github.com/castwell/launch-backend/api/responses"
	"github.com/castwell/launch-backend/api/validators"
	"github.com/castwell/launch-backend/internal/promos"
	"github.com/castwell/launch-backend/internal/purchases"
	"github.com/castwell/launch-backend/pkg/db/models"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
)

const (
	defaultPromoListLimit = 50
	maxPromoListLimit     = 500
)

// PromoRedeemer grants a seat against a full-discount code.
type PromoRedeemer interface {
	Redeem(ctx context.Context, input promos.RedeemInput) (*models.Purchase, error)
}

// PromoAdmin issues and lists codes.
type PromoAdmin interface {
	Create(ctx context.Context, input promos.CreateInput) (*models.PromoCode, error)
	List(ctx context.Context, limit int) ([]models.PromoCode, error)
}

type redeemPromoRequest struct {
	Code     string             `json:"code" validate:"required,max=64"`
	SeatType string             `json:"seatType" validate:"required"`
	Delivery purchases.Delivery `json:"delivery"`
}

// PromoRedeem completes a free purchase for the caller.
func PromoRedeem(svc PromoRedeemer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}
		who, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body redeemPromoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		seatType, err := parseSeatType(body.SeatType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.Redeem(r.Context(), promos.RedeemInput{
			Code:     body.Code,
			OwnerID:  who.AccountID,
			SeatType: seatType,
			Delivery: body.Delivery,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPurchaseResponse(purchase))
	}
}

type createPromoRequest struct {
	Code            string  `json:"code" validate:"omitempty,min=4,max=64,alphanum"`
	SeatType        *string `json:"seatType,omitempty"`
	DiscountPercent int     `json:"discountPercent" validate:"required,min=1,max=100"`
}

func AdminPromoCreate(svc PromoAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		var body createPromoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := promos.CreateInput{Code: body.Code, DiscountPercent: body.DiscountPercent}
		if body.SeatType != nil && *body.SeatType != "" {
			seatType, err := parseSeatType(*body.SeatType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.SeatType = &seatType
		}

		code, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPromoCodeResponse(code))
	}
}

func AdminPromoList(svc PromoAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultPromoListLimit, 1, maxPromoListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]*promoCodeResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newPromoCodeResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

