package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/castwell/launch-backend/api/responses"
	"github.com/castwell/launch-backend/api/validators"
	"github.com/castwell/launch-backend/internal/inventory"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
)

// InventoryReader serves public availability.
type InventoryReader interface {
	GetAvailability(ctx context.Context, seatType enums.SeatType) (*inventory.Availability, error)
	ListAvailability(ctx context.Context) ([]inventory.Availability, error)
}

// FireSaleManager switches the timed fire-sale price on and off.
type FireSaleManager interface {
	ActivateFireSale(ctx context.Context, input inventory.FireSaleInput) ([]inventory.Availability, error)
	DeactivateFireSale(ctx context.Context) error
}

func InventoryList(svc InventoryReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		rows, err := svc.ListAvailability(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func InventoryGet(svc InventoryReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		seatType, err := parseSeatType(chi.URLParam(r, "seatType"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.GetAvailability(r.Context(), seatType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

type fireSaleRequest struct {
	FounderPriceCents int64 `json:"founderPriceCents" validate:"required,min=1"`
	PatronPriceCents  int64 `json:"patronPriceCents" validate:"required,min=1"`
	DurationHours     int   `json:"durationHours" validate:"required,min=1,max=720"`
}

// AdminFireSaleActivate sets fire-sale prices on both seat types.
func AdminFireSaleActivate(svc FireSaleManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var body fireSaleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ActivateFireSale(r.Context(), inventory.FireSaleInput{
			FounderPriceCents: body.FounderPriceCents,
			PatronPriceCents:  body.PatronPriceCents,
			DurationHours:     body.DurationHours,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func AdminFireSaleDeactivate(svc FireSaleManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		if err := svc.DeactivateFireSale(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"fireSaleActive": false})
	}
}
