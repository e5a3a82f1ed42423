package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/castwell/launch-backend/api/middleware"
	"github.com/castwell/launch-backend/api/responses"
	"github.com/castwell/launch-backend/api/validators"
	"github.com/castwell/launch-backend/internal/reservations"
	"github.com/castwell/launch-backend/pkg/db/models"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
)

// ReservationService opens, lists and cancels seat holds.
type ReservationService interface {
	Create(ctx context.Context, input reservations.CreateInput) (*models.Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID, actor reservations.Actor) (*models.Reservation, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Reservation, error)
}

type createReservationRequest struct {
	SeatType string `json:"seatType" validate:"required"`
}

// ReservationCreate opens a hold. Anonymous callers get an unowned hold.
func ReservationCreate(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		var body createReservationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		seatType, err := parseSeatType(body.SeatType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := reservations.CreateInput{SeatType: seatType}
		if middleware.AccountIDFromContext(r.Context()) != "" {
			who, err := requireCaller(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.OwnerID = &who.AccountID
		}

		hold, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReservationResponse(hold))
	}
}

func ReservationList(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}
		who, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListForOwner(r.Context(), who.AccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]*reservationResponse, 0, len(rows))
		for i := range rows {
			out = append(out, newReservationResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func ReservationCancel(svc ReservationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}
		who, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		hold, err := svc.Cancel(r.Context(), id, reservations.Actor{AccountID: who.AccountID, IsAdmin: who.IsAdmin})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReservationResponse(hold))
	}
}
