package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/castwell/launch-backend/api/responses"
	"github.com/castwell/launch-backend/api/validators"
	"github.com/castwell/launch-backend/internal/purchases"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/payfast"
)

// PurchaseService is the buyer-facing purchase surface.
type PurchaseService interface {
	Initiate(ctx context.Context, input purchases.InitiateInput) (*purchases.InitiateResult, error)
	Get(ctx context.Context, purchaseID uuid.UUID, actor purchases.Actor) (*models.Purchase, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Purchase, error)
	ClaimGift(ctx context.Context, purchaseID uuid.UUID, actor purchases.Actor) (*models.Purchase, error)
	CancelGift(ctx context.Context, purchaseID uuid.UUID, actor purchases.Actor) (*models.Purchase, error)
}

// ReconciliationService lists and resolves flagged completions.
type ReconciliationService interface {
	ListNeedingReconciliation(ctx context.Context) ([]models.Purchase, error)
	ResolveReconciliation(ctx context.Context, purchaseID uuid.UUID, seatType enums.SeatType) (*models.Purchase, error)
}

type initiatePurchaseRequest struct {
	SeatType  string             `json:"seatType" validate:"required"`
	AddOns    []string           `json:"addOns"`
	Delivery  purchases.Delivery `json:"delivery"`
	IsGift    bool               `json:"isGift"`
	Gift      *purchases.Gift    `json:"gift,omitempty" validate:"required_if=IsGift true"`
	PromoCode *string            `json:"promoCode,omitempty"`
}

type initiatePurchaseResponse struct {
	Purchase *purchaseResponse     `json:"purchase"`
	Payment  payfast.PaymentHandle `json:"payment"`
}

func (p initiatePurchaseRequest) toInput(who caller) (purchases.InitiateInput, error) {
	seatType, err := parseSeatType(p.SeatType)
	if err != nil {
		return purchases.InitiateInput{}, err
	}
	addOns, err := parseAddOns(p.AddOns)
	if err != nil {
		return purchases.InitiateInput{}, err
	}

	input := purchases.InitiateInput{
		OwnerID:    who.AccountID,
		OwnerEmail: who.Email,
		SeatType:   seatType,
		AddOns:     addOns,
		Delivery:   p.Delivery,
		PromoCode:  p.PromoCode,
	}
	if p.IsGift {
		input.Gift = p.Gift
	}
	return input, nil
}

// PurchaseInitiate prices a seat server-side and returns the payment redirect.
func PurchaseInitiate(svc PurchaseService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}
		who, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body initiatePurchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput(who)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, initiatePurchaseResponse{
			Purchase: newPurchaseResponse(result.Purchase),
			Payment:  result.Payment,
		})
	}
}

func PurchaseGet(svc PurchaseService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}
		who, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.Get(r.Context(), id, purchases.Actor(who))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseResponse(purchase))
	}
}

func PurchaseList(svc PurchaseService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
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
		responses.WriteSuccess(w, newPurchaseList(rows))
	}
}

// GiftClaim lets the recipient whose email matches take a completed gift.
func GiftClaim(svc PurchaseService, logg *logger.Logger) http.HandlerFunc {
	return giftTransition(svc, logg, func(ctx context.Context, id uuid.UUID, actor purchases.Actor) (*models.Purchase, error) {
		return svc.ClaimGift(ctx, id, actor)
	})
}

// GiftCancel lets the buyer withdraw a gift nobody has claimed yet.
func GiftCancel(svc PurchaseService, logg *logger.Logger) http.HandlerFunc {
	return giftTransition(svc, logg, func(ctx context.Context, id uuid.UUID, actor purchases.Actor) (*models.Purchase, error) {
		return svc.CancelGift(ctx, id, actor)
	})
}

func giftTransition(svc PurchaseService, logg *logger.Logger, apply func(context.Context, uuid.UUID, purchases.Actor) (*models.Purchase, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}
		who, err := requireCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := apply(r.Context(), id, purchases.Actor(who))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseResponse(purchase))
	}
}

type resolveReconciliationRequest struct {
	SeatType string `json:"seatType" validate:"required"`
}

func AdminReconciliationList(svc ReconciliationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		rows, err := svc.ListNeedingReconciliation(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseList(rows))
	}
}

// AdminReconciliationResolve assigns a flagged purchase to a seat type with room.
func AdminReconciliationResolve(svc ReconciliationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}
		id, err := uuidParam(r, "purchaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body resolveReconciliationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		seatType, err := parseSeatType(body.SeatType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purchase, err := svc.ResolveReconciliation(r.Context(), id, seatType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPurchaseResponse(purchase))
	}
}
