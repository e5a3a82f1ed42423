package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/castwell/launch-backend/api/middleware"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
)

type caller struct {
	AccountID uuid.UUID
	Email     string
	IsAdmin   bool
}

// requireCaller reads the authenticated account seeded by middleware.Auth.
func requireCaller(r *http.Request) (caller, error) {
	raw := middleware.AccountIDFromContext(r.Context())
	if raw == "" {
		return caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return caller{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid account id")
	}
	return caller{
		AccountID: id,
		Email:     middleware.EmailFromContext(r.Context()),
		IsAdmin:   middleware.RoleFromContext(r.Context()) == string(enums.AccountRoleAdmin),
	}, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).
			WithDetails(map[string]string{name: "must be a valid uuid"})
	}
	return id, nil
}

func parseSeatType(raw string) (enums.SeatType, error) {
	seatType, err := enums.ParseSeatType(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seat type").
			WithDetails(map[string]string{"seatType": "must be founder or patron"})
	}
	return seatType, nil
}

func parseAddOns(raw []string) ([]enums.AddOn, error) {
	out := make([]enums.AddOn, 0, len(raw))
	for _, value := range raw {
		addOn, err := enums.ParseAddOn(value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid add-on").
				WithDetails(map[string]string{"addOns": "unknown add-on " + value})
		}
		out = append(out, addOn)
	}
	return out, nil
}
