package accounts

import (
	"time"

	"github.com/google/uuid"

	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
)

// AccountDTO is the public view of an account; the password hash never leaves the service.
type AccountDTO struct {
	ID          uuid.UUID         `json:"id"`
	Email       string            `json:"email"`
	Role        enums.AccountRole `json:"role"`
	LastLoginAt *time.Time        `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// FromModel maps a persisted account to its DTO.
func FromModel(a *models.Account) *AccountDTO {
	if a == nil {
		return nil
	}
	return &AccountDTO{
		ID:          a.ID,
		Email:       a.Email,
		Role:        a.Role,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}
