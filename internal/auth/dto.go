package auth

import (
	"github.com/castwell/launch-backend/internal/accounts"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the access token and the authenticated account.
type LoginResponse struct {
	AccessToken string               `json:"accessToken"`
	ExpiresIn   int64                `json:"expiresIn"`
	Account     *accounts.AccountDTO `json:"account"`
}
