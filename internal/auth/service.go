package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/internal/accounts"
	pkgAuth "github.com/castwell/launch-backend/pkg/auth"
	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/db/models"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type service struct {
	accounts accountRepository
	jwtCfg   config.JWTConfig
	now      func() time.Time
}

type accountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	AccountRepo accountRepository
	JWTConfig   config.JWTConfig
	Now         func() time.Time
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.AccountRepo == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		accounts: params.AccountRepo,
		jwtCfg:   params.JWTConfig,
		now:      now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	account, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if !account.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	account.LastLoginAt = &now

	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtCfg.TTL().Seconds()),
		Account:     accounts.FromModel(account),
	}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	account, err := s.accounts.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}

	ok, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return account, nil
}
