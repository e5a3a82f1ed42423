package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/castwell/launch-backend/internal/accounts"
	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/security"
)

const minPasswordLength = 8

// RegisterRequest contains the payload required to open a buyer account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterService creates accounts.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*accounts.AccountDTO, error)
	CreateAdmin(ctx context.Context, req RegisterRequest) (*accounts.AccountDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// Register opens a buyer account.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*accounts.AccountDTO, error) {
	return s.create(ctx, req, enums.AccountRoleBuyer)
}

func (s *registerService) create(ctx context.Context, req RegisterRequest, role enums.AccountRole) (*accounts.AccountDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *accounts.AccountDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := accounts.NewRepository(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check account email")
		}

		account := &models.Account{
			Email:        email,
			PasswordHash: passwordHash,
			Role:         role,
		}
		if err := repo.Create(ctx, account); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
		}
		created = accounts.FromModel(account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
