package promos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/internal/inventory"
	"github.com/castwell/launch-backend/internal/purchases"
	dbpkg "github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/metrics"
	"github.com/castwell/launch-backend/pkg/security"
)

const generatedCodeLength = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledger interface {
	Snapshot(ctx context.Context, tx *gorm.DB, seatType enums.SeatType, opts inventory.SnapshotOptions) (*inventory.Snapshot, error)
	CommitSale(ctx context.Context, tx *gorm.DB, seatType enums.SeatType) error
	Now() time.Time
}

type reservationLinker interface {
	FindActive(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, seatType enums.SeatType) (*models.Reservation, error)
	Convert(ctx context.Context, tx *gorm.DB, id, purchaseID uuid.UUID) error
}

type completionHook interface {
	PurchaseCompleted(ctx context.Context, purchase models.Purchase, source string)
}

type salesRecorder interface {
	SeatCommitted(seatType, source string)
}

// CreateInput defines a new code. An empty Code is generated.
type CreateInput struct {
	Code            string
	SeatType        *enums.SeatType
	DiscountPercent int
}

// RedeemInput claims a seat with a full-discount code.
type RedeemInput struct {
	Code     string
	OwnerID  uuid.UUID
	SeatType enums.SeatType
	Delivery purchases.Delivery
}

type ServiceParams struct {
	Repository   Repository
	Purchases    purchases.Repository
	TxRunner     txRunner
	Ledger       ledger
	Reservations reservationLinker
	Hook         completionHook
	Metrics      salesRecorder
	Logger       *logger.Logger
}

// Service issues and redeems promo codes.
type Service struct {
	repo         Repository
	purchases    purchases.Repository
	tx           txRunner
	ledger       ledger
	reservations reservationLinker
	hook         completionHook
	metrics      salesRecorder
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:         params.Repository,
		purchases:    params.Purchases,
		tx:           params.TxRunner,
		ledger:       params.Ledger,
		reservations: params.Reservations,
		hook:         params.Hook,
		metrics:      params.Metrics,
		logg:         logg,
	}, nil
}

// Create stores a new code.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.PromoCode, error) {
	if input.DiscountPercent < 1 || input.DiscountPercent > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be between 1 and 100")
	}
	if input.SeatType != nil && !input.SeatType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown seat type %q", *input.SeatType))
	}
	code := NormalizeCode(input.Code)
	if code == "" {
		generated, err := security.RandomCode(generatedCodeLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
		}
		code = generated
	}
	row := models.PromoCode{
		Code:            code,
		SeatType:        input.SeatType,
		DiscountPercent: input.DiscountPercent,
	}
	if err := s.repo.Create(ctx, &row); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "promo code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create promo code")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"promo_code":       code,
		"discount_percent": row.DiscountPercent,
	}), "promo code created")
	return &row, nil
}

// List returns the most recent codes.
func (s *Service) List(ctx context.Context, limit int) ([]models.PromoCode, error) {
	rows, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list promo codes")
	}
	return rows, nil
}

// Lookup checks that code can discount a purchase of seatType. It does not consume it.
func (s *Service) Lookup(ctx context.Context, tx *gorm.DB, code string, seatType enums.SeatType) (*models.PromoCode, error) {
	row, err := s.find(ctx, s.repo.WithTx(tx), NormalizeCode(code), false)
	if err != nil {
		return nil, err
	}
	if err := checkUsable(row, seatType); err != nil {
		return nil, err
	}
	return row, nil
}

// Consume marks a partial code used once its purchase completes. False means
// another purchase already consumed it.
func (s *Service) Consume(ctx context.Context, tx *gorm.DB, code string, ownerID, purchaseID uuid.UUID) (bool, error) {
	ok, err := s.repo.WithTx(tx).MarkUsed(ctx, NormalizeCode(code), ownerID, purchaseID, s.ledger.Now())
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume promo code")
	}
	return ok, nil
}

// Redeem grants a seat for a full-discount code without touching the gateway.
// Every step runs in one transaction: the code is locked, the sale is committed
// through the ledger, a completed purchase is written and the code is marked used.
func (s *Service) Redeem(ctx context.Context, input RedeemInput) (*models.Purchase, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner is required")
	}
	if !input.SeatType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown seat type %q", input.SeatType))
	}
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code is required")
	}
	if err := input.Delivery.Validate(); err != nil {
		return nil, err
	}

	var purchase models.Purchase
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := s.find(ctx, repo, code, true)
		if err != nil {
			return err
		}
		if err := checkUsable(row, input.SeatType); err != nil {
			return err
		}
		if !row.IsFullDiscount() {
			return pkgerrors.New(pkgerrors.CodePromoInvalid, "partial discount codes are applied at checkout")
		}

		var hold *models.Reservation
		if s.reservations != nil {
			if hold, err = s.reservations.FindActive(ctx, tx, input.OwnerID, input.SeatType); err != nil {
				return err
			}
		}
		opts := inventory.SnapshotOptions{Lock: true}
		if hold != nil {
			opts.ExcludeReservationID = &hold.ID
		}
		snap, err := s.ledger.Snapshot(ctx, tx, input.SeatType, opts)
		if err != nil {
			return err
		}
		if snap.Available() <= 0 {
			return pkgerrors.New(pkgerrors.CodeSoldOut, fmt.Sprintf("%s seats are sold out", input.SeatType))
		}
		if err := s.ledger.CommitSale(ctx, tx, input.SeatType); err != nil {
			return err
		}

		seatPrice := snap.EffectivePriceCents()
		now := snap.Now
		purchase = models.Purchase{
			OwnerID:        input.OwnerID,
			SeatType:       input.SeatType,
			Status:         enums.PurchaseStatusCompleted,
			SeatPriceCents: seatPrice,
			DiscountCents:  seatPrice,
			AmountCents:    0,
			PromoCode:      &code,
			CompletedAt:    &now,
		}
		if hold != nil {
			purchase.ReservationID = &hold.ID
		}
		input.Delivery.Apply(&purchase)
		if err := s.purchases.WithTx(tx).Create(ctx, &purchase); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create purchase")
		}

		used, err := repo.MarkUsed(ctx, code, input.OwnerID, purchase.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark promo used")
		}
		if !used {
			return pkgerrors.New(pkgerrors.CodePromoUsed, "promo code has already been used")
		}
		if hold != nil {
			if err := s.reservations.Convert(ctx, tx, hold.ID, purchase.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SeatCommitted(string(purchase.SeatType), metrics.SourcePromo)
	}
	logCtx := s.logg.WithPurchaseID(ctx, purchase.ID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"promo_code": code,
		"seat_type":  purchase.SeatType,
	}), "promo code redeemed")
	if s.hook != nil {
		s.hook.PurchaseCompleted(ctx, purchase, metrics.SourcePromo)
	}
	return &purchase, nil
}

func (s *Service) find(ctx context.Context, repo Repository, code string, lock bool) (*models.PromoCode, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code is required")
	}
	row, err := repo.Find(ctx, code, lock)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code is not valid")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load promo code")
	}
	return row, nil
}

func checkUsable(row *models.PromoCode, seatType enums.SeatType) error {
	if row.Used {
		return pkgerrors.New(pkgerrors.CodePromoUsed, "promo code has already been used")
	}
	if !row.AppliesTo(seatType) {
		return pkgerrors.New(pkgerrors.CodeSeatTypeMismatch, fmt.Sprintf("promo code is only valid for %s seats", *row.SeatType))
	}
	return nil
}

// NormalizeCode upper-cases and trims a code as typed by a buyer.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
