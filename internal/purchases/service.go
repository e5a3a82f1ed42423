package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/internal/inventory"
	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/metrics"
	"github.com/castwell/launch-backend/pkg/payfast"
)

const (
	noteOversold      = "paid after %s sold out; seat not counted"
	notePromoConflict = "promo code %s was consumed elsewhere before payment cleared"
)

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

// promoPricer resolves partial-discount codes at checkout and consumes them at completion.
type promoPricer interface {
	Lookup(ctx context.Context, tx *gorm.DB, code string, seatType enums.SeatType) (*models.PromoCode, error)
	Consume(ctx context.Context, tx *gorm.DB, code string, ownerID, purchaseID uuid.UUID) (bool, error)
}

type paymentHandler interface {
	Handle(req payfast.PaymentRequest) (payfast.PaymentHandle, error)
}

type salesRecorder interface {
	SeatCommitted(seatType, source string)
	OversellFlagged(seatType string)
}

type noopSales struct{}

func (noopSales) SeatCommitted(string, string) {}
func (noopSales) OversellFlagged(string)       {}

type ServiceParams struct {
	Repository   Repository
	TxRunner     txRunner
	Ledger       ledger
	Reservations reservationLinker
	Promos       promoPricer
	Checkout     paymentHandler
	Metrics      salesRecorder
	Logger       *logger.Logger
	Launch       config.LaunchConfig
}

// Service owns the purchase state machine.
type Service struct {
	repo         Repository
	tx           txRunner
	ledger       ledger
	reservations reservationLinker
	promos       promoPricer
	checkout     paymentHandler
	metrics      salesRecorder
	logg         *logger.Logger
	tariffs      Tariffs
	tolerance    int64
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation manager required")
	}
	if params.Checkout == nil {
		return nil, fmt.Errorf("payment checkout required")
	}
	var rec salesRecorder = noopSales{}
	if params.Metrics != nil {
		rec = params.Metrics
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:         params.Repository,
		tx:           params.TxRunner,
		ledger:       params.Ledger,
		reservations: params.Reservations,
		promos:       params.Promos,
		checkout:     params.Checkout,
		metrics:      rec,
		logg:         logg,
		tariffs:      TariffsFromConfig(params.Launch),
		tolerance:    params.Launch.AmountToleranceCents,
	}, nil
}

// Initiate prices and records a pending purchase together with its gateway redirect.
// Capacity is checked against sold plus other buyers' live holds; the caller's own
// hold is linked to the purchase and left out of the count.
func (s *Service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner is required")
	}
	if !input.SeatType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown seat type %q", input.SeatType))
	}
	if err := input.Delivery.Validate(); err != nil {
		return nil, err
	}
	if input.Gift != nil {
		if err := input.Gift.Validate(); err != nil {
			return nil, err
		}
	}
	promoCode := normalizeCode(input.PromoCode)
	if promoCode != "" && s.promos == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo codes are not accepted at checkout")
	}

	var (
		purchase models.Purchase
		handle   payfast.PaymentHandle
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		hold, err := s.reservations.FindActive(ctx, tx, input.OwnerID, input.SeatType)
		if err != nil {
			return err
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

		discountPercent := 0
		if promoCode != "" {
			code, err := s.promos.Lookup(ctx, tx, promoCode, input.SeatType)
			if err != nil {
				return err
			}
			if code.IsFullDiscount() {
				return pkgerrors.New(pkgerrors.CodeValidation, "full-discount codes are redeemed, not paid for").
					WithDetails(map[string]string{"promoCode": "use the promo redemption endpoint"})
			}
			discountPercent = code.DiscountPercent
		}

		price, err := s.tariffs.Quote(snap.EffectivePriceCents(), discountPercent, input.AddOns)
		if err != nil {
			return err
		}

		purchase = models.Purchase{
			OwnerID:        input.OwnerID,
			SeatType:       input.SeatType,
			Status:         enums.PurchaseStatusPending,
			SeatPriceCents: price.SeatPriceCents,
			DiscountCents:  price.DiscountCents,
			AddOnsCents:    price.AddOnsCents,
			AmountCents:    price.AmountCents,
			PatinaUpgrade:  hasAddOn(input.AddOns, enums.AddOnPatinaUpgrade),
			DisplayPlinth:  hasAddOn(input.AddOns, enums.AddOnDisplayPlinth),
			Engraving:      hasAddOn(input.AddOns, enums.AddOnEngraving),
		}
		input.Delivery.Apply(&purchase)
		if hold != nil {
			purchase.ReservationID = &hold.ID
		}
		if promoCode != "" {
			purchase.PromoCode = &promoCode
		}
		if input.Gift != nil {
			applyGift(&purchase, *input.Gift)
		}
		if err := s.repo.WithTx(tx).Create(ctx, &purchase); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create purchase")
		}

		// A pending row without a redirect can never be paid, so a handle
		// failure rolls the insert back.
		handle, err = s.checkout.Handle(payfast.PaymentRequest{
			PaymentID:   purchase.ID.String(),
			AmountCents: purchase.AmountCents,
			ItemName:    itemName(purchase.SeatType),
			BuyerEmail:  input.OwnerEmail,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payment handle")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithPurchaseID(ctx, purchase.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"seat_type":    purchase.SeatType,
		"amount_cents": purchase.AmountCents,
		"is_gift":      purchase.IsGift,
	})
	s.logg.Info(logCtx, "purchase initiated")
	return &InitiateResult{Purchase: &purchase, Payment: handle}, nil
}

// MarkCompleted applies a successful payment exactly once. A repeat call for a
// completed purchase returns Applied=false and changes nothing. If commitSale
// reports SOLD_OUT the purchase still completes, flagged for reconciliation.
func (s *Service) MarkCompleted(ctx context.Context, purchaseID uuid.UUID, gatewayRef string, amountCentsObserved int64) (Completion, error) {
	var (
		out       Completion
		committed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := s.load(ctx, repo, purchaseID, true)
		if err != nil {
			return err
		}
		switch purchase.Status {
		case enums.PurchaseStatusCompleted:
			out = Completion{Applied: false, Purchase: purchase}
			return nil
		case enums.PurchaseStatusFailed:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase already failed")
		}

		if diff := amountCentsObserved - purchase.AmountCents; diff > s.tolerance || -diff > s.tolerance {
			return pkgerrors.New(pkgerrors.CodeAmountMismatch, "notified amount does not match purchase").
				WithDetails(map[string]any{"expectedCents": purchase.AmountCents, "observedCents": amountCentsObserved})
		}

		now := s.ledger.Now()
		ref := optionalString(gatewayRef)
		ok, err := repo.MarkCompleted(ctx, purchase.ID, ref, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete purchase")
		}
		if !ok {
			fresh, err := s.load(ctx, repo, purchaseID, false)
			if err != nil {
				return err
			}
			out = Completion{Applied: false, Purchase: fresh}
			return nil
		}
		purchase.Status = enums.PurchaseStatusCompleted
		purchase.PaymentReference = ref
		purchase.CompletedAt = &now

		if err := s.ledger.CommitSale(ctx, tx, purchase.SeatType); err != nil {
			if !pkgerrors.IsCode(err, pkgerrors.CodeSoldOut) {
				return err
			}
			if err := s.flag(ctx, repo, purchase, enums.ReconciliationOversold, fmt.Sprintf(noteOversold, purchase.SeatType)); err != nil {
				return err
			}
		} else {
			committed = true
		}

		if purchase.ReservationID != nil {
			if err := s.reservations.Convert(ctx, tx, *purchase.ReservationID, purchase.ID); err != nil {
				if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
					return err
				}
				s.logg.Warn(s.logg.WithField(ctx, "reservation_id", purchase.ReservationID.String()), "linked reservation no longer active at completion")
			}
		}

		if purchase.PromoCode != nil && s.promos != nil {
			consumed, err := s.promos.Consume(ctx, tx, *purchase.PromoCode, purchase.OwnerID, purchase.ID)
			if err != nil {
				return err
			}
			if !consumed && !purchase.NeedsReconciliation {
				if err := s.flag(ctx, repo, purchase, enums.ReconciliationPromoConflict, fmt.Sprintf(notePromoConflict, *purchase.PromoCode)); err != nil {
					return err
				}
			}
		}

		out = Completion{Applied: true, Purchase: purchase}
		return nil
	})
	if err != nil {
		return Completion{}, err
	}

	if out.Applied {
		logCtx := s.logg.WithPurchaseID(ctx, purchaseID.String())
		if committed {
			s.metrics.SeatCommitted(string(out.Purchase.SeatType), metrics.SourcePayment)
		}
		if out.Purchase.NeedsReconciliation {
			if !committed {
				s.metrics.OversellFlagged(string(out.Purchase.SeatType))
			}
			s.logg.Error(logCtx, "purchase completed but flagged for reconciliation", errors.New(derefString(out.Purchase.ReconciliationNote)))
		} else {
			s.logg.Info(logCtx, "purchase completed")
		}
	}
	return out, nil
}

// MarkFailed moves a pending purchase to failed. It returns false, without error,
// when the purchase had already left pending; a completed sale is never downgraded.
func (s *Service) MarkFailed(ctx context.Context, purchaseID uuid.UUID, gatewayRef string) (bool, error) {
	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.load(ctx, repo, purchaseID, true); err != nil {
			return err
		}
		ok, err := repo.MarkFailed(ctx, purchaseID, optionalString(gatewayRef), s.ledger.Now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fail purchase")
		}
		applied = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		s.logg.Info(s.logg.WithPurchaseID(ctx, purchaseID.String()), "purchase failed")
	}
	return applied, nil
}

// Get returns a purchase visible to actor.
func (s *Service) Get(ctx context.Context, purchaseID uuid.UUID, actor Actor) (*models.Purchase, error) {
	purchase, err := s.load(ctx, s.repo, purchaseID, false)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && purchase.OwnerID != actor.AccountID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "purchase belongs to another account")
	}
	return purchase, nil
}

// ListForOwner returns the owner's purchases, newest first.
func (s *Service) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Purchase, error) {
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchases")
	}
	return rows, nil
}

// ClaimGift lets the named recipient accept a completed gift. Inventory is untouched.
func (s *Service) ClaimGift(ctx context.Context, purchaseID uuid.UUID, actor Actor) (*models.Purchase, error) {
	var out *models.Purchase
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := s.load(ctx, repo, purchaseID, true)
		if err != nil {
			return err
		}
		if !purchase.IsGift || purchase.GiftRecipientEmail == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
		}
		if !strings.EqualFold(strings.TrimSpace(actor.Email), *purchase.GiftRecipientEmail) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "gift is addressed to another recipient")
		}
		if purchase.Status != enums.PurchaseStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "gift has not been paid for yet")
		}
		now := s.ledger.Now()
		ok, err := repo.TransitionGift(ctx, purchaseID, enums.GiftStatusPending, enums.GiftStatusClaimed, map[string]any{
			"gift_claimed_by": actor.AccountID,
			"gift_claimed_at": now,
			"updated_at":      now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim gift")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("gift is %s", derefGift(purchase.GiftStatus)))
		}
		claimed := enums.GiftStatusClaimed
		purchase.GiftStatus = &claimed
		purchase.GiftClaimedBy = &actor.AccountID
		purchase.GiftClaimedAt = &now
		out = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithPurchaseID(ctx, purchaseID.String()), "gift claimed")
	return out, nil
}

// CancelGift lets the buyer withdraw an unclaimed gift. Inventory is untouched.
func (s *Service) CancelGift(ctx context.Context, purchaseID uuid.UUID, actor Actor) (*models.Purchase, error) {
	var out *models.Purchase
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := s.load(ctx, repo, purchaseID, true)
		if err != nil {
			return err
		}
		if !purchase.IsGift {
			return pkgerrors.New(pkgerrors.CodeNotFound, "gift not found")
		}
		if !actor.IsAdmin && purchase.OwnerID != actor.AccountID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "gift belongs to another account")
		}
		ok, err := repo.TransitionGift(ctx, purchaseID, enums.GiftStatusPending, enums.GiftStatusCancelled, map[string]any{
			"updated_at": s.ledger.Now(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel gift")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("gift is %s", derefGift(purchase.GiftStatus)))
		}
		cancelled := enums.GiftStatusCancelled
		purchase.GiftStatus = &cancelled
		out = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithPurchaseID(ctx, purchaseID.String()), "gift cancelled")
	return out, nil
}

// ListNeedingReconciliation returns flagged purchases, oldest first.
func (s *Service) ListNeedingReconciliation(ctx context.Context) ([]models.Purchase, error) {
	rows, err := s.repo.ListNeedingReconciliation(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list flagged purchases")
	}
	return rows, nil
}

// ResolveReconciliation settles a flagged purchase. An oversold purchase is
// committed on seatType through the same conditional update as any sale, so it
// fails with SOLD_OUT if that tier is full too. A promo conflict only clears the flag.
func (s *Service) ResolveReconciliation(ctx context.Context, purchaseID uuid.UUID, seatType enums.SeatType) (*models.Purchase, error) {
	var (
		out       *models.Purchase
		committed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := s.load(ctx, repo, purchaseID, true)
		if err != nil {
			return err
		}
		if !purchase.NeedsReconciliation {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase is not flagged for reconciliation")
		}
		if seatType == "" {
			seatType = purchase.SeatType
		}
		if !seatType.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown seat type %q", seatType))
		}

		updates := map[string]any{
			"needs_reconciliation":  false,
			"reconciliation_reason": nil,
			"updated_at":            s.ledger.Now(),
		}
		reason := purchase.ReconciliationReason
		if reason != nil && *reason == enums.ReconciliationPromoConflict {
			if seatType != purchase.SeatType {
				return pkgerrors.New(pkgerrors.CodeValidation, "promo conflicts keep their seat type")
			}
		} else {
			if err := s.ledger.CommitSale(ctx, tx, seatType); err != nil {
				return err
			}
			committed = true
			updates["seat_type"] = seatType
		}
		note := fmt.Sprintf("%s; resolved onto %s", derefString(purchase.ReconciliationNote), seatType)
		updates["reconciliation_note"] = note
		if err := repo.Update(ctx, purchase.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve purchase")
		}
		purchase.NeedsReconciliation = false
		purchase.ReconciliationReason = nil
		purchase.ReconciliationNote = &note
		purchase.SeatType = seatType
		out = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	if committed {
		s.metrics.SeatCommitted(string(seatType), metrics.SourceReconciliation)
	}
	s.logg.Info(s.logg.WithField(s.logg.WithPurchaseID(ctx, purchaseID.String()), "seat_type", seatType), "reconciliation resolved")
	return out, nil
}

func (s *Service) flag(ctx context.Context, repo Repository, purchase *models.Purchase, reason enums.ReconciliationReason, note string) error {
	if err := repo.Update(ctx, purchase.ID, map[string]any{
		"needs_reconciliation":  true,
		"reconciliation_reason": reason,
		"reconciliation_note":   note,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flag purchase")
	}
	purchase.NeedsReconciliation = true
	purchase.ReconciliationReason = &reason
	purchase.ReconciliationNote = &note
	return nil
}

func (s *Service) load(ctx context.Context, repo Repository, id uuid.UUID, lock bool) (*models.Purchase, error) {
	purchase, err := repo.FindByID(ctx, id, lock)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
	}
	return purchase, nil
}

func applyGift(p *models.Purchase, gift Gift) {
	gift = gift.normalized()
	name := gift.RecipientName
	email := gift.RecipientEmail
	status := enums.GiftStatusPending
	p.IsGift = true
	p.GiftRecipientName = &name
	p.GiftRecipientEmail = &email
	p.GiftStatus = &status
	if gift.Message != nil {
		if msg := strings.TrimSpace(*gift.Message); msg != "" {
			p.GiftMessage = &msg
		}
	}
}

func itemName(seatType enums.SeatType) string {
	switch seatType {
	case enums.SeatTypeFounder:
		return "Castwell Founder Seat"
	case enums.SeatTypePatron:
		return "Castwell Patron Seat"
	}
	return "Castwell Seat"
}

func normalizeCode(code *string) string {
	if code == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(*code))
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func derefGift(status *enums.GiftStatus) string {
	if status == nil {
		return "unknown"
	}
	return string(*status)
}
