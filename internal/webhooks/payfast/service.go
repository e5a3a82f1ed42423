package payfastwebhook

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/castwell/launch-backend/internal/purchases"
	"github.com/castwell/launch-backend/pkg/db/models"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/metrics"
	"github.com/castwell/launch-backend/pkg/payfast"
)

// Outcome labels what a notification did; it is exported as a metric label.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeFlagged          Outcome = "flagged"
	OutcomeReplayed         Outcome = "replayed"
	OutcomeFailed           Outcome = "failed"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeMalformed        Outcome = "malformed"
	OutcomeInvalidSignature Outcome = "invalid_signature"
	OutcomeAmountMismatch   Outcome = "amount_mismatch"
	OutcomeUnknownPurchase  Outcome = "unknown_purchase"
	OutcomeError            Outcome = "error"
)

type purchaseTransitioner interface {
	MarkCompleted(ctx context.Context, purchaseID uuid.UUID, gatewayRef string, amountCentsObserved int64) (purchases.Completion, error)
	MarkFailed(ctx context.Context, purchaseID uuid.UUID, gatewayRef string) (bool, error)
}

type completionHook interface {
	PurchaseCompleted(ctx context.Context, purchase models.Purchase, source string)
	PurchaseFlagged(ctx context.Context, purchase models.Purchase)
}

type notificationRecorder interface {
	Notification(outcome string)
}

type ServiceParams struct {
	Purchases  purchaseTransitioner
	Hook       completionHook
	Metrics    notificationRecorder
	Logger     *logger.Logger
	MerchantID string
	Passphrase string
}

// Service turns PayFast ITN posts into purchase transitions. The purchase status
// is the idempotency key: replays find the purchase completed and change nothing.
type Service struct {
	purchases  purchaseTransitioner
	hook       completionHook
	metrics    notificationRecorder
	logg       *logger.Logger
	merchantID string
	passphrase string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase service required")
	}
	if params.Hook == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "completion hook required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		purchases:  params.Purchases,
		hook:       params.Hook,
		metrics:    params.Metrics,
		logg:       logg,
		merchantID: params.MerchantID,
		passphrase: params.Passphrase,
	}, nil
}

// HandleNotification verifies and applies one ITN body. Returned errors carry
// INVALID_SIGNATURE, AMOUNT_MISMATCH, NOT_FOUND or VALIDATION_ERROR for
// notifications that must be acknowledged without retry; anything else means
// the store failed and the gateway should redeliver.
func (s *Service) HandleNotification(ctx context.Context, body []byte) (Outcome, error) {
	outcome, err := s.handle(ctx, body)
	if s.metrics != nil {
		s.metrics.Notification(string(outcome))
	}
	return outcome, err
}

func (s *Service) handle(ctx context.Context, body []byte) (Outcome, error) {
	n, err := payfast.ParseNotification(body)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "malformed payfast notification")
		return OutcomeMalformed, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed notification")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"payment_id":     n.PaymentID,
		"pf_payment_id":  n.GatewayRef,
		"payment_status": n.Status,
	})

	if !n.Verify(s.passphrase) {
		err := pkgerrors.New(pkgerrors.CodeInvalidSignature, "notification signature does not verify")
		s.logg.Error(ctx, "payfast notification rejected", err)
		return OutcomeInvalidSignature, err
	}
	if s.merchantID != "" && n.MerchantID != s.merchantID {
		err := pkgerrors.New(pkgerrors.CodeInvalidSignature, "notification is for another merchant")
		s.logg.Error(s.logg.WithField(ctx, "merchant_id", n.MerchantID), "payfast notification rejected", err)
		return OutcomeInvalidSignature, err
	}

	purchaseID, err := uuid.Parse(n.PaymentID)
	if err != nil {
		s.logg.Warn(ctx, "notification payment id is not a purchase id")
		return OutcomeUnknownPurchase, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}

	switch {
	case n.Status == payfast.StatusComplete:
		return s.complete(ctx, purchaseID, n)
	case n.Status.IsFailure():
		applied, err := s.purchases.MarkFailed(ctx, purchaseID, n.GatewayRef)
		if err != nil {
			return s.classify(ctx, err), err
		}
		if !applied {
			s.logg.Info(ctx, "failure notification ignored; purchase already settled")
			return OutcomeIgnored, nil
		}
		return OutcomeFailed, nil
	default:
		s.logg.Info(ctx, "non-terminal payment status ignored")
		return OutcomeIgnored, nil
	}
}

func (s *Service) complete(ctx context.Context, purchaseID uuid.UUID, n *payfast.Notification) (Outcome, error) {
	res, err := s.purchases.MarkCompleted(ctx, purchaseID, n.GatewayRef, n.AmountCents)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeAmountMismatch) {
			s.logg.Error(s.logg.WithField(ctx, "amount_gross", n.AmountGross), "payfast amount mismatch", err)
		}
		return s.classify(ctx, err), err
	}
	if !res.Applied {
		s.logg.Info(ctx, "duplicate completion notification")
		return OutcomeReplayed, nil
	}

	purchase := *res.Purchase
	s.hook.PurchaseCompleted(ctx, purchase, metrics.SourcePayment)
	if res.Flagged() {
		s.hook.PurchaseFlagged(ctx, purchase)
		return OutcomeFlagged, nil
	}
	return OutcomeCompleted, nil
}

func (s *Service) classify(ctx context.Context, err error) Outcome {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeAmountMismatch):
		return OutcomeAmountMismatch
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		s.logg.Warn(ctx, "notification for unknown purchase")
		return OutcomeUnknownPurchase
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "notification conflicts with purchase state")
		return OutcomeIgnored
	}
	s.logg.Error(ctx, "apply payfast notification", err)
	return OutcomeError
}

// Retryable reports whether the gateway should redeliver after err.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var perr *pkgerrors.Error
	if !errors.As(err, &perr) {
		return true
	}
	switch perr.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeInvalidSignature, pkgerrors.CodeAmountMismatch,
		pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict:
		return false
	}
	return true
}
