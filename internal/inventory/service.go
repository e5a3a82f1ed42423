package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/outbox"
	"github.com/castwell/launch-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Availability is the public view of one seat type.
type Availability struct {
	SeatType            enums.SeatType `json:"seatType"`
	Capacity            int            `json:"capacity"`
	Sold                int            `json:"sold"`
	ActiveReservations  int            `json:"activeReservations"`
	Available           int            `json:"available"`
	BasePriceCents      int64          `json:"basePriceCents"`
	EffectivePriceCents int64          `json:"effectivePriceCents"`
	FireSaleActive      bool           `json:"fireSaleActive"`
	FireSaleEndsAt      *time.Time     `json:"fireSaleEndsAt,omitempty"`
}

// Snapshot is the materialized state of one seat type inside a transaction.
type Snapshot struct {
	Row                models.InventoryRow
	ActiveReservations int
	Now                time.Time
}

// Available is capacity minus sold minus active holds, floored at zero.
func (s Snapshot) Available() int {
	available := s.Row.Capacity - s.Row.Sold - s.ActiveReservations
	if available < 0 {
		return 0
	}
	return available
}

// EffectivePriceCents is the price a new purchase pays right now.
func (s Snapshot) EffectivePriceCents() int64 {
	return s.Row.EffectivePriceCents(s.Now)
}

func (s Snapshot) availability() Availability {
	out := Availability{
		SeatType:            s.Row.SeatType,
		Capacity:            s.Row.Capacity,
		Sold:                s.Row.Sold,
		ActiveReservations:  s.ActiveReservations,
		Available:           s.Available(),
		BasePriceCents:      s.Row.BasePriceCents,
		EffectivePriceCents: s.EffectivePriceCents(),
		FireSaleActive:      s.Row.FireSaleActive(s.Now),
	}
	if out.FireSaleActive {
		out.FireSaleEndsAt = s.Row.FireSaleEndsAt
	}
	return out
}

// SnapshotOptions tunes how a snapshot is taken.
type SnapshotOptions struct {
	// Lock takes a row lock so admission decisions serialise per seat type.
	Lock bool
	// ExcludeReservationID leaves the caller's own hold out of the active count.
	ExcludeReservationID *uuid.UUID
}

// FireSaleInput sets discounted prices for both seat types for a fixed window.
type FireSaleInput struct {
	FounderPriceCents int64
	PatronPriceCents  int64
	DurationHours     int
}

type LedgerParams struct {
	Repository Repository
	TxRunner   txRunner
	Outbox     eventEmitter
	Logger     *logger.Logger
	Now        func() time.Time
}

// Ledger owns every read and write of inventory rows.
type Ledger struct {
	repo   Repository
	tx     txRunner
	outbox eventEmitter
	logg   *logger.Logger
	now    func() time.Time
}

func NewLedger(params LedgerParams) (*Ledger, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		repo:   params.Repository,
		tx:     params.TxRunner,
		outbox: params.Outbox,
		logg:   logg,
		now:    now,
	}, nil
}

// Now returns the ledger clock in UTC.
func (l *Ledger) Now() time.Time {
	return l.now().UTC()
}

// Snapshot materializes the current view of seatType: due reservations are
// expired and a lapsed fire sale is cleared before anything is counted. Every
// availability read and admission decision goes through here.
func (l *Ledger) Snapshot(ctx context.Context, tx *gorm.DB, seatType enums.SeatType, opts SnapshotOptions) (*Snapshot, error) {
	if !seatType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown seat type %q", seatType))
	}
	repo := l.repo.WithTx(tx)
	now := l.Now()

	row, err := repo.FindRow(ctx, seatType, opts.Lock)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("seat type %s is not stocked", seatType))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory row")
	}

	expired, err := repo.ExpireDueReservations(ctx, seatType, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire reservations")
	}
	if expired > 0 {
		l.logg.Info(l.logg.WithFields(ctx, map[string]any{
			"seat_type": seatType,
			"expired":   expired,
		}), "expired reservations on read")
	}

	if row.FireSaleEndsAt != nil && !now.Before(*row.FireSaleEndsAt) {
		if _, err := repo.ClearExpiredFireSale(ctx, seatType, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear fire sale")
		}
		row.FireSalePriceCents = nil
		row.FireSaleEndsAt = nil
	}

	active, err := repo.CountActiveReservations(ctx, seatType, opts.ExcludeReservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count reservations")
	}
	return &Snapshot{Row: *row, ActiveReservations: int(active), Now: now}, nil
}

// GetAvailability reads one seat type, healing stale state as a side effect.
func (l *Ledger) GetAvailability(ctx context.Context, seatType enums.SeatType) (*Availability, error) {
	var out Availability
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		snap, err := l.Snapshot(ctx, tx, seatType, SnapshotOptions{})
		if err != nil {
			return err
		}
		out = snap.availability()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAvailability reads every stocked seat type.
func (l *Ledger) ListAvailability(ctx context.Context) ([]Availability, error) {
	var out []Availability
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		seatTypes, err := l.repo.WithTx(tx).ListSeatTypes(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list seat types")
		}
		out = make([]Availability, 0, len(seatTypes))
		for _, seatType := range seatTypes {
			snap, err := l.Snapshot(ctx, tx, seatType, SnapshotOptions{})
			if err != nil {
				return err
			}
			out = append(out, snap.availability())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CommitSale increments sold by one with a single conditional update. It returns
// SOLD_OUT when the row is already at capacity. tx may be nil.
func (l *Ledger) CommitSale(ctx context.Context, tx *gorm.DB, seatType enums.SeatType) error {
	if !seatType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown seat type %q", seatType))
	}
	ok, err := l.repo.WithTx(tx).IncrementSold(ctx, seatType)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commit sale")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeSoldOut, fmt.Sprintf("%s seats are sold out", seatType))
	}
	return nil
}

// ActivateFireSale discounts both seat types until now + duration.
func (l *Ledger) ActivateFireSale(ctx context.Context, input FireSaleInput) ([]Availability, error) {
	if input.FounderPriceCents <= 0 || input.PatronPriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fire sale prices must be positive")
	}
	if input.DurationHours <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fire sale duration must be positive")
	}
	endsAt := l.Now().Add(time.Duration(input.DurationHours) * time.Hour)
	prices := map[enums.SeatType]int64{
		enums.SeatTypeFounder: input.FounderPriceCents,
		enums.SeatTypePatron:  input.PatronPriceCents,
	}

	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		for _, seatType := range enums.SeatTypes() {
			price := prices[seatType]
			if err := repo.SetFireSale(ctx, seatType, price, endsAt); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set fire sale")
			}
			if err := l.emitFireSale(ctx, tx, seatType, true, &price, &endsAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logg.Info(l.logg.WithField(ctx, "ends_at", endsAt.Format(time.RFC3339)), "fire sale activated")
	return l.ListAvailability(ctx)
}

// DeactivateFireSale restores base pricing on both seat types.
func (l *Ledger) DeactivateFireSale(ctx context.Context) error {
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		for _, seatType := range enums.SeatTypes() {
			if err := repo.ClearFireSale(ctx, seatType); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear fire sale")
			}
			if err := l.emitFireSale(ctx, tx, seatType, false, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.logg.Info(ctx, "fire sale deactivated")
	return nil
}

func (l *Ledger) emitFireSale(ctx context.Context, tx *gorm.DB, seatType enums.SeatType, active bool, price *int64, endsAt *time.Time) error {
	err := l.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventFireSaleChanged,
		AggregateType: enums.AggregateInventory,
		AggregateID:   SeatTypeAggregateID(seatType),
		OccurredAt:    l.Now(),
		Data: payloads.FireSaleChangedEvent{
			SeatType:           seatType,
			Active:             active,
			FireSalePriceCents: price,
			EndsAt:             endsAt,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit fire sale event")
	}
	return nil
}

var seatTypeNamespace = uuid.MustParse("5b0a3f4e-2c1d-4e7a-9f63-0d8c1b2a7e55")

// SeatTypeAggregateID gives each seat type a stable id for outbox aggregates.
func SeatTypeAggregateID(seatType enums.SeatType) uuid.UUID {
	return uuid.NewSHA1(seatTypeNamespace, []byte(seatType))
}
