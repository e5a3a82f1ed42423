package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/internal/inventory"
	dbpkg "github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/logger"
)

const defaultTTL = 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type snapshotter interface {
	Snapshot(ctx context.Context, tx *gorm.DB, seatType enums.SeatType, opts inventory.SnapshotOptions) (*inventory.Snapshot, error)
	Now() time.Time
}

// Actor is the caller acting on a reservation.
type Actor struct {
	AccountID uuid.UUID
	IsAdmin   bool
}

// CreateInput opens a hold. OwnerID is nil for holds taken before sign-up.
type CreateInput struct {
	OwnerID  *uuid.UUID
	SeatType enums.SeatType
}

type ManagerParams struct {
	Repository Repository
	TxRunner   txRunner
	Ledger     snapshotter
	Logger     *logger.Logger
	TTL        time.Duration
}

// Manager opens, expires, cancels and converts seat holds.
type Manager struct {
	repo   Repository
	tx     txRunner
	ledger snapshotter
	logg   *logger.Logger
	ttl    time.Duration
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("reservation repository required")
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
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{
		repo:   params.Repository,
		tx:     params.TxRunner,
		ledger: params.Ledger,
		logg:   logg,
		ttl:    ttl,
	}, nil
}

// Create admits a new hold. The duplicate check and the availability check read
// the same locked snapshot so two callers cannot both take the last seat.
func (m *Manager) Create(ctx context.Context, input CreateInput) (*models.Reservation, error) {
	if !input.SeatType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown seat type %q", input.SeatType))
	}
	var created models.Reservation
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		snap, err := m.ledger.Snapshot(ctx, tx, input.SeatType, inventory.SnapshotOptions{Lock: true})
		if err != nil {
			return err
		}
		repo := m.repo.WithTx(tx)
		if input.OwnerID != nil {
			existing, err := repo.FindActive(ctx, *input.OwnerID, input.SeatType)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing reservation")
			}
			if existing != nil {
				return pkgerrors.New(pkgerrors.CodeAlreadyReserved, fmt.Sprintf("an active %s reservation already exists", input.SeatType)).
					WithDetails(map[string]any{"reservationId": existing.ID, "expiresAt": existing.ExpiresAt})
			}
		}
		if snap.Available() <= 0 {
			return pkgerrors.New(pkgerrors.CodeSoldOut, fmt.Sprintf("no %s seats are available to reserve", input.SeatType))
		}

		created = models.Reservation{
			SeatType:  input.SeatType,
			OwnerID:   input.OwnerID,
			Status:    enums.ReservationStatusActive,
			ExpiresAt: snap.Now.Add(m.ttl),
		}
		if err := repo.Create(ctx, &created); err != nil {
			if dbpkg.IsUniqueViolation(err, "reservations_one_active_per_owner") {
				return pkgerrors.New(pkgerrors.CodeAlreadyReserved, fmt.Sprintf("an active %s reservation already exists", input.SeatType))
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create reservation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"reservation_id": created.ID.String(),
		"seat_type":      created.SeatType,
		"expires_at":     created.ExpiresAt.Format(time.RFC3339),
	}
	m.logg.Info(m.logg.WithFields(ctx, fields), "reservation created")
	return &created, nil
}

// ExpireDue sweeps every active hold whose expiry has passed.
func (m *Manager) ExpireDue(ctx context.Context) (int64, error) {
	count, err := m.repo.ExpireDue(ctx, m.ledger.Now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire reservations")
	}
	return count, nil
}

// Cancel ends an active hold. Owners cancel their own; anonymous holds need an admin.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (*models.Reservation, error) {
	var out *models.Reservation
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)
		row, err := m.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin && (row.OwnerID == nil || *row.OwnerID != actor.AccountID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another account")
		}
		if row.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("reservation is already %s", row.Status))
		}
		now := m.ledger.Now()
		if !now.Before(row.ExpiresAt) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation has expired")
		}
		ok, err := repo.Transition(ctx, id, enums.ReservationStatusCancelled, map[string]any{"updated_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel reservation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("reservation is %s", row.Status))
		}
		row.Status = enums.ReservationStatusCancelled
		row.UpdatedAt = now
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logg.Info(m.logg.WithField(ctx, "reservation_id", id.String()), "reservation cancelled")
	return out, nil
}

// Convert marks the hold as consumed by a completed purchase. It runs inside the
// caller's transaction and returns STATE_CONFLICT if the hold is no longer active.
func (m *Manager) Convert(ctx context.Context, tx *gorm.DB, id, purchaseID uuid.UUID) error {
	ok, err := m.repo.WithTx(tx).Transition(ctx, id, enums.ReservationStatusConverted, map[string]any{
		"purchase_id": purchaseID,
		"updated_at":  m.ledger.Now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert reservation")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is no longer active")
	}
	return nil
}

// FindActive returns the owner's live hold on seatType, or nil.
func (m *Manager) FindActive(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, seatType enums.SeatType) (*models.Reservation, error) {
	row, err := m.repo.WithTx(tx).FindActive(ctx, ownerID, seatType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find reservation")
	}
	if row != nil && !m.ledger.Now().Before(row.ExpiresAt) {
		return nil, nil
	}
	return row, nil
}

// ListForOwner returns the owner's holds, newest first, after sweeping expired ones.
func (m *Manager) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Reservation, error) {
	if _, err := m.ExpireDue(ctx); err != nil {
		return nil, err
	}
	rows, err := m.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reservations")
	}
	return rows, nil
}

func (m *Manager) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Reservation, error) {
	row, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
	}
	return row, nil
}
