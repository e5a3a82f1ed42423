package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
)

// Repository defines persistence operations for reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindActive(ctx context.Context, ownerID uuid.UUID, seatType enums.SeatType) (*models.Reservation, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Reservation, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	Transition(ctx context.Context, id uuid.UUID, to enums.ReservationStatus, updates map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reservation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var row models.Reservation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindActive returns nil, nil when the owner holds nothing for seatType.
func (r *repository) FindActive(ctx context.Context, ownerID uuid.UUID, seatType enums.SeatType) (*models.Reservation, error) {
	var row models.Reservation
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND seat_type = ? AND status = ?", ownerID, seatType, enums.ReservationStatusActive).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("status = ? AND expires_at < ?", enums.ReservationStatusActive, now).
		UpdateColumns(map[string]any{
			"status":     enums.ReservationStatusExpired,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// Transition moves an active reservation to a terminal status. It reports false
// when the row was no longer active.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, to enums.ReservationStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, enums.ReservationStatusActive).
		UpdateColumns(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
