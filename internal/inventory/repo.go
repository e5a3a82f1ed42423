package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
)

// Repository defines persistence operations for inventory rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRow(ctx context.Context, seatType enums.SeatType, lock bool) (*models.InventoryRow, error)
	ListSeatTypes(ctx context.Context) ([]enums.SeatType, error)
	IncrementSold(ctx context.Context, seatType enums.SeatType) (bool, error)
	ClearExpiredFireSale(ctx context.Context, seatType enums.SeatType, now time.Time) (bool, error)
	SetFireSale(ctx context.Context, seatType enums.SeatType, priceCents int64, endsAt time.Time) error
	ClearFireSale(ctx context.Context, seatType enums.SeatType) error
	ExpireDueReservations(ctx context.Context, seatType enums.SeatType, now time.Time) (int64, error)
	CountActiveReservations(ctx context.Context, seatType enums.SeatType, exclude *uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindRow(ctx context.Context, seatType enums.SeatType, lock bool) (*models.InventoryRow, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row models.InventoryRow
	if err := q.Where("seat_type = ?", seatType).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListSeatTypes(ctx context.Context) ([]enums.SeatType, error) {
	var types []enums.SeatType
	err := r.db.WithContext(ctx).
		Model(&models.InventoryRow{}).
		Order("seat_type ASC").
		Pluck("seat_type", &types).Error
	return types, err
}

// IncrementSold is the only write to sold. It reports false when the row is full.
func (r *repository) IncrementSold(ctx context.Context, seatType enums.SeatType) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRow{}).
		Where("seat_type = ? AND sold < capacity", seatType).
		UpdateColumns(map[string]any{
			"sold":       gorm.Expr("sold + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ClearExpiredFireSale(ctx context.Context, seatType enums.SeatType, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRow{}).
		Where("seat_type = ? AND fire_sale_ends_at IS NOT NULL AND fire_sale_ends_at <= ?", seatType, now).
		UpdateColumns(map[string]any{
			"fire_sale_price_cents": nil,
			"fire_sale_ends_at":     nil,
			"updated_at":            now,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) SetFireSale(ctx context.Context, seatType enums.SeatType, priceCents int64, endsAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryRow{}).
		Where("seat_type = ?", seatType).
		UpdateColumns(map[string]any{
			"fire_sale_price_cents": priceCents,
			"fire_sale_ends_at":     endsAt,
			"updated_at":            time.Now().UTC(),
		}).Error
}

func (r *repository) ClearFireSale(ctx context.Context, seatType enums.SeatType) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryRow{}).
		Where("seat_type = ?", seatType).
		UpdateColumns(map[string]any{
			"fire_sale_price_cents": nil,
			"fire_sale_ends_at":     nil,
			"updated_at":            time.Now().UTC(),
		}).Error
}

func (r *repository) ExpireDueReservations(ctx context.Context, seatType enums.SeatType, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("seat_type = ? AND status = ? AND expires_at < ?", seatType, enums.ReservationStatusActive, now).
		UpdateColumns(map[string]any{
			"status":     enums.ReservationStatusExpired,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CountActiveReservations(ctx context.Context, seatType enums.SeatType, exclude *uuid.UUID) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("seat_type = ? AND status = ?", seatType, enums.ReservationStatusActive)
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}
