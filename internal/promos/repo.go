package promos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/castwell/launch-backend/pkg/db/models"
)

// Repository defines persistence operations for promo codes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, code *models.PromoCode) error
	Find(ctx context.Context, code string, lock bool) (*models.PromoCode, error)
	MarkUsed(ctx context.Context, code string, ownerID, purchaseID uuid.UUID, now time.Time) (bool, error)
	List(ctx context.Context, limit int) ([]models.PromoCode, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a promo code repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, code *models.PromoCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *repository) Find(ctx context.Context, code string, lock bool) (*models.PromoCode, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row models.PromoCode
	if err := q.Where("code = ?", code).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkUsed flips used exactly once. False means the code was already consumed.
func (r *repository) MarkUsed(ctx context.Context, code string, ownerID, purchaseID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("code = ? AND used = ?", code, false).
		UpdateColumns(map[string]any{
			"used":                  true,
			"redeemed_by":           ownerID,
			"resulting_purchase_id": purchaseID,
			"used_at":               now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, limit int) ([]models.PromoCode, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.PromoCode
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
