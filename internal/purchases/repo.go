package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
)

// Repository defines persistence operations for purchases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Purchase, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Purchase, error)
	ListNeedingReconciliation(ctx context.Context) ([]models.Purchase, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, gatewayRef *string, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, gatewayRef *string, now time.Time) (bool, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	TransitionGift(ctx context.Context, id uuid.UUID, from, to enums.GiftStatus, updates map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a purchase repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Purchase, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row models.Purchase
	if err := q.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Purchase, error) {
	var rows []models.Purchase
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListNeedingReconciliation(ctx context.Context) ([]models.Purchase, error) {
	var rows []models.Purchase
	err := r.db.WithContext(ctx).
		Where("needs_reconciliation = ?", true).
		Order("completed_at ASC").
		Find(&rows).Error
	return rows, err
}

// MarkCompleted flips pending to completed. False means another caller got there first.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, gatewayRef *string, now time.Time) (bool, error) {
	return r.transition(ctx, id, map[string]any{
		"status":            enums.PurchaseStatusCompleted,
		"payment_reference": gatewayRef,
		"completed_at":      now,
		"updated_at":        now,
	})
}

// MarkFailed flips pending to failed. Completed purchases are never touched.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, gatewayRef *string, now time.Time) (bool, error) {
	return r.transition(ctx, id, map[string]any{
		"status":            enums.PurchaseStatusFailed,
		"payment_reference": gatewayRef,
		"failed_at":         now,
		"updated_at":        now,
	})
}

func (r *repository) transition(ctx context.Context, id uuid.UUID, values map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ?", id, enums.PurchaseStatusPending).
		UpdateColumns(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error
}

func (r *repository) TransitionGift(ctx context.Context, id uuid.UUID, from, to enums.GiftStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"gift_status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND is_gift = ? AND gift_status = ?", id, true, from).
		UpdateColumns(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
