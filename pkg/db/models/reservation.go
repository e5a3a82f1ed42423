package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/pkg/enums"
)

// Reservation is a time-boxed hold that counts against availability without touching sold.
type Reservation struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	SeatType   enums.SeatType          `gorm:"column:seat_type;type:text;not null;index"`
	OwnerID    *uuid.UUID              `gorm:"column:owner_id;type:uuid;index"`
	Status     enums.ReservationStatus `gorm:"column:status;type:text;not null;index"`
	ExpiresAt  time.Time               `gorm:"column:expires_at;not null;index"`
	PurchaseID *uuid.UUID              `gorm:"column:purchase_id;type:uuid"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Reservation) TableName() string { return "reservations" }

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
