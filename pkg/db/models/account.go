package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/castwell/launch-backend/pkg/enums"
)

type Account struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Email        string            `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string            `gorm:"column:password_hash;not null"`
	Role         enums.AccountRole `gorm:"column:role;type:text;not null"`
	LastLoginAt  *time.Time        `gorm:"column:last_login_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string { return "accounts" }

func (a *Account) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
