// Package dbtest opens throwaway sqlite databases carrying the launch schema.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
)

// Open returns an isolated in-memory database with every launch table migrated.
// A single connection is used so concurrent goroutines serialise instead of failing with SQLITE_BUSY.
// sqlite ignores FOR UPDATE, so tests built on Open exercise the conditional
// updates and unique indexes but never the Postgres row-lock path.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_busy_timeout=5000", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.InventoryRow{},
		&models.Reservation{},
		&models.Purchase{},
		&models.PromoCode{},
		&models.Account{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

// SeedInventory inserts a row for seatType with the given capacity and base price.
func SeedInventory(t testing.TB, conn *gorm.DB, seatType enums.SeatType, capacity, sold int, basePriceCents int64) models.InventoryRow {
	t.Helper()
	row := models.InventoryRow{
		SeatType:       seatType,
		Capacity:       capacity,
		Sold:           sold,
		BasePriceCents: basePriceCents,
	}
	if err := conn.Create(&row).Error; err != nil {
		t.Fatalf("seed inventory %s: %v", seatType, err)
	}
	return row
}

// SeedLaunch seeds both seat types with the production capacity of 50.
func SeedLaunch(t testing.TB, conn *gorm.DB) {
	t.Helper()
	SeedInventory(t, conn, enums.SeatTypeFounder, 50, 0, 500000)
	SeedInventory(t, conn, enums.SeatTypePatron, 50, 0, 250000)
}
