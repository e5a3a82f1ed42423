package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/db/models"
	"github.com/castwell/launch-backend/pkg/enums"
	"github.com/castwell/launch-backend/pkg/logger"
)

// LaunchCapacity is the number of seats seeded per seat type.
const LaunchCapacity = 50

// MaybeRunDev migrates automatically when running in dev with the feature flag enabled.
// Postgres runs the goose files; the sqlite driver has no goose dialect parity so its schema comes from the models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir, "driver": cfg.DB.Driver})

	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "running model auto-migration (sqlite dev)")
		if err := AutoMigrateModels(ctx, client.DB()); err != nil {
			return err
		}
		logg.Info(ctx, "model auto-migration completed")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running Goose migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// AutoMigrateModels creates the launch tables from the gorm models and seeds inventory.
func AutoMigrateModels(ctx context.Context, conn *gorm.DB) error {
	conn = conn.WithContext(ctx)
	if err := conn.AutoMigrate(
		&models.InventoryRow{},
		&models.Account{},
		&models.Reservation{},
		&models.Purchase{},
		&models.PromoCode{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	seed := []models.InventoryRow{
		{SeatType: enums.SeatTypeFounder, Capacity: LaunchCapacity, BasePriceCents: 500000},
		{SeatType: enums.SeatTypePatron, Capacity: LaunchCapacity, BasePriceCents: 250000},
	}
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return fmt.Errorf("seed inventory: %w", err)
	}
	return nil
}
