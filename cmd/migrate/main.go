package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/castwell/launch-backend/internal/auth"
	"github.com/castwell/launch-backend/pkg/config"
	"github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/logger"
	"github.com/castwell/launch-backend/pkg/migrate"
)

const adminPasswordEnv = "CASTWELL_ADMIN_PASSWORD"

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	email   string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate|create-admin")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.StringVar(&opts.email, "email", "", "admin email for -cmd=create-admin; password is read from "+adminPasswordEnv)
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	if handled := runOffline(opts); handled {
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	if opts.cmd == "create-admin" {
		createAdmin(ctx, logg, cfg, dbClient, opts.email)
		return
	}

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)
	logg.Info(ctx, "migrate ready")
	if err := runGoose(ctx, sqlDB, opts); err != nil {
		fail("%v", err)
	}
}

// runOffline handles the commands that only touch the migrations directory.
func runOffline(opts options) bool {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return true
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return true
	}
	return false
}

func runGoose(ctx context.Context, sqlDB *sql.DB, opts options) error {
	switch opts.cmd {
	case "up", "down", "status":
		if err := migrate.Run(ctx, sqlDB, opts.dir, opts.cmd); err != nil {
			return fmt.Errorf("goose %s failed: %w", opts.cmd, err)
		}
		return nil
	case "version":
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version); err != nil {
			return fmt.Errorf("goose version migrate failed: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown -cmd value: %s", opts.cmd)
	}
}

func createAdmin(ctx context.Context, logg *logger.Logger, cfg *config.Config, dbClient *db.Client, email string) {
	password := os.Getenv(adminPasswordEnv)
	if email == "" || password == "" {
		fail("create-admin needs -email and %s", adminPasswordEnv)
	}
	svc, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	requireResource(ctx, logg, "register service", err)

	account, err := svc.CreateAdmin(ctx, auth.RegisterRequest{Email: email, Password: password})
	if err != nil {
		fail("create admin failed: %v", err)
	}
	logg.Info(logg.WithUserID(ctx, account.ID.String()), "admin account created")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
