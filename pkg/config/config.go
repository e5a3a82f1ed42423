package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Launch       LaunchConfig
	PayFast      PayFastConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Launch.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CASTWELL_APP_ENV" required:"true"`
	Port         string `envconfig:"CASTWELL_APP_PORT" required:"true"`
	PublicURL    string `envconfig:"CASTWELL_PUBLIC_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"CASTWELL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CASTWELL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"CASTWELL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CASTWELL_DB_DSN"`
	Driver string `envconfig:"CASTWELL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CASTWELL_DB_HOST"`
	LegacyPort     int    `envconfig:"CASTWELL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CASTWELL_DB_USER"`
	LegacyPassword string `envconfig:"CASTWELL_DB_PASSWORD"`
	LegacyName     string `envconfig:"CASTWELL_DB_NAME"`
	LegacySSLMode  string `envconfig:"CASTWELL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CASTWELL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CASTWELL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CASTWELL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CASTWELL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the store runs on the embedded sqlite driver (local dev only).
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CASTWELL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CASTWELL_REDIS_ADDR"`
	Password     string        `envconfig:"CASTWELL_REDIS_PASSWORD"`
	DB           int           `envconfig:"CASTWELL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CASTWELL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CASTWELL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CASTWELL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CASTWELL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CASTWELL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CASTWELL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CASTWELL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CASTWELL_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CASTWELL_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CASTWELL_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CASTWELL_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CASTWELL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CASTWELL_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"CASTWELL_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"CASTWELL_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"CASTWELL_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	PromoWindow     time.Duration `envconfig:"CASTWELL_RATE_LIMIT_PROMO_WINDOW" default:"10m"`
	PromoLimit      int           `envconfig:"CASTWELL_RATE_LIMIT_PROMO_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CASTWELL_AUTO_MIGRATE" default:"false"`
}

// LaunchConfig holds the commercial knobs of the seat launch.
type LaunchConfig struct {
	ReservationTTL       time.Duration `envconfig:"CASTWELL_RESERVATION_TTL" default:"24h"`
	AmountToleranceCents int64         `envconfig:"CASTWELL_AMOUNT_TOLERANCE_CENTS" default:"1"`
	PatinaUpgradeCents   int64         `envconfig:"CASTWELL_ADDON_PATINA_UPGRADE_CENTS" default:"15000"`
	DisplayPlinthCents   int64         `envconfig:"CASTWELL_ADDON_DISPLAY_PLINTH_CENTS" default:"22500"`
	EngravingCents       int64         `envconfig:"CASTWELL_ADDON_ENGRAVING_CENTS" default:"7500"`
	IdempotencyTTL       time.Duration `envconfig:"CASTWELL_IDEMPOTENCY_TTL" default:"24h"`
}

func (l LaunchConfig) validate() error {
	if l.ReservationTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvReservationTTL)
	}
	if l.AmountToleranceCents < 0 {
		return fmt.Errorf("%s must not be negative", EnvAmountTolerance)
	}
	if l.PatinaUpgradeCents < 0 || l.DisplayPlinthCents < 0 || l.EngravingCents < 0 {
		return fmt.Errorf("add-on tariffs must not be negative")
	}
	return nil
}

type PayFastConfig struct {
	MerchantID  string `envconfig:"CASTWELL_PAYFAST_MERCHANT_ID" required:"true"`
	MerchantKey string `envconfig:"CASTWELL_PAYFAST_MERCHANT_KEY" required:"true"`
	Passphrase  string `envconfig:"CASTWELL_PAYFAST_PASSPHRASE"`
	ProcessURL  string `envconfig:"CASTWELL_PAYFAST_PROCESS_URL" default:"https://sandbox.payfast.co.za/eng/process"`
	ReturnURL   string `envconfig:"CASTWELL_PAYFAST_RETURN_URL"`
	CancelURL   string `envconfig:"CASTWELL_PAYFAST_CANCEL_URL"`
	NotifyURL   string `envconfig:"CASTWELL_PAYFAST_NOTIFY_URL"`
}

// IsSandbox reports whether checkout redirects go to the PayFast sandbox.
func (p PayFastConfig) IsSandbox() bool {
	u, err := url.Parse(p.ProcessURL)
	return err == nil && strings.HasPrefix(strings.ToLower(u.Hostname()), "sandbox.")
}

type GCPConfig struct {
	ProjectID string `envconfig:"CASTWELL_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	LaunchTopic        string `envconfig:"CASTWELL_PUBSUB_LAUNCH_TOPIC" default:"castwell-launch-events"`
	LaunchSubscription string `envconfig:"CASTWELL_PUBSUB_LAUNCH_SUBSCRIPTION" default:"castwell-launch-fulfillment"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CASTWELL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CASTWELL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CASTWELL_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"CASTWELL_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CASTWELL_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"CASTWELL_CRON_LOCK_TTL" default:"50s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
