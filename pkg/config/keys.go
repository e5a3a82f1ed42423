package config

// EnvPrefix namespaces every variable read by envconfig.
const EnvPrefix = "CASTWELL"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv          = "CASTWELL_APP_ENV"
	EnvPort            = "CASTWELL_APP_PORT"
	EnvDBDSN           = "CASTWELL_DB_DSN"
	EnvDBDriver        = "CASTWELL_DB_DRIVER"
	EnvDBHost          = "CASTWELL_DB_HOST"
	EnvDBUser          = "CASTWELL_DB_USER"
	EnvDBName          = "CASTWELL_DB_NAME"
	EnvDBPassword      = "CASTWELL_DB_PASSWORD"
	EnvRedisURL        = "CASTWELL_REDIS_URL"
	EnvJWTSecret       = "CASTWELL_JWT_SECRET"
	EnvJWTIssuer       = "CASTWELL_JWT_ISSUER"
	EnvJWTExpMins      = "CASTWELL_JWT_EXPIRATION_MINUTES"
	EnvPayFastMerchant = "CASTWELL_PAYFAST_MERCHANT_ID"
	EnvPayFastKey      = "CASTWELL_PAYFAST_MERCHANT_KEY"
	EnvPayFastPass     = "CASTWELL_PAYFAST_PASSPHRASE"
	EnvReservationTTL  = "CASTWELL_RESERVATION_TTL"
	EnvAmountTolerance = "CASTWELL_AMOUNT_TOLERANCE_CENTS"
	EnvPubSubTopic     = "CASTWELL_PUBSUB_LAUNCH_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
