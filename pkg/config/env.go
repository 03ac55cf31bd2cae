package config

const EnvPrefix = "COMMERCE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	TransportPubSub = "pubsub"
	TransportKafka  = "kafka"
)

const defaultSQLiteDSN = "file:commerce.db?_foreign_keys=on"

const (
	EnvAppEnv            = "COMMERCE_APP_ENV"
	EnvPort              = "COMMERCE_APP_PORT"
	EnvDBDSN             = "COMMERCE_DB_DSN"
	EnvDBHost            = "COMMERCE_DB_HOST"
	EnvDBUser            = "COMMERCE_DB_USER"
	EnvDBName            = "COMMERCE_DB_NAME"
	EnvUseSQLite         = "COMMERCE_USE_SQLITE"
	EnvRedisURL          = "COMMERCE_REDIS_URL"
	EnvJWTSecret         = "COMMERCE_JWT_SECRET"
	EnvJWTIssuer         = "COMMERCE_JWT_ISSUER"
	EnvEventingTransport = "COMMERCE_EVENTING_TRANSPORT"
	EnvKafkaBrokers      = "COMMERCE_KAFKA_BROKERS"
	EnvCancellationTTL   = "COMMERCE_CANCELLATION_PENDING_TTL"
	EnvReorderThreshold  = "COMMERCE_INVENTORY_REORDER_THRESHOLD"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)
