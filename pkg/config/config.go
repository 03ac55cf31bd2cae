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
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Inventory    InventoryConfig
	Checkout     CheckoutConfig
	Cancellation CancellationConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"COMMERCE_APP_ENV" required:"true"`
	Port         string   `envconfig:"COMMERCE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"COMMERCE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"COMMERCE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"COMMERCE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"COMMERCE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COMMERCE_DB_DSN"`
	Driver string `envconfig:"COMMERCE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COMMERCE_DB_HOST"`
	LegacyPort     int    `envconfig:"COMMERCE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COMMERCE_DB_USER"`
	LegacyPassword string `envconfig:"COMMERCE_DB_PASSWORD"`
	LegacyName     string `envconfig:"COMMERCE_DB_NAME"`
	LegacySSLMode  string `envconfig:"COMMERCE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COMMERCE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COMMERCE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COMMERCE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COMMERCE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"COMMERCE_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COMMERCE_REDIS_URL"`
	Address      string        `envconfig:"COMMERCE_REDIS_ADDR"`
	Password     string        `envconfig:"COMMERCE_REDIS_PASSWORD"`
	DB           int           `envconfig:"COMMERCE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COMMERCE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COMMERCE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COMMERCE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COMMERCE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COMMERCE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COMMERCE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COMMERCE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COMMERCE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COMMERCE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COMMERCE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	Transport             string        `envconfig:"COMMERCE_EVENTING_TRANSPORT" default:"pubsub"`
	WebhookIdempotencyTTL time.Duration `envconfig:"COMMERCE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

// UsesKafka reports whether outbox rows are published to Kafka instead of Pub/Sub.
func (e EventingConfig) UsesKafka() bool {
	return strings.EqualFold(strings.TrimSpace(e.Transport), TransportKafka)
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Transport)) {
	case TransportPubSub, TransportKafka:
		return nil
	}
	return fmt.Errorf("%s must be one of %s|%s", EnvEventingTransport, TransportPubSub, TransportKafka)
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COMMERCE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"COMMERCE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"COMMERCE_PUBSUB_ORDERS_TOPIC" default:"commerce-orders"`
	InventoryTopic     string `envconfig:"COMMERCE_PUBSUB_INVENTORY_TOPIC" default:"commerce-inventory"`
	PaymentsTopic      string `envconfig:"COMMERCE_PUBSUB_PAYMENTS_TOPIC" default:"commerce-payments"`
	DomainSubscription string `envconfig:"COMMERCE_PUBSUB_DOMAIN_SUBSCRIPTION"`
	OrderingEnabled    bool   `envconfig:"COMMERCE_PUBSUB_ORDERING" default:"true"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"COMMERCE_KAFKA_BROKERS"`
	TopicPrefix  string        `envconfig:"COMMERCE_KAFKA_TOPIC_PREFIX" default:""`
	RequiredAcks int           `envconfig:"COMMERCE_KAFKA_REQUIRED_ACKS" default:"-1"`
	BatchTimeout time.Duration `envconfig:"COMMERCE_KAFKA_BATCH_TIMEOUT" default:"50ms"`
	WriteTimeout time.Duration `envconfig:"COMMERCE_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

type BigQueryConfig struct {
	Enabled             bool   `envconfig:"COMMERCE_BIGQUERY_ENABLED" default:"false"`
	Dataset             string `envconfig:"COMMERCE_BIGQUERY_DATASET" default:"commerce"`
	CommerceEventsTable string `envconfig:"COMMERCE_BIGQUERY_EVENTS_TABLE" default:"commerce_events"`
	CreateTables        bool   `envconfig:"COMMERCE_BIGQUERY_CREATE_TABLES" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COMMERCE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COMMERCE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COMMERCE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"COMMERCE_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetention   int `envconfig:"COMMERCE_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

type InventoryConfig struct {
	DefaultReorderThreshold int `envconfig:"COMMERCE_INVENTORY_REORDER_THRESHOLD" default:"5"`
}

type CheckoutConfig struct {
	Currency         string        `envconfig:"COMMERCE_CHECKOUT_CURRENCY" default:"USD"`
	PaymentIntentTTL time.Duration `envconfig:"COMMERCE_CHECKOUT_PAYMENT_INTENT_TTL" default:"72h"`
	RateLimit        int64         `envconfig:"COMMERCE_CHECKOUT_RATE_LIMIT" default:"10"`
	RateLimitWindow  time.Duration `envconfig:"COMMERCE_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
}

type CancellationConfig struct {
	PendingTTL time.Duration `envconfig:"COMMERCE_CANCELLATION_PENDING_TTL" default:"168h"`
}

// CronConfig sets the scheduler tick and how often each job family is due.
type CronConfig struct {
	Tick           time.Duration `envconfig:"COMMERCE_CRON_TICK" default:"1m"`
	ExpiryEvery    time.Duration `envconfig:"COMMERCE_CRON_EXPIRY_EVERY" default:"15m"`
	RetentionEvery time.Duration `envconfig:"COMMERCE_CRON_RETENTION_EVERY" default:"24h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
		return nil
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
