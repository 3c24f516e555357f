package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Settlement   SettlementConfig
	Courier      CourierConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SETTLEMENT_APP_ENV" required:"true"`
	Port         string `envconfig:"SETTLEMENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SETTLEMENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SETTLEMENT_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"SETTLEMENT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SETTLEMENT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SETTLEMENT_DB_DSN"`
	Driver string `envconfig:"SETTLEMENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SETTLEMENT_DB_HOST"`
	LegacyPort     int    `envconfig:"SETTLEMENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SETTLEMENT_DB_USER"`
	LegacyPassword string `envconfig:"SETTLEMENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SETTLEMENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SETTLEMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SETTLEMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SETTLEMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SETTLEMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SETTLEMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SETTLEMENT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SETTLEMENT_REDIS_ADDR"`
	Password     string        `envconfig:"SETTLEMENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SETTLEMENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SETTLEMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SETTLEMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SETTLEMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SETTLEMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SETTLEMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SETTLEMENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SETTLEMENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SETTLEMENT_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SETTLEMENT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SETTLEMENT_AUTO_MIGRATE" default:"false"`
	// AutoDispatchPayouts submits a payout to the provider right after the wallet debit commits.
	AutoDispatchPayouts bool `envconfig:"SETTLEMENT_AUTO_DISPATCH_PAYOUTS" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL  time.Duration `envconfig:"SETTLEMENT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookIdempotencyTTL time.Duration `envconfig:"SETTLEMENT_WEBHOOK_IDEMPOTENCY_TTL" default:"168h"`
}

// SettlementConfig holds the marketplace money policy.
type SettlementConfig struct {
	PlatformFeePercent string `envconfig:"SETTLEMENT_PLATFORM_FEE_PERCENT" default:"5"`
	Currency           string `envconfig:"SETTLEMENT_CURRENCY" default:"NGN"`
	MinPayoutCents     int64  `envconfig:"SETTLEMENT_MIN_PAYOUT_CENTS" default:"100"`
}

// FeeRate returns the configured platform fee as a percentage.
func (s SettlementConfig) FeeRate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(s.PlatformFeePercent))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (s SettlementConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(s.PlatformFeePercent))
	if err != nil {
		return fmt.Errorf("%s must be numeric: %w", EnvPlatformFeePercent, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must be between 0 and 100", EnvPlatformFeePercent)
	}
	if s.MinPayoutCents < 0 {
		return fmt.Errorf("%s must not be negative", EnvMinPayoutCents)
	}
	return nil
}

// RateLimitConfig caps payout requests per vendor and courier callbacks per
// source address. A zero limit disables the cap.
type RateLimitConfig struct {
	PayoutRequests int64         `envconfig:"SETTLEMENT_RATE_LIMIT_PAYOUT_REQUESTS" default:"10"`
	PayoutWindow   time.Duration `envconfig:"SETTLEMENT_RATE_LIMIT_PAYOUT_WINDOW" default:"1h"`
	CourierEvents  int64         `envconfig:"SETTLEMENT_RATE_LIMIT_COURIER_EVENTS" default:"600"`
	CourierWindow  time.Duration `envconfig:"SETTLEMENT_RATE_LIMIT_COURIER_WINDOW" default:"1m"`
}

type CourierConfig struct {
	WebhookSecret string `envconfig:"SETTLEMENT_COURIER_WEBHOOK_SECRET"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"SETTLEMENT_CRON_INTERVAL" default:"1m"`
	LockTTL           time.Duration `envconfig:"SETTLEMENT_CRON_LOCK_TTL" default:"5m"`
	PayoutDispatchAge time.Duration `envconfig:"SETTLEMENT_CRON_PAYOUT_DISPATCH_AGE" default:"5m"`
	OutboxRetention   time.Duration `envconfig:"SETTLEMENT_CRON_OUTBOX_RETENTION" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SETTLEMENT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SETTLEMENT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SETTLEMENT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic       string `envconfig:"SETTLEMENT_PUBSUB_SETTLEMENT_TOPIC" default:"settlement-events"`
	PaymentsSubscription  string `envconfig:"SETTLEMENT_PUBSUB_PAYMENTS_SUBSCRIPTION" default:"settlement-payments-sub"`
	RefundsSubscription   string `envconfig:"SETTLEMENT_PUBSUB_REFUNDS_SUBSCRIPTION" default:"settlement-refunds-sub"`
	AnalyticsSubscription string `envconfig:"SETTLEMENT_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"settlement-analytics-sub"`
}

type BigQueryConfig struct {
	Dataset         string `envconfig:"SETTLEMENT_BIGQUERY_DATASET" default:"settlement"`
	SettlementTable string `envconfig:"SETTLEMENT_BIGQUERY_SETTLEMENT_TABLE" default:"settlement_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SETTLEMENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SETTLEMENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SETTLEMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SETTLEMENT_STRIPE_API_KEY"`
	Secret string `envconfig:"SETTLEMENT_STRIPE_SECRET"`
	Env    string `envconfig:"SETTLEMENT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"SETTLEMENT_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"SETTLEMENT_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"SETTLEMENT_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
