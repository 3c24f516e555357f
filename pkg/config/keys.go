package config

// EnvPrefix is the namespace applied to every service environment variable.
const EnvPrefix = "SETTLEMENT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SETTLEMENT_APP_ENV"
	EnvPort     = "SETTLEMENT_APP_PORT"
	EnvLogLevel = "SETTLEMENT_LOG_LEVEL"

	EnvDBDSN    = "SETTLEMENT_DB_DSN"
	EnvDBDriver = "SETTLEMENT_DB_DRIVER"
	EnvDBHost   = "SETTLEMENT_DB_HOST"
	EnvDBUser   = "SETTLEMENT_DB_USER"
	EnvDBName   = "SETTLEMENT_DB_NAME"

	EnvRedisURL = "SETTLEMENT_REDIS_URL"

	EnvJWTSecret  = "SETTLEMENT_JWT_SECRET"
	EnvJWTIssuer  = "SETTLEMENT_JWT_ISSUER"
	EnvJWTExpMins = "SETTLEMENT_JWT_EXPIRATION_MINUTES"

	EnvPlatformFeePercent = "SETTLEMENT_PLATFORM_FEE_PERCENT"
	EnvCurrency           = "SETTLEMENT_CURRENCY"
	EnvMinPayoutCents     = "SETTLEMENT_MIN_PAYOUT_CENTS"

	EnvCourierWebhookSecret = "SETTLEMENT_COURIER_WEBHOOK_SECRET"

	EnvGCPProjectID = "SETTLEMENT_GCP_PROJECT_ID"

	EnvPubSubSettlementTopic = "SETTLEMENT_PUBSUB_SETTLEMENT_TOPIC"
	EnvPubSubPaymentsSub     = "SETTLEMENT_PUBSUB_PAYMENTS_SUBSCRIPTION"
	EnvPubSubRefundsSub      = "SETTLEMENT_PUBSUB_REFUNDS_SUBSCRIPTION"
	EnvPubSubAnalyticsSub    = "SETTLEMENT_PUBSUB_ANALYTICS_SUBSCRIPTION"

	EnvStripeAPIKey = "SETTLEMENT_STRIPE_API_KEY"
	EnvStripeSecret = "SETTLEMENT_STRIPE_SECRET"

	EnvSquareAccessToken = "SETTLEMENT_SQUARE_ACCESS_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
