package config

// EnvPrefix namespaces every Tradepost environment variable.
const EnvPrefix = "TRADEPOST"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error text).
const (
	EnvAppEnv   = "TRADEPOST_APP_ENV"
	EnvPort     = "TRADEPOST_APP_PORT"
	EnvDBDSN    = "TRADEPOST_DB_DSN"
	EnvDBHost   = "TRADEPOST_DB_HOST"
	EnvDBUser   = "TRADEPOST_DB_USER"
	EnvDBName   = "TRADEPOST_DB_NAME"
	EnvRedisURL = "TRADEPOST_REDIS_URL"

	EnvJWTSecret  = "TRADEPOST_JWT_SECRET"
	EnvJWTIssuer  = "TRADEPOST_JWT_ISSUER"
	EnvJWTExpMins = "TRADEPOST_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "TRADEPOST_GCP_PROJECT_ID"

	EnvPubSubDomainTopic        = "TRADEPOST_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSubscription = "TRADEPOST_PUBSUB_DOMAIN_SUBSCRIPTION"

	EnvSquareAccessToken = "TRADEPOST_SQUARE_ACCESS_TOKEN"
	EnvSquareEnv         = "TRADEPOST_SQUARE_ENV"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
