package config

const EnvPrefix = "GAMESTORE"

const (
	AppEnvDev        = "dev"
	AppEnvProd       = "prod"
	AppEnvProduction = "production"

	ShipXEnvSandbox    = "sandbox"
	ShipXEnvProduction = "production"

	shipXSandboxURL    = "https://sandbox-api-shipx-pl.easypack24.net"
	shipXProductionURL = "https://api-shipx-pl.easypack24.net"
)

const (
	EnvAppEnv   = "GAMESTORE_APP_ENV"
	EnvPort     = "GAMESTORE_APP_PORT"
	EnvLogLevel = "GAMESTORE_LOG_LEVEL"

	EnvDBDSN  = "GAMESTORE_DB_DSN"
	EnvDBHost = "GAMESTORE_DB_HOST"
	EnvDBUser = "GAMESTORE_DB_USER"
	EnvDBName = "GAMESTORE_DB_NAME"

	EnvRedisURL = "GAMESTORE_REDIS_URL"

	EnvJWTSecret  = "GAMESTORE_JWT_SECRET"
	EnvJWTIssuer  = "GAMESTORE_JWT_ISSUER"
	EnvJWTExpMins = "GAMESTORE_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey        = "GAMESTORE_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "GAMESTORE_STRIPE_WEBHOOK_SECRET"
	EnvPaymentsMock        = "GAMESTORE_PAYMENTS_MOCK"

	EnvShipXToken          = "GAMESTORE_SHIPX_TOKEN"
	EnvShipXOrganizationID = "GAMESTORE_SHIPX_ORGANIZATION_ID"
	EnvShipXEnv            = "GAMESTORE_SHIPX_ENV"

	EnvSenderName           = "GAMESTORE_SENDER_NAME"
	EnvSenderCompany        = "GAMESTORE_SENDER_COMPANY"
	EnvSenderEmail          = "GAMESTORE_SENDER_EMAIL"
	EnvSenderPhone          = "GAMESTORE_SENDER_PHONE"
	EnvSenderStreet         = "GAMESTORE_SENDER_STREET"
	EnvSenderBuildingNumber = "GAMESTORE_SENDER_BUILDING_NUMBER"
	EnvSenderCity           = "GAMESTORE_SENDER_CITY"
	EnvSenderPostCode       = "GAMESTORE_SENDER_POST_CODE"
	EnvSenderCountryCode    = "GAMESTORE_SENDER_COUNTRY_CODE"

	EnvPaymentJobInterval = "GAMESTORE_PAYMENT_JOB_INTERVAL_MINUTES"
	EnvPaymentJobAge      = "GAMESTORE_PAYMENT_JOB_AGE_MINUTES"
	EnvPaymentJobDryRun   = "GAMESTORE_PAYMENT_JOB_DRY_RUN"

	EnvSendgridAPIKey = "GAMESTORE_SENDGRID_API_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
