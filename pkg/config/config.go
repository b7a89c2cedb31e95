package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Password PasswordConfig
	Stripe   StripeConfig
	Webhook  WebhookConfig
	ShipX    ShipXConfig
	Sender   SenderConfig
	Delivery DeliveryConfig
	Jobs     JobsConfig
	Invoices InvoicesConfig
	Sendgrid SendgridConfig
	Catalog  CatalogConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"GAMESTORE_APP_ENV" required:"true"`
	Port         string   `envconfig:"GAMESTORE_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"GAMESTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"GAMESTORE_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"GAMESTORE_LOG_FORMAT" default:"json"`
	AutoMigrate  bool     `envconfig:"GAMESTORE_AUTO_MIGRATE" default:"false"`
	CORSOrigins  []string `envconfig:"GAMESTORE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, AppEnvProduction)
}

type ServiceConfig struct {
	Kind string `envconfig:"GAMESTORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"GAMESTORE_DB_DSN"`

	LegacyHost     string `envconfig:"GAMESTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"GAMESTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GAMESTORE_DB_USER"`
	LegacyPassword string `envconfig:"GAMESTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"GAMESTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"GAMESTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GAMESTORE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"GAMESTORE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"GAMESTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GAMESTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GAMESTORE_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GAMESTORE_REDIS_URL"`
	Address      string        `envconfig:"GAMESTORE_REDIS_ADDR"`
	Password     string        `envconfig:"GAMESTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"GAMESTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GAMESTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GAMESTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GAMESTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GAMESTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GAMESTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"GAMESTORE_REDIS_KEY_PREFIX" default:"gs"`
}

// JWTConfig secures the admin surface.
type JWTConfig struct {
	Secret            string `envconfig:"GAMESTORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GAMESTORE_JWT_ISSUER" default:"gamestore"`
	ExpirationMinutes int    `envconfig:"GAMESTORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PasswordConfig tunes the Argon2id hashing of operator passwords.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GAMESTORE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GAMESTORE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GAMESTORE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GAMESTORE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GAMESTORE_ARGON_KEY_LEN" default:"32"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"GAMESTORE_STRIPE_API_KEY"`
	Secret   string `envconfig:"GAMESTORE_STRIPE_WEBHOOK_SECRET"`
	Env      string `envconfig:"GAMESTORE_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"GAMESTORE_STRIPE_CURRENCY" default:"pln"`
	MockMode bool   `envconfig:"GAMESTORE_PAYMENTS_MOCK" default:"false"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// WebhookConfig holds the shared secret for the generic HMAC scheme.
type WebhookConfig struct {
	HMACSecret string        `envconfig:"GAMESTORE_WEBHOOK_HMAC_SECRET"`
	GuardTTL   time.Duration `envconfig:"GAMESTORE_WEBHOOK_GUARD_TTL" default:"10m"`
}

type ShipXConfig struct {
	Token          string        `envconfig:"GAMESTORE_SHIPX_TOKEN"`
	OrganizationID string        `envconfig:"GAMESTORE_SHIPX_ORGANIZATION_ID"`
	Env            string        `envconfig:"GAMESTORE_SHIPX_ENV" default:"sandbox"`
	BaseURL        string        `envconfig:"GAMESTORE_SHIPX_BASE_URL"`
	Timeout        time.Duration `envconfig:"GAMESTORE_SHIPX_TIMEOUT" default:"15s"`
	RetryAttempts  int           `envconfig:"GAMESTORE_SHIPX_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"GAMESTORE_SHIPX_RETRY_BASE_DELAY" default:"1s"`
	TrackingURL    string        `envconfig:"GAMESTORE_SHIPX_TRACKING_URL" default:"https://inpost.pl/sledzenie-przesylek?number="`
}

// Environment returns the normalized carrier environment (sandbox/production).
func (s ShipXConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return ShipXEnvSandbox
	}
	return env
}

// IsProduction reports whether live carrier calls are configured.
func (s ShipXConfig) IsProduction() bool {
	return s.Environment() == ShipXEnvProduction
}

// ResolvedBaseURL returns the explicit override or the environment default.
func (s ShipXConfig) ResolvedBaseURL() string {
	if base := strings.TrimSpace(s.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	if s.IsProduction() {
		return shipXProductionURL
	}
	return shipXSandboxURL
}

// SenderConfig is the shop identity printed on every shipment.
type SenderConfig struct {
	Name           string `envconfig:"GAMESTORE_SENDER_NAME"`
	CompanyName    string `envconfig:"GAMESTORE_SENDER_COMPANY"`
	Email          string `envconfig:"GAMESTORE_SENDER_EMAIL"`
	Phone          string `envconfig:"GAMESTORE_SENDER_PHONE"`
	Street         string `envconfig:"GAMESTORE_SENDER_STREET"`
	BuildingNumber string `envconfig:"GAMESTORE_SENDER_BUILDING_NUMBER"`
	City           string `envconfig:"GAMESTORE_SENDER_CITY"`
	PostCode       string `envconfig:"GAMESTORE_SENDER_POST_CODE"`
	CountryCode    string `envconfig:"GAMESTORE_SENDER_COUNTRY_CODE" default:"PL"`
}

type DeliveryConfig struct {
	LockerCostCents  int64  `envconfig:"GAMESTORE_DELIVERY_LOCKER_COST" default:"1399"`
	CourierCostCents int64  `envconfig:"GAMESTORE_DELIVERY_COURIER_COST" default:"1899"`
	LockerTemplate   string `envconfig:"GAMESTORE_DELIVERY_LOCKER_TEMPLATE" default:"medium"`
	ParcelWeightKg   string `envconfig:"GAMESTORE_DELIVERY_PARCEL_WEIGHT_KG" default:"2.5"`
	ParcelLengthMM   string `envconfig:"GAMESTORE_DELIVERY_PARCEL_LENGTH_MM" default:"400"`
	ParcelWidthMM    string `envconfig:"GAMESTORE_DELIVERY_PARCEL_WIDTH_MM" default:"300"`
	ParcelHeightMM   string `envconfig:"GAMESTORE_DELIVERY_PARCEL_HEIGHT_MM" default:"120"`
}

type JobsConfig struct {
	PaymentIntervalMinutes  int    `envconfig:"GAMESTORE_PAYMENT_JOB_INTERVAL_MINUTES" default:"10"`
	PaymentAgeMinutes       int    `envconfig:"GAMESTORE_PAYMENT_JOB_AGE_MINUTES" default:"15"`
	PaymentDryRun           bool   `envconfig:"GAMESTORE_PAYMENT_JOB_DRY_RUN" default:"false"`
	PaymentBatchSize        int    `envconfig:"GAMESTORE_PAYMENT_JOB_BATCH_SIZE" default:"100"`
	ShipmentIntervalMinutes int    `envconfig:"GAMESTORE_SHIPMENT_JOB_INTERVAL_MINUTES" default:"30"`
	ShipmentBatchSize       int    `envconfig:"GAMESTORE_SHIPMENT_JOB_BATCH_SIZE" default:"200"`
	MetricsPort             string `envconfig:"GAMESTORE_CRON_METRICS_PORT" default:"9091"`
}

// PaymentInterval returns the payment job cadence.
func (j JobsConfig) PaymentInterval() time.Duration {
	return minutes(j.PaymentIntervalMinutes)
}

// PaymentAge returns how long an order must sit in PAYMENT_PENDING before polling.
func (j JobsConfig) PaymentAge() time.Duration {
	return minutes(j.PaymentAgeMinutes)
}

// ShipmentInterval returns the shipment job cadence.
func (j JobsConfig) ShipmentInterval() time.Duration {
	return minutes(j.ShipmentIntervalMinutes)
}

type InvoicesConfig struct {
	StorageDir    string `envconfig:"GAMESTORE_INVOICE_STORAGE_DIR" default:"storage/invoices"`
	LabelsDir     string `envconfig:"GAMESTORE_LABEL_STORAGE_DIR" default:"storage/labels"`
	NumberPrefix  string `envconfig:"GAMESTORE_INVOICE_NUMBER_PREFIX" default:"FV"`
	SellerName    string `envconfig:"GAMESTORE_INVOICE_SELLER_NAME" default:"Gamestore"`
	SellerAddress string `envconfig:"GAMESTORE_INVOICE_SELLER_ADDRESS"`
	SellerTaxID   string `envconfig:"GAMESTORE_INVOICE_SELLER_TAX_ID"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"GAMESTORE_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"GAMESTORE_SENDGRID_FROM_EMAIL" default:"shop@example.com"`
	FromName    string `envconfig:"GAMESTORE_SENDGRID_FROM_NAME" default:"Gamestore"`
}

// CatalogConfig seeds the single product when the catalog is empty.
type CatalogConfig struct {
	ProductName        string `envconfig:"GAMESTORE_PRODUCT_NAME" default:"Board Game"`
	ProductDescription string `envconfig:"GAMESTORE_PRODUCT_DESCRIPTION" default:"The board game, shipped from our warehouse."`
	ProductPriceCents  int64  `envconfig:"GAMESTORE_PRODUCT_PRICE" default:"29900"`
	ProductImage       string `envconfig:"GAMESTORE_PRODUCT_IMAGE" default:"/images/box.png"`
	ProductCategory    string `envconfig:"GAMESTORE_PRODUCT_CATEGORY" default:"board-games"`
}

func minutes(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Minute
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
