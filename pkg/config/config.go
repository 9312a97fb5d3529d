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
	OIDC         OIDCConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Sendgrid     SendgridConfig
	MercadoPago  MercadoPagoConfig
	Checkout     CheckoutConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env             string `envconfig:"ENXOVAL_APP_ENV" required:"true"`
	Port            string `envconfig:"ENXOVAL_APP_PORT" required:"true"`
	LogLevel        string `envconfig:"ENXOVAL_LOG_LEVEL" default:"info"`
	LogWarnStack    bool   `envconfig:"ENXOVAL_LOG_WARN_STACK" default:"false"`
	LogFormat       string `envconfig:"ENXOVAL_LOG_FORMAT" default:"json"`
	PublicBaseURL   string `envconfig:"ENXOVAL_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	FrontendBaseURL string `envconfig:"ENXOVAL_FRONTEND_BASE_URL" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

// ConsoleLogs reports whether logs should use the human-readable writer.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(strings.TrimSpace(a.LogFormat), "console")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"ENXOVAL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ENXOVAL_DB_DSN"`
	Driver string `envconfig:"ENXOVAL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ENXOVAL_DB_HOST"`
	LegacyPort     int    `envconfig:"ENXOVAL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ENXOVAL_DB_USER"`
	LegacyPassword string `envconfig:"ENXOVAL_DB_PASSWORD"`
	LegacyName     string `envconfig:"ENXOVAL_DB_NAME"`
	LegacySSLMode  string `envconfig:"ENXOVAL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ENXOVAL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ENXOVAL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ENXOVAL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ENXOVAL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"ENXOVAL_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ENXOVAL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ENXOVAL_REDIS_ADDR"`
	Password     string        `envconfig:"ENXOVAL_REDIS_PASSWORD"`
	DB           int           `envconfig:"ENXOVAL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ENXOVAL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ENXOVAL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ENXOVAL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ENXOVAL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ENXOVAL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"ENXOVAL_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"ENXOVAL_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"ENXOVAL_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"ENXOVAL_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

// OIDCConfig enables verification of ID tokens issued by an external
// identity provider. Local HS256 tokens are used when Issuer is empty.
type OIDCConfig struct {
	Issuer   string `envconfig:"ENXOVAL_OIDC_ISSUER"`
	ClientID string `envconfig:"ENXOVAL_OIDC_CLIENT_ID"`
}

func (o OIDCConfig) Enabled() bool {
	return strings.TrimSpace(o.Issuer) != ""
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ENXOVAL_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ENXOVAL_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ENXOVAL_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ENXOVAL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ENXOVAL_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ENXOVAL_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"ENXOVAL_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ENXOVAL_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	GuestbookWindow    time.Duration `envconfig:"ENXOVAL_RATE_LIMIT_GUESTBOOK_WINDOW" default:"10m"`
	GuestbookIPLimit   int           `envconfig:"ENXOVAL_RATE_LIMIT_GUESTBOOK_IP_LIMIT" default:"5"`
	CheckoutWindow     time.Duration `envconfig:"ENXOVAL_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit    int           `envconfig:"ENXOVAL_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"20"`
	CheckoutEmailLimit int           `envconfig:"ENXOVAL_RATE_LIMIT_CHECKOUT_EMAIL_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ENXOVAL_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"ENXOVAL_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookIdempotencyTTL  time.Duration `envconfig:"ENXOVAL_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	RequestIdempotencyTTL  time.Duration `envconfig:"ENXOVAL_REQUEST_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ENXOVAL_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ENXOVAL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ENXOVAL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"ENXOVAL_GCS_BUCKET_NAME"`
	PublicBaseURL string `envconfig:"ENXOVAL_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	MaxUploadMB   int    `envconfig:"ENXOVAL_MAX_UPLOAD_MB" default:"8"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"ENXOVAL_PUBSUB_ORDERS_TOPIC" default:"enxoval-order-events"`
	OrdersSubscription string `envconfig:"ENXOVAL_PUBSUB_ORDERS_SUBSCRIPTION" default:"enxoval-order-events-worker"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"ENXOVAL_BIGQUERY_DATASET" default:"enxoval"`
	ContributionsTable string `envconfig:"ENXOVAL_BIGQUERY_CONTRIBUTIONS_TABLE" default:"contribution_events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"ENXOVAL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"ENXOVAL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"ENXOVAL_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"ENXOVAL_OUTBOX_RETENTION" default:"720h"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"ENXOVAL_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"ENXOVAL_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"ENXOVAL_SENDGRID_FROM_NAME" default:"Enxoval"`
}

func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.DefaultFrom) != ""
}

// MercadoPagoConfig holds the env fallbacks for the gateway credentials.
// Values stored in mercadopago_settings take precedence.
type MercadoPagoConfig struct {
	AccessToken     string        `envconfig:"ENXOVAL_MP_ACCESS_TOKEN"`
	WebhookSecret   string        `envconfig:"ENXOVAL_MP_WEBHOOK_SECRET"`
	NotificationURL string        `envconfig:"ENXOVAL_MP_NOTIFICATION_URL"`
	Mock            bool          `envconfig:"ENXOVAL_MP_MOCK" default:"false"`
	Timeout         time.Duration `envconfig:"ENXOVAL_MP_TIMEOUT" default:"15s"`
	AccountURL      string        `envconfig:"ENXOVAL_MP_ACCOUNT_URL" default:"https://api.mercadopago.com/v1/account/settings"`
}

type CheckoutConfig struct {
	PrefetchTTL     time.Duration `envconfig:"ENXOVAL_CHECKOUT_PREFETCH_TTL" default:"10m"`
	PendingOrderTTL time.Duration `envconfig:"ENXOVAL_CHECKOUT_PENDING_ORDER_TTL" default:"24h"`
	PixExpiration   time.Duration `envconfig:"ENXOVAL_CHECKOUT_PIX_EXPIRATION" default:"30m"`
	CartTTL         time.Duration `envconfig:"ENXOVAL_CART_TTL" default:"720h"`
}

type CronConfig struct {
	Schedule        string        `envconfig:"ENXOVAL_CRON_SCHEDULE" default:"@every 5m"`
	ReconcileMinAge time.Duration `envconfig:"ENXOVAL_CRON_RECONCILE_MIN_AGE" default:"2m"`
	ReconcileBatch  int           `envconfig:"ENXOVAL_CRON_RECONCILE_BATCH" default:"50"`
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
