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
	Checkout     CheckoutConfig
	Konnect      KonnectConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"TIJARA_APP_ENV" required:"true"`
	Port         string `envconfig:"TIJARA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TIJARA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TIJARA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TIJARA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TIJARA_DB_DSN"`
	Driver string `envconfig:"TIJARA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TIJARA_DB_HOST"`
	LegacyPort     int    `envconfig:"TIJARA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TIJARA_DB_USER"`
	LegacyPassword string `envconfig:"TIJARA_DB_PASSWORD"`
	LegacyName     string `envconfig:"TIJARA_DB_NAME"`
	LegacySSLMode  string `envconfig:"TIJARA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TIJARA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TIJARA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TIJARA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TIJARA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TIJARA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TIJARA_REDIS_ADDR"`
	Password     string        `envconfig:"TIJARA_REDIS_PASSWORD"`
	DB           int           `envconfig:"TIJARA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TIJARA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TIJARA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TIJARA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TIJARA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TIJARA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig validates tokens minted by the external identity provider.
type JWTConfig struct {
	Secret string `envconfig:"TIJARA_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"TIJARA_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TIJARA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TIJARA_AUTO_MIGRATE" default:"false"`
}

type CheckoutConfig struct {
	// MaxItemsPerOrder bounds a single settlement request.
	MaxItemsPerOrder int `envconfig:"TIJARA_CHECKOUT_MAX_ITEMS" default:"50"`
}

type KonnectConfig struct {
	BaseURL       string        `envconfig:"TIJARA_KONNECT_BASE_URL" default:"https://api.konnect.network/api/v2"`
	APIKey        string        `envconfig:"TIJARA_KONNECT_API_KEY"`
	WalletID      string        `envconfig:"TIJARA_KONNECT_WALLET_ID"`
	Timeout       time.Duration `envconfig:"TIJARA_KONNECT_TIMEOUT" default:"10s"`
	WebhookSecret string        `envconfig:"TIJARA_KONNECT_WEBHOOK_SECRET"`
	// WebhookURL is the publicly reachable callback passed on init-payment.
	WebhookURL string `envconfig:"TIJARA_KONNECT_WEBHOOK_URL"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TIJARA_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"TIJARA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"TIJARA_PUBSUB_ORDERS_TOPIC" default:"tijara-order-events"`
	OrdersSubscription string `envconfig:"TIJARA_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TIJARA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TIJARA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TIJARA_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
