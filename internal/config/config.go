package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// CredentialsSecret derives the key that protects venue gateway
	// credentials at rest. The app refuses to start without it.
	CredentialsSecret string
	// SyncToken authenticates the status-sync fallback endpoint.
	SyncToken string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis RedisConfig

	Webhook   WebhookConfig
	Reconcile ReconcileConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type WebhookConfig struct {
	// RateLimit caps notifications per source key inside Window.
	RateLimit  int
	WindowSecs int
}

type ReconcileConfig struct {
	Enabled      bool
	IntervalSecs int
	// StaleAfterSecs is how long a tip may sit pending before the
	// reconciler asks the gateway directly.
	StaleAfterSecs int
	BatchSize      int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "tipdrop"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		CredentialsSecret: strings.TrimSpace(getenv("CREDENTIALS_SECRET", "")),
		SyncToken:         strings.TrimSpace(getenv("SYNC_TOKEN", "")),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tipdrop"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Webhook: WebhookConfig{
			RateLimit:  getenvInt("WEBHOOK_RATE_LIMIT", 60),
			WindowSecs: getenvInt("WEBHOOK_RATE_WINDOW", 60),
		},
		Reconcile: ReconcileConfig{
			Enabled:        getenvBool("RECONCILE_ENABLED", true),
			IntervalSecs:   getenvInt("RECONCILE_INTERVAL", 300),
			StaleAfterSecs: getenvInt("RECONCILE_STALE_AFTER", 900),
			BatchSize:      getenvInt("RECONCILE_BATCH_SIZE", 50),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
