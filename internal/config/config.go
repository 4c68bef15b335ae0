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
	LogLevel    string

	PlatformTenantID string

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

	RedisAddr     string
	RedisPassword string

	Settlement SettlementConfig
}

// SettlementConfig carries the tunables of the settlement core. Durations are
// minutes unless named otherwise.
type SettlementConfig struct {
	LockStaleMinutes       int
	SentStuckMinutes       int
	SendingStuckMinutes    int
	TrustWindowDays        int
	DefaultHoldDays        int
	OutboxBatchSize        int
	OutboxRetryBackoffMins int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:          getenv("APP_SERVICE", "pazar"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      getenv("ENVIRONMENT", "development"),
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		PlatformTenantID: getenv("PLATFORM_TENANT_ID", "PLATFORM_ADMIN"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "pazar"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 30),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Settlement: SettlementConfig{
			LockStaleMinutes:       getenvInt("SETTLEMENT_LOCK_STALE_MINUTES", 15),
			SentStuckMinutes:       getenvInt("SETTLEMENT_SENT_STUCK_MINUTES", 10),
			SendingStuckMinutes:    getenvInt("SETTLEMENT_SENDING_STUCK_MINUTES", 15),
			TrustWindowDays:        getenvInt("TRUST_WINDOW_DAYS", 90),
			DefaultHoldDays:        getenvInt("ESCROW_DEFAULT_HOLD_DAYS", 14),
			OutboxBatchSize:        getenvInt("OUTBOX_BATCH_SIZE", 50),
			OutboxRetryBackoffMins: getenvInt("OUTBOX_RETRY_BACKOFF_MINUTES", 5),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
