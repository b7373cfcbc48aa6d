package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Booking configuration
	PersistTimeout    time.Duration
	IdempotencyTTL    time.Duration
	PaymentSessionTTL time.Duration

	// Refund policy: whether a refund event is accepted for a booking
	// whose travel already completed. When accepted it is recorded
	// without touching the completed status.
	AllowRefundAfterTravel bool

	// Background jobs
	CompletionSweepInterval time.Duration

	// Dashboard
	StatsTopPackages     int
	StatsRecentCancelled int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Booking
		PersistTimeout:    getEnvAsDuration("PERSIST_TIMEOUT", "5s"),
		IdempotencyTTL:    getEnvAsDuration("IDEMPOTENCY_TTL", "24h"),
		PaymentSessionTTL: getEnvAsDuration("PAYMENT_SESSION_TTL", "10m"),

		AllowRefundAfterTravel: getEnvAsBool("ALLOW_REFUND_AFTER_TRAVEL", true),

		// Background jobs
		CompletionSweepInterval: getEnvAsDuration("COMPLETION_SWEEP_INTERVAL", "1h"),

		// Dashboard
		StatsTopPackages:     getEnvAsInt("STATS_TOP_PACKAGES", 5),
		StatsRecentCancelled: getEnvAsInt("STATS_RECENT_CANCELLED", 10),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
