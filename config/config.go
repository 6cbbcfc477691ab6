package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration (display boards / announcement delivery)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	DisplayChannel     string

	// Queue configuration
	ServiceStartDelay  time.Duration // calling -> serving auto transition
	AnnounceLockWindow time.Duration // announcement dedup lease
	BusPollInterval    time.Duration // poll fallback for missed notifications
	ArchiveInterval    time.Duration // terminal ticket archiving cadence

	// Kiosk protection
	IssueRateLimit int // max ticket issues per client per minute, 0 disables

	// Settings protection
	AdminPINHash string // bcrypt hash guarding policy updates, empty disables

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		DisplayChannel:     getEnv("DISPLAY_CHANNEL", "senha-display"),

		// Queue
		ServiceStartDelay:  getEnvAsDuration("SERVICE_START_DELAY", "3s"),
		AnnounceLockWindow: getEnvAsDuration("ANNOUNCE_LOCK_WINDOW", "2s"),
		BusPollInterval:    getEnvAsDuration("BUS_POLL_INTERVAL", "3s"),
		ArchiveInterval:    getEnvAsDuration("ARCHIVE_INTERVAL", "1m"),

		// Kiosk
		IssueRateLimit: getEnvAsInt("ISSUE_RATE_LIMIT", 30),

		// Settings
		AdminPINHash: getEnv("ADMIN_PIN_HASH", ""),

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
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
