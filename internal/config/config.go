package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the service.
type Config struct {
	HTTPPort               string
	EncryptionMasterKey    string
	SessionCleanupInterval time.Duration
	Database               DatabaseConfig
	Redis                  RedisConfig
	Provider               ProviderConfig
	Prompt                 PromptConfig
	RateLimit              RateLimitConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. An empty address disables
// Redis-backed rate limiting.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProviderConfig holds provider adapter settings
type ProviderConfig struct {
	RequestTimeout     time.Duration // timeout for generation calls
	HealthCheckTimeout time.Duration // timeout for health checks
	DefaultProvider    string        // backend used when the caller picks none
}

// PromptConfig bounds prompt input size
type PromptConfig struct {
	MinLength int
	MaxLength int
}

// RateLimitConfig holds per-user request limits
type RateLimitConfig struct {
	RequestsPerMinute int
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	masterKey := os.Getenv("ENCRYPTION_MASTER_KEY")
	if masterKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_MASTER_KEY is required")
	}

	cfg := &Config{
		HTTPPort:               getEnvString("HTTP_PORT", "8080"),
		EncryptionMasterKey:    masterKey,
		SessionCleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour),

		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			RequestTimeout:     getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 30*time.Second),
			HealthCheckTimeout: getEnvDuration("PROVIDER_HEALTH_CHECK_TIMEOUT", 5*time.Second),
			DefaultProvider:    getEnvString("DEFAULT_PROVIDER", "ollama"),
		},
		Prompt: PromptConfig{
			MinLength: getEnvInt("PROMPT_MIN_LENGTH", 10),
			MaxLength: getEnvInt("PROMPT_MAX_LENGTH", 5000),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
		},
	}

	return cfg, nil
}
