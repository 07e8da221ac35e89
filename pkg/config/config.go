package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else.
type Config struct {
	Env string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data feed
	Feed FeedConfig

	// Pipeline
	Pipeline PipelineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FeedConfig holds settlement-price feed configuration
type FeedConfig struct {
	BaseURL        string
	Symbol         string // reference symbol, e.g. LME_AL
	PriceType      string // daily series type, e.g. cash_settlement
	RatePerMinute  int    // polite request budget against the quote source
	RequestTimeout time.Duration
	SyncLookback   int // days re-fetched on every sync
}

// PipelineConfig holds daily-pipeline configuration
type PipelineConfig struct {
	Version       string // recorded on every run and part of the inputs hash
	ExportDir     string
	StalenessDays int    // settlement series older than this raises stale_market_data
	RunHour       int    // local hour the scheduled daily run fires
	Currency      string // reporting currency for snapshot rows
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Feed: FeedConfig{
			BaseURL:        getEnv("FEED_BASE_URL", "https://www.westmetall.com/en/markdaten.php"),
			Symbol:         getEnv("FEED_SYMBOL", "LME_AL"),
			PriceType:      getEnv("FEED_PRICE_TYPE", "cash_settlement"),
			RatePerMinute:  getEnvAsInt("FEED_RATE_PER_MINUTE", 10),
			RequestTimeout: getEnvAsDuration("FEED_REQUEST_TIMEOUT", "30s"),
			SyncLookback:   getEnvAsInt("FEED_SYNC_LOOKBACK_DAYS", 7),
		},

		Pipeline: PipelineConfig{
			Version:       getEnv("PIPELINE_VERSION", "v1"),
			ExportDir:     getEnv("PIPELINE_EXPORT_DIR", "exports"),
			StalenessDays: getEnvAsInt("PIPELINE_STALENESS_DAYS", 3),
			RunHour:       getEnvAsInt("PIPELINE_RUN_HOUR", 7),
			Currency:      getEnv("PIPELINE_CURRENCY", "USD"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.Version == "" {
		return fmt.Errorf("PIPELINE_VERSION must not be empty")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
