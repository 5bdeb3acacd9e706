package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

type Config struct {
	// Database
	DBDriver         string
	DBHost           string
	DBPort           string
	DBUser           string
	DBPassword       string
	DBName           string
	DBSSLMode        string
	SQLitePath       string
	CollectionPrefix string

	// Change notifications
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Identity
	JWTSecret string
	JWTIssuer string

	// Application
	AppEnv   string
	AppPort  string
	LogLevel string

	// Rate Limiting
	RateLimitPerUser    int
	RateLimitWindowSecs int

	// Pairing
	InvitationTTLHours     int
	InvitationSweepMinutes int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		DBDriver:         getEnv("DB_DRIVER", DBDriverPostgres),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "journal"),
		DBPassword:       getEnv("DB_PASSWORD", ""),
		DBName:           getEnv("DB_NAME", "journal_db"),
		DBSSLMode:        getEnv("DB_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "journal.db"),
		CollectionPrefix: getEnv("COLLECTION_PREFIX", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET_KEY", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		AppEnv:   getEnv("APP_ENV", "development"),
		AppPort:  getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RateLimitPerUser:    getEnvInt("RATE_LIMIT_PER_USER", 30),
		RateLimitWindowSecs: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),

		InvitationTTLHours:     getEnvInt("INVITATION_TTL_HOURS", 7*24),
		InvitationSweepMinutes: getEnvInt("INVITATION_SWEEP_MINUTES", 15),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DBDriverPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case DBDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DBDriverPostgres, DBDriverSQLite, c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if c.InvitationTTLHours <= 0 {
		return fmt.Errorf("INVITATION_TTL_HOURS must be positive")
	}
	if c.InvitationSweepMinutes <= 0 {
		return fmt.Errorf("INVITATION_SWEEP_MINUTES must be positive")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.DBDriver != DBDriverPostgres {
		return fmt.Errorf("DB_DRIVER must be 'postgres' in production")
	}
	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.JWTSecret == "your_jwt_secret_minimum_32_chars_here_change_this" {
		return fmt.Errorf("JWT_SECRET_KEY must be changed from default in production")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must be set in production so instances share change notifications")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) GetInvitationTTL() time.Duration {
	return time.Duration(c.InvitationTTLHours) * time.Hour
}

func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.InvitationSweepMinutes) * time.Minute
}

func (c *Config) GetRateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSecs) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
