package config

import (
	"testing"
	"time"
)

const testSecret = "this_is_a_test_secret_key_with_32_chars_minimum"

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_PASSWORD", "test_password")
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("COLLECTION_PREFIX", "staging_")
	t.Setenv("INVITATION_TTL_HOURS", "")
	t.Setenv("DB_DRIVER", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.DBDriver != DBDriverPostgres {
		t.Errorf("DBDriver = %q, want %q", cfg.DBDriver, DBDriverPostgres)
	}
	if cfg.DBPassword != "test_password" {
		t.Errorf("DBPassword = %q, want %q", cfg.DBPassword, "test_password")
	}
	if cfg.CollectionPrefix != "staging_" {
		t.Errorf("CollectionPrefix = %q, want %q", cfg.CollectionPrefix, "staging_")
	}
	if cfg.GetInvitationTTL() != 7*24*time.Hour {
		t.Errorf("GetInvitationTTL() = %v, want 168h", cfg.GetInvitationTTL())
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name: "Missing DB_PASSWORD",
			envVars: map[string]string{
				"DB_DRIVER":      "",
				"DB_PASSWORD":    "",
				"JWT_SECRET_KEY": testSecret,
			},
		},
		{
			name: "Missing JWT_SECRET_KEY",
			envVars: map[string]string{
				"DB_DRIVER":      "",
				"DB_PASSWORD":    "password",
				"JWT_SECRET_KEY": "",
			},
		},
		{
			name: "Unknown DB_DRIVER",
			envVars: map[string]string{
				"DB_DRIVER":      "mysql",
				"DB_PASSWORD":    "password",
				"JWT_SECRET_KEY": testSecret,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			if err == nil {
				t.Error("LoadConfig() expected error for missing required field, got nil")
			}
		})
	}
}

func TestValidate_SQLiteNeedsNoPassword(t *testing.T) {
	cfg := &Config{
		DBDriver:               DBDriverSQLite,
		SQLitePath:             "journal.db",
		JWTSecret:              testSecret,
		InvitationTTLHours:     168,
		InvitationSweepMinutes: 15,
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error = %v", err)
	}
}

func TestValidate_JWTSecretTooShort(t *testing.T) {
	cfg := &Config{
		DBDriver:               DBDriverPostgres,
		DBPassword:             "password",
		JWTSecret:              "short",
		InvitationTTLHours:     168,
		InvitationSweepMinutes: 15,
	}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for short JWT secret, got nil")
	}
}

func TestValidateProductionSecurity(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		shouldErr bool
	}{
		{
			name: "Valid production config",
			cfg: &Config{
				AppEnv:    "production",
				DBDriver:  DBDriverPostgres,
				DBSSLMode: "require",
				JWTSecret: "production_secret_key_different_from_default",
				RedisAddr: "redis:6379",
			},
			shouldErr: false,
		},
		{
			name: "Development mode - no validation",
			cfg: &Config{
				AppEnv:    "development",
				DBDriver:  DBDriverSQLite,
				DBSSLMode: "disable",
			},
			shouldErr: false,
		},
		{
			name: "Production on sqlite",
			cfg: &Config{
				AppEnv:    "production",
				DBDriver:  DBDriverSQLite,
				DBSSLMode: "require",
				JWTSecret: "production_secret_key_different_from_default",
				RedisAddr: "redis:6379",
			},
			shouldErr: true,
		},
		{
			name: "Production without SSL",
			cfg: &Config{
				AppEnv:    "production",
				DBDriver:  DBDriverPostgres,
				DBSSLMode: "disable",
				JWTSecret: "production_secret_key_different_from_default",
				RedisAddr: "redis:6379",
			},
			shouldErr: true,
		},
		{
			name: "Production without redis",
			cfg: &Config{
				AppEnv:    "production",
				DBDriver:  DBDriverPostgres,
				DBSSLMode: "require",
				JWTSecret: "production_secret_key_different_from_default",
			},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateProductionSecurity()
			if tt.shouldErr && err == nil {
				t.Error("ValidateProductionSecurity() expected error, got nil")
			}
			if !tt.shouldErr && err != nil {
				t.Errorf("ValidateProductionSecurity() unexpected error = %v", err)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "testuser",
		DBPassword: "testpass",
		DBName:     "testdb",
		DBSSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if dsn := cfg.GetDSN(); dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
}
