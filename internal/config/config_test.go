package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name: "valid configuration",
			envVars: map[string]string{
				"DB_HOST":                 "test-host",
				"DB_PORT":                 "5433",
				"DB_NAME":                 "test_db",
				"DB_USER":                 "test_user",
				"DB_PASSWORD":             "test_password",
				"DB_SSL_MODE":             "require",
				"APIFY_API_KEY":           "apify_api_test",
				"APIFY_ACTOR_ID":          "test-actor",
				"APIFY_RATE_LIMIT":        "100",
				"APIFY_POLL_INTERVAL":     "2s",
				"APIFY_MAX_POLL_ATTEMPTS": "60",
				"ENCRYPTION_KEY":          "test-encryption-key",
				"LOG_LEVEL":               "debug",
				"ENVIRONMENT":             "staging",
				"HTTP_TIMEOUT":            "60s",
				"HTTP_RETRY_ATTEMPTS":     "5",
				"HTTP_RETRY_DELAY":        "2s",
				"SERVER_ADDR":             ":9090",
				"WORKER_POLL_INTERVAL":    "30s",
				"WORKER_CONCURRENCY":      "8",
			},
			want: &Config{
				Database: DatabaseConfig{
					Host:            "test-host",
					Port:            5433,
					Name:            "test_db",
					User:            "test_user",
					Password:        "test_password",
					SSLMode:         "require",
					ConnectTimeout:  30 * time.Second,
					MaxOpenConns:    25,
					MaxIdleConns:    5,
					ConnMaxLifetime: 5 * time.Minute,
				},
				Apify: ApifyConfig{
					APIKey:          "apify_api_test",
					ActorID:         "test-actor",
					BaseURL:         "https://api.apify.com/v2",
					RateLimit:       100,
					PollInterval:    2 * time.Second,
					MaxPollAttempts: 60,
				},
				Encryption: EncryptionConfig{
					Key: "test-encryption-key",
				},
				App: AppConfig{
					LogLevel:    "debug",
					Environment: "staging",
				},
				HTTP: HTTPConfig{
					Timeout:       60 * time.Second,
					RetryAttempts: 5,
					RetryDelay:    2 * time.Second,
				},
				Server: ServerConfig{
					Addr:            ":9090",
					ReadTimeout:     15 * time.Second,
					WriteTimeout:    30 * time.Second,
					ShutdownTimeout: 10 * time.Second,
				},
				Worker: WorkerConfig{
					PollInterval: 30 * time.Second,
					Concurrency:  8,
					CronSchedule: "",
				},
			},
			wantErr: false,
		},
		{
			name: "invalid DB_PORT",
			envVars: map[string]string{
				"DB_PORT": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid HTTP_TIMEOUT",
			envVars: map[string]string{
				"HTTP_TIMEOUT": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid APIFY_POLL_INTERVAL",
			envVars: map[string]string{
				"APIFY_POLL_INTERVAL": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid APIFY_MAX_POLL_ATTEMPTS",
			envVars: map[string]string{
				"APIFY_MAX_POLL_ATTEMPTS": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid WORKER_CONCURRENCY",
			envVars: map[string]string{
				"WORKER_CONCURRENCY": "invalid",
			},
			wantErr: true,
		},
		{
			name: "defaults when not provided",
			envVars: map[string]string{
				"DB_HOST":        "test-host",
				"DB_PASSWORD":    "test_password",
				"APIFY_API_KEY":  "apify_api_test",
				"APIFY_ACTOR_ID": "test-actor",
				"ENCRYPTION_KEY": "test-encryption-key",
			},
			want: &Config{
				Database: DatabaseConfig{
					Host:            "test-host",
					Port:            5432,
					Name:            "vindash",
					User:            "vindash",
					Password:        "test_password",
					SSLMode:         "disable",
					ConnectTimeout:  30 * time.Second,
					MaxOpenConns:    25,
					MaxIdleConns:    5,
					ConnMaxLifetime: 5 * time.Minute,
				},
				Apify: ApifyConfig{
					APIKey:          "apify_api_test",
					ActorID:         "test-actor",
					BaseURL:         "https://api.apify.com/v2",
					RateLimit:       55,
					PollInterval:    5 * time.Second,
					MaxPollAttempts: 120,
				},
				Encryption: EncryptionConfig{
					Key: "test-encryption-key",
				},
				App: AppConfig{
					LogLevel:    "info",
					Environment: "development",
				},
				HTTP: HTTPConfig{
					Timeout:       30 * time.Second,
					RetryAttempts: 3,
					RetryDelay:    time.Second,
				},
				Server: ServerConfig{
					Addr:            ":8080",
					ReadTimeout:     15 * time.Second,
					WriteTimeout:    30 * time.Second,
					ShutdownTimeout: 10 * time.Second,
				},
				Worker: WorkerConfig{
					PollInterval: 10 * time.Second,
					Concurrency:  4,
					CronSchedule: "",
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}
			defer func() {
				for key := range tt.envVars {
					os.Unsetenv(key)
				}
			}()

			got, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "vindash",
			User:            "vindash",
			Password:        "secret",
			SSLMode:         "disable",
			ConnectTimeout:  30 * time.Second,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Apify: ApifyConfig{
			APIKey:          "apify_api_test",
			ActorID:         "test-actor",
			BaseURL:         "https://api.apify.com/v2",
			RateLimit:       55,
			PollInterval:    5 * time.Second,
			MaxPollAttempts: 120,
		},
		Encryption: EncryptionConfig{Key: "test-encryption-key"},
		App: AppConfig{
			LogLevel:    "info",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			PollInterval: 10 * time.Second,
			Concurrency:  4,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid configuration",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing database password",
			mutate:  func(c *Config) { c.Database.Password = "" },
			wantErr: "DB_PASSWORD is required",
		},
		{
			name:    "invalid ssl mode",
			mutate:  func(c *Config) { c.Database.SSLMode = "sometimes" },
			wantErr: "DB_SSL_MODE must be one of",
		},
		{
			name:    "idle conns above open conns",
			mutate:  func(c *Config) { c.Database.MaxIdleConns = 50 },
			wantErr: "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS",
		},
		{
			name:    "missing apify api key",
			mutate:  func(c *Config) { c.Apify.APIKey = "" },
			wantErr: "APIFY_API_KEY is required",
		},
		{
			name:    "missing apify actor id",
			mutate:  func(c *Config) { c.Apify.ActorID = "" },
			wantErr: "APIFY_ACTOR_ID is required",
		},
		{
			name:    "missing encryption key",
			mutate:  func(c *Config) { c.Encryption.Key = "" },
			wantErr: "ENCRYPTION_KEY is required",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.App.LogLevel = "loud" },
			wantErr: "LOG_LEVEL must be one of",
		},
		{
			name:    "invalid environment",
			mutate:  func(c *Config) { c.App.Environment = "test" },
			wantErr: "ENVIRONMENT must be one of",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Apify.PollInterval = 0 },
			wantErr: "APIFY_POLL_INTERVAL must be greater than 0",
		},
		{
			name:    "zero worker concurrency",
			mutate:  func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr: "WORKER_CONCURRENCY must be between 1 and 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_GetDSN(t *testing.T) {
	cfg := validConfig()
	dsn := cfg.GetDSN()

	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=vindash")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "connect_timeout=30")
}
