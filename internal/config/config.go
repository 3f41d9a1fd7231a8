package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	Database   DatabaseConfig
	Apify      ApifyConfig
	Encryption EncryptionConfig
	App        AppConfig
	HTTP       HTTPConfig
	Server     ServerConfig
	Worker     WorkerConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	ConnectTimeout  time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ApifyConfig holds Apify API configuration
type ApifyConfig struct {
	APIKey          string
	ActorID         string
	BaseURL         string
	RateLimit       int
	PollInterval    time.Duration
	MaxPollAttempts int
}

// EncryptionConfig holds credential encryption configuration
type EncryptionConfig struct {
	Key string
}

// AppConfig holds application configuration
type AppConfig struct {
	LogLevel    string
	Environment string
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// WorkerConfig holds submission worker configuration
type WorkerConfig struct {
	PollInterval time.Duration
	Concurrency  int
	CronSchedule string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpenConns, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdleConns, err := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	connectTimeout, err := time.ParseDuration(getEnv("DB_CONNECT_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONNECT_TIMEOUT: %w", err)
	}

	connMaxLifetime, err := time.ParseDuration(getEnv("DB_CONN_MAX_LIFETIME", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		Name:            getEnv("DB_NAME", "vindash"),
		User:            getEnv("DB_USER", "vindash"),
		Password:        getEnv("DB_PASSWORD", ""),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		ConnectTimeout:  connectTimeout,
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
	}

	// Apify configuration
	apifyRateLimit, err := strconv.Atoi(getEnv("APIFY_RATE_LIMIT", "55"))
	if err != nil {
		return nil, fmt.Errorf("invalid APIFY_RATE_LIMIT: %w", err)
	}

	pollInterval, err := time.ParseDuration(getEnv("APIFY_POLL_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid APIFY_POLL_INTERVAL: %w", err)
	}

	maxPollAttempts, err := strconv.Atoi(getEnv("APIFY_MAX_POLL_ATTEMPTS", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid APIFY_MAX_POLL_ATTEMPTS: %w", err)
	}

	config.Apify = ApifyConfig{
		APIKey:          getEnv("APIFY_API_KEY", ""),
		ActorID:         getEnv("APIFY_ACTOR_ID", ""),
		BaseURL:         getEnv("APIFY_BASE_URL", "https://api.apify.com/v2"),
		RateLimit:       apifyRateLimit,
		PollInterval:    pollInterval,
		MaxPollAttempts: maxPollAttempts,
	}

	// Encryption configuration
	config.Encryption = EncryptionConfig{
		Key: getEnv("ENCRYPTION_KEY", ""),
	}

	// Application configuration
	config.App = AppConfig{
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	// HTTP configuration
	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	retryDelay, err := time.ParseDuration(getEnv("HTTP_RETRY_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_RETRY_DELAY: %w", err)
	}

	retryAttempts, err := strconv.Atoi(getEnv("HTTP_RETRY_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_RETRY_ATTEMPTS: %w", err)
	}

	config.HTTP = HTTPConfig{
		Timeout:       timeout,
		RetryAttempts: retryAttempts,
		RetryDelay:    retryDelay,
	}

	// Server configuration
	readTimeout, err := time.ParseDuration(getEnv("SERVER_READ_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := time.ParseDuration(getEnv("SERVER_WRITE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := time.ParseDuration(getEnv("SERVER_SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT: %w", err)
	}

	config.Server = ServerConfig{
		Addr:            getEnv("SERVER_ADDR", ":8080"),
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		ShutdownTimeout: shutdownTimeout,
	}

	// Worker configuration
	workerPollInterval, err := time.ParseDuration(getEnv("WORKER_POLL_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_POLL_INTERVAL: %w", err)
	}

	workerConcurrency, err := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	config.Worker = WorkerConfig{
		PollInterval: workerPollInterval,
		Concurrency:  workerConcurrency,
		CronSchedule: getEnv("WORKER_CRON_SCHEDULE", ""),
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateDatabase(); err != nil {
		errors = append(errors, fmt.Sprintf("database: %v", err))
	}

	if err := c.validateApify(); err != nil {
		errors = append(errors, fmt.Sprintf("apify: %v", err))
	}

	if err := c.validateEncryption(); err != nil {
		errors = append(errors, fmt.Sprintf("encryption: %v", err))
	}

	if err := c.validateApp(); err != nil {
		errors = append(errors, fmt.Sprintf("application: %v", err))
	}

	if err := c.validateHTTP(); err != nil {
		errors = append(errors, fmt.Sprintf("HTTP: %v", err))
	}

	if err := c.validateWorker(); err != nil {
		errors = append(errors, fmt.Sprintf("worker: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// validateDatabase validates database configuration
func (c *Config) validateDatabase() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	validSSLMode := false
	for _, mode := range validSSLModes {
		if c.Database.SSLMode == mode {
			validSSLMode = true
			break
		}
	}
	if !validSSLMode {
		return fmt.Errorf("DB_SSL_MODE must be one of: %s", strings.Join(validSSLModes, ", "))
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be greater than 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("DB_MAX_IDLE_CONNS must be greater than 0")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}
	if c.Database.ConnMaxLifetime <= 0 {
		return fmt.Errorf("DB_CONN_MAX_LIFETIME must be greater than 0")
	}
	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("DB_CONNECT_TIMEOUT must be greater than 0")
	}

	return nil
}

// validateApify validates Apify configuration
func (c *Config) validateApify() error {
	if c.Apify.APIKey == "" {
		return fmt.Errorf("APIFY_API_KEY is required")
	}
	if c.Apify.ActorID == "" {
		return fmt.Errorf("APIFY_ACTOR_ID is required")
	}
	if c.Apify.BaseURL == "" {
		return fmt.Errorf("APIFY_BASE_URL is required")
	}
	if c.Apify.RateLimit <= 0 || c.Apify.RateLimit > 600 {
		return fmt.Errorf("APIFY_RATE_LIMIT must be between 1 and 600")
	}
	if c.Apify.PollInterval <= 0 {
		return fmt.Errorf("APIFY_POLL_INTERVAL must be greater than 0")
	}
	if c.Apify.MaxPollAttempts <= 0 {
		return fmt.Errorf("APIFY_MAX_POLL_ATTEMPTS must be greater than 0")
	}

	return nil
}

// validateEncryption validates encryption configuration
func (c *Config) validateEncryption() error {
	if c.Encryption.Key == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}

	return nil
}

// validateApp validates application configuration
func (c *Config) validateApp() error {
	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	validLogLevel := false
	for _, level := range validLogLevels {
		if c.App.LogLevel == level {
			validLogLevel = true
			break
		}
	}
	if !validLogLevel {
		return fmt.Errorf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", "))
	}

	validEnvironments := []string{"development", "staging", "production"}
	validEnvironment := false
	for _, env := range validEnvironments {
		if c.App.Environment == env {
			validEnvironment = true
			break
		}
	}
	if !validEnvironment {
		return fmt.Errorf("ENVIRONMENT must be one of: %s", strings.Join(validEnvironments, ", "))
	}

	return nil
}

// validateHTTP validates HTTP configuration
func (c *Config) validateHTTP() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be greater than 0")
	}
	if c.HTTP.RetryAttempts < 0 || c.HTTP.RetryAttempts > 10 {
		return fmt.Errorf("HTTP_RETRY_ATTEMPTS must be between 0 and 10")
	}
	if c.HTTP.RetryDelay <= 0 {
		return fmt.Errorf("HTTP_RETRY_DELAY must be greater than 0")
	}

	return nil
}

// validateWorker validates worker configuration
func (c *Config) validateWorker() error {
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be greater than 0")
	}
	if c.Worker.Concurrency <= 0 || c.Worker.Concurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100")
	}

	return nil
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		c.Database.Host, c.Database.Port, c.Database.Name, c.Database.User, c.Database.Password,
		c.Database.SSLMode, int(c.Database.ConnectTimeout.Seconds()))
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
