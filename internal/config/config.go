package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	AI         AIConfig         `yaml:"ai"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Quota      QuotaConfig      `yaml:"quota"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxImportSize   int64         `yaml:"maxImportSize"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host           string        `yaml:"host"`
	Port           string        `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Name           string        `yaml:"name"`
	SSLMode        string        `yaml:"sslMode"`
	MaxOpenConns   int           `yaml:"maxOpenConns"`
	MaxIdleConns   int           `yaml:"maxIdleConns"`
	MaxLifetime    time.Duration `yaml:"maxLifetime"`
	MigrationsPath string        `yaml:"migrationsPath"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "pretty"
}

// StorageConfig points at the directory holding uploaded featured images.
type StorageConfig struct {
	ImageRoot string `yaml:"imageRoot"`
}

// AIConfig bounds calls to AI providers. Provider credentials live in the
// ai_settings table, not here.
type AIConfig struct {
	RewriteTimeout time.Duration `yaml:"rewriteTimeout"`
	TestTimeout    time.Duration `yaml:"testTimeout"`
}

// DispatcherConfig describes the external scraper and keyword rewrite services.
type DispatcherConfig struct {
	ScraperURL        string        `yaml:"scraperUrl"`
	KeywordServiceURL string        `yaml:"keywordServiceUrl"`
	CallbackURL       string        `yaml:"callbackUrl"`
	ScrapeTimeout     time.Duration `yaml:"scrapeTimeout"`
	DispatchTimeout   time.Duration `yaml:"dispatchTimeout"`
	RawConnectTimeout time.Duration `yaml:"rawConnectTimeout"`
	RawTotalTimeout   time.Duration `yaml:"rawTotalTimeout"`
	HealthTimeout     time.Duration `yaml:"healthTimeout"`
	HealthRetries     int           `yaml:"healthRetries"`
	HealthInterval    time.Duration `yaml:"healthInterval"`
	StartScriptUnix   string        `yaml:"startScriptUnix"`
	StartScriptWin    string        `yaml:"startScriptWindows"`
	ScraperCommand    string        `yaml:"scraperCommand"`
	ScraperScript     string        `yaml:"scraperScript"`
}

// JobsConfig controls the background keyword rewrite processor.
type JobsConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	MaxWorkers   int           `yaml:"maxWorkers"`
}

// QuotaConfig controls how "today" is computed for the daily rewrite quota.
type QuotaConfig struct {
	Timezone string `yaml:"timezone"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    150 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxImportSize:   50 * 1024 * 1024,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			User:           "postgres",
			Password:       "postgres",
			Name:           "magazine",
			SSLMode:        "disable",
			MaxOpenConns:   25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
			MigrationsPath: "./migrations",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			ImageRoot: "./storage/public",
		},
		AI: AIConfig{
			RewriteTimeout: 60 * time.Second,
			TestTimeout:    10 * time.Second,
		},
		Dispatcher: DispatcherConfig{
			ScraperURL:        "http://localhost:5000",
			KeywordServiceURL: "http://localhost:5001",
			CallbackURL:       "http://localhost:8080/v1/callbacks/keyword-rewrite",
			ScrapeTimeout:     5 * time.Second,
			DispatchTimeout:   30 * time.Second,
			RawConnectTimeout: 10 * time.Second,
			RawTotalTimeout:   60 * time.Second,
			HealthTimeout:     2 * time.Second,
			HealthRetries:     10,
			HealthInterval:    time.Second,
			StartScriptUnix:   "./scripts/start_service.sh",
			StartScriptWin:    "scripts\\start_service.bat",
			ScraperCommand:    "python3",
			ScraperScript:     "./scripts/facebook_scraper.py",
		},
		Jobs: JobsConfig{
			PollInterval: 2 * time.Second,
			MaxWorkers:   4,
		},
		Quota: QuotaConfig{
			Timezone: "UTC",
		},
	}
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.MaxImportSize = getInt64Env("MAX_IMPORT_SIZE", c.Server.MaxImportSize)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.MaxLifetime = getDurationEnv("DB_MAX_LIFETIME", c.Database.MaxLifetime)
	c.Database.MigrationsPath = getEnv("MIGRATIONS_PATH", c.Database.MigrationsPath)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Storage.ImageRoot = getEnv("IMAGE_ROOT", c.Storage.ImageRoot)

	c.AI.RewriteTimeout = getDurationEnv("AI_REWRITE_TIMEOUT", c.AI.RewriteTimeout)
	c.AI.TestTimeout = getDurationEnv("AI_TEST_TIMEOUT", c.AI.TestTimeout)

	d := &c.Dispatcher
	d.ScraperURL = getEnv("SCRAPER_API_URL", d.ScraperURL)
	d.KeywordServiceURL = getEnv("KEYWORD_SERVICE_URL", d.KeywordServiceURL)
	d.CallbackURL = getEnv("KEYWORD_CALLBACK_URL", d.CallbackURL)
	d.ScrapeTimeout = getDurationEnv("SCRAPE_TIMEOUT", d.ScrapeTimeout)
	d.DispatchTimeout = getDurationEnv("DISPATCH_TIMEOUT", d.DispatchTimeout)
	d.RawConnectTimeout = getDurationEnv("DISPATCH_RAW_CONNECT_TIMEOUT", d.RawConnectTimeout)
	d.RawTotalTimeout = getDurationEnv("DISPATCH_RAW_TOTAL_TIMEOUT", d.RawTotalTimeout)
	d.HealthTimeout = getDurationEnv("SERVICE_HEALTH_TIMEOUT", d.HealthTimeout)
	d.HealthRetries = getIntEnv("SERVICE_HEALTH_RETRIES", d.HealthRetries)
	d.HealthInterval = getDurationEnv("SERVICE_HEALTH_INTERVAL", d.HealthInterval)
	d.StartScriptUnix = getEnv("SERVICE_START_SCRIPT", d.StartScriptUnix)
	d.StartScriptWin = getEnv("SERVICE_START_SCRIPT_WINDOWS", d.StartScriptWin)
	d.ScraperCommand = getEnv("SCRAPER_COMMAND", d.ScraperCommand)
	d.ScraperScript = getEnv("SCRAPER_SCRIPT", d.ScraperScript)

	c.Jobs.PollInterval = getDurationEnv("JOB_POLL_INTERVAL", c.Jobs.PollInterval)
	c.Jobs.MaxWorkers = getIntEnv("JOB_MAX_WORKERS", c.Jobs.MaxWorkers)

	c.Quota.Timezone = getEnv("QUOTA_TIMEZONE", c.Quota.Timezone)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Dispatcher.HealthRetries < 1 {
		return fmt.Errorf("SERVICE_HEALTH_RETRIES must be at least 1")
	}
	if c.Jobs.MaxWorkers < 1 {
		return fmt.Errorf("JOB_MAX_WORKERS must be at least 1")
	}
	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		return fmt.Errorf("QUOTA_TIMEZONE %q is not a known timezone", c.Quota.Timezone)
	}
	if budget := c.SyncBudget(); c.Server.WriteTimeout <= budget {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%s) must exceed %s, the longest a request can wait on AI rewrites or keyword dispatch", c.Server.WriteTimeout, budget)
	}
	return nil
}

// SyncBudget is the longest a request can block on outbound calls. A keyword
// dispatch waits out the health check, then tries both HTTP tiers.
func (c *Config) SyncBudget() time.Duration {
	d := c.Dispatcher
	health := time.Duration(d.HealthRetries+1)*d.HealthTimeout + time.Duration(d.HealthRetries)*d.HealthInterval
	dispatch := health + d.DispatchTimeout + d.RawTotalTimeout
	if c.AI.RewriteTimeout > dispatch {
		return c.AI.RewriteTimeout
	}
	return dispatch
}

// Location resolves the quota timezone, falling back to UTC.
func (q QuotaConfig) Location() *time.Location {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
