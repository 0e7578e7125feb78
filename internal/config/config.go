package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
)

// Backends accepted by DATA_BACKEND.
var Backends = []string{"xlsx", "memory", "sheets", "sqlite"}

type Config struct {
	// HTTP Server
	Port     string `env:"PORT" envDefault:"8081"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend selection
	DataBackend string `env:"DATA_BACKEND" envDefault:"xlsx"`

	// Local files, relative names resolve under DataDir
	DataDir          string `env:"DATA_DIR" envDefault:"./data"`
	TransactionsFile string `env:"TRANSACTIONS_FILE" envDefault:"budget_data.xlsx"`
	CategoriesFile   string `env:"CATEGORIES_FILE" envDefault:"spravochnik.xlsx"`
	UsersFile        string `env:"USERS_FILE" envDefault:"users.json"`

	// Database
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/budget.db"`

	// AMQP, disabled when the URL is empty
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"budget"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"sync_transactions"`

	// Google Sheets
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleTransactionsSheet  string `env:"GOOGLE_TRANSACTIONS_SHEET" envDefault:"Бюджет"`
	GoogleCategoriesSheet    string `env:"GOOGLE_CATEGORIES_SHEET" envDefault:"Справочник"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// Built-in accounts created when no credential document exists
	BootstrapAdminPassword      string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
	BootstrapSupervisorPassword string `env:"BOOTSTRAP_SUPERVISOR_PASSWORD"`

	// Sessions and caching
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	CategoryCacheTTL time.Duration `env:"CATEGORY_CACHE_TTL" envDefault:"5m"`
	LoginRateLimit   int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Worker
	SyncBatchSize        int           `env:"SYNC_BATCH_SIZE" envDefault:"10"`
	SyncInterval         time.Duration `env:"SYNC_INTERVAL" envDefault:"30s"`
	CategorySyncInterval time.Duration `env:"CATEGORY_SYNC_INTERVAL" envDefault:"1h"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

func (c *Config) TransactionsPath() string { return c.resolve(c.TransactionsFile) }
func (c *Config) CategoriesPath() string   { return c.resolve(c.CategoriesFile) }
func (c *Config) UsersPath() string        { return c.resolve(c.UsersFile) }

// Validate validates the server configuration and returns every problem
// found in one error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if !isBackend(c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}

	switch c.DataBackend {
	case "xlsx":
		if c.TransactionsFile == "" {
			errors = append(errors, "TRANSACTIONS_FILE cannot be empty when using xlsx backend")
		}
		if c.CategoriesFile == "" {
			errors = append(errors, "CATEGORIES_FILE cannot be empty when using xlsx backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "sheets":
		errors = append(errors, c.googleErrors()...)
	}

	if c.UsersFile == "" {
		errors = append(errors, "USERS_FILE cannot be empty")
	}

	errors = append(errors, c.amqpErrors()...)

	if strings.TrimSpace(c.BootstrapAdminPassword) == "" {
		errors = append(errors, "BOOTSTRAP_ADMIN_PASSWORD is required")
	}
	if strings.TrimSpace(c.BootstrapSupervisorPassword) == "" {
		errors = append(errors, "BOOTSTRAP_SUPERVISOR_PASSWORD is required")
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.CategoryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid category cache TTL %v: must not be negative", c.CategoryCacheTTL))
	}
	if c.LoginRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid login rate limit %d: must be at least 1", c.LoginRateLimit))
	}
	if c.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout))
	}

	return combine(errors)
}

// ValidateWorker checks what the sync worker needs: the SQLite database,
// a broker and a spreadsheet to write to.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the sync worker")
	}
	errors = append(errors, c.amqpErrors()...)
	errors = append(errors, c.googleErrors()...)

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	if c.CategorySyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid category sync interval %v: must be at least 1 minute", c.CategorySyncInterval))
	}

	return combine(errors)
}

func (c *Config) amqpErrors() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errors
}

func (c *Config) googleErrors() []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required when using Google Sheets")
	}
	if c.GoogleTransactionsSheet == "" {
		errors = append(errors, "GOOGLE_TRANSACTIONS_SHEET cannot be empty")
	}
	hasJSON := c.GoogleServiceAccountJSON != ""
	hasFile := c.GoogleServiceAccountFile != ""
	if !hasJSON && !hasFile && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for Google Sheets")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return errors
}

func isBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

func combine(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
