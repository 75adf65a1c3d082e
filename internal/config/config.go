// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/persons/internal/core"
	"github.com/JonMunkholm/persons/internal/logging"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Transfer TransferConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxUploadSize is the largest accepted import upload in bytes (default: 1GB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"1073741824"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL selects the store: postgres://... or sqlite://path/to/file.db (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// TransferConfig holds import/export pipeline settings.
type TransferConfig struct {
	// BatchSize is the number of records per bulk write (default: 1000)
	BatchSize int `env:"TRANSFER_BATCH_SIZE" default:"1000"`

	// PageRowLimit is the maximum data rows per spreadsheet file (default: 1000000)
	PageRowLimit int64 `env:"TRANSFER_PAGE_ROW_LIMIT" default:"1000000"`

	// TabularProgressEvery is the spreadsheet export progress cadence (default: 1000)
	TabularProgressEvery int64 `env:"TRANSFER_TABULAR_PROGRESS_EVERY" default:"1000"`

	// MarkupProgressEvery is the XML export progress cadence (default: 500)
	MarkupProgressEvery int64 `env:"TRANSFER_MARKUP_PROGRESS_EVERY" default:"500"`

	// PreviewLimit is how many records a preview returns (default: 1000)
	PreviewLimit int `env:"TRANSFER_PREVIEW_LIMIT" default:"1000"`

	// Timeout bounds a single operation; 0 disables it (default: 0)
	Timeout time.Duration `env:"TRANSFER_TIMEOUT" default:"0s"`

	// ResultRetention is how long finished operations stay queryable (default: 5m)
	ResultRetention time.Duration `env:"TRANSFER_RESULT_RETENTION" default:"5m"`

	// ExportDir is where the server writes export files (default: exports)
	ExportDir string `env:"TRANSFER_EXPORT_DIR" default:"exports"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects API requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// RateLimit is requests per minute per client IP; 0 disables it (default: 100)
	RateLimit int `env:"RATE_LIMIT_PER_MINUTE" default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File additionally writes logs to a rotating file when set
	File string `env:"LOG_FILE"`

	// MaxSizeMB is the size at which the log file rotates (default: 100)
	MaxSizeMB int `env:"LOG_MAX_SIZE_MB" default:"100"`

	// MaxBackups is how many rotated files to keep (default: 5)
	MaxBackups int `env:"LOG_MAX_BACKUPS" default:"5"`

	// MaxAgeDays is how long rotated files are kept (default: 30)
	MaxAgeDays int `env:"LOG_MAX_AGE_DAYS" default:"30"`

	// Compress gzips rotated files (default: true)
	Compress bool `env:"LOG_COMPRESS" default:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// ServiceConfig converts the transfer settings for core.NewService.
func (c *TransferConfig) ServiceConfig() core.ServiceConfig {
	return core.ServiceConfig{
		BatchSize:            c.BatchSize,
		PageSize:             c.PageRowLimit,
		TabularProgressEvery: c.TabularProgressEvery,
		MarkupProgressEvery:  c.MarkupProgressEvery,
		PreviewLimit:         c.PreviewLimit,
		Timeout:              c.Timeout,
		ResultRetention:      c.ResultRetention,
	}
}

// Rotation returns the log file settings, or nil when file logging is off.
func (c *LoggingConfig) Rotation() *logging.Rotation {
	if c.File == "" {
		return nil
	}
	return &logging.Rotation{
		Filename:   c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}
