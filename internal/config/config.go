// Package config provides centralized configuration management for flatload.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/flatload/internal/flatfile"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Load     LoadConfig
	Parser   ParserConfig
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

	// WriteTimeout is the maximum duration for writing a response (default: 0, no limit for long loads)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings. The URL is only needed
// by commands that talk to PostgreSQL; see RequireDatabase.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns int `env:"DB_MAX_CONNS" default:"10"`
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoadConfig holds settings for loading parsed rows into PostgreSQL.
type LoadConfig struct {
	// Schema receives the load tables (default: public)
	Schema string `env:"LOAD_SCHEMA" default:"public"`

	// MaxConcurrent is the maximum number of parallel loads (default: 4)
	MaxConcurrent int `env:"LOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a load slot (default: 30s)
	MaxWaitTime time.Duration `env:"LOAD_MAX_WAIT_TIME" default:"30s"`

	// BatchSize is the number of rows between progress reports and per
	// Parquet record batch (default: 1000)
	BatchSize int `env:"LOAD_BATCH_SIZE" default:"1000"`

	// Timeout is the maximum duration for a single load (default: 10m)
	Timeout time.Duration `env:"LOAD_TIMEOUT" default:"10m"`

	// MaxBodySize caps uploaded request bodies in bytes (default: 100MB)
	MaxBodySize int64 `env:"LOAD_MAX_BODY_SIZE" default:"104857600"`
}

// ParserConfig holds the default parser grammar used when a command or
// request does not override it.
type ParserConfig struct {
	// Delimiter separates columns (default: ",")
	Delimiter string `env:"PARSER_DELIMITER" default:","`

	// Qualifier quotes fields; "none" disables quoting (default: ")
	Qualifier string `env:"PARSER_QUALIFIER" default:"\""`

	Escape  string `env:"PARSER_ESCAPE"`
	Comment string `env:"PARSER_COMMENT"`

	// Widths switches to fixed-width parsing, e.g. "3,5,10"
	Widths []int `env:"PARSER_WIDTHS"`

	BufferSize      int  `env:"PARSER_BUFFER_SIZE" default:"65536"`
	Header          bool `env:"PARSER_HEADER" default:"true"`
	Trim            bool `env:"PARSER_TRIM" default:"false"`
	StripControl    bool `env:"PARSER_STRIP_CONTROL" default:"false"`
	SkipEmptyRows   bool `env:"PARSER_SKIP_EMPTY_ROWS" default:"true"`
	ExpectedColumns int  `env:"PARSER_EXPECTED_COLUMNS" default:"0"`

	// Encoding is the default text encoding label (default: UTF-8)
	Encoding string `env:"PARSER_ENCODING"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Flatfile converts the parser defaults into a flatfile configuration.
func (c *ParserConfig) Flatfile() (flatfile.Config, error) {
	qualifier := c.Qualifier
	if strings.EqualFold(qualifier, "none") {
		qualifier = ""
	}

	b := flatfile.NewBuilder().
		TextQualifier(qualifier).
		EscapeCharacter(c.Escape).
		CommentLeader(c.Comment).
		BufferSize(c.BufferSize).
		FirstRowHasHeader(c.Header).
		TrimResults(c.Trim).
		StripControlChars(c.StripControl).
		SkipEmptyRows(c.SkipEmptyRows)

	if len(c.Widths) > 0 {
		b.ColumnWidths(c.Widths...)
	} else {
		b.ColumnDelimiter(c.Delimiter)
	}
	if c.ExpectedColumns > 0 {
		b.ExpectedColumnCount(c.ExpectedColumns)
	}
	return b.Build()
}
