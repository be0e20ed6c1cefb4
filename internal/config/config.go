package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/hurou927/kin-subset/internal/cohort"
)

// ErrConfiguration marks invalid flags or config files. It is always fatal.
var ErrConfiguration = errors.New("configuration error")

// Config holds run defaults read from an optional YAML or TOML file.
// Command-line flags override every field.
type Config struct {
	MissingValue string      `yaml:"missing_value" toml:"missing_value"`
	ControlValue string      `yaml:"control_value" toml:"control_value"`
	Workers      int         `yaml:"workers" toml:"workers"`
	LogLevel     string      `yaml:"log_level" toml:"log_level"`
	LogFormat    string      `yaml:"log_format" toml:"log_format"`
	Report       string      `yaml:"report" toml:"report"`
	Database     *Connection `yaml:"database" toml:"database"`
}

// Connection holds database connection parameters.
type Connection struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Database string `yaml:"database" toml:"database"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"sslmode" toml:"sslmode"`
}

// DSN builds a PostgreSQL connection string.
func (c *Connection) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
	)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a config file. Files ending in .toml are parsed as TOML,
// anything else as YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file: %w", ErrConfiguration, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file: %w", ErrConfiguration, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file: %w", ErrConfiguration, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MissingValue == "" {
		c.MissingValue = cohort.DefaultMissing
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate checks run defaults. It is called again after flags are merged.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrConfiguration, c.Workers)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrConfiguration, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrConfiguration, c.LogFormat)
	}
	if c.MissingValue == "" {
		return fmt.Errorf("%w: missing value must not be empty", ErrConfiguration)
	}
	return nil
}

// Connection returns the database connection with empty fields filled from
// the environment. A config without a database section is built from the
// environment alone.
func (c *Config) Connection() (*Connection, error) {
	conn := Connection{}
	if c.Database != nil {
		conn = *c.Database
	}
	conn.applyEnv()
	if err := conn.validate(); err != nil {
		return nil, fmt.Errorf("%w: database: %w", ErrConfiguration, err)
	}
	return &conn, nil
}

// applyEnv fills in empty fields from environment variables.
// File values take precedence; env vars are used only as fallback.
func (conn *Connection) applyEnv() {
	if conn.Host == "" {
		conn.Host = envOr("PGHOST", "POSTGRES_HOST")
	}
	if conn.Port == 0 {
		if s := envOr("PGPORT", "POSTGRES_PORT"); s != "" {
			if p, err := strconv.Atoi(s); err == nil {
				conn.Port = p
			}
		}
	}
	if conn.Database == "" {
		conn.Database = envOr("PGDATABASE", "POSTGRES_DB")
	}
	if conn.User == "" {
		conn.User = envOr("PGUSER", "POSTGRES_USER")
	}
	if conn.Password == "" {
		conn.Password = envOr("PGPASSWORD", "POSTGRES_PASSWORD")
	}
	if conn.SSLMode == "" {
		conn.SSLMode = envOr("PGSSLMODE")
	}
}

// envOr returns the first non-empty value from the given env var names.
func envOr(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func (conn *Connection) validate() error {
	if conn.Host == "" {
		return fmt.Errorf("host is required")
	}
	if conn.Port == 0 {
		conn.Port = 5432
	}
	if conn.Database == "" {
		return fmt.Errorf("database is required")
	}
	if conn.User == "" {
		return fmt.Errorf("user is required")
	}
	if conn.SSLMode == "" {
		conn.SSLMode = "disable"
	}
	return nil
}

// Threshold returns the kinship-coefficient cutoff. Exactly one of pihat and
// kinship must be set; a PI_HAT value is halved.
func Threshold(pihat float64, pihatSet bool, kinship float64, kinshipSet bool) (float64, error) {
	var t float64
	switch {
	case pihatSet && kinshipSet:
		return 0, fmt.Errorf("%w: --pihat and --kinship_threshold are mutually exclusive", ErrConfiguration)
	case pihatSet:
		t = pihat / 2
	case kinshipSet:
		t = kinship
	default:
		return 0, fmt.Errorf("%w: one of --pihat or --kinship_threshold is required", ErrConfiguration)
	}

	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("%w: threshold must be a finite number", ErrConfiguration)
	}
	if t <= 0 {
		return 0, fmt.Errorf("%w: threshold must be positive, got %g", ErrConfiguration, t)
	}
	return t, nil
}
