// Package config loads flightfeed configuration from a JSON or YAML file,
// a .env file and environment variables, in that order of precedence
// (environment wins).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/skyroute/flightfeed/pkg/logger"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	OpenSky  OpenSkyConfig  `json:"opensky" yaml:"opensky"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Warmup   WarmupConfig   `json:"warmup" yaml:"warmup"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" yaml:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" yaml:"host"`

	ReadTimeoutSeconds  int `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`

	// StreamIntervalSeconds is how often /ws/flights pushes an update
	StreamIntervalSeconds int `json:"stream_interval_seconds" yaml:"stream_interval_seconds"`

	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// OpenSkyConfig contains upstream API settings. Client credentials are
// optional; without them every request is anonymous.
type OpenSkyConfig struct {
	BaseURL               string `json:"base_url" yaml:"base_url"`
	TokenURL              string `json:"token_url" yaml:"token_url"`
	ClientID              string `json:"client_id" yaml:"client_id"`
	ClientSecret          string `json:"client_secret" yaml:"client_secret"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// CacheConfig contains region cache settings.
type CacheConfig struct {
	MaxEntries              int `json:"max_entries" yaml:"max_entries"`
	AuthenticatedTTLSeconds int `json:"authenticated_ttl_seconds" yaml:"authenticated_ttl_seconds"`
	AnonymousTTLSeconds     int `json:"anonymous_ttl_seconds" yaml:"anonymous_ttl_seconds"`

	// KeyPrecision is the number of decimals region keys are rounded to
	KeyPrecision int `json:"key_precision" yaml:"key_precision"`
}

// DatabaseConfig contains directory database connection settings.
type DatabaseConfig struct {
	// Enabled turns on airline/aircraft/airport enrichment
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Driver is the database driver (postgres, sqlite3)
	Driver string `json:"driver" yaml:"driver"`

	// Host is the database server hostname
	Host string `json:"host" yaml:"host"`

	// Port is the database server port
	Port int `json:"port" yaml:"port"`

	// Database is the database name
	Database string `json:"database" yaml:"database"`

	// Username for database authentication
	Username string `json:"username" yaml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password" yaml:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" yaml:"ssl_mode"`

	// Path is the SQLite database file
	Path string `json:"path" yaml:"path"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns"`
}

// AuthConfig contains operator authentication settings.
type AuthConfig struct {
	JWTSecret          string `json:"jwt_secret" yaml:"jwt_secret"`
	TokenDurationHours int    `json:"token_duration_hours" yaml:"token_duration_hours"`
	AdminUsername      string `json:"admin_username" yaml:"admin_username"`

	// AdminPasswordHash is a bcrypt hash
	AdminPasswordHash string `json:"admin_password_hash" yaml:"admin_password_hash"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"` // "debug", "info", "warn", "error"
}

// WarmupConfig lists hot regions to keep fresh in the cache.
type WarmupConfig struct {
	Enabled         bool           `json:"enabled" yaml:"enabled"`
	IntervalSeconds int            `json:"interval_seconds" yaml:"interval_seconds"`
	Regions         []WarmupRegion `json:"regions" yaml:"regions"`
}

// WarmupRegion is a region the warmer polls.
type WarmupRegion struct {
	// Name is a friendly identifier for this region
	Name string `json:"name" yaml:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude" yaml:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude" yaml:"longitude"`

	// Radius in degrees
	Radius float64 `json:"radius" yaml:"radius"`

	// Enabled determines if this region should be warmed
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Load reads configuration from a JSON or YAML file (chosen by extension),
// then applies .env and environment overrides and validates the result.
// If the file doesn't exist, the defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := unmarshal(path, data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are not overwritten; a missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to a file, as YAML or JSON by extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                  "8080",
			Host:                  "0.0.0.0",
			ReadTimeoutSeconds:    15,
			WriteTimeoutSeconds:   15,
			StreamIntervalSeconds: 5,
		},
		OpenSky: OpenSkyConfig{
			BaseURL:               "https://opensky-network.org/api",
			TokenURL:              "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token",
			RequestTimeoutSeconds: 10,
		},
		Cache: CacheConfig{
			MaxEntries:              100,
			AuthenticatedTTLSeconds: 30,
			AnonymousTTLSeconds:     10,
			KeyPrecision:            1,
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Driver:       "sqlite3",
			Host:         "localhost",
			Port:         5432,
			Database:     "flightfeed",
			Username:     "flightfeed",
			SSLMode:      "disable",
			Path:         "flightfeed.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Auth: AuthConfig{
			TokenDurationHours: 12,
			AdminUsername:      "admin",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Warmup: WarmupConfig{
			Enabled:         false,
			IntervalSeconds: 30,
		},
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %q", c.Server.Port)
	}
	if c.Server.StreamIntervalSeconds < 1 {
		return errors.New("stream interval must be at least 1 second")
	}
	if c.OpenSky.BaseURL == "" {
		return errors.New("opensky base URL cannot be empty")
	}
	if (c.OpenSky.ClientID == "") != (c.OpenSky.ClientSecret == "") {
		return errors.New("opensky client_id and client_secret must be set together")
	}
	if c.OpenSky.RequestTimeoutSeconds < 1 {
		return errors.New("opensky request timeout must be at least 1 second")
	}
	if c.Cache.MaxEntries < 1 {
		return errors.New("cache max entries must be at least 1")
	}
	if c.Cache.AuthenticatedTTLSeconds < 1 || c.Cache.AnonymousTTLSeconds < 1 {
		return errors.New("cache TTLs must be at least 1 second")
	}
	if c.Cache.KeyPrecision < 0 || c.Cache.KeyPrecision > 6 {
		return errors.New("cache key precision must be between 0 and 6")
	}
	if c.Database.Enabled {
		switch c.Database.Driver {
		case "postgres":
		case "sqlite3":
			if c.Database.Path == "" {
				return errors.New("sqlite3 database path cannot be empty")
			}
		default:
			return fmt.Errorf("database driver must be 'postgres' or 'sqlite3', got %q", c.Database.Driver)
		}
	}
	if !logger.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("log level must be 'debug', 'info', 'warn' or 'error', got %q", c.Logging.Level)
	}
	for _, r := range c.Warmup.Regions {
		if r.Latitude < -90 || r.Latitude > 90 || r.Longitude < -180 || r.Longitude > 180 || r.Radius <= 0 {
			return fmt.Errorf("warm-up region %q is out of range", r.Name)
		}
	}
	return nil
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// StreamInterval returns the websocket push interval.
func (s ServerConfig) StreamInterval() time.Duration {
	return time.Duration(s.StreamIntervalSeconds) * time.Second
}

// RequestTimeout returns the upstream request timeout.
func (o OpenSkyConfig) RequestTimeout() time.Duration {
	return time.Duration(o.RequestTimeoutSeconds) * time.Second
}

// HasCredentials reports whether client credentials are configured.
func (o OpenSkyConfig) HasCredentials() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// AuthenticatedTTL returns the freshness window while a token is held.
func (c CacheConfig) AuthenticatedTTL() time.Duration {
	return time.Duration(c.AuthenticatedTTLSeconds) * time.Second
}

// AnonymousTTL returns the freshness window without a token.
func (c CacheConfig) AnonymousTTL() time.Duration {
	return time.Duration(c.AnonymousTTLSeconds) * time.Second
}

// TokenDuration returns the operator token lifetime.
func (a AuthConfig) TokenDuration() time.Duration {
	return time.Duration(a.TokenDurationHours) * time.Hour
}

// Interval returns the warm-up interval.
func (w WarmupConfig) Interval() time.Duration {
	return time.Duration(w.IntervalSeconds) * time.Second
}

// EnabledRegions returns the regions with Enabled set.
func (w WarmupConfig) EnabledRegions() []WarmupRegion {
	var out []WarmupRegion
	for _, r := range w.Regions {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows secrets to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&c.Server.Host, "FLIGHTFEED_HOST")
	setString(&c.Server.Port, "FLIGHTFEED_PORT")
	if origins := os.Getenv("FLIGHTFEED_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	setString(&c.OpenSky.BaseURL, "OPENSKY_BASE_URL")
	setString(&c.OpenSky.TokenURL, "OPENSKY_TOKEN_URL")
	setString(&c.OpenSky.ClientID, "OPENSKY_CLIENT_ID")
	setString(&c.OpenSky.ClientSecret, "OPENSKY_CLIENT_SECRET")

	if v := os.Getenv("FLIGHTFEED_DB_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Database.Enabled = b
		}
	}
	setString(&c.Database.Driver, "FLIGHTFEED_DB_DRIVER")
	setString(&c.Database.Host, "FLIGHTFEED_DB_HOST")
	setString(&c.Database.Password, "FLIGHTFEED_DB_PASSWORD")
	setString(&c.Database.Path, "FLIGHTFEED_DB_PATH")

	setString(&c.Auth.JWTSecret, "FLIGHTFEED_JWT_SECRET")
	setString(&c.Auth.AdminUsername, "FLIGHTFEED_ADMIN_USERNAME")
	setString(&c.Auth.AdminPasswordHash, "FLIGHTFEED_ADMIN_PASSWORD_HASH")

	setString(&c.Logging.Level, "FLIGHTFEED_LOG_LEVEL")
	c.Logging.Level = strings.ToLower(c.Logging.Level)
}
