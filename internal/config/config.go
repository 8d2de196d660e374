package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileName is the config file written by `teller init`.
const FileName = "teller.yaml"

// Config represents the top-level teller.yaml configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Limits    LimitsConfig    `yaml:"limits"`
	Retry     RetryConfig     `yaml:"retry"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the backing database.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"` // "sqlite" or "postgres"
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// AuthConfig controls session tokens.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret,omitempty"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// LimitsConfig holds the money-movement limits. All amounts are in Currency.
type LimitsConfig struct {
	Currency           string          `yaml:"currency"`
	MaxTransfer        decimal.Decimal `yaml:"max_transfer"`
	DailyTransfer      decimal.Decimal `yaml:"daily_transfer"`
	MaxOpeningDeposit  decimal.Decimal `yaml:"max_opening_deposit"`
	MaxLoan            decimal.Decimal `yaml:"max_loan"`
	DefaultLoanRate    decimal.Decimal `yaml:"default_loan_rate"` // annual percent
	DefaultCreditLimit decimal.Decimal `yaml:"default_credit_limit"`
}

// RetryConfig controls how write conflicts are retried.
type RetryConfig struct {
	Attempts uint          `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// CORSConfig lists the portal origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RateLimitConfig is the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Environment overrides.
const (
	EnvDatabaseDriver = "TELLER_DATABASE_DRIVER"
	EnvDatabaseDSN    = "TELLER_DATABASE_DSN"
	EnvJWTSecret      = "TELLER_JWT_SECRET"
	EnvListenAddr     = "TELLER_LISTEN_ADDR"
	EnvLogLevel       = "TELLER_LOG_LEVEL"
)

// Load reads a teller.yaml file from disk. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from TELLER_* variables using lookup
// (normally os.LookupEnv).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabaseDriver); ok && v != "" {
		c.Database.Driver = v
	}
	if v, ok := lookup(EnvDatabaseDSN); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := lookup(EnvJWTSecret); ok && v != "" {
		c.Auth.JWTSecret = v
	}
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		c.Server.ListenAddr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate reports every setting that would stop the server from starting.
func (c *Config) Validate() error { return c.validate(true) }

// ValidateOffline is Validate without the settings only the API server
// needs, for maintenance commands that never issue tokens.
func (c *Config) ValidateOffline() error { return c.validate(false) }

func (c *Config) validate(server bool) error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if server && c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("auth.jwt_secret is required (or set %s)", EnvJWTSecret))
	}
	if len(strings.TrimSpace(c.Limits.Currency)) != 3 {
		errs = append(errs, fmt.Errorf("limits.currency must be a 3-letter code, got %q", c.Limits.Currency))
	}
	for name, v := range map[string]decimal.Decimal{
		"limits.max_transfer":        c.Limits.MaxTransfer,
		"limits.daily_transfer":      c.Limits.DailyTransfer,
		"limits.max_opening_deposit": c.Limits.MaxOpeningDeposit,
		"limits.max_loan":            c.Limits.MaxLoan,
	} {
		if !v.IsPositive() {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Limits.DefaultLoanRate.IsNegative() {
		errs = append(errs, errors.New("limits.default_loan_rate must not be negative"))
	}
	if c.Retry.Attempts == 0 {
		errs = append(errs, errors.New("retry.attempts must be at least 1"))
	}
	return errors.Join(errs...)
}

// Default returns a Config with sensible defaults for a new deployment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "teller.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
			AutoMigrate: true,
		},
		Auth: AuthConfig{
			Issuer:   "teller",
			TokenTTL: time.Hour,
		},
		Limits: LimitsConfig{
			Currency:           "USD",
			MaxTransfer:        decimal.NewFromInt(10000),
			DailyTransfer:      decimal.NewFromInt(25000),
			MaxOpeningDeposit:  decimal.NewFromInt(100000),
			MaxLoan:            decimal.NewFromInt(500000),
			DefaultLoanRate:    decimal.RequireFromString("7.5"),
			DefaultCreditLimit: decimal.NewFromInt(1000),
		},
		Retry: RetryConfig{
			Attempts: 5,
			Delay:    10 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
	}
}
