package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = "s3cret"
	cfg.Limits.MaxTransfer = decimal.RequireFromString("2500.50")
	cfg.CORS.AllowedOrigins = []string{"https://portal.example.com", "https://admin.example.com"}

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Server.ListenAddr, got.Server.ListenAddr)
	assert.Equal(t, cfg.Server.ReadTimeout, got.Server.ReadTimeout)
	assert.Equal(t, cfg.Database.Driver, got.Database.Driver)
	assert.Equal(t, cfg.Database.DSN, got.Database.DSN)
	assert.Equal(t, "s3cret", got.Auth.JWTSecret)
	assert.Equal(t, time.Hour, got.Auth.TokenTTL)
	assert.True(t, got.Limits.MaxTransfer.Equal(decimal.RequireFromString("2500.50")))
	assert.True(t, got.Limits.DefaultLoanRate.Equal(decimal.RequireFromString("7.5")))
	assert.Equal(t, uint(5), got.Retry.Attempts)
	assert.Equal(t, cfg.CORS.AllowedOrigins, got.CORS.AllowedOrigins)
	assert.InDelta(t, 10, got.RateLimit.RequestsPerSecond, 0.001)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "USD", cfg.Limits.Currency)
	assert.Equal(t, "10000", cfg.Limits.MaxTransfer.String())
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen_addr: \":9090\"\nlimits:\n  max_transfer: \"500\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "500", cfg.Limits.MaxTransfer.String())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "USD", cfg.Limits.Currency)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "driver: sqlite")
	assert.Contains(t, contents, "token_ttl: 1h0m0s")
	assert.NotContains(t, contents, "jwt_secret")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvDatabaseDriver: "postgres",
		EnvDatabaseDSN:    "postgres://teller@localhost/teller?sslmode=disable",
		EnvJWTSecret:      "from-env",
		EnvListenAddr:     ":7000",
		EnvLogLevel:       "debug",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, env[EnvDatabaseDSN], cfg.Database.DSN)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TELLER_TEST_ONLY_VALUE=hello\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TELLER_TEST_ONLY_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "hello", os.Getenv("TELLER_TEST_ONLY_VALUE"))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret is required")

	cfg.Auth.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	cfg.Limits.MaxTransfer = decimal.Zero
	cfg.Retry.Attempts = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
	assert.Contains(t, err.Error(), "limits.max_transfer must be positive")
	assert.Contains(t, err.Error(), "retry.attempts")
}

func TestValidateOffline(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.ValidateOffline(), "maintenance commands run without a JWT secret")

	cfg.Database.DSN = ""
	assert.ErrorContains(t, cfg.ValidateOffline(), "database.dsn is required")
}
