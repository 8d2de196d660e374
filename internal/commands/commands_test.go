package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerline/teller/internal/audit"
	"github.com/tellerline/teller/internal/config"
	"github.com/tellerline/teller/internal/ledger"
)

const (
	customersCSV = "id,full_name,email,phone,address,created_at\n" +
		"c-1,Ana Lima,ana@example.com,555-0100,1 Main St,2023-04-05T10:00:00Z\n"
	accountsCSV = "account_number,customer_email,account_type,balance,status\n" +
		"ACC-001,ana@example.com,checking,1250.75,active\n"
)

func runTeller(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// project runs `teller init` in a temp dir, quiets the logger, and returns
// the directory and the flags that point later commands at it.
func project(t *testing.T) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	_, err := runTeller(t, "init", dir)
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, config.FileName)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Log.Level = "error"
	require.NoError(t, config.Save(cfgPath, cfg))

	return dir, []string{"--config", cfgPath, "--env-file", filepath.Join(dir, ".env")}
}

func TestVersion(t *testing.T) {
	out, err := runTeller(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev (commit: none")
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runTeller(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized teller at")

	for _, d := range []string{"import", filepath.Join("import", "processed"), "exports"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Len(t, cfg.Auth.JWTSecret, 64)
	assert.True(t, strings.HasPrefix(cfg.Database.DSN, filepath.Join(dir, "teller.db")))
	assert.NoError(t, cfg.Validate())

	info, err := os.Stat(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	gitignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), "teller.db")
}

func TestInit_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := runTeller(t, "init", dir)
	require.NoError(t, err)
	first, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)

	_, err = runTeller(t, "init", dir)
	assert.ErrorContains(t, err, "already exists")

	_, err = runTeller(t, "init", dir, "--force")
	require.NoError(t, err)
	second, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.NotEqual(t, first.Auth.JWTSecret, second.Auth.JWTSecret)
}

func TestMigrate(t *testing.T) {
	_, flags := project(t)
	out, err := runTeller(t, append([]string{"migrate"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite schema at version 1")

	// Running again is a no-op.
	_, err = runTeller(t, append([]string{"migrate"}, flags...)...)
	require.NoError(t, err)
}

func TestAdminCreate(t *testing.T) {
	_, flags := project(t)

	out, err := runTeller(t, append([]string{"admin", "create", "--email", "Ops@Bank.test", "--password", "long-enough"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Created admin ops@bank.test")

	_, err = runTeller(t, append([]string{"admin", "create", "--email", "ops@bank.test", "--password", "long-enough"}, flags...)...)
	assert.Error(t, err, "duplicate email")

	t.Setenv(EnvAdminPassword, "")
	_, err = runTeller(t, append([]string{"admin", "create", "--email", "x@bank.test"}, flags...)...)
	assert.ErrorContains(t, err, "--password")

	t.Setenv(EnvAdminPassword, "from-the-environment")
	_, err = runTeller(t, append([]string{"admin", "create", "--email", "env@bank.test"}, flags...)...)
	assert.NoError(t, err)
}

func TestImportVerifyAndExport(t *testing.T) {
	dir, flags := project(t)
	with := func(args ...string) []string { return append(args, flags...) }

	customers := filepath.Join(dir, "customers.csv")
	accounts := filepath.Join(dir, "accounts.csv")
	require.NoError(t, os.WriteFile(customers, []byte(customersCSV), 0o644))
	require.NoError(t, os.WriteFile(accounts, []byte(accountsCSV), 0o644))

	out, err := runTeller(t, with("import", "customers", customers)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "customers: 1 of 1 rows imported")

	out, err = runTeller(t, with("import", "accounts", accounts)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "accounts: 1 of 1 rows imported")

	// The same customers again all conflict.
	out, err = runTeller(t, with("import", "customers", customers)...)
	assert.ErrorContains(t, err, "1 rows failed")
	assert.Contains(t, out, "line 2:")

	out, err = runTeller(t, with("ledger", "verify")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "total: 0.00")

	legsPath := filepath.Join(dir, "exports", "journal.csv")
	_, err = runTeller(t, with("ledger", "export", "--out", legsPath)...)
	require.NoError(t, err)
	f, err := os.Open(legsPath)
	require.NoError(t, err)
	defer f.Close()
	legs, err := ledger.ReadLegs(f)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, "1250.75", legs[0].Debit.Add(legs[1].Debit).StringFixed(2))

	out, err = runTeller(t, with("audit", "export")...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, audit.Header))
	assert.Contains(t, out, "customer.import")
	assert.Contains(t, out, "account.import")

	auditPath := filepath.Join(dir, "exports", "audit.csv")
	for range 2 {
		_, err = runTeller(t, with("audit", "export", "--action", "account.import", "--out", auditPath, "--append")...)
		require.NoError(t, err)
	}
	entries, err := audit.ReadFile(auditPath)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestImportDir(t *testing.T) {
	dir, flags := project(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "accounts-2025.csv"), []byte(accountsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "customers-2025.csv"), []byte(customersCSV), 0o644))

	out, err := runTeller(t, append([]string{"import", "--dir", dir}, flags...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "customers: 1 of 1")
	assert.Contains(t, out, "accounts: 1 of 1")

	for _, name := range []string{"accounts-2025.csv", "customers-2025.csv"} {
		_, err := os.Stat(filepath.Join(dir, "import", "processed", name))
		assert.NoError(t, err, name)
	}
}

func TestArgumentErrors(t *testing.T) {
	_, flags := project(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"import needs two args", []string{"import", "customers"}, "accepts 2 arg(s)"},
		{"import dir takes no args", []string{"import", "--dir", ".", "customers"}, "unknown command"},
		{"unknown format", []string{"import", "loans", "x.csv"}, "unknown import format"},
		{"bad period", []string{"ledger", "export", "--period", "2025-13"}, "--period"},
		{"bad since", []string{"audit", "export", "--since", "last week"}, "--since"},
		{"append without out", []string{"audit", "export", "--append"}, "--append needs --out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runTeller(t, append(tt.args, flags...)...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestServe_RequiresSecret(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.FileName)
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(dir, "t.db")
	require.NoError(t, config.Save(cfgPath, cfg))
	t.Setenv(config.EnvJWTSecret, "")

	_, err := runTeller(t, "serve", "--config", cfgPath, "--env-file", filepath.Join(dir, ".env"))
	assert.ErrorContains(t, err, "auth.jwt_secret is required")
}
