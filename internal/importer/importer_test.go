package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tellerline/teller/internal/auth"
	"github.com/tellerline/teller/internal/bank"
	"github.com/tellerline/teller/internal/config"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/store"
)

const customersCSV = `id,full_name,email,phone,address,created_at
c-1,Ana Lima,ana@example.com,555-0100,1 Main St,2023-04-05T10:00:00Z
c-2,Ben Ode,ben@example.com,,,2023-06-01 08:30:00
c-3,,nobody@example.com,,,
`

const accountsCSV = `account_number,customer_email,account_type,balance,status
ACC-001,ana@example.com,Checking,1250.75,active
ACC-002,ben@example.com,savings,0,frozen
ACC-003,ana@example.com,checking,abc,active
ACC-004,zed@example.com,checking,10.00,active
`

type fakeLoader struct {
	customers []model.Customer
	accounts  []bank.ImportAccountInput
	fail      map[string]error
}

func (f *fakeLoader) ImportCustomer(_ context.Context, _ bank.Actor, c model.Customer) (model.Customer, error) {
	if err := f.fail[c.Email]; err != nil {
		return model.Customer{}, err
	}
	f.customers = append(f.customers, c)
	return c, nil
}

func (f *fakeLoader) ImportAccount(_ context.Context, _ bank.Actor, in bank.ImportAccountInput) (model.Account, error) {
	if err := f.fail[in.CustomerEmail]; err != nil {
		return model.Account{}, err
	}
	f.accounts = append(f.accounts, in)
	return model.Account{}, nil
}

func TestCustomersParser_Parse(t *testing.T) {
	rows, err := (&CustomersParser{}).Parse(strings.NewReader(customersCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NotNil(t, rows[0].Customer)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "c-1", rows[0].Customer.ID)
	assert.Equal(t, "Ana Lima", rows[0].Customer.FullName)
	assert.Equal(t, "555-0100", rows[0].Customer.Phone)
	assert.Equal(t, time.Date(2023, 4, 5, 10, 0, 0, 0, time.UTC), rows[0].Customer.CreatedAt)

	require.NotNil(t, rows[1].Customer)
	assert.Equal(t, 2023, rows[1].Customer.CreatedAt.Year())
	assert.Empty(t, rows[1].Customer.Phone)

	// Missing names are rejected by the bank service, not the parser.
	require.NotNil(t, rows[2].Customer)
	assert.True(t, rows[2].Customer.CreatedAt.IsZero())
}

func TestCustomersParser_BadDate(t *testing.T) {
	csv := "id,full_name,email,phone,address,created_at\nc-1,Ana,ana@example.com,,,NOTADATE\n"
	rows, err := (&CustomersParser{}).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Error(t, rows[0].Err)
	assert.Contains(t, rows[0].Err.Error(), "created_at")
}

func TestAccountsParser_Parse(t *testing.T) {
	rows, err := (&AccountsParser{}).Parse(strings.NewReader(accountsCSV))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	a := rows[0].Account
	require.NotNil(t, a)
	assert.Equal(t, "ACC-001", a.LegacyNumber)
	assert.Equal(t, model.AccountKindChecking, a.Kind)
	assert.Equal(t, "1250.75", a.Balance.StringFixed(2))
	assert.Equal(t, model.AccountActive, a.Status)

	assert.Equal(t, model.AccountFrozen, rows[1].Account.Status)

	require.Error(t, rows[2].Err)
	assert.Contains(t, rows[2].Err.Error(), "parsing balance")
	assert.Equal(t, 4, rows[2].Line)
}

func TestParser_Header(t *testing.T) {
	_, err := (&AccountsParser{}).Parse(strings.NewReader("number,email,type,balance,status\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header column 1")

	_, err = (&AccountsParser{}).Parse(strings.NewReader("account_number,customer_email\n"))
	require.Error(t, err)

	rows, err := (&AccountsParser{}).Parse(strings.NewReader("\ufeffACCOUNT_NUMBER,customer_email,account_type,balance,status\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = (&AccountsParser{}).Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestParser_ShortRow(t *testing.T) {
	csv := "account_number,customer_email,account_type,balance,status\nACC-1,ana@example.com\n"
	rows, err := (&AccountsParser{}).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.ErrorContains(t, rows[0].Err, "want 5 fields, got 2")
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("Customers"))
	assert.NotNil(t, r.Get("ACCOUNTS"))
	assert.Equal(t, []string{"customers", "accounts"}, r.Formats())
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&CustomersParser{})
	assert.Panics(t, func() { r.Register(&CustomersParser{}) })
}

func TestRegistry_ForFile(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, "customers", r.ForFile("Customers-2025-01.csv").Format())
	assert.Equal(t, "accounts", r.ForFile("/tmp/accounts.csv").Format())
	assert.Nil(t, r.ForFile("loans.csv"))
}

func TestImport_CollectsRowErrors(t *testing.T) {
	l := &fakeLoader{fail: map[string]error{"zed@example.com": bank.ErrNotFound}}
	sum, err := Import(context.Background(), l, bank.SystemActor, &AccountsParser{}, strings.NewReader(accountsCSV))
	require.NoError(t, err)

	assert.Equal(t, "accounts", sum.Format)
	assert.Equal(t, 4, sum.Rows)
	assert.Equal(t, 2, sum.Imported)
	require.Len(t, sum.Errors, 2)
	assert.Equal(t, 4, sum.Errors[0].Line)
	assert.Equal(t, 5, sum.Errors[1].Line)
	assert.ErrorIs(t, sum.Err(), bank.ErrNotFound)
	assert.Len(t, l.accounts, 2)
}

func TestImport_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Import(ctx, &fakeLoader{}, bank.SystemActor, &CustomersParser{}, strings.NewReader(customersCSV))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportFile_UnknownFormat(t *testing.T) {
	_, err := ImportFile(context.Background(), DefaultRegistry(), &fakeLoader{}, bank.SystemActor, "chase", "x.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customers, accounts")
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "b.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "a.CSV"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "other.txt"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.CSV", files[0].Name)
	assert.Equal(t, "b.csv", files[1].Name)
}

func TestScan_EmptyDir(t *testing.T) {
	files, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(importDir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	assert.NoError(t, err)
}

func TestImportDir_OrdersAndMovesCleanFiles(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	// accounts sorts before customers by name but must load second.
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "accounts.csv"), []byte(accountsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "customers.csv"), []byte(customersCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "notes.csv"), []byte("x"), 0o644))

	l := &fakeLoader{}
	sums, err := ImportDir(context.Background(), DefaultRegistry(), l, bank.SystemActor, dir)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "customers", sums[0].Format)
	assert.Empty(t, sums[0].Errors)
	assert.Equal(t, "accounts", sums[1].Format)
	assert.NotEmpty(t, sums[1].Errors)

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "customers.csv"))
	assert.NoError(t, err, "clean file moved")
	_, err = os.Stat(filepath.Join(importDir, "accounts.csv"))
	assert.NoError(t, err, "file with errors stays")
	_, err = os.Stat(filepath.Join(importDir, "notes.csv"))
	assert.NoError(t, err, "unknown format untouched")
}

func TestImport_ThroughBank(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "import.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	_, err := store.Migrate(ctx, "sqlite", dsn)
	require.NoError(t, err)
	st, err := store.Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tokens, err := auth.NewIssuer("test-secret", "teller", time.Hour)
	require.NoError(t, err)
	svc := bank.New(st, tokens, zaptest.NewLogger(t), bank.OptionsFromConfig(config.Default()))
	require.NoError(t, svc.Bootstrap(ctx))

	sum, err := Import(ctx, svc, bank.SystemActor, &CustomersParser{}, strings.NewReader(customersCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Imported)
	require.Len(t, sum.Errors, 1)
	assert.ErrorIs(t, sum.Errors[0], bank.ErrInvalidInput)

	sum, err = Import(ctx, svc, bank.SystemActor, &AccountsParser{}, strings.NewReader(accountsCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Imported)
	require.Len(t, sum.Errors, 2)
	assert.True(t, errors.Is(sum.Errors[1], bank.ErrNotFound), sum.Errors[1].Error())

	accts, err := svc.ListAccounts(ctx, bank.SystemActor, model.AccountActive)
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, "1250.75", accts[0].Balance.StringFixed(2))
	assert.Equal(t, "c-1", accts[0].CustomerID)

	report, err := svc.VerifyLedger(ctx, bank.SystemActor)
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report)

	// Re-running the customer file conflicts on every row instead of duplicating.
	sum, err = Import(ctx, svc, bank.SystemActor, &CustomersParser{}, strings.NewReader(customersCSV))
	require.NoError(t, err)
	assert.Zero(t, sum.Imported)
}
