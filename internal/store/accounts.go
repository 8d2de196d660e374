package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tellerline/teller/internal/id"
	"github.com/tellerline/teller/internal/model"
)

const accountColumns = `id, number, customer_id, kind, status, currency, balance, opening_deposit, version, created_at, updated_at`

// AccountFilter narrows ListAccounts. Zero fields match everything.
type AccountFilter struct {
	CustomerID    string
	Status        model.AccountStatus
	IncludeSystem bool
}

// InsertAccount adds an account at version 1.
func (q *Queries) InsertAccount(ctx context.Context, a model.Account) error {
	if a.Version == 0 {
		a.Version = 1
	}
	_, err := q.exec(ctx, `INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Number, a.CustomerID, a.Kind, a.Status, a.Currency, a.Balance, a.OpeningDeposit,
		a.Version, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", a.ID, err)
	}
	return nil
}

// GetAccount loads an account. With forUpdate set, PostgreSQL holds a row
// lock until the transaction ends; SQLite already serialises writers.
func (q *Queries) GetAccount(ctx context.Context, accountID string, forUpdate bool) (model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	if forUpdate && q.dialect == Postgres {
		query += ` FOR UPDATE`
	}
	var a model.Account
	err := q.get(ctx, &a, query, accountID)
	return a, err
}

// GetAccountByNumber loads an account by its public number.
func (q *Queries) GetAccountByNumber(ctx context.Context, number string) (model.Account, error) {
	var a model.Account
	err := q.get(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE number = ?`, number)
	return a, err
}

// ListAccounts returns matching accounts in creation order.
func (q *Queries) ListAccounts(ctx context.Context, f AccountFilter) ([]model.Account, error) {
	var (
		where []string
		args  []any
	)
	if f.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if !f.IncludeSystem {
		where = append(where, "kind <> ?")
		args = append(args, model.AccountKindSystem)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, number`

	var out []model.Account
	if err := q.selectAll(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return out, nil
}

// SaveAccount writes balance, status and opening deposit if nobody else has
// written the row since it was read. On success a.Version is bumped; a lost
// race returns ErrConflict.
func (q *Queries) SaveAccount(ctx context.Context, a *model.Account) error {
	err := q.execOne(ctx, `UPDATE accounts
		SET balance = ?, status = ?, opening_deposit = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		a.Balance, a.Status, a.OpeningDeposit, a.UpdatedAt.UTC(), a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("saving account %s: %w", a.ID, err)
	}
	a.Version++
	return nil
}

// NextAccountNumber draws the next account number from the counter table.
func (q *Queries) NextAccountNumber(ctx context.Context) (string, error) {
	if err := q.execOne(ctx, `UPDATE counters SET value = value + 1 WHERE name = ?`, "account_number"); err != nil {
		return "", fmt.Errorf("advancing account counter: %w", err)
	}
	var seq int64
	if err := q.get(ctx, &seq, `SELECT value FROM counters WHERE name = ?`, "account_number"); err != nil {
		return "", fmt.Errorf("reading account counter: %w", err)
	}
	return id.FormatAccountNumber(seq), nil
}

// EnsureAccounts inserts any of accts that do not exist yet.
func (q *Queries) EnsureAccounts(ctx context.Context, accts []model.Account) error {
	for _, a := range accts {
		_, err := q.GetAccount(ctx, a.ID, false)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("checking account %s: %w", a.ID, err)
		}
		if err := q.InsertAccount(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
