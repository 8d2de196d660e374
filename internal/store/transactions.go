package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tellerline/teller/internal/model"
)

const transactionColumns = `id, reference, account_id, counterparty_id, type, amount, balance_after, description, entry_id, created_at`

// TransactionFilter narrows ListTransactions. Zero fields match everything.
type TransactionFilter struct {
	AccountID string
	Type      model.TransactionType
	Reference string
	From      time.Time
	To        time.Time // exclusive
	Limit     int
	Offset    int
}

// InsertTransaction adds a statement line.
func (q *Queries) InsertTransaction(ctx context.Context, t model.Transaction) error {
	_, err := q.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Reference, t.AccountID, t.CounterpartyID, t.Type, t.Amount, t.BalanceAfter,
		t.Description, t.EntryID, t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting transaction %s: %w", t.ID, err)
	}
	return nil
}

// ListTransactions returns matching statement lines, newest first.
func (q *Queries) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Reference != "" {
		where = append(where, "reference = ?")
		args = append(args, f.Reference)
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, f.To.UTC())
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query = page(query+` ORDER BY created_at DESC, entry_id DESC, type`, f.Limit, f.Offset)

	var out []model.Transaction
	if err := q.selectAll(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return out, nil
}
