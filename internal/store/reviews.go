package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/tellerline/teller/internal/model"
)

// ReviewFilter narrows the loan and card queues.
type ReviewFilter struct {
	CustomerID string
	Status     model.Decision
}

func (f ReviewFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.CustomerID != "" {
		clauses = append(clauses, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(clauses, " AND "), args
}

const loanColumns = `id, customer_id, account_id, kind, principal, term_months, annual_rate, status, decided_by, decision_note, entry_id, created_at, decided_at`

// InsertLoan adds a loan application.
func (q *Queries) InsertLoan(ctx context.Context, l model.Loan) error {
	_, err := q.exec(ctx, `INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.CustomerID, l.AccountID, l.Kind, l.Principal, l.TermMonths, l.AnnualRate, l.Status,
		l.DecidedBy, l.DecisionNote, l.EntryID, l.CreatedAt.UTC(), utcPtr(l.DecidedAt))
	if err != nil {
		return fmt.Errorf("inserting loan %s: %w", l.ID, err)
	}
	return nil
}

// GetLoan loads a loan by ID.
func (q *Queries) GetLoan(ctx context.Context, loanID string) (model.Loan, error) {
	var l model.Loan
	err := q.get(ctx, &l, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, loanID)
	return l, err
}

// ListLoans returns matching loans oldest first.
func (q *Queries) ListLoans(ctx context.Context, f ReviewFilter) ([]model.Loan, error) {
	where, args := f.where()
	var out []model.Loan
	if err := q.selectAll(ctx, &out, `SELECT `+loanColumns+` FROM loans`+where+` ORDER BY created_at, id`, args...); err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	return out, nil
}

// DecideLoan records a decision on a pending loan. A loan that is no longer
// pending yields ErrConflict.
func (q *Queries) DecideLoan(ctx context.Context, l model.Loan) error {
	err := q.execOne(ctx, `UPDATE loans
		SET status = ?, decided_by = ?, decision_note = ?, entry_id = ?, decided_at = ?
		WHERE id = ? AND status = ?`,
		l.Status, l.DecidedBy, l.DecisionNote, l.EntryID, utcPtr(l.DecidedAt), l.ID, model.DecisionPending)
	if err != nil {
		return fmt.Errorf("deciding loan %s: %w", l.ID, err)
	}
	return nil
}

const cardColumns = `id, customer_id, account_id, kind, status, masked_pan, credit_limit, decided_by, created_at, decided_at`

// InsertCard adds a card application.
func (q *Queries) InsertCard(ctx context.Context, c model.CardApplication) error {
	_, err := q.exec(ctx, `INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CustomerID, c.AccountID, c.Kind, c.Status, c.MaskedPAN, c.CreditLimit, c.DecidedBy,
		c.CreatedAt.UTC(), utcPtr(c.DecidedAt))
	if err != nil {
		return fmt.Errorf("inserting card %s: %w", c.ID, err)
	}
	return nil
}

// GetCard loads a card application by ID.
func (q *Queries) GetCard(ctx context.Context, cardID string) (model.CardApplication, error) {
	var c model.CardApplication
	err := q.get(ctx, &c, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, cardID)
	return c, err
}

// ListCards returns matching card applications oldest first.
func (q *Queries) ListCards(ctx context.Context, f ReviewFilter) ([]model.CardApplication, error) {
	where, args := f.where()
	var out []model.CardApplication
	if err := q.selectAll(ctx, &out, `SELECT `+cardColumns+` FROM cards`+where+` ORDER BY created_at, id`, args...); err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	return out, nil
}

// DecideCard records a decision on a pending card application.
func (q *Queries) DecideCard(ctx context.Context, c model.CardApplication) error {
	err := q.execOne(ctx, `UPDATE cards
		SET status = ?, masked_pan = ?, credit_limit = ?, decided_by = ?, decided_at = ?
		WHERE id = ? AND status = ?`,
		c.Status, c.MaskedPAN, c.CreditLimit, c.DecidedBy, utcPtr(c.DecidedAt), c.ID, model.DecisionPending)
	if err != nil {
		return fmt.Errorf("deciding card %s: %w", c.ID, err)
	}
	return nil
}
