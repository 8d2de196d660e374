package bank

import (
	"context"
	"fmt"

	"github.com/tellerline/teller/internal/ledger"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/store"
)

// MaxPageSize caps list endpoints.
const MaxPageSize = 500

func clampPage(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// AccountStatement returns an account's statement lines, newest first.
func (s *Service) AccountStatement(ctx context.Context, actor Actor, accountID string, limit, offset int) ([]model.Transaction, error) {
	if _, err := s.GetAccount(ctx, actor, accountID); err != nil {
		return nil, err
	}
	return s.store.Queries().ListTransactions(ctx, store.TransactionFilter{
		AccountID: accountID,
		Limit:     clampPage(limit),
		Offset:    offset,
	})
}

// SearchTransactions filters statement lines across all accounts. Admin only.
func (s *Service) SearchTransactions(ctx context.Context, actor Actor, f store.TransactionFilter) ([]model.Transaction, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return nil, fmt.Errorf("%w: empty date range", ErrInvalidInput)
	}
	f.Limit = clampPage(f.Limit)
	return s.store.Queries().ListTransactions(ctx, f)
}

// VerifyLedger replays the journal against stored balances from one
// consistent snapshot. Admin only.
func (s *Service) VerifyLedger(ctx context.Context, actor Actor) (ledger.Report, error) {
	if err := actor.requireAdmin(); err != nil {
		return ledger.Report{}, err
	}
	var report ledger.Report
	err := s.store.InReadTx(ctx, func(q *store.Queries) error {
		accts, err := q.ListAccounts(ctx, store.AccountFilter{IncludeSystem: true})
		if err != nil {
			return err
		}
		legs, err := q.ListLegs(ctx, store.LegFilter{})
		if err != nil {
			return err
		}
		report = ledger.Reconcile(accts, legs)
		return nil
	})
	if err != nil {
		return ledger.Report{}, fmt.Errorf("verifying ledger: %w", err)
	}
	return report, nil
}

// Journal returns the journal legs, optionally for one "YYYY-MM" period.
// Admin only.
func (s *Service) Journal(ctx context.Context, actor Actor, period string) ([]model.Leg, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	return s.store.Queries().ListLegs(ctx, store.LegFilter{Period: period})
}

// ListAudit returns one page of audit entries. Admin only.
func (s *Service) ListAudit(ctx context.Context, actor Actor, f store.AuditFilter) ([]model.AuditEntry, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	f.Limit = clampPage(f.Limit)
	return s.store.Queries().ListAudit(ctx, f)
}
