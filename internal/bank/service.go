// Package bank is the service layer. Every balance change goes through it,
// and each one writes statement lines and a balanced journal entry in the
// same database transaction.
package bank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tellerline/teller/internal/auth"
	"github.com/tellerline/teller/internal/config"
	"github.com/tellerline/teller/internal/ledger"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/store"
)

// Options tunes the service. Zero limits disable the corresponding check.
type Options struct {
	Currency           string
	MaxTransfer        decimal.Decimal
	DailyTransfer      decimal.Decimal
	MaxOpeningDeposit  decimal.Decimal
	MaxLoan            decimal.Decimal
	DefaultLoanRate    decimal.Decimal
	DefaultCreditLimit decimal.Decimal

	RetryAttempts uint
	RetryDelay    time.Duration

	Observer Observer
	Clock    func() time.Time
}

// OptionsFromConfig copies the limits and retry policy out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Currency:           cfg.Limits.Currency,
		MaxTransfer:        cfg.Limits.MaxTransfer,
		DailyTransfer:      cfg.Limits.DailyTransfer,
		MaxOpeningDeposit:  cfg.Limits.MaxOpeningDeposit,
		MaxLoan:            cfg.Limits.MaxLoan,
		DefaultLoanRate:    cfg.Limits.DefaultLoanRate,
		DefaultCreditLimit: cfg.Limits.DefaultCreditLimit,
		RetryAttempts:      cfg.Retry.Attempts,
		RetryDelay:         cfg.Retry.Delay,
	}
}

// Observer receives service events for metrics.
type Observer interface {
	TransferDone(outcome string, amount decimal.Decimal)
	ConflictRetried(op string)
}

type nopObserver struct{}

func (nopObserver) TransferDone(string, decimal.Decimal) {}
func (nopObserver) ConflictRetried(string)              {}

// Service implements the bank's operations on top of a store.
type Service struct {
	store  *store.Store
	tokens *auth.Issuer
	log    *zap.Logger
	obs    Observer
	opts   Options
	now    func() time.Time
}

// New returns a Service. tokens may be nil when no logins are issued, as in
// the CLI.
func New(st *store.Store, tokens *auth.Issuer, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 1
	}
	s := &Service{
		store:  st,
		tokens: tokens,
		log:    log,
		obs:    opts.Observer,
		opts:   opts,
		now:    opts.Clock,
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Bootstrap creates the system accounts if they are missing.
func (s *Service) Bootstrap(ctx context.Context) error {
	return s.store.InTx(ctx, func(q *store.Queries) error {
		return q.EnsureAccounts(ctx, ledger.SystemAccounts(s.opts.Currency, s.clock()))
	})
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

func (s *Service) clock() time.Time { return s.now().UTC() }

// inTx runs fn in a transaction and retries it when a concurrent writer wins
// a version race. fn must be safe to run more than once.
func (s *Service) inTx(ctx context.Context, op string, fn func(q *store.Queries) error) error {
	return retry.Do(
		func() error { return s.store.InTx(ctx, fn) },
		retry.Context(ctx),
		retry.Attempts(s.opts.RetryAttempts),
		retry.Delay(s.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, store.ErrConflict) }),
		retry.OnRetry(func(n uint, err error) {
			s.log.Debug("retrying after write conflict", zap.String("op", op), zap.Uint("attempt", n+1), zap.Error(err))
			s.obs.ConflictRetried(op)
		}),
	)
}

// audit records a privileged action inside the caller's transaction.
func (s *Service) audit(ctx context.Context, q *store.Queries, actor Actor, action, subject, details string) error {
	err := q.InsertAudit(ctx, model.AuditEntry{
		ID:        newID(),
		Timestamp: s.clock(),
		Actor:     actor.UserID,
		Action:    action,
		Subject:   subject,
		Details:   details,
	})
	if err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}
