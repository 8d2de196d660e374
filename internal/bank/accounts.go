package bank

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tellerline/teller/internal/id"
	"github.com/tellerline/teller/internal/ledger"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/money"
	"github.com/tellerline/teller/internal/store"
)

// OpenAccountInput requests a new account. CustomerID is only honoured for
// admins; customers always open accounts for themselves.
type OpenAccountInput struct {
	CustomerID     string            `json:"customer_id,omitempty"`
	Kind           model.AccountKind `json:"kind"`
	OpeningDeposit decimal.Decimal   `json:"opening_deposit"`
}

// OpenAccount creates a pending account. The opening deposit is held on the
// account record and only posted when an admin approves it.
func (s *Service) OpenAccount(ctx context.Context, actor Actor, in OpenAccountInput) (model.Account, error) {
	customerID := actor.CustomerID
	if actor.IsAdmin() {
		customerID = in.CustomerID
	}
	if customerID == "" {
		return model.Account{}, fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	}
	if !in.Kind.Valid() {
		return model.Account{}, fmt.Errorf("%w: account kind %q", ErrInvalidInput, in.Kind)
	}
	if in.OpeningDeposit.IsNegative() || !money.WholeCents(in.OpeningDeposit) {
		return model.Account{}, fmt.Errorf("%w: opening deposit %s", ErrInvalidAmount, in.OpeningDeposit)
	}
	if limit := s.opts.MaxOpeningDeposit; limit.IsPositive() && in.OpeningDeposit.GreaterThan(limit) {
		return model.Account{}, fmt.Errorf("%w: opening deposit above %s", ErrLimitExceeded, money.Format(limit))
	}

	now := s.clock()
	acct := model.Account{
		ID:             newID(),
		CustomerID:     customerID,
		Kind:           in.Kind,
		Status:         model.AccountPending,
		Currency:       s.opts.Currency,
		Balance:        decimal.Zero,
		OpeningDeposit: in.OpeningDeposit,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.inTx(ctx, "open_account", func(q *store.Queries) error {
		if _, err := q.GetCustomer(ctx, customerID); err != nil {
			return fmt.Errorf("customer %s: %w", customerID, err)
		}
		number, err := q.NextAccountNumber(ctx)
		if err != nil {
			return err
		}
		acct.Number = number
		return q.InsertAccount(ctx, acct)
	})
	if err != nil {
		return model.Account{}, fmt.Errorf("opening account: %w", err)
	}
	s.log.Info("account opened", zap.String("account_id", acct.ID), zap.String("customer_id", customerID))
	return acct, nil
}

// GetAccount returns an account the actor is allowed to see.
func (s *Service) GetAccount(ctx context.Context, actor Actor, accountID string) (model.Account, error) {
	a, err := s.store.Queries().GetAccount(ctx, accountID, false)
	if err != nil {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, err)
	}
	if !actor.canSee(a) {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, ErrForbidden)
	}
	return a, nil
}

// ListAccounts returns the actor's own accounts, or every customer account
// for admins. status may be empty.
func (s *Service) ListAccounts(ctx context.Context, actor Actor, status model.AccountStatus) ([]model.Account, error) {
	f := store.AccountFilter{Status: status}
	if !actor.IsAdmin() {
		if err := actor.requireCustomer(); err != nil {
			return nil, err
		}
		f.CustomerID = actor.CustomerID
	}
	return s.store.Queries().ListAccounts(ctx, f)
}

// ApproveAccount activates a pending account and posts its opening deposit.
func (s *Service) ApproveAccount(ctx context.Context, actor Actor, accountID string) (model.Account, error) {
	if err := actor.requireAdmin(); err != nil {
		return model.Account{}, err
	}
	var out model.Account
	err := s.inTx(ctx, "approve_account", func(q *store.Queries) error {
		accts, err := lockAccounts(ctx, q, accountID, ledger.CashAccountID)
		if err != nil {
			return err
		}
		a := accts[accountID]
		if err := requireCustomerAccount(a); err != nil {
			return err
		}
		if a.Status != model.AccountPending {
			return fmt.Errorf("%w: account %s is %s", ErrInvalidState, a.Number, a.Status)
		}

		now := s.clock()
		a.Status = model.AccountActive
		a.UpdatedAt = now
		deposit := a.OpeningDeposit
		if !deposit.IsPositive() {
			if err := q.SaveAccount(ctx, a); err != nil {
				return err
			}
		} else {
			// post saves the account, status change included.
			entry, err := post(ctx, q, ledger.Opening(a.ID, deposit, now), accts)
			if err != nil {
				return err
			}
			line := statementLine(a, model.TxOpening, deposit, ledger.CashAccountID, id.NewReference(), "opening deposit", entry.ID, now)
			if err := q.InsertTransaction(ctx, line); err != nil {
				return err
			}
		}
		out = *a
		return s.audit(ctx, q, actor, "account.approve", a.ID, "opening deposit "+money.Format(deposit))
	})
	if err != nil {
		return model.Account{}, fmt.Errorf("approving account %s: %w", accountID, err)
	}
	s.log.Info("account approved", zap.String("account_id", accountID), zap.String("admin", actor.UserID))
	return out, nil
}

// RejectAccount declines a pending account.
func (s *Service) RejectAccount(ctx context.Context, actor Actor, accountID, reason string) (model.Account, error) {
	return s.transition(ctx, actor, accountID, model.AccountRejected, "account.reject", reason)
}

// FreezeAccount blocks all money movement on an active account.
func (s *Service) FreezeAccount(ctx context.Context, actor Actor, accountID, reason string) (model.Account, error) {
	return s.transition(ctx, actor, accountID, model.AccountFrozen, "account.freeze", reason)
}

// UnfreezeAccount reactivates a frozen account.
func (s *Service) UnfreezeAccount(ctx context.Context, actor Actor, accountID, reason string) (model.Account, error) {
	return s.transition(ctx, actor, accountID, model.AccountActive, "account.unfreeze", reason)
}

// CloseAccount closes an account. The balance must be zero.
func (s *Service) CloseAccount(ctx context.Context, actor Actor, accountID, reason string) (model.Account, error) {
	return s.transition(ctx, actor, accountID, model.AccountClosed, "account.close", reason)
}

func (s *Service) transition(ctx context.Context, actor Actor, accountID string, next model.AccountStatus, action, reason string) (model.Account, error) {
	if err := actor.requireAdmin(); err != nil {
		return model.Account{}, err
	}
	var out model.Account
	err := s.inTx(ctx, action, func(q *store.Queries) error {
		accts, err := lockAccounts(ctx, q, accountID)
		if err != nil {
			return err
		}
		a := accts[accountID]
		if err := requireCustomerAccount(a); err != nil {
			return err
		}
		if !a.Status.CanTransition(next) {
			return fmt.Errorf("%w: account %s cannot go from %s to %s", ErrInvalidState, a.Number, a.Status, next)
		}
		if next == model.AccountClosed && !a.Balance.IsZero() {
			return fmt.Errorf("%w: account %s still holds %s", ErrInvalidState, a.Number, money.Format(a.Balance))
		}
		a.Status = next
		a.UpdatedAt = s.clock()
		if err := q.SaveAccount(ctx, a); err != nil {
			return err
		}
		out = *a
		return s.audit(ctx, q, actor, action, a.ID, strings.TrimSpace(reason))
	})
	if err != nil {
		return model.Account{}, fmt.Errorf("%s %s: %w", action, accountID, err)
	}
	s.log.Info("account status changed",
		zap.String("account_id", accountID),
		zap.String("status", string(next)),
		zap.String("admin", actor.UserID))
	return out, nil
}

// ImportAccountInput is one account carried over from the legacy backend.
type ImportAccountInput struct {
	CustomerEmail string
	Kind          model.AccountKind
	Status        model.AccountStatus
	Balance       decimal.Decimal
	LegacyNumber  string
}

// ImportAccount creates an account for an imported customer and journals its
// legacy balance as an opening deposit so the books stay balanced.
func (s *Service) ImportAccount(ctx context.Context, actor Actor, in ImportAccountInput) (model.Account, error) {
	if err := actor.requireAdmin(); err != nil {
		return model.Account{}, err
	}
	if !in.Kind.Valid() {
		return model.Account{}, fmt.Errorf("%w: account kind %q", ErrInvalidInput, in.Kind)
	}
	switch in.Status {
	case model.AccountActive, model.AccountFrozen, model.AccountClosed:
	case "":
		in.Status = model.AccountActive
	default:
		return model.Account{}, fmt.Errorf("%w: cannot import account in status %q", ErrInvalidInput, in.Status)
	}
	if in.Balance.IsNegative() || !money.WholeCents(in.Balance) {
		return model.Account{}, fmt.Errorf("%w: balance %s", ErrInvalidAmount, in.Balance)
	}
	if in.Status == model.AccountClosed && !in.Balance.IsZero() {
		return model.Account{}, fmt.Errorf("%w: closed account with balance %s", ErrInvalidState, money.Format(in.Balance))
	}
	email, err := normalizeEmail(in.CustomerEmail)
	if err != nil {
		return model.Account{}, err
	}

	var out model.Account
	err = s.inTx(ctx, "import_account", func(q *store.Queries) error {
		cust, err := q.GetCustomerByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("customer %s: %w", email, err)
		}
		number, err := q.NextAccountNumber(ctx)
		if err != nil {
			return err
		}
		now := s.clock()
		a := model.Account{
			ID:         newID(),
			Number:     number,
			CustomerID: cust.ID,
			Kind:       in.Kind,
			Status:     in.Status,
			Currency:   s.opts.Currency,
			Balance:    decimal.Zero,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := q.InsertAccount(ctx, a); err != nil {
			return err
		}
		if in.Balance.IsPositive() {
			accts, err := lockAccounts(ctx, q, a.ID, ledger.CashAccountID)
			if err != nil {
				return err
			}
			desc := "legacy balance"
			if in.LegacyNumber != "" {
				desc += " from " + in.LegacyNumber
			}
			entry, err := post(ctx, q, ledger.Deposit(a.ID, in.Balance, desc, now), accts)
			if err != nil {
				return err
			}
			a = *accts[a.ID]
			line := statementLine(&a, model.TxOpening, in.Balance, ledger.CashAccountID, id.NewReference(), desc, entry.ID, now)
			if err := q.InsertTransaction(ctx, line); err != nil {
				return err
			}
		}
		out = a
		return s.audit(ctx, q, actor, "account.import", a.ID, in.LegacyNumber)
	})
	if err != nil {
		return model.Account{}, fmt.Errorf("importing account for %s: %w", email, err)
	}
	return out, nil
}
