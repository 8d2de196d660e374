package bank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tellerline/teller/internal/id"
	"github.com/tellerline/teller/internal/ledger"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/money"
	"github.com/tellerline/teller/internal/store"
)

// Transfer outcomes reported to the Observer.
const (
	OutcomeOK                = "ok"
	OutcomeReplayed          = "replayed"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeRejected          = "rejected"
	OutcomeError             = "error"
)

// TransferInput moves money between two customer accounts. The destination
// is given by ID or by account number.
type TransferInput struct {
	FromAccountID   string          `json:"from_account_id"`
	ToAccountID     string          `json:"to_account_id,omitempty"`
	ToAccountNumber string          `json:"to_account_number,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
}

// TransferResult is the outcome of a transfer. Replayed is set when the
// idempotency key had already been used and no money moved.
type TransferResult struct {
	Reference string            `json:"reference"`
	EntryID   string            `json:"entry_id"`
	Debit     model.Transaction `json:"debit"`
	Credit    model.Transaction `json:"credit"`
	Replayed  bool              `json:"replayed"`
}

// Transfer debits the source, credits the destination, writes both
// statement lines and journals the movement in one transaction.
func (s *Service) Transfer(ctx context.Context, actor Actor, in TransferInput) (TransferResult, error) {
	res, err := s.transfer(ctx, actor, in)
	outcome := OutcomeOK
	switch {
	case err == nil && res.Replayed:
		outcome = OutcomeReplayed
	case err == nil:
	case errors.Is(err, ErrInsufficientFunds):
		outcome = OutcomeInsufficientFunds
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrLimitExceeded), errors.Is(err, ErrForbidden), errors.Is(err, ErrNotFound):
		outcome = OutcomeRejected
	default:
		outcome = OutcomeError
	}
	s.obs.TransferDone(outcome, in.Amount)

	fields := []zap.Field{
		zap.String("outcome", outcome),
		zap.String("from", in.FromAccountID),
		zap.String("amount", money.Format(in.Amount)),
		zap.String("actor", actor.UserID),
	}
	if err != nil {
		s.log.Info("transfer refused", append(fields, zap.Error(err))...)
		return TransferResult{}, err
	}
	s.log.Info("transfer posted", append(fields, zap.String("reference", res.Reference), zap.String("entry_id", res.EntryID))...)
	return res, nil
}

func (s *Service) transfer(ctx context.Context, actor Actor, in TransferInput) (TransferResult, error) {
	if !actor.IsAdmin() {
		if err := actor.requireCustomer(); err != nil {
			return TransferResult{}, err
		}
	}
	if err := money.Validate(in.Amount); err != nil {
		return TransferResult{}, err
	}
	if limit := s.opts.MaxTransfer; limit.IsPositive() && in.Amount.GreaterThan(limit) {
		return TransferResult{}, fmt.Errorf("%w: transfers are capped at %s", ErrLimitExceeded, money.Format(limit))
	}
	if in.FromAccountID == "" {
		return TransferResult{}, fmt.Errorf("%w: from_account_id is required", ErrInvalidInput)
	}
	if in.ToAccountID == "" && in.ToAccountNumber == "" {
		return TransferResult{}, fmt.Errorf("%w: destination account is required", ErrInvalidInput)
	}
	if in.ToAccountID == "" && !id.ValidAccountNumber(in.ToAccountNumber) {
		return TransferResult{}, fmt.Errorf("%w: account number %q fails its check digit", ErrInvalidInput, in.ToAccountNumber)
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		desc = "transfer"
	}

	var res TransferResult
	err := s.inTx(ctx, "transfer", func(q *store.Queries) error {
		res = TransferResult{}
		if key != "" {
			replayed, ok, err := s.replay(ctx, q, actor, key)
			if err != nil {
				return err
			}
			if ok {
				res = replayed
				return nil
			}
		}

		toID := in.ToAccountID
		if toID == "" {
			dst, err := q.GetAccountByNumber(ctx, in.ToAccountNumber)
			if err != nil {
				return fmt.Errorf("account number %s: %w", in.ToAccountNumber, err)
			}
			toID = dst.ID
		}
		if toID == in.FromAccountID {
			return fmt.Errorf("%w: source and destination are the same account", ErrInvalidInput)
		}

		accts, err := lockAccounts(ctx, q, in.FromAccountID, toID)
		if err != nil {
			return err
		}
		from, to := accts[in.FromAccountID], accts[toID]
		if err := requireCustomerAccount(from); err != nil {
			return err
		}
		if err := requireCustomerAccount(to); err != nil {
			return err
		}
		if !actor.IsAdmin() && !from.OwnedBy(actor.CustomerID) {
			return fmt.Errorf("%w: account %s is not yours", ErrForbidden, from.Number)
		}
		if err := requireActive(from); err != nil {
			return err
		}
		if err := requireActive(to); err != nil {
			return err
		}
		if from.Currency != to.Currency {
			return fmt.Errorf("%w: cannot transfer %s to a %s account", ErrInvalidInput, from.Currency, to.Currency)
		}
		if from.Balance.LessThan(in.Amount) {
			return fmt.Errorf("%w: account %s has %s", ErrInsufficientFunds, from.Number, money.Format(from.Balance))
		}

		now := s.clock()
		if !actor.IsAdmin() {
			if err := s.checkDailyLimit(ctx, q, from.ID, in.Amount, now); err != nil {
				return err
			}
		}

		ref := id.NewReference()
		entry, err := post(ctx, q, ledger.Transfer(from.ID, to.ID, in.Amount, desc, now), accts)
		if err != nil {
			return err
		}
		debit := statementLine(from, model.TxTransferOut, in.Amount, to.ID, ref, desc, entry.ID, now)
		credit := statementLine(to, model.TxTransferIn, in.Amount, from.ID, ref, desc, entry.ID, now)
		if err := q.InsertTransaction(ctx, debit); err != nil {
			return err
		}
		if err := q.InsertTransaction(ctx, credit); err != nil {
			return err
		}
		if key != "" {
			err := q.InsertTransferKey(ctx, store.TransferKey{Key: key, ActorID: actor.UserID, Reference: ref, CreatedAt: now})
			if err != nil {
				return err
			}
		}
		res = TransferResult{Reference: ref, EntryID: entry.ID, Debit: debit, Credit: credit}
		return nil
	})
	if err != nil {
		return TransferResult{}, fmt.Errorf("transfer: %w", err)
	}
	return res, nil
}

// replay returns the earlier result for an idempotency key, if any.
func (s *Service) replay(ctx context.Context, q *store.Queries, actor Actor, key string) (TransferResult, bool, error) {
	k, err := q.GetTransferKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return TransferResult{}, false, nil
	}
	if err != nil {
		return TransferResult{}, false, err
	}
	if k.ActorID != actor.UserID {
		return TransferResult{}, false, fmt.Errorf("%w: idempotency key belongs to another user", ErrInvalidInput)
	}
	lines, err := q.ListTransactions(ctx, store.TransactionFilter{Reference: k.Reference})
	if err != nil {
		return TransferResult{}, false, err
	}
	res := TransferResult{Reference: k.Reference, Replayed: true}
	for _, l := range lines {
		res.EntryID = l.EntryID
		switch l.Type {
		case model.TxTransferOut:
			res.Debit = l
		case model.TxTransferIn:
			res.Credit = l
		}
	}
	return res, true, nil
}

// checkDailyLimit caps what a customer can send from one account per UTC day.
func (s *Service) checkDailyLimit(ctx context.Context, q *store.Queries, accountID string, amount decimal.Decimal, now time.Time) error {
	limit := s.opts.DailyTransfer
	if !limit.IsPositive() {
		return nil
	}
	start := now.Truncate(24 * time.Hour)
	sent, err := q.ListTransactions(ctx, store.TransactionFilter{
		AccountID: accountID,
		Type:      model.TxTransferOut,
		From:      start,
	})
	if err != nil {
		return err
	}
	total := amount
	for _, t := range sent {
		total = total.Add(t.Amount)
	}
	if total.GreaterThan(limit) {
		return fmt.Errorf("%w: daily transfer limit of %s reached", ErrLimitExceeded, money.Format(limit))
	}
	return nil
}

// Deposit credits cash to a customer account. Admin only.
func (s *Service) Deposit(ctx context.Context, actor Actor, accountID string, amount decimal.Decimal, description string) (model.Transaction, error) {
	return s.cashMovement(ctx, actor, accountID, amount, description, model.TxDeposit)
}

// Withdraw pays cash out of a customer account. Admin only.
func (s *Service) Withdraw(ctx context.Context, actor Actor, accountID string, amount decimal.Decimal, description string) (model.Transaction, error) {
	return s.cashMovement(ctx, actor, accountID, amount, description, model.TxWithdrawal)
}

func (s *Service) cashMovement(ctx context.Context, actor Actor, accountID string, amount decimal.Decimal, description string, typ model.TransactionType) (model.Transaction, error) {
	if err := actor.requireAdmin(); err != nil {
		return model.Transaction{}, err
	}
	if err := money.Validate(amount); err != nil {
		return model.Transaction{}, err
	}
	desc := strings.TrimSpace(description)
	if desc == "" {
		desc = string(typ)
	}

	var line model.Transaction
	err := s.inTx(ctx, string(typ), func(q *store.Queries) error {
		accts, err := lockAccounts(ctx, q, accountID, ledger.CashAccountID)
		if err != nil {
			return err
		}
		a := accts[accountID]
		if err := requireCustomerAccount(a); err != nil {
			return err
		}
		if err := requireActive(a); err != nil {
			return err
		}

		now := s.clock()
		p := ledger.Deposit(a.ID, amount, desc, now)
		if typ == model.TxWithdrawal {
			if a.Balance.LessThan(amount) {
				return fmt.Errorf("%w: account %s has %s", ErrInsufficientFunds, a.Number, money.Format(a.Balance))
			}
			p = ledger.Withdrawal(a.ID, amount, desc, now)
		}
		entry, err := post(ctx, q, p, accts)
		if err != nil {
			return err
		}
		line = statementLine(a, typ, amount, ledger.CashAccountID, id.NewReference(), desc, entry.ID, now)
		if err := q.InsertTransaction(ctx, line); err != nil {
			return err
		}
		return s.audit(ctx, q, actor, "account."+string(typ), a.ID, line.Reference+" "+money.Format(amount))
	})
	if err != nil {
		return model.Transaction{}, fmt.Errorf("%s on %s: %w", typ, accountID, err)
	}
	s.log.Info("cash movement posted",
		zap.String("type", string(typ)),
		zap.String("account_id", accountID),
		zap.String("amount", money.Format(amount)),
		zap.String("admin", actor.UserID))
	return line, nil
}
