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

// MaxLoanTermMonths is the longest term offered.
const MaxLoanTermMonths = 360

// LoanInput is a loan application. The rate is set by the bank.
type LoanInput struct {
	AccountID  string          `json:"account_id"`
	Kind       model.LoanKind  `json:"kind"`
	Principal  decimal.Decimal `json:"principal"`
	TermMonths int             `json:"term_months"`
}

// ApplyLoan files a loan application against one of the customer's active
// accounts.
func (s *Service) ApplyLoan(ctx context.Context, actor Actor, in LoanInput) (model.Loan, error) {
	if err := actor.requireCustomer(); err != nil {
		return model.Loan{}, err
	}
	if !in.Kind.Valid() {
		return model.Loan{}, fmt.Errorf("%w: loan kind %q", ErrInvalidInput, in.Kind)
	}
	if err := money.Validate(in.Principal); err != nil {
		return model.Loan{}, err
	}
	if limit := s.opts.MaxLoan; limit.IsPositive() && in.Principal.GreaterThan(limit) {
		return model.Loan{}, fmt.Errorf("%w: loans are capped at %s", ErrLimitExceeded, money.Format(limit))
	}
	if in.TermMonths < 1 || in.TermMonths > MaxLoanTermMonths {
		return model.Loan{}, fmt.Errorf("%w: term must be 1-%d months", ErrInvalidInput, MaxLoanTermMonths)
	}

	a, err := s.GetAccount(ctx, actor, in.AccountID)
	if err != nil {
		return model.Loan{}, err
	}
	if err := requireActive(&a); err != nil {
		return model.Loan{}, err
	}

	l := model.Loan{
		ID:         newID(),
		CustomerID: actor.CustomerID,
		AccountID:  a.ID,
		Kind:       in.Kind,
		Principal:  in.Principal,
		TermMonths: in.TermMonths,
		AnnualRate: s.opts.DefaultLoanRate,
		Status:     model.DecisionPending,
		CreatedAt:  s.clock(),
	}
	if err := s.store.Queries().InsertLoan(ctx, l); err != nil {
		return model.Loan{}, fmt.Errorf("applying for loan: %w", err)
	}
	s.log.Info("loan application filed", zap.String("loan_id", l.ID), zap.String("customer_id", l.CustomerID))
	return l, nil
}

// ListLoans returns the customer's loans, or every loan for admins.
func (s *Service) ListLoans(ctx context.Context, actor Actor, status model.Decision) ([]model.Loan, error) {
	f := store.ReviewFilter{Status: status}
	if !actor.IsAdmin() {
		if err := actor.requireCustomer(); err != nil {
			return nil, err
		}
		f.CustomerID = actor.CustomerID
	}
	return s.store.Queries().ListLoans(ctx, f)
}

// ApproveLoan approves a pending loan and pays the principal from the loans
// receivable account into the customer's account.
func (s *Service) ApproveLoan(ctx context.Context, actor Actor, loanID string) (model.Loan, error) {
	if err := actor.requireAdmin(); err != nil {
		return model.Loan{}, err
	}
	var out model.Loan
	err := s.inTx(ctx, "approve_loan", func(q *store.Queries) error {
		l, err := q.GetLoan(ctx, loanID)
		if err != nil {
			return fmt.Errorf("loan %s: %w", loanID, err)
		}
		if l.Status != model.DecisionPending {
			return fmt.Errorf("%w: loan is already %s", ErrInvalidState, l.Status)
		}
		accts, err := lockAccounts(ctx, q, l.AccountID, ledger.LoansAccountID)
		if err != nil {
			return err
		}
		a := accts[l.AccountID]
		if err := requireActive(a); err != nil {
			return err
		}

		now := s.clock()
		desc := fmt.Sprintf("%s loan disbursement", l.Kind)
		entry, err := post(ctx, q, ledger.Disbursement(a.ID, l.Principal, desc, now), accts)
		if err != nil {
			return err
		}
		line := statementLine(a, model.TxLoanDisbursement, l.Principal, ledger.LoansAccountID, id.NewReference(), desc, entry.ID, now)
		if err := q.InsertTransaction(ctx, line); err != nil {
			return err
		}

		l.Status = model.DecisionApproved
		l.DecidedBy = actor.UserID
		l.DecidedAt = &now
		l.EntryID = entry.ID
		if err := q.DecideLoan(ctx, l); err != nil {
			return err
		}
		out = l
		return s.audit(ctx, q, actor, "loan.approve", l.ID, "disbursed "+money.Format(l.Principal)+" in "+entry.ID)
	})
	if err != nil {
		return model.Loan{}, fmt.Errorf("approving loan %s: %w", loanID, err)
	}
	s.log.Info("loan approved", zap.String("loan_id", loanID), zap.String("admin", actor.UserID))
	return out, nil
}

// RejectLoan declines a pending loan. A note explaining why is required.
func (s *Service) RejectLoan(ctx context.Context, actor Actor, loanID, note string) (model.Loan, error) {
	if err := actor.requireAdmin(); err != nil {
		return model.Loan{}, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return model.Loan{}, fmt.Errorf("%w: a rejection note is required", ErrInvalidInput)
	}
	var out model.Loan
	err := s.inTx(ctx, "reject_loan", func(q *store.Queries) error {
		l, err := q.GetLoan(ctx, loanID)
		if err != nil {
			return fmt.Errorf("loan %s: %w", loanID, err)
		}
		if l.Status != model.DecisionPending {
			return fmt.Errorf("%w: loan is already %s", ErrInvalidState, l.Status)
		}
		now := s.clock()
		l.Status = model.DecisionRejected
		l.DecidedBy = actor.UserID
		l.DecisionNote = note
		l.DecidedAt = &now
		if err := q.DecideLoan(ctx, l); err != nil {
			return err
		}
		out = l
		return s.audit(ctx, q, actor, "loan.reject", l.ID, note)
	})
	if err != nil {
		return model.Loan{}, fmt.Errorf("rejecting loan %s: %w", loanID, err)
	}
	s.log.Info("loan rejected", zap.String("loan_id", loanID), zap.String("admin", actor.UserID))
	return out, nil
}
