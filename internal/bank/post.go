package bank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/id"
	"github.com/tellerline/teller/internal/ledger"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/store"
)

// lockAccounts loads the accounts in ID order so that concurrent
// transactions on PostgreSQL always take row locks in the same sequence.
func lockAccounts(ctx context.Context, q *store.Queries, ids ...string) (map[string]*model.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	out := make(map[string]*model.Account, len(sorted))
	for _, accountID := range sorted {
		if _, done := out[accountID]; done {
			continue
		}
		a, err := q.GetAccount(ctx, accountID, true)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
			}
			return nil, fmt.Errorf("loading account %s: %w", accountID, err)
		}
		out[accountID] = &a
	}
	return out, nil
}

// post journals p and applies it to the locked accounts, saving each with a
// version check.
func post(ctx context.Context, q *store.Queries, p ledger.Posting, accts map[string]*model.Account) (model.Entry, error) {
	seq, err := q.NextEntrySeq(ctx, id.Period(p.At))
	if err != nil {
		return model.Entry{}, err
	}
	entry := ledger.Build(seq, p)

	known := make(ledger.AccountSet, len(accts))
	for accountID := range accts {
		known[accountID] = true
	}
	if errs := ledger.ValidateEntry(entry, known); len(errs) > 0 {
		return model.Entry{}, fmt.Errorf("%w: %v", ErrInvalidInput, errs[0])
	}

	if err := q.InsertLegs(ctx, entry.Legs); err != nil {
		return model.Entry{}, err
	}
	for _, leg := range entry.Legs {
		a := accts[leg.AccountID]
		a.Balance = a.Balance.Add(leg.Effect())
		a.UpdatedAt = p.At
		if err := q.SaveAccount(ctx, a); err != nil {
			return model.Entry{}, err
		}
	}
	return entry, nil
}

// statementLine builds the customer-facing record of a posting on acct.
func statementLine(acct *model.Account, typ model.TransactionType, amount decimal.Decimal,
	counterparty, reference, description, entryID string, at time.Time,
) model.Transaction {
	return model.Transaction{
		ID:             newID(),
		Reference:      reference,
		AccountID:      acct.ID,
		CounterpartyID: counterparty,
		Type:           typ,
		Amount:         amount,
		BalanceAfter:   acct.Balance,
		Description:    description,
		EntryID:        entryID,
		CreatedAt:      at,
	}
}

func requireActive(a *model.Account) error {
	if a.Status != model.AccountActive {
		return fmt.Errorf("%w: account %s is %s", ErrInvalidState, a.Number, a.Status)
	}
	return nil
}

func requireCustomerAccount(a *model.Account) error {
	if a.IsSystem() {
		return fmt.Errorf("%w: %s is an internal account", ErrInvalidInput, a.ID)
	}
	return nil
}
