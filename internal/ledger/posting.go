// Package ledger builds and checks double-entry journal entries.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/id"
	"github.com/tellerline/teller/internal/model"
)

// System account IDs. Customer money enters and leaves the books through them,
// so their balances are usually negative.
const (
	CashAccountID  = "SYS-CASH"
	LoansAccountID = "SYS-LOANS"
)

// SystemAccounts returns the internal accounts every ledger starts with.
func SystemAccounts(currency string, now time.Time) []model.Account {
	mk := func(accountID, number string) model.Account {
		return model.Account{
			ID:        accountID,
			Number:    number,
			Kind:      model.AccountKindSystem,
			Status:    model.AccountActive,
			Currency:  currency,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return []model.Account{
		mk(CashAccountID, "0000000000"),
		mk(LoansAccountID, "0000000001"),
	}
}

// Posting moves Amount from the From account (debited) to the To account (credited).
type Posting struct {
	From        string
	To          string
	Amount      decimal.Decimal
	Description string
	At          time.Time
}

// Build turns a posting into a two-leg entry numbered seq within its month.
func Build(seq int, p Posting) model.Entry {
	entryID := id.FormatEntryID(p.At.Year(), int(p.At.Month()), seq)
	period := id.Period(p.At)
	return model.Entry{
		ID: entryID,
		Legs: []model.Leg{
			{
				LegID:       id.FormatLegID(entryID, 0),
				EntryID:     entryID,
				Period:      period,
				Seq:         seq,
				AccountID:   p.From,
				Debit:       p.Amount,
				Description: p.Description,
				PostedAt:    p.At,
			},
			{
				LegID:       id.FormatLegID(entryID, 1),
				EntryID:     entryID,
				Period:      period,
				Seq:         seq,
				AccountID:   p.To,
				Credit:      p.Amount,
				Description: p.Description,
				PostedAt:    p.At,
			},
		},
	}
}

// Transfer moves money between two customer accounts.
func Transfer(from, to string, amount decimal.Decimal, description string, at time.Time) Posting {
	return Posting{From: from, To: to, Amount: amount, Description: description, At: at}
}

// Deposit brings cash into accountID from the vault.
func Deposit(accountID string, amount decimal.Decimal, description string, at time.Time) Posting {
	return Posting{From: CashAccountID, To: accountID, Amount: amount, Description: description, At: at}
}

// Withdrawal pays cash out of accountID back to the vault.
func Withdrawal(accountID string, amount decimal.Decimal, description string, at time.Time) Posting {
	return Posting{From: accountID, To: CashAccountID, Amount: amount, Description: description, At: at}
}

// Opening posts the initial deposit held on a newly approved account.
func Opening(accountID string, amount decimal.Decimal, at time.Time) Posting {
	return Posting{From: CashAccountID, To: accountID, Amount: amount, Description: "opening deposit", At: at}
}

// Disbursement pays an approved loan's principal into accountID.
func Disbursement(accountID string, amount decimal.Decimal, description string, at time.Time) Posting {
	return Posting{From: LoansAccountID, To: accountID, Amount: amount, Description: description, At: at}
}
