package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Leg is one side of a double-entry journal entry. A debit lowers the
// account balance and a credit raises it.
type Leg struct {
	LegID       string          `db:"leg_id"`      // "YYYY-MM-NNNNNNx" where x = a,b,c...
	EntryID     string          `db:"entry_id"`    // leg ID without the suffix
	Period      string          `db:"period"`      // "YYYY-MM"
	Seq         int             `db:"seq"`         // entry sequence within the period
	AccountID   string          `db:"account_id"`  //nolint:revive
	Debit       decimal.Decimal `db:"debit"`       // zero if credit side
	Credit      decimal.Decimal `db:"credit"`      // zero if debit side
	Description string          `db:"description"` //nolint:revive
	PostedAt    time.Time       `db:"posted_at"`
}

// EntryGroup returns the base entry ID (without leg suffix).
// "2025-01-000001a" -> "2025-01-000001"
func (l Leg) EntryGroup() string {
	id := l.LegID
	i := len(id)
	for i > 0 && id[i-1] >= 'a' && id[i-1] <= 'z' {
		i--
	}
	return id[:i]
}

// Effect is the signed change the leg applies to its account balance.
func (l Leg) Effect() decimal.Decimal {
	return l.Credit.Sub(l.Debit)
}

// Entry groups the legs posted together.
type Entry struct {
	ID   string
	Legs []Leg
}
