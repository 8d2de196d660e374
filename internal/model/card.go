package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/money"
)

// CardKind is the card product.
type CardKind string

const (
	CardDebit  CardKind = "debit"
	CardCredit CardKind = "credit"
)

// Valid reports whether k is a known card product.
func (k CardKind) Valid() bool {
	return k == CardDebit || k == CardCredit
}

// CardApplication tracks a card request through review. The full PAN is
// never stored.
type CardApplication struct {
	ID          string          `db:"id" json:"id"`
	CustomerID  string          `db:"customer_id" json:"customer_id"`
	AccountID   string          `db:"account_id" json:"account_id"`
	Kind        CardKind        `db:"kind" json:"kind"`
	Status      Decision        `db:"status" json:"status"`
	MaskedPAN   string          `db:"masked_pan" json:"masked_pan,omitempty"`
	CreditLimit decimal.Decimal `db:"credit_limit" json:"credit_limit"`
	DecidedBy   string          `db:"decided_by" json:"decided_by,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	DecidedAt   *time.Time      `db:"decided_at" json:"decided_at,omitempty"`
}

// MarshalJSON renders the credit limit with two decimal places.
func (c CardApplication) MarshalJSON() ([]byte, error) {
	type plain CardApplication
	return json.Marshal(struct {
		plain
		CreditLimit money.Amount `json:"credit_limit"`
	}{plain(c), money.Amount(c.CreditLimit)})
}
