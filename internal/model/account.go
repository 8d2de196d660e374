package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/money"
)

// AccountKind classifies accounts held at the bank.
type AccountKind string

const (
	AccountKindChecking AccountKind = "checking"
	AccountKindSavings  AccountKind = "savings"
	AccountKindSystem   AccountKind = "system"
)

// Valid reports whether k can be opened by a customer.
func (k AccountKind) Valid() bool {
	return k == AccountKindChecking || k == AccountKindSavings
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountPending  AccountStatus = "pending"
	AccountActive   AccountStatus = "active"
	AccountRejected AccountStatus = "rejected"
	AccountFrozen   AccountStatus = "frozen"
	AccountClosed   AccountStatus = "closed"
)

var accountTransitions = map[AccountStatus][]AccountStatus{
	AccountPending: {AccountActive, AccountRejected},
	AccountActive:  {AccountFrozen, AccountClosed},
	AccountFrozen:  {AccountActive, AccountClosed},
}

// CanTransition reports whether an account may move from s to next.
func (s AccountStatus) CanTransition(next AccountStatus) bool {
	for _, allowed := range accountTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Account is a row in the accounts table.
//
// Balance only changes through journal postings. Version is bumped on every
// write and guards concurrent updates.
type Account struct {
	ID             string          `db:"id" json:"id"`
	Number         string          `db:"number" json:"number"`
	CustomerID     string          `db:"customer_id" json:"customer_id,omitempty"`
	Kind           AccountKind     `db:"kind" json:"kind"`
	Status         AccountStatus   `db:"status" json:"status"`
	Currency       string          `db:"currency" json:"currency"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	OpeningDeposit decimal.Decimal `db:"opening_deposit" json:"opening_deposit"`
	Version        int64           `db:"version" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// MarshalJSON renders money fields with two decimal places.
func (a Account) MarshalJSON() ([]byte, error) {
	type plain Account
	return json.Marshal(struct {
		plain
		Balance        money.Amount `json:"balance"`
		OpeningDeposit money.Amount `json:"opening_deposit"`
	}{plain(a), money.Amount(a.Balance), money.Amount(a.OpeningDeposit)})
}

// IsSystem reports whether the account is an internal bank account.
func (a Account) IsSystem() bool {
	return a.Kind == AccountKindSystem
}

// OwnedBy reports whether the account belongs to customerID.
func (a Account) OwnedBy(customerID string) bool {
	return customerID != "" && a.CustomerID == customerID
}
