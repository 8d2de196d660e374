package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/money"
)

// TransactionType labels a statement line.
type TransactionType string

const (
	TxDeposit          TransactionType = "deposit"
	TxWithdrawal       TransactionType = "withdrawal"
	TxTransferOut      TransactionType = "transfer_out"
	TxTransferIn       TransactionType = "transfer_in"
	TxLoanDisbursement TransactionType = "loan_disbursement"
	TxOpening          TransactionType = "opening"
)

// Transaction is one statement line on a customer account. Every line points
// at the journal entry that moved the money.
type Transaction struct {
	ID             string          `db:"id" json:"id"`
	Reference      string          `db:"reference" json:"reference"`
	AccountID      string          `db:"account_id" json:"account_id"`
	CounterpartyID string          `db:"counterparty_id" json:"counterparty_id,omitempty"`
	Type           TransactionType `db:"type" json:"type"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter   decimal.Decimal `db:"balance_after" json:"balance_after"`
	Description    string          `db:"description" json:"description,omitempty"`
	EntryID        string          `db:"entry_id" json:"entry_id"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// MarshalJSON renders money fields with two decimal places.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type plain Transaction
	return json.Marshal(struct {
		plain
		Amount       money.Amount `json:"amount"`
		BalanceAfter money.Amount `json:"balance_after"`
	}{plain(t), money.Amount(t.Amount), money.Amount(t.BalanceAfter)})
}
