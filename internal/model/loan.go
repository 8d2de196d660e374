package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/money"
)

// Decision is the review state shared by loan and card applications.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// LoanKind is the product a customer applies for.
type LoanKind string

const (
	LoanPersonal  LoanKind = "personal"
	LoanHome      LoanKind = "home"
	LoanAuto      LoanKind = "auto"
	LoanEducation LoanKind = "education"
)

// Valid reports whether k is a known loan product.
func (k LoanKind) Valid() bool {
	switch k {
	case LoanPersonal, LoanHome, LoanAuto, LoanEducation:
		return true
	}
	return false
}

// Loan is a loan application and, once approved, the disbursed loan.
type Loan struct {
	ID           string          `db:"id" json:"id"`
	CustomerID   string          `db:"customer_id" json:"customer_id"`
	AccountID    string          `db:"account_id" json:"account_id"`
	Kind         LoanKind        `db:"kind" json:"kind"`
	Principal    decimal.Decimal `db:"principal" json:"principal"`
	TermMonths   int             `db:"term_months" json:"term_months"`
	AnnualRate   decimal.Decimal `db:"annual_rate" json:"annual_rate"` // percent, e.g. 7.5
	Status       Decision        `db:"status" json:"status"`
	DecidedBy    string          `db:"decided_by" json:"decided_by,omitempty"`
	DecisionNote string          `db:"decision_note" json:"decision_note,omitempty"`
	EntryID      string          `db:"entry_id" json:"entry_id,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	DecidedAt    *time.Time      `db:"decided_at" json:"decided_at,omitempty"`
}

// MarshalJSON renders the principal with two decimal places and adds the
// monthly instalment.
func (l Loan) MarshalJSON() ([]byte, error) {
	type plain Loan
	return json.Marshal(struct {
		plain
		Principal      money.Amount `json:"principal"`
		MonthlyPayment money.Amount `json:"monthly_payment"`
	}{plain(l), money.Amount(l.Principal), money.Amount(l.MonthlyPayment())})
}

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// MonthlyPayment returns the fixed amortised instalment rounded to cents.
func (l Loan) MonthlyPayment() decimal.Decimal {
	if l.TermMonths <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(l.TermMonths))
	if l.AnnualRate.IsZero() {
		return l.Principal.Div(n).Round(2)
	}
	r := l.AnnualRate.Div(hundred).Div(twelve)
	growth := decimal.NewFromInt(1)
	onePlusR := r.Add(decimal.NewFromInt(1))
	for i := 0; i < l.TermMonths; i++ {
		growth = growth.Mul(onePlusR)
	}
	return l.Principal.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1))).Round(2)
}
