package ledger

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/money"
)

// Mismatch is an account whose stored balance disagrees with its journal.
type Mismatch struct {
	AccountID string          `json:"account_id"`
	Recorded  decimal.Decimal `json:"recorded"`
	Computed  decimal.Decimal `json:"computed"`
}

// Report is the outcome of Reconcile.
type Report struct {
	Accounts   int               `json:"accounts"`
	Entries    int               `json:"entries"`
	Legs       int               `json:"legs"`
	Total      decimal.Decimal   `json:"total"`
	Mismatches []Mismatch        `json:"mismatches,omitempty"`
	Violations []ValidationError `json:"violations,omitempty"`
}

func (m Mismatch) MarshalJSON() ([]byte, error) {
	type plain Mismatch
	return json.Marshal(struct {
		plain
		Recorded money.Amount `json:"recorded"`
		Computed money.Amount `json:"computed"`
	}{plain(m), money.Amount(m.Recorded), money.Amount(m.Computed)})
}

func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	return json.Marshal(struct {
		plain
		Total money.Amount `json:"total"`
	}{plain(r), money.Amount(r.Total)})
}

// OK reports whether the books balance.
func (r Report) OK() bool {
	return r.Total.IsZero() && len(r.Mismatches) == 0 && len(r.Violations) == 0
}

// Reconcile replays every leg against the stored balances. Each account must
// equal the sum of its leg effects, every entry must balance, and the sum of
// all balances (system accounts included) must be zero.
func Reconcile(accounts []model.Account, legs []model.Leg) Report {
	known := make(AccountSet, len(accounts))
	computed := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		known[a.ID] = true
		computed[a.ID] = decimal.Zero
	}

	groups := make(map[string][]model.Leg)
	var order []string
	for _, leg := range legs {
		g := leg.EntryGroup()
		if _, seen := groups[g]; !seen {
			order = append(order, g)
		}
		groups[g] = append(groups[g], leg)
		computed[leg.AccountID] = computed[leg.AccountID].Add(leg.Effect())
	}

	report := Report{Accounts: len(accounts), Entries: len(order), Legs: len(legs), Total: decimal.Zero}
	for _, g := range order {
		report.Violations = append(report.Violations, checkBalanced(g, groups[g])...)
		for _, leg := range groups[g] {
			report.Violations = append(report.Violations, checkLeg(leg, known)...)
		}
	}

	for _, a := range accounts {
		report.Total = report.Total.Add(a.Balance)
		if got := computed[a.ID]; !got.Equal(a.Balance) {
			report.Mismatches = append(report.Mismatches, Mismatch{AccountID: a.ID, Recorded: a.Balance, Computed: got})
		}
	}
	sort.Slice(report.Mismatches, func(i, j int) bool {
		return report.Mismatches[i].AccountID < report.Mismatches[j].AccountID
	})
	return report
}
