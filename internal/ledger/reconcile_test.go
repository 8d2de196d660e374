package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerline/teller/internal/model"
)

func TestReconcile_Balanced(t *testing.T) {
	opening := Build(1, Posting{From: CashAccountID, To: "acct-a", Amount: dec("100.00"), At: date(2025, 1, 2)})
	move := Build(2, Posting{From: "acct-a", To: "acct-b", Amount: dec("40.00"), At: date(2025, 1, 3)})

	accounts := []model.Account{
		{ID: CashAccountID, Kind: model.AccountKindSystem, Balance: dec("-100.00")},
		{ID: "acct-a", Balance: dec("60.00")},
		{ID: "acct-b", Balance: dec("40.00")},
	}
	legs := append(opening.Legs, move.Legs...)

	r := Reconcile(accounts, legs)
	assert.True(t, r.OK(), "report: %+v", r)
	assert.Equal(t, 3, r.Accounts)
	assert.Equal(t, 2, r.Entries)
	assert.Equal(t, 4, r.Legs)
	assert.True(t, r.Total.IsZero())
}

func TestReconcile_Mismatch(t *testing.T) {
	opening := Build(1, Posting{From: CashAccountID, To: "acct-a", Amount: dec("100.00"), At: date(2025, 1, 2)})
	accounts := []model.Account{
		{ID: CashAccountID, Balance: dec("-100.00")},
		{ID: "acct-a", Balance: dec("150.00")},
	}

	r := Reconcile(accounts, opening.Legs)
	assert.False(t, r.OK())
	require.Len(t, r.Mismatches, 1)
	assert.Equal(t, "acct-a", r.Mismatches[0].AccountID)
	assert.Equal(t, "100.00", r.Mismatches[0].Computed.StringFixed(2))
	assert.Equal(t, "50.00", r.Total.StringFixed(2))
}

func TestReconcile_UnbalancedEntry(t *testing.T) {
	e := Build(1, Posting{From: CashAccountID, To: "acct-a", Amount: dec("10.00"), At: date(2025, 1, 2)})
	e.Legs[1].Credit = dec("12.00")
	accounts := []model.Account{
		{ID: CashAccountID, Balance: dec("-10.00")},
		{ID: "acct-a", Balance: dec("12.00")},
	}

	r := Reconcile(accounts, e.Legs)
	assert.False(t, r.OK())
	assert.True(t, hasInvariant(r.Violations, 1))
}

func TestSystemAccounts(t *testing.T) {
	accts := SystemAccounts("USD", date(2025, 1, 1))
	require.Len(t, accts, 2)
	for _, a := range accts {
		assert.True(t, a.IsSystem())
		assert.Equal(t, model.AccountActive, a.Status)
		assert.True(t, a.Balance.IsZero())
	}
	assert.Equal(t, CashAccountID, accts[0].ID)
	assert.Equal(t, LoansAccountID, accts[1].ID)
}

func TestPostingBuilders(t *testing.T) {
	at := date(2025, 3, 4)
	amt := dec("25.00")

	tests := []struct {
		name     string
		posting  Posting
		from, to string
	}{
		{"transfer", Transfer("a", "b", amt, "x", at), "a", "b"},
		{"deposit", Deposit("a", amt, "x", at), CashAccountID, "a"},
		{"withdrawal", Withdrawal("a", amt, "x", at), "a", CashAccountID},
		{"opening", Opening("a", amt, at), CashAccountID, "a"},
		{"disbursement", Disbursement("a", amt, "x", at), LoansAccountID, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.from, tt.posting.From)
			assert.Equal(t, tt.to, tt.posting.To)
			e := Build(3, tt.posting)
			assert.Empty(t, ValidateEntry(e, AccountSet{"a": true, "b": true, CashAccountID: true, LoansAccountID: true}))
		})
	}
}

func TestReportJSON(t *testing.T) {
	r := Report{
		Accounts:   2,
		Total:      dec("0"),
		Mismatches: []Mismatch{{AccountID: "acct-a", Recorded: dec("10.5"), Computed: dec("10")}},
	}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"total":"0.00"`)
	assert.Contains(t, string(b), `"recorded":"10.50"`)
	assert.Contains(t, string(b), `"computed":"10.00"`)
	assert.Contains(t, string(b), `"accounts":2`)
}
