package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/id"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/money"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	EntryID     string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.EntryID, e.Description)
}

// AccountChecker tests whether an account ID exists.
type AccountChecker interface {
	Exists(id string) bool
}

// AccountSet is an AccountChecker over a fixed set of IDs.
type AccountSet map[string]bool

// Exists reports whether id is in the set.
func (s AccountSet) Exists(id string) bool { return s[id] }

// ValidateEntry enforces the double-entry invariants on a single entry.
func ValidateEntry(entry model.Entry, accounts AccountChecker) []ValidationError {
	var errs []ValidationError

	year, month, _, err := id.ParseEntryID(entry.ID)
	if err != nil {
		return []ValidationError{{Invariant: 5, EntryID: entry.ID, Description: err.Error()}}
	}
	if len(entry.Legs) < 2 {
		errs = append(errs, ValidationError{
			Invariant:   1,
			EntryID:     entry.ID,
			Description: fmt.Sprintf("entry needs at least 2 legs, got %d", len(entry.Legs)),
		})
	}

	// Invariant 1: sum(debits) == sum(credits).
	errs = append(errs, checkBalanced(entry.ID, entry.Legs)...)

	for i, leg := range entry.Legs {
		errs = append(errs, checkLeg(leg, accounts)...)

		// Invariant 4: posted inside the entry's month.
		if leg.PostedAt.Year() != year || int(leg.PostedAt.Month()) != month {
			errs = append(errs, ValidationError{
				Invariant:   4,
				EntryID:     leg.LegID,
				Description: fmt.Sprintf("posted %s outside %04d-%02d", leg.PostedAt.Format("2006-01-02"), year, month),
			})
		}

		// Invariant 5: legs belong to the entry and are suffixed a, b, c... in order.
		if want := id.FormatLegID(entry.ID, i); leg.LegID != want {
			errs = append(errs, ValidationError{
				Invariant:   5,
				EntryID:     leg.LegID,
				Description: fmt.Sprintf("expected leg ID %s", want),
			})
		}
	}

	return errs
}

func checkBalanced(entryID string, legs []model.Leg) []ValidationError {
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, leg := range legs {
		totalDebit = totalDebit.Add(leg.Debit)
		totalCredit = totalCredit.Add(leg.Credit)
	}
	if totalDebit.Equal(totalCredit) {
		return nil
	}
	return []ValidationError{{
		Invariant:   1,
		EntryID:     entryID,
		Description: fmt.Sprintf("debits (%s) != credits (%s)", money.Format(totalDebit), money.Format(totalCredit)),
	}}
}

// checkLeg covers the per-leg invariants 2, 3 and 6.
func checkLeg(leg model.Leg, accounts AccountChecker) []ValidationError {
	var errs []ValidationError

	// Invariant 2: exactly one of debit/credit, never negative.
	hasDebit := !leg.Debit.IsZero()
	hasCredit := !leg.Credit.IsZero()
	if hasDebit == hasCredit || leg.Debit.IsNegative() || leg.Credit.IsNegative() {
		errs = append(errs, ValidationError{
			Invariant:   2,
			EntryID:     leg.LegID,
			Description: "leg must have exactly one positive debit or credit",
		})
	}

	// Invariant 3: valid account references.
	if accounts != nil && !accounts.Exists(leg.AccountID) {
		errs = append(errs, ValidationError{
			Invariant:   3,
			EntryID:     leg.LegID,
			Description: fmt.Sprintf("unknown account %s", leg.AccountID),
		})
	}

	// Invariant 6: exact cents.
	if !money.WholeCents(leg.Debit) {
		errs = append(errs, ValidationError{
			Invariant:   6,
			EntryID:     leg.LegID,
			Description: fmt.Sprintf("debit %s has more than 2 decimal places", leg.Debit),
		})
	}
	if !money.WholeCents(leg.Credit) {
		errs = append(errs, ValidationError{
			Invariant:   6,
			EntryID:     leg.LegID,
			Description: fmt.Sprintf("credit %s has more than 2 decimal places", leg.Credit),
		})
	}
	return errs
}
