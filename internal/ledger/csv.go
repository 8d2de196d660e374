package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/id"
	"github.com/tellerline/teller/internal/model"
)

// Header is the CSV header of a journal export.
const Header = "leg_id,posted_at,account_id,description,debit,credit"

const (
	numFields  = 6
	colLegID   = 0
	colPosted  = 1
	colAcctID  = 2
	colDesc    = 3
	colDebit   = 4
	colCredit  = 5
	timeLayout = time.RFC3339Nano
)

// WriteLegs writes legs as CSV (including header).
func WriteLegs(w io.Writer, legs []model.Leg) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, leg := range legs {
		if err := cw.Write(MarshalLeg(leg)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadLegs reads a journal export.
func ReadLegs(r io.Reader) ([]model.Leg, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var legs []model.Leg
	for i, rec := range records[1:] {
		leg, err := UnmarshalLeg(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

// MarshalLeg converts a Leg to a CSV row.
func MarshalLeg(leg model.Leg) []string {
	row := make([]string, numFields)
	row[colLegID] = leg.LegID
	row[colPosted] = leg.PostedAt.UTC().Format(timeLayout)
	row[colAcctID] = leg.AccountID
	row[colDesc] = leg.Description
	if !leg.Debit.IsZero() {
		row[colDebit] = leg.Debit.StringFixed(2)
	}
	if !leg.Credit.IsZero() {
		row[colCredit] = leg.Credit.StringFixed(2)
	}
	return row
}

// UnmarshalLeg converts a CSV row to a Leg.
func UnmarshalLeg(record []string) (model.Leg, error) {
	if len(record) != numFields {
		return model.Leg{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	year, month, seq, err := id.ParseEntryID(record[colLegID])
	if err != nil {
		return model.Leg{}, err
	}

	posted, err := time.Parse(timeLayout, record[colPosted])
	if err != nil {
		return model.Leg{}, fmt.Errorf("parsing posted_at %q: %w", record[colPosted], err)
	}

	var debit, credit decimal.Decimal
	if record[colDebit] != "" {
		debit, err = decimal.NewFromString(record[colDebit])
		if err != nil {
			return model.Leg{}, fmt.Errorf("parsing debit %q: %w", record[colDebit], err)
		}
	}
	if record[colCredit] != "" {
		credit, err = decimal.NewFromString(record[colCredit])
		if err != nil {
			return model.Leg{}, fmt.Errorf("parsing credit %q: %w", record[colCredit], err)
		}
	}

	return model.Leg{
		LegID:       record[colLegID],
		EntryID:     id.EntryGroup(record[colLegID]),
		Period:      fmt.Sprintf("%04d-%02d", year, month),
		Seq:         seq,
		AccountID:   record[colAcctID],
		Description: record[colDesc],
		Debit:       debit,
		Credit:      credit,
		PostedAt:    posted,
	}, nil
}
