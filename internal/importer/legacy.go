package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tellerline/teller/internal/bank"
	"github.com/tellerline/teller/internal/model"
)

var (
	customerColumns = []string{"id", "full_name", "email", "phone", "address", "created_at"}
	accountColumns  = []string{"account_number", "customer_email", "account_type", "balance", "status"}
)

// CustomersParser reads the legacy customers table dump.
type CustomersParser struct{}

// Format returns the parser name.
func (p *CustomersParser) Format() string { return "customers" }

// Parse reads customer rows. Legacy IDs are kept so references survive.
func (p *CustomersParser) Parse(r io.Reader) ([]Row, error) {
	return parseTable(r, customerColumns, func(rec []string) Row {
		c := model.Customer{
			ID:       strings.TrimSpace(rec[0]),
			FullName: strings.TrimSpace(rec[1]),
			Email:    strings.TrimSpace(rec[2]),
			Phone:    strings.TrimSpace(rec[3]),
			Address:  strings.TrimSpace(rec[4]),
		}
		if v := strings.TrimSpace(rec[5]); v != "" {
			t, err := parseLegacyTime(v)
			if err != nil {
				return Row{Err: err}
			}
			c.CreatedAt = t
		}
		return Row{Customer: &c}
	})
}

// AccountsParser reads the legacy accounts table dump.
type AccountsParser struct{}

// Format returns the parser name.
func (p *AccountsParser) Format() string { return "accounts" }

// Parse reads account rows. Balances are parsed as exact decimals.
func (p *AccountsParser) Parse(r io.Reader) ([]Row, error) {
	return parseTable(r, accountColumns, func(rec []string) Row {
		balance, err := decimal.NewFromString(strings.TrimSpace(rec[3]))
		if err != nil {
			return Row{Err: fmt.Errorf("parsing balance %q: %w", rec[3], err)}
		}
		return Row{Account: &bank.ImportAccountInput{
			LegacyNumber:  strings.TrimSpace(rec[0]),
			CustomerEmail: strings.TrimSpace(rec[1]),
			Kind:          model.AccountKind(strings.ToLower(strings.TrimSpace(rec[2]))),
			Balance:       balance,
			Status:        model.AccountStatus(strings.ToLower(strings.TrimSpace(rec[4]))),
		}}
	})
}

// parseTable checks the header against cols and converts each data row.
func parseTable(r io.Reader, cols []string, convert func([]string) Row) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := checkHeader(header, cols); err != nil {
		return nil, err
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rows = append(rows, Row{Line: perr.Line, Err: err})
				continue
			}
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != len(cols) {
			rows = append(rows, Row{Line: line, Err: fmt.Errorf("want %d fields, got %d", len(cols), len(rec))})
			continue
		}
		row := convert(rec)
		row.Line = line
		rows = append(rows, row)
	}
}

func checkHeader(header, cols []string) error {
	if len(header) != len(cols) {
		return fmt.Errorf("header has %d columns, want %s", len(header), strings.Join(cols, ","))
	}
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if !strings.EqualFold(strings.TrimSpace(h), cols[i]) {
			return fmt.Errorf("header column %d is %q, want %q", i+1, h, cols[i])
		}
	}
	return nil
}

// parseLegacyTime accepts the timestamp layouts the hosted backend exported.
func parseLegacyTime(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing created_at %q", v)
}
