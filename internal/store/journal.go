package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/tellerline/teller/internal/model"
)

const legColumns = `leg_id, entry_id, period, seq, account_id, debit, credit, description, posted_at`

// LegFilter narrows ListLegs.
type LegFilter struct {
	AccountID string
	Period    string // "YYYY-MM"
}

// NextEntrySeq returns the next free entry sequence in period. Two writers
// that draw the same number collide on the leg primary key and get
// ErrConflict.
func (q *Queries) NextEntrySeq(ctx context.Context, period string) (int, error) {
	var last int
	if err := q.get(ctx, &last, `SELECT COALESCE(MAX(seq), 0) FROM journal_legs WHERE period = ?`, period); err != nil {
		return 0, fmt.Errorf("reading entry sequence for %s: %w", period, err)
	}
	return last + 1, nil
}

// InsertLegs writes every leg of an entry.
func (q *Queries) InsertLegs(ctx context.Context, legs []model.Leg) error {
	for _, l := range legs {
		_, err := q.exec(ctx, `INSERT INTO journal_legs (`+legColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.LegID, l.EntryID, l.Period, l.Seq, l.AccountID, l.Debit, l.Credit, l.Description, l.PostedAt.UTC())
		if err != nil {
			return fmt.Errorf("inserting leg %s: %w", l.LegID, err)
		}
	}
	return nil
}

// ListLegs returns legs in journal order.
func (q *Queries) ListLegs(ctx context.Context, f LegFilter) ([]model.Leg, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Period != "" {
		where = append(where, "period = ?")
		args = append(args, f.Period)
	}
	query := `SELECT ` + legColumns + ` FROM journal_legs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY period, seq, leg_id`

	var out []model.Leg
	if err := q.selectAll(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("listing journal legs: %w", err)
	}
	return out, nil
}
