package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tellerline/teller/internal/model"
)

const auditColumns = `id, ts, actor, action, subject, details`

// AuditFilter narrows ListAudit.
type AuditFilter struct {
	Actor  string
	Action string
	Since  time.Time
	Limit  int
	Offset int
}

// InsertAudit appends an audit entry.
func (q *Queries) InsertAudit(ctx context.Context, e model.AuditEntry) error {
	_, err := q.exec(ctx, `INSERT INTO audit_log (`+auditColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC(), e.Actor, e.Action, e.Subject, e.Details)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// ListAudit returns audit entries in time order.
func (q *Queries) ListAudit(ctx context.Context, f AuditFilter) ([]model.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, f.Actor)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if !f.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.Since.UTC())
	}
	query := `SELECT ` + auditColumns + ` FROM audit_log`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query = page(query+` ORDER BY ts, id`, f.Limit, f.Offset)

	var out []model.AuditEntry
	if err := q.selectAll(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	return out, nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
