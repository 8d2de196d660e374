// Package store persists customers, accounts, the journal and the review
// queues in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL driver and its quirks.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect validates a configured driver name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case SQLite, Postgres:
		return Dialect(s), nil
	case "sqlite3":
		return SQLite, nil
	case "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

// bindName is the name sqlx uses to pick a placeholder style.
func (d Dialect) bindName() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite3"
}

// Store is the database handle shared by the service.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// Open connects to the database. SQLite is limited to one connection so that
// writers queue instead of failing with SQLITE_BUSY.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", d, err)
	}
	if d == SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", d, err)
	}
	return New(db, d), nil
}

// New wraps an existing handle.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: sqlx.NewDb(db, d.bindName()), dialect: d}
}

// Dialect reports which database the store talks to.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Queries returns a query set that runs outside any transaction.
func (s *Store) Queries() *Queries {
	return &Queries{ext: s.db, dialect: s.dialect}
}

// InTx runs fn inside one transaction. It commits when fn returns nil and
// rolls back on error or panic.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	return s.inTx(ctx, nil, fn)
}

// InReadTx runs read-only fn against a single snapshot of the database.
// PostgreSQL's default READ COMMITTED takes a fresh snapshot per statement,
// so it is raised to REPEATABLE READ there. SQLite already reads from one
// snapshot per transaction.
func (s *Store) InReadTx(ctx context.Context, fn func(q *Queries) error) error {
	return s.inTx(ctx, readTxOptions(s.dialect), fn)
}

func readTxOptions(d Dialect) *sql.TxOptions {
	if d == Postgres {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, opts *sql.TxOptions, fn func(q *Queries) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Queries{ext: tx, dialect: s.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

// Queries holds the repository methods. It is bound either to the database
// or to a transaction.
type Queries struct {
	ext     sqlx.ExtContext
	dialect Dialect
}

func (q *Queries) get(ctx context.Context, dest any, query string, args ...any) error {
	return mapErr(sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...))
}

func (q *Queries) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return mapErr(sqlx.SelectContext(ctx, q.ext, dest, q.ext.Rebind(query), args...))
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
	return res, mapErr(err)
}

// execOne runs an update that must touch exactly one row. Zero rows means a
// concurrent writer got there first.
func (q *Queries) execOne(ctx context.Context, query string, args ...any) error {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// page appends LIMIT/OFFSET when limit is positive.
func page(query string, limit, offset int) string {
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", offset)
		}
	}
	return query
}
