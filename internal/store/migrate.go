package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationFS embed.FS

// Migrate brings the schema up to date. It uses its own connection because
// the migrate drivers close the handle they are given.
func Migrate(ctx context.Context, driver, dsn string) (uint, error) {
	d, err := ParseDialect(driver)
	if err != nil {
		return 0, err
	}
	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return 0, fmt.Errorf("opening %s database: %w", d, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return 0, fmt.Errorf("connecting to %s database: %w", d, err)
	}

	var drv database.Driver
	switch d {
	case Postgres:
		drv, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		drv, err = sqlite.WithInstance(db, &sqlite.Config{})
	}
	if err != nil {
		db.Close()
		return 0, fmt.Errorf("preparing migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations/"+string(d))
	if err != nil {
		drv.Close()
		return 0, fmt.Errorf("loading migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(d), drv)
	if err != nil {
		src.Close()
		drv.Close()
		return 0, fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("applying migrations: %w", err)
	}
	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
