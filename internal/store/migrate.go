package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/i474232898/weather-lookup/internal/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate brings the schema for driver up to date. It uses its own
// connection, which the migrator closes when done.
func Migrate(driver, dsn string) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open %s for migration: %w", driver, err)
	}

	target, err := migrationDriver(driver, db)
	if err != nil {
		db.Close()
		return err
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		target.Close()
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		src.Close()
		target.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debugf("store: %s schema is up to date", driver)
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	logger.Infof("store: %s schema migrated", driver)
	return nil
}

func migrationDriver(driver string, db *sql.DB) (database.Driver, error) {
	var (
		d   database.Driver
		err error
	)
	switch driver {
	case DriverSQLite:
		d, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case DriverPostgres:
		d, err = postgres.WithInstance(db, &postgres.Config{})
	case DriverMySQL:
		d, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("prepare %s migration driver: %w", driver, err)
	}
	return d, nil
}
