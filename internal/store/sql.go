package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-lookup/internal/weather"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// ErrUnknownDriver is returned for a STORE_DRIVER no store supports.
var ErrUnknownDriver = errors.New("unknown store driver")

// slotID is the primary key of the only row the table holds.
const slotID = 1

const selectColumns = `name, country, state, lat, lon, condition_text, condition_icon,
	temperature, humidity, pressure, feels_like`

// SQLStore implements weather.Store on top of database/sql. The table keeps
// a single row.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open migrates the schema and connects to the database.
func Open(driver, dsn string) (*SQLStore, error) {
	if driver == DriverSQLite {
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	}
	if err := Migrate(driver, dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

// ensureDir creates the parent directory of a plain SQLite file path.
func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory %s: %w", dir, err)
	}
	return nil
}

// Save replaces the stored row with rec.
func (s *SQLStore) Save(ctx context.Context, rec weather.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM last_location"); err != nil {
		return fmt.Errorf("clear last location: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO last_location (id, %s) VALUES (%s)`,
		selectColumns, s.placeholders(12))
	_, err = tx.ExecContext(ctx, query,
		slotID,
		rec.Place.Name,
		rec.Place.Country,
		rec.Place.State,
		rec.Place.Coord.Lat,
		rec.Place.Coord.Lon,
		rec.Condition.Text,
		rec.Condition.Icon,
		rec.Conditions.Temperature,
		rec.Conditions.Humidity,
		rec.Conditions.Pressure,
		rec.Conditions.FeelsLike,
	)
	if err != nil {
		return fmt.Errorf("insert last location: %w", err)
	}

	return tx.Commit()
}

// Load returns the stored record, or the zero Record when the table is empty.
func (s *SQLStore) Load(ctx context.Context) (weather.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM last_location WHERE id = %s", selectColumns, s.placeholders(1))

	var rec weather.Record
	err := s.db.QueryRowContext(ctx, query, slotID).Scan(
		&rec.Place.Name,
		&rec.Place.Country,
		&rec.Place.State,
		&rec.Place.Coord.Lat,
		&rec.Place.Coord.Lon,
		&rec.Condition.Text,
		&rec.Condition.Icon,
		&rec.Conditions.Temperature,
		&rec.Conditions.Humidity,
		&rec.Conditions.Pressure,
		&rec.Conditions.FeelsLike,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Record{}, nil
	}
	if err != nil {
		return weather.Record{}, fmt.Errorf("load last location: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// placeholders returns n bind parameters in the driver's syntax.
func (s *SQLStore) placeholders(n int) string {
	params := make([]string, n)
	for i := range params {
		if s.driver == DriverPostgres {
			params[i] = fmt.Sprintf("$%d", i+1)
		} else {
			params[i] = "?"
		}
	}
	return strings.Join(params, ", ")
}

// New returns the store for driver. The memory driver ignores dsn.
func New(driver, dsn string) (weather.Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres, DriverMySQL:
		if dsn == "" {
			return nil, fmt.Errorf("store driver %s requires STORE_DSN", driver)
		}
		s, err := Open(driver, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
