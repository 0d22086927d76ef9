package database

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/courselab/marketplace/config"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a requested entity does not exist. Store
// functions translate sql.ErrNoRows into it so callers never depend on
// driver-level errors.
var ErrNotFound = errors.New("entity not found")

// ErrConflict is returned when a transaction lost against concurrent ones
// even after retrying. It is safe to retry the whole request.
var ErrConflict = errors.New("conflicting concurrent operation, try again")

const (
	pqUniqueViolation      = "23505"
	pqCheckViolation       = "23514"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

func Open(cfg config.DB) (*sqlx.DB, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}

	db, err := sqlx.Connect("postgres", u.String())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return db, nil
}

//go:embed migrations/*.sql
var migrations embed.FS

func Migrate(db *sqlx.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("building the migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("building the migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// Transaction runs fn inside a transaction, committing on nil and rolling
// back on error. fn receives an ExtContext so store functions work the same
// inside and outside transactions.
func Transaction(db *sqlx.DB, fn func(tx sqlx.ExtContext) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction: %v (caused by: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// RetryTransaction re-runs fn when the database aborts the transaction for
// concurrency reasons (serialization failure or deadlock). Business errors
// pass through untouched. After attempts are exhausted the caller gets
// ErrConflict, never partial effects.
func RetryTransaction(db *sqlx.DB, attempts int, fn func(tx sqlx.ExtContext) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = Transaction(db, fn)
		if err == nil || !Retryable(err) {
			return err
		}
	}

	return fmt.Errorf("%w: %v", ErrConflict, err)
}

func Retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

// IsUniqueViolation reports whether err is a unique or primary key
// constraint violation. Stores rely on it to turn insert races into their
// business errors.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqCheckViolation
}
