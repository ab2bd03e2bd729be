// Package store owns the Postgres schema and every query the service runs
// against it.
package store

import (
	"context"
	"embed"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "store")

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps the shared connection pool. All methods are safe for
// concurrent use; the pool itself is the only state.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres, verifies the connection, and sizes the pool.
func Open(databaseURL string, maxConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle. Tests use this with a mocked driver.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}
	if err := goose.Up(s.db.DB, "migrations"); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	log.Info("database schema is up to date")
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}
