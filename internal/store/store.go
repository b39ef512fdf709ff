// Package store is the Postgres storage layer: one Table per entity plus
// transaction handling. Reads take an explicit Querier so the same accessor
// serves the connection pool and a mutation's transaction.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/hanpama/graphpress/internal/errs"
	"github.com/hanpama/graphpress/internal/eventbus"
	"github.com/hanpama/graphpress/internal/events"
)

//go:embed schema.sql
var ddl string

// Config holds connection pool settings.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Store bundles the tables over one connection pool.
type Store struct {
	db       *sql.DB
	Users    *Table[User]
	Posts    *Table[Post]
	Comments *Table[Comment]
}

// New wraps an open pool.
func New(db *sql.DB) *Store {
	return &Store{db: db, Users: Users, Posts: Posts, Comments: Comments}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *logrus.Logger) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.WithFields(logrus.Fields{
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime,
	}).Info("Database connected")
	return New(db), nil
}

// DB returns the pool for reads outside a transaction.
func (s *Store) DB() Querier { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Transaction runs fn inside one transaction. It commits when fn returns nil
// and rolls back on error or panic; the rollback happens before the error is
// returned.
func (s *Store) Transaction(ctx context.Context, fn func(tx Querier) error) (err error) {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	outcome := events.TxRolledBack
	defer func() {
		eventbus.Publish(ctx, events.Transaction{Outcome: outcome, Duration: time.Since(start), Err: err})
	}()
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	outcome = events.TxCommitted
	return nil
}

// translate classifies driver errors that stem from bad input.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Name() {
	case "unique_violation":
		return errs.Wrap(errs.ValidationFailure, err, "already exists")
	case "foreign_key_violation":
		return errs.Wrap(errs.ValidationFailure, err, "references a missing row")
	case "not_null_violation", "check_violation", "string_data_right_truncation":
		return errs.Wrap(errs.ValidationFailure, err, "invalid value")
	}
	return err
}
