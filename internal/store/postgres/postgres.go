// Package postgres implements the store interfaces against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ignite/audience-pilot/internal/store"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories need, so the
// same repository code runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the Postgres-backed store.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing database handle. Used by tests.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Accounts() store.Accounts               { return &AccountRepo{q: s.db} }
func (s *Store) Audiences() store.Audiences             { return &AudienceRepo{q: s.db} }
func (s *Store) Metrics() store.Metrics                 { return &MetricRepo{q: s.db} }
func (s *Store) Recommendations() store.Recommendations { return &RecommendationRepo{q: s.db} }
func (s *Store) ActionLogs() store.ActionLogs           { return &ActionLogRepo{q: s.db} }

// Begin opens a transaction exposing the repositories a sync run writes.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &storeTx{tx: tx}, nil
}

type storeTx struct {
	tx *sql.Tx
}

func (t *storeTx) Audiences() store.Audiences { return &AudienceRepo{q: t.tx} }
func (t *storeTx) Metrics() store.Metrics     { return &MetricRepo{q: t.tx} }
func (t *storeTx) Commit() error              { return t.tx.Commit() }
func (t *storeTx) Rollback() error            { return t.tx.Rollback() }
