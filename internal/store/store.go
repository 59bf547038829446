// Package store defines the persistence interfaces for accounts, audiences,
// metric windows, recommendations, and action logs. Implementations live in
// the postgres and memory subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/audience-pilot/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Accounts manages connected ad accounts.
type Accounts interface {
	Get(ctx context.Context, id string) (*domain.Account, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	TouchLastSynced(ctx context.Context, id string, at time.Time) error
}

// Audiences manages tracked ad sets. Upsert keys on (account_id, external_id)
// and reports whether the row was newly created.
type Audiences interface {
	Get(ctx context.Context, id string) (*domain.Audience, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Audience, error)
	Upsert(ctx context.Context, a *domain.Audience) (created bool, err error)
}

// Metrics manages trailing metric windows, keyed by
// (audience_id, snapshot_date, window_days).
type Metrics interface {
	UpsertWindow(ctx context.Context, w *domain.MetricWindow) error
	// Latest returns the most recent window of the given length for the
	// audience, or ErrNotFound.
	Latest(ctx context.Context, audienceID string, windowDays int) (*domain.MetricWindow, error)
	// Trailing returns up to limit windows of the given length for the
	// audience, newest first.
	Trailing(ctx context.Context, audienceID string, windowDays, limit int) ([]domain.MetricWindow, error)
	// LatestByAccount returns each audience's most recent window of the
	// given length across the whole account.
	LatestByAccount(ctx context.Context, accountID string, windowDays int) ([]domain.MetricWindow, error)
}

// Recommendations manages the append-only recommendation history.
type Recommendations interface {
	Create(ctx context.Context, rec *domain.Recommendation) error
	ListByAudience(ctx context.Context, audienceID string, limit int) ([]domain.Recommendation, error)
	// LastScaleAt returns the generated-at time of the audience's most
	// recent SCALE recommendation, or nil when none exists.
	LastScaleAt(ctx context.Context, audienceID string) (*time.Time, error)
}

// ActionLogs manages the decision feedback loop.
type ActionLogs interface {
	Create(ctx context.Context, log *domain.ActionLog) error
	// DueForOutcome returns logs old enough for a 3-day or 7-day outcome
	// backfill that have not yet received it.
	DueForOutcome(ctx context.Context, now time.Time) ([]domain.ActionLog, error)
	SetOutcome(ctx context.Context, id string, windowDays int, m domain.MetricsSummary, at time.Time) error
}

// Tx is the transactional surface of one sync run. Either Commit or Rollback
// must be called exactly once.
type Tx interface {
	Audiences() Audiences
	Metrics() Metrics
	Commit() error
	Rollback() error
}

// Store bundles the repositories behind one handle.
type Store interface {
	Accounts() Accounts
	Audiences() Audiences
	Metrics() Metrics
	Recommendations() Recommendations
	ActionLogs() ActionLogs
	Begin(ctx context.Context) (Tx, error)
}
