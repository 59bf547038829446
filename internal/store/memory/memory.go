// Package memory implements the store interfaces with in-process maps. It
// backs tests and token-free local runs; transactions stage writes and apply
// them on commit so rollback semantics match the Postgres store.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/store"
)

// Store is the in-memory store.
type Store struct {
	mu              sync.RWMutex
	accounts        map[string]domain.Account
	audiences       map[string]domain.Audience
	windows         map[string]domain.MetricWindow
	recommendations []domain.Recommendation
	actionLogs      map[string]domain.ActionLog
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:   make(map[string]domain.Account),
		audiences:  make(map[string]domain.Audience),
		windows:    make(map[string]domain.MetricWindow),
		actionLogs: make(map[string]domain.ActionLog),
	}
}

func (s *Store) Accounts() store.Accounts               { return &accountRepo{s: s} }
func (s *Store) Audiences() store.Audiences             { return &audienceRepo{s: s} }
func (s *Store) Metrics() store.Metrics                 { return &metricRepo{s: s} }
func (s *Store) Recommendations() store.Recommendations { return &recommendationRepo{s: s} }
func (s *Store) ActionLogs() store.ActionLogs           { return &actionLogRepo{s: s} }

// Begin opens a staging transaction. Writes are buffered and merged into the
// store on Commit; Rollback discards them.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	return &memTx{
		s:         s,
		audiences: make(map[string]domain.Audience),
		windows:   make(map[string]domain.MetricWindow),
	}, nil
}

func windowKey(audienceID string, date time.Time, days int) string {
	return audienceID + "|" + date.Format("2006-01-02") + "|" + strconv.Itoa(days)
}

// --- accounts ---

type accountRepo struct{ s *Store }

func (r *accountRepo) Get(ctx context.Context, id string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (r *accountRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if a.ExternalID == externalID {
			out := a
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *accountRepo) List(ctx context.Context) ([]domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *accountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.accounts[a.ID] = *a
	return nil
}

func (r *accountRepo) TouchLastSynced(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.LastSyncedAt = &at
	a.UpdatedAt = time.Now().UTC()
	r.s.accounts[id] = a
	return nil
}

// --- audiences ---

type audienceRepo struct {
	s  *Store
	tx *memTx
}

func (r *audienceRepo) find(pred func(domain.Audience) bool) *domain.Audience {
	if r.tx != nil {
		for _, a := range r.tx.audiences {
			if pred(a) {
				out := a
				return &out
			}
		}
	}
	for _, a := range r.s.audiences {
		if pred(a) {
			out := a
			return &out
		}
	}
	return nil
}

func (r *audienceRepo) Get(ctx context.Context, id string) (*domain.Audience, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if a := r.find(func(a domain.Audience) bool { return a.ID == id }); a != nil {
		return a, nil
	}
	return nil, store.ErrNotFound
}

func (r *audienceRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Audience, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Audience
	for _, a := range r.s.audiences {
		if a.AccountID == accountID {
			out = append(out, a)
		}
	}
	if r.tx != nil {
		for _, a := range r.tx.audiences {
			if a.AccountID == accountID {
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *audienceRepo) Upsert(ctx context.Context, a *domain.Audience) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing := r.find(func(e domain.Audience) bool {
		return e.AccountID == a.AccountID && e.ExternalID == a.ExternalID
	})
	now := time.Now().UTC()
	created := existing == nil
	if created {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.CreatedAt = now
	} else {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	}
	a.UpdatedAt = now

	if r.tx != nil {
		r.tx.audiences[a.ID] = *a
	} else {
		r.s.audiences[a.ID] = *a
	}
	return created, nil
}

// --- metric windows ---

type metricRepo struct {
	s  *Store
	tx *memTx
}

func (r *metricRepo) UpsertWindow(ctx context.Context, w *domain.MetricWindow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	key := windowKey(w.AudienceID, w.SnapshotDate, w.WindowDays)
	if r.tx != nil {
		r.tx.windows[key] = *w
	} else {
		r.s.windows[key] = *w
	}
	return nil
}

func (r *metricRepo) forAudience(audienceID string, windowDays int) []domain.MetricWindow {
	var out []domain.MetricWindow
	for _, w := range r.s.windows {
		if w.AudienceID == audienceID && w.WindowDays == windowDays {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotDate.After(out[j].SnapshotDate) })
	return out
}

func (r *metricRepo) Latest(ctx context.Context, audienceID string, windowDays int) (*domain.MetricWindow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ws := r.forAudience(audienceID, windowDays)
	if len(ws) == 0 {
		return nil, store.ErrNotFound
	}
	return &ws[0], nil
}

func (r *metricRepo) Trailing(ctx context.Context, audienceID string, windowDays, limit int) ([]domain.MetricWindow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ws := r.forAudience(audienceID, windowDays)
	if len(ws) > limit {
		ws = ws[:limit]
	}
	return ws, nil
}

func (r *metricRepo) LatestByAccount(ctx context.Context, accountID string, windowDays int) ([]domain.MetricWindow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	latest := make(map[string]domain.MetricWindow)
	for _, w := range r.s.windows {
		if w.WindowDays != windowDays {
			continue
		}
		a, ok := r.s.audiences[w.AudienceID]
		if !ok || a.AccountID != accountID {
			continue
		}
		if cur, ok := latest[w.AudienceID]; !ok || w.SnapshotDate.After(cur.SnapshotDate) {
			latest[w.AudienceID] = w
		}
	}
	out := make([]domain.MetricWindow, 0, len(latest))
	for _, w := range latest {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AudienceID < out[j].AudienceID })
	return out, nil
}

// --- recommendations ---

type recommendationRepo struct{ s *Store }

func (r *recommendationRepo) Create(ctx context.Context, rec *domain.Recommendation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	r.s.recommendations = append(r.s.recommendations, *rec)
	return nil
}

func (r *recommendationRepo) ListByAudience(ctx context.Context, audienceID string, limit int) ([]domain.Recommendation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	var out []domain.Recommendation
	for _, rec := range r.s.recommendations {
		if rec.AudienceID == audienceID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *recommendationRepo) LastScaleAt(ctx context.Context, audienceID string) (*time.Time, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *time.Time
	for _, rec := range r.s.recommendations {
		if rec.AudienceID != audienceID || rec.Action != domain.ActionScale {
			continue
		}
		at := rec.GeneratedAt
		if latest == nil || at.After(*latest) {
			latest = &at
		}
	}
	return latest, nil
}

// --- action logs ---

type actionLogRepo struct{ s *Store }

func (r *actionLogRepo) Create(ctx context.Context, log *domain.ActionLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	r.s.actionLogs[log.ID] = *log
	return nil
}

func (r *actionLogRepo) DueForOutcome(ctx context.Context, now time.Time) ([]domain.ActionLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.ActionLog
	for _, l := range r.s.actionLogs {
		due3 := l.Outcome3dAt == nil && !l.CreatedAt.After(now.Add(-3*24*time.Hour))
		due7 := l.Outcome7dAt == nil && !l.CreatedAt.After(now.Add(-7*24*time.Hour))
		if due3 || due7 {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *actionLogRepo) SetOutcome(ctx context.Context, id string, windowDays int, m domain.MetricsSummary, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.actionLogs[id]
	if !ok {
		return store.ErrNotFound
	}
	switch windowDays {
	case 3:
		if l.Outcome3dAt != nil {
			return store.ErrNotFound
		}
		l.Outcome3d, l.Outcome3dAt = &m, &at
	case 7:
		if l.Outcome7dAt != nil {
			return store.ErrNotFound
		}
		l.Outcome7d, l.Outcome7dAt = &m, &at
	default:
		return store.ErrNotFound
	}
	r.s.actionLogs[id] = l
	return nil
}

// --- transaction ---

type memTx struct {
	s         *Store
	audiences map[string]domain.Audience
	windows   map[string]domain.MetricWindow
	done      bool
}

func (t *memTx) Audiences() store.Audiences { return &audienceRepo{s: t.s, tx: t} }
func (t *memTx) Metrics() store.Metrics     { return &metricRepo{s: t.s, tx: t} }

func (t *memTx) Commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.done {
		return nil
	}
	for id, a := range t.audiences {
		t.s.audiences[id] = a
	}
	for key, w := range t.windows {
		t.s.windows[key] = w
	}
	t.done = true
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}
