// Package scheduler drives the periodic work: syncing every account on an
// interval and backfilling action-log outcome metrics at the +3d and +7d
// marks.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/ingest"
	"github.com/ignite/audience-pilot/internal/pkg/logger"
	"github.com/ignite/audience-pilot/internal/store"
)

// Scheduler runs the sync and outcome-backfill loops.
type Scheduler struct {
	st    store.Store
	coord *ingest.SyncCoordinator
	cfg   config.PollingConfig
	now   func() time.Time
}

// New creates a scheduler.
func New(st store.Store, coord *ingest.SyncCoordinator, cfg config.PollingConfig) *Scheduler {
	return &Scheduler{st: st, coord: coord, cfg: cfg, now: time.Now}
}

// Start runs both loops until the context is cancelled. Each loop fires once
// immediately, then on its interval.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("scheduler: starting",
		"sync_interval", s.cfg.SyncInterval().String(),
		"outcome_interval", s.cfg.OutcomeInterval().String())

	s.syncAll(ctx)
	s.backfillOutcomes(ctx)

	syncTicker := time.NewTicker(s.cfg.SyncInterval())
	outcomeTicker := time.NewTicker(s.cfg.OutcomeInterval())
	defer syncTicker.Stop()
	defer outcomeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler: stopping")
			return
		case <-syncTicker.C:
			s.syncAll(ctx)
		case <-outcomeTicker.C:
			s.backfillOutcomes(ctx)
		}
	}
}

// syncAll kicks off a sync for every account. Accounts already syncing are
// skipped, not queued.
func (s *Scheduler) syncAll(ctx context.Context) {
	accounts, err := s.st.Accounts().List(ctx)
	if err != nil {
		logger.Error("scheduler: list accounts failed", "error", err.Error())
		return
	}
	for _, a := range accounts {
		err := s.coord.StartSync(ctx, a.ID, s.cfg.DefaultDatePreset)
		if errors.Is(err, ingest.ErrSyncInProgress) {
			continue
		}
		if err != nil {
			logger.Error("scheduler: sync start failed", "account_id", a.ID, "error", err.Error())
		}
	}
}

// backfillOutcomes writes the 3-day and 7-day outcome snapshots onto due
// action logs. Each slot is written at most once; a slot whose metric window
// is missing stays open for the next pass.
func (s *Scheduler) backfillOutcomes(ctx context.Context) {
	now := s.now().UTC()
	due, err := s.st.ActionLogs().DueForOutcome(ctx, now)
	if err != nil {
		logger.Error("scheduler: outcome query failed", "error", err.Error())
		return
	}

	filled := 0
	for _, l := range due {
		if l.Outcome3dAt == nil && !l.CreatedAt.After(now.Add(-3*24*time.Hour)) {
			if s.fillOutcome(ctx, l, domain.Window3Day, now) {
				filled++
			}
		}
		if l.Outcome7dAt == nil && !l.CreatedAt.After(now.Add(-7*24*time.Hour)) {
			if s.fillOutcome(ctx, l, domain.Window7Day, now) {
				filled++
			}
		}
	}
	if filled > 0 {
		logger.Info("scheduler: outcomes backfilled", "count", filled, "due", len(due))
	}
}

func (s *Scheduler) fillOutcome(ctx context.Context, l domain.ActionLog, windowDays int, now time.Time) bool {
	w, err := s.st.Metrics().Latest(ctx, l.AudienceID, windowDays)
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if err != nil {
		logger.Error("scheduler: outcome window lookup failed",
			"action_log_id", l.ID, "window_days", windowDays, "error", err.Error())
		return false
	}
	if err := s.st.ActionLogs().SetOutcome(ctx, l.ID, windowDays, w.Summarize(), now); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Error("scheduler: outcome write failed",
				"action_log_id", l.ID, "window_days", windowDays, "error", err.Error())
		}
		return false
	}
	return true
}
