// Package ingest pulls ad-set metadata and daily insights from the Graph
// API and persists audiences and metric windows. The SyncCoordinator keeps
// at most one running sync per account, supports cooperative cancellation,
// and writes each run inside a single transaction.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ignite/audience-pilot/internal/archive"
	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/meta"
	"github.com/ignite/audience-pilot/internal/pkg/cache"
	"github.com/ignite/audience-pilot/internal/pkg/distlock"
	"github.com/ignite/audience-pilot/internal/pkg/logger"
	"github.com/ignite/audience-pilot/internal/store"
	"github.com/ignite/audience-pilot/internal/window"
)

// ErrSyncInProgress is returned when a sync is already running for the
// account, here or on another instance holding the distributed lock.
var ErrSyncInProgress = errors.New("ingest: sync already in progress")

// GraphClient is the slice of the Graph API client a sync needs.
type GraphClient interface {
	ListAdSets(ctx context.Context, accessToken, accountID string) ([]meta.AdSet, error)
	BatchDailyInsights(ctx context.Context, accessToken string, adSetIDs []string, datePreset string) (map[string][]meta.InsightRow, map[string]error, error)
}

// job is the process-scoped state of one sync run.
type job struct {
	status     domain.SyncStatus
	message    string
	datePreset string
	startedAt  time.Time
	finishedAt *time.Time
	summary    *domain.SyncSummary
	cancel     context.CancelFunc
}

// SyncCoordinator owns the per-account job registry.
type SyncCoordinator struct {
	st       store.Store
	client   GraphClient
	locker   distlock.Locker
	cache    cache.Cache
	archiver archive.Archiver

	mu   sync.Mutex
	jobs map[string]*job

	// wg tracks running syncs so shutdown can drain them.
	wg sync.WaitGroup
}

// NewSyncCoordinator wires a coordinator.
func NewSyncCoordinator(st store.Store, client GraphClient, locker distlock.Locker, c cache.Cache) *SyncCoordinator {
	return &SyncCoordinator{
		st:     st,
		client: client,
		locker: locker,
		cache:  c,
		jobs:   make(map[string]*job),
	}
}

// SetArchiver enables best-effort archiving of completed sync summaries.
func (c *SyncCoordinator) SetArchiver(a archive.Archiver) { c.archiver = a }

// StartSync launches a background sync for the account. It returns
// ErrSyncInProgress without queueing when a non-terminal job exists or the
// account lock is held elsewhere. The preset is normalized before use.
func (c *SyncCoordinator) StartSync(ctx context.Context, accountID, datePreset string) error {
	account, err := c.st.Accounts().Get(ctx, accountID)
	if err != nil {
		return fmt.Errorf("start sync: %w", err)
	}
	preset := meta.NormalizeDatePreset(datePreset)

	c.mu.Lock()
	if j, ok := c.jobs[accountID]; ok && !j.status.IsTerminal() {
		c.mu.Unlock()
		return ErrSyncInProgress
	}

	lock := c.locker.Lock("sync:" + accountID)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("start sync: acquire lock: %w", err)
	}
	if !ok {
		c.mu.Unlock()
		return ErrSyncInProgress
	}

	runCtx, cancel := context.WithCancel(context.Background())
	j := &job{
		status:     domain.SyncInProgress,
		datePreset: preset,
		startedAt:  time.Now().UTC(),
		cancel:     cancel,
	}
	c.jobs[accountID] = j
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		summary, runErr := c.run(runCtx, account, preset)

		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("ingest: lock release failed", "account_id", accountID, "error", err.Error())
		}
		c.finish(accountID, summary, runErr, runCtx.Err() != nil)
	}()
	return nil
}

// finish records the terminal state of a run. A cancelled run is terminal
// but not a failure.
func (c *SyncCoordinator) finish(accountID string, summary *domain.SyncSummary, runErr error, cancelled bool) {
	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	j := c.jobs[accountID]
	if j == nil {
		return
	}
	j.finishedAt = &now
	j.summary = summary
	switch {
	case cancelled:
		j.status = domain.SyncCancelled
		j.message = "sync cancelled"
	case runErr != nil:
		j.status = domain.SyncFailed
		j.message = runErr.Error()
	default:
		j.status = domain.SyncCompleted
	}
	logger.Info("ingest: sync finished",
		"account_id", accountID, "status", string(j.status),
		"created", summary.AudiencesCreated, "updated", summary.AudiencesUpdated,
		"windows", summary.WindowsStored, "errors", len(summary.Errors))
}

// Status reports the account's most recent job, or idle when none exists.
func (c *SyncCoordinator) Status(accountID string) domain.SyncJobStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[accountID]
	if !ok {
		return domain.SyncJobStatus{Status: domain.SyncIdle}
	}
	started := j.startedAt
	return domain.SyncJobStatus{
		Status:     j.status,
		Message:    j.message,
		DatePreset: j.datePreset,
		StartedAt:  &started,
		FinishedAt: j.finishedAt,
		Summary:    j.summary,
	}
}

// Cancel requests cooperative cancellation of the running sync. The job
// keeps running until it reaches its next checkpoint, reporting the
// transitional cancelling status meanwhile. With nothing in progress the
// request is a no-op reporting idle.
func (c *SyncCoordinator) Cancel(accountID string) domain.SyncJobStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[accountID]
	if !ok || j.status.IsTerminal() {
		return domain.SyncJobStatus{Status: domain.SyncIdle, Message: "no active sync to cancel"}
	}
	j.cancel()
	j.status = domain.SyncCancelling
	j.message = "cancellation requested, waiting for the current step to stop"
	started := j.startedAt
	return domain.SyncJobStatus{
		Status:     j.status,
		Message:    j.message,
		DatePreset: j.datePreset,
		StartedAt:  &started,
	}
}

// Wait blocks until all running syncs drain. Called on shutdown.
func (c *SyncCoordinator) Wait() { c.wg.Wait() }

// run executes one sync inside a single transaction. Cancellation is
// checked at the checkpoints between phases; a cancelled or failed run
// rolls the transaction back, so partial results are never visible.
func (c *SyncCoordinator) run(ctx context.Context, account *domain.Account, preset string) (*domain.SyncSummary, error) {
	summary := &domain.SyncSummary{}

	adsets, err := c.client.ListAdSets(ctx, account.AccessToken, account.ExternalID)
	if err != nil {
		return summary, fmt.Errorf("list ad sets: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	tx, err := c.st.Begin(ctx)
	if err != nil {
		return summary, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	byExternal := make(map[string]string, len(adsets)) // external ad-set id -> audience id
	ids := make([]string, 0, len(adsets))
	for i := range adsets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		as := &adsets[i]
		aud := &domain.Audience{
			AccountID:    account.ID,
			ExternalID:   as.ID,
			Name:         as.Name,
			Type:         as.InferAudienceType(),
			LaunchedAt:   as.LaunchedAt(),
			DailyBudget:  as.Budget(),
		}
		if as.CampaignID != "" {
			aud.CampaignID = &as.CampaignID
		}
		if as.Campaign != nil && as.Campaign.Name != "" {
			aud.CampaignName = &as.Campaign.Name
		}
		created, err := tx.Audiences().Upsert(ctx, aud)
		if err != nil {
			return summary, fmt.Errorf("upsert audience %s: %w", as.ID, err)
		}
		if created {
			summary.AudiencesCreated++
		} else {
			summary.AudiencesUpdated++
		}
		byExternal[as.ID] = aud.ID
		ids = append(ids, as.ID)
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	rowsByID, itemErrs, err := c.client.BatchDailyInsights(ctx, account.AccessToken, ids, preset)
	if err != nil {
		return summary, fmt.Errorf("fetch insights: %w", err)
	}
	for id, ierr := range itemErrs {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", id, ierr))
	}
	sort.Strings(summary.Errors)
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	for externalID, raw := range rowsByID {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		audienceID, ok := byExternal[externalID]
		if !ok {
			continue
		}
		stored, err := c.storeWindows(ctx, tx, audienceID, raw)
		if err != nil {
			return summary, fmt.Errorf("store windows for %s: %w", externalID, err)
		}
		summary.WindowsStored += stored
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit sync: %w", err)
	}
	committed = true

	if err := c.st.Accounts().TouchLastSynced(context.Background(), account.ID, time.Now().UTC()); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("touch last synced: %v", err))
	}
	c.invalidateCaches()

	if c.archiver != nil {
		actx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.archiver.Save(actx, archive.KindSync, account.ID, summary); err != nil {
			logger.Warn("ingest: archive failed", "account_id", account.ID, "error", err.Error())
		}
		cancel()
	}
	return summary, nil
}

// storeWindows aggregates one audience's daily rows into the standard
// trailing windows and upserts them under the latest row's date.
func (c *SyncCoordinator) storeWindows(ctx context.Context, tx store.Tx, audienceID string, raw []meta.InsightRow) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	rows := make([]window.DailyRow, len(raw))
	for i, r := range raw {
		rows[i] = r.ToDailyRow()
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	snapshotDate := rows[len(rows)-1].Date

	stored := 0
	// Daily snapshots feed trend analysis; each day is its own 1-day window.
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		agg := window.Build([]window.DailyRow{r})[domain.Window1Day]
		if err := tx.Metrics().UpsertWindow(ctx, toMetricWindow(audienceID, r.Date, domain.Window1Day, agg)); err != nil {
			return stored, err
		}
		stored++
	}
	for _, days := range []int{domain.Window3Day, domain.Window7Day} {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		agg, ok := window.Build(rows)[days]
		if !ok {
			continue
		}
		if err := tx.Metrics().UpsertWindow(ctx, toMetricWindow(audienceID, snapshotDate, days, agg)); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

func toMetricWindow(audienceID string, date time.Time, days int, a window.Aggregate) *domain.MetricWindow {
	return &domain.MetricWindow{
		AudienceID:   audienceID,
		SnapshotDate: date,
		WindowDays:   days,
		Spend:        a.Spend,
		Revenue:      a.Revenue,
		Purchases:    a.Purchases,
		Impressions:  a.Impressions,
		Clicks:       a.Clicks,
		CTR:          a.CTR,
		CPC:          a.CPC,
		ROAS:         a.ROAS,
		CPA:          a.CPA,
		CVR:          a.CVR,
	}
}

func (c *SyncCoordinator) invalidateCaches() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, prefix := range []string{cache.PrefixAudiences, cache.PrefixMetrics, cache.PrefixBenchmarks} {
		if _, err := c.cache.InvalidatePrefix(ctx, prefix); err != nil {
			logger.Warn("ingest: cache invalidation failed", "prefix", prefix, "error", err.Error())
		}
	}
}
