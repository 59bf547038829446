// Package api exposes the HTTP surface: sync control, recommendation
// generation and history, and account benchmarks.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/audience-pilot/internal/analytics"
	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/ingest"
	"github.com/ignite/audience-pilot/internal/pkg/cache"
	"github.com/ignite/audience-pilot/internal/pkg/httputil"
	"github.com/ignite/audience-pilot/internal/recommend"
	"github.com/ignite/audience-pilot/internal/store"
)

// Handlers holds the request handlers and their collaborators.
type Handlers struct {
	st        store.Store
	coord     *ingest.SyncCoordinator
	generator *recommend.Generator
	cache     cache.Cache
	cfg       config.ThresholdConfig
	startedAt time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(st store.Store, coord *ingest.SyncCoordinator, gen *recommend.Generator, c cache.Cache, cfg config.ThresholdConfig) *Handlers {
	return &Handlers{
		st:        st,
		coord:     coord,
		generator: gen,
		cache:     c,
		cfg:       cfg,
		startedAt: time.Now().UTC(),
	}
}

// HealthCheck reports liveness and uptime.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// ListAccounts returns every connected account.
func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.st.Accounts().List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	httputil.OK(w, accounts)
}

// ListAudiences returns the account's tracked audiences.
func (h *Handlers) ListAudiences(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	audiences, err := h.st.Audiences().ListByAccount(r.Context(), accountID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if audiences == nil {
		audiences = []domain.Audience{}
	}
	httputil.OK(w, audiences)
}

// StartSync kicks off a background sync. A sync already in progress yields
// 409 with the current job status rather than queueing.
func (h *Handlers) StartSync(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req struct {
		DatePreset string `json:"date_preset"`
	}
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}
	preset := req.DatePreset
	if preset == "" {
		preset = r.URL.Query().Get("date_preset")
	}

	err := h.coord.StartSync(r.Context(), accountID, preset)
	switch {
	case errors.Is(err, ingest.ErrSyncInProgress):
		httputil.JSON(w, http.StatusConflict, h.coord.Status(accountID))
	case errors.Is(err, store.ErrNotFound):
		httputil.NotFound(w, "account not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.JSON(w, http.StatusAccepted, h.coord.Status(accountID))
	}
}

// SyncStatus reports the account's current or last sync job.
func (h *Handlers) SyncStatus(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.coord.Status(chi.URLParam(r, "accountID")))
}

// CancelSync requests cooperative cancellation of the running sync. With
// nothing running it is a no-op that reports idle; otherwise it reports the
// transitional cancelling status.
func (h *Handlers) CancelSync(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.coord.Cancel(chi.URLParam(r, "accountID")))
}

// GenerateRecommendations runs the decision pipeline for the account.
func (h *Handlers) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	recs, err := h.generator.GenerateForAccount(r.Context(), accountID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	httputil.OK(w, recs)
}

// ListRecommendations returns an audience's recommendation history, cached
// until the next generation run invalidates it.
func (h *Handlers) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	audienceID := chi.URLParam(r, "audienceID")
	key := cache.PrefixRecommendations + ":" + audienceID

	var recs []domain.Recommendation
	if hit, err := h.cache.Get(r.Context(), key, &recs); err == nil && hit {
		httputil.OK(w, recs)
		return
	}

	recs, err := h.st.Recommendations().ListByAudience(r.Context(), audienceID, 20)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	_ = h.cache.Set(r.Context(), key, recs, 5*time.Minute)
	httputil.OK(w, recs)
}

// GetBenchmarks computes fresh account benchmarks from the latest 7-day
// windows.
func (h *Handlers) GetBenchmarks(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	latest7d, err := h.st.Metrics().LatestByAccount(r.Context(), accountID, domain.Window7Day)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, analytics.ComputeBenchmarks(latest7d, h.cfg.MinSpend))
}

