package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/audience-pilot/internal/analytics"
	"github.com/ignite/audience-pilot/internal/archive"
	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/pkg/cache"
	"github.com/ignite/audience-pilot/internal/pkg/logger"
	"github.com/ignite/audience-pilot/internal/rules"
	"github.com/ignite/audience-pilot/internal/store"
)

// Generator runs the full decision pipeline for an account and persists the
// results: one immutable Recommendation plus one ActionLog per evaluated
// audience.
type Generator struct {
	st       store.Store
	engine   *rules.Engine
	fallback *Deterministic
	upgrade  Strategy // nil when the reasoning upgrade is disabled
	cache    cache.Cache
	cfg      config.ThresholdConfig
	archiver archive.Archiver
	now      func() time.Time
}

// SetArchiver enables best-effort archiving of recommendation runs.
func (g *Generator) SetArchiver(a archive.Archiver) { g.archiver = a }

// NewGenerator wires the pipeline. upgrade may be nil.
func NewGenerator(st store.Store, engine *rules.Engine, upgrade Strategy, c cache.Cache, cfg config.ThresholdConfig) *Generator {
	return &Generator{
		st:       st,
		engine:   engine,
		fallback: NewDeterministic(cfg),
		upgrade:  upgrade,
		cache:    c,
		cfg:      cfg,
		now:      time.Now,
	}
}

// GenerateForAccount evaluates every audience in the account against fresh
// benchmarks and trends, persists the surviving decisions, and returns them.
// Audiences filtered by the noise pre-filter are skipped silently.
func (g *Generator) GenerateForAccount(ctx context.Context, accountID string) ([]domain.Recommendation, error) {
	audiences, err := g.st.Audiences().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("generate for %s: %w", accountID, err)
	}

	latest7d, err := g.st.Metrics().LatestByAccount(ctx, accountID, domain.Window7Day)
	if err != nil {
		return nil, fmt.Errorf("generate for %s: benchmarks: %w", accountID, err)
	}
	bench := analytics.ComputeBenchmarks(latest7d, g.cfg.MinSpend)

	now := g.now().UTC()
	var out []domain.Recommendation
	for i := range audiences {
		aud := &audiences[i]
		rec, err := g.generateOne(ctx, aud, bench, now)
		if err != nil {
			return out, fmt.Errorf("generate for %s: audience %s: %w", accountID, aud.ID, err)
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}

	if len(out) > 0 {
		if _, err := g.cache.InvalidatePrefix(ctx, cache.PrefixRecommendations); err != nil {
			logger.Warn("recommend: cache invalidation failed", "error", err.Error())
		}
	}
	if g.archiver != nil && len(out) > 0 {
		if err := g.archiver.Save(ctx, archive.KindRecommendations, accountID, out); err != nil {
			logger.Warn("recommend: archive failed", "account_id", accountID, "error", err.Error())
		}
	}
	logger.Info("recommend: run complete",
		"account_id", accountID, "audiences", len(audiences), "recommendations", len(out))
	return out, nil
}

func (g *Generator) generateOne(ctx context.Context, aud *domain.Audience, bench domain.AccountBenchmark, now time.Time) (*domain.Recommendation, error) {
	win, err := g.st.Metrics().Latest(ctx, aud.ID, domain.Window7Day)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dailies, err := g.st.Metrics().Trailing(ctx, aud.ID, domain.Window1Day, analytics.TrailingDays)
	if err != nil {
		return nil, err
	}
	// Trailing returns newest first; trend analysis wants ascending order.
	for i, j := 0, len(dailies)-1; i < j; i, j = i+1, j-1 {
		dailies[i], dailies[j] = dailies[j], dailies[i]
	}
	trend := analytics.ComputeTrend(dailies)

	lastScale, err := g.st.Recommendations().LastScaleAt(ctx, aud.ID)
	if err != nil {
		return nil, err
	}

	res := g.engine.Evaluate(rules.Input{
		Audience:    aud,
		Window:      *win,
		Benchmark:   bench,
		Trend:       trend,
		LastScaleAt: lastScale,
		Now:         now,
	})
	if res == nil {
		return nil, nil
	}

	narrative := g.explain(ctx, NarrativeInput{
		Audience:  aud,
		Result:    res,
		Window:    *win,
		Benchmark: bench,
		Trend:     trend,
	})
	confidence := GradeConfidence(g.cfg, aud, *win, now)

	rec := &domain.Recommendation{
		AudienceID:      aud.ID,
		Action:          res.Action,
		ScalePercentage: res.ScalePercentage,
		Confidence:      confidence,
		Bucket:          res.Bucket,
		Trend:           res.TrendState,
		Reasons:         narrative.Reasons,
		Risks:           narrative.Risks,
		Metrics:         win.Summarize(),
		CompositeScore:  analytics.CompositeScore(*win, bench, g.cfg),
		GeneratedAt:     now,
	}
	if err := g.st.Recommendations().Create(ctx, rec); err != nil {
		return nil, err
	}

	if err := g.st.ActionLogs().Create(ctx, &domain.ActionLog{
		AudienceID:   aud.ID,
		AccountID:    aud.AccountID,
		Decision:     res.Action,
		Confidence:   confidence,
		Reasons:      narrative.Reasons,
		InputMetrics: win.Summarize(),
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

// explain tries the reasoning upgrade and falls back to the deterministic
// narrative on any failure. Fallback is silent apart from a debug line.
func (g *Generator) explain(ctx context.Context, in NarrativeInput) *Narrative {
	if g.upgrade != nil {
		if n, err := g.upgrade.Explain(ctx, in); err == nil {
			return n
		} else {
			logger.Debug("recommend: reasoning upgrade failed, using deterministic narrative",
				"audience_id", in.Audience.ID, "error", err.Error())
		}
	}
	n, _ := g.fallback.Explain(ctx, in)
	return n
}
