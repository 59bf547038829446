package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/store"
)

// MetricRepo implements store.Metrics against PostgreSQL.
type MetricRepo struct{ q querier }

const metricColumns = `id, audience_id, snapshot_date, window_days,
	spend, revenue, purchases, impressions, clicks,
	ctr, cpc, roas, cpa, cvr, created_at`

func scanMetric(row interface{ Scan(...interface{}) error }) (*domain.MetricWindow, error) {
	w := &domain.MetricWindow{}
	err := row.Scan(&w.ID, &w.AudienceID, &w.SnapshotDate, &w.WindowDays,
		&w.Spend, &w.Revenue, &w.Purchases, &w.Impressions, &w.Clicks,
		&w.CTR, &w.CPC, &w.ROAS, &w.CPA, &w.CVR, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan metric window: %w", err)
	}
	return w, nil
}

// UpsertWindow writes a window keyed by (audience_id, snapshot_date,
// window_days), replacing metrics when the same snapshot is re-synced.
func (r *MetricRepo) UpsertWindow(ctx context.Context, w *domain.MetricWindow) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO metric_windows
			(id, audience_id, snapshot_date, window_days,
			 spend, revenue, purchases, impressions, clicks,
			 ctr, cpc, roas, cpa, cvr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (audience_id, snapshot_date, window_days) DO UPDATE SET
			spend = EXCLUDED.spend,
			revenue = EXCLUDED.revenue,
			purchases = EXCLUDED.purchases,
			impressions = EXCLUDED.impressions,
			clicks = EXCLUDED.clicks,
			ctr = EXCLUDED.ctr,
			cpc = EXCLUDED.cpc,
			roas = EXCLUDED.roas,
			cpa = EXCLUDED.cpa,
			cvr = EXCLUDED.cvr
	`, w.ID, w.AudienceID, w.SnapshotDate, w.WindowDays,
		w.Spend, w.Revenue, w.Purchases, w.Impressions, w.Clicks,
		w.CTR, w.CPC, w.ROAS, w.CPA, w.CVR)
	if err != nil {
		return fmt.Errorf("upsert metric window: %w", err)
	}
	return nil
}

func (r *MetricRepo) Latest(ctx context.Context, audienceID string, windowDays int) (*domain.MetricWindow, error) {
	return scanMetric(r.q.QueryRowContext(ctx, `
		SELECT `+metricColumns+` FROM metric_windows
		WHERE audience_id = $1 AND window_days = $2
		ORDER BY snapshot_date DESC LIMIT 1
	`, audienceID, windowDays))
}

func (r *MetricRepo) Trailing(ctx context.Context, audienceID string, windowDays, limit int) ([]domain.MetricWindow, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+metricColumns+` FROM metric_windows
		WHERE audience_id = $1 AND window_days = $2
		ORDER BY snapshot_date DESC LIMIT $3
	`, audienceID, windowDays, limit)
	if err != nil {
		return nil, fmt.Errorf("trailing windows: %w", err)
	}
	defer rows.Close()
	return collectMetrics(rows)
}

// LatestByAccount returns each audience's newest window of the given length.
func (r *MetricRepo) LatestByAccount(ctx context.Context, accountID string, windowDays int) ([]domain.MetricWindow, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT DISTINCT ON (m.audience_id) `+prefixedMetricColumns+`
		FROM metric_windows m
		JOIN audiences a ON a.id = m.audience_id
		WHERE a.account_id = $1 AND m.window_days = $2
		ORDER BY m.audience_id, m.snapshot_date DESC
	`, accountID, windowDays)
	if err != nil {
		return nil, fmt.Errorf("account windows: %w", err)
	}
	defer rows.Close()
	return collectMetrics(rows)
}

const prefixedMetricColumns = `m.id, m.audience_id, m.snapshot_date, m.window_days,
	m.spend, m.revenue, m.purchases, m.impressions, m.clicks,
	m.ctr, m.cpc, m.roas, m.cpa, m.cvr, m.created_at`

func collectMetrics(rows *sql.Rows) ([]domain.MetricWindow, error) {
	var out []domain.MetricWindow
	for rows.Next() {
		w, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}
