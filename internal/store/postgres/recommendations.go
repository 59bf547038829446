package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/audience-pilot/internal/domain"
)

// RecommendationRepo implements store.Recommendations against PostgreSQL.
// Reasons, risks, and the frozen metrics snapshot are stored as JSONB.
type RecommendationRepo struct{ q querier }

func (r *RecommendationRepo) Create(ctx context.Context, rec *domain.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	reasons, err := json.Marshal(rec.Reasons)
	if err != nil {
		return fmt.Errorf("encode reasons: %w", err)
	}
	risks, err := json.Marshal(rec.Risks)
	if err != nil {
		return fmt.Errorf("encode risks: %w", err)
	}
	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics snapshot: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO recommendations
			(id, audience_id, action, scale_percentage, confidence,
			 performance_bucket, trend_state, reasons, risks, metrics_snapshot,
			 composite_score, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, rec.ID, rec.AudienceID, rec.Action, rec.ScalePercentage, rec.Confidence,
		rec.Bucket, rec.Trend, reasons, risks, metrics, rec.CompositeScore, rec.GeneratedAt)
	if err != nil {
		return fmt.Errorf("create recommendation: %w", err)
	}
	return nil
}

func (r *RecommendationRepo) ListByAudience(ctx context.Context, audienceID string, limit int) ([]domain.Recommendation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, audience_id, action, scale_percentage, confidence,
		       performance_bucket, trend_state, reasons, risks, metrics_snapshot,
		       composite_score, generated_at
		FROM recommendations
		WHERE audience_id = $1
		ORDER BY generated_at DESC LIMIT $2
	`, audienceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []domain.Recommendation
	for rows.Next() {
		var rec domain.Recommendation
		var reasons, risks, metrics []byte
		if err := rows.Scan(&rec.ID, &rec.AudienceID, &rec.Action, &rec.ScalePercentage,
			&rec.Confidence, &rec.Bucket, &rec.Trend, &reasons, &risks, &metrics,
			&rec.CompositeScore, &rec.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		if err := json.Unmarshal(reasons, &rec.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons: %w", err)
		}
		if err := json.Unmarshal(risks, &rec.Risks); err != nil {
			return nil, fmt.Errorf("decode risks: %w", err)
		}
		if err := json.Unmarshal(metrics, &rec.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics snapshot: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastScaleAt feeds the scale cooldown guardrail.
func (r *RecommendationRepo) LastScaleAt(ctx context.Context, audienceID string) (*time.Time, error) {
	var at time.Time
	err := r.q.QueryRowContext(ctx, `
		SELECT generated_at FROM recommendations
		WHERE audience_id = $1 AND action = $2
		ORDER BY generated_at DESC LIMIT 1
	`, audienceID, domain.ActionScale).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last scale: %w", err)
	}
	return &at, nil
}
