package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/store"
)

// ActionLogRepo implements store.ActionLogs against PostgreSQL.
type ActionLogRepo struct{ q querier }

func (r *ActionLogRepo) Create(ctx context.Context, log *domain.ActionLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	reasons, err := json.Marshal(log.Reasons)
	if err != nil {
		return fmt.Errorf("encode reasons: %w", err)
	}
	input, err := json.Marshal(log.InputMetrics)
	if err != nil {
		return fmt.Errorf("encode input metrics: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO action_logs
			(id, audience_id, account_id, decision, confidence, reasons, input_metrics, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, log.ID, log.AudienceID, log.AccountID, log.Decision, log.Confidence,
		reasons, input, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("create action log: %w", err)
	}
	return nil
}

// DueForOutcome returns logs whose 3-day or 7-day outcome slot is open and
// whose age has crossed the matching threshold.
func (r *ActionLogRepo) DueForOutcome(ctx context.Context, now time.Time) ([]domain.ActionLog, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, audience_id, account_id, decision, confidence, reasons,
		       input_metrics, outcome_3d_metrics, outcome_7d_metrics,
		       outcome_3d_at, outcome_7d_at, created_at
		FROM action_logs
		WHERE (outcome_3d_at IS NULL AND created_at <= $1)
		   OR (outcome_7d_at IS NULL AND created_at <= $2)
		ORDER BY created_at
	`, now.Add(-3*24*time.Hour), now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("due action logs: %w", err)
	}
	defer rows.Close()

	var out []domain.ActionLog
	for rows.Next() {
		var l domain.ActionLog
		var reasons, input []byte
		var out3, out7 []byte
		if err := rows.Scan(&l.ID, &l.AudienceID, &l.AccountID, &l.Decision,
			&l.Confidence, &reasons, &input, &out3, &out7,
			&l.Outcome3dAt, &l.Outcome7dAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		if err := json.Unmarshal(reasons, &l.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons: %w", err)
		}
		if err := json.Unmarshal(input, &l.InputMetrics); err != nil {
			return nil, fmt.Errorf("decode input metrics: %w", err)
		}
		if out3 != nil {
			l.Outcome3d = &domain.MetricsSummary{}
			if err := json.Unmarshal(out3, l.Outcome3d); err != nil {
				return nil, fmt.Errorf("decode 3d outcome: %w", err)
			}
		}
		if out7 != nil {
			l.Outcome7d = &domain.MetricsSummary{}
			if err := json.Unmarshal(out7, l.Outcome7d); err != nil {
				return nil, fmt.Errorf("decode 7d outcome: %w", err)
			}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SetOutcome writes the 3-day or 7-day outcome exactly once; a second write
// to the same slot returns ErrNotFound because the IS NULL guard excludes it.
func (r *ActionLogRepo) SetOutcome(ctx context.Context, id string, windowDays int, m domain.MetricsSummary, at time.Time) error {
	var col string
	switch windowDays {
	case 3:
		col = "3d"
	case 7:
		col = "7d"
	default:
		return fmt.Errorf("set outcome: unsupported window %d", windowDays)
	}
	metrics, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode outcome metrics: %w", err)
	}
	q := fmt.Sprintf(`
		UPDATE action_logs
		SET outcome_%s_metrics = $1, outcome_%s_at = $2
		WHERE id = $3 AND outcome_%s_at IS NULL
	`, col, col, col)
	res, err := r.q.ExecContext(ctx, q, metrics, at, id)
	if err != nil {
		return fmt.Errorf("set %s outcome: %w", col, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
