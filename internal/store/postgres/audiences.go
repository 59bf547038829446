package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/store"
)

// AudienceRepo implements store.Audiences against PostgreSQL.
type AudienceRepo struct{ q querier }

const audienceColumns = `id, account_id, external_id, name, audience_type,
	launched_at, daily_budget, campaign_id, campaign_name, created_at, updated_at`

func scanAudience(row interface{ Scan(...interface{}) error }) (*domain.Audience, error) {
	a := &domain.Audience{}
	err := row.Scan(&a.ID, &a.AccountID, &a.ExternalID, &a.Name, &a.Type,
		&a.LaunchedAt, &a.DailyBudget, &a.CampaignID, &a.CampaignName,
		&a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan audience: %w", err)
	}
	return a, nil
}

func (r *AudienceRepo) Get(ctx context.Context, id string) (*domain.Audience, error) {
	return scanAudience(r.q.QueryRowContext(ctx,
		`SELECT `+audienceColumns+` FROM audiences WHERE id = $1`, id))
}

func (r *AudienceRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Audience, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+audienceColumns+` FROM audiences WHERE account_id = $1 ORDER BY created_at`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list audiences: %w", err)
	}
	defer rows.Close()

	var out []domain.Audience
	for rows.Next() {
		a, err := scanAudience(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Upsert inserts or refreshes the audience keyed by (account_id, external_id).
// The xmax trick distinguishes a fresh insert from a conflict update.
func (r *AudienceRepo) Upsert(ctx context.Context, a *domain.Audience) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	var created bool
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO audiences
			(id, account_id, external_id, name, audience_type, launched_at,
			 daily_budget, campaign_id, campaign_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (account_id, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			audience_type = EXCLUDED.audience_type,
			launched_at = EXCLUDED.launched_at,
			daily_budget = EXCLUDED.daily_budget,
			campaign_id = EXCLUDED.campaign_id,
			campaign_name = EXCLUDED.campaign_name,
			updated_at = NOW()
		RETURNING id, (xmax = 0)
	`, a.ID, a.AccountID, a.ExternalID, a.Name, a.Type, a.LaunchedAt,
		a.DailyBudget, a.CampaignID, a.CampaignName).Scan(&a.ID, &created)
	if err != nil {
		return false, fmt.Errorf("upsert audience: %w", err)
	}
	return created, nil
}
