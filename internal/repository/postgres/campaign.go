// Package postgres implements the repository contracts against PostgreSQL
// using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository and the dispatch engine's
// CampaignStore against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, audience_id, sender_profile_id, template_id,
		       email_concurrency, time_delay_seconds, ai_enabled, status,
		       started_at, completed_at, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &c.AudienceID, &c.SenderProfileID, &c.TemplateID,
		&c.EmailConcurrency, &c.TimeDelaySeconds, &c.AIEnabled, &c.Status,
		&c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// Campaign satisfies the dispatch engine's CampaignStore.
func (r *CampaignRepo) Campaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return r.Get(ctx, id)
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		countQ += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		countQ += fmt.Sprintf(" AND name ILIKE $%d", idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `
		SELECT id, name, audience_id, sender_profile_id, template_id,
		       email_concurrency, time_delay_seconds, ai_enabled, status,
		       started_at, completed_at, created_at, updated_at
		FROM campaigns WHERE 1=1`
	qArgs := []interface{}{}
	qIdx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", qIdx)
		qArgs = append(qArgs, f.Status)
		qIdx++
	}
	if f.Search != "" {
		q += fmt.Sprintf(" AND name ILIKE $%d", qIdx)
		qArgs = append(qArgs, "%"+f.Search+"%")
		qIdx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", qIdx, qIdx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(
			&c.ID, &c.Name, &c.AudienceID, &c.SenderProfileID, &c.TemplateID,
			&c.EmailConcurrency, &c.TimeDelaySeconds, &c.AIEnabled, &c.Status,
			&c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, audience_id, sender_profile_id, template_id,
			email_concurrency, time_delay_seconds, ai_enabled, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.Name, c.AudienceID, c.SenderProfileID, c.TemplateID,
		c.EmailConcurrency, c.TimeDelaySeconds, c.AIEnabled, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// UpdateStatus commits a guarded transition. The WHERE clause carries the
// expected current status so concurrent transitions lose cleanly instead of
// clobbering each other.
func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error {
	q := `UPDATE campaigns SET status = $1, updated_at = NOW()`
	if to == domain.CampaignOngoing {
		q += `, started_at = NOW()`
	}
	q += ` WHERE id = $2 AND status = $3`

	res, err := r.db.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	if n == 0 {
		// Distinguish a missing campaign from a wrong-state one.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check campaign exists: %w", err)
		}
		if !exists {
			return campaign.ErrNotFound
		}
		return campaign.ErrInvalidTransition
	}
	return nil
}

// CompleteIfOngoing satisfies the dispatch engine's CampaignStore. Zero
// rows affected is fine: the campaign was deleted mid-run or another drain
// path got there first.
func (r *CampaignRepo) CompleteIfOngoing(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.CampaignCompleted, id, domain.CampaignOngoing)
	if err != nil {
		return fmt.Errorf("complete campaign: %w", err)
	}
	return nil
}

// DeleteCascade removes the campaign and everything derived from it in one
// transaction. Missing campaigns delete zero rows and succeed.
func (r *CampaignRepo) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM submissions WHERE campaign_id = $1`,
		`DELETE FROM email_clicks WHERE campaign_id = $1`,
		`DELETE FROM tracking_rows WHERE campaign_id = $1`,
		`DELETE FROM campaigns WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("cascade delete: %w", err)
		}
	}
	return tx.Commit()
}

func (r *CampaignRepo) Counts(ctx context.Context, id string) (campaign.Counts, error) {
	var c campaign.Counts
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM tracking_rows WHERE campaign_id = $1),
			(SELECT COUNT(*) FROM tracking_rows WHERE campaign_id = $1 AND status IN ('sent', 'disabled')),
			(SELECT COALESCE(SUM(click_count), 0) FROM email_clicks WHERE campaign_id = $1),
			(SELECT COUNT(*) FROM submissions WHERE campaign_id = $1)
	`, id).Scan(&c.TotalRecipients, &c.SentCount, &c.ClickCount, &c.SubmissionCount)
	if err != nil {
		return campaign.Counts{}, fmt.Errorf("campaign counts: %w", err)
	}
	return c, nil
}
