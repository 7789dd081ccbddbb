package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
)

// EngagementRepo persists what the public tracking endpoints record:
// aggregated link clicks and credential submissions.
type EngagementRepo struct{ db *sql.DB }

// NewEngagementRepo creates a Postgres-backed engagement repository.
func NewEngagementRepo(db *sql.DB) *EngagementRepo { return &EngagementRepo{db: db} }

// UpsertClick bumps the click count for (campaign, recipient email) and
// keeps the latest IP/device string.
func (e *EngagementRepo) UpsertClick(ctx context.Context, campaignID, email, ip, device string) error {
	now := time.Now()
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO email_clicks (id, campaign_id, email, click_count, ip_address, device, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5, $6, $6)
		ON CONFLICT (campaign_id, email) DO UPDATE SET
			click_count = email_clicks.click_count + 1,
			ip_address = EXCLUDED.ip_address,
			device = EXCLUDED.device,
			updated_at = EXCLUDED.updated_at
	`, uuid.New().String(), campaignID, email, ip, device, now)
	if err != nil {
		return fmt.Errorf("upsert click: %w", err)
	}
	return nil
}

// InsertSubmission appends one credential-submission event.
func (e *EngagementRepo) InsertSubmission(ctx context.Context, s *domain.Submission) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now()
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO submissions (id, campaign_id, recipient_email, typed_email, typed_password, ip_address, device, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.CampaignID, s.RecipientEmail, s.TypedEmail, s.TypedPassword, s.IPAddress, s.Device, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// ClicksByCampaign returns the aggregated click rows for reporting.
func (e *EngagementRepo) ClicksByCampaign(ctx context.Context, campaignID string) ([]domain.EmailClick, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, campaign_id, email, click_count, ip_address, device, created_at, updated_at
		FROM email_clicks WHERE campaign_id = $1 ORDER BY updated_at DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailClick
	for rows.Next() {
		var c domain.EmailClick
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.Email, &c.ClickCount,
			&c.IPAddress, &c.Device, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan click: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SubmissionsByCampaign returns the captured submissions for reporting.
func (e *EngagementRepo) SubmissionsByCampaign(ctx context.Context, campaignID string) ([]domain.Submission, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, campaign_id, recipient_email, typed_email, typed_password, ip_address, device, created_at
		FROM submissions WHERE campaign_id = $1 ORDER BY created_at DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(&s.ID, &s.CampaignID, &s.RecipientEmail, &s.TypedEmail,
			&s.TypedPassword, &s.IPAddress, &s.Device, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
