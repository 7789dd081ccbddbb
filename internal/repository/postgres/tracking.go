package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/service/campaign"
)

// TrackingRepo implements campaign.TrackingRepository, the dispatch
// engine's RowStore, and the tracking-id lookup used by the public
// endpoints.
type TrackingRepo struct{ db *sql.DB }

// NewTrackingRepo creates a Postgres-backed tracking row repository.
func NewTrackingRepo(db *sql.DB) *TrackingRepo { return &TrackingRepo{db: db} }

const rowColumns = `id, campaign_id, contact_id, email, phone_number, tracking_id,
	status, attempt_count, last_error, last_attempt_at, created_at, updated_at`

func scanRow(s interface{ Scan(...interface{}) error }) (*domain.TrackingRow, error) {
	r := &domain.TrackingRow{}
	err := s.Scan(
		&r.ID, &r.CampaignID, &r.ContactID, &r.Email, &r.PhoneNumber, &r.TrackingID,
		&r.Status, &r.AttemptCount, &r.LastError, &r.LastAttemptAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (t *TrackingRepo) InsertRow(ctx context.Context, row *domain.TrackingRow) error {
	now := time.Now()
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO tracking_rows (id, campaign_id, contact_id, email, phone_number,
			tracking_id, status, attempt_count, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, '', $8, $8)
	`, row.ID, row.CampaignID, row.ContactID, row.Email, row.PhoneNumber,
		row.TrackingID, row.Status, now)
	if err != nil {
		// The unique index on tracking_id is the system-wide collision
		// guard; the caller regenerates on this error.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return campaign.ErrDuplicateTrackingID
		}
		return fmt.Errorf("insert tracking row: %w", err)
	}
	return nil
}

// FindByTrackingID resolves a public tracking identifier to its row. This
// is the hot path of the unauthenticated endpoints; tracking_id carries a
// unique index so the lookup is O(1).
func (t *TrackingRepo) FindByTrackingID(ctx context.Context, trackingID string) (*domain.TrackingRow, error) {
	row, err := scanRow(t.db.QueryRowContext(ctx,
		`SELECT `+rowColumns+` FROM tracking_rows WHERE tracking_id = $1`, trackingID))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by tracking id: %w", err)
	}
	return row, nil
}

func (t *TrackingRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.TrackingRow, error) {
	return t.list(ctx,
		`SELECT `+rowColumns+` FROM tracking_rows WHERE campaign_id = $1 ORDER BY created_at DESC`,
		campaignID)
}

// ListByStatus satisfies the dispatch engine's RowStore: the one-shot work
// queue snapshot for a run.
func (t *TrackingRepo) ListByStatus(ctx context.Context, campaignID string, status domain.TrackingStatus) ([]domain.TrackingRow, error) {
	return t.list(ctx,
		`SELECT `+rowColumns+` FROM tracking_rows WHERE campaign_id = $1 AND status = $2 ORDER BY created_at`,
		campaignID, status)
}

func (t *TrackingRepo) list(ctx context.Context, q string, args ...interface{}) ([]domain.TrackingRow, error) {
	rows, err := t.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracking rows: %w", err)
	}
	defer rows.Close()

	var out []domain.TrackingRow
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracking row: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (t *TrackingRepo) CountByStatus(ctx context.Context, campaignID string, status domain.TrackingStatus) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracking_rows WHERE campaign_id = $1 AND status = $2`,
		campaignID, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tracking rows: %w", err)
	}
	return n, nil
}

func (t *TrackingRepo) BulkUpdateStatus(ctx context.Context, campaignID string, from, to domain.TrackingStatus) (int64, error) {
	res, err := t.db.ExecContext(ctx, `
		UPDATE tracking_rows SET status = $1, updated_at = NOW()
		WHERE campaign_id = $2 AND status = $3
	`, to, campaignID, from)
	if err != nil {
		return 0, fmt.Errorf("bulk update tracking rows: %w", err)
	}
	return res.RowsAffected()
}

// MarkSent records a successful attempt. A row deleted mid-run matches
// zero rows, which is deliberately not an error.
func (t *TrackingRepo) MarkSent(ctx context.Context, rowID string) error {
	_, err := t.db.ExecContext(ctx, `
		UPDATE tracking_rows
		SET status = $1, last_error = '', attempt_count = attempt_count + 1,
		    last_attempt_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`, domain.TrackingSent, rowID)
	if err != nil {
		return fmt.Errorf("mark row sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt with the delivery error.
func (t *TrackingRepo) MarkFailed(ctx context.Context, rowID, errMsg string) error {
	_, err := t.db.ExecContext(ctx, `
		UPDATE tracking_rows
		SET status = $1, last_error = $2, attempt_count = attempt_count + 1,
		    last_attempt_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`, domain.TrackingFailed, errMsg, rowID)
	if err != nil {
		return fmt.Errorf("mark row failed: %w", err)
	}
	return nil
}
