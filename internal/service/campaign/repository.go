package campaign

import (
	"context"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign.
	Create(ctx context.Context, c *domain.Campaign) error

	// UpdateStatus transitions a campaign's status only if its current
	// status is `from`. Returns ErrInvalidTransition if the campaign is in
	// any other state, ErrNotFound if it doesn't exist.
	UpdateStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error

	// DeleteCascade removes the campaign together with all of its tracking
	// rows, email-click rows, and submission rows, in one transaction.
	// Deleting a campaign that doesn't exist is not an error.
	DeleteCascade(ctx context.Context, id string) error

	// Counts returns the derived campaign stats (recipients, sent, clicks,
	// submissions) by counting rows — they are never stored on the campaign.
	Counts(ctx context.Context, id string) (Counts, error)
}

// TrackingRepository defines the data access contract for delivery tracking
// rows (one row per campaign × recipient).
type TrackingRepository interface {
	// InsertRow creates one pending tracking row. Returns
	// ErrDuplicateTrackingID if the row's tracking identifier collides with
	// any existing row system-wide; the caller regenerates and retries.
	InsertRow(ctx context.Context, row *domain.TrackingRow) error

	// CountByStatus counts a campaign's rows in the given status.
	CountByStatus(ctx context.Context, campaignID string, status domain.TrackingStatus) (int, error)

	// BulkUpdateStatus moves every row of the campaign currently in `from`
	// to `to`, returning how many rows changed. Used by archive (sent →
	// disabled) and reactivate (disabled → sent); rows in other states are
	// untouched.
	BulkUpdateStatus(ctx context.Context, campaignID string, from, to domain.TrackingStatus) (int64, error)

	// ListByCampaign returns all of a campaign's rows, newest first.
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.TrackingRow, error)
}

// AudienceResolver returns a stable snapshot of an audience's contacts.
// Returns ErrAudienceNotFound if the audience reference is dangling; an
// existing audience with zero contacts returns an empty slice, which is
// legal at prepare time.
type AudienceResolver interface {
	Contacts(ctx context.Context, audienceID string) ([]domain.Contact, error)
}

// ProfileResolver resolves a sender profile reference.
type ProfileResolver interface {
	Profile(ctx context.Context, id string) (*domain.SenderProfile, error)
}

// TemplateResolver resolves an email template reference.
type TemplateResolver interface {
	Template(ctx context.Context, id string) (*domain.EmailTemplate, error)
}

// Verifier checks a sender profile's connectivity and credentials. A
// verification failure aborts the triggering transition with no state
// mutation.
type Verifier interface {
	Verify(ctx context.Context, profile *domain.SenderProfile) error
}

// Runner hands a campaign off to the background dispatch engine. Both
// methods return immediately; send progress is only observable through the
// store.
type Runner interface {
	// Dispatch drains the campaign's pending rows and auto-completes it.
	Dispatch(campaignID string)
	// Resend drains only the campaign's failed rows, leaving its status alone.
	Resend(campaignID string)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// Counts holds the derived per-campaign stats exposed to the admin console.
type Counts struct {
	TotalRecipients int `json:"total_recipients"`
	SentCount       int `json:"sent_count"`
	ClickCount      int `json:"click_count"`
	SubmissionCount int `json:"submission_count"`
}
