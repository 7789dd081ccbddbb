package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/logger"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/token"
)

// Service implements the campaign state machine. It coordinates the
// repositories, the transport verifier, and the background dispatch engine.
// All public methods are safe for concurrent use if the underlying
// repositories are concurrency-safe.
type Service struct {
	repo      Repository
	tracking  TrackingRepository
	audiences AudienceResolver
	profiles  ProfileResolver
	templates TemplateResolver
	verifier  Verifier
	runner    Runner

	tokenLength     int
	maxTokenRetries int
}

// Options tunes tracking identifier generation.
type Options struct {
	TokenLength     int // default 12
	MaxTokenRetries int // default 5
}

// NewService creates a campaign service.
func NewService(
	repo Repository,
	tracking TrackingRepository,
	audiences AudienceResolver,
	profiles ProfileResolver,
	templates TemplateResolver,
	verifier Verifier,
	runner Runner,
	opts Options,
) *Service {
	if opts.TokenLength <= 0 {
		opts.TokenLength = token.DefaultLength
	}
	if opts.MaxTokenRetries <= 0 {
		opts.MaxTokenRetries = 5
	}
	return &Service{
		repo:            repo,
		tracking:        tracking,
		audiences:       audiences,
		profiles:        profiles,
		templates:       templates,
		verifier:        verifier,
		runner:          runner,
		tokenLength:     opts.TokenLength,
		maxTokenRetries: opts.MaxTokenRetries,
	}
}

// PrepareInput holds the fields for preparing a new campaign.
type PrepareInput struct {
	Name             string `json:"name"`
	AudienceID       string `json:"audience_id"`
	SenderProfileID  string `json:"sender_profile_id"`
	TemplateID       string `json:"template_id"`
	EmailConcurrency int    `json:"email_concurrency"`
	TimeDelaySeconds int    `json:"time_delay_seconds"`
	AIEnabled        bool   `json:"ai_enabled"`
}

// Get returns a single campaign with its derived counts.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.Counts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("campaign counts: %w", err)
	}
	c.TotalRecipients = counts.TotalRecipients
	c.SentCount = counts.SentCount
	c.ClickCount = counts.ClickCount
	c.SubmissionCount = counts.SubmissionCount
	return c, nil
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// Rows returns a campaign's delivery tracking rows.
func (s *Service) Rows(ctx context.Context, id string) ([]domain.TrackingRow, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.tracking.ListByCampaign(ctx, id)
}

// Prepare validates references, verifies the sender profile, and creates the
// campaign in draft together with one pending tracking row per contact in
// the audience snapshot. Later audience changes never touch these rows. An
// empty audience is legal and yields zero rows.
func (s *Service) Prepare(ctx context.Context, input PrepareInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.AIEnabled && input.TemplateID != "" {
		return nil, ErrTemplateConflict
	}
	if !input.AIEnabled && input.TemplateID == "" {
		return nil, ErrTemplateRequired
	}

	contacts, err := s.audiences.Contacts(ctx, input.AudienceID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.Profile(ctx, input.SenderProfileID)
	if err != nil {
		return nil, err
	}
	if input.TemplateID != "" {
		if _, err := s.templates.Template(ctx, input.TemplateID); err != nil {
			return nil, err
		}
	}

	if err := s.verifier.Verify(ctx, profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	c := &domain.Campaign{
		ID:               uuid.New().String(),
		Name:             input.Name,
		AudienceID:       input.AudienceID,
		SenderProfileID:  input.SenderProfileID,
		EmailConcurrency: input.EmailConcurrency,
		TimeDelaySeconds: input.TimeDelaySeconds,
		AIEnabled:        input.AIEnabled,
		Status:           domain.CampaignDraft,
	}
	if input.TemplateID != "" {
		tid := input.TemplateID
		c.TemplateID = &tid
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	for i := range contacts {
		if err := s.createRow(ctx, c.ID, &contacts[i]); err != nil {
			return nil, fmt.Errorf("create tracking row for %s: %w",
				logger.RedactEmail(contacts[i].Email), err)
		}
	}

	logger.Info("campaign prepared",
		"campaign_id", c.ID, "recipients", fmt.Sprint(len(contacts)))
	return c, nil
}

// createRow inserts one pending tracking row, regenerating the tracking
// identifier on a uniqueness violation. The retry budget is bounded; with a
// 62^12 identifier space exhausting it indicates a broken generator, which
// is surfaced as a prepare-time failure.
func (s *Service) createRow(ctx context.Context, campaignID string, contact *domain.Contact) error {
	var lastErr error
	for attempt := 0; attempt < s.maxTokenRetries; attempt++ {
		tid, err := token.New(s.tokenLength)
		if err != nil {
			return fmt.Errorf("generate tracking id: %w", err)
		}
		row := &domain.TrackingRow{
			ID:          uuid.New().String(),
			CampaignID:  campaignID,
			ContactID:   contact.ID,
			Email:       contact.Email,
			PhoneNumber: contact.PhoneNumber,
			TrackingID:  tid,
			Status:      domain.TrackingPending,
		}
		err = s.tracking.InsertRow(ctx, row)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateTrackingID) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("exhausted %d tracking id attempts: %w", s.maxTokenRetries, lastErr)
}

// Start transitions a draft or scheduled campaign to ongoing and hands it to
// the dispatch engine. The profile is re-verified because it may have
// changed since prepare. The status change commits synchronously; the send
// run is asynchronous and its completion is observed by re-fetching the
// campaign.
func (s *Service) Start(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.CanStart() {
		return ErrInvalidTransition
	}

	profile, err := s.profiles.Profile(ctx, c.SenderProfileID)
	if err != nil {
		return err
	}
	if err := s.verifier.Verify(ctx, profile); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	if err := s.repo.UpdateStatus(ctx, id, c.Status, domain.CampaignOngoing); err != nil {
		return err
	}

	s.runner.Dispatch(id)
	logger.Info("campaign started", "campaign_id", id)
	return nil
}

// Archive moves a completed campaign to archived, disabling every sent
// row's tracking link. Failed rows are untouched. Archiving from any other
// state (including a second archive) is rejected with no side effects.
func (s *Service) Archive(ctx context.Context, id string) error {
	if err := s.repo.UpdateStatus(ctx, id, domain.CampaignCompleted, domain.CampaignArchived); err != nil {
		return err
	}
	n, err := s.tracking.BulkUpdateStatus(ctx, id, domain.TrackingSent, domain.TrackingDisabled)
	if err != nil {
		return fmt.Errorf("disable tracking links: %w", err)
	}
	logger.Info("campaign archived", "campaign_id", id, "links_disabled", fmt.Sprint(n))
	return nil
}

// Reactivate moves an archived campaign back to completed, re-enabling its
// disabled tracking links.
func (s *Service) Reactivate(ctx context.Context, id string) error {
	if err := s.repo.UpdateStatus(ctx, id, domain.CampaignArchived, domain.CampaignCompleted); err != nil {
		return err
	}
	n, err := s.tracking.BulkUpdateStatus(ctx, id, domain.TrackingDisabled, domain.TrackingSent)
	if err != nil {
		return fmt.Errorf("re-enable tracking links: %w", err)
	}
	logger.Info("campaign reactivated", "campaign_id", id, "links_enabled", fmt.Sprint(n))
	return nil
}

// Resend re-runs delivery for a completed campaign's failed rows only.
// Returns the number of failed rows selected; zero means the resend was a
// no-op, which is reported to the caller but is not an error. The campaign's
// own status never changes.
func (s *Service) Resend(ctx context.Context, id string) (int, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if c.Status != domain.CampaignCompleted {
		return 0, ErrInvalidTransition
	}

	n, err := s.tracking.CountByStatus(ctx, id, domain.TrackingFailed)
	if err != nil {
		return 0, fmt.Errorf("count failed rows: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	profile, err := s.profiles.Profile(ctx, c.SenderProfileID)
	if err != nil {
		return 0, err
	}
	if err := s.verifier.Verify(ctx, profile); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	s.runner.Resend(id)
	logger.Info("campaign resend triggered", "campaign_id", id, "failed_rows", fmt.Sprint(n))
	return n, nil
}

// Delete removes the campaign and cascades to its tracking rows, click
// rows, and submission rows. Permitted from any status; terminal and
// irreversible. In-flight sends racing a delete write into rows that no
// longer exist, which the store treats as no-ops.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	logger.Info("campaign deleted", "campaign_id", id)
	return nil
}
