package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/service/campaign"
)

// AudienceRepo reads audiences and their contacts. It backs both campaign
// preparation (full contact listing) and per-send hydration of a single
// contact's placeholder fields.
type AudienceRepo struct{ db *sql.DB }

// NewAudienceRepo creates a Postgres-backed audience repository.
func NewAudienceRepo(db *sql.DB) *AudienceRepo { return &AudienceRepo{db: db} }

const contactColumns = `id, audience_id, first_name, last_name, email, phone_number,
	role, country, department, company, created_at`

func scanContact(s interface{ Scan(...interface{}) error }, c *domain.Contact) error {
	return s.Scan(&c.ID, &c.AudienceID, &c.FirstName, &c.LastName, &c.Email,
		&c.PhoneNumber, &c.Role, &c.Country, &c.Department, &c.Company, &c.CreatedAt)
}

// Contacts returns all contacts in the audience, in insertion order.
// A missing audience is ErrAudienceNotFound; an empty one returns an
// empty slice.
func (a *AudienceRepo) Contacts(ctx context.Context, audienceID string) ([]domain.Contact, error) {
	var exists bool
	err := a.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM audiences WHERE id = $1)`, audienceID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check audience: %w", err)
	}
	if !exists {
		return nil, campaign.ErrAudienceNotFound
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts WHERE audience_id = $1 ORDER BY created_at, id
	`, audienceID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := scanContact(rows, &c); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Contact fetches a single contact by ID. Used by the dispatch engine to
// hydrate live placeholder fields; callers fall back to the tracking row's
// denormalized copy when the contact is gone.
func (a *AudienceRepo) Contact(ctx context.Context, contactID string) (*domain.Contact, error) {
	var c domain.Contact
	err := scanContact(a.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+` FROM contacts WHERE id = $1
	`, contactID), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

// ProfileRepo reads sender profiles.
type ProfileRepo struct{ db *sql.DB }

// NewProfileRepo creates a Postgres-backed sender profile repository.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Profile fetches a sender profile by ID, credentials included.
func (p *ProfileRepo) Profile(ctx context.Context, id string) (*domain.SenderProfile, error) {
	var sp domain.SenderProfile
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, vendor_type, display_name, from_email, host, port, secure,
			username, password, aws_region, aws_key, aws_secret, created_at
		FROM sender_profiles WHERE id = $1
	`, id).Scan(&sp.ID, &sp.Name, &sp.VendorType, &sp.DisplayName, &sp.FromEmail,
		&sp.Host, &sp.Port, &sp.Secure, &sp.Username, &sp.Password,
		&sp.AWSRegion, &sp.AWSKey, &sp.AWSSecret, &sp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sender profile: %w", err)
	}
	return &sp, nil
}

// TemplateRepo reads email templates.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

// Template fetches an email template by ID.
func (t *TemplateRepo) Template(ctx context.Context, id string) (*domain.EmailTemplate, error) {
	var et domain.EmailTemplate
	err := t.db.QueryRowContext(ctx, `
		SELECT id, name, subject, body, created_at
		FROM email_templates WHERE id = $1
	`, id).Scan(&et.ID, &et.Name, &et.Subject, &et.Body, &et.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &et, nil
}
