package dispatch

import (
	"context"
	"fmt"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
)

// TemplateSource resolves an email template reference.
type TemplateSource interface {
	Template(ctx context.Context, id string) (*domain.EmailTemplate, error)
}

// TemplateContent is the default ContentSource: it reads the campaign's
// template reference. Campaigns with AI-generated content need a different
// ContentSource wired in; without one their runs abort as an engine-level
// failure.
type TemplateContent struct {
	Templates TemplateSource
}

// Content returns the template's subject and body.
func (t *TemplateContent) Content(ctx context.Context, c *domain.Campaign) (string, string, error) {
	if c.TemplateID == nil {
		return "", "", fmt.Errorf("campaign %s has no template and no AI content source is configured", c.ID)
	}
	tmpl, err := t.Templates.Template(ctx, *c.TemplateID)
	if err != nil {
		return "", "", fmt.Errorf("resolve template: %w", err)
	}
	return tmpl.Subject, tmpl.Body, nil
}
