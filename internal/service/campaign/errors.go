package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound            = errors.New("campaign not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAudienceNotFound    = errors.New("audience not found")
	ErrProfileNotFound     = errors.New("sender profile not found")
	ErrTemplateNotFound    = errors.New("email template not found")
	ErrTemplateRequired    = errors.New("template is required unless AI content is enabled")
	ErrTemplateConflict    = errors.New("AI-enabled campaign cannot reference a template")
	ErrVerificationFailed  = errors.New("sender profile verification failed")
	ErrDuplicateTrackingID = errors.New("tracking id already exists")
)
