package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignOngoing   CampaignStatus = "ongoing"
	CampaignCompleted CampaignStatus = "completed"
	CampaignArchived  CampaignStatus = "archived"
)

// Campaign represents a phishing-simulation campaign with its delivery config.
type Campaign struct {
	ID               string         `json:"id" db:"id"`
	Name             string         `json:"name" db:"name"`
	AudienceID       string         `json:"audience_id" db:"audience_id"`
	SenderProfileID  string         `json:"sender_profile_id" db:"sender_profile_id"`
	TemplateID       *string        `json:"template_id" db:"template_id"`
	EmailConcurrency int            `json:"email_concurrency" db:"email_concurrency"`
	TimeDelaySeconds int            `json:"time_delay_seconds" db:"time_delay_seconds"`
	AIEnabled        bool           `json:"ai_enabled" db:"ai_enabled"`
	Status           CampaignStatus `json:"status" db:"status"`

	// Stats (read-only, derived by counting rows, never stored on the campaign)
	TotalRecipients int `json:"total_recipients" db:"-"`
	SentCount       int `json:"sent_count" db:"-"`
	ClickCount      int `json:"click_count" db:"-"`
	SubmissionCount int `json:"submission_count" db:"-"`

	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// CanStart reports whether the campaign may transition to ongoing.
func (c *Campaign) CanStart() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// Concurrency returns the effective send concurrency, never below 1.
func (c *Campaign) Concurrency() int {
	if c.EmailConcurrency < 1 {
		return 1
	}
	return c.EmailConcurrency
}

// SendDelay returns the per-worker pause applied after each successful send.
func (c *Campaign) SendDelay() time.Duration {
	if c.TimeDelaySeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeDelaySeconds) * time.Second
}
