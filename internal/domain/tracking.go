package domain

import "time"

// TrackingStatus enumerates the delivery lifecycle of a single recipient row.
type TrackingStatus string

const (
	TrackingPending  TrackingStatus = "pending"
	TrackingSent     TrackingStatus = "sent"
	TrackingFailed   TrackingStatus = "failed"
	TrackingDisabled TrackingStatus = "disabled"
)

// TrackingRow is one (campaign, recipient) delivery record. Email and phone
// are denormalized copies taken at prepare time so reporting keeps showing
// the recipient as they were at send time, even if the contact is later
// edited or deleted.
type TrackingRow struct {
	ID            string         `json:"id" db:"id"`
	CampaignID    string         `json:"campaign_id" db:"campaign_id"`
	ContactID     string         `json:"contact_id" db:"contact_id"`
	Email         string         `json:"email" db:"email"`
	PhoneNumber   string         `json:"phone_number" db:"phone_number"`
	TrackingID    string         `json:"tracking_id" db:"tracking_id"`
	Status        TrackingStatus `json:"status" db:"status"`
	AttemptCount  int            `json:"attempt_count" db:"attempt_count"`
	LastError     string         `json:"last_error" db:"last_error"`
	LastAttemptAt *time.Time     `json:"last_attempt_at" db:"last_attempt_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// EmailClick aggregates tracking-link follows per (campaign, recipient email).
type EmailClick struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	Email      string    `json:"email" db:"email"`
	ClickCount int       `json:"click_count" db:"click_count"`
	IPAddress  string    `json:"ip_address" db:"ip_address"`
	Device     string    `json:"device" db:"device"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Submission is one credential-submission event captured by the decoy form.
// Append-only: the core never updates or individually deletes these.
type Submission struct {
	ID             string    `json:"id" db:"id"`
	CampaignID     string    `json:"campaign_id" db:"campaign_id"`
	RecipientEmail string    `json:"recipient_email" db:"recipient_email"`
	TypedEmail     string    `json:"typed_email" db:"typed_email"`
	TypedPassword  string    `json:"-" db:"typed_password"`
	IPAddress      string    `json:"ip_address" db:"ip_address"`
	Device         string    `json:"device" db:"device"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
