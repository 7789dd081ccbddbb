package domain

import "time"

// VendorType identifies the transport used by a sender profile.
type VendorType string

const (
	VendorSMTP VendorType = "smtp"
	VendorSES  VendorType = "ses"
)

// SenderProfile holds the credentials and configuration for an outbound
// mail endpoint. Username/password are optional; an open relay profile is
// legal for lab environments.
type SenderProfile struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	VendorType  VendorType `json:"vendor_type" db:"vendor_type"`
	DisplayName string     `json:"display_name" db:"display_name"`
	FromEmail   string     `json:"from_email" db:"from_email"`
	Host        string     `json:"host" db:"host"`
	Port        int        `json:"port" db:"port"`
	Secure      bool       `json:"secure" db:"secure"`
	Username    string     `json:"-" db:"username"`
	Password    string     `json:"-" db:"password"`
	AWSRegion   string     `json:"aws_region" db:"aws_region"`
	AWSKey      string     `json:"-" db:"aws_key"`
	AWSSecret   string     `json:"-" db:"aws_secret"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// EmailTemplate holds a subject line and an HTML body containing
// {{field}} / {field} placeholders.
type EmailTemplate struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EmailMessage is the fully-resolved message ready for a transport.
// By the time a message reaches this struct, all placeholder substitution
// and tracking-link synthesis is complete.
type EmailMessage struct {
	CampaignID  string `json:"campaign_id"`
	TrackingID  string `json:"tracking_id"`
	To          string `json:"to"`
	FromName    string `json:"from_name"`
	FromEmail   string `json:"from_email"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
}

// SendResult is returned by a transport after attempting delivery.
type SendResult struct {
	Success   bool       `json:"success"`
	MessageID string     `json:"message_id"`
	Vendor    VendorType `json:"vendor"`
	SentAt    time.Time  `json:"sent_at"`
	Error     string     `json:"error,omitempty"`
}
