package domain

import "time"

// Contact represents a single recipient within an audience.
type Contact struct {
	ID          string    `json:"id" db:"id"`
	AudienceID  string    `json:"audience_id" db:"audience_id"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	Email       string    `json:"email" db:"email"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Role        string    `json:"role" db:"role"`
	Country     string    `json:"country" db:"country"`
	Department  string    `json:"department" db:"department"`
	Company     string    `json:"company" db:"company"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Audience is a named group of contacts targeted by campaigns.
type Audience struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	ContactCount int       `json:"contact_count" db:"contact_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Fields returns the flat placeholder mapping used by the template renderer.
// The per-recipient "link" field is synthesized by the dispatch engine, not
// stored on the contact, so it is absent here.
func (c *Contact) Fields() map[string]string {
	return map[string]string{
		"firstName":   c.FirstName,
		"lastName":    c.LastName,
		"email":       c.Email,
		"phoneNumber": c.PhoneNumber,
		"role":        c.Role,
		"country":     c.Country,
		"department":  c.Department,
		"company":     c.Company,
	}
}
