// Package mailer implements the outbound transports for sender profiles.
//
// A Transport both delivers messages and verifies a profile's connectivity
// and credentials. Verification is a synchronous precondition check invoked
// before campaign preparation, start, and resend; it is never retried by
// the core.
package mailer

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
)

// Transport sends and verifies against one vendor type.
type Transport interface {
	// Send attempts delivery of a single message. Transport-level problems
	// (dial, auth, rejected recipient, timeout) come back as an error; the
	// caller records them on the tracking row.
	Send(ctx context.Context, profile *domain.SenderProfile, msg *domain.EmailMessage) (*domain.SendResult, error)

	// Verify establishes a connection and authenticates (if credentials are
	// given) without sending mail. A nil return means the profile is usable.
	Verify(ctx context.Context, profile *domain.SenderProfile) error
}

// Mailer routes profiles to the right transport by vendor type.
type Mailer struct {
	smtp Transport
	ses  Transport
}

// New creates a mailer with the default SMTP and SES transports.
func New(sendTimeout time.Duration) *Mailer {
	return &Mailer{
		smtp: NewSMTPTransport(sendTimeout),
		ses:  NewSESTransport(),
	}
}

func (m *Mailer) transport(p *domain.SenderProfile) (Transport, error) {
	switch p.VendorType {
	case domain.VendorSES:
		return m.ses, nil
	case domain.VendorSMTP, "":
		// Profiles created before vendor types existed carry an empty value.
		return m.smtp, nil
	default:
		return nil, fmt.Errorf("unsupported vendor type: %s", p.VendorType)
	}
}

// Send delivers msg through the profile's transport.
func (m *Mailer) Send(ctx context.Context, profile *domain.SenderProfile, msg *domain.EmailMessage) (*domain.SendResult, error) {
	t, err := m.transport(profile)
	if err != nil {
		return nil, err
	}
	return t.Send(ctx, profile, msg)
}

// Verify checks the profile's transport connectivity and credentials.
func (m *Mailer) Verify(ctx context.Context, profile *domain.SenderProfile) error {
	t, err := m.transport(profile)
	if err != nil {
		return err
	}
	return t.Verify(ctx, profile)
}

// buildMIME assembles the RFC 5322 message for SMTP delivery.
func buildMIME(profile *domain.SenderProfile, msg *domain.EmailMessage) string {
	fromName := msg.FromName
	if fromName == "" {
		fromName = profile.DisplayName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", fromName), profile.FromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.New().String(), profile.Host)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLContent)
	b.WriteString("\r\n")
	return b.String()
}
