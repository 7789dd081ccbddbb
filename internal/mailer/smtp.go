package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/logger"
)

// SMTPTransport delivers mail over plain SMTP with implicit TLS (secure
// profiles) or opportunistic STARTTLS. Every connection carries an overall
// deadline so a stalled relay surfaces as a per-row failure, not a hung
// worker.
type SMTPTransport struct {
	timeout time.Duration
}

// NewSMTPTransport creates the SMTP transport. timeout bounds the whole
// dial/auth/send conversation for one message.
func NewSMTPTransport(timeout time.Duration) *SMTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPTransport{timeout: timeout}
}

// connect dials the profile's endpoint, negotiates TLS, and authenticates.
// Callers own the returned client and must Quit or Close it.
func (t *SMTPTransport) connect(ctx context.Context, p *domain.SenderProfile) (*smtp.Client, error) {
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))

	dialer := &net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp connect %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(t.timeout))

	if p.Secure {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: p.Host})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tls negotiation with %s: %w", addr, err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, p.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp greeting from %s: %w", addr, err)
	}

	if !p.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: p.Host}); err != nil {
				client.Close()
				return nil, fmt.Errorf("starttls with %s: %w", addr, err)
			}
		}
	}

	if p.Username != "" {
		auth := smtp.PlainAuth("", p.Username, p.Password, p.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp auth rejected for %s: %w", p.Username, err)
		}
	}

	return client, nil
}

// Send delivers a single message through the profile's SMTP endpoint.
func (t *SMTPTransport) Send(ctx context.Context, p *domain.SenderProfile, msg *domain.EmailMessage) (*domain.SendResult, error) {
	client, err := t.connect(ctx, p)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.Mail(p.FromEmail); err != nil {
		return nil, fmt.Errorf("mail from %s: %w", p.FromEmail, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return nil, fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return nil, fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(buildMIME(p, msg))); err != nil {
		w.Close()
		return nil, fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("smtp finish body: %w", err)
	}

	_ = client.Quit()

	logger.Debug("smtp send ok", "host", p.Host, "recipient", msg.To, "campaign_id", msg.CampaignID)
	return &domain.SendResult{
		Success: true,
		Vendor:  domain.VendorSMTP,
		SentAt:  time.Now(),
	}, nil
}

// Verify connects and authenticates against the profile without sending.
// Failures come back descriptive (unreachable host, TLS failure, rejected
// credentials) so the admin surface can show them verbatim.
func (t *SMTPTransport) Verify(ctx context.Context, p *domain.SenderProfile) error {
	if p.Host == "" {
		return fmt.Errorf("sender profile %s has no SMTP host", p.ID)
	}
	client, err := t.connect(ctx, p)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Noop(); err != nil {
		return fmt.Errorf("smtp noop: %w", err)
	}
	return client.Quit()
}
