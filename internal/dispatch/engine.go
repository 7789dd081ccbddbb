// Package dispatch implements the campaign send engine: a bounded-
// concurrency drain over a campaign's delivery tracking rows, detached from
// the HTTP request that triggered it. The store is the only channel between
// a run and later observers; the engine keeps no in-memory completion state
// that a restart would lose.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/distlock"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/logger"
	"github.com/cloudsecnetwork/phishintel/internal/template"
)

// CampaignStore is the campaign-level persistence the engine needs.
type CampaignStore interface {
	Campaign(ctx context.Context, id string) (*domain.Campaign, error)

	// CompleteIfOngoing flips the campaign to completed only if it is
	// currently ongoing. Safe to call more than once; later calls are
	// no-ops.
	CompleteIfOngoing(ctx context.Context, id string) error
}

// RowStore is the tracking-row persistence the engine needs. Mark calls are
// single-row, keyed by row identity, and must be no-ops when the row has
// been deleted out from under an in-flight send.
type RowStore interface {
	ListByStatus(ctx context.Context, campaignID string, status domain.TrackingStatus) ([]domain.TrackingRow, error)

	// MarkSent records a successful attempt: status sent, lastError
	// cleared, attemptCount incremented, lastAttemptTimestamp stamped.
	MarkSent(ctx context.Context, rowID string) error

	// MarkFailed records a failed attempt: status failed, lastError set,
	// attemptCount incremented, lastAttemptTimestamp stamped.
	MarkFailed(ctx context.Context, rowID, errMsg string) error
}

// ContactSource resolves the live contact behind a row for placeholder
// values. A deleted contact is not an error; the row's denormalized fields
// carry the send.
type ContactSource interface {
	Contact(ctx context.Context, contactID string) (*domain.Contact, error)
}

// ProfileSource resolves the campaign's sender profile.
type ProfileSource interface {
	Profile(ctx context.Context, id string) (*domain.SenderProfile, error)
}

// ContentSource yields the subject and body used for a campaign's sends.
type ContentSource interface {
	Content(ctx context.Context, c *domain.Campaign) (subject, body string, err error)
}

// Sender attempts delivery of one rendered message.
type Sender interface {
	Send(ctx context.Context, profile *domain.SenderProfile, msg *domain.EmailMessage) (*domain.SendResult, error)
}

// LockFactory builds the per-campaign run lock. Nil disables locking
// (single-process deployments and tests).
type LockFactory func(campaignID string) distlock.DistLock

// Config holds the engine's static settings.
type Config struct {
	PublicBaseURL string
	SignInPath    string
	SendTimeout   time.Duration
}

// Engine drains tracking rows for one campaign per run. A run loads its row
// set once at start; rows added later are not picked up. At most
// emailConcurrency sends are in flight; a worker that just sent
// successfully pauses timeDelaySeconds before its next pickup.
type Engine struct {
	campaigns CampaignStore
	rows      RowStore
	contacts  ContactSource
	profiles  ProfileSource
	content   ContentSource
	sender    Sender
	lock      LockFactory
	cfg       Config
}

// New creates a dispatch engine.
func New(campaigns CampaignStore, rows RowStore, contacts ContactSource, profiles ProfileSource, content ContentSource, sender Sender, lock LockFactory, cfg Config) *Engine {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/sign-in"
	}
	return &Engine{
		campaigns: campaigns,
		rows:      rows,
		contacts:  contacts,
		profiles:  profiles,
		content:   content,
		sender:    sender,
		lock:      lock,
		cfg:       cfg,
	}
}

// Dispatch starts a detached run over the campaign's pending rows and
// auto-completes the campaign on drain. Satisfies campaign.Runner.
func (e *Engine) Dispatch(campaignID string) {
	go e.RunDispatch(context.Background(), campaignID)
}

// Resend starts a detached run over the campaign's failed rows. The
// campaign's own status is never touched. Satisfies campaign.Runner.
func (e *Engine) Resend(campaignID string) {
	go e.RunResend(context.Background(), campaignID)
}

// RunDispatch executes a dispatch run synchronously. Exposed for callers
// that need to observe completion (tests, CLI tooling).
func (e *Engine) RunDispatch(ctx context.Context, campaignID string) {
	e.run(ctx, campaignID, domain.TrackingPending, true)
}

// RunResend executes a resend run synchronously.
func (e *Engine) RunResend(ctx context.Context, campaignID string) {
	e.run(ctx, campaignID, domain.TrackingFailed, false)
}

// run is the engine body. Engine-level failures (campaign unreadable, rows
// unlistable) are logged and abort the run without completing the campaign;
// an ongoing campaign that never completes is the operator's alarm signal.
func (e *Engine) run(ctx context.Context, campaignID string, pick domain.TrackingStatus, complete bool) {
	if e.lock != nil {
		l := e.lock(campaignID)
		ok, err := l.Acquire(ctx)
		if err != nil {
			logger.Error("engine lock acquire failed", "campaign_id", campaignID, "error", err.Error())
			return
		}
		if !ok {
			logger.Warn("engine run already in flight, skipping", "campaign_id", campaignID)
			return
		}
		defer l.Release(ctx)
	}

	c, err := e.campaigns.Campaign(ctx, campaignID)
	if err != nil {
		logger.Error("engine cannot load campaign", "campaign_id", campaignID, "error", err.Error())
		return
	}

	profile, err := e.profiles.Profile(ctx, c.SenderProfileID)
	if err != nil {
		logger.Error("engine cannot resolve sender profile", "campaign_id", campaignID, "error", err.Error())
		return
	}

	subject, body, err := e.content.Content(ctx, c)
	if err != nil {
		logger.Error("engine cannot resolve content", "campaign_id", campaignID, "error", err.Error())
		return
	}

	// One snapshot per run. Rows reaching `pick` status after this point
	// wait for the next run.
	rows, err := e.rows.ListByStatus(ctx, campaignID, pick)
	if err != nil {
		logger.Error("engine cannot list rows", "campaign_id", campaignID, "error", err.Error())
		return
	}

	logger.Info("engine run starting",
		"campaign_id", campaignID,
		"rows", fmt.Sprint(len(rows)),
		"concurrency", fmt.Sprint(c.Concurrency()),
		"resend", fmt.Sprint(pick == domain.TrackingFailed))

	jobs := make(chan domain.TrackingRow)
	var wg sync.WaitGroup
	delay := c.SendDelay()

	for i := 0; i < c.Concurrency(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// The pause throttles this worker only, and only between
			// sends: a worker whose last send drained the channel exits
			// immediately so completion isn't held up. Failures don't
			// pause.
			pause := false
			for row := range jobs {
				if pause {
					time.Sleep(delay)
				}
				pause = e.sendOne(ctx, c, profile, subject, body, &row) && delay > 0
			}
		}()
	}

	for _, row := range rows {
		jobs <- row
	}
	close(jobs)
	wg.Wait()

	if complete {
		if err := e.campaigns.CompleteIfOngoing(ctx, campaignID); err != nil {
			logger.Error("engine cannot complete campaign", "campaign_id", campaignID, "error", err.Error())
			return
		}
	}
	logger.Info("engine run finished", "campaign_id", campaignID)
}

// sendOne renders and delivers a single row's email and records the
// outcome on the row. A row's failure never aborts the run.
func (e *Engine) sendOne(ctx context.Context, c *domain.Campaign, profile *domain.SenderProfile, subject, body string, row *domain.TrackingRow) bool {
	fields := e.rowFields(ctx, row)
	fields["link"] = template.TrackingLink(e.cfg.PublicBaseURL, e.cfg.SignInPath, row.TrackingID)

	msg := &domain.EmailMessage{
		CampaignID:  c.ID,
		TrackingID:  row.TrackingID,
		To:          row.Email,
		FromName:    profile.DisplayName,
		FromEmail:   profile.FromEmail,
		Subject:     template.Render(subject, fields),
		HTMLContent: template.Render(body, fields),
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	defer cancel()

	res, err := e.sender.Send(sendCtx, profile, msg)
	if err == nil && res != nil && !res.Success {
		err = fmt.Errorf("delivery rejected: %s", res.Error)
	}
	if err != nil {
		if mErr := e.rows.MarkFailed(ctx, row.ID, err.Error()); mErr != nil {
			logger.Error("engine cannot mark row failed", "row_id", row.ID, "error", mErr.Error())
		}
		logger.Warn("send failed", "campaign_id", c.ID, "recipient", row.Email, "error", err.Error())
		return false
	}

	if mErr := e.rows.MarkSent(ctx, row.ID); mErr != nil {
		logger.Error("engine cannot mark row sent", "row_id", row.ID, "error", mErr.Error())
	}
	return true
}

// rowFields builds the placeholder mapping for one row. The live contact is
// preferred; when it is gone the denormalized row copies still identify the
// recipient.
func (e *Engine) rowFields(ctx context.Context, row *domain.TrackingRow) map[string]string {
	if contact, err := e.contacts.Contact(ctx, row.ContactID); err == nil && contact != nil {
		return contact.Fields()
	}
	return map[string]string{
		"email":       row.Email,
		"phoneNumber": row.PhoneNumber,
	}
}
