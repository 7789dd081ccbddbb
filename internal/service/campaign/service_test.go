package campaign_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/service/campaign"
)

// memRepo is an in-memory campaign repository for unit testing.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	tracking  *memTracking
	clicks    map[string]int // campaignID → click rows
	subs      map[string]int // campaignID → submission rows
}

func newMemRepo(tr *memTracking) *memRepo {
	return &memRepo{
		campaigns: make(map[string]*domain.Campaign),
		tracking:  tr,
		clicks:    make(map[string]int),
		subs:      make(map[string]int),
	}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[cp.ID] = &cp
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, from, to domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if c.Status != from {
		return campaign.ErrInvalidTransition
	}
	c.Status = to
	return nil
}

func (m *memRepo) DeleteCascade(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.campaigns, id)
	delete(m.clicks, id)
	delete(m.subs, id)
	m.tracking.deleteCampaign(id)
	return nil
}

func (m *memRepo) Counts(_ context.Context, id string) (campaign.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := campaign.Counts{ClickCount: m.clicks[id], SubmissionCount: m.subs[id]}
	for _, r := range m.tracking.rowsFor(id) {
		counts.TotalRecipients++
		if r.Status == domain.TrackingSent {
			counts.SentCount++
		}
	}
	return counts, nil
}

// memTracking is an in-memory tracking row store.
type memTracking struct {
	mu             sync.Mutex
	rows           map[string]*domain.TrackingRow // keyed by row ID
	failInserts    int                            // first N inserts return ErrDuplicateTrackingID
	wrapDuplicates bool                           // return the sentinel wrapped, as a store may
}

func newMemTracking() *memTracking {
	return &memTracking{rows: make(map[string]*domain.TrackingRow)}
}

func (m *memTracking) InsertRow(_ context.Context, row *domain.TrackingRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInserts > 0 {
		m.failInserts--
		if m.wrapDuplicates {
			return fmt.Errorf("insert tracking row: %w", campaign.ErrDuplicateTrackingID)
		}
		return campaign.ErrDuplicateTrackingID
	}
	for _, r := range m.rows {
		if r.TrackingID == row.TrackingID {
			return campaign.ErrDuplicateTrackingID
		}
	}
	cp := *row
	m.rows[cp.ID] = &cp
	return nil
}

func (m *memTracking) CountByStatus(_ context.Context, campaignID string, status domain.TrackingStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rowsFor(campaignID) {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memTracking) BulkUpdateStatus(_ context.Context, campaignID string, from, to domain.TrackingStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.CampaignID == campaignID && r.Status == from {
			r.Status = to
			n++
		}
	}
	return n, nil
}

func (m *memTracking) ListByCampaign(_ context.Context, campaignID string) ([]domain.TrackingRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TrackingRow
	for _, r := range m.rowsFor(campaignID) {
		out = append(out, *r)
	}
	return out, nil
}

// callers hold m.mu
func (m *memTracking) rowsFor(campaignID string) []*domain.TrackingRow {
	var out []*domain.TrackingRow
	for _, r := range m.rows {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	return out
}

func (m *memTracking) deleteCampaign(campaignID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r.CampaignID == campaignID {
			delete(m.rows, id)
		}
	}
}

func (m *memTracking) setStatuses(campaignID string, statuses ...domain.TrackingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := 0
	for _, r := range m.rows {
		if r.CampaignID == campaignID && i < len(statuses) {
			r.Status = statuses[i]
			i++
		}
	}
}

// stub resolvers

type stubAudiences struct{ contacts []domain.Contact }

func (s *stubAudiences) Contacts(_ context.Context, audienceID string) ([]domain.Contact, error) {
	if audienceID == "missing" {
		return nil, campaign.ErrAudienceNotFound
	}
	return s.contacts, nil
}

type stubProfiles struct{}

func (stubProfiles) Profile(_ context.Context, id string) (*domain.SenderProfile, error) {
	if id == "missing" {
		return nil, campaign.ErrProfileNotFound
	}
	return &domain.SenderProfile{ID: id, Host: "smtp.example.com", Port: 587}, nil
}

type stubTemplates struct{}

func (stubTemplates) Template(_ context.Context, id string) (*domain.EmailTemplate, error) {
	if id == "missing" {
		return nil, campaign.ErrTemplateNotFound
	}
	return &domain.EmailTemplate{ID: id, Subject: "Hi {firstName}", Body: "<a href='{{link}}'>x</a>"}, nil
}

type stubVerifier struct{ err error }

func (s *stubVerifier) Verify(_ context.Context, _ *domain.SenderProfile) error { return s.err }

type recordRunner struct {
	mu         sync.Mutex
	dispatched []string
	resent     []string
}

func (r *recordRunner) Dispatch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched = append(r.dispatched, id)
}

func (r *recordRunner) Resend(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resent = append(r.resent, id)
}

type fixture struct {
	svc      *campaign.Service
	repo     *memRepo
	tracking *memTracking
	verifier *stubVerifier
	runner   *recordRunner
}

func newFixture(contacts int) *fixture {
	var cs []domain.Contact
	for i := 0; i < contacts; i++ {
		cs = append(cs, domain.Contact{
			ID:          fmt.Sprintf("contact-%d", i),
			FirstName:   fmt.Sprintf("First%d", i),
			Email:       fmt.Sprintf("user%d@victim.example.com", i),
			PhoneNumber: fmt.Sprintf("+1555000%04d", i),
		})
	}
	tr := newMemTracking()
	repo := newMemRepo(tr)
	verifier := &stubVerifier{}
	runner := &recordRunner{}
	svc := campaign.NewService(repo, tr, &stubAudiences{contacts: cs}, stubProfiles{}, stubTemplates{}, verifier, runner, campaign.Options{})
	return &fixture{svc: svc, repo: repo, tracking: tr, verifier: verifier, runner: runner}
}

func prepare(t *testing.T, f *fixture) *domain.Campaign {
	t.Helper()
	c, err := f.svc.Prepare(context.Background(), campaign.PrepareInput{
		Name: "Q3 awareness", AudienceID: "aud-1", SenderProfileID: "prof-1", TemplateID: "tmpl-1",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return c
}

func TestPrepare(t *testing.T) {
	f := newFixture(5)
	c := prepare(t, f)

	if c.Status != domain.CampaignDraft {
		t.Fatalf("expected draft, got %s", c.Status)
	}

	rows, _ := f.tracking.ListByCampaign(context.Background(), c.ID)
	if len(rows) != 5 {
		t.Fatalf("expected 5 tracking rows, got %d", len(rows))
	}
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.Status != domain.TrackingPending {
			t.Fatalf("row not pending: %s", r.Status)
		}
		if len(r.TrackingID) != 12 {
			t.Fatalf("tracking id %q not 12 chars", r.TrackingID)
		}
		if seen[r.TrackingID] {
			t.Fatalf("duplicate tracking id %s", r.TrackingID)
		}
		seen[r.TrackingID] = true
		if r.Email == "" || r.PhoneNumber == "" {
			t.Fatal("denormalized contact fields missing")
		}
	}
}

func TestPrepareEmptyAudience(t *testing.T) {
	f := newFixture(0)
	c := prepare(t, f)

	rows, _ := f.tracking.ListByCampaign(context.Background(), c.ID)
	if len(rows) != 0 {
		t.Fatalf("expected zero rows, got %d", len(rows))
	}
}

func TestPrepareTemplateInvariant(t *testing.T) {
	f := newFixture(1)

	_, err := f.svc.Prepare(context.Background(), campaign.PrepareInput{
		Name: "x", AudienceID: "a", SenderProfileID: "p", TemplateID: "t", AIEnabled: true,
	})
	if !errors.Is(err, campaign.ErrTemplateConflict) {
		t.Fatalf("expected ErrTemplateConflict, got %v", err)
	}

	_, err = f.svc.Prepare(context.Background(), campaign.PrepareInput{
		Name: "x", AudienceID: "a", SenderProfileID: "p",
	})
	if !errors.Is(err, campaign.ErrTemplateRequired) {
		t.Fatalf("expected ErrTemplateRequired, got %v", err)
	}
}

func TestPrepareVerificationFailure(t *testing.T) {
	f := newFixture(3)
	f.verifier.err = errors.New("auth rejected")

	_, err := f.svc.Prepare(context.Background(), campaign.PrepareInput{
		Name: "x", AudienceID: "a", SenderProfileID: "p", TemplateID: "t",
	})
	if !errors.Is(err, campaign.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
	if len(f.repo.campaigns) != 0 {
		t.Fatal("campaign must not be created when verification fails")
	}
}

func TestPrepareMissingAudience(t *testing.T) {
	f := newFixture(1)
	_, err := f.svc.Prepare(context.Background(), campaign.PrepareInput{
		Name: "x", AudienceID: "missing", SenderProfileID: "p", TemplateID: "t",
	})
	if !errors.Is(err, campaign.ErrAudienceNotFound) {
		t.Fatalf("expected ErrAudienceNotFound, got %v", err)
	}
}

func TestPrepareRetriesDuplicateTrackingID(t *testing.T) {
	f := newFixture(2)
	f.tracking.failInserts = 3 // first three inserts collide

	c := prepare(t, f)
	rows, _ := f.tracking.ListByCampaign(context.Background(), c.ID)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after retries, got %d", len(rows))
	}
}

func TestPrepareRetriesWrappedDuplicateTrackingID(t *testing.T) {
	f := newFixture(2)
	f.tracking.failInserts = 3
	f.tracking.wrapDuplicates = true // store wraps the sentinel with context

	c := prepare(t, f)
	rows, _ := f.tracking.ListByCampaign(context.Background(), c.ID)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows after retries, got %d", len(rows))
	}
}

func TestPrepareTokenRetryExhaustion(t *testing.T) {
	f := newFixture(1)
	f.tracking.failInserts = 100 // more collisions than the retry budget

	_, err := f.svc.Prepare(context.Background(), campaign.PrepareInput{
		Name: "x", AudienceID: "a", SenderProfileID: "p", TemplateID: "t",
	})
	if err == nil || !strings.Contains(err.Error(), "exhausted") {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
}

func TestStart(t *testing.T) {
	f := newFixture(2)
	c := prepare(t, f)

	if err := f.svc.Start(context.Background(), c.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	got, _ := f.repo.Get(context.Background(), c.ID)
	if got.Status != domain.CampaignOngoing {
		t.Fatalf("expected ongoing, got %s", got.Status)
	}
	if len(f.runner.dispatched) != 1 || f.runner.dispatched[0] != c.ID {
		t.Fatalf("dispatch engine not invoked: %v", f.runner.dispatched)
	}
}

func TestStartWrongStatus(t *testing.T) {
	f := newFixture(1)
	c := prepare(t, f)
	f.repo.campaigns[c.ID].Status = domain.CampaignOngoing

	err := f.svc.Start(context.Background(), c.ID)
	if !errors.Is(err, campaign.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if len(f.runner.dispatched) != 0 {
		t.Fatal("runner must not be invoked on rejected start")
	}
}

func TestStartVerificationFailure(t *testing.T) {
	f := newFixture(1)
	c := prepare(t, f)
	f.verifier.err = errors.New("relay unreachable")

	err := f.svc.Start(context.Background(), c.ID)
	if !errors.Is(err, campaign.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
	got, _ := f.repo.Get(context.Background(), c.ID)
	if got.Status != domain.CampaignDraft {
		t.Fatalf("status mutated on failed start: %s", got.Status)
	}
}

func TestArchiveReactivate(t *testing.T) {
	f := newFixture(10)
	c := prepare(t, f)
	f.repo.campaigns[c.ID].Status = domain.CampaignCompleted
	f.tracking.setStatuses(c.ID,
		domain.TrackingSent, domain.TrackingSent, domain.TrackingSent, domain.TrackingSent,
		domain.TrackingSent, domain.TrackingSent, domain.TrackingSent, domain.TrackingSent,
		domain.TrackingFailed, domain.TrackingFailed)

	ctx := context.Background()
	if err := f.svc.Archive(ctx, c.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	disabled, _ := f.tracking.CountByStatus(ctx, c.ID, domain.TrackingDisabled)
	failed, _ := f.tracking.CountByStatus(ctx, c.ID, domain.TrackingFailed)
	if disabled != 8 || failed != 2 {
		t.Fatalf("after archive: disabled=%d failed=%d", disabled, failed)
	}

	// Second archive must be rejected: status is already archived.
	if err := f.svc.Archive(ctx, c.ID); !errors.Is(err, campaign.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double archive, got %v", err)
	}

	if err := f.svc.Reactivate(ctx, c.ID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	sent, _ := f.tracking.CountByStatus(ctx, c.ID, domain.TrackingSent)
	failed, _ = f.tracking.CountByStatus(ctx, c.ID, domain.TrackingFailed)
	if sent != 8 || failed != 2 {
		t.Fatalf("after reactivate: sent=%d failed=%d", sent, failed)
	}

	if err := f.svc.Reactivate(ctx, c.ID); !errors.Is(err, campaign.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double reactivate, got %v", err)
	}
}

func TestArchiveRequiresCompleted(t *testing.T) {
	f := newFixture(1)
	c := prepare(t, f)

	if err := f.svc.Archive(context.Background(), c.ID); !errors.Is(err, campaign.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition archiving a draft, got %v", err)
	}
}

func TestResend(t *testing.T) {
	f := newFixture(3)
	c := prepare(t, f)
	f.repo.campaigns[c.ID].Status = domain.CampaignCompleted
	f.tracking.setStatuses(c.ID, domain.TrackingSent, domain.TrackingFailed, domain.TrackingFailed)

	n, err := f.svc.Resend(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 failed rows selected, got %d", n)
	}
	if len(f.runner.resent) != 1 {
		t.Fatal("resend engine not invoked")
	}

	got, _ := f.repo.Get(context.Background(), c.ID)
	if got.Status != domain.CampaignCompleted {
		t.Fatalf("resend must not change campaign status, got %s", got.Status)
	}
}

func TestResendNoFailedRowsIsNoop(t *testing.T) {
	f := newFixture(2)
	c := prepare(t, f)
	f.repo.campaigns[c.ID].Status = domain.CampaignCompleted
	f.tracking.setStatuses(c.ID, domain.TrackingSent, domain.TrackingSent)

	n, err := f.svc.Resend(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no-op, got %d", n)
	}
	if len(f.runner.resent) != 0 {
		t.Fatal("runner must not be invoked for a no-op resend")
	}
}

func TestResendRequiresCompleted(t *testing.T) {
	f := newFixture(1)
	c := prepare(t, f)

	if _, err := f.svc.Resend(context.Background(), c.ID); !errors.Is(err, campaign.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(4)
	c := prepare(t, f)
	f.repo.clicks[c.ID] = 3
	f.repo.subs[c.ID] = 1

	if err := f.svc.Delete(context.Background(), c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := f.svc.Get(context.Background(), c.ID); !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	rows, _ := f.tracking.ListByCampaign(context.Background(), c.ID)
	if len(rows) != 0 {
		t.Fatalf("tracking rows survived delete: %d", len(rows))
	}
}

func TestGetDerivedCounts(t *testing.T) {
	f := newFixture(3)
	c := prepare(t, f)
	f.tracking.setStatuses(c.ID, domain.TrackingSent, domain.TrackingSent, domain.TrackingFailed)
	f.repo.clicks[c.ID] = 5
	f.repo.subs[c.ID] = 2

	got, err := f.svc.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalRecipients != 3 || got.SentCount != 2 || got.ClickCount != 5 || got.SubmissionCount != 2 {
		t.Fatalf("counts = %d/%d/%d/%d", got.TotalRecipients, got.SentCount, got.ClickCount, got.SubmissionCount)
	}
}
