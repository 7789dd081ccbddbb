// Package api exposes the authenticated admin surface: campaign CRUD and
// lifecycle operations consumed by the console UI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/logger"
	"github.com/cloudsecnetwork/phishintel/internal/service/campaign"
)

// CampaignService is the slice of the campaign service the handlers use.
type CampaignService interface {
	Prepare(ctx context.Context, input campaign.PrepareInput) (*domain.Campaign, error)
	Start(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error
	Reactivate(ctx context.Context, id string) error
	Resend(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error)
	Rows(ctx context.Context, id string) ([]domain.TrackingRow, error)
}

// EngagementReader lists what recipients did with a campaign's decoy.
type EngagementReader interface {
	ClicksByCampaign(ctx context.Context, campaignID string) ([]domain.EmailClick, error)
	SubmissionsByCampaign(ctx context.Context, campaignID string) ([]domain.Submission, error)
}

// Handlers contains the admin HTTP handlers.
type Handlers struct {
	campaigns  CampaignService
	engagement EngagementReader
}

func NewHandlers(campaigns CampaignService, engagement EngagementReader) *Handlers {
	return &Handlers{campaigns: campaigns, engagement: engagement}
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateCampaign prepares a campaign: validates references, verifies the
// sender profile, and snapshots the audience into tracking rows.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.PrepareInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	c, err := h.campaigns.Prepare(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := campaign.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	items, total, err := h.campaigns.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if items == nil {
		items = []domain.Campaign{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": items,
		"total":     total,
	})
}

func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handlers) GetCampaignRows(w http.ResponseWriter, r *http.Request) {
	rows, err := h.campaigns.Rows(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.TrackingRow{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"rows": rows})
}

// GetCampaignEngagement returns the per-recipient click aggregates and the
// captured submissions for one campaign. Typed passwords never serialize.
func (h *Handlers) GetCampaignEngagement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.campaigns.Get(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	clicks, err := h.engagement.ClicksByCampaign(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	submissions, err := h.engagement.SubmissionsByCampaign(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if clicks == nil {
		clicks = []domain.EmailClick{}
	}
	if submissions == nil {
		submissions = []domain.Submission{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"clicks":      clicks,
		"submissions": submissions,
	})
}

// StartCampaign re-verifies the sender profile, flips the campaign to
// ongoing, and kicks off the detached dispatch run.
func (h *Handlers) StartCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Start(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ongoing"})
}

func (h *Handlers) ArchiveCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Archive(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (h *Handlers) ReactivateCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Reactivate(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// ResendCampaign retries the failed rows of a completed campaign. Zero
// failed rows is reported as such, not as an error.
func (h *Handlers) ResendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.campaigns.Resend(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"resending": n,
	})
}

func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondServiceError maps service-layer sentinel errors onto HTTP codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, campaign.ErrAudienceNotFound),
		errors.Is(err, campaign.ErrProfileNotFound),
		errors.Is(err, campaign.ErrTemplateNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, campaign.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, campaign.ErrTemplateRequired),
		errors.Is(err, campaign.ErrTemplateConflict):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, campaign.ErrVerificationFailed):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
