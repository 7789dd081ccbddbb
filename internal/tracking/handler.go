// Package tracking serves the unauthenticated endpoints that campaign
// emails point at: the sign-in landing page (which records the click) and
// the credential-submission form post. It runs as its own small server so
// the admin API never has to be reachable from recipient networks.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cloudsecnetwork/phishintel/internal/domain"
	"github.com/cloudsecnetwork/phishintel/internal/pkg/logger"
	"github.com/cloudsecnetwork/phishintel/internal/service/campaign"
)

// ErrLinkDisabled marks a tracking identifier whose row was disabled by an
// archive. Handlers translate it to 403.
var ErrLinkDisabled = errors.New("tracking link disabled")

// RowResolver maps a public tracking identifier to its delivery row.
type RowResolver interface {
	FindByTrackingID(ctx context.Context, trackingID string) (*domain.TrackingRow, error)
}

// EventStore records what recipients do with the decoy.
type EventStore interface {
	UpsertClick(ctx context.Context, campaignID, email, ip, device string) error
	InsertSubmission(ctx context.Context, s *domain.Submission) error
}

type Handler struct {
	rows   RowResolver
	events EventStore
}

func NewHandler(rows RowResolver, events EventStore) *Handler {
	return &Handler{rows: rows, events: events}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/sign-in", h.HandleSignIn)
	r.Post("/sign-in", h.HandleSubmit)
	r.Get("/health", h.HandleHealth)
	return r
}

// resolve looks up the row for the request's tracking identifier and
// enforces the disabled-link rejection shared by both endpoints.
func (h *Handler) resolve(r *http.Request, trackingID string) (*domain.TrackingRow, error) {
	if trackingID == "" {
		return nil, campaign.ErrNotFound
	}
	row, err := h.rows.FindByTrackingID(r.Context(), trackingID)
	if err != nil {
		return nil, err
	}
	if row.Status == domain.TrackingDisabled {
		return nil, ErrLinkDisabled
	}
	return row, nil
}

// HandleSignIn records the click and serves the decoy sign-in page. The
// page posts back to the same path with the tracking identifier preserved.
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	trackingID := r.URL.Query().Get("id")
	row, err := h.resolve(r, trackingID)
	if err != nil {
		h.reject(w, err)
		return
	}

	if err := h.events.UpsertClick(r.Context(), row.CampaignID, row.Email, realIP(r), r.UserAgent()); err != nil {
		logger.Error("record click failed", "error", err, "campaign_id", row.CampaignID)
		// The recipient still gets the page; losing one click beats a 500
		// that would look broken and burn the pretext.
	} else {
		logger.Info("click recorded",
			"campaign_id", row.CampaignID,
			"recipient", logger.RedactEmail(row.Email),
			"src", r.URL.Query().Get("src"))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(signInPage(trackingID)))
}

// HandleSubmit captures whatever the recipient typed into the decoy form.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	trackingID := r.FormValue("id")
	if trackingID == "" {
		trackingID = r.URL.Query().Get("id")
	}
	row, err := h.resolve(r, trackingID)
	if err != nil {
		h.reject(w, err)
		return
	}

	sub := &domain.Submission{
		CampaignID:     row.CampaignID,
		RecipientEmail: row.Email,
		TypedEmail:     r.FormValue("email"),
		TypedPassword:  r.FormValue("password"),
		IPAddress:      realIP(r),
		Device:         r.UserAgent(),
	}
	if err := h.events.InsertSubmission(r.Context(), sub); err != nil {
		logger.Error("record submission failed", "error", err, "campaign_id", row.CampaignID)
		http.Error(w, "try again later", http.StatusInternalServerError)
		return
	}
	logger.Info("submission recorded",
		"campaign_id", row.CampaignID,
		"recipient", logger.RedactEmail(row.Email))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(resultPage))
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) reject(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLinkDisabled):
		http.Error(w, "link no longer active", http.StatusForbidden)
	case errors.Is(err, campaign.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "try again later", http.StatusInternalServerError)
	}
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
