// Package api exposes the campaign engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/motorclub/mailer/internal/pkg/logger"
	"github.com/motorclub/mailer/internal/service/campaign"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	svc        *campaign.Service
	dispatcher *campaign.Dispatcher
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *campaign.Service, dispatcher *campaign.Dispatcher) *Handlers {
	return &Handlers{svc: svc, dispatcher: dispatcher}
}

// CreateCampaignRequest is the body of POST /api/campaigns.
type CreateCampaignRequest struct {
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	Content     string     `json:"content"`
	CreatedBy   string     `json:"created_by,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// HandleCreateCampaign creates a draft campaign.
func (h *Handlers) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Subject == "" {
		respondError(w, http.StatusBadRequest, "title and subject are required")
		return
	}

	c, err := h.svc.Create(r.Context(), campaign.CreateInput{
		Title:       req.Title,
		Subject:     req.Subject,
		Content:     req.Content,
		CreatedBy:   req.CreatedBy,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// HandleGetCampaign returns one campaign.
func (h *Handlers) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// HandlePrepare snapshots the confirmed audience into the send ledger and
// moves the campaign to sending.
func (h *Handlers) HandlePrepare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	prepared, err := h.svc.Prepare(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	logger.Info("campaign prepared", "campaign_id", id, "prepared_count", prepared)
	respondJSON(w, http.StatusOK, map[string]int{"prepared_count": prepared})
}

// HandleDispatch drains the campaign's pending ledger rows. The call is
// synchronous; for large audiences callers should rely on the worker binary
// instead and poll /stats.
func (h *Handlers) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.dispatcher.Dispatch(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	logger.Info("campaign dispatched",
		"campaign_id", id,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	respondJSON(w, http.StatusOK, result)
}

// SendTestRequest is the body of POST /api/campaigns/{id}/test.
type SendTestRequest struct {
	Address string `json:"address"`
}

// HandleSendTest sends a single proof message to the given address.
func (h *Handlers) HandleSendTest(w http.ResponseWriter, r *http.Request) {
	var req SendTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Address); err != nil {
		respondError(w, http.StatusBadRequest, "invalid address")
		return
	}

	if err := h.svc.SendTest(r.Context(), chi.URLParam(r, "id"), req.Address); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// HandleStats returns the campaign's ledger breakdown by status.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// HandlePreview renders the campaign without touching the ledger.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	rendered, err := h.svc.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rendered)
}

// HandleUnsubscribe is the signed one-click landing linked from every
// delivered message.
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	sig := chi.URLParam(r, "sig")

	if err := h.svc.Unsubscribe(r.Context(), token, sig); err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("<html><body><p>This unsubscribe link is not valid.</p></body></html>"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><body><p>You have been unsubscribed.</p></body></html>"))
}

// HandleHealth is a liveness probe.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service sentinels onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		respondError(w, http.StatusNotFound, "campaign not found")
	case errors.Is(err, campaign.ErrInvalidState):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, campaign.ErrLocked):
		respondError(w, http.StatusConflict, "campaign is already being dispatched")
	default:
		logger.Error("request failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
