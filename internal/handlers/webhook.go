package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hdcoach-backend/internal/models"
)

type webhookStore interface {
	ListAll(ctx context.Context) ([]*models.Webhook, error)
	Create(ctx context.Context, name, url string, priority int) (*models.Webhook, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error)
	ToggleActive(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// WebhookHandler is the administrative surface over the webhook directory.
type WebhookHandler struct {
	store webhookStore
}

func NewWebhookHandler(store webhookStore) *WebhookHandler {
	return &WebhookHandler{store: store}
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	webhooks, err := h.store.ListAll(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list webhooks", r))
		return
	}
	if webhooks == nil {
		webhooks = []*models.Webhook{}
	}
	writeJSON(w, http.StatusOK, webhooks)
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)

	priority := 0
	if req.Priority != nil {
		priority = *req.Priority
	}

	if msg := validateWebhookFields(req.Name, req.URL, priority); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", msg, r))
		return
	}

	webhook, err := h.store.Create(r.Context(), req.Name, req.URL, priority)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create webhook", r))
		return
	}
	writeJSON(w, http.StatusCreated, webhook)
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid webhook ID", r))
		return
	}

	var req models.UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
		if trimmed == "" {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Name cannot be empty", r))
			return
		}
	}
	if req.URL != nil {
		trimmed := strings.TrimSpace(*req.URL)
		req.URL = &trimmed
		if !isValidWebhookURL(trimmed) {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "URL must be an absolute http(s) URL", r))
			return
		}
	}
	if req.Priority != nil && *req.Priority < 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Priority must be non-negative", r))
		return
	}

	webhook, err := h.store.Update(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Webhook not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update webhook", r))
		return
	}
	writeJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid webhook ID", r))
		return
	}

	webhook, err := h.store.ToggleActive(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Webhook not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to toggle webhook", r))
		return
	}
	writeJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid webhook ID", r))
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete webhook", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook deleted"})
}

func validateWebhookFields(name, rawURL string, priority int) string {
	if name == "" {
		return "Name is required"
	}
	if !isValidWebhookURL(rawURL) {
		return "URL must be an absolute http(s) URL"
	}
	if priority < 0 {
		return "Priority must be non-negative"
	}
	return ""
}

func isValidWebhookURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
