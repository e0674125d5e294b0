package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"hdcoach-backend/internal/metrics"
	"hdcoach-backend/internal/middleware"
	"hdcoach-backend/internal/models"
)

const (
	maxMessageLen  = 4000
	maxDateCodeLen = 32
)

type chatReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
}

type messageRelay interface {
	Deliver(ctx context.Context, req *models.RelayRequest) (json.RawMessage, error)
}

// RelayHandler owns the relay endpoint: payload validation, caller/ownership
// authorization, then delegation to the failover relay service.
type RelayHandler struct {
	chats   chatReader
	relay   messageRelay
	metrics *metrics.RelayMetrics
}

func NewRelayHandler(chats chatReader, relay messageRelay, relayMetrics *metrics.RelayMetrics) *RelayHandler {
	return &RelayHandler{
		chats:   chats,
		relay:   relay,
		metrics: relayMetrics,
	}
}

// relayPayload is the raw wire form of the relay body. Optional fields stay
// json.RawMessage so an explicit null is distinguishable from an absent
// field; the schema rejects present-but-invalid values rather than silently
// treating them as omitted.
type relayPayload struct {
	DateCode     json.RawMessage `json:"dateCode"`
	Message      json.RawMessage `json:"message"`
	SystemPrompt json.RawMessage `json:"system_prompt"`
	ChatID       json.RawMessage `json:"chat_id"`
	UserID       json.RawMessage `json:"user_id"`
}

// Send handles POST /relay. Caller-facing errors stay generic; validation and
// upstream detail is logged against the request's correlation id.
func (h *RelayHandler) Send(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var payload relayPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("[relay] [%s] Payload decode failed: %v", requestID, err)
		h.metrics.RecordRequest("400")
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request payload.", r))
		return
	}

	req, fieldErrors := validateRelayRequest(&payload)
	if len(fieldErrors) > 0 {
		log.Printf("[relay] [%s] Payload validation failed: %v", requestID, fieldErrors)
		h.metrics.RecordRequest("400")
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request payload.", r))
		return
	}

	callerID := middleware.GetUserID(r.Context())
	if callerID != req.UserID {
		log.Printf("[relay] [%s] User mismatch. Token user: %s, payload user: %s", requestID, callerID, req.UserID)
		h.metrics.RecordRequest("403")
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Forbidden.", r))
		return
	}

	if req.ChatID != nil {
		chat, err := h.chats.GetByID(r.Context(), *req.ChatID)
		if err != nil {
			log.Printf("[relay] [%s] Chat not found or inaccessible. chat_id=%s: %v", requestID, req.ChatID, err)
			h.metrics.RecordRequest("404")
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat not found.", r))
			return
		}
		if chat.UserID != req.UserID {
			log.Printf("[relay] [%s] Chat ownership mismatch. chat_id=%s, owner=%s", requestID, req.ChatID, chat.UserID)
			h.metrics.RecordRequest("403")
			writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Forbidden.", r))
			return
		}
	}

	result, err := h.relay.Deliver(r.Context(), req)
	if err != nil {
		log.Printf("[relay] [%s] Fatal error: %v", requestID, err)
		h.metrics.RecordRequest("500")
		writeJSON(w, http.StatusInternalServerError, errorResp("UPSTREAM_UNAVAILABLE", "AI service is temporarily unavailable.", r))
		return
	}

	h.metrics.RecordRequest("200")
	writeRawJSON(w, http.StatusOK, result)
}

// validateRelayRequest enforces the payload schema and builds the validated
// request. Optional fields may be omitted, but a present value must be valid:
// an explicit null, a non-string, an empty system_prompt, or a malformed
// chat_id are all schema violations. Per-field errors go to the server log;
// callers only ever see a generic message.
func validateRelayRequest(p *relayPayload) (*models.RelayRequest, map[string]string) {
	fieldErrors := make(map[string]string)
	req := &models.RelayRequest{}

	if message, present, ok := stringField(p.Message); !present {
		fieldErrors["message"] = "Message is required"
	} else if !ok {
		fieldErrors["message"] = "Message must be a string"
	} else {
		req.Message = strings.TrimSpace(message)
		if req.Message == "" {
			fieldErrors["message"] = "Message is required"
		} else if utf8.RuneCountInString(req.Message) > maxMessageLen {
			fieldErrors["message"] = fmt.Sprintf("Message exceeds %d characters", maxMessageLen)
		}
	}

	if dateCode, present, ok := stringField(p.DateCode); present {
		if !ok {
			fieldErrors["dateCode"] = "Date code must be a string"
		} else {
			req.DateCode = strings.TrimSpace(dateCode)
			if utf8.RuneCountInString(req.DateCode) > maxDateCodeLen {
				fieldErrors["dateCode"] = fmt.Sprintf("Date code exceeds %d characters", maxDateCodeLen)
			}
		}
	}

	if systemPrompt, present, ok := stringField(p.SystemPrompt); present {
		if !ok {
			fieldErrors["system_prompt"] = "System prompt must be a string"
		} else {
			req.SystemPrompt = strings.TrimSpace(systemPrompt)
			if req.SystemPrompt == "" {
				fieldErrors["system_prompt"] = "System prompt cannot be empty"
			} else if utf8.RuneCountInString(req.SystemPrompt) > maxMessageLen {
				fieldErrors["system_prompt"] = fmt.Sprintf("System prompt exceeds %d characters", maxMessageLen)
			}
		}
	}

	if chatID, present, ok := stringField(p.ChatID); present {
		parsed, err := uuid.Parse(chatID)
		if !ok || err != nil {
			fieldErrors["chat_id"] = "Chat ID must be a UUID"
		} else {
			req.ChatID = &parsed
		}
	}

	if userID, present, ok := stringField(p.UserID); !present {
		fieldErrors["user_id"] = "User ID is required"
	} else {
		parsed, err := uuid.Parse(userID)
		if !ok || err != nil {
			fieldErrors["user_id"] = "User ID must be a UUID"
		} else {
			req.UserID = parsed
		}
	}

	return req, fieldErrors
}

// stringField decodes one JSON field. present is false when the field was
// omitted entirely; ok is false when it was present but null or not a string.
func stringField(raw json.RawMessage) (value string, present, ok bool) {
	if raw == nil {
		return "", false, true
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return "", true, false
	}
	return *s, true, true
}
