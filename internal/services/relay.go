package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"hdcoach-backend/internal/metrics"
	"hdcoach-backend/internal/middleware"
	"hdcoach-backend/internal/models"
)

// rawTextLimit caps how much of a non-JSON upstream body is echoed back.
const rawTextLimit = 5000

// WebhookDirectory is the read side of the webhook table. The relay never
// mutates the directory; administration happens through its own handlers.
type WebhookDirectory interface {
	ListActive(ctx context.Context) ([]*models.Webhook, error)
}

// RelayService forwards one chat message to the highest-priority upstream
// webhook that produces a usable response. The directory is loaded fresh on
// every call, candidates are tried strictly in order, and the first success
// wins. When the directory is unreachable or empty the hardcoded fallback
// endpoint is the sole candidate.
type RelayService struct {
	directory           WebhookDirectory
	client              *http.Client
	fallbackURL         string
	defaultSystemPrompt string
	attemptTimeout      time.Duration
	metrics             *metrics.RelayMetrics
}

func NewRelayService(
	directory WebhookDirectory,
	client *http.Client,
	fallbackURL string,
	defaultSystemPrompt string,
	attemptTimeout time.Duration,
	relayMetrics *metrics.RelayMetrics,
) *RelayService {
	if client == nil {
		client = &http.Client{}
	}
	return &RelayService{
		directory:           directory,
		client:              client,
		fallbackURL:         fallbackURL,
		defaultSystemPrompt: defaultSystemPrompt,
		attemptTimeout:      attemptTimeout,
		metrics:             relayMetrics,
	}
}

// webhookPayload is the body POSTed to every candidate.
type webhookPayload struct {
	DateCode     string  `json:"dateCode"`
	Message      string  `json:"message"`
	SystemPrompt string  `json:"system_prompt"`
	ChatID       *string `json:"chat_id"`
	UserID       string  `json:"user_id"`
}

// Deliver runs the ordered-failover loop and returns the winning upstream
// response. Valid upstream JSON (array or object) is returned unchanged; raw
// text is wrapped as [{"output": ...}]. An UpstreamError is returned only
// when every candidate has failed.
func (s *RelayService) Deliver(ctx context.Context, req *models.RelayRequest) (json.RawMessage, error) {
	requestID := middleware.GetRequestID(ctx)

	webhooks := s.loadCandidates(ctx, requestID)

	log.Printf("[relay] [%s] Processing request for user %s with %d webhook(s)",
		requestID, req.UserID, len(webhooks))

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = s.defaultSystemPrompt
	}

	payload := webhookPayload{
		DateCode:     req.DateCode,
		Message:      req.Message,
		SystemPrompt: systemPrompt,
		UserID:       req.UserID.String(),
	}
	if req.ChatID != nil {
		chatID := req.ChatID.String()
		payload.ChatID = &chatID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	var lastErr error
	for _, wh := range webhooks {
		log.Printf("[relay] [%s] Invoking webhook %s (priority %d)", requestID, wh.ID, wh.Priority)

		result, err := s.attempt(ctx, wh, body)
		if err != nil {
			lastErr = err
			log.Printf("[relay] [%s] Webhook %s failed: %v", requestID, wh.ID, err)
			s.metrics.RecordAttempt(wh.Name, "failure")
			continue
		}

		log.Printf("[relay] [%s] Webhook %s succeeded", requestID, wh.ID)
		s.metrics.RecordAttempt(wh.Name, "success")
		return result, nil
	}

	log.Printf("[relay] [%s] All webhooks failed", requestID)
	if lastErr == nil {
		lastErr = fmt.Errorf("no webhook candidates available")
	}
	return nil, &UpstreamError{Err: lastErr}
}

// loadCandidates queries the directory and falls back to the single
// hardcoded endpoint whenever the query errors or yields zero rows. This
// path never aborts the request.
func (s *RelayService) loadCandidates(ctx context.Context, requestID string) []*models.Webhook {
	webhooks, err := s.directory.ListActive(ctx)
	if err != nil {
		log.Printf("[relay] [%s] Error fetching webhooks: %v", requestID, err)
	} else if len(webhooks) == 0 {
		log.Printf("[relay] [%s] No active webhooks found; using fallback", requestID)
	} else {
		return webhooks
	}

	s.metrics.RecordFallback()
	return []*models.Webhook{{
		ID:       "fallback",
		Name:     "Fallback Webhook",
		URL:      s.fallbackURL,
		Priority: 1,
	}}
}

// attempt POSTs the payload to one candidate and normalizes its answer. Any
// error return means "try the next candidate".
func (s *RelayService) attempt(ctx context.Context, wh *models.Webhook, body []byte) (json.RawMessage, error) {
	attemptCtx := ctx
	if s.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	s.metrics.ObserveAttemptDuration(wh.Name, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return normalizeResponse(raw)
}

// normalizeResponse converts an upstream body into the caller-facing shape.
// Valid JSON passes through unchanged, non-empty text is wrapped as a
// single-element result list, and an empty unparsable body is a failure.
func normalizeResponse(raw []byte) (json.RawMessage, error) {
	if json.Valid(raw) {
		return json.RawMessage(raw), nil
	}

	// Trimming is only the emptiness test; the wrapped text keeps the
	// upstream body verbatim.
	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty response body")
	}

	if runes := []rune(text); len(runes) > rawTextLimit {
		text = string(runes[:rawTextLimit])
	}

	wrapped, err := json.Marshal([]models.RelayResult{{Output: text}})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(wrapped), nil
}
