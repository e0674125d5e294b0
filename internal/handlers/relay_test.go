package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hdcoach-backend/internal/middleware"
	"hdcoach-backend/internal/models"
)

type fakeChats struct {
	chat  *models.Chat
	err   error
	calls int
}

func (f *fakeChats) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	f.calls++
	return f.chat, f.err
}

type fakeRelay struct {
	result json.RawMessage
	err    error
	calls  int
}

func (f *fakeRelay) Deliver(ctx context.Context, req *models.RelayRequest) (json.RawMessage, error) {
	f.calls++
	return f.result, f.err
}

// newRelayHTTPRequest simulates a request that already passed the auth and
// request-id middleware.
func newRelayHTTPRequest(t *testing.T, body []byte, callerID uuid.UUID) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/relay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, callerID)
	ctx = context.WithValue(ctx, middleware.RequestIDKey, uuid.NewString())
	return req.WithContext(ctx)
}

func marshalBody(t *testing.T, body map[string]interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	return b
}

func TestSend_ValidationFailures(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"empty message", map[string]interface{}{"message": "", "user_id": userID.String()}},
		{"whitespace message", map[string]interface{}{"message": "   ", "user_id": userID.String()}},
		{"oversized message", map[string]interface{}{"message": strings.Repeat("a", 4001), "user_id": userID.String()}},
		{"missing user_id", map[string]interface{}{"message": "hi"}},
		{"non-uuid user_id", map[string]interface{}{"message": "hi", "user_id": "not-a-uuid"}},
		{"null user_id", map[string]interface{}{"message": "hi", "user_id": nil}},
		{"non-uuid chat_id", map[string]interface{}{"message": "hi", "user_id": userID.String(), "chat_id": "nope"}},
		{"null chat_id", map[string]interface{}{"message": "hi", "user_id": userID.String(), "chat_id": nil}},
		{"oversized dateCode", map[string]interface{}{"message": "hi", "user_id": userID.String(), "dateCode": strings.Repeat("d", 33)}},
		{"null dateCode", map[string]interface{}{"message": "hi", "user_id": userID.String(), "dateCode": nil}},
		{"oversized system_prompt", map[string]interface{}{"message": "hi", "user_id": userID.String(), "system_prompt": strings.Repeat("p", 4001)}},
		{"empty system_prompt", map[string]interface{}{"message": "hi", "user_id": userID.String(), "system_prompt": ""}},
		{"whitespace system_prompt", map[string]interface{}{"message": "hi", "user_id": userID.String(), "system_prompt": "   "}},
		{"null system_prompt", map[string]interface{}{"message": "hi", "user_id": userID.String(), "system_prompt": nil}},
		{"non-string message", map[string]interface{}{"message": 42, "user_id": userID.String()}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			relay := &fakeRelay{}
			h := NewRelayHandler(&fakeChats{}, relay, nil)

			rr := httptest.NewRecorder()
			h.Send(rr, newRelayHTTPRequest(t, marshalBody(t, tc.body), userID))

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rr.Code)
			}
			if relay.calls != 0 {
				t.Errorf("Expected no relay attempt, got %d", relay.calls)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if resp.Error.Message != "Invalid request payload." {
				t.Errorf("Expected generic validation message, got %q", resp.Error.Message)
			}
			if len(resp.Error.Fields) != 0 {
				t.Errorf("Field-level detail must not be echoed, got %v", resp.Error.Fields)
			}
		})
	}
}

func TestSend_CallerMismatchForbidden(t *testing.T) {
	relay := &fakeRelay{}
	h := NewRelayHandler(&fakeChats{}, relay, nil)

	body := marshalBody(t, map[string]interface{}{
		"message": "hi",
		"user_id": uuid.NewString(), // not the token's user
	})

	rr := httptest.NewRecorder()
	h.Send(rr, newRelayHTTPRequest(t, body, uuid.New()))

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rr.Code)
	}
	if relay.calls != 0 {
		t.Errorf("Expected no relay attempt, got %d", relay.calls)
	}
}

func TestSend_ChatNotFound(t *testing.T) {
	userID := uuid.New()
	h := NewRelayHandler(&fakeChats{err: pgx.ErrNoRows}, &fakeRelay{}, nil)

	body := marshalBody(t, map[string]interface{}{
		"message": "hi",
		"user_id": userID.String(),
		"chat_id": uuid.NewString(),
	})

	rr := httptest.NewRecorder()
	h.Send(rr, newRelayHTTPRequest(t, body, userID))

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rr.Code)
	}
}

func TestSend_ChatOwnedByOtherUser(t *testing.T) {
	userID := uuid.New()
	chatID := uuid.New()
	chats := &fakeChats{chat: &models.Chat{ID: chatID, UserID: uuid.New()}}
	relay := &fakeRelay{}
	h := NewRelayHandler(chats, relay, nil)

	body := marshalBody(t, map[string]interface{}{
		"message": "hi",
		"user_id": userID.String(),
		"chat_id": chatID.String(),
	})

	rr := httptest.NewRecorder()
	h.Send(rr, newRelayHTTPRequest(t, body, userID))

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rr.Code)
	}
	if relay.calls != 0 {
		t.Errorf("Expected no relay attempt, got %d", relay.calls)
	}
}

func TestSend_EphemeralChatSkipsOwnershipCheck(t *testing.T) {
	userID := uuid.New()
	chats := &fakeChats{err: pgx.ErrNoRows}
	relay := &fakeRelay{result: json.RawMessage(`[{"output":"hi"}]`)}
	h := NewRelayHandler(chats, relay, nil)

	// Empty dateCode is legal: it has a length cap but no minimum.
	body := marshalBody(t, map[string]interface{}{
		"message":  "hi",
		"user_id":  userID.String(),
		"dateCode": "",
	})

	rr := httptest.NewRecorder()
	h.Send(rr, newRelayHTTPRequest(t, body, userID))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
	if chats.calls != 0 {
		t.Errorf("Expected no chat lookup without chat_id, got %d", chats.calls)
	}
}

func TestSend_SuccessPassesResultThrough(t *testing.T) {
	userID := uuid.New()
	chatID := uuid.New()
	chats := &fakeChats{chat: &models.Chat{ID: chatID, UserID: userID}}
	relay := &fakeRelay{result: json.RawMessage(`{"answer":"drink water"}`)}
	h := NewRelayHandler(chats, relay, nil)

	body := marshalBody(t, map[string]interface{}{
		"message": "hi",
		"user_id": userID.String(),
		"chat_id": chatID.String(),
	})

	rr := httptest.NewRecorder()
	h.Send(rr, newRelayHTTPRequest(t, body, userID))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"answer":"drink water"}` {
		t.Errorf("Expected upstream result unchanged, got %s", got)
	}
	if relay.calls != 1 {
		t.Errorf("Expected exactly one relay call, got %d", relay.calls)
	}
}

func TestSend_ExhaustionReturns500WithRequestID(t *testing.T) {
	userID := uuid.New()
	relay := &fakeRelay{err: &erroredRelay{}}
	h := NewRelayHandler(&fakeChats{}, relay, nil)

	body := marshalBody(t, map[string]interface{}{
		"message": "hi",
		"user_id": userID.String(),
	})

	seen := make(map[string]bool)
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.Send(rr, newRelayHTTPRequest(t, body, userID))

		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("Expected 500, got %d", rr.Code)
		}

		var resp models.ErrorResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}
		if resp.Error.Message != "AI service is temporarily unavailable." {
			t.Errorf("Expected generic exhaustion message, got %q", resp.Error.Message)
		}
		if _, err := uuid.Parse(resp.Error.RequestID); err != nil {
			t.Errorf("Expected request_id to be a valid UUID, got %q", resp.Error.RequestID)
		}
		if seen[resp.Error.RequestID] {
			t.Errorf("Request id %q reused across requests", resp.Error.RequestID)
		}
		seen[resp.Error.RequestID] = true
	}
}

type erroredRelay struct{}

func (e *erroredRelay) Error() string { return "HTTP 503" }
