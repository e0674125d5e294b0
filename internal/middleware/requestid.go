package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const RequestIDKey contextKey = "request_id"

// RequestIDHeader is the HTTP header carrying the correlation id.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request a correlation UUID. A client-supplied
// X-Request-ID is honored so front-end logs can be matched to server logs,
// but only when it is itself a UUID; anything else is replaced with a fresh
// one so correlation ids stay well-formed. The id is placed in the request
// context, echoed in the response header, and included in error envelopes.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the correlation id from the request context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
