package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// JWTAuth verifies bearer tokens issued by the external auth provider.
// The provider signs access tokens with a shared HS256 secret, so "get user
// from token" is a local signature check plus claim extraction.
type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

// Middleware validates the bearer credential and attaches the caller's user
// id to the request context. All rejection messages are deliberately generic;
// the reason is logged server-side only.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			writeAuthError(w, r, "Missing or invalid authorization header.")
			return
		}

		tokenStr := strings.TrimSpace(authHeader[len("Bearer "):])

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return j.Secret, nil
		})
		if err != nil || !token.Valid {
			log.Printf("[auth] [%s] Failed to validate JWT: %v", GetRequestID(r.Context()), err)
			writeAuthError(w, r, "Invalid authentication token.")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeAuthError(w, r, "Invalid authentication token.")
			return
		}

		sub, ok := claims["sub"].(string)
		if !ok {
			writeAuthError(w, r, "Invalid authentication token.")
			return
		}

		userID, err := uuid.Parse(sub)
		if err != nil {
			writeAuthError(w, r, "Invalid authentication token.")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the authenticated caller's id from the request context.
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       "UNAUTHORIZED",
			"message":    message,
			"request_id": GetRequestID(r.Context()),
		},
	})
}
