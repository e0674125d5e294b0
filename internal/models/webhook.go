package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook is one upstream AI endpoint in the priority-ordered directory.
// Lower priority values are tried first.
type Webhook struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Priority  int       `json:"priority"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateWebhookRequest struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Priority *int   `json:"priority"`
}

// UpdateWebhookRequest carries a partial update; nil fields are untouched.
type UpdateWebhookRequest struct {
	Name     *string `json:"name"`
	URL      *string `json:"url"`
	Priority *int    `json:"priority"`
	IsActive *bool   `json:"is_active"`
}

// Chat is a conversation record; the relay reads it only to verify ownership.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	IsPrivate bool      `json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
