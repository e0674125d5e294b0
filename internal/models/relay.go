package models

import "github.com/google/uuid"

// RelayRequest is the payload accepted by the relay endpoint. The caller's
// token identity must match UserID; ChatID is optional (ephemeral chats).
type RelayRequest struct {
	DateCode     string     `json:"dateCode"`
	Message      string     `json:"message"`
	SystemPrompt string     `json:"system_prompt"`
	ChatID       *uuid.UUID `json:"chat_id"`
	UserID       uuid.UUID  `json:"user_id"`
}

// RelayResult is the normalized shape produced when an upstream webhook
// answers with raw text instead of JSON. Upstream JSON (array or object) is
// passed through unchanged.
type RelayResult struct {
	Output string `json:"output"`
}
