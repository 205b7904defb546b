package model

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole distinguishes user-authored messages from model responses.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Conversation is a chat thread owned by a single user.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	ModelID   string    `json:"model_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn of a conversation.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Document is user-uploaded file metadata, optionally linked to a
// conversation. Linking is owner-checked at the handler boundary.
type Document struct {
	ID             uuid.UUID  `json:"id"`
	UserID         string     `json:"user_id"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	URL            string     `json:"url"`
	CreatedAt      time.Time  `json:"created_at"`
}
