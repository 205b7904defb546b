package model

import (
	"time"

	"github.com/google/uuid"
)

// APIResponse is the single response envelope for all HTTP endpoints.
// The portal previously mixed structured JSON with plain-text error bodies;
// every endpoint now returns this shape.
type APIResponse struct {
	IsSuccess bool         `json:"is_success"`
	Data      any          `json:"data,omitempty"`
	Message   string       `json:"message,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Meta      ResponseMeta `json:"meta"`
}

// ErrorDetail describes an API error. Field carries the offending field
// name for validation failures.
type ErrorDetail struct {
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Error code constants. AUTHENTICATION means no resolvable identity;
// AUTHORIZATION means the identity lacks the role or tool grant.
const (
	ErrCodeAuthentication = "AUTHENTICATION"
	ErrCodeAuthorization  = "AUTHORIZATION"
	ErrCodeValidation     = "VALIDATION"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeInternal       = "INTERNAL"
	ErrCodeRateLimited    = "RATE_LIMITED"
)

// AuthTokenRequest is the request body for POST /auth/token.
type AuthTokenRequest struct {
	UserID string `json:"user_id"`
	APIKey string `json:"api_key"`
}

// AuthTokenResponse is the response for POST /auth/token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}

// UpsertNavigationItemRequest is the request body for POST/PUT /api/navigation.
type UpsertNavigationItemRequest struct {
	ID           string  `json:"id,omitempty"`
	Label        string  `json:"label"`
	Icon         string  `json:"icon,omitempty"`
	Link         *string `json:"link,omitempty"`
	Description  *string `json:"description,omitempty"`
	Type         string  `json:"type"`
	ParentID     *string `json:"parent_id,omitempty"`
	Tool         *string `json:"tool,omitempty"`
	RequiresRole *Role   `json:"requires_role,omitempty"`
	Position     int     `json:"position"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// CreateIdeaRequest is the request body for POST /api/ideas.
type CreateIdeaRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	PriorityLevel string `json:"priority_level"`
}

// VoteResponse reports the vote state after POST /api/ideas/{id}/vote.
// HasVoted is true whether the vote was just recorded or already existed.
type VoteResponse struct {
	IdeaID   uuid.UUID `json:"idea_id"`
	HasVoted bool      `json:"has_voted"`
	Votes    int       `json:"votes"`
}

// UpdateIdeaStatusRequest is the request body for PATCH /api/ideas/{id}/status.
type UpdateIdeaStatusRequest struct {
	Status string `json:"status"`
}

// CreateIdeaNoteRequest is the request body for POST /api/ideas/{id}/notes.
type CreateIdeaNoteRequest struct {
	Content string `json:"content"`
}

// CreateConversationRequest is the request body for POST /api/chat/conversations.
type CreateConversationRequest struct {
	Title   string `json:"title"`
	ModelID string `json:"model_id,omitempty"`
}

// SendMessageRequest is the request body for POST /api/chat/conversations/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// CreateDocumentRequest is the request body for POST /api/documents.
type CreateDocumentRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// LinkDocumentRequest is the request body for POST /api/documents/link.
type LinkDocumentRequest struct {
	DocumentID     uuid.UUID `json:"document_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// PromoteUserRequest is the request body for POST /api/users/promote.
type PromoteUserRequest struct {
	TargetUserID string `json:"target_user_id"`
}

// UpdateUserRoleRequest is the request body for POST /api/users/role.
type UpdateUserRoleRequest struct {
	TargetUserID string `json:"target_user_id"`
	Role         Role   `json:"role"`
}

// CreateArchitectToolRequest is the request body for POST /api/architect/tools.
type CreateArchitectToolRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsParallel  bool   `json:"is_parallel"`
}

// UpdateArchitectToolRequest is the request body for PUT /api/architect/tools/{id}.
type UpdateArchitectToolRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsParallel  *bool   `json:"is_parallel,omitempty"`
}

// UpsertInputFieldRequest is the request body for field create/update.
type UpsertInputFieldRequest struct {
	Name      string             `json:"name"`
	FieldType FieldType          `json:"field_type"`
	Options   []InputFieldOption `json:"options,omitempty"`
	Position  int                `json:"position"`
	Required  bool               `json:"required"`
}

// UpsertChainPromptRequest is the request body for prompt create/update.
type UpsertChainPromptRequest struct {
	Name           string            `json:"name"`
	Content        string            `json:"content"`
	SystemContext  *string           `json:"system_context,omitempty"`
	ModelID        string            `json:"model_id"`
	Position       int               `json:"position"`
	ParallelGroup  *int              `json:"parallel_group,omitempty"`
	InputMapping   map[string]string `json:"input_mapping,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
}

// RejectToolRequest is the request body for POST /api/architect/tools/{id}/reject.
type RejectToolRequest struct {
	Reason string `json:"reason"`
}

// ExecuteToolRequest is the request body for POST /api/architect/tools/{id}/execute.
// Values map input field names to a string or list of strings (multi_select).
type ExecuteToolRequest struct {
	Inputs map[string]any `json:"inputs"`
}
