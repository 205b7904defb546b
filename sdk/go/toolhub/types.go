package toolhub

import (
	"time"

	"github.com/google/uuid"
)

// NavigationItem mirrors the server's navigation model. The ID is a stable
// slug derived from the label at creation time.
type NavigationItem struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	Icon         string    `json:"icon,omitempty"`
	Link         *string   `json:"link,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Type         string    `json:"type"`
	ParentID     *string   `json:"parent_id,omitempty"`
	Tool         *string   `json:"tool,omitempty"`
	RequiresRole *string   `json:"requires_role,omitempty"`
	Position     int       `json:"position"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpsertNavigationItemRequest is the body for creating or updating a
// navigation item. On create, leave ID empty to derive the slug from Label.
type UpsertNavigationItemRequest struct {
	ID           string  `json:"id,omitempty"`
	Label        string  `json:"label"`
	Icon         string  `json:"icon,omitempty"`
	Link         *string `json:"link,omitempty"`
	Description  *string `json:"description,omitempty"`
	Type         string  `json:"type"`
	ParentID     *string `json:"parent_id,omitempty"`
	Tool         *string `json:"tool,omitempty"`
	RequiresRole *string `json:"requires_role,omitempty"`
	Position     int     `json:"position"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// Idea is a portal ideas-board entry with its current vote count.
type Idea struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	PriorityLevel string     `json:"priority_level"`
	Status        string     `json:"status"`
	Votes         int        `json:"votes"`
	CreatedBy     string     `json:"created_by"`
	CompletedBy   *string    `json:"completed_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// IdeaNote is a staff note attached to an idea.
type IdeaNote struct {
	ID        uuid.UUID `json:"id"`
	IdeaID    uuid.UUID `json:"idea_id"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateIdeaRequest is the body for creating an idea.
type CreateIdeaRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	PriorityLevel string `json:"priority_level"`
}

// VoteResult reports the vote state after a vote call. HasVoted is true
// whether the vote was just recorded or already existed.
type VoteResult struct {
	IdeaID   uuid.UUID `json:"idea_id"`
	HasVoted bool      `json:"has_voted"`
	Votes    int       `json:"votes"`
}

// Conversation is a chat conversation owned by a single user.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	ModelID   string    `json:"model_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single turn in a conversation.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// SendMessageResponse holds the stored user turn and the model's reply.
type SendMessageResponse struct {
	UserMessage      Message `json:"user_message"`
	AssistantMessage Message `json:"assistant_message"`
}

// Document is a user-owned document reference, optionally linked to a
// conversation.
type Document struct {
	ID             uuid.UUID  `json:"id"`
	UserID         string     `json:"user_id"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	URL            string     `json:"url"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateDocumentRequest is the body for registering a document.
type CreateDocumentRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// User is a portal account. The API key hash never leaves the server.
type User struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListUsersResponse is the admin user listing with paging info.
type ListUsersResponse struct {
	Users   []User `json:"users"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	HasMore bool   `json:"has_more"`
}

// ArchitectTool is an Assistant Architect prompt-chain tool.
type ArchitectTool struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsParallel  bool      `json:"is_parallel"`
	Status      string    `json:"status"`
	CreatorID   string    `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InputFieldOption is one choice for select and multi_select fields.
type InputFieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ToolInputField describes one user input collected before execution.
type ToolInputField struct {
	ID        uuid.UUID          `json:"id"`
	ToolID    uuid.UUID          `json:"tool_id"`
	Name      string             `json:"name"`
	FieldType string             `json:"field_type"`
	Options   []InputFieldOption `json:"options,omitempty"`
	Position  int                `json:"position"`
	Required  bool               `json:"required"`
	CreatedAt time.Time          `json:"created_at"`
}

// ChainPrompt is one step in a tool's prompt chain.
type ChainPrompt struct {
	ID             uuid.UUID         `json:"id"`
	ToolID         uuid.UUID         `json:"tool_id"`
	Name           string            `json:"name"`
	Content        string            `json:"content"`
	SystemContext  *string           `json:"system_context,omitempty"`
	ModelID        string            `json:"model_id"`
	Position       int               `json:"position"`
	ParallelGroup  *int              `json:"parallel_group,omitempty"`
	InputMapping   map[string]string `json:"input_mapping,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ArchitectToolDetail is a tool with its fields and prompts.
type ArchitectToolDetail struct {
	Tool    ArchitectTool    `json:"tool"`
	Fields  []ToolInputField `json:"fields"`
	Prompts []ChainPrompt    `json:"prompts"`
}

// CreateArchitectToolRequest is the body for creating a tool.
type CreateArchitectToolRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsParallel  bool   `json:"is_parallel"`
}

// UpsertInputFieldRequest is the body for field create and update.
type UpsertInputFieldRequest struct {
	Name      string             `json:"name"`
	FieldType string             `json:"field_type"`
	Options   []InputFieldOption `json:"options,omitempty"`
	Position  int                `json:"position"`
	Required  bool               `json:"required"`
}

// UpsertChainPromptRequest is the body for prompt create and update.
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

// ToolExecution is one run of an approved tool.
type ToolExecution struct {
	ID          uuid.UUID      `json:"id"`
	ToolID      uuid.UUID      `json:"tool_id"`
	UserID      string         `json:"user_id"`
	Status      string         `json:"status"`
	InputValues map[string]any `json:"input_values"`
	Error       *string        `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// PromptResult is the outcome of one chain prompt within an execution.
type PromptResult struct {
	ID            uuid.UUID         `json:"id"`
	ExecutionID   uuid.UUID         `json:"execution_id"`
	PromptID      uuid.UUID         `json:"prompt_id"`
	Status        string            `json:"status"`
	ResolvedInput map[string]string `json:"resolved_input,omitempty"`
	Output        string            `json:"output,omitempty"`
	Error         *string           `json:"error,omitempty"`
	ErrorKind     *string           `json:"error_kind,omitempty"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	ElapsedMs     *int64            `json:"elapsed_ms,omitempty"`
}

// ExecutionDetail is an execution with its per-prompt results.
type ExecutionDetail struct {
	Execution ToolExecution  `json:"execution"`
	Results   []PromptResult `json:"results"`
}

// HealthResponse is the server health report.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
