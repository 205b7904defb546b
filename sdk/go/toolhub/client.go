package toolhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the toolhub server (e.g. "http://localhost:8080").
	BaseURL string

	// UserID identifies the account used for authentication.
	UserID string

	// APIKey is the secret used to obtain a JWT token.
	APIKey string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the toolhub portal API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL  string
	userID   string
	client   *http.Client
	tokenMgr *tokenManager
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL, UserID, or APIKey is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("toolhub: BaseURL is required")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("toolhub: UserID is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("toolhub: APIKey is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  baseURL,
		userID:   cfg.UserID,
		client:   httpClient,
		tokenMgr: newTokenManager(baseURL, cfg.UserID, cfg.APIKey, httpClient),
	}, nil
}

// ---------------------------------------------------------------------------
// Navigation
// ---------------------------------------------------------------------------

// ListNavigation retrieves navigation items. When activeOnly is true only
// active items are returned.
func (c *Client) ListNavigation(ctx context.Context, activeOnly bool) ([]NavigationItem, error) {
	path := "/api/navigation"
	if activeOnly {
		path += "?active=true"
	}
	var resp struct {
		Items []NavigationItem `json:"items"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// CreateNavigationItem creates a navigation item. Requires administrator role.
func (c *Client) CreateNavigationItem(ctx context.Context, req UpsertNavigationItemRequest) (*NavigationItem, error) {
	var resp NavigationItem
	if err := c.post(ctx, "/api/navigation", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateNavigationItem updates a navigation item by slug. The slug itself
// never changes. Requires administrator role.
func (c *Client) UpdateNavigationItem(ctx context.Context, id string, req UpsertNavigationItemRequest) (*NavigationItem, error) {
	var resp NavigationItem
	if err := c.put(ctx, "/api/navigation/"+url.PathEscape(id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteNavigationItem removes a navigation item. Requires administrator role.
func (c *Client) DeleteNavigationItem(ctx context.Context, id string) error {
	return c.doDelete(ctx, "/api/navigation/"+url.PathEscape(id), nil)
}

// ---------------------------------------------------------------------------
// Ideas
// ---------------------------------------------------------------------------

// ListIdeas retrieves ideas with their vote counts.
func (c *Client) ListIdeas(ctx context.Context, limit, offset int) ([]Idea, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/ideas"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp struct {
		Ideas []Idea `json:"ideas"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Ideas, nil
}

// CreateIdea submits a new idea. New ideas always start open.
func (c *Client) CreateIdea(ctx context.Context, req CreateIdeaRequest) (*Idea, error) {
	var resp Idea
	if err := c.post(ctx, "/api/ideas", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VoteIdea records the caller's vote on an idea. Voting is idempotent: a
// repeat vote leaves the count unchanged.
func (c *Client) VoteIdea(ctx context.Context, ideaID uuid.UUID) (*VoteResult, error) {
	var resp VoteResult
	if err := c.post(ctx, "/api/ideas/"+ideaID.String()+"/vote", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateIdeaStatus changes an idea's status. Requires staff role.
func (c *Client) UpdateIdeaStatus(ctx context.Context, ideaID uuid.UUID, status string) (*Idea, error) {
	body := map[string]any{"status": status}
	var resp Idea
	if err := c.patch(ctx, "/api/ideas/"+ideaID.String()+"/status", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListIdeaNotes retrieves the notes on an idea. Requires staff role.
func (c *Client) ListIdeaNotes(ctx context.Context, ideaID uuid.UUID) ([]IdeaNote, error) {
	var resp struct {
		Notes []IdeaNote `json:"notes"`
	}
	if err := c.get(ctx, "/api/ideas/"+ideaID.String()+"/notes", &resp); err != nil {
		return nil, err
	}
	return resp.Notes, nil
}

// CreateIdeaNote attaches a note to an idea. Requires staff role.
func (c *Client) CreateIdeaNote(ctx context.Context, ideaID uuid.UUID, content string) (*IdeaNote, error) {
	body := map[string]any{"content": content}
	var resp IdeaNote
	if err := c.post(ctx, "/api/ideas/"+ideaID.String()+"/notes", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

// ListConversations retrieves the caller's conversations, newest first.
func (c *Client) ListConversations(ctx context.Context, limit, offset int) ([]Conversation, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/chat/conversations"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// CreateConversation starts a new conversation. An empty modelID selects
// the server default.
func (c *Client) CreateConversation(ctx context.Context, title, modelID string) (*Conversation, error) {
	body := map[string]any{"title": title}
	if modelID != "" {
		body["model_id"] = modelID
	}
	var resp Conversation
	if err := c.post(ctx, "/api/chat/conversations", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetConversation retrieves one of the caller's conversations.
func (c *Client) GetConversation(ctx context.Context, convID uuid.UUID) (*Conversation, error) {
	var resp Conversation
	if err := c.get(ctx, "/api/chat/conversations/"+convID.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListMessages retrieves the messages of a conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, convID uuid.UUID) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := c.get(ctx, "/api/chat/conversations/"+convID.String()+"/messages", &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage posts a user message and returns both the stored user turn
// and the model's reply.
func (c *Client) SendMessage(ctx context.Context, convID uuid.UUID, content string) (*SendMessageResponse, error) {
	body := map[string]any{"content": content}
	var resp SendMessageResponse
	if err := c.post(ctx, "/api/chat/conversations/"+convID.String()+"/messages", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// CreateDocument registers a document reference owned by the caller.
func (c *Client) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*Document, error) {
	var resp Document
	if err := c.post(ctx, "/api/documents", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListDocuments retrieves the caller's documents, newest first.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var resp struct {
		Documents []Document `json:"documents"`
	}
	if err := c.get(ctx, "/api/documents", &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// LinkDocument attaches one of the caller's documents to a conversation.
// Linking is idempotent.
func (c *Client) LinkDocument(ctx context.Context, documentID, conversationID uuid.UUID) (*Document, error) {
	body := map[string]any{
		"document_id":     documentID,
		"conversation_id": conversationID,
	}
	var resp Document
	if err := c.post(ctx, "/api/documents/link", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Users (admin-only)
// ---------------------------------------------------------------------------

// ListUsers retrieves portal accounts. Requires administrator role.
func (c *Client) ListUsers(ctx context.Context, limit, offset int) (*ListUsersResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/users"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp ListUsersResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PromoteUser raises a user one role step. Requires administrator role.
func (c *Client) PromoteUser(ctx context.Context, targetUserID string) (*User, error) {
	body := map[string]any{"target_user_id": targetUserID}
	var resp User
	if err := c.post(ctx, "/api/users/promote", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetUserRole assigns a specific role to a user. Requires administrator role.
func (c *Client) SetUserRole(ctx context.Context, targetUserID, role string) (*User, error) {
	body := map[string]any{"target_user_id": targetUserID, "role": role}
	var resp User
	if err := c.post(ctx, "/api/users/role", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Assistant Architect
// ---------------------------------------------------------------------------

// ListArchitectTools retrieves tools, optionally filtered by lifecycle
// status (draft, submitted, approved, rejected).
func (c *Client) ListArchitectTools(ctx context.Context, status string) ([]ArchitectTool, error) {
	path := "/api/architect/tools"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Tools []ArchitectTool `json:"tools"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// CreateArchitectTool creates a new tool in draft, owned by the caller.
func (c *Client) CreateArchitectTool(ctx context.Context, req CreateArchitectToolRequest) (*ArchitectTool, error) {
	var resp ArchitectTool
	if err := c.post(ctx, "/api/architect/tools", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetArchitectTool retrieves a tool with its input fields and prompts.
func (c *Client) GetArchitectTool(ctx context.Context, toolID uuid.UUID) (*ArchitectToolDetail, error) {
	var resp ArchitectToolDetail
	if err := c.get(ctx, "/api/architect/tools/"+toolID.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteArchitectTool removes a tool and everything attached to it.
// Creator or administrator only.
func (c *Client) DeleteArchitectTool(ctx context.Context, toolID uuid.UUID) error {
	return c.doDelete(ctx, "/api/architect/tools/"+toolID.String(), nil)
}

// CreateInputField adds an input field to a tool. Creator only.
func (c *Client) CreateInputField(ctx context.Context, toolID uuid.UUID, req UpsertInputFieldRequest) (*ToolInputField, error) {
	var resp ToolInputField
	if err := c.post(ctx, "/api/architect/tools/"+toolID.String()+"/fields", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateChainPrompt appends a prompt to a tool's chain. Creator only.
func (c *Client) CreateChainPrompt(ctx context.Context, toolID uuid.UUID, req UpsertChainPromptRequest) (*ChainPrompt, error) {
	var resp ChainPrompt
	if err := c.post(ctx, "/api/architect/tools/"+toolID.String()+"/prompts", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitTool sends a draft or rejected tool for review. Creator only.
func (c *Client) SubmitTool(ctx context.Context, toolID uuid.UUID) (*ArchitectTool, error) {
	var resp ArchitectTool
	if err := c.post(ctx, "/api/architect/tools/"+toolID.String()+"/submit", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ApproveTool approves a submitted tool. Requires administrator role.
func (c *Client) ApproveTool(ctx context.Context, toolID uuid.UUID) (*ArchitectTool, error) {
	var resp ArchitectTool
	if err := c.post(ctx, "/api/architect/tools/"+toolID.String()+"/approve", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RejectTool rejects a submitted tool. Requires administrator role.
func (c *Client) RejectTool(ctx context.Context, toolID uuid.UUID, reason string) (*ArchitectTool, error) {
	body := map[string]any{"reason": reason}
	var resp ArchitectTool
	if err := c.post(ctx, "/api/architect/tools/"+toolID.String()+"/reject", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExecuteTool starts an asynchronous run of an approved tool. The returned
// execution is pending; poll GetExecution for results.
func (c *Client) ExecuteTool(ctx context.Context, toolID uuid.UUID, inputs map[string]any) (*ToolExecution, error) {
	body := map[string]any{"inputs": inputs}
	var resp ToolExecution
	if err := c.post(ctx, "/api/architect/tools/"+toolID.String()+"/execute", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetExecution retrieves an execution with its per-prompt results.
// Owner or administrator only.
func (c *Client) GetExecution(ctx context.Context, execID uuid.UUID) (*ExecutionDetail, error) {
	var resp ExecutionDetail
	if err := c.get(ctx, "/api/architect/executions/"+execID.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitForExecution polls an execution until it completes, fails, or ctx
// expires.
func (c *Client) WaitForExecution(ctx context.Context, execID uuid.UUID, interval time.Duration) (*ExecutionDetail, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		detail, err := c.GetExecution(ctx, execID)
		if err != nil {
			return nil, err
		}
		switch detail.Execution.Status {
		case "completed", "failed":
			return detail, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Health checks the server's health status. This endpoint does not require
// authentication and will work even if the client has invalid credentials.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.getNoAuth(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper. The
// human-readable message lives at the top level; the error object carries
// the machine code and, for validation failures, the offending field.
type apiErrorEnvelope struct {
	Message string `json:"message"`
	Error   struct {
		Code  string `json:"code"`
		Field string `json:"field"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("toolhub: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("toolhub: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(ctx, req, dest)
}

func (c *Client) put(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("toolhub: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("toolhub: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(ctx, req, dest)
}

func (c *Client) patch(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("toolhub: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("toolhub: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(ctx, req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("toolhub: create request: %w", err)
	}

	return c.doRequest(ctx, req, dest)
}

func (c *Client) doDelete(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("toolhub: create request: %w", err)
	}

	return c.doRequest(ctx, req, dest)
}

func (c *Client) getNoAuth(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("toolhub: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("toolhub: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func (c *Client) doRequest(ctx context.Context, req *http.Request, dest any) error {
	token, err := c.tokenMgr.getToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("toolhub: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("toolhub: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	// 204 No Content, nothing to decode.
	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("toolhub: decode response envelope: %w", err)
	}

	if envelope.Data == nil {
		// Fallback: some endpoints may not wrap in "data".
		return json.Unmarshal(bodyBytes, dest)
	}

	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Field = envelope.Error.Field
		apiErr.Message = envelope.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
