package toolhub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockServer creates an httptest server that mimics the toolhub API.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	// Always register auth endpoint.
	if _, ok := handlers["POST /auth/token"]; !ok {
		mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"is_success": true,
				"data": map[string]any{
					"token":      "test-token-xyz",
					"expires_at": time.Now().Add(1 * time.Hour).Format(time.RFC3339),
				},
			})
		})
	}

	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}

	return httptest.NewServer(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, field, message string) {
	writeJSON(w, status, map[string]any{
		"is_success": false,
		"message":    message,
		"error":      map[string]any{"code": code, "field": field},
	})
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL: serverURL,
		UserID:  "test-user",
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestVoteIdea(t *testing.T) {
	ideaID := uuid.New()

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /api/ideas/{id}/vote": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-token-xyz" {
				writeAPIError(w, http.StatusUnauthorized, "AUTHENTICATION", "", "bad token")
				return
			}
			if r.PathValue("id") != ideaID.String() {
				writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "", "idea not found")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"is_success": true,
				"data": VoteResult{
					IdeaID:   ideaID,
					HasVoted: true,
					Votes:    7,
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	result, err := client.VoteIdea(context.Background(), ideaID)
	if err != nil {
		t.Fatalf("VoteIdea failed: %v", err)
	}
	if !result.HasVoted {
		t.Error("expected HasVoted to be true")
	}
	if result.Votes != 7 {
		t.Errorf("expected 7 votes, got %d", result.Votes)
	}
}

func TestCreateIdea(t *testing.T) {
	var receivedBody CreateIdeaRequest

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /api/ideas": func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&receivedBody); err != nil {
				writeAPIError(w, http.StatusBadRequest, "VALIDATION", "", err.Error())
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"is_success": true,
				"data": Idea{
					ID:            uuid.New(),
					Title:         receivedBody.Title,
					Description:   receivedBody.Description,
					PriorityLevel: receivedBody.PriorityLevel,
					Status:        "open",
					CreatedBy:     "test-user",
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	idea, err := client.CreateIdea(context.Background(), CreateIdeaRequest{
		Title:         "Dark mode",
		Description:   "Please add a dark theme",
		PriorityLevel: "medium",
	})
	if err != nil {
		t.Fatalf("CreateIdea failed: %v", err)
	}
	if receivedBody.Title != "Dark mode" {
		t.Errorf("server received title %q", receivedBody.Title)
	}
	if idea.Status != "open" {
		t.Errorf("expected status open, got %q", idea.Status)
	}
}

func TestListNavigationActiveFilter(t *testing.T) {
	var gotActiveParam string

	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /api/navigation": func(w http.ResponseWriter, r *http.Request) {
			gotActiveParam = r.URL.Query().Get("active")
			writeJSON(w, http.StatusOK, map[string]any{
				"is_success": true,
				"data": map[string]any{
					"items": []NavigationItem{
						{ID: "dashboard", Label: "Dashboard", Type: "link", IsActive: true},
					},
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	items, err := client.ListNavigation(context.Background(), true)
	if err != nil {
		t.Fatalf("ListNavigation failed: %v", err)
	}
	if gotActiveParam != "true" {
		t.Errorf("expected active=true query param, got %q", gotActiveParam)
	}
	if len(items) != 1 || items[0].ID != "dashboard" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestSendMessage(t *testing.T) {
	convID := uuid.New()

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /api/chat/conversations/{id}/messages": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeAPIError(w, http.StatusBadRequest, "VALIDATION", "", err.Error())
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"is_success": true,
				"data": SendMessageResponse{
					UserMessage:      Message{ID: uuid.New(), ConversationID: convID, Role: "user", Content: body["content"]},
					AssistantMessage: Message{ID: uuid.New(), ConversationID: convID, Role: "assistant", Content: "hello back"},
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.SendMessage(context.Background(), convID, "hello")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if resp.UserMessage.Content != "hello" {
		t.Errorf("expected user content echoed, got %q", resp.UserMessage.Content)
	}
	if resp.AssistantMessage.Role != "assistant" {
		t.Errorf("expected assistant role, got %q", resp.AssistantMessage.Role)
	}
}

func TestExecuteToolAndWait(t *testing.T) {
	toolID := uuid.New()
	execID := uuid.New()
	var polls atomic.Int32

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /api/architect/tools/{id}/execute": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusAccepted, map[string]any{
				"is_success": true,
				"data": ToolExecution{
					ID:     execID,
					ToolID: toolID,
					UserID: "test-user",
					Status: "pending",
				},
			})
		},
		"GET /api/architect/executions/{id}": func(w http.ResponseWriter, r *http.Request) {
			status := "running"
			if polls.Add(1) >= 2 {
				status = "completed"
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"is_success": true,
				"data": map[string]any{
					"execution": ToolExecution{ID: execID, ToolID: toolID, Status: status},
					"results": []PromptResult{
						{ID: uuid.New(), ExecutionID: execID, Status: status, Output: "step output"},
					},
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	exec, err := client.ExecuteTool(context.Background(), toolID, map[string]any{"topic": "testing"})
	if err != nil {
		t.Fatalf("ExecuteTool failed: %v", err)
	}
	if exec.Status != "pending" {
		t.Errorf("expected pending execution, got %q", exec.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	detail, err := client.WaitForExecution(ctx, execID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForExecution failed: %v", err)
	}
	if detail.Execution.Status != "completed" {
		t.Errorf("expected completed, got %q", detail.Execution.Status)
	}
	if len(detail.Results) != 1 || detail.Results[0].Output != "step output" {
		t.Errorf("unexpected results: %+v", detail.Results)
	}
	if polls.Load() < 2 {
		t.Errorf("expected at least 2 polls, got %d", polls.Load())
	}
}

func TestErrorTypesMapCorrectly(t *testing.T) {
	toolID := uuid.New()

	cases := []struct {
		name    string
		status  int
		code    string
		field   string
		message string
		check   func(error) bool
	}{
		{"not found", http.StatusNotFound, "NOT_FOUND", "", "tool not found", IsNotFound},
		{"unauthorized", http.StatusUnauthorized, "AUTHENTICATION", "", "bad token", IsUnauthorized},
		{"forbidden", http.StatusForbidden, "AUTHORIZATION", "", "not the creator", IsForbidden},
		{"conflict", http.StatusConflict, "CONFLICT", "", "tool is not approved", IsConflict},
		{"validation", http.StatusBadRequest, "VALIDATION", "name", "name is required", IsValidation},
		{"rate limited", http.StatusTooManyRequests, "RATE_LIMITED", "", "too many requests", IsRateLimited},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := mockServer(t, map[string]http.HandlerFunc{
				"POST /api/architect/tools/{id}/execute": func(w http.ResponseWriter, r *http.Request) {
					writeAPIError(w, tc.status, tc.code, tc.field, tc.message)
				},
			})
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			_, err := client.ExecuteTool(context.Background(), toolID, nil)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !tc.check(err) {
				t.Errorf("predicate did not match error: %v", err)
			}
			apiErr, ok := err.(*Error)
			if !ok {
				t.Fatalf("expected *Error, got %T", err)
			}
			if apiErr.Code != tc.code {
				t.Errorf("expected code %q, got %q", tc.code, apiErr.Code)
			}
			if apiErr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, apiErr.Field)
			}
			if apiErr.Message != tc.message {
				t.Errorf("expected message %q, got %q", tc.message, apiErr.Message)
			}
		})
	}
}

func TestTokenReusedAcrossRequests(t *testing.T) {
	var authCalls atomic.Int32

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /auth/token": func(w http.ResponseWriter, r *http.Request) {
			authCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{
				"is_success": true,
				"data": map[string]any{
					"token":      "test-token-xyz",
					"expires_at": time.Now().Add(1 * time.Hour).Format(time.RFC3339),
				},
			})
		},
		"GET /api/ideas": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"is_success": true,
				"data":       map[string]any{"ideas": []Idea{}},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := client.ListIdeas(context.Background(), 0, 0); err != nil {
			t.Fatalf("ListIdeas failed: %v", err)
		}
	}
	if got := authCalls.Load(); got != 1 {
		t.Errorf("expected 1 auth call, got %d", got)
	}
}

func TestPromoteUser(t *testing.T) {
	var receivedBody map[string]string

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /api/users/promote": func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&receivedBody); err != nil {
				writeAPIError(w, http.StatusBadRequest, "VALIDATION", "", err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"is_success": true,
				"data": User{
					ID:     uuid.New(),
					UserID: receivedBody["target_user_id"],
					Role:   "staff",
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	user, err := client.PromoteUser(context.Background(), "student-7")
	if err != nil {
		t.Fatalf("PromoteUser failed: %v", err)
	}
	if receivedBody["target_user_id"] != "student-7" {
		t.Errorf("server received target %q", receivedBody["target_user_id"])
	}
	if user.Role != "staff" {
		t.Errorf("expected staff role, got %q", user.Role)
	}
}

func TestHealthNoAuth(t *testing.T) {
	var authCalls atomic.Int32

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /auth/token": func(w http.ResponseWriter, r *http.Request) {
			authCalls.Add(1)
			writeAPIError(w, http.StatusUnauthorized, "AUTHENTICATION", "", "invalid credentials")
		},
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"is_success": true,
				"data": HealthResponse{
					Status:   "healthy",
					Version:  "test",
					Postgres: "connected",
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy, got %q", health.Status)
	}
	if authCalls.Load() != 0 {
		t.Errorf("health check should not authenticate, auth called %d times", authCalls.Load())
	}
}

func TestNewClientValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing base URL", Config{UserID: "u", APIKey: "k"}},
		{"missing user ID", Config{BaseURL: "http://localhost", APIKey: "k"}},
		{"missing API key", Config{BaseURL: "http://localhost", UserID: "u"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewClient(tc.cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestNavigationSlugPreservedOnUpdate(t *testing.T) {
	var gotPath string

	srv := mockServer(t, map[string]http.HandlerFunc{
		"PUT /api/navigation/{id}": func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			writeJSON(w, http.StatusOK, map[string]any{
				"is_success": true,
				"data": NavigationItem{
					ID:    r.PathValue("id"),
					Label: "Renamed Label",
					Type:  "link",
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	item, err := client.UpdateNavigationItem(context.Background(), "old-slug", UpsertNavigationItemRequest{
		Label: "Renamed Label",
		Type:  "link",
	})
	if err != nil {
		t.Fatalf("UpdateNavigationItem failed: %v", err)
	}
	if gotPath != "/api/navigation/old-slug" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if item.ID != "old-slug" {
		t.Errorf("expected slug preserved, got %q", item.ID)
	}
}
