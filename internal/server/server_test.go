package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psd401/toolhub/api"
	"github.com/psd401/toolhub/internal/auth"
	"github.com/psd401/toolhub/internal/executor"
	"github.com/psd401/toolhub/internal/mcp"
	"github.com/psd401/toolhub/internal/model"
	"github.com/psd401/toolhub/internal/server"
	"github.com/psd401/toolhub/internal/storage"
	"github.com/psd401/toolhub/internal/testutil"
)

var (
	testDB  *storage.DB
	testSrv *httptest.Server

	adminToken   string
	staffToken   string
	studentToken string
)

const (
	staffUserID   = "staff-user"
	studentUserID = "student-user"
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	tc := testutil.MustStartPostgres()

	var err error
	testDB, err = tc.NewTestDB(ctx, testutil.TestLogger())
	if err != nil {
		tc.Terminate()
		panic(err)
	}

	logger := testutil.TestLogger()

	jwtMgr, err := auth.NewJWTManager("", "", 24*time.Hour)
	if err != nil {
		panic(err)
	}

	provider := executor.NoopProvider{}
	exec := executor.New(testDB, provider, logger, 4)

	mcpSrv := mcp.New(testDB, exec, func(ctx context.Context) string {
		if claims := server.ClaimsFromContext(ctx); claims != nil {
			return claims.UserID
		}
		return ""
	}, logger)

	srv := server.New(server.ServerConfig{
		DB:                  testDB,
		JWTMgr:              jwtMgr,
		Executor:            exec,
		Provider:            provider,
		Logger:              logger,
		MCPServer:           mcpSrv.MCPServer(),
		OpenAPISpec:         api.OpenAPISpec,
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
		DefaultModelID:      "noop",
		ModelTimeout:        5 * time.Second,
	})

	if err := srv.Handlers().SeedAdmin(ctx, "test-admin-key"); err != nil {
		panic(err)
	}

	// Students (and everyone above) get the Assistant Architect entitlement.
	if err := testDB.GrantTool(ctx, model.RoleStudent, "assistant-architect"); err != nil {
		panic(err)
	}

	mustCreateUser(staffUserID, "Staff Member", model.RoleStaff, "staff-key")
	mustCreateUser(studentUserID, "Student Member", model.RoleStudent, "student-key")

	testSrv = httptest.NewServer(srv.Handler())

	adminToken = getToken(testSrv.URL, "admin", "test-admin-key")
	staffToken = getToken(testSrv.URL, staffUserID, "staff-key")
	studentToken = getToken(testSrv.URL, studentUserID, "student-key")

	code := m.Run()

	testSrv.Close()
	testDB.Close()
	tc.Terminate()
	os.Exit(code)
}

func requireServer(t *testing.T) {
	t.Helper()
	if testSrv == nil {
		t.Skip("integration test requires Docker; run without -short")
	}
}

func mustCreateUser(userID, name string, role model.Role, apiKey string) {
	hash, err := auth.HashAPIKey(apiKey)
	if err != nil {
		panic(err)
	}
	_, err = testDB.CreateUser(context.Background(), model.User{
		UserID:     userID,
		Name:       name,
		Email:      userID + "@example.org",
		Role:       role,
		APIKeyHash: &hash,
	})
	if err != nil {
		panic(err)
	}
}

func getToken(baseURL, userID, apiKey string) string {
	body, _ := json.Marshal(model.AuthTokenRequest{UserID: userID, APIKey: apiKey})
	resp, err := http.Post(baseURL+"/auth/token", "application/json", bytes.NewReader(body))
	if err != nil {
		panic(fmt.Sprintf("getToken: request failed: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		panic(fmt.Sprintf("getToken: status %d, body: %s", resp.StatusCode, string(data)))
	}
	var result struct {
		Data model.AuthTokenResponse `json:"data"`
	}
	if err := json.Unmarshal(data, &result); err != nil || result.Data.Token == "" {
		panic(fmt.Sprintf("getToken: bad response: %s", string(data)))
	}
	return result.Data.Token
}

func authedRequest(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// decodeData unwraps the response envelope's data field into dest.
func decodeData(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope), "body: %s", string(raw))
	require.NoError(t, json.Unmarshal(envelope.Data, dest), "body: %s", string(raw))
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var envelope model.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotNil(t, envelope.Error)
	return envelope.Error.Code
}

func TestHealthEndpoint(t *testing.T) {
	requireServer(t)

	resp, err := http.Get(testSrv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health model.HealthResponse
	decodeData(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.Postgres)
}

func TestOpenAPISpecNoAuth(t *testing.T) {
	requireServer(t)

	resp, err := http.Get(testSrv.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "openapi:")
}

func TestAuthTokenInvalidKey(t *testing.T) {
	requireServer(t)

	body, _ := json.Marshal(model.AuthTokenRequest{UserID: "admin", APIKey: "wrong-key"})
	resp, err := http.Post(testSrv.URL+"/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, model.ErrCodeAuthentication, errorCode(t, resp))
}

func TestUnauthenticatedAccess(t *testing.T) {
	requireServer(t)

	resp, err := http.Get(testSrv.URL + "/api/ideas")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestNavigationLifecycle(t *testing.T) {
	requireServer(t)

	// Students cannot mutate navigation.
	resp := authedRequest(t, "POST", testSrv.URL+"/api/navigation", studentToken, model.UpsertNavigationItemRequest{
		Label: "Forbidden Item", Type: "section",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, model.ErrCodeAuthorization, errorCode(t, resp))

	// Admin creates; the slug is derived from the label.
	resp = authedRequest(t, "POST", testSrv.URL+"/api/navigation", adminToken, model.UpsertNavigationItemRequest{
		Label: "Learning Tools", Type: "section", Position: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.NavigationItem
	decodeData(t, resp, &created)
	assert.Equal(t, "learning-tools", created.ID)
	assert.True(t, created.IsActive)

	// Renaming the label keeps the slug stable.
	resp = authedRequest(t, "PUT", testSrv.URL+"/api/navigation/"+created.ID, adminToken, model.UpsertNavigationItemRequest{
		Label: "Learning Hub", Type: "section", Position: 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated model.NavigationItem
	decodeData(t, resp, &updated)
	assert.Equal(t, "learning-tools", updated.ID)
	assert.Equal(t, "Learning Hub", updated.Label)

	// Everyone can list.
	resp = authedRequest(t, "GET", testSrv.URL+"/api/navigation", studentToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Items []model.NavigationItem `json:"items"`
	}
	decodeData(t, resp, &listing)
	found := false
	for _, item := range listing.Items {
		if item.ID == "learning-tools" {
			found = true
		}
	}
	assert.True(t, found, "expected learning-tools in listing")

	resp = authedRequest(t, "DELETE", testSrv.URL+"/api/navigation/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestNavigationLinkRequiredUnlessSection(t *testing.T) {
	requireServer(t)

	resp := authedRequest(t, "POST", testSrv.URL+"/api/navigation", adminToken, model.UpsertNavigationItemRequest{
		Label: "Broken Link Item", Type: "link",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, model.ErrCodeValidation, errorCode(t, resp))
}

func createIdea(t *testing.T, token, title string) model.Idea {
	t.Helper()
	resp := authedRequest(t, "POST", testSrv.URL+"/api/ideas", token, model.CreateIdeaRequest{
		Title:         title,
		Description:   "integration test idea",
		PriorityLevel: model.PriorityMedium,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var idea model.Idea
	decodeData(t, resp, &idea)
	assert.Equal(t, model.IdeaStatusOpen, idea.Status)
	assert.Equal(t, 0, idea.Votes)
	return idea
}

func TestIdeaVoteIdempotence(t *testing.T) {
	requireServer(t)

	idea := createIdea(t, studentToken, "Vote test "+uuid.NewString())

	resp := authedRequest(t, "POST", testSrv.URL+"/api/ideas/"+idea.ID.String()+"/vote", studentToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first model.VoteResponse
	decodeData(t, resp, &first)
	assert.True(t, first.HasVoted)
	assert.Equal(t, 1, first.Votes)

	// A repeat vote changes nothing.
	resp = authedRequest(t, "POST", testSrv.URL+"/api/ideas/"+idea.ID.String()+"/vote", studentToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second model.VoteResponse
	decodeData(t, resp, &second)
	assert.True(t, second.HasVoted)
	assert.Equal(t, 1, second.Votes)

	// A different voter raises the count.
	resp = authedRequest(t, "POST", testSrv.URL+"/api/ideas/"+idea.ID.String()+"/vote", staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var third model.VoteResponse
	decodeData(t, resp, &third)
	assert.Equal(t, 2, third.Votes)
}

func TestVoteMissingIdea(t *testing.T) {
	requireServer(t)

	resp := authedRequest(t, "POST", testSrv.URL+"/api/ideas/"+uuid.NewString()+"/vote", studentToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, model.ErrCodeNotFound, errorCode(t, resp))
}

func TestIdeaStatusRequiresStaff(t *testing.T) {
	requireServer(t)

	idea := createIdea(t, studentToken, "Status test "+uuid.NewString())

	resp := authedRequest(t, "PATCH", testSrv.URL+"/api/ideas/"+idea.ID.String()+"/status", studentToken,
		model.UpdateIdeaStatusRequest{Status: model.IdeaStatusCompleted})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "PATCH", testSrv.URL+"/api/ideas/"+idea.ID.String()+"/status", staffToken,
		model.UpdateIdeaStatusRequest{Status: model.IdeaStatusCompleted})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated model.Idea
	decodeData(t, resp, &updated)
	assert.Equal(t, model.IdeaStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedBy)
	assert.Equal(t, staffUserID, *updated.CompletedBy)
}

func TestIdeaNotesStaffOnly(t *testing.T) {
	requireServer(t)

	idea := createIdea(t, studentToken, "Notes test "+uuid.NewString())

	resp := authedRequest(t, "GET", testSrv.URL+"/api/ideas/"+idea.ID.String()+"/notes", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "POST", testSrv.URL+"/api/ideas/"+idea.ID.String()+"/notes", staffToken,
		model.CreateIdeaNoteRequest{Content: "Looks feasible next quarter."})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var note model.IdeaNote
	decodeData(t, resp, &note)
	assert.Equal(t, staffUserID, note.CreatedBy)

	resp = authedRequest(t, "GET", testSrv.URL+"/api/ideas/"+idea.ID.String()+"/notes", staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Notes []model.IdeaNote `json:"notes"`
	}
	decodeData(t, resp, &listing)
	require.Len(t, listing.Notes, 1)
	assert.Equal(t, "Looks feasible next quarter.", listing.Notes[0].Content)
}

func TestChatConversationFlow(t *testing.T) {
	requireServer(t)

	resp := authedRequest(t, "POST", testSrv.URL+"/api/chat/conversations", studentToken,
		model.CreateConversationRequest{Title: "Homework help"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv model.Conversation
	decodeData(t, resp, &conv)
	assert.Equal(t, "noop", conv.ModelID)

	resp = authedRequest(t, "POST", testSrv.URL+"/api/chat/conversations/"+conv.ID.String()+"/messages", studentToken,
		model.SendMessageRequest{Content: "Explain photosynthesis"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var exchange struct {
		UserMessage      model.Message `json:"user_message"`
		AssistantMessage model.Message `json:"assistant_message"`
	}
	decodeData(t, resp, &exchange)
	assert.Equal(t, "Explain photosynthesis", exchange.UserMessage.Content)
	assert.NotEmpty(t, exchange.AssistantMessage.Content)

	resp = authedRequest(t, "GET", testSrv.URL+"/api/chat/conversations/"+conv.ID.String()+"/messages", studentToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs struct {
		Messages []model.Message `json:"messages"`
	}
	decodeData(t, resp, &msgs)
	assert.Len(t, msgs.Messages, 2)

	// Another user cannot read the conversation.
	resp = authedRequest(t, "GET", testSrv.URL+"/api/chat/conversations/"+conv.ID.String(), staffToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, model.ErrCodeAuthorization, errorCode(t, resp))
}

func TestDocumentLinkOwnership(t *testing.T) {
	requireServer(t)

	resp := authedRequest(t, "POST", testSrv.URL+"/api/documents", studentToken, model.CreateDocumentRequest{
		Name: "Notes.pdf", Type: "pdf", URL: "https://example.org/notes.pdf",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var doc model.Document
	decodeData(t, resp, &doc)

	resp = authedRequest(t, "POST", testSrv.URL+"/api/chat/conversations", studentToken,
		model.CreateConversationRequest{Title: "Doc discussion"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv model.Conversation
	decodeData(t, resp, &conv)

	// Someone else cannot link the student's document.
	resp = authedRequest(t, "POST", testSrv.URL+"/api/documents/link", staffToken, model.LinkDocumentRequest{
		DocumentID: doc.ID, ConversationID: conv.ID,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "POST", testSrv.URL+"/api/documents/link", studentToken, model.LinkDocumentRequest{
		DocumentID: doc.ID, ConversationID: conv.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var linked model.Document
	decodeData(t, resp, &linked)
	require.NotNil(t, linked.ConversationID)
	assert.Equal(t, conv.ID, *linked.ConversationID)
}

func TestUserAdministration(t *testing.T) {
	requireServer(t)

	resp := authedRequest(t, "GET", testSrv.URL+"/api/users", staffToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	// Non-administrators cannot change roles.
	resp = authedRequest(t, "POST", testSrv.URL+"/api/users/role", staffToken,
		model.UpdateUserRoleRequest{TargetUserID: studentUserID, Role: model.RoleStaff})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "GET", testSrv.URL+"/api/users", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Users []model.User `json:"users"`
		Total int          `json:"total"`
	}
	decodeData(t, resp, &listing)
	assert.GreaterOrEqual(t, listing.Total, 3)

	// Promote a fresh student one step.
	promoteMe := "promote-" + uuid.NewString()
	mustCreateUser(promoteMe, "Promotable", model.RoleStudent, "promote-key")

	resp = authedRequest(t, "POST", testSrv.URL+"/api/users/promote", adminToken,
		model.PromoteUserRequest{TargetUserID: promoteMe})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var promoted model.User
	decodeData(t, resp, &promoted)
	assert.Equal(t, model.RoleStaff, promoted.Role)

	// Administrators cannot be promoted further.
	resp = authedRequest(t, "POST", testSrv.URL+"/api/users/promote", adminToken,
		model.PromoteUserRequest{TargetUserID: "admin"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, model.ErrCodeConflict, errorCode(t, resp))

	// Role assignment rejects values outside the enum.
	resp = authedRequest(t, "POST", testSrv.URL+"/api/users/role", adminToken,
		map[string]string{"target_user_id": promoteMe, "role": "superuser"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, model.ErrCodeValidation, errorCode(t, resp))

	// Direct demotion back to student.
	resp = authedRequest(t, "POST", testSrv.URL+"/api/users/role", adminToken,
		model.UpdateUserRoleRequest{TargetUserID: promoteMe, Role: model.RoleStudent})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var demoted model.User
	decodeData(t, resp, &demoted)
	assert.Equal(t, model.RoleStudent, demoted.Role)
}

func createArchitectTool(t *testing.T, token, name string) model.ArchitectTool {
	t.Helper()
	resp := authedRequest(t, "POST", testSrv.URL+"/api/architect/tools", token,
		model.CreateArchitectToolRequest{Name: name, Description: "integration test tool"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tool model.ArchitectTool
	decodeData(t, resp, &tool)
	assert.Equal(t, model.ToolStatusDraft, tool.Status)
	return tool
}

func TestArchitectLifecycleAndExecution(t *testing.T) {
	requireServer(t)

	tool := createArchitectTool(t, staffToken, "Essay outliner "+uuid.NewString())
	base := testSrv.URL + "/api/architect/tools/" + tool.ID.String()

	resp := authedRequest(t, "POST", base+"/fields", staffToken, model.UpsertInputFieldRequest{
		Name: "topic", FieldType: model.FieldShortText, Position: 1, Required: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "POST", base+"/prompts", staffToken, model.UpsertChainPromptRequest{
		Name:     "outline",
		Content:  "Write an outline about {{topic}}",
		ModelID:  "noop",
		Position: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	// Submitted by the creator, approved by an administrator.
	resp = authedRequest(t, "POST", base+"/submit", staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var submitted model.ArchitectTool
	decodeData(t, resp, &submitted)
	assert.Equal(t, model.ToolStatusSubmitted, submitted.Status)

	// Staff cannot approve.
	resp = authedRequest(t, "POST", base+"/approve", staffToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "POST", base+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var approved model.ArchitectTool
	decodeData(t, resp, &approved)
	assert.Equal(t, model.ToolStatusApproved, approved.Status)

	// Execute and poll to completion.
	resp = authedRequest(t, "POST", base+"/execute", staffToken,
		model.ExecuteToolRequest{Inputs: map[string]any{"topic": "volcanoes"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var exec model.ToolExecution
	decodeData(t, resp, &exec)

	detail := pollExecution(t, exec.ID, staffToken)
	assert.Equal(t, model.ExecutionCompleted, detail.Execution.Status)
	require.Len(t, detail.Results, 1)
	assert.Equal(t, model.ExecutionCompleted, detail.Results[0].Status)
	assert.NotEmpty(t, detail.Results[0].Output)

	// Other non-admin users cannot read the execution.
	resp = authedRequest(t, "GET", testSrv.URL+"/api/architect/executions/"+exec.ID.String(), studentToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	// Editing the approved tool demotes it back to draft.
	newDesc := "revised description"
	resp = authedRequest(t, "PUT", base, staffToken, model.UpdateArchitectToolRequest{Description: &newDesc})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var demoted model.ArchitectTool
	decodeData(t, resp, &demoted)
	assert.Equal(t, model.ToolStatusDraft, demoted.Status)

	// Execution history does not block deletion.
	resp = authedRequest(t, "DELETE", base, staffToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "GET", testSrv.URL+"/api/architect/executions/"+exec.ID.String(), staffToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestArchitectRejectedToolEditDemotesToDraft(t *testing.T) {
	requireServer(t)

	tool := createArchitectTool(t, staffToken, "Quiz builder "+uuid.NewString())
	base := testSrv.URL + "/api/architect/tools/" + tool.ID.String()

	resp := authedRequest(t, "POST", base+"/fields", staffToken, model.UpsertInputFieldRequest{
		Name: "subject", FieldType: model.FieldShortText, Position: 1, Required: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "POST", base+"/prompts", staffToken, model.UpsertChainPromptRequest{
		Name: "quiz", Content: "Write a quiz on {{subject}}", ModelID: "noop", Position: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "POST", base+"/submit", staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "POST", base+"/reject", adminToken,
		model.RejectToolRequest{Reason: "needs an answer key"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rejected model.ArchitectTool
	decodeData(t, resp, &rejected)
	assert.Equal(t, model.ToolStatusRejected, rejected.Status)

	// Editing a rejected tool sends it back to draft for rework.
	newName := "Quiz builder v2 " + uuid.NewString()
	resp = authedRequest(t, "PUT", base, staffToken, model.UpdateArchitectToolRequest{Name: &newName})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reworked model.ArchitectTool
	decodeData(t, resp, &reworked)
	assert.Equal(t, model.ToolStatusDraft, reworked.Status)
	assert.Equal(t, newName, reworked.Name)
}

type executionDetail struct {
	Execution model.ToolExecution  `json:"execution"`
	Results   []model.PromptResult `json:"results"`
}

func pollExecution(t *testing.T, execID uuid.UUID, token string) executionDetail {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp := authedRequest(t, "GET", testSrv.URL+"/api/architect/executions/"+execID.String(), token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var detail executionDetail
		decodeData(t, resp, &detail)
		switch detail.Execution.Status {
		case model.ExecutionCompleted, model.ExecutionFailed:
			return detail
		}
		if time.Now().After(deadline) {
			t.Fatalf("execution %s stuck in status %s", execID, detail.Execution.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestArchitectSubmitRequiresPrompt(t *testing.T) {
	requireServer(t)

	tool := createArchitectTool(t, staffToken, "Promptless "+uuid.NewString())

	resp := authedRequest(t, "POST", testSrv.URL+"/api/architect/tools/"+tool.ID.String()+"/submit", staffToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, model.ErrCodeConflict, errorCode(t, resp))
}

func TestArchitectExecuteRequiresApproval(t *testing.T) {
	requireServer(t)

	tool := createArchitectTool(t, staffToken, "Draft only "+uuid.NewString())

	resp := authedRequest(t, "POST", testSrv.URL+"/api/architect/tools/"+tool.ID.String()+"/execute", staffToken,
		model.ExecuteToolRequest{Inputs: map[string]any{}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, model.ErrCodeConflict, errorCode(t, resp))
}

func TestArchitectCreatorOnlyEdits(t *testing.T) {
	requireServer(t)

	tool := createArchitectTool(t, staffToken, "Creator guard "+uuid.NewString())

	name := "hijacked"
	resp := authedRequest(t, "PUT", testSrv.URL+"/api/architect/tools/"+tool.ID.String(), studentToken,
		model.UpdateArchitectToolRequest{Name: &name})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, model.ErrCodeAuthorization, errorCode(t, resp))
}

func newMCPClient(t *testing.T, token string) *mcpclient.Client {
	t.Helper()
	c, err := mcpclient.NewStreamableHttpClient(
		testSrv.URL+"/mcp",
		mcptransport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + token,
		}),
	)
	require.NoError(t, err)
	return c
}

func initMCP(t *testing.T, c *mcpclient.Client) {
	t.Helper()
	_, err := c.Initialize(context.Background(), mcplib.InitializeRequest{
		Params: mcplib.InitializeParams{
			ClientInfo: mcplib.Implementation{Name: "test-client", Version: "1.0"},
		},
	})
	require.NoError(t, err)
}

func TestMCPInitialize(t *testing.T) {
	requireServer(t)

	c := newMCPClient(t, staffToken)
	defer func() { _ = c.Close() }()

	initResult, err := c.Initialize(context.Background(), mcplib.InitializeRequest{
		Params: mcplib.InitializeParams{
			ClientInfo: mcplib.Implementation{Name: "test-client", Version: "1.0"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "toolhub", initResult.ServerInfo.Name)
}

func TestMCPListTools(t *testing.T) {
	requireServer(t)

	c := newMCPClient(t, staffToken)
	defer func() { _ = c.Close() }()
	initMCP(t, c)

	toolsResult, err := c.ListTools(context.Background(), mcplib.ListToolsRequest{})
	require.NoError(t, err)

	toolNames := make(map[string]bool)
	for _, tool := range toolsResult.Tools {
		toolNames[tool.Name] = true
	}
	assert.True(t, toolNames["toolhub_list_tools"], "expected toolhub_list_tools")
	assert.True(t, toolNames["toolhub_run_tool"], "expected toolhub_run_tool")
	assert.True(t, toolNames["toolhub_execution_status"], "expected toolhub_execution_status")
}

func TestMCPRunTool(t *testing.T) {
	requireServer(t)

	// Build and approve a tool for the MCP path.
	tool := createArchitectTool(t, staffToken, "MCP summarizer "+uuid.NewString())
	base := testSrv.URL + "/api/architect/tools/" + tool.ID.String()

	resp := authedRequest(t, "POST", base+"/fields", staffToken, model.UpsertInputFieldRequest{
		Name: "text", FieldType: model.FieldLongText, Position: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = authedRequest(t, "POST", base+"/prompts", staffToken, model.UpsertChainPromptRequest{
		Name: "summarize", Content: "Summarize {{text}}", ModelID: "noop", Position: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()
	resp = authedRequest(t, "POST", base+"/submit", staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
	resp = authedRequest(t, "POST", base+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	c := newMCPClient(t, staffToken)
	defer func() { _ = c.Close() }()
	initMCP(t, c)

	runResult, err := c.CallTool(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name: "toolhub_run_tool",
			Arguments: map[string]any{
				"tool_id": tool.ID.String(),
				"inputs":  map[string]any{"text": "a paragraph about rivers"},
			},
		},
	})
	require.NoError(t, err)
	require.False(t, runResult.IsError, "run_tool returned error: %v", runResult.Content)
	require.NotEmpty(t, runResult.Content)

	text, ok := runResult.Content[0].(mcplib.TextContent)
	require.True(t, ok, "expected text content, got %T", runResult.Content[0])
	assert.Contains(t, text.Text, string(model.ExecutionCompleted))
}

func TestMCPUnauthenticated(t *testing.T) {
	requireServer(t)

	resp, err := http.Post(testSrv.URL+"/mcp", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
