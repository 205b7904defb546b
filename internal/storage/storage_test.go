package storage_test

import (
	"context"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psd401/toolhub/internal/model"
	"github.com/psd401/toolhub/internal/storage"
	"github.com/psd401/toolhub/internal/testutil"
)

// testDB holds a shared test database connection for all tests in this package.
var testDB *storage.DB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	var err error
	testDB, err = tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		tc.Terminate()
		panic(err)
	}

	code := m.Run()
	testDB.Close()
	tc.Terminate()
	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("integration test requires Docker; run without -short")
	}
}

// mustCreateUser inserts a user with a unique user_id for test isolation.
func mustCreateUser(t *testing.T, role model.Role) model.User {
	t.Helper()
	u, err := testDB.CreateUser(context.Background(), model.User{
		UserID: "user-" + uuid.NewString(),
		Name:   "Test User",
		Email:  "test@example.org",
		Role:   role,
	})
	require.NoError(t, err)
	return u
}

func TestCreateUserDuplicateConflict(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, model.RoleStudent)
	_, err := testDB.CreateUser(ctx, model.User{UserID: u.UserID, Name: "Dup", Role: model.RoleStudent})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestUpdateUserRole(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, model.RoleStudent)
	updated, err := testDB.UpdateUserRole(ctx, u.UserID, model.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStaff, updated.Role)

	_, err = testDB.UpdateUserRole(ctx, "nobody-"+uuid.NewString(), model.RoleStaff)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateIdeaDefaults(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, model.RoleStudent)
	idea, err := testDB.CreateIdea(ctx, model.Idea{
		Title:         "Better search",
		Description:   "Search across all tools",
		PriorityLevel: model.PriorityMedium,
		CreatedBy:     u.UserID,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, idea.ID)
	assert.Equal(t, model.IdeaStatusOpen, idea.Status)
	assert.Equal(t, 0, idea.Votes)

	fetched, err := testDB.GetIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fetched.Votes)
}

func TestVoteIdeaIdempotent(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	creator := mustCreateUser(t, model.RoleStudent)
	voter := mustCreateUser(t, model.RoleStudent)
	idea, err := testDB.CreateIdea(ctx, model.Idea{
		Title: "Dark mode", PriorityLevel: model.PriorityLow, CreatedBy: creator.UserID,
	})
	require.NoError(t, err)

	inserted, count, err := testDB.VoteIdea(ctx, idea.ID, voter.UserID)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 1, count)

	// Repeat vote: no new row, count unchanged.
	inserted, count, err = testDB.VoteIdea(ctx, idea.ID, voter.UserID)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1, count)

	fetched, err := testDB.GetIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.Votes)
}

func TestUpdateIdeaStatusCompleted(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	creator := mustCreateUser(t, model.RoleStudent)
	staff := mustCreateUser(t, model.RoleStaff)
	idea, err := testDB.CreateIdea(ctx, model.Idea{
		Title: "Export", PriorityLevel: model.PriorityHigh, CreatedBy: creator.UserID,
	})
	require.NoError(t, err)

	updated, err := testDB.UpdateIdeaStatus(ctx, idea.ID, model.IdeaStatusCompleted, staff.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.IdeaStatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedBy)
	assert.Equal(t, staff.UserID, *updated.CompletedBy)
	assert.NotNil(t, updated.CompletedAt)

	// Reopening clears the completion fields.
	reopened, err := testDB.UpdateIdeaStatus(ctx, idea.ID, model.IdeaStatusOpen, staff.UserID)
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedBy)
	assert.Nil(t, reopened.CompletedAt)
}

func TestIdeaNotes(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	creator := mustCreateUser(t, model.RoleStudent)
	staff := mustCreateUser(t, model.RoleStaff)
	idea, err := testDB.CreateIdea(ctx, model.Idea{
		Title: "Notes idea", PriorityLevel: model.PriorityLow, CreatedBy: creator.UserID,
	})
	require.NoError(t, err)

	note, err := testDB.CreateIdeaNote(ctx, model.IdeaNote{
		IdeaID: idea.ID, Content: "Discussed with the team", CreatedBy: staff.UserID,
	})
	require.NoError(t, err)

	notes, err := testDB.ListIdeaNotes(ctx, idea.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)
}

func TestNavigationItemCRUD(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	link := "/tools/chat"
	id := "nav-" + uuid.NewString()
	item, err := testDB.CreateNavigationItem(ctx, model.NavigationItem{
		ID: id, Label: "Chat", Link: &link, Type: model.NavTypeLink, Position: 1, IsActive: true,
	})
	require.NoError(t, err)

	// A label edit must not move the item: the slug ID is stable.
	item.Label = "AI Chat"
	updated, err := testDB.UpdateNavigationItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, "AI Chat", updated.Label)

	require.NoError(t, testDB.DeleteNavigationItem(ctx, id))
	_, err = testDB.GetNavigationItem(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConversationMessages(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, model.RoleStudent)
	conv, err := testDB.CreateConversation(ctx, model.Conversation{
		UserID: u.UserID, Title: "Homework help", ModelID: "gpt-4o-mini",
	})
	require.NoError(t, err)

	_, err = testDB.CreateMessage(ctx, model.Message{
		ConversationID: conv.ID, Role: model.MessageRoleUser, Content: "Hello",
	})
	require.NoError(t, err)
	_, err = testDB.CreateMessage(ctx, model.Message{
		ConversationID: conv.ID, Role: model.MessageRoleAssistant, Content: "Hi there",
	})
	require.NoError(t, err)

	msgs, err := testDB.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, model.MessageRoleAssistant, msgs[1].Role)

	// Appending a message bumps the conversation's updated_at.
	after, err := testDB.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(conv.UpdatedAt) || after.UpdatedAt.Equal(conv.UpdatedAt))
}

func TestLinkDocument(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	u := mustCreateUser(t, model.RoleStudent)
	conv, err := testDB.CreateConversation(ctx, model.Conversation{UserID: u.UserID, Title: "t"})
	require.NoError(t, err)
	doc, err := testDB.CreateDocument(ctx, model.Document{
		UserID: u.UserID, Name: "notes.pdf", Type: "application/pdf", URL: "s3://bucket/notes.pdf",
	})
	require.NoError(t, err)
	require.Nil(t, doc.ConversationID)

	linked, err := testDB.LinkDocument(ctx, doc.ID, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.ConversationID)
	assert.Equal(t, conv.ID, *linked.ConversationID)
}

func TestRoleToolGrants(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	tool := "tool-" + uuid.NewString()
	require.NoError(t, testDB.GrantTool(ctx, model.RoleStaff, tool))
	// Re-granting is a no-op, not an error.
	require.NoError(t, testDB.GrantTool(ctx, model.RoleStaff, tool))

	granted, err := testDB.AnyRoleHasTool(ctx, []model.Role{model.RoleStaff}, tool)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = testDB.AnyRoleHasTool(ctx, []model.Role{model.RoleStudent}, tool)
	require.NoError(t, err)
	assert.False(t, granted)

	require.NoError(t, testDB.RevokeTool(ctx, model.RoleStaff, tool))
	err = testDB.RevokeTool(ctx, model.RoleStaff, tool)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestArchitectToolLifecycleStorage(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	creator := mustCreateUser(t, model.RoleStaff)
	tool, err := testDB.CreateArchitectTool(ctx, model.ArchitectTool{
		Name: "Essay grader", Description: "Grades essays", CreatorID: creator.UserID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ToolStatusDraft, tool.Status)

	_, err = testDB.CreateInputField(ctx, model.InputField{
		ToolID: tool.ID, Name: "essay", FieldType: model.FieldLongText, Position: 1, Required: true,
	})
	require.NoError(t, err)

	// Duplicate position within the tool is rejected.
	_, err = testDB.CreateInputField(ctx, model.InputField{
		ToolID: tool.ID, Name: "rubric", FieldType: model.FieldShortText, Position: 1,
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = testDB.CreateChainPrompt(ctx, model.ChainPrompt{
		ToolID:  tool.ID,
		Name:    "grade",
		Content: "Grade this essay: {{essay}}",
		ModelID: "gpt-4o-mini", Position: 1,
		InputMapping: map[string]string{"essay": "input:essay"},
	})
	require.NoError(t, err)

	prompts, err := testDB.ListChainPrompts(ctx, tool.ID)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, map[string]string{"essay": "input:essay"}, prompts[0].InputMapping)

	updated, err := testDB.UpdateArchitectToolStatus(ctx, tool.ID, model.ToolStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.ToolStatusApproved, updated.Status)

	// Deleting the tool cascades to fields and prompts.
	require.NoError(t, testDB.DeleteArchitectTool(ctx, tool.ID))
	fields, err := testDB.ListInputFields(ctx, tool.ID)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestExecutionRecords(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	creator := mustCreateUser(t, model.RoleStaff)
	tool, err := testDB.CreateArchitectTool(ctx, model.ArchitectTool{
		Name: "Summarizer", CreatorID: creator.UserID,
	})
	require.NoError(t, err)
	prompt, err := testDB.CreateChainPrompt(ctx, model.ChainPrompt{
		ToolID: tool.ID, Name: "summarize", Content: "Summarize {{text}}",
		Position: 1, InputMapping: map[string]string{"text": "input:text"},
	})
	require.NoError(t, err)

	exec, err := testDB.CreateExecution(ctx, model.ToolExecution{
		ToolID: tool.ID, UserID: creator.UserID,
		InputValues: map[string]any{"text": "a long document"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionPending, exec.Status)

	require.NoError(t, testDB.MarkExecutionRunning(ctx, exec.ID))
	// Running twice conflicts: the transition is pending -> running only.
	err = testDB.MarkExecutionRunning(ctx, exec.ID)
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = testDB.InsertPromptResult(ctx, model.PromptResult{
		ExecutionID:   exec.ID,
		PromptID:      prompt.ID,
		Status:        model.ExecutionCompleted,
		ResolvedInput: map[string]string{"text": "a long document"},
		Output:        "a summary",
	})
	require.NoError(t, err)

	require.NoError(t, testDB.FinishExecution(ctx, exec.ID, model.ExecutionCompleted, nil))
	final, err := testDB.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionCompleted, final.Status)
	assert.NotNil(t, final.CompletedAt)

	results, err := testDB.ListPromptResults(ctx, exec.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a summary", results[0].Output)
}

func TestDeleteArchitectToolWithExecutionHistory(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	creator := mustCreateUser(t, model.RoleStaff)
	tool, err := testDB.CreateArchitectTool(ctx, model.ArchitectTool{
		Name: "Flashcard maker", CreatorID: creator.UserID,
	})
	require.NoError(t, err)
	prompt, err := testDB.CreateChainPrompt(ctx, model.ChainPrompt{
		ToolID: tool.ID, Name: "cards", Content: "Make cards for {{topic}}",
		Position: 1, InputMapping: map[string]string{"topic": "input:topic"},
	})
	require.NoError(t, err)

	exec, err := testDB.CreateExecution(ctx, model.ToolExecution{
		ToolID: tool.ID, UserID: creator.UserID,
		InputValues: map[string]any{"topic": "cell biology"},
	})
	require.NoError(t, err)
	require.NoError(t, testDB.MarkExecutionRunning(ctx, exec.ID))
	_, err = testDB.InsertPromptResult(ctx, model.PromptResult{
		ExecutionID: exec.ID, PromptID: prompt.ID,
		Status: model.ExecutionCompleted, Output: "cards",
	})
	require.NoError(t, err)
	require.NoError(t, testDB.FinishExecution(ctx, exec.ID, model.ExecutionCompleted, nil))

	// Deleting an executed tool removes its execution history too.
	require.NoError(t, testDB.DeleteArchitectTool(ctx, tool.ID))

	_, err = testDB.GetArchitectTool(ctx, tool.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = testDB.GetExecution(ctx, exec.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	results, err := testDB.ListPromptResults(ctx, exec.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	_, err := testDB.GetIdea(ctx, uuid.New())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = testDB.GetConversation(ctx, uuid.New())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = testDB.GetArchitectTool(ctx, uuid.New())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = testDB.GetExecution(ctx, uuid.New())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
