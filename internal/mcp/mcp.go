// Package mcp implements the Model Context Protocol surface of the portal.
//
// Approved Assistant Architect tools are exposed as MCP tools so
// MCP-compatible agents can discover and run them over the same
// authenticated HTTP transport the portal uses.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/psd401/toolhub/internal/executor"
	"github.com/psd401/toolhub/internal/model"
	"github.com/psd401/toolhub/internal/storage"
)

// IdentityFunc resolves the calling user's portal user_id from the request
// context. Injected by the caller to avoid a dependency on the HTTP layer.
type IdentityFunc func(ctx context.Context) string

// Server wraps the MCP server with the portal's execution machinery.
type Server struct {
	mcpServer *mcpserver.MCPServer
	db        *storage.DB
	executor  *executor.Executor
	identity  IdentityFunc
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(db *storage.DB, exec *executor.Executor, identity IdentityFunc, logger *slog.Logger) *Server {
	s := &Server{
		db:       db,
		executor: exec,
		identity: identity,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"toolhub",
		"0.1.0",
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// toolhub://tools/approved: the catalog of runnable tools.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"toolhub://tools/approved",
			"Approved Tools",
			mcplib.WithResourceDescription("Assistant Architect tools approved for execution"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleApprovedTools,
	)
}

func (s *Server) registerTools() {
	// toolhub_list_tools: approved tools with their input fields.
	s.mcpServer.AddTool(
		mcplib.NewTool("toolhub_list_tools",
			mcplib.WithDescription("List approved Assistant Architect tools and the inputs each one requires"),
		),
		s.handleListTools,
	)

	// toolhub_run_tool: run an approved tool to completion.
	s.mcpServer.AddTool(
		mcplib.NewTool("toolhub_run_tool",
			mcplib.WithDescription("Run an approved Assistant Architect tool and wait for the result"),
			mcplib.WithString("tool_id", mcplib.Description("UUID of the approved tool"), mcplib.Required()),
			mcplib.WithObject("inputs", mcplib.Description("Input field values keyed by field name")),
		),
		s.handleRunTool,
	)

	// toolhub_execution_status: inspect a past or in-flight execution.
	s.mcpServer.AddTool(
		mcplib.NewTool("toolhub_execution_status",
			mcplib.WithDescription("Fetch the status and per-step results of a tool execution"),
			mcplib.WithString("execution_id", mcplib.Description("UUID of the execution"), mcplib.Required()),
		),
		s.handleExecutionStatus,
	)
}

func (s *Server) handleApprovedTools(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	approved := model.ToolStatusApproved
	tools, err := s.db.ListArchitectTools(ctx, &approved)
	if err != nil {
		return nil, fmt.Errorf("mcp: list approved tools: %w", err)
	}

	data, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal tools: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "toolhub://tools/approved",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleListTools(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	approved := model.ToolStatusApproved
	tools, err := s.db.ListArchitectTools(ctx, &approved)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list tools: %v", err)), nil
	}

	type toolEntry struct {
		Tool   model.ArchitectTool `json:"tool"`
		Fields []model.InputField  `json:"fields"`
	}
	entries := make([]toolEntry, 0, len(tools))
	for _, t := range tools {
		fields, err := s.db.ListInputFields(ctx, t.ID)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to list fields: %v", err)), nil
		}
		entries = append(entries, toolEntry{Tool: t, Fields: fields})
	}

	data, _ := json.MarshalIndent(entries, "", "  ")
	return textResult(string(data)), nil
}

func (s *Server) handleRunTool(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	userID := s.identity(ctx)
	if userID == "" {
		return errorResult("no authenticated user in context"), nil
	}

	toolID, err := uuid.Parse(request.GetString("tool_id", ""))
	if err != nil {
		return errorResult("tool_id must be a UUID"), nil
	}

	var inputs map[string]any
	if raw, ok := request.GetArguments()["inputs"].(map[string]any); ok {
		inputs = raw
	}

	tool, err := s.db.GetArchitectTool(ctx, toolID)
	if err != nil {
		return errorResult(fmt.Sprintf("tool not found: %v", err)), nil
	}
	if tool.Status != model.ToolStatusApproved {
		return errorResult("only approved tools can be executed"), nil
	}

	exec, err := s.db.CreateExecution(ctx, model.ToolExecution{
		ToolID:      toolID,
		UserID:      userID,
		InputValues: inputs,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("failed to create execution: %v", err)), nil
	}

	// MCP callers wait for the result, so run the chain inline.
	if err := s.executor.Run(ctx, exec); err != nil {
		s.logger.Error("mcp: execution failed to finalize", "execution_id", exec.ID, "error", err)
	}

	return s.executionReport(ctx, exec.ID)
}

func (s *Server) handleExecutionStatus(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	userID := s.identity(ctx)
	if userID == "" {
		return errorResult("no authenticated user in context"), nil
	}

	execID, err := uuid.Parse(request.GetString("execution_id", ""))
	if err != nil {
		return errorResult("execution_id must be a UUID"), nil
	}

	exec, err := s.db.GetExecution(ctx, execID)
	if err != nil {
		return errorResult(fmt.Sprintf("execution not found: %v", err)), nil
	}
	if exec.UserID != userID {
		return errorResult("execution belongs to another user"), nil
	}

	return s.executionReport(ctx, execID)
}

func (s *Server) executionReport(ctx context.Context, execID uuid.UUID) (*mcplib.CallToolResult, error) {
	exec, err := s.db.GetExecution(ctx, execID)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load execution: %v", err)), nil
	}
	results, err := s.db.ListPromptResults(ctx, execID)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to load results: %v", err)), nil
	}

	data, _ := json.MarshalIndent(map[string]any{
		"execution": exec,
		"results":   results,
	}, "", "  ")
	return textResult(string(data)), nil
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
