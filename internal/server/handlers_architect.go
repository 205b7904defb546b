package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/psd401/toolhub/internal/authz"
	"github.com/psd401/toolhub/internal/model"
)

// architectToolDetail bundles a tool with its fields and prompts.
type architectToolDetail struct {
	Tool    model.ArchitectTool `json:"tool"`
	Fields  []model.InputField  `json:"fields"`
	Prompts []model.ChainPrompt `json:"prompts"`
}

// HandleListArchitectTools handles GET /api/architect/tools.
// ?status= filters by lifecycle status.
func (h *Handlers) HandleListArchitectTools(w http.ResponseWriter, r *http.Request) {
	var statusFilter *model.ToolStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := model.ToolStatus(s)
		switch st {
		case model.ToolStatusDraft, model.ToolStatusSubmitted, model.ToolStatusApproved, model.ToolStatusRejected:
			statusFilter = &st
		default:
			writeFieldError(w, r, "status", "invalid status: must be one of draft, submitted, approved, rejected")
			return
		}
	}

	tools, err := h.db.ListArchitectTools(r.Context(), statusFilter)
	if err != nil {
		h.writeInternalError(w, r, "failed to list tools", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"tools": tools})
}

// HandleCreateArchitectTool handles POST /api/architect/tools.
// New tools always start as drafts owned by the caller.
func (h *Handlers) HandleCreateArchitectTool(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req model.CreateArchitectToolRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Name == "" {
		writeFieldError(w, r, "name", "name is required")
		return
	}

	tool, err := h.db.CreateArchitectTool(r.Context(), model.ArchitectTool{
		Name:        req.Name,
		Description: req.Description,
		IsParallel:  req.IsParallel,
		CreatorID:   claims.UserID,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to create tool", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, tool)
}

// HandleGetArchitectTool handles GET /api/architect/tools/{id}.
func (h *Handlers) HandleGetArchitectTool(w http.ResponseWriter, r *http.Request) {
	toolID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.loadToolDetail(r.Context(), toolID)
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

// HandleUpdateArchitectTool handles PUT /api/architect/tools/{id}.
// Editing an approved tool demotes it back to draft for re-review.
func (h *Handlers) HandleUpdateArchitectTool(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateArchitectToolRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	tool, ok := h.editableTool(w, r)
	if !ok {
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			writeFieldError(w, r, "name", "name cannot be empty")
			return
		}
		tool.Name = *req.Name
	}
	if req.Description != nil {
		tool.Description = *req.Description
	}
	if req.IsParallel != nil {
		tool.IsParallel = *req.IsParallel
	}

	updated, err := h.db.UpdateArchitectTool(r.Context(), tool)
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteArchitectTool handles DELETE /api/architect/tools/{id}.
// Creator or administrator; fields, prompts and executions cascade.
func (h *Handlers) HandleDeleteArchitectTool(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	toolID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	tool, err := h.db.GetArchitectTool(r.Context(), toolID)
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	if tool.CreatorID != claims.UserID && !authz.HasRole(r.Context(), h.db, claims.UserID, model.RoleAdministrator) {
		writeError(w, r, http.StatusForbidden, model.ErrCodeAuthorization, "only the creator or an administrator may delete a tool")
		return
	}

	if err := h.db.DeleteArchitectTool(r.Context(), toolID); err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubmitTool handles POST /api/architect/tools/{id}/submit (creator).
func (h *Handlers) HandleSubmitTool(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	toolID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	tool, err := h.db.GetArchitectTool(r.Context(), toolID)
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	if tool.CreatorID != claims.UserID {
		writeError(w, r, http.StatusForbidden, model.ErrCodeAuthorization, "only the creator may submit a tool")
		return
	}
	if tool.Status != model.ToolStatusDraft && tool.Status != model.ToolStatusRejected {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "only draft or rejected tools can be submitted")
		return
	}

	prompts, err := h.db.ListChainPrompts(r.Context(), toolID)
	if err != nil {
		h.writeInternalError(w, r, "failed to list prompts", err)
		return
	}
	if len(prompts) == 0 {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "a tool needs at least one prompt before submission")
		return
	}

	updated, err := h.db.UpdateArchitectToolStatus(r.Context(), toolID, model.ToolStatusSubmitted)
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleApproveTool handles POST /api/architect/tools/{id}/approve (administrator).
func (h *Handlers) HandleApproveTool(w http.ResponseWriter, r *http.Request) {
	h.reviewTool(w, r, model.ToolStatusApproved, "")
}

// HandleRejectTool handles POST /api/architect/tools/{id}/reject (administrator).
func (h *Handlers) HandleRejectTool(w http.ResponseWriter, r *http.Request) {
	var req model.RejectToolRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.reviewTool(w, r, model.ToolStatusRejected, req.Reason)
}

func (h *Handlers) reviewTool(w http.ResponseWriter, r *http.Request, verdict model.ToolStatus, reason string) {
	claims := ClaimsFromContext(r.Context())
	toolID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	tool, err := h.db.GetArchitectTool(r.Context(), toolID)
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	if tool.Status != model.ToolStatusSubmitted {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "only submitted tools can be reviewed")
		return
	}

	updated, err := h.db.UpdateArchitectToolStatus(r.Context(), toolID, verdict)
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	h.logger.Info("tool reviewed",
		"tool_id", toolID, "verdict", verdict, "reviewer", claims.UserID, "reason", reason)
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleCreateInputField handles POST /api/architect/tools/{id}/fields.
func (h *Handlers) HandleCreateInputField(w http.ResponseWriter, r *http.Request) {
	var req model.UpsertInputFieldRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	tool, ok := h.editableTool(w, r)
	if !ok {
		return
	}
	if !h.validateInputFieldRequest(w, r, req) {
		return
	}

	field, err := h.db.CreateInputField(r.Context(), model.InputField{
		ToolID:    tool.ID,
		Name:      req.Name,
		FieldType: req.FieldType,
		Options:   req.Options,
		Position:  req.Position,
		Required:  req.Required,
	})
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	writeJSON(w, r, http.StatusCreated, field)
}

// HandleUpdateInputField handles PUT /api/architect/tools/{id}/fields/{fieldID}.
func (h *Handlers) HandleUpdateInputField(w http.ResponseWriter, r *http.Request) {
	fieldID, ok := pathUUID(w, r, "fieldID")
	if !ok {
		return
	}
	var req model.UpsertInputFieldRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	tool, ok := h.editableTool(w, r)
	if !ok {
		return
	}
	if !h.validateInputFieldRequest(w, r, req) {
		return
	}

	field, err := h.db.UpdateInputField(r.Context(), model.InputField{
		ID:        fieldID,
		ToolID:    tool.ID,
		Name:      req.Name,
		FieldType: req.FieldType,
		Options:   req.Options,
		Position:  req.Position,
		Required:  req.Required,
	})
	if err != nil {
		h.writeStorageError(w, r, err, "input field not found")
		return
	}
	writeJSON(w, r, http.StatusOK, field)
}

// HandleDeleteInputField handles DELETE /api/architect/tools/{id}/fields/{fieldID}.
func (h *Handlers) HandleDeleteInputField(w http.ResponseWriter, r *http.Request) {
	fieldID, ok := pathUUID(w, r, "fieldID")
	if !ok {
		return
	}
	tool, ok := h.editableTool(w, r)
	if !ok {
		return
	}
	if err := h.db.DeleteInputField(r.Context(), tool.ID, fieldID); err != nil {
		h.writeStorageError(w, r, err, "input field not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) validateInputFieldRequest(w http.ResponseWriter, r *http.Request, req model.UpsertInputFieldRequest) bool {
	if req.Name == "" {
		writeFieldError(w, r, "name", "name is required")
		return false
	}
	if err := model.ValidateFieldType(req.FieldType); err != nil {
		writeFieldError(w, r, "field_type", err.Error())
		return false
	}
	if req.FieldType.IsSelect() && len(req.Options) == 0 {
		writeFieldError(w, r, "options", "select fields require at least one option")
		return false
	}
	if req.Position < 1 {
		writeFieldError(w, r, "position", "position must be at least 1")
		return false
	}
	return true
}

// HandleCreateChainPrompt handles POST /api/architect/tools/{id}/prompts.
// Input mappings are validated here, at definition time: a mapping may
// reference an input field or a strictly earlier-positioned prompt.
func (h *Handlers) HandleCreateChainPrompt(w http.ResponseWriter, r *http.Request) {
	var req model.UpsertChainPromptRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	tool, ok := h.editableTool(w, r)
	if !ok {
		return
	}
	if !h.validateChainPromptRequest(w, r, tool.ID, req, uuid.Nil) {
		return
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = h.defaultModelID
	}
	prompt, err := h.db.CreateChainPrompt(r.Context(), model.ChainPrompt{
		ToolID:         tool.ID,
		Name:           req.Name,
		Content:        req.Content,
		SystemContext:  req.SystemContext,
		ModelID:        modelID,
		Position:       req.Position,
		ParallelGroup:  req.ParallelGroup,
		InputMapping:   req.InputMapping,
		TimeoutSeconds: req.TimeoutSeconds,
	})
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	writeJSON(w, r, http.StatusCreated, prompt)
}

// HandleUpdateChainPrompt handles PUT /api/architect/tools/{id}/prompts/{promptID}.
func (h *Handlers) HandleUpdateChainPrompt(w http.ResponseWriter, r *http.Request) {
	promptID, ok := pathUUID(w, r, "promptID")
	if !ok {
		return
	}
	var req model.UpsertChainPromptRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	tool, ok := h.editableTool(w, r)
	if !ok {
		return
	}
	if !h.validateChainPromptRequest(w, r, tool.ID, req, promptID) {
		return
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = h.defaultModelID
	}
	prompt, err := h.db.UpdateChainPrompt(r.Context(), model.ChainPrompt{
		ID:             promptID,
		ToolID:         tool.ID,
		Name:           req.Name,
		Content:        req.Content,
		SystemContext:  req.SystemContext,
		ModelID:        modelID,
		Position:       req.Position,
		ParallelGroup:  req.ParallelGroup,
		InputMapping:   req.InputMapping,
		TimeoutSeconds: req.TimeoutSeconds,
	})
	if err != nil {
		h.writeStorageError(w, r, err, "prompt not found")
		return
	}
	writeJSON(w, r, http.StatusOK, prompt)
}

// HandleDeleteChainPrompt handles DELETE /api/architect/tools/{id}/prompts/{promptID}.
func (h *Handlers) HandleDeleteChainPrompt(w http.ResponseWriter, r *http.Request) {
	promptID, ok := pathUUID(w, r, "promptID")
	if !ok {
		return
	}
	tool, ok := h.editableTool(w, r)
	if !ok {
		return
	}
	if err := h.db.DeleteChainPrompt(r.Context(), tool.ID, promptID); err != nil {
		h.writeStorageError(w, r, err, "prompt not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) validateChainPromptRequest(w http.ResponseWriter, r *http.Request, toolID uuid.UUID, req model.UpsertChainPromptRequest, selfID uuid.UUID) bool {
	if req.Name == "" {
		writeFieldError(w, r, "name", "name is required")
		return false
	}
	if req.Content == "" {
		writeFieldError(w, r, "content", "content is required")
		return false
	}
	if req.Position < 1 {
		writeFieldError(w, r, "position", "position must be at least 1")
		return false
	}
	if req.TimeoutSeconds < 0 {
		writeFieldError(w, r, "timeout_seconds", "timeout_seconds cannot be negative")
		return false
	}

	fields, err := h.db.ListInputFields(r.Context(), toolID)
	if err != nil {
		h.writeInternalError(w, r, "failed to list input fields", err)
		return false
	}
	prompts, err := h.db.ListChainPrompts(r.Context(), toolID)
	if err != nil {
		h.writeInternalError(w, r, "failed to list prompts", err)
		return false
	}
	// Exclude the prompt being updated so its old position cannot satisfy
	// a reference check against itself.
	others := prompts[:0:0]
	for _, p := range prompts {
		if p.ID != selfID {
			others = append(others, p)
		}
	}

	if err := model.ValidatePromptDefinition(req.Content, req.Position, req.ParallelGroup, req.InputMapping, fields, others); err != nil {
		writeFieldError(w, r, "input_mapping", err.Error())
		return false
	}
	return true
}

// HandleExecuteTool handles POST /api/architect/tools/{id}/execute.
// The tool must be approved. Returns 202 with the pending execution;
// the chain runs in the background.
func (h *Handlers) HandleExecuteTool(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	toolID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req model.ExecuteToolRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	tool, err := h.db.GetArchitectTool(r.Context(), toolID)
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return
	}
	if tool.Status != model.ToolStatusApproved {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "only approved tools can be executed")
		return
	}

	exec, err := h.db.CreateExecution(r.Context(), model.ToolExecution{
		ToolID:      toolID,
		UserID:      claims.UserID,
		InputValues: req.Inputs,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to create execution", err)
		return
	}

	// Detach from the request lifetime but keep context values for logs.
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.executor.Run(runCtx, exec); err != nil {
			h.logger.Error("tool execution failed to finalize",
				"execution_id", exec.ID, "tool_id", toolID, "error", err)
		}
	}()

	writeJSON(w, r, http.StatusAccepted, exec)
}

// HandleGetExecution handles GET /api/architect/executions/{id}.
// Visible to the execution's owner or an administrator.
func (h *Handlers) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	execID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	exec, err := h.db.GetExecution(r.Context(), execID)
	if err != nil {
		h.writeStorageError(w, r, err, "execution not found")
		return
	}
	if exec.UserID != claims.UserID && !authz.HasRole(r.Context(), h.db, claims.UserID, model.RoleAdministrator) {
		writeError(w, r, http.StatusForbidden, model.ErrCodeAuthorization, "execution belongs to another user")
		return
	}

	results, err := h.db.ListPromptResults(r.Context(), execID)
	if err != nil {
		h.writeInternalError(w, r, "failed to list prompt results", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"execution": exec,
		"results":   results,
	})
}

// editableTool loads the tool in the path and enforces the edit rules:
// only the creator may edit, submitted tools are frozen pending review,
// and editing an approved or rejected tool demotes it back to draft so
// the changes go through review again.
func (h *Handlers) editableTool(w http.ResponseWriter, r *http.Request) (model.ArchitectTool, bool) {
	claims := ClaimsFromContext(r.Context())
	toolID, ok := pathUUID(w, r, "id")
	if !ok {
		return model.ArchitectTool{}, false
	}

	tool, err := h.db.GetArchitectTool(r.Context(), toolID)
	if err != nil {
		h.writeStorageError(w, r, err, "tool not found")
		return model.ArchitectTool{}, false
	}
	if tool.CreatorID != claims.UserID {
		writeError(w, r, http.StatusForbidden, model.ErrCodeAuthorization, "only the creator may edit a tool")
		return model.ArchitectTool{}, false
	}
	if tool.Status == model.ToolStatusSubmitted {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "tool is awaiting review and cannot be edited")
		return model.ArchitectTool{}, false
	}
	if tool.Status == model.ToolStatusApproved || tool.Status == model.ToolStatusRejected {
		demoted, err := h.db.UpdateArchitectToolStatus(r.Context(), toolID, model.ToolStatusDraft)
		if err != nil {
			h.writeStorageError(w, r, err, "tool not found")
			return model.ArchitectTool{}, false
		}
		h.logger.Info("reviewed tool edited, demoted to draft",
			"tool_id", toolID, "user_id", claims.UserID, "previous_status", tool.Status)
		tool = demoted
	}
	return tool, true
}

func (h *Handlers) loadToolDetail(ctx context.Context, toolID uuid.UUID) (architectToolDetail, error) {
	tool, err := h.db.GetArchitectTool(ctx, toolID)
	if err != nil {
		return architectToolDetail{}, err
	}
	fields, err := h.db.ListInputFields(ctx, toolID)
	if err != nil {
		return architectToolDetail{}, err
	}
	prompts, err := h.db.ListChainPrompts(ctx, toolID)
	if err != nil {
		return architectToolDetail{}, err
	}
	return architectToolDetail{Tool: tool, Fields: fields, Prompts: prompts}, nil
}
