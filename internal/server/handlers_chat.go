package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/psd401/toolhub/internal/executor"
	"github.com/psd401/toolhub/internal/model"
)

// HandleListConversations handles GET /api/chat/conversations.
// Only the caller's own conversations are returned.
func (h *Handlers) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	limit := queryLimit(r, 200)
	offset := queryOffset(r)

	convs, err := h.db.ListConversations(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list conversations", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"conversations": convs,
		"limit":         limit,
		"offset":        offset,
	})
}

// HandleCreateConversation handles POST /api/chat/conversations.
func (h *Handlers) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req model.CreateConversationRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Title == "" {
		writeFieldError(w, r, "title", "title is required")
		return
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = h.defaultModelID
	}

	conv, err := h.db.CreateConversation(r.Context(), model.Conversation{
		UserID:  claims.UserID,
		Title:   req.Title,
		ModelID: modelID,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to create conversation", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, conv)
}

// HandleGetConversation handles GET /api/chat/conversations/{id}.
func (h *Handlers) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.ownedConversation(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, conv)
}

// HandleListMessages handles GET /api/chat/conversations/{id}/messages.
func (h *Handlers) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.ownedConversation(w, r)
	if !ok {
		return
	}
	msgs, err := h.db.ListMessages(r.Context(), conv.ID)
	if err != nil {
		h.writeInternalError(w, r, "failed to list messages", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"messages": msgs})
}

// HandleSendMessage handles POST /api/chat/conversations/{id}/messages.
// Persists the user turn, invokes the model provider with the conversation
// transcript, and persists the assistant turn. The user message survives
// even when the provider call fails.
func (h *Handlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.ownedConversation(w, r)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Content == "" {
		writeFieldError(w, r, "content", "content is required")
		return
	}

	history, err := h.db.ListMessages(r.Context(), conv.ID)
	if err != nil {
		h.writeInternalError(w, r, "failed to load conversation history", err)
		return
	}

	userMsg, err := h.db.CreateMessage(r.Context(), model.Message{
		ConversationID: conv.ID,
		Role:           model.MessageRoleUser,
		Content:        req.Content,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to store message", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.modelTimeout)
	defer cancel()
	resp, err := h.provider.Complete(ctx, executor.CompletionRequest{
		ModelID: conv.ModelID,
		Prompt:  transcriptPrompt(history, req.Content),
	})
	if err != nil {
		h.logger.Error("model provider call failed",
			"conversation_id", conv.ID, "model_id", conv.ModelID, "error", err)
		writeError(w, r, http.StatusBadGateway, model.ErrCodeInternal, "model provider unavailable")
		return
	}

	assistantMsg, err := h.db.CreateMessage(r.Context(), model.Message{
		ConversationID: conv.ID,
		Role:           model.MessageRoleAssistant,
		Content:        resp.Output,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to store assistant message", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, map[string]any{
		"user_message":      userMsg,
		"assistant_message": assistantMsg,
	})
}

// transcriptPrompt flattens prior turns plus the new user content into a
// single prompt for providers without a native message-list API.
func transcriptPrompt(history []model.Message, content string) string {
	var b strings.Builder
	for _, m := range history {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("user: ")
	b.WriteString(content)
	return b.String()
}

// ownedConversation loads the conversation in the path and enforces that
// the caller owns it.
func (h *Handlers) ownedConversation(w http.ResponseWriter, r *http.Request) (model.Conversation, bool) {
	claims := ClaimsFromContext(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return model.Conversation{}, false
	}
	conv, err := h.db.GetConversation(r.Context(), id)
	if err != nil {
		h.writeStorageError(w, r, err, "conversation not found")
		return model.Conversation{}, false
	}
	if conv.UserID != claims.UserID {
		writeError(w, r, http.StatusForbidden, model.ErrCodeAuthorization, "conversation belongs to another user")
		return model.Conversation{}, false
	}
	return conv, true
}

// HandleCreateDocument handles POST /api/documents.
func (h *Handlers) HandleCreateDocument(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req model.CreateDocumentRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Name == "" {
		writeFieldError(w, r, "name", "name is required")
		return
	}
	if req.URL == "" {
		writeFieldError(w, r, "url", "url is required")
		return
	}

	doc, err := h.db.CreateDocument(r.Context(), model.Document{
		UserID: claims.UserID,
		Name:   req.Name,
		Type:   req.Type,
		URL:    req.URL,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to create document", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, doc)
}

// HandleListDocuments handles GET /api/documents (caller's own).
func (h *Handlers) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	docs, err := h.db.ListDocuments(r.Context(), claims.UserID)
	if err != nil {
		h.writeInternalError(w, r, "failed to list documents", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"documents": docs})
}

// HandleLinkDocument handles POST /api/documents/link. Both IDs are
// required and the document owner must be the caller.
func (h *Handlers) HandleLinkDocument(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req model.LinkDocumentRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.DocumentID == uuid.Nil {
		writeFieldError(w, r, "document_id", "document_id is required")
		return
	}
	if req.ConversationID == uuid.Nil {
		writeFieldError(w, r, "conversation_id", "conversation_id is required")
		return
	}

	doc, err := h.db.GetDocument(r.Context(), req.DocumentID)
	if err != nil {
		h.writeStorageError(w, r, err, "document not found")
		return
	}
	if doc.UserID != claims.UserID {
		writeError(w, r, http.StatusForbidden, model.ErrCodeAuthorization, "document belongs to another user")
		return
	}
	if _, err := h.db.GetConversation(r.Context(), req.ConversationID); err != nil {
		h.writeStorageError(w, r, err, "conversation not found")
		return
	}

	linked, err := h.db.LinkDocument(r.Context(), req.DocumentID, req.ConversationID)
	if err != nil {
		h.writeStorageError(w, r, err, "document not found")
		return
	}
	writeJSON(w, r, http.StatusOK, linked)
}
