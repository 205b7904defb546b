package server

import (
	"net/http"

	"github.com/psd401/toolhub/internal/model"
)

// HandleListIdeas handles GET /api/ideas. Newest first.
func (h *Handlers) HandleListIdeas(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 200)
	offset := queryOffset(r)

	ideas, err := h.db.ListIdeas(r.Context(), limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list ideas", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"ideas":  ideas,
		"limit":  limit,
		"offset": offset,
	})
}

// HandleCreateIdea handles POST /api/ideas. New ideas always start open
// with zero votes regardless of what the caller sends.
func (h *Handlers) HandleCreateIdea(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req model.CreateIdeaRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Title == "" {
		writeFieldError(w, r, "title", "title is required")
		return
	}
	if req.Description == "" {
		writeFieldError(w, r, "description", "description is required")
		return
	}
	if err := model.ValidateIdeaPriority(req.PriorityLevel); err != nil {
		writeFieldError(w, r, "priority_level", err.Error())
		return
	}

	idea, err := h.db.CreateIdea(r.Context(), model.Idea{
		Title:         req.Title,
		Description:   req.Description,
		PriorityLevel: req.PriorityLevel,
		CreatedBy:     claims.UserID,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to create idea", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, idea)
}

// HandleVoteIdea handles POST /api/ideas/{id}/vote. Voting is idempotent:
// a repeat vote changes nothing and the response reports the same state.
func (h *Handlers) HandleVoteIdea(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	ideaID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.db.GetIdea(r.Context(), ideaID); err != nil {
		h.writeStorageError(w, r, err, "idea not found")
		return
	}
	_, count, err := h.db.VoteIdea(r.Context(), ideaID, claims.UserID)
	if err != nil {
		h.writeStorageError(w, r, err, "idea not found")
		return
	}
	writeJSON(w, r, http.StatusOK, model.VoteResponse{
		IdeaID:   ideaID,
		HasVoted: true,
		Votes:    count,
	})
}

// HandleUpdateIdeaStatus handles PATCH /api/ideas/{id}/status (staff+).
func (h *Handlers) HandleUpdateIdeaStatus(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	ideaID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req model.UpdateIdeaStatusRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := model.ValidateIdeaStatus(req.Status); err != nil {
		writeFieldError(w, r, "status", err.Error())
		return
	}

	idea, err := h.db.UpdateIdeaStatus(r.Context(), ideaID, req.Status, claims.UserID)
	if err != nil {
		h.writeStorageError(w, r, err, "idea not found")
		return
	}
	writeJSON(w, r, http.StatusOK, idea)
}

// HandleListIdeaNotes handles GET /api/ideas/{id}/notes (staff+).
func (h *Handlers) HandleListIdeaNotes(w http.ResponseWriter, r *http.Request) {
	ideaID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.db.GetIdea(r.Context(), ideaID); err != nil {
		h.writeStorageError(w, r, err, "idea not found")
		return
	}
	notes, err := h.db.ListIdeaNotes(r.Context(), ideaID)
	if err != nil {
		h.writeInternalError(w, r, "failed to list idea notes", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"notes": notes})
}

// HandleCreateIdeaNote handles POST /api/ideas/{id}/notes (staff+).
func (h *Handlers) HandleCreateIdeaNote(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	ideaID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req model.CreateIdeaNoteRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Content == "" {
		writeFieldError(w, r, "content", "content is required")
		return
	}

	if _, err := h.db.GetIdea(r.Context(), ideaID); err != nil {
		h.writeStorageError(w, r, err, "idea not found")
		return
	}
	note, err := h.db.CreateIdeaNote(r.Context(), model.IdeaNote{
		IdeaID:    ideaID,
		Content:   req.Content,
		CreatedBy: claims.UserID,
	})
	if err != nil {
		h.writeStorageError(w, r, err, "idea not found")
		return
	}
	writeJSON(w, r, http.StatusCreated, note)
}
