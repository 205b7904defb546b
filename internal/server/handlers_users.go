package server

import (
	"net/http"

	"github.com/psd401/toolhub/internal/model"
)

// HandleListUsers handles GET /api/users (administrator).
func (h *Handlers) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 200)
	offset := queryOffset(r)

	users, err := h.db.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list users", err)
		return
	}
	total, err := h.db.CountUsers(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to count users", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"users":    users,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
		"has_more": offset+len(users) < total,
	})
}

// HandlePromoteUser handles POST /api/users/promote (administrator).
// Raises the target exactly one rank; administrators cannot be promoted.
func (h *Handlers) HandlePromoteUser(w http.ResponseWriter, r *http.Request) {
	var req model.PromoteUserRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.TargetUserID == "" {
		writeFieldError(w, r, "target_user_id", "target_user_id is required")
		return
	}

	target, err := h.db.GetUserByUserID(r.Context(), req.TargetUserID)
	if err != nil {
		h.writeStorageError(w, r, err, "user not found")
		return
	}
	next, err := model.PromotedRole(target.Role)
	if err != nil {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	}

	updated, err := h.db.UpdateUserRole(r.Context(), target.UserID, next)
	if err != nil {
		h.writeStorageError(w, r, err, "user not found")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleUpdateUserRole handles POST /api/users/role (administrator).
// The role is a closed enumeration; anything else is a validation error.
func (h *Handlers) HandleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateUserRoleRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.TargetUserID == "" {
		writeFieldError(w, r, "target_user_id", "target_user_id is required")
		return
	}
	if err := model.ValidateRole(req.Role); err != nil {
		writeFieldError(w, r, "role", err.Error())
		return
	}

	updated, err := h.db.UpdateUserRole(r.Context(), req.TargetUserID, req.Role)
	if err != nil {
		h.writeStorageError(w, r, err, "user not found")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}
