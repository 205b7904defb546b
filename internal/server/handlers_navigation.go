package server

import (
	"net/http"

	"github.com/psd401/toolhub/internal/model"
)

// HandleListNavigation handles GET /api/navigation. Any authenticated
// caller may list; ?active=true filters to active items.
func (h *Handlers) HandleListNavigation(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	items, err := h.db.ListNavigationItems(r.Context(), activeOnly)
	if err != nil {
		h.writeInternalError(w, r, "failed to list navigation items", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": items})
}

// HandleCreateNavigation handles POST /api/navigation (administrator).
// The slug ID is derived from the label exactly once, here; it is never
// re-derived on later label edits.
func (h *Handlers) HandleCreateNavigation(w http.ResponseWriter, r *http.Request) {
	var req model.UpsertNavigationItemRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	item, ok := h.navigationItemFromRequest(w, r, req)
	if !ok {
		return
	}
	if item.ID == "" {
		item.ID = model.Slugify(req.Label)
	}
	if item.ID == "" {
		writeFieldError(w, r, "label", "label must contain at least one alphanumeric character")
		return
	}

	created, err := h.db.CreateNavigationItem(r.Context(), item)
	if err != nil {
		h.writeStorageError(w, r, err, "parent navigation item not found")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// HandleUpdateNavigation handles PUT /api/navigation/{id} (administrator).
func (h *Handlers) HandleUpdateNavigation(w http.ResponseWriter, r *http.Request) {
	var req model.UpsertNavigationItemRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	item, ok := h.navigationItemFromRequest(w, r, req)
	if !ok {
		return
	}
	item.ID = r.PathValue("id")

	updated, err := h.db.UpdateNavigationItem(r.Context(), item)
	if err != nil {
		h.writeStorageError(w, r, err, "navigation item not found")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteNavigation handles DELETE /api/navigation/{id} (administrator).
func (h *Handlers) HandleDeleteNavigation(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteNavigationItem(r.Context(), r.PathValue("id")); err != nil {
		h.writeStorageError(w, r, err, "navigation item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// navigationItemFromRequest validates the shared create/update fields.
// Sections are headings, so they are exempt from the link requirement.
func (h *Handlers) navigationItemFromRequest(w http.ResponseWriter, r *http.Request, req model.UpsertNavigationItemRequest) (model.NavigationItem, bool) {
	if req.Label == "" {
		writeFieldError(w, r, "label", "label is required")
		return model.NavigationItem{}, false
	}
	navType := model.NavigationItemType(req.Type)
	if err := model.ValidateNavigationItemType(navType); err != nil {
		writeFieldError(w, r, "type", err.Error())
		return model.NavigationItem{}, false
	}
	if navType != model.NavTypeSection && (req.Link == nil || *req.Link == "") {
		writeFieldError(w, r, "link", "link is required for link and page items")
		return model.NavigationItem{}, false
	}
	if req.RequiresRole != nil {
		if err := model.ValidateRole(*req.RequiresRole); err != nil {
			writeFieldError(w, r, "requires_role", err.Error())
			return model.NavigationItem{}, false
		}
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	return model.NavigationItem{
		ID:           req.ID,
		Label:        req.Label,
		Icon:         req.Icon,
		Link:         req.Link,
		Description:  req.Description,
		Type:         navType,
		ParentID:     req.ParentID,
		Tool:         req.Tool,
		RequiresRole: req.RequiresRole,
		Position:     req.Position,
		IsActive:     isActive,
	}, true
}
