// Package authz provides the authorization gate for role membership and
// per-role tool entitlements.
//
// This package exists to share access-control logic between the HTTP server
// and the MCP server without creating a circular dependency (both import this
// package; neither imports the other).
//
// All checks fail closed: any lookup failure denies access. Entitlements are
// resolved fresh on every call; there is no caching layer, so revoking a
// grant takes effect on the next request.
package authz

import (
	"context"
	"log/slog"

	"github.com/psd401/toolhub/internal/model"
	"github.com/psd401/toolhub/internal/storage"
)

// HasRole reports whether the user identified by userID holds at least the
// given role (administrator > staff > student).
func HasRole(ctx context.Context, db *storage.DB, userID string, role model.Role) bool {
	user, err := db.GetUserByUserID(ctx, userID)
	if err != nil {
		slog.Warn("authz: role lookup failed, denying",
			"error", err,
			"user_id", userID,
			"required_role", role)
		return false
	}
	return model.RoleAtLeast(user.Role, role)
}

// CanUseTool reports whether the user may use the named tool.
// Administrators pass unconditionally; everyone else needs a role_tools
// grant for their role or any role below it.
func CanUseTool(ctx context.Context, db *storage.DB, userID, tool string) bool {
	user, err := db.GetUserByUserID(ctx, userID)
	if err != nil {
		slog.Warn("authz: user lookup failed, denying tool",
			"error", err,
			"user_id", userID,
			"tool", tool)
		return false
	}
	return roleCanUseTool(ctx, db, user.Role, tool)
}

// roleCanUseTool checks a role's entitlement to a tool, counting grants to
// any role at or below the given rank.
func roleCanUseTool(ctx context.Context, db *storage.DB, role model.Role, tool string) bool {
	if role == model.RoleAdministrator {
		return true
	}

	var eligible []model.Role
	for _, r := range []model.Role{model.RoleStudent, model.RoleStaff, model.RoleAdministrator} {
		if model.RoleAtLeast(role, r) {
			eligible = append(eligible, r)
		}
	}

	granted, err := db.AnyRoleHasTool(ctx, eligible, tool)
	if err != nil {
		slog.Warn("authz: entitlement lookup failed, denying tool",
			"error", err,
			"role", role,
			"tool", tool)
		return false
	}
	return granted
}
