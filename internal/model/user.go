package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role represents the RBAC role assigned to a portal user.
type Role string

const (
	RoleStudent       Role = "student"
	RoleStaff         Role = "staff"
	RoleAdministrator Role = "administrator"
)

// User represents a portal user identity with role assignment.
type User struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	APIKeyHash *string   `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RoleTool grants a role access to a named tool.
type RoleTool struct {
	Role      Role      `json:"role"`
	Tool      string    `json:"tool"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleRank returns the numeric rank of a role (higher = more privileges).
// Only relative ordering matters; RoleAtLeast uses >= comparison.
func RoleRank(r Role) int {
	switch r {
	case RoleAdministrator:
		return 3
	case RoleStaff:
		return 2
	case RoleStudent:
		return 1
	default:
		return 0
	}
}

// RoleAtLeast returns true if role r has at least the privileges of minRole.
func RoleAtLeast(r, minRole Role) bool {
	return RoleRank(r) >= RoleRank(minRole)
}

// ValidateRole checks that a role is one of the closed enumeration.
func ValidateRole(r Role) error {
	if RoleRank(r) == 0 {
		return fmt.Errorf("invalid role %q: must be one of student, staff, administrator", r)
	}
	return nil
}

// PromotedRole returns the role one rank above r, or an error when r is
// already administrator (or unknown).
func PromotedRole(r Role) (Role, error) {
	switch r {
	case RoleStudent:
		return RoleStaff, nil
	case RoleStaff:
		return RoleAdministrator, nil
	case RoleAdministrator:
		return "", fmt.Errorf("user already holds the administrator role")
	default:
		return "", fmt.Errorf("invalid role %q", r)
	}
}

// ValidateUserID checks that a user ID conforms to the allowed format.
// User IDs must be 1-255 ASCII characters: alphanumeric, dots, hyphens,
// underscores, and @ signs (the portal mirrors the identity provider's IDs).
func ValidateUserID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("user_id is required")
	}
	if len(id) > 255 {
		return fmt.Errorf("user_id must be at most 255 characters")
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') &&
			c != '.' && c != '-' && c != '_' && c != '@' {
			return fmt.Errorf("user_id contains invalid character at position %d: %q", i, c)
		}
	}
	return nil
}
