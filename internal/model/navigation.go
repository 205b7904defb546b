package model

import (
	"fmt"
	"strings"
	"time"
)

// NavigationItemType enumerates the kinds of navigation entries.
// Sections are headings and carry no link; links and pages must have one.
type NavigationItemType string

const (
	NavTypeLink    NavigationItemType = "link"
	NavTypeSection NavigationItemType = "section"
	NavTypePage    NavigationItemType = "page"
)

// NavigationItem is one entry in the portal's navigation tree.
// The ID is a slug derived from the label at creation time and never
// re-derived afterwards, so renaming a label does not move the item.
type NavigationItem struct {
	ID           string             `json:"id"`
	Label        string             `json:"label"`
	Icon         string             `json:"icon,omitempty"`
	Link         *string            `json:"link,omitempty"`
	Description  *string            `json:"description,omitempty"`
	Type         NavigationItemType `json:"type"`
	ParentID     *string            `json:"parent_id,omitempty"`
	Tool         *string            `json:"tool,omitempty"`
	RequiresRole *Role              `json:"requires_role,omitempty"`
	Position     int                `json:"position"`
	IsActive     bool               `json:"is_active"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ValidateNavigationItemType checks the type against the closed enumeration.
func ValidateNavigationItemType(t NavigationItemType) error {
	switch t {
	case NavTypeLink, NavTypeSection, NavTypePage:
		return nil
	default:
		return fmt.Errorf("invalid navigation type %q: must be one of link, section, page", t)
	}
}

// Slugify derives a stable identifier from a human-readable label:
// lowercased, with every run of non-alphanumeric characters collapsed to a
// single hyphen and leading/trailing hyphens trimmed.
func Slugify(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	pendingSep := false
	for _, r := range strings.ToLower(label) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('-')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
