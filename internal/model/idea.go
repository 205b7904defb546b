package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Idea statuses. New ideas start open; staff move them through the board.
const (
	IdeaStatusOpen       = "open"
	IdeaStatusInProgress = "in_progress"
	IdeaStatusCompleted  = "completed"
	IdeaStatusDeclined   = "declined"
)

// Idea priority levels.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Idea is a feedback-board entry. Votes is a derived count of idea_votes
// rows, never stored on the idea itself.
type Idea struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	PriorityLevel string     `json:"priority_level"`
	Status        string     `json:"status"`
	Votes         int        `json:"votes"`
	CreatedBy     string     `json:"created_by"`
	CompletedBy   *string    `json:"completed_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// IdeaNote is a staff-only annotation on an idea.
type IdeaNote struct {
	ID        uuid.UUID `json:"id"`
	IdeaID    uuid.UUID `json:"idea_id"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateIdeaPriority checks a priority level against the closed enumeration.
func ValidateIdeaPriority(p string) error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return nil
	default:
		return fmt.Errorf("invalid priority_level %q: must be one of low, medium, high", p)
	}
}

// ValidateIdeaStatus checks a status value against the closed enumeration.
func ValidateIdeaStatus(s string) error {
	switch s {
	case IdeaStatusOpen, IdeaStatusInProgress, IdeaStatusCompleted, IdeaStatusDeclined:
		return nil
	default:
		return fmt.Errorf("invalid status %q: must be one of open, in_progress, completed, declined", s)
	}
}
