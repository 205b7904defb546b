package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ToolStatus is the lifecycle status of an Assistant Architect tool.
// Only the creator may mutate a draft or rejected tool; editing an
// approved tool demotes it back to draft.
type ToolStatus string

const (
	ToolStatusDraft     ToolStatus = "draft"
	ToolStatusSubmitted ToolStatus = "submitted"
	ToolStatusApproved  ToolStatus = "approved"
	ToolStatusRejected  ToolStatus = "rejected"
)

// FieldType enumerates the kinds of tool input fields.
type FieldType string

const (
	FieldShortText   FieldType = "short_text"
	FieldLongText    FieldType = "long_text"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multi_select"
)

// ExecutionStatus is shared by tool executions and per-prompt results.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Error kinds recorded on a failed or skipped prompt result.
const (
	ErrKindModelError       = "MODEL_ERROR"
	ErrKindTimeout          = "TIMEOUT"
	ErrKindDependencyFailed = "DEPENDENCY_FAILED"
)

// DefaultPromptTimeout bounds a chain prompt that does not set its own.
const DefaultPromptTimeout = 300 * time.Second

// ArchitectTool is a user-authored multi-step prompt chain definition.
type ArchitectTool struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	IsParallel  bool       `json:"is_parallel"`
	Status      ToolStatus `json:"status"`
	CreatorID   string     `json:"creator_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// InputFieldOption is one choice of a select or multi_select field.
type InputFieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// InputField is a user-facing parameter of a tool. Positions are unique
// within a tool and define presentation and evaluation order.
type InputField struct {
	ID        uuid.UUID          `json:"id"`
	ToolID    uuid.UUID          `json:"tool_id"`
	Name      string             `json:"name"`
	FieldType FieldType          `json:"field_type"`
	Options   []InputFieldOption `json:"options,omitempty"`
	Position  int                `json:"position"`
	Required  bool               `json:"required"`
	CreatedAt time.Time          `json:"created_at"`
}

// ChainPrompt is one step of a tool's execution chain. InputMapping maps
// template variables in Content to either an input field ("input:<name>")
// or an earlier prompt's output ("step:<position>"). Forward and self
// references are rejected at definition time.
type ChainPrompt struct {
	ID             uuid.UUID         `json:"id"`
	ToolID         uuid.UUID         `json:"tool_id"`
	Name           string            `json:"name"`
	Content        string            `json:"content"`
	SystemContext  *string           `json:"system_context,omitempty"`
	ModelID        string            `json:"model_id"`
	Position       int               `json:"position"`
	ParallelGroup  *int              `json:"parallel_group,omitempty"`
	InputMapping   map[string]string `json:"input_mapping,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Timeout returns the step's configured timeout, or DefaultPromptTimeout.
func (p ChainPrompt) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return DefaultPromptTimeout
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ToolExecution is one run of a tool against concrete input values.
type ToolExecution struct {
	ID          uuid.UUID       `json:"id"`
	ToolID      uuid.UUID       `json:"tool_id"`
	UserID      string          `json:"user_id"`
	Status      ExecutionStatus `json:"status"`
	InputValues map[string]any  `json:"input_values"`
	Error       *string         `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// PromptResult is the outcome of one chain prompt within an execution.
// ElapsedMs is derived from the start/end timestamps when the step ran.
type PromptResult struct {
	ID            uuid.UUID         `json:"id"`
	ExecutionID   uuid.UUID         `json:"execution_id"`
	PromptID      uuid.UUID         `json:"prompt_id"`
	Status        ExecutionStatus   `json:"status"`
	ResolvedInput map[string]string `json:"resolved_input,omitempty"`
	Output        string            `json:"output,omitempty"`
	Error         *string           `json:"error,omitempty"`
	ErrorKind     *string           `json:"error_kind,omitempty"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	ElapsedMs     *int64            `json:"elapsed_ms,omitempty"`
}

// Mapping reference prefixes.
const (
	MappingInputPrefix = "input:"
	MappingStepPrefix  = "step:"
)

var templateVarRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// TemplateVars extracts the distinct {{variable}} names from a prompt
// template, in order of first appearance.
func TemplateVars(content string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, m := range templateVarRe.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	return vars
}

// ValidateFieldType checks a field type against the closed enumeration.
func ValidateFieldType(t FieldType) error {
	switch t {
	case FieldShortText, FieldLongText, FieldSelect, FieldMultiSelect:
		return nil
	default:
		return fmt.Errorf("invalid field_type %q: must be one of short_text, long_text, select, multi_select", t)
	}
}

// IsSelect reports whether the field type carries an option list.
func (t FieldType) IsSelect() bool {
	return t == FieldSelect || t == FieldMultiSelect
}

// ValidatePromptDefinition checks a chain prompt's input mapping against the
// tool's input fields and the other prompts at definition time. A mapping
// value must name an existing input field, or a prompt at a strictly smaller
// position than pos (which rules out self references and cycles). A step
// reference may not target a prompt sharing this prompt's parallel group,
// and no prompt in that group may reference this position: group members
// run concurrently, so the output would not exist yet. Template variables
// without a mapping entry must match an input field name.
func ValidatePromptDefinition(content string, pos int, group *int, mapping map[string]string, fields []InputField, prompts []ChainPrompt) error {
	fieldNames := make(map[string]bool, len(fields))
	for _, f := range fields {
		fieldNames[f.Name] = true
	}
	promptPositions := make(map[int]bool, len(prompts))
	promptGroups := make(map[int]*int, len(prompts))
	for _, p := range prompts {
		promptPositions[p.Position] = true
		promptGroups[p.Position] = p.ParallelGroup
	}

	for variable, ref := range mapping {
		switch {
		case strings.HasPrefix(ref, MappingInputPrefix):
			name := strings.TrimPrefix(ref, MappingInputPrefix)
			if !fieldNames[name] {
				return fmt.Errorf("input_mapping[%s]: unknown input field %q", variable, name)
			}
		case strings.HasPrefix(ref, MappingStepPrefix):
			raw := strings.TrimPrefix(ref, MappingStepPrefix)
			refPos, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("input_mapping[%s]: invalid step position %q", variable, raw)
			}
			if refPos >= pos {
				return fmt.Errorf("input_mapping[%s]: step %d is not before position %d (forward and self references are not allowed)", variable, refPos, pos)
			}
			if !promptPositions[refPos] {
				return fmt.Errorf("input_mapping[%s]: no prompt at position %d", variable, refPos)
			}
			if group != nil && promptGroups[refPos] != nil && *promptGroups[refPos] == *group {
				return fmt.Errorf("input_mapping[%s]: step %d is in the same parallel group %d and may run concurrently with this prompt", variable, refPos, *group)
			}
		default:
			return fmt.Errorf("input_mapping[%s]: reference %q must start with %q or %q", variable, ref, MappingInputPrefix, MappingStepPrefix)
		}
	}

	// The reverse direction: a prompt already in this group must not depend
	// on this position, or joining the group would put them in one wave.
	if group != nil {
		selfRef := MappingStepPrefix + strconv.Itoa(pos)
		for _, p := range prompts {
			if p.ParallelGroup == nil || *p.ParallelGroup != *group {
				continue
			}
			for variable, ref := range p.InputMapping {
				if ref == selfRef {
					return fmt.Errorf("prompt at position %d maps %q to step %d and shares parallel group %d with this prompt", p.Position, variable, pos, *group)
				}
			}
		}
	}

	for _, v := range TemplateVars(content) {
		if _, mapped := mapping[v]; mapped {
			continue
		}
		if !fieldNames[v] {
			return fmt.Errorf("template variable {{%s}} has no mapping and no matching input field", v)
		}
	}
	return nil
}
