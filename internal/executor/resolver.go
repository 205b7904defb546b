package executor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/psd401/toolhub/internal/model"
)

var templateVarRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// stringifyInput converts a decoded JSON input value to its prompt text
// form. Multi-select values arrive as arrays and are comma-joined.
func stringifyInput(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = stringifyInput(item)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// resolveStep computes the concrete value of every template variable in a
// prompt and renders the prompt content. Variables resolve through the
// prompt's input mapping; an unmapped variable falls back to the input
// field of the same name (validated at definition time).
func resolveStep(prompt model.ChainPrompt, inputs map[string]any, outputs map[int]string) (map[string]string, string) {
	resolved := make(map[string]string)
	for _, v := range model.TemplateVars(prompt.Content) {
		ref, mapped := prompt.InputMapping[v]
		if !mapped {
			ref = model.MappingInputPrefix + v
		}
		resolved[v] = resolveRef(ref, inputs, outputs)
	}

	rendered := templateVarRe.ReplaceAllStringFunc(prompt.Content, func(match string) string {
		name := templateVarRe.FindStringSubmatch(match)[1]
		return resolved[name]
	})
	return resolved, rendered
}

func resolveRef(ref string, inputs map[string]any, outputs map[int]string) string {
	switch {
	case strings.HasPrefix(ref, model.MappingInputPrefix):
		return stringifyInput(inputs[strings.TrimPrefix(ref, model.MappingInputPrefix)])
	case strings.HasPrefix(ref, model.MappingStepPrefix):
		pos, err := strconv.Atoi(strings.TrimPrefix(ref, model.MappingStepPrefix))
		if err != nil {
			return ""
		}
		return outputs[pos]
	default:
		return ""
	}
}

// stepDeps returns the positions of earlier prompts this prompt's mapping
// references.
func stepDeps(prompt model.ChainPrompt) []int {
	var deps []int
	for _, ref := range prompt.InputMapping {
		if !strings.HasPrefix(ref, model.MappingStepPrefix) {
			continue
		}
		pos, err := strconv.Atoi(strings.TrimPrefix(ref, model.MappingStepPrefix))
		if err != nil {
			continue
		}
		deps = append(deps, pos)
	}
	return deps
}

// validateInputs checks the execution's input values against the tool's
// field definitions: required fields must be present and non-empty, and
// select values must be one of the declared options.
func validateInputs(fields []model.InputField, inputs map[string]any) error {
	for _, f := range fields {
		raw, present := inputs[f.Name]
		text := stringifyInput(raw)
		if f.Required && (!present || text == "") {
			return fmt.Errorf("required input %q is missing", f.Name)
		}
		if !present || text == "" || !f.FieldType.IsSelect() {
			continue
		}

		allowed := make(map[string]bool, len(f.Options))
		for _, opt := range f.Options {
			allowed[opt.Value] = true
		}
		values := []string{text}
		if f.FieldType == model.FieldMultiSelect {
			if arr, ok := raw.([]any); ok {
				values = values[:0]
				for _, item := range arr {
					values = append(values, stringifyInput(item))
				}
			}
		}
		for _, v := range values {
			if !allowed[v] {
				return fmt.Errorf("input %q: value %q is not an option", f.Name, v)
			}
		}
	}
	return nil
}
