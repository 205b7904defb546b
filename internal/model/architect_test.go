package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateVars(t *testing.T) {
	vars := TemplateVars("Summarize {{topic}} for {{ audience }} about {{topic}}.")
	assert.Equal(t, []string{"topic", "audience"}, vars)

	assert.Empty(t, TemplateVars("no variables here"))
	assert.Empty(t, TemplateVars("{{9bad}} {{also bad}}"))
}

func TestValidatePromptDefinition(t *testing.T) {
	fields := []InputField{
		{Name: "topic", FieldType: FieldShortText, Position: 0},
		{Name: "audience", FieldType: FieldSelect, Position: 1},
	}
	prompts := []ChainPrompt{
		{Position: 0, Content: "Outline {{topic}}"},
		{Position: 1, Content: "Expand {{outline}}", InputMapping: map[string]string{"outline": "step:0"}},
	}

	t.Run("valid mapping", func(t *testing.T) {
		err := ValidatePromptDefinition("Polish {{draft}} for {{audience}}", 2, nil,
			map[string]string{"draft": "step:1", "audience": "input:audience"}, fields, prompts)
		assert.NoError(t, err)
	})

	t.Run("forward reference rejected", func(t *testing.T) {
		err := ValidatePromptDefinition("Use {{later}}", 1, nil,
			map[string]string{"later": "step:2"}, fields, prompts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "forward and self references")
	})

	t.Run("self reference rejected", func(t *testing.T) {
		err := ValidatePromptDefinition("Use {{self}}", 1, nil,
			map[string]string{"self": "step:1"}, fields, prompts)
		assert.Error(t, err)
	})

	t.Run("unknown input field rejected", func(t *testing.T) {
		err := ValidatePromptDefinition("Use {{x}}", 2, nil,
			map[string]string{"x": "input:missing"}, fields, prompts)
		assert.Error(t, err)
	})

	t.Run("missing step rejected", func(t *testing.T) {
		// Position 5 would be a backward reference, but no prompt exists there.
		err := ValidatePromptDefinition("Use {{x}}", 6, nil,
			map[string]string{"x": "step:5"}, fields, prompts)
		assert.Error(t, err)
	})

	t.Run("bad reference prefix rejected", func(t *testing.T) {
		err := ValidatePromptDefinition("Use {{x}}", 2, nil,
			map[string]string{"x": "output:1"}, fields, prompts)
		assert.Error(t, err)
	})

	t.Run("unmapped variable falls back to field name", func(t *testing.T) {
		err := ValidatePromptDefinition("Summarize {{topic}}", 2, nil, nil, fields, prompts)
		assert.NoError(t, err)

		err = ValidatePromptDefinition("Summarize {{missing}}", 2, nil, nil, fields, prompts)
		assert.Error(t, err)
	})

	t.Run("reference into own parallel group rejected", func(t *testing.T) {
		group := 1
		grouped := []ChainPrompt{
			{Position: 1, Content: "Draft {{topic}}", ParallelGroup: &group},
		}
		err := ValidatePromptDefinition("Review {{draft}}", 2, &group,
			map[string]string{"draft": "step:1"}, fields, grouped)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "same parallel group")
	})

	t.Run("reference into an earlier group allowed", func(t *testing.T) {
		g1, g2 := 1, 2
		grouped := []ChainPrompt{
			{Position: 1, Content: "Draft {{topic}}", ParallelGroup: &g1},
		}
		err := ValidatePromptDefinition("Review {{draft}}", 2, &g2,
			map[string]string{"draft": "step:1"}, fields, grouped)
		assert.NoError(t, err)
	})

	t.Run("joining the group of a dependent prompt rejected", func(t *testing.T) {
		group := 1
		grouped := []ChainPrompt{
			{Position: 2, Content: "Review {{draft}}", ParallelGroup: &group,
				InputMapping: map[string]string{"draft": "step:1"}},
		}
		err := ValidatePromptDefinition("Draft {{topic}}", 1, &group, nil, fields, grouped)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shares parallel group")
	})
}

func TestChainPromptTimeout(t *testing.T) {
	assert.Equal(t, DefaultPromptTimeout, ChainPrompt{}.Timeout())
	assert.Equal(t, 30*time.Second, ChainPrompt{TimeoutSeconds: 30}.Timeout())
}

func TestValidateFieldType(t *testing.T) {
	for _, ft := range []FieldType{FieldShortText, FieldLongText, FieldSelect, FieldMultiSelect} {
		assert.NoError(t, ValidateFieldType(ft))
	}
	assert.Error(t, ValidateFieldType("checkbox"))

	assert.True(t, FieldSelect.IsSelect())
	assert.True(t, FieldMultiSelect.IsSelect())
	assert.False(t, FieldShortText.IsSelect())
}

func TestValidateIdeaEnums(t *testing.T) {
	assert.NoError(t, ValidateIdeaPriority(PriorityHigh))
	assert.Error(t, ValidateIdeaPriority("urgent"))
	assert.NoError(t, ValidateIdeaStatus(IdeaStatusOpen))
	assert.Error(t, ValidateIdeaStatus("archived"))
}
