package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-comply/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-comply/internal/domain/documents"
)

func TestExtractSuggestionCleanJSON(t *testing.T) {
	raw := `{"assessment":"YES","confidence":0.85,"reasoning":"The policy covers it.","suggested_evidence":"Section 4 of the access policy"}`

	got := ExtractSuggestion(raw)
	require.True(t, got.Parsed)
	assert.Equal(t, string(analysis.LabelYes), got.Assessment)
	assert.Equal(t, 0.85, got.Confidence)
	assert.Equal(t, "The policy covers it.", got.Reasoning)
	assert.Equal(t, "Section 4 of the access policy", got.SuggestedEvidence)
}

func TestExtractSuggestionJSONEmbeddedInProse(t *testing.T) {
	raw := "Sure, here is my assessment:\n```json\n{\"assessment\":\"partial\",\"confidence\":0.6,\"reasoning\":\"Only the {draft} policy mentions it.\"}\n```\nLet me know if you need more."

	got := ExtractSuggestion(raw)
	require.True(t, got.Parsed)
	assert.Equal(t, string(analysis.LabelPartial), got.Assessment)
	// brace inside a string value must not end the span early
	assert.Equal(t, "Only the {draft} policy mentions it.", got.Reasoning)
}

func TestExtractSuggestionFallback(t *testing.T) {
	raw := "I cannot answer this question based on the provided documents."

	got := ExtractSuggestion(raw)
	require.False(t, got.Parsed)
	assert.Equal(t, string(analysis.LabelInsufficientInfo), got.Assessment)
	assert.Equal(t, FallbackConfidence, got.Confidence)
	assert.Equal(t, raw, got.Reasoning)
	assert.Equal(t, raw, got.Raw)
}

func TestExtractSuggestionMalformedJSONFallsBack(t *testing.T) {
	got := ExtractSuggestion(`{"assessment": "YES", "confidence": }`)
	require.False(t, got.Parsed)
	assert.Equal(t, string(analysis.LabelInsufficientInfo), got.Assessment)
}

func TestExtractSuggestionNormalizesLabel(t *testing.T) {
	assert.Equal(t, string(analysis.LabelNo), ExtractSuggestion(`{"assessment":" no "}`).Assessment)
	assert.Equal(t, string(analysis.LabelInsufficientInfo), ExtractSuggestion(`{"assessment":"MAYBE"}`).Assessment)
}

func TestExtractSuggestionClampsConfidence(t *testing.T) {
	assert.Equal(t, 1.0, ExtractSuggestion(`{"assessment":"YES","confidence":3.2}`).Confidence)
	assert.Equal(t, 0.0, ExtractSuggestion(`{"assessment":"YES","confidence":-1}`).Confidence)
}

func TestGetUserPromptFormat(t *testing.T) {
	chunks := []documents.RankedChunk{
		{Chunk: documents.Chunk{Content: "Backups run nightly."}, DocumentName: "backup-policy.pdf", Score: 0.42},
		{Chunk: documents.Chunk{Content: "Restore tests run quarterly."}, DocumentName: "dr-plan.md", Score: 0.31},
	}

	got := GetUserPrompt("Are backups tested regularly?", chunks, "auditor note: focus on restore evidence")

	assert.Contains(t, got, "Are backups tested regularly?")
	assert.Contains(t, got, "[Source 1: backup-policy.pdf]")
	assert.Contains(t, got, "[Source 2: dr-plan.md]")
	assert.Contains(t, got, "Backups run nightly.")
	assert.Contains(t, got, ContextSeparator)
	assert.Contains(t, got, "auditor note: focus on restore evidence")
}

func TestGetSystemPromptSchema(t *testing.T) {
	got := GetSystemPrompt()
	assert.Contains(t, got, `"assessment"`)
	assert.Contains(t, got, `"confidence"`)
	assert.Contains(t, got, `"reasoning"`)
	assert.Contains(t, got, `"suggested_evidence"`)
}
