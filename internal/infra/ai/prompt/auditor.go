package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/automaton-comply/internal/domain/documents"
)

// ContextSeparator sits between source blocks in the user message
const ContextSeparator = "\n---\n"

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior DORA (Digital Operational Resilience Act) compliance auditor. You assess whether an organization's documentation satisfies a regulatory requirement, using only the evidence excerpts provided. You must produce one valid JSON object only (no markdown, no commentary). Do not include code fences.

Requirements:
- Output must be a single JSON object.
- assessment must be one of: YES, NO, PARTIAL, INSUFFICIENT_INFO.
- confidence is a number between 0 and 1.
- Base the assessment strictly on the provided sources; if they do not cover the requirement, answer INSUFFICIENT_INFO.
- sources lists only the provided sources you actually relied on.

Schema (example with empty values):
{
  "assessment": "<YES|NO|PARTIAL|INSUFFICIENT_INFO>",
  "confidence": 0.0,
  "reasoning": "<string>",
  "suggested_evidence": "<string>",
  "sources": [
    {
      "document_id": "<string>",
      "document_name": "<string>",
      "relevance": 0.0,
      "excerpt": "<string>"
    }
  ]
}`
}

// GetUserPrompt concatenates the ranked evidence excerpts, the question, and
// any auditor-supplied steering context into one user message.
func GetUserPrompt(questionText string, chunks []documents.RankedChunk, extraContext string) string {
	var b strings.Builder

	if len(chunks) > 0 {
		b.WriteString("Evidence excerpts from the organization's documents:\n\n")
		for i, c := range chunks {
			if i > 0 {
				b.WriteString(ContextSeparator)
			}
			fmt.Fprintf(&b, "[Source %d: %s]\n%s", i+1, c.DocumentName, c.Content)
		}
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Requirement to assess:\n%s\n", questionText)

	if strings.TrimSpace(extraContext) != "" {
		fmt.Fprintf(&b, "\nAdditional auditor context:\n%s\n", extraContext)
	}

	b.WriteString("\nRespond with the JSON per schema.")
	return b.String()
}
