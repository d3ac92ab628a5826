package prompt

import (
	"encoding/json"
	"strings"

	"github.com/bryanwahyu/automaton-comply/internal/domain/analysis"
)

// FallbackConfidence used when the model reply carries no parseable JSON
const FallbackConfidence = 0.5

// SourceRef matches the sources array in the schema
type SourceRef struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Relevance    float64 `json:"relevance"`
	Excerpt      string  `json:"excerpt"`
}

// Payload matches the JSON object the system prompt asks for
type Payload struct {
	Assessment        string      `json:"assessment"`
	Confidence        float64     `json:"confidence"`
	Reasoning         string      `json:"reasoning"`
	SuggestedEvidence string      `json:"suggested_evidence"`
	Sources           []SourceRef `json:"sources"`
}

// Result is a best-effort structured parse of a model reply. Parsed is false
// on the degraded path: label INSUFFICIENT_INFO, neutral confidence, and the
// raw reply preserved verbatim as reasoning. A parse failure is a soft
// failure, never an error.
type Result struct {
	Payload
	Parsed bool
	Raw    string
}

// ExtractSuggestion locates the first balanced {...} span in raw and decodes
// it against the schema.
func ExtractSuggestion(raw string) Result {
	if span, ok := firstJSONObject(raw); ok {
		var p Payload
		if err := json.Unmarshal([]byte(span), &p); err == nil {
			p.Assessment = normalizeLabel(p.Assessment)
			p.Confidence = clamp01(p.Confidence)
			return Result{Payload: p, Parsed: true, Raw: raw}
		}
	}
	return Result{
		Payload: Payload{
			Assessment: string(analysis.LabelInsufficientInfo),
			Confidence: FallbackConfidence,
			Reasoning:  raw,
		},
		Parsed: false,
		Raw:    raw,
	}
}

// firstJSONObject scans for the first brace-balanced span, honoring strings
// and escapes so braces inside values do not end the span early.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func normalizeLabel(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(analysis.LabelYes):
		return string(analysis.LabelYes)
	case string(analysis.LabelNo):
		return string(analysis.LabelNo)
	case string(analysis.LabelPartial):
		return string(analysis.LabelPartial)
	default:
		return string(analysis.LabelInsufficientInfo)
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
