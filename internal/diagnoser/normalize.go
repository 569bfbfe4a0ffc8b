// Normalization of raw backend responses into well-formed Diagnosis values.
// Normalization is total: every input string maps to exactly one Diagnosis,
// and no input is an error.
package diagnoser

import (
	"encoding/json"
	"strings"

	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// Placeholder values for the empty and free-text branches.
const (
	emptyExplanation   = "Empty LLM response"
	fallbackMemoryHint = "Consider increasing memory limit"
	unknownMemory      = "N/A"

	structuredDefaultConfidence = 0.5
	fallbackConfidence          = 0.4
)

// llmPayload is the structured shape a backend is asked to produce. All
// fields are optional; absent ones take branch defaults. Confidence is a
// pointer to distinguish absent from an explicit zero.
type llmPayload struct {
	RootCauses        []string `json:"root_causes"`
	Confidence        *float64 `json:"confidence"`
	RecommendedMemory string   `json:"recommended_memory"`
	ExplanationText   string   `json:"explanation_text"`
}

// objectAttempt is the outcome of trying to extract a JSON object from a raw
// response. OK distinguishes the structured branch from the free-text
// fallback; there is no implicit "half parsed" state.
type objectAttempt struct {
	OK       bool
	Payload  llmPayload
	Trailing string
}

// Normalize maps a raw diagnosis response to exactly one Diagnosis:
//
//   - an empty response becomes the zero-confidence placeholder,
//   - a response containing a parseable JSON object becomes a structured
//     diagnosis with per-field defaults, where text trailing the object
//     overrides the object's own explanation,
//   - anything else becomes a low-confidence free-text diagnosis carrying
//     the raw response as its single root cause.
func Normalize(raw string) model.Diagnosis {
	if raw == "" {
		return model.Diagnosis{
			RootCauses:        []string{},
			Confidence:        0,
			RecommendedMemory: unknownMemory,
			ExplanationText:   emptyExplanation,
			Source:            model.SourceEmpty,
			RawResponse:       "",
		}
	}

	if attempt := extractObject(raw); attempt.OK {
		return structuredDiagnosis(attempt, raw)
	}

	return model.Diagnosis{
		RootCauses:        []string{raw},
		Confidence:        model.NewConfidence(fallbackConfidence),
		RecommendedMemory: fallbackMemoryHint,
		ExplanationText:   strings.TrimSpace(raw),
		Source:            model.SourceFreeText,
		RawResponse:       raw,
	}
}

// extractObject tries to parse the span from the first '{' to the last '}'
// as a JSON object. Anything after the closing brace is kept as trailing
// explanation text.
func extractObject(raw string) objectAttempt {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return objectAttempt{}
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return objectAttempt{}
	}

	return objectAttempt{
		OK:       true,
		Payload:  payload,
		Trailing: strings.TrimSpace(raw[end+1:]),
	}
}

func structuredDiagnosis(attempt objectAttempt, raw string) model.Diagnosis {
	p := attempt.Payload

	rootCauses := p.RootCauses
	if rootCauses == nil {
		rootCauses = []string{}
	}

	confidence := model.NewConfidence(structuredDefaultConfidence)
	if p.Confidence != nil {
		confidence = model.NewConfidence(*p.Confidence)
	}

	memory := p.RecommendedMemory
	if memory == "" {
		memory = unknownMemory
	}

	// Trailing prose wins over the object's own explanation field.
	explanation := attempt.Trailing
	if explanation == "" {
		explanation = p.ExplanationText
	}

	return model.Diagnosis{
		RootCauses:        rootCauses,
		Confidence:        confidence,
		RecommendedMemory: memory,
		ExplanationText:   explanation,
		Source:            model.SourceStructured,
		RawResponse:       raw,
	}
}
