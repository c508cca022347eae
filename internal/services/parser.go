package services

import (
	"encoding/json"
	"strings"

	"docanalyzer/internal/models"
)

// FallbackFeedback is the fixed diagnostic returned when the engine's output
// yields no usable structure. The all-zero ScoreSet that accompanies it is
// part of the documented response shape.
const FallbackFeedback = "The scoring engine returned output that could not be interpreted as an evaluation. All scores default to 0."

const rawOutputPreviewLimit = 300

// ResponseParser coerces raw engine output into a well-formed result. It is
// the correctness boundary between the generative model's free text and the
// typed schema: it never fails, falling through a strict decode, then a
// tolerant extraction of an embedded JSON fragment, then an all-zero result.
type ResponseParser interface {
	Parse(raw string, rubric models.Rubric) *models.AnalysisResult
}

type responseParser struct {
	scaleMax float64
}

func NewResponseParser(scaleMax float64) ResponseParser {
	if scaleMax <= 0 {
		scaleMax = 10
	}
	return &responseParser{scaleMax: scaleMax}
}

// engineOutput is the schema the prompt instructs the model to emit.
// json.RawMessage values keep non-numeric scores from failing the whole
// decode; they are coerced per-key afterwards.
type engineOutput struct {
	Feedback string                     `json:"feedback"`
	Scores   map[string]json.RawMessage `json:"scores"`
}

func (p *responseParser) Parse(raw string, rubric models.Rubric) *models.AnalysisResult {
	decoded, ok := decodeStrict(raw)
	if !ok {
		decoded, ok = decodeStrict(extractJSON(raw))
	}
	if !ok {
		return p.zeroResult(raw, rubric)
	}

	result := &models.AnalysisResult{
		Feedback: decoded.Feedback,
		Scores:   p.reconcileScores(decoded.Scores, rubric),
	}
	if strings.TrimSpace(result.Feedback) == "" {
		result.Feedback = FallbackFeedback
	}
	return result
}

func decodeStrict(raw string) (*engineOutput, bool) {
	var out engineOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	if out.Scores == nil && strings.TrimSpace(out.Feedback) == "" {
		// Valid JSON, but nothing resembling the expected schema.
		return nil, false
	}
	return &out, true
}

// reconcileScores enforces the ScoreSet invariant: exactly one entry per
// rubric criterion, in rubric order. Missing criteria fill with 0, names
// outside the rubric are dropped, values clamp into [0, scaleMax]. Decoded
// names match case-insensitively so a model that lowercases "clarity" still
// counts.
func (p *responseParser) reconcileScores(decoded map[string]json.RawMessage, rubric models.Rubric) models.ScoreSet {
	byLower := make(map[string]float64, len(decoded))
	for name, rawValue := range decoded {
		var value float64
		if err := json.Unmarshal(rawValue, &value); err != nil {
			continue
		}
		byLower[strings.ToLower(strings.TrimSpace(name))] = value
	}

	var scores models.ScoreSet
	for _, c := range rubric {
		scores.Set(c.Name, p.clamp(byLower[strings.ToLower(c.Name)]))
	}
	return scores
}

func (p *responseParser) clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > p.scaleMax {
		return p.scaleMax
	}
	return v
}

func (p *responseParser) zeroResult(raw string, rubric models.Rubric) *models.AnalysisResult {
	var scores models.ScoreSet
	for _, c := range rubric {
		scores.Set(c.Name, 0)
	}

	feedback := FallbackFeedback
	if preview := previewRaw(raw); preview != "" {
		feedback += " Raw output: " + preview
	}

	return &models.AnalysisResult{
		Feedback: feedback,
		Scores:   scores,
	}
}

func previewRaw(raw string) string {
	raw = strings.TrimSpace(raw)
	runes := []rune(raw)
	if len(runes) > rawOutputPreviewLimit {
		return string(runes[:rawOutputPreviewLimit]) + "..."
	}
	return raw
}

// extractJSON tries to extract JSON from text that might contain markdown or
// other formatting around it.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}

	return text
}
