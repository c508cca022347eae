package services

import (
	"encoding/json"
	"strconv"
	"strings"

	"docanalyzer/internal/apperr"
	"docanalyzer/internal/models"
)

// DefaultRubric returns the built-in evaluation dimensions in canonical
// order. Callers get a fresh copy; the package-level table is never exposed.
func DefaultRubric() models.Rubric {
	return models.Rubric{
		{Name: "Clarity", Instruction: "Is the writing clear, concise, and easy to understand? Avoids jargon and ambiguity."},
		{Name: "Correctness", Instruction: "Is the information presented accurate? Are grammar, spelling, and punctuation correct?"},
		{Name: "Completeness", Instruction: "Does the document cover the topic adequately? Are there any significant omissions?"},
		{Name: "Structure", Instruction: "Is the document well-organized with a logical flow? Are headings and paragraphs used effectively?"},
		{Name: "Engagement", Instruction: "Is the content engaging and interesting to the target audience (teachers/students)?"},
	}
}

// CriteriaValidator resolves the optional user-supplied criteria JSON into
// the rubric used for the rest of the request.
type CriteriaValidator interface {
	Resolve(raw string) (models.Rubric, error)
}

type criteriaValidator struct{}

func NewCriteriaValidator() CriteriaValidator {
	return &criteriaValidator{}
}

// Resolve merges user criteria over the defaults. A name matching a default
// (case-insensitive) replaces that default's instruction in place, keeping
// the default's canonical casing and position; unmatched names are appended
// in input order. An empty raw string yields the defaults verbatim.
func (v *criteriaValidator) Resolve(raw string) (models.Rubric, error) {
	rubric := DefaultRubric()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return rubric, nil
	}

	supplied, err := decodeCriteriaOrdered(raw)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(rubric))
	for i, c := range rubric {
		index[strings.ToLower(c.Name)] = i
	}

	for _, c := range supplied {
		if i, ok := index[strings.ToLower(c.Name)]; ok {
			rubric[i].Instruction = c.Instruction
			continue
		}
		index[strings.ToLower(c.Name)] = len(rubric)
		rubric = append(rubric, c)
	}

	return rubric, nil
}

// decodeCriteriaOrdered decodes a JSON object of string to string while
// preserving key order, which encoding/json maps discard. Duplicate names
// (case-insensitive) keep the last instruction.
func decodeCriteriaOrdered(raw string) ([]models.Criterion, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, apperr.InvalidCriteria("criteria is not a valid JSON string")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, apperr.InvalidCriteria("criteria must be a JSON object of name to instruction")
	}

	var result []models.Criterion
	seen := make(map[string]int)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, apperr.InvalidCriteria("criteria is not a valid JSON string")
		}
		name, ok := keyTok.(string)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, apperr.InvalidCriteria("criterion names must be non-empty strings")
		}

		var instruction string
		if err := dec.Decode(&instruction); err != nil {
			return nil, apperr.InvalidCriteria("instruction for " + strconv.Quote(name) + " must be a string")
		}
		if strings.TrimSpace(instruction) == "" {
			return nil, apperr.InvalidCriteria("instruction for " + strconv.Quote(name) + " is empty")
		}

		lower := strings.ToLower(strings.TrimSpace(name))
		if i, dup := seen[lower]; dup {
			result[i].Instruction = instruction
			continue
		}
		seen[lower] = len(result)
		result = append(result, models.Criterion{
			Name:        strings.TrimSpace(name),
			Instruction: instruction,
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, apperr.InvalidCriteria("criteria is not a valid JSON string")
	}
	// Trailing garbage after the closing brace is a malformed payload too.
	if dec.More() {
		return nil, apperr.InvalidCriteria("criteria is not a valid JSON string")
	}

	return result, nil
}
