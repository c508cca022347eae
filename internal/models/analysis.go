package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Criterion is one named evaluation dimension with its instruction for the
// scoring engine.
type Criterion struct {
	Name        string
	Instruction string
}

// Rubric is the ordered set of criteria a document is scored against. Order
// determines the iteration order of the resulting ScoreSet.
type Rubric []Criterion

// Names returns the criterion names in rubric order.
func (r Rubric) Names() []string {
	names := make([]string, len(r))
	for i, c := range r {
		names[i] = c.Name
	}
	return names
}

// ExtractedContent is the normalized text pulled out of an uploaded document.
type ExtractedContent struct {
	Text      string
	Truncated bool
	Pages     int
}

// ScoreSet holds one numeric score per criterion name. Keys always equal the
// resolved rubric's names exactly, and insertion order is kept through JSON
// serialization; a plain map would come back out alphabetized.
type ScoreSet struct {
	names  []string
	values map[string]float64
}

// Set records a score for name, appending a new key or overwriting an
// existing one in place.
func (s *ScoreSet) Set(name string, score float64) {
	if s.values == nil {
		s.values = make(map[string]float64)
	}
	if _, seen := s.values[name]; !seen {
		s.names = append(s.names, name)
	}
	s.values[name] = score
}

func (s ScoreSet) Get(name string) (float64, bool) {
	score, ok := s.values[name]
	return score, ok
}

func (s ScoreSet) Len() int {
	return len(s.names)
}

// Names returns the criterion names in insertion order.
func (s ScoreSet) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Values returns the scores in insertion order.
func (s ScoreSet) Values() []float64 {
	values := make([]float64, len(s.names))
	for i, name := range s.names {
		values[i] = s.values[name]
	}
	return values
}

// MarshalJSON emits the entries as a JSON object in insertion order.
func (s ScoreSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(s.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of numeric values, keeping the keys in
// document order.
func (s *ScoreSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("scores must be a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("scores key must be a string, got %v", keyTok)
		}
		var score float64
		if err := dec.Decode(&score); err != nil {
			return err
		}
		s.Set(name, score)
	}
	return nil
}

// AnalysisResult is the data payload of a completed analysis.
type AnalysisResult struct {
	Feedback      string   `json:"feedback"`
	Scores        ScoreSet `json:"scores"`
	OverallScore  float64  `json:"overall_score"`
	ParsedContent *string  `json:"parsed_content"`
}

// Envelope is the fixed top-level response wrapper returned for every
// request regardless of internal outcome.
type Envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// SuccessEnvelope wraps data in a code-200 envelope.
func SuccessEnvelope(data interface{}) Envelope {
	if data == nil {
		data = struct{}{}
	}
	return Envelope{Code: 200, Message: "Success", Data: data}
}

// ErrorEnvelope builds an envelope with an empty data object.
func ErrorEnvelope(code int, message string) Envelope {
	return Envelope{Code: code, Message: message, Data: struct{}{}}
}
