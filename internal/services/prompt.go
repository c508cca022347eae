package services

import (
	"fmt"
	"strings"

	"docanalyzer/internal/models"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildAnalysisPrompt creates the scoring prompt for a document. Pure
// function of its inputs: the truncation guard already happened upstream in
// the extractor.
func (pb *PromptBuilder) BuildAnalysisPrompt(text string, rubric models.Rubric, truncated bool, scaleMax float64, precision int) string {
	if truncated {
		text += "\n... [Content Truncated]"
	}

	var criteriaLines []string
	for _, c := range rubric {
		criteriaLines = append(criteriaLines, fmt.Sprintf("- %s: %s", c.Name, c.Instruction))
	}

	exampleScores := buildExampleScores(rubric, scaleMax)

	return fmt.Sprintf(`You are a teaching assistant providing document feedback and grading. Analyze the following document content based on the provided criteria.

DOCUMENT CONTENT:
%s

GRADING CRITERIA:
%s

INSTRUCTIONS:
1. Provide constructive, specific feedback addressing strengths and weaknesses based on the criteria. If the document content is empty or very short, state that analysis is limited.
2. For each criterion listed above, provide a score from 0 to %g with at most %d decimal place(s). Assign lower scores (e.g., 0) if the content is insufficient for evaluation.
3. Return your response as a JSON object with exactly two keys: "feedback" (string) and "scores" (an object mapping each criterion name above to its numeric score). Use the criterion names exactly as written.

Example JSON format: {"feedback": "Overall feedback here...", "scores": {%s}}

Respond with the JSON object only, no markdown and no extra commentary.`,
		text,
		strings.Join(criteriaLines, "\n"),
		scaleMax,
		precision,
		exampleScores,
	)
}

func buildExampleScores(rubric models.Rubric, scaleMax float64) string {
	var parts []string
	for i, c := range rubric {
		if i >= 2 {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprintf("%q: %.1f", c.Name, scaleMax*0.85))
	}
	return strings.Join(parts, ", ")
}
