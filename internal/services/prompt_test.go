package services

import (
	"strings"
	"testing"

	"docanalyzer/internal/models"
)

func TestBuildAnalysisPrompt(t *testing.T) {
	pb := NewPromptBuilder()
	rubric := models.Rubric{
		{Name: "Clarity", Instruction: "Is it clear?"},
		{Name: "Tone", Instruction: "Is the tone right?"},
	}

	prompt := pb.BuildAnalysisPrompt("The document body.", rubric, false, 10, 1)

	for _, want := range []string{
		"The document body.",
		"- Clarity: Is it clear?",
		"- Tone: Is the tone right?",
		"0 to 10",
		`"feedback"`,
		`"scores"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if strings.Contains(prompt, "[Content Truncated]") {
		t.Error("truncation marker must not appear for untruncated content")
	}
}

func TestBuildAnalysisPromptTruncationMarker(t *testing.T) {
	pb := NewPromptBuilder()

	prompt := pb.BuildAnalysisPrompt("cut off text", DefaultRubric(), true, 10, 1)
	if !strings.Contains(prompt, "[Content Truncated]") {
		t.Error("expected truncation marker in prompt")
	}
}
