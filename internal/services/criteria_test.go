package services

import (
	"errors"
	"testing"

	"docanalyzer/internal/apperr"
)

func TestResolveDefaults(t *testing.T) {
	validator := NewCriteriaValidator()

	rubric, err := validator.Resolve("")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	want := []string{"Clarity", "Correctness", "Completeness", "Structure", "Engagement"}
	got := rubric.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d criteria, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("criterion %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolveOverridesDefaultByName(t *testing.T) {
	validator := NewCriteriaValidator()

	rubric, err := validator.Resolve(`{"clarity": "custom instruction"}`)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if len(rubric) != 5 {
		t.Fatalf("override must not add criteria, got %d", len(rubric))
	}
	// Canonical casing and position survive a case-insensitive override.
	if rubric[0].Name != "Clarity" || rubric[0].Instruction != "custom instruction" {
		t.Errorf("expected Clarity overridden in place, got %+v", rubric[0])
	}
	defaults := DefaultRubric()
	for i := 1; i < 5; i++ {
		if rubric[i].Instruction != defaults[i].Instruction {
			t.Errorf("criterion %s should keep its default instruction", rubric[i].Name)
		}
	}
}

func TestResolveAppendsNewCriteria(t *testing.T) {
	validator := NewCriteriaValidator()

	rubric, err := validator.Resolve(`{"Tone": "Is the tone appropriate?", "Brevity": "Is it brief?"}`)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if len(rubric) != 7 {
		t.Fatalf("expected 7 criteria, got %d", len(rubric))
	}
	if rubric[5].Name != "Tone" || rubric[6].Name != "Brevity" {
		t.Errorf("new criteria must append in input order, got %v", rubric.Names())
	}
}

func TestResolveInvalidInput(t *testing.T) {
	validator := NewCriteriaValidator()

	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"Clarity": `},
		{"not an object", `["Clarity"]`},
		{"scalar", `"Clarity"`},
		{"non-string instruction", `{"Clarity": 5}`},
		{"empty instruction", `{"Clarity": "   "}`},
		{"trailing garbage", `{"Clarity": "ok"} extra`},
	}

	for _, tt := range tests {
		_, err := validator.Resolve(tt.raw)
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Code != 400 {
			t.Errorf("%s: expected 400 invalid criteria error, got %v", tt.name, err)
		}
	}
}

func TestResolveReturnsFreshDefaults(t *testing.T) {
	validator := NewCriteriaValidator()

	first, _ := validator.Resolve(`{"Clarity": "mutated"}`)
	second, _ := validator.Resolve("")

	if first[0].Instruction == second[0].Instruction {
		t.Error("an override in one request must not leak into the next")
	}
}
