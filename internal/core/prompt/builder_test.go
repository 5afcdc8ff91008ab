package prompt

import (
	"strings"
	"testing"
)

func TestPrimaryPromptStructure(t *testing.T) {
	out := Primary(PrimaryParams{
		Modality:           "CT",
		BodyPart:           "CHEST",
		ClinicalIndication: "persistent cough",
		TechnicalParams:    map[string]string{"series_count": "2", "study_description": "CT CHEST W/O"},
	})

	if !strings.HasPrefix(out, SafetyPreamble) {
		t.Fatalf("expected safety preamble prefix")
	}
	for _, want := range []string{
		"analyzing a CT scan of the CHEST",
		"persistent cough",
		"- series_count: 2",
		"- study_description: CT CHEST W/O",
		"1. TECHNIQUE:",
		"5. RECOMMENDATIONS:",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected prompt to contain %q", want)
		}
	}
}

func TestPrimaryPromptWithoutTechnicalParams(t *testing.T) {
	out := Primary(PrimaryParams{Modality: "MR", BodyPart: "BRAIN", ClinicalIndication: "headache"})
	if !strings.Contains(out, "Standard protocol") {
		t.Fatalf("expected standard protocol fallback")
	}
}

func TestComparisonPromptIncludesPriorBlock(t *testing.T) {
	out := Comparison(ComparisonParams{
		Modality:           "CT",
		BodyPart:           "CHEST",
		ClinicalIndication: "nodule follow-up",
		PriorStudyDate:     "2025-11-02",
		PriorFindings:      "6mm right upper lobe nodule",
	})

	if !strings.HasPrefix(out, SafetyPreamble) {
		t.Fatalf("expected safety preamble prefix")
	}
	if !strings.Contains(out, "prior study from 2025-11-02") {
		t.Fatalf("expected prior study date")
	}
	if !strings.Contains(out, "PRIOR STUDY FINDINGS (2025-11-02):\n6mm right upper lobe nodule") {
		t.Fatalf("expected prior findings block")
	}
}

func TestFocusedPromptOptionalContext(t *testing.T) {
	with := Focused(FocusedParams{Modality: "CT", FindingType: "nodule", Location: "right upper lobe", AdditionalContext: "smoker"})
	if !strings.Contains(with, "Additional Context: smoker") {
		t.Fatalf("expected additional context line")
	}

	without := Focused(FocusedParams{Modality: "CT", FindingType: "nodule", Location: "right upper lobe"})
	if strings.Contains(without, "Additional Context:") {
		t.Fatalf("expected no additional context line")
	}
}

func TestPromptsAreDeterministic(t *testing.T) {
	p := PrimaryParams{
		Modality:           "CT",
		BodyPart:           "CHEST",
		ClinicalIndication: "screening",
		TechnicalParams:    map[string]string{"b": "2", "a": "1", "c": "3"},
	}
	if Primary(p) != Primary(p) {
		t.Fatalf("expected identical output for identical input")
	}
}
