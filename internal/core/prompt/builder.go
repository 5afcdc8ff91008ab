// Package prompt renders the instruction text sent to the inference
// backend. Rendering is pure and deterministic; every prompt except the
// measurement extraction one opens with the fixed safety preamble.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// SafetyPreamble is prepended to every analysis prompt. The analysis output
// is decision support, never a diagnosis.
const SafetyPreamble = `IMPORTANT: This is an AI-powered decision support tool, NOT a diagnostic system.
All findings must be reviewed and verified by a qualified radiologist.
Do not make definitive diagnoses. Use phrases like "suggestive of", "consistent with", "possibly indicates".
Express uncertainty when confidence is low.`

type PrimaryParams struct {
	Modality           string
	BodyPart           string
	ClinicalIndication string
	TechnicalParams    map[string]string
}

func Primary(p PrimaryParams) string {
	return fmt.Sprintf(`%s

You are analyzing a %s scan of the %s.

CLINICAL INDICATION:
%s

TECHNICAL PARAMETERS:
%s

TASK:
Please provide a comprehensive analysis following this structure:

1. TECHNIQUE:
   - Briefly describe the imaging technique used

2. FINDINGS:
   - Systematically describe all findings
   - For each finding: anatomical location, description (size, shape,
     density/intensity, margins), quantitative measurements where
     applicable, confidence level (high/moderate/low)
   - Note any normal structures
   - Identify any artifacts or limitations

3. MEASUREMENTS:
   - Provide specific measurements for significant findings
   - Use standard units (mm for size, HU for density in CT, etc.)

4. IMPRESSION:
   - Summarize key findings
   - Suggest differential diagnoses when appropriate (use "suggestive of", "consistent with")
   - Recommend follow-up if needed
   - Note any urgent or critical findings

5. RECOMMENDATIONS:
   - Clinical correlation recommended
   - Additional imaging if needed
   - Follow-up timeline if applicable

IMPORTANT GUIDELINES:
- Use medical terminology appropriately
- Be specific and quantitative when possible
- Express confidence levels for findings
- Do not make definitive diagnoses
- Recommend radiologist review
- Flag any critical or urgent findings clearly

Please analyze the provided imaging study and respond in this structured format.
`, SafetyPreamble, p.Modality, p.BodyPart, p.ClinicalIndication, formatTechnicalParams(p.TechnicalParams))
}

type ComparisonParams struct {
	Modality           string
	BodyPart           string
	ClinicalIndication string
	PriorStudyDate     string
	PriorFindings      string
}

func Comparison(p ComparisonParams) string {
	return fmt.Sprintf(`%s

You are comparing a current %s scan of the %s with a prior study from %s.

CLINICAL INDICATION:
%s

PRIOR STUDY FINDINGS (%s):
%s

TASK:
Please provide a comprehensive comparison analysis following this structure:

1. TECHNIQUE:
   - Briefly describe current imaging technique
   - Note any technique differences from prior study

2. COMPARISON FINDINGS:
   For each finding from the prior study AND new findings:
   - Location and description
   - Current measurements vs prior measurements
   - Change assessment: stable, increased, decreased, resolved, new
   - Percentage change if quantifiable
   - Clinical significance of changes

3. NEW FINDINGS:
   - Identify any findings not present in the prior study

4. RESOLVED FINDINGS:
   - Note any findings from prior study that are no longer present

5. IMPRESSION:
   - Summarize overall change assessment
   - Highlight clinically significant changes
   - Recommend action based on interval changes

6. RECOMMENDATIONS:
   - Clinical correlation
   - Follow-up interval
   - Additional imaging if needed

CRITICAL POINTS:
- Be precise about interval changes
- Quantify changes when possible (e.g., "nodule increased from 8mm to 12mm, 50%% increase")
- Flag significant progressions or new concerning findings
- Use standard comparison terminology (stable, improved, worsened)
- Do not make definitive diagnoses based on changes

Please analyze and compare the imaging studies.
`, SafetyPreamble, p.Modality, p.BodyPart, p.PriorStudyDate, p.ClinicalIndication, p.PriorStudyDate, p.PriorFindings)
}

type FocusedParams struct {
	Modality          string
	FindingType       string
	Location          string
	AdditionalContext string
}

func Focused(p FocusedParams) string {
	context := ""
	if p.AdditionalContext != "" {
		context = "Additional Context: " + p.AdditionalContext + "\n"
	}
	return fmt.Sprintf(`%s

You are performing a focused analysis of a specific finding on a %s scan.

FINDING TO ANALYZE:
Type: %s
Location: %s
%s
TASK:
Please provide a detailed characterization of this finding:

1. MORPHOLOGICAL CHARACTERISTICS:
   - Size (all dimensions)
   - Shape and margins
   - Density/signal intensity
   - Internal characteristics
   - Relationship to surrounding structures

2. DIFFERENTIAL DIAGNOSIS:
   - List possible diagnoses (use "suggestive of", "consistent with", "may represent")
   - Rank by likelihood based on imaging features
   - Key distinguishing features

3. ADDITIONAL FEATURES:
   - Enhancement pattern (if contrast given)
   - Associated findings
   - Complications or concerning features

4. RECOMMENDATIONS:
   - Additional imaging for characterization
   - Tissue sampling if indicated
   - Follow-up timeline
   - Urgent action if critical

Provide detailed, systematic analysis of this finding.
`, SafetyPreamble, p.Modality, p.FindingType, p.Location, context)
}

// MeasurementExtraction asks the model to restate all quantitative
// measurements from a findings narrative as strict JSON.
func MeasurementExtraction(findingsSummary string) string {
	return fmt.Sprintf(`Based on the following imaging findings, extract all quantitative measurements:

FINDINGS:
%s

Please provide a structured list of measurements in the following JSON format:
{
    "measurements": [
        {
            "finding": "description of finding",
            "location": "anatomical location",
            "measurement_type": "size/volume/density/etc",
            "value": numeric_value,
            "unit": "mm/cm/HU/etc",
            "method": "how it was measured"
        }
    ]
}

Include all measurements mentioned in the findings.
Be precise and use standard medical units.
`, findingsSummary)
}

func formatTechnicalParams(params map[string]string) string {
	if len(params) == 0 {
		return "Standard protocol"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", k, params[k])
	}
	return b.String()
}
