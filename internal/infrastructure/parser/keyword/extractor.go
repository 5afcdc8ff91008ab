package keyword

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
)

const summaryLimit = 500

// measurementPattern accepts a bare value ("45 HU") or a dimension pair
// ("6 x 5 mm") where both values share the trailing unit.
var measurementPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)(?:\s*[xX×]\s*(\d+(?:\.\d+)?))?\s*(mm|cm|HU)`)

// Extractor derives structured findings from raw model output with keyword
// heuristics. It is deliberately shallow; a sophisticated NLP parser can
// replace it behind the same interface.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(raw string) domain.Extraction {
	lower := strings.ToLower(raw)

	var findings []domain.Finding
	if strings.Contains(lower, "nodule") {
		findings = append(findings, domain.Finding{
			FindingType:        "nodule",
			AnatomicalLocation: "lung",
			Description:        "Nodular opacity",
			Severity:           "moderate",
			ConfidenceScore:    0.8,
		})
	}
	if strings.Contains(lower, "fracture") {
		findings = append(findings, domain.Finding{
			FindingType:        "fracture",
			AnatomicalLocation: "bone",
			Description:        "Fracture identified",
			Severity:           "significant",
			ConfidenceScore:    0.9,
		})
	}

	var measurements []domain.Measurement
	for _, match := range measurementPattern.FindAllStringSubmatch(raw, -1) {
		unit := match[3]
		for _, captured := range []string{match[1], match[2]} {
			if captured == "" {
				continue
			}
			value, err := strconv.ParseFloat(captured, 64)
			if err != nil {
				continue
			}
			measurements = append(measurements, domain.Measurement{
				MeasurementType: "size",
				Value:           value,
				Unit:            unit,
				Location:        "unspecified",
			})
		}
	}

	summary := raw
	if len(summary) > summaryLimit {
		summary = summary[:summaryLimit]
	}

	return domain.Extraction{
		Findings:     findings,
		Measurements: measurements,
		Summary:      summary,
	}
}

// ClassifyConfidence maps confidence phrasing to a score. The match order is
// low, then high, then moderate; a response carrying several phrases takes
// the first matching one. Responses with no phrase default to 0.7.
func (e *Extractor) ClassifyConfidence(raw string) float64 {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "low confidence"):
		return 0.5
	case strings.Contains(lower, "high confidence"):
		return 0.9
	case strings.Contains(lower, "moderate confidence"):
		return 0.7
	default:
		return 0.7
	}
}
