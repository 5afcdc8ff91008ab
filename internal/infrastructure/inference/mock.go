package inference

import (
	"context"
	"strings"

	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

// MockBackend returns canned deterministic responses for development and
// tests, keyed off the prompt content the same way a real model would be
// steered by it.
type MockBackend struct{}

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (b *MockBackend) Generate(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	upper := strings.ToUpper(prompt)
	switch {
	case strings.Contains(upper, "COMPARISON"):
		return mockComparisonResponse, nil
	case strings.Contains(upper, "FOCUSED"):
		return mockFocusedResponse, nil
	default:
		return mockPrimaryResponse, nil
	}
}

func (b *MockBackend) Info() ports.BackendInfo {
	return ports.BackendInfo{Kind: "mock", Model: "mock-medgemma-dev"}
}

const mockPrimaryResponse = `TECHNIQUE:
CT chest was performed with intravenous contrast enhancement.

FINDINGS:
- The lungs are clear. No focal consolidation, pleural effusion, or pneumothorax is identified.
- A small 6mm nodule is noted in the right upper lobe. This likely represents a benign granuloma (moderate confidence).
- The heart size is normal. No mediastinal or hilar lymphadenopathy.

MEASUREMENTS:
- Right upper lobe nodule: 6 x 5 mm, density 45 HU

IMPRESSION:
1. Small 6mm right upper lobe nodule, likely representing a benign granuloma. Follow-up imaging in 6-12 months is recommended to confirm stability.
2. Otherwise unremarkable CT chest examination.

RECOMMENDATIONS:
- Clinical correlation recommended
- Consider follow-up CT in 6-12 months

This analysis was generated with AI assistance and must be reviewed by a qualified radiologist before clinical use.`

const mockComparisonResponse = `TECHNIQUE:
Current CT chest with IV contrast is compared to the prior study.

COMPARISON FINDINGS:
- Previously noted 6mm right upper lobe nodule is again measured at 6 mm, demonstrating stability (0% change).
- No new pulmonary nodules or masses are identified.

NEW FINDINGS:
- None

RESOLVED FINDINGS:
- None

IMPRESSION:
1. Stable 6mm right upper lobe nodule with no significant interval change (moderate confidence). Continued stability is suggestive of benign etiology.
2. Overall stable examination compared to prior study.

RECOMMENDATIONS:
- Continued surveillance with CT in 12 months
- Clinical correlation recommended

This comparison analysis was generated with AI assistance and must be reviewed by a qualified radiologist before clinical use.`

const mockFocusedResponse = `FOCUSED ANALYSIS: Lung Nodule

MORPHOLOGICAL CHARACTERISTICS:
- Size: 6 x 5 mm, round and well-circumscribed
- Margins: smooth, well-defined
- Density: solid, approximately 45 HU
- Location: right upper lobe, subpleural

DIFFERENTIAL DIAGNOSIS:
1. Benign granuloma, consistent with small size and smooth margins (moderate confidence)
2. Small hamartoma, possible
3. Early malignancy, less likely but cannot be excluded without follow-up

RECOMMENDATIONS:
- Follow-up CT in 6-12 months to confirm stability
- Tissue sampling not indicated at this time

This focused analysis was generated with AI assistance and must be reviewed by a qualified radiologist before clinical use.`
