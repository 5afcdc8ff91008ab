package domain

import "time"

type AnalysisStatus string

const (
	AnalysisQueued     AnalysisStatus = "queued"
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
	AnalysisReviewed   AnalysisStatus = "reviewed"
)

// CanTransitionTo enforces the forward-only lifecycle:
// queued -> processing -> {completed, failed} -> reviewed.
// Failed is reachable from processing at any point; completed and failed
// leave the pipeline and only the external review transition remains.
func (s AnalysisStatus) CanTransitionTo(next AnalysisStatus) bool {
	switch s {
	case AnalysisQueued:
		return next == AnalysisProcessing || next == AnalysisFailed
	case AnalysisProcessing:
		return next == AnalysisCompleted || next == AnalysisFailed
	case AnalysisCompleted, AnalysisFailed:
		return next == AnalysisReviewed
	default:
		return false
	}
}

type AnalysisType string

const (
	AnalysisPrimary    AnalysisType = "primary"
	AnalysisComparison AnalysisType = "comparison"
	AnalysisFocused    AnalysisType = "focused"
)

func ParseAnalysisType(raw string) (AnalysisType, bool) {
	switch AnalysisType(raw) {
	case AnalysisPrimary, AnalysisComparison, AnalysisFocused:
		return AnalysisType(raw), true
	default:
		return "", false
	}
}

// Analysis is one AI inference run against a study. It exclusively owns its
// findings and measurements. A completed analysis always carries a raw
// response and a confidence score.
type Analysis struct {
	ID                 string         `json:"id"`
	StudyID            string         `json:"study_id"`
	AnalysisType       AnalysisType   `json:"analysis_type"`
	Prompt             string         `json:"prompt"`
	RawResponse        string         `json:"raw_response"`
	StructuredFindings *Extraction    `json:"structured_findings,omitempty"`
	ConfidenceScore    float64        `json:"confidence_score"`
	ProcessingTime     float64        `json:"processing_time"`
	ModelVersion       string         `json:"model_version"`
	Status             AnalysisStatus `json:"status"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	Findings           []Finding      `json:"findings,omitempty"`
	Measurements       []Measurement  `json:"measurements,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
}

type Finding struct {
	ID                 string    `json:"id"`
	AnalysisID         string    `json:"analysis_id"`
	FindingType        string    `json:"finding_type"`
	AnatomicalLocation string    `json:"anatomical_location"`
	Description        string    `json:"description"`
	Severity           string    `json:"severity"`
	ConfidenceScore    float64   `json:"confidence_score"`
	Coordinates        string    `json:"coordinates,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type Measurement struct {
	ID               string    `json:"id"`
	AnalysisID       string    `json:"analysis_id"`
	FindingID        string    `json:"finding_id,omitempty"`
	MeasurementType  string    `json:"measurement_type"`
	Value            float64   `json:"value"`
	Unit             string    `json:"unit"`
	Location         string    `json:"location"`
	ComparisonValue  float64   `json:"comparison_value,omitempty"`
	ChangePercentage float64   `json:"change_percentage,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Extraction is the structured bundle a finding extractor produces from one
// raw inference response.
type Extraction struct {
	Findings     []Finding     `json:"findings"`
	Measurements []Measurement `json:"measurements"`
	Summary      string        `json:"summary"`
}

// AnalysisReport is the caller-facing result of one analysis run.
type AnalysisReport struct {
	AnalysisID        string  `json:"analysis_id"`
	Status            string  `json:"status"`
	FindingsCount     int     `json:"findings_count"`
	MeasurementsCount int     `json:"measurements_count"`
	ConfidenceScore   float64 `json:"confidence_score"`
	ProcessingTime    float64 `json:"processing_time"`
}

// AuditEvent is one entry in the advisory audit trail, produced by the
// ingestion and analysis pipelines and consumed by the event worker.
type AuditEvent struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
