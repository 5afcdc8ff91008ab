package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, analysis *domain.Analysis) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO analyses (
	id, study_id, analysis_type, prompt, raw_response, confidence_score,
	processing_time, model_version, status, error_message, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		analysis.ID, analysis.StudyID, string(analysis.AnalysisType), analysis.Prompt,
		analysis.RawResponse, analysis.ConfidenceScore, analysis.ProcessingTime,
		analysis.ModelVersion, string(analysis.Status), analysis.ErrorMessage,
		analysis.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, study_id, analysis_type, prompt, raw_response, structured_findings,
	confidence_score, processing_time, model_version, status, error_message,
	created_at, completed_at
FROM analyses
WHERE id = $1
`, id)

	analysis, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get analysis", fmt.Errorf("analysis %s", id))
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	if err := r.loadFindings(ctx, analysis); err != nil {
		return nil, err
	}
	if err := r.loadMeasurements(ctx, analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

func (r *AnalysisRepository) ListByStudy(ctx context.Context, studyID string) ([]domain.Analysis, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, study_id, analysis_type, prompt, raw_response, structured_findings,
	confidence_score, processing_time, model_version, status, error_message,
	created_at, completed_at
FROM analyses
WHERE study_id = $1
ORDER BY created_at DESC
`, studyID)
	if err != nil {
		return nil, fmt.Errorf("query study analyses: %w", err)
	}
	defer rows.Close()

	var analyses []domain.Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, *analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return analyses, nil
}

// Complete stores the response, structured payload, findings and
// measurements in one transaction and moves the row to completed.
func (r *AnalysisRepository) Complete(ctx context.Context, analysis *domain.Analysis) error {
	findingsJSON, err := json.Marshal(analysis.StructuredFindings)
	if err != nil {
		return fmt.Errorf("marshal structured findings: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin analysis tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
UPDATE analyses
SET raw_response = $2, structured_findings = $3, confidence_score = $4,
	processing_time = $5, model_version = $6, status = $7, completed_at = $8
WHERE id = $1 AND status = $9
`,
		analysis.ID, analysis.RawResponse, findingsJSON, analysis.ConfidenceScore,
		analysis.ProcessingTime, analysis.ModelVersion, string(domain.AnalysisCompleted),
		analysis.CompletedAt, string(domain.AnalysisProcessing),
	)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update analysis rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConflict, "complete analysis",
			fmt.Errorf("analysis %s is not processing", analysis.ID))
	}

	for _, finding := range analysis.Findings {
		_, err := tx.ExecContext(ctx, `
INSERT INTO findings (
	id, analysis_id, finding_type, anatomical_location, description, severity,
	confidence_score, coordinates, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
			finding.ID, analysis.ID, finding.FindingType, finding.AnatomicalLocation,
			finding.Description, finding.Severity, finding.ConfidenceScore,
			finding.Coordinates, finding.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert finding: %w", err)
		}
	}

	for _, m := range analysis.Measurements {
		_, err := tx.ExecContext(ctx, `
INSERT INTO measurements (
	id, analysis_id, finding_id, measurement_type, value, unit, location,
	comparison_value, change_percentage, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
			m.ID, analysis.ID, nullString(m.FindingID), m.MeasurementType, m.Value,
			m.Unit, m.Location, m.ComparisonValue, m.ChangePercentage, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert measurement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit analysis tx: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) MarkFailed(ctx context.Context, id string, result ports.InferenceResult, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE analyses
SET raw_response = $2, processing_time = $3, model_version = $4,
	status = $5, error_message = $6, completed_at = $7
WHERE id = $1
`,
		id, result.Response, result.Duration.Seconds(), result.Backend.Model,
		string(domain.AnalysisFailed), errMessage, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark analysis failed: %w", err)
	}
	return nil
}

// MarkReviewed applies the external reviewed transition; only terminal
// analyses qualify.
func (r *AnalysisRepository) MarkReviewed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE analyses
SET status = $2
WHERE id = $1 AND status IN ($3, $4)
`,
		id, string(domain.AnalysisReviewed),
		string(domain.AnalysisCompleted), string(domain.AnalysisFailed),
	)
	if err != nil {
		return fmt.Errorf("mark analysis reviewed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark reviewed rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return domain.WrapError(domain.ErrConflict, "mark analysis reviewed",
			fmt.Errorf("analysis %s is not in a terminal state", id))
	}
	return nil
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var analysis domain.Analysis
	var structured []byte
	var completedAt sql.NullTime
	var analysisType, status string

	err := row.Scan(
		&analysis.ID, &analysis.StudyID, &analysisType, &analysis.Prompt,
		&analysis.RawResponse, &structured, &analysis.ConfidenceScore,
		&analysis.ProcessingTime, &analysis.ModelVersion, &status,
		&analysis.ErrorMessage, &analysis.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(structured) > 0 {
		var extraction domain.Extraction
		if err := json.Unmarshal(structured, &extraction); err != nil {
			return nil, fmt.Errorf("unmarshal structured findings: %w", err)
		}
		analysis.StructuredFindings = &extraction
	}
	if completedAt.Valid {
		t := completedAt.Time
		analysis.CompletedAt = &t
	}
	analysis.AnalysisType = domain.AnalysisType(analysisType)
	analysis.Status = domain.AnalysisStatus(status)
	return &analysis, nil
}

func (r *AnalysisRepository) loadFindings(ctx context.Context, analysis *domain.Analysis) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, finding_type, anatomical_location, description, severity,
	confidence_score, coordinates, created_at
FROM findings
WHERE analysis_id = $1
ORDER BY created_at
`, analysis.ID)
	if err != nil {
		return fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var finding domain.Finding
		err := rows.Scan(
			&finding.ID, &finding.FindingType, &finding.AnatomicalLocation,
			&finding.Description, &finding.Severity, &finding.ConfidenceScore,
			&finding.Coordinates, &finding.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan finding: %w", err)
		}
		finding.AnalysisID = analysis.ID
		analysis.Findings = append(analysis.Findings, finding)
	}
	return rows.Err()
}

func (r *AnalysisRepository) loadMeasurements(ctx context.Context, analysis *domain.Analysis) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, finding_id, measurement_type, value, unit, location,
	comparison_value, change_percentage, created_at
FROM measurements
WHERE analysis_id = $1
ORDER BY created_at
`, analysis.ID)
	if err != nil {
		return fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Measurement
		var findingID sql.NullString
		err := rows.Scan(
			&m.ID, &findingID, &m.MeasurementType, &m.Value, &m.Unit, &m.Location,
			&m.ComparisonValue, &m.ChangePercentage, &m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan measurement: %w", err)
		}
		if findingID.Valid {
			m.FindingID = findingID.String
		}
		m.AnalysisID = analysis.ID
		analysis.Measurements = append(analysis.Measurements, m)
	}
	return rows.Err()
}
