package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
	"github.com/contact-ajmal/radiant-insights/internal/core/prompt"
)

const fallbackPriorFindings = "No significant abnormalities noted in prior study."

// AnalyzeStudyUseCase sequences prompt construction, inference dispatch and
// response parsing for one analysis run, tracking the record through its
// status machine. Inference failures end in a failed record, never in an
// error escaping to the transport layer with partial state behind it.
type AnalyzeStudyUseCase struct {
	studies    ports.StudyRepository
	analyses   ports.AnalysisRepository
	dispatcher ports.InferenceDispatcher
	extractor  ports.FindingExtractor
	events     ports.EventPublisher
	logger     *slog.Logger
}

func NewAnalyzeStudyUseCase(
	studies ports.StudyRepository,
	analyses ports.AnalysisRepository,
	dispatcher ports.InferenceDispatcher,
	extractor ports.FindingExtractor,
	events ports.EventPublisher,
	logger *slog.Logger,
) *AnalyzeStudyUseCase {
	return &AnalyzeStudyUseCase{
		studies:    studies,
		analyses:   analyses,
		dispatcher: dispatcher,
		extractor:  extractor,
		events:     events,
		logger:     logger,
	}
}

func (uc *AnalyzeStudyUseCase) Run(ctx context.Context, req ports.AnalysisRequest) (*domain.AnalysisReport, error) {
	analysisType, ok := domain.ParseAnalysisType(req.AnalysisType)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run analysis",
			fmt.Errorf("unsupported analysis type %q", req.AnalysisType))
	}

	study, err := uc.studies.GetByID(ctx, req.StudyID)
	if err != nil {
		return nil, fmt.Errorf("load study: %w", err)
	}

	promptText, err := uc.buildPrompt(ctx, study, analysisType, req)
	if err != nil {
		return nil, err
	}

	// The record exists only once a prompt is ready to send; it starts in
	// processing, not queued.
	now := time.Now().UTC()
	analysis := &domain.Analysis{
		ID:           uuid.NewString(),
		StudyID:      study.ID,
		AnalysisType: analysisType,
		Prompt:       promptText,
		Status:       domain.AnalysisProcessing,
		CreatedAt:    now,
	}
	if err := uc.analyses.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("create analysis record: %w", err)
	}

	result := uc.dispatcher.Dispatch(ctx, promptText)
	if !result.OK() {
		return uc.fail(ctx, analysis, result, result.Err)
	}

	extraction := uc.extractor.Extract(result.Response)
	confidence := uc.extractor.ClassifyConfidence(result.Response)

	completedAt := time.Now().UTC()
	analysis.RawResponse = result.Response
	analysis.StructuredFindings = &extraction
	analysis.ConfidenceScore = confidence
	analysis.ProcessingTime = result.Duration.Seconds()
	analysis.ModelVersion = result.Backend.Model
	analysis.Status = domain.AnalysisCompleted
	analysis.CompletedAt = &completedAt
	analysis.Findings = attachFindings(analysis.ID, extraction.Findings, completedAt)
	analysis.Measurements = attachMeasurements(analysis.ID, extraction.Measurements, completedAt)

	if err := uc.analyses.Complete(ctx, analysis); err != nil {
		return uc.fail(ctx, analysis, result, fmt.Sprintf("persist analysis results: %v", err))
	}

	if err := uc.events.PublishAnalysisCompleted(ctx, analysis.ID, analysis.Status); err != nil {
		uc.logger.Warn("publish analysis completed event failed",
			slog.String("analysis_id", analysis.ID),
			slog.String("error", err.Error()))
	}

	return &domain.AnalysisReport{
		AnalysisID:        analysis.ID,
		Status:            string(analysis.Status),
		FindingsCount:     len(analysis.Findings),
		MeasurementsCount: len(analysis.Measurements),
		ConfidenceScore:   analysis.ConfidenceScore,
		ProcessingTime:    analysis.ProcessingTime,
	}, nil
}

// Review applies the external reviewed transition to a terminal analysis.
func (uc *AnalyzeStudyUseCase) Review(ctx context.Context, analysisID string) error {
	if err := uc.analyses.MarkReviewed(ctx, analysisID); err != nil {
		return fmt.Errorf("mark analysis reviewed: %w", err)
	}
	return nil
}

func (uc *AnalyzeStudyUseCase) buildPrompt(ctx context.Context, study *domain.Study, analysisType domain.AnalysisType, req ports.AnalysisRequest) (string, error) {
	bodyPart := "Unknown"
	if len(study.Series) > 0 && study.Series[0].BodyPartExamined != "" {
		bodyPart = study.Series[0].BodyPartExamined
	}

	switch analysisType {
	case domain.AnalysisPrimary:
		return prompt.Primary(prompt.PrimaryParams{
			Modality:           string(study.Modality),
			BodyPart:           bodyPart,
			ClinicalIndication: req.ClinicalIndication,
			TechnicalParams: map[string]string{
				"study_description": study.StudyDescription,
				"series_count":      strconv.Itoa(len(study.Series)),
			},
		}), nil

	case domain.AnalysisComparison:
		if req.PriorStudyID == "" {
			return "", domain.WrapError(domain.ErrInvalidInput, "run analysis",
				errors.New("comparison analysis requires a prior study"))
		}
		prior, err := uc.studies.GetByID(ctx, req.PriorStudyID)
		if err != nil {
			return "", fmt.Errorf("load prior study: %w", err)
		}
		return prompt.Comparison(prompt.ComparisonParams{
			Modality:           string(study.Modality),
			BodyPart:           bodyPart,
			ClinicalIndication: req.ClinicalIndication,
			PriorStudyDate:     prior.StudyDate.Format("2006-01-02"),
			PriorFindings:      uc.priorFindings(ctx, prior.ID),
		}), nil

	case domain.AnalysisFocused:
		return prompt.Focused(prompt.FocusedParams{
			Modality:    string(study.Modality),
			FindingType: req.ClinicalIndication,
			Location:    bodyPart,
		}), nil

	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "run analysis",
			fmt.Errorf("unsupported analysis type %q", analysisType))
	}
}

// priorFindings pulls the summary of the most recent completed analysis of
// the prior study. A prior study without one falls back to a neutral
// statement.
func (uc *AnalyzeStudyUseCase) priorFindings(ctx context.Context, priorStudyID string) string {
	analyses, err := uc.analyses.ListByStudy(ctx, priorStudyID)
	if err != nil {
		uc.logger.Warn("load prior analyses failed",
			slog.String("study_id", priorStudyID),
			slog.String("error", err.Error()))
		return fallbackPriorFindings
	}
	for _, a := range analyses {
		if a.Status != domain.AnalysisCompleted && a.Status != domain.AnalysisReviewed {
			continue
		}
		if a.StructuredFindings != nil && a.StructuredFindings.Summary != "" {
			return a.StructuredFindings.Summary
		}
	}
	return fallbackPriorFindings
}

func (uc *AnalyzeStudyUseCase) fail(ctx context.Context, analysis *domain.Analysis, result ports.InferenceResult, message string) (*domain.AnalysisReport, error) {
	uc.logger.Error("analysis run failed",
		slog.String("analysis_id", analysis.ID),
		slog.String("study_id", analysis.StudyID),
		slog.String("error", message))

	if err := uc.analyses.MarkFailed(ctx, analysis.ID, result, message); err != nil {
		uc.logger.Error("mark analysis failed errored",
			slog.String("analysis_id", analysis.ID),
			slog.String("error", err.Error()))
	}
	if err := uc.events.PublishAnalysisCompleted(ctx, analysis.ID, domain.AnalysisFailed); err != nil {
		uc.logger.Warn("publish analysis failed event errored",
			slog.String("analysis_id", analysis.ID),
			slog.String("error", err.Error()))
	}
	return nil, domain.WrapError(domain.ErrTemporary, "run analysis", errors.New(message))
}

func attachFindings(analysisID string, findings []domain.Finding, now time.Time) []domain.Finding {
	out := make([]domain.Finding, 0, len(findings))
	for _, f := range findings {
		f.ID = uuid.NewString()
		f.AnalysisID = analysisID
		f.CreatedAt = now
		out = append(out, f)
	}
	return out
}

func attachMeasurements(analysisID string, measurements []domain.Measurement, now time.Time) []domain.Measurement {
	out := make([]domain.Measurement, 0, len(measurements))
	for _, m := range measurements {
		m.ID = uuid.NewString()
		m.AnalysisID = analysisID
		m.CreatedAt = now
		out = append(out, m)
	}
	return out
}
