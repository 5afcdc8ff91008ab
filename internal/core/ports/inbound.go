package ports

import (
	"context"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
)

// UploadedFile is one raw payload of an upload batch, already buffered to a
// request-scoped temporary location.
type UploadedFile struct {
	Filename string
	TempPath string
	Size     int64
}

// StudyIngestor is the inbound contract for DICOM upload orchestration.
type StudyIngestor interface {
	Ingest(ctx context.Context, subjectID string, files []UploadedFile) (*domain.IngestSummary, error)
}

// AnalysisRequest carries the parameters of one analysis run.
type AnalysisRequest struct {
	StudyID            string
	ClinicalIndication string
	AnalysisType       string
	PriorStudyID       string
}

// AnalysisRunner is the inbound contract for AI analysis orchestration.
type AnalysisRunner interface {
	Run(ctx context.Context, req AnalysisRequest) (*domain.AnalysisReport, error)
	Review(ctx context.Context, analysisID string) error
}

// SubjectDirectory manages subject records.
type SubjectDirectory interface {
	CreateSubject(ctx context.Context, subject *domain.Subject) error
	GetSubject(ctx context.Context, id string) (*domain.Subject, error)
}

// StudyCatalog is the inbound read and removal model for studies. Deleting
// a study cascades to its series and images.
type StudyCatalog interface {
	GetStudy(ctx context.Context, id string) (*domain.Study, error)
	ListSubjectStudies(ctx context.Context, subjectID string) ([]domain.Study, error)
	DeleteStudy(ctx context.Context, id string) error
}

// AnalysisReader is the inbound read model for analyses.
type AnalysisReader interface {
	GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error)
	ListStudyAnalyses(ctx context.Context, studyID string) ([]domain.Analysis, error)
}
