package ports

import (
	"context"
	"io"
	"time"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
)

// SubjectRepository reads and creates subject records.
type SubjectRepository interface {
	Create(ctx context.Context, subject *domain.Subject) error
	GetByID(ctx context.Context, id string) (*domain.Subject, error)
}

// StudyRepository persists the study hierarchy. CreateHierarchy writes the
// study with all series and images in one transaction; either everything is
// visible afterwards or nothing is.
type StudyRepository interface {
	CreateHierarchy(ctx context.Context, study *domain.Study) error
	GetByID(ctx context.Context, id string) (*domain.Study, error)
	ListBySubject(ctx context.Context, subjectID string) ([]domain.Study, error)
	Delete(ctx context.Context, id string) error
}

// AnalysisRepository persists analysis runs and their derived records.
// Complete stores the response, confidence, findings and measurements in one
// transaction and moves the row to completed.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *domain.Analysis) error
	GetByID(ctx context.Context, id string) (*domain.Analysis, error)
	ListByStudy(ctx context.Context, studyID string) ([]domain.Analysis, error)
	Complete(ctx context.Context, analysis *domain.Analysis) error
	MarkFailed(ctx context.Context, id string, result InferenceResult, errMessage string) error
	MarkReviewed(ctx context.Context, id string) error
}

// AuditRepository appends advisory audit-trail entries.
type AuditRepository interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
}

// ObjectStorage stores imaging payloads and derived artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Load(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// SeriesBatch maps a series instance UID to its member files in final order.
type SeriesBatch map[string][]UploadedFile

// SeriesOrganizer partitions an upload batch by series identifier and orders
// each series by instance number.
type SeriesOrganizer interface {
	Organize(ctx context.Context, files []UploadedFile) (SeriesBatch, error)
}

// StudyAttributes, SeriesAttributes, ImageAttributes and SubjectAttributes
// are the four disjoint attribute sets extracted from one imaging file.
// Absent source elements surface as zero values, never as errors.
type StudyAttributes struct {
	StudyInstanceUID    string
	StudyDate           time.Time
	StudyTime           string
	StudyDescription    string
	AccessionNumber     string
	Modality            domain.Modality
	ReferringPhysician  string
	PerformingPhysician string
	InstitutionName     string
}

type SeriesAttributes struct {
	SeriesInstanceUID string
	SeriesNumber      int
	SeriesDescription string
	Modality          string
	BodyPartExamined  string
	ProtocolName      string
}

type ImageAttributes struct {
	SOPInstanceUID   string
	InstanceNumber   int
	ImagePosition    string
	ImageOrientation string
	SliceLocation    float64
	SliceThickness   float64
	PixelSpacing     string
	Rows             int
	Columns          int
	WindowCenter     float64
	WindowWidth      float64
}

type SubjectAttributes struct {
	SubjectID   string
	SubjectName string
	DateOfBirth time.Time
	Gender      string
}

// MetadataExtractor parses one buffered imaging file into normalized
// attribute sets.
type MetadataExtractor interface {
	ExtractStudy(path string) (StudyAttributes, error)
	ExtractSeries(path string) (SeriesAttributes, error)
	ExtractImage(path string) (ImageAttributes, error)
	ExtractSubject(path string) (SubjectAttributes, error)
}

// ThumbnailDeriver renders a fixed-size grayscale preview from a file's
// raster payload. Failure is expected input behavior, not a pipeline fault.
type ThumbnailDeriver interface {
	Derive(path string) ([]byte, error)
}

// BackendInfo is static descriptive metadata of an inference backend.
type BackendInfo struct {
	Kind  string `json:"kind"`
	Model string `json:"model"`
}

// InferenceBackend turns a text prompt into a text response.
type InferenceBackend interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	Info() BackendInfo
}

// InferenceResult is the normalized outcome of one dispatch. Err is empty on
// success; callers never receive a Go error for an inference failure.
type InferenceResult struct {
	Response string
	Duration time.Duration
	Backend  BackendInfo
	Err      string
}

func (r InferenceResult) OK() bool { return r.Err == "" }

// InferenceDispatcher wraps the process-wide backend, timing every call.
type InferenceDispatcher interface {
	Dispatch(ctx context.Context, prompt string) InferenceResult
	Info() BackendInfo
}

// FindingExtractor turns raw inference output into structured findings,
// measurements and an overall confidence score. Implementations are
// pluggable so the keyword heuristic can be replaced without touching the
// orchestrator.
type FindingExtractor interface {
	Extract(raw string) domain.Extraction
	ClassifyConfidence(raw string) float64
}

// EventPublisher emits pipeline lifecycle events for the audit worker.
type EventPublisher interface {
	PublishStudyIngested(ctx context.Context, studyID string) error
	PublishAnalysisCompleted(ctx context.Context, analysisID string, status domain.AnalysisStatus) error
}

// EventSubscriber consumes pipeline lifecycle events until ctx is done.
type EventSubscriber interface {
	Subscribe(ctx context.Context, handler func(context.Context, domain.AuditEvent) error) error
}
