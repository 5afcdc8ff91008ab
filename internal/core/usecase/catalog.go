package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

// SubjectUseCase manages subject records.
type SubjectUseCase struct {
	subjects ports.SubjectRepository
}

func NewSubjectUseCase(subjects ports.SubjectRepository) *SubjectUseCase {
	return &SubjectUseCase{subjects: subjects}
}

func (uc *SubjectUseCase) CreateSubject(ctx context.Context, subject *domain.Subject) error {
	if strings.TrimSpace(subject.SubjectID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create subject", errors.New("subject_id is required"))
	}
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}
	if err := uc.subjects.Create(ctx, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

func (uc *SubjectUseCase) GetSubject(ctx context.Context, id string) (*domain.Subject, error) {
	subject, err := uc.subjects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return subject, nil
}

// StudyCatalogUseCase exposes the study read model and cascade removal.
type StudyCatalogUseCase struct {
	studies ports.StudyRepository
	storage ports.ObjectStorage
	logger  *slog.Logger
}

func NewStudyCatalogUseCase(studies ports.StudyRepository, storage ports.ObjectStorage, logger *slog.Logger) *StudyCatalogUseCase {
	return &StudyCatalogUseCase{studies: studies, storage: storage, logger: logger}
}

func (uc *StudyCatalogUseCase) GetStudy(ctx context.Context, id string) (*domain.Study, error) {
	study, err := uc.studies.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get study: %w", err)
	}
	return study, nil
}

func (uc *StudyCatalogUseCase) ListSubjectStudies(ctx context.Context, subjectID string) ([]domain.Study, error) {
	studies, err := uc.studies.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list subject studies: %w", err)
	}
	return studies, nil
}

// DeleteStudy removes the study row, its series and images by cascade, and
// the stored artifacts under the study prefix.
func (uc *StudyCatalogUseCase) DeleteStudy(ctx context.Context, id string) error {
	study, err := uc.studies.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load study for delete: %w", err)
	}
	if err := uc.studies.Delete(ctx, study.ID); err != nil {
		return fmt.Errorf("delete study: %w", err)
	}
	for _, series := range study.Series {
		for _, image := range series.Images {
			uc.removeArtifact(ctx, image.StoragePath)
			uc.removeArtifact(ctx, image.ThumbnailPath)
		}
	}
	return nil
}

func (uc *StudyCatalogUseCase) removeArtifact(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if _, err := uc.storage.Delete(ctx, key); err != nil {
		uc.logger.Warn("artifact delete failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// AnalysisCatalogUseCase exposes the analysis read model.
type AnalysisCatalogUseCase struct {
	analyses ports.AnalysisRepository
}

func NewAnalysisCatalogUseCase(analyses ports.AnalysisRepository) *AnalysisCatalogUseCase {
	return &AnalysisCatalogUseCase{analyses: analyses}
}

func (uc *AnalysisCatalogUseCase) GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error) {
	analysis, err := uc.analyses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return analysis, nil
}

func (uc *AnalysisCatalogUseCase) ListStudyAnalyses(ctx context.Context, studyID string) ([]domain.Analysis, error) {
	analyses, err := uc.analyses.ListByStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("list study analyses: %w", err)
	}
	return analyses, nil
}
