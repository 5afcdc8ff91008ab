package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

// IngestStudyUseCase drives the end-to-end upload of one imaging batch for
// one subject. It builds the full study tree in memory, writes artifacts to
// object storage, then persists the tree in a single transaction. If the
// transaction fails, written artifacts are removed so no orphans remain.
type IngestStudyUseCase struct {
	subjects  ports.SubjectRepository
	studies   ports.StudyRepository
	organizer ports.SeriesOrganizer
	extractor ports.MetadataExtractor
	thumbs    ports.ThumbnailDeriver
	storage   ports.ObjectStorage
	events    ports.EventPublisher
	logger    *slog.Logger
}

func NewIngestStudyUseCase(
	subjects ports.SubjectRepository,
	studies ports.StudyRepository,
	organizer ports.SeriesOrganizer,
	extractor ports.MetadataExtractor,
	thumbs ports.ThumbnailDeriver,
	storage ports.ObjectStorage,
	events ports.EventPublisher,
	logger *slog.Logger,
) *IngestStudyUseCase {
	return &IngestStudyUseCase{
		subjects:  subjects,
		studies:   studies,
		organizer: organizer,
		extractor: extractor,
		thumbs:    thumbs,
		storage:   storage,
		events:    events,
		logger:    logger,
	}
}

func (uc *IngestStudyUseCase) Ingest(ctx context.Context, subjectID string, files []ports.UploadedFile) (*domain.IngestSummary, error) {
	defer uc.removeTempFiles(files)

	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest study", errors.New("empty upload batch"))
	}
	subject, err := uc.subjects.GetByID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("validate subject: %w", err)
	}

	batches, err := uc.organizer.Organize(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("organize batch: %w", err)
	}

	studyAttrs, err := uc.studyAttributes(files, batches)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	study := &domain.Study{
		ID:                  uuid.NewString(),
		StudyInstanceUID:    studyAttrs.StudyInstanceUID,
		SubjectID:           subject.ID,
		AccessionNumber:     studyAttrs.AccessionNumber,
		StudyDate:           studyAttrs.StudyDate,
		StudyTime:           studyAttrs.StudyTime,
		StudyDescription:    studyAttrs.StudyDescription,
		Modality:            studyAttrs.Modality,
		ReferringPhysician:  studyAttrs.ReferringPhysician,
		PerformingPhysician: studyAttrs.PerformingPhysician,
		InstitutionName:     studyAttrs.InstitutionName,
		Status:              domain.StudyCompleted,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	// Series are processed in a fixed order so persistence ordering and
	// error attribution stay deterministic.
	seriesUIDs := make([]string, 0, len(batches))
	for uid := range batches {
		seriesUIDs = append(seriesUIDs, uid)
	}
	sort.Strings(seriesUIDs)

	var writtenKeys []string
	totalImages := 0
	for _, uid := range seriesUIDs {
		batch := batches[uid]
		series, keys, err := uc.buildSeries(ctx, study.ID, batch, now)
		if err != nil {
			uc.removeArtifacts(ctx, append(writtenKeys, keys...))
			return nil, err
		}
		writtenKeys = append(writtenKeys, keys...)
		totalImages += len(series.Images)
		study.Series = append(study.Series, *series)
	}

	if err := uc.studies.CreateHierarchy(ctx, study); err != nil {
		uc.removeArtifacts(ctx, writtenKeys)
		return nil, fmt.Errorf("persist study hierarchy: %w", err)
	}

	if err := uc.events.PublishStudyIngested(ctx, study.ID); err != nil {
		uc.logger.Warn("publish study ingested event failed",
			slog.String("study_id", study.ID),
			slog.String("error", err.Error()))
	}

	return &domain.IngestSummary{
		StudyID:          study.ID,
		StudyInstanceUID: study.StudyInstanceUID,
		SeriesCount:      len(study.Series),
		TotalImages:      totalImages,
		Status:           string(domain.StudyCompleted),
	}, nil
}

// studyAttributes derives study-level metadata from the first file of the
// batch that survived organization.
func (uc *IngestStudyUseCase) studyAttributes(files []ports.UploadedFile, batches ports.SeriesBatch) (ports.StudyAttributes, error) {
	included := make(map[string]bool)
	for _, batch := range batches {
		for _, f := range batch {
			included[f.TempPath] = true
		}
	}
	for _, f := range files {
		if !included[f.TempPath] {
			continue
		}
		attrs, err := uc.extractor.ExtractStudy(f.TempPath)
		if err != nil {
			return ports.StudyAttributes{}, fmt.Errorf("extract study metadata from %s: %w", f.Filename, err)
		}
		return attrs, nil
	}
	return ports.StudyAttributes{}, domain.WrapError(domain.ErrInvalidInput, "ingest study", errors.New("no parseable files in batch"))
}

func (uc *IngestStudyUseCase) buildSeries(ctx context.Context, studyID string, batch []ports.UploadedFile, now time.Time) (*domain.Series, []string, error) {
	first := batch[0]
	attrs, err := uc.extractor.ExtractSeries(first.TempPath)
	if err != nil {
		return nil, nil, fmt.Errorf("extract series metadata from %s: %w", first.Filename, err)
	}

	series := &domain.Series{
		ID:                uuid.NewString(),
		SeriesInstanceUID: attrs.SeriesInstanceUID,
		StudyID:           studyID,
		SeriesNumber:      attrs.SeriesNumber,
		SeriesDescription: attrs.SeriesDescription,
		Modality:          attrs.Modality,
		BodyPartExamined:  attrs.BodyPartExamined,
		ProtocolName:      attrs.ProtocolName,
		ImageCount:        len(batch),
		CreatedAt:         now,
	}

	var written []string
	for _, file := range batch {
		image, keys, err := uc.buildImage(ctx, studyID, series.ID, file, now)
		if err != nil {
			return nil, written, err
		}
		written = append(written, keys...)
		series.Images = append(series.Images, *image)
	}
	return series, written, nil
}

func (uc *IngestStudyUseCase) buildImage(ctx context.Context, studyID, seriesID string, file ports.UploadedFile, now time.Time) (*domain.Image, []string, error) {
	attrs, err := uc.extractor.ExtractImage(file.TempPath)
	if err != nil {
		return nil, nil, fmt.Errorf("extract image metadata from %s: %w", file.Filename, err)
	}

	payload, err := os.Open(file.TempPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open buffered upload %s: %w", file.Filename, err)
	}
	defer payload.Close()

	storageKey := fmt.Sprintf("studies/%s/series/%s/%s", studyID, seriesID, sanitizeFilename(file.Filename))
	location, err := uc.storage.Save(ctx, storageKey, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("store image payload %s: %w", file.Filename, err)
	}
	written := []string{storageKey}

	image := &domain.Image{
		ID:               uuid.NewString(),
		SOPInstanceUID:   attrs.SOPInstanceUID,
		SeriesID:         seriesID,
		InstanceNumber:   attrs.InstanceNumber,
		ImagePosition:    attrs.ImagePosition,
		ImageOrientation: attrs.ImageOrientation,
		SliceLocation:    attrs.SliceLocation,
		SliceThickness:   attrs.SliceThickness,
		PixelSpacing:     attrs.PixelSpacing,
		Rows:             attrs.Rows,
		Columns:          attrs.Columns,
		WindowCenter:     attrs.WindowCenter,
		WindowWidth:      attrs.WindowWidth,
		StoragePath:      location,
		FileSize:         file.Size,
		CreatedAt:        now,
	}

	// Thumbnails are best effort. A payload that cannot be rendered is
	// recorded as having no thumbnail, never as an ingestion failure.
	thumb, err := uc.thumbs.Derive(file.TempPath)
	if err != nil {
		uc.logger.Warn("thumbnail derivation failed",
			slog.String("filename", file.Filename),
			slog.String("error", err.Error()))
		return image, written, nil
	}
	thumbKey := fmt.Sprintf("thumbnails/%s/%s/%s.png", studyID, seriesID, attrs.SOPInstanceUID)
	thumbLocation, err := uc.storage.Save(ctx, thumbKey, bytes.NewReader(thumb))
	if err != nil {
		uc.logger.Warn("thumbnail store failed",
			slog.String("filename", file.Filename),
			slog.String("error", err.Error()))
		return image, written, nil
	}
	written = append(written, thumbKey)
	image.ThumbnailPath = thumbLocation
	return image, written, nil
}

func (uc *IngestStudyUseCase) removeArtifacts(ctx context.Context, keys []string) {
	for _, key := range keys {
		if _, err := uc.storage.Delete(ctx, key); err != nil {
			uc.logger.Error("orphaned artifact cleanup failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}

// Buffered uploads are request scoped; they are removed on every exit path.
func (uc *IngestStudyUseCase) removeTempFiles(files []ports.UploadedFile) {
	for _, f := range files {
		if f.TempPath == "" {
			continue
		}
		if err := os.Remove(f.TempPath); err != nil && !os.IsNotExist(err) {
			uc.logger.Warn("temp upload cleanup failed",
				slog.String("path", f.TempPath),
				slog.String("error", err.Error()))
		}
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "image.dcm"
	}
	return base
}
