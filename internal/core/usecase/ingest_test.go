package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

type subjectRepoFake struct {
	subject *domain.Subject
	created *domain.Subject
	err     error
}

func (f *subjectRepoFake) Create(_ context.Context, s *domain.Subject) error {
	if f.err != nil {
		return f.err
	}
	copySubject := *s
	f.created = &copySubject
	return nil
}

func (f *subjectRepoFake) GetByID(_ context.Context, id string) (*domain.Subject, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.subject == nil || f.subject.ID != id {
		return nil, domain.WrapError(domain.ErrNotFound, "get subject", errors.New(id))
	}
	return f.subject, nil
}

type studyRepoFake struct {
	created *domain.Study
	err     error
}

func (f *studyRepoFake) CreateHierarchy(_ context.Context, study *domain.Study) error {
	if f.err != nil {
		return f.err
	}
	copyStudy := *study
	f.created = &copyStudy
	return nil
}

func (f *studyRepoFake) GetByID(context.Context, string) (*domain.Study, error) {
	return nil, errors.New("not implemented")
}
func (f *studyRepoFake) ListBySubject(context.Context, string) ([]domain.Study, error) {
	return nil, errors.New("not implemented")
}
func (f *studyRepoFake) Delete(context.Context, string) error {
	return errors.New("not implemented")
}

type organizerFake struct {
	seriesByPath map[string]string
	err          error
}

func (f *organizerFake) Organize(_ context.Context, files []ports.UploadedFile) (ports.SeriesBatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	batches := make(ports.SeriesBatch)
	for _, file := range files {
		uid, ok := f.seriesByPath[file.TempPath]
		if !ok {
			continue
		}
		batches[uid] = append(batches[uid], file)
	}
	return batches, nil
}

type extractorFake struct {
	imageErrByPath map[string]error
	instanceByPath map[string]int
}

func (f *extractorFake) ExtractStudy(string) (ports.StudyAttributes, error) {
	return ports.StudyAttributes{
		StudyInstanceUID: "1.2.3.100",
		StudyDescription: "CT CHEST",
		Modality:         domain.ModalityCT,
	}, nil
}

func (f *extractorFake) ExtractSeries(path string) (ports.SeriesAttributes, error) {
	return ports.SeriesAttributes{
		SeriesInstanceUID: filepath.Base(path),
		Modality:          "CT",
		BodyPartExamined:  "CHEST",
	}, nil
}

func (f *extractorFake) ExtractImage(path string) (ports.ImageAttributes, error) {
	if err := f.imageErrByPath[path]; err != nil {
		return ports.ImageAttributes{}, err
	}
	return ports.ImageAttributes{
		SOPInstanceUID: "sop-" + filepath.Base(path),
		InstanceNumber: f.instanceByPath[path],
	}, nil
}

func (f *extractorFake) ExtractSubject(string) (ports.SubjectAttributes, error) {
	return ports.SubjectAttributes{}, nil
}

type thumbsFake struct {
	err error
}

func (f *thumbsFake) Derive(string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png-bytes"), nil
}

type storageFake struct {
	saved   map[string]string
	deleted []string
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: make(map[string]string)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.saved[key] = string(raw)
	return key, nil
}

func (f *storageFake) Load(_ context.Context, key string) ([]byte, error) {
	body, ok := f.saved[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "load", errors.New(key))
	}
	return []byte(body), nil
}

func (f *storageFake) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.saved[key]
	return ok, nil
}

func (f *storageFake) Delete(_ context.Context, key string) (bool, error) {
	_, ok := f.saved[key]
	delete(f.saved, key)
	f.deleted = append(f.deleted, key)
	return ok, nil
}

type eventsFake struct {
	studyIDs    []string
	analysisIDs []string
	statuses    []domain.AnalysisStatus
	err         error
}

func (f *eventsFake) PublishStudyIngested(_ context.Context, studyID string) error {
	if f.err != nil {
		return f.err
	}
	f.studyIDs = append(f.studyIDs, studyID)
	return nil
}

func (f *eventsFake) PublishAnalysisCompleted(_ context.Context, analysisID string, status domain.AnalysisStatus) error {
	if f.err != nil {
		return f.err
	}
	f.analysisIDs = append(f.analysisIDs, analysisID)
	f.statuses = append(f.statuses, status)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func writeTempFiles(t *testing.T, names ...string) []ports.UploadedFile {
	t.Helper()
	dir := t.TempDir()
	files := make([]ports.UploadedFile, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("dicom-payload"), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
		files = append(files, ports.UploadedFile{Filename: name, TempPath: path, Size: 13})
	}
	return files
}

func newIngestFixture(files []ports.UploadedFile) (*IngestStudyUseCase, *studyRepoFake, *storageFake, *eventsFake, *organizerFake, *extractorFake, *thumbsFake) {
	subjects := &subjectRepoFake{subject: &domain.Subject{ID: "subj-1", SubjectID: "P001"}}
	studies := &studyRepoFake{}
	organizer := &organizerFake{seriesByPath: make(map[string]string)}
	extractor := &extractorFake{imageErrByPath: make(map[string]error), instanceByPath: make(map[string]int)}
	thumbs := &thumbsFake{}
	storage := newStorageFake()
	events := &eventsFake{}
	uc := NewIngestStudyUseCase(subjects, studies, organizer, extractor, thumbs, storage, events, testLogger())
	return uc, studies, storage, events, organizer, extractor, thumbs
}

func TestIngestTwoSeriesSuccess(t *testing.T) {
	files := writeTempFiles(t, "a.dcm", "b.dcm")
	uc, studies, storage, events, organizer, _, _ := newIngestFixture(files)
	organizer.seriesByPath[files[0].TempPath] = "series-A"
	organizer.seriesByPath[files[1].TempPath] = "series-B"

	summary, err := uc.Ingest(context.Background(), "subj-1", files)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if summary.SeriesCount != 2 || summary.TotalImages != 2 {
		t.Fatalf("summary = %+v, want 2 series and 2 images", summary)
	}
	if summary.Status != "completed" {
		t.Fatalf("expected completed status, got %s", summary.Status)
	}
	if summary.StudyInstanceUID != "1.2.3.100" {
		t.Fatalf("unexpected study uid %s", summary.StudyInstanceUID)
	}

	if studies.created == nil {
		t.Fatalf("expected persisted study")
	}
	if len(studies.created.Series) != 2 {
		t.Fatalf("expected 2 series rows, got %d", len(studies.created.Series))
	}
	for _, series := range studies.created.Series {
		if len(series.Images) != 1 {
			t.Fatalf("series %s owns %d images, want 1", series.SeriesInstanceUID, len(series.Images))
		}
		image := series.Images[0]
		if image.StoragePath == "" || image.ThumbnailPath == "" {
			t.Fatalf("expected storage and thumbnail paths, got %+v", image)
		}
		if !strings.HasPrefix(image.StoragePath, "studies/"+studies.created.ID+"/series/") {
			t.Fatalf("unexpected storage key %s", image.StoragePath)
		}
	}

	// 2 payloads + 2 thumbnails
	if len(storage.saved) != 4 {
		t.Fatalf("expected 4 stored artifacts, got %d", len(storage.saved))
	}
	if len(events.studyIDs) != 1 || events.studyIDs[0] != studies.created.ID {
		t.Fatalf("expected ingested event for study %s, got %v", studies.created.ID, events.studyIDs)
	}
}

func TestIngestEmptyBatchRejected(t *testing.T) {
	uc, _, _, _, _, _, _ := newIngestFixture(nil)
	_, err := uc.Ingest(context.Background(), "subj-1", nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestIngestUnknownSubjectRejected(t *testing.T) {
	files := writeTempFiles(t, "a.dcm")
	uc, studies, _, _, organizer, _, _ := newIngestFixture(files)
	organizer.seriesByPath[files[0].TempPath] = "series-A"

	_, err := uc.Ingest(context.Background(), "missing", files)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if studies.created != nil {
		t.Fatalf("expected no persisted study")
	}
}

func TestIngestExtractionFailureLeavesNoOrphans(t *testing.T) {
	files := writeTempFiles(t, "a.dcm", "b.dcm")
	uc, studies, storage, events, organizer, extractor, _ := newIngestFixture(files)
	organizer.seriesByPath[files[0].TempPath] = "series-A"
	organizer.seriesByPath[files[1].TempPath] = "series-A"
	extractor.imageErrByPath[files[1].TempPath] = errors.New("corrupt pixel module")

	_, err := uc.Ingest(context.Background(), "subj-1", files)
	if err == nil {
		t.Fatalf("expected ingestion error")
	}
	if studies.created != nil {
		t.Fatalf("expected no persisted study")
	}
	if len(storage.saved) != 0 {
		t.Fatalf("expected no orphaned artifacts, got %v", storage.saved)
	}
	if len(events.studyIDs) != 0 {
		t.Fatalf("expected no ingested event")
	}
}

func TestIngestPersistenceFailureCleansArtifacts(t *testing.T) {
	files := writeTempFiles(t, "a.dcm")
	uc, studies, storage, _, organizer, _, _ := newIngestFixture(files)
	organizer.seriesByPath[files[0].TempPath] = "series-A"
	studies.err = errors.New("deadlock detected")

	_, err := uc.Ingest(context.Background(), "subj-1", files)
	if err == nil {
		t.Fatalf("expected ingestion error")
	}
	if len(storage.saved) != 0 {
		t.Fatalf("expected artifacts removed after rollback, got %v", storage.saved)
	}
	if len(storage.deleted) == 0 {
		t.Fatalf("expected delete calls for written artifacts")
	}
}

func TestIngestThumbnailFailureIsNonFatal(t *testing.T) {
	files := writeTempFiles(t, "a.dcm")
	uc, studies, storage, _, organizer, _, thumbs := newIngestFixture(files)
	organizer.seriesByPath[files[0].TempPath] = "series-A"
	thumbs.err = errors.New("uniform pixel values")

	summary, err := uc.Ingest(context.Background(), "subj-1", files)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if summary.TotalImages != 1 {
		t.Fatalf("expected 1 image, got %d", summary.TotalImages)
	}
	image := studies.created.Series[0].Images[0]
	if image.ThumbnailPath != "" {
		t.Fatalf("expected empty thumbnail path, got %s", image.ThumbnailPath)
	}
	if len(storage.saved) != 1 {
		t.Fatalf("expected only the payload stored, got %v", storage.saved)
	}
}

func TestIngestRemovesTempFilesOnEveryExit(t *testing.T) {
	success := writeTempFiles(t, "a.dcm")
	uc, _, _, _, organizer, _, _ := newIngestFixture(success)
	organizer.seriesByPath[success[0].TempPath] = "series-A"
	if _, err := uc.Ingest(context.Background(), "subj-1", success); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if _, err := os.Stat(success[0].TempPath); !os.IsNotExist(err) {
		t.Fatalf("expected temp file removed on success")
	}

	failure := writeTempFiles(t, "b.dcm")
	uc2, _, _, _, organizer2, extractor2, _ := newIngestFixture(failure)
	organizer2.seriesByPath[failure[0].TempPath] = "series-A"
	extractor2.imageErrByPath[failure[0].TempPath] = errors.New("corrupt")
	if _, err := uc2.Ingest(context.Background(), "subj-1", failure); err == nil {
		t.Fatalf("expected ingestion error")
	}
	if _, err := os.Stat(failure[0].TempPath); !os.IsNotExist(err) {
		t.Fatalf("expected temp file removed on failure")
	}
}
