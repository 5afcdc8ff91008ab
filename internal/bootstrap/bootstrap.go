package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/contact-ajmal/radiant-insights/internal/config"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
	"github.com/contact-ajmal/radiant-insights/internal/core/usecase"
	"github.com/contact-ajmal/radiant-insights/internal/infrastructure/dicom"
	"github.com/contact-ajmal/radiant-insights/internal/infrastructure/inference"
	"github.com/contact-ajmal/radiant-insights/internal/infrastructure/parser/keyword"
	"github.com/contact-ajmal/radiant-insights/internal/infrastructure/queue/nats"
	"github.com/contact-ajmal/radiant-insights/internal/infrastructure/repository/postgres"
	"github.com/contact-ajmal/radiant-insights/internal/infrastructure/resilience"
	"github.com/contact-ajmal/radiant-insights/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue          *nats.Queue
	Backend        ports.BackendInfo
	IngestUC       ports.StudyIngestor
	AnalyzeUC      ports.AnalysisRunner
	SubjectUC      ports.SubjectDirectory
	CatalogUC      ports.StudyCatalog
	AnalysisReadUC ports.AnalysisReader
	AuditUC        *usecase.AuditTrailUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	subjectRepo := postgres.NewSubjectRepository(db)
	studyRepo := postgres.NewStudyRepository(db)
	analysisRepo := postgres.NewAnalysisRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	if err := os.MkdirAll(cfg.TempUploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp upload dir: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init event queue: %w", err)
	}

	backend, err := selectBackend(cfg, executor)
	if err != nil {
		queue.Close()
		return nil, err
	}
	dispatcher := inference.NewDispatcher(backend, cfg.InferenceMaxTokens, cfg.InferenceTemperature, logger)

	extractor := dicom.NewExtractor()
	organizer := dicom.NewOrganizer(logger)
	thumbs := dicom.NewThumbnailer(cfg.ThumbnailSize)
	findings := keyword.NewExtractor()

	ingestUC := usecase.NewIngestStudyUseCase(
		subjectRepo, studyRepo, organizer, extractor, thumbs, storage, queue, logger)
	analyzeUC := usecase.NewAnalyzeStudyUseCase(
		studyRepo, analysisRepo, dispatcher, findings, queue, logger)
	subjectUC := usecase.NewSubjectUseCase(subjectRepo)
	catalogUC := usecase.NewStudyCatalogUseCase(studyRepo, storage, logger)
	analysisReadUC := usecase.NewAnalysisCatalogUseCase(analysisRepo)
	auditUC := usecase.NewAuditTrailUseCase(auditRepo, logger)

	return &App{
		Config: cfg,

		Queue:          queue,
		Backend:        dispatcher.Info(),
		IngestUC:       ingestUC,
		AnalyzeUC:      analyzeUC,
		SubjectUC:      subjectUC,
		CatalogUC:      catalogUC,
		AnalysisReadUC: analysisReadUC,
		AuditUC:        auditUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// selectBackend picks the single process-wide inference backend from
// configuration. Selection happens here once, never per call.
func selectBackend(cfg config.Config, executor *resilience.Executor) (ports.InferenceBackend, error) {
	switch cfg.InferenceBackend {
	case "mock":
		return inference.NewMockBackend(), nil
	case "local":
		return inference.NewLocalBackend(cfg.OllamaURL, cfg.OllamaModel), nil
	case "remote":
		if cfg.RemoteInferenceURL == "" {
			return nil, fmt.Errorf("remote backend requires REMOTE_INFERENCE_URL")
		}
		return inference.NewRemoteBackend(
			cfg.RemoteInferenceURL, cfg.RemoteInferenceAPIKey, cfg.RemoteInferenceModel, executor), nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfg.InferenceBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
