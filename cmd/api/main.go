package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/contact-ajmal/radiant-insights/internal/adapters/http"
	"github.com/contact-ajmal/radiant-insights/internal/bootstrap"
	"github.com/contact-ajmal/radiant-insights/internal/config"
	"github.com/contact-ajmal/radiant-insights/internal/observability/logging"
	"github.com/contact-ajmal/radiant-insights/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		app.SubjectUC,
		app.IngestUC,
		app.CatalogUC,
		app.AnalyzeUC,
		app.AnalysisReadUC,
		serverMetrics,
		app.Backend,
		cfg.TempUploadDir,
		cfg.APIRateLimitRPS,
		cfg.APIRateLimitBurst,
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort, "backend", app.Backend.Kind)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
