package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contact-ajmal/radiant-insights/internal/bootstrap"
	"github.com/contact-ajmal/radiant-insights/internal/config"
	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/observability/logging"
	"github.com/contact-ajmal/radiant-insights/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.Subscribe(ctx, func(handlerCtx context.Context, event domain.AuditEvent) error {
		recordCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		workerMetrics.StartEvent()
		started := time.Now()
		recordErr := app.AuditUC.Record(recordCtx, event)
		workerMetrics.FinishEvent("worker", event.Action, time.Since(started), recordErr)
		return recordErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
