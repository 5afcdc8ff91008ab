package inference

import (
	"context"
	"log/slog"
	"time"

	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

// Dispatcher owns the process-wide backend selected at startup. Every call
// is timed and normalized into an InferenceResult so orchestration code
// handles model failures as data, not as control flow.
type Dispatcher struct {
	backend     ports.InferenceBackend
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

func NewDispatcher(backend ports.InferenceBackend, maxTokens int, temperature float64, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		backend:     backend,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, prompt string) ports.InferenceResult {
	info := d.backend.Info()
	started := time.Now()
	response, err := d.backend.Generate(ctx, prompt, d.maxTokens, d.temperature)
	elapsed := time.Since(started)

	result := ports.InferenceResult{
		Response: response,
		Duration: elapsed,
		Backend:  info,
	}
	if err != nil {
		result.Response = ""
		result.Err = err.Error()
		d.logger.Error("inference generate failed",
			slog.String("backend", info.Kind),
			slog.String("model", info.Model),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()))
		return result
	}

	d.logger.Info("inference generate completed",
		slog.String("backend", info.Kind),
		slog.String("model", info.Model),
		slog.Duration("duration", elapsed),
		slog.Int("response_chars", len(response)))
	return result
}

func (d *Dispatcher) Info() ports.BackendInfo {
	return d.backend.Info()
}
