package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

// AuditTrailUseCase records pipeline lifecycle events consumed by the
// worker into the durable audit trail.
type AuditTrailUseCase struct {
	audit  ports.AuditRepository
	logger *slog.Logger
}

func NewAuditTrailUseCase(audit ports.AuditRepository, logger *slog.Logger) *AuditTrailUseCase {
	return &AuditTrailUseCase{audit: audit, logger: logger}
}

func (uc *AuditTrailUseCase) Record(ctx context.Context, event domain.AuditEvent) error {
	if err := uc.audit.Append(ctx, &event); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	uc.logger.Info("audit event recorded",
		slog.String("action", event.Action),
		slog.String("resource_type", event.ResourceType),
		slog.String("resource_id", event.ResourceID))
	return nil
}
