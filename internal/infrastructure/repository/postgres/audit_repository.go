package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, event *domain.AuditEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_logs (id, action, resource_type, resource_id, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING
`,
		event.ID, event.Action, event.ResourceType, event.ResourceID,
		event.Details, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
