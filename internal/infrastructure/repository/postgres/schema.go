package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates all tables and indexes. Cascade ownership follows the
// domain model: study -> series -> images, analysis -> findings/measurements.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026053101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS subjects (
	id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	date_of_birth TIMESTAMPTZ,
	gender TEXT NOT NULL DEFAULT 'unknown',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS studies (
	id TEXT PRIMARY KEY,
	study_instance_uid TEXT NOT NULL UNIQUE,
	subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	accession_number TEXT NOT NULL DEFAULT '',
	study_date TIMESTAMPTZ,
	study_time TEXT NOT NULL DEFAULT '',
	study_description TEXT NOT NULL DEFAULT '',
	modality TEXT NOT NULL,
	referring_physician TEXT NOT NULL DEFAULT '',
	performing_physician TEXT NOT NULL DEFAULT '',
	institution_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	prior_study_id TEXT REFERENCES studies(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS series (
	id TEXT PRIMARY KEY,
	series_instance_uid TEXT NOT NULL UNIQUE,
	study_id TEXT NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
	series_number INTEGER NOT NULL DEFAULT 0,
	series_description TEXT NOT NULL DEFAULT '',
	modality TEXT NOT NULL DEFAULT '',
	body_part_examined TEXT NOT NULL DEFAULT '',
	protocol_name TEXT NOT NULL DEFAULT '',
	image_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	sop_instance_uid TEXT NOT NULL UNIQUE,
	series_id TEXT NOT NULL REFERENCES series(id) ON DELETE CASCADE,
	instance_number INTEGER NOT NULL DEFAULT 0,
	image_position TEXT NOT NULL DEFAULT '',
	image_orientation TEXT NOT NULL DEFAULT '',
	slice_location DOUBLE PRECISION NOT NULL DEFAULT 0,
	slice_thickness DOUBLE PRECISION NOT NULL DEFAULT 0,
	pixel_spacing TEXT NOT NULL DEFAULT '',
	rows_count INTEGER NOT NULL DEFAULT 0,
	columns_count INTEGER NOT NULL DEFAULT 0,
	window_center DOUBLE PRECISION NOT NULL DEFAULT 0,
	window_width DOUBLE PRECISION NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL,
	thumbnail_path TEXT NOT NULL DEFAULT '',
	file_size BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	study_id TEXT NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
	analysis_type TEXT NOT NULL,
	prompt TEXT NOT NULL,
	raw_response TEXT NOT NULL DEFAULT '',
	structured_findings JSONB,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_time DOUBLE PRECISION NOT NULL DEFAULT 0,
	model_version TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS findings (
	id TEXT PRIMARY KEY,
	analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	finding_type TEXT NOT NULL,
	anatomical_location TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	severity TEXT NOT NULL DEFAULT '',
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	coordinates TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS measurements (
	id TEXT PRIMARY KEY,
	analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	finding_id TEXT REFERENCES findings(id) ON DELETE SET NULL,
	measurement_type TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	unit TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	comparison_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	change_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_studies_subject_id ON studies(subject_id);
CREATE INDEX IF NOT EXISTS idx_series_study_id ON series(study_id);
CREATE INDEX IF NOT EXISTS idx_images_series_id ON images(series_id);
CREATE INDEX IF NOT EXISTS idx_images_instance ON images(series_id, instance_number);
CREATE INDEX IF NOT EXISTS idx_analyses_study_id ON analyses(study_id);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_findings_analysis_id ON findings(analysis_id);
CREATE INDEX IF NOT EXISTS idx_measurements_analysis_id ON measurements(analysis_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
