package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
)

type StudyRepository struct {
	db *sql.DB
}

func NewStudyRepository(db *sql.DB) *StudyRepository {
	return &StudyRepository{db: db}
}

// CreateHierarchy writes the study with all series and images in one
// transaction. A failure anywhere rolls back the whole batch so readers
// never observe a partial study.
func (r *StudyRepository) CreateHierarchy(ctx context.Context, study *domain.Study) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin study tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO studies (
	id, study_instance_uid, subject_id, accession_number, study_date, study_time,
	study_description, modality, referring_physician, performing_physician,
	institution_name, status, prior_study_id, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		study.ID, study.StudyInstanceUID, study.SubjectID, study.AccessionNumber,
		nullTime(study.StudyDate), study.StudyTime, study.StudyDescription,
		string(study.Modality), study.ReferringPhysician, study.PerformingPhysician,
		study.InstitutionName, string(study.Status), nullString(study.PriorStudyID),
		study.CreatedAt, study.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "insert study", err)
		}
		return fmt.Errorf("insert study: %w", err)
	}

	for _, series := range study.Series {
		_, err = tx.ExecContext(ctx, `
INSERT INTO series (
	id, series_instance_uid, study_id, series_number, series_description,
	modality, body_part_examined, protocol_name, image_count, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
			series.ID, series.SeriesInstanceUID, study.ID, series.SeriesNumber,
			series.SeriesDescription, series.Modality, series.BodyPartExamined,
			series.ProtocolName, series.ImageCount, series.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.WrapError(domain.ErrConflict, "insert series", err)
			}
			return fmt.Errorf("insert series: %w", err)
		}

		for _, image := range series.Images {
			_, err = tx.ExecContext(ctx, `
INSERT INTO images (
	id, sop_instance_uid, series_id, instance_number, image_position,
	image_orientation, slice_location, slice_thickness, pixel_spacing,
	rows_count, columns_count, window_center, window_width, storage_path,
	thumbnail_path, file_size, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
`,
				image.ID, image.SOPInstanceUID, series.ID, image.InstanceNumber,
				image.ImagePosition, image.ImageOrientation, image.SliceLocation,
				image.SliceThickness, image.PixelSpacing, image.Rows, image.Columns,
				image.WindowCenter, image.WindowWidth, image.StoragePath,
				image.ThumbnailPath, image.FileSize, image.CreatedAt,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return domain.WrapError(domain.ErrConflict, "insert image", err)
				}
				return fmt.Errorf("insert image: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit study tx: %w", err)
	}
	return nil
}

func (r *StudyRepository) GetByID(ctx context.Context, id string) (*domain.Study, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, study_instance_uid, subject_id, accession_number, study_date, study_time,
	study_description, modality, referring_physician, performing_physician,
	institution_name, status, prior_study_id, created_at, updated_at
FROM studies
WHERE id = $1
`, id)

	study, err := scanStudy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get study", fmt.Errorf("study %s", id))
		}
		return nil, fmt.Errorf("scan study: %w", err)
	}

	if err := r.loadSeries(ctx, study); err != nil {
		return nil, err
	}
	return study, nil
}

func (r *StudyRepository) ListBySubject(ctx context.Context, subjectID string) ([]domain.Study, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, study_instance_uid, subject_id, accession_number, study_date, study_time,
	study_description, modality, referring_physician, performing_physician,
	institution_name, status, prior_study_id, created_at, updated_at
FROM studies
WHERE subject_id = $1
ORDER BY created_at DESC
`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query subject studies: %w", err)
	}
	defer rows.Close()

	var studies []domain.Study
	for rows.Next() {
		study, err := scanStudy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan study: %w", err)
		}
		studies = append(studies, *study)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate studies: %w", err)
	}
	return studies, nil
}

// Delete removes the study row; series and images go with it by cascade.
func (r *StudyRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM studies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete study: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete study rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete study", fmt.Errorf("study %s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudy(row rowScanner) (*domain.Study, error) {
	var study domain.Study
	var studyDate sql.NullTime
	var priorStudyID sql.NullString
	var modality, status string

	err := row.Scan(
		&study.ID, &study.StudyInstanceUID, &study.SubjectID, &study.AccessionNumber,
		&studyDate, &study.StudyTime, &study.StudyDescription, &modality,
		&study.ReferringPhysician, &study.PerformingPhysician, &study.InstitutionName,
		&status, &priorStudyID, &study.CreatedAt, &study.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if studyDate.Valid {
		study.StudyDate = studyDate.Time
	}
	if priorStudyID.Valid {
		study.PriorStudyID = priorStudyID.String
	}
	study.Modality = domain.Modality(modality)
	study.Status = domain.StudyStatus(status)
	return &study, nil
}

func (r *StudyRepository) loadSeries(ctx context.Context, study *domain.Study) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, series_instance_uid, series_number, series_description, modality,
	body_part_examined, protocol_name, image_count, created_at
FROM series
WHERE study_id = $1
ORDER BY series_number, series_instance_uid
`, study.ID)
	if err != nil {
		return fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var series domain.Series
		err := rows.Scan(
			&series.ID, &series.SeriesInstanceUID, &series.SeriesNumber,
			&series.SeriesDescription, &series.Modality, &series.BodyPartExamined,
			&series.ProtocolName, &series.ImageCount, &series.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan series: %w", err)
		}
		series.StudyID = study.ID
		study.Series = append(study.Series, series)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate series: %w", err)
	}

	for i := range study.Series {
		if err := r.loadImages(ctx, &study.Series[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *StudyRepository) loadImages(ctx context.Context, series *domain.Series) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, sop_instance_uid, instance_number, image_position, image_orientation,
	slice_location, slice_thickness, pixel_spacing, rows_count, columns_count,
	window_center, window_width, storage_path, thumbnail_path, file_size, created_at
FROM images
WHERE series_id = $1
ORDER BY instance_number, created_at
`, series.ID)
	if err != nil {
		return fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var image domain.Image
		err := rows.Scan(
			&image.ID, &image.SOPInstanceUID, &image.InstanceNumber,
			&image.ImagePosition, &image.ImageOrientation, &image.SliceLocation,
			&image.SliceThickness, &image.PixelSpacing, &image.Rows, &image.Columns,
			&image.WindowCenter, &image.WindowWidth, &image.StoragePath,
			&image.ThumbnailPath, &image.FileSize, &image.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan image: %w", err)
		}
		image.SeriesID = series.ID
		series.Images = append(series.Images, image)
	}
	return rows.Err()
}
