package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
)

type SubjectRepository struct {
	db *sql.DB
}

func NewSubjectRepository(db *sql.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) Create(ctx context.Context, subject *domain.Subject) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO subjects (id, subject_id, first_name, last_name, date_of_birth, gender, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		subject.ID, subject.SubjectID, subject.FirstName, subject.LastName,
		nullTime(subject.DateOfBirth), subject.Gender, subject.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "insert subject", err)
		}
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

func (r *SubjectRepository) GetByID(ctx context.Context, id string) (*domain.Subject, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, subject_id, first_name, last_name, date_of_birth, gender, created_at
FROM subjects
WHERE id = $1 OR subject_id = $1
`, id)

	var subject domain.Subject
	var dob sql.NullTime
	err := row.Scan(
		&subject.ID, &subject.SubjectID, &subject.FirstName, &subject.LastName,
		&dob, &subject.Gender, &subject.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get subject", fmt.Errorf("subject %s", id))
		}
		return nil, fmt.Errorf("scan subject: %w", err)
	}
	if dob.Valid {
		subject.DateOfBirth = dob.Time
	}
	return &subject, nil
}
