package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
)

func newStudyRepoWithMock(t *testing.T) (*StudyRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &StudyRepository{db: db}, mock, func() { _ = db.Close() }
}

func sampleStudyTree() *domain.Study {
	now := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	return &domain.Study{
		ID:               "study-1",
		StudyInstanceUID: "1.2.3.100",
		SubjectID:        "subj-1",
		Modality:         domain.ModalityCT,
		Status:           domain.StudyCompleted,
		CreatedAt:        now,
		UpdatedAt:        now,
		Series: []domain.Series{
			{
				ID:                "series-1",
				SeriesInstanceUID: "1.2.3.1",
				StudyID:           "study-1",
				ImageCount:        1,
				CreatedAt:         now,
				Images: []domain.Image{
					{
						ID:             "image-1",
						SOPInstanceUID: "1.2.3.1.1",
						SeriesID:       "series-1",
						InstanceNumber: 1,
						StoragePath:    "studies/study-1/series/series-1/a.dcm",
						CreatedAt:      now,
					},
				},
			},
		},
	}
}

func TestCreateHierarchyCommitsWholeTree(t *testing.T) {
	repo, mock, done := newStudyRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO studies").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO series").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO images").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.CreateHierarchy(context.Background(), sampleStudyTree()); err != nil {
		t.Fatalf("CreateHierarchy() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateHierarchyRollsBackOnImageFailure(t *testing.T) {
	repo, mock, done := newStudyRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO studies").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO series").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO images").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := repo.CreateHierarchy(context.Background(), sampleStudyTree()); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetStudyByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newStudyRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, study_instance_uid, subject_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteStudyReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newStudyRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM studies").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
