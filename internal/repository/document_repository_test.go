package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
)

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDocumentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{
		TrackingID:       "trk-1",
		Stage:            models.StageInitiation,
		DocumentType:     models.DocumentTypeSupporting,
		OriginalFilename: "proposal.pdf",
		StoragePath:      "2025/03/proposal.pdf",
		MimeType:         "application/pdf",
		FileSize:         1024,
		UploadedBy:       "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)
	require.Equal(t, doc.ID, doc.LineageID)
	require.Equal(t, 1, doc.VersionNumber)
	require.True(t, doc.Latest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryCreateVersionDemotesPrevious(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET latest = FALSE")).
		WithArgs("lineage-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	doc := &models.Document{
		LineageID:        "lineage-1",
		TrackingID:       "trk-1",
		Stage:            models.StageSchoolBoard,
		DocumentType:     models.DocumentTypeSupporting,
		OriginalFilename: "proposal.pdf",
		StoragePath:      "2025/03/proposal-v2.pdf",
		MimeType:         "application/pdf",
		FileSize:         2048,
		VersionNumber:    2,
		UploadedBy:       "user-1",
	}
	require.NoError(t, repo.CreateVersion(context.Background(), doc))
	require.True(t, doc.Latest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryGetLatestByLineage(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "lineage_id", "tracking_id", "stage", "document_type", "original_filename",
		"storage_path", "mime_type", "file_size", "version_number", "latest", "uploaded_by", "uploaded_at",
	}).AddRow(
		"doc-2", "lineage-1", "trk-1", "SCHOOL_BOARD", "SUPPORTING_DOCUMENTS", "proposal.pdf",
		"2025/03/proposal-v2.pdf", "application/pdf", 2048, 2, true, "user-1", time.Now(),
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, lineage_id, tracking_id")).
		WithArgs("lineage-1").
		WillReturnRows(rows)

	doc, err := repo.GetLatestByLineage(context.Background(), "lineage-1")
	require.NoError(t, err)
	require.Equal(t, "doc-2", doc.ID)
	require.Equal(t, 2, doc.VersionNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}
