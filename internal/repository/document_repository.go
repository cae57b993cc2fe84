package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
)

const documentColumns = `id, lineage_id, tracking_id, stage, document_type, original_filename,
       storage_path, mime_type, file_size, version_number, latest, uploaded_by, uploaded_at`

// DocumentRepository provides database access for document metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new instance of DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a first-version document row. The lineage id defaults
// to the document's own id.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.LineageID == "" {
		doc.LineageID = doc.ID
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.VersionNumber == 0 {
		doc.VersionNumber = 1
	}
	doc.Latest = true

	const query = `INSERT INTO documents
	(id, lineage_id, tracking_id, stage, document_type, original_filename,
	 storage_path, mime_type, file_size, version_number, latest, uploaded_by, uploaded_at)
	VALUES (:id, :lineage_id, :tracking_id, :stage, :document_type, :original_filename,
	 :storage_path, :mime_type, :file_size, :version_number, :latest, :uploaded_by, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// CreateVersion inserts a follow-up version in a transaction, demoting
// the previous latest row of the same lineage.
func (r *DocumentRepository) CreateVersion(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	doc.Latest = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document version tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET latest = FALSE WHERE lineage_id = $1 AND latest = TRUE`, doc.LineageID); err != nil {
		return fmt.Errorf("demote previous document version: %w", err)
	}

	const insert = `INSERT INTO documents
	(id, lineage_id, tracking_id, stage, document_type, original_filename,
	 storage_path, mime_type, file_size, version_number, latest, uploaded_by, uploaded_at)
	VALUES (:id, :lineage_id, :tracking_id, :stage, :document_type, :original_filename,
	 :storage_path, :mime_type, :file_size, :version_number, :latest, :uploaded_by, :uploaded_at)`
	if _, err := tx.NamedExecContext(ctx, insert, doc); err != nil {
		return fmt.Errorf("create document version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document version: %w", err)
	}
	return nil
}

// GetByID returns one document row.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 LIMIT 1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document by id: %w", err)
	}
	return &doc, nil
}

// GetLatestByLineage returns the newest version of a logical document.
func (r *DocumentRepository) GetLatestByLineage(ctx context.Context, lineageID string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE lineage_id = $1 AND latest = TRUE LIMIT 1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, lineageID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find latest document version: %w", err)
	}
	return &doc, nil
}

// ListByTracking returns every document version for a tracking record,
// newest first within each lineage.
func (r *DocumentRepository) ListByTracking(ctx context.Context, trackingID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
	WHERE tracking_id = $1 ORDER BY lineage_id, version_number DESC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, trackingID); err != nil {
		return nil, fmt.Errorf("list tracking documents: %w", err)
	}
	return docs, nil
}

// ListVersions returns the full version chain for one lineage.
func (r *DocumentRepository) ListVersions(ctx context.Context, lineageID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
	WHERE lineage_id = $1 ORDER BY version_number DESC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, lineageID); err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return docs, nil
}
