package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davmuu/curriculum-tracking-api/internal/dto"
	"github.com/davmuu/curriculum-tracking-api/internal/models"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	CreateVersion(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetLatestByLineage(ctx context.Context, lineageID string) (*models.Document, error)
	ListByTracking(ctx context.Context, trackingID string) ([]models.Document, error)
	ListVersions(ctx context.Context, lineageID string) ([]models.Document, error)
}

type documentFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type documentSignedURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

type stageAttacher interface {
	AttachDocument(ctx context.Context, trackingID string, ref models.DocumentRef, actor *models.JWTClaims) error
}

// DocumentUpload carries upload metadata and a stream reader.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// DocumentDownload bundles file reader metadata for streaming.
type DocumentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// DocumentServiceConfig holds validation parameters for uploads.
type DocumentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// DocumentService manages document metadata, version chains, and
// storage IO. Uploads also surface as attachments on the owning
// tracking record's current stage.
type DocumentService struct {
	repo     documentStore
	tracking stageAttacher
	storage  documentFileStorage
	signer   documentSignedURLSigner
	logger   *zap.Logger
	cfg      DocumentServiceConfig
	mimeSet  map[string]struct{}
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(repo documentStore, tracking stageAttacher, storage documentFileStorage, signer documentSignedURLSigner, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 20 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/zip",
		}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &DocumentService{
		repo:     repo,
		tracking: tracking,
		storage:  storage,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		mimeSet:  mimeSet,
	}
}

// Store validates and persists a first-version document without
// touching the owning tracking record. Callers that route the reference
// through a workflow action use this to avoid attaching twice.
func (s *DocumentService) Store(ctx context.Context, trackingID string, stage models.Stage, docType models.DocumentType, upload DocumentUpload, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	mimeType, err := s.validateUpload(upload)
	if err != nil {
		return nil, err
	}

	path := s.generatePath(upload.Filename, mimeType)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	storedPath, err := s.storage.SaveStream(path, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist document file")
	}

	doc := &models.Document{
		TrackingID:       trackingID,
		Stage:            stage,
		DocumentType:     docType,
		OriginalFilename: filepath.Base(upload.Filename),
		StoragePath:      storedPath,
		MimeType:         mimeType,
		FileSize:         upload.Size,
		UploadedBy:       actor.UserID,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		_ = s.storage.Delete(storedPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document metadata")
	}
	return doc, nil
}

// Upload stores a first-version document for the tracking record and
// attaches it to the record's current stage.
func (s *DocumentService) Upload(ctx context.Context, trackingID string, stage models.Stage, docType models.DocumentType, upload DocumentUpload, actor *models.JWTClaims) (*models.Document, error) {
	doc, err := s.Store(ctx, trackingID, stage, docType, upload, actor)
	if err != nil {
		return nil, err
	}

	if s.tracking != nil {
		if err := s.tracking.AttachDocument(ctx, trackingID, doc.Ref(), actor); err != nil {
			s.logger.Warn("failed to attach document to tracking stage",
				zap.String("tracking_id", trackingID), zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	return doc, nil
}

// UploadVersion stores a follow-up version of an existing document.
func (s *DocumentService) UploadVersion(ctx context.Context, documentID string, upload DocumentUpload, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	existing, err := s.get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.GetLatestByLineage(ctx, existing.LineageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			latest = existing
		} else {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve latest version")
		}
	}

	mimeType, err := s.validateUpload(upload)
	if err != nil {
		return nil, err
	}

	path := s.generatePath(upload.Filename, mimeType)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	storedPath, err := s.storage.SaveStream(path, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist document file")
	}

	doc := &models.Document{
		LineageID:        latest.LineageID,
		TrackingID:       latest.TrackingID,
		Stage:            latest.Stage,
		DocumentType:     latest.DocumentType,
		OriginalFilename: latest.OriginalFilename,
		StoragePath:      storedPath,
		MimeType:         mimeType,
		FileSize:         upload.Size,
		VersionNumber:    latest.VersionNumber + 1,
		UploadedBy:       actor.UserID,
	}
	if err := s.repo.CreateVersion(ctx, doc); err != nil {
		_ = s.storage.Delete(storedPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document version")
	}

	if s.tracking != nil {
		if err := s.tracking.AttachDocument(ctx, doc.TrackingID, doc.Ref(), actor); err != nil {
			s.logger.Warn("failed to attach document version to tracking stage",
				zap.String("tracking_id", doc.TrackingID), zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	return doc, nil
}

// Get returns document metadata.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.get(ctx, id)
}

// ListByTracking returns every stored document version for a record.
func (s *DocumentService) ListByTracking(ctx context.Context, trackingID string) ([]models.Document, error) {
	docs, err := s.repo.ListByTracking(ctx, trackingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// ListVersions returns the version chain for the document's lineage.
func (s *DocumentService) ListVersions(ctx context.Context, documentID string) (*dto.DocumentVersionsResponse, error) {
	doc, err := s.get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, doc.LineageID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list document versions")
	}
	return &dto.DocumentVersionsResponse{LineageID: doc.LineageID, Versions: versions}, nil
}

// GetDownloadURL generates a signed URL for downloading the file.
func (s *DocumentService) GetDownloadURL(ctx context.Context, id string) (*dto.DocumentDownloadResponse, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	token, _, err := s.signer.Generate(doc.ID, doc.StoragePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &dto.DocumentDownloadResponse{
		Document:    *doc,
		DownloadURL: fmt.Sprintf("%s/tracking/documents/%s/download?token=%s", base, doc.ID, token),
	}, nil
}

// Download validates the token and opens the stored file for streaming.
func (s *DocumentService) Download(ctx context.Context, id, token string) (*DocumentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	docID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if docID != doc.ID || relPath != doc.StoragePath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document metadata")
	}
	return &DocumentDownload{
		File:      file,
		Filename:  doc.OriginalFilename,
		MimeType:  doc.MimeType,
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *DocumentService) get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) validateUpload(upload DocumentUpload) (string, error) {
	if upload.Content == nil || upload.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return "", err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return "", appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}
	return mimeType, nil
}

func (s *DocumentService) detectMime(upload DocumentUpload) (string, error) {
	if upload.MimeType != "" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

func (s *DocumentService) generatePath(original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = mimeExtension(mimeType)
	}
	now := time.Now().UTC()
	return fmt.Sprintf("%04d/%02d/doc_%d_%s%s", now.Year(), now.Month(), now.Unix(), randomSuffix(), ext)
}

func mimeExtension(mime string) string {
	switch strings.ToLower(mime) {
	case "application/pdf":
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	case "application/zip":
		return ".zip"
	default:
		return ".bin"
	}
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
