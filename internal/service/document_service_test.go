package service

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
	"github.com/davmuu/curriculum-tracking-api/pkg/storage"
)

type documentStoreStub struct {
	docs map[string]*models.Document
}

func newDocumentStoreStub() *documentStoreStub {
	return &documentStoreStub{docs: map[string]*models.Document{}}
}

func (s *documentStoreStub) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.LineageID == "" {
		doc.LineageID = doc.ID
	}
	if doc.VersionNumber == 0 {
		doc.VersionNumber = 1
	}
	doc.Latest = true
	doc.UploadedAt = time.Now().UTC()
	s.docs[doc.ID] = doc
	return nil
}

func (s *documentStoreStub) CreateVersion(ctx context.Context, doc *models.Document) error {
	for _, existing := range s.docs {
		if existing.LineageID == doc.LineageID {
			existing.Latest = false
		}
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Latest = true
	doc.UploadedAt = time.Now().UTC()
	s.docs[doc.ID] = doc
	return nil
}

func (s *documentStoreStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return doc, nil
}

func (s *documentStoreStub) GetLatestByLineage(ctx context.Context, lineageID string) (*models.Document, error) {
	for _, doc := range s.docs {
		if doc.LineageID == lineageID && doc.Latest {
			return doc, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *documentStoreStub) ListByTracking(ctx context.Context, trackingID string) ([]models.Document, error) {
	var out []models.Document
	for _, doc := range s.docs {
		if doc.TrackingID == trackingID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *documentStoreStub) ListVersions(ctx context.Context, lineageID string) ([]models.Document, error) {
	var out []models.Document
	for _, doc := range s.docs {
		if doc.LineageID == lineageID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

type attacherStub struct {
	refs []models.DocumentRef
}

func (a *attacherStub) AttachDocument(ctx context.Context, trackingID string, ref models.DocumentRef, actor *models.JWTClaims) error {
	a.refs = append(a.refs, ref)
	return nil
}

func newDocumentServiceForTest(t *testing.T) (*DocumentService, *documentStoreStub, *attacherStub) {
	t.Helper()
	fileStorage, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("doc-secret", time.Hour)
	repo := newDocumentStoreStub()
	attacher := &attacherStub{}
	svc := NewDocumentService(repo, attacher, fileStorage, signer, zap.NewNop(), DocumentServiceConfig{})
	return svc, repo, attacher
}

func pdfUpload(filename string, size int) DocumentUpload {
	content := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{'x'}, size)...)
	return DocumentUpload{
		Filename: filename,
		Size:     int64(len(content)),
		MimeType: "application/pdf",
		Content:  bytes.NewReader(content),
	}
}

func documentActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleRegistrar}
}

func TestDocumentServiceUpload(t *testing.T) {
	svc, repo, attacher := newDocumentServiceForTest(t)

	doc, err := svc.Upload(context.Background(), "TRK-1", models.StageInitiation, models.DocumentTypeCurriculumProposal,
		pdfUpload("proposal.pdf", 128), documentActor())
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, doc.ID, doc.LineageID)
	assert.Equal(t, 1, doc.VersionNumber)
	assert.True(t, doc.Latest)
	assert.Equal(t, "proposal.pdf", doc.OriginalFilename)
	assert.Contains(t, repo.docs, doc.ID)

	require.Len(t, attacher.refs, 1)
	assert.Equal(t, doc.ID, attacher.refs[0].ID)
}

func TestDocumentServiceUploadRequiresActor(t *testing.T) {
	svc, _, _ := newDocumentServiceForTest(t)
	_, err := svc.Upload(context.Background(), "TRK-1", models.StageInitiation, models.DocumentTypeSupporting,
		pdfUpload("notes.pdf", 10), nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestDocumentServiceUploadRejectsOversize(t *testing.T) {
	fileStorage, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewDocumentService(newDocumentStoreStub(), nil, fileStorage, nil, zap.NewNop(), DocumentServiceConfig{MaxFileSize: 16})

	_, err = svc.Upload(context.Background(), "TRK-1", models.StageInitiation, models.DocumentTypeSupporting,
		pdfUpload("big.pdf", 64), documentActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDocumentServiceUploadRejectsMimeType(t *testing.T) {
	svc, _, _ := newDocumentServiceForTest(t)

	upload := DocumentUpload{
		Filename: "script.sh",
		Size:     12,
		MimeType: "text/x-shellscript",
		Content:  strings.NewReader("#!/bin/bash\n"),
	}
	_, err := svc.Upload(context.Background(), "TRK-1", models.StageInitiation, models.DocumentTypeSupporting, upload, documentActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDocumentServiceUploadVersion(t *testing.T) {
	svc, repo, _ := newDocumentServiceForTest(t)

	first, err := svc.Upload(context.Background(), "TRK-1", models.StageSchoolBoard, models.DocumentTypeReview,
		pdfUpload("review.pdf", 32), documentActor())
	require.NoError(t, err)

	second, err := svc.UploadVersion(context.Background(), first.ID, pdfUpload("review-v2.pdf", 48), documentActor())
	require.NoError(t, err)

	assert.Equal(t, first.LineageID, second.LineageID)
	assert.Equal(t, 2, second.VersionNumber)
	assert.True(t, second.Latest)
	assert.False(t, repo.docs[first.ID].Latest)
	// Version chains keep the original filename.
	assert.Equal(t, "review.pdf", second.OriginalFilename)

	versions, err := svc.ListVersions(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.LineageID, versions.LineageID)
	assert.Len(t, versions.Versions, 2)
}

func TestDocumentServiceUploadVersionMissingDocument(t *testing.T) {
	svc, _, _ := newDocumentServiceForTest(t)
	_, err := svc.UploadVersion(context.Background(), "missing", pdfUpload("x.pdf", 8), documentActor())
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDocumentServiceDownloadRoundTrip(t *testing.T) {
	svc, _, _ := newDocumentServiceForTest(t)

	doc, err := svc.Upload(context.Background(), "TRK-1", models.StageInitiation, models.DocumentTypeCurriculumProposal,
		pdfUpload("proposal.pdf", 64), documentActor())
	require.NoError(t, err)

	resp, err := svc.GetDownloadURL(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Contains(t, resp.DownloadURL, "token=")
	token := resp.DownloadURL[strings.Index(resp.DownloadURL, "token=")+len("token="):]

	download, err := svc.Download(context.Background(), doc.ID, token)
	require.NoError(t, err)
	defer download.File.Close()

	assert.Equal(t, "proposal.pdf", download.Filename)
	assert.Equal(t, "application/pdf", download.MimeType)
	assert.Equal(t, doc.FileSize, download.SizeBytes)
}

func TestDocumentServiceDownloadRejectsForeignToken(t *testing.T) {
	svc, _, _ := newDocumentServiceForTest(t)

	docA, err := svc.Upload(context.Background(), "TRK-1", models.StageInitiation, models.DocumentTypeCurriculumProposal,
		pdfUpload("a.pdf", 16), documentActor())
	require.NoError(t, err)
	docB, err := svc.Upload(context.Background(), "TRK-1", models.StageInitiation, models.DocumentTypeSupporting,
		pdfUpload("b.pdf", 16), documentActor())
	require.NoError(t, err)

	respB, err := svc.GetDownloadURL(context.Background(), docB.ID)
	require.NoError(t, err)
	tokenB := respB.DownloadURL[strings.Index(respB.DownloadURL, "token=")+len("token="):]

	_, err = svc.Download(context.Background(), docA.ID, tokenB)
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}
