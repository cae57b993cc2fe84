package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davmuu/curriculum-tracking-api/internal/dto"
	"github.com/davmuu/curriculum-tracking-api/internal/models"
	"github.com/davmuu/curriculum-tracking-api/internal/service"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
	"github.com/davmuu/curriculum-tracking-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, trackingID string, stage models.Stage, docType models.DocumentType, upload service.DocumentUpload, actor *models.JWTClaims) (*models.Document, error)
	UploadVersion(ctx context.Context, documentID string, upload service.DocumentUpload, actor *models.JWTClaims) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	ListByTracking(ctx context.Context, trackingID string) ([]models.Document, error)
	ListVersions(ctx context.Context, documentID string) (*dto.DocumentVersionsResponse, error)
	GetDownloadURL(ctx context.Context, id string) (*dto.DocumentDownloadResponse, error)
	Download(ctx context.Context, id, token string) (*service.DocumentDownload, error)
}

type trackingStageResolver interface {
	Get(ctx context.Context, trackingID string) (*dto.TrackingView, bool, error)
}

// DocumentHandler manages document HTTP endpoints.
type DocumentHandler struct {
	service  documentService
	tracking trackingStageResolver
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(svc documentService, tracking trackingStageResolver) *DocumentHandler {
	return &DocumentHandler{service: svc, tracking: tracking}
}

// Upload godoc
// @Summary Upload a document to a tracking record's current stage
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Tracking ID"
// @Param documentType formData string false "Document type"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Router /tracking/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	docType, err := resolveDocumentType(c.PostForm("documentType"), models.DocumentTypeSupporting)
	if err != nil {
		response.Error(c, err)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	trackingID := c.Param("id")
	view, _, err := h.tracking.Get(c.Request.Context(), trackingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	upload, closeFn, err := openUpload(fileHeader)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	doc, err := h.service.Upload(c.Request.Context(), trackingID, view.CurrentStage, docType, upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, doc, nil)
}

// UploadVersion godoc
// @Summary Upload a new version of an existing document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param documentId path string true "Document ID"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Router /tracking/documents/{documentId}/version [post]
func (h *DocumentHandler) UploadVersion(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	upload, closeFn, err := openUpload(fileHeader)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	doc, err := h.service.UploadVersion(c.Request.Context(), c.Param("documentId"), upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, doc, nil)
}

// Get godoc
// @Summary Get document metadata with a signed download URL
// @Tags Documents
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /tracking/documents/{documentId} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	resp, err := h.service.GetDownloadURL(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// ListByTracking godoc
// @Summary List all document versions stored for a tracking record
// @Tags Documents
// @Produce json
// @Param id path string true "Tracking ID"
// @Success 200 {object} response.Envelope
// @Router /tracking/{id}/documents [get]
func (h *DocumentHandler) ListByTracking(c *gin.Context) {
	docs, err := h.service.ListByTracking(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// ListVersions godoc
// @Summary List the version chain of a document
// @Tags Documents
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /tracking/documents/{documentId}/versions [get]
func (h *DocumentHandler) ListVersions(c *gin.Context) {
	versions, err := h.service.ListVersions(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Download godoc
// @Summary Download a document via signed token
// @Tags Documents
// @Produce octet-stream
// @Param documentId path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /tracking/documents/{documentId}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), c.Param("documentId"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
