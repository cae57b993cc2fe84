package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davmuu/curriculum-tracking-api/internal/dto"
	"github.com/davmuu/curriculum-tracking-api/internal/middleware"
	"github.com/davmuu/curriculum-tracking-api/internal/models"
	"github.com/davmuu/curriculum-tracking-api/internal/service"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
	"github.com/davmuu/curriculum-tracking-api/pkg/response"
)

type trackingService interface {
	Initiate(ctx context.Context, req dto.InitiateTrackingRequest, docs []models.DocumentRef, actor *models.JWTClaims) (*dto.TrackingView, error)
	ApplyAction(ctx context.Context, req dto.StageActionRequest, docs []models.DocumentRef, actor *models.JWTClaims) (*dto.TrackingView, error)
	Get(ctx context.Context, trackingID string) (*dto.TrackingView, bool, error)
	List(ctx context.Context, filter models.TrackingFilter) (*dto.TrackingListResponse, error)
	Search(ctx context.Context, req dto.SearchTrackingRequest) (*dto.TrackingListResponse, error)
	UpdateMetadata(ctx context.Context, trackingID string, req dto.UpdateTrackingRequest, actor *models.JWTClaims) (*dto.TrackingView, error)
	Deactivate(ctx context.Context, trackingID string, actor *models.JWTClaims) error
	Reactivate(ctx context.Context, trackingID string, actor *models.JWTClaims) error
	Assign(ctx context.Context, trackingID, userID string, actor *models.JWTClaims) error
}

type statsProvider interface {
	Statistics(ctx context.Context) (*dto.TrackingStatistics, bool, error)
}

type documentStorer interface {
	Store(ctx context.Context, trackingID string, stage models.Stage, docType models.DocumentType, upload service.DocumentUpload, actor *models.JWTClaims) (*models.Document, error)
	Upload(ctx context.Context, trackingID string, stage models.Stage, docType models.DocumentType, upload service.DocumentUpload, actor *models.JWTClaims) (*models.Document, error)
}

// TrackingHandler exposes the curriculum tracking REST endpoints.
type TrackingHandler struct {
	service   trackingService
	stats     statsProvider
	documents documentStorer
}

// NewTrackingHandler constructs the handler.
func NewTrackingHandler(svc trackingService, stats statsProvider, documents documentStorer) *TrackingHandler {
	return &TrackingHandler{service: svc, stats: stats, documents: documents}
}

// Initiate godoc
// @Summary Start tracking a curriculum proposal
// @Tags Tracking
// @Accept multipart/form-data
// @Produce json
// @Param curriculumId formData string true "Curriculum ID"
// @Param proposedName formData string true "Proposed curriculum name"
// @Param proposedCode formData string true "Proposed curriculum code"
// @Param durationSemesters formData int true "Duration in semesters"
// @Param schoolId formData string true "School ID"
// @Param departmentId formData string true "Department ID"
// @Param academicLevelId formData string true "Academic level ID"
// @Param documentType formData string false "Document type for the uploaded files"
// @Param expectedCompletionDate formData string false "Expected completion date"
// @Param documents formData file false "Initial documents"
// @Success 201 {object} response.Envelope
// @Router /tracking/initiate [post]
func (h *TrackingHandler) Initiate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.InitiateTrackingRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid initiate payload"))
		return
	}
	docType, err := resolveDocumentType(req.DocumentType, models.DocumentTypeCurriculumProposal)
	if err != nil {
		response.Error(c, err)
		return
	}
	files := formFiles(c, "documents")

	view, err := h.service.Initiate(c.Request.Context(), req, nil, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	if len(files) > 0 && h.documents != nil {
		for _, fh := range files {
			upload, closeFn, openErr := openUpload(fh)
			if openErr != nil {
				response.Error(c, openErr)
				return
			}
			_, uploadErr := h.documents.Upload(c.Request.Context(), view.TrackingID, view.CurrentStage, docType, upload, claims)
			closeFn()
			if uploadErr != nil {
				response.Error(c, uploadErr)
				return
			}
		}
		if refreshed, _, getErr := h.service.Get(c.Request.Context(), view.TrackingID); getErr == nil {
			view = refreshed
		}
	}

	response.JSON(c, http.StatusCreated, view, nil)
}

// Action godoc
// @Summary Apply a workflow action to a tracking record
// @Tags Tracking
// @Accept multipart/form-data
// @Produce json
// @Param trackingId formData string true "Tracking ID"
// @Param action formData string true "APPROVE, REJECT, HOLD, RESUME or RETURN"
// @Param notes formData string false "Reviewer notes"
// @Param feedback formData string false "Feedback (required for REJECT and RETURN)"
// @Param returnToStage formData string false "Target stage for RETURN"
// @Param documentType formData string false "Document type for the uploaded files"
// @Param documents formData file false "Documents attached with the action"
// @Success 200 {object} response.Envelope
// @Router /tracking/action [post]
func (h *TrackingHandler) Action(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.StageActionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid action payload"))
		return
	}

	var refs []models.DocumentRef
	files := formFiles(c, "documents")
	if len(files) > 0 {
		if h.documents == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrInternal, "document service not configured"))
			return
		}
		docType, err := resolveDocumentType(req.DocumentType, models.DocumentTypeSupporting)
		if err != nil {
			response.Error(c, err)
			return
		}
		current, _, err := h.service.Get(c.Request.Context(), req.TrackingID)
		if err != nil {
			response.Error(c, err)
			return
		}
		for _, fh := range files {
			upload, closeFn, openErr := openUpload(fh)
			if openErr != nil {
				response.Error(c, openErr)
				return
			}
			doc, storeErr := h.documents.Store(c.Request.Context(), req.TrackingID, current.CurrentStage, docType, upload, claims)
			closeFn()
			if storeErr != nil {
				response.Error(c, storeErr)
				return
			}
			refs = append(refs, doc.Ref())
		}
	}

	view, err := h.service.ApplyAction(c.Request.Context(), req, refs, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Get godoc
// @Summary Get one tracking record with derived metrics
// @Tags Tracking
// @Produce json
// @Param id path string true "Tracking ID"
// @Success 200 {object} response.Envelope
// @Router /tracking/{id} [get]
func (h *TrackingHandler) Get(c *gin.Context) {
	view, cacheHit, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// BySchool godoc
// @Summary List tracking records for a school
// @Tags Tracking
// @Produce json
// @Param id path string true "School ID"
// @Param page query int false "Page"
// @Param size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tracking/school/{id} [get]
func (h *TrackingHandler) BySchool(c *gin.Context) {
	h.list(c, models.TrackingFilter{SchoolID: c.Param("id")})
}

// ByDepartment godoc
// @Summary List tracking records for a department
// @Tags Tracking
// @Produce json
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /tracking/department/{id} [get]
func (h *TrackingHandler) ByDepartment(c *gin.Context) {
	h.list(c, models.TrackingFilter{DepartmentID: c.Param("id")})
}

// ByStage godoc
// @Summary List tracking records currently in a stage
// @Tags Tracking
// @Produce json
// @Param stage path string true "Stage name or legacy alias"
// @Success 200 {object} response.Envelope
// @Router /tracking/stage/{stage} [get]
func (h *TrackingHandler) ByStage(c *gin.Context) {
	stage, ok := models.ParseStage(c.Param("stage"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown stage"))
		return
	}
	h.list(c, models.TrackingFilter{CurrentStage: stage})
}

// ByAssignee godoc
// @Summary List tracking records assigned to a user
// @Tags Tracking
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /tracking/assignee/{id} [get]
func (h *TrackingHandler) ByAssignee(c *gin.Context) {
	h.list(c, models.TrackingFilter{AssignedTo: c.Param("id")})
}

// ByInitiator godoc
// @Summary List tracking records initiated by a user
// @Tags Tracking
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /tracking/initiator/{id} [get]
func (h *TrackingHandler) ByInitiator(c *gin.Context) {
	h.list(c, models.TrackingFilter{InitiatedBy: c.Param("id")})
}

func (h *TrackingHandler) list(c *gin.Context, filter models.TrackingFilter) {
	filter.Page = queryInt(c, "page", 1)
	filter.PageSize = queryInt(c, "size", 0)
	filter.ActiveOnly = !strings.EqualFold(c.Query("includeInactive"), "true")
	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseStatus(raw)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status"))
			return
		}
		filter.Status = status
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Items, result.Pagination)
}

// Search godoc
// @Summary Search tracking records
// @Tags Tracking
// @Accept json
// @Produce json
// @Param payload body dto.SearchTrackingRequest true "Search criteria"
// @Success 200 {object} response.Envelope
// @Router /tracking/search [post]
func (h *TrackingHandler) Search(c *gin.Context) {
	var req dto.SearchTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid search payload"))
		return
	}
	result, err := h.service.Search(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Items, result.Pagination)
}

// Statistics godoc
// @Summary Workflow statistics for the dashboard
// @Tags Tracking
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tracking/statistics [get]
func (h *TrackingHandler) Statistics(c *gin.Context) {
	if h.stats == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "statistics service not configured"))
		return
	}
	stats, cacheHit, err := h.stats.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Update godoc
// @Summary Update tracking metadata
// @Tags Tracking
// @Accept json
// @Produce json
// @Param id path string true "Tracking ID"
// @Param payload body dto.UpdateTrackingRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Router /tracking/{id} [put]
func (h *TrackingHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid update payload"))
		return
	}
	view, err := h.service.UpdateMetadata(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Deactivate godoc
// @Summary Deactivate a tracking record
// @Tags Tracking
// @Produce json
// @Param id path string true "Tracking ID"
// @Success 204
// @Router /tracking/{id}/deactivate [post]
func (h *TrackingHandler) Deactivate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reactivate godoc
// @Summary Reactivate a tracking record
// @Tags Tracking
// @Produce json
// @Param id path string true "Tracking ID"
// @Success 204
// @Router /tracking/{id}/reactivate [post]
func (h *TrackingHandler) Reactivate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Reactivate(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assign godoc
// @Summary Assign a tracking record to a reviewer
// @Tags Tracking
// @Produce json
// @Param id path string true "Tracking ID"
// @Param userId path string true "Assignee user ID"
// @Success 204
// @Router /tracking/{id}/assign/{userId} [post]
func (h *TrackingHandler) Assign(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Assign(c.Request.Context(), c.Param("id"), c.Param("userId"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func resolveDocumentType(raw string, fallback models.DocumentType) (models.DocumentType, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	docType, ok := models.ParseDocumentType(raw)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown document type")
	}
	return docType, nil
}

func formFiles(c *gin.Context, field string) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File[field]
}

func openUpload(fh *multipart.FileHeader) (service.DocumentUpload, func(), error) {
	src, err := fh.Open()
	if err != nil {
		return service.DocumentUpload{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		src.Close() //nolint:errcheck
		if readErr != nil {
			return service.DocumentUpload{}, nil, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
		}
		reader = bytes.NewReader(buf)
		src = nil
	}
	closeFn := func() {
		if src != nil {
			src.Close() //nolint:errcheck
		}
	}
	return service.DocumentUpload{
		Filename: fh.Filename,
		Size:     fh.Size,
		MimeType: fh.Header.Get("Content-Type"),
		Content:  reader,
	}, closeFn, nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
