package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davmuu/curriculum-tracking-api/internal/dto"
	"github.com/davmuu/curriculum-tracking-api/internal/models"
	"github.com/davmuu/curriculum-tracking-api/internal/workflow"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
)

type trackingStore interface {
	Create(ctx context.Context, record *models.TrackingRecord) error
	GetByTrackingID(ctx context.Context, trackingID string) (*models.TrackingRecord, error)
	Update(ctx context.Context, record *models.TrackingRecord, prevUpdatedAt time.Time) error
	List(ctx context.Context, filter models.TrackingFilter) ([]models.TrackingRecord, *models.Pagination, error)
	Search(ctx context.Context, criteria models.TrackingSearchCriteria, now time.Time) ([]models.TrackingRecord, *models.Pagination, error)
	SetActive(ctx context.Context, trackingID string, active bool, updatedAt time.Time) error
	Assign(ctx context.Context, trackingID, userID string, updatedAt time.Time) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

const trackingCachePattern = "tracking:*"

// TrackingService orchestrates the approval workflow around the pure
// transition engine: load, apply, persist with an optimistic guard,
// audit, invalidate caches.
type TrackingService struct {
	repo     trackingStore
	audit    auditLogger
	engine   *workflow.Engine
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
	cacheTTL time.Duration
}

// NewTrackingService constructs the service. A nil clock defaults to
// time.Now.
func NewTrackingService(repo trackingStore, audit auditLogger, engine *workflow.Engine, cache *CacheService, metrics *MetricsService, logger *zap.Logger, now func() time.Time, cacheTTL time.Duration) *TrackingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if engine == nil {
		engine = workflow.NewEngine(now)
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &TrackingService{
		repo:     repo,
		audit:    audit,
		engine:   engine,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		now:      now,
		cacheTTL: cacheTTL,
	}
}

// Initiate starts a new tracking record at the first stage and attaches
// any uploaded documents to it.
func (s *TrackingService) Initiate(ctx context.Context, req dto.InitiateTrackingRequest, docs []models.DocumentRef, actor *models.JWTClaims) (*dto.TrackingView, error) {
	now := s.now().UTC()
	metadata := models.TrackingMetadata{
		ProposedName:      req.ProposedName,
		ProposedCode:      req.ProposedCode,
		DurationSemesters: req.DurationSemesters,
		SchoolID:          req.SchoolID,
		DepartmentID:      req.DepartmentID,
		AcademicLevelID:   req.AcademicLevelID,
		Description:       req.Description,
	}

	record := workflow.NewTrackingRecord(newTrackingID(), req.CurriculumID, actor.UserID, metadata, now)
	if req.ExpectedCompletionDate != nil && *req.ExpectedCompletionDate != "" {
		expected, err := time.Parse(time.RFC3339, *req.ExpectedCompletionDate)
		if err != nil {
			expected, err = time.Parse("2006-01-02", *req.ExpectedCompletionDate)
		}
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "expectedCompletionDate must be RFC3339 or YYYY-MM-DD")
		}
		record.ExpectedCompletionDate = &expected
	}

	first := record.Stages[models.StageInitiation]
	for i := range docs {
		if docs[i].UploadedAt.IsZero() {
			docs[i].UploadedAt = now
		}
		if docs[i].VersionNumber == 0 {
			docs[i].VersionNumber = 1
		}
		first.Documents = append(first.Documents, docs[i])
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create tracking record")
	}

	s.writeAudit(ctx, actor, models.AuditActionTrackingInitiate, record.TrackingID, map[string]interface{}{
		"curriculumId": record.CurriculumID,
		"proposedCode": metadata.ProposedCode,
	})
	s.invalidate(ctx)

	view := dto.NewTrackingView(record, now)
	return &view, nil
}

// ApplyAction routes one workflow action through the engine and commits
// the result with an optimistic concurrency guard.
func (s *TrackingService) ApplyAction(ctx context.Context, req dto.StageActionRequest, docs []models.DocumentRef, actor *models.JWTClaims) (*dto.TrackingView, error) {
	action, ok := models.ParseWorkflowAction(req.Action)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action %q", req.Action))
	}

	payload := workflow.ActionPayload{
		Feedback:  req.Feedback,
		Notes:     req.Notes,
		Documents: docs,
		Actor:     actor.UserID,
	}
	if req.ReturnToStage != "" {
		target, ok := models.ParseStage(req.ReturnToStage)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", req.ReturnToStage))
		}
		payload.ReturnToStage = target
	}

	record, err := s.load(ctx, req.TrackingID)
	if err != nil {
		return nil, err
	}

	next, err := s.engine.Apply(record, action, payload)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordWorkflowRejection(appErrors.FromError(err).Code)
		}
		return nil, err
	}

	if err := s.repo.Update(ctx, next, record.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "tracking record was modified concurrently, retry the action")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist transition")
	}

	if s.metrics != nil {
		s.metrics.RecordWorkflowTransition(action, next.CurrentStage)
	}
	s.writeAudit(ctx, actor, models.AuditActionTrackingTransition, next.TrackingID, map[string]interface{}{
		"action":    action,
		"fromStage": record.CurrentStage,
		"toStage":   next.CurrentStage,
	})
	s.invalidate(ctx)

	view := dto.NewTrackingView(next, s.now().UTC())
	return &view, nil
}

// Get returns the enriched view for one record, served from cache when
// possible.
func (s *TrackingService) Get(ctx context.Context, trackingID string) (*dto.TrackingView, bool, error) {
	cacheKey := "tracking:view:" + trackingID
	var cached dto.TrackingView
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	record, err := s.load(ctx, trackingID)
	if err != nil {
		return nil, false, err
	}
	view := dto.NewTrackingView(record, s.now().UTC())
	if err := s.cache.Set(ctx, cacheKey, view, s.cacheTTL); err != nil {
		s.logger.Debug("tracking view cache set failed", zap.Error(err))
	}
	return &view, false, nil
}

// List returns a filtered page of enriched views.
func (s *TrackingService) List(ctx context.Context, filter models.TrackingFilter) (*dto.TrackingListResponse, error) {
	records, pagination, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tracking records")
	}
	return &dto.TrackingListResponse{
		Items:      dto.NewTrackingViews(records, s.now().UTC()),
		Pagination: pagination,
	}, nil
}

// Search runs the search endpoint criteria. Overdue filtering is
// evaluated against the service clock.
func (s *TrackingService) Search(ctx context.Context, req dto.SearchTrackingRequest) (*dto.TrackingListResponse, error) {
	criteria := models.TrackingSearchCriteria{
		SearchTerm:      req.SearchTerm,
		SchoolID:        req.SchoolID,
		DepartmentID:    req.DepartmentID,
		IsOverdue:       req.IsOverdue,
		IsIdeationStage: req.IsIdeationStage,
		Page:            req.Page,
		PageSize:        req.PageSize,
	}
	if req.Status != "" {
		status, ok := models.ParseStatus(req.Status)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
		}
		criteria.Status = status
	}
	if req.CurrentStage != "" {
		stage, ok := models.ParseStage(req.CurrentStage)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", req.CurrentStage))
		}
		criteria.CurrentStage = stage
	}

	now := s.now().UTC()
	records, pagination, err := s.repo.Search(ctx, criteria, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search tracking records")
	}
	return &dto.TrackingListResponse{
		Items:      dto.NewTrackingViews(records, now),
		Pagination: pagination,
	}, nil
}

// UpdateMetadata applies a partial metadata update under the same
// optimistic guard as workflow actions.
func (s *TrackingService) UpdateMetadata(ctx context.Context, trackingID string, req dto.UpdateTrackingRequest, actor *models.JWTClaims) (*dto.TrackingView, error) {
	record, err := s.load(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	next := record.Clone()
	if req.ProposedName != nil {
		next.Metadata.ProposedName = *req.ProposedName
	}
	if req.ProposedCode != nil {
		next.Metadata.ProposedCode = *req.ProposedCode
	}
	if req.DurationSemesters != nil {
		if *req.DurationSemesters < 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "durationSemesters must be positive")
		}
		next.Metadata.DurationSemesters = *req.DurationSemesters
	}
	if req.Description != nil {
		next.Metadata.Description = *req.Description
	}
	if req.EffectiveDate != nil {
		next.Metadata.EffectiveDate = req.EffectiveDate
	}
	if req.ExpiryDate != nil {
		next.Metadata.ExpiryDate = req.ExpiryDate
	}
	if req.ExpectedCompletionDate != nil {
		next.ExpectedCompletionDate = req.ExpectedCompletionDate
	}
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, next, record.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "tracking record was modified concurrently, retry the update")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tracking record")
	}

	s.writeAudit(ctx, actor, models.AuditActionTrackingUpdate, trackingID, map[string]interface{}{
		"proposedCode": next.Metadata.ProposedCode,
	})
	s.invalidate(ctx)

	view := dto.NewTrackingView(next, s.now().UTC())
	return &view, nil
}

// Deactivate logically removes a record from the active register.
func (s *TrackingService) Deactivate(ctx context.Context, trackingID string, actor *models.JWTClaims) error {
	return s.setActive(ctx, trackingID, false, models.AuditActionTrackingDeactivate, actor)
}

// Reactivate restores a logically deleted record.
func (s *TrackingService) Reactivate(ctx context.Context, trackingID string, actor *models.JWTClaims) error {
	return s.setActive(ctx, trackingID, true, models.AuditActionTrackingReactivate, actor)
}

func (s *TrackingService) setActive(ctx context.Context, trackingID string, active bool, auditAction string, actor *models.JWTClaims) error {
	if err := s.repo.SetActive(ctx, trackingID, active, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "tracking record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change tracking active flag")
	}
	s.writeAudit(ctx, actor, auditAction, trackingID, map[string]interface{}{"active": active})
	s.invalidate(ctx)
	return nil
}

// Assign routes the record to a reviewer.
func (s *TrackingService) Assign(ctx context.Context, trackingID, userID string, actor *models.JWTClaims) error {
	if err := s.repo.Assign(ctx, trackingID, userID, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "tracking record not found or inactive")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign tracking record")
	}
	s.writeAudit(ctx, actor, models.AuditActionTrackingAssign, trackingID, map[string]interface{}{"assignedTo": userID})
	s.invalidate(ctx)
	return nil
}

// AttachDocument appends a stored document reference to the record's
// current stage without moving the workflow.
func (s *TrackingService) AttachDocument(ctx context.Context, trackingID string, ref models.DocumentRef, actor *models.JWTClaims) error {
	record, err := s.load(ctx, trackingID)
	if err != nil {
		return err
	}
	next := record.Clone()
	stage := next.CurrentStageRecord()
	if stage == nil {
		return appErrors.Clone(appErrors.ErrValidation, "tracking record has no entry for its current stage")
	}
	stage.Documents = append(stage.Documents, ref)
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, next, record.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "tracking record was modified concurrently, retry the upload")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach document")
	}

	s.writeAudit(ctx, actor, models.AuditActionDocumentUpload, trackingID, map[string]interface{}{
		"documentId": ref.ID,
		"filename":   ref.OriginalFilename,
		"version":    ref.VersionNumber,
	})
	s.invalidate(ctx)
	return nil
}

func (s *TrackingService) load(ctx context.Context, trackingID string) (*models.TrackingRecord, error) {
	record, err := s.repo.GetByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tracking record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tracking record")
	}
	return record, nil
}

func (s *TrackingService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, trackingCachePattern); err != nil {
		s.logger.Debug("tracking cache invalidation failed", zap.Error(err))
	}
}

func (s *TrackingService) writeAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	body, _ := json.Marshal(details)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "tracking",
		ResourceID: &resourceID,
		NewValues:  body,
	}); err != nil {
		s.logger.Warn("failed to record tracking audit log", zap.String("action", action), zap.Error(err))
	}
}

func newTrackingID() string {
	return "TRK-" + uuid.NewString()
}
