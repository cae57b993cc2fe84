package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davmuu/curriculum-tracking-api/internal/dto"
	"github.com/davmuu/curriculum-tracking-api/internal/models"
	"github.com/davmuu/curriculum-tracking-api/internal/repository"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
	"github.com/davmuu/curriculum-tracking-api/pkg/jobs"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
	ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
	Cleanup(ttl time.Duration) ([]string, error)
}

// ExportDownload is a ready-to-stream export file.
type ExportDownload struct {
	File     *os.File
	Filename string
	Format   models.ExportFormat
}

// ExportServiceConfig controls job housekeeping.
type ExportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	RecoveryBatch   int
}

// ExportService manages the asynchronous export job lifecycle: accept a
// request, persist the job, dispatch it to the worker queue, expose its
// status, and stream the finished file through a signed token.
type ExportService struct {
	repo      exportJobStore
	queue     jobDispatcher
	generator exportGenerator
	logger    *zap.Logger
	now       func() time.Time
	cfg       ExportServiceConfig
}

// NewExportService constructs the service.
func NewExportService(repo exportJobStore, queue jobDispatcher, generator exportGenerator, cfg ExportServiceConfig, logger *zap.Logger, now func() time.Time) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.RecoveryBatch <= 0 {
		cfg.RecoveryBatch = 50
	}
	return &ExportService{
		repo:      repo,
		queue:     queue,
		generator: generator,
		logger:    logger,
		now:       now,
		cfg:       cfg,
	}
}

// CreateJob validates the request, persists a queued job, and hands it
// to the dispatcher. Jobs that cannot be enqueued are marked FAILED
// immediately so clients never poll a job nothing will pick up.
func (s *ExportService) CreateJob(ctx context.Context, req dto.ExportRequest, actor *models.JWTClaims) (*dto.ExportJobResponse, error) {
	params, err := s.buildParams(req)
	if err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		Type:      req.Type,
		Params:    params,
		Status:    models.ExportStatusQueued,
		CreatedAt: s.now().UTC(),
	}
	if actor != nil {
		job.CreatedBy = actor.UserID
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		s.logger.Error("failed to enqueue export job", zap.String("job_id", job.ID), zap.Error(err))
		s.markFailed(ctx, job.ID, "export queue unavailable")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus returns job progress. Non-admin callers only see their own jobs.
func (s *ExportService) GetStatus(ctx context.Context, jobID string, actor *models.JWTClaims) (*dto.ExportStatusResponse, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !canReadJob(job, actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another user")
	}
	return &dto.ExportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil
}

// ResolveDownload validates a signed token and opens the referenced file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, _, err := s.generator.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}

	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "export job has not finished")
	}
	if job.ResultURL == nil || !strings.Contains(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download token does not match the export job")
	}

	file, err := s.generator.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file is no longer available")
	}
	return &ExportDownload{
		File:     file,
		Filename: relPath[strings.LastIndex(relPath, "/")+1:],
		Format:   job.Params.Format,
	}, nil
}

// RecoverPendingJobs re-enqueues jobs left QUEUED by a previous process.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) error {
	pending, err := s.repo.ListQueued(ctx, s.cfg.RecoveryBatch)
	if err != nil {
		return err
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Error("failed to recover export job", zap.String("job_id", job.ID), zap.Error(err))
			s.markFailed(ctx, job.ID, "export queue unavailable during recovery")
			continue
		}
		s.logger.Info("recovered queued export job", zap.String("job_id", job.ID))
	}
	return nil
}

// StartCleanup launches the periodic result retention loop.
func (s *ExportService) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ExportService) cleanupExpired(ctx context.Context) {
	cutoff := s.now().UTC().Add(-s.cfg.ResultTTL)
	deleted, err := s.repo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Warn("failed to prune finished export jobs", zap.Error(err))
	} else if deleted > 0 {
		s.logger.Info("pruned finished export jobs", zap.Int64("count", deleted))
	}

	removed, err := s.generator.Cleanup(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("failed to prune export files", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Info("pruned export files", zap.Int("count", len(removed)))
	}
}

func (s *ExportService) buildParams(req dto.ExportRequest) (models.ExportJobParams, error) {
	var params models.ExportJobParams

	switch req.Format {
	case models.ExportFormatCSV, models.ExportFormatPDF:
		params.Format = req.Format
	default:
		return params, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	switch req.Type {
	case models.ExportTypeTrackingList:
		params.SchoolID = req.SchoolID
		params.DepartmentID = req.DepartmentID
		if req.Stage != "" {
			stage, ok := models.ParseStage(req.Stage)
			if !ok {
				return params, appErrors.Clone(appErrors.ErrValidation, "unknown stage filter")
			}
			params.Stage = stage
		}
	case models.ExportTypeApprovalSummary:
		if req.TrackingID == nil || *req.TrackingID == "" {
			return params, appErrors.Clone(appErrors.ErrValidation, "trackingId is required for approval summary exports")
		}
		params.TrackingID = req.TrackingID
	default:
		return params, appErrors.Clone(appErrors.ErrValidation, "unknown export type")
	}
	return params, nil
}

func (s *ExportService) loadJob(ctx context.Context, jobID string) (*models.ExportJob, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

func (s *ExportService) markFailed(ctx context.Context, jobID, reason string) {
	status := models.ExportStatusFailed
	finishedAt := s.now().UTC()
	if err := s.repo.Update(ctx, jobID, repository.UpdateExportJobParams{
		Status:       &status,
		ErrorMessage: &reason,
		FinishedAt:   &finishedAt,
	}); err != nil {
		s.logger.Error("failed to mark export job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func canReadJob(job *models.ExportJob, actor *models.JWTClaims) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleSuperAdmin || actor.Role == models.RoleAdmin {
		return true
	}
	return job.CreatedBy == actor.UserID
}

// ExportWorker consumes queued export jobs and drives them through the
// PROCESSING, FINISHED, FAILED lifecycle.
type ExportWorker struct {
	repo       exportJobStore
	generator  exportGenerator
	logger     *zap.Logger
	now        func() time.Time
	maxRetries int
}

// NewExportWorker constructs a worker bound to the job store and generator.
func NewExportWorker(repo exportJobStore, generator exportGenerator, logger *zap.Logger, now func() time.Time, maxRetries int) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{
		repo:       repo,
		generator:  generator,
		logger:     logger,
		now:        now,
		maxRetries: maxRetries,
	}
}

// Handle processes a single queued job. Returning an error lets the
// queue retry; the final attempt marks the job FAILED.
func (w *ExportWorker) Handle(ctx context.Context, queued jobs.Job) error {
	job, err := w.repo.GetByID(ctx, queued.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("export job disappeared, dropping", zap.String("job_id", queued.ID))
			return nil
		}
		return err
	}
	if job.Status == models.ExportStatusFinished || job.Status == models.ExportStatusFailed {
		return nil
	}

	processing := models.ExportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	result, err := w.generator.Generate(ctx, job)
	if err != nil {
		return w.handleFailure(ctx, job, queued.Attempt, err)
	}

	finished := models.ExportStatusFinished
	done := 100
	finishedAt := w.now().UTC()
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:     &finished,
		Progress:   &done,
		ResultURL:  &result.URL,
		FinishedAt: &finishedAt,
	}); err != nil {
		return err
	}
	w.logger.Info("export job finished",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("format", string(result.Format)))
	return nil
}

func (w *ExportWorker) handleFailure(ctx context.Context, job *models.ExportJob, attempt int, cause error) error {
	if attempt+1 > w.maxRetries {
		message := cause.Error()
		failed := models.ExportStatusFailed
		finishedAt := w.now().UTC()
		if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			ErrorMessage: &message,
			FinishedAt:   &finishedAt,
		}); err != nil {
			w.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		w.logger.Error("export job failed permanently", zap.String("job_id", job.ID), zap.Error(cause))
		return nil
	}

	// Reset to QUEUED so recovery picks the job up if the retry never runs.
	queuedStatus := models.ExportStatusQueued
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &queuedStatus}); err != nil {
		w.logger.Error("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(err))
	}
	return cause
}
