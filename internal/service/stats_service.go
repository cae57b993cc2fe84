package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davmuu/curriculum-tracking-api/internal/dto"
	"github.com/davmuu/curriculum-tracking-api/internal/models"
	"github.com/davmuu/curriculum-tracking-api/internal/workflow"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
)

type statsStore interface {
	CountByStage(ctx context.Context) ([]models.StageCount, error)
	CountTotals(ctx context.Context, now time.Time) (*models.TrackingTotals, error)
	ListAllActive(ctx context.Context, limit int) ([]models.TrackingRecord, error)
}

const statsCacheKey = "tracking:stats"

// StatsService builds the dashboard aggregate. It prefers the
// precomputed SQL aggregates and degrades to recomputing from the full
// active record set when those queries fail.
type StatsService struct {
	repo          statsStore
	cache         *CacheService
	logger        *zap.Logger
	now           func() time.Time
	cacheTTL      time.Duration
	fallbackLimit int
}

// NewStatsService constructs the service.
func NewStatsService(repo statsStore, cache *CacheService, logger *zap.Logger, now func() time.Time, cacheTTL time.Duration, fallbackLimit int) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if fallbackLimit <= 0 {
		fallbackLimit = 1000
	}
	return &StatsService{
		repo:          repo,
		cache:         cache,
		logger:        logger,
		now:           now,
		cacheTTL:      cacheTTL,
		fallbackLimit: fallbackLimit,
	}
}

// Statistics returns the aggregate, served from cache when possible.
// The boolean reports a cache hit.
func (s *StatsService) Statistics(ctx context.Context) (*dto.TrackingStatistics, bool, error) {
	var cached dto.TrackingStatistics
	if hit, err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	now := s.now().UTC()
	stats, err := s.aggregate(ctx, now)
	if err != nil {
		s.logger.Warn("statistics aggregate query failed, recomputing from record set", zap.Error(err))
		stats, err = s.recompute(ctx, now)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute statistics")
		}
	}

	if err := s.cache.Set(ctx, statsCacheKey, stats, s.cacheTTL); err != nil {
		s.logger.Debug("statistics cache set failed", zap.Error(err))
	}
	return stats, false, nil
}

func (s *StatsService) aggregate(ctx context.Context, now time.Time) (*dto.TrackingStatistics, error) {
	counts, err := s.repo.CountByStage(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.CountTotals(ctx, now)
	if err != nil {
		return nil, err
	}

	byStage := make(map[models.Stage]int, len(counts))
	for _, c := range counts {
		byStage[c.Stage] = c.Count
	}
	return &dto.TrackingStatistics{
		TotalActive:    totals.TotalActive,
		TotalCompleted: totals.TotalCompleted,
		TotalOverdue:   totals.TotalOverdue,
		ByStage:        zeroFilledStageCounts(byStage),
		GeneratedAt:    now,
	}, nil
}

// recompute derives the same aggregate client-side from the full active
// record set. Slower, but keeps the dashboard alive when the aggregate
// queries are unavailable.
func (s *StatsService) recompute(ctx context.Context, now time.Time) (*dto.TrackingStatistics, error) {
	records, err := s.repo.ListAllActive(ctx, s.fallbackLimit)
	if err != nil {
		return nil, err
	}

	byStage := make(map[models.Stage]int)
	byPriority := make(map[models.Priority]int)
	stats := &dto.TrackingStatistics{
		GeneratedAt: now,
		Degraded:    true,
	}
	for i := range records {
		record := &records[i]
		stats.TotalActive++
		if record.IsCompleted {
			stats.TotalCompleted++
		}
		if workflow.IsOverdue(record, now) {
			stats.TotalOverdue++
		}
		byStage[record.CurrentStage]++
		byPriority[workflow.PriorityOf(record, now)]++
	}
	stats.ByStage = zeroFilledStageCounts(byStage)
	stats.ByPriority = byPriority
	return stats, nil
}

// zeroFilledStageCounts emits one entry per canonical stage in forward
// order so consumers never have to guess at missing stages.
func zeroFilledStageCounts(byStage map[models.Stage]int) []models.StageCount {
	counts := make([]models.StageCount, 0, len(models.StageSequence))
	for _, stage := range models.StageSequence {
		counts = append(counts, models.StageCount{Stage: stage, Count: byStage[stage]})
	}
	return counts
}
