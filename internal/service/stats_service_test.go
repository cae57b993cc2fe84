package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
	"github.com/davmuu/curriculum-tracking-api/internal/workflow"
)

type statsStoreStub struct {
	counts       []models.StageCount
	totals       *models.TrackingTotals
	aggregateErr error
	active       []models.TrackingRecord
	listErr      error
}

func (s *statsStoreStub) CountByStage(ctx context.Context) ([]models.StageCount, error) {
	if s.aggregateErr != nil {
		return nil, s.aggregateErr
	}
	return s.counts, nil
}

func (s *statsStoreStub) CountTotals(ctx context.Context, now time.Time) (*models.TrackingTotals, error) {
	if s.aggregateErr != nil {
		return nil, s.aggregateErr
	}
	return s.totals, nil
}

func (s *statsStoreStub) ListAllActive(ctx context.Context, limit int) ([]models.TrackingRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.active, nil
}

func TestStatsServiceAggregate(t *testing.T) {
	store := &statsStoreStub{
		counts: []models.StageCount{
			{Stage: models.StageInitiation, Count: 3},
			{Stage: models.StageSenate, Count: 1},
		},
		totals: &models.TrackingTotals{TotalActive: 4, TotalCompleted: 2, TotalOverdue: 1},
	}
	svc := NewStatsService(store, nil, zap.NewNop(), nil, time.Minute, 0)

	stats, hit, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, stats.Degraded)
	assert.Equal(t, 4, stats.TotalActive)
	assert.Equal(t, 2, stats.TotalCompleted)
	assert.Equal(t, 1, stats.TotalOverdue)
	assert.Empty(t, stats.ByPriority)

	// Every canonical stage is present, zero-filled, in forward order.
	require.Len(t, stats.ByStage, len(models.StageSequence))
	assert.Equal(t, models.StageInitiation, stats.ByStage[0].Stage)
	assert.Equal(t, 3, stats.ByStage[0].Count)
	assert.Equal(t, models.StageSchoolBoard, stats.ByStage[1].Stage)
	assert.Equal(t, 0, stats.ByStage[1].Count)
}

func TestStatsServiceFallbackRecompute(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	overdueDate := now.Add(-24 * time.Hour)

	overdue := workflow.NewTrackingRecord("TRK-1", "CURR-1", "user-1", models.TrackingMetadata{}, now.Add(-72*time.Hour))
	overdue.ExpectedCompletionDate = &overdueDate
	onTrack := workflow.NewTrackingRecord("TRK-2", "CURR-2", "user-1", models.TrackingMetadata{}, now.Add(-24*time.Hour))
	onTrack.CurrentStage = models.StageSenate

	store := &statsStoreStub{
		aggregateErr: errors.New("relation does not exist"),
		active:       []models.TrackingRecord{*overdue, *onTrack},
	}
	svc := NewStatsService(store, nil, zap.NewNop(), func() time.Time { return now }, time.Minute, 0)

	stats, hit, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, stats.Degraded)
	assert.Equal(t, 2, stats.TotalActive)
	assert.Equal(t, 1, stats.TotalOverdue)
	assert.Equal(t, 1, stats.ByPriority[models.PriorityHigh])
	assert.Equal(t, 1, stats.ByPriority[models.PriorityMedium])

	require.Len(t, stats.ByStage, len(models.StageSequence))
	assert.Equal(t, 1, stats.ByStage[models.StageInitiation.Index()].Count)
	assert.Equal(t, 1, stats.ByStage[models.StageSenate.Index()].Count)
}

func TestStatsServiceBothPathsFail(t *testing.T) {
	store := &statsStoreStub{
		aggregateErr: errors.New("aggregate down"),
		listErr:      errors.New("list down"),
	}
	svc := NewStatsService(store, nil, zap.NewNop(), nil, time.Minute, 0)

	_, _, err := svc.Statistics(context.Background())
	require.Error(t, err)
}
