package workflow

import (
	"math"
	"time"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
)

// Metrics are read-only projections computed from a record on every
// read. They are deterministic given (record, now) and never persisted.
type Metrics struct {
	DaysInCurrentStage int             `json:"daysInCurrentStage"`
	TotalDays          int             `json:"totalDays"`
	IsOverdue          bool            `json:"isOverdue"`
	Priority           models.Priority `json:"priority"`
	ProgressPercent    int             `json:"progressPercent"`
}

// ComputeMetrics derives all projections for the record at the given
// instant.
func ComputeMetrics(record *models.TrackingRecord, now time.Time) Metrics {
	return Metrics{
		DaysInCurrentStage: DaysInCurrentStage(record, now),
		TotalDays:          TotalDays(record, now),
		IsOverdue:          IsOverdue(record, now),
		Priority:           PriorityOf(record, now),
		ProgressPercent:    ProgressPercent(record),
	}
}

// DaysInCurrentStage counts elapsed days since the current stage
// opened, rounding any partial day up.
func DaysInCurrentStage(record *models.TrackingRecord, now time.Time) int {
	current := record.CurrentStageRecord()
	if current == nil || current.StartedAt == nil {
		return 0
	}
	return ceilDays(now.Sub(*current.StartedAt))
}

// TotalDays counts elapsed days since the record was created.
func TotalDays(record *models.TrackingRecord, now time.Time) int {
	return ceilDays(now.Sub(record.CreatedAt))
}

// IsOverdue reports whether the record has passed its expected
// completion date without completing.
func IsOverdue(record *models.TrackingRecord, now time.Time) bool {
	return record.ExpectedCompletionDate != nil &&
		now.After(*record.ExpectedCompletionDate) &&
		!record.IsCompleted
}

// PriorityOf buckets the record for triage. Overdue records are always
// high priority; otherwise the bucket follows how far along the
// workflow the record sits.
func PriorityOf(record *models.TrackingRecord, now time.Time) models.Priority {
	if IsOverdue(record, now) {
		return models.PriorityHigh
	}
	switch record.CurrentStage {
	case models.StageCueReview, models.StageSiteInspection:
		return models.PriorityHigh
	case models.StageViceChancellor, models.StageSenate:
		return models.PriorityMedium
	case models.StageInitiation:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

// ProgressPercent reports workflow completion as a percentage of
// stages reached, rounded to the nearest integer.
func ProgressPercent(record *models.TrackingRecord) int {
	idx := record.CurrentStage.Index()
	if idx < 0 {
		return 0
	}
	return int(math.Round(float64(idx+1) / float64(len(models.StageSequence)) * 100))
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}
