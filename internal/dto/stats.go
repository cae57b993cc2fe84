package dto

import (
	"time"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
)

// TrackingStatistics is the dashboard aggregate for active records.
// Every canonical stage appears in ByStage even when its count is zero.
type TrackingStatistics struct {
	TotalActive    int                     `json:"totalActive"`
	TotalCompleted int                     `json:"totalCompleted"`
	TotalOverdue   int                     `json:"totalOverdue"`
	ByStage        []models.StageCount     `json:"byStage"`
	ByPriority     map[models.Priority]int `json:"byPriority,omitempty"`
	GeneratedAt    time.Time               `json:"generatedAt"`
	Degraded       bool                    `json:"degraded"`
}
