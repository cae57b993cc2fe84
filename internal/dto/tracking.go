package dto

import (
	"time"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
	"github.com/davmuu/curriculum-tracking-api/internal/workflow"
)

// InitiateTrackingRequest carries the multipart metadata fields of
// POST /tracking/initiate. Files arrive separately as documents[].
type InitiateTrackingRequest struct {
	CurriculumID           string  `form:"curriculumId" binding:"required"`
	ProposedName           string  `form:"proposedName" binding:"required"`
	ProposedCode           string  `form:"proposedCode" binding:"required"`
	DurationSemesters      int     `form:"durationSemesters" binding:"required,min=1"`
	SchoolID               string  `form:"schoolId" binding:"required"`
	DepartmentID           string  `form:"departmentId" binding:"required"`
	AcademicLevelID        string  `form:"academicLevelId" binding:"required"`
	Description            string  `form:"description"`
	DocumentType           string  `form:"documentType"`
	ExpectedCompletionDate *string `form:"expectedCompletionDate"`
}

// StageActionRequest carries the multipart fields of POST /tracking/action.
type StageActionRequest struct {
	TrackingID    string `form:"trackingId" binding:"required"`
	Action        string `form:"action" binding:"required"`
	Notes         string `form:"notes"`
	Feedback      string `form:"feedback"`
	ReturnToStage string `form:"returnToStage"`
	DocumentType  string `form:"documentType"`
}

// UpdateTrackingRequest carries the metadata update payload. Only
// non-nil fields are applied.
type UpdateTrackingRequest struct {
	ProposedName           *string    `json:"proposedName"`
	ProposedCode           *string    `json:"proposedCode"`
	DurationSemesters      *int       `json:"durationSemesters"`
	Description            *string    `json:"description"`
	EffectiveDate          *time.Time `json:"effectiveDate"`
	ExpiryDate             *time.Time `json:"expiryDate"`
	ExpectedCompletionDate *time.Time `json:"expectedCompletionDate"`
}

// SearchTrackingRequest mirrors the POST /tracking/search body.
type SearchTrackingRequest struct {
	SearchTerm      string `json:"searchTerm"`
	SchoolID        string `json:"schoolId"`
	DepartmentID    string `json:"departmentId"`
	Status          string `json:"status"`
	CurrentStage    string `json:"currentStage"`
	IsOverdue       *bool  `json:"isOverdue"`
	IsIdeationStage *bool  `json:"isIdeationStage"`
	Page            int    `json:"page"`
	PageSize        int    `json:"pageSize"`
}

// TrackingView is a tracking record enriched with derived metrics.
// Every read endpoint returns this shape.
type TrackingView struct {
	models.TrackingRecord
	workflow.Metrics
}

// TrackingListResponse pairs a page of views with pagination metadata.
type TrackingListResponse struct {
	Items      []TrackingView     `json:"items"`
	Pagination *models.Pagination `json:"pagination"`
}

// NewTrackingView builds the read projection for one record.
func NewTrackingView(record *models.TrackingRecord, now time.Time) TrackingView {
	return TrackingView{
		TrackingRecord: *record,
		Metrics:        workflow.ComputeMetrics(record, now),
	}
}

// NewTrackingViews builds projections for a result page.
func NewTrackingViews(records []models.TrackingRecord, now time.Time) []TrackingView {
	views := make([]TrackingView, 0, len(records))
	for i := range records {
		views = append(views, NewTrackingView(&records[i], now))
	}
	return views
}
