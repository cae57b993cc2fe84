package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowAction enumerates the verbs accepted by the transition engine.
type WorkflowAction string

const (
	ActionApprove WorkflowAction = "APPROVE"
	ActionReject  WorkflowAction = "REJECT"
	ActionHold    WorkflowAction = "HOLD"
	ActionResume  WorkflowAction = "RESUME"
	ActionReturn  WorkflowAction = "RETURN"
)

// ParseWorkflowAction validates an API action value.
func ParseWorkflowAction(raw string) (WorkflowAction, bool) {
	switch WorkflowAction(raw) {
	case ActionApprove, ActionReject, ActionHold, ActionResume, ActionReturn:
		return WorkflowAction(raw), true
	}
	return "", false
}

// DocumentRef is one attached document version inside a stage record.
type DocumentRef struct {
	ID               string       `json:"id"`
	OriginalFilename string       `json:"originalFilename"`
	DocumentType     DocumentType `json:"documentType"`
	FileSize         int64        `json:"fileSize"`
	UploadedBy       string       `json:"uploadedBy"`
	UploadedAt       time.Time    `json:"uploadedAt"`
	VersionNumber    int          `json:"versionNumber"`
}

// StageRecord is the per-stage snapshot inside a tracking record.
type StageRecord struct {
	Status      Status        `json:"status"`
	AssignedTo  *string       `json:"assignedTo,omitempty"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Notes       *string       `json:"notes,omitempty"`
	Feedback    *string       `json:"feedback,omitempty"`
	Documents   []DocumentRef `json:"documents,omitempty"`
}

// AuditEntry records one successful workflow transition on the record.
// The history list is append-only.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    WorkflowAction `json:"action"`
	FromStage Stage          `json:"fromStage"`
	ToStage   Stage          `json:"toStage"`
	Actor     string         `json:"actor"`
}

// StageMap holds every stage's record, persisted as a JSONB column.
type StageMap map[Stage]*StageRecord

// Value marshals the stage map for persistence.
func (m StageMap) Value() (driver.Value, error) {
	if m == nil {
		m = StageMap{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal stage map: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB payload into the stage map.
func (m *StageMap) Scan(value interface{}) error {
	return scanJSON(value, m, "StageMap")
}

// AuditTrail is the append-only transition history, persisted as JSONB.
type AuditTrail []AuditEntry

// Value marshals the trail for persistence.
func (t AuditTrail) Value() (driver.Value, error) {
	if t == nil {
		t = AuditTrail{}
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal audit trail: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB payload into the trail.
func (t *AuditTrail) Scan(value interface{}) error {
	return scanJSON(value, t, "AuditTrail")
}

func scanJSON(value, dest interface{}, what string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for %s", value, what)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return nil
}

// TrackingMetadata carries curriculum attributes set at initiation and
// editable only through the explicit metadata update operation.
type TrackingMetadata struct {
	ProposedName      string     `json:"proposedName"`
	ProposedCode      string     `json:"proposedCode"`
	DurationSemesters int        `json:"durationSemesters"`
	SchoolID          string     `json:"schoolId"`
	DepartmentID      string     `json:"departmentId"`
	AcademicLevelID   string     `json:"academicLevelId"`
	Description       string     `json:"description"`
	EffectiveDate     *time.Time `json:"effectiveDate,omitempty"`
	ExpiryDate        *time.Time `json:"expiryDate,omitempty"`
}

// Value marshals metadata for persistence.
func (md TrackingMetadata) Value() (driver.Value, error) {
	data, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("marshal tracking metadata: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB payload into metadata.
func (md *TrackingMetadata) Scan(value interface{}) error {
	return scanJSON(value, md, "TrackingMetadata")
}

// TrackingRecord is the aggregate root for one curriculum's journey
// through the approval workflow.
type TrackingRecord struct {
	TrackingID   string `db:"tracking_id" json:"trackingId"`
	CurriculumID string `db:"curriculum_id" json:"curriculumId"`

	CurrentStage  Stage  `db:"current_stage" json:"currentStage"`
	CurrentStatus Status `db:"current_status" json:"currentStatus"`
	IsActive      bool   `db:"is_active" json:"isActive"`
	IsCompleted   bool   `db:"is_completed" json:"isCompleted"`

	Stages  StageMap   `db:"stages" json:"stages"`
	History AuditTrail `db:"history" json:"history"`

	Metadata TrackingMetadata `db:"metadata" json:"metadata"`

	// Denormalised copies of metadata fields used for filtering.
	SchoolID     string `db:"school_id" json:"-"`
	DepartmentID string `db:"department_id" json:"-"`

	InitiatedBy string  `db:"initiated_by" json:"initiatedBy"`
	AssignedTo  *string `db:"assigned_to" json:"assignedTo,omitempty"`

	CreatedAt              time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updatedAt"`
	ExpectedCompletionDate *time.Time `db:"expected_completion_date" json:"expectedCompletionDate,omitempty"`
}

// CurrentStageRecord returns the record for the current stage,
// or nil when the stage map is missing the entry.
func (r *TrackingRecord) CurrentStageRecord() *StageRecord {
	if r == nil || r.Stages == nil {
		return nil
	}
	return r.Stages[r.CurrentStage]
}

// Clone deep-copies the record so the engine can mutate freely while
// keeping the caller's snapshot intact on validation failure.
func (r *TrackingRecord) Clone() *TrackingRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Stages = make(StageMap, len(r.Stages))
	for stage, rec := range r.Stages {
		if rec == nil {
			continue
		}
		recCopy := *rec
		recCopy.AssignedTo = copyStringPtr(rec.AssignedTo)
		recCopy.StartedAt = copyTimePtr(rec.StartedAt)
		recCopy.CompletedAt = copyTimePtr(rec.CompletedAt)
		recCopy.Notes = copyStringPtr(rec.Notes)
		recCopy.Feedback = copyStringPtr(rec.Feedback)
		recCopy.Documents = append([]DocumentRef(nil), rec.Documents...)
		cp.Stages[stage] = &recCopy
	}
	cp.History = append(AuditTrail(nil), r.History...)
	cp.AssignedTo = copyStringPtr(r.AssignedTo)
	cp.ExpectedCompletionDate = copyTimePtr(r.ExpectedCompletionDate)
	cp.Metadata.EffectiveDate = copyTimePtr(r.Metadata.EffectiveDate)
	cp.Metadata.ExpiryDate = copyTimePtr(r.Metadata.ExpiryDate)
	return &cp
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TrackingFilter constrains tracking list queries.
type TrackingFilter struct {
	SchoolID     string
	DepartmentID string
	CurrentStage Stage
	Status       Status
	AssignedTo   string
	InitiatedBy  string
	ActiveOnly   bool
	Page         int
	PageSize     int
}

// TrackingSearchCriteria mirrors the search endpoint payload.
type TrackingSearchCriteria struct {
	SearchTerm      string
	SchoolID        string
	DepartmentID    string
	Status          Status
	CurrentStage    Stage
	IsOverdue       *bool
	IsIdeationStage *bool
	Page            int
	PageSize        int
}

// StageCount is one row of the statistics aggregate.
type StageCount struct {
	Stage Stage `db:"current_stage" json:"stage"`
	Count int   `db:"count" json:"count"`
}

// TrackingTotals are the headline statistics counters.
type TrackingTotals struct {
	TotalActive    int `db:"total_active" json:"totalActive"`
	TotalCompleted int `db:"total_completed" json:"totalCompleted"`
	TotalOverdue   int `db:"total_overdue" json:"totalOverdue"`
}
