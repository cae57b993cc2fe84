package workflow

import (
	"strings"
	"time"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
)

// ActionPayload carries the caller-supplied inputs for one transition.
// Actor identity comes from the authentication layer; the engine never
// resolves identities itself.
type ActionPayload struct {
	Feedback      string
	Notes         string
	Documents     []models.DocumentRef
	ReturnToStage models.Stage
	Actor         string
}

// Engine validates and applies workflow actions. It is the sole writer
// of stage and status transitions.
type Engine struct {
	now func() time.Time
}

// NewEngine constructs an engine. A nil clock defaults to time.Now;
// tests inject a fixed clock for deterministic output.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Apply validates the action against the record and, on success,
// returns a new record with the transition applied and an audit entry
// appended. The input record is never mutated: all validation happens
// first, then effects run on a deep copy.
func (e *Engine) Apply(record *models.TrackingRecord, action models.WorkflowAction, payload ActionPayload) (*models.TrackingRecord, error) {
	if record == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tracking record is required")
	}
	current := record.CurrentStageRecord()
	if current == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tracking record has no entry for its current stage")
	}

	// Precondition order is fixed: inactive wins over everything,
	// then state, then return target, then feedback.
	if !record.IsActive {
		return nil, appErrors.ErrTrackingInactive
	}

	switch action {
	case models.ActionApprove, models.ActionReject, models.ActionHold, models.ActionReturn:
		if current.Status != models.StatusUnderReview && current.Status != models.StatusOnHold {
			return nil, appErrors.ErrInvalidStateForAction
		}
	case models.ActionResume:
		if current.Status != models.StatusOnHold {
			return nil, appErrors.ErrInvalidStateForAction
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown workflow action")
	}

	if action == models.ActionReturn && !IsValidReturn(record.CurrentStage, payload.ReturnToStage) {
		return nil, appErrors.ErrIllegalReturnTarget
	}

	if action == models.ActionReject || action == models.ActionReturn {
		if strings.TrimSpace(payload.Feedback) == "" {
			return nil, appErrors.ErrFeedbackRequired
		}
	}

	now := e.now().UTC()
	next := record.Clone()
	fromStage := next.CurrentStage
	stage := next.Stages[fromStage]

	attachDocuments(stage, payload.Documents, now)
	if note := strings.TrimSpace(payload.Notes); note != "" {
		appendText(&stage.Notes, note)
	}

	switch action {
	case models.ActionApprove:
		stage.Status = models.StatusCompleted
		stage.CompletedAt = &now
		if target, ok := NextStage(fromStage); ok {
			openStage(next, target, now)
			next.CurrentStage = target
			next.CurrentStatus = models.StatusUnderReview
		} else {
			next.CurrentStatus = models.StatusCompleted
			next.IsCompleted = true
		}

	case models.ActionReject:
		stage.Status = models.StatusRejected
		appendText(&stage.Feedback, payload.Feedback)
		next.CurrentStatus = models.StatusRejected

	case models.ActionHold:
		stage.Status = models.StatusOnHold
		next.CurrentStatus = models.StatusOnHold

	case models.ActionResume:
		stage.Status = models.StatusUnderReview
		next.CurrentStatus = models.StatusUnderReview

	case models.ActionReturn:
		stage.Status = models.StatusRejected
		appendText(&stage.Feedback, payload.Feedback)
		openStage(next, payload.ReturnToStage, now)
		next.CurrentStage = payload.ReturnToStage
		next.CurrentStatus = models.StatusUnderReview
	}

	next.History = append(next.History, models.AuditEntry{
		Timestamp: now,
		Action:    action,
		FromStage: fromStage,
		ToStage:   next.CurrentStage,
		Actor:     payload.Actor,
	})
	next.UpdatedAt = now
	return next, nil
}

// openStage reopens (or first opens) the target stage for review while
// preserving its accumulated documents, notes, and feedback.
func openStage(record *models.TrackingRecord, target models.Stage, now time.Time) {
	rec := record.Stages[target]
	if rec == nil {
		rec = &models.StageRecord{}
		record.Stages[target] = rec
	}
	rec.Status = models.StatusUnderReview
	rec.StartedAt = &now
	rec.CompletedAt = nil
}

// attachDocuments appends payload documents to the pre-transition
// stage. A document with the same filename and type as an existing one
// continues that document's version sequence; anything else starts at 1.
func attachDocuments(stage *models.StageRecord, docs []models.DocumentRef, now time.Time) {
	for _, doc := range docs {
		if doc.UploadedAt.IsZero() {
			doc.UploadedAt = now
		}
		doc.VersionNumber = 1
		for _, existing := range stage.Documents {
			if existing.OriginalFilename == doc.OriginalFilename && existing.DocumentType == doc.DocumentType && existing.VersionNumber >= doc.VersionNumber {
				doc.VersionNumber = existing.VersionNumber + 1
			}
		}
		stage.Documents = append(stage.Documents, doc)
	}
}

func appendText(dest **string, text string) {
	if *dest == nil || strings.TrimSpace(**dest) == "" {
		v := text
		*dest = &v
		return
	}
	v := **dest + "\n" + text
	*dest = &v
}

// NewTrackingRecord builds a fresh aggregate at Initiation/UnderReview
// with every stage pre-seeded as pending, which keeps the stage map
// shape stable for the life of the record.
func NewTrackingRecord(trackingID, curriculumID, initiatedBy string, metadata models.TrackingMetadata, now time.Time) *models.TrackingRecord {
	now = now.UTC()
	stages := make(models.StageMap, len(models.StageSequence))
	for _, s := range models.StageSequence {
		stages[s] = &models.StageRecord{Status: models.StatusPending}
	}
	first := stages[models.StageInitiation]
	first.Status = models.StatusUnderReview
	first.StartedAt = &now

	return &models.TrackingRecord{
		TrackingID:    trackingID,
		CurriculumID:  curriculumID,
		CurrentStage:  models.StageInitiation,
		CurrentStatus: models.StatusUnderReview,
		IsActive:      true,
		Stages:        stages,
		History:       models.AuditTrail{},
		Metadata:      metadata,
		SchoolID:      metadata.SchoolID,
		DepartmentID:  metadata.DepartmentID,
		InitiatedBy:   initiatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
