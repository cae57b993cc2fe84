package models

import "strings"

// Stage enumerates the ordered approval phases a curriculum passes through.
type Stage string

const (
	StageInitiation     Stage = "INITIATION"
	StageSchoolBoard    Stage = "SCHOOL_BOARD"
	StageDeanCommittee  Stage = "DEAN_COMMITTEE"
	StageSenate         Stage = "SENATE"
	StageQaReview       Stage = "QA_REVIEW"
	StageViceChancellor Stage = "VICE_CHANCELLOR"
	StageCueReview      Stage = "CUE_REVIEW"
	StageSiteInspection Stage = "SITE_INSPECTION"
)

// StageSequence is the canonical forward order. Index defines progress.
var StageSequence = []Stage{
	StageInitiation,
	StageSchoolBoard,
	StageDeanCommittee,
	StageSenate,
	StageQaReview,
	StageViceChancellor,
	StageCueReview,
	StageSiteInspection,
}

var stageIndex = func() map[Stage]int {
	m := make(map[Stage]int, len(StageSequence))
	for i, s := range StageSequence {
		m[s] = i
	}
	return m
}()

// Index returns the zero-based position of the stage in the sequence,
// or -1 when the stage is unknown.
func (s Stage) Index() int {
	if i, ok := stageIndex[s]; ok {
		return i
	}
	return -1
}

// Valid reports whether the stage belongs to the canonical sequence.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// IsTerminal reports whether the stage is the last one in the sequence.
func (s Stage) IsTerminal() bool {
	return s == StageSequence[len(StageSequence)-1]
}

// Status is the disposition of a single stage record. Only the current
// stage carries a live status; earlier stages end up COMPLETED or
// REJECTED and later stages stay PENDING until reached.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusUnderReview     Status = "UNDER_REVIEW"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusOnHold          Status = "ON_HOLD"
	StatusCompleted       Status = "COMPLETED"
	StatusRejected        Status = "REJECTED"
)

// stageAliases maps the wider legacy API vocabulary onto the canonical
// eight stages. The legacy dashboard exposed a superset of names; every
// alias collapses onto exactly one stage and the table is the single
// place that knowledge lives.
var stageAliases = map[string]Stage{
	"INITIATION":         StageInitiation,
	"IDEATION":           StageInitiation,
	"SCHOOL_BOARD":       StageSchoolBoard,
	"DEAN_COMMITTEE":     StageDeanCommittee,
	"SENATE":             StageSenate,
	"QA_REVIEW":          StageQaReview,
	"VICE_CHANCELLOR":    StageViceChancellor,
	"CUE_REVIEW":         StageCueReview,
	"CUE_EXTERNAL_AUDIT": StageCueReview,
	"SITE_INSPECTION":    StageSiteInspection,
	"ACCREDITED":         StageSiteInspection,
}

// statusAliases maps legacy status vocabulary onto the canonical set.
// PENDING_APPROVAL and APPROVED both surface as PENDING_APPROVAL.
var statusAliases = map[string]Status{
	"PENDING":          StatusPending,
	"UNDER_REVIEW":     StatusUnderReview,
	"PENDING_APPROVAL": StatusPendingApproval,
	"APPROVED":         StatusPendingApproval,
	"ON_HOLD":          StatusOnHold,
	"COMPLETED":        StatusCompleted,
	"REJECTED":         StatusRejected,
}

// ParseStage resolves an API stage value (canonical or legacy alias)
// to its canonical stage. The boolean is false for unknown values.
func ParseStage(raw string) (Stage, bool) {
	s, ok := stageAliases[strings.ToUpper(strings.TrimSpace(raw))]
	return s, ok
}

// ParseStatus resolves an API status value to its canonical status.
func ParseStatus(raw string) (Status, bool) {
	s, ok := statusAliases[strings.ToUpper(strings.TrimSpace(raw))]
	return s, ok
}

// DocumentType categorises uploaded workflow documents.
type DocumentType string

const (
	DocumentTypeSupporting         DocumentType = "SUPPORTING_DOCUMENTS"
	DocumentTypeApproval           DocumentType = "APPROVAL_DOCUMENTS"
	DocumentTypeReview             DocumentType = "REVIEW_DOCUMENTS"
	DocumentTypeCurriculumProposal DocumentType = "CURRICULUM_PROPOSAL"
	DocumentTypeAssessment         DocumentType = "ASSESSMENT_DOCUMENTS"
	DocumentTypeExternalReview     DocumentType = "EXTERNAL_REVIEW"
)

// ParseDocumentType validates an API document type value.
func ParseDocumentType(raw string) (DocumentType, bool) {
	switch DocumentType(strings.ToUpper(strings.TrimSpace(raw))) {
	case DocumentTypeSupporting:
		return DocumentTypeSupporting, true
	case DocumentTypeApproval:
		return DocumentTypeApproval, true
	case DocumentTypeReview:
		return DocumentTypeReview, true
	case DocumentTypeCurriculumProposal:
		return DocumentTypeCurriculumProposal, true
	case DocumentTypeAssessment:
		return DocumentTypeAssessment, true
	case DocumentTypeExternalReview:
		return DocumentTypeExternalReview, true
	}
	return "", false
}

// Priority buckets a record for triage on the dashboard.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)
