package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davmuu/curriculum-tracking-api/internal/models"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestRecord(t *testing.T) *models.TrackingRecord {
	t.Helper()
	return NewTrackingRecord("trk-1", "cur-1", "user-1", models.TrackingMetadata{
		ProposedName: "BSc Data Science",
		ProposedCode: "DS-400",
		SchoolID:     "school-1",
		DepartmentID: "dept-1",
	}, testNow.Add(-72*time.Hour))
}

// advanceTo approves the record forward until it sits at the wanted stage.
func advanceTo(t *testing.T, engine *Engine, record *models.TrackingRecord, stage models.Stage) *models.TrackingRecord {
	t.Helper()
	for record.CurrentStage != stage {
		next, err := engine.Apply(record, models.ActionApprove, ActionPayload{Actor: "user-1"})
		require.NoError(t, err)
		record = next
	}
	return record
}

func TestApproveAdvancesEveryNonTerminalStage(t *testing.T) {
	engine := NewEngine(fixedClock)
	record := newTestRecord(t)

	for i, stage := range models.StageSequence[:len(models.StageSequence)-1] {
		require.Equal(t, stage, record.CurrentStage)
		next, err := engine.Apply(record, models.ActionApprove, ActionPayload{Actor: "user-1"})
		require.NoError(t, err)

		expected, ok := NextStage(stage)
		require.True(t, ok)
		require.Equal(t, expected, next.CurrentStage, "step %d", i)
		require.Equal(t, models.StatusUnderReview, next.CurrentStatus)

		completed := next.Stages[stage]
		require.Equal(t, models.StatusCompleted, completed.Status)
		require.NotNil(t, completed.CompletedAt)

		opened := next.Stages[expected]
		require.Equal(t, models.StatusUnderReview, opened.Status)
		require.NotNil(t, opened.StartedAt)
		require.Equal(t, testNow, *opened.StartedAt)
		record = next
	}
}

func TestTerminalApproveCompletesRecord(t *testing.T) {
	engine := NewEngine(fixedClock)
	record := advanceTo(t, engine, newTestRecord(t), models.StageSiteInspection)

	done, err := engine.Apply(record, models.ActionApprove, ActionPayload{Actor: "vc-office"})
	require.NoError(t, err)
	require.True(t, done.IsCompleted)
	require.Equal(t, models.StageSiteInspection, done.CurrentStage)
	require.Equal(t, models.StatusCompleted, done.CurrentStatus)
	require.NotNil(t, done.Stages[models.StageSiteInspection].CompletedAt)
}

func TestIllegalReturnTargetRejected(t *testing.T) {
	engine := NewEngine(fixedClock)
	record := advanceTo(t, engine, newTestRecord(t), models.StageQaReview)

	_, err := engine.Apply(record, models.ActionReturn, ActionPayload{
		Feedback:      "missing benchmarking evidence",
		ReturnToStage: models.StageDeanCommittee,
		Actor:         "qa-1",
	})
	require.ErrorIs(t, err, appErrors.ErrIllegalReturnTarget)

	// Only School Board is reachable from QA Review.
	back, err := engine.Apply(record, models.ActionReturn, ActionPayload{
		Feedback:      "missing benchmarking evidence",
		ReturnToStage: models.StageSchoolBoard,
		Actor:         "qa-1",
	})
	require.NoError(t, err)
	require.Equal(t, models.StageSchoolBoard, back.CurrentStage)
}

func TestFailedActionLeavesInputUntouched(t *testing.T) {
	engine := NewEngine(fixedClock)
	record := newTestRecord(t)
	record.IsActive = false

	beforeStage := record.CurrentStage
	beforeStatus := record.CurrentStatus
	beforeUpdated := record.UpdatedAt

	_, err := engine.Apply(record, models.ActionApprove, ActionPayload{Actor: "user-1"})
	require.ErrorIs(t, err, appErrors.ErrTrackingInactive)
	require.Equal(t, beforeStage, record.CurrentStage)
	require.Equal(t, beforeStatus, record.CurrentStatus)
	require.Equal(t, beforeUpdated, record.UpdatedAt)
	require.Empty(t, record.History)
}

func TestRejectRequiresFeedback(t *testing.T) {
	engine := NewEngine(fixedClock)
	record := newTestRecord(t)

	_, err := engine.Apply(record, models.ActionReject, ActionPayload{Feedback: "  ", Actor: "board-1"})
	require.ErrorIs(t, err, appErrors.ErrFeedbackRequired)

	rejected, err := engine.Apply(record, models.ActionReject, ActionPayload{Feedback: "duplicate programme", Actor: "board-1"})
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.CurrentStatus)
	require.Equal(t, models.StageInitiation, rejected.CurrentStage, "reject does not advance")
	require.Equal(t, "duplicate programme", *rejected.Stages[models.StageInitiation].Feedback)
}

func TestScenarioInitiationApprove(t *testing.T) {
	engine := NewEngine(fixedClock)
	record := newTestRecord(t)

	next, err := engine.Apply(record, models.ActionApprove, ActionPayload{Actor: "user-1"})
	require.NoError(t, err)
	require.Equal(t, models.StageSchoolBoard, next.CurrentStage)
	require.Equal(t, models.StatusCompleted, next.Stages[models.StageInitiation].Status)
	require.Equal(t, models.StatusUnderReview, next.Stages[models.StageSchoolBoard].Status)
	require.Equal(t, testNow, *next.Stages[models.StageSchoolBoard].StartedAt)
	require.Equal(t, testNow, next.UpdatedAt)
}

func TestScenarioSenateReturnToDeanCommittee(t *testing.T) {
	engine := NewEngine(fixedClock)
	record := advanceTo(t, engine, newTestRecord(t), models.StageSenate)
	priorDocs := len(record.Stages[models.StageDeanCommittee].Documents)

	back, err := engine.Apply(record, models.ActionReturn, ActionPayload{
		Feedback:      "needs revision",
		ReturnToStage: models.StageDeanCommittee,
		Actor:         "senate-1",
	})
	require.NoError(t, err)
	require.Equal(t, models.StageDeanCommittee, back.CurrentStage)

	senate := back.Stages[models.StageSenate]
	require.Equal(t, models.StatusRejected, senate.Status)
	require.Equal(t, "needs revision", *senate.Feedback)

	dean := back.Stages[models.StageDeanCommittee]
	require.Equal(t, models.StatusUnderReview, dean.Status)
	require.Equal(t, testNow, *dean.StartedAt)
	require.Nil(t, dean.CompletedAt)
	require.Len(t, dean.Documents, priorDocs, "return preserves prior documents")
}

func TestScenarioHoldResumeResume(t *testing.T) {
	engine := NewEngine(fixedClock)
	record := advanceTo(t, engine, newTestRecord(t), models.StageDeanCommittee)

	held, err := engine.Apply(record, models.ActionHold, ActionPayload{Actor: "dean-1"})
	require.NoError(t, err)
	require.Equal(t, models.StatusOnHold, held.CurrentStatus)

	resumed, err := engine.Apply(held, models.ActionResume, ActionPayload{Actor: "dean-1"})
	require.NoError(t, err)
	require.Equal(t, models.StatusUnderReview, resumed.CurrentStatus)

	_, err = engine.Apply(resumed, models.ActionResume, ActionPayload{Actor: "dean-1"})
	require.ErrorIs(t, err, appErrors.ErrInvalidStateForAction)
}

func TestActionAttachesDocumentsToPreTransitionStage(t *testing.T) {
	engine := NewEngine(fixedClock)
	record := newTestRecord(t)

	doc := models.DocumentRef{
		ID:               "doc-1",
		OriginalFilename: "proposal.pdf",
		DocumentType:     models.DocumentTypeCurriculumProposal,
		FileSize:         2048,
		UploadedBy:       "user-1",
	}
	next, err := engine.Apply(record, models.ActionApprove, ActionPayload{Actor: "user-1", Documents: []models.DocumentRef{doc}})
	require.NoError(t, err)

	attached := next.Stages[models.StageInitiation].Documents
	require.Len(t, attached, 1)
	require.Equal(t, 1, attached[0].VersionNumber)
	require.Equal(t, testNow, attached[0].UploadedAt)
	require.Empty(t, next.Stages[models.StageSchoolBoard].Documents)

	// Re-uploading the same logical document bumps its version.
	held, err := engine.Apply(next, models.ActionHold, ActionPayload{Actor: "board-1", Documents: []models.DocumentRef{{
		ID:               "doc-2",
		OriginalFilename: "minutes.docx",
		DocumentType:     models.DocumentTypeReview,
		UploadedBy:       "board-1",
	}}})
	require.NoError(t, err)
	resumed, err := engine.Apply(held, models.ActionResume, ActionPayload{Actor: "board-1", Documents: []models.DocumentRef{{
		ID:               "doc-3",
		OriginalFilename: "minutes.docx",
		DocumentType:     models.DocumentTypeReview,
		UploadedBy:       "board-1",
	}}})
	require.NoError(t, err)

	board := resumed.Stages[models.StageSchoolBoard].Documents
	require.Len(t, board, 2)
	require.Equal(t, 1, board[0].VersionNumber)
	require.Equal(t, 2, board[1].VersionNumber)
}

func TestHistoryAppendsOnEverySuccess(t *testing.T) {
	engine := NewEngine(fixedClock)
	record := newTestRecord(t)

	next, err := engine.Apply(record, models.ActionApprove, ActionPayload{Actor: "user-1"})
	require.NoError(t, err)
	require.Len(t, next.History, 1)
	entry := next.History[0]
	require.Equal(t, models.ActionApprove, entry.Action)
	require.Equal(t, models.StageInitiation, entry.FromStage)
	require.Equal(t, models.StageSchoolBoard, entry.ToStage)
	require.Equal(t, "user-1", entry.Actor)
	require.Equal(t, testNow, entry.Timestamp)
}
