package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davmuu/curriculum-tracking-api/internal/dto"
	"github.com/davmuu/curriculum-tracking-api/internal/models"
	"github.com/davmuu/curriculum-tracking-api/internal/workflow"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
)

type trackingStoreStub struct {
	records   map[string]*models.TrackingRecord
	updateErr error
}

func newTrackingStoreStub() *trackingStoreStub {
	return &trackingStoreStub{records: map[string]*models.TrackingRecord{}}
}

func (s *trackingStoreStub) Create(ctx context.Context, record *models.TrackingRecord) error {
	s.records[record.TrackingID] = record.Clone()
	return nil
}

func (s *trackingStoreStub) GetByTrackingID(ctx context.Context, trackingID string) (*models.TrackingRecord, error) {
	record, ok := s.records[trackingID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record.Clone(), nil
}

func (s *trackingStoreStub) Update(ctx context.Context, record *models.TrackingRecord, prevUpdatedAt time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	existing, ok := s.records[record.TrackingID]
	if !ok || !existing.UpdatedAt.Equal(prevUpdatedAt) {
		return sql.ErrNoRows
	}
	s.records[record.TrackingID] = record.Clone()
	return nil
}

func (s *trackingStoreStub) List(ctx context.Context, filter models.TrackingFilter) ([]models.TrackingRecord, *models.Pagination, error) {
	var out []models.TrackingRecord
	for _, record := range s.records {
		out = append(out, *record.Clone())
	}
	return out, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(out)}, nil
}

func (s *trackingStoreStub) Search(ctx context.Context, criteria models.TrackingSearchCriteria, now time.Time) ([]models.TrackingRecord, *models.Pagination, error) {
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (s *trackingStoreStub) SetActive(ctx context.Context, trackingID string, active bool, updatedAt time.Time) error {
	record, ok := s.records[trackingID]
	if !ok {
		return sql.ErrNoRows
	}
	record.IsActive = active
	record.UpdatedAt = updatedAt
	return nil
}

func (s *trackingStoreStub) Assign(ctx context.Context, trackingID, userID string, updatedAt time.Time) error {
	record, ok := s.records[trackingID]
	if !ok || !record.IsActive {
		return sql.ErrNoRows
	}
	record.AssignedTo = &userID
	record.UpdatedAt = updatedAt
	return nil
}

type auditLoggerStub struct {
	logs []models.AuditLog
}

func (a *auditLoggerStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, *log)
	return nil
}

var trackingTestClock = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func newTrackingServiceForTest(t *testing.T) (*TrackingService, *trackingStoreStub, *auditLoggerStub) {
	t.Helper()
	store := newTrackingStoreStub()
	audit := &auditLoggerStub{}
	clock := func() time.Time { return trackingTestClock }
	svc := NewTrackingService(store, audit, workflow.NewEngine(clock), nil, nil, zap.NewNop(), clock, time.Minute)
	return svc, store, audit
}

func seedTrackingRecord(store *trackingStoreStub, trackingID string) *models.TrackingRecord {
	record := workflow.NewTrackingRecord(trackingID, "CURR-2025-001", "user-1", models.TrackingMetadata{
		ProposedName:      "BSc Computer Science",
		ProposedCode:      "BSC-CS",
		DurationSemesters: 8,
		SchoolID:          "school-1",
		DepartmentID:      "dept-1",
	}, trackingTestClock.Add(-48*time.Hour))
	store.records[trackingID] = record
	return record
}

func trackingActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleRegistrar}
}

func TestTrackingServiceInitiate(t *testing.T) {
	svc, store, audit := newTrackingServiceForTest(t)

	date := "2025-12-31"
	view, err := svc.Initiate(context.Background(), dto.InitiateTrackingRequest{
		CurriculumID:           "CURR-2025-001",
		ProposedName:           "BSc Computer Science",
		ProposedCode:           "BSC-CS",
		DurationSemesters:      8,
		SchoolID:               "school-1",
		DepartmentID:           "dept-1",
		AcademicLevelID:        "undergraduate",
		ExpectedCompletionDate: &date,
	}, []models.DocumentRef{{ID: "doc-1", OriginalFilename: "proposal.pdf", DocumentType: models.DocumentTypeCurriculumProposal}}, trackingActor())
	require.NoError(t, err)

	assert.Equal(t, models.StageInitiation, view.CurrentStage)
	assert.Equal(t, models.StatusUnderReview, view.CurrentStatus)
	assert.True(t, view.IsActive)
	require.NotNil(t, view.ExpectedCompletionDate)
	assert.Equal(t, 2025, view.ExpectedCompletionDate.Year())

	stored := store.records[view.TrackingID]
	require.NotNil(t, stored)
	require.Len(t, stored.Stages[models.StageInitiation].Documents, 1)
	assert.Equal(t, 1, stored.Stages[models.StageInitiation].Documents[0].VersionNumber)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionTrackingInitiate, audit.logs[0].Action)
}

func TestTrackingServiceInitiateBadDate(t *testing.T) {
	svc, _, _ := newTrackingServiceForTest(t)

	date := "next year"
	_, err := svc.Initiate(context.Background(), dto.InitiateTrackingRequest{
		CurriculumID:           "CURR-2025-001",
		ProposedName:           "BSc Computer Science",
		ProposedCode:           "BSC-CS",
		DurationSemesters:      8,
		SchoolID:               "school-1",
		DepartmentID:           "dept-1",
		AcademicLevelID:        "undergraduate",
		ExpectedCompletionDate: &date,
	}, nil, trackingActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestTrackingServiceApplyActionApprove(t *testing.T) {
	svc, store, audit := newTrackingServiceForTest(t)
	seedTrackingRecord(store, "TRK-1")

	view, err := svc.ApplyAction(context.Background(), dto.StageActionRequest{
		TrackingID: "TRK-1",
		Action:     "APPROVE",
		Notes:      "looks good",
	}, nil, trackingActor())
	require.NoError(t, err)

	assert.Equal(t, models.StageSchoolBoard, view.CurrentStage)
	assert.Equal(t, models.StatusUnderReview, view.CurrentStatus)

	stored := store.records["TRK-1"]
	assert.Equal(t, models.StageSchoolBoard, stored.CurrentStage)
	assert.Equal(t, models.StatusCompleted, stored.Stages[models.StageInitiation].Status)
	require.Len(t, stored.History, 1)
	assert.Equal(t, models.ActionApprove, stored.History[0].Action)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionTrackingTransition, audit.logs[0].Action)
}

func TestTrackingServiceApplyActionConcurrentUpdate(t *testing.T) {
	svc, store, _ := newTrackingServiceForTest(t)
	seedTrackingRecord(store, "TRK-1")
	store.updateErr = sql.ErrNoRows

	_, err := svc.ApplyAction(context.Background(), dto.StageActionRequest{
		TrackingID: "TRK-1",
		Action:     "APPROVE",
	}, nil, trackingActor())
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestTrackingServiceApplyActionEngineRejection(t *testing.T) {
	svc, store, audit := newTrackingServiceForTest(t)
	seedTrackingRecord(store, "TRK-1")

	_, err := svc.ApplyAction(context.Background(), dto.StageActionRequest{
		TrackingID: "TRK-1",
		Action:     "REJECT",
	}, nil, trackingActor())
	require.ErrorIs(t, err, appErrors.ErrFeedbackRequired)

	// Validation failures leave the stored record untouched.
	stored := store.records["TRK-1"]
	assert.Equal(t, models.StageInitiation, stored.CurrentStage)
	assert.Empty(t, stored.History)
	assert.Empty(t, audit.logs)
}

func TestTrackingServiceApplyActionUnknownAction(t *testing.T) {
	svc, store, _ := newTrackingServiceForTest(t)
	seedTrackingRecord(store, "TRK-1")

	_, err := svc.ApplyAction(context.Background(), dto.StageActionRequest{
		TrackingID: "TRK-1",
		Action:     "ESCALATE",
	}, nil, trackingActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestTrackingServiceGetNotFound(t *testing.T) {
	svc, _, _ := newTrackingServiceForTest(t)
	_, _, err := svc.Get(context.Background(), "TRK-missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestTrackingServiceUpdateMetadata(t *testing.T) {
	svc, store, _ := newTrackingServiceForTest(t)
	seedTrackingRecord(store, "TRK-1")

	name := "BSc Software Engineering"
	view, err := svc.UpdateMetadata(context.Background(), "TRK-1", dto.UpdateTrackingRequest{
		ProposedName: &name,
	}, trackingActor())
	require.NoError(t, err)
	assert.Equal(t, name, view.Metadata.ProposedName)
	assert.Equal(t, name, store.records["TRK-1"].Metadata.ProposedName)
}

func TestTrackingServiceUpdateMetadataInvalidDuration(t *testing.T) {
	svc, store, _ := newTrackingServiceForTest(t)
	seedTrackingRecord(store, "TRK-1")

	zero := 0
	_, err := svc.UpdateMetadata(context.Background(), "TRK-1", dto.UpdateTrackingRequest{
		DurationSemesters: &zero,
	}, trackingActor())
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestTrackingServiceDeactivateReactivate(t *testing.T) {
	svc, store, _ := newTrackingServiceForTest(t)
	seedTrackingRecord(store, "TRK-1")

	require.NoError(t, svc.Deactivate(context.Background(), "TRK-1", trackingActor()))
	assert.False(t, store.records["TRK-1"].IsActive)

	require.NoError(t, svc.Reactivate(context.Background(), "TRK-1", trackingActor()))
	assert.True(t, store.records["TRK-1"].IsActive)
}

func TestTrackingServiceAssignMissing(t *testing.T) {
	svc, _, _ := newTrackingServiceForTest(t)
	err := svc.Assign(context.Background(), "TRK-missing", "user-2", trackingActor())
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestTrackingServiceAttachDocument(t *testing.T) {
	svc, store, audit := newTrackingServiceForTest(t)
	seedTrackingRecord(store, "TRK-1")

	err := svc.AttachDocument(context.Background(), "TRK-1", models.DocumentRef{
		ID:               "doc-9",
		OriginalFilename: "minutes.pdf",
		DocumentType:     models.DocumentTypeSupporting,
		VersionNumber:    1,
	}, trackingActor())
	require.NoError(t, err)

	stored := store.records["TRK-1"]
	require.Len(t, stored.Stages[models.StageInitiation].Documents, 1)
	assert.Equal(t, "doc-9", stored.Stages[models.StageInitiation].Documents[0].ID)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionDocumentUpload, audit.logs[0].Action)
}

func TestTrackingServiceSearchUnknownStatus(t *testing.T) {
	svc, _, _ := newTrackingServiceForTest(t)
	_, err := svc.Search(context.Background(), dto.SearchTrackingRequest{Status: "DRAFT"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
