package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davmuu/curriculum-tracking-api/internal/dto"
	"github.com/davmuu/curriculum-tracking-api/internal/middleware"
	"github.com/davmuu/curriculum-tracking-api/internal/models"
	"github.com/davmuu/curriculum-tracking-api/internal/service"
	appErrors "github.com/davmuu/curriculum-tracking-api/pkg/errors"
)

type fakeTrackingSrv struct {
	view       *dto.TrackingView
	viewHit    bool
	viewErr    error
	list       *dto.TrackingListResponse
	listErr    error
	lastFilter models.TrackingFilter
	lastAction dto.StageActionRequest
	actionErr  error
}

func (f *fakeTrackingSrv) Initiate(_ context.Context, req dto.InitiateTrackingRequest, docs []models.DocumentRef, actor *models.JWTClaims) (*dto.TrackingView, error) {
	return f.view, f.viewErr
}

func (f *fakeTrackingSrv) ApplyAction(_ context.Context, req dto.StageActionRequest, docs []models.DocumentRef, actor *models.JWTClaims) (*dto.TrackingView, error) {
	f.lastAction = req
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	return f.view, nil
}

func (f *fakeTrackingSrv) Get(context.Context, string) (*dto.TrackingView, bool, error) {
	return f.view, f.viewHit, f.viewErr
}

func (f *fakeTrackingSrv) List(_ context.Context, filter models.TrackingFilter) (*dto.TrackingListResponse, error) {
	f.lastFilter = filter
	return f.list, f.listErr
}

func (f *fakeTrackingSrv) Search(context.Context, dto.SearchTrackingRequest) (*dto.TrackingListResponse, error) {
	return f.list, f.listErr
}

func (f *fakeTrackingSrv) UpdateMetadata(_ context.Context, trackingID string, req dto.UpdateTrackingRequest, actor *models.JWTClaims) (*dto.TrackingView, error) {
	return f.view, f.viewErr
}

func (f *fakeTrackingSrv) Deactivate(context.Context, string, *models.JWTClaims) error {
	return f.viewErr
}

func (f *fakeTrackingSrv) Reactivate(context.Context, string, *models.JWTClaims) error {
	return f.viewErr
}

func (f *fakeTrackingSrv) Assign(context.Context, string, string, *models.JWTClaims) error {
	return f.viewErr
}

type fakeStatsSrv struct {
	stats *dto.TrackingStatistics
	hit   bool
	err   error
}

func (f *fakeStatsSrv) Statistics(context.Context) (*dto.TrackingStatistics, bool, error) {
	return f.stats, f.hit, f.err
}

type fakeDocumentStore struct{}

func (f *fakeDocumentStore) Store(context.Context, string, models.Stage, models.DocumentType, service.DocumentUpload, *models.JWTClaims) (*models.Document, error) {
	return &models.Document{ID: "doc-1"}, nil
}

func (f *fakeDocumentStore) Upload(context.Context, string, models.Stage, models.DocumentType, service.DocumentUpload, *models.JWTClaims) (*models.Document, error) {
	return &models.Document{ID: "doc-1"}, nil
}

func sampleView() *dto.TrackingView {
	record := &models.TrackingRecord{
		TrackingID:   "TRK-1",
		CurriculumID: "CURR-1",
		CurrentStage: models.StageSchoolBoard,
		CurrentStatus: models.StatusUnderReview,
		IsActive:     true,
		CreatedAt:    time.Now().UTC().Add(-48 * time.Hour),
		UpdatedAt:    time.Now().UTC(),
	}
	view := dto.NewTrackingView(record, time.Now().UTC())
	return &view
}

func newTrackingHandlerForTest(srv *fakeTrackingSrv, stats *fakeStatsSrv) *TrackingHandler {
	return NewTrackingHandler(srv, stats, &fakeDocumentStore{})
}

func TestTrackingHandlerActionRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTrackingHandlerForTest(&fakeTrackingSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/tracking/action", nil)

	handler.Action(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrackingHandlerActionSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeTrackingSrv{view: sampleView()}
	handler := newTrackingHandlerForTest(srv, nil)

	form := url.Values{}
	form.Set("trackingId", "TRK-1")
	form.Set("action", "APPROVE")
	form.Set("notes", "looks good")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/tracking/action", strings.NewReader(form.Encode()))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleReviewer})

	handler.Action(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TRK-1", srv.lastAction.TrackingID)
	assert.Equal(t, "APPROVE", srv.lastAction.Action)
}

func TestTrackingHandlerActionWorkflowRejection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeTrackingSrv{actionErr: appErrors.ErrFeedbackRequired}
	handler := newTrackingHandlerForTest(srv, nil)

	form := url.Values{}
	form.Set("trackingId", "TRK-1")
	form.Set("action", "REJECT")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/tracking/action", strings.NewReader(form.Encode()))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleReviewer})

	handler.Action(c)

	assert.Equal(t, appErrors.ErrFeedbackRequired.Status, rec.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, appErrors.ErrFeedbackRequired.Code, envelope.Error.Code)
}

func TestTrackingHandlerGetIncludesCacheMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTrackingHandlerForTest(&fakeTrackingSrv{view: sampleView(), viewHit: true}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tracking/TRK-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "TRK-1"}}

	handler.Get(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data map[string]interface{} `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, "TRK-1", envelope.Data["trackingId"])
}

func TestTrackingHandlerByStageUnknownStage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTrackingHandlerForTest(&fakeTrackingSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tracking/stage/NOT_A_STAGE", nil)
	c.Params = gin.Params{{Key: "stage", Value: "NOT_A_STAGE"}}

	handler.ByStage(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackingHandlerBySchoolFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeTrackingSrv{list: &dto.TrackingListResponse{Items: []dto.TrackingView{*sampleView()}}}
	handler := newTrackingHandlerForTest(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tracking/school/school-1?page=2&size=10", nil)
	c.Params = gin.Params{{Key: "id", Value: "school-1"}}

	handler.BySchool(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "school-1", srv.lastFilter.SchoolID)
	assert.Equal(t, 2, srv.lastFilter.Page)
	assert.Equal(t, 10, srv.lastFilter.PageSize)
	assert.True(t, srv.lastFilter.ActiveOnly)
}

func TestTrackingHandlerStatistics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stats := &fakeStatsSrv{stats: &dto.TrackingStatistics{TotalActive: 4}, hit: false}
	handler := newTrackingHandlerForTest(&fakeTrackingSrv{}, stats)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tracking/statistics", nil)

	handler.Statistics(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data map[string]interface{} `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, float64(4), envelope.Data["totalActive"])
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}
