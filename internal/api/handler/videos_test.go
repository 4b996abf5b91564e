package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/explainer/internal/events"
	"github.com/kiranshivaraju/explainer/internal/orchestrator"
	"github.com/kiranshivaraju/explainer/internal/store"
	"github.com/kiranshivaraju/explainer/internal/video"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock VideoService ---

type mockVideoService struct {
	submitted  []video.SubmitParams
	submitErr  error
	status     *models.JobStatus
	statusErr  error
	jobs       []*models.VideoJob
	total      int
	listErr    error
	lastFilter store.VideoJobFilter
	events     []events.Event
	eventsErr  error
	lastSince  int64
	cancelErr  error
	cancelled  []uuid.UUID
}

func (m *mockVideoService) Submit(_ context.Context, p video.SubmitParams) (*models.VideoJob, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	m.submitted = append(m.submitted, p)
	return &models.VideoJob{ID: uuid.New(), State: models.StateNotStarted}, nil
}

func (m *mockVideoService) Status(_ context.Context, _ uuid.UUID) (*models.JobStatus, error) {
	return m.status, m.statusErr
}

func (m *mockVideoService) List(_ context.Context, f store.VideoJobFilter) ([]*models.VideoJob, int, error) {
	m.lastFilter = f
	return m.jobs, m.total, m.listErr
}

func (m *mockVideoService) Events(_ uuid.UUID, since int64) ([]events.Event, error) {
	m.lastSince = since
	if m.eventsErr != nil {
		return nil, m.eventsErr
	}
	var out []events.Event
	for _, ev := range m.events {
		if ev.Seq > since {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockVideoService) Cancel(_ context.Context, id uuid.UUID) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.cancelled = append(m.cancelled, id)
	return nil
}

// --- helpers ---

func jsonReq(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(method, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// serveWithParam routes the request through chi so URL params resolve.
func serveWithParam(h http.HandlerFunc, method, pattern string, r *http.Request) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.MethodFunc(method, pattern, h)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Data
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) (string, map[string]any) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Error.Code, env.Error.Details
}

// --- POST /api/v1/videos ---

func TestSubmitVideo_General(t *testing.T) {
	svc := &mockVideoService{}
	rec := httptest.NewRecorder()

	NewSubmitVideoHandler(svc)(rec, jsonReq(t, http.MethodPost, "/api/v1/videos", map[string]any{
		"question":       "  What is recursion?  ",
		"duration_limit": 45,
	}))

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, "NOT_STARTED", data["state"])
	assert.True(t, strings.HasPrefix(data["status_url"].(string), "/api/v1/videos/"))
	assert.True(t, strings.HasSuffix(data["events_url"].(string), "/events"))

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "What is recursion?", svc.submitted[0].Question)
	assert.Equal(t, video.ContextGeneral, svc.submitted[0].Kind)
	assert.Equal(t, 45*time.Second, svc.submitted[0].DurationLimit)
}

func TestSubmitVideo_PromptAlias(t *testing.T) {
	svc := &mockVideoService{}
	rec := httptest.NewRecorder()

	NewSubmitVideoHandler(svc)(rec, jsonReq(t, http.MethodPost, "/api/v1/videos", map[string]any{
		"prompt": "Explain photosynthesis",
	}))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "Explain photosynthesis", svc.submitted[0].Question)
	assert.Zero(t, svc.submitted[0].DurationLimit)
}

func TestSubmitVideo_ChapterContext(t *testing.T) {
	svc := &mockVideoService{}
	rec := httptest.NewRecorder()

	NewSubmitVideoHandler(svc)(rec, jsonReq(t, http.MethodPost, "/api/v1/videos", map[string]any{
		"question": "Why does the derivative of x^2 equal 2x?",
		"context": map[string]any{
			"type":           "chapter",
			"course_title":   "Calculus I",
			"course_grade":   "11th grade",
			"chapter_title":  "Derivatives",
			"chapter_number": 3,
			"total_chapters": 10,
		},
	}))

	require.Equal(t, http.StatusAccepted, rec.Code)
	p := svc.submitted[0]
	assert.Equal(t, video.ContextChapter, p.Kind)
	require.NotNil(t, p.Chapter)
	assert.Equal(t, "Derivatives", p.Chapter.ChapterTitle)
	assert.Equal(t, 10, p.Chapter.TotalChapters)
}

func TestSubmitVideo_ExerciseContext(t *testing.T) {
	svc := &mockVideoService{}
	rec := httptest.NewRecorder()

	NewSubmitVideoHandler(svc)(rec, jsonReq(t, http.MethodPost, "/api/v1/videos", map[string]any{
		"question": "Why is my answer wrong?",
		"context": map[string]any{
			"type":            "exercise",
			"chapter_title":   "Fractions",
			"exercise_number": 4,
			"problem_text":    "1/2 + 1/4 = ?",
			"options":         []string{"2/6", "3/4", "1/8", "2/4"},
			"user_answer":     0,
			"correct_answer":  1,
		},
	}))

	require.Equal(t, http.StatusAccepted, rec.Code)
	p := svc.submitted[0]
	assert.Equal(t, video.ContextExercise, p.Kind)
	require.NotNil(t, p.Exercise)
	require.NotNil(t, p.Exercise.UserAnswer)
	assert.Equal(t, 0, *p.Exercise.UserAnswer)
	assert.Len(t, p.Exercise.Options, 4)
}

func TestSubmitVideo_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing question", map[string]any{}, "question"},
		{"blank question", map[string]any{"question": "   "}, "question"},
		{"negative duration", map[string]any{"question": "q", "duration_limit": -1}, "duration_limit"},
		{"duration too long", map[string]any{"question": "q", "duration_limit": MaxDurationLimit + 1}, "duration_limit"},
		{"unknown context", map[string]any{"question": "q", "context": map[string]any{"type": "quiz"}}, "context.type"},
		{"chapter without title", map[string]any{"question": "q", "context": map[string]any{"type": "chapter"}}, "context.chapter_title"},
		{"exercise without problem", map[string]any{"question": "q", "context": map[string]any{"type": "exercise"}}, "context.problem_text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockVideoService{}
			rec := httptest.NewRecorder()
			NewSubmitVideoHandler(svc)(rec, jsonReq(t, http.MethodPost, "/api/v1/videos", tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			code, details := decodeErr(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", code)
			assert.Contains(t, details, tt.field)
			assert.Empty(t, svc.submitted)
		})
	}
}

func TestSubmitVideo_InvalidJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/videos", strings.NewReader("{not json"))
	NewSubmitVideoHandler(&mockVideoService{})(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	code, _ := decodeErr(t, rec)
	assert.Equal(t, "INVALID_REQUEST", code)
}

func TestSubmitVideo_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"closed", orchestrator.ErrClosed, http.StatusServiceUnavailable, "SHUTTING_DOWN"},
		{"invalid", video.ErrInvalidRequest, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"store", errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewSubmitVideoHandler(&mockVideoService{submitErr: tt.err})(rec,
				jsonReq(t, http.MethodPost, "/api/v1/videos", map[string]any{"question": "q"}))

			assert.Equal(t, tt.status, rec.Code)
			code, _ := decodeErr(t, rec)
			assert.Equal(t, tt.code, code)
		})
	}
}

// --- GET /api/v1/videos/{jobID} ---

func TestGetVideo_Success(t *testing.T) {
	id := uuid.New()
	svc := &mockVideoService{status: &models.JobStatus{
		RequestID: id,
		JobID:     "abc123",
		State:     models.StateRenderingVideo,
		Progress:  70,
		Message:   "Rendering video...",
	}}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+id.String(), nil)
	rec := serveWithParam(NewGetVideoHandler(svc), http.MethodGet, "/api/v1/videos/{jobID}", r)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, id.String(), data["request_id"])
	assert.Equal(t, "RENDERING_VIDEO", data["state"])
	assert.Equal(t, float64(70), data["progress"])
}

func TestGetVideo_FailedCarriesError(t *testing.T) {
	id := uuid.New()
	svc := &mockVideoService{status: &models.JobStatus{
		RequestID: id,
		State:     models.StateFailed,
		Error: &models.ErrorInfo{
			Kind:       models.ErrorRateLimited,
			Message:    "Too many requests.",
			Retryable:  true,
			RetryDelay: 30 * time.Second,
			MaxRetries: 1,
		},
		CanRetry: true,
	}}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+id.String(), nil)
	rec := serveWithParam(NewGetVideoHandler(svc), http.MethodGet, "/api/v1/videos/{jobID}", r)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, true, data["can_retry"])
	errObj := data["error"].(map[string]any)
	assert.Equal(t, "RATE_LIMITED", errObj["kind"])
}

func TestGetVideo_InvalidID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/videos/not-a-uuid", nil)
	rec := serveWithParam(NewGetVideoHandler(&mockVideoService{}), http.MethodGet, "/api/v1/videos/{jobID}", r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetVideo_NotFound(t *testing.T) {
	svc := &mockVideoService{statusErr: video.ErrNotFound}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+uuid.NewString(), nil)
	rec := serveWithParam(NewGetVideoHandler(svc), http.MethodGet, "/api/v1/videos/{jobID}", r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	code, _ := decodeErr(t, rec)
	assert.Equal(t, "RESOURCE_NOT_FOUND", code)
}

// --- GET /api/v1/videos ---

func TestListVideos_DefaultsAndMeta(t *testing.T) {
	svc := &mockVideoService{
		jobs:  []*models.VideoJob{{ID: uuid.New(), State: models.StateCompleted}},
		total: 45,
	}
	rec := httptest.NewRecorder()
	NewListVideosHandler(svc)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.lastFilter.Page)
	assert.Equal(t, defaultPageLimit, svc.lastFilter.Limit)

	var env struct {
		Data []map[string]any `json:"data"`
		Meta struct {
			Page    int  `json:"page"`
			Limit   int  `json:"limit"`
			Total   int  `json:"total"`
			HasNext bool `json:"has_next"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Len(t, env.Data, 1)
	assert.Equal(t, 45, env.Meta.Total)
	assert.True(t, env.Meta.HasNext)
}

func TestListVideos_Filters(t *testing.T) {
	svc := &mockVideoService{}
	rec := httptest.NewRecorder()
	NewListVideosHandler(svc)(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/videos?state=failed&since=2026-01-02T03:04:05Z&page=2&limit=500", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StateFailed, svc.lastFilter.State)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), svc.lastFilter.Since)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, maxPageLimit, svc.lastFilter.Limit)

	var env struct {
		Data []any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.NotNil(t, env.Data)
}

func TestListVideos_BadQuery(t *testing.T) {
	for _, q := range []string{"state=bogus", "since=yesterday", "page=0", "limit=x"} {
		t.Run(q, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewListVideosHandler(&mockVideoService{})(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos?"+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// --- GET /api/v1/videos/{jobID}/events ---

func TestVideoEvents_Since(t *testing.T) {
	id := uuid.New()
	svc := &mockVideoService{events: []events.Event{
		{Seq: 1, Status: models.JobStatus{RequestID: id, State: models.StateQueued}},
		{Seq: 2, Status: models.JobStatus{RequestID: id, State: models.StateQueued, Progress: 15}},
		{Seq: 3, Status: models.JobStatus{RequestID: id, State: models.StateGeneratingScript, Progress: 30}},
	}}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+id.String()+"/events?since=1", nil)
	rec := serveWithParam(NewVideoEventsHandler(svc), http.MethodGet, "/api/v1/videos/{jobID}/events", r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), svc.lastSince)

	var env struct {
		Data eventsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.Len(t, env.Data.Events, 2)
	assert.Equal(t, int64(3), env.Data.NextSince)
	assert.Equal(t, models.StateGeneratingScript, env.Data.Events[1].Status.State)
}

func TestVideoEvents_NothingNew(t *testing.T) {
	id := uuid.New()
	svc := &mockVideoService{events: []events.Event{{Seq: 1}}}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+id.String()+"/events?since=1", nil)
	rec := serveWithParam(NewVideoEventsHandler(svc), http.MethodGet, "/api/v1/videos/{jobID}/events", r)

	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data struct {
			Events    []any `json:"events"`
			NextSince int64 `json:"next_since"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.NotNil(t, env.Data.Events)
	assert.Empty(t, env.Data.Events)
	assert.Equal(t, int64(1), env.Data.NextSince)
}

func TestVideoEvents_BadSince(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+uuid.NewString()+"/events?since=-1", nil)
	rec := serveWithParam(NewVideoEventsHandler(&mockVideoService{}), http.MethodGet, "/api/v1/videos/{jobID}/events", r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVideoEvents_Unknown(t *testing.T) {
	svc := &mockVideoService{eventsErr: video.ErrNotFound}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+uuid.NewString()+"/events", nil)
	rec := serveWithParam(NewVideoEventsHandler(svc), http.MethodGet, "/api/v1/videos/{jobID}/events", r)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- DELETE /api/v1/videos/{jobID} ---

func TestCancelVideo(t *testing.T) {
	id := uuid.New()
	svc := &mockVideoService{}

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/videos/"+id.String(), nil)
	rec := serveWithParam(NewCancelVideoHandler(svc), http.MethodDelete, "/api/v1/videos/{jobID}", r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{id}, svc.cancelled)
}

func TestCancelVideo_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{video.ErrNotFound, http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{video.ErrNotCancellable, http.StatusConflict, "NOT_CANCELLABLE"},
		{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			svc := &mockVideoService{cancelErr: tt.err}
			r := httptest.NewRequest(http.MethodDelete, "/api/v1/videos/"+uuid.NewString(), nil)
			rec := serveWithParam(NewCancelVideoHandler(svc), http.MethodDelete, "/api/v1/videos/{jobID}", r)

			assert.Equal(t, tt.status, rec.Code)
			code, _ := decodeErr(t, rec)
			assert.Equal(t, tt.code, code)
		})
	}
}
