package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/explainer/internal/api/response"
	"github.com/kiranshivaraju/explainer/internal/events"
	"github.com/kiranshivaraju/explainer/internal/orchestrator"
	"github.com/kiranshivaraju/explainer/internal/store"
	"github.com/kiranshivaraju/explainer/internal/video"
	"github.com/kiranshivaraju/explainer/pkg/models"
	"github.com/kiranshivaraju/explainer/pkg/prompt"
)

const (
	// MaxDurationLimit is the longest video a caller may ask for, in seconds.
	MaxDurationLimit = 600

	defaultPageLimit = 20
	maxPageLimit     = 100
)

// VideoService defines the interface the video handlers depend on.
type VideoService interface {
	Submit(ctx context.Context, p video.SubmitParams) (*models.VideoJob, error)
	Status(ctx context.Context, id uuid.UUID) (*models.JobStatus, error)
	List(ctx context.Context, filter store.VideoJobFilter) ([]*models.VideoJob, int, error)
	Events(id uuid.UUID, since int64) ([]events.Event, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

var _ VideoService = (*video.Service)(nil)

type submitRequest struct {
	Question      string        `json:"question"`
	Prompt        string        `json:"prompt"`
	Context       *studyContext `json:"context"`
	DurationLimit int           `json:"duration_limit"`
}

type studyContext struct {
	Type           string   `json:"type"`
	CourseTitle    string   `json:"course_title"`
	CourseGrade    string   `json:"course_grade"`
	ChapterTitle   string   `json:"chapter_title"`
	ChapterNumber  int      `json:"chapter_number"`
	TotalChapters  int      `json:"total_chapters"`
	ExerciseNumber int      `json:"exercise_number"`
	ProblemText    string   `json:"problem_text"`
	Options        []string `json:"options"`
	UserAnswer     *int     `json:"user_answer"`
	CorrectAnswer  *int     `json:"correct_answer"`
}

type submitResponse struct {
	ID        uuid.UUID    `json:"id"`
	State     models.State `json:"state"`
	StatusURL string       `json:"status_url"`
	EventsURL string       `json:"events_url"`
}

type eventsResponse struct {
	Events    []events.Event `json:"events"`
	NextSince int64          `json:"next_since"`
}

// NewSubmitVideoHandler returns an http.HandlerFunc for POST /api/v1/videos.
func NewSubmitVideoHandler(svc VideoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		params, details := req.params()
		if details != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid video request", details)
			return
		}

		job, err := svc.Submit(r.Context(), params)
		if err != nil {
			switch {
			case errors.Is(err, video.ErrInvalidRequest):
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			case errors.Is(err, orchestrator.ErrClosed):
				response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN",
					"The server is shutting down", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		base := "/api/v1/videos/" + job.ID.String()
		response.Accepted(w, submitResponse{
			ID:        job.ID,
			State:     job.State,
			StatusURL: base,
			EventsURL: base + "/events",
		})
	}
}

// params validates the body. details maps field names to messages.
func (req submitRequest) params() (video.SubmitParams, map[string][]string) {
	details := map[string][]string{}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = strings.TrimSpace(req.Prompt)
	}
	if question == "" {
		details["question"] = append(details["question"], "question is required")
	}
	if req.DurationLimit < 0 || req.DurationLimit > MaxDurationLimit {
		details["duration_limit"] = append(details["duration_limit"],
			"duration_limit must be between 0 and "+strconv.Itoa(MaxDurationLimit))
	}

	p := video.SubmitParams{
		Question:      question,
		Kind:          video.ContextGeneral,
		DurationLimit: time.Duration(req.DurationLimit) * time.Second,
	}

	if c := req.Context; c != nil {
		switch video.ContextKind(c.Type) {
		case "", video.ContextGeneral:
		case video.ContextChapter:
			p.Kind = video.ContextChapter
			p.Chapter = &prompt.ChapterParams{
				CourseTitle:   c.CourseTitle,
				CourseGrade:   c.CourseGrade,
				ChapterTitle:  c.ChapterTitle,
				ChapterNumber: c.ChapterNumber,
				TotalChapters: c.TotalChapters,
			}
			if c.ChapterTitle == "" {
				details["context.chapter_title"] = append(details["context.chapter_title"], "chapter_title is required")
			}
		case video.ContextExercise:
			p.Kind = video.ContextExercise
			p.Exercise = &prompt.ExerciseParams{
				ChapterTitle:   c.ChapterTitle,
				ExerciseNumber: c.ExerciseNumber,
				ProblemText:    c.ProblemText,
				Options:        c.Options,
				UserAnswer:     c.UserAnswer,
				CorrectAnswer:  c.CorrectAnswer,
			}
			if c.ProblemText == "" {
				details["context.problem_text"] = append(details["context.problem_text"], "problem_text is required")
			}
		default:
			details["context.type"] = append(details["context.type"], "type must be general, chapter or exercise")
		}
	}

	if len(details) > 0 {
		return p, details
	}
	return p, nil
}

// NewGetVideoHandler returns an http.HandlerFunc for GET /api/v1/videos/{jobID}.
func NewGetVideoHandler(svc VideoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		status, err := svc.Status(r.Context(), id)
		if err != nil {
			writeVideoError(w, err)
			return
		}
		response.JSON(w, status)
	}
}

// NewListVideosHandler returns an http.HandlerFunc for GET /api/v1/videos.
func NewListVideosHandler(svc VideoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.VideoJobFilter{Page: 1, Limit: defaultPageLimit}

		if v := q.Get("state"); v != "" {
			state := models.State(strings.ToUpper(v))
			if !state.Valid() {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unknown state "+v, nil)
				return
			}
			filter.State = state
		}
		if v := q.Get("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be a valid RFC3339 timestamp", nil)
				return
			}
			filter.Since = since
		}
		if v := q.Get("page"); v != "" {
			page, err := strconv.Atoi(v)
			if err != nil || page < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be a positive integer", nil)
				return
			}
			filter.Page = page
		}
		if v := q.Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			filter.Limit = min(limit, maxPageLimit)
		}

		jobs, total, err := svc.List(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list videos", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.VideoJob{}
		}

		response.Collection(w, jobs, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}

// NewVideoEventsHandler returns an http.HandlerFunc for
// GET /api/v1/videos/{jobID}/events?since=N.
func NewVideoEventsHandler(svc VideoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var since int64
		if v := r.URL.Query().Get("since"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be a non-negative integer", nil)
				return
			}
			since = n
		}

		evs, err := svc.Events(id, since)
		if err != nil {
			writeVideoError(w, err)
			return
		}

		next := since
		if len(evs) > 0 {
			next = evs[len(evs)-1].Seq
		} else {
			evs = []events.Event{}
		}
		response.JSON(w, eventsResponse{Events: evs, NextSince: next})
	}
}

// NewCancelVideoHandler returns an http.HandlerFunc for DELETE /api/v1/videos/{jobID}.
func NewCancelVideoHandler(svc VideoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			writeVideoError(w, err)
			return
		}
		response.NoContent(w)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeVideoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, video.ErrNotFound):
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Video request not found", nil)
	case errors.Is(err, video.ErrNotCancellable):
		response.Error(w, http.StatusConflict, "NOT_CANCELLABLE", "Video request already finished", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
