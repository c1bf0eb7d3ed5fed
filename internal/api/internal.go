package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/classmate/internal/catalog"
	"github.com/ashureev/classmate/internal/domain"
	"github.com/ashureev/classmate/internal/identity"
	"github.com/ashureev/classmate/internal/middleware"
	"github.com/ashureev/classmate/internal/session"
	"github.com/ashureev/classmate/internal/store"
)

// InternalHandler serves the callbacks of the course-generation worker.
type InternalHandler struct {
	*Handler
}

// NewInternalHandler creates an internal handler.
func NewInternalHandler(base *Handler) *InternalHandler {
	return &InternalHandler{Handler: base}
}

// RegisterRoutes registers the internal routes behind the worker secret.
func (h *InternalHandler) RegisterRoutes(r chi.Router, workerSecret string) {
	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.RequireWorkerSecret(workerSecret))
		r.Post("/notify-user", h.NotifyUser)
		r.Post("/update-user-state", h.UpdateUserState)
		r.Post("/generation/complete", h.CompleteGeneration)
		r.Post("/subjects", h.CreateSubject)
		r.Post("/topics", h.CreateTopic)
		r.Post("/quizzes", h.CreateQuiz)
		r.Post("/enrollments", h.Enroll)
	})
}

type notifyRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

// NotifyUser handles POST /internal/notify-user.
func (h *InternalHandler) NotifyUser(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	address, err := identity.NormalizeAddress(req.PhoneNumber)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid phone_number")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if err := h.sender.Send(r.Context(), address, req.Message); err != nil {
		slog.Warn("Failed to notify user", "error", err)
		Error(w, http.StatusBadGateway, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "message_sent"})
}

type updateStateRequest struct {
	AccountID int64           `json:"account_id"`
	State     string          `json:"state"`
	Context   json.RawMessage `json:"context"`
}

// UpdateUserState handles POST /internal/update-user-state.
func (h *InternalHandler) UpdateUserState(w http.ResponseWriter, r *http.Request) {
	var req updateStateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode := domain.Mode(strings.ToLower(strings.TrimSpace(req.State)))
	if !mode.Valid() {
		Error(w, http.StatusBadRequest, "invalid state")
		return
	}
	raw := req.Context
	if len(raw) == 0 || string(raw) == "null" {
		raw = domain.EmptyContext
	}

	err := h.dispatcher.OverrideState(r.Context(), req.AccountID, mode, raw)
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "account_not_found")
	case errors.Is(err, session.ErrCorruptContext):
		Error(w, http.StatusBadRequest, err.Error())
	case err != nil:
		slog.Error("Failed to update user state", "account_id", req.AccountID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to update state")
	default:
		JSON(w, http.StatusOK, map[string]string{"status": "state_updated"})
	}
}

type completeRequest struct {
	AccountID int64  `json:"account_id"`
	JobID     string `json:"job_id"`
	Message   string `json:"message"`
}

// CompleteGeneration handles POST /internal/generation/complete.
func (h *InternalHandler) CompleteGeneration(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	notified, err := h.dispatcher.CompleteGeneration(r.Context(), req.AccountID, req.JobID, req.Message)
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "account_not_found")
	case err != nil && notified:
		Error(w, http.StatusBadGateway, "state reset but notification failed")
	case err != nil:
		slog.Error("Failed to complete generation", "account_id", req.AccountID, "job_id", req.JobID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to complete generation")
	default:
		JSON(w, http.StatusOK, map[string]bool{"notified": notified})
	}
}

// CreateSubject handles POST /internal/subjects.
func (h *InternalHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var spec catalog.SubjectSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	var subject *domain.Subject
	err := h.repo.WithinTx(r.Context(), func(q store.Querier) error {
		var err error
		subject, err = catalog.CreateSubject(r.Context(), q, spec, nil)
		return err
	})
	if h.catalogError(w, err) {
		return
	}
	JSON(w, http.StatusCreated, subject)
}

// CreateTopic handles POST /internal/topics.
func (h *InternalHandler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var spec catalog.TopicSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	var (
		topic *domain.Topic
		bites []domain.Bite
	)
	err := h.repo.WithinTx(r.Context(), func(q store.Querier) error {
		if _, err := q.GetSubject(r.Context(), spec.SubjectID); err != nil {
			return err
		}
		var err error
		topic, bites, err = catalog.CreateTopic(r.Context(), q, spec)
		return err
	})
	if h.catalogError(w, err) {
		return
	}
	ids := make([]int64, len(bites))
	for i, b := range bites {
		ids[i] = b.ID
	}
	JSON(w, http.StatusCreated, map[string]any{"id": topic.ID, "subject_id": topic.SubjectID, "bite_ids": ids})
}

// CreateQuiz handles POST /internal/quizzes.
func (h *InternalHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var spec catalog.QuizSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	var (
		quiz      *domain.Quiz
		questions []domain.Question
	)
	err := h.repo.WithinTx(r.Context(), func(q store.Querier) error {
		if _, err := q.GetSubject(r.Context(), spec.SubjectID); err != nil {
			return err
		}
		var err error
		quiz, questions, err = catalog.CreateQuiz(r.Context(), q, spec)
		return err
	})
	if h.catalogError(w, err) {
		return
	}
	ids := make([]int64, len(questions))
	for i, qu := range questions {
		ids[i] = qu.ID
	}
	JSON(w, http.StatusCreated, map[string]any{"id": quiz.ID, "subject_id": quiz.SubjectID, "question_ids": ids})
}

type enrollRequest struct {
	AccountID int64 `json:"account_id"`
	SubjectID int64 `json:"subject_id"`
}

// Enroll handles POST /internal/enrollments.
func (h *InternalHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	if _, err := h.repo.GetAccount(ctx, req.AccountID); errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "account_not_found")
		return
	} else if err != nil {
		Error(w, http.StatusInternalServerError, "database_error")
		return
	}
	if _, err := h.repo.GetSubject(ctx, req.SubjectID); errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "subject_not_found")
		return
	} else if err != nil {
		Error(w, http.StatusInternalServerError, "database_error")
		return
	}

	created, err := h.repo.Enroll(ctx, req.AccountID, req.SubjectID)
	if err != nil {
		slog.Error("Failed to enroll account", "account_id", req.AccountID, "subject_id", req.SubjectID, "error", err)
		Error(w, http.StatusInternalServerError, "database_error")
		return
	}
	if created {
		JSON(w, http.StatusCreated, map[string]string{"status": "enrollment_created"})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "already_enrolled"})
}

// catalogError writes the response for a failed catalog write and reports
// whether there was one.
func (h *InternalHandler) catalogError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, catalog.ErrInvalid):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "subject_not_found")
	default:
		slog.Error("Catalog write failed", "error", err)
		Error(w, http.StatusInternalServerError, "database_error")
	}
	return true
}
