// Package api provides HTTP handlers for the classmate service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/classmate/internal/chat"
	"github.com/ashureev/classmate/internal/messaging"
	"github.com/ashureev/classmate/internal/store"
)

// maxRequestBodySize is the maximum accepted request body (1MB).
const maxRequestBodySize = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	repo       store.Repository
	dispatcher *chat.Dispatcher
	sender     messaging.Sender
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, dispatcher *chat.Dispatcher, sender messaging.Sender) *Handler {
	if sender == nil {
		sender = messaging.NewLogSender(nil)
	}
	return &Handler{repo: repo, dispatcher: dispatcher, sender: sender}
}

// NewRouter wires every route of the service. Internal routes require
// workerSecret.
func NewRouter(h *Handler, workerSecret string) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	NewHealthHandler(h.repo).RegisterHealth(r)
	NewWebhookHandler(h).RegisterRoutes(r)
	NewMessageHandler(h).RegisterRoutes(r)
	NewInternalHandler(h).RegisterRoutes(r, workerSecret)
	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into dst and writes the error
// response itself. It reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
