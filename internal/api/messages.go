package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/classmate/internal/chat"
	"github.com/ashureev/classmate/internal/identity"
)

// MessageRequest is the body of POST /api/v1/messages.
type MessageRequest struct {
	Address   string `json:"address"`
	Text      string `json:"text"`
	MessageID string `json:"message_id,omitempty"`
}

// MessageResponse carries the reply of one turn.
type MessageResponse struct {
	Reply string `json:"reply"`
}

// MessageHandler is the channel-agnostic chat endpoint. The reply is
// returned in the response instead of being sent.
type MessageHandler struct {
	*Handler
}

// NewMessageHandler creates a message handler.
func NewMessageHandler(base *Handler) *MessageHandler {
	return &MessageHandler{Handler: base}
}

// RegisterRoutes registers message routes.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", h.Post)
	})
}

// Post handles POST /api/v1/messages.
func (h *MessageHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	address, acct, err := identity.Resolve(r.Context(), h.repo, req.Address)
	if errors.Is(err, identity.ErrInvalidAddress) {
		Error(w, http.StatusBadRequest, "invalid address")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to resolve sender")
		return
	}

	var reply string
	if acct == nil {
		reply, err = h.dispatcher.HandleUnknownSender(r.Context(), address, text)
	} else {
		reply, err = h.dispatcher.HandleMessage(r.Context(), chat.Inbound{
			AccountID: acct.ID,
			Text:      text,
			MessageID: req.MessageID,
		})
	}
	if err != nil {
		slog.Error("Message failed", "address", address, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	JSON(w, http.StatusOK, MessageResponse{Reply: reply})
}
