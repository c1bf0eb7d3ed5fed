package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/classmate/internal/chat"
	"github.com/ashureev/classmate/internal/identity"
)

// WebhookHandler receives WhatsApp messages from Twilio and answers them
// through the Sender.
type WebhookHandler struct {
	*Handler
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(base *Handler) *WebhookHandler {
	return &WebhookHandler{Handler: base}
}

// RegisterRoutes registers the webhook route behind sender resolution.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.With(identity.Middleware(h.repo)).Post("/webhooks/whatsapp", h.WhatsApp)
}

// WhatsApp handles POST /webhooks/whatsapp. A failed delivery answers 502
// so the provider retries; the retry is answered from the dedupe log.
func (h *WebhookHandler) WhatsApp(w http.ResponseWriter, r *http.Request) {
	body := strings.TrimSpace(r.FormValue("Body"))
	if body == "" {
		Error(w, http.StatusBadRequest, "Body is required")
		return
	}
	address := identity.AddressFromContext(r.Context())
	acct := identity.AccountFromContext(r.Context())
	sid := r.FormValue("MessageSid")

	var (
		reply string
		err   error
	)
	if acct == nil {
		reply, err = h.dispatcher.HandleUnknownSender(r.Context(), address, body)
	} else {
		reply, err = h.dispatcher.HandleMessage(r.Context(), chat.Inbound{
			AccountID: acct.ID,
			Text:      body,
			MessageID: sid,
		})
	}
	if err != nil {
		slog.Error("Webhook message failed", "message_sid", sid, "remote_ip", identity.IPFromRequest(r), "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	if err := h.sender.Send(r.Context(), address, reply); err != nil {
		slog.Warn("Failed to deliver reply", "message_sid", sid, "error", err)
		Error(w, http.StatusBadGateway, "failed to deliver reply")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
