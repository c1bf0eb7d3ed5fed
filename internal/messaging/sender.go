// Package messaging delivers outbound chat messages.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDelivery is returned when the transport did not accept a message.
var ErrDelivery = errors.New("message delivery failed")

// Sender delivers a text to an address.
type Sender interface {
	Send(ctx context.Context, address, text string) error
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message.
func (s *LogSender) Send(_ context.Context, address, text string) error {
	s.logger.Info("Outbound message", "to", address, "chars", len(text))
	return nil
}

// TwilioConfig holds WhatsApp-over-Twilio credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	APIBase    string
	Timeout    time.Duration
}

// TwilioSender sends WhatsApp messages through the Twilio Messages API.
type TwilioSender struct {
	cfg    TwilioConfig
	client *http.Client
}

// NewTwilioSender creates a Twilio sender.
func NewTwilioSender(cfg TwilioConfig) *TwilioSender {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.twilio.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TwilioSender{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Send posts the message. address is a bare phone number.
func (s *TwilioSender) Send(ctx context.Context, address, text string) error {
	form := url.Values{}
	form.Set("From", whatsappAddress(s.cfg.From))
	form.Set("To", whatsappAddress(address))
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.cfg.APIBase, "/"), url.PathEscape(s.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: twilio status %d: %s", ErrDelivery, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// ParseWhatsAppAddress strips the "whatsapp:" channel prefix from a
// provider address.
func ParseWhatsAppAddress(from string) string {
	if _, after, ok := strings.Cut(from, ":"); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(from)
}
