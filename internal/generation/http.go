package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPLauncher posts jobs as JSON to the worker's HTTP endpoint.
type HTTPLauncher struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPLauncher creates a launcher for url. secret, when set, is sent in
// the X-Worker-Secret header.
func NewHTTPLauncher(url, secret string, timeout time.Duration) *HTTPLauncher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPLauncher{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

type launchRequest struct {
	JobID       string `json:"job_id"`
	AccountID   int64  `json:"account_id"`
	PhoneNumber string `json:"phone_number"`
	Preferences string `json:"preferences"`
}

// Launch posts the job. Any 2xx response counts as accepted.
func (l *HTTPLauncher) Launch(ctx context.Context, job Job) error {
	body, err := json.Marshal(launchRequest{
		JobID:       job.ID,
		AccountID:   job.AccountID,
		PhoneNumber: job.Address,
		Preferences: job.Preferences,
	})
	if err != nil {
		return fmt.Errorf("encode launch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build launch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.secret != "" {
		req.Header.Set("X-Worker-Secret", l.secret)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("post launch request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", errRejected, resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
