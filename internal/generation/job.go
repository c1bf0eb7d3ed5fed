// Package generation launches course-generation jobs on an external worker.
// Jobs are fire-and-forget: the worker reports completion later through the
// internal callback endpoints, never through the launch call.
package generation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when no launcher is configured.
	ErrUnavailable = errors.New("course generation is unavailable")

	// ErrQueueFull is returned when the runner cannot accept more jobs.
	ErrQueueFull = errors.New("generation queue is full")

	// ErrStopped is returned when the runner is shutting down.
	ErrStopped = errors.New("generation runner stopped")
)

// Job is one request to build a course for an account.
type Job struct {
	ID          string    `json:"job_id"`
	AccountID   int64     `json:"account_id"`
	Address     string    `json:"phone_number"`
	Preferences string    `json:"preferences"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Launcher hands a job to the external generation worker.
type Launcher interface {
	Launch(ctx context.Context, job Job) error
}

// Submitter queues jobs without blocking.
type Submitter interface {
	Submit(job Job) (string, error)
}

// FailureFunc is called when a job could not be launched.
type FailureFunc func(ctx context.Context, job Job, err error)
