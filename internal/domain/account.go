// Package domain contains core domain types for the classmate session engine.
package domain

import (
	"time"
)

// Account is a learner reachable at a messaging address (a phone number).
type Account struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Enrollment links an account to a subject it studies.
type Enrollment struct {
	AccountID   int64     `json:"account_id"`
	SubjectID   int64     `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	CreatedAt   time.Time `json:"created_at"`
}
