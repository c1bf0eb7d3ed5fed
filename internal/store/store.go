// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/classmate/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStaleSession is returned when a session state write presents a
	// version that no longer matches the stored row.
	ErrStaleSession = errors.New("stale session state")
)

// AccountStore reads and creates accounts.
type AccountStore interface {
	// GetAccount returns the account with the given id or ErrNotFound.
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)

	// GetAccountByAddress returns the account registered for an address or ErrNotFound.
	GetAccountByAddress(ctx context.Context, address string) (*domain.Account, error)

	// CreateAccount registers an address. The bool is false when the
	// address already had an account, which is returned unchanged.
	CreateAccount(ctx context.Context, address string) (*domain.Account, bool, error)
}

// SessionStore persists the per-account session state.
type SessionStore interface {
	// GetSessionState returns the stored state, or a version-zero idle
	// state when the account has never left idle.
	GetSessionState(ctx context.Context, accountID int64) (*domain.SessionState, error)

	// SaveSessionState writes st if st.Version still matches the stored
	// version and bumps st.Version. Returns ErrStaleSession otherwise.
	SaveSessionState(ctx context.Context, st *domain.SessionState) error
}

// ProgressStore holds checkpoint and milestone facts.
type ProgressStore interface {
	// GetOrCreateCheckpoint ensures a checkpoint for (account, bite) with at
	// least the given status. The bool reports whether the call created the
	// row or moved it from progressing to completed.
	GetOrCreateCheckpoint(ctx context.Context, accountID, biteID int64, status domain.CheckpointStatus) (*domain.Checkpoint, bool, error)

	// IsBiteCompleted reports whether (account, bite) has a completed checkpoint.
	IsBiteCompleted(ctx context.Context, accountID, biteID int64) (bool, error)

	// GetOrCreateMilestone ensures a milestone for (account, topic). The bool
	// reports whether this call created it.
	GetOrCreateMilestone(ctx context.Context, accountID, topicID int64) (*domain.Milestone, bool, error)

	// HasMilestone reports whether (account, topic) has a milestone.
	HasMilestone(ctx context.Context, accountID, topicID int64) (bool, error)

	// CountCompleted counts completed checkpoints of an account within a topic.
	CountCompleted(ctx context.Context, accountID, topicID int64) (int, error)
}

// PointStore is the append-only points ledger.
type PointStore interface {
	AppendPoint(ctx context.Context, rec *domain.PointRecord) error
	TotalPoints(ctx context.Context, accountID int64) (int, error)
}

// AnswerStore is the append-only answer ledger.
type AnswerStore interface {
	// RecordAnswer stores an answer. The bool is false when the account
	// already answered that question within the same attempt.
	RecordAnswer(ctx context.Context, a *domain.Answer) (bool, error)

	// CountCorrectAnswers counts correct answers of one attempt restricted
	// to the given questions.
	CountCorrectAnswers(ctx context.Context, accountID int64, attemptID string, questionIDs []int64) (int, error)
}

// CatalogReader is the read-only view over subjects, topics, bites and quizzes.
type CatalogReader interface {
	ListSubjects(ctx context.Context) ([]domain.Subject, error)
	GetSubject(ctx context.Context, id int64) (*domain.Subject, error)

	// QuestionsForSubject returns the questions of the subject's first quiz
	// with their options, both in catalog order. Nil when there is no quiz.
	QuestionsForSubject(ctx context.Context, subjectID int64) ([]domain.Question, error)

	// BitesForSubject returns every topic of the subject with its bites, in
	// catalog order.
	BitesForSubject(ctx context.Context, subjectID int64) ([]domain.TopicBites, error)

	BiteCount(ctx context.Context, topicID int64) (int, error)
}

// CatalogWriter creates catalog content. Used by the generation callbacks
// and the seed command; the session protocols never write the catalog.
type CatalogWriter interface {
	CreateSubject(ctx context.Context, s *domain.Subject) error
	CreateTopic(ctx context.Context, t *domain.Topic) error
	CreateBite(ctx context.Context, b *domain.Bite) error
	CreateQuiz(ctx context.Context, q *domain.Quiz) error
	// CreateQuestion stores a question and its options, filling in ids.
	CreateQuestion(ctx context.Context, q *domain.Question) error
}

// EnrollmentStore links accounts to subjects.
type EnrollmentStore interface {
	// Enroll is idempotent; the bool reports whether a new enrollment was created.
	Enroll(ctx context.Context, accountID, subjectID int64) (bool, error)
	IsEnrolled(ctx context.Context, accountID, subjectID int64) (bool, error)
	EnrolledSubjects(ctx context.Context, accountID int64) ([]domain.Enrollment, error)
}

// MessageLog remembers the reply produced for each transport message id so
// redelivered messages are answered without being processed again.
type MessageLog interface {
	GetProcessedReply(ctx context.Context, accountID int64, messageID string) (string, bool, error)
	SaveProcessedReply(ctx context.Context, accountID int64, messageID, reply string) error
	// MarkGenerationCompleted records a finished job. The bool is false when
	// the job was already recorded.
	MarkGenerationCompleted(ctx context.Context, jobID string, accountID int64) (bool, error)
	PruneProcessedMessages(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Querier is every query the application runs, usable both on the
// database and inside a transaction.
type Querier interface {
	AccountStore
	SessionStore
	ProgressStore
	PointStore
	AnswerStore
	CatalogReader
	CatalogWriter
	EnrollmentStore
	MessageLog
}

// Repository is the persistence entry point.
type Repository interface {
	Querier

	// WithinTx runs fn inside a write transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(q Querier) error) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
