package domain

import "time"

// CheckpointStatus is the completion status of one bite for one account.
type CheckpointStatus string

const (
	CheckpointProgressing CheckpointStatus = "progressing"
	CheckpointCompleted   CheckpointStatus = "completed"
)

// Checkpoint records that an account reached a bite. Status only moves
// from progressing to completed.
type Checkpoint struct {
	ID        int64
	AccountID int64
	BiteID    int64
	Status    CheckpointStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Milestone records that an account completed every bite of a topic.
type Milestone struct {
	ID        int64
	AccountID int64
	TopicID   int64
	CreatedAt time.Time
}

// EventType classifies a point award. EventDailyStreakCompleted has a
// value in the points table but no flow awards it yet.
type EventType string

const (
	EventQuizCompleted               EventType = "quiz_completed"
	EventBiteCompleted               EventType = "bite_completed"
	EventDailyStreakCompleted        EventType = "daily_streak_completed"
	EventMilestoneAchieved           EventType = "milestone_achieved"
	EventQuestionAnsweredCorrectly   EventType = "question_answered_correctly"
	EventQuestionAnsweredIncorrectly EventType = "question_answered_incorrectly"
)

// PointRecord is one append-only entry of the points ledger.
type PointRecord struct {
	ID        int64
	AccountID int64
	EventType EventType
	Points    int
	CreatedAt time.Time
}

// Answer is the option an account selected for a question during one quiz
// attempt. IsCorrect is copied from the quiz snapshot the learner saw.
type Answer struct {
	ID         int64
	AccountID  int64
	AttemptID  string
	QuestionID int64
	OptionID   int64
	IsCorrect  bool
	CreatedAt  time.Time
}
