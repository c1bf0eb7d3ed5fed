package domain

import "time"

// CreatorType records who authored a subject.
type CreatorType string

const (
	CreatorAdmin CreatorType = "admin"
	CreatorUser  CreatorType = "user"
)

// Subject is the top-level content category.
type Subject struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	CreatorType CreatorType `json:"creator_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Topic is an ordered collection of bites within a subject.
type Topic struct {
	ID          int64  `json:"id"`
	SubjectID   int64  `json:"subject_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content,omitempty"`
}

// Bite is the smallest deliverable unit of lesson content.
type Bite struct {
	ID      int64  `json:"id"`
	TopicID int64  `json:"topic_id"`
	Name    string `json:"name"`
	Text    string `json:"text"`
}

// TopicBites is one topic of a subject with its bites in catalog order.
type TopicBites struct {
	TopicID int64
	Bites   []Bite
}

// Quiz groups the practice questions of a subject.
type Quiz struct {
	ID        int64 `json:"id"`
	SubjectID int64 `json:"subject_id"`
	TopicID   int64 `json:"topic_id,omitempty"`
}

// Question is a multiple-choice question with its options in catalog order.
type Question struct {
	ID      int64    `json:"id"`
	QuizID  int64    `json:"quiz_id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Option is one answer choice of a question.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}
