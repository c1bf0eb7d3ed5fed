// Package session defines the per-mode context payloads stored in a
// SessionState and validates them on every load.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/classmate/internal/domain"
)

// ErrCorruptContext is returned when a stored context does not match the
// schema of its mode.
var ErrCorruptContext = errors.New("corrupt session context")

// QuizOption is one answer choice frozen at quiz start.
type QuizOption struct {
	OptionID  int64  `json:"option_id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// QuizQuestion is one question frozen at quiz start.
type QuizQuestion struct {
	QuestionID   int64        `json:"question_id"`
	QuestionText string       `json:"question_text"`
	Options      []QuizOption `json:"options"`
}

// QuizContext is the context of ModeInQuiz.
type QuizContext struct {
	SubjectID            int64          `json:"subject_id"`
	AttemptID            string         `json:"attempt_id"`
	Questions            []QuizQuestion `json:"questions"`
	CurrentQuestionIndex int            `json:"current_question_index"`
}

// Current returns the question awaiting an answer.
func (c *QuizContext) Current() *QuizQuestion {
	return &c.Questions[c.CurrentQuestionIndex]
}

// QuestionIDs returns the ids of all questions in the snapshot.
func (c *QuizContext) QuestionIDs() []int64 {
	ids := make([]int64, len(c.Questions))
	for i, q := range c.Questions {
		ids[i] = q.QuestionID
	}
	return ids
}

// LessonBite is one bite of a lesson snapshot.
type LessonBite struct {
	BiteID   int64  `json:"bite_id"`
	BiteName string `json:"bite_name,omitempty"`
	BiteText string `json:"bite_text,omitempty"`
}

// LessonTopic is one topic of a lesson snapshot with its bites in order.
type LessonTopic struct {
	TopicID int64        `json:"topic_id"`
	Bites   []LessonBite `json:"bites"`
}

// LessonContext is the context of ModeInLesson. Topics keep catalog order.
type LessonContext struct {
	SubjectID      int64         `json:"subject_id"`
	Topics         []LessonTopic `json:"topics"`
	CurrentTopicID int64         `json:"current_topic_id"`
	CurrentBiteID  int64         `json:"current_bite_id"`
}

// GenerationContext is the context of ModeInGeneration.
type GenerationContext struct {
	Preferences string    `json:"preferences"`
	JobID       string    `json:"job_id,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
}

// Validate checks that raw is a well-formed context for mode.
func Validate(mode domain.Mode, raw json.RawMessage) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrCorruptContext, mode)
	}
	if len(raw) == 0 {
		raw = domain.EmptyContext
	}

	switch mode {
	case domain.ModeInQuiz:
		_, err := DecodeQuiz(raw)
		return err
	case domain.ModeInLesson:
		_, err := DecodeLesson(raw)
		return err
	case domain.ModeInGeneration:
		_, err := DecodeGeneration(raw)
		return err
	default:
		if err := validateSchema(mode, raw); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptContext, err)
		}
		return nil
	}
}

// DecodeQuiz validates and decodes a quiz context.
func DecodeQuiz(raw json.RawMessage) (*QuizContext, error) {
	var c QuizContext
	if err := decode(domain.ModeInQuiz, raw, &c); err != nil {
		return nil, err
	}
	if c.CurrentQuestionIndex >= len(c.Questions) {
		return nil, fmt.Errorf("%w: question index %d out of range [0,%d)",
			ErrCorruptContext, c.CurrentQuestionIndex, len(c.Questions))
	}
	return &c, nil
}

// DecodeLesson validates and decodes a lesson context.
func DecodeLesson(raw json.RawMessage) (*LessonContext, error) {
	var c LessonContext
	if err := decode(domain.ModeInLesson, raw, &c); err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(c.Topics))
	for _, t := range c.Topics {
		if seen[t.TopicID] {
			return nil, fmt.Errorf("%w: duplicate topic %d", ErrCorruptContext, t.TopicID)
		}
		seen[t.TopicID] = true
	}
	return &c, nil
}

// DecodeGeneration validates and decodes a generation context.
func DecodeGeneration(raw json.RawMessage) (*GenerationContext, error) {
	var c GenerationContext
	if err := decode(domain.ModeInGeneration, raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Encode marshals a context for storage.
func Encode(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode session context: %w", err)
	}
	return raw, nil
}

func decode(mode domain.Mode, raw json.RawMessage, dst any) error {
	if err := validateSchema(mode, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptContext, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptContext, err)
	}
	return nil
}
