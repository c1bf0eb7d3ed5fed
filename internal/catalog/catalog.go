// Package catalog builds subjects, topics, bites and quizzes from
// declarative specs. The same specs back the YAML seed files and the
// internal catalog endpoints.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/classmate/internal/domain"
	"github.com/ashureev/classmate/internal/store"
)

// ErrInvalid is returned for a spec that cannot be stored.
var ErrInvalid = errors.New("invalid catalog spec")

// File is a seed file.
type File struct {
	Subjects []SubjectSpec `yaml:"subjects"`
}

// SubjectSpec describes a subject with its topics and optional quiz.
type SubjectSpec struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	CreatorType string      `yaml:"creator_type,omitempty" json:"creator_type,omitempty"`
	Topics      []TopicSpec `yaml:"topics,omitempty" json:"topics,omitempty"`
	Quiz        *QuizSpec   `yaml:"quiz,omitempty" json:"quiz,omitempty"`
}

// TopicSpec describes a topic and its bites in order. SubjectID is only
// read when the topic is created on its own.
type TopicSpec struct {
	SubjectID   int64      `yaml:"-" json:"subject_id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Content     string     `yaml:"content,omitempty" json:"content,omitempty"`
	Bites       []BiteSpec `yaml:"bites" json:"bites"`
}

// BiteSpec is one bite of a topic.
type BiteSpec struct {
	Name string `yaml:"name" json:"name"`
	Text string `yaml:"text" json:"text"`
}

// QuizSpec describes a quiz. SubjectID and TopicID are only read when the
// quiz is created on its own.
type QuizSpec struct {
	SubjectID int64          `yaml:"-" json:"subject_id"`
	TopicID   int64          `yaml:"-" json:"topic_id,omitempty"`
	Questions []QuestionSpec `yaml:"questions" json:"questions"`
}

// QuestionSpec is a multiple-choice question.
type QuestionSpec struct {
	Text    string       `yaml:"text" json:"text"`
	Options []OptionSpec `yaml:"options" json:"options"`
}

// OptionSpec is one answer choice.
type OptionSpec struct {
	Text      string `yaml:"text" json:"text"`
	IsCorrect bool   `yaml:"is_correct,omitempty" json:"is_correct"`
}

// Summary counts what Apply created.
type Summary struct {
	Subjects  int
	Topics    int
	Bites     int
	Quizzes   int
	Questions int
}

// Load reads a YAML seed file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	for i := range f.Subjects {
		if err := f.Subjects[i].Validate(); err != nil {
			return nil, fmt.Errorf("subject %d: %w", i+1, err)
		}
	}
	return &f, nil
}

// Apply creates every subject of f in one transaction.
func Apply(ctx context.Context, repo store.Repository, f *File) (Summary, error) {
	var sum Summary
	err := repo.WithinTx(ctx, func(q store.Querier) error {
		sum = Summary{}
		for _, spec := range f.Subjects {
			if _, err := CreateSubject(ctx, q, spec, &sum); err != nil {
				return fmt.Errorf("create subject %q: %w", spec.Name, err)
			}
		}
		return nil
	})
	return sum, err
}

// Validate checks a subject spec and everything it contains.
func (s SubjectSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: subject name is required", ErrInvalid)
	}
	switch domain.CreatorType(s.CreatorType) {
	case "", domain.CreatorAdmin, domain.CreatorUser:
	default:
		return fmt.Errorf("%w: creator_type must be admin or user", ErrInvalid)
	}
	for i, t := range s.Topics {
		if err := t.validate(); err != nil {
			return fmt.Errorf("topic %d: %w", i+1, err)
		}
	}
	if s.Quiz != nil {
		return s.Quiz.validate()
	}
	return nil
}

func (t TopicSpec) validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: topic name is required", ErrInvalid)
	}
	return nil
}

func (q QuizSpec) validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz needs at least one question", ErrInvalid)
	}
	for i, qu := range q.Questions {
		if strings.TrimSpace(qu.Text) == "" {
			return fmt.Errorf("%w: question %d has no text", ErrInvalid, i+1)
		}
		if len(qu.Options) < 2 || len(qu.Options) > 26 {
			return fmt.Errorf("%w: question %d needs 2 to 26 options", ErrInvalid, i+1)
		}
		correct := 0
		for _, o := range qu.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: question %d needs exactly one correct option", ErrInvalid, i+1)
		}
	}
	return nil
}

// CreateSubject stores a subject with its topics and quiz. sum may be nil.
func CreateSubject(ctx context.Context, w store.CatalogWriter, spec SubjectSpec, sum *Summary) (*domain.Subject, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if sum == nil {
		sum = &Summary{}
	}

	subject := &domain.Subject{
		Name:        strings.TrimSpace(spec.Name),
		Description: spec.Description,
		CreatorType: domain.CreatorType(spec.CreatorType),
	}
	if err := w.CreateSubject(ctx, subject); err != nil {
		return nil, err
	}
	sum.Subjects++

	for _, t := range spec.Topics {
		t.SubjectID = subject.ID
		_, bites, err := CreateTopic(ctx, w, t)
		if err != nil {
			return nil, err
		}
		sum.Topics++
		sum.Bites += len(bites)
	}
	if spec.Quiz != nil {
		qs := *spec.Quiz
		qs.SubjectID = subject.ID
		_, questions, err := CreateQuiz(ctx, w, qs)
		if err != nil {
			return nil, err
		}
		sum.Quizzes++
		sum.Questions += len(questions)
	}
	return subject, nil
}

// CreateTopic stores a topic and its bites in order.
func CreateTopic(ctx context.Context, w store.CatalogWriter, spec TopicSpec) (*domain.Topic, []domain.Bite, error) {
	if err := spec.validate(); err != nil {
		return nil, nil, err
	}
	topic := &domain.Topic{
		SubjectID:   spec.SubjectID,
		Name:        strings.TrimSpace(spec.Name),
		Description: spec.Description,
		Content:     spec.Content,
	}
	if err := w.CreateTopic(ctx, topic); err != nil {
		return nil, nil, err
	}

	bites := make([]domain.Bite, 0, len(spec.Bites))
	for _, b := range spec.Bites {
		bite := domain.Bite{TopicID: topic.ID, Name: b.Name, Text: b.Text}
		if err := w.CreateBite(ctx, &bite); err != nil {
			return nil, nil, err
		}
		bites = append(bites, bite)
	}
	return topic, bites, nil
}

// CreateQuiz stores a quiz with its questions and options in order.
func CreateQuiz(ctx context.Context, w store.CatalogWriter, spec QuizSpec) (*domain.Quiz, []domain.Question, error) {
	if err := spec.validate(); err != nil {
		return nil, nil, err
	}
	quiz := &domain.Quiz{SubjectID: spec.SubjectID, TopicID: spec.TopicID}
	if err := w.CreateQuiz(ctx, quiz); err != nil {
		return nil, nil, err
	}

	questions := make([]domain.Question, 0, len(spec.Questions))
	for _, qs := range spec.Questions {
		qu := domain.Question{QuizID: quiz.ID, Text: qs.Text}
		for _, o := range qs.Options {
			qu.Options = append(qu.Options, domain.Option{Text: o.Text, IsCorrect: o.IsCorrect})
		}
		if err := w.CreateQuestion(ctx, &qu); err != nil {
			return nil, nil, err
		}
		questions = append(questions, qu)
	}
	return quiz, questions, nil
}
