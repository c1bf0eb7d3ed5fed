package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/classmate/internal/domain"
)

// ListSubjects returns every subject ordered by id.
func (q *Queries) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, description, creator_type, created_at
		FROM subjects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer closeRows(rows, "subjects")

	var out []domain.Subject
	for rows.Next() {
		var s domain.Subject
		var creator string
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &creator, &createdAt); err != nil {
			return nil, fmt.Errorf("scan subject row: %w", err)
		}
		s.CreatorType = domain.CreatorType(creator)
		s.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return out, nil
}

// GetSubject returns a subject by id or ErrNotFound.
func (q *Queries) GetSubject(ctx context.Context, id int64) (*domain.Subject, error) {
	var s domain.Subject
	var creator string
	var createdAt int64
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, description, creator_type, created_at
		FROM subjects WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.Description, &creator, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subject: %w", err)
	}
	s.CreatorType = domain.CreatorType(creator)
	s.CreatedAt = time.Unix(createdAt, 0)
	return &s, nil
}

// QuestionsForSubject loads the first quiz of a subject with its questions
// and options.
func (q *Queries) QuestionsForSubject(ctx context.Context, subjectID int64) ([]domain.Question, error) {
	var quizID int64
	err := q.db.QueryRowContext(ctx,
		`SELECT id FROM quizzes WHERE subject_id = ? ORDER BY id LIMIT 1`, subjectID).Scan(&quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan quiz: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT qu.id, qu.quiz_id, qu.text, o.id, o.text, o.is_correct
		FROM questions qu
		LEFT JOIN options o ON o.question_id = qu.id
		WHERE qu.quiz_id = ?
		ORDER BY qu.id, o.id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer closeRows(rows, "questions")

	var out []domain.Question
	for rows.Next() {
		var qu domain.Question
		var optID sql.NullInt64
		var optText sql.NullString
		var optCorrect sql.NullInt64
		if err := rows.Scan(&qu.ID, &qu.QuizID, &qu.Text, &optID, &optText, &optCorrect); err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != qu.ID {
			out = append(out, qu)
		}
		if optID.Valid {
			last := &out[len(out)-1]
			last.Options = append(last.Options, domain.Option{
				ID:         optID.Int64,
				QuestionID: qu.ID,
				Text:       optText.String,
				IsCorrect:  optCorrect.Int64 == 1,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

// BitesForSubject returns all topics of a subject with their bites. Topics
// without bites are included with an empty list.
func (q *Queries) BitesForSubject(ctx context.Context, subjectID int64) ([]domain.TopicBites, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT t.id, b.id, b.name, b.text
		FROM topics t
		LEFT JOIN bites b ON b.topic_id = t.id
		WHERE t.subject_id = ?
		ORDER BY t.id, b.id`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query bites: %w", err)
	}
	defer closeRows(rows, "bites")

	var out []domain.TopicBites
	for rows.Next() {
		var topicID int64
		var biteID sql.NullInt64
		var name, text sql.NullString
		if err := rows.Scan(&topicID, &biteID, &name, &text); err != nil {
			return nil, fmt.Errorf("scan bite row: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].TopicID != topicID {
			out = append(out, domain.TopicBites{TopicID: topicID})
		}
		if biteID.Valid {
			last := &out[len(out)-1]
			last.Bites = append(last.Bites, domain.Bite{
				ID:      biteID.Int64,
				TopicID: topicID,
				Name:    name.String,
				Text:    text.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bites: %w", err)
	}
	return out, nil
}

// BiteCount returns the number of bites in a topic.
func (q *Queries) BiteCount(ctx context.Context, topicID int64) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bites WHERE topic_id = ?`, topicID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bites: %w", err)
	}
	return n, nil
}

// CreateSubject inserts a subject and fills in its id.
func (q *Queries) CreateSubject(ctx context.Context, s *domain.Subject) error {
	if s.CreatorType == "" {
		s.CreatorType = domain.CreatorAdmin
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = q.now()
	}
	id, err := q.insert(ctx, `
		INSERT INTO subjects (name, description, creator_type, created_at) VALUES (?, ?, ?, ?)`,
		s.Name, s.Description, string(s.CreatorType), s.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	s.ID = id
	return nil
}

// CreateTopic inserts a topic and fills in its id.
func (q *Queries) CreateTopic(ctx context.Context, t *domain.Topic) error {
	id, err := q.insert(ctx, `
		INSERT INTO topics (subject_id, name, description, content) VALUES (?, ?, ?, ?)`,
		t.SubjectID, t.Name, t.Description, t.Content)
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	t.ID = id
	return nil
}

// CreateBite inserts a bite and fills in its id.
func (q *Queries) CreateBite(ctx context.Context, b *domain.Bite) error {
	id, err := q.insert(ctx, `INSERT INTO bites (topic_id, name, text) VALUES (?, ?, ?)`,
		b.TopicID, b.Name, b.Text)
	if err != nil {
		return fmt.Errorf("insert bite: %w", err)
	}
	b.ID = id
	return nil
}

// CreateQuiz inserts a quiz and fills in its id.
func (q *Queries) CreateQuiz(ctx context.Context, qz *domain.Quiz) error {
	var topicID any
	if qz.TopicID != 0 {
		topicID = qz.TopicID
	}
	id, err := q.insert(ctx, `INSERT INTO quizzes (subject_id, topic_id) VALUES (?, ?)`,
		qz.SubjectID, topicID)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	qz.ID = id
	return nil
}

// CreateQuestion inserts a question with its options.
func (q *Queries) CreateQuestion(ctx context.Context, qu *domain.Question) error {
	id, err := q.insert(ctx, `INSERT INTO questions (quiz_id, text) VALUES (?, ?)`, qu.QuizID, qu.Text)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	qu.ID = id

	for i := range qu.Options {
		opt := &qu.Options[i]
		opt.QuestionID = qu.ID
		optID, err := q.insert(ctx, `INSERT INTO options (question_id, text, is_correct) VALUES (?, ?, ?)`,
			opt.QuestionID, opt.Text, boolToInt(opt.IsCorrect))
		if err != nil {
			return fmt.Errorf("insert option: %w", err)
		}
		opt.ID = optID
	}
	return nil
}

func (q *Queries) insert(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
