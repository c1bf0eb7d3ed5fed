package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/classmate/internal/domain"
)

// AppendPoint adds a record to the points ledger and fills in its id.
func (q *Queries) AppendPoint(ctx context.Context, rec *domain.PointRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = q.now()
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO point_records (account_id, event_type, points, created_at)
		VALUES (?, ?, ?, ?)`,
		rec.AccountID, string(rec.EventType), rec.Points, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert point record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get point record id: %w", err)
	}
	rec.ID = id
	return nil
}

// TotalPoints sums the ledger of an account.
func (q *Queries) TotalPoints(ctx context.Context, accountID int64) (int, error) {
	var total int
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM point_records WHERE account_id = ?`, accountID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return total, nil
}

// RecordAnswer appends an answer. A second answer to the same question in
// the same attempt is ignored and reported with false.
func (q *Queries) RecordAnswer(ctx context.Context, a *domain.Answer) (bool, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = q.now()
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO answers (account_id, attempt_id, question_id, option_id, is_correct, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, attempt_id, question_id) DO NOTHING`,
		a.AccountID, a.AttemptID, a.QuestionID, a.OptionID, boolToInt(a.IsCorrect), a.CreatedAt.Unix())
	if err != nil {
		return false, fmt.Errorf("insert answer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return false, fmt.Errorf("get answer id: %w", err)
	}
	return true, nil
}

// CountCorrectAnswers counts correct answers recorded for one attempt.
func (q *Queries) CountCorrectAnswers(ctx context.Context, accountID int64, attemptID string, questionIDs []int64) (int, error) {
	if len(questionIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(questionIDs)+2)
	args = append(args, accountID, attemptID)
	for _, id := range questionIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(questionIDs)), ",")

	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM answers
		WHERE account_id = ? AND attempt_id = ? AND is_correct = 1
		AND question_id IN (`+placeholders+`)`, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count correct answers: %w", err)
	}
	return n, nil
}
