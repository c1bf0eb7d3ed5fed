package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/classmate/internal/domain"
)

// Enroll links an account to a subject.
func (q *Queries) Enroll(ctx context.Context, accountID, subjectID int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO enrollments (account_id, subject_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(account_id, subject_id) DO NOTHING`,
		accountID, subjectID, q.now().Unix())
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return n == 1, nil
}

// IsEnrolled reports whether the account is enrolled in the subject.
func (q *Queries) IsEnrolled(ctx context.Context, accountID, subjectID int64) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE account_id = ? AND subject_id = ?`,
		accountID, subjectID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return n > 0, nil
}

// EnrolledSubjects lists the account's enrollments ordered by subject id.
func (q *Queries) EnrolledSubjects(ctx context.Context, accountID int64) ([]domain.Enrollment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT e.account_id, e.subject_id, s.name, e.created_at
		FROM enrollments e JOIN subjects s ON s.id = e.subject_id
		WHERE e.account_id = ?
		ORDER BY e.subject_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer closeRows(rows, "enrollments")

	var out []domain.Enrollment
	for rows.Next() {
		var e domain.Enrollment
		var createdAt int64
		if err := rows.Scan(&e.AccountID, &e.SubjectID, &e.SubjectName, &createdAt); err != nil {
			return nil, fmt.Errorf("scan enrollment row: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return out, nil
}
