package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/classmate/internal/shared"
)

// GetProcessedReply returns the reply stored for a message id sent by an
// account. Ids are only unique per account.
func (q *Queries) GetProcessedReply(ctx context.Context, accountID int64, messageID string) (string, bool, error) {
	var reply string
	err := q.db.QueryRowContext(ctx,
		`SELECT reply FROM processed_messages WHERE account_id = ? AND message_id = ?`,
		accountID, messageID).Scan(&reply)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("scan processed message: %w", err)
	}
	return reply, true, nil
}

// SaveProcessedReply remembers the reply produced for an account's message id.
func (q *Queries) SaveProcessedReply(ctx context.Context, accountID int64, messageID, reply string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO processed_messages (account_id, message_id, reply, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, message_id) DO NOTHING`,
		accountID, messageID, reply, q.now().Unix())
	if err != nil {
		return fmt.Errorf("insert processed message: %w", err)
	}
	return nil
}

// MarkGenerationCompleted records jobID as finished.
func (q *Queries) MarkGenerationCompleted(ctx context.Context, jobID string, accountID int64) (bool, error) {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO completed_generations (job_id, account_id, created_at) VALUES (?, ?, ?)`,
		jobID, accountID, q.now().Unix())
	if shared.IsUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert completed generation: %w", err)
	}
	return true, nil
}

// PruneProcessedMessages deletes delivery records older than the retention window.
func (q *Queries) PruneProcessedMessages(ctx context.Context, olderThan time.Duration) (int64, error) {
	threshold := q.now().Add(-olderThan).Unix()
	res, err := q.db.ExecContext(ctx, `DELETE FROM processed_messages WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("prune processed messages: %w", err)
	}
	return res.RowsAffected()
}
