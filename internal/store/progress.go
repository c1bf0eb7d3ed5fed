package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/classmate/internal/domain"
)

// GetOrCreateCheckpoint ensures a checkpoint exists with at least the
// requested status. A completed checkpoint is never moved back.
func (q *Queries) GetOrCreateCheckpoint(ctx context.Context, accountID, biteID int64, status domain.CheckpointStatus) (*domain.Checkpoint, bool, error) {
	now := q.now().Unix()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO checkpoints (account_id, bite_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, bite_id) DO NOTHING`,
		accountID, biteID, string(status), now, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert checkpoint: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("get rows affected: %w", err)
	}

	if changed == 0 && status == domain.CheckpointCompleted {
		res, err = q.db.ExecContext(ctx, `
			UPDATE checkpoints SET status = ?, updated_at = ?
			WHERE account_id = ? AND bite_id = ? AND status = ?`,
			string(domain.CheckpointCompleted), now, accountID, biteID, string(domain.CheckpointProgressing))
		if err != nil {
			return nil, false, fmt.Errorf("complete checkpoint: %w", err)
		}
		if changed, err = res.RowsAffected(); err != nil {
			return nil, false, fmt.Errorf("get rows affected: %w", err)
		}
	}

	var cp domain.Checkpoint
	var st string
	var createdAt, updatedAt int64
	err = q.db.QueryRowContext(ctx, `
		SELECT id, account_id, bite_id, status, created_at, updated_at
		FROM checkpoints WHERE account_id = ? AND bite_id = ?`, accountID, biteID).
		Scan(&cp.ID, &cp.AccountID, &cp.BiteID, &st, &createdAt, &updatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("scan checkpoint: %w", err)
	}
	cp.Status = domain.CheckpointStatus(st)
	cp.CreatedAt = time.Unix(createdAt, 0)
	cp.UpdatedAt = time.Unix(updatedAt, 0)
	return &cp, changed == 1, nil
}

// IsBiteCompleted reports whether the account has completed the bite.
func (q *Queries) IsBiteCompleted(ctx context.Context, accountID, biteID int64) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM checkpoints
		WHERE account_id = ? AND bite_id = ? AND status = ?`,
		accountID, biteID, string(domain.CheckpointCompleted)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check bite completed: %w", err)
	}
	return n > 0, nil
}

// GetOrCreateMilestone records that the account finished a topic.
func (q *Queries) GetOrCreateMilestone(ctx context.Context, accountID, topicID int64) (*domain.Milestone, bool, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO milestones (account_id, topic_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(account_id, topic_id) DO NOTHING`,
		accountID, topicID, q.now().Unix())
	if err != nil {
		return nil, false, fmt.Errorf("insert milestone: %w", err)
	}
	created, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("get rows affected: %w", err)
	}

	var m domain.Milestone
	var createdAt int64
	err = q.db.QueryRowContext(ctx, `
		SELECT id, account_id, topic_id, created_at
		FROM milestones WHERE account_id = ? AND topic_id = ?`, accountID, topicID).
		Scan(&m.ID, &m.AccountID, &m.TopicID, &createdAt)
	if err != nil {
		return nil, false, fmt.Errorf("scan milestone: %w", err)
	}
	m.CreatedAt = time.Unix(createdAt, 0)
	return &m, created == 1, nil
}

// HasMilestone reports whether the account has a milestone for the topic.
func (q *Queries) HasMilestone(ctx context.Context, accountID, topicID int64) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM milestones WHERE account_id = ? AND topic_id = ?`,
		accountID, topicID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check milestone: %w", err)
	}
	return n > 0, nil
}

// CountCompleted counts the account's completed checkpoints for bites of a topic.
func (q *Queries) CountCompleted(ctx context.Context, accountID, topicID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM checkpoints c
		JOIN bites b ON b.id = c.bite_id
		WHERE c.account_id = ? AND b.topic_id = ? AND c.status = ?`,
		accountID, topicID, string(domain.CheckpointCompleted)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed checkpoints: %w", err)
	}
	return n, nil
}
