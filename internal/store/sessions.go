package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/classmate/internal/domain"
)

// GetSessionState loads the session state of an account. An account
// without a row is idle with an empty context at version zero.
func (q *Queries) GetSessionState(ctx context.Context, accountID int64) (*domain.SessionState, error) {
	query := `
		SELECT account_id, mode, context_json, version, updated_at
		FROM session_states WHERE account_id = ?`

	var st domain.SessionState
	var mode, contextJSON string
	var updatedAt int64
	err := q.db.QueryRowContext(ctx, query, accountID).Scan(
		&st.AccountID, &mode, &contextJSON, &st.Version, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewIdleState(accountID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session state: %w", err)
	}

	st.Mode = domain.Mode(mode)
	st.Context = []byte(contextJSON)
	st.UpdatedAt = time.Unix(updatedAt, 0)
	return &st, nil
}

// SaveSessionState writes st guarded by its version. The first write of an
// account inserts the row; later writes must present the stored version.
func (q *Queries) SaveSessionState(ctx context.Context, st *domain.SessionState) error {
	if !st.Mode.Valid() {
		return fmt.Errorf("save session state: invalid mode %q", st.Mode)
	}
	contextJSON := st.Context
	if len(contextJSON) == 0 {
		contextJSON = domain.EmptyContext
	}
	now := q.now()

	var (
		res sql.Result
		err error
	)
	if st.Version == 0 {
		res, err = q.db.ExecContext(ctx, `
			INSERT INTO session_states (account_id, mode, context_json, version, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT(account_id) DO NOTHING`,
			st.AccountID, string(st.Mode), string(contextJSON), now.Unix())
	} else {
		res, err = q.db.ExecContext(ctx, `
			UPDATE session_states
			SET mode = ?, context_json = ?, version = version + 1, updated_at = ?
			WHERE account_id = ? AND version = ?`,
			string(st.Mode), string(contextJSON), now.Unix(), st.AccountID, st.Version)
	}
	if err != nil {
		return fmt.Errorf("save session state: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("SaveSessionState affected 0 rows", "account_id", st.AccountID, "version", st.Version)
		return ErrStaleSession
	}

	st.Version++
	st.Context = contextJSON
	st.UpdatedAt = now
	return nil
}
