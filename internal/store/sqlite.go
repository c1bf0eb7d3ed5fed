package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/classmate/internal/shared"
	_ "modernc.org/sqlite"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by Queries.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries implements Querier on top of a database handle or a transaction.
type Queries struct {
	db  DBTX
	now func() time.Time
}

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	*Queries
	db *sql.DB

	maxTxRetries int
	txRetryDelay time.Duration
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL for concurrent readers; immediate transactions take the write lock
	// at BEGIN so a turn never upgrades a read lock mid-flight.
	dsn := "file:" + dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{
		Queries:      &Queries{db: db, now: time.Now},
		db:           db,
		maxTxRetries: 3,
		txRetryDelay: 100 * time.Millisecond,
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_states (
		account_id INTEGER PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
		mode TEXT NOT NULL,
		context_json TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subjects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		creator_type TEXT NOT NULL DEFAULT 'admin',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS topics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id INTEGER NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_topics_subject ON topics(subject_id);

	CREATE TABLE IF NOT EXISTS bites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		text TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bites_topic ON bites(topic_id);

	CREATE TABLE IF NOT EXISTS quizzes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id INTEGER NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		topic_id INTEGER REFERENCES topics(id) ON DELETE SET NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quizzes_subject ON quizzes(subject_id);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
		text TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_questions_quiz ON questions(quiz_id);

	CREATE TABLE IF NOT EXISTS options (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		is_correct INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_options_question ON options(question_id);

	CREATE TABLE IF NOT EXISTS enrollments (
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		subject_id INTEGER NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (account_id, subject_id)
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		bite_id INTEGER NOT NULL REFERENCES bites(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (account_id, bite_id)
	);

	CREATE TABLE IF NOT EXISTS milestones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		topic_id INTEGER NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		UNIQUE (account_id, topic_id)
	);

	CREATE TABLE IF NOT EXISTS point_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		event_type TEXT NOT NULL,
		points INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_point_records_account ON point_records(account_id);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		attempt_id TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		option_id INTEGER NOT NULL,
		is_correct INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (account_id, attempt_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS processed_messages (
		account_id INTEGER NOT NULL,
		message_id TEXT NOT NULL,
		reply TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (account_id, message_id)
	);
	CREATE INDEX IF NOT EXISTS idx_processed_messages_created ON processed_messages(created_at);

	CREATE TABLE IF NOT EXISTS completed_generations (
		job_id TEXT PRIMARY KEY,
		account_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// WithinTx runs fn inside a write transaction, retrying the whole
// transaction with exponential backoff when SQLite reports a lock conflict.
func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(q Querier) error) error {
	var err error
	for i := 0; i < s.maxTxRetries; i++ {
		err = s.withinTxOnce(ctx, fn)
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i < s.maxTxRetries-1 {
			delay := s.txRetryDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
			slog.Debug("transaction hit SQLITE_BUSY, retrying", "attempt", i+1, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", s.maxTxRetries, err)
}

func (s *SQLiteStore) withinTxOnce(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back transaction", "error", rbErr)
			}
		}
	}()

	if err = fn(&Queries{db: tx, now: s.now}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

var _ Repository = (*SQLiteStore)(nil)
