package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/classmate/internal/domain"
)

// GetAccount retrieves an account by id.
func (q *Queries) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	row := q.db.QueryRowContext(ctx, `SELECT id, address, created_at FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// GetAccountByAddress retrieves an account by its messaging address.
func (q *Queries) GetAccountByAddress(ctx context.Context, address string) (*domain.Account, error) {
	row := q.db.QueryRowContext(ctx, `SELECT id, address, created_at FROM accounts WHERE address = ?`, address)
	return scanAccount(row)
}

// CreateAccount registers an address, returning the existing account if
// the address is already known.
func (q *Queries) CreateAccount(ctx context.Context, address string) (*domain.Account, bool, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (address, created_at) VALUES (?, ?) ON CONFLICT(address) DO NOTHING`,
		address, q.now().Unix())
	if err != nil {
		return nil, false, fmt.Errorf("insert account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("get rows affected: %w", err)
	}

	acct, err := q.GetAccountByAddress(ctx, address)
	if err != nil {
		return nil, false, err
	}
	return acct, n == 1, nil
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	var createdAt int64
	err := row.Scan(&a.ID, &a.Address, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account row: %w", err)
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}
