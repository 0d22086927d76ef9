package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courselab/marketplace/database"
	"github.com/courselab/marketplace/validate"
	"github.com/jmoiron/sqlx"
)

func Balance(ctx context.Context, db sqlx.ExtContext, userID string) (int64, error) {
	const q = `SELECT balance FROM users WHERE user_id = $1;`

	var balance int64
	if err := sqlx.GetContext(ctx, db, &balance, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrNotFound
		}
		return 0, fmt.Errorf("selecting balance of user[%s]: %w", userID, err)
	}

	return balance, nil
}

// BalanceLocked reads the balance while taking a row-level lock on the user.
// Every operation that mutates a user's commerce state acquires this lock
// first, so operations on the same user serialize while different users
// never contend.
func BalanceLocked(ctx context.Context, tx sqlx.ExtContext, userID string) (int64, error) {
	const q = `SELECT balance FROM users WHERE user_id = $1 FOR UPDATE;`

	var balance int64
	if err := sqlx.GetContext(ctx, tx, &balance, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrNotFound
		}
		return 0, fmt.Errorf("locking balance of user[%s]: %w", userID, err)
	}

	return balance, nil
}

// Credit increases the user's balance and records a ledger entry. It must
// run inside a transaction.
func Credit(ctx context.Context, tx sqlx.ExtContext, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := BalanceLocked(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	newBalance := balance + amount
	if err := setBalance(ctx, tx, userID, newBalance); err != nil {
		return 0, err
	}

	if err := createEntry(ctx, tx, userID, amount, TopUp, newBalance); err != nil {
		return 0, err
	}

	return newBalance, nil
}

// Debit decreases the user's balance and records a ledger entry. It must run
// inside a transaction. The row lock plus the funds check guarantee the
// balance never goes negative, not even transiently; the CHECK constraint on
// the column backs that up.
func Debit(ctx context.Context, tx sqlx.ExtContext, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := BalanceLocked(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	if balance < amount {
		return 0, ErrInsufficientFunds
	}

	newBalance := balance - amount
	if err := setBalance(ctx, tx, userID, newBalance); err != nil {
		return 0, err
	}

	if err := createEntry(ctx, tx, userID, -amount, Purchase, newBalance); err != nil {
		return 0, err
	}

	return newBalance, nil
}

func Entries(ctx context.Context, db sqlx.ExtContext, userID string) ([]Entry, error) {
	const q = `
	SELECT entry_id, user_id, amount, kind, balance_after, created_at
	FROM ledger_entries
	WHERE user_id = $1
	ORDER BY created_at DESC;`

	es := []Entry{}
	if err := sqlx.SelectContext(ctx, db, &es, q, userID); err != nil {
		return nil, fmt.Errorf("selecting ledger entries of user[%s]: %w", userID, err)
	}

	return es, nil
}

func setBalance(ctx context.Context, tx sqlx.ExtContext, userID string, balance int64) error {
	const q = `UPDATE users SET balance = $2, updated_at = $3 WHERE user_id = $1;`

	if _, err := tx.ExecContext(ctx, q, userID, balance, time.Now().UTC()); err != nil {
		return fmt.Errorf("updating balance of user[%s]: %w", userID, err)
	}

	return nil
}

func createEntry(ctx context.Context, tx sqlx.ExtContext, userID string, amount int64, kind Kind, after int64) error {
	const q = `
	INSERT INTO ledger_entries (entry_id, user_id, amount, kind, balance_after, created_at)
	VALUES ($1, $2, $3, $4, $5, $6);`

	if _, err := tx.ExecContext(ctx, q, validate.GenerateID(), userID, amount, kind, after, time.Now().UTC()); err != nil {
		return fmt.Errorf("inserting ledger entry for user[%s]: %w", userID, err)
	}

	return nil
}
