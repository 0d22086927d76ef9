package purchase

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/courselab/marketplace/core/ledger"
	"github.com/courselab/marketplace/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { sqlxDB.Close() })

	return sqlxDB, mock
}

func expectBalanceLock(mock sqlmock.Sqlmock, balance int64) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM users WHERE user_id = $1 FOR UPDATE`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(balance))
}

func expectCartItems(mock sqlmock.Sqlmock, courseIDs ...string) {
	rows := sqlmock.NewRows([]string{"user_id", "course_id", "created_at"})
	for _, id := range courseIDs {
		rows.AddRow("u1", id, time.Now().UTC())
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, course_id, created_at
	FROM cart_items`)).
		WithArgs("u1").
		WillReturnRows(rows)
}

func expectOwned(mock sqlmock.Sqlmock, courseIDs ...string) {
	rows := sqlmock.NewRows([]string{"course_id"})
	for _, id := range courseIDs {
		rows.AddRow(id)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT course_id FROM purchases WHERE user_id = $1`)).
		WithArgs("u1").
		WillReturnRows(rows)
}

func expectCourses(mock sqlmock.Sqlmock, ids []string, prices []int) {
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"course_id", "name", "description", "image_url", "price", "created_at", "updated_at", "version"})
	for i, id := range ids {
		rows.AddRow(id, "course "+id, "", "", prices[i], now, now, 1)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT course_id, name, description, image_url, price, created_at, updated_at, version
	FROM courses
	WHERE course_id = ANY($1)`)).
		WithArgs(pq.Array(ids)).
		WillReturnRows(rows)
}

// Balance 1000 against a 1100 cart: the checkout must fail with
// InsufficientFunds and roll back without having written anything.
func TestCheckoutInsufficientFunds(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectBalanceLock(mock, 1000)
	expectCartItems(mock, "a", "b")
	expectOwned(mock)
	expectCourses(mock, []string{"a", "b"}, []int{400, 700})
	mock.ExpectRollback()

	_, err := Checkout(ctx, db, 3, "u1")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Balance 1200 against the same cart: one debit, one purchase row per
// course at the resolved price, cart cleared, remaining balance 100.
func TestCheckout(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectBalanceLock(mock, 1200)
	expectCartItems(mock, "a", "b")
	expectOwned(mock)
	expectCourses(mock, []string{"a", "b"}, []int{400, 700})

	// ledger.Debit re-locks the row it already holds, then writes.
	expectBalanceLock(mock, 1200)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET balance = $2, updated_at = $3 WHERE user_id = $1`)).
		WithArgs("u1", int64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ledger_entries`)).
		WithArgs(sqlmock.AnyArg(), "u1", int64(-1100), string(ledger.Purchase), int64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO purchases`)).
		WithArgs(sqlmock.AnyArg(), "u1", "a", 400, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO purchases`)).
		WithArgs(sqlmock.AnyArg(), "u1", "b", 700, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cart_items WHERE user_id = $1`)).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	mock.ExpectCommit()

	balance, err := Checkout(ctx, db, 3, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutEmptyCart(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectBalanceLock(mock, 1000)
	expectCartItems(mock)
	mock.ExpectRollback()

	_, err := Checkout(ctx, db, 3, "u1")
	require.ErrorIs(t, err, ErrEmptyCart)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Every cart item already owned (a concurrent checkout won): the filtered
// set is empty and the call fails like an empty cart, with no writes.
func TestCheckoutEverythingOwned(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectBalanceLock(mock, 1000)
	expectCartItems(mock, "a", "b")
	expectOwned(mock, "a", "b")
	mock.ExpectRollback()

	_, err := Checkout(ctx, db, 3, "u1")
	require.ErrorIs(t, err, ErrEmptyCart)
	require.NoError(t, mock.ExpectationsWereMet())
}

// The batched course lookup must account for every cart item; a short
// result aborts the checkout before anything is written.
func TestCheckoutMissingCourse(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectBalanceLock(mock, 1000)
	expectCartItems(mock, "a", "b")
	expectOwned(mock)

	now := time.Now().UTC()
	short := sqlmock.NewRows([]string{"course_id", "name", "description", "image_url", "price", "created_at", "updated_at", "version"}).
		AddRow("a", "course a", "", "", 400, now, now, 1)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE course_id = ANY($1)`)).
		WithArgs(pq.Array([]string{"a", "b"})).
		WillReturnRows(short)
	mock.ExpectRollback()

	_, err := Checkout(ctx, db, 3, "u1")
	require.ErrorIs(t, err, database.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A serialization failure aborts the first attempt and the second one goes
// through.
func TestCheckoutRetriesOnSerializationFailure(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM users WHERE user_id = $1 FOR UPDATE`)).
		WithArgs("u1").
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	expectBalanceLock(mock, 500)
	expectCartItems(mock, "a")
	expectOwned(mock)
	expectCourses(mock, []string{"a"}, []int{400})

	expectBalanceLock(mock, 500)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET balance = $2, updated_at = $3 WHERE user_id = $1`)).
		WithArgs("u1", int64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO ledger_entries`)).
		WithArgs(sqlmock.AnyArg(), "u1", int64(-400), string(ledger.Purchase), int64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO purchases`)).
		WithArgs(sqlmock.AnyArg(), "u1", "a", 400, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cart_items WHERE user_id = $1`)).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	balance, err := Checkout(ctx, db, 3, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Retries are bounded: a conflict on every attempt surfaces as ErrConflict.
func TestCheckoutConflictExhaustsRetries(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM users WHERE user_id = $1 FOR UPDATE`)).
			WithArgs("u1").
			WillReturnError(&pq.Error{Code: "40001"})
		mock.ExpectRollback()
	}

	_, err := Checkout(ctx, db, 3, "u1")
	require.ErrorIs(t, err, database.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
