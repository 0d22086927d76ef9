package cart

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
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

func expectUserLock(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM users WHERE user_id = $1 FOR UPDATE`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(0))
}

func expectOwnedCheck(mock sqlmock.Sqlmock, owned bool) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND course_id = $2)`)).
		WithArgs("u1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(owned))
}

func expectInCartCheck(mock sqlmock.Sqlmock, inCart bool) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM cart_items WHERE user_id = $1 AND course_id = $2)`)).
		WithArgs("u1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(inCart))
}

// The user row lock comes first so an add serializes against a checkout in
// flight for the same user; the ordered expectations pin that down.
func TestAddItem(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	expectUserLock(mock)
	expectOwnedCheck(mock, false)
	expectInCartCheck(mock, false)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cart_items (user_id, course_id, created_at) VALUES ($1, $2, $3)`)).
		WithArgs("u1", "c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, AddItem(ctx, db, "u1", "c1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddItemAlreadyPurchased(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	expectUserLock(mock)
	expectOwnedCheck(mock, true)

	err := AddItem(ctx, db, "u1", "c1")
	require.ErrorIs(t, err, ErrAlreadyPurchased)

	// The cart must not be touched when the course is owned.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddItemAlreadyInCart(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	expectUserLock(mock)
	expectOwnedCheck(mock, false)
	expectInCartCheck(mock, true)

	err := AddItem(ctx, db, "u1", "c1")
	require.ErrorIs(t, err, ErrAlreadyInCart)
}

func TestAddItemInsertRace(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	// Both checks pass but a concurrent request wins the insert: the
	// unique violation must come back as the same business error.
	expectUserLock(mock)
	expectOwnedCheck(mock, false)
	expectInCartCheck(mock, false)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cart_items`)).
		WithArgs("u1", "c1", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	err := AddItem(ctx, db, "u1", "c1")
	require.ErrorIs(t, err, ErrAlreadyInCart)
}

func TestAddItemUnknownUser(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM users WHERE user_id = $1 FOR UPDATE`)).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	err := AddItem(ctx, db, "u1", "c1")
	require.ErrorIs(t, err, database.ErrNotFound)

	// Nothing past the lock may run for an unknown user.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteItemAbsentIsNoop(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cart_items WHERE user_id = $1 AND course_id = $2`)).
		WithArgs("u1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, DeleteItem(ctx, db, "u1", "c1"))
}

func TestFetchLines(t *testing.T) {
	db, mock := setupMock(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"course_id", "name", "image_url", "price"}).
		AddRow("c1", "Go Basics", "", 400).
		AddRow("c2", "Advanced Go", "", 700)

	mock.ExpectQuery(`SELECT c.course_id, c.name, c.image_url, c.price`).
		WithArgs("u1").
		WillReturnRows(rows)

	lines, err := FetchLines(ctx, db, "u1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, 400, lines[0].Price)
	require.Equal(t, 700, lines[1].Price)
}
