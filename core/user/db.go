package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courselab/marketplace/database"
	"github.com/jmoiron/sqlx"
)

func Fetch(ctx context.Context, db sqlx.ExtContext, userID string) (User, error) {
	const q = `
	SELECT user_id, name, balance, created_at, updated_at
	FROM users
	WHERE user_id = $1;`

	var u User
	if err := sqlx.GetContext(ctx, db, &u, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, database.ErrNotFound
		}
		return User{}, fmt.Errorf("selecting user[%s]: %w", userID, err)
	}

	return u, nil
}
