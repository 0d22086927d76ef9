package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/courselab/marketplace/core/ledger"
	"github.com/courselab/marketplace/database"
	"github.com/jmoiron/sqlx"
)

func FetchItems(ctx context.Context, db sqlx.ExtContext, userID string) ([]Item, error) {
	const q = `
	SELECT user_id, course_id, created_at
	FROM cart_items
	WHERE user_id = $1
	ORDER BY created_at;`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart items of user[%s]: %w", userID, err)
	}

	return items, nil
}

func FetchLines(ctx context.Context, db sqlx.ExtContext, userID string) ([]Line, error) {
	const q = `
	SELECT c.course_id, c.name, c.image_url, c.price
	FROM cart_items AS ci
	JOIN courses AS c ON c.course_id = ci.course_id
	WHERE ci.user_id = $1
	ORDER BY ci.created_at;`

	lines := []Line{}
	if err := sqlx.SelectContext(ctx, db, &lines, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart of user[%s]: %w", userID, err)
	}

	return lines, nil
}

// AddItem inserts a cart item after rejecting courses the user already owns
// or already put in the cart. It must run inside a transaction. The user
// row lock taken first serializes the add against a checkout in flight, so
// the ownership check cannot miss a purchase about to commit; an unknown
// user surfaces as database.ErrNotFound. The primary key on
// (user_id, course_id) still backstops duplicate inserts, reported as
// ErrAlreadyInCart.
func AddItem(ctx context.Context, tx sqlx.ExtContext, userID string, courseID string) error {
	if _, err := ledger.BalanceLocked(ctx, tx, userID); err != nil {
		return err
	}

	const owned = `SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND course_id = $2);`

	var exists bool
	if err := sqlx.GetContext(ctx, tx, &exists, owned, userID, courseID); err != nil {
		return fmt.Errorf("checking ownership of course[%s] by user[%s]: %w", courseID, userID, err)
	}
	if exists {
		return ErrAlreadyPurchased
	}

	const inCart = `SELECT EXISTS (SELECT 1 FROM cart_items WHERE user_id = $1 AND course_id = $2);`

	if err := sqlx.GetContext(ctx, tx, &exists, inCart, userID, courseID); err != nil {
		return fmt.Errorf("checking cart of user[%s] for course[%s]: %w", userID, courseID, err)
	}
	if exists {
		return ErrAlreadyInCart
	}

	const insert = `INSERT INTO cart_items (user_id, course_id, created_at) VALUES ($1, $2, $3);`

	if _, err := tx.ExecContext(ctx, insert, userID, courseID, time.Now().UTC()); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAlreadyInCart
		}
		return fmt.Errorf("inserting cart item for user[%s]: %w", userID, err)
	}

	return nil
}

// DeleteItem removes a single course from the user's cart. Deleting an
// absent item is not an error.
func DeleteItem(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1 AND course_id = $2;`

	if _, err := db.ExecContext(ctx, q, userID, courseID); err != nil {
		return fmt.Errorf("deleting cart item of user[%s]: %w", userID, err)
	}

	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1;`

	if _, err := db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("flushing cart of user[%s]: %w", userID, err)
	}

	return nil
}
