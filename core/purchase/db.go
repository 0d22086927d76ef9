package purchase

import (
	"context"
	"fmt"

	"github.com/courselab/marketplace/core/course"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, tx sqlx.ExtContext, p Purchase) error {
	const q = `
	INSERT INTO purchases (purchase_id, user_id, course_id, price_paid, created_at)
	VALUES ($1, $2, $3, $4, $5);`

	if _, err := tx.ExecContext(ctx, q, p.ID, p.UserID, p.CourseID, p.PricePaid, p.CreatedAt); err != nil {
		return fmt.Errorf("inserting purchase of course[%s] by user[%s]: %w", p.CourseID, p.UserID, err)
	}

	return nil
}

// FetchOwnedIDs returns the ids of every course the user has purchased.
func FetchOwnedIDs(ctx context.Context, db sqlx.ExtContext, userID string) (map[string]bool, error) {
	const q = `SELECT course_id FROM purchases WHERE user_id = $1;`

	ids := []string{}
	if err := sqlx.SelectContext(ctx, db, &ids, q, userID); err != nil {
		return nil, fmt.Errorf("selecting purchases of user[%s]: %w", userID, err)
	}

	owned := make(map[string]bool, len(ids))
	for _, id := range ids {
		owned[id] = true
	}

	return owned, nil
}

func ListOwned(ctx context.Context, db sqlx.ExtContext, userID string) ([]course.Course, error) {
	const q = `
	SELECT c.course_id, c.name, c.description, c.image_url, c.price, c.created_at, c.updated_at, c.version
	FROM purchases AS p
	JOIN courses AS c ON c.course_id = p.course_id
	WHERE p.user_id = $1
	ORDER BY p.created_at;`

	cs := []course.Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q, userID); err != nil {
		return nil, fmt.Errorf("selecting owned courses of user[%s]: %w", userID, err)
	}

	return cs, nil
}
