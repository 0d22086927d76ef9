package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courselab/marketplace/database"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, tx sqlx.ExtContext, rv Review) error {
	const q = `
	INSERT INTO reviews (review_id, user_id, course_id, rating, body, created_at)
	VALUES ($1, $2, $3, $4, $5, $6);`

	if _, err := tx.ExecContext(ctx, q, rv.ID, rv.UserID, rv.CourseID, rv.Rating, rv.Text, rv.CreatedAt); err != nil {
		return fmt.Errorf("inserting review of course[%s] by user[%s]: %w", rv.CourseID, rv.UserID, err)
	}

	return nil
}

func ExistsByAuthor(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM reviews WHERE user_id = $1 AND course_id = $2);`

	var exists bool
	if err := sqlx.GetContext(ctx, db, &exists, q, userID, courseID); err != nil {
		return false, fmt.Errorf("checking reviews of course[%s] by user[%s]: %w", courseID, userID, err)
	}

	return exists, nil
}

func FetchByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Detail, error) {
	const q = `
	SELECT r.review_id, r.rating, r.body, u.name AS user_name, r.created_at
	FROM reviews AS r
	JOIN users AS u ON u.user_id = r.user_id
	WHERE r.course_id = $1
	ORDER BY r.created_at DESC;`

	ds := []Detail{}
	if err := sqlx.SelectContext(ctx, db, &ds, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting reviews of course[%s]: %w", courseID, err)
	}

	return ds, nil
}

// Recalculate rewrites the course rating summary from the current review
// rows. The caller must hold the course row lock before inserting and
// recalculating. The aggregate is computed from a statement snapshot, so
// two unserialized runs could each commit a summary missing the review the
// other one inserted. Running it twice with no review changes in between
// is a no-op. The average is rounded to two decimals and is 0 with no
// reviews.
func Recalculate(ctx context.Context, tx sqlx.ExtContext, courseID string) error {
	const q = `
	INSERT INTO course_ratings (course_id, avg_rating, ratings_count, updated_at)
	SELECT $1, COALESCE(ROUND(AVG(rating)::numeric, 2), 0), COUNT(*), $2
	FROM reviews
	WHERE course_id = $1
	ON CONFLICT (course_id) DO UPDATE SET
		avg_rating = EXCLUDED.avg_rating,
		ratings_count = EXCLUDED.ratings_count,
		updated_at = EXCLUDED.updated_at;`

	if _, err := tx.ExecContext(ctx, q, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("recalculating rating of course[%s]: %w", courseID, err)
	}

	return nil
}

func FetchSummary(ctx context.Context, db sqlx.ExtContext, courseID string) (Summary, error) {
	const q = `
	SELECT course_id, avg_rating, ratings_count, updated_at
	FROM course_ratings
	WHERE course_id = $1;`

	var s Summary
	if err := sqlx.GetContext(ctx, db, &s, q, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Summary{}, database.ErrNotFound
		}
		return Summary{}, fmt.Errorf("selecting rating summary of course[%s]: %w", courseID, err)
	}

	return s, nil
}
