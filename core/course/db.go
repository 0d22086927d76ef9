package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courselab/marketplace/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Lock takes a row-level lock on the course. Review submissions acquire it
// before writing, so the summary recalculation always works from a review
// set that includes every committed submission for the course. An unknown
// course surfaces as database.ErrNotFound.
func Lock(ctx context.Context, tx sqlx.ExtContext, courseID string) error {
	const q = `SELECT course_id FROM courses WHERE course_id = $1 FOR UPDATE;`

	var id string
	if err := sqlx.GetContext(ctx, tx, &id, q, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrNotFound
		}
		return fmt.Errorf("locking course[%s]: %w", courseID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, courseID string) (Course, error) {
	const q = `
	SELECT course_id, name, description, image_url, price, created_at, updated_at, version
	FROM courses
	WHERE course_id = $1;`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, database.ErrNotFound
		}
		return Course{}, fmt.Errorf("selecting course[%s]: %w", courseID, err)
	}

	return c, nil
}

// FetchByIDs resolves a batch of courses in one query. Every id must
// resolve; a missing course surfaces as database.ErrNotFound.
func FetchByIDs(ctx context.Context, db sqlx.ExtContext, ids []string) ([]Course, error) {
	const q = `
	SELECT course_id, name, description, image_url, price, created_at, updated_at, version
	FROM courses
	WHERE course_id = ANY($1)
	ORDER BY created_at;`

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("selecting courses %v: %w", ids, err)
	}
	if len(cs) != len(ids) {
		return nil, database.ErrNotFound
	}

	return cs, nil
}

func FetchRated(ctx context.Context, db sqlx.ExtContext, courseID string) (Rated, error) {
	const q = `
	SELECT c.course_id, c.name, c.description, c.image_url, c.price, c.created_at, c.updated_at, c.version,
		COALESCE(r.avg_rating, 0) AS avg_rating,
		COALESCE(r.ratings_count, 0) AS ratings_count
	FROM courses AS c
	LEFT JOIN course_ratings AS r ON r.course_id = c.course_id
	WHERE c.course_id = $1;`

	var c Rated
	if err := sqlx.GetContext(ctx, db, &c, q, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Rated{}, database.ErrNotFound
		}
		return Rated{}, fmt.Errorf("selecting rated course[%s]: %w", courseID, err)
	}

	return c, nil
}

func List(ctx context.Context, db sqlx.ExtContext) ([]Rated, error) {
	const q = `
	SELECT c.course_id, c.name, c.description, c.image_url, c.price, c.created_at, c.updated_at, c.version,
		COALESCE(r.avg_rating, 0) AS avg_rating,
		COALESCE(r.ratings_count, 0) AS ratings_count
	FROM courses AS c
	LEFT JOIN course_ratings AS r ON r.course_id = c.course_id
	ORDER BY c.created_at;`

	cs := []Rated{}
	if err := sqlx.SelectContext(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}

	return cs, nil
}
