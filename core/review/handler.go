package review

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/courselab/marketplace/api/web"
	"github.com/courselab/marketplace/api/weberr"
	"github.com/courselab/marketplace/config"
	"github.com/courselab/marketplace/core/course"
	"github.com/courselab/marketplace/core/user"
	"github.com/courselab/marketplace/database"
	"github.com/courselab/marketplace/validate"
	"github.com/jmoiron/sqlx"
)

func HandleCreate(db *sqlx.DB, cfg config.Reviews) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.Unprocessable(err)
		}

		var nr ReviewNew
		if err := web.Decode(w, r, &nr); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(nr); err != nil {
			return weberr.Unprocessable(err)
		}

		if nr.Rating < 1 || nr.Rating > 5 {
			return weberr.Unprocessable(ErrInvalidRating)
		}

		text := strings.TrimSpace(nr.Text)
		if text == "" {
			return weberr.Unprocessable(ErrInvalidText)
		}

		if _, err := user.Fetch(ctx, db, nr.UserID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		rv := Review{
			ID:        validate.GenerateID(),
			UserID:    nr.UserID,
			CourseID:  courseID,
			Rating:    nr.Rating,
			Text:      text,
			CreatedAt: time.Now().UTC(),
		}

		// The summary is recomputed in the same transaction as the
		// insert, so a caller observing the response also observes a
		// summary that includes the new review. The course row lock
		// serializes submissions for the same course; without it a
		// recalculation could commit an aggregate computed before a
		// competing review landed.
		txFn := func(tx sqlx.ExtContext) error {
			if err := course.Lock(ctx, tx, rv.CourseID); err != nil {
				return err
			}

			if cfg.OnePerCourse {
				exists, err := ExistsByAuthor(ctx, tx, rv.UserID, rv.CourseID)
				if err != nil {
					return err
				}
				if exists {
					return ErrAlreadyReviewed
				}
			}

			if err := Create(ctx, tx, rv); err != nil {
				return err
			}

			return Recalculate(ctx, tx, rv.CourseID)
		}

		if err := database.Transaction(db, txFn); err != nil {
			switch {
			case errors.Is(err, ErrAlreadyReviewed):
				return weberr.Conflict(err)
			case errors.Is(err, database.ErrNotFound):
				return weberr.NotFound(err)
			default:
				return err
			}
		}

		return web.Respond(ctx, w, nil, http.StatusCreated)
	}
}

func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.Unprocessable(err)
		}

		reviews, err := FetchByCourse(ctx, db, courseID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, reviews, http.StatusOK)
	}
}
