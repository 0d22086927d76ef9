package course

import (
	"context"
	"errors"
	"net/http"

	"github.com/courselab/marketplace/api/web"
	"github.com/courselab/marketplace/api/weberr"
	"github.com/courselab/marketplace/database"
	"github.com/courselab/marketplace/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courses, err := List(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, courses, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.Unprocessable(err)
		}

		c, err := FetchRated(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}
