package cart

import (
	"context"
	"errors"
	"net/http"

	"github.com/courselab/marketplace/api/web"
	"github.com/courselab/marketplace/api/weberr"
	"github.com/courselab/marketplace/core/ledger"
	"github.com/courselab/marketplace/database"
	"github.com/courselab/marketplace/validate"
	"github.com/jmoiron/sqlx"
)

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		userID := web.Query(r, "user_id")
		if err := validate.CheckID(userID); err != nil {
			return weberr.Unprocessable(err)
		}

		lines, err := FetchLines(ctx, db, userID)
		if err != nil {
			return err
		}

		view := View{Items: lines}
		for _, l := range lines {
			view.Total += l.Price
		}

		return web.Respond(ctx, w, view, http.StatusOK)
	}
}

func HandleCreateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ni ItemNew
		if err := web.Decode(w, r, &ni); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(ni); err != nil {
			return weberr.Unprocessable(err)
		}

		txFn := func(tx sqlx.ExtContext) error {
			return AddItem(ctx, tx, ni.UserID, ni.CourseID)
		}

		if err := database.Transaction(db, txFn); err != nil {
			switch {
			case errors.Is(err, ErrAlreadyPurchased), errors.Is(err, ErrAlreadyInCart):
				return weberr.Unprocessable(err)
			case errors.Is(err, database.ErrNotFound):
				return weberr.NotFound(err)
			default:
				return err
			}
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleDeleteItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		userID := web.Query(r, "user_id")
		courseID := web.Param(r, "course_id")

		if err := validate.CheckID(userID); err != nil {
			return weberr.Unprocessable(err)
		}
		if err := validate.CheckID(courseID); err != nil {
			return weberr.Unprocessable(err)
		}

		txFn := func(tx sqlx.ExtContext) error {
			if _, err := ledger.BalanceLocked(ctx, tx, userID); err != nil {
				return err
			}
			return DeleteItem(ctx, tx, userID, courseID)
		}

		if err := database.Transaction(db, txFn); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		userID := web.Query(r, "user_id")
		if err := validate.CheckID(userID); err != nil {
			return weberr.Unprocessable(err)
		}

		txFn := func(tx sqlx.ExtContext) error {
			if _, err := ledger.BalanceLocked(ctx, tx, userID); err != nil {
				return err
			}
			return Delete(ctx, tx, userID)
		}

		if err := database.Transaction(db, txFn); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
