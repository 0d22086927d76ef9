package ledger

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

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		userID := web.Query(r, "user_id")
		if err := validate.CheckID(userID); err != nil {
			return weberr.Unprocessable(err)
		}

		balance, err := Balance(ctx, db, userID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		entries, err := Entries(ctx, db, userID)
		if err != nil {
			return err
		}

		wallet := struct {
			Balance int64   `json:"balance"`
			Entries []Entry `json:"entries"`
		}{
			Balance: balance,
			Entries: entries,
		}

		return web.Respond(ctx, w, wallet, http.StatusOK)
	}
}

func HandleTopUp(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var nt TopUpNew
		if err := web.Decode(w, r, &nt); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(nt); err != nil {
			return weberr.Unprocessable(err)
		}

		var balance int64
		txFn := func(tx sqlx.ExtContext) error {
			var err error
			balance, err = Credit(ctx, tx, nt.UserID, nt.Amount)
			return err
		}

		if err := database.Transaction(db, txFn); err != nil {
			switch {
			case errors.Is(err, ErrInvalidAmount):
				return weberr.Unprocessable(err)
			case errors.Is(err, database.ErrNotFound):
				return weberr.NotFound(err)
			default:
				return err
			}
		}

		resp := struct {
			Balance int64 `json:"balance"`
		}{
			Balance: balance,
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
