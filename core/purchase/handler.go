package purchase

import (
	"context"
	"errors"
	"net/http"

	"github.com/courselab/marketplace/api/web"
	"github.com/courselab/marketplace/api/weberr"
	"github.com/courselab/marketplace/config"
	"github.com/courselab/marketplace/core/ledger"
	"github.com/courselab/marketplace/database"
	"github.com/courselab/marketplace/validate"
	"github.com/jmoiron/sqlx"
)

func HandleCheckout(db *sqlx.DB, cfg config.Checkout) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var nc CheckoutNew
		if err := web.Decode(w, r, &nc); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(nc); err != nil {
			return weberr.Unprocessable(err)
		}

		// The timeout bounds how long the user's balance row can stay
		// locked if the store stalls.
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		balance, err := Checkout(ctx, db, cfg.Attempts, nc.UserID)
		if err != nil {
			switch {
			case errors.Is(err, ErrEmptyCart):
				return weberr.Unprocessable(err)
			case errors.Is(err, ledger.ErrInsufficientFunds):
				return weberr.Unprocessable(err)
			case errors.Is(err, database.ErrNotFound):
				return weberr.NotFound(err)
			case errors.Is(err, database.ErrConflict):
				return weberr.NewError(err, database.ErrConflict.Error(), http.StatusConflict)
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

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		userID := web.Query(r, "user_id")
		if err := validate.CheckID(userID); err != nil {
			return weberr.Unprocessable(err)
		}

		courses, err := ListOwned(ctx, db, userID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, courses, http.StatusOK)
	}
}
