package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/courselab/marketplace/core/cart"
	"github.com/courselab/marketplace/core/course"
	"github.com/courselab/marketplace/core/ledger"
	"github.com/courselab/marketplace/database"
	"github.com/courselab/marketplace/validate"
	"github.com/jmoiron/sqlx"
)

// Checkout converts the user's cart into purchases and debits the balance,
// all in one transaction. The balance row lock taken up front serializes
// concurrent checkouts for the same user; a second one observes either the
// emptied cart or the reduced balance, never a half-applied state.
//
// Prices are re-resolved from the catalog inside the transaction, so the
// amount charged may differ from what the cart listing showed earlier.
// Courses the user already owns are skipped and swept out of the cart with
// everything else.
func Checkout(ctx context.Context, db *sqlx.DB, attempts int, userID string) (int64, error) {
	var balance int64

	txFn := func(tx sqlx.ExtContext) error {
		bal, err := ledger.BalanceLocked(ctx, tx, userID)
		if err != nil {
			return err
		}

		items, err := cart.FetchItems(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		owned, err := FetchOwnedIDs(ctx, tx, userID)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(items))
		for _, it := range items {
			if owned[it.CourseID] {
				continue
			}
			ids = append(ids, it.CourseID)
		}
		if len(ids) == 0 {
			return ErrEmptyCart
		}

		courses, err := course.FetchByIDs(ctx, tx, ids)
		if err != nil {
			return fmt.Errorf("resolving cart courses: %w", err)
		}

		var total int
		for _, c := range courses {
			total += c.Price
		}

		if bal < int64(total) {
			return ledger.ErrInsufficientFunds
		}

		newBalance, err := ledger.Debit(ctx, tx, userID, int64(total))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, c := range courses {
			p := Purchase{
				ID:        validate.GenerateID(),
				UserID:    userID,
				CourseID:  c.ID,
				PricePaid: c.Price,
				CreatedAt: now,
			}

			if err := Create(ctx, tx, p); err != nil {
				return err
			}
		}

		if err := cart.Delete(ctx, tx, userID); err != nil {
			return err
		}

		balance = newBalance
		return nil
	}

	if err := database.RetryTransaction(db, attempts, txFn); err != nil {
		return 0, err
	}

	return balance, nil
}
