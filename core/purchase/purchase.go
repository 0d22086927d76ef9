package purchase

import (
	"errors"
	"time"
)

var ErrEmptyCart = errors.New("no items to checkout")

// Purchase is the permanent record that a user owns a course. PricePaid is
// the catalog price resolved at checkout time and never changes afterwards,
// even if the catalog price does.
type Purchase struct {
	ID        string    `json:"id" db:"purchase_id"`
	UserID    string    `json:"userId" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	PricePaid int       `json:"pricePaid" db:"price_paid"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type CheckoutNew struct {
	UserID string `json:"userId" validate:"required,uuid"`
}
