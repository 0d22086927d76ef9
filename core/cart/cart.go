package cart

import (
	"errors"
	"time"
)

var (
	ErrAlreadyInCart    = errors.New("course is already in the cart")
	ErrAlreadyPurchased = errors.New("course has already been purchased")
)

type Item struct {
	UserID    string    `json:"-" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ItemNew struct {
	UserID   string `json:"userId" validate:"required,uuid"`
	CourseID string `json:"courseId" validate:"required,uuid"`
}

// Line is a cart item joined with its course snapshot. Price is the current
// catalog price: checkout re-resolves prices, so the total shown here may
// differ from the amount ultimately charged.
type Line struct {
	CourseID string `json:"courseId" db:"course_id"`
	Name     string `json:"name" db:"name"`
	ImageURL string `json:"imageUrl" db:"image_url"`
	Price    int    `json:"price" db:"price"`
}

type View struct {
	Items []Line `json:"items"`
	Total int    `json:"total"`
}
