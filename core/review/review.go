package review

import (
	"errors"
	"time"
)

var (
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrInvalidText     = errors.New("review text must not be empty")
	ErrAlreadyReviewed = errors.New("course has already been reviewed by this user")
)

type Review struct {
	ID        string    `json:"id" db:"review_id"`
	UserID    string    `json:"userId" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	Rating    int       `json:"rating" db:"rating"`
	Text      string    `json:"text" db:"body"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ReviewNew struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

// Detail is a review joined with the author's name for course pages.
type Detail struct {
	ID        string    `json:"id" db:"review_id"`
	Rating    int       `json:"rating" db:"rating"`
	Text      string    `json:"text" db:"body"`
	UserName  string    `json:"userName" db:"user_name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Summary is the denormalized rating aggregate of a course. It always equals
// the mean and count over the current review rows: every review insert
// recomputes it in the same transaction.
type Summary struct {
	CourseID     string    `json:"courseId" db:"course_id"`
	AvgRating    float64   `json:"avgRating" db:"avg_rating"`
	RatingsCount int       `json:"ratingsCount" db:"ratings_count"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
