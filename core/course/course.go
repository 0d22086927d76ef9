package course

import "time"

type Course struct {
	ID          string    `json:"id" db:"course_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ImageURL    string    `json:"imageUrl" db:"image_url"`
	Price       int       `json:"price" db:"price"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
	Version     int       `json:"-" db:"version"`
}

// Rated is the catalog view of a course: the course itself plus the
// denormalized review aggregate kept current by the review package.
type Rated struct {
	Course
	AvgRating    float64 `json:"avgRating" db:"avg_rating"`
	RatingsCount int     `json:"ratingsCount" db:"ratings_count"`
}
