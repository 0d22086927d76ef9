package user

import "time"

type User struct {
	ID        string    `json:"id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
