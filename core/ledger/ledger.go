package ledger

import (
	"errors"
	"time"
)

// Kind tags a ledger entry with the operation that produced it.
type Kind string

const (
	TopUp    Kind = "topup"
	Purchase Kind = "purchase"
)

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Entry records a single balance movement together with the balance it left
// behind. Entries are append-only: the sum of amounts always equals the
// current balance.
type Entry struct {
	ID           string    `json:"id" db:"entry_id"`
	UserID       string    `json:"-" db:"user_id"`
	Amount       int64     `json:"amount" db:"amount"`
	Kind         Kind      `json:"kind" db:"kind"`
	BalanceAfter int64     `json:"balanceAfter" db:"balance_after"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type TopUpNew struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Amount int64  `json:"amount" validate:"required"`
}
