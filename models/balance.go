package models

import (
	"time"

	"eventsphere/status"
)

type Balance struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"` // minor units, never negative
	UpdatedAt time.Time `json:"updated_at"`
}

func NewBalance(userID string) *Balance {
	return &Balance{
		UserID:    userID,
		Amount:    0,
		UpdatedAt: time.Now(),
	}
}

// AddFunds credits the balance and returns the new total.
func (b *Balance) AddFunds(amount int64) (int64, error) {
	if amount <= 0 {
		return b.Amount, status.InvalidInput("amount must be positive")
	}
	b.Amount += amount
	b.UpdatedAt = time.Now()
	return b.Amount, nil
}

// Withdraw debits the balance and returns the new total. The balance is
// left untouched when amount exceeds the current total.
func (b *Balance) Withdraw(amount int64) (int64, error) {
	if amount <= 0 {
		return b.Amount, status.InvalidInput("amount must be positive")
	}
	if amount > b.Amount {
		return b.Amount, status.ErrInsufficientFunds
	}
	b.Amount -= amount
	b.UpdatedAt = time.Now()
	return b.Amount, nil
}
