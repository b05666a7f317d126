package models

import "time"

// Account holds the spendable balance of a user in the ledger's smallest unit.
// Only the ledger mutates Balance.
type Account struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanApply reports whether delta keeps the balance non-negative.
func (a Account) CanApply(delta int64) bool {
	return a.Balance+delta >= 0
}
