package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a money container owned by a user. The balance is never
// stored; it is reconstructed from the transaction ledger on every read.
type Account struct {
	ID        string    `json:"id" db:"id"`
	UserID    int       `json:"-" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Icon      *string   `json:"icon" db:"icon"`
	IsDeleted bool      `json:"-" db:"is_deleted"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// AccountWithBalance is the read model returned by the accounts listing:
// the account metadata plus its derived balance rounded to 2 decimals.
type AccountWithBalance struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Icon      *string         `json:"icon"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
