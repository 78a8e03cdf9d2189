package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget is a monthly spending limit for one expense category.
type Budget struct {
	ID         string          `json:"id" db:"id"`
	UserID     int             `json:"-" db:"user_id"`
	CategoryID string          `json:"categoryId" db:"category_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Month      int             `json:"month" db:"month"`
	Year       int             `json:"year" db:"year"`
	IsDeleted  bool            `json:"-" db:"is_deleted"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	Category   *Category       `json:"category,omitempty"`
}
