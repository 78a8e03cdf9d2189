package models

import "time"

type Category struct {
	ID        string    `json:"id" db:"id"`
	UserID    int       `json:"-" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Icon      *string   `json:"icon" db:"icon"`
	Type      string    `json:"type" db:"type"` // income or expense
	IsDeleted bool      `json:"-" db:"is_deleted"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
