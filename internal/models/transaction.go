package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TypeIncome   = "income"
	TypeExpense  = "expense"
	TypeTransfer = "transfer"
)

// Transfer leg roles. Stored on each leg at creation so that transfer
// direction never has to be inferred from timestamps.
const (
	RoleSource      = "source"
	RoleDestination = "destination"
)

// Transaction is one immutable ledger entry. Rows are never updated
// after creation except for the soft-delete tombstone flag.
type Transaction struct {
	ID              string          `json:"id" db:"id"`
	UserID          int             `json:"-" db:"user_id"`
	AccountID       string          `json:"accountId" db:"account_id"`
	Type            string          `json:"type" db:"type"` // income, expense or transfer
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Note            *string         `json:"note" db:"note"`
	CategoryID      *string         `json:"categoryId" db:"category_id"`        // required for income/expense, absent for transfer
	TransferGroupID *string         `json:"transferGroupId" db:"transfer_group_id"` // links the two legs of a transfer
	TransferRole    *string         `json:"transferRole,omitempty" db:"transfer_role"`
	IsDeleted       bool            `json:"-" db:"is_deleted"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}
