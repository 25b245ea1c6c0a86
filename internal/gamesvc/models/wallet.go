package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a player's spendable balance for one currency.
// Balance is mutated exclusively by the settlement pipeline and never goes negative.
type Wallet struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	TenantID  int64           `json:"tenant_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
