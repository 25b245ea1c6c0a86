package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LedgerTypeStake  = "stake"
	LedgerTypePayout = "payout"
)

// LedgerTransaction is one immutable balance movement. For any wallet the rows
// form a contiguous chain: tx[i].BalanceAfter == tx[i+1].BalanceBefore.
type LedgerTransaction struct {
	ID            uuid.UUID       `json:"id"`
	WalletID      int64           `json:"wallet_id"`
	BetID         uuid.UUID       `json:"bet_id"`
	TType         string          `json:"ttype"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	CreatedAt     time.Time       `json:"created_at"`
}
