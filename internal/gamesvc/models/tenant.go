package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TenantGameConfig is the per-tenant, per-game house edge.
type TenantGameConfig struct {
	TenantID  int64     `json:"tenant_id"`
	GameType  string    `json:"game_type"`
	HouseEdge float64   `json:"house_edge"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantRiskLimit caps a tenant's payout exposure. DailyPayoutUsed resets when
// LastResetDate precedes the current UTC day.
type TenantRiskLimit struct {
	TenantID        int64           `json:"tenant_id"`
	MaxBetAmount    decimal.Decimal `json:"max_bet_amount"`
	MaxPayoutPerBet decimal.Decimal `json:"max_payout_per_bet"`
	MaxPayoutPerDay decimal.Decimal `json:"max_payout_per_day"`
	DailyPayoutUsed decimal.Decimal `json:"daily_payout_used"`
	LastResetDate   time.Time       `json:"last_reset_date"`
	Active          bool            `json:"active"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
