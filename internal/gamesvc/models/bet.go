package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bet statuses. Discrete game bets are settled in the same transaction that
// creates them; crash bets stay open until cashout or round crash.
const (
	BetStatusSettled   = "settled"
	BetStatusOpen      = "open"
	BetStatusCashedOut = "cashed_out"
	BetStatusLost      = "lost"
)

// Bet is one wager and its outcome. Created atomically with its ledger rows
// and immutable afterwards, except for the open -> cashed_out/lost transition
// of crash bets.
type Bet struct {
	ID             uuid.UUID       `json:"id"`
	UserID         int64           `json:"user_id"`
	TenantID       int64           `json:"tenant_id"`
	GameType       string          `json:"game_type"`
	Stake          decimal.Decimal `json:"stake"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	Payout         decimal.Decimal `json:"payout"`
	Profit         decimal.Decimal `json:"profit"`
	IsWin          bool            `json:"is_win"`
	Status         string          `json:"status"`
	ResultPayload  json.RawMessage `json:"result_payload,omitempty"`
	RoundSequence  int64           `json:"round_sequence,omitempty"`
	AutoCashout    decimal.Decimal `json:"auto_cashout,omitempty"`
	ServerSeedHash string          `json:"server_seed_hash,omitempty"`
	ClientSeed     string          `json:"client_seed,omitempty"`
	Nonce          int64           `json:"nonce,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
