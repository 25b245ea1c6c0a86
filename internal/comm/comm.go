package comm

import (
	"encoding/json"
	"time"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "place-bet", "cashout"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

// Client -> service payloads.

type InitReq struct {
	UserId   int64 `json:"user_id"`
	TenantId int64 `json:"tenant_id"`
}

type PlaceBetReq struct {
	UserId      int64  `json:"user_id"`
	TenantId    int64  `json:"tenant_id"`
	Stake       string `json:"stake"`
	AutoCashout string `json:"auto_cashout,omitempty"`
}

type CashoutReq struct {
	UserId   int64  `json:"user_id"`
	TenantId int64  `json:"tenant_id"`
	BetId    string `json:"bet_id"`
}

type WagerReq struct {
	UserId   int64  `json:"user_id"`
	TenantId int64  `json:"tenant_id"`
	GameType string `json:"game_type"`
	Stake    string `json:"stake"`
	Target   string `json:"target,omitempty"` // limbo and dice
	Guess    string `json:"guess,omitempty"`  // draw21: "" or "main"
}

type RotateSeedReq struct {
	UserId     int64  `json:"user_id"`
	ClientSeed string `json:"client_seed"`
}

// Service -> client payloads. Status is "ok" or an error code from the
// settlement taxonomy.

type InitRes struct {
	Status     string      `json:"status"`
	Message    string      `json:"message,omitempty"`
	Balance    string      `json:"balance"`
	RoundState interface{} `json:"round_state,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

type PlaceBetRes struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	BetId     string `json:"bet_id,omitempty"`
	Sequence  int64  `json:"sequence,omitempty"`
	Balance   string `json:"balance,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type CashoutRes struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	BetId      string `json:"bet_id,omitempty"`
	Multiplier string `json:"multiplier,omitempty"`
	Payout     string `json:"payout,omitempty"`
	Balance    string `json:"balance,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type WagerRes struct {
	Status         string          `json:"status"`
	Message        string          `json:"message,omitempty"`
	BetId          string          `json:"bet_id,omitempty"`
	GameType       string          `json:"game_type,omitempty"`
	Multiplier     string          `json:"multiplier,omitempty"`
	Payout         string          `json:"payout,omitempty"`
	Profit         string          `json:"profit,omitempty"`
	IsWin          bool            `json:"is_win"`
	Result         json.RawMessage `json:"result,omitempty"`
	Balance        string          `json:"balance,omitempty"`
	ServerSeedHash string          `json:"server_seed_hash,omitempty"`
	ClientSeed     string          `json:"client_seed,omitempty"`
	Nonce          int64           `json:"nonce,omitempty"`
	Timestamp      int64           `json:"timestamp"`
}

type RotateSeedRes struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Revealed  map[string]interface{} `json:"revealed,omitempty"`
	NextHash  string                 `json:"next_hash,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

type ServiceHeartbeat struct {
	ID        string    `json:"id"` // service id
	Timestamp time.Time `json:"timestamp"`
}
