// Package games holds the stateless resolvers for the discrete game variants.
// A resolver maps fairness draws plus tenant config into an outcome and payout
// multiplier; it never touches the wallet ledger.
package games

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Game type identifiers, shared with bets and tenant config rows.
const (
	GameCrash  = "crash"
	GameLimbo  = "limbo"
	GameDice   = "dice"
	GameDraw21 = "draw21"
)

// Config is the slice of resolved tenant configuration a resolver needs.
type Config struct {
	HouseEdge float64
}

// DrawFunc yields one fairness draw for a distinguishing suffix. Multi-draw
// resolvers call it with incrementing suffixes against one (seed, nonce).
type DrawFunc func(suffix string) float64

// Outcome is what a resolver hands to the settlement pipeline. Multiplier is
// rounded exactly once, before Payout is computed; nothing downstream
// re-rounds.
type Outcome struct {
	GameType   string
	Multiplier decimal.Decimal
	Payout     decimal.Decimal
	Profit     decimal.Decimal
	IsWin      bool
	Payload    json.RawMessage
}

// Params carries the player's per-wager choices. Only the fields relevant to
// the chosen game are used.
type Params struct {
	Target decimal.Decimal `json:"target,omitempty"` // limbo, dice
	Guess  string          `json:"guess,omitempty"`  // draw21: "" or "main"
}

// IsDiscrete reports whether gameType is resolved by this package.
func IsDiscrete(gameType string) bool {
	switch gameType {
	case GameLimbo, GameDice, GameDraw21:
		return true
	}
	return false
}

// Resolve dispatches to the resolver for gameType.
func Resolve(gameType string, stake decimal.Decimal, p Params, cfg Config, draw DrawFunc) (*Outcome, error) {
	switch gameType {
	case GameLimbo:
		return ResolveLimbo(stake, p.Target, cfg, draw(""))
	case GameDice:
		return ResolveDice(stake, p.Target, cfg, draw(""))
	case GameDraw21:
		return ResolveDraw21(stake, p.Guess, cfg, draw)
	default:
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
}

func lost(gameType string, stake decimal.Decimal, payload interface{}) *Outcome {
	raw, _ := json.Marshal(payload)
	return &Outcome{
		GameType:   gameType,
		Multiplier: decimal.Zero,
		Payout:     decimal.Zero,
		Profit:     stake.Neg(),
		IsWin:      false,
		Payload:    raw,
	}
}

func won(gameType string, stake, multiplier decimal.Decimal, payload interface{}) *Outcome {
	raw, _ := json.Marshal(payload)
	// the multiplier is already rounded; one floor keeps the payout at cents
	payout := stake.Mul(multiplier).RoundFloor(2)
	return &Outcome{
		GameType:   gameType,
		Multiplier: multiplier,
		Payout:     payout,
		Profit:     payout.Sub(stake),
		IsWin:      true,
		Payload:    raw,
	}
}
