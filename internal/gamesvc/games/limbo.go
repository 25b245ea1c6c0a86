package games

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Limbo target bounds. The cap mirrors the crash curve cap so a tenant's
// per-bet risk stays comparable across both games.
var (
	limboMinTarget = decimal.NewFromFloat(1.01)
	limboMaxTarget = decimal.NewFromInt(10000)
)

type limboResult struct {
	Result string `json:"result"`
	Target string `json:"target"`
}

// ResolveLimbo resolves a target-multiplier wager: the draw is mapped through
// the same curve as the crash game, max(1.00, (1-edge)/(1-r)) floored to 2
// decimals, and the player wins iff the result reaches their target. A win
// pays stake * target.
func ResolveLimbo(stake, target decimal.Decimal, cfg Config, r float64) (*Outcome, error) {
	if target.LessThan(limboMinTarget) || target.GreaterThan(limboMaxTarget) {
		return nil, fmt.Errorf("limbo target %s out of range [%s, %s]", target, limboMinTarget, limboMaxTarget)
	}

	result := limboMultiplier(r, cfg.HouseEdge)
	payload := limboResult{Result: result.StringFixed(2), Target: target.StringFixed(2)}

	if result.LessThan(target) {
		return lost(GameLimbo, stake, payload), nil
	}
	return won(GameLimbo, stake, target, payload), nil
}

// limboMultiplier maps a draw to the achieved multiplier, floored once to 2
// decimals. Must stay in lockstep with fair.CrashPoint for verifiability.
func limboMultiplier(r, houseEdge float64) decimal.Decimal {
	m := (1 - houseEdge) / (1 - r)
	if m < 1 {
		m = 1
	}
	return decimal.NewFromFloat(m).RoundFloor(2)
}
