package games

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Dice roll-under targets, 2-decimal percentages.
var (
	diceMinTarget = decimal.NewFromFloat(0.01)
	diceMaxTarget = decimal.NewFromFloat(98.00)
	diceHundred   = decimal.NewFromInt(100)
)

type diceResult struct {
	Roll   string `json:"roll"`
	Target string `json:"target"`
}

// ResolveDice resolves a roll-under wager. The draw maps to a roll in
// [0.00, 100.00) with 2-decimal granularity; the player wins iff
// roll < target. The win multiplier is (100/target)*(1-edge), floored once to
// 2 decimals before the payout is computed.
func ResolveDice(stake, target decimal.Decimal, cfg Config, r float64) (*Outcome, error) {
	if target.LessThan(diceMinTarget) || target.GreaterThan(diceMaxTarget) {
		return nil, fmt.Errorf("dice target %s out of range [%s, %s]", target, diceMinTarget, diceMaxTarget)
	}

	// 10000 buckets of 0.01 each
	roll := decimal.New(int64(math.Floor(r*10000)), -2)
	payload := diceResult{Roll: roll.StringFixed(2), Target: target.StringFixed(2)}

	if roll.GreaterThanOrEqual(target) {
		return lost(GameDice, stake, payload), nil
	}

	edge := decimal.NewFromFloat(cfg.HouseEdge)
	multiplier := diceHundred.Div(target).Mul(decimal.NewFromInt(1).Sub(edge)).RoundFloor(2)
	return won(GameDice, stake, multiplier, payload), nil
}
